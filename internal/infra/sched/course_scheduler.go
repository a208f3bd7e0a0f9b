package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	red "whatsapp-course-delivery/internal/infra/redis"
)

// Enqueuer is the minimal surface the scheduler needs from the dedup
// enqueuer.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload model.JobPayload) (accepted bool, jobID string, err error)
}

// runLockTTL bounds how long a crashed instance can hold a schedule's tick.
const runLockTTL = 10 * time.Minute

// CourseScheduler walks course-lesson timelines on each tick and fans out
// one lesson job per enrolled learner. The cursor only advances after the
// full fan-out was issued, via a durable compare-and-swap, so concurrent
// instances can never double-fire a lesson.
type CourseScheduler struct {
	schedules repository.ScheduleRepository
	catalog   repository.CourseCatalog
	enq       Enqueuer
	locker    red.Locker
	log       *zerolog.Logger
}

func NewCourseScheduler(
	schedules repository.ScheduleRepository,
	catalog repository.CourseCatalog,
	enq Enqueuer,
	locker red.Locker,
	logger *zerolog.Logger,
) *CourseScheduler {
	compLog := logger.With().Str("component", "CourseScheduler").Logger()
	return &CourseScheduler{
		schedules: schedules,
		catalog:   catalog,
		enq:       enq,
		locker:    locker,
		log:       &compLog,
	}
}

// Tick evaluates every running schedule against the tick time. Intended to
// be driven by cron.
func (s *CourseScheduler) Tick(ctx context.Context, now time.Time) {
	scheds, err := s.schedules.ListRunning(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("could not list running schedules")
		return
	}
	for _, sc := range scheds {
		if !sc.DueAt(now) {
			continue
		}
		if _, err := s.RunOne(ctx, sc); err != nil {
			s.log.Error().Str("schedule_id", sc.ID).Err(err).Msg("schedule run failed")
		}
	}
}

// RunOne fans out the current lesson of one schedule. Returns the number of
// enqueue calls issued.
func (s *CourseScheduler) RunOne(ctx context.Context, sc *model.CourseSchedule) (int, error) {
	token, err := s.locker.TryLock(ctx, red.ScheduleRunKey(sc.ID), runLockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			s.log.Debug().Str("schedule_id", sc.ID).Msg("run lock held, skipping tick")
			return 0, nil
		}
		return 0, err
	}
	defer func() {
		_ = s.locker.Unlock(context.Background(), red.ScheduleRunKey(sc.ID), token)
	}()

	total, err := s.catalog.TotalLessons(ctx, sc.CourseID)
	if err != nil {
		return 0, err
	}
	if sc.LessonCursor >= total {
		if err := s.schedules.MarkCompleted(ctx, sc.ID); err != nil {
			return 0, err
		}
		s.log.Info().
			Str("schedule_id", sc.ID).
			Str("course_id", sc.CourseID).
			Msg("schedule completed")
		return 0, nil
	}

	lesson, err := s.catalog.LessonAt(ctx, sc.CourseID, sc.LessonCursor)
	if err != nil {
		return 0, err
	}
	learners, err := s.catalog.EnrolledLearners(ctx, sc.CourseID)
	if err != nil {
		return 0, err
	}

	issued := 0
	for _, l := range learners {
		payload := model.LessonPayload{
			CourseID:  sc.CourseID,
			LessonID:  lesson.ID,
			To:        l.PhoneNumber,
			Title:     lesson.Title,
			Body:      lesson.Body,
			MediaURL:  lesson.MediaURL,
			MediaName: lesson.MediaName,
		}
		// A deduped call still counts as issued: the lesson is on its way
		// to that learner from an earlier run.
		if _, _, err := s.enq.Enqueue(ctx, payload); err != nil {
			// Fatal: stop without advancing. The next tick retries the same
			// lesson; dedup keeps already-issued learners from double sends.
			return issued, err
		}
		issued++
	}

	advanced, err := s.schedules.AdvanceCursor(ctx, sc.ID, sc.LessonCursor)
	if err != nil {
		return issued, err
	}
	if !advanced {
		s.log.Warn().
			Str("schedule_id", sc.ID).
			Int("cursor", sc.LessonCursor).
			Msg("cursor moved by a concurrent run")
		return issued, nil
	}

	s.log.Info().
		Str("schedule_id", sc.ID).
		Str("course_id", sc.CourseID).
		Str("lesson_id", lesson.ID).
		Int("recipients", issued).
		Int("cursor", sc.LessonCursor+1).
		Msg("lesson fanned out")
	return issued, nil
}
