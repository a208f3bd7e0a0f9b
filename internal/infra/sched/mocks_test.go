package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
)

type mockScheduleRepo struct {
	ListRunningFn   func(ctx context.Context) ([]*model.CourseSchedule, error)
	AdvanceCursorFn func(ctx context.Context, scheduleID string, expected int) (bool, error)
	MarkCompletedFn func(ctx context.Context, scheduleID string) error
}

func (m *mockScheduleRepo) ListRunning(ctx context.Context) ([]*model.CourseSchedule, error) {
	if m.ListRunningFn != nil {
		return m.ListRunningFn(ctx)
	}
	return nil, nil
}

func (m *mockScheduleRepo) AdvanceCursor(ctx context.Context, scheduleID string, expected int) (bool, error) {
	if m.AdvanceCursorFn != nil {
		return m.AdvanceCursorFn(ctx, scheduleID, expected)
	}
	return true, nil
}

func (m *mockScheduleRepo) MarkCompleted(ctx context.Context, scheduleID string) error {
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, scheduleID)
	}
	return nil
}

type mockCatalog struct {
	TotalLessonsFn     func(ctx context.Context, courseID string) (int, error)
	LessonAtFn         func(ctx context.Context, courseID string, index int) (*model.Lesson, error)
	EnrolledLearnersFn func(ctx context.Context, courseID string) ([]*model.Learner, error)
}

func (m *mockCatalog) TotalLessons(ctx context.Context, courseID string) (int, error) {
	if m.TotalLessonsFn != nil {
		return m.TotalLessonsFn(ctx, courseID)
	}
	return 0, nil
}

func (m *mockCatalog) LessonAt(ctx context.Context, courseID string, index int) (*model.Lesson, error) {
	if m.LessonAtFn != nil {
		return m.LessonAtFn(ctx, courseID, index)
	}
	return nil, domain.ErrNotFound
}

func (m *mockCatalog) EnrolledLearners(ctx context.Context, courseID string) ([]*model.Learner, error) {
	if m.EnrolledLearnersFn != nil {
		return m.EnrolledLearnersFn(ctx, courseID)
	}
	return nil, nil
}

type mockEnqueuer struct {
	EnqueueFn func(ctx context.Context, payload model.JobPayload) (bool, string, error)
	calls     []model.JobPayload
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, payload model.JobPayload) (bool, string, error) {
	m.calls = append(m.calls, payload)
	if m.EnqueueFn != nil {
		return m.EnqueueFn(ctx, payload)
	}
	return true, "job-id", nil
}

type mockLocker struct {
	TryLockFn func(ctx context.Context, key string, ttl time.Duration) (string, error)
	unlocked  []string
}

func (m *mockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if m.TryLockFn != nil {
		return m.TryLockFn(ctx, key, ttl)
	}
	return "token", nil
}

func (m *mockLocker) Unlock(ctx context.Context, key, token string) error {
	m.unlocked = append(m.unlocked, key)
	return nil
}

type mockJobRepoSweep struct {
	SweepTerminalFn func(ctx context.Context, cutoff time.Time, keep int) (int, error)
}

func (m *mockJobRepoSweep) InsertIfAbsent(ctx context.Context, job *model.Job) (bool, error) {
	return true, nil
}
func (m *mockJobRepoSweep) HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error) {
	return false, nil
}
func (m *mockJobRepoSweep) ClaimDue(ctx context.Context, category model.Category, now time.Time) (*model.Job, error) {
	return nil, domain.ErrNotFound
}
func (m *mockJobRepoSweep) RequeueStale(ctx context.Context, category model.Category, cutoff time.Time) (int, error) {
	return 0, nil
}
func (m *mockJobRepoSweep) MarkCompleted(ctx context.Context, jobID string) error { return nil }
func (m *mockJobRepoSweep) MarkRetryPending(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error {
	return nil
}
func (m *mockJobRepoSweep) MarkExhausted(ctx context.Context, jobID string, attempts int, lastError string) error {
	return nil
}
func (m *mockJobRepoSweep) CountLive(ctx context.Context) (map[model.Category]int, error) {
	return nil, nil
}
func (m *mockJobRepoSweep) RecentTerminal(ctx context.Context, category model.Category, state model.JobState, limit int) ([]*model.Job, error) {
	return nil, nil
}
func (m *mockJobRepoSweep) SweepTerminal(ctx context.Context, cutoff time.Time, keep int) (int, error) {
	if m.SweepTerminalFn != nil {
		return m.SweepTerminalFn(ctx, cutoff, keep)
	}
	return 0, nil
}

type mockCredStore struct {
	DeleteExpiredFn func(ctx context.Context) (int, error)
}

func (m *mockCredStore) Active(ctx context.Context) (*model.ProviderCredential, error) {
	return nil, domain.ErrNotFound
}

func (m *mockCredStore) DeleteExpired(ctx context.Context) (int, error) {
	if m.DeleteExpiredFn != nil {
		return m.DeleteExpiredFn(ctx)
	}
	return 0, nil
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
