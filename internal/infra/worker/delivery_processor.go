package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/adapter"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/metrics"
	"whatsapp-course-delivery/internal/infra/queue"
)

// DeliveryProcessor drains one category queue: claim a job, perform the
// provider send bounded by a fixed timeout, then ack or fail with the error
// classification. On success the outbound message is recorded in the log
// under the provider-assigned id.
type DeliveryProcessor struct {
	queue       *queue.Queue
	delivery    adapter.DeliveryClient
	msgLog      repository.MessageLogRepository
	sendTimeout time.Duration
	poll        time.Duration
	log         *zerolog.Logger
}

func NewDeliveryProcessor(
	q *queue.Queue,
	delivery adapter.DeliveryClient,
	msgLog repository.MessageLogRepository,
	sendTimeout time.Duration,
	pollInterval time.Duration,
	logger *zerolog.Logger,
) *DeliveryProcessor {
	if sendTimeout <= 0 {
		sendTimeout = 60 * time.Second
	}
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	compLog := logger.With().
		Str("component", "DeliveryProcessor").
		Str("category", string(q.Category())).
		Logger()
	return &DeliveryProcessor{
		queue:       q,
		delivery:    delivery,
		msgLog:      msgLog,
		sendTimeout: sendTimeout,
		poll:        pollInterval,
		log:         &compLog,
	}
}

// reclaimInterval paces the sweep for in-flight jobs orphaned by a crashed
// worker. The staleness threshold itself lives in the queue policy.
const reclaimInterval = time.Minute

// Start runs a loop that feeds the pool. This should be run in a goroutine.
func (p *DeliveryProcessor) Start(ctx context.Context, pool *Pool) {
	p.log.Info().Msg("delivery processor started")
	ticker := time.NewTicker(p.poll)
	defer ticker.Stop()
	reclaim := time.NewTicker(reclaimInterval)
	defer reclaim.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info().Msg("delivery processor stopping")
			return
		case <-ticker.C:
			_ = pool.Submit(func(ctx context.Context) error {
				p.ProcessOne(ctx)
				return nil
			})
		case <-reclaim.C:
			if _, err := p.queue.ReclaimStale(ctx); err != nil {
				p.log.Error().Err(err).Msg("stale reclaim failed")
			}
		}
	}
}

// ProcessOne performs a single take/deliver/report cycle.
func (p *DeliveryProcessor) ProcessOne(ctx context.Context) {
	job, err := p.queue.Take(ctx)
	if err != nil {
		if !queue.ErrIdle(err) {
			p.log.Error().Err(err).Msg("take failed")
		}
		return
	}

	params, err := buildSend(job.Payload)
	if err != nil {
		// The payload cannot produce a provider message; retrying cannot fix it.
		failCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_ = p.queue.Fail(failCtx, job, domain.NewPermanentDeliveryError(err))
		cancel()
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, p.sendTimeout)
	start := time.Now()
	res, err := p.delivery.Send(sendCtx, params)
	cancel()
	latency := time.Since(start)

	// Outcome writes get their own context. A shutdown mid-send cancels the
	// worker context; losing the Ack/Fail there would strand the job in
	// in_flight until the stale reclaim picks it up.
	reportCtx, reportCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer reportCancel()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = domain.NewTransientDeliveryError(err)
		}
		metrics.ObserveDelivery(string(job.Category), int(latency/time.Millisecond), false)
		p.log.Error().
			Str("job_id", job.ID).
			Int("attempts", job.Attempts+1).
			Err(err).
			Msg("delivery failed")
		if failErr := p.queue.Fail(reportCtx, job, err); failErr != nil {
			p.log.Error().Str("job_id", job.ID).Err(failErr).Msg("could not record failure")
		}
		return
	}

	metrics.ObserveDelivery(string(job.Category), int(latency/time.Millisecond), true)

	// Log the send before acking. The message is already out; losing its
	// record would turn every later provider status event for it into a
	// reconciliation miss, so a transient write failure is worth retrying.
	rec := recordFor(job, params, res.ProviderMessageID)
	var saveErr error
	for attempt := 0; attempt < 3; attempt++ {
		if saveErr = p.msgLog.Save(reportCtx, nil, rec); saveErr == nil {
			break
		}
		time.Sleep(time.Duration(attempt+1) * 50 * time.Millisecond)
	}
	if saveErr != nil {
		p.log.Error().
			Str("job_id", job.ID).
			Str("provider_message_id", res.ProviderMessageID).
			Err(saveErr).
			Msg("could not record outbound message")
	}

	if err := p.queue.Ack(reportCtx, job); err != nil {
		p.log.Error().Str("job_id", job.ID).Err(err).Msg("could not ack job")
		return
	}

	p.log.Info().
		Str("job_id", job.ID).
		Str("provider_message_id", res.ProviderMessageID).
		Dur("duration", latency).
		Msg("job delivered")
}

// buildSend renders the category-specific provider content from the typed
// payload.
func buildSend(payload model.JobPayload) (adapter.SendParams, error) {
	switch v := payload.(type) {
	case model.LessonPayload:
		text := v.Body
		if v.Title != "" {
			text = fmt.Sprintf("*%s*\n\n%s", v.Title, v.Body)
		}
		return adapter.SendParams{
			To:           v.To,
			Text:         text,
			DocumentURL:  v.MediaURL,
			DocumentName: v.MediaName,
		}, nil
	case model.ReminderPayload:
		text := v.Text
		if text == "" {
			text = "You have a lesson waiting for you. Jump back in whenever you're ready!"
		}
		return adapter.SendParams{To: v.To, Text: text}, nil
	case model.NotificationPayload:
		return adapter.SendParams{To: v.To, Text: v.Text}, nil
	case model.WelcomePayload:
		return adapter.SendParams{
			To:   v.To,
			Text: fmt.Sprintf("Welcome, %s! Your course is ready. Lessons will arrive right here.", v.DisplayName),
		}, nil
	case model.TextPayload:
		return adapter.SendParams{To: v.To, Text: v.Content}, nil
	case model.AdHocPayload:
		return adapter.SendParams{To: v.To, Text: v.Content}, nil
	default:
		return adapter.SendParams{}, domain.ErrInvalidPayload
	}
}

func recordFor(job *model.Job, params adapter.SendParams, providerMessageID string) *model.MessageRecord {
	rec := &model.MessageRecord{
		ProviderMessageID: providerMessageID,
		Direction:         model.DirectionOutgoing,
		Category:          job.Category,
		Body:              params.Text,
		Status:            model.StatusSent,
		To:                params.To,
	}
	switch v := job.Payload.(type) {
	case model.LessonPayload:
		rec.CourseID = v.CourseID
		rec.LessonID = v.LessonID
	case model.ReminderPayload:
		rec.CourseID = v.CourseID
		rec.LessonID = v.LessonID
	case model.NotificationPayload:
		rec.CourseID = v.CourseID
	case model.WelcomePayload:
		rec.CourseID = v.CourseID
	case model.TextPayload:
		rec.QuizID = v.QuizID
		rec.LessonID = v.LessonID
	}
	return rec
}
