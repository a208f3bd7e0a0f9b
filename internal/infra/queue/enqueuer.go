package queue

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/metrics"
)

// Enqueuer computes a job's fingerprint and performs the idempotent
// check-and-insert against the live-job index. This is the system's primary
// duplicate-send defense.
type Enqueuer struct {
	jobs repository.JobRepository
	log  *zerolog.Logger
}

func NewEnqueuer(jobs repository.JobRepository, logger *zerolog.Logger) *Enqueuer {
	compLog := logger.With().Str("component", "Enqueuer").Logger()
	return &Enqueuer{jobs: jobs, log: &compLog}
}

// Enqueue persists one job unless a live job with the same fingerprint
// already exists in the category's queue. accepted=false means the call was
// a no-op, not a failure.
func (e *Enqueuer) Enqueue(ctx context.Context, payload model.JobPayload) (accepted bool, jobID string, err error) {
	if payload == nil {
		return false, "", domain.ErrInvalidPayload
	}
	category := payload.Category()
	if !category.Valid() {
		return false, "", domain.ErrInvalidArgument
	}

	fp, err := payload.Fingerprint()
	if err != nil {
		return false, "", err
	}
	if strings.HasPrefix(fp, "adhoc:") {
		// Random fingerprint: dedup intentionally does not apply here.
		e.log.Warn().Str("category", string(category)).Msg("ad hoc payload bypasses dedup")
	}

	job := &model.Job{
		Category:    category,
		Fingerprint: fp,
		Payload:     payload,
		State:       model.JobStateQueued,
		ScheduledAt: time.Now(),
	}

	inserted, err := e.jobs.InsertIfAbsent(ctx, job)
	if err != nil {
		return false, "", err
	}
	if !inserted {
		metrics.IncDeduped(string(category))
		e.log.Debug().
			Str("category", string(category)).
			Str("fingerprint", fp).
			Msg("duplicate enqueue dropped")
		return false, "", nil
	}

	metrics.IncEnqueued(string(category))
	e.log.Info().
		Str("category", string(category)).
		Str("fingerprint", fp).
		Str("job_id", job.ID).
		Msg("job enqueued")
	return true, job.ID, nil
}

// HasLive reports whether a live job already occupies the fingerprint.
// Callers use it to skip expensive content preparation for an enqueue that
// would dedupe anyway; the insert-time index remains the authoritative check.
func (e *Enqueuer) HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error) {
	return e.jobs.HasLive(ctx, category, fingerprint)
}
