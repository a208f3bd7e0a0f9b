package repository

import (
	"context"
	"time"

	"whatsapp-course-delivery/internal/domain/model"
)

// JobRepository is the durable queue store. All state transitions are single
// atomic operations: concurrent workers never both transition the same job.
type JobRepository interface {
	// InsertIfAbsent persists a new queued job unless a live job with the
	// same category and fingerprint already exists. Returns false with no
	// side effects on a fingerprint collision (idempotent enqueue).
	InsertIfAbsent(ctx context.Context, job *model.Job) (bool, error)

	// HasLive reports whether a live job already occupies the fingerprint.
	// Advisory only: the unique index at insert time remains authoritative.
	HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error)

	// ClaimDue atomically fetches one due job of the category (queued, or
	// retry_pending whose scheduledAt has passed) and marks it in_flight so
	// no other worker picks it up. Returns domain.ErrNotFound when idle.
	ClaimDue(ctx context.Context, category model.Category, now time.Time) (*model.Job, error)

	// RequeueStale returns in-flight jobs of the category whose last update
	// is older than cutoff back to queued. Crash recovery: a worker that died
	// mid-send never acked or failed its job, and the stuck row would
	// otherwise hold the fingerprint forever. Returns the number requeued.
	RequeueStale(ctx context.Context, category model.Category, cutoff time.Time) (int, error)

	// MarkCompleted moves an in-flight job to its terminal completed state.
	MarkCompleted(ctx context.Context, jobID string) error

	// MarkRetryPending schedules the next attempt.
	MarkRetryPending(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error

	// MarkExhausted moves a job to its terminal exhausted state.
	MarkExhausted(ctx context.Context, jobID string, attempts int, lastError string) error

	// CountLive returns the number of live jobs per category.
	CountLive(ctx context.Context) (map[model.Category]int, error)

	// RecentTerminal lists the most recent terminal jobs of one category and
	// outcome, newest first, for operator inspection.
	RecentTerminal(ctx context.Context, category model.Category, state model.JobState, limit int) ([]*model.Job, error)

	// SweepTerminal deletes terminal jobs updated before cutoff, always
	// keeping the most recent keep rows per category and outcome. Returns
	// the number of rows removed.
	SweepTerminal(ctx context.Context, cutoff time.Time, keep int) (int, error)
}
