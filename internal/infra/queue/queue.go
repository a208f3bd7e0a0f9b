package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/metrics"
	red "whatsapp-course-delivery/internal/infra/redis"
)

// RateLimiter is the admission window shared by all workers of a category.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// Policy is the per-category queue contract: admission ceiling and bounded
// retries with exponential backoff.
type Policy struct {
	RatePerSecond int
	MaxRetries    int
	BaseDelay     time.Duration
	// StaleAfter is how long an in-flight job may go without an outcome
	// before it is presumed orphaned by a crashed worker and requeued. Must
	// comfortably exceed the delivery timeout.
	StaleAfter time.Duration
}

func (p Policy) withDefaults() Policy {
	if p.RatePerSecond <= 0 {
		p.RatePerSecond = 12
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 60 * time.Second
	}
	if p.StaleAfter <= 0 {
		p.StaleAfter = 5 * time.Minute
	}
	return p
}

// Queue is one named durable queue. Take admits work under the rate limit;
// Ack and Fail report the attempt outcome back.
type Queue struct {
	category model.Category
	jobs     repository.JobRepository
	limiter  RateLimiter
	policy   Policy
	log      *zerolog.Logger
}

func New(category model.Category, jobs repository.JobRepository, limiter RateLimiter, policy Policy, logger *zerolog.Logger) *Queue {
	compLog := logger.With().Str("component", "Queue").Str("category", string(category)).Logger()
	return &Queue{
		category: category,
		jobs:     jobs,
		limiter:  limiter,
		policy:   policy.withDefaults(),
		log:      &compLog,
	}
}

func (q *Queue) Category() model.Category { return q.category }

// Take admits one job to in-flight. It first acquires a window permit (the
// ceiling of jobs admitted per second, shared across workers and instances),
// then atomically claims a due job. Returns domain.ErrRateLimited when the
// current window is full and domain.ErrNotFound when the queue is idle.
func (q *Queue) Take(ctx context.Context) (*model.Job, error) {
	ok, err := q.limiter.Allow(ctx, red.SendWindowKey(string(q.category)), q.policy.RatePerSecond, time.Second)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.IncRateDeferred(string(q.category))
		return nil, domain.ErrRateLimited
	}

	// A granted permit against an empty queue is wasted; that only underuses
	// the window, it can never exceed it.
	return q.jobs.ClaimDue(ctx, q.category, time.Now())
}

// Ack moves an in-flight job to completed.
func (q *Queue) Ack(ctx context.Context, job *model.Job) error {
	if err := q.jobs.MarkCompleted(ctx, job.ID); err != nil {
		return err
	}
	job.State = model.JobStateCompleted
	metrics.IncJobProcessed(string(q.category), string(model.JobStateCompleted))
	return nil
}

// Fail applies the bounded-retry policy. Permanent failures exhaust the job
// immediately; transient ones schedule a retry no earlier than
// baseDelay * 2^(attempts-1) after this failure, until the retry cap is hit.
// Jobs are never silently dropped before exhausting their retries.
func (q *Queue) Fail(ctx context.Context, job *model.Job, cause error) error {
	job.Attempts++
	job.LastError = cause.Error()

	if domain.IsPermanentDelivery(cause) {
		q.log.Warn().
			Str("job_id", job.ID).
			Int("attempts", job.Attempts).
			Err(cause).
			Msg("permanent failure, exhausting job")
		return q.exhaust(ctx, job)
	}

	if job.Attempts > q.policy.MaxRetries {
		q.log.Warn().
			Str("job_id", job.ID).
			Int("attempts", job.Attempts).
			Err(cause).
			Msg("retries exhausted")
		return q.exhaust(ctx, job)
	}

	delay := q.policy.BaseDelay * (1 << (job.Attempts - 1))
	nextAt := time.Now().Add(delay)
	if err := q.jobs.MarkRetryPending(ctx, job.ID, job.Attempts, nextAt, job.LastError); err != nil {
		return err
	}
	job.State = model.JobStateRetryPending
	job.ScheduledAt = nextAt

	metrics.IncRetried(string(q.category))
	metrics.IncJobProcessed(string(q.category), string(model.JobStateRetryPending))
	q.log.Info().
		Str("job_id", job.ID).
		Int("attempts", job.Attempts).
		Dur("delay", delay).
		Err(cause).
		Msg("retry scheduled")
	return nil
}

// ReclaimStale returns orphaned in-flight jobs to the queue. A worker crash
// between claim and outcome would otherwise strand the job forever, holding
// its fingerprint in the live index so the same send could never be enqueued
// again.
func (q *Queue) ReclaimStale(ctx context.Context) (int, error) {
	n, err := q.jobs.RequeueStale(ctx, q.category, time.Now().Add(-q.policy.StaleAfter))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		metrics.IncRequeuedStale(string(q.category), n)
		q.log.Warn().Int("count", n).Msg("orphaned in-flight jobs requeued")
	}
	return n, nil
}

func (q *Queue) exhaust(ctx context.Context, job *model.Job) error {
	if err := q.jobs.MarkExhausted(ctx, job.ID, job.Attempts, job.LastError); err != nil {
		return err
	}
	job.State = model.JobStateExhausted
	metrics.IncJobProcessed(string(q.category), string(model.JobStateExhausted))
	return nil
}

// ErrIdle reports whether a Take error just means "nothing to do right now".
func ErrIdle(err error) bool {
	return errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrRateLimited)
}

// String implements fmt.Stringer for log context.
func (q *Queue) String() string { return fmt.Sprintf("queue[%s]", q.category) }
