package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

var _ repository.JobRepository = (*jobRepo)(nil)

// jobRepo stores delivery jobs. Dedup is enforced by a partial unique index
// over live states:
//
//	CREATE UNIQUE INDEX ux_delivery_jobs_live_fp
//	  ON delivery_jobs (category, fingerprint)
//	  WHERE state IN ('queued','in_flight','retry_pending');
type jobRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
}

func NewJobRepo(pool *pgxpool.Pool, tm repository.TransactionManager) *jobRepo {
	return &jobRepo{pool: pool, tm: tm}
}

const liveStates = `('queued','in_flight','retry_pending')`

func (r *jobRepo) InsertIfAbsent(ctx context.Context, job *model.Job) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	if job.State == "" {
		job.State = model.JobStateQueued
	}
	if job.ScheduledAt.IsZero() {
		job.ScheduledAt = now
	}

	raw, err := model.EncodePayload(job.Payload)
	if err != nil {
		return false, err
	}

	const q = `
INSERT INTO delivery_jobs (id, category, fingerprint, payload, attempts, state, scheduled_at, last_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (category, fingerprint) WHERE state IN ` + liveStates + ` DO NOTHING;`

	tag, err := execSQL(ctx, r.pool, nil, q,
		job.ID, job.Category, job.Fingerprint, raw, job.Attempts, job.State,
		job.ScheduledAt, job.LastError, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *jobRepo) HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error) {
	const q = `
SELECT EXISTS (
  SELECT 1 FROM delivery_jobs
  WHERE category = $1 AND fingerprint = $2 AND state IN ` + liveStates + `
);`
	row, err := pickRow(ctx, r.pool, nil, q, category, fingerprint)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *jobRepo) ClaimDue(ctx context.Context, category model.Category, now time.Time) (*model.Job, error) {
	var job *model.Job

	err := r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		const fetchQuery = `
SELECT id, category, fingerprint, payload, attempts, state, scheduled_at, last_error, created_at, updated_at
FROM delivery_jobs
WHERE category = $1
  AND (state = 'queued' OR (state = 'retry_pending' AND scheduled_at <= $2))
ORDER BY scheduled_at, created_at
LIMIT 1
FOR UPDATE SKIP LOCKED;`

		row, err := pickRow(ctx, r.pool, tx, fetchQuery, category, now)
		if err != nil {
			return err
		}

		fetched, err := scanJob(row)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return domain.ErrNotFound
			}
			return err
		}

		// Mark in-flight inside the same transaction so no other worker
		// can claim it.
		const markQuery = `
UPDATE delivery_jobs SET state = 'in_flight', updated_at = $2 WHERE id = $1;`
		if _, err := execSQL(ctx, r.pool, tx, markQuery, fetched.ID, time.Now()); err != nil {
			return err
		}
		fetched.State = model.JobStateInFlight

		job = fetched
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) RequeueStale(ctx context.Context, category model.Category, cutoff time.Time) (int, error) {
	// An in-flight row this old belongs to a worker that died without
	// reporting. Requeue keeps the attempt count, so the retry budget still
	// holds across the crash.
	const q = `
UPDATE delivery_jobs
SET state = 'queued', updated_at = $3
WHERE category = $1 AND state = 'in_flight' AND updated_at < $2;`
	tag, err := execSQL(ctx, r.pool, nil, q, category, cutoff, time.Now())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *jobRepo) MarkCompleted(ctx context.Context, jobID string) error {
	const q = `
UPDATE delivery_jobs SET state = 'completed', updated_at = $2
WHERE id = $1 AND state NOT IN ('completed','exhausted');`
	tag, err := execSQL(ctx, r.pool, nil, q, jobID, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalState
	}
	return nil
}

func (r *jobRepo) MarkRetryPending(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error {
	const q = `
UPDATE delivery_jobs
SET state = 'retry_pending', attempts = $2, scheduled_at = $3, last_error = $4, updated_at = $5
WHERE id = $1 AND state NOT IN ('completed','exhausted');`
	tag, err := execSQL(ctx, r.pool, nil, q, jobID, attempts, nextAt, lastError, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalState
	}
	return nil
}

func (r *jobRepo) MarkExhausted(ctx context.Context, jobID string, attempts int, lastError string) error {
	const q = `
UPDATE delivery_jobs
SET state = 'exhausted', attempts = $2, last_error = $3, updated_at = $4
WHERE id = $1 AND state NOT IN ('completed','exhausted');`
	tag, err := execSQL(ctx, r.pool, nil, q, jobID, attempts, lastError, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTerminalState
	}
	return nil
}

func (r *jobRepo) CountLive(ctx context.Context) (map[model.Category]int, error) {
	const q = `
SELECT category, COUNT(*) FROM delivery_jobs
WHERE state IN ` + liveStates + `
GROUP BY category;`
	rows, err := pickRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[model.Category]int)
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out[model.Category(cat)] = n
	}
	return out, rows.Err()
}

func (r *jobRepo) RecentTerminal(ctx context.Context, category model.Category, state model.JobState, limit int) ([]*model.Job, error) {
	const q = `
SELECT id, category, fingerprint, payload, attempts, state, scheduled_at, last_error, created_at, updated_at
FROM delivery_jobs
WHERE category = $1 AND state = $2
ORDER BY updated_at DESC
LIMIT $3;`
	rows, err := pickRows(ctx, r.pool, nil, q, category, state, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (r *jobRepo) SweepTerminal(ctx context.Context, cutoff time.Time, keep int) (int, error) {
	// Keep the newest `keep` terminal rows per (category, state) for operator
	// inspection regardless of age.
	const q = `
DELETE FROM delivery_jobs
WHERE id IN (
  SELECT id FROM (
    SELECT id, updated_at,
           ROW_NUMBER() OVER (PARTITION BY category, state ORDER BY updated_at DESC) AS rn
    FROM delivery_jobs
    WHERE state IN ('completed','exhausted')
  ) ranked
  WHERE ranked.rn > $2 AND ranked.updated_at < $1
);`
	tag, err := execSQL(ctx, r.pool, nil, q, cutoff, keep)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(row rowScanner) (*model.Job, error) {
	var (
		job      model.Job
		category string
		state    string
		raw      []byte
	)
	err := row.Scan(
		&job.ID, &category, &job.Fingerprint, &raw, &job.Attempts, &state,
		&job.ScheduledAt, &job.LastError, &job.CreatedAt, &job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	job.Category = model.Category(category)
	job.State = model.JobState(state)

	payload, err := model.DecodePayload(job.Category, raw)
	if err != nil {
		return nil, err
	}
	job.Payload = payload
	return &job, nil
}
