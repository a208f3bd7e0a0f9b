package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

var _ repository.MessageLogRepository = (*messageLogRepo)(nil)

type messageLogRepo struct {
	pool *pgxpool.Pool
}

func NewMessageLogRepo(pool *pgxpool.Pool) *messageLogRepo {
	return &messageLogRepo{pool: pool}
}

func (r *messageLogRepo) Save(ctx context.Context, tx repository.Tx, rec *model.MessageRecord) error {
	now := time.Now()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	// The provider may redeliver inbound events; the primary key makes the
	// second insert a no-op instead of an error.
	const q = `
INSERT INTO message_log (provider_message_id, direction, category, body, status, from_addr, to_addr, course_id, lesson_id, quiz_id, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (provider_message_id) DO NOTHING;`

	_, err := execSQL(ctx, r.pool, tx, q,
		rec.ProviderMessageID, rec.Direction, rec.Category, rec.Body, rec.Status,
		rec.From, rec.To, rec.CourseID, rec.LessonID, rec.QuizID, rec.CreatedAt, rec.UpdatedAt)
	return err
}

func (r *messageLogRepo) FindByProviderID(ctx context.Context, tx repository.Tx, providerMessageID string) (*model.MessageRecord, error) {
	const q = `
SELECT provider_message_id, direction, category, body, status, from_addr, to_addr, course_id, lesson_id, quiz_id, created_at, updated_at
FROM message_log
WHERE provider_message_id = $1;`

	row, err := pickRow(ctx, r.pool, tx, q, providerMessageID)
	if err != nil {
		return nil, err
	}

	var (
		rec       model.MessageRecord
		direction string
		category  string
		status    string
	)
	err = row.Scan(
		&rec.ProviderMessageID, &direction, &category, &rec.Body, &status,
		&rec.From, &rec.To, &rec.CourseID, &rec.LessonID, &rec.QuizID,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	rec.Direction = model.Direction(direction)
	rec.Category = model.Category(category)
	rec.Status = model.MessageStatus(status)
	return &rec, nil
}

func (r *messageLogRepo) UpdateStatus(ctx context.Context, tx repository.Tx, providerMessageID string, from, to model.MessageStatus) error {
	// The guard on the stored status makes the transition a single atomic
	// compare-and-set. Concurrent events for the same message serialize here
	// instead of racing a read-check-write.
	const q = `
UPDATE message_log SET status = $3, updated_at = $4
WHERE provider_message_id = $1 AND status = $2;`
	tag, err := execSQL(ctx, r.pool, tx, q, providerMessageID, from, to, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStaleTransition
	}
	return nil
}
