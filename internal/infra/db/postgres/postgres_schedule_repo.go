package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

var _ repository.ScheduleRepository = (*scheduleRepo)(nil)

type scheduleRepo struct {
	pool *pgxpool.Pool
}

func NewScheduleRepo(pool *pgxpool.Pool) *scheduleRepo {
	return &scheduleRepo{pool: pool}
}

func (r *scheduleRepo) ListRunning(ctx context.Context) ([]*model.CourseSchedule, error) {
	const q = `
SELECT id, course_id, state, lesson_cursor, send_hour, created_at, updated_at
FROM course_schedules
WHERE state = 'running';`

	rows, err := pickRows(ctx, r.pool, nil, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.CourseSchedule
	for rows.Next() {
		var (
			s     model.CourseSchedule
			state string
		)
		if err := rows.Scan(&s.ID, &s.CourseID, &state, &s.LessonCursor, &s.SendHour, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		s.State = model.ScheduleState(state)
		out = append(out, &s)
	}
	return out, rows.Err()
}

// AdvanceCursor is the durable compare-and-swap: the cursor only moves when
// it still holds the value the caller fanned out from.
func (r *scheduleRepo) AdvanceCursor(ctx context.Context, scheduleID string, expected int) (bool, error) {
	const q = `
UPDATE course_schedules
SET lesson_cursor = lesson_cursor + 1, updated_at = $3
WHERE id = $1 AND lesson_cursor = $2 AND state = 'running';`
	tag, err := execSQL(ctx, r.pool, nil, q, scheduleID, expected, time.Now())
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *scheduleRepo) MarkCompleted(ctx context.Context, scheduleID string) error {
	const q = `
UPDATE course_schedules SET state = 'completed', updated_at = $2
WHERE id = $1 AND state = 'running';`
	_, err := execSQL(ctx, r.pool, nil, q, scheduleID, time.Now())
	return err
}
