package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

var _ repository.CourseCatalog = (*catalogRepo)(nil)

// catalogRepo is the read-only window into course content. Authoring and
// enrollment management live in a different system; the pipeline only reads.
type catalogRepo struct {
	pool *pgxpool.Pool
}

func NewCatalogRepo(pool *pgxpool.Pool) *catalogRepo {
	return &catalogRepo{pool: pool}
}

func (r *catalogRepo) TotalLessons(ctx context.Context, courseID string) (int, error) {
	const q = `SELECT COUNT(*) FROM lessons WHERE course_id = $1;`
	row, err := pickRow(ctx, r.pool, nil, q, courseID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *catalogRepo) LessonAt(ctx context.Context, courseID string, index int) (*model.Lesson, error) {
	const q = `
SELECT id, course_id, idx, title, body, media_url, media_name
FROM lessons
WHERE course_id = $1 AND idx = $2;`
	row, err := pickRow(ctx, r.pool, nil, q, courseID, index)
	if err != nil {
		return nil, err
	}
	var l model.Lesson
	err = row.Scan(&l.ID, &l.CourseID, &l.Index, &l.Title, &l.Body, &l.MediaURL, &l.MediaName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &l, nil
}

func (r *catalogRepo) EnrolledLearners(ctx context.Context, courseID string) ([]*model.Learner, error) {
	const q = `
SELECT l.id, l.display_name, l.phone_number
FROM learners l
JOIN enrollments e ON e.learner_id = l.id
WHERE e.course_id = $1;`
	rows, err := pickRows(ctx, r.pool, nil, q, courseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.Learner
	for rows.Next() {
		var l model.Learner
		if err := rows.Scan(&l.ID, &l.DisplayName, &l.PhoneNumber); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &l)
	}
	return out, rows.Err()
}
