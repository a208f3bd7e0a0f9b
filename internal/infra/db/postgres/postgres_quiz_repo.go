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

var _ repository.QuizContextRepository = (*quizContextRepo)(nil)

type quizContextRepo struct {
	pool *pgxpool.Pool
}

func NewQuizContextRepo(pool *pgxpool.Pool) *quizContextRepo {
	return &quizContextRepo{pool: pool}
}

func (r *quizContextRepo) FindActive(ctx context.Context, recipient, buttonID string) (*model.QuizContext, error) {
	// Button ids are scoped to the learner they were sent to; a quiz stays
	// active until its lesson window closes.
	const q = `
SELECT quiz_id, lesson_id, course_id, correct_option, question
FROM quiz_contexts
WHERE recipient = $1 AND button_id = $2 AND active;`

	row, err := pickRow(ctx, r.pool, nil, q, recipient, buttonID)
	if err != nil {
		return nil, err
	}
	var qc model.QuizContext
	err = row.Scan(&qc.QuizID, &qc.LessonID, &qc.CourseID, &qc.CorrectOption, &qc.Question)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &qc, nil
}
