package repository

import (
	"context"

	"whatsapp-course-delivery/internal/domain/model"
)

// ScheduleRepository owns the per-course lesson cursor. Cursor advancement
// is a durable compare-and-swap so concurrent scheduler instances cannot
// double-fire a lesson.
type ScheduleRepository interface {
	ListRunning(ctx context.Context) ([]*model.CourseSchedule, error)
	// AdvanceCursor moves the cursor from expected to expected+1. Returns
	// false when the stored cursor no longer matches (a concurrent run won).
	AdvanceCursor(ctx context.Context, scheduleID string, expected int) (bool, error)
	MarkCompleted(ctx context.Context, scheduleID string) error
}

// CourseCatalog is the narrow read-only view of course content the scheduler
// needs. Course and enrollment CRUD stays outside this system.
type CourseCatalog interface {
	TotalLessons(ctx context.Context, courseID string) (int, error)
	LessonAt(ctx context.Context, courseID string, index int) (*model.Lesson, error)
	EnrolledLearners(ctx context.Context, courseID string) ([]*model.Learner, error)
}

// QuizContextRepository resolves a quick-reply button id to its quiz.
type QuizContextRepository interface {
	// FindActive returns the quiz context a button reply belongs to, or
	// domain.ErrNotFound when the reply references nothing we know about.
	FindActive(ctx context.Context, recipient, buttonID string) (*model.QuizContext, error)
}

// CredentialStore holds rotated provider credentials (auxiliary records).
type CredentialStore interface {
	Active(ctx context.Context) (*model.ProviderCredential, error)
	// DeleteExpired removes expired and blacklisted credentials and returns
	// the number of rows removed.
	DeleteExpired(ctx context.Context) (int, error)
}
