package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
)

// Hand-rolled mocks with overridable func fields, so each test swaps in only
// the behavior it cares about.

type mockJobRepo struct {
	InsertIfAbsentFn   func(ctx context.Context, job *model.Job) (bool, error)
	HasLiveFn          func(ctx context.Context, category model.Category, fingerprint string) (bool, error)
	ClaimDueFn         func(ctx context.Context, category model.Category, now time.Time) (*model.Job, error)
	RequeueStaleFn     func(ctx context.Context, category model.Category, cutoff time.Time) (int, error)
	MarkCompletedFn    func(ctx context.Context, jobID string) error
	MarkRetryPendingFn func(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error
	MarkExhaustedFn    func(ctx context.Context, jobID string, attempts int, lastError string) error
	CountLiveFn        func(ctx context.Context) (map[model.Category]int, error)
	RecentTerminalFn   func(ctx context.Context, category model.Category, state model.JobState, limit int) ([]*model.Job, error)
	SweepTerminalFn    func(ctx context.Context, cutoff time.Time, keep int) (int, error)
}

func (m *mockJobRepo) InsertIfAbsent(ctx context.Context, job *model.Job) (bool, error) {
	if m.InsertIfAbsentFn != nil {
		return m.InsertIfAbsentFn(ctx, job)
	}
	return true, nil
}

func (m *mockJobRepo) HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error) {
	if m.HasLiveFn != nil {
		return m.HasLiveFn(ctx, category, fingerprint)
	}
	return false, nil
}

func (m *mockJobRepo) ClaimDue(ctx context.Context, category model.Category, now time.Time) (*model.Job, error) {
	if m.ClaimDueFn != nil {
		return m.ClaimDueFn(ctx, category, now)
	}
	return nil, domain.ErrNotFound
}

func (m *mockJobRepo) RequeueStale(ctx context.Context, category model.Category, cutoff time.Time) (int, error) {
	if m.RequeueStaleFn != nil {
		return m.RequeueStaleFn(ctx, category, cutoff)
	}
	return 0, nil
}

func (m *mockJobRepo) MarkCompleted(ctx context.Context, jobID string) error {
	if m.MarkCompletedFn != nil {
		return m.MarkCompletedFn(ctx, jobID)
	}
	return nil
}

func (m *mockJobRepo) MarkRetryPending(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error {
	if m.MarkRetryPendingFn != nil {
		return m.MarkRetryPendingFn(ctx, jobID, attempts, nextAt, lastError)
	}
	return nil
}

func (m *mockJobRepo) MarkExhausted(ctx context.Context, jobID string, attempts int, lastError string) error {
	if m.MarkExhaustedFn != nil {
		return m.MarkExhaustedFn(ctx, jobID, attempts, lastError)
	}
	return nil
}

func (m *mockJobRepo) CountLive(ctx context.Context) (map[model.Category]int, error) {
	if m.CountLiveFn != nil {
		return m.CountLiveFn(ctx)
	}
	return map[model.Category]int{}, nil
}

func (m *mockJobRepo) RecentTerminal(ctx context.Context, category model.Category, state model.JobState, limit int) ([]*model.Job, error) {
	if m.RecentTerminalFn != nil {
		return m.RecentTerminalFn(ctx, category, state, limit)
	}
	return nil, nil
}

func (m *mockJobRepo) SweepTerminal(ctx context.Context, cutoff time.Time, keep int) (int, error) {
	if m.SweepTerminalFn != nil {
		return m.SweepTerminalFn(ctx, cutoff, keep)
	}
	return 0, nil
}

type mockLimiter struct {
	AllowFn func(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func (m *mockLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if m.AllowFn != nil {
		return m.AllowFn(ctx, key, limit, window)
	}
	return true, nil
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
