package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/adapter"
	"whatsapp-course-delivery/internal/domain/ports/repository"
)

type mockJobRepo struct {
	ClaimDueFn         func(ctx context.Context, category model.Category, now time.Time) (*model.Job, error)
	MarkCompletedFn    func(ctx context.Context, jobID string) error
	MarkRetryPendingFn func(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error
	MarkExhaustedFn    func(ctx context.Context, jobID string, attempts int, lastError string) error
}

func (m *mockJobRepo) InsertIfAbsent(ctx context.Context, job *model.Job) (bool, error) {
	return true, nil
}

func (m *mockJobRepo) HasLive(ctx context.Context, category model.Category, fingerprint string) (bool, error) {
	return false, nil
}

func (m *mockJobRepo) RequeueStale(ctx context.Context, category model.Category, cutoff time.Time) (int, error) {
	return 0, nil
}

func (m *mockJobRepo) ClaimDue(ctx context.Context, category model.Category, now time.Time) (*model.Job, error) {
	if m.ClaimDueFn != nil {
		return m.ClaimDueFn(ctx, category, now)
	}
	return nil, domain.ErrNotFound
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
	return map[model.Category]int{}, nil
}

func (m *mockJobRepo) RecentTerminal(ctx context.Context, category model.Category, state model.JobState, limit int) ([]*model.Job, error) {
	return nil, nil
}

func (m *mockJobRepo) SweepTerminal(ctx context.Context, cutoff time.Time, keep int) (int, error) {
	return 0, nil
}

type allowAll struct{}

func (allowAll) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return true, nil
}

type mockDelivery struct {
	SendFn func(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error)
}

func (m *mockDelivery) Send(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
	if m.SendFn != nil {
		return m.SendFn(ctx, p)
	}
	return adapter.SendResult{ProviderMessageID: "wamid.test"}, nil
}

type mockMsgLog struct {
	SaveFn func(ctx context.Context, tx repository.Tx, rec *model.MessageRecord) error
}

func (m *mockMsgLog) Save(ctx context.Context, tx repository.Tx, rec *model.MessageRecord) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, tx, rec)
	}
	return nil
}

func (m *mockMsgLog) FindByProviderID(ctx context.Context, tx repository.Tx, providerMessageID string) (*model.MessageRecord, error) {
	return nil, domain.ErrNotFound
}

func (m *mockMsgLog) UpdateStatus(ctx context.Context, tx repository.Tx, providerMessageID string, from, to model.MessageStatus) error {
	return nil
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}
