package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
	"whatsapp-course-delivery/internal/domain/ports/adapter"
	"whatsapp-course-delivery/internal/domain/ports/repository"
	"whatsapp-course-delivery/internal/infra/queue"
)

func newProcessor(repo *mockJobRepo, delivery *mockDelivery, msgLog *mockMsgLog) *DeliveryProcessor {
	q := queue.New(model.CategoryLesson, repo, allowAll{}, queue.Policy{}, newTestLogger())
	return NewDeliveryProcessor(q, delivery, msgLog, time.Second, time.Millisecond, newTestLogger())
}

func claimOnce(job *model.Job) func(ctx context.Context, category model.Category, now time.Time) (*model.Job, error) {
	claimed := false
	return func(ctx context.Context, category model.Category, now time.Time) (*model.Job, error) {
		if claimed {
			return nil, domain.ErrNotFound
		}
		claimed = true
		return job, nil
	}
}

func TestProcessOne(t *testing.T) {
	t.Run("successful send acks and records the message", func(t *testing.T) {
		job := &model.Job{
			ID:       "job-1",
			Category: model.CategoryLesson,
			State:    model.JobStateInFlight,
			Payload: model.LessonPayload{
				CourseID: "go-101", LessonID: "l1", To: "1555",
				Title: "Slices", Body: "Lesson body", MediaURL: "https://cdn/l1.pdf", MediaName: "l1.pdf",
			},
		}
		completed := ""
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkCompletedFn: func(ctx context.Context, jobID string) error {
				completed = jobID
				return nil
			},
		}
		var sent adapter.SendParams
		delivery := &mockDelivery{
			SendFn: func(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
				sent = p
				return adapter.SendResult{ProviderMessageID: "wamid.42"}, nil
			},
		}
		var saved *model.MessageRecord
		msgLog := &mockMsgLog{
			SaveFn: func(ctx context.Context, tx repository.Tx, rec *model.MessageRecord) error {
				saved = rec
				return nil
			},
		}

		p := newProcessor(repo, delivery, msgLog)
		p.ProcessOne(context.Background())

		if completed != "job-1" {
			t.Fatalf("completed = %q", completed)
		}
		if sent.To != "1555" || sent.DocumentURL != "https://cdn/l1.pdf" {
			t.Fatalf("send params = %+v", sent)
		}
		if sent.Text != "*Slices*\n\nLesson body" {
			t.Fatalf("text = %q", sent.Text)
		}
		if saved == nil {
			t.Fatal("no message record saved")
		}
		if saved.ProviderMessageID != "wamid.42" || saved.Status != model.StatusSent {
			t.Fatalf("record = %+v", saved)
		}
		if saved.Direction != model.DirectionOutgoing || saved.CourseID != "go-101" || saved.LessonID != "l1" {
			t.Fatalf("record context = %+v", saved)
		}
	})

	t.Run("transient failure schedules a retry", func(t *testing.T) {
		job := &model.Job{ID: "job-2", Category: model.CategoryLesson, State: model.JobStateInFlight,
			Payload: model.LessonPayload{CourseID: "c", LessonID: "l", To: "1555", Body: "b"}}
		retried := false
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkRetryPendingFn: func(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error {
				retried = true
				if attempts != 1 {
					t.Fatalf("attempts = %d", attempts)
				}
				return nil
			},
		}
		delivery := &mockDelivery{
			SendFn: func(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
				return adapter.SendResult{}, domain.NewTransientDeliveryError(errors.New("http 503"))
			},
		}

		p := newProcessor(repo, delivery, &mockMsgLog{})
		p.ProcessOne(context.Background())

		if !retried {
			t.Fatal("transient failure did not schedule a retry")
		}
	})

	t.Run("permanent failure exhausts without retry", func(t *testing.T) {
		job := &model.Job{ID: "job-3", Category: model.CategoryLesson, State: model.JobStateInFlight,
			Payload: model.LessonPayload{CourseID: "c", LessonID: "l", To: "1555", Body: "b"}}
		exhausted := false
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkRetryPendingFn: func(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error {
				t.Fatal("permanent failure must not retry")
				return nil
			},
			MarkExhaustedFn: func(ctx context.Context, jobID string, attempts int, lastError string) error {
				exhausted = true
				return nil
			},
		}
		delivery := &mockDelivery{
			SendFn: func(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
				return adapter.SendResult{}, domain.NewPermanentDeliveryError(errors.New("http 400"))
			},
		}

		p := newProcessor(repo, delivery, &mockMsgLog{})
		p.ProcessOne(context.Background())

		if !exhausted {
			t.Fatal("permanent failure did not exhaust the job")
		}
	})

	t.Run("send timeout counts as transient", func(t *testing.T) {
		job := &model.Job{ID: "job-4", Category: model.CategoryLesson, State: model.JobStateInFlight,
			Payload: model.LessonPayload{CourseID: "c", LessonID: "l", To: "1555", Body: "b"}}
		retried := false
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkRetryPendingFn: func(ctx context.Context, jobID string, attempts int, nextAt time.Time, lastError string) error {
				retried = true
				return nil
			},
		}
		delivery := &mockDelivery{
			SendFn: func(ctx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
				<-ctx.Done()
				return adapter.SendResult{}, ctx.Err()
			},
		}

		q := queue.New(model.CategoryLesson, repo, allowAll{}, queue.Policy{}, newTestLogger())
		p := NewDeliveryProcessor(q, delivery, &mockMsgLog{}, 10*time.Millisecond, time.Millisecond, newTestLogger())
		p.ProcessOne(context.Background())

		if !retried {
			t.Fatal("timeout did not schedule a retry")
		}
	})

	t.Run("message record lands before the ack", func(t *testing.T) {
		job := &model.Job{ID: "job-5", Category: model.CategoryLesson, State: model.JobStateInFlight,
			Payload: model.LessonPayload{CourseID: "c", LessonID: "l", To: "1555", Body: "b"}}
		var order []string
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkCompletedFn: func(ctx context.Context, jobID string) error {
				order = append(order, "ack")
				return nil
			},
		}
		msgLog := &mockMsgLog{
			SaveFn: func(ctx context.Context, tx repository.Tx, rec *model.MessageRecord) error {
				order = append(order, "save")
				return nil
			},
		}

		p := newProcessor(repo, &mockDelivery{}, msgLog)
		p.ProcessOne(context.Background())

		if len(order) != 2 || order[0] != "save" || order[1] != "ack" {
			t.Fatalf("order = %v, want the record written first", order)
		}
	})

	t.Run("transient record write failure is retried", func(t *testing.T) {
		job := &model.Job{ID: "job-6", Category: model.CategoryLesson, State: model.JobStateInFlight,
			Payload: model.LessonPayload{CourseID: "c", LessonID: "l", To: "1555", Body: "b"}}
		completed := false
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkCompletedFn: func(ctx context.Context, jobID string) error {
				completed = true
				return nil
			},
		}
		saves := 0
		msgLog := &mockMsgLog{
			SaveFn: func(ctx context.Context, tx repository.Tx, rec *model.MessageRecord) error {
				saves++
				if saves < 3 {
					return errors.New("connection reset")
				}
				return nil
			},
		}

		p := newProcessor(repo, &mockDelivery{}, msgLog)
		p.ProcessOne(context.Background())

		if saves != 3 {
			t.Fatalf("saves = %d, want the write retried to success", saves)
		}
		if !completed {
			t.Fatal("job was not acked after the record landed")
		}
	})

	t.Run("outcome write survives worker shutdown", func(t *testing.T) {
		job := &model.Job{ID: "job-7", Category: model.CategoryLesson, State: model.JobStateInFlight,
			Payload: model.LessonPayload{CourseID: "c", LessonID: "l", To: "1555", Body: "b"}}
		completed := false
		repo := &mockJobRepo{
			ClaimDueFn: claimOnce(job),
			MarkCompletedFn: func(ctx context.Context, jobID string) error {
				if ctx.Err() != nil {
					t.Fatalf("ack context already dead: %v", ctx.Err())
				}
				completed = true
				return nil
			},
		}
		ctx, cancel := context.WithCancel(context.Background())
		delivery := &mockDelivery{
			SendFn: func(sendCtx context.Context, p adapter.SendParams) (adapter.SendResult, error) {
				// Shutdown races the in-flight send.
				cancel()
				return adapter.SendResult{ProviderMessageID: "wamid.7"}, nil
			},
		}

		p := newProcessor(repo, delivery, &mockMsgLog{})
		p.ProcessOne(ctx)

		if !completed {
			t.Fatal("delivered job was left in flight after shutdown")
		}
	})

	t.Run("idle queue is a quiet no-op", func(t *testing.T) {
		p := newProcessor(&mockJobRepo{}, &mockDelivery{}, &mockMsgLog{})
		p.ProcessOne(context.Background()) // must not panic or mark anything
	})
}

func TestBuildSend(t *testing.T) {
	t.Run("reminder without text uses the default nudge", func(t *testing.T) {
		params, err := buildSend(model.ReminderPayload{CourseID: "c", LessonID: "l", To: "1555"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.Text == "" {
			t.Fatal("empty reminder text")
		}
	})

	t.Run("welcome greets by display name", func(t *testing.T) {
		params, err := buildSend(model.WelcomePayload{DisplayName: "Ada", To: "1555"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if params.To != "1555" || params.Text == "" {
			t.Fatalf("params = %+v", params)
		}
	})

	t.Run("unknown payload type is invalid", func(t *testing.T) {
		if _, err := buildSend(nil); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("err = %v, want ErrInvalidPayload", err)
		}
	})
}

func TestPoolSubmit(t *testing.T) {
	t.Run("runs submitted tasks", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := NewPool(2, newTestLogger())
		p.Start(ctx)
		defer p.Stop()

		done := make(chan struct{})
		if err := p.Submit(func(ctx context.Context) error {
			close(done)
			return nil
		}); err != nil {
			t.Fatalf("submit: %v", err)
		}
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("task never ran")
		}
	})

	t.Run("saturated pool drops instead of blocking", func(t *testing.T) {
		// Never started: the buffered channel fills and Submit must not block.
		p := NewPool(1, newTestLogger())
		var err error
		for i := 0; i < 10; i++ {
			err = p.Submit(func(ctx context.Context) error { return nil })
			if err != nil {
				break
			}
		}
		if !errors.Is(err, ErrPoolSaturated) {
			t.Fatalf("err = %v, want ErrPoolSaturated", err)
		}
	})
}
