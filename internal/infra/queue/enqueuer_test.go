package queue

import (
	"context"
	"errors"
	"testing"

	"whatsapp-course-delivery/internal/domain"
	"whatsapp-course-delivery/internal/domain/model"
)

func TestEnqueue(t *testing.T) {
	t.Run("inserts a queued job with the payload fingerprint", func(t *testing.T) {
		var captured *model.Job
		repo := &mockJobRepo{
			InsertIfAbsentFn: func(ctx context.Context, job *model.Job) (bool, error) {
				job.ID = "job-1"
				captured = job
				return true, nil
			},
		}
		enq := NewEnqueuer(repo, newTestLogger())

		accepted, jobID, err := enq.Enqueue(context.Background(), model.LessonPayload{
			CourseID: "go-101", LessonID: "l1", To: "1555",
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !accepted || jobID != "job-1" {
			t.Fatalf("accepted=%v jobID=%q", accepted, jobID)
		}
		if captured.Fingerprint != "go-101:l1:1555" {
			t.Fatalf("fingerprint = %q", captured.Fingerprint)
		}
		if captured.Category != model.CategoryLesson || captured.State != model.JobStateQueued {
			t.Fatalf("category=%s state=%s", captured.Category, captured.State)
		}
	})

	t.Run("duplicate live fingerprint is a no-op, not an error", func(t *testing.T) {
		calls := 0
		repo := &mockJobRepo{
			InsertIfAbsentFn: func(ctx context.Context, job *model.Job) (bool, error) {
				calls++
				return calls == 1, nil
			},
		}
		enq := NewEnqueuer(repo, newTestLogger())
		payload := model.LessonPayload{CourseID: "go-101", LessonID: "l1", To: "1555"}

		first, _, err := enq.Enqueue(context.Background(), payload)
		if err != nil || !first {
			t.Fatalf("first enqueue: accepted=%v err=%v", first, err)
		}
		second, _, err := enq.Enqueue(context.Background(), payload)
		if err != nil {
			t.Fatalf("second enqueue errored: %v", err)
		}
		if second {
			t.Fatal("duplicate enqueue was accepted")
		}
	})

	t.Run("invalid payload is rejected before storage", func(t *testing.T) {
		repo := &mockJobRepo{
			InsertIfAbsentFn: func(ctx context.Context, job *model.Job) (bool, error) {
				t.Fatal("insert must not be reached")
				return false, nil
			},
		}
		enq := NewEnqueuer(repo, newTestLogger())

		if _, _, err := enq.Enqueue(context.Background(), model.LessonPayload{To: "1555"}); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("err = %v, want ErrInvalidPayload", err)
		}
	})

	t.Run("nil payload is rejected", func(t *testing.T) {
		enq := NewEnqueuer(&mockJobRepo{}, newTestLogger())
		if _, _, err := enq.Enqueue(context.Background(), nil); !errors.Is(err, domain.ErrInvalidPayload) {
			t.Fatalf("err = %v, want ErrInvalidPayload", err)
		}
	})

	t.Run("storage failure propagates", func(t *testing.T) {
		boom := errors.New("connection refused")
		repo := &mockJobRepo{
			InsertIfAbsentFn: func(ctx context.Context, job *model.Job) (bool, error) {
				return false, boom
			},
		}
		enq := NewEnqueuer(repo, newTestLogger())
		if _, _, err := enq.Enqueue(context.Background(), model.AdHocPayload{To: "1555", Content: "hi"}); !errors.Is(err, boom) {
			t.Fatalf("err = %v, want wrapped %v", err, boom)
		}
	})
}

func TestHasLive(t *testing.T) {
	repo := &mockJobRepo{
		HasLiveFn: func(ctx context.Context, category model.Category, fingerprint string) (bool, error) {
			return category == model.CategoryText && fingerprint == "hi:1555", nil
		},
	}
	enq := NewEnqueuer(repo, newTestLogger())

	live, err := enq.HasLive(context.Background(), model.CategoryText, "hi:1555")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !live {
		t.Fatal("live fingerprint not reported")
	}
}
