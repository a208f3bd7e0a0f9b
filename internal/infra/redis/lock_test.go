package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsapp-course-delivery/internal/domain"
)

func TestRedisLocker(t *testing.T) {
	t.Run("second acquisition fails while held", func(t *testing.T) {
		client, _ := newTestClient(t)
		locker := NewLocker(client)
		key := ScheduleRunKey("sched-1")

		token, err := locker.TryLock(context.Background(), key, time.Minute)
		if err != nil {
			t.Fatalf("first lock: %v", err)
		}
		if token == "" {
			t.Fatal("empty token")
		}

		if _, err := locker.TryLock(context.Background(), key, time.Minute); !errors.Is(err, domain.ErrLockHeld) {
			t.Fatalf("err = %v, want ErrLockHeld", err)
		}
	})

	t.Run("unlock releases for the next holder", func(t *testing.T) {
		client, _ := newTestClient(t)
		locker := NewLocker(client)
		key := ScheduleRunKey("sched-2")

		token, err := locker.TryLock(context.Background(), key, time.Minute)
		if err != nil {
			t.Fatalf("lock: %v", err)
		}
		if err := locker.Unlock(context.Background(), key, token); err != nil {
			t.Fatalf("unlock: %v", err)
		}
		if _, err := locker.TryLock(context.Background(), key, time.Minute); err != nil {
			t.Fatalf("relock after unlock: %v", err)
		}
	})

	t.Run("unlock with a stale token keeps the lock", func(t *testing.T) {
		client, _ := newTestClient(t)
		locker := NewLocker(client)
		key := ScheduleRunKey("sched-3")

		if _, err := locker.TryLock(context.Background(), key, time.Minute); err != nil {
			t.Fatalf("lock: %v", err)
		}
		if err := locker.Unlock(context.Background(), key, "not-the-token"); err != nil {
			t.Fatalf("unlock: %v", err)
		}
		if _, err := locker.TryLock(context.Background(), key, time.Minute); !errors.Is(err, domain.ErrLockHeld) {
			t.Fatalf("err = %v, want ErrLockHeld", err)
		}
	})

	t.Run("ttl expiry frees a crashed holder's lock", func(t *testing.T) {
		client, mr := newTestClient(t)
		locker := NewLocker(client)
		key := ScheduleRunKey("sched-4")

		if _, err := locker.TryLock(context.Background(), key, time.Second); err != nil {
			t.Fatalf("lock: %v", err)
		}
		mr.FastForward(2 * time.Second)
		if _, err := locker.TryLock(context.Background(), key, time.Second); err != nil {
			t.Fatalf("lock after expiry: %v", err)
		}
	})
}
