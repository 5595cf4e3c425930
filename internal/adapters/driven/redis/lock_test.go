package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLock_OwnerIDUnique(t *testing.T) {
	client, _ := setupTestRedis(t)

	lock1 := NewLock(client)
	lock2 := NewLock(client)

	if lock1.ownerID == "" {
		t.Error("expected non-empty owner ID")
	}
	if lock1.ownerID == lock2.ownerID {
		t.Errorf("expected unique owner IDs, got same: %s", lock1.ownerID)
	}
}

func TestLock_AcquireIsExclusive(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	writer := NewLock(client)
	other := NewLock(client)

	acquired, err := writer.Acquire(ctx, "autosave:r1", 10*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Fatal("expected to acquire lock")
	}

	for _, l := range []*Lock{writer, other} {
		acquired, err = l.Acquire(ctx, "autosave:r1", 10*time.Second)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if acquired {
			t.Errorf("owner %s acquired a held lock", l.ownerID)
		}
	}

	// Other report slots are independent
	acquired, err = other.Acquire(ctx, "autosave:r2", 10*time.Second)
	if err != nil || !acquired {
		t.Errorf("expected independent lock, got acquired=%v err=%v", acquired, err)
	}
}

func TestLock_ReleaseOnlyByOwner(t *testing.T) {
	client, _ := setupTestRedis(t)
	ctx := context.Background()

	writer := NewLock(client)
	other := NewLock(client)

	if _, err := writer.Acquire(ctx, "autosave:r1", 10*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := other.Release(ctx, "autosave:r1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if acquired, _ := other.Acquire(ctx, "autosave:r1", 10*time.Second); acquired {
		t.Error("foreign release must not free the lock")
	}

	if err := writer.Release(ctx, "autosave:r1"); err != nil {
		t.Fatalf("unexpected error on release: %v", err)
	}
	if acquired, _ := other.Acquire(ctx, "autosave:r1", 10*time.Second); !acquired {
		t.Error("expected to acquire after owner released")
	}

	// Releasing a lock nobody holds is fine
	if err := writer.Release(ctx, "never-held"); err != nil {
		t.Errorf("unexpected error releasing unheld lock: %v", err)
	}
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	crashed := NewLock(client)
	next := NewLock(client)

	if _, err := crashed.Acquire(ctx, "autosave:r1", 5*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mr.FastForward(6 * time.Second)

	acquired, err := next.Acquire(ctx, "autosave:r1", 5*time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !acquired {
		t.Error("expected expired lock to be free")
	}
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	writer := NewLock(client)
	other := NewLock(client)

	if err := writer.Extend(ctx, "autosave:r1", 10*time.Second); err == nil {
		t.Error("expected error when extending unheld lock")
	}

	if _, err := writer.Acquire(ctx, "autosave:r1", time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := other.Extend(ctx, "autosave:r1", 20*time.Second); err == nil {
		t.Error("expected error when different owner tries to extend")
	}
	if err := writer.Extend(ctx, "autosave:r1", 10*time.Second); err != nil {
		t.Fatalf("unexpected error on extend: %v", err)
	}

	mr.FastForward(5 * time.Second)
	if acquired, _ := other.Acquire(ctx, "autosave:r1", time.Second); acquired {
		t.Error("extended lock expired early")
	}
}

func TestLock_Ping(t *testing.T) {
	client, _ := setupTestRedis(t)

	if err := NewLock(client).Ping(context.Background()); err != nil {
		t.Errorf("unexpected ping error: %v", err)
	}
}
