package lock

import (
	"context"
	"testing"
	"time"
)

func TestMemoryLocker_AcquireReleaseReacquire(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	token, err := l.Acquire(ctx, "sess:flow", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if token == "" {
		t.Fatal("expected first acquire to succeed")
	}

	second, err := l.Acquire(ctx, "sess:flow", time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if second != "" {
		t.Fatal("expected second acquire to fail while held")
	}

	if err := l.Release(ctx, "sess:flow", token); err != nil {
		t.Fatalf("Release: %v", err)
	}

	token, _ = l.Acquire(ctx, "sess:flow", time.Second)
	if token == "" {
		t.Fatal("expected acquire to succeed after release")
	}
}

func TestMemoryLocker_TTLExpiry(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	token, _ := l.Acquire(ctx, "k", 10*time.Millisecond)
	if token == "" {
		t.Fatal("expected acquire to succeed")
	}

	time.Sleep(20 * time.Millisecond)

	token, _ = l.Acquire(ctx, "k", time.Second)
	if token == "" {
		t.Fatal("expected acquire to succeed after TTL expiry")
	}
}

func TestMemoryLocker_StaleTokenCannotReleaseSuccessor(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	stale, _ := l.Acquire(ctx, "k", 10*time.Millisecond)
	if stale == "" {
		t.Fatal("expected acquire to succeed")
	}

	time.Sleep(20 * time.Millisecond)

	// The lock expired and a new holder took it over.
	fresh, _ := l.Acquire(ctx, "k", time.Minute)
	if fresh == "" {
		t.Fatal("expected acquire to succeed after TTL expiry")
	}

	// The first holder's deferred release fires late; it must not free
	// the successor's lock.
	if err := l.Release(ctx, "k", stale); err != nil {
		t.Fatalf("Release with stale token: %v", err)
	}
	if token, _ := l.Acquire(ctx, "k", time.Second); token != "" {
		t.Fatal("stale release freed a lock owned by a newer holder")
	}

	if err := l.Release(ctx, "k", fresh); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if token, _ := l.Acquire(ctx, "k", time.Second); token == "" {
		t.Fatal("expected acquire to succeed after owner release")
	}
}

func TestMemoryLocker_IndependentKeys(t *testing.T) {
	l := NewMemoryLocker()
	ctx := context.Background()

	t1, _ := l.Acquire(ctx, "a", time.Second)
	t2, _ := l.Acquire(ctx, "b", time.Second)
	if t1 == "" || t2 == "" {
		t.Fatal("expected distinct keys to be independently lockable")
	}
}

func TestMemoryLocker_ReleaseUnheldIsNoop(t *testing.T) {
	l := NewMemoryLocker()
	if err := l.Release(context.Background(), "never-held", "any"); err != nil {
		t.Fatalf("Release of unheld key: %v", err)
	}
}
