package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestPool_ProcessesAllJobs(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]bool{}
	done := make(chan struct{}, 10)

	pool := NewPool(q, func(ctx context.Context, job Job) error {
		mu.Lock()
		seen[job.ExecutionID] = true
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, 4)
	pool.Start(ctx)

	q.Enqueue(ctx, Job{ExecutionID: "a"}, 0)
	q.Enqueue(ctx, Job{ExecutionID: "b"}, 10*time.Millisecond)
	q.Enqueue(ctx, Job{ExecutionID: "c"}, 0)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"a", "b", "c"} {
		if !seen[id] {
			t.Fatalf("job %s never processed", id)
		}
	}
}

func TestPool_StopsOnContextCancel(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())

	pool := NewPool(q, func(ctx context.Context, job Job) error { return nil }, 2)
	pool.Start(ctx)

	cancel()

	stopped := make(chan struct{})
	go func() {
		pool.Wait()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("workers did not stop after context cancel")
	}
}

// flakyQueue fails a number of dequeues before delegating to the wrapped
// queue, counting every attempt.
type flakyQueue struct {
	*MemoryQueue
	mu       sync.Mutex
	failures int
	calls    int
}

func (q *flakyQueue) Dequeue(ctx context.Context) (*Job, error) {
	q.mu.Lock()
	q.calls++
	fail := q.failures > 0
	if fail {
		q.failures--
	}
	q.mu.Unlock()
	if fail {
		return nil, errors.New("backend unavailable")
	}
	return q.MemoryQueue.Dequeue(ctx)
}

func (q *flakyQueue) callCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.calls
}

func TestPool_DequeueErrorRecoversWithBackoff(t *testing.T) {
	q := &flakyQueue{MemoryQueue: NewMemoryQueue(), failures: 3}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{}, 1)
	pool := NewPool(q, func(ctx context.Context, job Job) error {
		done <- struct{}{}
		return nil
	}, 1)
	pool.retryBackoff = 5 * time.Millisecond
	pool.Start(ctx)

	q.Enqueue(ctx, Job{ExecutionID: "a"}, 0)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker never recovered from dequeue errors")
	}
}

func TestPool_DequeueErrorDoesNotBusySpin(t *testing.T) {
	q := &flakyQueue{MemoryQueue: NewMemoryQueue(), failures: 1 << 30}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := NewPool(q, func(ctx context.Context, job Job) error { return nil }, 1)
	pool.retryBackoff = 20 * time.Millisecond
	pool.Start(ctx)

	time.Sleep(100 * time.Millisecond)

	// One paced attempt per backoff interval, not thousands.
	if calls := q.callCount(); calls > 10 {
		t.Fatalf("worker busy-spun through %d dequeue attempts in 100ms", calls)
	}
}

func TestPool_HandlerErrorDoesNotKillWorker(t *testing.T) {
	q := NewMemoryQueue()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan string, 2)
	pool := NewPool(q, func(ctx context.Context, job Job) error {
		done <- job.ExecutionID
		if job.ExecutionID == "bad" {
			return context.DeadlineExceeded
		}
		return nil
	}, 1)
	pool.Start(ctx)

	q.Enqueue(ctx, Job{ExecutionID: "bad"}, 0)
	q.Enqueue(ctx, Job{ExecutionID: "good"}, 5*time.Millisecond)

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("worker stopped after handler error")
		}
	}
}
