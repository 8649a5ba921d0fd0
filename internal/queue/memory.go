package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryQueue is an in-process Queue for tests and single-node dev runs.
// It is safe for concurrent use.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []Job
}

var _ Queue = (*MemoryQueue)(nil)

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.EnqueuedAt = time.Now()
	job.NotBefore = job.EnqueuedAt.Add(delay)

	q.mu.Lock()
	q.pending = append(q.pending, job)
	q.mu.Unlock()
	return nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		if job := q.popDue(); job != nil {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Millisecond):
		}
	}
}

// popDue removes and returns the earliest-firing due job, if any.
func (q *MemoryQueue) popDue() *Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	best := -1
	for i, j := range q.pending {
		if j.NotBefore.After(now) {
			continue
		}
		if best == -1 || j.NotBefore.Before(q.pending[best].NotBefore) {
			best = i
		}
	}
	if best == -1 {
		return nil
	}
	job := q.pending[best]
	q.pending = append(q.pending[:best], q.pending[best+1:]...)
	return &job
}

func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
