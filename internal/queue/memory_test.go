package queue

import (
	"context"
	"testing"
	"time"
)

func TestMemoryQueue_ImmediateJob(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	if err := q.Enqueue(ctx, Job{ExecutionID: "e1", StepID: "s1"}, 0); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if q.Len() != 1 {
		t.Fatalf("expected Len 1, got %d", q.Len())
	}

	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	job, err := q.Dequeue(dctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if job.ExecutionID != "e1" || job.StepID != "s1" {
		t.Fatalf("unexpected job: %+v", job)
	}
	if job.ID == "" {
		t.Fatal("expected queue to assign a job id")
	}
	if q.Len() != 0 {
		t.Fatalf("expected Len 0 after dequeue, got %d", q.Len())
	}
}

func TestMemoryQueue_DelayHonored(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	start := time.Now()
	if err := q.Enqueue(ctx, Job{ExecutionID: "e1"}, 50*time.Millisecond); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if _, err := q.Dequeue(dctx); err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Fatalf("job delivered %v early", 50*time.Millisecond-elapsed)
	}
}

func TestMemoryQueue_EarliestDueFirst(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	q.Enqueue(ctx, Job{ExecutionID: "later"}, 30*time.Millisecond)
	q.Enqueue(ctx, Job{ExecutionID: "sooner"}, 5*time.Millisecond)

	dctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	first, err := q.Dequeue(dctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if first.ExecutionID != "sooner" {
		t.Fatalf("expected earlier fire time first, got %s", first.ExecutionID)
	}
}

func TestMemoryQueue_DequeueHonorsContextCancellation(t *testing.T) {
	q := NewMemoryQueue()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err == nil {
		t.Fatal("expected Dequeue on empty queue to fail with context error")
	}
}
