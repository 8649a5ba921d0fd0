// Package queue provides the durable delayed-job queue that decouples step
// execution from the message-ingestion path.
package queue

import (
	"context"
	"time"
)

// Job carries one scheduled step execution.
type Job struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	StepID      string    `json:"step_id"`
	StepOrder   int       `json:"step_order"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
	// NotBefore is the earliest time this job may be delivered to a worker.
	NotBefore time.Time `json:"not_before"`
}

// Queue is a delayed job queue. Jobs become visible to Dequeue only once
// their delay has elapsed; no ordering is guaranteed across jobs beyond
// their own fire time.
type Queue interface {
	// Enqueue schedules a job to fire after delay.
	Enqueue(ctx context.Context, job Job, delay time.Duration) error

	// Dequeue blocks until a due job is available or ctx is cancelled.
	Dequeue(ctx context.Context) (*Job, error)

	// Len returns the approximate number of pending jobs.
	Len() int
}
