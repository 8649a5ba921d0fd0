package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Handler processes one dequeued job.
type Handler func(ctx context.Context, job Job) error

// Pool runs a fixed number of concurrent consumers against one shared
// queue. Handler errors are logged, never retried; progression semantics
// are the handler's responsibility.
type Pool struct {
	queue       Queue
	handler     Handler
	concurrency int
	// retryBackoff paces the consume loop after a dequeue error, so a
	// backend outage does not become a busy-spin across all workers.
	retryBackoff time.Duration
	wg           sync.WaitGroup
}

// NewPool creates a worker pool. concurrency <= 0 defaults to 50.
func NewPool(q Queue, handler Handler, concurrency int) *Pool {
	if concurrency <= 0 {
		concurrency = 50
	}
	return &Pool{
		queue:        q,
		handler:      handler,
		concurrency:  concurrency,
		retryBackoff: time.Second,
	}
}

// Start launches the consumers. They run until ctx is cancelled.
func (p *Pool) Start(ctx context.Context) {
	log.Printf("[Worker] Starting %d step workers", p.concurrency)
	for i := 0; i < p.concurrency; i++ {
		p.wg.Add(1)
		go p.run(ctx)
	}
}

// Wait blocks until all consumers have exited.
func (p *Pool) Wait() {
	p.wg.Wait()
}

func (p *Pool) run(ctx context.Context) {
	defer p.wg.Done()
	for {
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			log.Printf("[Worker] Dequeue failed: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryBackoff):
			}
			continue
		}
		if job == nil {
			continue
		}
		if err := p.handler(ctx, *job); err != nil {
			log.Printf("[Worker] Job %s failed: %v", job.ID, err)
		}
	}
}
