package engine

import (
	"context"
	"log"
	"time"
)

// Queue bounds the number of concurrent recognition jobs. Recognition is
// CPU-bound, so unbounded concurrency under burst load only adds thrashing.
// When no worker slot frees up within the submit timeout the job degrades to
// synchronous execution on the caller's goroutine, so the operation always
// completes.
type Queue struct {
	slots   chan struct{}
	timeout time.Duration
}

// NewQueue creates a queue with the given number of worker slots and the
// maximum time a submission waits for a slot. Non-positive workers fall back
// to 1; a non-positive timeout means no waiting at all.
func NewQueue(workers int, submitTimeout time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	return &Queue{
		slots:   make(chan struct{}, workers),
		timeout: submitTimeout,
	}
}

// Do runs fn under a worker slot, or synchronously when no slot frees up in
// time. ctx cancellation while waiting aborts without running fn.
func (q *Queue) Do(ctx context.Context, fn func() error) error {
	timer := time.NewTimer(q.timeout)
	defer timer.Stop()

	select {
	case q.slots <- struct{}{}:
		defer func() { <-q.slots }()
		return fn()
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		log.Printf("recognition queue saturated, running job locally")
		return fn()
	}
}
