// Package requestq bounds how many provider calls are in flight at once.
// Waiting tasks dispatch strictly in enqueue order; completions carry no
// ordering guarantee. An optional spacing delay holds a freed slot back
// after each settlement so completions spread out instead of bursting.
package requestq

import (
	"context"
	"sync"
	"time"
)

// Queue is a FIFO concurrency limiter.
type Queue struct {
	mu      sync.Mutex
	waiting []chan struct{}
	active  int

	maxConcurrency int
	minSpacing     time.Duration
}

// New creates a queue allowing maxConcurrency tasks in flight. minSpacing
// is the release-pacing delay: a slot freed by a settled task (success or
// failure alike) only becomes available that long after settlement.
func New(maxConcurrency int, minSpacing time.Duration) *Queue {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &Queue{maxConcurrency: maxConcurrency, minSpacing: minSpacing}
}

// Active returns the number of currently running tasks.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Waiting returns the number of tasks queued behind the concurrency bound.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.waiting)
}

func (q *Queue) acquire(ctx context.Context) error {
	q.mu.Lock()
	// A free slot is only taken directly when nobody is queued ahead.
	if q.active < q.maxConcurrency && len(q.waiting) == 0 {
		q.active++
		q.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	q.waiting = append(q.waiting, ready)
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		for i, w := range q.waiting {
			if w == ready {
				q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
				q.mu.Unlock()
				return ctx.Err()
			}
		}
		q.mu.Unlock()
		// The slot was granted between ctx firing and the removal scan.
		q.release()
		return ctx.Err()
	}
}

func (q *Queue) release() {
	grant := func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		if len(q.waiting) > 0 {
			// Hand the slot straight to the head waiter; active is
			// unchanged because ownership transfers.
			head := q.waiting[0]
			q.waiting = q.waiting[1:]
			close(head)
			return
		}
		q.active--
	}

	if q.minSpacing > 0 {
		time.AfterFunc(q.minSpacing, grant)
		return
	}
	grant()
}

// Enqueue runs task once a slot is free and blocks until it settles. The
// task's error propagates to this caller only; sibling tasks are never
// affected and a failure does not throttle the queue.
func (q *Queue) Enqueue(ctx context.Context, task func() error) error {
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()
	return task()
}

// Do is Enqueue with a typed result.
func Do[T any](ctx context.Context, q *Queue, task func() (T, error)) (T, error) {
	var result T
	err := q.Enqueue(ctx, func() error {
		var taskErr error
		result, taskErr = task()
		return taskErr
	})
	return result, err
}
