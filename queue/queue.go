// Package queue implements the bounded FIFO job queue shared by every
// worker proxy: a single channel-backed mailbox that blocks producers when
// full and blocks consumers when empty, with no priority and no timeout.
package queue

import "github.com/amberarrow/devolve/job"

// Quit is the sentinel value published exactly once by the pool facade to
// signal pool termination. Every proxy that pops it must push it back
// before exiting so every other proxy eventually observes it too.
var Quit = &struct{ quit byte }{}

// Item is either a job.Job or the Quit sentinel.
type Item interface{}

// Queue is a bounded, thread-safe FIFO of Item. Capacity is fixed at
// construction; Put blocks when full, Get blocks when empty.
type Queue struct {
	ch chan Item
}

// New creates a Queue with the given capacity. Capacity must be >= 1; the
// caller (boss.Pool) is responsible for enforcing the configured bound.
func New(capacity int) *Queue {
	return &Queue{ch: make(chan Item, capacity)}
}

// Put enqueues x, blocking while the queue is at capacity.
func (q *Queue) Put(x Item) { q.ch <- x }

// TryPut enqueues x without blocking, reporting false if the queue is
// currently at capacity.
func (q *Queue) TryPut(x Item) bool {
	select {
	case q.ch <- x:
		return true
	default:
		return false
	}
}

// Get dequeues the next item in FIFO order, blocking while the queue is
// empty.
func (q *Queue) Get() Item { return <-q.ch }

// Len reports the number of items currently buffered. Best-effort: useful
// for metrics/backpressure observation, not for synchronization.
func (q *Queue) Len() int { return len(q.ch) }

// Cap reports the configured capacity.
func (q *Queue) Cap() int { return cap(q.ch) }

// AsJob type-asserts an Item popped from the queue. ok is false for the
// Quit sentinel.
func AsJob(item Item) (j job.Job, ok bool) {
	if item == Quit {
		return nil, false
	}
	j, ok = item.(job.Job)
	return j, ok
}
