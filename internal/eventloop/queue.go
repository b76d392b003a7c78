// Package eventloop serializes callbacks from sensors, detectors, timers and
// capture completions onto a single consumer goroutine.
package eventloop

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Run when the queue was already stopped.
var ErrStopped = errors.New("eventloop: stopped")

// Queue is a FIFO of closures consumed by exactly one Run loop.
// Post is safe for any number of producers.
type Queue struct {
	ch       chan func()
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a queue buffering up to size pending closures.
func New(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		ch:   make(chan func(), size),
		done: make(chan struct{}),
	}
}

// Post enqueues fn. It blocks while the buffer is full and returns false
// once the queue is stopped, in which case fn never runs.
func (q *Queue) Post(fn func()) bool {
	select {
	case <-q.done:
		return false
	default:
	}
	select {
	case q.ch <- fn:
		return true
	case <-q.done:
		return false
	}
}

// AfterFunc posts fn once d has elapsed. Stopping the returned timer
// before it fires cancels the post.
func (q *Queue) AfterFunc(d time.Duration, fn func()) *time.Timer {
	return time.AfterFunc(d, func() { q.Post(fn) })
}

// Run executes posted closures in order until ctx is done or Stop is
// called. Closures still buffered at that point are discarded.
func (q *Queue) Run(ctx context.Context) error {
	select {
	case <-q.done:
		return ErrStopped
	default:
	}
	defer q.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.done:
			return nil
		case fn := <-q.ch:
			fn()
		}
	}
}

// Call posts fn and waits for it to run on the loop. Must not be called
// from the loop goroutine itself.
func (q *Queue) Call(fn func()) bool {
	ran := make(chan struct{})
	if !q.Post(func() {
		defer close(ran)
		fn()
	}) {
		return false
	}
	select {
	case <-ran:
		return true
	case <-q.done:
		return false
	}
}

// Stop terminates Run and rejects further posts.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.done) })
}

// Done is closed once the queue stops.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}
