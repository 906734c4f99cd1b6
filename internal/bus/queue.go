package bus

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/yanun0323/errors"

	"venuetrader/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// Event is an inbound envelope tagged with the session that received it.
type Event struct {
	Session  string
	Envelope schema.Envelope
	Received time.Time
}

// Queue is a bounded, non-blocking event queue between a receive loop and
// its dispatcher.
type Queue struct {
	ch     chan Event
	closed atomic.Bool
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) (err error) {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	defer func() {
		// lost a race with Close
		if recover() != nil {
			err = ErrQueueClosed
		}
	}()
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops the queue from accepting new events. Queued events are still
// delivered by Run.
func (q *Queue) Close() {
	if q.closed.CompareAndSwap(false, true) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed and
// drained.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
