// Package events hands triage and integrity results from producers to the
// presentation surface through bounded mailboxes.
package events

import (
	"context"
	"sync/atomic"
)

// DefaultCapacity bounds each mailbox.
const DefaultCapacity = 4096

// Queue is a bounded multi-producer mailbox. Items from one producer keep
// their order. When full, the oldest item is discarded to make room so
// producers never block.
type Queue[T any] struct {
	name    string
	ch      chan T
	dropped atomic.Uint64
	metrics Metrics
}

// NewQueue creates a mailbox holding at most capacity items.
func NewQueue[T any](name string, capacity int, metrics Metrics) *Queue[T] {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Queue[T]{name: name, ch: make(chan T, capacity), metrics: metrics}
}

// Publish enqueues v, evicting the oldest item when the mailbox is full.
func (q *Queue[T]) Publish(ctx context.Context, v T) {
	for {
		select {
		case q.ch <- v:
			q.metrics.IncPublished(ctx, q.name)
			return
		default:
		}

		select {
		case <-q.ch:
			q.dropped.Add(1)
			q.metrics.IncDropped(ctx, q.name)
		default:
		}
	}
}

// Drain removes and returns everything currently queued. Items published
// while draining may be left for the next call.
func (q *Queue[T]) Drain() []T {
	n := len(q.ch)
	out := make([]T, 0, n)
	for range n {
		select {
		case v := <-q.ch:
			out = append(out, v)
		default:
			return out
		}
	}
	return out
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int { return len(q.ch) }

// Dropped returns how many items were discarded because the mailbox was full.
func (q *Queue[T]) Dropped() uint64 { return q.dropped.Load() }
