// Package queue is the bounded hand-off between a stage's producer and its workers.
package queue

import (
	"context"
	"sync"

	"github.com/jules-maulard/clash-royale-analytics/pkg/metrics"
)

const defaultCapacity = 1024

// Queue provides blocking enqueue and channel-based dequeue semantics.
type Queue[T any] interface {
	// Enqueue blocks until the item is accepted, the queue is closed, or ctx is done.
	Enqueue(ctx context.Context, item T) error

	// Dequeue returns the channel workers drain. It is closed after Close
	// once every queued item has been received.
	Dequeue() <-chan T

	// Len returns the current number of queued items.
	Len() int

	// Close stops accepting items. Queued items are still delivered.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue[T any] struct {
	items    chan T
	capacity int
	name     string

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue holding at most capacity items.
func NewInMemoryQueue[T any](opts ...Option) *InMemoryQueue[T] {
	s := settings{capacity: defaultCapacity, name: "queue"}
	for _, opt := range opts {
		opt(&s)
	}
	q := &InMemoryQueue[T]{
		items:    make(chan T, s.capacity),
		capacity: s.capacity,
		name:     s.name,
	}
	metrics.UpdateQueueDepth(q.name, 0)
	return q
}

// Enqueue adds an item, waiting for room when the queue is full.
func (q *InMemoryQueue[T]) Enqueue(ctx context.Context, item T) error {
	// Only the producer calls Close, so a blocked send never holds up Close.
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}
	select {
	case q.items <- item:
		metrics.UpdateQueueDepth(q.name, len(q.items))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue[T]) Dequeue() <-chan T {
	return q.items
}

// Len returns the current number of queued items.
func (q *InMemoryQueue[T]) Len() int {
	n := len(q.items)
	metrics.UpdateQueueDepth(q.name, n)
	return n
}

// Cap returns the queue capacity.
func (q *InMemoryQueue[T]) Cap() int { return q.capacity }

// Close stops accepting items. Calling it more than once is a no-op.
func (q *InMemoryQueue[T]) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue[T]) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
