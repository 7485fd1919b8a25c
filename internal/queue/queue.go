// Package queue provides a bounded buffered queue with backpressure support
package queue

import (
	"context"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
)

// Queue represents a bounded buffered channel of items
// When the queue is full, Enqueue blocks, providing backpressure
type Queue[T any] struct {
	items   chan T
	done    chan struct{}
	size    int
	metrics *obs.Metrics
	once    sync.Once
}

// NewQueue creates a new Queue with the specified buffer size
// The queue will block on Enqueue when full, providing backpressure
func NewQueue[T any](size int, metrics *obs.Metrics) *Queue[T] {
	q := &Queue[T]{
		items:   make(chan T, size),
		done:    make(chan struct{}),
		size:    size,
		metrics: metrics,
	}

	// Initialize queue depth metric to 0
	metrics.NullifyQueueDepth()

	return q
}

// Enqueue adds an item to the queue
// This operation blocks if the queue is full (backpressure)
// Returns an error if the context is cancelled or the queue is closed
func (q *Queue[T]) Enqueue(ctx context.Context, item T) error {
	// A closed queue must refuse even when buffer space is free
	select {
	case <-q.done:
		return ErrQueueClosed
	default:
	}

	select {
	case q.items <- item:
		q.metrics.IncrementQueueDepth()
		return nil
	case <-q.done:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Dequeue removes and returns an item from the queue
// This operation blocks if the queue is empty
// After Close, buffered items are still returned; ErrQueueClosed is returned once the buffer is drained
func (q *Queue[T]) Dequeue(ctx context.Context) (T, error) {
	select {
	case item := <-q.items:
		q.metrics.DecrementQueueDepth()
		return item, nil
	case <-q.done:
		return q.drain()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// TryDequeue removes an item without blocking
// The boolean is false when the queue is empty
func (q *Queue[T]) TryDequeue() (T, bool) {
	select {
	case item := <-q.items:
		q.metrics.DecrementQueueDepth()
		return item, true
	default:
		var zero T
		return zero, false
	}
}

func (q *Queue[T]) drain() (T, error) {
	if item, ok := q.TryDequeue(); ok {
		return item, nil
	}
	var zero T
	return zero, ErrQueueClosed
}

// Depth returns the current number of items in the queue
func (q *Queue[T]) Depth() int {
	return len(q.items)
}

// Capacity returns the buffer size of the queue
func (q *Queue[T]) Capacity() int {
	return q.size
}

// Close closes the queue gracefully
// After closing, no more items can be enqueued; items already buffered can still be dequeued
func (q *Queue[T]) Close() {
	q.once.Do(func() {
		close(q.done)
	})
}

// Errors
var (
	ErrQueueClosed = &QueueError{msg: "queue is closed"}
)

// QueueError represents a queue operation error
type QueueError struct {
	msg string
}

func (e *QueueError) Error() string {
	return e.msg
}
