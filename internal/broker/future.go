// Package broker provides the message broker clients the gateway publishes through.
// Sends are asynchronous: a client accepts a record and returns a Future that
// completes once the broker acknowledged or rejected it.
package broker

import (
	"context"
	"sync"
)

// Record is one message addressed to a topic.
// A nil Key lets the broker choose the partition.
type Record struct {
	Topic string
	Key   []byte
	Value []byte
}

// Result is the outcome of one send.
// Partition and Offset are meaningful only when Err is nil.
type Result struct {
	Record    Record
	Partition int
	Offset    int64
	Err       error
}

// Succeeded reports whether the broker acknowledged the record
func (r Result) Succeeded() bool {
	return r.Err == nil
}

// Future is the handle of a pending send.
// It completes exactly once; later completions are ignored.
type Future struct {
	mu        sync.Mutex
	done      chan struct{}
	completed bool
	result    Result
	callbacks []func(Result)
}

// NewFuture returns a pending future
func NewFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Complete resolves the future with res and runs the registered callbacks in registration order.
// It reports false when the future was already complete.
func (f *Future) Complete(res Result) bool {
	f.mu.Lock()
	if f.completed {
		f.mu.Unlock()
		return false
	}
	f.completed = true
	f.result = res
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(res)
	}
	return true
}

// Done returns a channel closed on completion
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the outcome without blocking.
// The boolean is false while the send is pending.
func (f *Future) Result() (Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result, f.completed
}

// Wait blocks until the future completes or ctx is done.
// Giving up on the wait does not cancel the send.
func (f *Future) Wait(ctx context.Context) (Result, error) {
	select {
	case <-f.done:
		res, _ := f.Result()
		return res, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// WhenComplete registers fn to run with the outcome and returns a future that
// completes with the same outcome after fn returned.
// On an already complete future fn runs on the calling goroutine before WhenComplete returns;
// otherwise it runs on the goroutine that completes the future.
func (f *Future) WhenComplete(fn func(Result)) *Future {
	next := NewFuture()
	cb := func(res Result) {
		fn(res)
		next.Complete(res)
	}

	f.mu.Lock()
	if !f.completed {
		f.callbacks = append(f.callbacks, cb)
		f.mu.Unlock()
		return next
	}
	res := f.result
	f.mu.Unlock()

	cb(res)
	return next
}
