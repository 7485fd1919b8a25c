// Package worker provides a fixed-size worker pool for processing items from a queue
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/queue"
	"go.uber.org/zap"
)

// Handler processes one dequeued item
type Handler[T any] func(ctx context.Context, item T, workerID int)

// Pool represents a fixed-size worker pool that processes items from a queue
type Pool[T any] struct {
	workerCount int
	queue       *queue.Queue[T]
	handler     Handler[T]
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	started     bool
	mu          sync.Mutex
}

// NewPool creates a new worker pool with the specified number of workers
// workerCount must be greater than 0
func NewPool[T any](workerCount int, q *queue.Queue[T], handler Handler[T], logger *zap.Logger) (*Pool[T], error) {
	if workerCount <= 0 {
		return nil, fmt.Errorf("worker count must be greater than 0, got: %d", workerCount)
	}
	if q == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Pool[T]{
		workerCount: workerCount,
		queue:       q,
		handler:     handler,
		logger:      logger,
	}, nil
}

// Start begins processing items from the queue using the worker pool
// It starts N worker goroutines that pull items from the queue and hand them to the handler
// Returns an error if the pool is already started
func (p *Pool[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	p.logger.Info("Starting worker pool",
		zap.Int("workerCount", p.workerCount),
	)

	// Create a context that cancels when the pool is stopped
	p.ctx, p.cancel = context.WithCancel(context.Background())

	p.started = true

	for i := range p.workerCount {
		p.wg.Add(1)
		go p.worker(ctx, p.ctx, i)
	}

	return nil
}

// worker is the main loop for a single worker goroutine
// It pulls items from the queue until the queue is closed and drained or a context is cancelled
func (p *Pool[T]) worker(ctx, poolCtx context.Context, workerID int) {
	defer p.wg.Done()

	p.logger.Debug("Worker started",
		zap.Int("workerID", workerID),
	)

	// Dequeue must be interrupted by either the caller's or the pool's context
	combinedCtx, combinedCancel := context.WithCancel(ctx)
	defer combinedCancel()
	stop := context.AfterFunc(poolCtx, combinedCancel)
	defer stop()

	for {
		item, err := p.queue.Dequeue(combinedCtx)
		if err != nil {
			switch {
			case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
				p.logger.Debug("Worker stopping due to context cancellation",
					zap.Int("workerID", workerID),
				)
				return
			case err == queue.ErrQueueClosed:
				p.logger.Debug("Worker stopping due to queue closed",
					zap.Int("workerID", workerID),
				)
				return
			}

			p.logger.Error("Failed to dequeue item",
				zap.Error(err),
				zap.Int("workerID", workerID),
			)
			continue
		}

		p.handler(ctx, item, workerID)
	}
}

// Wait blocks until every worker has returned
// Workers return on their own once the queue is closed and drained
func (p *Pool[T]) Wait() {
	p.wg.Wait()
}

// Stop gracefully stops the worker pool
// It cancels the internal context and waits for all workers to finish
// An item already handed to the handler is finished before its worker exits
func (p *Pool[T]) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}
	p.started = false

	p.logger.Info("Stopping worker pool",
		zap.Int("workerCount", p.workerCount),
	)

	if p.cancel != nil {
		p.cancel()
	}

	p.wg.Wait()

	p.logger.Info("Worker pool stopped",
		zap.Int("workerCount", p.workerCount),
	)

	// Clear context and cancel function to make it obviously invalid
	p.ctx = nil
	p.cancel = nil

	return nil
}

// Errors
var (
	ErrPoolAlreadyStarted = &PoolError{msg: "worker pool is already started"}
)

// PoolError represents a worker pool operation error
type PoolError struct {
	msg string
}

func (e *PoolError) Error() string {
	return e.msg
}
