package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/queue"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/worker"
)

// Memory is an in-process Client with partitioned per-topic logs.
// A single worker drains the hand-off queue, so every record is delivered in send order.
// Partitions are assigned with the same hash balancer as the Kafka client.
type Memory struct {
	queue      *queue.Queue[pendingSend]
	pool       *worker.Pool[pendingSend]
	partitions []int
	balancer   *kafka.Hash
	logger     *zap.Logger

	// sendMu orders hand-offs before Close so no record lands in a queue nobody drains
	sendMu sync.RWMutex
	closed bool

	mu   sync.Mutex
	logs map[string][][]Result
	// order keeps deliveries per topic across partitions
	order map[string][]Result
	fail  func(Record) error
}

// NewMemory creates and starts an in-memory client
func NewMemory(cfg config.MemoryConfig, metrics *obs.Metrics, logger *zap.Logger) (*Memory, error) {
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("queue size must be greater than 0, got: %d", cfg.QueueSize)
	}
	if cfg.Partitions <= 0 {
		return nil, fmt.Errorf("partitions must be greater than 0, got: %d", cfg.Partitions)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Memory{
		queue:      queue.NewQueue[pendingSend](cfg.QueueSize, metrics),
		partitions: make([]int, cfg.Partitions),
		balancer:   &kafka.Hash{},
		logger:     logger,
		logs:       make(map[string][][]Result),
		order:      make(map[string][]Result),
	}
	for i := range m.partitions {
		m.partitions[i] = i
	}

	pool, err := worker.NewPool(1, m.queue, m.deliver, logger)
	if err != nil {
		return nil, err
	}
	if err := pool.Start(context.Background()); err != nil {
		return nil, err
	}
	m.pool = pool

	return m, nil
}

// Send queues a record for delivery
func (m *Memory) Send(ctx context.Context, topic string, key, value []byte) (*Future, error) {
	return m.SendRecord(ctx, Record{Topic: topic, Key: key, Value: value})
}

// SendRecord queues a record for delivery, blocking while the queue is full
func (m *Memory) SendRecord(ctx context.Context, rec Record) (*Future, error) {
	m.sendMu.RLock()
	defer m.sendMu.RUnlock()
	if m.closed {
		return nil, ErrClientClosed
	}

	future := NewFuture()
	if err := m.queue.Enqueue(ctx, pendingSend{future: future, record: rec}); err != nil {
		if err == queue.ErrQueueClosed {
			return nil, ErrClientClosed
		}
		return nil, fmt.Errorf("failed to hand off message: %w", err)
	}
	return future, nil
}

func (m *Memory) deliver(_ context.Context, p pendingSend, _ int) {
	partition := m.balancer.Balance(kafka.Message{Key: p.record.Key}, m.partitions...)

	m.mu.Lock()
	if m.fail != nil {
		if err := m.fail(p.record); err != nil {
			m.mu.Unlock()
			p.future.Complete(Result{Record: p.record, Partition: partition, Err: err})
			return
		}
	}

	logs, ok := m.logs[p.record.Topic]
	if !ok {
		logs = make([][]Result, len(m.partitions))
		m.logs[p.record.Topic] = logs
	}
	res := Result{
		Record:    p.record,
		Partition: partition,
		Offset:    int64(len(logs[partition])),
	}
	logs[partition] = append(logs[partition], res)
	m.order[p.record.Topic] = append(m.order[p.record.Topic], res)
	m.mu.Unlock()

	p.future.Complete(res)
}

// FailWith makes delivery fail for every record fn returns an error for.
// A nil fn restores normal delivery.
func (m *Memory) FailWith(fn func(Record) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail = fn
}

// Delivered returns the records acknowledged on topic, in delivery order
func (m *Memory) Delivered(topic string) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Result(nil), m.order[topic]...)
}

// Partition returns the log of one partition of topic
func (m *Memory) Partition(topic string, partition int) []Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	logs, ok := m.logs[topic]
	if !ok || partition < 0 || partition >= len(logs) {
		return nil
	}
	return append([]Result(nil), logs[partition]...)
}

// Close delivers every queued record, then stops the worker.
// It is safe to call more than once.
func (m *Memory) Close() error {
	m.sendMu.Lock()
	if m.closed {
		m.sendMu.Unlock()
		return nil
	}
	m.closed = true
	m.queue.Close()
	m.sendMu.Unlock()

	m.pool.Wait()
	err := m.pool.Stop()

	for {
		p, ok := m.queue.TryDequeue()
		if !ok {
			break
		}
		p.future.Complete(Result{Record: p.record, Err: ErrClientClosed})
	}

	if err != nil {
		return fmt.Errorf("failed to stop memory broker: %w", err)
	}
	return nil
}
