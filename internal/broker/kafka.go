package broker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
)

// DispatchHeader carries the id that matches a writer completion to its Future
const DispatchHeader = "x-dispatch-id"

type pendingSend struct {
	future *Future
	record Record
}

// Kafka is a Client backed by an asynchronous kafka-go writer.
// The writer keeps one batch per partition, so records sharing a key keep their order.
type Kafka struct {
	writer  *kafka.Writer
	logger  *zap.Logger
	pending sync.Map // dispatch id -> pendingSend
	closed  atomic.Bool
}

// NewKafka creates a Kafka client from the KAFKA_* settings.
// No connection is made until the first send.
func NewKafka(cfg *config.Config, logger *zap.Logger) (*Kafka, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	acks, err := parseRequiredAcks(cfg.Kafka.RequiredAcks)
	if err != nil {
		return nil, err
	}

	k := &Kafka{logger: logger}
	k.writer = &kafka.Writer{
		Addr: kafka.TCP(cfg.Kafka.Brokers...),
		// Hash sends nil keys round-robin
		Balancer:     &kafka.Hash{},
		RequiredAcks: acks,
		BatchTimeout: cfg.Kafka.BatchTimeout,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		ReadTimeout:  cfg.Kafka.WriteTimeout,
		MaxAttempts:  cfg.Kafka.MaxAttempts,
		Async:        true,
		Completion:   k.complete,
	}

	return k, nil
}

func parseRequiredAcks(s string) (kafka.RequiredAcks, error) {
	switch s {
	case "none":
		return kafka.RequireNone, nil
	case "one":
		return kafka.RequireOne, nil
	case "all":
		return kafka.RequireAll, nil
	default:
		return 0, fmt.Errorf("unknown required acks: %q", s)
	}
}

// Send hands a record to the writer
func (k *Kafka) Send(ctx context.Context, topic string, key, value []byte) (*Future, error) {
	return k.SendRecord(ctx, Record{Topic: topic, Key: key, Value: value})
}

// SendRecord hands a record to the writer and returns once it is buffered
func (k *Kafka) SendRecord(ctx context.Context, rec Record) (*Future, error) {
	if k.closed.Load() {
		return nil, ErrClientClosed
	}

	id := uuid.NewString()
	future := NewFuture()
	// Register before writing: the completion may fire before WriteMessages returns
	k.pending.Store(id, pendingSend{future: future, record: rec})

	msg := kafka.Message{
		Topic:   rec.Topic,
		Key:     rec.Key,
		Value:   rec.Value,
		Headers: []kafka.Header{{Key: DispatchHeader, Value: []byte(id)}},
	}

	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.pending.Delete(id)
		if errors.Is(err, io.ErrClosedPipe) {
			return nil, ErrClientClosed
		}
		return nil, fmt.Errorf("failed to hand off message: %w", err)
	}

	return future, nil
}

// complete is the writer's Completion hook, called once per written batch
func (k *Kafka) complete(messages []kafka.Message, err error) {
	for _, msg := range messages {
		id := dispatchID(msg)
		v, ok := k.pending.LoadAndDelete(id)
		if !ok {
			k.logger.Warn("Completion for unknown message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.String("dispatchID", id),
			)
			continue
		}
		p := v.(pendingSend)
		p.future.Complete(Result{
			Record:    p.record,
			Partition: msg.Partition,
			Offset:    msg.Offset,
			Err:       err,
		})
	}
}

func dispatchID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == DispatchHeader {
			return string(h.Value)
		}
	}
	return ""
}

// Close flushes buffered batches and closes the writer.
// Sends the writer could not complete fail with ErrClientClosed.
func (k *Kafka) Close() error {
	if !k.closed.CompareAndSwap(false, true) {
		return nil
	}

	k.logger.Info("Closing Kafka client")
	err := k.writer.Close()

	k.pending.Range(func(key, v any) bool {
		k.pending.Delete(key)
		p := v.(pendingSend)
		p.future.Complete(Result{Record: p.record, Err: ErrClientClosed})
		return true
	})

	if err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}
