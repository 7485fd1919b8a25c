// Package consumer reads published library events back from the topic.
// It is a verification tool: events are decoded and handed to a callback, nothing is processed.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

// Message is a decoded record read from the topic
type Message struct {
	Topic     string             `json:"topic"`
	Partition int                `json:"partition"`
	Offset    int64              `json:"offset"`
	Key       types.NullInt      `json:"key"`
	Event     types.LibraryEvent `json:"event"`
	Time      time.Time          `json:"time"`
}

// HandlerFunc receives every decoded message in partition order
type HandlerFunc func(ctx context.Context, msg Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// Tail follows the topic as a member of a consumer group
type Tail struct {
	reader messageReader
	logger *zap.Logger
}

// NewTail creates a tail reading the configured topic with the configured group id
func NewTail(cfg *config.Config, logger *zap.Logger) (*Tail, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.Kafka.GroupID == "" {
		return nil, fmt.Errorf("KAFKA_GROUP_ID is required")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.Topic,
		GroupID:        cfg.Kafka.GroupID,
		StartOffset:    kafka.FirstOffset,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // Manual commit only
	})

	return newTail(reader, logger), nil
}

func newTail(reader messageReader, logger *zap.Logger) *Tail {
	return &Tail{
		reader: reader,
		logger: logger,
	}
}

// Run fetches messages until ctx is cancelled or handle fails.
// Undecodable records are logged and skipped; every record reaching the end of the loop is committed.
func (t *Tail) Run(ctx context.Context, handle HandlerFunc) error {
	cfg := t.reader.Config()
	t.logger.Info("Starting topic tail",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", cfg.Topic),
		zap.String("groupID", cfg.GroupID),
	)

	commitChan := make(chan kafka.Message, 100)
	commitDone := make(chan struct{})
	go t.commitLoop(commitChan, commitDone)
	defer func() {
		close(commitChan)
		<-commitDone
	}()

	for {
		msg, err := t.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				t.logger.Info("Tail stopped due to context cancellation")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		decoded, err := decode(ctx, msg)
		if err != nil {
			t.logger.Warn("Skipping undecodable message",
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Int("keyLength", len(msg.Key)),
				zap.Int("valueLength", len(msg.Value)),
				zap.Error(err),
			)
			t.commit(commitChan, msg)
			continue
		}

		if err := handle(ctx, decoded); err != nil {
			return fmt.Errorf("handler failed at %s/%d@%d: %w", msg.Topic, msg.Partition, msg.Offset, err)
		}
		t.commit(commitChan, msg)
	}
}

func decode(ctx context.Context, msg kafka.Message) (Message, error) {
	key, err := pipeline.DecodeKey(msg.Key)
	if err != nil {
		return Message{}, err
	}
	event, err := pipeline.Decode(ctx, msg.Value)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Topic:     msg.Topic,
		Partition: msg.Partition,
		Offset:    msg.Offset,
		Key:       key,
		Event:     event,
		Time:      msg.Time,
	}, nil
}

// commit queues a message for commit
func (t *Tail) commit(commitChan chan<- kafka.Message, msg kafka.Message) {
	select {
	case commitChan <- msg:
	default:
		t.logger.Warn("Commit channel full, message may be re-read",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// commitLoop commits offsets in the order they were queued until the channel is closed
func (t *Tail) commitLoop(commitChan <-chan kafka.Message, done chan struct{}) {
	defer close(done)

	// The channel is drained even after the fetch context is gone
	commitCtx := context.Background()

	for msg := range commitChan {
		if err := t.reader.CommitMessages(commitCtx, msg); err != nil {
			t.logger.Error("Failed to commit offset",
				zap.Error(err),
				zap.String("topic", msg.Topic),
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
			)
			continue
		}
		t.logger.Debug("Committed offset",
			zap.String("topic", msg.Topic),
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
		)
	}
}

// Close closes the Kafka reader and releases resources
func (t *Tail) Close() error {
	t.logger.Info("Closing topic tail")
	if err := t.reader.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka reader: %w", err)
	}
	return nil
}
