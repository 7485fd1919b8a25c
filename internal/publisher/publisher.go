// Package publisher hands library events to the broker and reports each delivery outcome.
//
// Publishing is fire-and-observe: the caller gets control back as soon as the
// broker client accepted the record. The delivery outcome is logged, counted and
// recorded on the trace span from the broker client's completion; it is never
// retried and never surfaced to the caller as an error.
package publisher

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/broker"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

// Outcome is the result of one publish attempt as seen by the completion handler
type Outcome struct {
	Key       types.NullInt
	Value     []byte
	Success   bool
	Partition int
	Offset    int64
	Err       error
}

func outcomeOf(key types.NullInt, value []byte, res broker.Result) Outcome {
	o := Outcome{Key: key, Value: value, Success: res.Succeeded(), Err: res.Err}
	if o.Success {
		o.Partition = res.Partition
		o.Offset = res.Offset
	}
	return o
}

// Publisher sends events to one topic
type Publisher struct {
	client  broker.Client
	topic   string
	logger  *zap.Logger
	metrics *obs.Metrics
	tracer  trace.Tracer
}

// New creates a publisher for topic.
// metrics may be nil; a nil tracer selects the global gateway tracer.
func New(client broker.Client, topic string, logger *zap.Logger, metrics *obs.Metrics, tracer trace.Tracer) (*Publisher, error) {
	if client == nil {
		return nil, fmt.Errorf("broker client cannot be nil")
	}
	if topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if tracer == nil {
		tracer = obs.Tracer()
	}

	return &Publisher{
		client:  client,
		topic:   topic,
		logger:  logger,
		metrics: metrics,
		tracer:  tracer,
	}, nil
}

// Topic returns the destination topic
func (p *Publisher) Topic() string {
	return p.topic
}

type sendFunc func(ctx context.Context, key, value []byte) (*broker.Future, error)

// Publish sends the event keyed by its identifier.
//
// It returns a *pipeline.SerializationError when the event cannot be encoded and
// an *EnqueueError when the broker client refuses the record; in both cases
// nothing is sent. Otherwise it returns a future that completes after the
// outcome was logged and recorded.
func (p *Publisher) Publish(ctx context.Context, event types.LibraryEvent) (*broker.Future, error) {
	return p.publish(ctx, event, "send", func(ctx context.Context, key, value []byte) (*broker.Future, error) {
		return p.client.Send(ctx, p.topic, key, value)
	})
}

// PublishRecord behaves like Publish but submits an explicit broker.Record
func (p *Publisher) PublishRecord(ctx context.Context, event types.LibraryEvent) (*broker.Future, error) {
	return p.publish(ctx, event, "record", func(ctx context.Context, key, value []byte) (*broker.Future, error) {
		return p.client.SendRecord(ctx, broker.Record{Topic: p.topic, Key: key, Value: value})
	})
}

func (p *Publisher) publish(ctx context.Context, event types.LibraryEvent, variant string, send sendFunc) (*broker.Future, error) {
	id := event.LibraryEventID
	ctx, span := p.tracer.Start(ctx, "publisher.publish",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination.name", p.topic),
			attribute.String("messaging.message.key", id.String()),
			attribute.String("publish.variant", variant),
		),
	)

	value, err := pipeline.Encode(event)
	if err != nil {
		p.metrics.IncrementSerializationErrors()
		p.logger.Error("Failed to serialize event",
			zap.Stringer("key", id),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "serialization failed")
		span.End()
		return nil, err
	}

	start := time.Now()
	p.metrics.DeliveryStarted()
	future, err := send(ctx, pipeline.EncodeKey(id), value)
	if err != nil {
		p.metrics.DeliveryAborted()
		p.metrics.IncrementEnqueueErrors()
		p.logger.Error("Broker client refused the message",
			zap.Stringer("key", id),
			zap.String("topic", p.topic),
			zap.Error(err),
		)
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		span.End()
		return nil, &EnqueueError{Err: err}
	}

	return future.WhenComplete(func(res broker.Result) {
		p.report(span, outcomeOf(id, value, res), time.Since(start))
	}), nil
}

// report runs on the broker client's completion goroutine
func (p *Publisher) report(span trace.Span, o Outcome, elapsed time.Duration) {
	defer span.End()
	p.metrics.ObserveDelivery(o.Success, elapsed)

	if !o.Success {
		p.logger.Error("Failed to deliver message",
			zap.Stringer("key", o.Key),
			zap.ByteString("value", o.Value),
			zap.String("topic", p.topic),
			zap.Error(o.Err),
		)
		span.RecordError(o.Err)
		span.SetStatus(codes.Error, "delivery failed")
		return
	}

	p.logger.Info("Message delivered",
		zap.Stringer("key", o.Key),
		zap.ByteString("value", o.Value),
		zap.String("topic", p.topic),
		zap.Int("partition", o.Partition),
		zap.Int64("offset", o.Offset),
	)
	span.SetAttributes(
		attribute.Int("messaging.destination.partition.id", o.Partition),
		attribute.Int64("messaging.kafka.offset", o.Offset),
	)
	span.SetStatus(codes.Ok, "")
}
