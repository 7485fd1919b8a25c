package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/broker"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

const topic = "library-events"

type fixture struct {
	pub     *Publisher
	mem     *broker.Memory
	logs    *observer.ObservedLogs
	spans   *tracetest.SpanRecorder
	metrics *obs.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mem, err := broker.NewMemory(config.MemoryConfig{QueueSize: 16, Partitions: 3}, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = mem.Close() })

	return newFixtureWithClient(t, mem, mem)
}

func newFixtureWithClient(t *testing.T, client broker.Client, mem *broker.Memory) *fixture {
	t.Helper()

	core, logs := observer.New(zapcore.InfoLevel)
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	metrics := obs.NewMetrics("test", prometheus.NewRegistry())

	pub, err := New(client, topic, zap.New(core), metrics, tp.Tracer("test"))
	require.NoError(t, err)

	return &fixture{pub: pub, mem: mem, logs: logs, spans: spans, metrics: metrics}
}

func await(t *testing.T, f *broker.Future) broker.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	return res
}

func sampleEvent(id types.NullInt, eventType types.EventType) types.LibraryEvent {
	return types.LibraryEvent{
		LibraryEventID:   id,
		LibraryEventType: eventType,
		Book: types.Book{
			BookID:     types.IntOf(456),
			BookName:   "Kafka Using Spring Boot",
			BookAuthor: "Dilip",
		},
	}
}

type refusingClient struct{ err error }

func (c refusingClient) Send(context.Context, string, []byte, []byte) (*broker.Future, error) {
	return nil, c.err
}

func (c refusingClient) SendRecord(context.Context, broker.Record) (*broker.Future, error) {
	return nil, c.err
}

func (c refusingClient) Close() error { return nil }

// completingClient acknowledges every record before Send returns and notes the in-flight gauge it saw
type completingClient struct {
	metrics  *obs.Metrics
	inFlight []float64
}

func (c *completingClient) Send(_ context.Context, topic string, key, value []byte) (*broker.Future, error) {
	return c.SendRecord(context.Background(), broker.Record{Topic: topic, Key: key, Value: value})
}

func (c *completingClient) SendRecord(_ context.Context, rec broker.Record) (*broker.Future, error) {
	c.inFlight = append(c.inFlight, testutil.ToFloat64(c.metrics.InFlight))
	f := broker.NewFuture()
	f.Complete(broker.Result{Record: rec})
	return f, nil
}

func (c *completingClient) Close() error { return nil }

func TestNew_InvalidArguments(t *testing.T) {
	t.Parallel()

	mem, err := broker.NewMemory(config.MemoryConfig{QueueSize: 1, Partitions: 1}, nil, nil)
	require.NoError(t, err)
	defer mem.Close()

	_, err = New(nil, topic, zap.NewNop(), nil, nil)
	assert.Error(t, err)
	_, err = New(mem, "", zap.NewNop(), nil, nil)
	assert.Error(t, err)
	_, err = New(mem, topic, nil, nil, nil)
	assert.Error(t, err)

	pub, err := New(mem, topic, zap.NewNop(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, topic, pub.Topic())
}

func TestPublish_SuccessIsLoggedWithPartitionAndOffset(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	event := sampleEvent(types.IntOf(123), types.EventTypeUpdate)

	future, err := f.pub.Publish(context.Background(), event)
	require.NoError(t, err)
	res := await(t, future)
	require.True(t, res.Succeeded())

	delivered := f.mem.Delivered(topic)
	require.Len(t, delivered, 1)
	key, err := pipeline.DecodeKey(delivered[0].Record.Key)
	require.NoError(t, err)
	assert.Equal(t, types.IntOf(123), key)

	decoded, err := pipeline.Decode(context.Background(), delivered[0].Record.Value)
	require.NoError(t, err)
	assert.Equal(t, event, decoded)

	entries := f.logs.FilterMessage("Message delivered").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "123", fields["key"])
	assert.Equal(t, string(delivered[0].Record.Value), fields["value"])
	assert.EqualValues(t, res.Partition, fields["partition"])
	assert.EqualValues(t, res.Offset, fields["offset"])

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DeliveriesTotal.WithLabelValues(obs.ResultSuccess)))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.InFlight))

	ended := f.spans.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "publisher.publish", ended[0].Name())
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
}

func TestPublish_NullIDSendsNilKey(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	future, err := f.pub.Publish(context.Background(), sampleEvent(types.NullInt{}, types.EventTypeNew))
	require.NoError(t, err)
	await(t, future)

	delivered := f.mem.Delivered(topic)
	require.Len(t, delivered, 1)
	assert.Nil(t, delivered[0].Record.Key)

	fields := f.logs.FilterMessage("Message delivered").All()[0].ContextMap()
	assert.Equal(t, "null", fields["key"])
}

func TestPublish_DeliveryFailureIsLoggedNotReturned(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	boom := errors.New("not enough replicas")
	f.mem.FailWith(func(broker.Record) error { return boom })

	future, err := f.pub.Publish(context.Background(), sampleEvent(types.IntOf(1), types.EventTypeUpdate))
	require.NoError(t, err)
	res := await(t, future)
	assert.ErrorIs(t, res.Err, boom)

	entries := f.logs.FilterMessage("Failed to deliver message").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "not enough replicas", entries[0].ContextMap()["error"])
	assert.Equal(t, 0, f.logs.FilterMessage("Message delivered").Len())

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.DeliveriesTotal.WithLabelValues(obs.ResultFailure)))
	assert.Equal(t, codes.Error, f.spans.Ended()[0].Status().Code)
}

func TestPublish_SerializationErrorIsSynchronous(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	future, err := f.pub.Publish(context.Background(), sampleEvent(types.IntOf(1), types.EventType("DELETE")))
	assert.Nil(t, future)

	var serr *pipeline.SerializationError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SerializationErrorsTotal))

	require.NoError(t, f.mem.Close())
	assert.Empty(t, f.mem.Delivered(topic))
}

func TestPublish_EnqueueErrorIsSynchronous(t *testing.T) {
	t.Parallel()

	full := errors.New("buffer full")
	f := newFixtureWithClient(t, refusingClient{err: full}, nil)

	for _, publish := range []func(context.Context, types.LibraryEvent) (*broker.Future, error){f.pub.Publish, f.pub.PublishRecord} {
		future, err := publish(context.Background(), sampleEvent(types.IntOf(1), types.EventTypeUpdate))
		assert.Nil(t, future)

		var eerr *EnqueueError
		require.ErrorAs(t, err, &eerr)
		assert.ErrorIs(t, err, full)
	}
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.EnqueueErrorsTotal))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.InFlight))
}

func TestPublish_ClosedClientIsEnqueueError(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	require.NoError(t, f.mem.Close())

	_, err := f.pub.Publish(context.Background(), sampleEvent(types.IntOf(1), types.EventTypeUpdate))
	var eerr *EnqueueError
	require.ErrorAs(t, err, &eerr)
	assert.ErrorIs(t, err, broker.ErrClientClosed)
}

func TestPublishAndPublishRecordAreEquivalent(t *testing.T) {
	t.Parallel()

	events := []types.LibraryEvent{
		sampleEvent(types.NullInt{}, types.EventTypeNew),
		sampleEvent(types.IntOf(123), types.EventTypeUpdate),
		sampleEvent(types.IntOf(-7), types.EventTypeNew),
	}

	for _, failing := range []bool{false, true} {
		f := newFixture(t)
		if failing {
			f.mem.FailWith(func(broker.Record) error { return errors.New("rejected") })
		}

		for _, event := range events {
			f1, err := f.pub.Publish(context.Background(), event)
			require.NoError(t, err)
			f2, err := f.pub.PublishRecord(context.Background(), event)
			require.NoError(t, err)

			r1, r2 := await(t, f1), await(t, f2)
			assert.Equal(t, r1.Succeeded(), r2.Succeeded())
			assert.Equal(t, !failing, r1.Succeeded())
			assert.Equal(t, r1.Record.Key, r2.Record.Key)
			assert.Equal(t, r1.Record.Value, r2.Record.Value)
			assert.Equal(t, r1.Record.Topic, r2.Record.Topic)
		}
	}
}

func TestPublish_InFlightCountsFromHandOff(t *testing.T) {
	t.Parallel()

	client := &completingClient{}
	f := newFixtureWithClient(t, client, nil)
	client.metrics = f.metrics

	for _, publish := range []func(context.Context, types.LibraryEvent) (*broker.Future, error){f.pub.Publish, f.pub.PublishRecord} {
		future, err := publish(context.Background(), sampleEvent(types.IntOf(9), types.EventTypeUpdate))
		require.NoError(t, err)
		assert.True(t, await(t, future).Succeeded())
	}

	assert.Equal(t, []float64{1, 1}, client.inFlight)
	assert.Equal(t, float64(0), testutil.ToFloat64(f.metrics.InFlight))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.metrics.DeliveriesTotal.WithLabelValues(obs.ResultSuccess)))
}
