package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
)

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory(config.MemoryConfig{QueueSize: 64, Partitions: 3}, nil, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func waitResult(t *testing.T, f *Future) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	res, err := f.Wait(ctx)
	require.NoError(t, err)
	return res
}

func TestNewMemory_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewMemory(config.MemoryConfig{QueueSize: 0, Partitions: 1}, nil, nil)
	assert.Error(t, err)
	_, err = NewMemory(config.MemoryConfig{QueueSize: 1, Partitions: 0}, nil, nil)
	assert.Error(t, err)
}

func TestMemory_SameKeyKeepsOrderOnOnePartition(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	ctx := context.Background()
	key := []byte{0, 0, 0, 123}

	var futures []*Future
	for _, v := range []string{"a", "b", "c", "d"} {
		f, err := m.Send(ctx, "events", key, []byte(v))
		require.NoError(t, err)
		futures = append(futures, f)
	}

	var partition int
	for i, f := range futures {
		res := waitResult(t, f)
		require.True(t, res.Succeeded())
		if i == 0 {
			partition = res.Partition
		}
		assert.Equal(t, partition, res.Partition)
		assert.Equal(t, int64(i), res.Offset)
	}

	log := m.Partition("events", partition)
	require.Len(t, log, 4)
	for i, v := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, v, string(log[i].Record.Value))
	}
}

func TestMemory_SendAndSendRecordAreEquivalent(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	ctx := context.Background()
	key := []byte{0, 0, 0, 7}

	f1, err := m.Send(ctx, "events", key, []byte("v"))
	require.NoError(t, err)
	f2, err := m.SendRecord(ctx, Record{Topic: "events", Key: key, Value: []byte("v")})
	require.NoError(t, err)

	r1, r2 := waitResult(t, f1), waitResult(t, f2)
	assert.Equal(t, r1.Record, r2.Record)
	assert.Equal(t, r1.Partition, r2.Partition)
	assert.Len(t, m.Delivered("events"), 2)
}

func TestMemory_FailureInjection(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	boom := errors.New("not leader for partition")
	m.FailWith(func(Record) error { return boom })

	f, err := m.Send(context.Background(), "events", nil, []byte("v"))
	require.NoError(t, err)

	res := waitResult(t, f)
	assert.ErrorIs(t, res.Err, boom)
	assert.Empty(t, m.Delivered("events"))

	m.FailWith(nil)
	f, err = m.Send(context.Background(), "events", nil, []byte("v"))
	require.NoError(t, err)
	assert.True(t, waitResult(t, f).Succeeded())
}

func TestMemory_CloseFlushesAndRefuses(t *testing.T) {
	t.Parallel()

	m, err := NewMemory(config.MemoryConfig{QueueSize: 16, Partitions: 1}, nil, zap.NewNop())
	require.NoError(t, err)

	var futures []*Future
	for range 10 {
		f, err := m.Send(context.Background(), "events", nil, []byte("v"))
		require.NoError(t, err)
		futures = append(futures, f)
	}

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	for _, f := range futures {
		res, ok := f.Result()
		require.True(t, ok, "future left pending after Close")
		assert.True(t, res.Succeeded())
	}

	_, err = m.Send(context.Background(), "events", nil, []byte("v"))
	assert.ErrorIs(t, err, ErrClientClosed)
}

func TestMemory_UnknownTopicIsEmpty(t *testing.T) {
	t.Parallel()

	m := newTestMemory(t)
	assert.Empty(t, m.Delivered("nope"))
	assert.Nil(t, m.Partition("nope", 0))
}

func TestNew_SelectsDriver(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{
		Broker: config.BrokerConfig{Driver: config.DriverMemory},
		Memory: config.MemoryConfig{QueueSize: 1, Partitions: 1},
	}
	client, err := New(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, client)
	require.NoError(t, client.Close())

	cfg.Broker.Driver = "carrier-pigeon"
	_, err = New(cfg, nil, zap.NewNop())
	assert.Error(t, err)
}
