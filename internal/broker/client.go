package broker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
)

// ErrClientClosed is returned by sends issued after Close, and is the outcome of
// sends a closing client could not deliver.
var ErrClientClosed = errors.New("broker client is closed")

// Client is an asynchronous, concurrency-safe producer.
//
// Send and SendRecord return as soon as the record is handed off. They may block
// briefly for buffer space. A non-nil error means nothing was handed off.
// Records with the same key sent to the same topic are delivered in send order.
type Client interface {
	Send(ctx context.Context, topic string, key, value []byte) (*Future, error)
	SendRecord(ctx context.Context, rec Record) (*Future, error)
	// Close flushes pending records and releases resources.
	Close() error
}

// New builds the client selected by BROKER_DRIVER
func New(cfg *config.Config, metrics *obs.Metrics, logger *zap.Logger) (Client, error) {
	switch cfg.Broker.Driver {
	case config.DriverKafka:
		k, err := NewKafka(cfg, logger)
		if err != nil {
			return nil, err
		}
		return k, nil
	case config.DriverMemory:
		m, err := NewMemory(cfg.Memory, metrics, logger)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("unknown broker driver: %q", cfg.Broker.Driver)
	}
}
