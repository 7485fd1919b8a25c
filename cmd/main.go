// Package main is the entry point for the library events gateway.
// The gateway accepts library events over HTTP and publishes them asynchronously
// to a partitioned Kafka topic keyed by event id, reporting each delivery outcome
// through logs, metrics and traces.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/broker"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/httpapi"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/logger"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/publisher"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "library events gateway: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Service.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := obs.NewTracerProvider(ctx, cfg.Tracing, cfg.Service.Name)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("Failed to shut down tracing", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := obs.NewMetrics(cfg.Service.Name, registry)

	if cfg.Broker.Driver == config.DriverKafka && cfg.Kafka.TopicAutoCreate {
		if err := broker.EnsureTopic(ctx, cfg, log); err != nil {
			return err
		}
	}

	client, err := broker.New(cfg, metrics, log)
	if err != nil {
		return fmt.Errorf("failed to create broker client: %w", err)
	}
	// Close flushes records still buffered after the API server stopped accepting requests
	defer func() {
		if err := client.Close(); err != nil {
			log.Error("Failed to close broker client", zap.Error(err))
		}
	}()

	pub, err := publisher.New(client, cfg.Kafka.Topic, log, metrics, obs.Tracer())
	if err != nil {
		return fmt.Errorf("failed to create publisher: %w", err)
	}

	handler, err := httpapi.NewHandler(pub, log, metrics)
	if err != nil {
		return fmt.Errorf("failed to create handler: %w", err)
	}
	router := httpapi.NewRouter(handler, cfg.HTTP.AllowedOrigins, log)

	log.Info("Library events gateway starting",
		zap.String("brokerDriver", cfg.Broker.Driver),
		zap.Strings("brokers", cfg.Kafka.Brokers),
		zap.String("topic", cfg.Kafka.Topic),
		zap.String("httpAddr", cfg.HTTP.Addr),
		zap.String("metricsPort", cfg.Metrics.Port),
		zap.Bool("tracing", cfg.Tracing.Enabled),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return obs.StartMetricsServer(gctx, cfg.Metrics.Port, registry, log)
	})
	g.Go(func() error {
		return httpapi.Serve(gctx, cfg.HTTP, router, log)
	})
	handler.SetReady(true)

	<-gctx.Done()
	handler.SetReady(false)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("Library events gateway stopped")
	return nil
}
