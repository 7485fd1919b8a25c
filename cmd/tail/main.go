// Command tail follows the library events topic and prints every decoded event as one JSON line.
// It is meant for checking what the gateway published against a real cluster.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/consumer"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/logger"
)

func main() {
	limit := flag.Int("n", 0, "Stop after this many events (0 = follow until interrupted)")
	flag.Parse()

	if err := run(*limit); err != nil {
		fmt.Fprintf(os.Stderr, "tail: %v\n", err)
		os.Exit(1)
	}
}

func run(limit int) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(cfg.Logging.Level, cfg.Service.Name+"-tail")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	tail, err := consumer.NewTail(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := tail.Close(); err != nil {
			log.Error("Failed to close tail", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan consumer.Message)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(lines)
		return tail.Run(gctx, func(ctx context.Context, msg consumer.Message) error {
			select {
			case lines <- msg:
				return nil
			case <-ctx.Done():
				return nil
			}
		})
	})

	g.Go(func() error {
		enc := json.NewEncoder(os.Stdout)
		seen := 0
		for msg := range lines {
			if err := enc.Encode(msg); err != nil {
				return fmt.Errorf("failed to write event: %w", err)
			}
			seen++
			if limit > 0 && seen >= limit {
				cancel()
			}
		}
		return nil
	})

	return g.Wait()
}
