package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
)

// ShutdownTimeout bounds how long in-flight requests may take to finish on shutdown
const ShutdownTimeout = 10 * time.Second

// Serve runs the API server until ctx is cancelled, then shuts it down gracefully
func Serve(ctx context.Context, cfg config.HTTPConfig, handler http.Handler, logger *zap.Logger) error {
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting API server",
			zap.String("address", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down API server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down API server", zap.Error(err))
			return fmt.Errorf("error shutting down API server: %w", err)
		}
		logger.Info("API server stopped gracefully")
		return nil
	case err := <-serverErr:
		return fmt.Errorf("API server error: %w", err)
	}
}
