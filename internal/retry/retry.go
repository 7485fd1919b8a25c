// Package retry provides retry logic with exponential backoff for startup operations.
// Event delivery is never retried through this package.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/config"
)

// Errors
var (
	// ErrMaxRetriesExceeded is returned when all retry attempts have been exhausted
	ErrMaxRetriesExceeded = errors.New("maximum retry attempts exceeded")
)

// DoWithRetry executes fn with retry logic according to the provided configuration.
// fn receives the zero-based attempt number.
// It returns ErrMaxRetriesExceeded wrapped with the last error if all retries fail.
func DoWithRetry(ctx context.Context, cfg *config.RetryConfig, fn func(attempt int) error) error {
	var err error

	// Loop through the retry attempts
	for i := range cfg.MaxAttempts + 1 {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Execute the function
		err = fn(i)
		if err == nil {
			return nil // Success
		}
		if IsPermanent(err) {
			return err
		}

		// If this was the last attempt, break the loop
		if i == cfg.MaxAttempts {
			break
		}

		// Calculate backoff delay for next retry
		delay := calculateBackoff(cfg, i)

		// Wait with context cancellation support
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
			// Continue to next retry
		}
	}

	// Return the error if all retries failed
	return errors.Join(ErrMaxRetriesExceeded, err)
}

// PermanentError marks an error that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return "permanent: " + e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so DoWithRetry stops at once and returns it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}

// calculateBackoff computes the backoff delay for a given attempt
func calculateBackoff(cfg *config.RetryConfig, attempt int) time.Duration {
	// Exponential backoff: baseDelay * (multiplier ^ attempt)
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Multiplier, float64(attempt))

	// Cap at MaxDelay
	if delay >= float64(cfg.MaxDelay) {
		return cfg.MaxDelay
	}
	return time.Duration(delay)
}
