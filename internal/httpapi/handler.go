// Package httpapi exposes the library event endpoints over HTTP.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/broker"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/obs"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

// MaxBodyBytes bounds the size of an accepted request body
const MaxBodyBytes = 1 << 20

// Operation labels
const (
	OperationCreate = "create"
	OperationUpdate = "update"
)

// EventPublisher hands an event to the broker without waiting for delivery
type EventPublisher interface {
	Publish(ctx context.Context, event types.LibraryEvent) (*broker.Future, error)
}

// Handler serves the library event endpoints
type Handler struct {
	publisher EventPublisher
	logger    *zap.Logger
	metrics   *obs.Metrics
	ready     atomic.Bool
}

// NewHandler creates a handler; metrics may be nil
func NewHandler(publisher EventPublisher, logger *zap.Logger, metrics *obs.Metrics) (*Handler, error) {
	if publisher == nil {
		return nil, fmt.Errorf("publisher cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	return &Handler{publisher: publisher, logger: logger, metrics: metrics}, nil
}

// SetReady flips the readiness reported by /readyz
func (h *Handler) SetReady(ready bool) {
	h.ready.Store(ready)
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, _ *http.Request) {
	if !h.ready.Load() {
		writeText(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeText(w, http.StatusOK, "ready")
}

func (h *Handler) createEvent(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, OperationCreate, pipeline.ValidateForCreate)
}

func (h *Handler) updateEvent(w http.ResponseWriter, r *http.Request) {
	h.accept(w, r, OperationUpdate, pipeline.ValidateForUpdate)
}

// accept decodes, validates and publishes one event, then echoes it back.
// It answers once the event is handed off; delivery is reported asynchronously.
func (h *Handler) accept(w http.ResponseWriter, r *http.Request, operation string, validate func(types.LibraryEvent) error) {
	requestID := requestIDFromContext(r.Context())

	event, err := h.decode(w, r)
	if err != nil {
		h.metrics.IncrementValidationFailures(operation)
		status, body := mapDecodeError(err)
		writeText(w, status, body)
		return
	}

	if err := validate(event); err != nil {
		h.metrics.IncrementValidationFailures(operation)
		var verrs pipeline.ValidationErrors
		if errors.As(err, &verrs) {
			writeText(w, http.StatusBadRequest, verrs.Error())
			return
		}
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Debug("Publishing library event",
		zap.String("operation", operation),
		zap.Stringer("libraryEventId", event.LibraryEventID),
		zap.String("requestID", requestID),
	)

	if _, err := h.publisher.Publish(r.Context(), event); err != nil {
		status, body := mapPublishError(err)
		h.logger.Error("Failed to publish library event",
			zap.String("operation", operation),
			zap.Stringer("libraryEventId", event.LibraryEventID),
			zap.String("requestID", requestID),
			zap.Error(err),
		)
		writeText(w, status, body)
		return
	}
	h.metrics.IncrementEventsAccepted(operation)

	// Publish already encoded the event once, so this cannot fail
	payload, _ := pipeline.Encode(event)
	writeJSON(w, http.StatusCreated, payload)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request) (types.LibraryEvent, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		return types.LibraryEvent{}, err
	}
	if len(body) == 0 {
		return types.LibraryEvent{}, errEmptyBody
	}
	return pipeline.Decode(r.Context(), body)
}
