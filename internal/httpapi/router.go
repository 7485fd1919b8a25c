package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

// EventPath is the resource both event operations are served on
const EventPath = "/libraryevent"

// NewRouter wires the handler behind request id, recovery, access log and CORS middleware
func NewRouter(handler *Handler, allowedOrigins []string, logger *zap.Logger) http.Handler {
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"Content-Type", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	})

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware(logger))
	r.Use(loggingMiddleware(logger))
	r.Use(c.Handler)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)
	r.Route("/v1", func(r chi.Router) {
		r.Post(EventPath, handler.createEvent)
		r.Put(EventPath, handler.updateEvent)
	})
	return r
}
