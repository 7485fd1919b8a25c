package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strconv"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/pipeline"
	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/publisher"
)

const fieldBody = "body"

var errEmptyBody = errors.New("empty request body")

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func writeJSON(w http.ResponseWriter, status int, payload []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// mapDecodeError renders a body that could not be decoded as a "field - message" pair
func mapDecodeError(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge, fieldBody + " - must not exceed " + formatBytes(tooLarge.Limit)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return http.StatusBadRequest, typeErr.Field + " - must be " + describeType(typeErr.Type)
	}

	if errors.Is(err, errEmptyBody) {
		return http.StatusBadRequest, fieldBody + " - must not be empty"
	}
	return http.StatusBadRequest, fieldBody + " - malformed request body"
}

func describeType(t reflect.Type) string {
	if t == nil {
		return "a valid value"
	}
	switch t.Kind() {
	case reflect.Int32:
		return "a 32-bit integer"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.String:
		return "a string"
	case reflect.Struct, reflect.Map:
		return "an object"
	default:
		return "a valid " + t.Kind().String()
	}
}

func formatBytes(n int64) string {
	const unit = 1 << 10
	switch {
	case n >= unit*unit && n%(unit*unit) == 0:
		return strconv.FormatInt(n/(unit*unit), 10) + "MB"
	case n >= unit && n%unit == 0:
		return strconv.FormatInt(n/unit, 10) + "KB"
	default:
		return strconv.FormatInt(n, 10) + " bytes"
	}
}

// mapPublishError maps a synchronous publish failure to a status and body
func mapPublishError(err error) (int, string) {
	var serr *pipeline.SerializationError
	var eerr *publisher.EnqueueError
	switch {
	case errors.As(err, &serr):
		return http.StatusInternalServerError, "event could not be serialized"
	case errors.As(err, &eerr):
		return http.StatusServiceUnavailable, "event could not be queued for delivery, try again later"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
