// Package pipeline implements the event stages ahead of dispatch: decode -> validate -> encode.
package pipeline

import (
	"errors"
	"slices"
	"strings"
)

// Common pipeline errors.
var (
	// ErrContextCanceled indicates the caller's context was canceled.
	// Stages may return this error directly (or wrapped) when ctx.Done() is signaled.
	ErrContextCanceled = errors.New("context canceled")
)

// DecodeError represents a failure in the decode stage.
// It wraps the underlying decoder/unmarshal error.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	if e == nil || e.Err == nil {
		return "decode failed"
	}
	return "decode failed: " + e.Err.Error()
}

// Unwrap returns the underlying error.
// This is useful for error chaining and propagation.
func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError represents a single violated rule.
// Field is the name of the invalid field; Reason describes why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	errMsg := "validation failed"
	if e != nil && e.Field != "" {
		errMsg += ": " + e.Field
	}
	if e != nil && e.Reason != "" {
		errMsg += ": " + e.Reason
	}
	return errMsg
}

// Pair renders the violation as "field - reason".
func (e *ValidationError) Pair() string {
	return e.Field + " - " + e.Reason
}

// ValidationErrors collects every rule an event violated.
type ValidationErrors []*ValidationError

// Error lists each "field - reason" pair, sorted lexicographically and comma-joined.
func (e ValidationErrors) Error() string {
	pairs := make([]string, 0, len(e))
	for _, v := range e {
		pairs = append(pairs, v.Pair())
	}
	slices.Sort(pairs)
	return strings.Join(pairs, ",")
}

// Has reports whether a violation was recorded for field.
func (e ValidationErrors) Has(field string) bool {
	return slices.ContainsFunc(e, func(v *ValidationError) bool { return v.Field == field })
}

// SerializationError represents a failure to encode an event for the wire.
// No message is sent when it is returned.
type SerializationError struct {
	Err error
}

func (e *SerializationError) Error() string {
	if e == nil || e.Err == nil {
		return "serialization failed"
	}
	return "serialization failed: " + e.Err.Error()
}

func (e *SerializationError) Unwrap() error { return e.Err }
