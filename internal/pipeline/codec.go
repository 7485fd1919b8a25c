// Package pipeline implements the event stages ahead of dispatch: decode -> validate -> encode.
package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

// KeySize is the width of an encoded message key (a big-endian int32).
const KeySize = 4

// Encode marshals an event into its wire form: JSON including null fields.
// It returns a typed *SerializationError when the event holds a value JSON cannot represent,
// including strings that are not valid UTF-8.
func Encode(event types.LibraryEvent) ([]byte, error) {
	for field, s := range map[string]string{
		FieldBookName:   event.Book.BookName,
		FieldBookAuthor: event.Book.BookAuthor,
	} {
		if !utf8.ValidString(s) {
			return nil, &SerializationError{Err: fmt.Errorf("%s is not valid UTF-8", field)}
		}
	}

	value, err := json.Marshal(event)
	if err != nil {
		return nil, &SerializationError{Err: err}
	}
	return value, nil
}

// Decode unmarshals an event from the provided message value.
// It returns a typed *DecodeError for malformed JSON or invalid input.
func Decode(ctx context.Context, value []byte) (types.LibraryEvent, error) {
	if err := ctx.Err(); err != nil {
		return types.LibraryEvent{}, ErrContextCanceled
	}

	var event types.LibraryEvent
	if err := json.Unmarshal(value, &event); err != nil {
		// Preserve underlying error for errors.Is/As checks.
		return types.LibraryEvent{}, &DecodeError{Err: err}
	}

	// We again check for context cancellation to report if decoding canceled during the work.
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.LibraryEvent{}, ErrContextCanceled
	}

	return event, nil
}

// EncodeKey derives the partition key from an event identifier.
// An absent identifier yields a nil key so the broker picks the partition itself.
func EncodeKey(id types.NullInt) []byte {
	if !id.Valid {
		return nil
	}
	key := make([]byte, KeySize)
	binary.BigEndian.PutUint32(key, uint32(id.Int))
	return key
}

// DecodeKey is the inverse of EncodeKey.
func DecodeKey(key []byte) (types.NullInt, error) {
	if len(key) == 0 {
		return types.NullInt{}, nil
	}
	if len(key) != KeySize {
		return types.NullInt{}, &DecodeError{Err: fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))}
	}
	return types.IntOf(int32(binary.BigEndian.Uint32(key))), nil
}
