// Package types defines shared types used across the application
package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// EventType discriminates the operations a library event may describe
type EventType string

const (
	EventTypeNew    EventType = "NEW"
	EventTypeUpdate EventType = "UPDATE"
)

// Valid reports whether t is one of the known event types
func (t EventType) Valid() bool {
	return t == EventTypeNew || t == EventTypeUpdate
}

// MarshalJSON encodes an empty type as null and rejects unknown types.
func (t EventType) MarshalJSON() ([]byte, error) {
	if t == "" {
		return []byte("null"), nil
	}
	if !t.Valid() {
		return nil, fmt.Errorf("unknown event type %q", string(t))
	}
	return json.Marshal(string(t))
}

// UnmarshalJSON accepts any string; membership is checked by validation.
func (t *EventType) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = EventType(s)
	return nil
}

// NullInt is a 32-bit integer that may be absent.
// It is comparable, so values holding it keep field-wise equality.
type NullInt struct {
	Int   int32
	Valid bool
}

// IntOf returns a present NullInt holding v
func IntOf(v int32) NullInt {
	return NullInt{Int: v, Valid: true}
}

func (n NullInt) String() string {
	if !n.Valid {
		return "null"
	}
	return strconv.FormatInt(int64(n.Int), 10)
}

func (n NullInt) MarshalJSON() ([]byte, error) {
	if !n.Valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(int64(n.Int), 10)), nil
}

func (n *NullInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*n = NullInt{}
		return nil
	}
	var v int32
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*n = IntOf(v)
	return nil
}

// Book is the payload carried by a library event
type Book struct {
	BookID     NullInt `json:"bookId"`
	BookName   string  `json:"bookName"`
	BookAuthor string  `json:"bookAuthor"`

	// sent marks an object that was on the wire with every field empty.
	// Books with any field set leave it false, so decoded and literal books compare equal.
	sent bool
}

// SentEmptyBook returns the book decoded from an object with no usable fields, such as {}
func SentEmptyBook() Book {
	return Book{sent: true}
}

// IsZero reports whether the book is absent
func (b Book) IsZero() bool {
	return b == Book{}
}

// MarshalJSON encodes an absent book as null.
func (b Book) MarshalJSON() ([]byte, error) {
	if b.IsZero() {
		return []byte("null"), nil
	}
	type plain Book
	return json.Marshal(plain(b))
}

// UnmarshalJSON decodes null as an absent book and any object as a present one.
func (b *Book) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*b = Book{}
		return nil
	}
	type plain Book
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = Book(p)
	b.sent = *b == Book{}
	return nil
}

// LibraryEvent is the unit of work accepted by the gateway and published to the broker.
// It is a value type: copies are independent and == compares field by field.
type LibraryEvent struct {
	LibraryEventID   NullInt   `json:"libraryEventId"`
	LibraryEventType EventType `json:"libraryEventType"`
	Book             Book      `json:"book"`
}
