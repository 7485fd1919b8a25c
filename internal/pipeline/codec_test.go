package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

func sampleEvent() types.LibraryEvent {
	return types.LibraryEvent{
		LibraryEventType: types.EventTypeNew,
		Book: types.Book{
			BookID:     types.IntOf(456),
			BookName:   "Kafka Streams",
			BookAuthor: "X",
		},
	}
}

func TestDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		ctx       context.Context
		value     []byte
		want      types.LibraryEvent
		wantIsErr bool
		wantAsDec bool
		wantErr   error
	}{
		{
			name:  "valid_json",
			ctx:   context.Background(),
			value: []byte(`{"libraryEventId":null,"libraryEventType":"NEW","book":{"bookId":456,"bookName":"Kafka Streams","bookAuthor":"X"}}`),
			want:  sampleEvent(),
		},
		{
			name:  "missing_fields_are_ok_in_decode",
			ctx:   context.Background(),
			value: []byte(`{}`),
			want:  types.LibraryEvent{},
		},
		{
			name:  "unknown_fields_are_ignored",
			ctx:   context.Background(),
			value: []byte(`{"libraryEventType":"UPDATE","extra":true}`),
			want:  types.LibraryEvent{LibraryEventType: types.EventTypeUpdate},
		},
		{
			name:      "invalid_json",
			ctx:       context.Background(),
			value:     []byte(`{"libraryEventId":`),
			wantIsErr: true,
			wantAsDec: true,
		},
		{
			name:      "wrong_id_type",
			ctx:       context.Background(),
			value:     []byte(`{"libraryEventId":"abc"}`),
			wantIsErr: true,
			wantAsDec: true,
		},
		{
			name:      "empty_payload_is_decode_error",
			ctx:       context.Background(),
			value:     []byte(``),
			wantIsErr: true,
			wantAsDec: true,
		},
		{
			name:      "context_canceled",
			ctx:       func() context.Context { c, cancel := context.WithCancel(context.Background()); cancel(); return c }(),
			value:     []byte(`{}`),
			wantIsErr: true,
			wantErr:   ErrContextCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Decode(tt.ctx, tt.value)
			if tt.wantIsErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected errors.Is(err, %v)=true; got err=%v", tt.wantErr, err)
				}
				if tt.wantAsDec {
					var de *DecodeError
					if !errors.As(err, &de) {
						t.Fatalf("expected error to be *DecodeError, got %T (%v)", err, err)
					}
				}
				return
			}

			if err != nil {
				t.Fatalf("expected nil error, got %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestEncodeIncludesNullFields(t *testing.T) {
	t.Parallel()

	got, err := Encode(sampleEvent())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	want := `{"libraryEventId":null,"libraryEventType":"NEW","book":{"bookId":456,"bookName":"Kafka Streams","bookAuthor":"X"}}`
	if string(got) != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestEncodeUnrepresentableIsSerializationError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*types.LibraryEvent)
	}{
		{name: "unknown_type", mutate: func(e *types.LibraryEvent) { e.LibraryEventType = "DELETE" }},
		{name: "invalid_utf8_name", mutate: func(e *types.LibraryEvent) { e.Book.BookName = "ab\xffcd" }},
		{name: "invalid_utf8_author", mutate: func(e *types.LibraryEvent) { e.Book.BookAuthor = "\xc3\x28" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			event := sampleEvent()
			event.LibraryEventID = types.IntOf(123)
			event.LibraryEventType = types.EventTypeUpdate
			tt.mutate(&event)

			value, err := Encode(event)
			var se *SerializationError
			if !errors.As(err, &se) {
				t.Fatalf("expected *SerializationError, got %T (%v)", err, err)
			}
			if value != nil {
				t.Fatalf("expected no value, got %s", value)
			}
		})
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	events := []types.LibraryEvent{
		sampleEvent(),
		{
			LibraryEventID:   types.IntOf(123),
			LibraryEventType: types.EventTypeUpdate,
			Book:             types.Book{BookID: types.IntOf(1), BookName: "Name", BookAuthor: "Author"},
		},
		{
			LibraryEventID:   types.IntOf(-2147483648),
			LibraryEventType: types.EventTypeUpdate,
			Book:             types.Book{BookID: types.IntOf(0), BookName: "Ünïcode \"quoted\"", BookAuthor: "<tag>&"},
		},
		{
			LibraryEventType: types.EventTypeNew,
			Book:             types.SentEmptyBook(),
		},
	}

	for _, event := range events {
		value, err := Encode(event)
		if err != nil {
			t.Fatalf("encode %+v: %v", event, err)
		}
		got, err := Decode(context.Background(), value)
		if err != nil {
			t.Fatalf("decode %s: %v", value, err)
		}
		if got != event {
			t.Fatalf("round trip mismatch: expected %+v, got %+v", event, got)
		}
	}
}

func TestKeyCodec(t *testing.T) {
	t.Parallel()

	if key := EncodeKey(types.NullInt{}); key != nil {
		t.Fatalf("expected nil key for absent id, got %v", key)
	}

	key := EncodeKey(types.IntOf(123))
	if len(key) != KeySize {
		t.Fatalf("expected %d byte key, got %d", KeySize, len(key))
	}
	if key[0] != 0 || key[1] != 0 || key[2] != 0 || key[3] != 123 {
		t.Fatalf("expected big-endian 123, got %v", key)
	}

	id, err := DecodeKey(key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != types.IntOf(123) {
		t.Fatalf("expected 123, got %v", id)
	}

	id, err = DecodeKey(nil)
	if err != nil || id.Valid {
		t.Fatalf("expected absent id for nil key, got %v (%v)", id, err)
	}

	if _, err := DecodeKey([]byte{1, 2}); err == nil {
		t.Fatal("expected error for short key")
	}
}
