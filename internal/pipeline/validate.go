// Package pipeline implements the event stages ahead of dispatch: decode -> validate -> encode.
package pipeline

import (
	"strings"

	"github.com/Sheliakhin-Golang-portfolio/LibraryEvents/internal/types"
)

// Field names as they appear on the wire.
const (
	FieldLibraryEventID   = "libraryEventId"
	FieldLibraryEventType = "libraryEventType"
	FieldBook             = "book"
	FieldBookID           = "book.bookId"
	FieldBookName         = "book.bookName"
	FieldBookAuthor       = "book.bookAuthor"
)

// Rule messages.
const (
	ReasonNotNull        = "must not be null"
	ReasonNotBlank       = "must not be blank"
	ReasonUnknownType    = "must be one of [NEW, UPDATE]"
	ReasonIDMissing      = FieldLibraryEventID + " is missing"
	ReasonUpdateTypeOnly = "Only update event type is supported"
)

// ValidateForCreate checks the structure of an event: the type is known and the
// book is complete. It places no requirement on the event identifier.
// It returns ValidationErrors listing every violation, or nil.
func ValidateForCreate(event types.LibraryEvent) error {
	if errs := structural(event); len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidateForUpdate runs the structural checks plus the update rules.
// Both update rules are always evaluated so the caller learns about every defect at once.
func ValidateForUpdate(event types.LibraryEvent) error {
	errs := structural(event)

	if !event.LibraryEventID.Valid {
		errs = append(errs, &ValidationError{Field: FieldLibraryEventID, Reason: ReasonIDMissing})
	}
	if event.LibraryEventType != types.EventTypeUpdate {
		errs = append(errs, &ValidationError{Field: FieldLibraryEventType, Reason: ReasonUpdateTypeOnly})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func structural(event types.LibraryEvent) ValidationErrors {
	var errs ValidationErrors

	switch {
	case event.LibraryEventType == "":
		errs = append(errs, &ValidationError{Field: FieldLibraryEventType, Reason: ReasonNotNull})
	case !event.LibraryEventType.Valid():
		errs = append(errs, &ValidationError{Field: FieldLibraryEventType, Reason: ReasonUnknownType})
	}

	book := event.Book
	if book.IsZero() {
		return append(errs, &ValidationError{Field: FieldBook, Reason: ReasonNotNull})
	}
	if !book.BookID.Valid {
		errs = append(errs, &ValidationError{Field: FieldBookID, Reason: ReasonNotNull})
	}
	if strings.TrimSpace(book.BookName) == "" {
		errs = append(errs, &ValidationError{Field: FieldBookName, Reason: ReasonNotBlank})
	}
	if strings.TrimSpace(book.BookAuthor) == "" {
		errs = append(errs, &ValidationError{Field: FieldBookAuthor, Reason: ReasonNotBlank})
	}

	return errs
}
