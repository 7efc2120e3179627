// Package apperr defines the typed, recoverable errors returned by the
// inventory, request and audit components.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can react without parsing messages.
type Kind string

const (
	KindNotFound          Kind = "not_found"
	KindInvalidState      Kind = "invalid_state"
	KindForbidden         Kind = "forbidden"
	KindInvalidInput      Kind = "invalid_input"
	KindInsufficientStock Kind = "insufficient_stock"
	KindConflict          Kind = "conflict"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidState      = &Error{Kind: KindInvalidState}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrInvalidInput      = &Error{Kind: KindInvalidInput}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock}
	ErrConflict          = &Error{Kind: KindConflict}
)

// Error carries the kind plus enough context (entity, id, field) for a
// caller to build a user facing message.
type Error struct {
	Kind    Kind
	Entity  string
	ID      int64
	Field   string
	Message string
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	switch {
	case e.Entity != "" && e.ID != 0:
		return fmt.Sprintf("%s %d: %s", e.Entity, e.ID, msg)
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, msg)
	default:
		return msg
	}
}

// Is matches on kind only, so errors.Is(err, ErrConflict) works for any
// conflict regardless of entity.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// NotFound reports an unknown entity id.
func NotFound(entity string, id int64) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, ID: id, Message: "not found"}
}

// InvalidState reports a transition attempted from a non-permitted state.
func InvalidState(entity string, id int64, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidState, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// Forbidden reports a missing capability.
func Forbidden(format string, args ...any) *Error {
	return &Error{Kind: KindForbidden, Message: fmt.Sprintf(format, args...)}
}

// InvalidInput reports a field that failed validation.
func InvalidInput(field, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidInput, Field: field, Message: fmt.Sprintf(format, args...)}
}

// InsufficientStock reports an adjustment that would drive quantity negative.
func InsufficientStock(itemID int64, current, delta int) *Error {
	return &Error{
		Kind:    KindInsufficientStock,
		Entity:  "item",
		ID:      itemID,
		Message: fmt.Sprintf("adjustment %d would leave %d on hand", delta, current+delta),
	}
}

// Conflict reports a concurrent mutation detected on the same entity.
func Conflict(entity string, id int64, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Entity: entity, ID: id, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
