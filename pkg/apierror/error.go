// Package apierror converts domain errors into JSON error envelopes.
package apierror

import (
	"encoding/json"
	"errors"
	"net/http"

	"cruzeta-api/internal/apperr"
)

// Error represents a structured API error response.
type Error struct {
	StatusCode int          `json:"-"`
	Code       string       `json:"code"`
	Message    string       `json:"message"`
	Details    []FieldError `json:"details,omitempty"`
}

// FieldError represents a validation error for a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

type envelope struct {
	Success bool   `json:"success"`
	Error   *Error `json:"error"`
}

// ToJSON converts the error to JSON bytes.
func (e *Error) ToJSON() []byte {
	data, _ := json.Marshal(envelope{Success: false, Error: e})
	return data
}

func newError(status int, code, message, fallback string) *Error {
	if message == "" {
		message = fallback
	}
	return &Error{StatusCode: status, Code: code, Message: message}
}

// BadRequest creates a 400 Bad Request error.
func BadRequest(message string) *Error {
	return newError(http.StatusBadRequest, "BAD_REQUEST", message, "Malformed request")
}

// ValidationError creates a 400 error with validation details.
func ValidationError(message string, details ...FieldError) *Error {
	e := newError(http.StatusBadRequest, "VALIDATION_ERROR", message, "Validation failed")
	e.Details = details
	return e
}

// Unauthorized creates a 401 Unauthorized error.
func Unauthorized(message string) *Error {
	return newError(http.StatusUnauthorized, "UNAUTHORIZED", message, "Authentication required")
}

// Forbidden creates a 403 Forbidden error.
func Forbidden(message string) *Error {
	return newError(http.StatusForbidden, "FORBIDDEN", message, "Access denied")
}

// NotFound creates a 404 Not Found error.
func NotFound(message string) *Error {
	return newError(http.StatusNotFound, "NOT_FOUND", message, "Resource not found")
}

// Conflict creates a 409 Conflict error with a specific code.
func Conflict(code, message string) *Error {
	return newError(http.StatusConflict, code, message, "Conflicting state")
}

// InternalError creates a 500 Internal Server Error.
func InternalError(message string) *Error {
	return newError(http.StatusInternalServerError, "INTERNAL_ERROR", message, "An unexpected error occurred")
}

// ServiceUnavailable creates a 503 Service Unavailable error.
func ServiceUnavailable(message string) *Error {
	return newError(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", message, "Service temporarily unavailable")
}

// FromError maps err to an API error. *Error values pass through, domain
// errors map by kind and anything else becomes a 500 that hides the cause.
func FromError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var domainErr *apperr.Error
	if !errors.As(err, &domainErr) {
		return InternalError("")
	}

	msg := domainErr.Error()
	switch domainErr.Kind {
	case apperr.KindNotFound:
		return NotFound(msg)
	case apperr.KindForbidden:
		return Forbidden(msg)
	case apperr.KindInvalidInput:
		return ValidationError("Validation failed", FieldError{Field: domainErr.Field, Message: domainErr.Message})
	case apperr.KindInvalidState:
		return Conflict("INVALID_STATE", msg)
	case apperr.KindInsufficientStock:
		return Conflict("INSUFFICIENT_STOCK", msg)
	case apperr.KindConflict:
		return Conflict("CONFLICT", msg)
	}
	return InternalError("")
}
