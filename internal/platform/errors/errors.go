// Package errors maps failures onto structured HTTP error responses.
package errors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pscheid92/screensync/internal/domain"
)

// ErrorType is the category reported to clients and used as the metrics label.
type ErrorType string

const (
	TypeValidation ErrorType = "validation" // 400
	TypeNotFound   ErrorType = "not_found"  // 404
	TypeConflict   ErrorType = "conflict"   // 409
	TypeInternal   ErrorType = "internal"   // 500
	TypeExternal   ErrorType = "external"   // 502
	TypeOverloaded ErrorType = "overloaded" // 503
)

// Error is a failure with a client-facing message and optional context fields.
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]any
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the response code for the error type.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeValidation:
		return http.StatusBadRequest
	case TypeNotFound:
		return http.StatusNotFound
	case TypeConflict:
		return http.StatusConflict
	case TypeExternal:
		return http.StatusBadGateway
	case TypeOverloaded:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func newError(t ErrorType, message string, cause error) *Error {
	return &Error{Type: t, Message: message, Cause: cause, Context: make(map[string]any)}
}

func ValidationError(message string) *Error { return newError(TypeValidation, message, nil) }
func NotFoundError(message string) *Error   { return newError(TypeNotFound, message, nil) }
func ConflictError(message string) *Error   { return newError(TypeConflict, message, nil) }
func OverloadedError(message string) *Error { return newError(TypeOverloaded, message, nil) }

func InternalError(message string, cause error) *Error {
	return newError(TypeInternal, message, cause)
}

func ExternalError(message string, cause error) *Error {
	return newError(TypeExternal, message, cause)
}

// WithContext adds a context field (chainable).
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// ErrorResponse is the JSON body sent to clients.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    ErrorType      `json:"type"`
	Context map[string]any `json:"context,omitempty"`
}

func (e *Error) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Type:    e.Type,
		Context: e.Context,
	}
}

// AsStructuredError converts any error into an *Error. Domain sentinels map
// to their natural type; anything unrecognised becomes an internal error.
func AsStructuredError(err error) *Error {
	if err == nil {
		return nil
	}

	var structuredErr *Error
	if errors.As(err, &structuredErr) {
		return structuredErr
	}

	switch {
	case errors.Is(err, domain.ErrNoContent):
		return NotFoundError("no content available").WithCauseOf(err)
	case errors.Is(err, domain.ErrScreenNotFound):
		return NotFoundError("screen not found").WithCauseOf(err)
	case errors.Is(err, domain.ErrPlaylistNotFound):
		return NotFoundError("playlist not found").WithCauseOf(err)
	case errors.Is(err, domain.ErrMalformedMessage):
		return ValidationError("malformed message").WithCauseOf(err)
	}

	return InternalError("internal server error", err)
}

// WithCauseOf attaches err as the underlying cause (chainable).
func (e *Error) WithCauseOf(err error) *Error {
	e.Cause = err
	return e
}
