// Package errors provides coded application errors and their HTTP mapping.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Code identifies an error category used for transport mapping and logging.
type Code string

const (
	ErrCodeValidation       Code = "VALIDATION_ERROR"
	ErrCodeUnauthenticated  Code = "UNAUTHENTICATED"
	ErrCodeForbidden        Code = "FORBIDDEN"
	ErrCodeNotFound         Code = "NOT_FOUND"
	ErrCodeAlreadyFinalized Code = "ALREADY_FINALIZED"
	ErrCodeConflict         Code = "CONFLICT"
	ErrCodeInternal         Code = "INTERNAL_ERROR"
)

// Error is a coded application error with an optional wrapped cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message, preserving the cause chain.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// NotFound creates a NOT_FOUND error for a named resource.
func NotFound(resource, id string) *Error {
	return Newf(ErrCodeNotFound, "%s not found: %s", resource, id)
}

// InvalidInput creates a VALIDATION_ERROR for a specific field.
func InvalidInput(field, message string) *Error {
	return Newf(ErrCodeValidation, "invalid %s: %s", field, message)
}

// Forbidden creates a FORBIDDEN error.
func Forbidden(message string) *Error {
	return New(ErrCodeForbidden, message)
}

// UserMessage returns the client-facing message for err: the coded message
// when present, otherwise err.Error().
func UserMessage(err error) string {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// CodeOf extracts the code from err, or ErrCodeInternal when err carries none.
func CodeOf(err error) Code {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return ErrCodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to the status code returned by the HTTP layer.
// AlreadyFinalized deliberately maps to 400: the client asked for an action
// the workflow can no longer accept, which is a bad request, not a conflict.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case ErrCodeValidation, ErrCodeAlreadyFinalized:
		return http.StatusBadRequest
	case ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
