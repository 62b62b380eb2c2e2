// Package apperr defines the uniform error envelope used across the
// agent execution core. Components here never know about HTTP status
// codes; adapters map Kind to a status at the boundary.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is one of the five error kinds the core recognizes (spec §7).
type Kind string

const (
	KindBadRequest    Kind = "bad_request"
	KindUnauthorized  Kind = "unauthorized"
	KindNotFound      Kind = "not_found"
	KindServerError   Kind = "server_error"
	KindValidation    Kind = "validation_error"
)

// Error is the concrete envelope wrapping a Kind, a message, and an
// optional underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func BadRequest(format string, args ...any) *Error {
	return New(KindBadRequest, fmt.Sprintf(format, args...))
}

func Unauthorized(format string, args ...any) *Error {
	return New(KindUnauthorized, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(KindNotFound, fmt.Sprintf(format, args...))
}

func ServerError(err error, format string, args ...any) *Error {
	return Wrap(KindServerError, fmt.Sprintf(format, args...), err)
}

func Validation(component, id, field string, err error) *Error {
	msg := fmt.Sprintf("%s '%s'", component, id)
	if field != "" {
		msg = fmt.Sprintf("%s: field '%s'", msg, field)
	}
	return Wrap(KindValidation, msg, err)
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the Kind carried by err, defaulting to KindServerError
// for errors that never went through this package — the conservative
// default for an HTTP adapter mapping an unexpected error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindServerError
}
