// Package apperr defines the error taxonomy shared by the HTTP handlers and
// the session middleware. Every Error carries a user-safe message; the
// wrapped cause is for server-side logs only.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies a failure and fixes its HTTP status.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindUnauthorized       Kind = "unauthorized"
	KindForbidden          Kind = "forbidden"
	KindConflict           Kind = "conflict"
	KindNotFound           Kind = "not_found"
	KindInternal           Kind = "internal_error"
)

// Status returns the HTTP status code for k.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials, KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return string(e.Kind) + ": " + e.Message + ": " + e.Err.Error()
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Status is shorthand for e.Kind.Status().
func (e *Error) Status() int { return e.Kind.Status() }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Message: "Invalid credentials"}
}

func Unauthorized(msg string) *Error { return &Error{Kind: KindUnauthorized, Message: msg} }

func Forbidden(msg string) *Error { return &Error{Kind: KindForbidden, Message: msg} }

func Conflict(msg string) *Error { return &Error{Kind: KindConflict, Message: msg} }

func NotFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

// Internal wraps an unexpected failure. The response only ever shows a
// generic message; op and err go to the log.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Message: "Internal server error", Err: opError{op: op, err: err}}
}

type opError struct {
	op  string
	err error
}

func (o opError) Error() string {
	if o.err == nil {
		return o.op
	}
	return o.op + ": " + o.err.Error()
}

func (o opError) Unwrap() error { return o.err }

// As extracts an *Error from err, classifying anything else as internal.
func As(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("unclassified", err)
}

// Is reports whether err is an *Error of kind k.
func Is(err error, k Kind) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == k
}
