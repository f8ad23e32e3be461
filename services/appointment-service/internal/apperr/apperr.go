// Package apperr defines the coded errors surfaced to callers. Internal
// failures are wrapped once at the workflow or handler boundary; the code
// decides the HTTP status, the message is the only detail a caller sees.
package apperr

import "errors"

type Code string

const (
	CodeInvalidArgument    Code = "invalid-argument"
	CodeNotFound           Code = "not-found"
	CodeFailedPrecondition Code = "failed-precondition"
	CodeInternal           Code = "internal"
	CodeUnauthenticated    Code = "unauthenticated"
)

type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func InvalidArgument(msg string) *Error {
	return &Error{Code: CodeInvalidArgument, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Code: CodeNotFound, Message: msg}
}

func FailedPrecondition(msg string) *Error {
	return &Error{Code: CodeFailedPrecondition, Message: msg}
}

func Unauthenticated(msg string) *Error {
	return &Error{Code: CodeUnauthenticated, Message: msg}
}

// Internal wraps an internal cause behind a caller-safe message. The cause
// is kept for logging and errors.Is/As, never serialized.
func Internal(msg string, err error) *Error {
	return &Error{Code: CodeInternal, Message: msg, Err: err}
}

// CodeOf extracts the taxonomy code, defaulting to internal for plain
// errors that escaped without a code.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the coded message, or the fallback for uncoded errors
// so raw internal detail does not leak to callers.
func MessageOf(err error, fallback string) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return fallback
}
