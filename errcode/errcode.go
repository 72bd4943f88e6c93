// Package errcode defines the fixed error taxonomy surfaced across the
// bridge boundary and the mapping from the engines' typed errors onto it.
package errcode

import (
	"context"
	"errors"
)

// Code is an outward-facing error code. The set is fixed; bridge layers
// serialize codes verbatim and must not invent new ones.
type Code string

const (
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeRateLimit    Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal     Code = "INTERNAL_SERVER_ERROR"
	CodeUnavailable  Code = "SERVICE_UNAVAILABLE"
	CodeNetwork      Code = "NETWORK_ERROR"
	CodeTimeout      Code = "TIMEOUT"
)

// allCodes is the closed set of valid codes.
var allCodes = map[Code]struct{}{
	CodeBadRequest:   {},
	CodeUnauthorized: {},
	CodeForbidden:    {},
	CodeNotFound:     {},
	CodeValidation:   {},
	CodeRateLimit:    {},
	CodeInternal:     {},
	CodeUnavailable:  {},
	CodeNetwork:      {},
	CodeTimeout:      {},
}

// Valid reports whether c is a recognized error code.
func Valid(c Code) bool {
	_, ok := allCodes[c]
	return ok
}

// Coder is implemented by errors that know their outward code.
// Engine error types implement this so FromError does not need to
// enumerate every sentinel in every package.
type Coder interface {
	ErrorCode() Code
}

// Error pairs an outward code with a message. It is the shape bridge
// layers serialize; Unwrap preserves errors.Is matching on the cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error with the given code, keeping err as the cause.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Cause: err}
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// ErrorCode implements Coder.
func (e *Error) ErrorCode() Code {
	return e.Code
}

// FromError maps any error onto the outward taxonomy.
// A nil error maps to the empty code. Errors implementing Coder win;
// context cancellation and deadline errors map to TIMEOUT; everything
// else is INTERNAL_SERVER_ERROR.
func FromError(err error) Code {
	if err == nil {
		return ""
	}

	var coder Coder
	if errors.As(err, &coder) {
		if c := coder.ErrorCode(); Valid(c) {
			return c
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CodeBadRequest
	}

	return CodeInternal
}
