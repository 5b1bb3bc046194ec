/*
Package errs provides the client-side error taxonomy.

This file defines the ClientError struct, which implements the standard Go
error interface and carries a failure-class code so callers can distinguish
fatal session errors (invalid credentials, kicked off) from per-call errors
(not connected) without string matching.
*/
package errs

import (
	"errors"
	"fmt"
)

// ClientError is the error type used throughout the client. Two ClientError
// values match under errors.Is when their codes are equal, regardless of the
// wrapped cause.
type ClientError struct {
	// Code is the failure-class code (see constants definition).
	Code int

	// Message is the human-readable error description.
	Message string

	cause error
}

// Error implements the standard Go error interface.
func (e *ClientError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("error code %d: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("error code %d: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is / errors.As chains.
func (e *ClientError) Unwrap() error {
	return e.cause
}

// Is matches two ClientError values by code.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	return ok && t.Code == e.Code
}

// New constructs a ClientError from a predefined code. Unknown codes fall
// back to ErrUnknown rather than panicking.
func New(code int) *ClientError {
	template, ok := errorMap[code]
	if !ok {
		template = errorMap[ErrUnknown]
	}
	return &ClientError{Code: template.Code, Message: template.Message}
}

// Wrap constructs a ClientError from a predefined code with an underlying
// cause attached.
func Wrap(code int, cause error) *ClientError {
	e := New(code)
	e.cause = cause
	return e
}

// Is reports whether err carries the given failure-class code anywhere in
// its chain.
func Is(err error, code int) bool {
	var ce *ClientError
	return errors.As(err, &ce) && ce.Code == code
}
