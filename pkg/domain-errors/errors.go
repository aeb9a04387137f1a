// Package dErrors provides coded domain errors shared across services.
//
// Services wrap lower-level failures with a code so transport layers can map
// them to HTTP statuses without inspecting error strings. Codes are part of
// the service contract; messages are advisory.
package dErrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation marks malformed input rejected before any write.
	CodeValidation Code = "validation"
	// CodeBadRequest marks requests that cannot be decoded or prepared.
	CodeBadRequest Code = "bad_request"
	// CodeUnauthorized marks requests with no usable principal.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks requests denied by the access decision point.
	CodeForbidden Code = "forbidden"
	// CodeNotFound marks lookups of records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeUnavailable marks store timeouts; callers may retry.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks store or infrastructure failures.
	CodeInternal Code = "internal_error"
)

// Error is a coded domain error. Use New or Wrap to construct one.
type Error struct {
	code Code
	msg  string
	err  error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.err)
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

// Code returns the classification of this error.
func (e *Error) Code() Code { return e.code }

// Message returns the safe, caller-facing description.
func (e *Error) Message() string { return e.msg }

// New creates a coded error with no cause.
func New(code Code, msg string) error {
	return &Error{code: code, msg: msg}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message. Returns nil if err is nil.
// If err already carries a code, the outer code wins; the cause is preserved
// for errors.Is/errors.As.
func Wrap(err error, code Code, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{code: code, msg: msg, err: err}
}

// CodeOf extracts the code from err, walking the wrap chain.
// Unclassified errors report CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.code
	}
	return CodeInternal
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
