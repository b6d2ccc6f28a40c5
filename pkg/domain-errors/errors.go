// Package domainerrors defines the stable error vocabulary of the service.
// Callers branch on Code, never on error strings, so storage-level failures
// can be wrapped without leaking driver details to clients.
package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP translation.
type Code string

const (
	// CodeValidation marks malformed or out-of-range input caught before
	// touching the store.
	CodeValidation Code = "validation"
	// CodeNotFound marks a referenced id or lookup code that does not resolve.
	CodeNotFound Code = "not_found"
	// CodeConsistency marks a write that would break a structural invariant.
	CodeConsistency Code = "consistency_violation"
	// CodeConflict marks a uniqueness violation (duplicate plan, consumed plan).
	CodeConflict Code = "conflict"
	// CodeConfiguration marks a missing lookup/status row. This is a
	// deployment defect, not a user error.
	CodeConfiguration Code = "configuration"
	// CodeInternal marks store faults and other non-user failures.
	CodeInternal Code = "internal"
	// CodeTimeout marks a transaction aborted by context cancellation.
	CodeTimeout Code = "timeout"
)

// Error carries a code, a human message, and optionally the name of the
// violated database constraint.
type Error struct {
	Code       Code
	Message    string
	Constraint string
	cause      error
}

func (e *Error) Error() string {
	if e.Constraint != "" {
		return fmt.Sprintf("%s: %s (constraint %s)", e.Code, e.Message, e.Constraint)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New creates an error with the given code.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates an error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// WithConstraint returns a copy of the error naming the violated constraint.
func (e *Error) WithConstraint(name string) *Error {
	clone := *e
	clone.Constraint = name
	return &clone
}

// Is reports whether err (or anything it wraps) carries the given code.
func Is(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// ConstraintOf returns the violated constraint name, if any.
func ConstraintOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Constraint
	}
	return ""
}

// CodeOf returns the code of err, defaulting to CodeInternal for plain errors.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps codes onto HTTP statuses for the transport layer.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConsistency, CodeConflict:
		return http.StatusConflict
	case CodeConfiguration:
		return http.StatusInternalServerError
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
