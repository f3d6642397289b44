// Package domainerrors provides coded errors for domain and service layers.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing infrastructure
// facts; services translate those into coded errors that carry enough context for
// transport layers to map onto a wire status without inspecting error strings.
//
// Usage:
//
//	return dErrors.New(dErrors.CodeNotFound, "form not found")
//	return dErrors.Wrap(err, dErrors.CodeInternal, "load contributor stats")
//	if dErrors.Is(err, dErrors.CodeInvalidState) { ... }
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for callers and transport mapping.
type Code string

const (
	// CodeValidation marks malformed input caught before persistence.
	CodeValidation Code = "validation_error"
	// CodeBadRequest marks a structurally broken request (unparseable body, absent fields).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput marks a well-formed value that fails domain parsing (ids, enums).
	CodeInvalidInput Code = "invalid_input"
	// CodeNotFound marks a referenced entity that does not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks a lost concurrent-modification race.
	CodeConflict Code = "conflict"
	// CodeDuplicate marks a high-confidence duplicate submission; callers may override.
	CodeDuplicate Code = "duplicate_detected"
	// CodeInvalidState marks an operation illegal for the entity's lifecycle state.
	CodeInvalidState Code = "invalid_state"
	// CodeRateLimited marks a caller exceeding a submission window.
	CodeRateLimited Code = "rate_limited"
	// CodeUnauthorized marks missing or unusable caller identity.
	CodeUnauthorized Code = "unauthorized"
	// CodeForbidden marks a caller lacking the role an operation requires.
	CodeForbidden Code = "forbidden"
	// CodeTimeout marks an operation that exceeded its deadline.
	CodeTimeout Code = "timeout"
	// CodeInternal marks unexpected infrastructure failure; details stay server-side.
	CodeInternal Code = "internal_error"
	// CodeInvariantViolation marks a broken domain invariant; a bug, not bad input.
	CodeInvariantViolation Code = "invariant_violation"
)

// Error is a coded domain error. It optionally wraps a cause, which stays
// available to errors.Is/As but is never serialized to clients.
type Error struct {
	Code    Code
	Message string
	cause   error
}

// New creates a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
// A nil err yields nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

// Unwrap exposes the cause to the errors package.
func (e *Error) Unwrap() error {
	return e.cause
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.cause
	}
	return false
}

// Is is shorthand for HasCode for call sites that read better as a predicate.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf extracts the outermost code in the chain, defaulting to CodeInternal
// so unclassified failures never leak a permissive status.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
