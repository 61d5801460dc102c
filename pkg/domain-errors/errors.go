// Package domainerrors defines the coded error type shared by services and
// transports. Stores return sentinel facts (pkg/platform/sentinel); services
// translate those into coded errors; transports map codes onto presentation.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code identifies a class of domain failure. Operators and handlers key
// remediation off these strings, so they are frozen once shipped.
type Code string

const (
	CodeValidation   Code = "validation_error"
	CodeInvalidInput Code = "invalid_input"
	CodeBadRequest   Code = "bad_request"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeTimeout      Code = "timeout"
	CodeInternal     Code = "internal_error"

	// CodeInvariantViolation marks a write the data-access layer refused
	// because it would break a compliance invariant (e.g. clearing the
	// anonymised flag on a subject).
	CodeInvariantViolation Code = "invariant_violation"

	// CodeInvalidTransition marks an erasure-request status change out of a
	// terminal state, or a decision that does not fit the request's tier.
	CodeInvalidTransition Code = "invalid_transition"

	// CodeImmutableAfterDecision marks a tier change attempted after the
	// request left pending.
	CodeImmutableAfterDecision Code = "immutable_after_decision"

	// CodeCollision marks an erasure-code assignment that found the code
	// already taken. It indicates a concurrency fault upstream and is
	// surfaced after a small bounded number of retries, never swallowed.
	CodeCollision Code = "code_collision"

	// CodeIsolationViolation marks an operation that would cross the
	// audit/primary store boundary.
	CodeIsolationViolation Code = "isolation_violation"
)

// Error is a coded error with optional structured fields for operator
// reporting. The zero value is not usable; construct via New or Wrap.
type Error struct {
	Code    Code
	Message string

	fields map[string]string
	cause  error
}

// New builds a coded error with no underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error. The cause stays
// reachable through errors.Is/errors.As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Add records a structured field on the error and returns it for chaining:
//
//	dErrors.New(dErrors.CodeInvalidTransition, "request already decided").
//		Add("current", string(cur)).Add("requested", string(to))
func (e *Error) Add(key, value string) *Error {
	if e.fields == nil {
		e.fields = make(map[string]string)
	}
	e.fields[key] = value
	return e
}

// Field returns a structured field previously attached with Add, or "".
func (e *Error) Field(key string) string { return e.fields[key] }

// Fields returns a copy of all structured fields.
func (e *Error) Fields() map[string]string {
	if len(e.fields) == 0 {
		return nil
	}
	out := make(map[string]string, len(e.fields))
	for k, v := range e.fields {
		out[k] = v
	}
	return out
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	for err != nil {
		var de *Error
		if errors.As(err, &de) {
			if de.Code == code {
				return true
			}
			err = de.cause
			continue
		}
		return false
	}
	return false
}

// Is is a readability alias for HasCode used at call sites that read like
// errors.Is.
func Is(err error, code Code) bool { return HasCode(err, code) }

// Load extracts the outermost coded error from a chain.
func Load(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}
