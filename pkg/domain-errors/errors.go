// Package dErrors provides coded domain errors. Services wrap infrastructure
// sentinels into coded errors; transport layers translate codes to HTTP
// statuses. Codes classify who can act on the failure: the caller
// (BadRequest/NotFound/Conflict), the catalog maintainers
// (InvariantViolation), or operations (Unavailable/Internal).
package dErrors

import (
	"errors"
	"fmt"
)

type Code string

const (
	// CodeBadRequest marks caller-correctable input errors. Never retried.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks references to entities that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks writes rejected to preserve ordering or uniqueness,
	// e.g. an overlapping rule-set publish or a stale reassessment commit.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks data-integrity defects in upstream data,
	// e.g. a range criterion pointed at a non-numeric profile field. These are
	// surfaced to catalog maintenance, never swallowed as ineligibility.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeUnavailable marks transient infrastructure failures eligible for
	// retry with backoff.
	CodeUnavailable Code = "unavailable"
	// CodeInternal marks unexpected failures.
	CodeInternal Code = "internal"
)

// Error carries a code, an operator-readable message, and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to err, preserving the cause chain for
// errors.Is / errors.As. Wrapping nil returns nil.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
		de = nil
	}
	return false
}

// Is is a readability alias used at call sites that check a single code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
