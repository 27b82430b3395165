// Package domainerrors defines the coded error type returned across service
// boundaries. Transport layers translate the Code into a status and a
// client-visible reason string; the wrapped cause never leaves the process.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code is a stable, client-visible reason code.
type Code string

const (
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
	CodeValidation         Code = "validation_error"
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "ledger_unavailable"
	CodeRateLimited        Code = "rate_limited"

	// Verification
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeNoContactOnFile    Code = "no_contact_on_file"
	CodeNoActiveSession    Code = "no_active_session"
	CodeInvalidCode        Code = "invalid_code"
	CodeTooManyAttempts    Code = "too_many_attempts"

	// Voting
	CodeNotEligible      Code = "not_eligible"
	CodeAlreadyVoted     Code = "already_voted"
	CodeInvalidCandidate Code = "invalid_candidate"
)

// Error is a domain error with a reason code and an optional wrapped cause.
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

// Is matches another *Error by code so that package-level error values can be
// compared with errors.Is regardless of wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// New creates a domain error with the given code and message.
func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Err: err}
}

// Is reports whether err is a domain error carrying code.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// HasCode reports whether any error in err's chain is a domain error with code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the first domain error in err's chain, or
// CodeInternal when err carries none.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of err.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return "internal error"
}
