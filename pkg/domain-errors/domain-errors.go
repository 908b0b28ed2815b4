// Package domainerrors defines the error vocabulary shared by the presence
// client, the simulator, and their stores. Callers branch on stable codes
// instead of matching message strings or transport status values.
package domainerrors

import "errors"

// Code classifies a failure in business terms. Codes survive the trip
// through the REST envelope and the websocket close frame, so their string
// values are part of the wire contract.
type Code string

const (
	// Input and lookup failures surfaced to the console operator.
	CodeNotFound     Code = "not_found"
	CodeBadRequest   Code = "bad_request"
	CodeInvalidInput Code = "invalid_input"
	CodeValidation   Code = "validation_failed"
	CodeConflict     Code = "conflict"

	// Credential failures. CodeUnauthorized marks an expired or invalid
	// admin token and trips the session-expiry path on the client.
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"

	// Infrastructure failures.
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "unavailable"
	CodeInternal           Code = "internal_error"
	CodeInvariantViolation Code = "invariant_violation"
)

// Error carries a Code alongside the usual message and cause. It is the
// only error type the service and handler layers inspect.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches two domain errors by code, so errors.Is(err, New(CodeNotFound, ""))
// works regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New builds a domain error from a code and message.
func New(code Code, msg string) error {
	return &Error{Code: code, Message: msg}
}

// Wrap attaches a code and message to an underlying error. When err is
// already a domain error its code wins; the classification made closest to
// the failure is the most specific one.
func Wrap(err error, code Code, msg string) error {
	var existing *Error
	if errors.As(err, &existing) {
		return &Error{Code: existing.Code, Message: msg, Err: err}
	}
	return &Error{Code: code, Message: msg, Err: err}
}

// HasCode reports whether err is (or wraps) a domain error with the given code.
func HasCode(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}
