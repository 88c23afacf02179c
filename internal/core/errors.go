package core

import (
	"errors"
	"fmt"
)

// ErrorKind is the stable semantic label attached to every error this
// package raises.
type ErrorKind string

const (
	KindValidation  ErrorKind = "validation"
	KindAuth        ErrorKind = "auth"
	KindPermission  ErrorKind = "permission"
	KindNotFound    ErrorKind = "not_found"
	KindConflict    ErrorKind = "conflict"
	KindRateLimit   ErrorKind = "rate_limit"
	KindServer      ErrorKind = "server"
	KindUnavailable ErrorKind = "unavailable"
	KindUnknown     ErrorKind = "unknown"
)

// Sentinel errors, one per kind. *Error matches its kind's sentinel with
// errors.Is.
var (
	ErrValidation  = errors.New("validation error")
	ErrAuth        = errors.New("authentication failed")
	ErrPermission  = errors.New("permission denied")
	ErrNotFound    = errors.New("resource not found")
	ErrConflict    = errors.New("conflict")
	ErrRateLimit   = errors.New("rate limit exceeded")
	ErrServer      = errors.New("server error")
	ErrUnavailable = errors.New("service unavailable")
	ErrUnknown     = errors.New("unknown error")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:  ErrValidation,
	KindAuth:        ErrAuth,
	KindPermission:  ErrPermission,
	KindNotFound:    ErrNotFound,
	KindConflict:    ErrConflict,
	KindRateLimit:   ErrRateLimit,
	KindServer:      ErrServer,
	KindUnavailable: ErrUnavailable,
	KindUnknown:     ErrUnknown,
}

// defaultMessages is the last fallback when neither the server nor the
// transport supplied a message.
var defaultMessages = map[ErrorKind]string{
	KindValidation:  "The request contained invalid data",
	KindAuth:        "Authentication failed, check the username and app password",
	KindPermission:  "You do not have permission to perform this action",
	KindNotFound:    "The requested resource was not found",
	KindConflict:    "The resource was modified by another request",
	KindRateLimit:   "Too many requests, please wait before trying again",
	KindServer:      "The tables service reported an internal error",
	KindUnavailable: "The tables service is temporarily unavailable",
	KindUnknown:     "An unexpected error occurred",
}

// Error is the single error type returned by the core and the client.
type Error struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 for local or transport failures
	Message string // Human-readable message
	Field   string // Column or parameter the error refers to, if any
	Value   string // Offending input, if any
	Cause   error  // Underlying transport or parse error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = defaultMessages[e.Kind]
	}
	if e.Field != "" {
		msg = fmt.Sprintf("%s: %s", e.Field, msg)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	return msg
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	sentinel, ok := kindSentinels[e.Kind]
	return ok && sentinel == target
}

func (e *Error) Unwrap() error { return e.Cause }

// Retryable reports whether a later identical request may succeed. Only
// rate limiting and gateway unavailability qualify; the core itself never
// retries.
func (e *Error) Retryable() bool {
	return e.Kind == KindRateLimit || e.Kind == KindUnavailable
}

// NewValidationError builds a local validation failure for a field.
func NewValidationError(field, value, format string, args ...any) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: fmt.Sprintf(format, args...),
		Field:   field,
		Value:   value,
	}
}

// KindOf returns the kind of err, or KindUnknown if err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is an *Error labelled retryable.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable()
}
