// Package apperrors provides structured application errors with HTTP status mapping.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrMissingField  = errors.New("missing field")
	ErrUnknownOption = errors.New("unknown delivery option")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInternal      = errors.New("internal error")
)

// Error provides a structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message; on the relay surface this is the wire body
	Field    string // For missing-field errors (e.g. "telematikID", "body")
	Option   string // For unknown delivery options (the raw route segment)
	Op       string // Operation that failed (e.g. "session.push")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Missing creates a missing-field error with the exact wire body text.
func Missing(field, message string) error {
	return &Error{
		Sentinel: ErrMissingField,
		Message:  message,
		Field:    field,
	}
}

// UnknownOption creates an error for an unmapped delivery option segment.
// The message text is part of the wire contract: callers match on the
// InvalidDeliveryOptionException prefix.
func UnknownOption(option string) error {
	return &Error{
		Sentinel: ErrUnknownOption,
		Message:  fmt.Sprintf("InvalidDeliveryOptionException: invalid delivery option: %s", option),
		Option:   option,
	}
}

// Unauthorized creates an authentication failure error.
func Unauthorized(message string) error {
	return &Error{
		Sentinel: ErrUnauthorized,
		Message:  message,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
