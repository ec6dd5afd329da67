package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	ErrNotStarted       = errors.New("indexer is not started")
	ErrAlreadyStarted   = errors.New("indexer is already started")
	ErrSessionNotFound  = errors.New("session not found")
	ErrTerminalNotFound = errors.New("terminal not found")
	ErrInvalidSessionID = errors.New("invalid session id")
	ErrInvalidProvider  = errors.New("unknown provider")
	ErrMissingCWD       = errors.New("transcript has no working directory")
	ErrHubNotRunning    = errors.New("event hub is not running")
	ErrSubscriberClosed = errors.New("subscriber is closed")
	ErrCacheDisabled    = errors.New("meta cache persistence is disabled")
)

// Error codes for client responses.
const (
	ErrCodeSessionNotFound  = "SESSION_NOT_FOUND"
	ErrCodeTerminalNotFound = "TERMINAL_NOT_FOUND"
	ErrCodeInvalidProvider  = "INVALID_PROVIDER"
	ErrCodeInvalidPayload   = "INVALID_PAYLOAD"
	ErrCodeInternalError    = "INTERNAL_ERROR"
)

// DeckError wraps a failure from one named operation so callers can log the
// operation alongside the cause.
type DeckError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

func (e *DeckError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *DeckError) Unwrap() error {
	return e.Err
}

// NewDeckError creates a new DeckError.
func NewDeckError(op string, err error) *DeckError {
	return &DeckError{Op: op, Err: err}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
