package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a graph, session, subject or episode does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a mutation hits a session that is already
	// completed/abandoned, when an episode already exists for an occasion, or when
	// an optimistic update lost the race. Callers must not blindly retry the same
	// mutation; submit races are safe to retry after a re-read.
	ErrConflict = errors.New("conflict")
)

// ValidationError rejects a bad answer or request synchronously. The session is
// left unchanged when one is returned.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Reason)
}

// NewValidationError builds a ValidationError for a field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ExternalError wraps a failure from the text-generation collaborator or another
// external dependency. Retryable reports whether the failure class (timeout,
// connection error, 429/5xx) is worth another attempt.
type ExternalError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("external call %s failed: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }

// IsRetryable reports whether err is an ExternalError marked retryable.
func IsRetryable(err error) bool {
	var ext *ExternalError
	return errors.As(err, &ext) && ext.Retryable
}
