package model

import "fmt"

// ErrorKind is the Core API's structured error taxonomy. Internal
// components do not raise across package boundaries; they record and
// continue. Only the pkg/ares facade constructs CoreErrors for callers.
type ErrorKind string

const (
	ErrKindInput      ErrorKind = "INPUT"
	ErrKindStrategy   ErrorKind = "STRATEGY"
	ErrKindStorage    ErrorKind = "STORAGE"
	ErrKindRollback   ErrorKind = "ROLLBACK"
	ErrKindOverloaded ErrorKind = "OVERLOADED"
)

// CoreError is the structured error object returned to Core API callers.
type CoreError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *CoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ares: %s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("ares: %s: %s", e.Kind, e.Reason)
}

func (e *CoreError) Unwrap() error { return e.Err }

// NewCoreError constructs a CoreError, wrapping an optional underlying
// cause.
func NewCoreError(kind ErrorKind, reason string, cause error) *CoreError {
	return &CoreError{Kind: kind, Reason: reason, Err: cause}
}
