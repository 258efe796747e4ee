package ingest

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable means the entity store could not be reached.
	// It is not retried here; callers surface it as a server error.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUniqueViolation is returned by a Tx when an insert loses a race on a
	// unique key. The engine retries the unit of work once when it sees it.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrTxAborted is a deadlock or serialization failure reported by the
	// store. Like ErrUniqueViolation it is retried once.
	ErrTxAborted = errors.New("transaction aborted by concurrent update")
)

// ValidationError rejects a payload. Normalize returns it before anything is
// written; the store returns it when a value is rejected by the schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid payload: %s %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// ConflictError is a concurrent-write race that survived one retry.
// Retrying the whole request is safe.
type ConflictError struct {
	EventID string
	Err     error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict applying event %s: %v", e.EventID, e.Err)
}

func (e *ConflictError) Unwrap() error { return e.Err }

func retryable(err error) bool {
	return errors.Is(err, ErrUniqueViolation) || errors.Is(err, ErrTxAborted)
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is (or wraps) a *ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}
