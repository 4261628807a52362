package shared

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("not found")

// ValidationError reports a missing or malformed required field. It is always
// raised before any write happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s is required", e.Field)
}

// NewValidationError builds a ValidationError for a required field.
func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field}
}

// ReferenceError reports an identifier that does not resolve against a master
// table (store, product).
type ReferenceError struct {
	Entity string
	ID     int64
}

func (e *ReferenceError) Error() string {
	return fmt.Sprintf("reference: %s %d does not exist", e.Entity, e.ID)
}

// DuplicateError reports a unique-constraint violation, carrying the
// conflicting value so the user sees it.
type DuplicateError struct {
	Field string
	Value string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate: %s %q already exists", e.Field, e.Value)
}

// ConcurrencyError indicates lock or transaction contention after exhausting
// internal retries. Callers should surface it as retryable.
type ConcurrencyError struct {
	Attempts int
	Err      error
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("concurrency: contention after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConcurrencyError) Unwrap() error { return e.Err }

// ErrIntegrity flags a ledger/balance reconciliation mismatch. It is logged by
// the audit job and must never reach an end user response.
var ErrIntegrity = errors.New("ledger balance integrity mismatch")
