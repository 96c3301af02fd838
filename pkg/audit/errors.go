package audit

import "fmt"

// StorageError represents an error from the audit storage backend.
type StorageError struct {
	Backend   string // Storage backend type ("sqlite", "memory")
	Operation string // Operation that failed ("store", "query", etc.)
	Cause     error  // Underlying error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("audit storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{
		Backend:   backend,
		Operation: operation,
		Cause:     cause,
	}
}

// RecordError represents a failure to record an audit entry. Mutation paths
// treat this error as fatal and roll back the mutation.
type RecordError struct {
	Action string // Action being recorded
	Cause  error  // Underlying error
}

// Error implements the error interface.
func (e *RecordError) Error() string {
	return fmt.Sprintf("audit record error [action=%s]: %v", e.Action, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *RecordError) Unwrap() error {
	return e.Cause
}

// ChainError indicates that hash chain verification found a broken or
// tampered link.
type ChainError struct {
	EntryID string // Entry where the chain broke
	Reason  string // What was wrong
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain error [entry_id=%s]: %s", e.EntryID, e.Reason)
}
