package workflow

import "fmt"

// ValidationError indicates a malformed change request or review.
type ValidationError struct {
	Field   string // Field that failed validation
	Message string // What was wrong
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid change request [field=%s]: %s", e.Field, e.Message)
}

// AuthorizationError indicates the user's role does not permit the attempted
// operation.
type AuthorizationError struct {
	Username  string
	Role      Role
	Operation string // "submit", "approve", "reject"
}

// Error implements the error interface.
func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("user %q with role %s may not %s change requests", e.Username, e.Role, e.Operation)
}

// SelfApprovalError indicates the reviewer is the request's maker. The
// four-eyes rule applies to every role including ADMIN.
type SelfApprovalError struct {
	ChangeRequestID string
	Username        string
}

// Error implements the error interface.
func (e *SelfApprovalError) Error() string {
	return fmt.Sprintf("change request %s cannot be reviewed by its submitter %q", e.ChangeRequestID, e.Username)
}

// AlreadyResolvedError indicates the request has left PENDING and cannot be
// reviewed again.
type AlreadyResolvedError struct {
	ChangeRequestID string
	Status          ChangeStatus
}

// Error implements the error interface.
func (e *AlreadyResolvedError) Error() string {
	return fmt.Sprintf("change request %s is already %s", e.ChangeRequestID, e.Status)
}

// NotFoundError indicates no change request exists with the given ID.
type NotFoundError struct {
	ChangeRequestID string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("change request %s not found", e.ChangeRequestID)
}

// ApplyError indicates the approved change could not be applied to the
// version store. The request returns to PENDING.
type ApplyError struct {
	ChangeRequestID string
	Cause           error
}

// Error implements the error interface.
func (e *ApplyError) Error() string {
	return fmt.Sprintf("applying change request %s failed: %v", e.ChangeRequestID, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *ApplyError) Unwrap() error {
	return e.Cause
}

// StorageError represents an error from the change request storage backend.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("workflow storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
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
