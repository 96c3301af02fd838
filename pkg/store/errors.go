package store

import (
	"fmt"

	"meridian-hq/meridian/pkg/rules"
)

// NotDeployedError indicates no version of the entity is deployed to the
// requested environment. Callers must deploy before evaluating.
type NotDeployedError struct {
	EntityType  EntityType
	EntityID    string
	Environment rules.Environment
}

// Error returns the error message.
func (e *NotDeployedError) Error() string {
	return fmt.Sprintf("%s %s is not deployed to %s", e.EntityType, e.EntityID, e.Environment)
}

// VersionNotFoundError indicates the requested version does not exist.
type VersionNotFoundError struct {
	EntityType EntityType
	EntityID   string
	Version    int
}

// Error returns the error message.
func (e *VersionNotFoundError) Error() string {
	if e.Version == 0 {
		return fmt.Sprintf("%s %s has no versions", e.EntityType, e.EntityID)
	}
	return fmt.Sprintf("%s %s version %d not found", e.EntityType, e.EntityID, e.Version)
}

// ImmutabilityError indicates an operation would alter an existing version
// (for example discarding a version that is not the latest or is deployed).
type ImmutabilityError struct {
	EntityType EntityType
	EntityID   string
	Version    int
	Reason     string
}

// Error returns the error message.
func (e *ImmutabilityError) Error() string {
	return fmt.Sprintf("%s %s version %d cannot be altered: %s", e.EntityType, e.EntityID, e.Version, e.Reason)
}

// StorageError wraps backend failures with the backend and operation names.
type StorageError struct {
	Backend   string
	Operation string
	Cause     error
}

// Error returns the error message.
func (e *StorageError) Error() string {
	return fmt.Sprintf("%s storage: %s failed: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
