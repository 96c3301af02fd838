package workflow

import (
	"context"
	"encoding/json"
	"time"

	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// Role determines what a user may do in the approval workflow.
type Role string

// User roles.
const (
	RoleAdmin   Role = "ADMIN"
	RoleMaker   Role = "MAKER"
	RoleChecker Role = "CHECKER"
	RoleViewer  Role = "VIEWER"
)

// CanSubmit reports whether the role may submit change requests.
func (r Role) CanSubmit() bool {
	return r == RoleMaker || r == RoleAdmin
}

// CanReview reports whether the role may approve or reject change requests.
func (r Role) CanReview() bool {
	return r == RoleChecker || r == RoleAdmin
}

// User identifies an actor in the workflow.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// ChangeType classifies what a change request does when applied.
type ChangeType string

// Change types.
const (
	ChangeCreate ChangeType = "CREATE"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
	ChangeDeploy ChangeType = "DEPLOY"
)

// Valid reports whether t is a known change type.
func (t ChangeType) Valid() bool {
	switch t {
	case ChangeCreate, ChangeUpdate, ChangeDelete, ChangeDeploy:
		return true
	}
	return false
}

// ChangeStatus is the lifecycle state of a change request.
type ChangeStatus string

// Change request states. PENDING is the only state from which a review
// transition is allowed.
const (
	StatusPending  ChangeStatus = "PENDING"
	StatusApproved ChangeStatus = "APPROVED"
	StatusRejected ChangeStatus = "REJECTED"
)

// ChangeRequest is a proposed mutation awaiting review.
type ChangeRequest struct {
	ID string `json:"id"`

	// What is being changed
	Type       ChangeType       `json:"type"`
	EntityType store.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	EntityName string           `json:"entity_name,omitempty"`

	// Payload holds the proposed entity document for CREATE/UPDATE.
	// DELETE requests carry no payload; approval writes a tombstone.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Deployment target, set for DEPLOY requests.
	DeployVersion     int               `json:"deploy_version,omitempty"`
	DeployEnvironment rules.Environment `json:"deploy_environment,omitempty"`

	// Reason is the maker's justification. Mandatory.
	Reason string `json:"reason"`

	Status ChangeStatus `json:"status"`

	// Maker
	CreatedBy       string    `json:"created_by"`
	CreatedByUserID string    `json:"created_by_user_id"`
	CreatedAt       time.Time `json:"created_at"`

	// Checker, set once reviewed
	ReviewedBy     string     `json:"reviewed_by,omitempty"`
	ReviewedAt     *time.Time `json:"reviewed_at,omitempty"`
	ReviewComments string     `json:"review_comments,omitempty"`

	// AppliedVersion is the version the store assigned when the request was
	// approved and applied.
	AppliedVersion int `json:"applied_version,omitempty"`
}

// ListFilter narrows List results. Zero values match everything.
type ListFilter struct {
	Status     ChangeStatus     `json:"status,omitempty"`
	Type       ChangeType       `json:"type,omitempty"`
	EntityType store.EntityType `json:"entity_type,omitempty"`
	EntityID   string           `json:"entity_id,omitempty"`
	CreatedBy  string           `json:"created_by,omitempty"`
	Limit      int              `json:"limit,omitempty"`
	Offset     int              `json:"offset,omitempty"`
}

// Review carries the fields written when a request transitions out of
// PENDING.
type Review struct {
	Status     ChangeStatus
	ReviewedBy string
	ReviewedAt time.Time
	Comments   string
	// AppliedVersion is recorded for approved CREATE/UPDATE/DELETE requests.
	AppliedVersion int
}

// Storage persists change requests.
// Implementations must be thread-safe.
type Storage interface {
	// Create stores a new change request.
	Create(ctx context.Context, cr *ChangeRequest) error

	// Get returns the change request with the given ID.
	Get(ctx context.Context, id string) (*ChangeRequest, error)

	// Transition moves a request from one status to another atomically.
	// Returns AlreadyResolvedError if the request is not in the expected
	// status, so two concurrent reviewers cannot both win.
	Transition(ctx context.Context, id string, from ChangeStatus, review *Review) error

	// Delete removes a change request. Compensation hook for submission:
	// a request whose audit entry could not be written is withdrawn.
	Delete(ctx context.Context, id string) error

	// List returns change requests matching the filter, newest first.
	List(ctx context.Context, filter *ListFilter) ([]*ChangeRequest, error)

	// Close releases any resources held by the backend.
	Close() error
}
