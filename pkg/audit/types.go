package audit

import (
	"context"
	"time"
)

// Entry status values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
)

// Well-known action names. Callers may record other actions; these cover the
// governance operations the system itself performs.
const (
	ActionSubmitChange  = "SUBMIT_CHANGE"
	ActionApproveChange = "APPROVE_CHANGE"
	ActionRejectChange  = "REJECT_CHANGE"
	ActionDeploy        = "DEPLOY"
	ActionEvaluate      = "EVALUATE"
)

// Entry is a single immutable audit record.
type Entry struct {
	// Identity
	ID string `json:"id"` // UUID v4

	// Actor
	UserID    string `json:"user_id"`
	Username  string `json:"username"`
	IPAddress string `json:"ip_address,omitempty"`

	// What happened
	Action     string `json:"action"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`

	// Changes holds a JSON document describing the mutation (before/after,
	// decision payload for evaluations).
	Changes string `json:"changes,omitempty"`

	// Outcome
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`

	Timestamp time.Time `json:"timestamp"`

	// Hash chain. PrevHash is the Hash of the preceding entry ("" for the
	// first entry); Hash covers this entry's content plus PrevHash.
	PrevHash string `json:"prev_hash"`
	Hash     string `json:"hash"`
}

// Query defines filter parameters for querying the audit trail.
type Query struct {
	// Time range (inclusive)
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// Filters
	UserID     string `json:"user_id,omitempty"`
	Username   string `json:"username,omitempty"`
	Action     string `json:"action,omitempty"`
	EntityType string `json:"entity_type,omitempty"`
	EntityID   string `json:"entity_id,omitempty"`
	IPAddress  string `json:"ip_address,omitempty"`
	Status     string `json:"status,omitempty"`

	// Search matches a substring of the changes document.
	Search string `json:"search,omitempty"`

	// Pagination
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`

	// SortOrder is "asc" or "desc" by timestamp. Default: "desc".
	SortOrder string `json:"sort_order,omitempty"`
}

// Storage defines the interface for audit trail backends.
// Implementations must be thread-safe. The trail is append-only: there is
// deliberately no delete operation.
type Storage interface {
	// Store appends an entry to the trail.
	Store(ctx context.Context, entry *Entry) error

	// Last returns the most recently stored entry, or nil if the trail is
	// empty. Used by the recorder to continue the hash chain.
	Last(ctx context.Context) (*Entry, error)

	// Query retrieves entries matching the query filters.
	// Returns an empty slice if no entries match.
	Query(ctx context.Context, query *Query) ([]*Entry, error)

	// QueryStream returns a channel of entries for memory-efficient
	// iteration over large result sets. Both channels are closed when the
	// query completes or errors.
	QueryStream(ctx context.Context, query *Query) (<-chan *Entry, <-chan error, error)

	// Count returns the number of entries matching the query filters.
	Count(ctx context.Context, query *Query) (int64, error)

	// Close releases any resources held by the backend.
	Close() error
}
