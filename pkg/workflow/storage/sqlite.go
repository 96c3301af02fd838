package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/workflow"
)

// SQLiteConfig contains configuration for the SQLite change request store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/workflow.db",
		BusyTimeout: 5 * time.Second,
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS change_requests (
    id TEXT PRIMARY KEY,
    change_type TEXT NOT NULL,
    entity_type TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    entity_name TEXT,
    payload TEXT,
    deploy_version INTEGER NOT NULL DEFAULT 0,
    deploy_environment TEXT,
    reason TEXT NOT NULL,
    status TEXT NOT NULL,
    created_by TEXT NOT NULL,
    created_by_user_id TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    reviewed_by TEXT,
    reviewed_at TIMESTAMP,
    review_comments TEXT,
    applied_version INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_cr_status ON change_requests(status);
CREATE INDEX IF NOT EXISTS idx_cr_entity ON change_requests(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_cr_created_by ON change_requests(created_by);
CREATE INDEX IF NOT EXISTS idx_cr_created_at ON change_requests(created_at);
`

// SQLiteStorage implements workflow.Storage using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if necessary) a SQLite change request
// store.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d",
		config.Path, config.BusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, workflow.NewStorageError("sqlite", "open", err)
	}

	// SQLite supports a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, workflow.NewStorageError("sqlite", "create_schema", err)
	}

	logger := slog.Default().With("component", "workflow.storage.sqlite")
	logger.Info("change request store initialized", "path", config.Path)

	return &SQLiteStorage{db: db, logger: logger}, nil
}

// Create stores a new change request.
func (s *SQLiteStorage) Create(ctx context.Context, cr *workflow.ChangeRequest) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO change_requests (
			id, change_type, entity_type, entity_id, entity_name, payload,
			deploy_version, deploy_environment, reason, status,
			created_by, created_by_user_id, created_at, applied_version
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)`,
		cr.ID, cr.Type, cr.EntityType, cr.EntityID, cr.EntityName, string(cr.Payload),
		cr.DeployVersion, cr.DeployEnvironment, cr.Reason, cr.Status,
		cr.CreatedBy, cr.CreatedByUserID, cr.CreatedAt,
	)
	if err != nil {
		return workflow.NewStorageError("sqlite", "create", err)
	}
	return nil
}

// Get returns the change request with the given ID.
func (s *SQLiteStorage) Get(ctx context.Context, id string) (*workflow.ChangeRequest, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` FROM change_requests WHERE id = ?`, id)
	cr, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &workflow.NotFoundError{ChangeRequestID: id}
	}
	if err != nil {
		return nil, workflow.NewStorageError("sqlite", "get", err)
	}
	return cr, nil
}

// Transition moves a request between statuses atomically. The UPDATE's
// status predicate makes the compare-and-set: zero rows affected means the
// request was not in the expected status.
func (s *SQLiteStorage) Transition(ctx context.Context, id string, from workflow.ChangeStatus, review *workflow.Review) error {
	var result sql.Result
	var err error
	if review.Status == workflow.StatusPending {
		// Reverting a review: clear reviewer fields.
		result, err = s.db.ExecContext(ctx, `
			UPDATE change_requests
			SET status = ?, reviewed_by = NULL, reviewed_at = NULL,
			    review_comments = NULL, applied_version = 0
			WHERE id = ? AND status = ?`,
			review.Status, id, from,
		)
	} else {
		result, err = s.db.ExecContext(ctx, `
			UPDATE change_requests
			SET status = ?, reviewed_by = ?, reviewed_at = ?,
			    review_comments = ?, applied_version = ?
			WHERE id = ? AND status = ?`,
			review.Status, review.ReviewedBy, review.ReviewedAt,
			review.Comments, review.AppliedVersion, id, from,
		)
	}
	if err != nil {
		return workflow.NewStorageError("sqlite", "transition", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return workflow.NewStorageError("sqlite", "transition", err)
	}
	if affected == 0 {
		cr, getErr := s.Get(ctx, id)
		if getErr != nil {
			return getErr
		}
		return &workflow.AlreadyResolvedError{ChangeRequestID: id, Status: cr.Status}
	}
	return nil
}

// Delete removes a change request.
func (s *SQLiteStorage) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM change_requests WHERE id = ?`, id)
	if err != nil {
		return workflow.NewStorageError("sqlite", "delete", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return workflow.NewStorageError("sqlite", "delete", err)
	}
	if affected == 0 {
		return &workflow.NotFoundError{ChangeRequestID: id}
	}
	return nil
}

// List returns change requests matching the filter, newest first.
func (s *SQLiteStorage) List(ctx context.Context, filter *workflow.ListFilter) ([]*workflow.ChangeRequest, error) {
	query := selectColumns + " FROM change_requests"
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, "change_type = ?")
		args = append(args, filter.Type)
	}
	if filter.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if filter.CreatedBy != "" {
		conditions = append(conditions, "created_by = ?")
		args = append(args, filter.CreatedBy)
	}

	for i, condition := range conditions {
		if i == 0 {
			query += " WHERE " + condition
		} else {
			query += " AND " + condition
		}
	}
	query += " ORDER BY created_at DESC, id DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, workflow.NewStorageError("sqlite", "list", err)
	}
	defer rows.Close()

	requests := []*workflow.ChangeRequest{}
	for rows.Next() {
		cr, err := scanRequest(rows)
		if err != nil {
			return nil, workflow.NewStorageError("sqlite", "scan", err)
		}
		requests = append(requests, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, workflow.NewStorageError("sqlite", "list", err)
	}
	return requests, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT id, change_type, entity_type, entity_id, entity_name, payload,
	deploy_version, deploy_environment, reason, status,
	created_by, created_by_user_id, created_at,
	reviewed_by, reviewed_at, review_comments, applied_version`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*workflow.ChangeRequest, error) {
	var cr workflow.ChangeRequest
	var entityName, payload, deployEnv, reviewedBy, reviewComments sql.NullString
	var reviewedAt sql.NullTime

	err := row.Scan(
		&cr.ID, &cr.Type, &cr.EntityType, &cr.EntityID, &entityName, &payload,
		&cr.DeployVersion, &deployEnv, &cr.Reason, &cr.Status,
		&cr.CreatedBy, &cr.CreatedByUserID, &cr.CreatedAt,
		&reviewedBy, &reviewedAt, &reviewComments, &cr.AppliedVersion,
	)
	if err != nil {
		return nil, err
	}

	cr.EntityName = entityName.String
	if payload.String != "" {
		cr.Payload = json.RawMessage(payload.String)
	}
	cr.DeployEnvironment = rules.Environment(deployEnv.String)
	cr.ReviewedBy = reviewedBy.String
	if reviewedAt.Valid {
		t := reviewedAt.Time
		cr.ReviewedAt = &t
	}
	cr.ReviewComments = reviewComments.String
	return &cr, nil
}
