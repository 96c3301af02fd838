package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"meridian-hq/meridian/pkg/audit"
)

// SQLiteConfig contains configuration for the SQLite audit storage backend.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections to the database.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/audit.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		WALMode:      true,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStorage implements the audit.Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteStorage creates a new SQLite audit storage backend.
// It initializes the database schema and enables WAL mode if configured.
func NewSQLiteStorage(config *SQLiteConfig) (*SQLiteStorage, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "audit.storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "open", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStorage{
		db:     db,
		config: config,
		logger: logger,
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("audit storage initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)

	return s, nil
}

// initialize sets up the database schema and enables WAL mode.
func (s *SQLiteStorage) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError("sqlite", "enable_wal", err)
		}
	}

	busyTimeoutMs := s.config.BusyTimeout.Milliseconds()
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", busyTimeoutMs)); err != nil {
		return audit.NewStorageError("sqlite", "set_busy_timeout", err)
	}

	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError("sqlite", "create_schema", err)
	}

	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError("sqlite", "insert_schema_version", err)
	}

	var version int
	err := s.db.QueryRow(GetSchemaVersion).Scan(&version)
	if err != nil && err != sql.ErrNoRows {
		return audit.NewStorageError("sqlite", "get_schema_version", err)
	}
	if version != SchemaVersion {
		return audit.NewStorageError("sqlite", "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}

	return nil
}

// Store appends an audit entry.
func (s *SQLiteStorage) Store(ctx context.Context, entry *audit.Entry) error {
	query := `
		INSERT INTO audit_entries (
			id, user_id, username, ip_address,
			action, entity_type, entity_id, changes,
			status, error_message, timestamp,
			prev_hash, hash
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID, entry.UserID, entry.Username, nullable(entry.IPAddress),
		entry.Action, nullable(entry.EntityType), nullable(entry.EntityID), nullable(entry.Changes),
		entry.Status, nullable(entry.ErrorMessage), entry.Timestamp,
		entry.PrevHash, entry.Hash,
	)
	if err != nil {
		return audit.NewStorageError("sqlite", "store", err)
	}
	return nil
}

// Last returns the most recently appended entry, or nil for an empty trail.
func (s *SQLiteStorage) Last(ctx context.Context) (*audit.Entry, error) {
	row := s.db.QueryRowContext(ctx,
		selectColumns+` FROM audit_entries ORDER BY seq DESC LIMIT 1`)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "last", err)
	}
	return entry, nil
}

// Query retrieves audit entries matching the query filters.
func (s *SQLiteStorage) Query(ctx context.Context, query *audit.Query) ([]*audit.Entry, error) {
	sqlQuery, args := s.buildQuery(query)

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	defer rows.Close()

	entries := []*audit.Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, audit.NewStorageError("sqlite", "scan", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError("sqlite", "query", err)
	}
	return entries, nil
}

// QueryStream returns a channel of audit entries for memory-efficient streaming.
// The channels are closed when the query completes or errors.
func (s *SQLiteStorage) QueryStream(ctx context.Context, query *audit.Query) (<-chan *audit.Entry, <-chan error, error) {
	entriesCh := make(chan *audit.Entry, 100)
	errCh := make(chan error, 1)

	sqlQuery, args := s.buildQuery(query)

	go func() {
		defer close(entriesCh)
		defer close(errCh)

		rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
		if err != nil {
			errCh <- audit.NewStorageError("sqlite", "query_stream", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			default:
			}

			entry, err := scanEntry(rows)
			if err != nil {
				errCh <- audit.NewStorageError("sqlite", "scan", err)
				return
			}

			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case entriesCh <- entry:
			}
		}

		if err := rows.Err(); err != nil {
			errCh <- audit.NewStorageError("sqlite", "query_stream", err)
		}
	}()

	return entriesCh, errCh, nil
}

// Count returns the number of entries matching the query filters.
func (s *SQLiteStorage) Count(ctx context.Context, query *audit.Query) (int64, error) {
	whereClause, args := s.buildWhereClause(query)

	sqlQuery := "SELECT COUNT(*) FROM audit_entries"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	var count int64
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, audit.NewStorageError("sqlite", "count", err)
	}
	return count, nil
}

// Close releases resources held by the storage backend.
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		return audit.NewStorageError("sqlite", "close", err)
	}
	s.logger.Info("audit storage closed")
	return nil
}

const selectColumns = `SELECT id, user_id, username, ip_address,
	action, entity_type, entity_id, changes,
	status, error_message, timestamp, prev_hash, hash`

// buildQuery builds the full SELECT statement with filters, sorting, and
// pagination applied.
func (s *SQLiteStorage) buildQuery(query *audit.Query) (string, []interface{}) {
	whereClause, args := s.buildWhereClause(query)

	sqlQuery := selectColumns + " FROM audit_entries"
	if whereClause != "" {
		sqlQuery += " WHERE " + whereClause
	}

	sortOrder := "DESC"
	if query.SortOrder == "asc" {
		sortOrder = "ASC"
	}
	sqlQuery += " ORDER BY seq " + sortOrder

	limit := 100
	if query.Limit > 0 {
		limit = query.Limit
	} else if query.Limit < 0 {
		limit = -1 // SQLite treats negative LIMIT as unlimited
	}
	sqlQuery += fmt.Sprintf(" LIMIT %d", limit)

	if query.Offset > 0 {
		sqlQuery += fmt.Sprintf(" OFFSET %d", query.Offset)
	}

	return sqlQuery, args
}

// buildWhereClause builds a SQL WHERE clause from query filters.
// Returns the WHERE clause (without "WHERE" keyword) and the query arguments.
func (s *SQLiteStorage) buildWhereClause(query *audit.Query) (string, []interface{}) {
	var conditions []string
	var args []interface{}

	if query.StartTime != nil {
		conditions = append(conditions, "timestamp >= ?")
		args = append(args, *query.StartTime)
	}
	if query.EndTime != nil {
		conditions = append(conditions, "timestamp <= ?")
		args = append(args, *query.EndTime)
	}

	if query.UserID != "" {
		conditions = append(conditions, "user_id = ?")
		args = append(args, query.UserID)
	}
	if query.Username != "" {
		conditions = append(conditions, "username = ?")
		args = append(args, query.Username)
	}
	if query.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, query.Action)
	}
	if query.EntityType != "" {
		conditions = append(conditions, "entity_type = ?")
		args = append(args, query.EntityType)
	}
	if query.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, query.EntityID)
	}
	if query.IPAddress != "" {
		conditions = append(conditions, "ip_address = ?")
		args = append(args, query.IPAddress)
	}
	if query.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, query.Status)
	}
	if query.Search != "" {
		conditions = append(conditions, "changes LIKE ?")
		args = append(args, "%"+query.Search+"%")
	}

	whereClause := ""
	for i, condition := range conditions {
		if i > 0 {
			whereClause += " AND "
		}
		whereClause += condition
	}
	return whereClause, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans a database row into an audit.Entry.
func scanEntry(row rowScanner) (*audit.Entry, error) {
	var entry audit.Entry
	var ipAddress, entityType, entityID, changes, errorMessage sql.NullString

	err := row.Scan(
		&entry.ID, &entry.UserID, &entry.Username, &ipAddress,
		&entry.Action, &entityType, &entityID, &changes,
		&entry.Status, &errorMessage, &entry.Timestamp,
		&entry.PrevHash, &entry.Hash,
	)
	if err != nil {
		return nil, err
	}

	entry.IPAddress = ipAddress.String
	entry.EntityType = entityType.String
	entry.EntityID = entityID.String
	entry.Changes = changes.String
	entry.ErrorMessage = errorMessage.String
	return &entry, nil
}

// nullable converts an empty string to NULL.
func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
