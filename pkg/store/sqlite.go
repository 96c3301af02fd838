package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"meridian-hq/meridian/pkg/rules"
)

// SQLiteConfig contains configuration for the SQLite version store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int

	// BusyTimeout is how long to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite store configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:         "data/meridian.db",
		MaxOpenConns: 10,
		MaxIdleConns: 5,
		BusyTimeout:  5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger

	writeLocks  *keyedMutex
	deployLocks *keyedMutex
}

// NewSQLiteStore opens (creating if necessary) a SQLite version store.
func NewSQLiteStore(config *SQLiteConfig) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}

	logger := slog.Default().With("component", "store.sqlite")

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, NewStorageError("sqlite", "open", err)
	}
	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)

	s := &SQLiteStore{
		db:          db,
		config:      config,
		logger:      logger,
		writeLocks:  newKeyedMutex(),
		deployLocks: newKeyedMutex(),
	}

	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("version store initialized", "path", config.Path)
	return s, nil
}

func (s *SQLiteStore) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return NewStorageError("sqlite", "enable_wal", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return NewStorageError("sqlite", "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return NewStorageError("sqlite", "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return NewStorageError("sqlite", "insert_schema_version", err)
	}
	return nil
}

// CreateVersion appends a new immutable version for the entity.
func (s *SQLiteStore) CreateVersion(ctx context.Context, entityType EntityType, entityID string, payload []byte, createdBy string) (*VersionedEntity, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("unknown entity type %q", entityType)
	}

	unlock := s.writeLocks.lock(entityKey(entityType, entityID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	var latest int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM entity_versions WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	).Scan(&latest)
	if err != nil {
		return nil, NewStorageError("sqlite", "next_version", err)
	}

	ve := &VersionedEntity{
		EntityType: entityType,
		EntityID:   entityID,
		Version:    latest + 1,
		Payload:    append([]byte(nil), payload...),
		Checksum:   PayloadChecksum(payload),
		CreatedBy:  createdBy,
		CreatedAt:  time.Now().UTC(),
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO entity_versions (entity_type, entity_id, version, payload, checksum, created_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ve.EntityType, ve.EntityID, ve.Version, string(ve.Payload), ve.Checksum, ve.CreatedBy, ve.CreatedAt,
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "create_version", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, NewStorageError("sqlite", "commit", err)
	}
	return ve, nil
}

// GetVersion returns one version of an entity.
func (s *SQLiteStore) GetVersion(ctx context.Context, entityType EntityType, entityID string, version int) (*VersionedEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entity_type, entity_id, version, payload, checksum, created_by, created_at
		 FROM entity_versions WHERE entity_type = ? AND entity_id = ? AND version = ?`,
		entityType, entityID, version,
	)
	ve, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &VersionNotFoundError{EntityType: entityType, EntityID: entityID, Version: version}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_version", err)
	}
	return ve, nil
}

// LatestVersion returns the entity's newest version. A deleted entity, one
// whose newest version is a tombstone, reads as not found.
func (s *SQLiteStore) LatestVersion(ctx context.Context, entityType EntityType, entityID string) (*VersionedEntity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entity_type, entity_id, version, payload, checksum, created_by, created_at
		 FROM entity_versions WHERE entity_type = ? AND entity_id = ?
		 ORDER BY version DESC LIMIT 1`,
		entityType, entityID,
	)
	ve, err := scanVersion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &VersionNotFoundError{EntityType: entityType, EntityID: entityID}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "latest_version", err)
	}
	if ve.Deleted() {
		return nil, &VersionNotFoundError{EntityType: entityType, EntityID: entityID}
	}
	return ve, nil
}

// ListVersions returns all versions of an entity in ascending order.
func (s *SQLiteStore) ListVersions(ctx context.Context, entityType EntityType, entityID string) ([]*VersionedEntity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, entity_id, version, payload, checksum, created_by, created_at
		 FROM entity_versions WHERE entity_type = ? AND entity_id = ?
		 ORDER BY version ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_versions", err)
	}
	defer rows.Close()

	var out []*VersionedEntity
	for rows.Next() {
		ve, err := scanVersion(rows)
		if err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, ve)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_versions", err)
	}
	return out, nil
}

// Deploy repoints the environment's pointer at an existing version.
func (s *SQLiteStore) Deploy(ctx context.Context, entityType EntityType, entityID string, version int, env rules.Environment, actor string) error {
	unlock := s.deployLocks.lock(deployKey(entityType, entityID, env))
	defer unlock()

	ve, err := s.GetVersion(ctx, entityType, entityID, version)
	if err != nil {
		return err
	}
	if ve.Deleted() {
		return &ImmutabilityError{EntityType: entityType, EntityID: entityID, Version: version, Reason: "version is a deletion marker"}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO deployments (entity_type, entity_id, environment, version, deployed_by, deployed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(entity_type, entity_id, environment)
		 DO UPDATE SET version = excluded.version, deployed_by = excluded.deployed_by, deployed_at = excluded.deployed_at`,
		entityType, entityID, env, version, actor, time.Now().UTC(),
	)
	if err != nil {
		return NewStorageError("sqlite", "deploy", err)
	}
	return nil
}

// GetDeployed returns the version currently deployed to the environment.
func (s *SQLiteStore) GetDeployed(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) (*VersionedEntity, error) {
	d, err := s.GetDeployment(ctx, entityType, entityID, env)
	if err != nil {
		return nil, err
	}
	return s.GetVersion(ctx, entityType, entityID, d.Version)
}

// GetDeployment returns the environment's deployment pointer.
func (s *SQLiteStore) GetDeployment(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) (*Deployment, error) {
	var d Deployment
	err := s.db.QueryRowContext(ctx,
		`SELECT entity_type, entity_id, environment, version, deployed_by, deployed_at
		 FROM deployments WHERE entity_type = ? AND entity_id = ? AND environment = ?`,
		entityType, entityID, env,
	).Scan(&d.EntityType, &d.EntityID, &d.Environment, &d.Version, &d.DeployedBy, &d.DeployedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &NotDeployedError{EntityType: entityType, EntityID: entityID, Environment: env}
	}
	if err != nil {
		return nil, NewStorageError("sqlite", "get_deployment", err)
	}
	return &d, nil
}

// ListDeployments returns all deployment pointers for an entity.
func (s *SQLiteStore) ListDeployments(ctx context.Context, entityType EntityType, entityID string) ([]*Deployment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT entity_type, entity_id, environment, version, deployed_by, deployed_at
		 FROM deployments WHERE entity_type = ? AND entity_id = ?
		 ORDER BY environment ASC`,
		entityType, entityID,
	)
	if err != nil {
		return nil, NewStorageError("sqlite", "list_deployments", err)
	}
	defer rows.Close()

	var out []*Deployment
	for rows.Next() {
		var d Deployment
		if err := rows.Scan(&d.EntityType, &d.EntityID, &d.Environment, &d.Version, &d.DeployedBy, &d.DeployedAt); err != nil {
			return nil, NewStorageError("sqlite", "scan", err)
		}
		out = append(out, &d)
	}
	if err := rows.Err(); err != nil {
		return nil, NewStorageError("sqlite", "list_deployments", err)
	}
	return out, nil
}

// DiscardVersion removes the entity's latest version. Compensation hook for
// the workflow; refuses when the version is not the latest or is deployed.
func (s *SQLiteStore) DiscardVersion(ctx context.Context, entityType EntityType, entityID string, version int) error {
	unlock := s.writeLocks.lock(entityKey(entityType, entityID))
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return NewStorageError("sqlite", "begin", err)
	}
	defer tx.Rollback()

	var latest int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM entity_versions WHERE entity_type = ? AND entity_id = ?`,
		entityType, entityID,
	).Scan(&latest); err != nil {
		return NewStorageError("sqlite", "discard_version", err)
	}
	if latest != version {
		return &ImmutabilityError{EntityType: entityType, EntityID: entityID, Version: version, Reason: "only the latest version may be discarded"}
	}

	var deployed int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM deployments WHERE entity_type = ? AND entity_id = ? AND version = ?`,
		entityType, entityID, version,
	).Scan(&deployed); err != nil {
		return NewStorageError("sqlite", "discard_version", err)
	}
	if deployed > 0 {
		return &ImmutabilityError{EntityType: entityType, EntityID: entityID, Version: version, Reason: "version is deployed"}
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM entity_versions WHERE entity_type = ? AND entity_id = ? AND version = ?`,
		entityType, entityID, version,
	); err != nil {
		return NewStorageError("sqlite", "discard_version", err)
	}

	if err := tx.Commit(); err != nil {
		return NewStorageError("sqlite", "commit", err)
	}
	return nil
}

// ClearDeployment removes the environment's deployment pointer.
func (s *SQLiteStore) ClearDeployment(ctx context.Context, entityType EntityType, entityID string, env rules.Environment) error {
	unlock := s.deployLocks.lock(deployKey(entityType, entityID, env))
	defer unlock()

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM deployments WHERE entity_type = ? AND entity_id = ? AND environment = ?`,
		entityType, entityID, env,
	); err != nil {
		return NewStorageError("sqlite", "clear_deployment", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVersion(row rowScanner) (*VersionedEntity, error) {
	var ve VersionedEntity
	var payload string
	if err := row.Scan(&ve.EntityType, &ve.EntityID, &ve.Version, &payload, &ve.Checksum, &ve.CreatedBy, &ve.CreatedAt); err != nil {
		return nil, err
	}
	ve.Payload = []byte(payload)
	return &ve, nil
}
