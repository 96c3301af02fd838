package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the audit database schema.
const Schema = `
-- Audit trail table (append-only)
CREATE TABLE IF NOT EXISTS audit_entries (
    -- seq orders the chain; the tail is always MAX(seq)
    seq INTEGER PRIMARY KEY AUTOINCREMENT,

    id TEXT NOT NULL UNIQUE,

    -- Actor
    user_id TEXT NOT NULL,
    username TEXT NOT NULL,
    ip_address TEXT,

    -- What happened
    action TEXT NOT NULL,
    entity_type TEXT,
    entity_id TEXT,
    changes TEXT,

    -- Outcome
    status TEXT NOT NULL,
    error_message TEXT,

    timestamp TIMESTAMP NOT NULL,

    -- Hash chain
    prev_hash TEXT NOT NULL,
    hash TEXT NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

-- Indexes for common queries
CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_entries(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_user_id ON audit_entries(user_id);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_entries(action);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_entries(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_status ON audit_entries(status);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`

// GetSchemaVersion retrieves the current schema version from the database.
const GetSchemaVersion = `
SELECT version FROM schema_version ORDER BY version DESC LIMIT 1;
`
