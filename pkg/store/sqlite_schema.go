package store

// SchemaVersion is the current version store schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the version store schema.
const Schema = `
-- Immutable entity version rows
CREATE TABLE IF NOT EXISTS entity_versions (
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    version     INTEGER NOT NULL,
    payload     TEXT NOT NULL,
    checksum    TEXT NOT NULL,
    created_by  TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL,
    PRIMARY KEY (entity_type, entity_id, version)
);

-- Environment deployment pointers
CREATE TABLE IF NOT EXISTS deployments (
    entity_type TEXT NOT NULL,
    entity_id   TEXT NOT NULL,
    environment TEXT NOT NULL,
    version     INTEGER NOT NULL,
    deployed_by TEXT NOT NULL,
    deployed_at TIMESTAMP NOT NULL,
    PRIMARY KEY (entity_type, entity_id, environment)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version    INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_versions_entity ON entity_versions(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_deployments_entity ON deployments(entity_type, entity_id);
`

// InsertSchemaVersion inserts the schema version row.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`
