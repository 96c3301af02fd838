// Package store implements the versioned deployment store: immutable entity
// versions plus per-environment deployment pointers.
//
// Every edit to a governed entity (ruleset, rule, feature, model, data
// field, dictionary) creates a new version row; versions are never mutated
// once written. Deploying only repoints an environment's pointer at an
// existing version, so rolling back is deploying an older version id.
// Writes are serialized per (entityType, entityId) and per (entityType,
// entityId, environment); reads never take locks beyond the backend's own
// and may run fully in parallel with evaluation traffic.
package store
