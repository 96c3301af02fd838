// Package storage provides audit trail storage backends.
//
// Two implementations are available:
//   - MemoryStorage: in-memory, for tests and the one-shot CLI commands
//   - SQLiteStorage: durable SQLite-backed storage for the server
//
// Both honor the same Query semantics: Limit > 0 caps the result set,
// Limit == 0 applies the default of 100, and Limit < 0 means unlimited.
package storage
