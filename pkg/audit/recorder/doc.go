// Package recorder writes hash-chained entries to the audit trail.
//
// Record is synchronous: it returns only after the entry is durably stored,
// and any storage failure is returned to the caller. Mutation paths depend on
// this to roll back when the audit write fails.
package recorder
