// Package audit provides the append-only audit trail for rule governance.
//
// Every mutation in the system (change request submission, approval,
// rejection, deployment) and every transaction evaluation produces an audit
// entry. Entries are hash-chained: each entry carries the SHA-256 hash of its
// predecessor, so any tampering with historical records is detectable by
// walking the chain.
//
// The trail is append-only. There is no update or delete operation on the
// Storage interface; entries are retained indefinitely.
//
// Recording is synchronous for mutations. Callers in the approval workflow
// treat a recording failure as fatal and roll back the mutation, so the
// recorder never swallows storage errors.
package audit
