// Package api exposes Meridian over HTTP.
//
// The router is a chi mux serving the versioned REST API under /api/v1:
// transaction evaluation, the maker-checker change workflow, version lookups
// and deployments, audit trail queries, and efficacy reporting. Liveness,
// readiness, and Prometheus metrics endpoints are mounted at the root.
//
// Authentication is delegated to the fronting gateway; handlers read the
// acting user from the X-User-ID, X-Username, and X-User-Role headers.
// Responses share one envelope: {"data": ...} on success and
// {"error": {"code", "message"}} on failure, with domain errors mapped to
// stable codes and HTTP statuses.
package api
