package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"meridian-hq/meridian/pkg/audit"
)

// AuditPage is the payload of GET /api/v1/audit.
type AuditPage struct {
	Entries []*audit.Entry `json:"entries"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func (a *API) handleQueryAudit(w http.ResponseWriter, r *http.Request) {
	query, err := parseAuditQuery(r)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	if query.Limit == 0 && a.deps.Config != nil {
		query.Limit = a.deps.Config.Audit.QueryLimit
	}

	entries, err := a.deps.Trail.Query(r.Context(), query)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	total, err := a.deps.Trail.Count(r.Context(), query)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, AuditPage{
		Entries: entries,
		Total:   total,
		Limit:   query.Limit,
		Offset:  query.Offset,
	})
}

// VerifyResult is the payload of GET /api/v1/audit/verify.
type VerifyResult struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (a *API) handleVerifyAudit(w http.ResponseWriter, r *http.Request) {
	if err := a.deps.Auditor.Verify(r.Context()); err != nil {
		respond(w, r, http.StatusOK, VerifyResult{Valid: false, Error: err.Error()})
		return
	}
	respond(w, r, http.StatusOK, VerifyResult{Valid: true})
}

func parseAuditQuery(r *http.Request) (*audit.Query, error) {
	q := r.URL.Query()
	query := &audit.Query{
		UserID:     q.Get("userId"),
		Username:   q.Get("username"),
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		EntityID:   q.Get("entityId"),
		IPAddress:  q.Get("ipAddress"),
		Status:     q.Get("status"),
		Search:     q.Get("search"),
		SortOrder:  q.Get("sortOrder"),
	}

	if v := q.Get("startTime"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("startTime must be RFC3339: %w", err)
		}
		query.StartTime = &t
	}
	if v := q.Get("endTime"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return nil, fmt.Errorf("endTime must be RFC3339: %w", err)
		}
		query.EndTime = &t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		query.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		query.Offset = n
	}
	return query, nil
}
