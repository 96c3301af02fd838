package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"meridian-hq/meridian/pkg/store"
	"meridian-hq/meridian/pkg/workflow"
)

// ReviewRequest is the body of the approve and reject endpoints.
type ReviewRequest struct {
	Comments string `json:"comments,omitempty"`
}

func (a *API) handleSubmitChange(w http.ResponseWriter, r *http.Request) {
	var req workflow.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body: "+err.Error())
		return
	}

	cr, err := a.deps.Workflow.Submit(r.Context(), currentUser(r), &req)
	a.recordChangeMetric("submit", err)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, cr)
}

func (a *API) handleListChanges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := &workflow.ListFilter{
		Status:     workflow.ChangeStatus(q.Get("status")),
		Type:       workflow.ChangeType(q.Get("type")),
		EntityType: store.EntityType(q.Get("entityType")),
		EntityID:   q.Get("entityId"),
		CreatedBy:  q.Get("createdBy"),
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}
	if filter.Limit == 0 && a.deps.Config != nil {
		filter.Limit = a.deps.Config.Workflow.ListLimit
	}

	crs, err := a.deps.Workflow.List(r.Context(), filter)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, crs)
}

func (a *API) handleGetChange(w http.ResponseWriter, r *http.Request) {
	cr, err := a.deps.Workflow.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, cr)
}

func (a *API) handleApproveChange(w http.ResponseWriter, r *http.Request) {
	a.handleReview(w, r, "approve")
}

func (a *API) handleRejectChange(w http.ResponseWriter, r *http.Request) {
	a.handleReview(w, r, "reject")
}

func (a *API) handleReview(w http.ResponseWriter, r *http.Request, verb string) {
	var req ReviewRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body: "+err.Error())
			return
		}
	}

	id := chi.URLParam(r, "id")
	user := currentUser(r)

	var (
		cr  *workflow.ChangeRequest
		err error
	)
	if verb == "approve" {
		cr, err = a.deps.Workflow.Approve(r.Context(), user, id, req.Comments)
	} else {
		cr, err = a.deps.Workflow.Reject(r.Context(), user, id, req.Comments)
	}
	a.recordChangeMetric(verb, err)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	if a.deps.Metrics != nil && cr.Type == workflow.ChangeDeploy && cr.Status == workflow.StatusApproved {
		a.deps.Metrics.RecordDeployment(string(cr.DeployEnvironment), string(cr.EntityType))
	}
	respond(w, r, http.StatusOK, cr)
}

func (a *API) recordChangeMetric(action string, err error) {
	if a.deps.Metrics == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	a.deps.Metrics.RecordChangeRequest(action, outcome)
}
