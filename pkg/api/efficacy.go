package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"meridian-hq/meridian/pkg/efficacy"
	"meridian-hq/meridian/pkg/rules"
)

func (a *API) handleEfficacyReport(w http.ResponseWriter, r *http.Request) {
	if a.deps.Scheduler == nil {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "efficacy reporting is not enabled")
		return
	}

	rulesetID := chi.URLParam(r, "rulesetID")
	env := rules.Environment(r.URL.Query().Get("environment"))
	if env == "" {
		env = a.defaultEnvironment()
	}

	// refresh=true bypasses the scheduler cache and computes on demand.
	if r.URL.Query().Get("refresh") == "true" {
		report, err := a.deps.Scheduler.Refresh(r.Context(), rulesetID, env)
		if err != nil {
			renderDomainError(w, r, err)
			return
		}
		respond(w, r, http.StatusOK, report)
		return
	}

	report := a.deps.Scheduler.Latest(rulesetID, env)
	if report == nil {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "no report available yet for this ruleset and environment")
		return
	}
	respond(w, r, http.StatusOK, report)
}

// LabelRequest is the body of POST /api/v1/labels.
type LabelRequest struct {
	TransactionID string         `json:"transactionId"`
	Label         efficacy.Label `json:"label"`
}

func (a *API) handleSubmitLabel(w http.ResponseWriter, r *http.Request) {
	if a.deps.Labels == nil {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "efficacy reporting is not enabled")
		return
	}

	var req LabelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body: "+err.Error())
		return
	}
	if req.TransactionID == "" {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "transactionId is required")
		return
	}
	if req.Label != efficacy.LabelFraud && req.Label != efficacy.LabelLegitimate {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "label must be FRAUD or LEGITIMATE")
		return
	}

	user := currentUser(r)
	label := &efficacy.LabeledTransaction{
		TransactionID: req.TransactionID,
		Label:         req.Label,
		LabeledBy:     user.Username,
		LabeledAt:     time.Now().UTC(),
	}
	if err := a.deps.Labels.Set(r.Context(), label); err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, label)
}
