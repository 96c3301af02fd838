package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/efficacy"
	"meridian-hq/meridian/pkg/engine"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// EvaluateRequest is the body of POST /api/v1/evaluate.
type EvaluateRequest struct {
	// TransactionID identifies the transaction for audit and efficacy
	// correlation. Generated when absent.
	TransactionID string `json:"transactionId,omitempty"`

	// RulesetID names the ruleset to evaluate against. Required.
	RulesetID string `json:"rulesetId"`

	// Environment selects the deployed version; defaults to the configured
	// engine environment.
	Environment string `json:"environment,omitempty"`

	// Transaction is the field map evaluated against the ruleset. Required.
	Transaction rules.Transaction `json:"transaction"`
}

// EvaluateResponse pairs the decision with the transaction identifier.
type EvaluateResponse struct {
	TransactionID string           `json:"transactionId"`
	Decision      *engine.Decision `json:"decision"`
}

func (a *API) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body: "+err.Error())
		return
	}
	if req.RulesetID == "" {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "rulesetId is required")
		return
	}
	if len(req.Transaction) == 0 {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "transaction is required")
		return
	}
	if req.TransactionID == "" {
		req.TransactionID = uuid.New().String()
	}

	env := rules.Environment(req.Environment)
	if env == "" {
		env = a.defaultEnvironment()
	}

	start := time.Now()
	decision, err := a.deps.Engine.Decide(r.Context(), req.RulesetID, env, req.Transaction)
	if err != nil {
		var timeout *engine.EvaluationTimeoutError
		if errors.As(err, &timeout) && a.deps.Metrics != nil {
			a.deps.Metrics.RecordEvaluationTimeout(string(env))
		}
		renderDomainError(w, r, err)
		return
	}

	if a.deps.Metrics != nil {
		a.deps.Metrics.RecordEvaluation(string(env), string(decision.FinalAction), time.Since(start))
		for _, tr := range decision.TriggeredRules {
			a.deps.Metrics.RecordRuleHit(req.RulesetID, tr.RuleID)
		}
		a.deps.Metrics.RecordDegradedRules(req.RulesetID, len(decision.DegradedRules))
	}

	// An evaluation is a read, not a mutation: an audit failure here is
	// logged and surfaced in metrics but never withholds the decision.
	a.recordEvaluation(r, &req, env, decision)

	respond(w, r, http.StatusOK, EvaluateResponse{
		TransactionID: req.TransactionID,
		Decision:      decision,
	})
}

func (a *API) recordEvaluation(r *http.Request, req *EvaluateRequest, env rules.Environment, decision *engine.Decision) {
	if a.deps.Auditor == nil {
		return
	}

	triggered := make([]string, 0, len(decision.TriggeredRules))
	for _, tr := range decision.TriggeredRules {
		triggered = append(triggered, tr.RuleID)
	}
	record := efficacy.EvaluationRecord{
		TransactionID:  req.TransactionID,
		Environment:    env,
		FinalAction:    decision.FinalAction,
		Score:          decision.Score,
		TriggeredRules: triggered,
	}
	changes, err := json.Marshal(record)
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to encode evaluation record", "error", err)
		return
	}

	user := currentUser(r)
	entry := &audit.Entry{
		UserID:     user.ID,
		Username:   user.Username,
		IPAddress:  r.RemoteAddr,
		Action:     audit.ActionEvaluate,
		EntityType: string(store.EntityTypeRuleset),
		EntityID:   req.RulesetID,
		Changes:    string(changes),
		Status:     audit.StatusSuccess,
	}

	err = a.deps.Auditor.Record(r.Context(), entry)
	if a.deps.Metrics != nil {
		a.deps.Metrics.RecordAuditWrite(err == nil)
	}
	if err != nil {
		a.logger.ErrorContext(r.Context(), "failed to record evaluation in audit trail",
			"transaction_id", req.TransactionID,
			"ruleset_id", req.RulesetID,
			"error", err,
		)
	}
}

func (a *API) defaultEnvironment() rules.Environment {
	if a.deps.Config != nil && a.deps.Config.Engine.DefaultEnvironment != "" {
		return rules.Environment(a.deps.Config.Engine.DefaultEnvironment)
	}
	return rules.EnvProd
}
