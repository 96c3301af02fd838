package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/engine"
	"meridian-hq/meridian/pkg/store"
	"meridian-hq/meridian/pkg/workflow"
)

// Stable error codes returned in the response envelope.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeNotDeployed     = "NOT_DEPLOYED"
	CodeForbidden       = "FORBIDDEN"
	CodeSelfApproval    = "SELF_APPROVAL_FORBIDDEN"
	CodeAlreadyResolved = "ALREADY_RESOLVED"
	CodeImmutability    = "IMMUTABILITY_VIOLATION"
	CodeTimeout         = "EVALUATION_TIMEOUT"
	CodeAuditFailure    = "AUDIT_FAILURE"
	CodeInternal        = "INTERNAL_ERROR"
)

type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respond(w http.ResponseWriter, r *http.Request, status int, data any) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, envelope{Error: &errorBody{Code: code, Message: message}})
}

// renderDomainError maps domain errors onto HTTP statuses and stable codes.
func renderDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		wfValidation  *workflow.ValidationError
		wfAuthz       *workflow.AuthorizationError
		wfSelf        *workflow.SelfApprovalError
		wfResolved    *workflow.AlreadyResolvedError
		wfNotFound    *workflow.NotFoundError
		stNotFound    *store.VersionNotFoundError
		stNotDeployed *store.NotDeployedError
		stImmutable   *store.ImmutabilityError
		engValidation *engine.TransactionValidationError
		engTimeout    *engine.EvaluationTimeoutError
		audRecord     *audit.RecordError
	)

	switch {
	case errors.As(err, &wfValidation):
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.As(err, &wfAuthz):
		respondError(w, r, http.StatusForbidden, CodeForbidden, err.Error())
	case errors.As(err, &wfSelf):
		respondError(w, r, http.StatusForbidden, CodeSelfApproval, err.Error())
	case errors.As(err, &wfResolved):
		respondError(w, r, http.StatusConflict, CodeAlreadyResolved, err.Error())
	case errors.As(err, &wfNotFound), errors.As(err, &stNotFound):
		respondError(w, r, http.StatusNotFound, CodeNotFound, err.Error())
	case errors.As(err, &stNotDeployed):
		respondError(w, r, http.StatusNotFound, CodeNotDeployed, err.Error())
	case errors.As(err, &stImmutable):
		respondError(w, r, http.StatusConflict, CodeImmutability, err.Error())
	case errors.As(err, &engValidation):
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error())
	case errors.As(err, &engTimeout):
		respondError(w, r, http.StatusGatewayTimeout, CodeTimeout, err.Error())
	case errors.As(err, &audRecord):
		respondError(w, r, http.StatusInternalServerError, CodeAuditFailure, err.Error())
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, err.Error())
	}
}
