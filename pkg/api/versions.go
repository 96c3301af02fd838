package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
	"meridian-hq/meridian/pkg/workflow"
)

func entityParams(r *http.Request) (store.EntityType, string, bool) {
	entityType := store.EntityType(strings.ToUpper(chi.URLParam(r, "entityType")))
	entityID := chi.URLParam(r, "entityID")
	return entityType, entityID, entityType.Valid() && entityID != ""
}

func (a *API) handleListVersions(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := entityParams(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "unknown entity type or missing entity id")
		return
	}

	versions, err := a.deps.Versions.ListVersions(r.Context(), entityType, entityID)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, versions)
}

func (a *API) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := entityParams(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "unknown entity type or missing entity id")
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "version must be an integer")
		return
	}

	ve, err := a.deps.Versions.GetVersion(r.Context(), entityType, entityID, version)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, ve)
}

// DeployRequest targets an existing version at one or more environments.
type DeployRequest struct {
	Version      int      `json:"version"`
	Environments []string `json:"environments"`
}

func (a *API) handleDeploy(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := entityParams(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "unknown entity type or missing entity id")
		return
	}

	var req DeployRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "invalid request body: "+err.Error())
		return
	}

	envs := make([]rules.Environment, 0, len(req.Environments))
	for _, env := range req.Environments {
		envs = append(envs, rules.Environment(strings.ToUpper(env)))
	}

	user := currentUser(r)
	deployments, err := a.deps.Workflow.Deploy(r.Context(), user, &workflow.DeployRequest{
		EntityType:   entityType,
		EntityID:     entityID,
		Version:      req.Version,
		Environments: envs,
	})
	if err != nil {
		renderDomainError(w, r, err)
		return
	}

	if a.deps.Metrics != nil {
		for _, d := range deployments {
			a.deps.Metrics.RecordDeployment(string(d.Environment), string(entityType))
		}
	}
	respond(w, r, http.StatusOK, deployments)
}

func (a *API) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	entityType, entityID, ok := entityParams(r)
	if !ok {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "unknown entity type or missing entity id")
		return
	}

	deployments, err := a.deps.Versions.ListDeployments(r.Context(), entityType, entityID)
	if err != nil {
		renderDomainError(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, deployments)
}
