package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/audit/recorder"
	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// Service runs the maker-checker workflow over a change request store, the
// version store, and the audit recorder.
type Service struct {
	requests Storage
	versions store.Store
	auditor  *recorder.Recorder
	logger   *slog.Logger

	// mu serializes reviews so apply, status transition, and audit write
	// act as one step per request.
	mu sync.Mutex
}

// NewService creates a workflow service.
func NewService(requests Storage, versions store.Store, auditor *recorder.Recorder) *Service {
	return &Service{
		requests: requests,
		versions: versions,
		auditor:  auditor,
		logger:   slog.Default().With("component", "workflow"),
	}
}

// SubmitRequest carries the maker's proposed change.
type SubmitRequest struct {
	Type       ChangeType       `json:"type"`
	EntityType store.EntityType `json:"entity_type"`
	EntityID   string           `json:"entity_id"`
	EntityName string           `json:"entity_name,omitempty"`
	Payload    json.RawMessage  `json:"payload,omitempty"`

	DeployVersion     int               `json:"deploy_version,omitempty"`
	DeployEnvironment rules.Environment `json:"deploy_environment,omitempty"`

	Reason string `json:"reason"`
}

// Submit validates and stores a new change request in PENDING state.
// The submission is audited; if the audit write fails the request is
// withdrawn and the error returned.
func (s *Service) Submit(ctx context.Context, user User, req *SubmitRequest) (*ChangeRequest, error) {
	if !user.Role.CanSubmit() {
		return nil, &AuthorizationError{Username: user.Username, Role: user.Role, Operation: "submit"}
	}
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	cr := &ChangeRequest{
		ID:                uuid.New().String(),
		Type:              req.Type,
		EntityType:        req.EntityType,
		EntityID:          req.EntityID,
		EntityName:        req.EntityName,
		Payload:           req.Payload,
		DeployVersion:     req.DeployVersion,
		DeployEnvironment: req.DeployEnvironment,
		Reason:            req.Reason,
		Status:            StatusPending,
		CreatedBy:         user.Username,
		CreatedByUserID:   user.ID,
		CreatedAt:         time.Now().UTC(),
	}

	if err := s.requests.Create(ctx, cr); err != nil {
		return nil, err
	}

	if err := s.recordChange(ctx, user, audit.ActionSubmitChange, cr, ""); err != nil {
		// Withdraw the request so an unaudited submission never surfaces.
		if delErr := s.requests.Delete(ctx, cr.ID); delErr != nil {
			s.logger.Error("failed to withdraw unaudited change request",
				"change_request_id", cr.ID, "error", delErr)
		}
		return nil, err
	}

	s.logger.Info("change request submitted",
		"change_request_id", cr.ID,
		"type", cr.Type,
		"entity_type", cr.EntityType,
		"entity_id", cr.EntityID,
		"created_by", cr.CreatedBy,
	)
	return cr, nil
}

// Approve applies a pending change request. The reviewer must hold checker
// rights and must not be the request's maker.
//
// Apply, status transition, and audit write happen as one unit: if the audit
// entry cannot be written, the applied change is compensated and the request
// returns to PENDING.
func (s *Service) Approve(ctx context.Context, user User, id, comments string) (*ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cr, err := s.reviewable(ctx, user, id, "approve")
	if err != nil {
		return nil, err
	}

	appliedVersion, compensate, err := s.apply(ctx, user, cr)
	if err != nil {
		return nil, &ApplyError{ChangeRequestID: cr.ID, Cause: err}
	}

	now := time.Now().UTC()
	review := &Review{
		Status:         StatusApproved,
		ReviewedBy:     user.Username,
		ReviewedAt:     now,
		Comments:       comments,
		AppliedVersion: appliedVersion,
	}
	if err := s.requests.Transition(ctx, cr.ID, StatusPending, review); err != nil {
		compensate()
		return nil, err
	}

	if err := s.recordChange(ctx, user, audit.ActionApproveChange, cr, comments); err != nil {
		compensate()
		if revertErr := s.requests.Transition(ctx, cr.ID, StatusApproved, &Review{Status: StatusPending}); revertErr != nil {
			s.logger.Error("failed to revert change request after audit failure",
				"change_request_id", cr.ID, "error", revertErr)
		}
		return nil, err
	}

	cr.Status = StatusApproved
	cr.ReviewedBy = user.Username
	cr.ReviewedAt = &now
	cr.ReviewComments = comments
	cr.AppliedVersion = appliedVersion

	s.logger.Info("change request approved",
		"change_request_id", cr.ID,
		"type", cr.Type,
		"entity_type", cr.EntityType,
		"entity_id", cr.EntityID,
		"applied_version", appliedVersion,
		"reviewed_by", user.Username,
	)
	return cr, nil
}

// Reject declines a pending change request. Comments are mandatory so the
// maker knows why. Nothing is applied; the rejection itself is audited and
// reverted if the audit write fails.
func (s *Service) Reject(ctx context.Context, user User, id, comments string) (*ChangeRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(comments) == "" {
		return nil, &ValidationError{Field: "comments", Message: "rejection comments are required"}
	}

	cr, err := s.reviewable(ctx, user, id, "reject")
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	review := &Review{
		Status:     StatusRejected,
		ReviewedBy: user.Username,
		ReviewedAt: now,
		Comments:   comments,
	}
	if err := s.requests.Transition(ctx, cr.ID, StatusPending, review); err != nil {
		return nil, err
	}

	if err := s.recordChange(ctx, user, audit.ActionRejectChange, cr, comments); err != nil {
		if revertErr := s.requests.Transition(ctx, cr.ID, StatusRejected, &Review{Status: StatusPending}); revertErr != nil {
			s.logger.Error("failed to revert change request after audit failure",
				"change_request_id", cr.ID, "error", revertErr)
		}
		return nil, err
	}

	cr.Status = StatusRejected
	cr.ReviewedBy = user.Username
	cr.ReviewedAt = &now
	cr.ReviewComments = comments

	s.logger.Info("change request rejected",
		"change_request_id", cr.ID,
		"reviewed_by", user.Username,
	)
	return cr, nil
}

// Get returns a change request by ID.
func (s *Service) Get(ctx context.Context, id string) (*ChangeRequest, error) {
	return s.requests.Get(ctx, id)
}

// List returns change requests matching the filter, newest first.
func (s *Service) List(ctx context.Context, filter *ListFilter) ([]*ChangeRequest, error) {
	if filter == nil {
		filter = &ListFilter{}
	}
	return s.requests.List(ctx, filter)
}

// DeployRequest targets an existing version at one or more environments.
type DeployRequest struct {
	EntityType   store.EntityType    `json:"entity_type"`
	EntityID     string              `json:"entity_id"`
	Version      int                 `json:"version"`
	Environments []rules.Environment `json:"environments"`
}

// Deploy repoints environment pointers directly, outside the change-request
// flow. The caller must hold checker rights. Every environment deploy writes
// its own audit entry; an audit failure restores that environment's previous
// pointer and aborts the remaining environments.
func (s *Service) Deploy(ctx context.Context, user User, req *DeployRequest) ([]*store.Deployment, error) {
	if !user.Role.CanReview() {
		return nil, &AuthorizationError{Username: user.Username, Role: user.Role, Operation: "deploy"}
	}
	if err := validateDeploy(req); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	deployments := make([]*store.Deployment, 0, len(req.Environments))
	for _, env := range req.Environments {
		prev, err := s.versions.GetDeployment(ctx, req.EntityType, req.EntityID, env)
		var notDeployed *store.NotDeployedError
		if err != nil && !errors.As(err, &notDeployed) {
			return nil, err
		}
		if err := s.versions.Deploy(ctx, req.EntityType, req.EntityID, req.Version, env, user.Username); err != nil {
			return nil, err
		}

		if err := s.recordDeploy(ctx, user, req, env); err != nil {
			s.restoreDeployment(req.EntityType, req.EntityID, env, prev)
			return nil, err
		}

		d, err := s.versions.GetDeployment(ctx, req.EntityType, req.EntityID, env)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}

	s.logger.Info("version deployed",
		"entity_type", req.EntityType,
		"entity_id", req.EntityID,
		"version", req.Version,
		"environments", req.Environments,
		"deployed_by", user.Username,
	)
	return deployments, nil
}

func (s *Service) recordDeploy(ctx context.Context, user User, req *DeployRequest, env rules.Environment) error {
	changes, err := json.Marshal(map[string]any{
		"version":     req.Version,
		"environment": env,
	})
	if err != nil {
		return err
	}
	return s.auditor.Record(ctx, &audit.Entry{
		UserID:     user.ID,
		Username:   user.Username,
		Action:     audit.ActionDeploy,
		EntityType: string(req.EntityType),
		EntityID:   req.EntityID,
		Changes:    string(changes),
	})
}

// restoreDeployment puts an environment pointer back after a failed audit
// write, or clears it when there was none.
func (s *Service) restoreDeployment(entityType store.EntityType, entityID string, env rules.Environment, prev *store.Deployment) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var err error
	if prev != nil {
		err = s.versions.Deploy(ctx, entityType, entityID, prev.Version, env, prev.DeployedBy)
	} else {
		err = s.versions.ClearDeployment(ctx, entityType, entityID, env)
	}
	if err != nil {
		s.logger.Error("compensation failed: could not restore deployment",
			"entity_type", entityType,
			"entity_id", entityID,
			"environment", env,
			"error", err,
		)
	}
}

func validateDeploy(req *DeployRequest) error {
	if !req.EntityType.Valid() {
		return &ValidationError{Field: "entity_type", Message: fmt.Sprintf("unknown entity type %q", req.EntityType)}
	}
	if strings.TrimSpace(req.EntityID) == "" {
		return &ValidationError{Field: "entity_id", Message: "entity id is required"}
	}
	if req.Version <= 0 {
		return &ValidationError{Field: "version", Message: "version must be positive"}
	}
	if len(req.Environments) == 0 {
		return &ValidationError{Field: "environments", Message: "at least one environment is required"}
	}
	for _, env := range req.Environments {
		valid := false
		for _, known := range rules.Environments() {
			if env == known {
				valid = true
				break
			}
		}
		if !valid {
			return &ValidationError{Field: "environments", Message: fmt.Sprintf("unknown environment %q", env)}
		}
	}
	return nil
}

// reviewable loads the request and runs the checks shared by Approve and
// Reject.
func (s *Service) reviewable(ctx context.Context, user User, id, operation string) (*ChangeRequest, error) {
	cr, err := s.requests.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cr.Status != StatusPending {
		return nil, &AlreadyResolvedError{ChangeRequestID: cr.ID, Status: cr.Status}
	}
	if cr.CreatedByUserID == user.ID {
		return nil, &SelfApprovalError{ChangeRequestID: cr.ID, Username: user.Username}
	}
	if !user.Role.CanReview() {
		return nil, &AuthorizationError{Username: user.Username, Role: user.Role, Operation: operation}
	}
	return cr, nil
}

// apply performs the request's mutation against the version store. It
// returns the version that was written (zero for deployments) and a
// compensation func that undoes the mutation.
func (s *Service) apply(ctx context.Context, user User, cr *ChangeRequest) (int, func(), error) {
	switch cr.Type {
	case ChangeCreate, ChangeUpdate:
		ve, err := s.versions.CreateVersion(ctx, cr.EntityType, cr.EntityID, cr.Payload, user.Username)
		if err != nil {
			return 0, nil, err
		}
		return ve.Version, s.discardFunc(cr, ve.Version), nil

	case ChangeDelete:
		ve, err := s.versions.CreateVersion(ctx, cr.EntityType, cr.EntityID, store.Tombstone, user.Username)
		if err != nil {
			return 0, nil, err
		}
		// Retire the entity from every environment so a deleted entity can
		// no longer be evaluated.
		prev, err := s.versions.ListDeployments(ctx, cr.EntityType, cr.EntityID)
		if err != nil {
			s.discardFunc(cr, ve.Version)()
			return 0, nil, err
		}
		for i, d := range prev {
			if err := s.versions.ClearDeployment(ctx, cr.EntityType, cr.EntityID, d.Environment); err != nil {
				s.undeleteFunc(cr, ve.Version, prev[:i])()
				return 0, nil, err
			}
		}
		return ve.Version, s.undeleteFunc(cr, ve.Version, prev), nil

	case ChangeDeploy:
		prev, err := s.versions.GetDeployment(ctx, cr.EntityType, cr.EntityID, cr.DeployEnvironment)
		var notDeployed *store.NotDeployedError
		if err != nil && !errors.As(err, &notDeployed) {
			return 0, nil, err
		}
		if err := s.versions.Deploy(ctx, cr.EntityType, cr.EntityID, cr.DeployVersion, cr.DeployEnvironment, user.Username); err != nil {
			return 0, nil, err
		}
		return 0, s.redeployFunc(cr, prev), nil

	default:
		return 0, nil, &ValidationError{Field: "type", Message: fmt.Sprintf("unknown change type %q", cr.Type)}
	}
}

// discardFunc returns a compensation that drops the version just written.
func (s *Service) discardFunc(cr *ChangeRequest, version int) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.versions.DiscardVersion(ctx, cr.EntityType, cr.EntityID, version); err != nil {
			s.logger.Error("compensation failed: could not discard version",
				"change_request_id", cr.ID,
				"entity_type", cr.EntityType,
				"entity_id", cr.EntityID,
				"version", version,
				"error", err,
			)
		}
	}
}

// undeleteFunc returns a compensation that re-points the deployments cleared
// by a DELETE and then drops the tombstone version.
func (s *Service) undeleteFunc(cr *ChangeRequest, version int, cleared []*store.Deployment) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		for _, d := range cleared {
			if err := s.versions.Deploy(ctx, cr.EntityType, cr.EntityID, d.Version, d.Environment, d.DeployedBy); err != nil {
				s.logger.Error("compensation failed: could not restore deployment",
					"change_request_id", cr.ID,
					"entity_type", cr.EntityType,
					"entity_id", cr.EntityID,
					"environment", d.Environment,
					"error", err,
				)
			}
		}
		if err := s.versions.DiscardVersion(ctx, cr.EntityType, cr.EntityID, version); err != nil {
			s.logger.Error("compensation failed: could not discard tombstone version",
				"change_request_id", cr.ID,
				"entity_type", cr.EntityType,
				"entity_id", cr.EntityID,
				"version", version,
				"error", err,
			)
		}
	}
}

// redeployFunc returns a compensation that restores the previous deployment
// pointer, or clears it when there was none.
func (s *Service) redeployFunc(cr *ChangeRequest, prev *store.Deployment) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		var err error
		if prev != nil {
			err = s.versions.Deploy(ctx, cr.EntityType, cr.EntityID, prev.Version, cr.DeployEnvironment, prev.DeployedBy)
		} else {
			err = s.versions.ClearDeployment(ctx, cr.EntityType, cr.EntityID, cr.DeployEnvironment)
		}
		if err != nil {
			s.logger.Error("compensation failed: could not restore deployment",
				"change_request_id", cr.ID,
				"entity_type", cr.EntityType,
				"entity_id", cr.EntityID,
				"environment", cr.DeployEnvironment,
				"error", err,
			)
		}
	}
}

// recordChange writes the audit entry for a workflow action.
func (s *Service) recordChange(ctx context.Context, user User, action string, cr *ChangeRequest, comments string) error {
	changes, err := json.Marshal(map[string]any{
		"change_request_id": cr.ID,
		"change_type":       cr.Type,
		"reason":            cr.Reason,
		"comments":          comments,
	})
	if err != nil {
		return err
	}
	return s.auditor.Record(ctx, &audit.Entry{
		UserID:     user.ID,
		Username:   user.Username,
		Action:     action,
		EntityType: string(cr.EntityType),
		EntityID:   cr.EntityID,
		Changes:    string(changes),
	})
}

// validateSubmit checks a submission for structural problems before a change
// request is created.
func validateSubmit(req *SubmitRequest) error {
	if !req.Type.Valid() {
		return &ValidationError{Field: "type", Message: fmt.Sprintf("unknown change type %q", req.Type)}
	}
	if !req.EntityType.Valid() {
		return &ValidationError{Field: "entity_type", Message: fmt.Sprintf("unknown entity type %q", req.EntityType)}
	}
	if strings.TrimSpace(req.EntityID) == "" {
		return &ValidationError{Field: "entity_id", Message: "entity id is required"}
	}
	if strings.TrimSpace(req.Reason) == "" {
		return &ValidationError{Field: "reason", Message: "a reason is required for every change request"}
	}

	switch req.Type {
	case ChangeCreate, ChangeUpdate:
		if len(req.Payload) == 0 {
			return &ValidationError{Field: "payload", Message: "payload is required for CREATE and UPDATE"}
		}
		return validatePayload(req)
	case ChangeDeploy:
		if req.DeployVersion <= 0 {
			return &ValidationError{Field: "deploy_version", Message: "deploy version must be positive"}
		}
		valid := false
		for _, env := range rules.Environments() {
			if req.DeployEnvironment == env {
				valid = true
				break
			}
		}
		if !valid {
			return &ValidationError{Field: "deploy_environment", Message: fmt.Sprintf("unknown environment %q", req.DeployEnvironment)}
		}
	}
	return nil
}

// validatePayload parses the proposed document against the entity's schema
// so malformed entities are caught at submission, not at approval.
func validatePayload(req *SubmitRequest) error {
	switch req.EntityType {
	case store.EntityTypeRule:
		var rule rules.Rule
		if err := json.Unmarshal(req.Payload, &rule); err != nil {
			return &ValidationError{Field: "payload", Message: fmt.Sprintf("payload is not a valid rule: %v", err)}
		}
		if err := rules.ValidateRule(&rule); err != nil {
			return &ValidationError{Field: "payload", Message: err.Error()}
		}
	case store.EntityTypeRuleset:
		var rs rules.Ruleset
		if err := json.Unmarshal(req.Payload, &rs); err != nil {
			return &ValidationError{Field: "payload", Message: fmt.Sprintf("payload is not a valid ruleset: %v", err)}
		}
		if err := rules.ValidateRuleset(&rs); err != nil {
			return &ValidationError{Field: "payload", Message: err.Error()}
		}
	case store.EntityTypeDictionary:
		var dict dictionary.Dictionary
		if err := json.Unmarshal(req.Payload, &dict); err != nil {
			return &ValidationError{Field: "payload", Message: fmt.Sprintf("payload is not a valid dictionary: %v", err)}
		}
	}
	return nil
}
