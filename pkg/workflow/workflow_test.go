package workflow_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"meridian-hq/meridian/pkg/audit"
	"meridian-hq/meridian/pkg/audit/recorder"
	auditstorage "meridian-hq/meridian/pkg/audit/storage"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
	"meridian-hq/meridian/pkg/workflow"
	wfstorage "meridian-hq/meridian/pkg/workflow/storage"
)

var (
	maker   = workflow.User{ID: "u-1", Username: "alice", Role: workflow.RoleMaker}
	checker = workflow.User{ID: "u-2", Username: "bob", Role: workflow.RoleChecker}
	admin   = workflow.User{ID: "u-3", Username: "carol", Role: workflow.RoleAdmin}
	viewer  = workflow.User{ID: "u-4", Username: "dave", Role: workflow.RoleViewer}
)

type fixture struct {
	service  *workflow.Service
	versions *store.MemoryStore
	requests *wfstorage.MemoryStorage
	trail    *auditstorage.MemoryStorage
}

func newFixture(t *testing.T, auditStore audit.Storage) *fixture {
	t.Helper()
	versions := store.NewMemoryStore()
	requests := wfstorage.NewMemoryStorage()
	var trail *auditstorage.MemoryStorage
	if auditStore == nil {
		trail = auditstorage.NewMemoryStorage()
		auditStore = trail
	}
	svc := workflow.NewService(requests, versions, recorder.NewRecorder(auditStore, nil))
	return &fixture{service: svc, versions: versions, requests: requests, trail: trail}
}

func rulesetPayload(t *testing.T) json.RawMessage {
	t.Helper()
	rs := rules.Ruleset{
		ID:      "rs-1",
		Name:    "card present fraud",
		Domain:  rules.DomainRetail,
		Active:  true,
		Version: 1,
		Rules: []*rules.Rule{
			{
				ID:       "r-1",
				Name:     "high amount",
				Domain:   rules.DomainRetail,
				Priority: 1,
				Status:   rules.StatusActive,
				Condition: &rules.ConditionNode{
					Field:    "amount",
					Operator: rules.OpGreaterThan,
					Value:    10000.0,
					DataType: rules.TypeNumber,
				},
				Action: rules.RuleAction{Type: rules.ActionBlock, Reason: "amount exceeds limit"},
			},
		},
	}
	payload, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal ruleset: %v", err)
	}
	return payload
}

func submitCreate(t *testing.T, f *fixture) *workflow.ChangeRequest {
	t.Helper()
	cr, err := f.service.Submit(context.Background(), maker, &workflow.SubmitRequest{
		Type:       workflow.ChangeCreate,
		EntityType: store.EntityTypeRuleset,
		EntityID:   "rs-1",
		Payload:    rulesetPayload(t),
		Reason:     "new card present ruleset",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return cr
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		user workflow.User
		req  *workflow.SubmitRequest
	}{
		{
			name: "viewer may not submit",
			user: viewer,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeCreate, EntityType: store.EntityTypeRuleset,
				EntityID: "rs-1", Payload: rulesetPayload(t), Reason: "x",
			},
		},
		{
			name: "blank reason",
			user: maker,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeCreate, EntityType: store.EntityTypeRuleset,
				EntityID: "rs-1", Payload: rulesetPayload(t), Reason: "   ",
			},
		},
		{
			name: "missing payload for create",
			user: maker,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeCreate, EntityType: store.EntityTypeRuleset,
				EntityID: "rs-1", Reason: "x",
			},
		},
		{
			name: "unknown entity type",
			user: maker,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeCreate, EntityType: "WIDGET",
				EntityID: "w-1", Payload: rulesetPayload(t), Reason: "x",
			},
		},
		{
			name: "deploy without version",
			user: maker,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeDeploy, EntityType: store.EntityTypeRuleset,
				EntityID: "rs-1", DeployEnvironment: rules.EnvProd, Reason: "x",
			},
		},
		{
			name: "deploy to unknown environment",
			user: maker,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeDeploy, EntityType: store.EntityTypeRuleset,
				EntityID: "rs-1", DeployVersion: 1, DeployEnvironment: "QA", Reason: "x",
			},
		},
		{
			name: "malformed ruleset payload",
			user: maker,
			req: &workflow.SubmitRequest{
				Type: workflow.ChangeCreate, EntityType: store.EntityTypeRuleset,
				EntityID: "rs-1", Payload: json.RawMessage(`{"rules": "nope"}`), Reason: "x",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.service.Submit(ctx, tt.user, tt.req); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApproveAppliesVersion(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cr := submitCreate(t, f)
	approved, err := f.service.Approve(ctx, checker, cr.ID, "looks good")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != workflow.StatusApproved {
		t.Errorf("status = %s, want APPROVED", approved.Status)
	}
	if approved.AppliedVersion != 1 {
		t.Errorf("applied version = %d, want 1", approved.AppliedVersion)
	}

	ve, err := f.versions.LatestVersion(ctx, store.EntityTypeRuleset, "rs-1")
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if ve.Version != 1 {
		t.Errorf("stored version = %d, want 1", ve.Version)
	}

	// Submission and approval are both on the trail.
	n, err := f.trail.Count(ctx, &audit.Query{EntityID: cr.EntityID})
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Errorf("audit entries = %d, want 2", n)
	}
}

func TestApproveDeployRepointsEnvironment(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	create := submitCreate(t, f)
	if _, err := f.service.Approve(ctx, checker, create.ID, "ok"); err != nil {
		t.Fatalf("Approve create: %v", err)
	}

	deploy, err := f.service.Submit(ctx, maker, &workflow.SubmitRequest{
		Type:              workflow.ChangeDeploy,
		EntityType:        store.EntityTypeRuleset,
		EntityID:          "rs-1",
		DeployVersion:     1,
		DeployEnvironment: rules.EnvProd,
		Reason:            "go live",
	})
	if err != nil {
		t.Fatalf("Submit deploy: %v", err)
	}
	if _, err := f.service.Approve(ctx, checker, deploy.ID, "ok"); err != nil {
		t.Fatalf("Approve deploy: %v", err)
	}

	d, err := f.versions.GetDeployment(ctx, store.EntityTypeRuleset, "rs-1", rules.EnvProd)
	if err != nil {
		t.Fatalf("GetDeployment: %v", err)
	}
	if d.Version != 1 {
		t.Errorf("deployed version = %d, want 1", d.Version)
	}
}

func TestSelfApprovalRejected(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	// Even an admin cannot review their own submission.
	cr, err := f.service.Submit(ctx, admin, &workflow.SubmitRequest{
		Type:       workflow.ChangeCreate,
		EntityType: store.EntityTypeRuleset,
		EntityID:   "rs-1",
		Payload:    rulesetPayload(t),
		Reason:     "new ruleset",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = f.service.Approve(ctx, admin, cr.ID, "approving my own work")
	var se *workflow.SelfApprovalError
	if !errors.As(err, &se) {
		t.Fatalf("expected SelfApprovalError, got %v", err)
	}

	_, err = f.service.Reject(ctx, admin, cr.ID, "rejecting my own work")
	if !errors.As(err, &se) {
		t.Fatalf("expected SelfApprovalError on reject, got %v", err)
	}
}

func TestReviewerNeedsCheckerRights(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cr := submitCreate(t, f)
	_, err := f.service.Approve(ctx, viewer, cr.ID, "ok")
	var ae *workflow.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestResolvedRequestCannotBeReviewedAgain(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cr := submitCreate(t, f)
	if _, err := f.service.Approve(ctx, checker, cr.ID, "ok"); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	_, err := f.service.Approve(ctx, admin, cr.ID, "me too")
	var ar *workflow.AlreadyResolvedError
	if !errors.As(err, &ar) {
		t.Fatalf("expected AlreadyResolvedError, got %v", err)
	}
	if ar.Status != workflow.StatusApproved {
		t.Errorf("resolved status = %s, want APPROVED", ar.Status)
	}

	_, err = f.service.Reject(ctx, admin, cr.ID, "too late")
	if !errors.As(err, &ar) {
		t.Fatalf("expected AlreadyResolvedError on reject, got %v", err)
	}
}

func TestRejectRequiresComments(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	cr := submitCreate(t, f)
	if _, err := f.service.Reject(ctx, checker, cr.ID, "  "); err == nil {
		t.Fatal("expected error for blank comments")
	}

	rejected, err := f.service.Reject(ctx, checker, cr.ID, "threshold too low")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != workflow.StatusRejected {
		t.Errorf("status = %s, want REJECTED", rejected.Status)
	}
	if rejected.ReviewComments != "threshold too low" {
		t.Errorf("comments = %q", rejected.ReviewComments)
	}

	// Rejection applied nothing.
	if _, err := f.versions.LatestVersion(ctx, store.EntityTypeRuleset, "rs-1"); err == nil {
		t.Error("expected no version to exist after rejection")
	}
}

// faultyAuditStorage fails every write after the first n.
type faultyAuditStorage struct {
	*auditstorage.MemoryStorage
	allowed int
	writes  int
}

func (f *faultyAuditStorage) Store(ctx context.Context, entry *audit.Entry) error {
	f.writes++
	if f.writes > f.allowed {
		return audit.NewStorageError("memory", "store", errors.New("disk full"))
	}
	return f.MemoryStorage.Store(ctx, entry)
}

func TestAuditFailureRollsBackApproval(t *testing.T) {
	// Allow the submission audit through, fail the approval audit.
	faulty := &faultyAuditStorage{MemoryStorage: auditstorage.NewMemoryStorage(), allowed: 1}
	f := newFixture(t, faulty)
	ctx := context.Background()

	cr := submitCreate(t, f)

	_, err := f.service.Approve(ctx, checker, cr.ID, "ok")
	var re *audit.RecordError
	if !errors.As(err, &re) {
		t.Fatalf("expected RecordError, got %v", err)
	}

	// The version write was compensated.
	if _, err := f.versions.LatestVersion(ctx, store.EntityTypeRuleset, "rs-1"); err == nil {
		t.Error("expected version to be discarded after audit failure")
	}

	// The request is PENDING again and reviewable once audit recovers.
	got, err := f.service.Get(ctx, cr.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != workflow.StatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}

	faulty.allowed = 1000
	if _, err := f.service.Approve(ctx, checker, cr.ID, "ok"); err != nil {
		t.Fatalf("Approve after audit recovery: %v", err)
	}
}

func TestAuditFailureWithdrawsSubmission(t *testing.T) {
	faulty := &faultyAuditStorage{MemoryStorage: auditstorage.NewMemoryStorage(), allowed: 0}
	f := newFixture(t, faulty)
	ctx := context.Background()

	_, err := f.service.Submit(ctx, maker, &workflow.SubmitRequest{
		Type:       workflow.ChangeCreate,
		EntityType: store.EntityTypeRuleset,
		EntityID:   "rs-1",
		Payload:    rulesetPayload(t),
		Reason:     "new ruleset",
	})
	if err == nil {
		t.Fatal("expected submit to fail when audit is down")
	}

	pending, err := f.service.List(ctx, &workflow.ListFilter{Status: workflow.StatusPending})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending requests = %d, want 0", len(pending))
	}
}

func TestDeleteRetiresEntity(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	create := submitCreate(t, f)
	if _, err := f.service.Approve(ctx, checker, create.ID, "ok"); err != nil {
		t.Fatalf("Approve create: %v", err)
	}
	for _, env := range []rules.Environment{rules.EnvDev, rules.EnvProd} {
		if err := f.versions.Deploy(ctx, store.EntityTypeRuleset, "rs-1", 1, env, "bob"); err != nil {
			t.Fatalf("Deploy %s: %v", env, err)
		}
	}

	del, err := f.service.Submit(ctx, maker, &workflow.SubmitRequest{
		Type:       workflow.ChangeDelete,
		EntityType: store.EntityTypeRuleset,
		EntityID:   "rs-1",
		Reason:     "retire ruleset",
	})
	if err != nil {
		t.Fatalf("Submit delete: %v", err)
	}
	if _, err := f.service.Approve(ctx, checker, del.ID, "ok"); err != nil {
		t.Fatalf("Approve delete: %v", err)
	}

	// Every environment pointer is cleared: the entity is no longer
	// evaluable anywhere.
	for _, env := range []rules.Environment{rules.EnvDev, rules.EnvProd} {
		_, err := f.versions.GetDeployed(ctx, store.EntityTypeRuleset, "rs-1", env)
		var nd *store.NotDeployedError
		if !errors.As(err, &nd) {
			t.Errorf("GetDeployed %s after delete = %v, want NotDeployedError", env, err)
		}
	}

	// The deleted entity reads as not found while history stays queryable.
	_, err = f.versions.LatestVersion(ctx, store.EntityTypeRuleset, "rs-1")
	var nf *store.VersionNotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("LatestVersion after delete = %v, want VersionNotFoundError", err)
	}
	ts, err := f.versions.GetVersion(ctx, store.EntityTypeRuleset, "rs-1", 2)
	if err != nil {
		t.Fatalf("GetVersion tombstone: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(ts.Payload, &doc); err != nil {
		t.Fatalf("unmarshal tombstone: %v", err)
	}
	if doc["deleted"] != true {
		t.Errorf("tombstone payload = %s", ts.Payload)
	}
	if _, err := f.versions.GetVersion(ctx, store.EntityTypeRuleset, "rs-1", 1); err != nil {
		t.Errorf("GetVersion 1 after delete: %v", err)
	}
}

func TestAuditFailureRestoresDeletedEntity(t *testing.T) {
	// Allow the submit+approve of CREATE and the submit of DELETE; the
	// DELETE approval's audit write fails.
	faulty := &faultyAuditStorage{MemoryStorage: auditstorage.NewMemoryStorage(), allowed: 3}
	f := newFixture(t, faulty)
	ctx := context.Background()

	create := submitCreate(t, f)
	if _, err := f.service.Approve(ctx, checker, create.ID, "ok"); err != nil {
		t.Fatalf("Approve create: %v", err)
	}
	if err := f.versions.Deploy(ctx, store.EntityTypeRuleset, "rs-1", 1, rules.EnvProd, "bob"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}

	del, err := f.service.Submit(ctx, maker, &workflow.SubmitRequest{
		Type:       workflow.ChangeDelete,
		EntityType: store.EntityTypeRuleset,
		EntityID:   "rs-1",
		Reason:     "retire ruleset",
	})
	if err != nil {
		t.Fatalf("Submit delete: %v", err)
	}
	if _, err := f.service.Approve(ctx, checker, del.ID, "ok"); err == nil {
		t.Fatal("expected approve to fail on the audit write")
	}

	// Compensation restores the deployment and drops the tombstone.
	latest, err := f.versions.LatestVersion(ctx, store.EntityTypeRuleset, "rs-1")
	if err != nil {
		t.Fatalf("LatestVersion: %v", err)
	}
	if latest.Version != 1 {
		t.Errorf("latest version = %d, want 1", latest.Version)
	}
	d, err := f.versions.GetDeployment(ctx, store.EntityTypeRuleset, "rs-1", rules.EnvProd)
	if err != nil {
		t.Fatalf("GetDeployment: %v", err)
	}
	if d.Version != 1 {
		t.Errorf("deployed version = %d, want 1", d.Version)
	}

	got, err := f.service.Get(ctx, del.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != workflow.StatusPending {
		t.Errorf("status = %s, want PENDING", got.Status)
	}
}

func TestDirectDeploy(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if _, err := f.versions.CreateVersion(ctx, store.EntityTypeRuleset, "rs-1", rulesetPayload(t), "alice"); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}

	t.Run("maker cannot deploy", func(t *testing.T) {
		_, err := f.service.Deploy(ctx, maker, &workflow.DeployRequest{
			EntityType:   store.EntityTypeRuleset,
			EntityID:     "rs-1",
			Version:      1,
			Environments: []rules.Environment{rules.EnvDev},
		})
		var ae *workflow.AuthorizationError
		if !errors.As(err, &ae) {
			t.Fatalf("expected AuthorizationError, got %v", err)
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			name string
			req  *workflow.DeployRequest
		}{
			{"no environments", &workflow.DeployRequest{EntityType: store.EntityTypeRuleset, EntityID: "rs-1", Version: 1}},
			{"unknown environment", &workflow.DeployRequest{EntityType: store.EntityTypeRuleset, EntityID: "rs-1", Version: 1, Environments: []rules.Environment{"QA"}}},
			{"zero version", &workflow.DeployRequest{EntityType: store.EntityTypeRuleset, EntityID: "rs-1", Environments: []rules.Environment{rules.EnvDev}}},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := f.service.Deploy(ctx, checker, tc.req)
				var ve *workflow.ValidationError
				if !errors.As(err, &ve) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
			})
		}
	})

	t.Run("multi environment", func(t *testing.T) {
		deployments, err := f.service.Deploy(ctx, checker, &workflow.DeployRequest{
			EntityType:   store.EntityTypeRuleset,
			EntityID:     "rs-1",
			Version:      1,
			Environments: []rules.Environment{rules.EnvDev, rules.EnvProd},
		})
		if err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		if len(deployments) != 2 {
			t.Fatalf("deployments = %d, want 2", len(deployments))
		}
		for _, env := range []rules.Environment{rules.EnvDev, rules.EnvProd} {
			d, err := f.versions.GetDeployment(ctx, store.EntityTypeRuleset, "rs-1", env)
			if err != nil {
				t.Fatalf("GetDeployment(%s): %v", env, err)
			}
			if d.Version != 1 {
				t.Errorf("%s deployed version = %d, want 1", env, d.Version)
			}
		}

		// One DEPLOY audit entry per environment.
		count, err := f.trail.Count(ctx, &audit.Query{Action: audit.ActionDeploy})
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 2 {
			t.Errorf("deploy audit entries = %d, want 2", count)
		}
	})

	t.Run("idempotent repeat audits once more", func(t *testing.T) {
		if _, err := f.service.Deploy(ctx, checker, &workflow.DeployRequest{
			EntityType:   store.EntityTypeRuleset,
			EntityID:     "rs-1",
			Version:      1,
			Environments: []rules.Environment{rules.EnvProd},
		}); err != nil {
			t.Fatalf("Deploy: %v", err)
		}
		d, err := f.versions.GetDeployment(ctx, store.EntityTypeRuleset, "rs-1", rules.EnvProd)
		if err != nil {
			t.Fatalf("GetDeployment: %v", err)
		}
		if d.Version != 1 {
			t.Errorf("deployed version = %d, want 1", d.Version)
		}
		count, err := f.trail.Count(ctx, &audit.Query{Action: audit.ActionDeploy})
		if err != nil {
			t.Fatalf("Count: %v", err)
		}
		if count != 3 {
			t.Errorf("deploy audit entries = %d, want 3", count)
		}
	})
}

func TestDirectDeployAuditFailureRestoresPointer(t *testing.T) {
	faulty := &faultyAuditStorage{MemoryStorage: auditstorage.NewMemoryStorage(), allowed: 1}
	f := newFixture(t, faulty)
	ctx := context.Background()

	if _, err := f.versions.CreateVersion(ctx, store.EntityTypeRuleset, "rs-1", rulesetPayload(t), "alice"); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if _, err := f.versions.CreateVersion(ctx, store.EntityTypeRuleset, "rs-1", rulesetPayload(t), "alice"); err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}

	// First deploy lands (audit write 1 allowed).
	if _, err := f.service.Deploy(ctx, checker, &workflow.DeployRequest{
		EntityType:   store.EntityTypeRuleset,
		EntityID:     "rs-1",
		Version:      1,
		Environments: []rules.Environment{rules.EnvProd},
	}); err != nil {
		t.Fatalf("Deploy v1: %v", err)
	}

	// Second deploy fails its audit write; the pointer must roll back to v1.
	_, err := f.service.Deploy(ctx, checker, &workflow.DeployRequest{
		EntityType:   store.EntityTypeRuleset,
		EntityID:     "rs-1",
		Version:      2,
		Environments: []rules.Environment{rules.EnvProd},
	})
	var re *audit.RecordError
	if !errors.As(err, &re) {
		t.Fatalf("expected RecordError, got %v", err)
	}

	d, err := f.versions.GetDeployment(ctx, store.EntityTypeRuleset, "rs-1", rules.EnvProd)
	if err != nil {
		t.Fatalf("GetDeployment: %v", err)
	}
	if d.Version != 1 {
		t.Errorf("deployed version = %d, want 1 after rollback", d.Version)
	}
}

func TestListFiltersByChangeType(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	submitCreate(t, f)
	if _, err := f.service.Submit(ctx, maker, &workflow.SubmitRequest{
		Type:              workflow.ChangeDeploy,
		EntityType:        store.EntityTypeRuleset,
		EntityID:          "rs-1",
		DeployVersion:     1,
		DeployEnvironment: rules.EnvProd,
		Reason:            "go live",
	}); err != nil {
		t.Fatalf("Submit deploy: %v", err)
	}

	all, err := f.service.List(ctx, nil)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all) = %d, want 2", len(all))
	}

	deploys, err := f.service.List(ctx, &workflow.ListFilter{Type: workflow.ChangeDeploy})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(deploys) != 1 || deploys[0].Type != workflow.ChangeDeploy {
		t.Fatalf("deploys = %+v, want the single DEPLOY request", deploys)
	}

	creates, err := f.service.List(ctx, &workflow.ListFilter{Type: workflow.ChangeCreate})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(creates) != 1 || creates[0].Type != workflow.ChangeCreate {
		t.Fatalf("creates = %+v, want the single CREATE request", creates)
	}
}
