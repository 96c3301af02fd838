package engine

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// deployRuleset stores and deploys a ruleset to PROD on a fresh memory store.
func deployRuleset(t *testing.T, rs *rules.Ruleset) *store.MemoryStore {
	t.Helper()
	ms := store.NewMemoryStore()
	ctx := context.Background()

	payload, err := json.Marshal(rs)
	if err != nil {
		t.Fatalf("marshal ruleset: %v", err)
	}
	ve, err := ms.CreateVersion(ctx, store.EntityTypeRuleset, rs.ID, payload, "test")
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if err := ms.Deploy(ctx, store.EntityTypeRuleset, rs.ID, ve.Version, rules.EnvProd, "test"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
	return ms
}

func newEngine(t *testing.T, source VersionSource, config *Config) *Engine {
	t.Helper()
	e, err := New(source, config, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func blockRule(id string, priority int, field string, threshold float64, reason string) *rules.Rule {
	return &rules.Rule{
		ID:       id,
		Name:     id,
		Priority: priority,
		Status:   rules.StatusActive,
		Condition: &rules.ConditionNode{
			Field: field, Operator: rules.OpGreaterThan, Value: threshold, DataType: rules.TypeNumber,
		},
		Action: rules.RuleAction{Type: rules.ActionBlock, Reason: reason},
	}
}

func scoreRule(id string, priority, score int, field string, threshold float64) *rules.Rule {
	return &rules.Rule{
		ID:       id,
		Name:     id,
		Priority: priority,
		Status:   rules.StatusActive,
		Condition: &rules.ConditionNode{
			Field: field, Operator: rules.OpGreaterThan, Value: threshold, DataType: rules.TypeNumber,
		},
		Action: rules.RuleAction{Type: rules.ActionScore, Score: score, Reason: id + " matched"},
	}
}

func TestDecideFirstBlockWins(t *testing.T) {
	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: true,
		Rules: []*rules.Rule{
			blockRule("high-amount", 1, "amount", 10000, "amount exceeds limit"),
			blockRule("very-high-amount", 2, "amount", 50000, "amount far exceeds limit"),
			scoreRule("velocity", 3, 30, "txnCount", 5),
		},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)

	d, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{
		"amount":   60000.0,
		"txnCount": 10.0,
	})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if d.FinalAction != rules.ActionBlock {
		t.Errorf("final action = %s, want BLOCK", d.FinalAction)
	}
	// The first blocking rule in priority order supplies the reason.
	if d.Reason != "amount exceeds limit" {
		t.Errorf("reason = %q", d.Reason)
	}
	// Later rules are still evaluated and reported.
	if len(d.TriggeredRules) != 3 {
		t.Fatalf("triggered = %d, want 3", len(d.TriggeredRules))
	}
	if d.Score != 30 {
		t.Errorf("score = %d, want 30", d.Score)
	}
}

func TestDecidePriorityOrder(t *testing.T) {
	// Declared out of order; evaluation must follow ascending priority.
	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: true,
		Rules: []*rules.Rule{
			scoreRule("third", 3, 1, "amount", 0),
			scoreRule("first", 1, 1, "amount", 0),
			scoreRule("second", 2, 1, "amount", 0),
		},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)

	d, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 1.0})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	want := []string{"first", "second", "third"}
	if len(d.TriggeredRules) != len(want) {
		t.Fatalf("triggered = %d, want %d", len(d.TriggeredRules), len(want))
	}
	for i, tr := range d.TriggeredRules {
		if tr.RuleID != want[i] {
			t.Errorf("triggered[%d] = %s, want %s", i, tr.RuleID, want[i])
		}
	}
}

func TestDecideCumulativeScore(t *testing.T) {
	rs := &rules.Ruleset{
		ID:             "rs-1",
		Name:           "retail",
		Domain:         rules.DomainRetail,
		Active:         true,
		Policy:         rules.PolicyCumulativeScore,
		ScoreThreshold: 50,
		BlockThreshold: 120,
		Rules: []*rules.Rule{
			scoreRule("a", 1, 40, "amount", 100),
			scoreRule("b", 2, 40, "txnCount", 3),
			blockRule("c", 3, "amount", 100000, "huge amount"),
		},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)
	ctx := context.Background()

	t.Run("review between thresholds", func(t *testing.T) {
		d, err := e.Decide(ctx, "rs-1", rules.EnvProd, rules.Transaction{
			"amount": 500.0, "txnCount": 10.0,
		})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.Score != 80 {
			t.Errorf("score = %d, want 80", d.Score)
		}
		if d.FinalAction != rules.ActionReview {
			t.Errorf("final action = %s, want REVIEW", d.FinalAction)
		}
	})

	t.Run("block contributes weight instead of deciding", func(t *testing.T) {
		d, err := e.Decide(ctx, "rs-1", rules.EnvProd, rules.Transaction{
			"amount": 200000.0, "txnCount": 1.0,
		})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		// score rule a (40) + block weight (100) = 140 >= 120
		if d.Score != 140 {
			t.Errorf("score = %d, want 140", d.Score)
		}
		if d.FinalAction != rules.ActionBlock {
			t.Errorf("final action = %s, want BLOCK", d.FinalAction)
		}
	})

	t.Run("allow below review threshold", func(t *testing.T) {
		d, err := e.Decide(ctx, "rs-1", rules.EnvProd, rules.Transaction{
			"amount": 500.0, "txnCount": 1.0,
		})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.FinalAction != rules.ActionAllow {
			t.Errorf("final action = %s, want ALLOW", d.FinalAction)
		}
	})
}

func TestDecideFailsOpenPerRule(t *testing.T) {
	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: true,
		Rules: []*rules.Rule{
			// References a field the transaction does not carry.
			blockRule("broken", 1, "missingField", 1, "broken rule"),
			blockRule("working", 2, "amount", 10000, "amount exceeds limit"),
		},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)

	d, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 20000.0})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}

	if d.FinalAction != rules.ActionBlock {
		t.Errorf("final action = %s, want BLOCK from the working rule", d.FinalAction)
	}
	if len(d.DegradedRules) != 1 || d.DegradedRules[0].RuleID != "broken" {
		t.Fatalf("degraded = %+v, want the broken rule", d.DegradedRules)
	}
}

func TestDecideSkipsInactiveRules(t *testing.T) {
	inactive := blockRule("disabled", 1, "amount", 0, "always blocks")
	inactive.Status = rules.StatusInactive

	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: true,
		Rules:  []*rules.Rule{inactive},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)

	d, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 100.0})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.FinalAction != rules.ActionAllow {
		t.Errorf("final action = %s, want ALLOW", d.FinalAction)
	}
	if len(d.TriggeredRules) != 0 {
		t.Errorf("triggered = %d, want 0", len(d.TriggeredRules))
	}
}

func TestDecideNotDeployed(t *testing.T) {
	e := newEngine(t, store.NewMemoryStore(), nil)

	_, err := e.Decide(context.Background(), "rs-404", rules.EnvProd, rules.Transaction{})
	var nd *store.NotDeployedError
	if !errors.As(err, &nd) {
		t.Fatalf("expected NotDeployedError, got %v", err)
	}
}

func TestDecideTimeout(t *testing.T) {
	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: true,
		Rules:  []*rules.Rule{scoreRule("a", 1, 10, "amount", 0)},
	}
	source := &slowSource{inner: deployRuleset(t, rs), delay: 50 * time.Millisecond}
	e := newEngine(t, source, &Config{EvaluationTimeout: 10 * time.Millisecond, MaxRules: 1000})

	_, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 1.0})
	if err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestDecideEnvironmentIsolation(t *testing.T) {
	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: true,
		Rules:  []*rules.Rule{blockRule("r", 1, "amount", 100, "blocked")},
	}
	ms := deployRuleset(t, rs) // deployed to PROD only
	e := newEngine(t, ms, nil)

	if _, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 500.0}); err != nil {
		t.Fatalf("Decide PROD: %v", err)
	}

	_, err := e.Decide(context.Background(), "rs-1", rules.EnvStaging, rules.Transaction{"amount": 500.0})
	var nd *store.NotDeployedError
	if !errors.As(err, &nd) {
		t.Fatalf("expected NotDeployedError for staging, got %v", err)
	}
}

func TestDecisionJSONRoundTrip(t *testing.T) {
	d := &Decision{
		RulesetID:      "rs-1",
		RulesetVersion: 3,
		Environment:    rules.EnvProd,
		FinalAction:    rules.ActionBlock,
		Reason:         "amount exceeds limit",
		Score:          30,
		TriggeredRules: []TriggeredRule{
			{RuleID: "r-1", RuleName: "high amount", Action: rules.ActionBlock, Reason: "amount exceeds limit", Priority: 1},
		},
		DegradedRules:  []DegradedRule{{RuleID: "r-2", Error: "missing field"}},
		EvaluatedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		EvaluationTime: 1500 * time.Microsecond,
	}

	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Decision
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if got.RulesetID != d.RulesetID || got.FinalAction != d.FinalAction || got.Score != d.Score {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if len(got.TriggeredRules) != 1 || got.TriggeredRules[0].RuleID != "r-1" {
		t.Errorf("triggered rules mismatch: %+v", got.TriggeredRules)
	}
	if !got.EvaluatedAt.Equal(d.EvaluatedAt) {
		t.Errorf("evaluated at mismatch: %v", got.EvaluatedAt)
	}
}

// slowSource delays every read to force deadline expiry.
type slowSource struct {
	inner VersionSource
	delay time.Duration
}

func (s *slowSource) GetDeployed(ctx context.Context, entityType store.EntityType, entityID string, env rules.Environment) (*store.VersionedEntity, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.inner.GetDeployed(ctx, entityType, entityID, env)
}

func TestDecideInactiveRulesetAllows(t *testing.T) {
	rs := &rules.Ruleset{
		ID:     "rs-1",
		Name:   "retail",
		Domain: rules.DomainRetail,
		Active: false,
		Rules:  []*rules.Rule{blockRule("r", 1, "amount", 0, "always blocks")},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)

	d, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 100.0})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	// The inactive flag is a kill switch: nothing is evaluated.
	if d.FinalAction != rules.ActionAllow {
		t.Errorf("final action = %s, want ALLOW", d.FinalAction)
	}
	if d.Reason == "" {
		t.Error("expected a reason naming the inactive ruleset")
	}
	if len(d.TriggeredRules) != 0 {
		t.Errorf("triggered = %d, want 0", len(d.TriggeredRules))
	}
}

// deployDictionary stores and deploys a dictionary to PROD alongside a ruleset.
func deployDictionary(t *testing.T, ms *store.MemoryStore, dict *dictionary.Dictionary) {
	t.Helper()
	ctx := context.Background()
	payload, err := json.Marshal(dict)
	if err != nil {
		t.Fatalf("marshal dictionary: %v", err)
	}
	ve, err := ms.CreateVersion(ctx, store.EntityTypeDictionary, dict.ID, payload, "test")
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if err := ms.Deploy(ctx, store.EntityTypeDictionary, dict.ID, ve.Version, rules.EnvProd, "test"); err != nil {
		t.Fatalf("Deploy: %v", err)
	}
}

func TestDecideValidatesAgainstBoundDictionary(t *testing.T) {
	rs := &rules.Ruleset{
		ID:           "rs-1",
		Name:         "retail",
		Domain:       rules.DomainRetail,
		Active:       true,
		DictionaryID: "dict-1",
		Rules:        []*rules.Rule{blockRule("high-amount", 1, "amount", 10000, "amount exceeds limit")},
	}
	ms := deployRuleset(t, rs)
	deployDictionary(t, ms, &dictionary.Dictionary{
		ID:     "dict-1",
		Name:   "retail fields",
		Domain: rules.DomainRetail,
		Fields: []*dictionary.Field{
			{
				ID: "amount", Name: "amount", DataType: rules.TypeNumber,
				ValidationRules: []dictionary.ValidationRule{
					{Type: dictionary.ValidationCustom, Value: "value >= 0.0", ErrorMessage: "amount cannot be negative"},
				},
			},
			{ID: "country", Name: "country", DataType: rules.TypeString},
		},
	})
	e := newEngine(t, ms, nil)
	ctx := context.Background()

	t.Run("valid transaction is evaluated", func(t *testing.T) {
		d, err := e.Decide(ctx, "rs-1", rules.EnvProd, rules.Transaction{
			"amount": 20000.0, "country": "US",
		})
		if err != nil {
			t.Fatalf("Decide: %v", err)
		}
		if d.FinalAction != rules.ActionBlock {
			t.Errorf("final action = %s, want BLOCK", d.FinalAction)
		}
	})

	t.Run("missing required field rejected", func(t *testing.T) {
		_, err := e.Decide(ctx, "rs-1", rules.EnvProd, rules.Transaction{"amount": 100.0})
		var verr *TransactionValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected TransactionValidationError, got %v", err)
		}
		if verr.DictionaryID != "dict-1" {
			t.Errorf("dictionary id = %s, want dict-1", verr.DictionaryID)
		}
	})

	t.Run("custom rule violation rejected", func(t *testing.T) {
		_, err := e.Decide(ctx, "rs-1", rules.EnvProd, rules.Transaction{
			"amount": -5.0, "country": "US",
		})
		var verr *TransactionValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("expected TransactionValidationError, got %v", err)
		}
	})
}

func TestDecideProceedsWithoutUndeployedDictionary(t *testing.T) {
	// The ruleset binds a dictionary that is not deployed to the
	// environment; evaluation degrades to no validation instead of failing.
	rs := &rules.Ruleset{
		ID:           "rs-1",
		Name:         "retail",
		Domain:       rules.DomainRetail,
		Active:       true,
		DictionaryID: "dict-missing",
		Rules:        []*rules.Rule{blockRule("high-amount", 1, "amount", 10000, "amount exceeds limit")},
	}
	e := newEngine(t, deployRuleset(t, rs), nil)

	d, err := e.Decide(context.Background(), "rs-1", rules.EnvProd, rules.Transaction{"amount": 20000.0})
	if err != nil {
		t.Fatalf("Decide: %v", err)
	}
	if d.FinalAction != rules.ActionBlock {
		t.Errorf("final action = %s, want BLOCK", d.FinalAction)
	}
}
