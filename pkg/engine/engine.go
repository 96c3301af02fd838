package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
	"meridian-hq/meridian/pkg/store"
)

// VersionSource serves deployed entity versions to the engine. It is the
// read side of the versioned deployment store.
type VersionSource interface {
	GetDeployed(ctx context.Context, entityType store.EntityType, entityID string, env rules.Environment) (*store.VersionedEntity, error)
}

// Engine evaluates transactions against deployed ruleset versions.
// Evaluation never mutates the version store; Engines are safe for
// unbounded concurrent use.
type Engine struct {
	source VersionSource
	config *Config
	logger *slog.Logger

	// validators caches dictionary validators by payload checksum so CEL
	// programs in CUSTOM rules compile once per dictionary version.
	mu         sync.Mutex
	validators map[string]*dictionary.Validator
}

// New creates a ruleset engine backed by the given version source.
func New(source VersionSource, config *Config, logger *slog.Logger) (*Engine, error) {
	if source == nil {
		return nil, fmt.Errorf("version source cannot be nil")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		source:     source,
		config:     config,
		logger:     logger.With("component", "engine"),
		validators: make(map[string]*dictionary.Validator),
	}, nil
}

// Decide evaluates a transaction against the ruleset version deployed to
// the given environment and returns the combined decision.
//
// When the ruleset binds a data dictionary that is deployed to the same
// environment, the transaction is validated against it first; a transaction
// that fails validation returns a TransactionValidationError and no rules
// are evaluated. An inactive ruleset short-circuits to ALLOW without
// evaluating any rules: the flag is the operational kill switch for a
// deployed version.
//
// Rules are evaluated in ascending priority order. A single rule's failure
// is recorded as a degraded entry and does not abort evaluation of the
// remaining rules; the transaction always gets a decision unless the
// deadline expires, in which case an EvaluationTimeoutError is returned and
// no partial decision is produced.
func (e *Engine) Decide(ctx context.Context, rulesetID string, env rules.Environment, txn rules.Transaction) (*Decision, error) {
	start := time.Now()

	if e.config.EvaluationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.EvaluationTimeout)
		defer cancel()
	}

	ruleset, version, err := e.deployedRuleset(ctx, rulesetID, env)
	if err != nil {
		return nil, err
	}

	decision := &Decision{
		RulesetID:      rulesetID,
		RulesetVersion: version,
		Environment:    env,
		TriggeredRules: []TriggeredRule{},
		EvaluatedAt:    start.UTC(),
	}

	if !ruleset.Active {
		decision.FinalAction = rules.ActionAllow
		decision.Reason = fmt.Sprintf("ruleset %s is inactive", rulesetID)
		decision.EvaluationTime = time.Since(start)
		e.logger.Info("ruleset inactive, transaction allowed",
			"ruleset_id", rulesetID,
			"ruleset_version", version,
			"environment", env,
		)
		return decision, nil
	}

	validator, defaults := e.boundDictionary(ctx, ruleset, env)
	if validator != nil {
		if err := validator.ValidateTransaction(txn); err != nil {
			return nil, &TransactionValidationError{RulesetID: rulesetID, DictionaryID: ruleset.DictionaryID, Cause: err}
		}
	}

	active := ruleset.ActiveRules()
	if len(active) > e.config.MaxRules {
		return nil, fmt.Errorf("ruleset %s version %d has %d active rules (max %d)",
			rulesetID, version, len(active), e.config.MaxRules)
	}

	evaluator := NewRuleEvaluator(NewConditionEvaluator(e.logger, defaults))

	policy := ruleset.EffectivePolicy()
	var blockReason string
	blocked := false

	for _, rule := range active {
		select {
		case <-ctx.Done():
			return nil, &EvaluationTimeoutError{RulesetID: rulesetID, Deadline: e.config.EvaluationTimeout}
		default:
		}

		outcome, err := evaluator.Evaluate(ctx, rule, txn)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, &EvaluationTimeoutError{RulesetID: rulesetID, Deadline: e.config.EvaluationTimeout}
			}
			// Fail open per rule, never for the whole transaction.
			e.logger.Warn("rule evaluation degraded",
				"ruleset_id", rulesetID,
				"rule_id", rule.ID,
				"error", err,
			)
			decision.DegradedRules = append(decision.DegradedRules, DegradedRule{
				RuleID: rule.ID,
				Error:  err.Error(),
			})
			continue
		}

		if !outcome.Matched {
			continue
		}

		triggered := TriggeredRule{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Action:   outcome.Action.Type,
			Reason:   outcome.Action.Reason,
			Priority: rule.Priority,
		}

		switch outcome.Action.Type {
		case rules.ActionScore:
			triggered.Score = outcome.Action.Score
			decision.Score += outcome.Action.Score

		case rules.ActionBlock:
			if policy == rules.PolicyCumulativeScore {
				// Blocks contribute weight instead of deciding outright.
				triggered.Score = 100
				decision.Score += 100
			} else if !blocked {
				blocked = true
				blockReason = outcome.Action.Reason
			}
		}

		decision.TriggeredRules = append(decision.TriggeredRules, triggered)
	}

	e.finalize(decision, ruleset, policy, blocked, blockReason)
	decision.EvaluationTime = time.Since(start)

	e.logger.Info("transaction evaluated",
		"ruleset_id", rulesetID,
		"ruleset_version", version,
		"environment", env,
		"final_action", decision.FinalAction,
		"score", decision.Score,
		"triggered", len(decision.TriggeredRules),
		"degraded", len(decision.DegradedRules),
		"duration", decision.EvaluationTime,
	)

	return decision, nil
}

// finalize derives the final action from the matched rules under the
// ruleset's decision policy.
func (e *Engine) finalize(d *Decision, rs *rules.Ruleset, policy rules.EvaluationPolicy, blocked bool, blockReason string) {
	reviewThreshold := rs.ScoreThreshold
	if reviewThreshold <= 0 {
		reviewThreshold = e.config.DefaultScoreThreshold
	}

	switch policy {
	case rules.PolicyCumulativeScore:
		switch {
		case d.Score >= rs.EffectiveBlockThreshold():
			d.FinalAction = rules.ActionBlock
			d.Reason = fmt.Sprintf("accumulated score %d reached block threshold %d", d.Score, rs.EffectiveBlockThreshold())
		case reviewThreshold > 0 && d.Score >= reviewThreshold:
			d.FinalAction = rules.ActionReview
			d.Reason = fmt.Sprintf("accumulated score %d reached review threshold %d", d.Score, reviewThreshold)
		default:
			d.FinalAction = rules.ActionAllow
		}

	default: // first-block-wins
		switch {
		case blocked:
			d.FinalAction = rules.ActionBlock
			d.Reason = blockReason
		case reviewThreshold > 0 && d.Score >= reviewThreshold:
			d.FinalAction = rules.ActionReview
			d.Reason = fmt.Sprintf("accumulated score %d reached review threshold %d", d.Score, reviewThreshold)
		default:
			d.FinalAction = rules.ActionAllow
		}
	}
}

// deployedRuleset fetches and decodes the ruleset version deployed to env.
func (e *Engine) deployedRuleset(ctx context.Context, rulesetID string, env rules.Environment) (*rules.Ruleset, int, error) {
	ve, err := e.source.GetDeployed(ctx, store.EntityTypeRuleset, rulesetID, env)
	if err != nil {
		return nil, 0, err
	}

	var rs rules.Ruleset
	if err := json.Unmarshal(ve.Payload, &rs); err != nil {
		return nil, 0, fmt.Errorf("failed to decode ruleset %s version %d: %w", rulesetID, ve.Version, err)
	}
	return &rs, ve.Version, nil
}

// boundDictionary loads the dictionary bound to the ruleset, if one is bound
// and deployed to the same environment, returning a validator for transaction
// validation and the dictionary's field defaults. A missing or undecodable
// dictionary deployment downgrades to no validation and no defaults rather
// than failing the evaluation.
func (e *Engine) boundDictionary(ctx context.Context, rs *rules.Ruleset, env rules.Environment) (*dictionary.Validator, map[string]any) {
	if rs.DictionaryID == "" {
		return nil, nil
	}

	ve, err := e.source.GetDeployed(ctx, store.EntityTypeDictionary, rs.DictionaryID, env)
	if err != nil {
		e.logger.Warn("dictionary not available for evaluation, proceeding without it",
			"dictionary_id", rs.DictionaryID,
			"environment", env,
			"error", err,
		)
		return nil, nil
	}

	var dict dictionary.Dictionary
	if err := json.Unmarshal(ve.Payload, &dict); err != nil {
		e.logger.Warn("failed to decode dictionary, proceeding without it",
			"dictionary_id", rs.DictionaryID,
			"error", err,
		)
		return nil, nil
	}

	e.mu.Lock()
	validator, ok := e.validators[ve.Checksum]
	e.mu.Unlock()
	if !ok {
		validator, err = dictionary.NewValidator(&dict)
		if err != nil {
			e.logger.Warn("failed to build dictionary validator, proceeding without validation",
				"dictionary_id", rs.DictionaryID,
				"error", err,
			)
			return nil, dict.Defaults()
		}
		e.mu.Lock()
		e.validators[ve.Checksum] = validator
		e.mu.Unlock()
	}
	return validator, dict.Defaults()
}
