package engine

import (
	"context"

	"meridian-hq/meridian/pkg/rules"
)

// RuleEvaluator evaluates whole rules against a transaction.
type RuleEvaluator struct {
	conditions *ConditionEvaluator
}

// NewRuleEvaluator creates a rule evaluator on top of a condition evaluator.
func NewRuleEvaluator(conditions *ConditionEvaluator) *RuleEvaluator {
	return &RuleEvaluator{conditions: conditions}
}

// Evaluate walks the rule's condition tree and returns the rule outcome.
// Callers are responsible for skipping non-ACTIVE rules; this method never
// inspects status. Condition errors are propagated unchanged, tagged with
// the offending rule id - the ruleset engine decides whether to fail open
// or fail closed.
func (e *RuleEvaluator) Evaluate(ctx context.Context, rule *rules.Rule, txn rules.Transaction) (RuleOutcome, error) {
	matched, err := e.conditions.Evaluate(ctx, rule.Condition, txn)
	if err != nil {
		return RuleOutcome{}, &RuleEvaluationError{RuleID: rule.ID, Cause: err}
	}

	if !matched {
		return RuleOutcome{Matched: false}, nil
	}

	action := rule.Action
	return RuleOutcome{Matched: true, Action: &action}, nil
}
