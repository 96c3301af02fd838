package engine

import (
	"context"
	"log/slog"

	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
)

// ConditionEvaluator evaluates condition trees against a transaction.
// It is stateless apart from the field defaults supplied at construction
// and is safe for concurrent use.
type ConditionEvaluator struct {
	logger *slog.Logger

	// defaults supplies values for fields the transaction omits, sourced
	// from the deployed data dictionary. May be nil.
	defaults map[string]any
}

// NewConditionEvaluator creates a condition evaluator. defaults may be nil
// when no dictionary is bound to the ruleset being evaluated.
func NewConditionEvaluator(logger *slog.Logger, defaults map[string]any) *ConditionEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConditionEvaluator{logger: logger, defaults: defaults}
}

// Evaluate walks a condition tree and returns whether it is satisfied by
// the transaction. AND branches are true over zero children (vacuous truth);
// OR branches are false over zero children. Children are evaluated left to
// right with short-circuiting; child order never changes the final boolean
// value, only which side effects occur.
func (e *ConditionEvaluator) Evaluate(ctx context.Context, node *rules.ConditionNode, txn rules.Transaction) (bool, error) {
	if node == nil {
		return true, nil
	}

	if node.IsLeaf() {
		return e.evaluateLeaf(node, txn)
	}

	switch node.Combinator {
	case rules.CombinatorAnd:
		for _, child := range node.Conditions {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			default:
			}

			matched, err := e.Evaluate(ctx, child, txn)
			if err != nil {
				return false, err
			}
			if !matched {
				return false, nil
			}
		}
		return true, nil

	case rules.CombinatorOr:
		for _, child := range node.Conditions {
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			default:
			}

			matched, err := e.Evaluate(ctx, child, txn)
			if err != nil {
				return false, err
			}
			if matched {
				return true, nil
			}
		}
		return false, nil

	default:
		return false, &ConditionError{Message: "unknown combinator " + string(node.Combinator)}
	}
}

// evaluateLeaf decides a single leaf predicate.
func (e *ConditionEvaluator) evaluateLeaf(node *rules.ConditionNode, txn rules.Transaction) (bool, error) {
	raw, ok := txn[node.Field]
	if !ok || raw == nil {
		raw, ok = e.defaults[node.Field]
		if !ok {
			return false, &MissingFieldError{Field: node.Field}
		}
		e.logger.Debug("using dictionary default for missing field", "field", node.Field)
	}

	actual, err := dictionary.CoerceValue(raw, node.DataType)
	if err != nil {
		return false, &TypeMismatchError{Field: node.Field, Expected: node.DataType, Cause: err}
	}

	matched, err := evaluateOperator(node.Field, node.Operator, node.DataType, actual, node.Value)
	if err != nil {
		return false, err
	}

	e.logger.Debug("leaf condition evaluated",
		"field", node.Field,
		"operator", node.Operator,
		"matched", matched,
	)

	return matched, nil
}
