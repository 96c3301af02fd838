package engine

import (
	"time"

	"meridian-hq/meridian/pkg/rules"
)

// RuleOutcome is the result of evaluating one rule against a transaction.
type RuleOutcome struct {
	// Matched indicates whether the rule's condition tree was satisfied.
	Matched bool

	// Action is the rule's action, set only when Matched is true.
	Action *rules.RuleAction
}

// TriggeredRule records one matched rule inside a Decision, in evaluation
// order.
type TriggeredRule struct {
	RuleID   string           `json:"ruleId"`
	RuleName string           `json:"ruleName"`
	Action   rules.ActionType `json:"action"`
	Reason   string           `json:"reason"`
	Score    int              `json:"score,omitempty"`
	Priority int              `json:"priority"`
}

// DegradedRule records a rule whose evaluation failed. Degraded rules never
// abort the decision; they are surfaced for operators and analytics.
type DegradedRule struct {
	RuleID string `json:"ruleId"`
	Error  string `json:"error"`
}

// Decision is the final outcome of evaluating a transaction against a
// deployed ruleset version.
type Decision struct {
	RulesetID      string            `json:"rulesetId"`
	RulesetVersion int               `json:"rulesetVersion"`
	Environment    rules.Environment `json:"environment"`

	// FinalAction is the combined verdict: BLOCK, REVIEW, or ALLOW.
	FinalAction rules.ActionType `json:"finalAction"`

	// Reason explains the final action (the blocking rule's reason, or the
	// score threshold that was crossed).
	Reason string `json:"reason,omitempty"`

	// Score is the accumulated score from matched SCORE actions (and, under
	// the cumulative-score policy, BLOCK contributions).
	Score int `json:"score"`

	// TriggeredRules lists every matched rule in evaluation order,
	// including rules that matched after the final action was already
	// determined.
	TriggeredRules []TriggeredRule `json:"triggeredRules"`

	// DegradedRules lists rules whose evaluation failed.
	DegradedRules []DegradedRule `json:"degradedRules,omitempty"`

	EvaluatedAt    time.Time     `json:"evaluatedAt"`
	EvaluationTime time.Duration `json:"evaluationTime"`
}
