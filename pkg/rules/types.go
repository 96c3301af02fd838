package rules

import (
	"sort"
	"time"
)

// Domain is the business line a rule or ruleset belongs to.
type Domain string

const (
	DomainRetail Domain = "RETAIL"
	DomainCredit Domain = "CREDIT"
	DomainDebit  Domain = "DEBIT"
)

// Environment is a deployment target an entity version can be pointed at.
type Environment string

const (
	EnvDev     Environment = "DEV"
	EnvStaging Environment = "STAGING"
	EnvProd    Environment = "PROD"
)

// Environments lists all known deployment environments.
func Environments() []Environment {
	return []Environment{EnvDev, EnvStaging, EnvProd}
}

// RuleStatus is the lifecycle status of a rule.
type RuleStatus string

const (
	StatusDraft           RuleStatus = "DRAFT"
	StatusPendingApproval RuleStatus = "PENDING_APPROVAL"
	StatusApproved        RuleStatus = "APPROVED"
	StatusRejected        RuleStatus = "REJECTED"
	StatusActive          RuleStatus = "ACTIVE"
	StatusInactive        RuleStatus = "INACTIVE"
)

// FieldType is the declared data type of a transaction field.
type FieldType string

const (
	TypeString  FieldType = "STRING"
	TypeNumber  FieldType = "NUMBER"
	TypeBoolean FieldType = "BOOLEAN"
	TypeDate    FieldType = "DATE"
	TypeDecimal FieldType = "DECIMAL"
	TypeEnum    FieldType = "ENUM"
)

// Operator is a comparison operator in a leaf condition.
type Operator string

const (
	OpEquals             Operator = "EQUALS"
	OpNotEquals          Operator = "NOT_EQUALS"
	OpGreaterThan        Operator = "GREATER_THAN"
	OpLessThan           Operator = "LESS_THAN"
	OpGreaterThanOrEqual Operator = "GREATER_THAN_OR_EQUAL"
	OpLessThanOrEqual    Operator = "LESS_THAN_OR_EQUAL"
	OpContains           Operator = "CONTAINS"
	OpIn                 Operator = "IN"
	OpBetween            Operator = "BETWEEN"
)

// Combinator joins child conditions in a condition tree branch.
type Combinator string

const (
	CombinatorAnd Combinator = "AND"
	CombinatorOr  Combinator = "OR"
)

// ActionType is the kind of action a rule emits when it matches.
type ActionType string

const (
	ActionBlock  ActionType = "BLOCK"
	ActionAllow  ActionType = "ALLOW"
	ActionReview ActionType = "REVIEW"
	ActionScore  ActionType = "SCORE"
	ActionFlag   ActionType = "FLAG"
)

// EvaluationPolicy selects how a ruleset combines matched rule actions into
// a final decision.
type EvaluationPolicy string

const (
	// PolicyFirstBlockWins makes the first matched BLOCK rule (in priority
	// order) determine the final action. Remaining rules are still evaluated
	// for audit and analytics but cannot override the block.
	PolicyFirstBlockWins EvaluationPolicy = "first-block-wins"

	// PolicyCumulativeScore treats BLOCK matches as score contributions
	// instead of immediate verdicts. The final action is derived from the
	// accumulated score against the ruleset thresholds.
	PolicyCumulativeScore EvaluationPolicy = "cumulative-score"
)

// Transaction is the external input to rule evaluation: a mapping from field
// name to value. Values are loosely typed (JSON-shaped); the engine coerces
// them to each condition's declared data type.
type Transaction map[string]any

// ConditionNode is a node in a rule's condition tree. A node is either a
// leaf predicate (Field set) or a branch combining child nodes with AND/OR
// (Combinator set). The two forms are mutually exclusive; the validator
// rejects nodes that set both or neither.
type ConditionNode struct {
	// Leaf fields.
	Field    string    `json:"field,omitempty" yaml:"field,omitempty"`
	Operator Operator  `json:"operator,omitempty" yaml:"operator,omitempty"`
	Value    any       `json:"value,omitempty" yaml:"value,omitempty"`
	DataType FieldType `json:"dataType,omitempty" yaml:"dataType,omitempty"`

	// Branch fields. Child order is significant for short-circuit order only,
	// never for the final boolean value.
	Combinator Combinator       `json:"combinator,omitempty" yaml:"combinator,omitempty"`
	Conditions []*ConditionNode `json:"conditions,omitempty" yaml:"conditions,omitempty"`
}

// IsLeaf returns true if this node is a leaf predicate.
func (n *ConditionNode) IsLeaf() bool {
	return n.Field != ""
}

// RuleAction describes what a rule does when its condition matches.
type RuleAction struct {
	Type ActionType `json:"type" yaml:"type"`

	// Score carries the additive score contribution for SCORE actions
	// (0-100). Ignored for other action types.
	Score int `json:"score,omitempty" yaml:"score,omitempty"`

	// Reason is the mandatory human-readable explanation shown to operators
	// and written to the audit trail.
	Reason string `json:"reason" yaml:"reason"`

	// Notifications lists optional notification targets (queues, addresses).
	Notifications []string `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// Rule is a single fraud detection rule.
type Rule struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	RulesetID   string         `json:"rulesetId,omitempty" yaml:"rulesetId,omitempty"`
	Domain      Domain         `json:"domain" yaml:"domain"`
	Condition   *ConditionNode `json:"condition" yaml:"condition"`
	Action      RuleAction     `json:"action" yaml:"action"`

	// Priority orders evaluation: lower value runs first. Ties are broken by
	// creation order.
	Priority int `json:"priority" yaml:"priority"`

	Status    RuleStatus `json:"status" yaml:"status"`
	Version   int        `json:"version" yaml:"version"`
	CreatedBy string     `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt time.Time  `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// IsActive returns true if the rule is eligible for evaluation.
func (r *Rule) IsActive() bool {
	return r.Status == StatusActive
}

// CanBeModified returns true if the rule may be edited directly. Any other
// status requires a change request.
func (r *Rule) CanBeModified() bool {
	return r.Status == StatusDraft || r.Status == StatusRejected
}

// Ruleset is a named, versioned collection of rules evaluated together
// against a transaction. A ruleset exclusively owns its rules: rules travel
// with version snapshots and are never shared between rulesets.
type Ruleset struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	Description string  `json:"description,omitempty" yaml:"description,omitempty"`
	Domain      Domain  `json:"domain" yaml:"domain"`
	Rules       []*Rule `json:"rules" yaml:"rules"`
	Active      bool    `json:"isActive" yaml:"isActive"`
	Version     int     `json:"version" yaml:"version"`

	// Policy selects the decision policy. Empty means PolicyFirstBlockWins.
	Policy EvaluationPolicy `json:"policy,omitempty" yaml:"policy,omitempty"`

	// ScoreThreshold is the accumulated score at or above which a
	// non-blocked transaction is routed to REVIEW instead of ALLOW.
	// Zero disables score-based review.
	ScoreThreshold int `json:"scoreThreshold,omitempty" yaml:"scoreThreshold,omitempty"`

	// BlockThreshold is the accumulated score at or above which the
	// cumulative-score policy blocks the transaction. Ignored under
	// first-block-wins. Zero means 100.
	BlockThreshold int `json:"blockThreshold,omitempty" yaml:"blockThreshold,omitempty"`

	// DictionaryID optionally binds the ruleset to a data dictionary whose
	// deployed version supplies field defaults during evaluation.
	DictionaryID string `json:"dictionaryId,omitempty" yaml:"dictionaryId,omitempty"`

	CreatedBy string      `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt time.Time   `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Deployed  []Environment `json:"deployedEnvironments,omitempty" yaml:"deployedEnvironments,omitempty"`
}

// EffectivePolicy returns the ruleset's decision policy, defaulting to
// first-block-wins when unset.
func (rs *Ruleset) EffectivePolicy() EvaluationPolicy {
	if rs.Policy == "" {
		return PolicyFirstBlockWins
	}
	return rs.Policy
}

// EffectiveBlockThreshold returns the cumulative-score block threshold,
// defaulting to 100 when unset.
func (rs *Ruleset) EffectiveBlockThreshold() int {
	if rs.BlockThreshold <= 0 {
		return 100
	}
	return rs.BlockThreshold
}

// ActiveRules returns the ruleset's ACTIVE rules in evaluation order:
// ascending priority, ties broken by creation time then id.
func (rs *Ruleset) ActiveRules() []*Rule {
	active := make([]*Rule, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	SortRulesByPriority(active)
	return active
}

// SortRulesByPriority sorts rules in place into evaluation order: ascending
// priority, ties broken by creation time, then by id for determinism.
func SortRulesByPriority(rs []*Rule) {
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority < rs[j].Priority
		}
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.Before(rs[j].CreatedAt)
		}
		return rs[i].ID < rs[j].ID
	})
}
