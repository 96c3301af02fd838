package rules

import (
	"fmt"
	"strings"
)

// ValidationError collects all validation failures found in a ruleset or
// rule definition.
type ValidationError struct {
	Subject string
	Errors  []string
}

// Error returns the error message.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("%s: validation error: %s", e.Subject, e.Errors[0])
	}
	return fmt.Sprintf("%s: %d validation errors: %s", e.Subject, len(e.Errors), strings.Join(e.Errors, "; "))
}

var validDomains = map[Domain]bool{
	DomainRetail: true,
	DomainCredit: true,
	DomainDebit:  true,
}

var validOperators = map[Operator]bool{
	OpEquals:             true,
	OpNotEquals:          true,
	OpGreaterThan:        true,
	OpLessThan:           true,
	OpGreaterThanOrEqual: true,
	OpLessThanOrEqual:    true,
	OpContains:           true,
	OpIn:                 true,
	OpBetween:            true,
}

var validFieldTypes = map[FieldType]bool{
	TypeString:  true,
	TypeNumber:  true,
	TypeBoolean: true,
	TypeDate:    true,
	TypeDecimal: true,
	TypeEnum:    true,
}

var validActionTypes = map[ActionType]bool{
	ActionBlock:  true,
	ActionAllow:  true,
	ActionReview: true,
	ActionScore:  true,
	ActionFlag:   true,
}

// ValidateRuleset checks a ruleset definition for structural problems:
// missing identity, unknown enum values, malformed condition trees, and
// invalid actions. It returns a ValidationError listing every problem found,
// or nil when the ruleset is well-formed.
func ValidateRuleset(rs *Ruleset) error {
	var errs []string

	if rs.ID == "" {
		errs = append(errs, "missing required field 'id'")
	}
	if rs.Name == "" {
		errs = append(errs, "missing required field 'name'")
	}
	if !validDomains[rs.Domain] {
		errs = append(errs, fmt.Sprintf("unknown domain %q", rs.Domain))
	}
	switch rs.Policy {
	case "", PolicyFirstBlockWins, PolicyCumulativeScore:
	default:
		errs = append(errs, fmt.Sprintf("unknown evaluation policy %q", rs.Policy))
	}
	if rs.ScoreThreshold < 0 {
		errs = append(errs, "scoreThreshold must not be negative")
	}

	seen := make(map[string]bool, len(rs.Rules))
	for i, r := range rs.Rules {
		prefix := fmt.Sprintf("rule[%d]", i)
		if r.ID != "" {
			prefix = fmt.Sprintf("rule %q", r.ID)
			if seen[r.ID] {
				errs = append(errs, fmt.Sprintf("%s: duplicate rule id", prefix))
			}
			seen[r.ID] = true
		}
		errs = append(errs, validateRule(prefix, r)...)
	}

	if len(errs) > 0 {
		subject := rs.ID
		if subject == "" {
			subject = "ruleset"
		}
		return &ValidationError{Subject: subject, Errors: errs}
	}
	return nil
}

// ValidateRule checks a single rule definition. Used by the lint command and
// by the workflow when a change request proposes a rule payload.
func ValidateRule(r *Rule) error {
	errs := validateRule(fmt.Sprintf("rule %q", r.ID), r)
	if len(errs) > 0 {
		subject := r.ID
		if subject == "" {
			subject = "rule"
		}
		return &ValidationError{Subject: subject, Errors: errs}
	}
	return nil
}

func validateRule(prefix string, r *Rule) []string {
	var errs []string

	if r.ID == "" {
		errs = append(errs, prefix+": missing required field 'id'")
	}
	if r.Name == "" {
		errs = append(errs, prefix+": missing required field 'name'")
	}
	if r.Condition == nil {
		errs = append(errs, prefix+": missing condition")
	} else {
		errs = append(errs, validateCondition(prefix+".condition", r.Condition)...)
	}

	if !validActionTypes[r.Action.Type] {
		errs = append(errs, fmt.Sprintf("%s: unknown action type %q", prefix, r.Action.Type))
	}
	if r.Action.Reason == "" {
		errs = append(errs, prefix+": action reason is required")
	}
	if r.Action.Type == ActionScore && (r.Action.Score < 0 || r.Action.Score > 100) {
		errs = append(errs, fmt.Sprintf("%s: score %d out of range [0,100]", prefix, r.Action.Score))
	}

	return errs
}

func validateCondition(prefix string, n *ConditionNode) []string {
	var errs []string

	leaf := n.Field != ""
	branch := n.Combinator != "" || len(n.Conditions) > 0

	switch {
	case leaf && branch:
		errs = append(errs, prefix+": node sets both leaf and branch fields")
	case leaf:
		if !validOperators[n.Operator] {
			errs = append(errs, fmt.Sprintf("%s: unknown operator %q", prefix, n.Operator))
		}
		if !validFieldTypes[n.DataType] {
			errs = append(errs, fmt.Sprintf("%s: unknown data type %q", prefix, n.DataType))
		}
		if vals, ok := n.Value.([]any); n.Operator == OpBetween && (!ok || len(vals) != 2) {
			errs = append(errs, prefix+": BETWEEN requires exactly two boundary values")
		}
	case branch:
		if n.Combinator != CombinatorAnd && n.Combinator != CombinatorOr {
			errs = append(errs, fmt.Sprintf("%s: unknown combinator %q", prefix, n.Combinator))
		}
		for i, child := range n.Conditions {
			errs = append(errs, validateCondition(fmt.Sprintf("%s[%d]", prefix, i), child)...)
		}
	default:
		errs = append(errs, prefix+": empty condition node")
	}

	return errs
}
