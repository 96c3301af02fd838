package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseRulesetFile reads and parses a ruleset definition file (YAML).
// The parsed ruleset is validated before it is returned.
func ParseRulesetFile(path string) (*Ruleset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ruleset file %q: %w", path, err)
	}

	rs, err := ParseRulesetBytes(data)
	if err != nil {
		return nil, fmt.Errorf("ruleset file %q: %w", path, err)
	}
	return rs, nil
}

// ParseRulesetBytes parses a YAML ruleset definition. The flat single-level
// condition form (combinator plus a list of leaf conditions) and the fully
// nested tree form decode into the same ConditionNode structure.
func ParseRulesetBytes(data []byte) (*Ruleset, error) {
	var rs Ruleset
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse ruleset YAML: %w", err)
	}

	normalizeRuleset(&rs)

	if err := ValidateRuleset(&rs); err != nil {
		return nil, err
	}
	return &rs, nil
}

// normalizeRuleset fills derived fields the file format leaves implicit.
func normalizeRuleset(rs *Ruleset) {
	if rs.Version == 0 {
		rs.Version = 1
	}
	for _, r := range rs.Rules {
		if r.RulesetID == "" {
			r.RulesetID = rs.ID
		}
		if r.Domain == "" {
			r.Domain = rs.Domain
		}
		if r.Status == "" {
			// File-sourced rules are live definitions, not drafts.
			r.Status = StatusActive
		}
		if r.Version == 0 {
			r.Version = 1
		}
	}
}
