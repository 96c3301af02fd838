// Package rules defines the fraud-rule domain model: rules, rulesets,
// condition trees, and actions, together with YAML parsing and validation
// for ruleset definition files.
//
// A Rule pairs a boolean condition tree with a single action (block, allow,
// review, score, flag). Rules are grouped into Rulesets, which are evaluated
// together against a transaction by the engine package. Rulesets are
// versioned and deployed per environment through the store package; nothing
// in this package mutates state.
package rules
