package engine

import (
	"fmt"
	"time"

	"meridian-hq/meridian/pkg/rules"
)

// TypeMismatchError indicates a transaction value could not be coerced to a
// condition's declared data type.
type TypeMismatchError struct {
	Field    string
	Expected rules.FieldType
	Cause    error
}

// Error returns the error message.
func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch for field %q: expected %s: %v", e.Field, e.Expected, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *TypeMismatchError) Unwrap() error {
	return e.Cause
}

// MissingFieldError indicates the transaction lacks a field referenced by a
// condition and the deployed dictionary defines no default for it.
type MissingFieldError struct {
	Field string
}

// Error returns the error message.
func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("transaction field not found: %q", e.Field)
}

// UnsupportedOperatorError indicates an operator/data-type combination the
// evaluator does not define.
type UnsupportedOperatorError struct {
	Operator rules.Operator
	DataType rules.FieldType
}

// Error returns the error message.
func (e *UnsupportedOperatorError) Error() string {
	return fmt.Sprintf("operator %s is not supported for data type %s", e.Operator, e.DataType)
}

// ConditionError indicates a malformed condition value (for example a
// BETWEEN without exactly two bounds).
type ConditionError struct {
	Field   string
	Message string
}

// Error returns the error message.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition on field %q: %s", e.Field, e.Message)
}

// RuleEvaluationError tags a condition evaluation failure with the offending
// rule id. The original error is preserved via Unwrap so the ruleset engine
// can decide how to degrade.
type RuleEvaluationError struct {
	RuleID string
	Cause  error
}

// Error returns the error message.
func (e *RuleEvaluationError) Error() string {
	return fmt.Sprintf("rule %s: %v", e.RuleID, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RuleEvaluationError) Unwrap() error {
	return e.Cause
}

// EvaluationTimeoutError indicates the caller-supplied deadline expired
// before all rules were evaluated. No partial decision is returned.
type EvaluationTimeoutError struct {
	RulesetID string
	Deadline  time.Duration
}

// Error returns the error message.
func (e *EvaluationTimeoutError) Error() string {
	if e.Deadline > 0 {
		return fmt.Sprintf("ruleset %s: evaluation timed out after %v", e.RulesetID, e.Deadline)
	}
	return fmt.Sprintf("ruleset %s: evaluation timed out", e.RulesetID)
}

// TransactionValidationError indicates the transaction failed validation
// against the data dictionary bound to the ruleset. No rules are evaluated
// and no decision is produced.
type TransactionValidationError struct {
	RulesetID    string
	DictionaryID string
	Cause        error
}

// Error returns the error message.
func (e *TransactionValidationError) Error() string {
	return fmt.Sprintf("ruleset %s: transaction rejected by dictionary %s: %v", e.RulesetID, e.DictionaryID, e.Cause)
}

// Unwrap returns the underlying validation failure.
func (e *TransactionValidationError) Unwrap() error {
	return e.Cause
}
