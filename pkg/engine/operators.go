package engine

import (
	"fmt"
	"strings"
	"time"

	"meridian-hq/meridian/pkg/dictionary"
	"meridian-hq/meridian/pkg/rules"
)

// evaluateOperator compares a coerced transaction value against a
// condition's expected value under the leaf's declared data type. The actual
// value must already be in its canonical representation (string, float64,
// bool, or time.Time).
func evaluateOperator(field string, op rules.Operator, dt rules.FieldType, actual, expected any) (bool, error) {
	switch op {
	case rules.OpEquals:
		return evaluateEquals(field, dt, actual, expected)

	case rules.OpNotEquals:
		eq, err := evaluateEquals(field, dt, actual, expected)
		return !eq, err

	case rules.OpGreaterThan, rules.OpLessThan, rules.OpGreaterThanOrEqual, rules.OpLessThanOrEqual:
		return evaluateOrdering(field, op, dt, actual, expected)

	case rules.OpContains:
		return evaluateContains(field, dt, actual, expected)

	case rules.OpIn:
		return evaluateIn(field, dt, actual, expected)

	case rules.OpBetween:
		return evaluateBetween(field, dt, actual, expected)

	default:
		return false, &UnsupportedOperatorError{Operator: op, DataType: dt}
	}
}

// evaluateEquals applies exact-value semantics for every data type.
// String comparison is case-sensitive; dates compare as instants.
func evaluateEquals(field string, dt rules.FieldType, actual, expected any) (bool, error) {
	want, err := coerceExpected(field, dt, expected)
	if err != nil {
		return false, err
	}

	if dt == rules.TypeDate {
		return actual.(time.Time).Equal(want.(time.Time)), nil
	}
	return actual == want, nil
}

// evaluateOrdering applies the natural ordering of numeric and date types.
// Ordering over strings, booleans, or enums is undefined.
func evaluateOrdering(field string, op rules.Operator, dt rules.FieldType, actual, expected any) (bool, error) {
	switch dt {
	case rules.TypeNumber, rules.TypeDecimal:
		want, err := coerceExpected(field, dt, expected)
		if err != nil {
			return false, err
		}
		return compareOrdered(op, compareFloats(actual.(float64), want.(float64))), nil

	case rules.TypeDate:
		want, err := coerceExpected(field, dt, expected)
		if err != nil {
			return false, err
		}
		return compareOrdered(op, actual.(time.Time).Compare(want.(time.Time))), nil

	default:
		return false, &UnsupportedOperatorError{Operator: op, DataType: dt}
	}
}

// evaluateContains applies case-sensitive substring matching. Defined for
// strings only.
func evaluateContains(field string, dt rules.FieldType, actual, expected any) (bool, error) {
	if dt != rules.TypeString {
		return false, &UnsupportedOperatorError{Operator: rules.OpContains, DataType: dt}
	}
	want, err := coerceExpected(field, dt, expected)
	if err != nil {
		return false, err
	}
	return strings.Contains(actual.(string), want.(string)), nil
}

// evaluateIn checks membership in a finite value set. Order is irrelevant.
func evaluateIn(field string, dt rules.FieldType, actual, expected any) (bool, error) {
	set, ok := expected.([]any)
	if !ok {
		return false, &ConditionError{Field: field, Message: fmt.Sprintf("IN requires a value set, got %T", expected)}
	}

	for _, raw := range set {
		eq, err := evaluateEquals(field, dt, actual, raw)
		if err != nil {
			return false, err
		}
		if eq {
			return true, nil
		}
	}
	return false, nil
}

// evaluateBetween checks lower <= value <= upper, inclusive on both ends.
// Requires exactly two boundary values and an ordered data type.
func evaluateBetween(field string, dt rules.FieldType, actual, expected any) (bool, error) {
	bounds, ok := expected.([]any)
	if !ok || len(bounds) != 2 {
		return false, &ConditionError{Field: field, Message: "BETWEEN requires exactly two boundary values"}
	}

	lowerOK, err := evaluateOrdering(field, rules.OpGreaterThanOrEqual, dt, actual, bounds[0])
	if err != nil {
		return false, err
	}
	if !lowerOK {
		return false, nil
	}
	return evaluateOrdering(field, rules.OpLessThanOrEqual, dt, actual, bounds[1])
}

// coerceExpected converts a condition's expected value to the canonical
// representation of the declared data type. A failure here is a rule
// authoring problem, not a transaction problem.
func coerceExpected(field string, dt rules.FieldType, expected any) (any, error) {
	v, err := dictionary.CoerceValue(expected, dt)
	if err != nil {
		return nil, &ConditionError{Field: field, Message: err.Error()}
	}
	return v, nil
}

func compareFloats(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func compareOrdered(op rules.Operator, cmp int) bool {
	switch op {
	case rules.OpGreaterThan:
		return cmp > 0
	case rules.OpLessThan:
		return cmp < 0
	case rules.OpGreaterThanOrEqual:
		return cmp >= 0
	case rules.OpLessThanOrEqual:
		return cmp <= 0
	default:
		return false
	}
}
