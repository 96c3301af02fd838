package engine

import (
	"errors"
	"testing"
	"time"

	"meridian-hq/meridian/pkg/rules"
)

func TestEvaluateOperator(t *testing.T) {
	noon := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		op       rules.Operator
		dt       rules.FieldType
		actual   any
		expected any
		want     bool
	}{
		// EQUALS
		{"equal strings", rules.OpEquals, rules.TypeString, "ATM", "ATM", true},
		{"equals is case sensitive", rules.OpEquals, rules.TypeString, "ATM", "atm", false},
		{"equal numbers", rules.OpEquals, rules.TypeNumber, 100.0, 100, true},
		{"equal booleans", rules.OpEquals, rules.TypeBoolean, true, true, true},
		{"equal dates", rules.OpEquals, rules.TypeDate, noon, "2026-03-15T12:00:00Z", true},
		{"not equals", rules.OpNotEquals, rules.TypeString, "POS", "ATM", true},

		// Ordering
		{"greater than", rules.OpGreaterThan, rules.TypeNumber, 150.0, 100, true},
		{"greater than equal boundary", rules.OpGreaterThan, rules.TypeNumber, 100.0, 100, false},
		{"less than", rules.OpLessThan, rules.TypeDecimal, 99.5, 100, true},
		{"gte boundary", rules.OpGreaterThanOrEqual, rules.TypeNumber, 100.0, 100, true},
		{"lte boundary", rules.OpLessThanOrEqual, rules.TypeNumber, 100.0, 100, true},
		{"date ordering", rules.OpGreaterThan, rules.TypeDate, noon, "2026-03-15", true},

		// CONTAINS
		{"contains substring", rules.OpContains, rules.TypeString, "online purchase", "purchase", true},
		{"contains is case sensitive", rules.OpContains, rules.TypeString, "Online Purchase", "purchase", false},

		// IN
		{"in set", rules.OpIn, rules.TypeString, "GB", []any{"US", "GB", "FR"}, true},
		{"not in set", rules.OpIn, rules.TypeString, "DE", []any{"US", "GB", "FR"}, false},
		{"in numeric set", rules.OpIn, rules.TypeNumber, 42.0, []any{40, 41, 42}, true},

		// BETWEEN, inclusive on both ends
		{"between inside", rules.OpBetween, rules.TypeNumber, 50.0, []any{10, 100}, true},
		{"between lower boundary", rules.OpBetween, rules.TypeNumber, 10.0, []any{10, 100}, true},
		{"between upper boundary", rules.OpBetween, rules.TypeNumber, 100.0, []any{10, 100}, true},
		{"between below", rules.OpBetween, rules.TypeNumber, 9.99, []any{10, 100}, false},
		{"between above", rules.OpBetween, rules.TypeNumber, 100.01, []any{10, 100}, false},
		{"between dates", rules.OpBetween, rules.TypeDate, noon, []any{"2026-03-01", "2026-03-31"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := evaluateOperator("f", tt.op, tt.dt, tt.actual, tt.expected)
			if err != nil {
				t.Fatalf("evaluateOperator: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEvaluateOperatorErrors(t *testing.T) {
	tests := []struct {
		name     string
		op       rules.Operator
		dt       rules.FieldType
		actual   any
		expected any
	}{
		{"ordering over strings", rules.OpGreaterThan, rules.TypeString, "b", "a"},
		{"ordering over booleans", rules.OpLessThan, rules.TypeBoolean, true, false},
		{"contains over numbers", rules.OpContains, rules.TypeNumber, 1.0, 1},
		{"in without a set", rules.OpIn, rules.TypeString, "x", "not-a-set"},
		{"between with one bound", rules.OpBetween, rules.TypeNumber, 5.0, []any{1}},
		{"unknown operator", rules.Operator("MATCHES"), rules.TypeString, "x", "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := evaluateOperator("f", tt.op, tt.dt, tt.actual, tt.expected); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestUnsupportedOperatorErrorType(t *testing.T) {
	_, err := evaluateOperator("f", rules.OpContains, rules.TypeNumber, 1.0, 1)
	var ue *UnsupportedOperatorError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnsupportedOperatorError, got %v", err)
	}
}
