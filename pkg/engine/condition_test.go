package engine

import (
	"context"
	"errors"
	"testing"

	"meridian-hq/meridian/pkg/rules"
)

func leaf(field string, op rules.Operator, value any, dt rules.FieldType) *rules.ConditionNode {
	return &rules.ConditionNode{Field: field, Operator: op, Value: value, DataType: dt}
}

func branch(c rules.Combinator, children ...*rules.ConditionNode) *rules.ConditionNode {
	return &rules.ConditionNode{Combinator: c, Conditions: children}
}

func TestConditionTrees(t *testing.T) {
	txn := rules.Transaction{
		"amount":      15000.0,
		"country":     "GB",
		"channel":     "ONLINE",
		"cardPresent": false,
	}

	tests := []struct {
		name string
		node *rules.ConditionNode
		want bool
	}{
		{
			name: "nil tree is vacuously true",
			node: nil,
			want: true,
		},
		{
			name: "single leaf",
			node: leaf("amount", rules.OpGreaterThan, 10000, rules.TypeNumber),
			want: true,
		},
		{
			name: "and all true",
			node: branch(rules.CombinatorAnd,
				leaf("amount", rules.OpGreaterThan, 10000, rules.TypeNumber),
				leaf("country", rules.OpEquals, "GB", rules.TypeString),
			),
			want: true,
		},
		{
			name: "and one false",
			node: branch(rules.CombinatorAnd,
				leaf("amount", rules.OpGreaterThan, 10000, rules.TypeNumber),
				leaf("country", rules.OpEquals, "US", rules.TypeString),
			),
			want: false,
		},
		{
			name: "and with zero children is true",
			node: branch(rules.CombinatorAnd),
			want: true,
		},
		{
			name: "or any true",
			node: branch(rules.CombinatorOr,
				leaf("country", rules.OpEquals, "US", rules.TypeString),
				leaf("channel", rules.OpEquals, "ONLINE", rules.TypeString),
			),
			want: true,
		},
		{
			name: "or with zero children is false",
			node: branch(rules.CombinatorOr),
			want: false,
		},
		{
			name: "nested branches",
			node: branch(rules.CombinatorAnd,
				leaf("cardPresent", rules.OpEquals, false, rules.TypeBoolean),
				branch(rules.CombinatorOr,
					leaf("amount", rules.OpGreaterThan, 50000, rules.TypeNumber),
					leaf("country", rules.OpIn, []any{"GB", "FR"}, rules.TypeString),
				),
			),
			want: true,
		},
	}

	e := NewConditionEvaluator(nil, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Evaluate(context.Background(), tt.node, txn)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMissingFieldFailsLeaf(t *testing.T) {
	e := NewConditionEvaluator(nil, nil)
	_, err := e.Evaluate(context.Background(),
		leaf("merchantCategory", rules.OpEquals, "5411", rules.TypeString),
		rules.Transaction{"amount": 10.0},
	)
	var mf *MissingFieldError
	if !errors.As(err, &mf) {
		t.Fatalf("expected MissingFieldError, got %v", err)
	}
	if mf.Field != "merchantCategory" {
		t.Errorf("field = %q", mf.Field)
	}
}

func TestDictionaryDefaultFillsMissingField(t *testing.T) {
	defaults := map[string]any{"merchantCategory": "5411"}
	e := NewConditionEvaluator(nil, defaults)

	got, err := e.Evaluate(context.Background(),
		leaf("merchantCategory", rules.OpEquals, "5411", rules.TypeString),
		rules.Transaction{"amount": 10.0},
	)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Error("expected default value to satisfy the condition")
	}
}

func TestTypeMismatchFailsLeaf(t *testing.T) {
	e := NewConditionEvaluator(nil, nil)
	_, err := e.Evaluate(context.Background(),
		leaf("amount", rules.OpGreaterThan, 100, rules.TypeNumber),
		rules.Transaction{"amount": "not a number"},
	)
	var tm *TypeMismatchError
	if !errors.As(err, &tm) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
}

func TestShortCircuitSkipsBrokenSibling(t *testing.T) {
	e := NewConditionEvaluator(nil, nil)
	txn := rules.Transaction{"country": "GB"}

	// The first OR child matches, so the second (which would fail on a
	// missing field) is never evaluated.
	node := branch(rules.CombinatorOr,
		leaf("country", rules.OpEquals, "GB", rules.TypeString),
		leaf("missing", rules.OpEquals, "x", rules.TypeString),
	)
	got, err := e.Evaluate(context.Background(), node, txn)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if !got {
		t.Error("expected OR to short-circuit true")
	}

	// Reversed order surfaces the error instead.
	reversed := branch(rules.CombinatorOr,
		leaf("missing", rules.OpEquals, "x", rules.TypeString),
		leaf("country", rules.OpEquals, "GB", rules.TypeString),
	)
	if _, err := e.Evaluate(context.Background(), reversed, txn); err == nil {
		t.Error("expected error from left-to-right evaluation")
	}
}

func TestEvaluateHonorsContextCancellation(t *testing.T) {
	e := NewConditionEvaluator(nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	node := branch(rules.CombinatorAnd,
		leaf("country", rules.OpEquals, "GB", rules.TypeString),
	)
	_, err := e.Evaluate(ctx, node, rules.Transaction{"country": "GB"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
