package dictionary

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/spf13/cast"

	"meridian-hq/meridian/pkg/rules"
)

// FieldError describes one validation failure for one transaction field.
type FieldError struct {
	Field   string
	Rule    ValidationType
	Message string
}

// Error returns the error message.
func (e *FieldError) Error() string {
	return fmt.Sprintf("field %q: %s validation failed: %s", e.Field, e.Rule, e.Message)
}

// ValidationResult collects all field errors for one transaction.
type ValidationResult struct {
	Errors []*FieldError
}

// Valid returns true if no validation failures were recorded.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns the combined error message.
func (r *ValidationResult) Error() string {
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("transaction failed validation: %s", strings.Join(msgs, "; "))
}

// Validator validates transactions against a data dictionary. CUSTOM
// validation rules are CEL expressions over the variable `value`; compiled
// programs are cached per expression. Validator is safe for concurrent use.
type Validator struct {
	dict *Dictionary

	celEnv   *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
}

// NewValidator creates a validator for the given dictionary.
func NewValidator(dict *Dictionary) (*Validator, error) {
	env, err := cel.NewEnv(cel.Variable("value", cel.DynType))
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Validator{
		dict:     dict,
		celEnv:   env,
		programs: make(map[string]cel.Program),
	}, nil
}

// Compile eagerly compiles every CUSTOM rule expression in the dictionary.
// Compilation normally happens lazily on first use; linting and other
// authoring-time checks call Compile so a broken expression surfaces before
// the dictionary is ever deployed.
func (v *Validator) Compile() error {
	for _, f := range v.dict.Fields {
		for _, rule := range f.ValidationRules {
			if rule.Type != ValidationCustom {
				continue
			}
			if _, err := v.program(rule.Value); err != nil {
				return fmt.Errorf("field %q: %w", f.Name, err)
			}
		}
	}
	return nil
}

// ValidateTransaction checks every dictionary field against the transaction:
// missing non-nullable fields without defaults, type coercion failures, and
// per-field validation rules. It returns nil when the transaction is valid.
func (v *Validator) ValidateTransaction(txn rules.Transaction) error {
	result := &ValidationResult{}

	for _, f := range v.dict.Fields {
		raw, ok := txn[f.Name]
		if !ok || raw == nil {
			if !f.Nullable && f.DefaultValue == nil {
				result.Errors = append(result.Errors, &FieldError{
					Field:   f.Name,
					Rule:    "",
					Message: "required field is missing",
				})
			}
			continue
		}

		value, err := CoerceValue(raw, f.DataType)
		if err != nil {
			result.Errors = append(result.Errors, &FieldError{
				Field:   f.Name,
				Rule:    "",
				Message: err.Error(),
			})
			continue
		}

		if f.DataType == rules.TypeEnum && len(f.EnumValues) > 0 {
			if !containsString(f.EnumValues, value.(string)) {
				result.Errors = append(result.Errors, &FieldError{
					Field:   f.Name,
					Rule:    "",
					Message: fmt.Sprintf("value %q is not in the enum set", value),
				})
				continue
			}
		}

		for _, rule := range f.ValidationRules {
			if err := v.applyRule(f, rule, value); err != nil {
				msg := rule.ErrorMessage
				if msg == "" {
					msg = err.Error()
				}
				result.Errors = append(result.Errors, &FieldError{
					Field:   f.Name,
					Rule:    rule.Type,
					Message: msg,
				})
			}
		}
	}

	if !result.Valid() {
		return result
	}
	return nil
}

func (v *Validator) applyRule(f *Field, rule ValidationRule, value any) error {
	switch rule.Type {
	case ValidationRegex:
		return applyRegex(rule.Value, value)
	case ValidationRange:
		return applyRange(rule.Value, value)
	case ValidationLength:
		return applyLength(rule.Value, value)
	case ValidationCustom:
		return v.applyCustom(rule.Value, value)
	default:
		return fmt.Errorf("unknown validation rule type %q", rule.Type)
	}
}

func applyRegex(pattern string, value any) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Errorf("regex validation requires a string value: %w", err)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern %q: %w", pattern, err)
	}
	if !re.MatchString(s) {
		return fmt.Errorf("value does not match pattern %q", pattern)
	}
	return nil
}

func applyRange(bounds string, value any) error {
	f, err := cast.ToFloat64E(value)
	if err != nil {
		return fmt.Errorf("range validation requires a numeric value: %w", err)
	}
	min, max, err := parseBounds(bounds)
	if err != nil {
		return err
	}
	if min != nil && f < *min {
		return fmt.Errorf("value %v below minimum %v", f, *min)
	}
	if max != nil && f > *max {
		return fmt.Errorf("value %v above maximum %v", f, *max)
	}
	return nil
}

func applyLength(bounds string, value any) error {
	s, err := cast.ToStringE(value)
	if err != nil {
		return fmt.Errorf("length validation requires a string value: %w", err)
	}
	min, max, err := parseBounds(bounds)
	if err != nil {
		return err
	}
	n := float64(len(s))
	if min != nil && n < *min {
		return fmt.Errorf("length %d below minimum %v", len(s), *min)
	}
	if max != nil && n > *max {
		return fmt.Errorf("length %d above maximum %v", len(s), *max)
	}
	return nil
}

// applyCustom evaluates a CEL expression against the field value. The
// expression must evaluate to a boolean; non-boolean results fail validation.
func (v *Validator) applyCustom(expression string, value any) error {
	prog, err := v.program(expression)
	if err != nil {
		return err
	}

	out, _, err := prog.Eval(map[string]any{"value": value})
	if err != nil {
		return fmt.Errorf("custom rule evaluation failed: %w", err)
	}

	ok, isBool := out.Value().(bool)
	if !isBool {
		return fmt.Errorf("custom rule %q did not evaluate to a boolean", expression)
	}
	if !ok {
		return fmt.Errorf("custom rule %q not satisfied", expression)
	}
	return nil
}

// program returns the compiled CEL program for an expression, compiling and
// caching it on first use.
func (v *Validator) program(expression string) (cel.Program, error) {
	v.mu.RLock()
	prog, ok := v.programs[expression]
	v.mu.RUnlock()
	if ok {
		return prog, nil
	}

	ast, issues := v.celEnv.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("custom rule compile error: %w", issues.Err())
	}

	// Cost limit guards against runaway expressions from dictionary authors.
	prog, err := v.celEnv.Program(ast, cel.CostLimit(1000000))
	if err != nil {
		return nil, fmt.Errorf("custom rule program error: %w", err)
	}

	v.mu.Lock()
	v.programs[expression] = prog
	v.mu.Unlock()

	return prog, nil
}

// parseBounds parses "min,max" bounds where either side may be empty.
func parseBounds(bounds string) (*float64, *float64, error) {
	parts := strings.SplitN(bounds, ",", 2)
	var min, max *float64
	if s := strings.TrimSpace(parts[0]); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid lower bound %q: %w", s, err)
		}
		min = &f
	}
	if len(parts) == 2 {
		if s := strings.TrimSpace(parts[1]); s != "" {
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid upper bound %q: %w", s, err)
			}
			max = &f
		}
	}
	return min, max, nil
}

func containsString(set []string, s string) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}
