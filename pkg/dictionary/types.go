package dictionary

import (
	"time"

	"meridian-hq/meridian/pkg/rules"
)

// DictionaryStatus is the lifecycle status of a data dictionary.
type DictionaryStatus string

const (
	StatusDraft      DictionaryStatus = "DRAFT"
	StatusActive     DictionaryStatus = "ACTIVE"
	StatusDeprecated DictionaryStatus = "DEPRECATED"
)

// ValidationType is the kind of validation rule attached to a field.
type ValidationType string

const (
	ValidationRegex  ValidationType = "REGEX"
	ValidationRange  ValidationType = "RANGE"
	ValidationLength ValidationType = "LENGTH"
	ValidationCustom ValidationType = "CUSTOM"
)

// ValidationRule constrains a field's values. Value is interpreted per type:
// a regular expression for REGEX, "min,max" bounds for RANGE and LENGTH
// (either bound may be empty), and a CEL expression over the variable
// `value` for CUSTOM.
type ValidationRule struct {
	Type         ValidationType `json:"type" yaml:"type"`
	Value        string         `json:"value" yaml:"value"`
	ErrorMessage string         `json:"errorMessage,omitempty" yaml:"errorMessage,omitempty"`
}

// Field describes a single transaction field.
type Field struct {
	ID          string          `json:"id" yaml:"id"`
	Name        string          `json:"name" yaml:"name"`
	DisplayName string          `json:"displayName,omitempty" yaml:"displayName,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	DataType    rules.FieldType `json:"dataType" yaml:"dataType"`
	Source      string          `json:"source,omitempty" yaml:"source,omitempty"`
	Category    string          `json:"category,omitempty" yaml:"category,omitempty"`
	Nullable    bool            `json:"isNullable" yaml:"isNullable"`

	// DefaultValue, when non-nil, is substituted for the field during
	// evaluation if the transaction omits it.
	DefaultValue *string `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`

	ValidationRules []ValidationRule `json:"validationRules,omitempty" yaml:"validationRules,omitempty"`

	// EnumValues is the closed value set for ENUM fields.
	EnumValues []string `json:"enumValues,omitempty" yaml:"enumValues,omitempty"`
}

// Dictionary is a versioned catalog of fields for one domain. Fields are
// immutable once the dictionary version is referenced by a deployment.
type Dictionary struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Domain      rules.Domain     `json:"domain" yaml:"domain"`
	Version     int              `json:"version" yaml:"version"`
	Status      DictionaryStatus `json:"status" yaml:"status"`
	Fields      []*Field         `json:"fields" yaml:"fields"`
	CreatedBy   string           `json:"createdBy,omitempty" yaml:"createdBy,omitempty"`
	CreatedAt   time.Time        `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt   time.Time        `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
}

// FieldByName returns the field with the given name, or nil.
func (d *Dictionary) FieldByName(name string) *Field {
	for _, f := range d.Fields {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// Defaults returns the field defaults declared by the dictionary, coerced to
// each field's data type. Fields whose default cannot be coerced are skipped.
func (d *Dictionary) Defaults() map[string]any {
	defaults := make(map[string]any)
	for _, f := range d.Fields {
		if f.DefaultValue == nil {
			continue
		}
		v, err := CoerceValue(*f.DefaultValue, f.DataType)
		if err != nil {
			continue
		}
		defaults[f.Name] = v
	}
	return defaults
}
