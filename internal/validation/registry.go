// Package validation checks field values against Mexican identity, medical and
// financial formats and reports cross-field inconsistencies.
package validation

import (
	"github.com/a3tai/mcp-form-pipeline/internal/fields"
)

// Severity is how much a failed rule counts against a field
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Outcome is what a rule returns for one value
type Outcome struct {
	IsValid    bool
	Message    string
	Suggestion string
}

// Rule validates the value of one field type
type Rule struct {
	Name     string
	Severity Severity
	Validate func(value string) Outcome
}

// Registry maps field types to their rules in registration order
type Registry struct {
	rules map[fields.FieldType][]Rule
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{rules: make(map[fields.FieldType][]Rule)}
}

// Register appends rule to the rules of fieldType
func (r *Registry) Register(fieldType fields.FieldType, rule Rule) {
	r.rules[fieldType] = append(r.rules[fieldType], rule)
}

// Rules returns the rules of fieldType in registration order
func (r *Registry) Rules(fieldType fields.FieldType) []Rule {
	rules := r.rules[fieldType]
	out := make([]Rule, len(rules))
	copy(out, rules)
	return out
}

// Has reports whether any rule is registered for fieldType
func (r *Registry) Has(fieldType fields.FieldType) bool {
	return len(r.rules[fieldType]) > 0
}

func pass() Outcome {
	return Outcome{IsValid: true}
}

func fail(message, suggestion string) Outcome {
	return Outcome{IsValid: false, Message: message, Suggestion: suggestion}
}

// check wraps a boolean validator into a rule function
func check(valid func(string) bool, message, suggestion string) func(string) Outcome {
	return func(value string) Outcome {
		if valid(value) {
			return pass()
		}
		return fail(message, suggestion)
	}
}
