// Package quality drops fields that are empty, low confidence or noise.
package quality

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
)

// Policy names a filtering policy
type Policy string

const (
	PolicyBasic  Policy = "basic"
	PolicyStrict Policy = "strict"
)

// Verdict is the decision for one field
type Verdict struct {
	Keep   bool   `json:"keep"`
	Reason string `json:"reason,omitempty"`
}

// Rejection records a field removed by a filter
type Rejection struct {
	FieldID   string           `json:"field_id"`
	FieldType fields.FieldType `json:"field_type"`
	Value     string           `json:"value"`
	Reason    string           `json:"reason"`
}

// Filter decides whether a field survives into the final field set
type Filter interface {
	Name() string
	Evaluate(field fields.Field) Verdict
}

// Apply runs filter over fields, preserving order in both outputs
func Apply(filter Filter, in []fields.Field) ([]fields.Field, []Rejection) {
	kept := make([]fields.Field, 0, len(in))
	rejected := []Rejection{}
	for _, f := range in {
		v := filter.Evaluate(f)
		if v.Keep {
			kept = append(kept, f)
			continue
		}
		rejected = append(rejected, Rejection{
			FieldID:   f.ID,
			FieldType: f.FieldType,
			Value:     f.Value,
			Reason:    v.Reason,
		})
	}
	return kept, rejected
}

// Config holds the thresholds for both policies
type Config struct {
	Policy             Policy  `json:"policy" mapstructure:"policy"`
	BasicMinConfidence float64 `json:"basic_min_confidence" mapstructure:"basic_min_confidence"`
	CriticalFloor      float64 `json:"critical_floor" mapstructure:"critical_floor"`
	StructuredFloor    float64 `json:"structured_floor" mapstructure:"structured_floor"`
	DefaultFloor       float64 `json:"default_floor" mapstructure:"default_floor"`
	MinLength          int     `json:"min_length" mapstructure:"min_length"`
	MaxRepeatedRun     int     `json:"max_repeated_run" mapstructure:"max_repeated_run"`
}

// DefaultConfig returns the default filter configuration
func DefaultConfig() Config {
	return Config{
		Policy:             PolicyStrict,
		BasicMinConfidence: 0.3,
		CriticalFloor:      0.70,
		StructuredFloor:    0.60,
		DefaultFloor:       0.50,
		MinLength:          1,
		MaxRepeatedRun:     3,
	}
}

// Validate checks the policy name and thresholds
func (c Config) Validate() error {
	switch c.Policy {
	case PolicyBasic, PolicyStrict:
	default:
		return fmt.Errorf("unknown quality policy %q (expected basic or strict)", c.Policy)
	}
	floors := []struct {
		name  string
		value float64
	}{
		{"basic_min_confidence", c.BasicMinConfidence},
		{"critical_floor", c.CriticalFloor},
		{"structured_floor", c.StructuredFloor},
		{"default_floor", c.DefaultFloor},
	}
	for _, f := range floors {
		if f.value < 0 || f.value > 1 {
			return fmt.Errorf("%s must be in [0,1], got %v", f.name, f.value)
		}
	}
	if c.MaxRepeatedRun < 1 {
		return fmt.Errorf("max_repeated_run must be at least 1, got %d", c.MaxRepeatedRun)
	}
	return nil
}

// New returns the filter for the configured policy
func New(config Config) (Filter, error) {
	switch config.Policy {
	case PolicyBasic:
		return NewBasic(config), nil
	case PolicyStrict, "":
		return NewStrict(config), nil
	default:
		return nil, fmt.Errorf("unknown quality policy %q", config.Policy)
	}
}

var noisePattern = regexp.MustCompile(`^[\s\-|]{1,2}$`)

// Basic rejects only empty values, very low confidence and punctuation noise
type Basic struct {
	config Config
}

// NewBasic creates the basic filter
func NewBasic(config Config) *Basic {
	return &Basic{config: config}
}

// Name returns the policy name
func (b *Basic) Name() string { return string(PolicyBasic) }

// Evaluate applies the basic checks
func (b *Basic) Evaluate(field fields.Field) Verdict {
	if noisePattern.MatchString(field.Value) {
		return reject("noise")
	}
	if strings.TrimSpace(field.Value) == "" {
		return reject("empty_value")
	}
	if field.Confidence < b.config.BasicMinConfidence {
		return reject("low_confidence")
	}
	return Verdict{Keep: true}
}

var (
	criticalTypes = map[fields.FieldType]bool{
		fields.FieldTypeRFC:    true,
		fields.FieldTypeCURP:   true,
		fields.FieldTypeNSS:    true,
		fields.FieldTypeIMSS:   true,
		fields.FieldTypeISSSTE: true,
		fields.FieldTypeCLABE:  true,
	}
	structuredTypes = map[fields.FieldType]bool{
		fields.FieldTypeDate:       true,
		fields.FieldTypeBirthDate:  true,
		fields.FieldTypeEmail:      true,
		fields.FieldTypePhone:      true,
		fields.FieldTypePostalCode: true,
		fields.FieldTypeCurrency:   true,
		fields.FieldTypeNumber:     true,
	}
	booleanValues = map[string]bool{
		"x": true, "✓": true, "✔": true, "si": true, "sí": true, "no": true,
		"yes": true, "true": true, "false": true, "selected": true, "unselected": true,
		"checked": true, "unchecked": true, "on": true, "off": true,
	}
	fillerPattern = regexp.MustCompile(`(?i)lorem ipsum|placeholder|sample text|texto de (ejemplo|prueba)|^n/?a$|^xxx+$|^test$|^prueba$`)
)

// Strict applies type-adaptive confidence floors and content checks
type Strict struct {
	config Config
}

// NewStrict creates the strict filter
func NewStrict(config Config) *Strict {
	return &Strict{config: config}
}

// Name returns the policy name
func (s *Strict) Name() string { return string(PolicyStrict) }

// Evaluate applies the strict checks
func (s *Strict) Evaluate(field fields.Field) Verdict {
	value := strings.TrimSpace(field.Value)

	if field.Confidence < s.Floor(field.FieldType) {
		return reject("below_type_floor")
	}

	if isBooleanLike(field, value) {
		return Verdict{Keep: true}
	}

	if utf8.RuneCountInString(value) < max(1, s.config.MinLength) {
		return reject("too_short")
	}
	if noisePattern.MatchString(field.Value) {
		return reject("noise")
	}
	if hasRepeatedRun(value, s.config.MaxRepeatedRun+1) {
		return reject("repeated_characters")
	}
	if fillerPattern.MatchString(value) {
		return reject("filler_text")
	}
	return Verdict{Keep: true}
}

// Floor returns the minimum confidence a field of fieldType needs
func (s *Strict) Floor(fieldType fields.FieldType) float64 {
	switch {
	case criticalTypes[fieldType]:
		return s.config.CriticalFloor
	case structuredTypes[fieldType]:
		return s.config.StructuredFloor
	default:
		return s.config.DefaultFloor
	}
}

// isBooleanLike reports whether a value is a selection mark, which may be
// empty or a single symbol
func isBooleanLike(field fields.Field, value string) bool {
	if field.SourceType == fields.SourceCheckbox || field.FieldType == fields.FieldTypeCheckbox {
		return true
	}
	return booleanValues[strings.ToLower(value)]
}

// hasRepeatedRun reports whether a rune other than a digit or space repeats n or
// more times in a row
func hasRepeatedRun(value string, n int) bool {
	var prev rune
	run := 0
	for _, r := range value {
		if r == prev {
			run++
		} else {
			prev, run = r, 1
		}
		if run >= n && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			return true
		}
	}
	return false
}

func reject(reason string) Verdict {
	return Verdict{Keep: false, Reason: reason}
}
