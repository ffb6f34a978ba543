package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
)

// IssueType categorises document-level problems
type IssueType string

const (
	IssueMissingRequired  IssueType = "missing_required"
	IssueInconsistentData IssueType = "inconsistent_data"
	IssueImplausibleValue IssueType = "implausible_value"
)

// Config controls document rules and confidence discounts
type Config struct {
	RequiredTypes   []fields.FieldType `json:"required_types" mapstructure:"required_types"`
	ErrorDiscount   float64            `json:"error_discount" mapstructure:"error_discount"`
	WarningDiscount float64            `json:"warning_discount" mapstructure:"warning_discount"`
	ConfidenceFloor float64            `json:"confidence_floor" mapstructure:"confidence_floor"`
	MaxAge          int                `json:"max_age" mapstructure:"max_age"`

	// Now is the reference clock for date checks; nil means time.Now
	Now func() time.Time `json:"-" mapstructure:"-"`
}

// DefaultConfig returns the default validation configuration
func DefaultConfig() Config {
	return Config{
		RequiredTypes:   []fields.FieldType{fields.FieldTypePatientName, fields.FieldTypeBirthDate},
		ErrorDiscount:   0.5,
		WarningDiscount: 0.8,
		ConfidenceFloor: 0.1,
		MaxAge:          150,
	}
}

// Validate checks that the discounts are usable
func (c Config) Validate() error {
	if c.ErrorDiscount <= 0 || c.ErrorDiscount > 1 {
		return fmt.Errorf("error discount must be in (0,1], got %v", c.ErrorDiscount)
	}
	if c.WarningDiscount <= 0 || c.WarningDiscount > 1 {
		return fmt.Errorf("warning discount must be in (0,1], got %v", c.WarningDiscount)
	}
	if c.ConfidenceFloor < 0 || c.ConfidenceFloor > 1 {
		return fmt.Errorf("confidence floor must be in [0,1], got %v", c.ConfidenceFloor)
	}
	if c.MaxAge <= 0 {
		return fmt.Errorf("max age must be positive, got %d", c.MaxAge)
	}
	return nil
}

// ValidationResult is the outcome of one rule on one field
type ValidationResult struct {
	RuleName   string   `json:"rule_name"`
	Severity   Severity `json:"severity"`
	IsValid    bool     `json:"is_valid"`
	Message    string   `json:"message,omitempty"`
	Suggestion string   `json:"suggestion,omitempty"`
}

// FieldValidation collects every rule result for one field
type FieldValidation struct {
	FieldID            string             `json:"field_id"`
	FieldType          fields.FieldType   `json:"field_type"`
	DisplayName        string             `json:"display_name"`
	Value              string             `json:"value"`
	IsValid            bool               `json:"is_valid"`
	Confidence         float64            `json:"confidence"`
	AdjustedConfidence float64            `json:"adjusted_confidence"`
	Results            []ValidationResult `json:"results"`
}

// DocumentIssue is a form-level problem spanning one or more fields
type DocumentIssue struct {
	Type       IssueType        `json:"type"`
	Severity   Severity         `json:"severity"`
	FieldType  fields.FieldType `json:"field_type,omitempty"`
	FieldIDs   []string         `json:"field_ids"`
	Message    string           `json:"message"`
	Suggestion string           `json:"suggestion,omitempty"`
}

// Summary aggregates a report
type Summary struct {
	TotalFields          int     `json:"total_fields"`
	ValidFields          int     `json:"valid_fields"`
	InvalidFields        int     `json:"invalid_fields"`
	ErrorCount           int     `json:"error_count"`
	WarningCount         int     `json:"warning_count"`
	AverageConfidence    float64 `json:"average_confidence"`
	CompletionPercentage float64 `json:"completion_percentage"`
	OverallValid         bool    `json:"overall_valid"`
}

// DocumentValidationReport is the validation outcome for one document
type DocumentValidationReport struct {
	Fields      []FieldValidation `json:"fields"`
	Issues      []DocumentIssue   `json:"issues"`
	Summary     Summary           `json:"summary"`
	Suggestions []string          `json:"suggestions"`
}

// Engine validates final field sets
type Engine struct {
	config   Config
	registry *Registry
}

// NewEngine creates an engine with the default registry
func NewEngine(config Config) *Engine {
	return NewEngineWithRegistry(config, DefaultRegistry(config.Now))
}

// NewEngineWithRegistry creates an engine with a caller supplied registry
func NewEngineWithRegistry(config Config, registry *Registry) *Engine {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Engine{config: config, registry: registry}
}

// ValidateField runs every registered rule of the field's type
func (e *Engine) ValidateField(field fields.Field) FieldValidation {
	fv := FieldValidation{
		FieldID:     field.ID,
		FieldType:   field.FieldType,
		DisplayName: field.DisplayName,
		Value:       field.Value,
		IsValid:     true,
		Confidence:  field.Confidence,
		Results:     []ValidationResult{},
	}

	confidence := field.Confidence
	for _, rule := range e.registry.Rules(field.FieldType) {
		outcome := rule.Validate(field.Value)
		fv.Results = append(fv.Results, ValidationResult{
			RuleName:   rule.Name,
			Severity:   rule.Severity,
			IsValid:    outcome.IsValid,
			Message:    outcome.Message,
			Suggestion: outcome.Suggestion,
		})

		if outcome.IsValid {
			continue
		}
		switch rule.Severity {
		case SeverityError:
			fv.IsValid = false
			confidence *= e.config.ErrorDiscount
		case SeverityWarning:
			confidence *= e.config.WarningDiscount
		}
	}

	fv.AdjustedConfidence = math.Max(e.config.ConfidenceFloor, confidence)
	return fv
}

// ValidateDocument validates every field and the form-level rules
func (e *Engine) ValidateDocument(in []fields.Field) DocumentValidationReport {
	report := DocumentValidationReport{
		Fields:      make([]FieldValidation, 0, len(in)),
		Issues:      []DocumentIssue{},
		Suggestions: []string{},
	}

	for _, f := range in {
		report.Fields = append(report.Fields, e.ValidateField(f))
	}

	report.Issues = append(report.Issues, e.checkRequired(in)...)
	report.Issues = append(report.Issues, e.checkIdentifierConsistency(in)...)
	report.Issues = append(report.Issues, e.checkPlausibility(in)...)

	report.Summary = summarize(report)
	report.Suggestions = collectSuggestions(report)
	return report
}

func (e *Engine) checkRequired(in []fields.Field) []DocumentIssue {
	var issues []DocumentIssue
	for _, required := range e.config.RequiredTypes {
		if _, ok := firstOfType(in, required); ok {
			continue
		}
		issues = append(issues, DocumentIssue{
			Type:       IssueMissingRequired,
			Severity:   SeverityError,
			FieldType:  required,
			FieldIDs:   []string{},
			Message:    fmt.Sprintf("required field %s is missing", required),
			Suggestion: fmt.Sprintf("Capture the %s field", fields.DisplayName("", required)),
		})
	}
	return issues
}

// checkIdentifierConsistency compares the birth date embedded in the first
// RFC and the first CURP
func (e *Engine) checkIdentifierConsistency(in []fields.Field) []DocumentIssue {
	rfc, okRFC := firstOfType(in, fields.FieldTypeRFC)
	curp, okCURP := firstOfType(in, fields.FieldTypeCURP)
	if !okRFC || !okCURP {
		return nil
	}

	rfcValue := strings.ToUpper(strings.TrimSpace(rfc.Value))
	curpValue := strings.ToUpper(strings.TrimSpace(curp.Value))
	if !fields.IsRFC(rfcValue) || !fields.IsCURP(curpValue) {
		return nil
	}
	rfcDate, curpDate := dateSegment(rfcValue), dateSegment(curpValue)
	if rfcDate == curpDate {
		return nil
	}

	return []DocumentIssue{{
		Type:     IssueInconsistentData,
		Severity: SeverityError,
		FieldIDs: []string{rfc.ID, curp.ID},
		Message: fmt.Sprintf("RFC date segment %s does not match CURP date segment %s",
			rfcDate, curpDate),
		Suggestion: "Verify the birth date encoded in the RFC and CURP",
	}}
}

// checkPlausibility flags ages outside [0, MaxAge], derived from the birth
// date or read from an age field
func (e *Engine) checkPlausibility(in []fields.Field) []DocumentIssue {
	var issues []DocumentIssue
	today := e.config.Now()

	if birth, ok := firstOfType(in, fields.FieldTypeBirthDate); ok {
		if t, parsed := fields.ParseDate(birth.Value); parsed {
			if age := ageAt(t, today); age < 0 || age > e.config.MaxAge {
				issues = append(issues, e.implausibleAge(birth, age))
			}
		}
	}

	if ageField, ok := firstOfType(in, fields.FieldTypeAge); ok {
		if age, err := strconv.Atoi(strings.TrimSpace(ageField.Value)); err == nil {
			if age < 0 || age > e.config.MaxAge {
				issues = append(issues, e.implausibleAge(ageField, age))
			}
		}
	}

	return issues
}

func (e *Engine) implausibleAge(f fields.Field, age int) DocumentIssue {
	return DocumentIssue{
		Type:       IssueImplausibleValue,
		Severity:   SeverityWarning,
		FieldType:  f.FieldType,
		FieldIDs:   []string{f.ID},
		Message:    fmt.Sprintf("derived age %d is outside 0-%d", age, e.config.MaxAge),
		Suggestion: "Confirm the patient's birth date",
	}
}

// ageAt returns whole years elapsed from birth to at
func ageAt(birth, at time.Time) int {
	age := at.Year() - birth.Year()
	if at.Month() < birth.Month() || (at.Month() == birth.Month() && at.Day() < birth.Day()) {
		age--
	}
	return age
}

// dateSegment returns the YYMMDD runes after the four letter prefix; RFC
// prefixes may contain Ñ
func dateSegment(v string) string {
	return string([]rune(v)[4:10])
}

func firstOfType(in []fields.Field, fieldType fields.FieldType) (fields.Field, bool) {
	for _, f := range in {
		if f.FieldType == fieldType && strings.TrimSpace(f.Value) != "" {
			return f, true
		}
	}
	return fields.Field{}, false
}

func summarize(report DocumentValidationReport) Summary {
	s := Summary{TotalFields: len(report.Fields)}

	confidenceSum := 0.0
	for _, fv := range report.Fields {
		if fv.IsValid {
			s.ValidFields++
		} else {
			s.InvalidFields++
		}
		confidenceSum += fv.AdjustedConfidence
		for _, r := range fv.Results {
			if r.IsValid {
				continue
			}
			switch r.Severity {
			case SeverityError:
				s.ErrorCount++
			case SeverityWarning:
				s.WarningCount++
			}
		}
	}

	documentErrors := 0
	for _, issue := range report.Issues {
		switch issue.Severity {
		case SeverityError:
			s.ErrorCount++
			documentErrors++
		case SeverityWarning:
			s.WarningCount++
		}
	}

	if s.TotalFields > 0 {
		s.AverageConfidence = confidenceSum / float64(s.TotalFields)
		s.CompletionPercentage = float64(s.ValidFields) * 100 / float64(s.TotalFields)
	}
	s.OverallValid = s.InvalidFields == 0 && documentErrors == 0
	return s
}

// collectSuggestions gathers suggestions in field order, then issue order,
// keeping the first occurrence of each
func collectSuggestions(report DocumentValidationReport) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, fv := range report.Fields {
		for _, r := range fv.Results {
			if !r.IsValid {
				add(r.Suggestion)
			}
		}
	}
	for _, issue := range report.Issues {
		add(issue.Suggestion)
	}
	return out
}
