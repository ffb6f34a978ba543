package validation

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
)

var fixedNow = func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Now = fixedNow
	return cfg
}

func newField(id string, fieldType fields.FieldType, value string, conf float64) fields.Field {
	return fields.Field{
		ClassifiedField: fields.ClassifiedField{
			FieldCandidate: fields.FieldCandidate{ID: id, Value: value},
			FieldType:      fieldType,
			Confidence:     conf,
		},
	}
}

func resultByName(fv FieldValidation, name string) (ValidationResult, bool) {
	for _, r := range fv.Results {
		if r.RuleName == name {
			return r, true
		}
	}
	return ValidationResult{}, false
}

func TestRegistry_OrderAndCopy(t *testing.T) {
	r := NewRegistry()
	r.Register(fields.FieldTypeText, Rule{Name: "first"})
	r.Register(fields.FieldTypeText, Rule{Name: "second"})

	rules := r.Rules(fields.FieldTypeText)
	require.Len(t, rules, 2)
	assert.Equal(t, "first", rules[0].Name)
	assert.Equal(t, "second", rules[1].Name)

	rules[0].Name = "mutated"
	assert.Equal(t, "first", r.Rules(fields.FieldTypeText)[0].Name)
	assert.False(t, r.Has(fields.FieldTypeEmail))
}

func TestDefaultRegistry_RuleNames(t *testing.T) {
	r := DefaultRegistry(fixedNow)

	tests := []struct {
		fieldType fields.FieldType
		expected  []string
	}{
		{fields.FieldTypeRFC, []string{"rfc_format"}},
		{fields.FieldTypeIMSS, []string{"nss_format"}},
		{fields.FieldTypeCLABE, []string{"clabe_format", "clabe_checksum"}},
		{fields.FieldTypeBirthDate, []string{"date_format", "date_range"}},
		{fields.FieldTypeDiagnosis, []string{"cie10_format"}},
		{fields.FieldTypeText, []string{}},
	}

	for _, tt := range tests {
		t.Run(string(tt.fieldType), func(t *testing.T) {
			names := []string{}
			for _, rule := range r.Rules(tt.fieldType) {
				names = append(names, rule.Name)
			}
			assert.Equal(t, tt.expected, names)
		})
	}
}

func TestEngine_ValidateField(t *testing.T) {
	tests := []struct {
		name       string
		field      fields.Field
		valid      bool
		confidence float64
		failed     []string
	}{
		{"valid_rfc", newField("a", fields.FieldTypeRFC, "GARC850101AB1", 0.9), true, 0.9, nil},
		{"invalid_rfc", newField("a", fields.FieldTypeRFC, "GARC8501", 0.9), false, 0.45, []string{"rfc_format"}},
		{"clabe_bad_checksum_is_warning", newField("a", fields.FieldTypeCLABE, "002010077777777772", 0.9), true, 0.72, []string{"clabe_checksum"}},
		{"clabe_malformed_only_format_fails", newField("a", fields.FieldTypeCLABE, "1234", 0.9), false, 0.45, []string{"clabe_format"}},
		{"future_date_flagged_not_invalid", newField("a", fields.FieldTypeDate, "15/03/2030", 0.9), true, 0.72, []string{"date_range"}},
		{"old_date_flagged", newField("a", fields.FieldTypeBirthDate, "01/01/1850", 0.9), true, 0.72, []string{"date_range"}},
		{"unparsable_date", newField("a", fields.FieldTypeDate, "ayer", 0.9), false, 0.45, []string{"date_format"}},
		{"floor_applies", newField("a", fields.FieldTypeEmail, "nope", 0.15), false, 0.1, []string{"email_format"}},
		{"issste_warning", newField("a", fields.FieldTypeISSSTE, "12-AB", 0.5), true, 0.4, []string{"issste_format"}},
		{"no_rules", newField("a", fields.FieldTypeText, "libre", 0.7), true, 0.7, nil},
	}

	engine := NewEngine(testConfig())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := engine.ValidateField(tt.field)
			assert.Equal(t, tt.valid, fv.IsValid)
			assert.InDelta(t, tt.confidence, fv.AdjustedConfidence, 1e-9)

			var failed []string
			for _, r := range fv.Results {
				if !r.IsValid {
					failed = append(failed, r.RuleName)
				}
			}
			assert.Equal(t, tt.failed, failed)
		})
	}
}

func TestEngine_IdentifierConsistency(t *testing.T) {
	engine := NewEngine(testConfig())

	t.Run("matching_dates", func(t *testing.T) {
		report := engine.ValidateDocument([]fields.Field{
			newField("name", fields.FieldTypePatientName, "Ana García", 0.9),
			newField("dob", fields.FieldTypeBirthDate, "01/01/1985", 0.9),
			newField("rfc", fields.FieldTypeRFC, "GARC850101AB1", 0.9),
			newField("curp", fields.FieldTypeCURP, "GARC850101HDFRRL09", 0.9),
		})
		for _, issue := range report.Issues {
			assert.NotEqual(t, IssueInconsistentData, issue.Type)
		}
		assert.True(t, report.Summary.OverallValid)
	})

	t.Run("rfc_with_enye", func(t *testing.T) {
		report := engine.ValidateDocument([]fields.Field{
			newField("name", fields.FieldTypePatientName, "Ana Muñoz", 0.9),
			newField("dob", fields.FieldTypeBirthDate, "01/01/1985", 0.9),
			newField("rfc", fields.FieldTypeRFC, "MUÑO850101AB1", 0.9),
			newField("curp", fields.FieldTypeCURP, "MUXO850101HDFXXX01", 0.9),
		})
		for _, issue := range report.Issues {
			assert.NotEqual(t, IssueInconsistentData, issue.Type, issue.Message)
		}
	})

	t.Run("changed_curp_date", func(t *testing.T) {
		report := engine.ValidateDocument([]fields.Field{
			newField("name", fields.FieldTypePatientName, "Ana García", 0.9),
			newField("dob", fields.FieldTypeBirthDate, "01/01/1985", 0.9),
			newField("rfc", fields.FieldTypeRFC, "GARC850101AB1", 0.9),
			newField("curp", fields.FieldTypeCURP, "GARC860101HDFRRL09", 0.9),
		})

		var inconsistent []DocumentIssue
		for _, issue := range report.Issues {
			if issue.Type == IssueInconsistentData {
				inconsistent = append(inconsistent, issue)
			}
		}
		require.Len(t, inconsistent, 1)
		assert.Equal(t, SeverityError, inconsistent[0].Severity)
		assert.Equal(t, []string{"rfc", "curp"}, inconsistent[0].FieldIDs)
		assert.False(t, report.Summary.OverallValid)
	})
}

func TestEngine_MissingRequired(t *testing.T) {
	report := NewEngine(testConfig()).ValidateDocument([]fields.Field{
		newField("name", fields.FieldTypePatientName, "Ana García", 0.9),
		newField("blank_dob", fields.FieldTypeBirthDate, "  ", 0.9),
	})

	var missing []DocumentIssue
	for _, issue := range report.Issues {
		if issue.Type == IssueMissingRequired {
			missing = append(missing, issue)
		}
	}
	require.Len(t, missing, 1)
	assert.Equal(t, fields.FieldTypeBirthDate, missing[0].FieldType)
	assert.Equal(t, SeverityError, missing[0].Severity)
	assert.False(t, report.Summary.OverallValid)
}

func TestEngine_ImplausibleAge(t *testing.T) {
	cfg := testConfig()
	cfg.RequiredTypes = nil

	report := NewEngine(cfg).ValidateDocument([]fields.Field{
		newField("dob", fields.FieldTypeBirthDate, "01/01/1850", 0.9),
		newField("age", fields.FieldTypeAge, "200", 0.9),
	})

	var implausible []DocumentIssue
	for _, issue := range report.Issues {
		if issue.Type == IssueImplausibleValue {
			implausible = append(implausible, issue)
		}
	}
	require.Len(t, implausible, 2)
	assert.Equal(t, []string{"dob"}, implausible[0].FieldIDs)
	assert.Equal(t, []string{"age"}, implausible[1].FieldIDs)
	assert.Equal(t, SeverityWarning, implausible[0].Severity)

	// warnings alone keep the document valid
	assert.True(t, report.Summary.OverallValid)
	assert.Equal(t, 3, report.Summary.WarningCount)
}

func TestEngine_CompletionPercentage(t *testing.T) {
	var in []fields.Field
	for i := 0; i < 7; i++ {
		in = append(in, newField(fmt.Sprintf("ok-%d", i), fields.FieldTypeText, "texto", 0.8))
	}
	for i := 0; i < 3; i++ {
		in = append(in, newField(fmt.Sprintf("bad-%d", i), fields.FieldTypeRFC, "XX", 0.8))
	}

	cfg := testConfig()
	cfg.RequiredTypes = nil
	report := NewEngine(cfg).ValidateDocument(in)

	assert.Equal(t, 10, report.Summary.TotalFields)
	assert.Equal(t, 7, report.Summary.ValidFields)
	assert.Equal(t, 3, report.Summary.InvalidFields)
	assert.Equal(t, 3, report.Summary.ErrorCount)
	assert.Equal(t, 70.0, report.Summary.CompletionPercentage)
	assert.InDelta(t, (7*0.8+3*0.4)/10, report.Summary.AverageConfidence, 1e-9)
	assert.False(t, report.Summary.OverallValid)

	// identical suggestions are reported once
	assert.Equal(t, []string{"Check the RFC against the taxpayer certificate, e.g. ABCD850101XY1"}, report.Suggestions)
}

func TestEngine_EmptyDocument(t *testing.T) {
	cfg := testConfig()
	cfg.RequiredTypes = nil
	report := NewEngine(cfg).ValidateDocument(nil)

	assert.Empty(t, report.Fields)
	assert.Empty(t, report.Issues)
	assert.Equal(t, 0.0, report.Summary.CompletionPercentage)
	assert.True(t, report.Summary.OverallValid)
	assert.NotNil(t, report.Suggestions)
}

func TestEngine_ReportIsReproducibleWithFixedClock(t *testing.T) {
	in := []fields.Field{
		newField("dob", fields.FieldTypeBirthDate, "15/03/2030", 0.9),
		newField("rfc", fields.FieldTypeRFC, "GARC850101AB1", 0.9),
	}

	first := NewEngine(testConfig()).ValidateDocument(in)
	second := NewEngine(testConfig()).ValidateDocument(in)
	assert.Equal(t, first, second)

	rangeResult, ok := resultByName(first.Fields[0], "date_range")
	require.True(t, ok)
	assert.False(t, rangeResult.IsValid)
	assert.Contains(t, rangeResult.Message, "future")
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ErrorDiscount = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxAge = 0
	assert.Error(t, cfg.Validate())
}
