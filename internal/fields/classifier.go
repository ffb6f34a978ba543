package fields

import (
	"strings"
)

// ClassifierConfig holds the confidence model of the semantic classifier
type ClassifierConfig struct {
	BaseConfidence float64 `json:"base_confidence" mapstructure:"base_confidence"`
	AgreementBonus float64 `json:"agreement_bonus" mapstructure:"agreement_bonus"`
	ValidatorBonus float64 `json:"validator_bonus" mapstructure:"validator_bonus"`
}

// DefaultClassifierConfig returns the default classifier configuration
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		BaseConfidence: 0.75,
		AgreementBonus: 0.3,
		ValidatorBonus: 0.2,
	}
}

// Classification is the outcome of classifying one label/value pair
type Classification struct {
	FieldType   FieldType `json:"field_type"`
	DisplayName string    `json:"display_name"`
	Confidence  float64   `json:"confidence"`
	LabelRule   string    `json:"label_rule,omitempty"`
	ValueRule   string    `json:"value_rule,omitempty"`
}

// Classifier assigns semantic field types from labels and values
type Classifier struct {
	config     ClassifierConfig
	labelRules []LabelRule
	valueRules []ValueRule
}

// NewClassifier creates a classifier with the default rules and configuration
func NewClassifier() *Classifier {
	return NewClassifierWithConfig(DefaultClassifierConfig())
}

// NewClassifierWithConfig creates a classifier with the default rules
func NewClassifierWithConfig(config ClassifierConfig) *Classifier {
	return NewClassifierWithRules(config, DefaultLabelRules(), DefaultValueRules())
}

// NewClassifierWithRules creates a classifier with caller supplied rule cascades
func NewClassifierWithRules(config ClassifierConfig, labelRules []LabelRule, valueRules []ValueRule) *Classifier {
	return &Classifier{
		config:     config,
		labelRules: labelRules,
		valueRules: valueRules,
	}
}

// Classify determines the field type of a label/value pair
func (c *Classifier) Classify(rawLabel, value string) Classification {
	label, labelMatched := c.matchLabel(rawLabel)
	valueRule, valueMatched := c.matchValue(value)

	result := Classification{
		FieldType:  FieldTypeText,
		Confidence: c.config.BaseConfidence,
	}

	switch {
	case labelMatched:
		result.FieldType = label.FieldType
		result.LabelRule = label.Name
	case valueMatched && len(valueRule.Types) > 0:
		result.FieldType = valueRule.Types[0]
	}

	if valueMatched {
		result.ValueRule = valueRule.Name
		if labelMatched && valueRule.Supports(label.FieldType) {
			result.Confidence += c.config.AgreementBonus
		}
	}

	if check, ok := DedicatedValidator(result.FieldType); ok && check(value) {
		result.Confidence += c.config.ValidatorBonus
	}

	result.Confidence = clampUnit(result.Confidence)
	result.DisplayName = DisplayName(rawLabel, result.FieldType)
	return result
}

// ClassifyCandidate classifies a candidate and combines the source and
// classification confidences
func (c *Classifier) ClassifyCandidate(candidate FieldCandidate) ClassifiedField {
	cls := c.Classify(candidate.RawLabel, candidate.Value)

	// Selection marks with no stronger evidence are checkboxes.
	if cls.FieldType == FieldTypeText && candidate.SourceType == SourceCheckbox {
		cls.FieldType = FieldTypeCheckbox
		cls.DisplayName = DisplayName(candidate.RawLabel, FieldTypeCheckbox)
	}

	return ClassifiedField{
		FieldCandidate: candidate,
		FieldType:      cls.FieldType,
		DisplayName:    cls.DisplayName,
		Confidence:     clampUnit(candidate.SourceConfidence * cls.Confidence),
	}
}

// ClassifyAll classifies candidates preserving their order
func (c *Classifier) ClassifyAll(candidates []FieldCandidate) []ClassifiedField {
	out := make([]ClassifiedField, 0, len(candidates))
	for _, cand := range candidates {
		out = append(out, c.ClassifyCandidate(cand))
	}
	return out
}

func (c *Classifier) matchLabel(rawLabel string) (LabelRule, bool) {
	folded := FoldLabel(rawLabel)
	if folded == "" {
		return LabelRule{}, false
	}
	for _, rule := range c.labelRules {
		if rule.Pattern != nil && rule.Pattern.MatchString(folded) {
			return rule, true
		}
	}
	return LabelRule{}, false
}

func (c *Classifier) matchValue(value string) (ValueRule, bool) {
	if strings.TrimSpace(value) == "" {
		return ValueRule{}, false
	}
	for _, rule := range c.valueRules {
		if rule.Match != nil && rule.Match(value) {
			return rule, true
		}
	}
	return ValueRule{}, false
}
