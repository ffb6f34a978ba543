package fields

import (
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

// SourceType identifies which kind of layout detection produced a candidate
type SourceType string

const (
	SourceKeyValuePair  SourceType = "keyValuePair"
	SourceTable         SourceType = "table"
	SourceCheckbox      SourceType = "checkbox"
	SourceParagraph     SourceType = "paragraph"
	SourceDocumentField SourceType = "documentField"
)

// IsKnown reports whether the source type is one the normalizer understands
func (s SourceType) IsKnown() bool {
	switch s {
	case SourceKeyValuePair, SourceTable, SourceCheckbox, SourceParagraph, SourceDocumentField:
		return true
	}
	return false
}

// FieldType is the semantic type assigned by the classifier
type FieldType string

const (
	// Identifiers
	FieldTypeRFC    FieldType = "rfc"
	FieldTypeCURP   FieldType = "curp"
	FieldTypeNSS    FieldType = "nss"
	FieldTypeIMSS   FieldType = "imss_number"
	FieldTypeISSSTE FieldType = "issste_number"

	// Demographic
	FieldTypePatientName   FieldType = "patient_name"
	FieldTypeBirthDate     FieldType = "birth_date"
	FieldTypeAge           FieldType = "age"
	FieldTypeSex           FieldType = "sex"
	FieldTypeMaritalStatus FieldType = "marital_status"
	FieldTypeNationality   FieldType = "nationality"
	FieldTypeOccupation    FieldType = "occupation"

	// Medical
	FieldTypeDiagnosis           FieldType = "diagnosis"
	FieldTypeProfessionalLicense FieldType = "professional_license"
	FieldTypeDoctorName          FieldType = "doctor_name"
	FieldTypeHospital            FieldType = "hospital"
	FieldTypeBloodType           FieldType = "blood_type"
	FieldTypeAllergies           FieldType = "allergies"

	// Insurance
	FieldTypePolicyNumber      FieldType = "policy_number"
	FieldTypeClaimNumber       FieldType = "claim_number"
	FieldTypeInsurer           FieldType = "insurer"
	FieldTypeCertificateNumber FieldType = "certificate_number"

	// Financial
	FieldTypeCLABE       FieldType = "clabe"
	FieldTypeCreditCard  FieldType = "credit_card"
	FieldTypeBankAccount FieldType = "bank_account"
	FieldTypeBankName    FieldType = "bank_name"
	FieldTypeCurrency    FieldType = "currency"

	// Location and contact
	FieldTypePostalCode FieldType = "postal_code"
	FieldTypeAddress    FieldType = "address"
	FieldTypeCity       FieldType = "city"
	FieldTypeState      FieldType = "state"
	FieldTypePhone      FieldType = "phone"
	FieldTypeEmail      FieldType = "email"

	// Generic
	FieldTypeDate      FieldType = "date"
	FieldTypeNumber    FieldType = "number"
	FieldTypeUUID      FieldType = "uuid"
	FieldTypeCheckbox  FieldType = "checkbox"
	FieldTypeSignature FieldType = "signature"
	FieldTypeText      FieldType = "text"
)

// FieldCandidate is a detected region of text or mark, not yet classified
type FieldCandidate struct {
	ID               string             `json:"id"`
	Order            int                `json:"order"`
	Page             int                `json:"page"`
	SourceType       SourceType         `json:"source_type"`
	RawLabel         string             `json:"raw_label"`
	Value            string             `json:"value"`
	SourceConfidence float64            `json:"source_confidence"`
	BoundingBox      layout.BoundingBox `json:"bounding_box"`
	FontFamily       string             `json:"font_family,omitempty"`
}

// ClassifiedField is a candidate with its semantic type and combined confidence
type ClassifiedField struct {
	FieldCandidate
	FieldType   FieldType `json:"field_type"`
	DisplayName string    `json:"display_name"`
	Confidence  float64   `json:"confidence"`
}

// CapacityDebugInfo records the geometry the capacity estimate was computed from
type CapacityDebugInfo struct {
	OriginalWidth    float64 `json:"original_width"`
	OriginalHeight   float64 `json:"original_height"`
	EffectiveWidth   float64 `json:"effective_width"`
	EffectiveHeight  float64 `json:"effective_height"`
	DetectedFontSize float64 `json:"detected_font_size"`
	SpatialConflicts int     `json:"spatial_conflicts"`
}

// CapacityProfile estimates how many characters fit in a field's box
type CapacityProfile struct {
	FontSizePt         float64           `json:"font_size_pt"`
	FontFamily         string            `json:"font_family"`
	CharsPerLine       int               `json:"chars_per_line"`
	MaxLines           int               `json:"max_lines"`
	MaxCharacters      int               `json:"max_characters"`
	AdjustmentFactor   float64           `json:"adjustment_factor"`
	CapacityConfidence float64           `json:"capacity_confidence"`
	ConflictsWith      []string          `json:"conflicts_with"`
	DebugInfo          CapacityDebugInfo `json:"debug_info"`
}

// Field is a classified field carrying exactly one capacity profile.
// It is the record the quality filter, the validation engine and callers see.
type Field struct {
	ClassifiedField
	Capacity CapacityProfile `json:"capacity"`
}

// ConflictType buckets how much two field boxes overlap
type ConflictType string

const (
	ConflictPartial     ConflictType = "partial"
	ConflictSignificant ConflictType = "significant"
	ConflictComplete    ConflictType = "complete"
)

// ResolutionAction is the capacity-stage response to a spatial conflict
type ResolutionAction string

const (
	ActionReduceSize ResolutionAction = "reduce_size"
	ActionMerge      ResolutionAction = "merge"
	ActionIgnore     ResolutionAction = "ignore"
)

// ConflictResolution describes how a conflict affects capacity and confidence
type ConflictResolution struct {
	Action           ResolutionAction `json:"action"`
	ConfidenceImpact float64          `json:"confidence_impact"`
}

// SpatialConflict is an unordered pair of crowded, non-duplicate fields
type SpatialConflict struct {
	FieldA            string             `json:"field_a"`
	FieldB            string             `json:"field_b"`
	OverlapPercentage float64            `json:"overlap_percentage"`
	ConflictType      ConflictType       `json:"conflict_type"`
	Resolution        ConflictResolution `json:"resolution"`
}

// Involves reports whether the conflict touches the field with the given id
func (c SpatialConflict) Involves(id string) bool {
	return c.FieldA == id || c.FieldB == id
}

// Other returns the id of the field paired with id
func (c SpatialConflict) Other(id string) string {
	if c.FieldA == id {
		return c.FieldB
	}
	return c.FieldA
}
