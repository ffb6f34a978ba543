package capacity

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

func classified(id string, fieldType fields.FieldType, conf float64, box layout.BoundingBox) fields.ClassifiedField {
	return fields.ClassifiedField{
		FieldCandidate: fields.FieldCandidate{ID: id, Page: 1, BoundingBox: box},
		FieldType:      fieldType,
		Confidence:     conf,
	}
}

func conflictsFor(id string, n int, kind fields.ConflictType, impact float64) []fields.SpatialConflict {
	out := make([]fields.SpatialConflict, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fields.SpatialConflict{
			FieldA:       id,
			FieldB:       fmt.Sprintf("other-%d", i),
			ConflictType: kind,
			Resolution:   fields.ConflictResolution{ConfidenceImpact: impact},
		})
	}
	return out
}

func TestEstimator_HeightFont(t *testing.T) {
	tests := []struct {
		height   float64
		expected float64
	}{
		{24, 20},
		{14.4, 12},
		{13, 10.833333333333334},
		{6, 8},
		{100, 24},
		{0, 8},
	}

	e := NewEstimator()
	for _, tt := range tests {
		t.Run(fmt.Sprintf("height_%v", tt.height), func(t *testing.T) {
			assert.InDelta(t, tt.expected, e.HeightFont(tt.height), 1e-9)
		})
	}
}

func TestEstimator_DominantFontPrefersSmallerOnTie(t *testing.T) {
	e := NewEstimator()
	assert.Equal(t, 10.0, e.dominantFont([]float64{12, 10, 12, 10, 14}))
	assert.Equal(t, 14.0, e.dominantFont([]float64{14, 14, 10}))
	assert.Equal(t, 8.0, e.dominantFont(nil))
}

func TestEstimator_IsolatedField(t *testing.T) {
	f := classified("a", fields.FieldTypeText, 1.0, layout.BoundingBox{X: 0, Y: 0, Width: 240, Height: 24})

	out := NewEstimator().EstimateAll([]fields.ClassifiedField{f}, nil)
	require.Len(t, out, 1)
	profile := out[0].Capacity

	assert.InDelta(t, 20.0, profile.FontSizePt, 1e-9)
	assert.Equal(t, "Helvetica", profile.FontFamily)
	assert.Equal(t, 23, profile.CharsPerLine)
	assert.Equal(t, 1, profile.MaxLines)
	assert.Equal(t, 23, profile.MaxCharacters)
	assert.Equal(t, 1.0, profile.AdjustmentFactor)
	assert.InDelta(t, 0.9, profile.CapacityConfidence, 1e-9)
	assert.Empty(t, profile.ConflictsWith)
	assert.InDelta(t, 20.0, profile.DebugInfo.DetectedFontSize, 1e-9)
	assert.Equal(t, 240.0, profile.DebugInfo.EffectiveWidth)
}

func TestEstimator_RegionFontFromNeighbour(t *testing.T) {
	small := classified("small", fields.FieldTypeText, 1.0, layout.BoundingBox{X: 0, Y: 0, Width: 200, Height: 12})
	tall := classified("tall", fields.FieldTypeText, 1.0, layout.BoundingBox{X: 0, Y: 20, Width: 200, Height: 36})

	out := NewEstimator().EstimateAll([]fields.ClassifiedField{small, tall}, nil)
	require.Len(t, out, 2)
	profile := out[0].Capacity

	assert.Equal(t, 24.0, profile.FontSizePt)
	assert.InDelta(t, 10.0, profile.DebugInfo.DetectedFontSize, 1e-9)
	assert.Equal(t, 16, profile.CharsPerLine)
	// a 12px box cannot hold one 24pt line
	assert.Equal(t, 0, profile.MaxLines)
	assert.Equal(t, 1, profile.MaxCharacters)
	// fonts disagree by more than the tolerance
	assert.InDelta(t, 0.8, profile.CapacityConfidence, 1e-9)
}

func TestEstimator_MaxCharactersNonIncreasingInConflicts(t *testing.T) {
	e := NewEstimator()
	f := classified("f", fields.FieldTypeText, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 300, Height: 60})
	all := []fields.ClassifiedField{f}

	for _, kind := range []fields.ConflictType{fields.ConflictPartial, fields.ConflictSignificant, fields.ConflictComplete} {
		t.Run(string(kind), func(t *testing.T) {
			previous := e.Estimate(f, all, nil).MaxCharacters
			for n := 1; n <= 6; n++ {
				profile := e.Estimate(f, all, conflictsFor("f", n, kind, -0.1))
				assert.GreaterOrEqual(t, profile.MaxCharacters, 1)
				assert.LessOrEqual(t, profile.MaxCharacters, previous)
				assert.Len(t, profile.ConflictsWith, n)
				assert.Equal(t, n, profile.DebugInfo.SpatialConflicts)
				previous = profile.MaxCharacters
			}
		})
	}
}

func TestEstimator_SeverityOrdering(t *testing.T) {
	e := NewEstimator()
	f := classified("f", fields.FieldTypeText, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 300, Height: 60})
	all := []fields.ClassifiedField{f}

	partial := e.Estimate(f, all, conflictsFor("f", 1, fields.ConflictPartial, -0.05))
	significant := e.Estimate(f, all, conflictsFor("f", 1, fields.ConflictSignificant, -0.2))
	complete := e.Estimate(f, all, conflictsFor("f", 1, fields.ConflictComplete, -0.1))

	assert.GreaterOrEqual(t, partial.MaxCharacters, significant.MaxCharacters)
	assert.GreaterOrEqual(t, significant.MaxCharacters, complete.MaxCharacters)
	assert.InDelta(t, 150.0, complete.DebugInfo.EffectiveWidth, 1e-9)
	assert.InDelta(t, 36.0, complete.DebugInfo.EffectiveHeight, 1e-9)
}

func TestEstimator_GeometryFloors(t *testing.T) {
	e := NewEstimator()
	f := classified("f", fields.FieldTypeText, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 100, Height: 100})

	profile := e.Estimate(f, []fields.ClassifiedField{f}, conflictsFor("f", 5, fields.ConflictComplete, -0.5))
	assert.InDelta(t, 20.0, profile.DebugInfo.EffectiveWidth, 1e-9)
	assert.InDelta(t, 30.0, profile.DebugInfo.EffectiveHeight, 1e-9)
	assert.Equal(t, 0.1, profile.CapacityConfidence)
}

func TestEstimator_EmptyBoxStillHoldsOneCharacter(t *testing.T) {
	f := classified("f", fields.FieldTypeNumber, 0.5, layout.BoundingBox{})
	profile := NewEstimator().Estimate(f, []fields.ClassifiedField{f}, nil)

	assert.Equal(t, 0, profile.CharsPerLine)
	assert.Equal(t, 0, profile.MaxLines)
	assert.Equal(t, 1, profile.MaxCharacters)
	assert.Equal(t, 8.0, profile.FontSizePt)
}

func TestEstimator_BoxShorterThanOneLine(t *testing.T) {
	f := classified("f", fields.FieldTypeText, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 300, Height: 6})
	profile := NewEstimator().Estimate(f, []fields.ClassifiedField{f}, nil)

	assert.Equal(t, 8.0, profile.FontSizePt)
	assert.Greater(t, profile.CharsPerLine, 1)
	// floor(6 / 9.6) = 0 lines, clamped to one character overall
	assert.Equal(t, 0, profile.MaxLines)
	assert.Equal(t, 1, profile.MaxCharacters)
}

func TestEstimator_ExactLineHeightHoldsOneLine(t *testing.T) {
	for _, height := range []float64{13, 14.4, 24} {
		t.Run(fmt.Sprintf("height_%v", height), func(t *testing.T) {
			f := classified("f", fields.FieldTypeText, 0.9, layout.BoundingBox{Width: 200, Height: height})
			profile := NewEstimator().Estimate(f, []fields.ClassifiedField{f}, nil)
			assert.Equal(t, 1, profile.MaxLines)
		})
	}
}

func TestEstimator_TypeAdjustment(t *testing.T) {
	tests := []struct {
		fieldType fields.FieldType
		expected  float64
	}{
		{fields.FieldTypeRFC, 0.9},
		{fields.FieldTypeDate, 0.85},
		{fields.FieldTypeNumber, 0.8},
		{fields.FieldTypeEmail, 1.1},
		{fields.FieldTypeText, 1.0},
	}

	for _, tt := range tests {
		t.Run(string(tt.fieldType), func(t *testing.T) {
			assert.Equal(t, tt.expected, TypeAdjustment(tt.fieldType))
		})
	}
}

func TestEstimator_EstimateMatchesEstimateAll(t *testing.T) {
	all := []fields.ClassifiedField{
		classified("a", fields.FieldTypeRFC, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 150, Height: 18}),
		classified("b", fields.FieldTypeEmail, 0.8, layout.BoundingBox{X: 0, Y: 30, Width: 220, Height: 20}),
		classified("c", fields.FieldTypeText, 0.7, layout.BoundingBox{X: 400, Y: 400, Width: 300, Height: 60}),
	}
	conflicts := conflictsFor("a", 1, fields.ConflictPartial, -0.05)

	e := NewEstimator()
	batch := e.EstimateAll(all, conflicts)
	for i, f := range all {
		assert.Equal(t, batch[i].Capacity, e.Estimate(f, all, conflicts), f.ID)
	}
}

func TestResolveFamily(t *testing.T) {
	tests := []struct {
		hint     string
		expected string
	}{
		{"Helv", "Helvetica"},
		{"/TiRo", "Times"},
		{"Cour", "Courier"},
		{"ABCDEF+Arial-BoldMT", "Arial"},
		{"TimesNewRomanPSMT", "Times"},
		{"Garamond", "Garamond"},
		{"", "Helvetica"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, ResolveFamily(tt.hint, "Helvetica"))
		})
	}
}

func TestEstimator_UnknownFamilyUsesDefaultFactor(t *testing.T) {
	e := NewEstimator()
	assert.Equal(t, 0.55, e.widthFactor("Garamond"))
	assert.Equal(t, 0.60, e.widthFactor("Courier"))
}

func TestEstimator_WidthFactorIgnoresCase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WidthFactors["garamond"] = 0.5
	e := NewEstimatorWithConfig(cfg)

	assert.Equal(t, 0.5, e.widthFactor("Garamond"))
	assert.Equal(t, 0.52, e.widthFactor("HELVETICA"))
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.LineHeightMultiplier = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.MaxFontSize = 4
	assert.Error(t, cfg.Validate())
}
