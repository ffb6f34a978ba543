// Package capacity estimates how many characters fit inside each field's box.
package capacity

import (
	"fmt"
	"math"
	"sort"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

// Reduction is the share of width and height a conflict takes away
type Reduction struct {
	Width  float64 `json:"width" mapstructure:"width"`
	Height float64 `json:"height" mapstructure:"height"`
}

// Config holds the font and geometry model of the estimator
type Config struct {
	LineHeightMultiplier  float64                           `json:"line_height_multiplier" mapstructure:"line_height_multiplier"`
	MinFontSize           float64                           `json:"min_font_size" mapstructure:"min_font_size"`
	MaxFontSize           float64                           `json:"max_font_size" mapstructure:"max_font_size"`
	RegionRadius          float64                           `json:"region_radius" mapstructure:"region_radius"`
	DefaultFontFamily     string                            `json:"default_font_family" mapstructure:"default_font_family"`
	DefaultWidthFactor    float64                           `json:"default_width_factor" mapstructure:"default_width_factor"`
	WidthFactors          map[string]float64                `json:"width_factors" mapstructure:"width_factors"`
	Reductions            map[fields.ConflictType]Reduction `json:"reductions" mapstructure:"reductions"`
	MinWidthRatio         float64                           `json:"min_width_ratio" mapstructure:"min_width_ratio"`
	MinHeightRatio        float64                           `json:"min_height_ratio" mapstructure:"min_height_ratio"`
	BaseConfidence        float64                           `json:"base_confidence" mapstructure:"base_confidence"`
	FontMismatchTolerance float64                           `json:"font_mismatch_tolerance" mapstructure:"font_mismatch_tolerance"`
	FontMismatchPenalty   float64                           `json:"font_mismatch_penalty" mapstructure:"font_mismatch_penalty"`
}

// DefaultConfig returns the default estimator configuration
func DefaultConfig() Config {
	return Config{
		LineHeightMultiplier: 1.2,
		MinFontSize:          8,
		MaxFontSize:          24,
		RegionRadius:         50,
		DefaultFontFamily:    "Helvetica",
		DefaultWidthFactor:   0.55,
		WidthFactors:         DefaultWidthFactors(),
		Reductions: map[fields.ConflictType]Reduction{
			fields.ConflictComplete:    {Width: 0.50, Height: 0.40},
			fields.ConflictSignificant: {Width: 0.30, Height: 0.20},
			fields.ConflictPartial:     {Width: 0.10, Height: 0.05},
		},
		MinWidthRatio:         0.2,
		MinHeightRatio:        0.3,
		BaseConfidence:        0.8,
		FontMismatchTolerance: 3,
		FontMismatchPenalty:   0.1,
	}
}

// Validate checks that the font model can be evaluated
func (c Config) Validate() error {
	if c.LineHeightMultiplier <= 0 {
		return fmt.Errorf("line height multiplier must be positive, got %v", c.LineHeightMultiplier)
	}
	if c.MinFontSize <= 0 || c.MaxFontSize < c.MinFontSize {
		return fmt.Errorf("font size range [%v,%v] is invalid", c.MinFontSize, c.MaxFontSize)
	}
	if c.DefaultWidthFactor <= 0 {
		return fmt.Errorf("default width factor must be positive, got %v", c.DefaultWidthFactor)
	}
	if c.RegionRadius < 0 {
		return fmt.Errorf("region radius must not be negative, got %v", c.RegionRadius)
	}
	return nil
}

// typeAdjustments scale raw capacity by how dense values of a type tend to be
var typeAdjustments = map[fields.FieldType]float64{
	fields.FieldTypeRFC:        0.9,
	fields.FieldTypeCURP:       0.9,
	fields.FieldTypeNSS:        0.9,
	fields.FieldTypeIMSS:       0.9,
	fields.FieldTypeISSSTE:     0.9,
	fields.FieldTypeCLABE:      0.9,
	fields.FieldTypePostalCode: 0.9,
	fields.FieldTypeDate:       0.85,
	fields.FieldTypeBirthDate:  0.85,
	fields.FieldTypePhone:      0.9,
	fields.FieldTypeCurrency:   0.85,
	fields.FieldTypeNumber:     0.8,
	fields.FieldTypeAge:        0.8,
	fields.FieldTypeEmail:      1.1,
}

// TypeAdjustment returns the capacity factor for fieldType
func TypeAdjustment(fieldType fields.FieldType) float64 {
	if f, ok := typeAdjustments[fieldType]; ok {
		return f
	}
	return 1.0
}

// Estimator computes capacity profiles
type Estimator struct {
	config Config
}

// NewEstimator creates an estimator with default configuration
func NewEstimator() *Estimator {
	return NewEstimatorWithConfig(DefaultConfig())
}

// NewEstimatorWithConfig creates an estimator with custom configuration
func NewEstimatorWithConfig(config Config) *Estimator {
	return &Estimator{config: config}
}

// survey is the document-wide font picture shared by every field estimate
type survey struct {
	heightFonts []float64
	dominant    float64
	centers     *layout.Index
}

func (e *Estimator) survey(all []fields.ClassifiedField) survey {
	boxes := make([]layout.BoundingBox, len(all))
	heights := make([]float64, len(all))
	for i, f := range all {
		boxes[i] = f.BoundingBox
		heights[i] = e.HeightFont(f.BoundingBox.Height)
	}
	return survey{
		heightFonts: heights,
		dominant:    e.dominantFont(heights),
		centers:     layout.NewCenterIndex(boxes),
	}
}

// EstimateAll attaches exactly one capacity profile to every field, in order
func (e *Estimator) EstimateAll(all []fields.ClassifiedField, conflicts []fields.SpatialConflict) []fields.Field {
	s := e.survey(all)
	out := make([]fields.Field, 0, len(all))
	for i, f := range all {
		out = append(out, fields.Field{
			ClassifiedField: f,
			Capacity:        e.estimate(f, i, s, conflicts),
		})
	}
	return out
}

// Estimate computes the capacity profile of field within the document all
func (e *Estimator) Estimate(field fields.ClassifiedField, all []fields.ClassifiedField, conflicts []fields.SpatialConflict) fields.CapacityProfile {
	position := -1
	for i, f := range all {
		if f.ID == field.ID {
			position = i
			break
		}
	}
	return e.estimate(field, position, e.survey(all), conflicts)
}

func (e *Estimator) estimate(field fields.ClassifiedField, position int, s survey, conflicts []fields.SpatialConflict) fields.CapacityProfile {
	cfg := e.config
	box := field.BoundingBox

	heightFont := e.HeightFont(box.Height)
	fontSize := s.dominant
	exclude := []int{}
	if position >= 0 {
		exclude = append(exclude, position)
	}
	if nearest := s.centers.NearestCenter(box.Center(), cfg.RegionRadius, exclude...); nearest >= 0 {
		fontSize = s.heightFonts[nearest]
	}
	if fontSize <= 0 {
		fontSize = heightFont
	}

	family := ResolveFamily(field.FontFamily, cfg.DefaultFontFamily)
	charWidth := fontSize * e.widthFactor(family)

	touching := []fields.SpatialConflict{}
	conflictsWith := []string{}
	for _, c := range conflicts {
		if c.Involves(field.ID) {
			touching = append(touching, c)
			conflictsWith = append(conflictsWith, c.Other(field.ID))
		}
	}

	effW, effH := e.effectiveGeometry(box, touching)

	charsPerLine := 0
	if charWidth > 0 {
		charsPerLine = floorCount(effW / charWidth)
	}
	maxLines := 0
	if lineHeight := fontSize * cfg.LineHeightMultiplier; lineHeight > 0 {
		maxLines = floorCount(effH / lineHeight)
	}

	adjustment := TypeAdjustment(field.FieldType)
	maxChars := max(1, int(math.Floor(float64(charsPerLine*maxLines)*adjustment)))

	return fields.CapacityProfile{
		FontSizePt:         fontSize,
		FontFamily:         family,
		CharsPerLine:       charsPerLine,
		MaxLines:           maxLines,
		MaxCharacters:      maxChars,
		AdjustmentFactor:   adjustment,
		CapacityConfidence: e.confidence(field.Confidence, heightFont, fontSize, touching),
		ConflictsWith:      conflictsWith,
		DebugInfo: fields.CapacityDebugInfo{
			OriginalWidth:    box.Width,
			OriginalHeight:   box.Height,
			EffectiveWidth:   effW,
			EffectiveHeight:  effH,
			DetectedFontSize: heightFont,
			SpatialConflicts: len(touching),
		},
	}
}

// floorCount floors a ratio, absorbing the rounding error of font sizes
// derived by division so a box exactly one line tall holds one line
func floorCount(ratio float64) int {
	return int(math.Floor(ratio + 1e-9))
}

// HeightFont infers a font size from a box height, clamped to the configured range
func (e *Estimator) HeightFont(height float64) float64 {
	cfg := e.config
	size := 0.0
	if cfg.LineHeightMultiplier > 0 && height > 0 {
		size = height / cfg.LineHeightMultiplier
	}
	return math.Min(cfg.MaxFontSize, math.Max(cfg.MinFontSize, size))
}

// dominantFont returns the most frequent size, smaller size on ties
func (e *Estimator) dominantFont(sizes []float64) float64 {
	if len(sizes) == 0 {
		return e.config.MinFontSize
	}

	counts := make(map[float64]int, len(sizes))
	for _, s := range sizes {
		counts[s]++
	}
	distinct := make([]float64, 0, len(counts))
	for s := range counts {
		distinct = append(distinct, s)
	}
	sort.Float64s(distinct)

	best := distinct[0]
	for _, s := range distinct[1:] {
		if counts[s] > counts[best] {
			best = s
		}
	}
	return best
}

// effectiveGeometry shrinks the box by the summed conflict reductions
func (e *Estimator) effectiveGeometry(box layout.BoundingBox, touching []fields.SpatialConflict) (float64, float64) {
	var wCut, hCut float64
	for _, c := range touching {
		r := e.config.Reductions[c.ConflictType]
		wCut += r.Width
		hCut += r.Height
	}

	wRatio := math.Max(e.config.MinWidthRatio, 1-wCut)
	hRatio := math.Max(e.config.MinHeightRatio, 1-hCut)
	return box.Width * math.Min(1, wRatio), box.Height * math.Min(1, hRatio)
}

func (e *Estimator) confidence(fieldConf, heightFont, regionFont float64, touching []fields.SpatialConflict) float64 {
	conf := e.config.BaseConfidence
	for _, c := range touching {
		conf += c.Resolution.ConfidenceImpact
	}
	conf = (conf + fieldConf) / 2
	if math.Abs(regionFont-heightFont) > e.config.FontMismatchTolerance {
		conf -= e.config.FontMismatchPenalty
	}
	return math.Min(1, math.Max(0.1, conf))
}
