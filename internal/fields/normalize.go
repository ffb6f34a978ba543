package fields

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/unicode/norm"

	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

// candidateNamespace seeds the deterministic candidate ids
var candidateNamespace = uuid.MustParse("6f1d7c2e-4b7a-5e3c-9a51-2f0c8d3b6e41")

// Geometry is the native location of a detection. Exactly which members are set
// depends on the source: polygons for OCR sources, row/column for table cells,
// a direct box for document fields, and a mark state for selection marks.
type Geometry struct {
	Polygon     []float64           `json:"polygon,omitempty"`
	BoundingBox *layout.BoundingBox `json:"boundingBox,omitempty"`
	Row         *int                `json:"row,omitempty"`
	Column      *int                `json:"column,omitempty"`
	RowSpan     *int                `json:"rowSpan,omitempty"`
	ColumnSpan  *int                `json:"columnSpan,omitempty"`
	State       string              `json:"state,omitempty"`
}

// RawDetection is one record produced by the layout collaborator
type RawDetection struct {
	Page       int        `json:"page"`
	SourceType SourceType `json:"sourceType"`
	Label      string     `json:"label,omitempty"`
	Value      *string    `json:"value"`
	Confidence float64    `json:"confidence"`
	Geometry   *Geometry  `json:"geometry,omitempty"`
	FontName   string     `json:"fontName,omitempty"`
}

// NormalizerConfig controls geometry fallbacks
type NormalizerConfig struct {
	DefaultBox      layout.BoundingBox `json:"default_box" mapstructure:"default_box"`
	TableCellWidth  float64            `json:"table_cell_width" mapstructure:"table_cell_width"`
	TableCellHeight float64            `json:"table_cell_height" mapstructure:"table_cell_height"`
}

// DefaultNormalizerConfig returns the default normalizer configuration
func DefaultNormalizerConfig() NormalizerConfig {
	return NormalizerConfig{
		DefaultBox:      layout.DefaultBoundingBox,
		TableCellWidth:  100,
		TableCellHeight: 20,
	}
}

// Normalizer converts raw detections into FieldCandidates
type Normalizer struct {
	config NormalizerConfig
	logger logrus.FieldLogger
}

// NewNormalizer creates a normalizer with default configuration
func NewNormalizer() *Normalizer {
	return NewNormalizerWithConfig(DefaultNormalizerConfig(), nil)
}

// NewNormalizerWithConfig creates a normalizer with custom configuration.
// A nil logger discards output.
func NewNormalizerWithConfig(config NormalizerConfig, logger logrus.FieldLogger) *Normalizer {
	if logger == nil {
		logger = discardLogger()
	}
	return &Normalizer{config: config, logger: logger}
}

// Normalize maps every detection onto the canonical candidate shape.
// Missing geometry never fails the run; contract violations do.
func (n *Normalizer) Normalize(detections []RawDetection) ([]FieldCandidate, error) {
	if detections == nil {
		return nil, NewContractError(ContractErrorMissingPayload, -1, "detections", "detection list is missing")
	}

	candidates := make([]FieldCandidate, 0, len(detections))
	for i, det := range detections {
		candidate, err := n.normalizeOne(i, det)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, candidate)
	}

	return candidates, nil
}

func (n *Normalizer) normalizeOne(index int, det RawDetection) (FieldCandidate, error) {
	if !det.SourceType.IsKnown() {
		return FieldCandidate{}, NewContractError(ContractErrorInvalidSource, index, "sourceType",
			fmt.Sprintf("unknown source type %q", det.SourceType))
	}
	if det.Page < 1 {
		return FieldCandidate{}, NewContractError(ContractErrorInvalidPage, index, "page",
			fmt.Sprintf("page must be 1-based, got %d", det.Page))
	}

	value, err := n.resolveValue(index, det)
	if err != nil {
		return FieldCandidate{}, err
	}

	box, ok := n.resolveBox(det)
	if !ok {
		n.logger.WithFields(logrus.Fields{
			"index":  index,
			"page":   det.Page,
			"source": det.SourceType,
		}).Debug("Detection has no usable geometry, substituting default box")
		box = n.config.DefaultBox
	}

	return FieldCandidate{
		ID:               candidateID(index, det),
		Order:            index,
		Page:             det.Page,
		SourceType:       det.SourceType,
		RawLabel:         cleanText(det.Label),
		Value:            value,
		SourceConfidence: clampUnit(det.Confidence),
		BoundingBox:      box,
		FontFamily:       strings.TrimSpace(det.FontName),
	}, nil
}

func (n *Normalizer) resolveValue(index int, det RawDetection) (string, error) {
	if det.Value != nil {
		return cleanText(*det.Value), nil
	}

	// Selection marks often carry only their state.
	if det.SourceType == SourceCheckbox && det.Geometry != nil && det.Geometry.State != "" {
		return strings.ToLower(strings.TrimSpace(det.Geometry.State)), nil
	}

	return "", NewContractError(ContractErrorMissingValue, index, "value", "detection has no value field")
}

func (n *Normalizer) resolveBox(det RawDetection) (layout.BoundingBox, bool) {
	geom := det.Geometry
	if geom == nil {
		return layout.BoundingBox{}, false
	}

	if len(geom.Polygon) > 0 {
		if box, ok := layout.BoundingBoxFromPolygon(geom.Polygon); ok {
			return box, true
		}
	}

	if geom.BoundingBox != nil {
		b := *geom.BoundingBox
		box := layout.NewBoundingBox(b.X, b.Y, b.Width, b.Height)
		if box.IsValid() {
			return box, true
		}
	}

	if det.SourceType == SourceTable && geom.Row != nil && geom.Column != nil {
		return n.tableCellBox(*geom.Row, *geom.Column, geom.RowSpan, geom.ColumnSpan)
	}

	return layout.BoundingBox{}, false
}

// tableCellBox lays cells on a nominal grid when the service gave indices only
func (n *Normalizer) tableCellBox(row, col int, rowSpan, colSpan *int) (layout.BoundingBox, bool) {
	if row < 0 || col < 0 {
		return layout.BoundingBox{}, false
	}

	rows, cols := 1, 1
	if rowSpan != nil && *rowSpan > 1 {
		rows = *rowSpan
	}
	if colSpan != nil && *colSpan > 1 {
		cols = *colSpan
	}

	return layout.BoundingBox{
		X:      float64(col) * n.config.TableCellWidth,
		Y:      float64(row) * n.config.TableCellHeight,
		Width:  float64(cols) * n.config.TableCellWidth,
		Height: float64(rows) * n.config.TableCellHeight,
	}, true
}

func candidateID(index int, det RawDetection) string {
	key := fmt.Sprintf("%d:%d:%s", index, det.Page, det.SourceType)
	return uuid.NewSHA1(candidateNamespace, []byte(key)).String()
}

func cleanText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

func clampUnit(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
