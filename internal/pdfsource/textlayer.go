package pdfsource

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

// TextLayerConfig controls how glyph runs are joined into lines
type TextLayerConfig struct {
	// LineTolerance is the baseline drift, as a fraction of the font size,
	// still considered the same line
	LineTolerance float64 `json:"line_tolerance" mapstructure:"line_tolerance"`
	// SegmentGap splits a line where the horizontal gap exceeds this many font sizes
	SegmentGap float64 `json:"segment_gap" mapstructure:"segment_gap"`
	// WordGap inserts a space where the gap exceeds this many font sizes
	WordGap float64 `json:"word_gap" mapstructure:"word_gap"`
	// MaxLabelLength bounds the text before a colon that is read as a label
	MaxLabelLength int `json:"max_label_length" mapstructure:"max_label_length"`

	KeyValueConfidence  float64 `json:"key_value_confidence" mapstructure:"key_value_confidence"`
	ParagraphConfidence float64 `json:"paragraph_confidence" mapstructure:"paragraph_confidence"`
}

// DefaultTextLayerConfig returns the default line grouping settings
func DefaultTextLayerConfig() TextLayerConfig {
	return TextLayerConfig{
		LineTolerance:       0.5,
		SegmentGap:          1.5,
		WordGap:             0.2,
		MaxLabelLength:      40,
		KeyValueConfidence:  0.85,
		ParagraphConfidence: 0.8,
	}
}

// textRun is one positioned string from the content stream; Y is the
// baseline in PDF (bottom-up) coordinates
type textRun struct {
	S        string
	X, Y, W  float64
	FontSize float64
	Font     string
}

// textLine is a group of runs sharing a baseline without a wide gap
type textLine struct {
	Text     string
	X, Y, W  float64
	FontSize float64
	Font     string
}

// TextLayerSource reads the positioned text layer of a PDF with
// ledongthuc/pdf. "Label: value" lines become keyValuePair detections, other
// lines paragraph detections.
type TextLayerSource struct {
	config TextLayerConfig
	logger logrus.FieldLogger
}

// NewTextLayerSource creates a text layer reader with the default config
func NewTextLayerSource(logger logrus.FieldLogger) *TextLayerSource {
	return NewTextLayerSourceWithConfig(DefaultTextLayerConfig(), logger)
}

// NewTextLayerSourceWithConfig creates a text layer reader
func NewTextLayerSourceWithConfig(config TextLayerConfig, logger logrus.FieldLogger) *TextLayerSource {
	if logger == nil {
		logger = discardLogger()
	}
	return &TextLayerSource{config: config, logger: logger}
}

// ExtractFromFile returns line detections for every page. Pages whose content
// stream cannot be decoded are skipped and logged.
func (s *TextLayerSource) ExtractFromFile(ctx context.Context, filePath string) ([]fields.RawDetection, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	detections := []fields.RawDetection{}
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		runs, height, err := readPage(reader, pageNum)
		if err != nil {
			s.logger.WithError(err).WithField("page", pageNum).Warn("Skipping unreadable page")
			continue
		}

		for _, line := range s.groupRuns(runs) {
			detections = append(detections, s.lineDetection(line, pageNum, height))
		}
	}

	s.logger.WithField("lines", len(detections)).Debug("Text layer extraction complete")
	return detections, nil
}

// readPage collects the page's text runs; malformed streams make the
// library panic, which is reported as an error
func readPage(reader *pdf.Reader, pageNum int) (runs []textRun, height float64, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic during text extraction on page %d: %v", pageNum, r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return nil, 0, fmt.Errorf("invalid page %d", pageNum)
	}

	height = defaultPageHeight
	if mediaBox := page.V.Key("MediaBox"); mediaBox.Kind() == pdf.Array && mediaBox.Len() == 4 {
		if h := mediaBox.Index(3).Float64() - mediaBox.Index(1).Float64(); h > 0 {
			height = h
		}
	}

	for _, t := range page.Content().Text {
		runs = append(runs, textRun{S: t.S, X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, Font: t.Font})
	}
	return runs, height, nil
}

// groupRuns orders runs top to bottom and left to right, then joins them
// into lines split at wide gaps
func (s *TextLayerSource) groupRuns(runs []textRun) []textLine {
	if len(runs) == 0 {
		return nil
	}

	sorted := make([]textRun, 0, len(runs))
	for _, r := range runs {
		if r.FontSize <= 0 {
			r.FontSize = 12 // ledongthuc reports 0 for some Type3 fonts
		}
		sorted = append(sorted, r)
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var rows [][]textRun
	for _, r := range sorted {
		if n := len(rows); n > 0 {
			anchor := rows[n-1][0]
			if math.Abs(anchor.Y-r.Y) <= s.config.LineTolerance*anchor.FontSize {
				rows[n-1] = append(rows[n-1], r)
				continue
			}
		}
		rows = append(rows, []textRun{r})
	}

	var lines []textLine
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
		lines = append(lines, s.splitRow(row)...)
	}
	return lines
}

func (s *TextLayerSource) splitRow(row []textRun) []textLine {
	var lines []textLine
	var b strings.Builder
	current := textLine{}

	flush := func() {
		current.Text = strings.TrimSpace(b.String())
		if current.Text != "" {
			lines = append(lines, current)
		}
		b.Reset()
	}

	for i, r := range row {
		if i == 0 {
			current = textLine{X: r.X, Y: r.Y, W: r.W, FontSize: r.FontSize, Font: r.Font}
			b.WriteString(r.S)
			continue
		}

		gap := r.X - (current.X + current.W)
		if gap > s.config.SegmentGap*current.FontSize {
			flush()
			current = textLine{X: r.X, Y: r.Y, W: r.W, FontSize: r.FontSize, Font: r.Font}
			b.WriteString(r.S)
			continue
		}

		if gap > s.config.WordGap*current.FontSize {
			b.WriteString(" ")
		}
		b.WriteString(r.S)
		current.W = max(current.W, r.X+r.W-current.X)
		current.FontSize = max(current.FontSize, r.FontSize)
		current.Y = min(current.Y, r.Y)
	}
	flush()
	return lines
}

// lineDetection converts a line into a detection in top-left page coordinates
func (s *TextLayerSource) lineDetection(line textLine, page int, pageHeight float64) fields.RawDetection {
	box := &layout.BoundingBox{
		X:      line.X,
		Y:      pageHeight - (line.Y + line.FontSize),
		Width:  line.W,
		Height: line.FontSize,
	}

	det := fields.RawDetection{
		Page:       page,
		SourceType: fields.SourceParagraph,
		Confidence: s.config.ParagraphConfidence,
		Geometry:   &fields.Geometry{BoundingBox: box},
		FontName:   line.Font,
	}

	if label, value, ok := s.splitKeyValue(line.Text); ok {
		det.SourceType = fields.SourceKeyValuePair
		det.Label = label
		det.Value = &value
		det.Confidence = s.config.KeyValueConfidence
		return det
	}

	text := line.Text
	det.Value = &text
	return det
}

// splitKeyValue reads "Label: value" with a short, non-numeric label so times
// like 10:30 stay whole
func (s *TextLayerSource) splitKeyValue(text string) (string, string, bool) {
	i := strings.Index(text, ":")
	if i <= 0 {
		return "", "", false
	}

	label := strings.TrimSpace(text[:i])
	value := strings.TrimSpace(text[i+1:])
	if label == "" || value == "" || len([]rune(label)) > s.config.MaxLabelLength {
		return "", "", false
	}
	if strings.IndexFunc(label, func(r rune) bool { return r < '0' || r > '9' }) < 0 {
		return "", "", false
	}
	return label, value, true
}
