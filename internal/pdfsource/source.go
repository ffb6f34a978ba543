package pdfsource

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/pipeline"
)

// Options selects which layers are read
type Options struct {
	AcroForm  bool `json:"acroform"`
	TextLayer bool `json:"text_layer"`
}

// DefaultOptions reads both layers
func DefaultOptions() Options {
	return Options{AcroForm: true, TextLayer: true}
}

// Extractor checks a file and gathers detections from the selected layers
type Extractor struct {
	checker  *FileChecker
	acroForm *AcroFormSource
	text     *TextLayerSource
	logger   logrus.FieldLogger
}

// NewExtractor creates an extractor with the default text layer settings
func NewExtractor(maxFileSize int64, logger logrus.FieldLogger) *Extractor {
	if logger == nil {
		logger = discardLogger()
	}
	return &Extractor{
		checker:  NewFileChecker(maxFileSize),
		acroForm: NewAcroFormSource(logger),
		text:     NewTextLayerSource(logger),
		logger:   logger,
	}
}

// Extract returns a document named after the file, AcroForm detections
// before text layer lines
func (e *Extractor) Extract(ctx context.Context, filePath string, opts Options) (*pipeline.Document, error) {
	if !opts.AcroForm && !opts.TextLayer {
		return nil, fmt.Errorf("at least one of acroform or text layer must be selected")
	}
	if err := e.checker.Check(filePath); err != nil {
		return nil, err
	}

	doc := &pipeline.Document{
		ID:         strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		Detections: []fields.RawDetection{},
	}

	if opts.AcroForm {
		dets, err := e.acroForm.ExtractFromFile(filePath)
		if err != nil {
			if !opts.TextLayer {
				return nil, fmt.Errorf("failed to read form fields: %w", err)
			}
			e.logger.WithError(err).WithField("path", filePath).Warn("Form fields unreadable, using text layer only")
		}
		doc.Detections = append(doc.Detections, dets...)
	}

	if opts.TextLayer {
		dets, err := e.text.ExtractFromFile(ctx, filePath)
		if err != nil {
			return nil, fmt.Errorf("failed to read text layer: %w", err)
		}
		doc.Detections = append(doc.Detections, dets...)
	}

	e.logger.WithFields(logrus.Fields{
		"path":       filePath,
		"detections": len(doc.Detections),
	}).Debug("PDF detections gathered")
	return doc, nil
}
