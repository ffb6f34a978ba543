// Package pipeline runs detections through normalisation, classification,
// duplicate resolution, capacity estimation, quality filtering and validation.
package pipeline

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/a3tai/mcp-form-pipeline/internal/capacity"
	"github.com/a3tai/mcp-form-pipeline/internal/conflicts"
	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/quality"
	"github.com/a3tai/mcp-form-pipeline/internal/validation"
)

// Config groups the configuration of every stage
type Config struct {
	Normalizer     fields.NormalizerConfig `json:"normalizer" mapstructure:"normalizer"`
	Classifier     fields.ClassifierConfig `json:"classifier" mapstructure:"classifier"`
	Conflicts      conflicts.Config        `json:"conflicts" mapstructure:"conflicts"`
	Capacity       capacity.Config         `json:"capacity" mapstructure:"capacity"`
	Quality        quality.Config          `json:"quality" mapstructure:"quality"`
	Validation     validation.Config       `json:"validation" mapstructure:"validation"`
	MaxConcurrency int                     `json:"max_concurrency" mapstructure:"max_concurrency"`
}

// DefaultConfig returns the default pipeline configuration
func DefaultConfig() Config {
	return Config{
		Normalizer:     fields.DefaultNormalizerConfig(),
		Classifier:     fields.DefaultClassifierConfig(),
		Conflicts:      conflicts.DefaultConfig(),
		Capacity:       capacity.DefaultConfig(),
		Quality:        quality.DefaultConfig(),
		Validation:     validation.DefaultConfig(),
		MaxConcurrency: 4,
	}
}

// Validate checks every stage configuration
func (c Config) Validate() error {
	if c.Classifier.BaseConfidence <= 0 || c.Classifier.BaseConfidence > 1 {
		return fmt.Errorf("classifier base confidence must be in (0,1], got %v", c.Classifier.BaseConfidence)
	}
	if c.Normalizer.TableCellWidth <= 0 || c.Normalizer.TableCellHeight <= 0 {
		return fmt.Errorf("table cell size must be positive, got %vx%v",
			c.Normalizer.TableCellWidth, c.Normalizer.TableCellHeight)
	}
	if err := c.Conflicts.Validate(); err != nil {
		return fmt.Errorf("conflicts: %w", err)
	}
	if err := c.Capacity.Validate(); err != nil {
		return fmt.Errorf("capacity: %w", err)
	}
	if err := c.Quality.Validate(); err != nil {
		return fmt.Errorf("quality: %w", err)
	}
	if err := c.Validation.Validate(); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	if c.MaxConcurrency < 1 {
		return fmt.Errorf("max concurrency must be at least 1, got %d", c.MaxConcurrency)
	}
	return nil
}

// Stats counts records between stages
type Stats struct {
	Detections int `json:"detections"`
	Duplicates int `json:"duplicates"`
	Survivors  int `json:"survivors"`
	Conflicts  int `json:"conflicts"`
	Rejected   int `json:"rejected"`
	Final      int `json:"final"`
}

// Result is the full output for one document
type Result struct {
	DocumentID   string                              `json:"document_id,omitempty"`
	Fields       []fields.Field                      `json:"fields"`
	Report       validation.DocumentValidationReport `json:"report"`
	Duplicates   []conflicts.Duplicate               `json:"duplicates"`
	Conflicts    []fields.SpatialConflict            `json:"conflicts"`
	Rejected     []quality.Rejection                 `json:"rejected"`
	FilterPolicy string                              `json:"filter_policy"`
	Stats        Stats                               `json:"stats"`
}

// Document is one independent unit of work for RunBatch
type Document struct {
	ID         string                `json:"documentId"`
	Detections []fields.RawDetection `json:"detections"`
	// Source is where the document was read from; it labels batch errors
	// instead of the ID when set
	Source string `json:"-"`
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger used for stage diagnostics
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// Pipeline is safe for concurrent use; stages hold no per-run state
type Pipeline struct {
	config     Config
	logger     logrus.FieldLogger
	normalizer *fields.Normalizer
	classifier *fields.Classifier
	resolver   *conflicts.Resolver
	estimator  *capacity.Estimator
	filter     quality.Filter
	engine     *validation.Engine
}

// New builds a pipeline from config
func New(config Config, opts ...Option) (*Pipeline, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}

	p := &Pipeline{config: config}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		l := logrus.New()
		l.SetLevel(logrus.WarnLevel)
		p.logger = l
	}

	filter, err := quality.New(config.Quality)
	if err != nil {
		return nil, err
	}

	p.normalizer = fields.NewNormalizerWithConfig(config.Normalizer, p.logger)
	p.classifier = fields.NewClassifierWithConfig(config.Classifier)
	p.resolver = conflicts.NewResolverWithConfig(config.Conflicts)
	p.estimator = capacity.NewEstimatorWithConfig(config.Capacity)
	p.filter = filter
	p.engine = validation.NewEngine(config.Validation)
	return p, nil
}

// Config returns the configuration the pipeline was built with
func (p *Pipeline) Config() Config {
	return p.config
}

// Run processes one document's detections end to end
func (p *Pipeline) Run(detections []fields.RawDetection) (*Result, error) {
	candidates, err := p.normalizer.Normalize(detections)
	if err != nil {
		return nil, err
	}

	classified := p.classifier.ClassifyAll(candidates)

	resolved := p.resolver.Resolve(classified)
	crowding := p.resolver.DetectCrowding(resolved.Fields)

	estimated := p.estimator.EstimateAll(resolved.Fields, crowding)

	kept, rejected := quality.Apply(p.filter, estimated)

	report := p.engine.ValidateDocument(kept)

	stats := Stats{
		Detections: len(detections),
		Duplicates: len(resolved.Duplicates),
		Survivors:  len(resolved.Fields),
		Conflicts:  len(crowding),
		Rejected:   len(rejected),
		Final:      len(kept),
	}

	p.logger.WithFields(logrus.Fields{
		"detections": stats.Detections,
		"duplicates": stats.Duplicates,
		"conflicts":  stats.Conflicts,
		"rejected":   stats.Rejected,
		"final":      stats.Final,
		"policy":     p.filter.Name(),
	}).Debug("Pipeline run complete")

	return &Result{
		Fields:       kept,
		Report:       report,
		Duplicates:   resolved.Duplicates,
		Conflicts:    crowding,
		Rejected:     rejected,
		FilterPolicy: p.filter.Name(),
		Stats:        stats,
	}, nil
}

// RunBatch processes documents concurrently, at most MaxConcurrency at a time.
// Results are returned in input order. The first failure cancels documents
// that have not started yet.
func (p *Pipeline) RunBatch(ctx context.Context, docs []Document) ([]*Result, error) {
	results := make([]*Result, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.MaxConcurrency)

	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			res, err := p.Run(doc.Detections)
			if err != nil {
				if doc.Source != "" {
					return fmt.Errorf("%s: %w", doc.Source, err)
				}
				return fmt.Errorf("document %q: %w", doc.ID, err)
			}
			res.DocumentID = doc.ID
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
