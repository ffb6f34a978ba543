// Package conflicts removes duplicate detections of the same field and reports
// fields that crowd each other on the page.
package conflicts

import (
	"fmt"
	"sort"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

// Config holds the duplicate and crowding thresholds
type Config struct {
	ProximityThreshold   float64 `json:"proximity_threshold" mapstructure:"proximity_threshold"`
	OverlapThreshold     float64 `json:"overlap_threshold" mapstructure:"overlap_threshold"`
	ConfidenceMargin     float64 `json:"confidence_margin" mapstructure:"confidence_margin"`
	CompleteThreshold    float64 `json:"complete_threshold" mapstructure:"complete_threshold"`
	SignificantThreshold float64 `json:"significant_threshold" mapstructure:"significant_threshold"`
	MergeImpact          float64 `json:"merge_impact" mapstructure:"merge_impact"`
	ReduceImpact         float64 `json:"reduce_impact" mapstructure:"reduce_impact"`
	IgnoreImpact         float64 `json:"ignore_impact" mapstructure:"ignore_impact"`
}

// DefaultConfig returns the default resolver configuration
func DefaultConfig() Config {
	return Config{
		ProximityThreshold:   5,
		OverlapThreshold:     0.9,
		ConfidenceMargin:     0.02,
		CompleteThreshold:    80,
		SignificantThreshold: 30,
		MergeImpact:          -0.1,
		ReduceImpact:         -0.2,
		IgnoreImpact:         -0.05,
	}
}

// Validate checks that thresholds are usable
func (c Config) Validate() error {
	if c.ProximityThreshold <= 0 {
		return fmt.Errorf("proximity threshold must be positive, got %v", c.ProximityThreshold)
	}
	if c.OverlapThreshold <= 0 || c.OverlapThreshold > 1 {
		return fmt.Errorf("overlap threshold must be in (0,1], got %v", c.OverlapThreshold)
	}
	if c.ConfidenceMargin < 0 {
		return fmt.Errorf("confidence margin must not be negative, got %v", c.ConfidenceMargin)
	}
	if c.SignificantThreshold <= 0 || c.CompleteThreshold <= c.SignificantThreshold {
		return fmt.Errorf("crowding thresholds must satisfy 0 < significant (%v) < complete (%v)",
			c.SignificantThreshold, c.CompleteThreshold)
	}
	return nil
}

// Duplicate records a candidate discarded in favour of another
type Duplicate struct {
	DiscardedID string  `json:"discarded_id"`
	KeptID      string  `json:"kept_id"`
	Page        int     `json:"page"`
	Distance    float64 `json:"distance"`
	IoU         float64 `json:"iou"`
}

// Result is the outcome of duplicate resolution
type Result struct {
	Fields     []fields.ClassifiedField `json:"fields"`
	Duplicates []Duplicate              `json:"duplicates"`
}

// Resolver deduplicates classified fields and detects crowding
type Resolver struct {
	config Config
}

// NewResolver creates a resolver with default configuration
func NewResolver() *Resolver {
	return NewResolverWithConfig(DefaultConfig())
}

// NewResolverWithConfig creates a resolver with custom configuration
func NewResolverWithConfig(config Config) *Resolver {
	return &Resolver{config: config}
}

// Resolve removes duplicates page by page. Survivors keep their input order.
func (r *Resolver) Resolve(in []fields.ClassifiedField) Result {
	kept := make([]bool, len(in))
	duplicates := []Duplicate{}

	for _, positions := range groupByPage(in) {
		duplicates = append(duplicates, r.resolvePage(in, positions, kept)...)
	}

	out := make([]fields.ClassifiedField, 0, len(in))
	for i, f := range in {
		if kept[i] {
			out = append(out, f)
		}
	}

	return Result{Fields: out, Duplicates: duplicates}
}

func (r *Resolver) resolvePage(in []fields.ClassifiedField, positions []int, kept []bool) []Duplicate {
	ranked := append([]int(nil), positions...)
	sort.SliceStable(ranked, func(a, b int) bool {
		return in[ranked[a]].Confidence > in[ranked[b]].Confidence
	})

	var duplicates []Duplicate
	accepted := make([]int, 0, len(ranked))

	for _, cand := range ranked {
		conflictAt := -1
		var distance, iou float64
		for k, acc := range accepted {
			d, o, hit := r.isDuplicate(in[cand].BoundingBox, in[acc].BoundingBox)
			if hit {
				conflictAt, distance, iou = k, d, o
				break
			}
		}

		if conflictAt == -1 {
			accepted = append(accepted, cand)
			continue
		}

		incumbent := accepted[conflictAt]
		if in[cand].Confidence > in[incumbent].Confidence+r.config.ConfidenceMargin {
			accepted[conflictAt] = cand
			duplicates = append(duplicates, newDuplicate(in[incumbent], in[cand], distance, iou))
		} else {
			duplicates = append(duplicates, newDuplicate(in[cand], in[incumbent], distance, iou))
		}
	}

	for _, p := range accepted {
		kept[p] = true
	}
	return duplicates
}

// isDuplicate reports whether two boxes describe the same field
func (r *Resolver) isDuplicate(a, b layout.BoundingBox) (float64, float64, bool) {
	distance := layout.CenterDistance(a, b)
	iou := layout.IoU(a, b)
	return distance, iou, distance < r.config.ProximityThreshold || iou > r.config.OverlapThreshold
}

func newDuplicate(discarded, kept fields.ClassifiedField, distance, iou float64) Duplicate {
	return Duplicate{
		DiscardedID: discarded.ID,
		KeptID:      kept.ID,
		Page:        discarded.Page,
		Distance:    distance,
		IoU:         iou,
	}
}

// groupByPage returns input positions per page, pages ascending
func groupByPage(in []fields.ClassifiedField) [][]int {
	byPage := make(map[int][]int)
	pages := []int{}
	for i, f := range in {
		if _, seen := byPage[f.Page]; !seen {
			pages = append(pages, f.Page)
		}
		byPage[f.Page] = append(byPage[f.Page], i)
	}
	sort.Ints(pages)

	groups := make([][]int, 0, len(pages))
	for _, p := range pages {
		groups = append(groups, byPage[p])
	}
	return groups
}
