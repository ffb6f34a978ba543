package conflicts

import (
	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

// DetectCrowding reports every same-page pair of fields whose boxes share
// positive area. Pairs are ordered by the input position of their first and
// then second member.
func (r *Resolver) DetectCrowding(in []fields.ClassifiedField) []fields.SpatialConflict {
	type pageIndex struct {
		index     *layout.Index
		positions []int
	}

	indexes := make(map[int]*pageIndex)
	for _, positions := range groupByPage(in) {
		boxes := make([]layout.BoundingBox, len(positions))
		for k, p := range positions {
			boxes[k] = in[p].BoundingBox
		}
		indexes[in[positions[0]].Page] = &pageIndex{index: layout.NewIndex(boxes), positions: positions}
	}

	conflicts := []fields.SpatialConflict{}
	for i, a := range in {
		page := indexes[a.Page]
		for _, k := range page.index.Overlapping(a.BoundingBox) {
			j := page.positions[k]
			if j <= i {
				continue
			}
			pct := layout.OverlapPercentage(a.BoundingBox, in[j].BoundingBox)
			if pct <= 0 {
				continue
			}
			conflicts = append(conflicts, r.newConflict(a.ID, in[j].ID, pct))
		}
	}

	return conflicts
}

func (r *Resolver) newConflict(a, b string, pct float64) fields.SpatialConflict {
	conflict := fields.SpatialConflict{FieldA: a, FieldB: b, OverlapPercentage: pct}

	switch {
	case pct > r.config.CompleteThreshold:
		conflict.ConflictType = fields.ConflictComplete
		conflict.Resolution = fields.ConflictResolution{Action: fields.ActionMerge, ConfidenceImpact: r.config.MergeImpact}
	case pct > r.config.SignificantThreshold:
		conflict.ConflictType = fields.ConflictSignificant
		conflict.Resolution = fields.ConflictResolution{Action: fields.ActionReduceSize, ConfidenceImpact: r.config.ReduceImpact}
	default:
		conflict.ConflictType = fields.ConflictPartial
		conflict.Resolution = fields.ConflictResolution{Action: fields.ActionIgnore, ConfidenceImpact: r.config.IgnoreImpact}
	}

	return conflict
}
