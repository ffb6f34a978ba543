package conflicts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-form-pipeline/internal/fields"
	"github.com/a3tai/mcp-form-pipeline/internal/layout"
)

func field(id string, page int, conf float64, box layout.BoundingBox) fields.ClassifiedField {
	return fields.ClassifiedField{
		FieldCandidate: fields.FieldCandidate{ID: id, Page: page, BoundingBox: box},
		FieldType:      fields.FieldTypeText,
		Confidence:     conf,
	}
}

func ids(in []fields.ClassifiedField) []string {
	out := make([]string, 0, len(in))
	for _, f := range in {
		out = append(out, f.ID)
	}
	return out
}

func TestResolver_Resolve(t *testing.T) {
	box := layout.BoundingBox{X: 10, Y: 10, Width: 100, Height: 20}

	tests := []struct {
		name      string
		input     []fields.ClassifiedField
		expected  []string
		discarded []string
		keptFor   []string
	}{
		{
			name: "identical_boxes_keep_higher_confidence",
			input: []fields.ClassifiedField{
				field("low", 1, 0.60, box),
				field("high", 1, 0.90, box),
			},
			expected:  []string{"high"},
			discarded: []string{"low"},
			keptFor:   []string{"high"},
		},
		{
			name: "order_of_input_does_not_matter",
			input: []fields.ClassifiedField{
				field("high", 1, 0.90, box),
				field("low", 1, 0.60, box),
			},
			expected:  []string{"high"},
			discarded: []string{"low"},
			keptFor:   []string{"high"},
		},
		{
			name: "close_centers_conflict_without_overlap",
			input: []fields.ClassifiedField{
				field("a", 1, 0.8, layout.BoundingBox{X: 0, Y: 0, Width: 2, Height: 2}),
				field("b", 1, 0.7, layout.BoundingBox{X: 2, Y: 0, Width: 2, Height: 2}),
			},
			expected:  []string{"a"},
			discarded: []string{"b"},
			keptFor:   []string{"a"},
		},
		{
			name: "high_iou_conflicts_despite_distance",
			input: []fields.ClassifiedField{
				field("a", 1, 0.7, layout.BoundingBox{X: 0, Y: 0, Width: 1000, Height: 1000}),
				field("b", 1, 0.8, layout.BoundingBox{X: 10, Y: 10, Width: 1000, Height: 1000}),
			},
			expected:  []string{"b"},
			discarded: []string{"a"},
			keptFor:   []string{"b"},
		},
		{
			name: "equal_confidence_keeps_first_input",
			input: []fields.ClassifiedField{
				field("first", 1, 0.8, box),
				field("second", 1, 0.8, box),
			},
			expected:  []string{"first"},
			discarded: []string{"second"},
			keptFor:   []string{"first"},
		},
		{
			name: "pages_are_independent",
			input: []fields.ClassifiedField{
				field("p2", 2, 0.9, box),
				field("p1", 1, 0.5, box),
			},
			expected: []string{"p2", "p1"},
		},
		{
			name: "survivors_keep_input_order",
			input: []fields.ClassifiedField{
				field("low", 1, 0.3, layout.BoundingBox{X: 0, Y: 0, Width: 50, Height: 20}),
				field("high", 1, 0.9, layout.BoundingBox{X: 300, Y: 0, Width: 50, Height: 20}),
				field("mid", 1, 0.6, layout.BoundingBox{X: 0, Y: 200, Width: 50, Height: 20}),
			},
			expected: []string{"low", "high", "mid"},
		},
	}

	resolver := NewResolver()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := resolver.Resolve(tt.input)
			assert.Equal(t, tt.expected, ids(result.Fields))
			require.Len(t, result.Duplicates, len(tt.discarded))
			for i, d := range result.Duplicates {
				assert.Equal(t, tt.discarded[i], d.DiscardedID)
				assert.Equal(t, tt.keptFor[i], d.KeptID)
			}
		})
	}
}

func TestResolver_DuplicateMetrics(t *testing.T) {
	box := layout.BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}
	result := NewResolver().Resolve([]fields.ClassifiedField{
		field("a", 3, 0.9, box),
		field("b", 3, 0.5, box),
	})

	require.Len(t, result.Duplicates, 1)
	d := result.Duplicates[0]
	assert.Equal(t, 3, d.Page)
	assert.Equal(t, 0.0, d.Distance)
	assert.InDelta(t, 1.0, d.IoU, 1e-9)
}

func TestResolver_EmptyInput(t *testing.T) {
	result := NewResolver().Resolve(nil)
	assert.Empty(t, result.Fields)
	assert.Empty(t, result.Duplicates)
}

func TestResolver_DetectCrowding(t *testing.T) {
	in := []fields.ClassifiedField{
		field("base", 1, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}),
		field("inside", 1, 0.9, layout.BoundingBox{X: 10, Y: 10, Width: 50, Height: 50}),
		field("half", 1, 0.9, layout.BoundingBox{X: 50, Y: 200, Width: 100, Height: 20}),
		field("half_peer", 1, 0.9, layout.BoundingBox{X: 100, Y: 200, Width: 100, Height: 20}),
		field("edge", 1, 0.9, layout.BoundingBox{X: 190, Y: 200, Width: 100, Height: 20}),
		field("other_page", 2, 0.9, layout.BoundingBox{X: 0, Y: 0, Width: 100, Height: 100}),
	}

	conflicts := NewResolver().DetectCrowding(in)
	require.Len(t, conflicts, 3)

	assert.Equal(t, "base", conflicts[0].FieldA)
	assert.Equal(t, "inside", conflicts[0].FieldB)
	assert.Equal(t, fields.ConflictComplete, conflicts[0].ConflictType)
	assert.Equal(t, fields.ActionMerge, conflicts[0].Resolution.Action)
	assert.InDelta(t, 100.0, conflicts[0].OverlapPercentage, 1e-9)

	assert.Equal(t, "half", conflicts[1].FieldA)
	assert.Equal(t, "half_peer", conflicts[1].FieldB)
	assert.Equal(t, fields.ConflictSignificant, conflicts[1].ConflictType)
	assert.Equal(t, fields.ActionReduceSize, conflicts[1].Resolution.Action)
	assert.InDelta(t, -0.2, conflicts[1].Resolution.ConfidenceImpact, 1e-9)

	assert.Equal(t, "half_peer", conflicts[2].FieldA)
	assert.Equal(t, "edge", conflicts[2].FieldB)
	assert.Equal(t, fields.ConflictPartial, conflicts[2].ConflictType)
	assert.Equal(t, fields.ActionIgnore, conflicts[2].Resolution.Action)
	assert.InDelta(t, 10.0, conflicts[2].OverlapPercentage, 1e-9)
}

func TestResolver_DetectCrowdingMatchesAllPairs(t *testing.T) {
	var in []fields.ClassifiedField
	for i := 0; i < 12; i++ {
		x := float64(i%4) * 40
		y := float64(i/4) * 15
		in = append(in, field(string(rune('a'+i)), 1, 0.9, layout.BoundingBox{X: x, Y: y, Width: 60, Height: 20}))
	}

	got := NewResolver().DetectCrowding(in)

	var want [][2]string
	for i := range in {
		for j := i + 1; j < len(in); j++ {
			if layout.OverlapPercentage(in[i].BoundingBox, in[j].BoundingBox) > 0 {
				want = append(want, [2]string{in[i].ID, in[j].ID})
			}
		}
	}

	require.Len(t, got, len(want))
	for k, c := range got {
		assert.Equal(t, want[k], [2]string{c.FieldA, c.FieldB})
	}
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ProximityThreshold = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.OverlapThreshold = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CompleteThreshold = 10
	assert.Error(t, cfg.Validate())
}
