package layout

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoundingBoxFromPolygon(t *testing.T) {
	tests := []struct {
		name     string
		coords   []float64
		expected BoundingBox
		ok       bool
	}{
		{
			name:     "axis_aligned_quad",
			coords:   []float64{10, 20, 110, 20, 110, 45, 10, 45},
			expected: BoundingBox{X: 10, Y: 20, Width: 100, Height: 25},
			ok:       true,
		},
		{
			name:     "skewed_quad_uses_extremes",
			coords:   []float64{12, 20, 110, 18, 112, 45, 10, 47},
			expected: BoundingBox{X: 10, Y: 18, Width: 102, Height: 29},
			ok:       true,
		},
		{
			name:     "two_vertices",
			coords:   []float64{0, 0, 50, 10},
			expected: BoundingBox{X: 0, Y: 0, Width: 50, Height: 10},
			ok:       true,
		},
		{name: "single_vertex", coords: []float64{1, 2}},
		{name: "odd_coordinates", coords: []float64{1, 2, 3, 4, 5}},
		{name: "nan_coordinate", coords: []float64{1, 2, math.NaN(), 4}},
		{name: "empty", coords: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			box, ok := BoundingBoxFromPolygon(tt.coords)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.expected, box)
			}
		})
	}
}

func TestNewBoundingBox_NormalisesNegativeSize(t *testing.T) {
	box := NewBoundingBox(100, 50, -40, -10)
	assert.Equal(t, BoundingBox{X: 60, Y: 40, Width: 40, Height: 10}, box)
}

func TestIoU(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 100, Height: 20}
	b := BoundingBox{X: 50, Y: 0, Width: 100, Height: 20}
	far := BoundingBox{X: 500, Y: 500, Width: 10, Height: 10}
	touching := BoundingBox{X: 100, Y: 0, Width: 10, Height: 20}

	t.Run("self_is_one", func(t *testing.T) {
		assert.InDelta(t, 1.0, IoU(a, a), 1e-12)
	})

	t.Run("symmetric", func(t *testing.T) {
		assert.Equal(t, IoU(a, b), IoU(b, a))
		assert.InDelta(t, 1000.0/3000.0, IoU(a, b), 1e-12)
	})

	t.Run("disjoint_is_zero", func(t *testing.T) {
		assert.Equal(t, 0.0, IoU(a, far))
		assert.Equal(t, 0.0, IoU(a, touching))
	})

	t.Run("identical_empty_boxes_are_one", func(t *testing.T) {
		empty := BoundingBox{X: 10, Y: 10}
		assert.Equal(t, 1.0, IoU(empty, empty))
		assert.Equal(t, 1.0, IoU(BoundingBox{X: 5, Y: 5, Width: 40}, BoundingBox{X: 5, Y: 5, Width: 40}))
	})

	t.Run("distinct_empty_boxes_are_zero", func(t *testing.T) {
		assert.Equal(t, 0.0, IoU(BoundingBox{X: 10, Y: 10}, BoundingBox{X: 10, Y: 12}))
		assert.Equal(t, 0.0, IoU(BoundingBox{X: 10, Y: 10}, a))
	})

	t.Run("always_in_unit_range", func(t *testing.T) {
		boxes := []BoundingBox{a, b, far, touching, {X: 10, Y: 5, Width: 5, Height: 5}, {X: -10, Y: -10, Width: 300, Height: 300}}
		for _, x := range boxes {
			for _, y := range boxes {
				v := IoU(x, y)
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
				assert.Equal(t, v, IoU(y, x))
			}
		}
	})
}

func TestOverlapPercentage(t *testing.T) {
	big := BoundingBox{X: 0, Y: 0, Width: 200, Height: 40}
	small := BoundingBox{X: 10, Y: 10, Width: 20, Height: 10}
	half := BoundingBox{X: 190, Y: 0, Width: 20, Height: 40}

	assert.InDelta(t, 100.0, OverlapPercentage(big, small), 1e-9)
	assert.InDelta(t, 100.0, OverlapPercentage(small, big), 1e-9)
	assert.InDelta(t, 50.0, OverlapPercentage(big, half), 1e-9)
	assert.Equal(t, 0.0, OverlapPercentage(small, half))
}

func TestCenterDistance(t *testing.T) {
	a := BoundingBox{X: 0, Y: 0, Width: 10, Height: 10}
	b := BoundingBox{X: 3, Y: 4, Width: 10, Height: 10}
	assert.InDelta(t, 5.0, CenterDistance(a, b), 1e-12)
}

func TestIndex_Overlapping(t *testing.T) {
	boxes := []BoundingBox{
		{X: 0, Y: 0, Width: 100, Height: 20},
		{X: 90, Y: 0, Width: 100, Height: 20},
		{X: 300, Y: 300, Width: 10, Height: 10},
		{X: 100, Y: 15, Width: 10, Height: 10}, // touches box 0 along an edge only
	}
	idx := NewIndex(boxes)
	require.Equal(t, 4, idx.Len())

	assert.Equal(t, []int{0, 1}, idx.Overlapping(boxes[0]))
	assert.Equal(t, []int{2}, idx.Overlapping(boxes[2]))
	assert.Equal(t, []int{1, 3}, idx.Overlapping(boxes[3]))
}

func TestIndex_NearestCenter(t *testing.T) {
	boxes := []BoundingBox{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 20, Y: 0, Width: 10, Height: 10},
		{X: -20, Y: 0, Width: 10, Height: 10},
		{X: 200, Y: 0, Width: 10, Height: 10},
	}
	idx := NewCenterIndex(boxes)

	// Boxes 1 and 2 are equidistant from box 0; the lower position wins.
	assert.Equal(t, 1, idx.NearestCenter(boxes[0].Center(), 50, 0))
	assert.Equal(t, 0, idx.NearestCenter(boxes[0].Center(), 50))
	assert.Equal(t, -1, idx.NearestCenter(boxes[3].Center(), 50, 3))
}
