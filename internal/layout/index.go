package layout

import (
	"sort"

	"github.com/tidwall/rtree"
)

// Index is a spatial index over a fixed slice of boxes. Query results are the
// positions of the boxes in the slice the index was built from, sorted ascending
// so callers get the same answer as an ordered all-pairs scan.
type Index struct {
	tree  rtree.RTreeG[int]
	boxes []BoundingBox
}

// NewIndex indexes the full extent of every box
func NewIndex(boxes []BoundingBox) *Index {
	idx := &Index{boxes: boxes}
	for i, b := range boxes {
		idx.tree.Insert([2]float64{b.Left(), b.Top()}, [2]float64{b.Right(), b.Bottom()}, i)
	}
	return idx
}

// NewCenterIndex indexes only the center point of every box
func NewCenterIndex(boxes []BoundingBox) *Index {
	idx := &Index{boxes: boxes}
	for i, b := range boxes {
		c := b.Center()
		idx.tree.Insert([2]float64{c.X, c.Y}, [2]float64{c.X, c.Y}, i)
	}
	return idx
}

// Len returns the number of indexed boxes
func (idx *Index) Len() int {
	return idx.tree.Len()
}

// Overlapping returns the positions of boxes sharing positive area with box
func (idx *Index) Overlapping(box BoundingBox) []int {
	var hits []int
	idx.tree.Search(
		[2]float64{box.Left(), box.Top()},
		[2]float64{box.Right(), box.Bottom()},
		func(_, _ [2]float64, i int) bool {
			if idx.boxes[i].IntersectionArea(box) > 0 {
				hits = append(hits, i)
			}
			return true
		},
	)
	sort.Ints(hits)
	return hits
}

// NearestCenter returns the position of the box whose center is closest to p and
// no farther than radius. Boxes listed in exclude are skipped. Ties keep the lowest
// position. It returns -1 when nothing is in range.
func (idx *Index) NearestCenter(p Point, radius float64, exclude ...int) int {
	skip := make(map[int]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	best := -1
	bestDist := 0.0
	idx.tree.Search(
		[2]float64{p.X - radius, p.Y - radius},
		[2]float64{p.X + radius, p.Y + radius},
		func(_, _ [2]float64, i int) bool {
			if skip[i] {
				return true
			}
			d := idx.boxes[i].Center().Distance(p)
			if d > radius {
				return true
			}
			if best == -1 || d < bestDist || (d == bestDist && i < best) {
				best = i
				bestDist = d
			}
			return true
		},
	)
	return best
}
