package layout

import "math"

// Point represents a 2D point in page pixel units
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Distance calculates the Euclidean distance to another point
func (p Point) Distance(other Point) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// BoundingBox is an axis-aligned rectangle anchored at its top-left corner
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DefaultBoundingBox is substituted for detections without usable geometry
var DefaultBoundingBox = BoundingBox{X: 0, Y: 0, Width: 100, Height: 20}

// NewBoundingBox creates a bounding box, normalising negative sizes
func NewBoundingBox(x, y, width, height float64) BoundingBox {
	if width < 0 {
		x += width
		width = -width
	}
	if height < 0 {
		y += height
		height = -height
	}
	return BoundingBox{X: x, Y: y, Width: width, Height: height}
}

// BoundingBoxFromPolygon computes the enclosing box of a flat list of x,y pairs.
// It reports false when the polygon has fewer than two vertices, an odd number
// of coordinates or non-finite values.
func BoundingBoxFromPolygon(coords []float64) (BoundingBox, bool) {
	if len(coords) < 4 || len(coords)%2 != 0 {
		return BoundingBox{}, false
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for i := 0; i < len(coords); i += 2 {
		x, y := coords[i], coords[i+1]
		if !isFinite(x) || !isFinite(y) {
			return BoundingBox{}, false
		}
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}

	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}, true
}

// Left returns the left edge X coordinate
func (b BoundingBox) Left() float64 { return b.X }

// Right returns the right edge X coordinate
func (b BoundingBox) Right() float64 { return b.X + b.Width }

// Top returns the top edge Y coordinate
func (b BoundingBox) Top() float64 { return b.Y }

// Bottom returns the bottom edge Y coordinate
func (b BoundingBox) Bottom() float64 { return b.Y + b.Height }

// Center returns the center point
func (b BoundingBox) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the area of the bounding box
func (b BoundingBox) Area() float64 {
	return b.Width * b.Height
}

// IsEmpty returns true if the bounding box has zero area
func (b BoundingBox) IsEmpty() bool {
	return b.Width <= 0 || b.Height <= 0
}

// IsValid reports whether every coordinate is finite and the size is non-negative
func (b BoundingBox) IsValid() bool {
	return isFinite(b.X) && isFinite(b.Y) && isFinite(b.Width) && isFinite(b.Height) &&
		b.Width >= 0 && b.Height >= 0
}

// Intersects checks if two bounding boxes overlap with positive area
func (b BoundingBox) Intersects(other BoundingBox) bool {
	return b.IntersectionArea(other) > 0
}

// Intersection returns the overlapping region, or an empty box when disjoint
func (b BoundingBox) Intersection(other BoundingBox) BoundingBox {
	left := math.Max(b.Left(), other.Left())
	top := math.Max(b.Top(), other.Top())
	right := math.Min(b.Right(), other.Right())
	bottom := math.Min(b.Bottom(), other.Bottom())

	if right <= left || bottom <= top {
		return BoundingBox{}
	}

	return BoundingBox{X: left, Y: top, Width: right - left, Height: bottom - top}
}

// IntersectionArea returns the area shared by both boxes
func (b BoundingBox) IntersectionArea(other BoundingBox) float64 {
	return b.Intersection(other).Area()
}

// CenterDistance returns the Euclidean distance between the centers of two boxes
func CenterDistance(a, b BoundingBox) float64 {
	return a.Center().Distance(b.Center())
}

// IoU returns intersection area over union area, in [0,1].
// The union is the area covered by either box, not the enclosing rectangle.
// Identical boxes score 1 even when they have no area.
func IoU(a, b BoundingBox) float64 {
	if a == b {
		return 1
	}

	intersection := a.IntersectionArea(b)
	if intersection <= 0 {
		return 0
	}

	union := a.Area() + b.Area() - intersection
	if union <= 0 {
		return 0
	}

	ratio := intersection / union
	if ratio > 1 {
		return 1
	}
	return ratio
}

// OverlapPercentage returns intersection area over the smaller box area, as 0-100
func OverlapPercentage(a, b BoundingBox) float64 {
	intersection := a.IntersectionArea(b)
	if intersection <= 0 {
		return 0
	}

	smaller := math.Min(a.Area(), b.Area())
	if smaller <= 0 {
		return 0
	}

	pct := intersection / smaller * 100
	if pct > 100 {
		return 100
	}
	return pct
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
