// Package geometry provides the rectangle value types shared by the
// detection pipeline.
package geometry

// Point2D represents a 2D point with floating-point coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle with integer pixel coordinates,
// origin at the top-left of the page. Width and Height are always
// positive for rectangles built through NewRect; rectangles received
// from external sources should be screened with Valid.
type Rect struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// NewRect builds a Rect from two corner points in any order.
func NewRect(x1, y1, x2, y2 int) Rect {
	if x2 < x1 {
		x1, x2 = x2, x1
	}
	if y2 < y1 {
		y1, y2 = y2, y1
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Valid reports whether the rectangle has positive extent in both
// dimensions.
func (r Rect) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// Area returns the pixel area.
func (r Rect) Area() int {
	return r.Width * r.Height
}

// Center returns the center point.
func (r Rect) Center() Point2D {
	return Point2D{X: float64(r.X) + float64(r.Width)/2, Y: float64(r.Y) + float64(r.Height)/2}
}

// ContainsPoint reports whether the point lies inside the rectangle,
// edges inclusive.
func (r Rect) ContainsPoint(p Point2D) bool {
	return p.X >= float64(r.X) && p.X <= float64(r.X+r.Width) &&
		p.Y >= float64(r.Y) && p.Y <= float64(r.Y+r.Height)
}

// ContainsCenterOf reports whether the center of other lies inside r.
// This is the single containment rule used throughout the pipeline for
// panel/bubble and panel/word scoping.
func (r Rect) ContainsCenterOf(other Rect) bool {
	return r.ContainsPoint(other.Center())
}

// Intersect returns the overlapping region and whether it is non-empty.
func (r Rect) Intersect(other Rect) (Rect, bool) {
	x1 := maxInt(r.X, other.X)
	y1 := maxInt(r.Y, other.Y)
	x2 := minInt(r.X+r.Width, other.X+other.Width)
	y2 := minInt(r.Y+r.Height, other.Y+other.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}, false
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

// Union returns the smallest rectangle containing both rectangles.
func (r Rect) Union(other Rect) Rect {
	x1 := minInt(r.X, other.X)
	y1 := minInt(r.Y, other.Y)
	x2 := maxInt(r.X+r.Width, other.X+other.Width)
	y2 := maxInt(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// IoU returns the intersection-over-union ratio in [0,1].
func (r Rect) IoU(other Rect) float64 {
	inter, ok := r.Intersect(other)
	if !ok {
		return 0
	}
	interArea := float64(inter.Area())
	union := float64(r.Area()) + float64(other.Area()) - interArea
	if union <= 0 {
		return 0
	}
	return interArea / union
}

// Expand grows the rectangle by margin pixels on every side.
func (r Rect) Expand(margin int) Rect {
	return Rect{
		X:      r.X - margin,
		Y:      r.Y - margin,
		Width:  r.Width + 2*margin,
		Height: r.Height + 2*margin,
	}
}

// ClipTo clamps the rectangle to the bounds rectangle. The result may
// be invalid (zero extent) when the rectangles do not overlap.
func (r Rect) ClipTo(bounds Rect) Rect {
	x1 := maxInt(r.X, bounds.X)
	y1 := maxInt(r.Y, bounds.Y)
	x2 := minInt(r.X+r.Width, bounds.X+bounds.Width)
	y2 := minInt(r.Y+r.Height, bounds.Y+bounds.Height)
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Translate returns the rectangle shifted by (dx, dy).
func (r Rect) Translate(dx, dy int) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, Width: r.Width, Height: r.Height}
}

// FilterValid returns the subset of rects with positive extent,
// preserving order. Used to screen externally supplied geometry.
func FilterValid(rects []Rect) []Rect {
	out := make([]Rect, 0, len(rects))
	for _, r := range rects {
		if r.Valid() {
			out = append(out, r)
		}
	}
	return out
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
