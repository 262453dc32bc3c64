package geometry

import "sort"

// ConvexHull returns the convex hull of the point set in
// counter-clockwise order via a Graham scan. Inputs with fewer than
// three points are returned unchanged.
func ConvexHull(points []Point2D) []Point2D {
	if len(points) < 3 {
		return points
	}

	pts := make([]Point2D, len(points))
	copy(pts, points)

	// Anchor at the lowest point, leftmost on ties.
	anchorIdx := 0
	for i, p := range pts {
		a := pts[anchorIdx]
		if p.Y < a.Y || (p.Y == a.Y && p.X < a.X) {
			anchorIdx = i
		}
	}
	pts[0], pts[anchorIdx] = pts[anchorIdx], pts[0]
	anchor := pts[0]

	rest := pts[1:]
	sort.Slice(rest, func(i, j int) bool {
		c := cross(anchor, rest[i], rest[j])
		if c != 0 {
			return c > 0
		}
		return sqDist(anchor, rest[i]) < sqDist(anchor, rest[j])
	})

	hull := []Point2D{anchor}
	for _, p := range rest {
		for len(hull) > 1 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull
}

// PolygonArea returns the area of a simple polygon via the shoelace
// formula. Vertex order does not matter; the result is non-negative.
func PolygonArea(polygon []Point2D) float64 {
	if len(polygon) < 3 {
		return 0
	}
	var sum float64
	n := len(polygon)
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += polygon[i].X*polygon[j].Y - polygon[j].X*polygon[i].Y
	}
	if sum < 0 {
		sum = -sum
	}
	return sum / 2
}

// cross is the z-component of (a-o) x (b-o): positive when o,a,b turn
// counter-clockwise.
func cross(o, a, b Point2D) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func sqDist(a, b Point2D) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return dx*dx + dy*dy
}
