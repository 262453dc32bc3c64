package geometry

import "testing"

func TestConvexHullDropsInteriorPoints(t *testing.T) {
	pts := []Point2D{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10},
		{X: 5, Y: 5}, {X: 3, Y: 7}, // interior
	}

	hull := ConvexHull(pts)
	if len(hull) != 4 {
		t.Fatalf("hull has %d vertices, want 4: %+v", len(hull), hull)
	}
	for _, p := range hull {
		if p.X != 0 && p.X != 10 {
			t.Fatalf("interior point survived in hull: %+v", p)
		}
	}
}

func TestConvexHullSmallInputsPassThrough(t *testing.T) {
	pts := []Point2D{{X: 1, Y: 2}, {X: 3, Y: 4}}
	hull := ConvexHull(pts)
	if len(hull) != 2 {
		t.Fatalf("hull of 2 points has %d vertices", len(hull))
	}
}

func TestPolygonAreaSquare(t *testing.T) {
	square := []Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}, {X: 0, Y: 10}}
	if got := PolygonArea(square); got != 100 {
		t.Fatalf("area = %v, want 100", got)
	}
	// Reversed winding gives the same magnitude.
	reversed := []Point2D{{X: 0, Y: 10}, {X: 10, Y: 10}, {X: 10, Y: 0}, {X: 0, Y: 0}}
	if got := PolygonArea(reversed); got != 100 {
		t.Fatalf("area (reversed) = %v, want 100", got)
	}
}

func TestPolygonAreaDegenerate(t *testing.T) {
	if got := PolygonArea([]Point2D{{X: 0, Y: 0}, {X: 5, Y: 5}}); got != 0 {
		t.Fatalf("area of segment = %v, want 0", got)
	}
}

func TestHullAreaOfConcaveContour(t *testing.T) {
	// An L-shape: its own area is 75; the hull bridges the notch with
	// an edge from (5,10) to (0,5), adding the 12.5-area triangle.
	l := []Point2D{
		{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10},
		{X: 5, Y: 10}, {X: 5, Y: 5}, {X: 0, Y: 5},
	}
	if got := PolygonArea(l); got != 75 {
		t.Fatalf("L-shape area = %v, want 75", got)
	}
	if got := PolygonArea(ConvexHull(l)); got != 87.5 {
		t.Fatalf("hull area = %v, want 87.5", got)
	}
}
