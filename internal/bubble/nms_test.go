package bubble

import (
	"testing"

	"comicscan/pkg/geometry"
)

func TestNMSKeepsLargerOfOverlappingPair(t *testing.T) {
	large := geometry.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	small := geometry.Rect{X: 5, Y: 5, Width: 90, Height: 90} // IoU 0.81

	got := NMS([]geometry.Rect{small, large}, 0.30)
	if len(got) != 1 {
		t.Fatalf("NMS kept %d boxes, want 1", len(got))
	}
	if got[0] != large {
		t.Fatalf("NMS kept %+v, want the larger box %+v", got[0], large)
	}
}

func TestNMSKeepsBothAtOrBelowThreshold(t *testing.T) {
	a := geometry.Rect{X: 0, Y: 0, Width: 100, Height: 10} // IoU with b = 0.25
	b := geometry.Rect{X: 60, Y: 0, Width: 100, Height: 10}
	if iou := a.IoU(b); iou > 0.30 {
		t.Fatalf("test setup: IoU %v should be at or below threshold", iou)
	}

	got := NMS([]geometry.Rect{a, b}, 0.30)
	if len(got) != 2 {
		t.Fatalf("NMS kept %d boxes, want 2", len(got))
	}
}

func TestNMSIdempotent(t *testing.T) {
	boxes := []geometry.Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 10, Y: 10, Width: 80, Height: 80},
		{X: 200, Y: 0, Width: 50, Height: 50},
		{X: 205, Y: 5, Width: 50, Height: 50},
		{X: 0, Y: 200, Width: 30, Height: 30},
	}
	once := NMS(boxes, 0.30)
	twice := NMS(once, 0.30)
	if len(once) != len(twice) {
		t.Fatalf("second NMS changed count: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Fatalf("second NMS changed box %d: %+v -> %+v", i, once[i], twice[i])
		}
	}
}

func TestNMSOrdersByAreaDescending(t *testing.T) {
	boxes := []geometry.Rect{
		{X: 0, Y: 0, Width: 10, Height: 10},
		{X: 100, Y: 100, Width: 50, Height: 50},
		{X: 200, Y: 200, Width: 30, Height: 30},
	}
	got := NMS(boxes, 0.30)
	if len(got) != 3 {
		t.Fatalf("NMS kept %d boxes, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].Area() > got[i-1].Area() {
			t.Fatalf("output not area-descending at %d: %+v", i, got)
		}
	}
}
