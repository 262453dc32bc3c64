package bubble

import (
	"sort"

	"comicscan/pkg/geometry"
)

// NMS deduplicates rectangles by greedy non-max suppression: the
// largest remaining box is kept and every other box overlapping it with
// IoU strictly above the threshold is discarded. The operation is
// idempotent, so it can be re-run safely after each merge step.
func NMS(rects []geometry.Rect, iouThresh float64) []geometry.Rect {
	if len(rects) <= 1 {
		return rects
	}

	sorted := make([]geometry.Rect, len(rects))
	copy(sorted, rects)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Area() > sorted[j].Area()
	})

	kept := make([]geometry.Rect, 0, len(sorted))
	suppressed := make([]bool, len(sorted))
	for i, r := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, r)
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] {
				continue
			}
			if r.IoU(sorted[j]) > iouThresh {
				suppressed[j] = true
			}
		}
	}
	return kept
}
