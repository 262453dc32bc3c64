// Package panel segments a page image into ordered narrative panels.
package panel

import (
	"image"
	"sort"

	"comicscan/internal/config"
	"comicscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// Panel is a narrative frame region with its reading-order rank.
type Panel struct {
	Bounds geometry.Rect `json:"bounds"`
	Rank   int           `json:"rank"`
}

// Segment detects panel rectangles on a BGR page image:
// edge-preserving smoothing, Canny edges, directional dilation to close
// border gaps, external contours, then area / rectangularity / aspect
// filters. An empty result is a valid outcome for pages without framed
// panels; the caller decides what to do with it.
func Segment(img gocv.Mat, cfg config.Panel) []Panel {
	if img.Empty() {
		return nil
	}

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	// Bilateral filtering keeps panel borders sharp while removing
	// screentone speckle that would fragment the contours.
	smooth := gocv.NewMat()
	defer smooth.Close()
	gocv.BilateralFilter(gray, &smooth, 7, 50, 50)

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(smooth, &edges, float32(cfg.Canny1), float32(cfg.Canny2))

	// Zero iterations disables gap closing entirely.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	for i := 0; i < cfg.DilateIter; i++ {
		gocv.Dilate(edges, &edges, kernel)
	}

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var boxes []geometry.Rect
	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		bb := gocv.BoundingRect(cnt)
		box := geometry.Rect{X: bb.Min.X, Y: bb.Min.Y, Width: bb.Dx(), Height: bb.Dy()}
		if box.Area() < cfg.MinArea {
			continue
		}
		// Contour area over bounding-box area rejects shapes that are
		// far from rectangular (sound effects, irregular art).
		rectangularity := gocv.ContourArea(cnt) / float64(box.Area())
		if rectangularity < cfg.MinRectangularity {
			continue
		}
		if aspect(box) > cfg.MaxAspect {
			continue
		}
		boxes = append(boxes, box)
	}

	ordered := ReadingOrder(boxes, cfg.RowBucketPx)
	panels := make([]Panel, len(ordered))
	for i, b := range ordered {
		panels[i] = Panel{Bounds: b, Rank: i}
	}
	return panels
}

// ReadingOrder sorts rectangles into approximate row-major reading
// order: rows are bucketed by y with a fixed bucket height, then sorted
// left to right within each bucket. Bucketing tolerates panels whose
// tops are not exactly aligned.
func ReadingOrder(boxes []geometry.Rect, bucketPx int) []geometry.Rect {
	if bucketPx < 1 {
		bucketPx = 1
	}
	out := make([]geometry.Rect, len(boxes))
	copy(out, boxes)
	sort.SliceStable(out, func(i, j int) bool {
		bi, bj := out[i].Y/bucketPx, out[j].Y/bucketPx
		if bi != bj {
			return bi < bj
		}
		return out[i].X < out[j].X
	})
	return out
}

func aspect(r geometry.Rect) float64 {
	w, h := float64(r.Width), float64(r.Height)
	if h < 1 {
		h = 1
	}
	if w < 1 {
		w = 1
	}
	if w > h {
		return w / h
	}
	return h / w
}
