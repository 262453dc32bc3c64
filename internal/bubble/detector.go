// Package bubble detects speech-balloon rectangles inside a panel.
//
// Balloons are locally bright, locally smooth, edge-bounded regions
// containing dense small dark glyphs. The detector combines three
// independent evidence channels: a bright+smooth prior mask, a dilated
// edge barrier marking balloon rims, and glyph seed blobs extracted at
// two area scales. Seed clusters are grown inside the prior and against
// the barrier, gated by a white-ratio check, with a coarser
// contour-based fallback for panels where nothing survives.
package bubble

import (
	"image"
	"image/color"
	"math"

	"comicscan/internal/config"
	"comicscan/internal/imgutil"
	"comicscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// referenceDim is the panel size the default thresholds were tuned at.
// Pixel-sized parameters scale with panel size relative to it.
const referenceDim = 1024.0

var maskWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Detect returns candidate balloon rectangles for one panel, in page
// coordinates, deduplicated by NMS. An empty result is a normal
// outcome for art-only panels.
func Detect(img gocv.Mat, panelRect geometry.Rect, cfg config.Bubble) []geometry.Rect {
	if img.Empty() {
		return nil
	}
	pageBounds := geometry.Rect{Width: img.Cols(), Height: img.Rows()}
	panelRect = panelRect.ClipTo(pageBounds)
	if !panelRect.Valid() {
		return nil
	}

	roi := img.Region(image.Rect(panelRect.X, panelRect.Y,
		panelRect.X+panelRect.Width, panelRect.Y+panelRect.Height))
	defer roi.Close()

	gray := imgutil.Gray(roi)
	defer gray.Close()
	w, h := gray.Cols(), gray.Rows()

	scale := scaleFactor(w, h)
	mergePx := maxInt(1, int(math.Round(float64(cfg.TextGroupMergePx)*scale)))
	expandPx := int(math.Round(float64(cfg.ExpandPx) * scale))
	varWindow := int(math.Round(float64(cfg.VarWindow) * scale))

	prior := priorMask(gray, varWindow, cfg.WhitePercentile, cfg.VarPercentile)
	defer prior.Close()

	barrier := edgeBarrier(gray)
	defer barrier.Close()

	seeds := seedMask(gray, cfg, scale)
	defer seeds.Close()

	// Dilate the seed raster so seeds of one intended balloon coalesce
	// into a single cluster.
	grouped := gocv.NewMat()
	defer grouped.Close()
	mergeKernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(mergePx, mergePx))
	defer mergeKernel.Close()
	gocv.Dilate(seeds, &grouped, mergeKernel)

	growPx := maxInt(5, int(5*scale))
	local := geometry.Rect{Width: w, Height: h}

	var candidates []geometry.Rect
	clusters := gocv.FindContours(grouped, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	for i := 0; i < clusters.Size(); i++ {
		bb := gocv.BoundingRect(clusters.At(i))
		cluster := geometry.Rect{X: bb.Min.X, Y: bb.Min.Y, Width: bb.Dx(), Height: bb.Dy()}
		if cluster.Area() < cfg.MinArea || cluster.Area() > cfg.MaxArea {
			continue
		}
		if aspect(cluster) > cfg.MaxAspect {
			continue
		}

		window := cluster.Expand(expandPx).ClipTo(local)
		if !window.Valid() {
			continue
		}
		grown, ok := growCluster(seeds, prior, barrier, window, growPx, cfg.GrowIters)
		if !ok {
			continue
		}
		if whiteRatio(prior, grown) < cfg.MinWhiteRatio {
			continue
		}
		candidates = append(candidates, grown)
	}
	clusters.Close()

	if len(candidates) == 0 {
		candidates = outlineFallback(gray, cfg)
	}

	for i := range candidates {
		candidates[i] = candidates[i].Translate(panelRect.X, panelRect.Y)
	}
	return NMS(candidates, cfg.NMSIoU)
}

// scaleFactor derives the parameter scale from panel size, clamped so
// tiny or huge panels do not push kernels to degenerate sizes.
func scaleFactor(w, h int) float64 {
	s := float64(maxInt(w, h)) / referenceDim
	if s < 0.6 {
		return 0.6
	}
	if s > 2.5 {
		return 2.5
	}
	return s
}

// priorMask marks pixels that are simultaneously above the brightness
// percentile and below the local-variance percentile: smooth and bright
// pixels that plausibly belong to a balloon interior.
func priorMask(gray gocv.Mat, varWindow int, whitePct, varPct float64) gocv.Mat {
	whiteThr := imgutil.Percentile(gray, whitePct)
	white := gocv.NewMat()
	defer white.Close()
	gocv.Threshold(gray, &white, float32(whiteThr), 255, gocv.ThresholdBinary)

	variance := imgutil.LocalVariance(gray, varWindow)
	defer variance.Close()
	varThr := imgutil.PercentileF32(variance, varPct)

	smoothF := gocv.NewMat()
	defer smoothF.Close()
	gocv.Threshold(variance, &smoothF, float32(varThr), 255, gocv.ThresholdBinaryInv)
	smooth := gocv.NewMat()
	defer smooth.Close()
	smoothF.ConvertTo(&smooth, gocv.MatTypeCV8U)

	prior := gocv.NewMat()
	gocv.BitwiseAnd(white, smooth, &prior)
	return prior
}

// edgeBarrier builds the dilated gradient-edge map that stops region
// growth at balloon rims.
func edgeBarrier(gray gocv.Mat) gocv.Mat {
	edge := gocv.NewMat()
	gocv.Canny(gray, &edge, 70, 160)
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(3, 3))
	defer kernel.Close()
	gocv.Dilate(edge, &edge, kernel)
	return edge
}

// seedMask rasterizes glyph seed blobs onto a binary mask. Seeds come
// from a maximal-stable-region extractor run over two contrast maps:
// inverted blackhat pops dark-on-bright glyphs (small areas), inverted
// tophat pops bright-on-dark glyphs (large areas). gocv's MSER binding
// exposes no area bounds, so the per-scale bounds are applied to the
// returned blob boxes.
func seedMask(gray gocv.Mat, cfg config.Bubble, scale float64) gocv.Mat {
	ksz := maxInt(9, int(15*scale))
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(ksz, ksz))
	defer kernel.Close()

	tophat := gocv.NewMat()
	defer tophat.Close()
	gocv.MorphologyEx(gray, &tophat, gocv.MorphTophat, kernel)
	blackhat := gocv.NewMat()
	defer blackhat.Close()
	gocv.MorphologyEx(gray, &blackhat, gocv.MorphBlackhat, kernel)

	invTop := gocv.NewMat()
	defer invTop.Close()
	gocv.BitwiseNot(tophat, &invTop)
	invBlk := gocv.NewMat()
	defer invBlk.Close()
	gocv.BitwiseNot(blackhat, &invBlk)

	s2 := scale * scale
	aminBase := int(math.Round(float64(cfg.MSERMinArea) * s2))
	amaxBase := int(math.Round(float64(cfg.MSERMaxArea) * s2))

	small := mserBoxes(invBlk, maxInt(8, aminBase/2), int(0.4*float64(amaxBase)))
	large := mserBoxes(invTop, int(0.3*float64(amaxBase)), amaxBase)

	w, h := gray.Cols(), gray.Rows()
	local := geometry.Rect{Width: w, Height: h}
	seeds := gocv.Zeros(h, w, gocv.MatTypeCV8U)
	for _, b := range append(small, large...) {
		b = b.ClipTo(local)
		if !b.Valid() {
			continue
		}
		gocv.Rectangle(&seeds, image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height), maskWhite, -1)
	}
	return seeds
}

// mserBoxes extracts stable-region blobs and keeps those whose box
// area falls within [minArea, maxArea].
func mserBoxes(img gocv.Mat, minArea, maxArea int) []geometry.Rect {
	if maxArea <= minArea {
		return nil
	}
	mser := gocv.NewMSER()
	defer mser.Close()

	var boxes []geometry.Rect
	for _, kp := range mser.Detect(img) {
		side := int(kp.Size + 0.5)
		if side < 1 {
			side = 1
		}
		b := geometry.Rect{
			X:      int(kp.X - kp.Size/2),
			Y:      int(kp.Y - kp.Size/2),
			Width:  side,
			Height: side,
		}
		if b.Area() < minArea || b.Area() > maxArea {
			continue
		}
		boxes = append(boxes, b)
	}
	return boxes
}

// growCluster iteratively dilates the seed pixels inside the window,
// intersects with the prior and subtracts the edge barrier, until the
// region stabilizes or the iteration cap is reached. The bounding box
// of the largest connected component is the candidate.
func growCluster(seeds, prior, barrier gocv.Mat, window geometry.Rect, growPx, iters int) (geometry.Rect, bool) {
	winRect := image.Rect(window.X, window.Y, window.X+window.Width, window.Y+window.Height)

	seedView := seeds.Region(winRect)
	defer seedView.Close()
	if gocv.CountNonZero(seedView) == 0 {
		return geometry.Rect{}, false
	}
	priorView := prior.Region(winRect)
	defer priorView.Close()
	barrierView := barrier.Region(winRect)
	defer barrierView.Close()

	allowed := gocv.NewMat()
	defer allowed.Close()
	notBarrier := gocv.NewMat()
	defer notBarrier.Close()
	gocv.BitwiseNot(barrierView, &notBarrier)
	gocv.BitwiseAnd(priorView, notBarrier, &allowed)

	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(growPx, growPx))
	defer kernel.Close()

	region := seedView.Clone()
	defer region.Close()
	prev := gocv.NewMat()
	defer prev.Close()
	diff := gocv.NewMat()
	defer diff.Close()

	if iters < 1 {
		iters = 1
	}
	for i := 0; i < iters; i++ {
		region.CopyTo(&prev)
		gocv.Dilate(region, &region, kernel)
		gocv.BitwiseAnd(region, allowed, &region)
		gocv.AbsDiff(region, prev, &diff)
		if gocv.CountNonZero(diff) == 0 {
			break
		}
	}

	contours := gocv.FindContours(region, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	bestArea := 0.0
	var best geometry.Rect
	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		if a := gocv.ContourArea(cnt); a > bestArea {
			bestArea = a
			bb := gocv.BoundingRect(cnt)
			best = geometry.Rect{X: bb.Min.X, Y: bb.Min.Y, Width: bb.Dx(), Height: bb.Dy()}
		}
	}
	if !best.Valid() {
		return geometry.Rect{}, false
	}
	return best.Translate(window.X, window.Y), true
}

// whiteRatio is the fraction of prior-mask pixels inside the box.
func whiteRatio(prior gocv.Mat, box geometry.Rect) float64 {
	view := prior.Region(image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height))
	defer view.Close()
	return float64(gocv.CountNonZero(view)) / float64(box.Area())
}

// outlineFallback is the coarser detector used when region growth
// yields nothing: close the edges morphologically, take external
// contours, and keep those passing area, solidity, and mean-brightness
// filters.
func outlineFallback(gray gocv.Mat, cfg config.Bubble) []geometry.Rect {
	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 60, 150)
	kernel := gocv.GetStructuringElement(gocv.MorphEllipse, image.Pt(5, 5))
	defer kernel.Close()
	gocv.MorphologyEx(edges, &edges, gocv.MorphClose, kernel)

	brightFloor := imgutil.Percentile(gray, 70)

	contours := gocv.FindContours(edges, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []geometry.Rect
	for i := 0; i < contours.Size(); i++ {
		cnt := contours.At(i)
		bb := gocv.BoundingRect(cnt)
		box := geometry.Rect{X: bb.Min.X, Y: bb.Min.Y, Width: bb.Dx(), Height: bb.Dy()}
		if box.Area() < cfg.MinArea || box.Area() > cfg.MaxArea {
			continue
		}
		if solidity(cnt) < cfg.MinSolidity {
			continue
		}
		view := gray.Region(image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height))
		mean := view.Mean().Val1
		view.Close()
		if mean < brightFloor {
			continue
		}
		out = append(out, box)
	}
	return out
}

// solidity is contour area over convex-hull area.
func solidity(cnt gocv.PointVector) float64 {
	poly := make([]geometry.Point2D, cnt.Size())
	for i := 0; i < cnt.Size(); i++ {
		p := cnt.At(i)
		poly[i] = geometry.Point2D{X: float64(p.X), Y: float64(p.Y)}
	}
	hullArea := geometry.PolygonArea(geometry.ConvexHull(poly))
	if hullArea <= 0 {
		return 0
	}
	return gocv.ContourArea(cnt) / hullArea
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

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
