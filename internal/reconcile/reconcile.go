// Package reconcile improves bubble coverage of recognized text.
//
// The controller compares per-panel word coverage against a threshold
// and, for weak panels, re-runs bubble detection with progressively
// relaxed thresholds, then optionally synthesizes bubbles directly from
// the uncovered word boxes. Retries and fallback are hard-capped, so
// the loop always terminates; failing to reach the threshold is a
// diagnostic, not an error.
package reconcile

import (
	"log/slog"
	"math"
	"sort"

	"comicscan/internal/bubble"
	"comicscan/internal/config"
	"comicscan/internal/ocr"
	"comicscan/internal/panel"
	"comicscan/pkg/geometry"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// Detector is the bubble-detection capability the controller re-runs
// on weak panels. It matches bubble.Detect and is injected so retry
// behavior is testable without real image processing.
type Detector interface {
	Detect(img gocv.Mat, panelRect geometry.Rect, cfg config.Bubble) []geometry.Rect
}

// DetectorFunc adapts a function to the Detector interface.
type DetectorFunc func(img gocv.Mat, panelRect geometry.Rect, cfg config.Bubble) []geometry.Rect

// Detect implements Detector.
func (f DetectorFunc) Detect(img gocv.Mat, panelRect geometry.Rect, cfg config.Bubble) []geometry.Rect {
	return f(img, panelRect, cfg)
}

// Page runs the per-panel Measure → Retry → Fallback → Merge state
// machine over the whole page and returns the revised bubble list after
// a final page-wide NMS pass. Words are the merged full-page ensemble
// output and act as ground truth for coverage.
func Page(img gocv.Mat, panels []panel.Panel, bubbles []geometry.Rect,
	words []ocr.Word, det Detector, cfg config.Config, log *slog.Logger) []geometry.Rect {

	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	if !cfg.Reconcile.Enable {
		log.Debug("reconciliation disabled")
		return bubbles
	}
	if len(words) == 0 {
		log.Debug("no recognized words, skipping reconciliation")
		return bubbles
	}

	final := make([]geometry.Rect, len(bubbles))
	copy(final, bubbles)

	for _, p := range panels {
		final = reconcilePanel(img, p, final, words, det, cfg, log)
	}

	return bubble.NMS(final, cfg.Bubble.NMSIoU)
}

func reconcilePanel(img gocv.Mat, p panel.Panel, final []geometry.Rect,
	words []ocr.Word, det Detector, cfg config.Config, log *slog.Logger) []geometry.Rect {

	inPanel := ocr.WordsInside(words, p.Bounds)
	cov := Coverage(inPanel, panelBubbles(final, p.Bounds))
	log.Debug("panel coverage measured",
		"panel", p.Rank, "words", len(inPanel), "coverage", cov)

	// Retry with cumulatively relaxed thresholds. Each pass derives its
	// config from the previous pass's, so pass N is reproducible from
	// the original config alone.
	passCfg := cfg
	for pass := 1; cov < cfg.Reconcile.CoverageThresh && pass <= cfg.Reconcile.MaxPasses; pass++ {
		passCfg = passCfg.Relaxed()
		detected := det.Detect(img, p.Bounds, passCfg.Bubble)
		added := 0
		for _, b := range detected {
			if p.Bounds.ContainsCenterOf(b) {
				final = append(final, b)
				added++
			}
		}
		final = bubble.NMS(final, cfg.Bubble.NMSIoU)
		cov = Coverage(inPanel, panelBubbles(final, p.Bounds))
		log.Debug("panel retry finished",
			"panel", p.Rank, "pass", pass, "added", added, "coverage", cov)
	}

	if cfg.Reconcile.FallbackFromWords && cov < cfg.Reconcile.CoverageThresh {
		synthesized := BubblesFromWords(inPanel, p.Bounds, cfg.Bubble.ExpandPx)
		if len(synthesized) > 0 {
			final = append(final, synthesized...)
			final = bubble.NMS(final, cfg.Bubble.NMSIoU)
			cov = Coverage(inPanel, panelBubbles(final, p.Bounds))
			log.Debug("panel fallback synthesized bubbles",
				"panel", p.Rank, "synthesized", len(synthesized), "coverage", cov)
		}
	}

	if cov < cfg.Reconcile.CoverageThresh {
		log.Info("panel coverage below threshold after reconciliation",
			"panel", p.Rank, "coverage", cov, "threshold", cfg.Reconcile.CoverageThresh)
	}
	return final
}

// Coverage returns the fraction of word centers contained in some
// bubble. A panel with no words is fully covered by definition.
func Coverage(words []ocr.Word, bubbles []geometry.Rect) float64 {
	if len(words) == 0 {
		return 1.0
	}
	covered := 0
	for _, w := range words {
		for _, b := range bubbles {
			if b.ContainsCenterOf(w.Box) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(words))
}

// PageCoverage is the page-level diagnostic: coverage over all words
// whose center lies in some panel. When countOrphans is set, words
// outside every panel are counted too, so orphaned text drags the
// number down instead of being ignored.
func PageCoverage(panels []panel.Panel, bubbles []geometry.Rect, words []ocr.Word, countOrphans bool) float64 {
	var scored []ocr.Word
	for _, w := range words {
		inPanel := false
		for _, p := range panels {
			if p.Bounds.ContainsCenterOf(w.Box) {
				inPanel = true
				break
			}
		}
		if inPanel || countOrphans {
			scored = append(scored, w)
		}
	}
	return Coverage(scored, bubbles)
}

// BubblesFromWords synthesizes bubble rectangles from word boxes: the
// boxes are rasterized onto a panel-sized mask, dilated with a kernel
// sized from the median word height so words of one balloon fuse, and
// each connected component becomes a margin-expanded bubble clipped to
// the panel. Components under 10px in either dimension are dropped.
func BubblesFromWords(words []ocr.Word, panelRect geometry.Rect, expandPx int) []geometry.Rect {
	if len(words) == 0 || !panelRect.Valid() {
		return nil
	}

	mask := gocv.Zeros(panelRect.Height, panelRect.Width, gocv.MatTypeCV8U)
	defer mask.Close()

	heights := make([]float64, 0, len(words))
	drawn := 0
	local := geometry.Rect{Width: panelRect.Width, Height: panelRect.Height}
	for _, w := range words {
		heights = append(heights, float64(w.Box.Height))
		b := w.Box.Translate(-panelRect.X, -panelRect.Y).ClipTo(local)
		if !b.Valid() {
			continue
		}
		gocv.Rectangle(&mask, imageRect(b), maskWhite, -1)
		drawn++
	}
	if drawn == 0 {
		return nil
	}

	sort.Float64s(heights)
	medianH := stat.Quantile(0.5, stat.Empirical, heights, nil)
	k := int(math.Max(5, 0.9*medianH))
	kernel := gocv.GetStructuringElement(gocv.MorphRect, imagePt(k))
	defer kernel.Close()
	gocv.Dilate(mask, &mask, kernel)

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	var out []geometry.Rect
	for i := 0; i < contours.Size(); i++ {
		bb := gocv.BoundingRect(contours.At(i))
		box := geometry.Rect{X: bb.Min.X, Y: bb.Min.Y, Width: bb.Dx(), Height: bb.Dy()}
		box = box.Expand(expandPx).ClipTo(local)
		if box.Width <= 10 || box.Height <= 10 {
			continue
		}
		out = append(out, box.Translate(panelRect.X, panelRect.Y))
	}
	return out
}

// panelBubbles selects the bubbles whose center lies in the panel.
func panelBubbles(bubbles []geometry.Rect, panelRect geometry.Rect) []geometry.Rect {
	var out []geometry.Rect
	for _, b := range bubbles {
		if panelRect.ContainsCenterOf(b) {
			out = append(out, b)
		}
	}
	return out
}
