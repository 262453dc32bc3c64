// Package pipeline orchestrates one page: panel segmentation,
// per-panel bubble detection, full-page word recognition, ensemble
// merging, and coverage reconciliation.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"comicscan/internal/bubble"
	"comicscan/internal/config"
	"comicscan/internal/ocr"
	"comicscan/internal/panel"
	"comicscan/internal/reconcile"
	"comicscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// Result is the analysis output for one page.
type Result struct {
	Panels  []panel.Panel   `json:"panels"`
	Bubbles []geometry.Rect `json:"bubbles"`
	// Words is the merged full-page word list, kept for diagnostics.
	Words []ocr.Word `json:"words"`
	// PageCoverage is the fraction of scored word centers contained in
	// some bubble after reconciliation.
	PageCoverage float64 `json:"page_coverage"`
}

// Analyzer runs the detection pipeline. Analyzers are cheap; pages are
// independent, so separate pages can be analyzed by separate Analyzers
// on separate goroutines.
type Analyzer struct {
	cfg     config.Config
	engines []ocr.Engine
	log     *slog.Logger
}

// New creates an Analyzer. A nil logger discards all output. Engines
// may be empty, in which case reconciliation has no ground truth and
// the initial detections are returned as-is.
func New(cfg config.Config, engines []ocr.Engine, log *slog.Logger) *Analyzer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Analyzer{cfg: cfg, engines: engines, log: log}
}

// AnalyzePage processes one decoded BGR page image.
func (a *Analyzer) AnalyzePage(ctx context.Context, img gocv.Mat) (*Result, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty page image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	panels := panel.Segment(img, a.cfg.Panel)
	a.log.Debug("panels segmented", "count", len(panels))

	bubbles := a.detectAll(img, panels)
	a.log.Debug("initial bubbles detected", "count", len(bubbles))

	timeout := time.Duration(a.cfg.OCR.EngineTimeoutS) * time.Second
	raw := ocr.RecognizeAll(ctx, img, a.engines, timeout, a.log)
	words := ocr.Merge(raw, a.cfg.Ensemble)
	a.log.Debug("page words recognized", "raw", len(raw), "merged", len(words))

	bubbles = reconcile.Page(img, panels, bubbles, words,
		reconcile.DetectorFunc(bubble.Detect), a.cfg, a.log)

	coverage := reconcile.PageCoverage(panels, bubbles, words, a.cfg.Reconcile.CountOrphanWords)
	a.log.Info("page analyzed",
		"panels", len(panels), "bubbles", len(bubbles),
		"words", len(words), "coverage", coverage)

	return &Result{
		Panels:       panels,
		Bubbles:      bubbles,
		Words:        words,
		PageCoverage: coverage,
	}, nil
}

// detectAll runs the bubble detector over every panel concurrently.
// Panels are independent; only the accumulated list is shared, guarded
// by a mutex.
func (a *Analyzer) detectAll(img gocv.Mat, panels []panel.Panel) []geometry.Rect {
	var (
		mu      sync.Mutex
		bubbles []geometry.Rect
		wg      sync.WaitGroup
	)
	for _, p := range panels {
		wg.Add(1)
		go func(p panel.Panel) {
			defer wg.Done()
			found := bubble.Detect(img, p.Bounds, a.cfg.Bubble)
			mu.Lock()
			bubbles = append(bubbles, found...)
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return bubbles
}

// TranscribeBubbles OCRs each bubble region with the analyzer's
// engines as an ordered first-non-empty chain. This output feeds
// downstream transcript assembly; it is separate from the full-page
// word pass used for reconciliation.
func (a *Analyzer) TranscribeBubbles(ctx context.Context, img gocv.Mat, bubbles []geometry.Rect) []ocr.BubbleText {
	chain := ocr.NewChain(a.log, orderEngines(a.engines, a.cfg.OCR.Backends)...)
	return chain.Transcribe(ctx, img, bubbles)
}

// orderEngines reorders engines to match the configured backend order;
// engines not named keep their relative order at the end.
func orderEngines(engines []ocr.Engine, order []string) []ocr.Engine {
	if len(order) == 0 {
		return engines
	}
	byName := make(map[string]ocr.Engine, len(engines))
	for _, e := range engines {
		byName[e.Name()] = e
	}
	var out []ocr.Engine
	taken := make(map[string]bool)
	for _, name := range order {
		if e, ok := byName[name]; ok && !taken[name] {
			out = append(out, e)
			taken[name] = true
		}
	}
	for _, e := range engines {
		if !taken[e.Name()] {
			out = append(out, e)
		}
	}
	return out
}
