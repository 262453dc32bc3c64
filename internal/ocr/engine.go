package ocr

import (
	"context"
	"log/slog"
	"time"

	"comicscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// Engine is the word-recognition capability. The pipeline depends only
// on this signature, never on a concrete engine, so engines are
// pluggable and mockable.
type Engine interface {
	// Name identifies the engine in word source tags and logs.
	Name() string
	// Recognize returns the word boxes found on the image. Implementations
	// honor ctx cancellation where their backend allows it.
	Recognize(ctx context.Context, img gocv.Mat) ([]Word, error)
}

// RecognizeAll runs every engine over the same page and unions the
// results. Each engine gets its own timeout; an engine that errors or
// times out contributes zero words and is logged as non-fatal, so a
// broken backend never blocks the pipeline. Words with degenerate
// geometry are dropped.
func RecognizeAll(ctx context.Context, img gocv.Mat, engines []Engine, timeout time.Duration, log *slog.Logger) []Word {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	var all []Word
	for _, eng := range engines {
		words, err := runEngine(ctx, img, eng, timeout)
		if err != nil {
			log.Warn("recognizer engine failed", "engine", eng.Name(), "error", err)
			continue
		}
		kept := 0
		for _, w := range words {
			if !w.Box.Valid() {
				continue
			}
			if len(w.Sources) == 0 {
				w.Sources = []string{eng.Name()}
			}
			all = append(all, w)
			kept++
		}
		log.Debug("recognizer engine finished", "engine", eng.Name(), "words", kept)
	}
	return all
}

type engineResult struct {
	words []Word
	err   error
}

// runEngine wraps one engine call with a timeout. Engines whose
// backends ignore cancellation are abandoned in their goroutine; the
// controller moves on either way.
func runEngine(ctx context.Context, img gocv.Mat, eng Engine, timeout time.Duration) ([]Word, error) {
	if timeout <= 0 {
		return eng.Recognize(ctx, img)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan engineResult, 1)
	go func() {
		words, err := eng.Recognize(ctx, img)
		ch <- engineResult{words: words, err: err}
	}()

	select {
	case res := <-ch:
		return res.words, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// WordsInside returns the words whose center lies inside the scope
// rectangle.
func WordsInside(words []Word, scope geometry.Rect) []Word {
	var out []Word
	for _, w := range words {
		if scope.ContainsCenterOf(w.Box) {
			out = append(out, w)
		}
	}
	return out
}
