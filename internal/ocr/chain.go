package ocr

import (
	"context"
	"image"
	"log/slog"
	"strings"

	"comicscan/pkg/geometry"

	"gocv.io/x/gocv"
)

// Chain transcribes bubble regions with an ordered fallback list of
// engines: the first engine producing non-empty text wins and the rest
// are not consulted for that bubble.
type Chain struct {
	engines []Engine
	log     *slog.Logger
}

// NewChain builds a chain over the given engines in priority order.
func NewChain(log *slog.Logger, engines ...Engine) *Chain {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Chain{engines: engines, log: log}
}

// Transcribe OCRs each bubble region. Bubbles with degenerate geometry
// or that no engine can read yield an empty text with source "none".
func (c *Chain) Transcribe(ctx context.Context, img gocv.Mat, bubbles []geometry.Rect) []BubbleText {
	out := make([]BubbleText, 0, len(bubbles))
	bounds := geometry.Rect{Width: img.Cols(), Height: img.Rows()}
	for _, b := range bubbles {
		clipped := b.ClipTo(bounds)
		if clipped.Width <= 1 || clipped.Height <= 1 {
			out = append(out, BubbleText{Box: b, Source: "none"})
			continue
		}
		text, source := c.transcribeRegion(ctx, img, clipped)
		out = append(out, BubbleText{Box: b, Text: text, Source: source})
	}
	return out
}

func (c *Chain) transcribeRegion(ctx context.Context, img gocv.Mat, box geometry.Rect) (string, string) {
	for _, eng := range c.engines {
		text, err := regionText(ctx, img, box, eng)
		if err != nil {
			c.log.Debug("bubble transcription engine failed", "engine", eng.Name(), "error", err)
			continue
		}
		if text != "" {
			return text, eng.Name()
		}
	}
	return "", "none"
}

// regionText prefers a dedicated region recognizer when the engine has
// one; otherwise it runs full recognition on the cropped region and
// joins the detected words.
func regionText(ctx context.Context, img gocv.Mat, box geometry.Rect, eng Engine) (string, error) {
	type regionRecognizer interface {
		RecognizeRegion(ctx context.Context, img gocv.Mat, box geometry.Rect) (string, error)
	}
	if rr, ok := eng.(regionRecognizer); ok {
		return rr.RecognizeRegion(ctx, img, box)
	}

	region := img.Region(image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height))
	defer region.Close()
	words, err := eng.Recognize(ctx, region)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(words))
	for _, w := range words {
		if w.Text != "" {
			parts = append(parts, w.Text)
		}
	}
	return strings.Join(parts, " "), nil
}
