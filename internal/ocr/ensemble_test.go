package ocr

import (
	"testing"

	"comicscan/internal/config"
	"comicscan/pkg/geometry"
)

func ensembleCfg() config.Ensemble {
	return config.Ensemble{MergeIoU: 0.5, PreferLongerText: true, ConfWeightedAvg: true}
}

func TestMergeOverlappingEngineWords(t *testing.T) {
	// Two detections of the same word from different engines,
	// IoU 0.8, confidences 0.9 and 0.4.
	hi := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 80, Height: 10},
		Text: "HELLO", Conf: 0.9, Sources: []string{"tesseract"}}
	lo := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 100, Height: 10},
		Text: "HELO", Conf: 0.4, Sources: []string{"mock"}}
	if iou := hi.Box.IoU(lo.Box); iou != 0.8 {
		t.Fatalf("test setup: IoU = %v, want 0.8", iou)
	}

	merged := Merge([]Word{lo, hi}, ensembleCfg())
	if len(merged) != 1 {
		t.Fatalf("merged %d words, want 1", len(merged))
	}
	m := merged[0]

	if m.Text != "HELLO" {
		t.Fatalf("text = %q, want HELLO", m.Text)
	}
	if m.Conf != 0.9 {
		t.Fatalf("conf = %v, want 0.9 (cluster max)", m.Conf)
	}
	if len(m.Sources) != 2 || m.Sources[0] != "mock" || m.Sources[1] != "tesseract" {
		t.Fatalf("sources = %v, want union of both tags", m.Sources)
	}
	// Confidence-weighted width must land closer to the 0.9-confidence
	// box than to the midpoint of the two.
	if m.Box.Width >= 90 {
		t.Fatalf("width = %d, want below the 90 midpoint, biased toward the confident box", m.Box.Width)
	}
	if m.Box.Width < 80 {
		t.Fatalf("width = %d, want within the member range", m.Box.Width)
	}
}

func TestMergePrefersLongerTextByRuneCount(t *testing.T) {
	// "日本語" is 9 bytes but only 3 runes; the 5-rune ASCII text is the
	// longer recognition and must win even against the seed.
	cjk := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 80, Height: 10}, Text: "日本語", Conf: 0.9}
	ascii := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 80, Height: 10}, Text: "HELLO", Conf: 0.4}

	merged := Merge([]Word{cjk, ascii}, ensembleCfg())
	if len(merged) != 1 {
		t.Fatalf("merged %d words, want 1", len(merged))
	}
	if merged[0].Text != "HELLO" {
		t.Fatalf("text = %q, want HELLO (most runes)", merged[0].Text)
	}
}

func TestMergeKeepsDisjointWords(t *testing.T) {
	a := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 50, Height: 10}, Text: "ONE", Conf: 0.9}
	b := Word{Box: geometry.Rect{X: 200, Y: 0, Width: 50, Height: 10}, Text: "TWO", Conf: 0.8}

	merged := Merge([]Word{a, b}, ensembleCfg())
	if len(merged) != 2 {
		t.Fatalf("merged %d words, want 2", len(merged))
	}
}

func TestMergeSeedBoxWhenAveragingDisabled(t *testing.T) {
	cfg := ensembleCfg()
	cfg.ConfWeightedAvg = false

	hi := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 80, Height: 10}, Text: "A", Conf: 0.9}
	lo := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 100, Height: 10}, Text: "B", Conf: 0.4}

	merged := Merge([]Word{lo, hi}, cfg)
	if len(merged) != 1 {
		t.Fatalf("merged %d words, want 1", len(merged))
	}
	if merged[0].Box != hi.Box {
		t.Fatalf("box = %+v, want the seed's box %+v", merged[0].Box, hi.Box)
	}
}

func TestMergeDeterministicOnEqualConfidence(t *testing.T) {
	a := Word{Box: geometry.Rect{X: 0, Y: 0, Width: 40, Height: 10}, Text: "FIRST", Conf: 0.5}
	b := Word{Box: geometry.Rect{X: 500, Y: 0, Width: 40, Height: 10}, Text: "SECOND", Conf: 0.5}

	m1 := Merge([]Word{a, b}, ensembleCfg())
	m2 := Merge([]Word{a, b}, ensembleCfg())
	if len(m1) != 2 || len(m2) != 2 {
		t.Fatalf("merged counts: %d, %d, want 2, 2", len(m1), len(m2))
	}
	if m1[0].Text != m2[0].Text || m1[0].Text != "FIRST" {
		t.Fatal("merge order not stable on input order for equal confidences")
	}
}

func TestMergeEmptyInput(t *testing.T) {
	if got := Merge(nil, ensembleCfg()); got != nil {
		t.Fatalf("Merge(nil) = %v, want nil", got)
	}
}

func TestWordsInsideUsesCenterRule(t *testing.T) {
	scope := geometry.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	in := Word{Box: geometry.Rect{X: 80, Y: 80, Width: 30, Height: 30}}   // center (95,95)
	out := Word{Box: geometry.Rect{X: 95, Y: 95, Width: 30, Height: 30}}  // center (110,110)

	got := WordsInside([]Word{in, out}, scope)
	if len(got) != 1 {
		t.Fatalf("WordsInside kept %d words, want 1", len(got))
	}
	if got[0].Box != in.Box {
		t.Fatalf("kept wrong word: %+v", got[0].Box)
	}
}
