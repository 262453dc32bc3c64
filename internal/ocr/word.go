// Package ocr provides the word-recognition capability used by the
// reconciliation pipeline: a pluggable engine interface, a Tesseract
// implementation, a union runner that degrades engine failures to zero
// words, an ensemble merger for overlapping per-engine detections, and
// an ordered first-non-empty chain for per-bubble transcription.
package ocr

import "comicscan/pkg/geometry"

// Word is one recognized text box on the page. Words are produced once
// per page and treated as read-only afterwards.
type Word struct {
	Box     geometry.Rect `json:"box"`
	Text    string        `json:"text"`
	Conf    float64       `json:"conf"`
	Sources []string      `json:"sources"`
}

// BubbleText is the transcription of a single bubble region.
type BubbleText struct {
	Box    geometry.Rect `json:"box"`
	Text   string        `json:"text"`
	Source string        `json:"source"`
}
