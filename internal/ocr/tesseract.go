package ocr

import (
	"context"
	"fmt"
	"image"
	"strings"

	"comicscan/pkg/geometry"

	"github.com/otiai10/gosseract/v2"
	"gocv.io/x/gocv"
)

// Tesseract recognizes words through a gosseract client. The client is
// stateful and not safe for concurrent use; the union runner calls
// engines sequentially, which matches that constraint.
type Tesseract struct {
	client *gosseract.Client
}

// NewTesseract creates a Tesseract engine for the given languages
// (default "eng").
func NewTesseract(languages ...string) (*Tesseract, error) {
	if len(languages) == 0 {
		languages = []string{"eng"}
	}
	client := gosseract.NewClient()
	if err := client.SetLanguage(languages...); err != nil {
		client.Close()
		return nil, fmt.Errorf("set OCR language: %w", err)
	}
	return &Tesseract{client: client}, nil
}

// Close releases the underlying Tesseract resources.
func (t *Tesseract) Close() error {
	if t.client != nil {
		return t.client.Close()
	}
	return nil
}

// Name implements Engine.
func (t *Tesseract) Name() string { return "tesseract" }

// Recognize implements Engine: sparse-text page segmentation over the
// preprocessed page, one Word per detected box. Confidence is
// normalized from Tesseract's 0-100 range to [0,1].
func (t *Tesseract) Recognize(ctx context.Context, img gocv.Mat) ([]Word, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf, err := encodeForOCR(img)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	if err := t.client.SetPageSegMode(gosseract.PSM_SPARSE_TEXT); err != nil {
		return nil, fmt.Errorf("set page seg mode: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := t.client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("get word boxes: %w", err)
	}

	var words []Word
	for _, box := range boxes {
		text := cleanText(box.Word)
		if text == "" {
			continue
		}
		rect := geometry.Rect{
			X:      box.Box.Min.X,
			Y:      box.Box.Min.Y,
			Width:  box.Box.Dx(),
			Height: box.Box.Dy(),
		}
		if !rect.Valid() {
			continue
		}
		conf := box.Confidence / 100
		if conf < 0 {
			conf = 0
		}
		if conf > 1 {
			conf = 1
		}
		words = append(words, Word{
			Box:     rect,
			Text:    text,
			Conf:    conf,
			Sources: []string{t.Name()},
		})
	}
	return words, nil
}

// RecognizeRegion runs single-block recognition on one region of the
// image and returns the cleaned text. Used by the per-bubble chain.
func (t *Tesseract) RecognizeRegion(ctx context.Context, img gocv.Mat, box geometry.Rect) (string, error) {
	if img.Empty() {
		return "", fmt.Errorf("empty image")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	bounds := geometry.Rect{Width: img.Cols(), Height: img.Rows()}
	box = box.ClipTo(bounds)
	if !box.Valid() {
		return "", fmt.Errorf("invalid region bounds")
	}

	region := img.Region(image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height))
	defer region.Close()

	buf, err := encodeForOCR(region)
	if err != nil {
		return "", err
	}
	defer buf.Close()

	if err := t.client.SetPageSegMode(gosseract.PSM_SINGLE_BLOCK); err != nil {
		return "", fmt.Errorf("set page seg mode: %w", err)
	}
	if err := t.client.SetImageFromBytes(buf.GetBytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := t.client.Text()
	if err != nil {
		return "", fmt.Errorf("recognize region: %w", err)
	}
	return cleanText(text), nil
}

// encodeForOCR binarizes the image with Otsu's threshold, inverts
// light-on-dark text, and encodes PNG bytes for the Tesseract client.
func encodeForOCR(img gocv.Mat) (*gocv.NativeByteBuffer, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() == 3 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(gray, &binary, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)

	// Tesseract expects dark text on a light background.
	whiteRatio := float64(gocv.CountNonZero(binary)) / float64(binary.Rows()*binary.Cols())
	if whiteRatio < 0.5 {
		gocv.BitwiseNot(binary, &binary)
	}

	buf, err := gocv.IMEncode(gocv.PNGFileExt, binary)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}
	return buf, nil
}

func cleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.Join(strings.Fields(s), " ")
}
