package imgutil

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"
)

func TestToMatRejectsEmptyImage(t *testing.T) {
	m, err := ToMat(image.NewRGBA(image.Rect(0, 0, 0, 0)))
	if err == nil {
		m.Close()
		t.Fatal("expected error for empty image")
	}
}

func TestToMatPreservesBrightness(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			src.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}
	m, err := ToMat(src)
	if err != nil {
		t.Fatalf("ToMat: %v", err)
	}
	defer m.Close()

	if m.Rows() != 4 || m.Cols() != 4 || m.Channels() != 3 {
		t.Fatalf("mat shape %dx%dx%d, want 4x4x3", m.Rows(), m.Cols(), m.Channels())
	}
	if v := m.GetUCharAt(0, 0); v != 200 {
		t.Fatalf("blue channel = %d, want 200", v)
	}
}

func TestPercentileOnUniformMat(t *testing.T) {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), 8, 8, gocv.MatTypeCV8U)
	defer m.Close()

	if got := Percentile(m, 50); got != 128 {
		t.Fatalf("median of uniform mat = %v, want 128", got)
	}
	if got := Percentile(m, 90); got != 128 {
		t.Fatalf("p90 of uniform mat = %v, want 128", got)
	}
}

func TestLocalVarianceFlatImageIsZero(t *testing.T) {
	m := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(77, 0, 0, 0), 16, 16, gocv.MatTypeCV8U)
	defer m.Close()

	variance := LocalVariance(m, 9)
	defer variance.Close()

	if nz := gocv.CountNonZero(variance); nz != 0 {
		t.Fatalf("flat image produced %d non-zero variance pixels", nz)
	}
}
