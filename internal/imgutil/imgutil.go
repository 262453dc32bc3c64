// Package imgutil provides shared pixel-level helpers for the
// detection pipeline: Mat conversion, grayscale percentiles, and the
// windowed local-variance map the bubble prior is built from.
package imgutil

import (
	"fmt"
	"image"
	"sort"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/stat"
)

// ToMat converts a Go image.Image to an 8-bit BGR OpenCV Mat.
func ToMat(srcImg image.Image) (gocv.Mat, error) {
	bounds := srcImg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return gocv.NewMat(), fmt.Errorf("empty image %dx%d", w, h)
	}

	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8UC3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := srcImg.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// 16-bit to 8-bit, BGR order for OpenCV
			mat.SetUCharAt(y, x*3+0, uint8(b>>8))
			mat.SetUCharAt(y, x*3+1, uint8(g>>8))
			mat.SetUCharAt(y, x*3+2, uint8(r>>8))
		}
	}
	return mat, nil
}

// Gray converts a BGR Mat to single-channel grayscale. Mats that are
// already single-channel are cloned. The caller owns the returned Mat.
func Gray(src gocv.Mat) gocv.Mat {
	if src.Channels() == 1 {
		return src.Clone()
	}
	gray := gocv.NewMat()
	gocv.CvtColor(src, &gray, gocv.ColorBGRToGray)
	return gray
}

// Percentile returns the p-th percentile (0-100) of the pixel values
// of a continuous 8-bit single-channel Mat.
func Percentile(m gocv.Mat, p float64) float64 {
	data, err := m.DataPtrUint8()
	if err != nil || len(data) == 0 {
		return 0
	}
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = float64(v)
	}
	sort.Float64s(vals)
	return stat.Quantile(clamp01(p/100), stat.Empirical, vals, nil)
}

// PercentileF32 is Percentile for continuous 32-bit float Mats, used on
// the local-variance map.
func PercentileF32(m gocv.Mat, p float64) float64 {
	data, err := m.DataPtrFloat32()
	if err != nil || len(data) == 0 {
		return 0
	}
	vals := make([]float64, len(data))
	for i, v := range data {
		vals[i] = float64(v)
	}
	sort.Float64s(vals)
	return stat.Quantile(clamp01(p/100), stat.Empirical, vals, nil)
}

// LocalVariance computes a windowed variance map of a grayscale Mat as
// blur(f^2) - blur(f)^2, clamped at zero. Low values mark locally
// smooth areas. The caller owns the returned CV32F Mat.
func LocalVariance(gray gocv.Mat, window int) gocv.Mat {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	k := image.Pt(window, window)

	f := gocv.NewMat()
	defer f.Close()
	gray.ConvertTo(&f, gocv.MatTypeCV32F)

	mean := gocv.NewMat()
	defer mean.Close()
	gocv.Blur(f, &mean, k)

	sq := gocv.NewMat()
	defer sq.Close()
	gocv.Multiply(f, f, &sq)

	meanSq := gocv.NewMat()
	defer meanSq.Close()
	gocv.Blur(sq, &meanSq, k)

	meanMean := gocv.NewMat()
	defer meanMean.Close()
	gocv.Multiply(mean, mean, &meanMean)

	variance := gocv.NewMat()
	gocv.Subtract(meanSq, meanMean, &variance)
	// Numeric noise can push the difference slightly negative.
	gocv.Threshold(variance, &variance, 0, 0, gocv.ThresholdToZero)
	return variance
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
