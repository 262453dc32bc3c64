package reconcile

import (
	"image"
	"image/color"

	"comicscan/pkg/geometry"
)

var maskWhite = color.RGBA{R: 255, G: 255, B: 255, A: 255}

func imageRect(r geometry.Rect) image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

func imagePt(k int) image.Point {
	return image.Pt(k, k)
}
