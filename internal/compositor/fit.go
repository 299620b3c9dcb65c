package compositor

import (
	"image"
	"math"
)

// Rect is a placement in floating point canvas units.
type Rect struct {
	X, Y, W, H float64
}

// Empty reports whether the rect covers no area.
func (r Rect) Empty() bool {
	return r.W <= 0 || r.H <= 0
}

// Image rounds the rect to integer pixel bounds.
func (r Rect) Image() image.Rectangle {
	x0 := int(math.Round(r.X))
	y0 := int(math.Round(r.Y))
	return image.Rect(x0, y0, x0+int(math.Round(r.W)), y0+int(math.Round(r.H)))
}

// Fit scales a srcW x srcH bitmap to fit inside dstW x dstH without changing
// its aspect ratio and centres it on both axes. A wider source spans the full
// width; otherwise it spans the full height.
func Fit(srcW, srcH, dstW, dstH float64) Rect {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Rect{}
	}
	srcAspect := srcW / srcH
	dstAspect := dstW / dstH
	var w, h float64
	if srcAspect > dstAspect {
		w = dstW
		h = dstW / srcAspect
	} else {
		h = dstH
		w = dstH * srcAspect
	}
	return Rect{X: (dstW - w) / 2, Y: (dstH - h) / 2, W: w, H: h}
}

// FitIn is Fit offset into an inner box, used for page margins.
func FitIn(srcW, srcH float64, box Rect) Rect {
	r := Fit(srcW, srcH, box.W, box.H)
	if r.Empty() {
		return r
	}
	r.X += box.X
	r.Y += box.Y
	return r
}
