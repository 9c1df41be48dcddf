package render

import (
	"math"

	"lightcut/internal/timeline"
)

// Placement is a layer's transform resolved to canvas pixel space: top-left
// offset, scaled size, opacity, and rotation. Pure geometry, recomputed every
// frame from the clip transform and the canvas and source dimensions.
type Placement struct {
	X           int
	Y           int
	Width       int
	Height      int
	Opacity     float64
	RotationDeg float64
}

// placeLayer fits the source into the canvas preserving aspect ratio, applies
// the clip's scale, and centers the result at the canvas center shifted by
// the transform offsets (fractions of the canvas size). It returns ok=false
// when the layer cannot contribute pixels.
func placeLayer(t timeline.Transform, srcW, srcH, canvasW, canvasH int) (Placement, bool) {
	if srcW <= 0 || srcH <= 0 || canvasW <= 0 || canvasH <= 0 {
		return Placement{}, false
	}
	if t.Scale <= 0 || t.Opacity <= 0 {
		return Placement{}, false
	}

	fit := math.Min(float64(canvasW)/float64(srcW), float64(canvasH)/float64(srcH))
	w := int(math.Round(float64(srcW) * fit * t.Scale))
	h := int(math.Round(float64(srcH) * fit * t.Scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}

	cx := float64(canvasW)/2 + t.OffsetX*float64(canvasW)
	cy := float64(canvasH)/2 + t.OffsetY*float64(canvasH)

	return Placement{
		X:           int(math.Round(cx - float64(w)/2)),
		Y:           int(math.Round(cy - float64(h)/2)),
		Width:       w,
		Height:      h,
		Opacity:     math.Min(t.Opacity, 1),
		RotationDeg: t.RotationDeg,
	}, true
}
