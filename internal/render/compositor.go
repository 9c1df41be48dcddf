package render

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// compose draws src onto dst at the given placement using Over compositing.
// Unrotated layers take the cheaper scale path; rotated layers go through an
// affine transform around the placement center.
func compose(dst *image.RGBA, src *image.RGBA, p Placement) {
	if src == nil || p.Width <= 0 || p.Height <= 0 {
		return
	}

	var opts *draw.Options
	if p.Opacity < 1 {
		alpha := uint8(math.Round(p.Opacity * 255))
		if alpha == 0 {
			return
		}
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: alpha})}
	}

	rot := math.Mod(p.RotationDeg, 360)
	if rot == 0 {
		rect := image.Rect(p.X, p.Y, p.X+p.Width, p.Y+p.Height)
		draw.ApproxBiLinear.Scale(dst, rect, src, src.Bounds(), draw.Over, opts)
		return
	}

	draw.BiLinear.Transform(dst, layerAffine(src.Bounds(), p, rot), src, src.Bounds(), draw.Over, opts)
}

// layerAffine maps source pixels to canvas pixels: scale the source to the
// placement size, rotate around the placement center, translate into place.
func layerAffine(srcBounds image.Rectangle, p Placement, rotDeg float64) f64.Aff3 {
	sx := float64(p.Width) / float64(srcBounds.Dx())
	sy := float64(p.Height) / float64(srcBounds.Dy())

	theta := rotDeg * math.Pi / 180
	sin, cos := math.Sincos(theta)

	// Source center in source coordinates; destination center in canvas
	// coordinates.
	scx := float64(srcBounds.Min.X) + float64(srcBounds.Dx())/2
	scy := float64(srcBounds.Min.Y) + float64(srcBounds.Dy())/2
	cx := float64(p.X) + float64(p.Width)/2
	cy := float64(p.Y) + float64(p.Height)/2

	return f64.Aff3{
		cos * sx, -sin * sy, cx - cos*sx*scx + sin*sy*scy,
		sin * sx, cos * sy, cy - sin*sx*scx - cos*sy*scy,
	}
}
