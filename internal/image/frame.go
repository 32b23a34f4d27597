package image

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"gemini-viewer/internal/viewport"
	"gemini-viewer/pkg/geometry"
)

// Background fills the parts of the frame not covered by the image.
var Background = color.RGBA{40, 40, 40, 255} // Dark gray background

// RenderFrame draws base into a container-sized frame through the geometry's
// transform, then draws overlay, whose bounds are in container pixels, at
// those bounds. dst is reused when it already has the container's size.
func RenderFrame(dst *image.RGBA, base *Layer, overlay *image.RGBA, g viewport.Geometry) *image.RGBA {
	w := int(math.Round(g.ContainerWidth))
	h := int(math.Round(g.ContainerHeight))
	if w <= 0 || h <= 0 {
		return nil
	}
	if dst == nil || dst.Bounds().Dx() != w || dst.Bounds().Dy() != h {
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}
	draw.Draw(dst, dst.Bounds(), image.NewUniform(Background), image.Point{}, draw.Src)

	if base == nil || base.Image == nil || !base.Visible || !g.Valid() {
		return dst
	}

	src := base.Image
	b := src.Bounds()
	// Source pixel (x, y) lands where natural point (x - min) displays.
	s2d := f64.Aff3(g.Transform().
		Compose(geometry.Translation(-float64(b.Min.X), -float64(b.Min.Y))).
		ToMatrix())
	var opts *xdraw.Options
	if base.Opacity < 1 {
		alpha := uint8(math.Max(0, base.Opacity) * 255)
		opts = &xdraw.Options{SrcMask: image.NewUniform(color.Alpha{A: alpha})}
	}
	xdraw.ApproxBiLinear.Transform(dst, s2d, src, b, xdraw.Over, opts)

	// The overlay canvas is already in container pixels.
	if overlay != nil {
		draw.Draw(dst, overlay.Bounds(), overlay, overlay.Bounds().Min, draw.Over)
	}
	return dst
}
