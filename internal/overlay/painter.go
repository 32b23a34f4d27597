package overlay

import (
	"image"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"gemini-viewer/internal/viewport"
	"gemini-viewer/pkg/colorutil"
	"gemini-viewer/pkg/geometry"
)

const labelPadding = 3

// Painter renders paint operations into a transparent RGBA canvas covering
// the part of the displayed image inside the container. The canvas bounds are
// in container pixels, so it composites at its own Bounds(). The buffer is
// reallocated only when the visible size changes.
type Painter struct {
	buf    *image.RGBA
	raster *vector.Rasterizer
	face   font.Face
	allocs int
	// toFrame maps canvas coordinates (relative to the image's displayed
	// top-left corner) to container pixels.
	toFrame geometry.AffineTransform
	// rasterPixels counts rasterizer coverage samples in the last Paint.
	rasterPixels int
}

// NewPainter creates a painter with the built-in 7x13 label font.
func NewPainter() *Painter {
	return &Painter{raster: vector.NewRasterizer(0, 0), face: basicfont.Face7x13}
}

// Resize makes the canvas cover r, reporting whether a new buffer was
// allocated. A canvas of the same size is moved in place.
func (p *Painter) Resize(r image.Rectangle) bool {
	if p.buf != nil && p.buf.Rect.Dx() == r.Dx() && p.buf.Rect.Dy() == r.Dy() {
		p.buf.Rect = r
		return false
	}
	p.buf = image.NewRGBA(r)
	p.allocs++
	return true
}

// Allocations returns how many canvas buffers the painter has allocated.
func (p *Painter) Allocations() int {
	return p.allocs
}

// VisibleRect is the whole-pixel part of the displayed image that lies
// inside the container, in container pixels.
func VisibleRect(g viewport.Geometry) image.Rectangle {
	if !g.Valid() {
		return image.Rectangle{}
	}
	d := g.DisplayRect()
	container := image.Rect(0, 0, int(math.Round(g.ContainerWidth)), int(math.Round(g.ContainerHeight)))
	return pixelBounds(d.X, d.Y, d.X+d.Width, d.Y+d.Height).Intersect(container)
}

// pixelBounds is the smallest pixel rectangle covering the given extent,
// ignoring float noise below 1e-9.
func pixelBounds(x0, y0, x1, y1 float64) image.Rectangle {
	const eps = 1e-9
	return image.Rect(
		int(math.Floor(x0+eps)), int(math.Floor(y0+eps)),
		int(math.Ceil(x1-eps)), int(math.Ceil(y1-eps)),
	)
}

// Render plans and paints the visible detections for geometry g.
func (p *Painter) Render(visible []Detection, g viewport.Geometry, colors *colorutil.ClassColors, opts Options) *image.RGBA {
	return p.Paint(g, Plan(visible, g, colors, opts))
}

// Paint clears the canvas and draws ops. It returns nil when no part of the
// image is visible.
func (p *Painter) Paint(g viewport.Geometry, ops []Op) *image.RGBA {
	r := VisibleRect(g)
	if r.Empty() {
		return nil
	}
	p.Resize(r)
	clear(p.buf.Pix)
	o := g.Origin()
	p.toFrame = geometry.Translation(o.X, o.Y)
	p.rasterPixels = 0

	for _, op := range ops {
		switch op.Kind {
		case OpPolygon:
			p.drawPolygon(op)
		case OpBox:
			p.drawBox(op)
		case OpLabel:
			p.drawLabel(op)
		}
	}
	return p.buf
}

// drawPolygon fills and outlines a mask. Both passes rasterize only the
// polygon's clipped bounds.
func (p *Painter) drawPolygon(op Op) {
	if len(op.Points) < 3 {
		return
	}
	half := strokeHalf(op.Width)
	pts := geometry.TransformPoints(op.Points, p.toFrame)
	bb := geometry.BoundingBox(pts)
	area := pixelBounds(bb.X-half-1, bb.Y-half-1, bb.X+bb.Width+half+1, bb.Y+bb.Height+half+1).
		Intersect(p.buf.Rect)
	if area.Empty() {
		return
	}
	local := geometry.TransformPoints(pts, geometry.Translation(-float64(area.Min.X), -float64(area.Min.Y)))

	if op.Fill.A > 0 {
		p.raster.Reset(area.Dx(), area.Dy())
		p.rasterPixels += area.Dx() * area.Dy()
		p.raster.MoveTo(float32(local[0].X), float32(local[0].Y))
		for _, pt := range local[1:] {
			p.raster.LineTo(float32(pt.X), float32(pt.Y))
		}
		p.raster.ClosePath()
		p.raster.Draw(p.buf, area, image.NewUniform(colorutil.Premultiply(op.Fill)), image.Point{})
	}
	p.strokePath(local, true, half, area, op)
}

func strokeHalf(width int) float64 {
	if width <= 0 {
		return 1
	}
	return float64(width) / 2
}

// strokePath outlines a path, given relative to area.Min, by rasterizing one
// quad per segment into area.
func (p *Painter) strokePath(pts []geometry.Point2D, closed bool, half float64, area image.Rectangle, op Op) {
	p.raster.Reset(area.Dx(), area.Dy())
	p.rasterPixels += area.Dx() * area.Dy()
	n := len(pts)
	segments := n - 1
	if closed {
		segments = n
	}
	for i := 0; i < segments; i++ {
		a, b := pts[i], pts[(i+1)%n]
		dx, dy := b.X-a.X, b.Y-a.Y
		length := math.Hypot(dx, dy)
		if length == 0 {
			continue
		}
		nx, ny := -dy/length*half, dx/length*half
		p.raster.MoveTo(float32(a.X+nx), float32(a.Y+ny))
		p.raster.LineTo(float32(b.X+nx), float32(b.Y+ny))
		p.raster.LineTo(float32(b.X-nx), float32(b.Y-ny))
		p.raster.LineTo(float32(a.X-nx), float32(a.Y-ny))
		p.raster.ClosePath()
	}
	p.raster.Draw(p.buf, area, image.NewUniform(colorutil.Premultiply(op.Stroke)), image.Point{})
}

func (p *Painter) drawBox(op Op) {
	tl := p.toFrame.Apply(op.Rect.TopLeft())
	r := geometry.NewRect(tl.X, tl.Y, op.Rect.Width, op.Rect.Height)
	x1, y1 := int(math.Round(r.X)), int(math.Round(r.Y))
	x2, y2 := int(math.Round(r.X+r.Width)), int(math.Round(r.Y+r.Height))
	t := op.Width
	if t <= 0 {
		t = 2
	}
	src := image.NewUniform(colorutil.Premultiply(op.Stroke))
	edges := []image.Rectangle{
		image.Rect(x1, y1, x2, y1+t), // top
		image.Rect(x1, y2-t, x2, y2), // bottom
		image.Rect(x1, y1, x1+t, y2), // left
		image.Rect(x2-t, y1, x2, y2), // right
	}
	for _, e := range edges {
		draw.Draw(p.buf, e.Intersect(p.buf.Rect), src, image.Point{}, draw.Over)
	}
}

// drawLabel draws the text on a filled tag sitting just above the anchor, or
// just below it when the anchor is at the image's top edge.
func (p *Painter) drawLabel(op Op) {
	metrics := p.face.Metrics()
	textW := font.MeasureString(p.face, op.Text).Ceil()
	tagW := textW + 2*labelPadding
	tagH := metrics.Height.Ceil() + labelPadding

	anchor := p.toFrame.Apply(op.Anchor)
	x := int(math.Round(anchor.X))
	y := int(math.Round(anchor.Y)) - tagH
	if op.Anchor.Y < float64(tagH) {
		y = int(math.Round(anchor.Y))
	}
	tag := image.Rect(x, y, x+tagW, y+tagH)
	draw.Draw(p.buf, tag.Intersect(p.buf.Rect), image.NewUniform(colorutil.Premultiply(op.Fill)), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  p.buf,
		Src:  image.NewUniform(op.Stroke),
		Face: p.face,
		Dot:  fixed.P(x+labelPadding, y+labelPadding/2+metrics.Ascent.Ceil()),
	}
	d.DrawString(op.Text)
}
