// Package viewport holds the zoom/pan state of the detection viewer and the
// mapping between natural-image pixels and display pixels.
package viewport

import (
	"math"

	"gemini-viewer/pkg/geometry"
)

// Mode selects how the base scale of the image is chosen.
type Mode int

const (
	// ModeAuto scales the image so its height fills the container, then
	// multiplies by the user zoom.
	ModeAuto Mode = iota
	// ModeManual fits the whole image inside the container, then multiplies
	// by the user zoom.
	ModeManual
)

func (m Mode) String() string {
	switch m {
	case ModeAuto:
		return "auto"
	case ModeManual:
		return "fit"
	default:
		return "unknown"
	}
}

const (
	minZoom       = 0.1
	maxAutoZoom   = 5.0
	maxManualZoom = 3.0
	zoomStep      = 0.05
	centerPan     = 50.0
)

// ZoomBounds returns the allowed zoom range for a mode.
func ZoomBounds(m Mode) (lo, hi float64) {
	if m == ModeManual {
		return minZoom, maxManualZoom
	}
	return minZoom, maxAutoZoom
}

// ClampZoom clamps z into the mode's zoom range.
func ClampZoom(m Mode, z float64) float64 {
	lo, hi := ZoomBounds(m)
	return clamp(z, lo, hi)
}

// ClampPan clamps a pan percentage into [0, 100].
func ClampPan(p float64) float64 {
	return clamp(p, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// Geometry is the full display state of one image inside one container.
// Display coordinates are relative to the container's top-left corner.
type Geometry struct {
	NaturalWidth    float64
	NaturalHeight   float64
	ContainerWidth  float64
	ContainerHeight float64

	// BaseScale makes NaturalHeight*BaseScale == ContainerHeight.
	BaseScale float64
	// FitScale makes the whole image fit inside the container.
	FitScale float64

	Zoom float64
	Mode Mode

	// Pan percentages, 0-100 with 50 meaning centered.
	PanX float64
	PanY float64
}

// New returns the default geometry for an image in a container.
func New(naturalW, naturalH, containerW, containerH float64) Geometry {
	g := Geometry{
		NaturalWidth:  naturalW,
		NaturalHeight: naturalH,
		Zoom:          1,
		Mode:          ModeAuto,
		PanX:          centerPan,
		PanY:          centerPan,
	}
	return g.WithContainer(containerW, containerH)
}

// WithContainer returns g with a new container size and recomputed scales.
// Zoom and pan are kept.
func (g Geometry) WithContainer(w, h float64) Geometry {
	g.ContainerWidth = w
	g.ContainerHeight = h
	g.BaseScale, g.FitScale = 0, 0
	if g.NaturalWidth <= 0 || g.NaturalHeight <= 0 || w <= 0 || h <= 0 {
		return g
	}
	g.BaseScale = h / g.NaturalHeight
	g.FitScale = math.Min(w/g.NaturalWidth, h/g.NaturalHeight)
	return g
}

// Valid reports whether the geometry has a drawable image and container.
func (g Geometry) Valid() bool {
	return g.NaturalWidth > 0 && g.NaturalHeight > 0 &&
		g.ContainerWidth > 0 && g.ContainerHeight > 0 &&
		g.Scale() > 0
}

// Scale is the effective natural-to-display scale factor.
func (g Geometry) Scale() float64 {
	if g.Mode == ModeManual {
		return g.FitScale * g.Zoom
	}
	return g.BaseScale * g.Zoom
}

// DisplayedSize is the on-screen size of the whole image.
func (g Geometry) DisplayedSize() geometry.Size {
	s := g.Scale()
	return geometry.NewSize(g.NaturalWidth*s, g.NaturalHeight*s)
}

// Overflow returns how far the displayed image exceeds the container on each
// axis. Axes where the image fits report 0.
func (g Geometry) Overflow() (x, y float64) {
	d := g.DisplayedSize()
	return math.Max(0, d.Width-g.ContainerWidth), math.Max(0, d.Height-g.ContainerHeight)
}

// Overflows reports whether the image exceeds the container on any axis.
func (g Geometry) Overflows() bool {
	x, y := g.Overflow()
	return x > 0 || y > 0
}

// PanOffset is the translation applied to the image by the pan percentages,
// overflow*(50-pan)/50 per axis. Panning to 0 shifts the image right by its
// full overflow so the left edge becomes visible. It is exactly 0 on axes
// where the image fits.
func (g Geometry) PanOffset() geometry.Point2D {
	ox, oy := g.Overflow()
	return geometry.Point2D{
		X: panOffset(ox, g.PanX),
		Y: panOffset(oy, g.PanY),
	}
}

func panOffset(overflow, pan float64) float64 {
	if overflow <= 0 {
		return 0
	}
	return -overflow * (pan - centerPan) / centerPan
}

// Origin is the display position of the image's top-left corner. A fitting
// axis is centered; an overflowing axis starts from the centered position and
// moves by half the pan offset, so pan 0 shows the left/top edge and pan 100
// the right/bottom edge.
func (g Geometry) Origin() geometry.Point2D {
	d := g.DisplayedSize()
	off := g.PanOffset()
	return geometry.Point2D{
		X: (g.ContainerWidth-d.Width)/2 + off.X/2,
		Y: (g.ContainerHeight-d.Height)/2 + off.Y/2,
	}
}

// DisplayRect is the image's displayed rectangle in container coordinates.
func (g Geometry) DisplayRect() geometry.Rect {
	o := g.Origin()
	d := g.DisplayedSize()
	return geometry.NewRect(o.X, o.Y, d.Width, d.Height)
}

// Transform maps natural-image pixels to display pixels.
func (g Geometry) Transform() geometry.AffineTransform {
	o := g.Origin()
	s := g.Scale()
	return geometry.Translation(o.X, o.Y).Compose(geometry.Scale(s, s))
}

// ToDisplay maps a natural-image point to container coordinates.
// An invalid geometry maps every point to itself.
func (g Geometry) ToDisplay(p geometry.Point2D) geometry.Point2D {
	if !g.Valid() {
		return p
	}
	return g.Transform().Apply(p)
}

// ToImageSpace is the exact inverse of ToDisplay.
func (g Geometry) ToImageSpace(p geometry.Point2D) geometry.Point2D {
	if !g.Valid() {
		return p
	}
	inv, ok := g.Transform().Inverse()
	if !ok {
		return p
	}
	return inv.Apply(p)
}

// ToCanvas maps a natural-image point into the overlay canvas, which is
// positioned exactly over DisplayRect.
func (g Geometry) ToCanvas(p geometry.Point2D) geometry.Point2D {
	s := g.Scale()
	return geometry.Scale(s, s).Apply(p)
}
