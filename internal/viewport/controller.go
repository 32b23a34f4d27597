package viewport

import (
	"gemini-viewer/pkg/geometry"
)

// Controller turns wheel, drag and command input into geometry updates.
// It is not safe for concurrent use; the viewer drives it from the UI
// goroutine only.
type Controller struct {
	geom Geometry

	dragging bool
	lastDrag geometry.Point2D

	onChange func(Geometry)
}

// NewController returns a controller with an empty geometry.
func NewController() *Controller {
	return &Controller{geom: New(0, 0, 0, 0)}
}

// OnChange sets a callback invoked after every geometry change.
func (c *Controller) OnChange(callback func(Geometry)) {
	c.onChange = callback
}

// Geometry returns the current geometry.
func (c *Controller) Geometry() Geometry {
	return c.geom
}

func (c *Controller) set(g Geometry) {
	c.geom = g
	if c.onChange != nil {
		c.onChange(g)
	}
}

// LoadImage seeds the geometry for a freshly loaded image and resets zoom
// and pan to their defaults.
func (c *Controller) LoadImage(naturalW, naturalH float64) {
	c.dragging = false
	c.set(New(naturalW, naturalH, c.geom.ContainerWidth, c.geom.ContainerHeight))
}

// Resize updates the container size. Pan is re-centered on axes that no
// longer overflow.
func (c *Controller) Resize(w, h float64) {
	if w == c.geom.ContainerWidth && h == c.geom.ContainerHeight {
		return
	}
	c.set(recenter(c.geom.WithContainer(w, h)))
}

// Wheel zooms by ticks steps of 0.05 (positive zooms in) keeping the image
// point under cursor fixed on screen.
func (c *Controller) Wheel(cursor geometry.Point2D, ticks float64) {
	c.ZoomAt(cursor, c.geom.Zoom+ticks*zoomStep)
}

// ZoomAt sets the zoom factor, keeping the image point under cursor fixed
// wherever the pan range allows it.
func (c *Controller) ZoomAt(cursor geometry.Point2D, zoom float64) {
	g := c.geom
	zoom = ClampZoom(g.Mode, zoom)
	if !g.Valid() {
		g.Zoom = zoom
		c.set(g)
		return
	}

	anchor := g.ToImageSpace(cursor)

	g.Zoom = zoom
	s := g.Scale()
	ox, oy := g.Overflow()

	// Solve origin' = cursor - anchor*s' for the pan that produces it; with
	// overflow o the origin is -o*pan/100.
	g.PanX = solvePan(cursor.X-anchor.X*s, ox)
	g.PanY = solvePan(cursor.Y-anchor.Y*s, oy)
	c.set(g)
}

func solvePan(origin, overflow float64) float64 {
	if overflow <= 0 {
		return centerPan
	}
	return ClampPan(-origin * 100 / overflow)
}

// ZoomIn zooms one step around the container center.
func (c *Controller) ZoomIn() {
	c.Wheel(c.center(), 1)
}

// ZoomOut zooms out one step around the container center.
func (c *Controller) ZoomOut() {
	c.Wheel(c.center(), -1)
}

func (c *Controller) center() geometry.Point2D {
	return geometry.Point2D{X: c.geom.ContainerWidth / 2, Y: c.geom.ContainerHeight / 2}
}

// FitToScreen switches to manual mode with the whole image visible.
func (c *Controller) FitToScreen() {
	g := c.geom
	g.Mode = ModeManual
	g.Zoom = 1
	g.PanX, g.PanY = centerPan, centerPan
	c.dragging = false
	c.set(g)
}

// ResetToDefault switches back to auto mode at zoom 1, centered.
func (c *Controller) ResetToDefault() {
	g := c.geom
	g.Mode = ModeAuto
	g.Zoom = 1
	g.PanX, g.PanY = centerPan, centerPan
	c.dragging = false
	c.set(g)
}

// BeginDrag starts a pan gesture at p. It returns false, and ignores the
// gesture, when the image fits inside the container.
func (c *Controller) BeginDrag(p geometry.Point2D) bool {
	if !c.geom.Valid() || !c.geom.Overflows() {
		c.dragging = false
		return false
	}
	c.dragging = true
	c.lastDrag = p
	return true
}

// DragTo continues a pan gesture.
func (c *Controller) DragTo(p geometry.Point2D) {
	if !c.dragging {
		return
	}
	delta := p.Sub(c.lastDrag)
	c.lastDrag = p
	c.PanBy(delta)
}

// PanBy converts a pixel delta into pan percentage changes on overflowing axes.
func (c *Controller) PanBy(delta geometry.Point2D) {
	g := c.geom
	ox, oy := g.Overflow()
	if ox <= 0 && oy <= 0 {
		return
	}
	if ox > 0 {
		g.PanX = ClampPan(g.PanX - delta.X/ox*100)
	}
	if oy > 0 {
		g.PanY = ClampPan(g.PanY - delta.Y/oy*100)
	}
	c.set(g)
}

// EndDrag finishes a pan gesture.
func (c *Controller) EndDrag() {
	c.dragging = false
}

// Dragging reports whether a pan gesture is active.
func (c *Controller) Dragging() bool {
	return c.dragging
}

// Apply runs a viewport command. Plot navigation and close are not viewport
// concerns and are reported back as unhandled.
func (c *Controller) Apply(cmd Command) bool {
	switch cmd {
	case CommandZoomIn:
		c.ZoomIn()
	case CommandZoomOut:
		c.ZoomOut()
	case CommandFit:
		c.FitToScreen()
	case CommandReset:
		c.ResetToDefault()
	default:
		return false
	}
	return true
}

func recenter(g Geometry) Geometry {
	ox, oy := g.Overflow()
	if ox <= 0 {
		g.PanX = centerPan
	}
	if oy <= 0 {
		g.PanY = centerPan
	}
	return g
}
