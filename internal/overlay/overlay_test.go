package overlay

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gemini-viewer/internal/viewport"
	"gemini-viewer/pkg/colorutil"
	"gemini-viewer/pkg/geometry"
)

func box(class string, conf, cx, cy, w, h float64) Detection {
	return Detection{Class: class, Confidence: conf, CenterX: cx, CenterY: cy, Width: w, Height: h}
}

func square(x, y, size float64) []geometry.Point2D {
	return []geometry.Point2D{{X: x, Y: y}, {X: x + size, Y: y}, {X: x + size, Y: y + size}, {X: x, Y: y + size}}
}

// 4000x3000 image in an 800x600 container: display scale 0.2.
func fieldGeometry() viewport.Geometry {
	return viewport.New(4000, 3000, 800, 600)
}

func TestFilter(t *testing.T) {
	dets := []Detection{
		box("Flower", 0.9, 0, 0, 1, 1),
		box("Pod", 0.4, 0, 0, 1, 1),
		box("Flower", 0.5, 0, 0, 1, 1),
	}

	all := Filter{Threshold: 0.5}
	assert.Len(t, all.Apply(dets), 2)
	assert.Equal(t, map[string]int{"Flower": 2}, all.CountByClass(dets))

	podsOnly := Filter{Threshold: 0, Classes: SelectClasses("Pod")}
	got := podsOnly.Apply(dets)
	require.Len(t, got, 1)
	assert.Equal(t, "Pod", got[0].Class)

	none := Filter{Classes: SelectClasses()}
	assert.Empty(t, none.Apply(dets))

	// Source list is untouched.
	assert.Len(t, dets, 3)
	assert.Equal(t, []string{"Flower", "Pod"}, Classes(dets))
}

func TestHitTest(t *testing.T) {
	dets := []Detection{
		box("Flower", 0.9, 100, 100, 50, 50),
		box("Pod", 0.9, 110, 110, 50, 50),
		{Class: "Leaf", Confidence: 0.8, CenterX: 500, CenterY: 500, Width: 200, Height: 200,
			Points: []geometry.Point2D{{X: 400, Y: 400}, {X: 600, Y: 400}, {X: 400, Y: 600}}},
	}

	assert.Equal(t, 0, HitTest(dets, geometry.Point2D{X: 110, Y: 110}), "first match wins")
	assert.Equal(t, 1, HitTest(dets, geometry.Point2D{X: 130, Y: 130}))
	assert.Equal(t, -1, HitTest(dets, geometry.Point2D{X: 300, Y: 300}))

	// Inside the triangle.
	assert.Equal(t, 2, HitTest(dets, geometry.Point2D{X: 420, Y: 420}))
	// Inside the bounding box but outside the triangle.
	assert.Equal(t, -1, HitTest(dets, geometry.Point2D{X: 580, Y: 580}))
}

func TestLabelVisibility(t *testing.T) {
	g := fieldGeometry()
	// Box top-left corners at (1000,1000) and (1100,1000): 20 display px apart.
	near := []Detection{
		box("Flower", 0.9, 1050, 1050, 100, 100),
		box("Flower", 0.8, 1150, 1050, 100, 100),
	}

	assert.Equal(t, []bool{true, false}, LabelVisibility(near, g, -1))
	assert.Equal(t, []bool{true, false}, LabelVisibility(near, g, 0))
	assert.Equal(t, []bool{true, true}, LabelVisibility(near, g, 1))

	// 1000 image px = 200 display px apart.
	far := []Detection{
		box("Flower", 0.9, 1050, 1050, 100, 100),
		box("Flower", 0.8, 2050, 1050, 100, 100),
	}
	assert.Equal(t, []bool{true, true}, LabelVisibility(far, g, -1))

	// Zooming in spreads labels apart in display space.
	g.Zoom = 5
	assert.Equal(t, []bool{true, true}, LabelVisibility(near, g, -1))
}

func TestPlanOrderAndMaskPrecedence(t *testing.T) {
	g := fieldGeometry()
	dets := []Detection{
		box("Flower", 0.9, 500, 500, 100, 100),
		{Class: "Pod", Confidence: 0.7, CenterX: 2050, CenterY: 2050, Width: 100, Height: 100,
			Points: square(2000, 2000, 100)},
	}
	colors := colorutil.NewClassColors(Classes(dets))

	ops := Plan(dets, g, colors, DefaultOptions())
	var kinds []OpKind
	for _, op := range ops {
		assert.NotEqual(t, OpBox, op.Kind, "boxes are hidden when any mask is present")
		kinds = append(kinds, op.Kind)
	}
	assert.Equal(t, []OpKind{OpLabel, OpPolygon, OpLabel}, kinds)

	poly := ops[1]
	assert.Equal(t, colors.Color("Pod"), poly.Stroke)
	assert.InDelta(t, 400, poly.Points[0].X, 1e-9)
	assert.InDelta(t, 400, poly.Points[0].Y, 1e-9)
	assert.Equal(t, "70%", ops[2].Text)
}

func TestPlanBoxesAndToggles(t *testing.T) {
	g := fieldGeometry()
	dets := []Detection{box("Flower", 0.9, 500, 500, 100, 100)}
	colors := colorutil.NewClassColors(Classes(dets))

	ops := Plan(dets, g, colors, DefaultOptions())
	require.Len(t, ops, 2)
	assert.Equal(t, OpBox, ops[0].Kind)
	r := ops[0].Rect
	assert.InDelta(t, 90, r.X, 1e-9)
	assert.InDelta(t, 90, r.Y, 1e-9)
	assert.InDelta(t, 20, r.Width, 1e-9)
	assert.InDelta(t, 20, r.Height, 1e-9)
	assert.Equal(t, OpLabel, ops[1].Kind)

	opts := DefaultOptions()
	opts.ShowBoxes = false
	opts.ShowLabels = false
	assert.Empty(t, Plan(dets, g, colors, opts))

	assert.Nil(t, Plan(dets, viewport.New(0, 0, 800, 600), colors, DefaultOptions()))
}

func TestPainterReusesCanvas(t *testing.T) {
	g := fieldGeometry()
	dets := []Detection{box("Flower", 0.9, 1250, 1250, 500, 500)}
	colors := colorutil.NewClassColors(Classes(dets))
	opts := DefaultOptions()
	opts.ShowLabels = false

	p := NewPainter()
	img := p.Render(dets, g, colors, opts)
	require.NotNil(t, img)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 600, img.Bounds().Dy())

	// Box spans canvas x/y 200..300.
	assert.NotZero(t, img.RGBAAt(200, 250).A, "left edge is stroked")
	assert.Zero(t, img.RGBAAt(250, 250).A, "box interior is not filled")
	assert.Zero(t, img.RGBAAt(10, 10).A)

	p.Render(dets, g, colors, opts)
	assert.Equal(t, 1, p.Allocations())

	// Zoomed in, the canvas is clipped to the container and keeps its size.
	g.Zoom = 2
	img = p.Render(dets, g, colors, opts)
	assert.Equal(t, 1, p.Allocations())
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())

	// Zoomed out, the canvas shrinks to the centered image.
	g.Zoom = 0.5
	img = p.Render(dets, g, colors, opts)
	assert.Equal(t, 2, p.Allocations())
	assert.Equal(t, image.Rect(200, 150, 600, 450), img.Bounds())
	// Box spans natural 1000..1500, display 100..150 from the origin at
	// (200, 150).
	assert.NotZero(t, img.RGBAAt(300, 275).A)
	assert.Zero(t, img.RGBAAt(325, 275).A)
}

func TestPainterPansClippedCanvas(t *testing.T) {
	g := fieldGeometry()
	g.Zoom = 2
	g.PanX, g.PanY = 0, 0 // left/top edge visible, origin (0, 0)
	dets := []Detection{box("Flower", 0.9, 250, 250, 100, 100)}
	colors := colorutil.NewClassColors(Classes(dets))
	opts := DefaultOptions()
	opts.ShowLabels = false

	p := NewPainter()
	img := p.Render(dets, g, colors, opts)
	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())
	// Box spans display 80..120 at scale 0.4.
	assert.NotZero(t, img.RGBAAt(80, 100).A)

	g.PanX, g.PanY = 100, 100 // origin (-800, -600): the box is off screen
	img = p.Render(dets, g, colors, opts)
	assert.Equal(t, 1, p.Allocations())
	for _, px := range []image.Point{{80, 100}, {0, 0}, {799, 599}} {
		assert.Zero(t, img.RGBAAt(px.X, px.Y).A, "%v", px)
	}
}

func TestPainterAlignsToFractionalOrigin(t *testing.T) {
	// Displayed 1000.8 wide in a 300 container: origin x is -350.4.
	g := viewport.New(1000.8, 100, 300, 100)
	require.InDelta(t, -350.4, g.Origin().X, 1e-9)

	// Left box edge at natural (and canvas) x 400.8, container x 50.4.
	dets := []Detection{box("Flower", 0.9, 410.8, 50, 20, 40)}
	colors := colorutil.NewClassColors(Classes(dets))
	opts := DefaultOptions()
	opts.ShowLabels = false

	img := NewPainter().Render(dets, g, colors, opts)
	require.NotNil(t, img)
	assert.NotZero(t, img.RGBAAt(50, 50).A, "edge lands on the rounded container position")
	assert.Zero(t, img.RGBAAt(49, 50).A)
	assert.Zero(t, img.RGBAAt(53, 50).A)
}

func TestPlanHidesBoxesWhenPlotMasksAreFiltered(t *testing.T) {
	g := fieldGeometry()
	dets := []Detection{
		box("Flower", 0.9, 500, 500, 100, 100),
		{Class: "Pod", Confidence: 0.3, CenterX: 2050, CenterY: 2050, Width: 100, Height: 100,
			Points: square(2000, 2000, 100)},
	}
	colors := colorutil.NewClassColors(Classes(dets))
	visible := Filter{Threshold: 0.5}.Apply(dets)
	require.Len(t, visible, 1)

	opts := DefaultOptions()
	opts.MasksPresent = HasMasks(dets)
	for _, op := range Plan(visible, g, colors, opts) {
		assert.NotEqual(t, OpBox, op.Kind)
	}

	// A plot without masks keeps its boxes.
	opts.MasksPresent = false
	ops := Plan(visible, g, colors, opts)
	require.NotEmpty(t, ops)
	assert.Equal(t, OpBox, ops[0].Kind)
}

// smallMasks returns n masks of 12x12 display px at zoom 2 (scale 0.4).
func smallMasks(n int) []Detection {
	dets := make([]Detection, n)
	for i := range dets {
		x := float64(i%20)*190 + 50
		y := float64(i/20)*140 + 50
		dets[i] = Detection{Class: "Flower", Confidence: 0.9, Points: square(x, y, 30)}
	}
	return dets
}

func TestPainterRasterizesOnlyMaskBounds(t *testing.T) {
	g := fieldGeometry()
	g.Zoom = 2
	g.PanX, g.PanY = 0, 0
	dets := smallMasks(200)
	colors := colorutil.NewClassColors(Classes(dets))
	opts := DefaultOptions()
	opts.ShowLabels = false

	p := NewPainter()
	require.NotNil(t, p.Render(dets, g, colors, opts))
	// Fill and stroke per mask, each over the 12 px mask padded by the
	// stroke: at most 18x18 px.
	assert.LessOrEqual(t, p.rasterPixels, 200*2*18*18)
	assert.Greater(t, p.rasterPixels, 0)
}

func BenchmarkPainterSmallMasks(b *testing.B) {
	g := fieldGeometry()
	g.Zoom = 2
	dets := smallMasks(200)
	colors := colorutil.NewClassColors(Classes(dets))
	p := NewPainter()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Render(dets, g, colors, DefaultOptions())
	}
}

func TestPainterFillsMasks(t *testing.T) {
	g := fieldGeometry()
	dets := []Detection{{Class: "Pod", Confidence: 0.9, Points: square(1000, 1000, 500)}}
	colors := colorutil.NewClassColors(Classes(dets))

	img := NewPainter().Render(dets, g, colors, DefaultOptions())
	require.NotNil(t, img)
	// Mask covers canvas 200..300; its center is filled semi-transparent.
	center := img.RGBAAt(250, 250)
	assert.NotZero(t, center.A)
	assert.Less(t, center.A, uint8(255))
	assert.Zero(t, img.RGBAAt(350, 350).A)
}

func TestPainterRejectsEmptyGeometry(t *testing.T) {
	assert.Nil(t, NewPainter().Paint(viewport.New(4000, 3000, 0, 0), nil))
	assert.True(t, VisibleRect(viewport.New(0, 0, 800, 600)).Empty())
}
