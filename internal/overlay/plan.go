package overlay

import (
	"fmt"
	"image/color"

	"gemini-viewer/internal/viewport"
	"gemini-viewer/pkg/colorutil"
	"gemini-viewer/pkg/geometry"
)

// LabelSpacing is the minimum distance in display pixels between two shown
// confidence labels.
const LabelSpacing = 60.0

const maskFillAlpha = 77 // ~30%

// Options are the viewer toggles that affect painting.
type Options struct {
	ShowBoxes  bool
	ShowMasks  bool
	ShowLabels bool
	// MasksPresent marks a plot whose full prediction set has masks, even
	// when none of them pass the filter. Boxes stay hidden for such plots.
	MasksPresent bool
	// Hovered is the index into the visible list of the detection under the
	// pointer, or -1.
	Hovered int
}

// DefaultOptions shows everything with nothing hovered.
func DefaultOptions() Options {
	return Options{ShowBoxes: true, ShowMasks: true, ShowLabels: true, Hovered: -1}
}

// OpKind identifies a paint operation.
type OpKind int

const (
	OpPolygon OpKind = iota
	OpBox
	OpLabel
)

// Op is a single paint operation in canvas coordinates. The canvas is the
// displayed image rectangle, so (0,0) is the image's top-left corner on
// screen.
type Op struct {
	Kind OpKind
	// Index of the detection in the visible list.
	Index int

	Points []geometry.Point2D // OpPolygon
	Rect   geometry.Rect      // OpBox
	Anchor geometry.Point2D   // OpLabel, top-left of the label
	Text   string             // OpLabel

	Stroke color.RGBA
	Fill   color.RGBA // zero means no fill
	Width  int
}

// Plan computes paint operations for the visible detections. Per detection
// the order is mask, box, label. Boxes are dropped for the whole plot when any
// of its detections has a mask; visible may be a filtered subset, so callers
// report the plot-level answer in opts.MasksPresent.
func Plan(visible []Detection, g viewport.Geometry, colors *colorutil.ClassColors, opts Options) []Op {
	if !g.Valid() || len(visible) == 0 {
		return nil
	}

	drawBoxes := opts.ShowBoxes && !opts.MasksPresent && !HasMasks(visible)
	toCanvas := geometry.Scale(g.Scale(), g.Scale())
	shown := LabelVisibility(visible, g, opts.Hovered)

	var ops []Op
	for i, d := range visible {
		col := colors.Color(d.Class)
		width := 2
		if i == opts.Hovered {
			width = 3
		}

		if opts.ShowMasks && d.HasMask() {
			ops = append(ops, Op{
				Kind:   OpPolygon,
				Index:  i,
				Points: geometry.TransformPoints(d.Points, toCanvas),
				Stroke: col,
				Fill:   colorutil.WithAlpha(col, maskFillAlpha),
				Width:  width,
			})
		}

		if drawBoxes {
			box := d.Box()
			tl := g.ToCanvas(box.TopLeft())
			br := g.ToCanvas(box.BottomRight())
			ops = append(ops, Op{
				Kind:   OpBox,
				Index:  i,
				Rect:   geometry.NewRect(tl.X, tl.Y, br.X-tl.X, br.Y-tl.Y),
				Stroke: col,
				Width:  width,
			})
		}

		if opts.ShowLabels && shown[i] {
			ops = append(ops, Op{
				Kind:   OpLabel,
				Index:  i,
				Anchor: labelAnchor(d, g),
				Text:   FormatConfidence(d.Confidence),
				Stroke: colorutil.White,
				Fill:   col,
			})
		}
	}
	return ops
}

// FormatConfidence renders a confidence as a whole percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// labelAnchor is the canvas position of a detection's label: the top-left of
// its box, or of its polygon's bounds for masks.
func labelAnchor(d Detection, g viewport.Geometry) geometry.Point2D {
	if d.HasMask() {
		return g.ToCanvas(geometry.BoundingBox(d.Points).TopLeft())
	}
	return g.ToCanvas(d.Box().TopLeft())
}

// LabelVisibility decides which labels are shown. Walking the list in order,
// a label is suppressed when an already shown label is closer than
// LabelSpacing display pixels. The hovered detection always shows its label.
func LabelVisibility(visible []Detection, g viewport.Geometry, hovered int) []bool {
	shown := make([]bool, len(visible))
	var anchors []geometry.Point2D
	for i, d := range visible {
		a := labelAnchor(d, g)
		if i != hovered && crowded(a, anchors) {
			continue
		}
		shown[i] = true
		anchors = append(anchors, a)
	}
	return shown
}

func crowded(a geometry.Point2D, anchors []geometry.Point2D) bool {
	for _, b := range anchors {
		if a.Distance(b) < LabelSpacing {
			return true
		}
	}
	return false
}
