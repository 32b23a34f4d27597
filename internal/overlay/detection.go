// Package overlay draws object-detection results on top of the displayed
// plot image.
package overlay

import (
	"gemini-viewer/pkg/geometry"
)

// Detection is one predicted object in natural-image pixel coordinates.
// The JSON layout matches the prediction records returned by the inference
// service: box center (x, y), box size, and optional mask polygon points.
type Detection struct {
	Class      string             `json:"class"`
	Confidence float64            `json:"confidence"`
	CenterX    float64            `json:"x"`
	CenterY    float64            `json:"y"`
	Width      float64            `json:"width"`
	Height     float64            `json:"height"`
	Points     []geometry.Point2D `json:"points,omitempty"`
}

// Box returns the bounding box as a rectangle.
func (d Detection) Box() geometry.Rect {
	return geometry.RectFromCenter(d.CenterX, d.CenterY, d.Width, d.Height)
}

// HasMask reports whether the detection carries a usable polygon.
func (d Detection) HasMask() bool {
	return len(d.Points) >= 3
}

// Contains reports whether an image-space point hits the detection: the
// polygon for segmentation results, the box otherwise.
func (d Detection) Contains(p geometry.Point2D) bool {
	if d.HasMask() {
		return geometry.PointInPolygon(p, d.Points)
	}
	return d.Box().Contains(p)
}

// HasMasks reports whether any detection in the set has polygon data. Called
// on a plot's full prediction set it decides Options.MasksPresent.
func HasMasks(dets []Detection) bool {
	for _, d := range dets {
		if d.HasMask() {
			return true
		}
	}
	return false
}

// Classes returns the distinct class labels in first-seen order.
func Classes(dets []Detection) []string {
	seen := make(map[string]bool)
	var out []string
	for _, d := range dets {
		if seen[d.Class] {
			continue
		}
		seen[d.Class] = true
		out = append(out, d.Class)
	}
	return out
}

// Filter selects which detections are shown. It never mutates the source
// list.
type Filter struct {
	// Threshold is the minimum confidence, 0-1.
	Threshold float64
	// Classes is the set of selected classes. A nil map selects every class;
	// an empty non-nil map selects none.
	Classes map[string]bool
}

// SelectClasses builds a class set from labels.
func SelectClasses(labels ...string) map[string]bool {
	m := make(map[string]bool, len(labels))
	for _, l := range labels {
		m[l] = true
	}
	return m
}

// Visible reports whether d passes the filter.
func (f Filter) Visible(d Detection) bool {
	if d.Confidence < f.Threshold {
		return false
	}
	if f.Classes == nil {
		return true
	}
	return f.Classes[d.Class]
}

// Apply returns the visible detections in their original order.
func (f Filter) Apply(dets []Detection) []Detection {
	out := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if f.Visible(d) {
			out = append(out, d)
		}
	}
	return out
}

// CountByClass counts visible detections per class.
func (f Filter) CountByClass(dets []Detection) map[string]int {
	counts := make(map[string]int)
	for _, d := range dets {
		if f.Visible(d) {
			counts[d.Class]++
		}
	}
	return counts
}

// HitTest returns the index of the first detection containing the
// image-space point, or -1.
func HitTest(dets []Detection, p geometry.Point2D) int {
	for i, d := range dets {
		if d.Contains(p) {
			return i
		}
	}
	return -1
}
