// Package colorutil provides shared color utilities for the detection overlay.
package colorutil

import (
	"image/color"
)

// White is the label text color.
var White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// Palette is the fixed set of class colors, assigned in first-seen order.
var Palette = []color.RGBA{
	{R: 255, G: 59, B: 48, A: 255},   // red
	{R: 52, G: 199, B: 89, A: 255},   // green
	{R: 0, G: 122, B: 255, A: 255},   // blue
	{R: 255, G: 149, B: 0, A: 255},   // orange
	{R: 175, G: 82, B: 222, A: 255},  // purple
	{R: 255, G: 204, B: 0, A: 255},   // yellow
	{R: 90, G: 200, B: 250, A: 255},  // teal
	{R: 255, G: 45, B: 85, A: 255},   // pink
	{R: 162, G: 132, B: 94, A: 255},  // brown
	{R: 142, G: 142, B: 147, A: 255}, // gray
}

// WithAlpha returns c with its alpha replaced. RGBA values are kept
// unpremultiplied; callers that draw with image/draw should use
// Premultiply.
func WithAlpha(c color.RGBA, a uint8) color.RGBA {
	c.A = a
	return c
}

// Premultiply converts an unpremultiplied color into the premultiplied form
// image.RGBA stores.
func Premultiply(c color.RGBA) color.RGBA {
	a := uint32(c.A)
	return color.RGBA{
		R: uint8(uint32(c.R) * a / 255),
		G: uint8(uint32(c.G) * a / 255),
		B: uint8(uint32(c.B) * a / 255),
		A: c.A,
	}
}

// ClassColors assigns palette colors to class labels deterministically by the
// order in which classes are first seen.
type ClassColors struct {
	order  []string
	colors map[string]color.RGBA
}

// NewClassColors builds a color map from labels in first-seen order.
// Duplicate labels are ignored.
func NewClassColors(labels []string) *ClassColors {
	cc := &ClassColors{colors: make(map[string]color.RGBA)}
	for _, l := range labels {
		if _, ok := cc.colors[l]; ok {
			continue
		}
		cc.colors[l] = Palette[len(cc.order)%len(Palette)]
		cc.order = append(cc.order, l)
	}
	return cc
}

// Color returns the color for a class, or gray for unknown classes.
func (cc *ClassColors) Color(label string) color.RGBA {
	if cc != nil {
		if c, ok := cc.colors[label]; ok {
			return c
		}
	}
	return Palette[len(Palette)-1]
}

// Classes returns the class labels in assignment order.
func (cc *ClassColors) Classes() []string {
	if cc == nil {
		return nil
	}
	out := make([]string, len(cc.order))
	copy(out, cc.order)
	return out
}

// SameClasses reports whether the map was built from exactly the given set
// of labels, regardless of order or duplicates.
func (cc *ClassColors) SameClasses(labels []string) bool {
	if cc == nil {
		return false
	}
	seen := make(map[string]bool, len(labels))
	for _, l := range labels {
		if _, ok := cc.colors[l]; !ok {
			return false
		}
		seen[l] = true
	}
	return len(seen) == len(cc.order)
}
