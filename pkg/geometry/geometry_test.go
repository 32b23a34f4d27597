package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointInPolygon(t *testing.T) {
	square := []Point2D{{0, 0}, {10, 0}, {10, 10}, {0, 10}}
	// Concave "U" shape; the notch (4..6, 5..10) is outside.
	u := []Point2D{{0, 0}, {10, 0}, {10, 10}, {6, 10}, {6, 5}, {4, 5}, {4, 10}, {0, 10}}

	tests := []struct {
		name    string
		polygon []Point2D
		p       Point2D
		want    bool
	}{
		{"square center", square, Point2D{5, 5}, true},
		{"square outside", square, Point2D{11, 5}, false},
		{"square above", square, Point2D{5, -1}, false},
		{"u arm", u, Point2D{2, 8}, true},
		{"u notch", u, Point2D{5, 8}, false},
		{"u base", u, Point2D{5, 2}, true},
		{"degenerate", []Point2D{{0, 0}, {1, 1}}, Point2D{0.5, 0.5}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, PointInPolygon(tc.p, tc.polygon))
		})
	}
}

func TestAffineInverseRoundTrip(t *testing.T) {
	tr := Translation(-400, 12.5).Compose(Scale(0.4, 0.4))
	inv, ok := tr.Inverse()
	require.True(t, ok)

	for _, p := range []Point2D{{0, 0}, {4000, 3000}, {1234.5, 17.25}} {
		back := inv.Apply(tr.Apply(p))
		assert.InDelta(t, p.X, back.X, 1e-9)
		assert.InDelta(t, p.Y, back.Y, 1e-9)
	}

	_, ok = Scale(0, 1).Inverse()
	assert.False(t, ok)
}

func TestRectFromCenter(t *testing.T) {
	r := RectFromCenter(50, 40, 20, 10)
	assert.Equal(t, Rect{X: 40, Y: 35, Width: 20, Height: 10}, r)
	assert.True(t, r.Contains(Point2D{50, 40}))
	assert.False(t, r.Contains(Point2D{61, 40}))
	assert.Equal(t, Point2D{60, 45}, r.BottomRight())
}

func TestBoundingBox(t *testing.T) {
	tri := []Point2D{{0, 0}, {4, 0}, {0, 3}}
	assert.Equal(t, Rect{Width: 4, Height: 3}, BoundingBox(tri))
	assert.Equal(t, Rect{}, BoundingBox(nil))
}

func TestTransformPoints(t *testing.T) {
	tri := []Point2D{{0, 0}, {4, 0}, {0, 3}}
	got := TransformPoints(tri, Translation(10, -1).Compose(Scale(2, 2)))
	assert.Equal(t, []Point2D{{10, -1}, {18, -1}, {10, 5}}, got)
	assert.Equal(t, Point2D{4, 0}, tri[1], "input is not modified")
}

func TestToMatrixLayout(t *testing.T) {
	m := Translation(5, 6).Compose(Scale(2, 3)).ToMatrix()
	assert.Equal(t, [6]float64{2, 0, 5, 0, 3, 6}, m)
}
