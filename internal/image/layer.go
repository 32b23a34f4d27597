// Package image provides plot image loading and the compositing of a plot
// image and its detection overlay into a viewer frame.
package image

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"

	_ "golang.org/x/image/tiff"

	"gemini-viewer/pkg/geometry"
)

// Layer is one image drawn into the viewer frame.
type Layer struct {
	Name    string      // Plot image file name
	Image   image.Image // Decoded image data
	Visible bool        // Layer visibility
	Opacity float64     // Layer opacity (0.0 - 1.0)
}

// NewLayer wraps a decoded image in a visible, opaque layer.
func NewLayer(name string, img image.Image) *Layer {
	return &Layer{
		Name:    name,
		Image:   img,
		Visible: true,
		Opacity: 1.0,
	}
}

// Decode decodes a PNG, JPEG or TIFF image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}

// Load loads an image from the specified path and returns a Layer.
func Load(path string) (*Layer, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer file.Close()

	img, err := Decode(file)
	if err != nil {
		return nil, err
	}
	return NewLayer(filepath.Base(path), img), nil
}

// Width returns the image width in pixels.
func (l *Layer) Width() int {
	if l == nil || l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dx()
}

// Height returns the image height in pixels.
func (l *Layer) Height() int {
	if l == nil || l.Image == nil {
		return 0
	}
	return l.Image.Bounds().Dy()
}

// Size returns the image dimensions.
func (l *Layer) Size() geometry.Size {
	return geometry.Size{
		Width:  float64(l.Width()),
		Height: float64(l.Height()),
	}
}
