// Command overlayrender draws detection overlays onto a plot image and writes
// the composed frame as a PNG.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image/png"
	"os"

	jsoniter "github.com/json-iterator/go"

	pimage "gemini-viewer/internal/image"
	"gemini-viewer/internal/overlay"
	"gemini-viewer/internal/viewport"
	"gemini-viewer/pkg/colorutil"
	"gemini-viewer/pkg/geometry"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	imagePath := flag.String("image", "", "Path to plot image (TIFF, PNG, or JPEG)")
	predPath := flag.String("predictions", "", "Path to predictions JSON")
	outPath := flag.String("out", "overlay.png", "Output PNG path")
	threshold := flag.Float64("threshold", 0.5, "Confidence threshold (0-1)")
	width := flag.Int("width", 0, "Frame width in pixels (default: image width)")
	height := flag.Int("height", 0, "Frame height in pixels (default: image height)")
	zoom := flag.Float64("zoom", 1, "Zoom multiplier")
	fit := flag.Bool("fit", false, "Fit the whole image instead of filling the height")
	noBoxes := flag.Bool("no-boxes", false, "Hide bounding boxes")
	noMasks := flag.Bool("no-masks", false, "Hide masks")
	noLabels := flag.Bool("no-labels", false, "Hide confidence labels")
	flag.Parse()

	if *imagePath == "" || *predPath == "" {
		fmt.Println("Usage: overlayrender -image <path> -predictions <json> [-out overlay.png] [-threshold 0.5]")
		os.Exit(1)
	}

	layer, err := pimage.Load(*imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load image: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded image: %dx%d pixels\n", layer.Width(), layer.Height())

	dets, err := readPredictions(*predPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read predictions: %v\n", err)
		os.Exit(1)
	}

	w, h := *width, *height
	if w <= 0 {
		w = layer.Width()
	}
	if h <= 0 {
		h = layer.Height()
	}

	ctrl := viewport.NewController()
	ctrl.LoadImage(float64(layer.Width()), float64(layer.Height()))
	ctrl.Resize(float64(w), float64(h))
	if *fit {
		ctrl.FitToScreen()
	}
	if *zoom != 1 {
		center := geometry.Point2D{X: float64(w) / 2, Y: float64(h) / 2}
		ctrl.ZoomAt(center, ctrl.Geometry().Zoom*(*zoom))
	}
	g := ctrl.Geometry()

	filter := overlay.Filter{Threshold: *threshold}
	visible := filter.Apply(dets)

	opts := overlay.DefaultOptions()
	opts.ShowBoxes = !*noBoxes
	opts.ShowMasks = !*noMasks
	opts.ShowLabels = !*noLabels
	opts.MasksPresent = overlay.HasMasks(dets)

	colors := colorutil.NewClassColors(overlay.Classes(dets))
	over := overlay.NewPainter().Render(visible, g, colors, opts)
	frame := pimage.RenderFrame(nil, layer, over, g)

	out, err := os.Create(*outPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create output: %v\n", err)
		os.Exit(1)
	}
	defer out.Close()
	if err := png.Encode(out, frame); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write PNG: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\nDetections: %d total, %d above %.0f%%\n", len(dets), len(visible), *threshold*100)
	for class, n := range filter.CountByClass(dets) {
		fmt.Printf("  %-20s %d\n", class, n)
	}
	fmt.Printf("Geometry: %s zoom %.2f scale %.3f\n", g.Mode, g.Zoom, g.Scale())
	fmt.Printf("Wrote %s (%dx%d)\n", *outPath, w, h)
}

// readPredictions accepts either a bare detection array or the service's
// {"predictions": [...]} envelope.
func readPredictions(path string) ([]overlay.Detection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var dets []overlay.Detection
		if err := json.Unmarshal(data, &dets); err != nil {
			return nil, err
		}
		return dets, nil
	}
	var env struct {
		Predictions []overlay.Detection `json:"predictions"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.Predictions, nil
}
