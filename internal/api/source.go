package api

import (
	"context"
	"image"

	"gemini-viewer/internal/overlay"
)

// ResultSource loads the plots of one inference result through a Client.
type ResultSource struct {
	Client *Client
	Result InferenceResult
}

// LoadImage fetches and decodes a plot image.
func (s ResultSource) LoadImage(ctx context.Context, name string) (image.Image, error) {
	return s.Client.FetchImage(ctx, s.Client.ImageURL(s.Result, name))
}

// LoadPredictions fetches the detections of a plot image.
func (s ResultSource) LoadPredictions(ctx context.Context, name string) ([]overlay.Detection, error) {
	return s.Client.GetPredictions(ctx, s.Result, name)
}
