package api

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"gemini-viewer/internal/overlay"
)

// Error is a non-2xx response from the data service.
type Error struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.StatusCode, e.Message)
}

// InferenceResult identifies one completed inference run over a plot set.
type InferenceResult struct {
	ID          string  `json:"id"`
	Year        string  `json:"year"`
	Experiment  string  `json:"experiment"`
	Location    string  `json:"location"`
	Population  string  `json:"population"`
	Date        string  `json:"date"`
	Platform    string  `json:"platform"`
	Sensor      string  `json:"sensor"`
	Orthomosaic string  `json:"orthomosaic"`
	Model       string  `json:"model"`
	Version     string  `json:"version"`
	Threshold   float64 `json:"threshold,omitempty"`
}

// Label is a short human-readable name for the result.
func (r InferenceResult) Label() string {
	if r.Model == "" {
		return r.ID
	}
	return fmt.Sprintf("%s %s/%s (%s)", r.Date, r.Model, r.Version, r.Orthomosaic)
}

type plotImagesResponse struct {
	Images []string `json:"images"`
}

type predictionsResponse struct {
	Predictions []overlay.Detection `json:"predictions"`
}

type resultsResponse struct {
	Results []InferenceResult `json:"results"`
}

type filesResponse struct {
	Files []string `json:"files"`
}

// InferenceRequest starts an inference run on the model-serving API.
type InferenceRequest struct {
	Year        string  `json:"year" validate:"required"`
	Experiment  string  `json:"experiment" validate:"required"`
	Location    string  `json:"location" validate:"required"`
	Population  string  `json:"population" validate:"required"`
	Date        string  `json:"date" validate:"required"`
	Platform    string  `json:"platform" validate:"required"`
	Sensor      string  `json:"sensor" validate:"required"`
	Orthomosaic string  `json:"orthomosaic" validate:"required"`
	ModelID     string  `json:"model_id" validate:"required"`
	APIKey      string  `json:"api_key,omitempty"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// InferenceJob is the request-scoped handle of a started run. It is passed
// explicitly from whoever starts the run to whoever polls it.
type InferenceJob struct {
	ID      uuid.UUID
	Request InferenceRequest
	Started time.Time
}

// Progress is one poll of the inference progress endpoint.
type Progress struct {
	Percent   float64 `json:"progress"`
	Status    string  `json:"status"`
	Completed bool    `json:"completed"`
	Error     string  `json:"error,omitempty"`
}

// ThresholdRequest persists a confidence threshold for a result server-side.
type ThresholdRequest struct {
	ResultID  string  `json:"result_id" validate:"required"`
	Threshold float64 `json:"threshold" validate:"gte=0,lte=1"`
}
