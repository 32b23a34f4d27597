package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"gemini-viewer/internal/logging"
)

// DefaultPollInterval is how often WaitForInference checks progress.
const DefaultPollInterval = 2 * time.Second

// ErrInferenceFailed wraps a failure reported by the progress endpoint.
var ErrInferenceFailed = errors.New("api: inference failed")

// RunInference starts an inference run and returns its job handle.
func (c *Client) RunInference(ctx context.Context, req InferenceRequest) (*InferenceJob, error) {
	if err := c.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("run inference: %w", err)
	}
	job := &InferenceJob{ID: uuid.New(), Request: req, Started: time.Now()}
	if err := c.do(ctx, "run inference", http.MethodPost, c.endpoint("run_roboflow_inference"), req, nil); err != nil {
		return nil, err
	}
	logging.Info(logging.Fields{
		"job":   job.ID.String(),
		"model": req.ModelID,
		"ortho": req.Orthomosaic,
	}, "[api.RunInference] inference started")
	return job, nil
}

// InferenceProgress polls the progress endpoint once.
func (c *Client) InferenceProgress(ctx context.Context) (Progress, error) {
	var p Progress
	err := c.do(ctx, "inference progress", http.MethodGet, c.endpoint("get_inference_progress"), nil, &p)
	return p, err
}

// WaitForInference polls progress at a fixed interval until the run
// completes, fails, or ctx is done. onProgress, when set, sees every poll.
// Poll errors are returned immediately; there is no retry.
func (c *Client) WaitForInference(ctx context.Context, job *InferenceJob, interval time.Duration, onProgress func(Progress)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		p, err := c.InferenceProgress(ctx)
		if err != nil {
			return err
		}
		if onProgress != nil {
			onProgress(p)
		}
		if p.Error != "" {
			return fmt.Errorf("%w: job %s: %s", ErrInferenceFailed, job.ID, p.Error)
		}
		if p.Completed || p.Percent >= 100 {
			logging.Info(logging.Fields{
				"job":     job.ID.String(),
				"elapsed": time.Since(job.Started).Round(time.Second).String(),
			}, "[api.WaitForInference] inference finished")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
