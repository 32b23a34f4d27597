// Package api is the HTTP client for the GEMINI data service.
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb/geojson"

	pimage "gemini-viewer/internal/image"
	"gemini-viewer/internal/logging"
	"gemini-viewer/internal/overlay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DefaultTimeout bounds every request unless the client is configured
// otherwise.
const DefaultTimeout = 30 * time.Second

// ErrTimeout is returned when a request is aborted by its per-request
// timeout.
var ErrTimeout = errors.New("api: request timed out")

// Client talks to the data service. It is safe for concurrent use.
type Client struct {
	baseURL  *url.URL
	http     *http.Client
	timeout  time.Duration
	validate *validator.Validate
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a client for the service rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}
	c := &Client{
		baseURL:  u,
		http:     &http.Client{},
		timeout:  DefaultTimeout,
		validate: validator.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

func (c *Client) endpoint(p string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(p, "/")
	return u.String()
}

// do sends one request bounded by the client timeout and decodes a JSON
// response into out when out is non-nil.
func (c *Client) do(ctx context.Context, op, method, target string, in, out any) error {
	body, err := c.raw(ctx, op, method, target, in)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func (c *Client) raw(ctx context.Context, op, method, target string, in any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s: %w", op, ErrTimeout)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", op, err)
	}

	logging.Debug(logging.Fields{
		"op":      op,
		"status":  resp.StatusCode,
		"elapsed": time.Since(start).String(),
	}, "[api.Client] request finished")

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from a failed response, falling back
// to the raw body.
func errorMessage(body []byte) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}
	return strings.TrimSpace(string(body))
}

// ListFiles lists the entries of a directory in the service's data root.
func (c *Client) ListFiles(ctx context.Context, dir string) ([]string, error) {
	var resp filesResponse
	err := c.do(ctx, "list files", http.MethodPost, c.endpoint("list_files"),
		map[string]string{"dir_path": dir}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// GetGeoJSON loads a trait GeoJSON file from the service.
func (c *Client) GetGeoJSON(ctx context.Context, filePath string) (*geojson.FeatureCollection, error) {
	body, err := c.raw(ctx, "load geojson", http.MethodPost, c.endpoint("load_geojson"),
		map[string]string{"filePath": filePath})
	if err != nil {
		return nil, err
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, fmt.Errorf("load geojson: %w", err)
	}
	return fc, nil
}

// DownloadCSV returns the server-generated CSV for a trait file.
func (c *Client) DownloadCSV(ctx context.Context, filePath string) ([]byte, error) {
	return c.raw(ctx, "download csv", http.MethodPost, c.endpoint("download_csv"),
		map[string]string{"filePath": filePath})
}

// ListInferenceResults returns the completed inference runs.
func (c *Client) ListInferenceResults(ctx context.Context) ([]InferenceResult, error) {
	var resp resultsResponse
	if err := c.do(ctx, "list inference results", http.MethodGet, c.endpoint("get_inference_results"), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// GetPlotImages returns the ordered plot image names of a result.
func (c *Client) GetPlotImages(ctx context.Context, r InferenceResult) ([]string, error) {
	var resp plotImagesResponse
	if err := c.do(ctx, "get plot images", http.MethodPost, c.endpoint("get_plot_images"), r, &resp); err != nil {
		return nil, err
	}
	return resp.Images, nil
}

// GetPredictions returns the detections for one plot image.
func (c *Client) GetPredictions(ctx context.Context, r InferenceResult, plotImage string) ([]overlay.Detection, error) {
	req := struct {
		InferenceResult
		PlotImage string `json:"plot_image"`
	}{r, plotImage}
	var resp predictionsResponse
	if err := c.do(ctx, "get plot predictions", http.MethodPost, c.endpoint("get_plot_predictions"), req, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}

// ImageURL is the address the service serves a plot image from.
func (c *Client) ImageURL(r InferenceResult, plotImage string) string {
	return c.endpoint(joinPath(
		"files", r.Year, r.Experiment, r.Location, r.Population, r.Date,
		r.Platform, r.Sensor, "plot_images", r.Orthomosaic, plotImage,
	))
}

// joinPath joins the non-empty parts; escaping is left to url.URL.
func joinPath(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

// FetchImage downloads and decodes an image.
func (c *Client) FetchImage(ctx context.Context, imageURL string) (image.Image, error) {
	body, err := c.raw(ctx, "fetch image", http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, err
	}
	img, err := pimage.Decode(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("fetch image: %w", err)
	}
	return img, nil
}

// UpdateThreshold persists a confidence threshold for a result.
func (c *Client) UpdateThreshold(ctx context.Context, req ThresholdRequest) error {
	if err := c.validate.Struct(req); err != nil {
		return fmt.Errorf("update threshold: %w", err)
	}
	return c.do(ctx, "update threshold", http.MethodPost, c.endpoint("update_threshold"), req, nil)
}

// RevertThreshold restores the threshold the result was produced with.
func (c *Client) RevertThreshold(ctx context.Context, resultID string) error {
	if resultID == "" {
		return errors.New("revert threshold: result id is required")
	}
	return c.do(ctx, "revert threshold", http.MethodPost, c.endpoint("revert_threshold"),
		map[string]string{"result_id": resultID}, nil)
}
