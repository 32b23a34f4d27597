package api

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, opts...)
	require.NoError(t, err)
	return c
}

func decodeBody(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	b, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	return m
}

var testResult = InferenceResult{
	ID:          "r1",
	Year:        "2024",
	Experiment:  "Cowpea",
	Location:    "Davis",
	Population:  "MAGIC",
	Date:        "2024-07-01",
	Platform:    "drone",
	Sensor:      "rgb",
	Orthomosaic: "ortho1",
	Model:       "modelA",
	Version:     "v1",
}

func TestNewRequiresAbsoluteURL(t *testing.T) {
	_, err := New("localhost:5050")
	assert.Error(t, err)
	_, err = New("/api")
	assert.Error(t, err)

	c, err := New("http://localhost:5050/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:5050/api", c.BaseURL())
}

func TestListFiles(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/list_files", r.URL.Path)
		assert.Equal(t, "Processed/2024", decodeBody(t, r)["dir_path"])
		_, _ = w.Write([]byte(`{"files":["a.geojson","b.geojson"]}`))
	}))

	files, err := c.ListFiles(context.Background(), "Processed/2024")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.geojson", "b.geojson"}, files)
}

func TestErrorResponse(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"no such result"}`))
	}))

	_, err := c.ListInferenceResults(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "no such result", apiErr.Message)
	assert.Contains(t, err.Error(), "HTTP 404")
}

func TestErrorResponsePlainBody(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))

	_, err := c.ListFiles(context.Background(), "x")
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "bad gateway", apiErr.Message)
}

func TestTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}), WithTimeout(20*time.Millisecond))
	defer close(release)

	_, err := c.ListInferenceResults(context.Background())
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestCallerCancellationIsNotTimeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.ListInferenceResults(ctx)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestGetPlotImagesAndPredictions(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/get_plot_images", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "ortho1", body["orthomosaic"])
		_, _ = w.Write([]byte(`{"images":["plot_1.png","plot_2.png"]}`))
	})
	mux.HandleFunc("/get_plot_predictions", func(w http.ResponseWriter, r *http.Request) {
		body := decodeBody(t, r)
		assert.Equal(t, "plot_2.png", body["plot_image"])
		assert.Equal(t, "modelA", body["model"])
		_, _ = w.Write([]byte(`{"predictions":[
			{"class":"flower","confidence":0.8,"x":10,"y":20,"width":4,"height":6},
			{"class":"pod","confidence":0.4,"x":0,"y":0,"width":0,"height":0,
			 "points":[{"x":1,"y":1},{"x":5,"y":1},{"x":3,"y":4}]}
		]}`))
	})
	c := newTestClient(t, mux)

	images, err := c.GetPlotImages(context.Background(), testResult)
	require.NoError(t, err)
	assert.Equal(t, []string{"plot_1.png", "plot_2.png"}, images)

	preds, err := c.GetPredictions(context.Background(), testResult, "plot_2.png")
	require.NoError(t, err)
	require.Len(t, preds, 2)
	assert.Equal(t, "flower", preds[0].Class)
	assert.InDelta(t, 10, preds[0].CenterX, 1e-9)
	assert.False(t, preds[0].HasMask())
	assert.True(t, preds[1].HasMask())
}

func TestImageURL(t *testing.T) {
	c, err := New("http://localhost:5050/api")
	require.NoError(t, err)
	assert.Equal(t,
		"http://localhost:5050/api/files/2024/Cowpea/Davis/MAGIC/2024-07-01/drone/rgb/plot_images/ortho1/plot_1.png",
		c.ImageURL(testResult, "plot_1.png"))
}

func TestFetchImageThroughResultSource(t *testing.T) {
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 3, 2))
	img.SetRGBA(1, 1, color.RGBA{B: 255, A: 255})
	require.NoError(t, png.Encode(&buf, img))

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/2024/Cowpea/Davis/MAGIC/2024-07-01/drone/rgb/plot_images/ortho1/plot_1.png", r.URL.Path)
		_, _ = w.Write(buf.Bytes())
	}))

	got, err := ResultSource{Client: c, Result: testResult}.LoadImage(context.Background(), "plot_1.png")
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
}

func TestGetGeoJSON(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/load_geojson", r.URL.Path)
		assert.Equal(t, "traits.geojson", decodeBody(t, r)["filePath"])
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
			{"type":"Feature","geometry":{"type":"Point","coordinates":[-121.7,38.5]},
			 "properties":{"plot":"1","modelA-v1/3/Flower":12}}
		]}`))
	}))

	fc, err := c.GetGeoJSON(context.Background(), "traits.geojson")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "1", fc.Features[0].Properties["plot"])
}

func TestUpdateThresholdValidates(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/update_threshold", r.URL.Path)
		body := decodeBody(t, r)
		assert.Equal(t, "r1", body["result_id"])
		assert.InDelta(t, 0.35, body["threshold"], 1e-9)
		_, _ = w.Write([]byte(`{}`))
	}))

	err := c.UpdateThreshold(context.Background(), ThresholdRequest{ResultID: "r1", Threshold: 1.5})
	assert.Error(t, err)
	err = c.UpdateThreshold(context.Background(), ThresholdRequest{Threshold: 0.3})
	assert.Error(t, err)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))

	require.NoError(t, c.UpdateThreshold(context.Background(), ThresholdRequest{ResultID: "r1", Threshold: 0.35}))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestRevertThreshold(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/revert_threshold", r.URL.Path)
		assert.Equal(t, "r1", decodeBody(t, r)["result_id"])
	}))

	assert.Error(t, c.RevertThreshold(context.Background(), ""))
	assert.NoError(t, c.RevertThreshold(context.Background(), "r1"))
}
