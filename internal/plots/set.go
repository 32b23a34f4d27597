// Package plots tracks the plot images of one inference result, the current
// plot cursor, and the session caches of decoded images and predictions.
package plots

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"gemini-viewer/internal/logging"
	"gemini-viewer/internal/overlay"
)

// ErrEmpty is returned when the set has no plots.
var ErrEmpty = errors.New("plots: no plot images")

// Source loads plot data by image name.
type Source interface {
	LoadImage(ctx context.Context, name string) (image.Image, error)
	LoadPredictions(ctx context.Context, name string) ([]overlay.Detection, error)
}

// Plot is one loaded plot image with its predictions.
type Plot struct {
	Name       string
	Image      image.Image
	Detections []overlay.Detection
}

// Set is an ordered list of plot images with a cursor. Caches are keyed by
// file name, unbounded for the life of the set, and only ever add entries,
// so a late prefetch can never replace the data of the active plot.
type Set struct {
	names  []string
	source Source

	mu     sync.Mutex
	cursor int
	images map[string]image.Image
	preds  map[string][]overlay.Detection
	group  singleflight.Group
}

// NewSet creates a set positioned on the first plot.
func NewSet(names []string, source Source) *Set {
	n := make([]string, len(names))
	copy(n, names)
	return &Set{
		names:  n,
		source: source,
		images: make(map[string]image.Image),
		preds:  make(map[string][]overlay.Detection),
	}
}

// Len returns the number of plots.
func (s *Set) Len() int {
	return len(s.names)
}

// Index returns the cursor position.
func (s *Set) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Names returns the plot image names in order.
func (s *Set) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Current returns the name of the plot under the cursor, or "" when empty.
func (s *Set) Current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.names) == 0 {
		return ""
	}
	return s.names[s.cursor]
}

// Next advances the cursor. It reports false at the last plot.
func (s *Set) Next() bool {
	return s.step(1)
}

// Prev moves the cursor back. It reports false at the first plot.
func (s *Set) Prev() bool {
	return s.step(-1)
}

func (s *Set) step(d int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seek(s.cursor + d)
}

// Seek moves the cursor to i, reporting false when i is out of range.
func (s *Set) Seek(i int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seek(i)
}

func (s *Set) seek(i int) bool {
	if i < 0 || i >= len(s.names) {
		return false
	}
	s.cursor = i
	return true
}

// Neighbors returns the names before and after the cursor; missing
// neighbors are "".
func (s *Set) Neighbors() (prev, next string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor > 0 {
		prev = s.names[s.cursor-1]
	}
	if s.cursor+1 < len(s.names) {
		next = s.names[s.cursor+1]
	}
	return prev, next
}

// Load returns the current plot, loading the image and predictions unless
// cached.
func (s *Set) Load(ctx context.Context) (*Plot, error) {
	name := s.Current()
	if name == "" {
		return nil, ErrEmpty
	}
	return s.load(ctx, name)
}

func (s *Set) load(ctx context.Context, name string) (*Plot, error) {
	g, ctx := errgroup.WithContext(ctx)
	var (
		img   image.Image
		preds []overlay.Detection
	)
	g.Go(func() error {
		var err error
		img, err = s.image(ctx, name)
		return err
	})
	g.Go(func() error {
		var err error
		preds, err = s.predictions(ctx, name)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Plot{Name: name, Image: img, Detections: preds}, nil
}

func (s *Set) image(ctx context.Context, name string) (image.Image, error) {
	s.mu.Lock()
	img, ok := s.images[name]
	s.mu.Unlock()
	if ok {
		return img, nil
	}

	v, err, _ := s.group.Do("image:"+name, func() (any, error) {
		img, err := s.source.LoadImage(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load image %s: %w", name, err)
		}
		s.mu.Lock()
		s.images[name] = img
		s.mu.Unlock()
		return img, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(image.Image), nil
}

func (s *Set) predictions(ctx context.Context, name string) ([]overlay.Detection, error) {
	s.mu.Lock()
	preds, ok := s.preds[name]
	s.mu.Unlock()
	if ok {
		return preds, nil
	}

	v, err, _ := s.group.Do("preds:"+name, func() (any, error) {
		preds, err := s.source.LoadPredictions(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("load predictions %s: %w", name, err)
		}
		s.mu.Lock()
		s.preds[name] = preds
		s.mu.Unlock()
		return preds, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]overlay.Detection), nil
}

// Prefetch loads the neighbors of the current plot into the caches. Failures
// are logged and otherwise ignored; the plot will be loaded again when the
// user navigates to it.
func (s *Set) Prefetch(ctx context.Context) {
	prev, next := s.Neighbors()
	var wg sync.WaitGroup
	for _, name := range []string{prev, next} {
		if name == "" || s.Cached(name) {
			continue
		}
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if _, err := s.load(ctx, name); err != nil {
				logging.Warn(logging.Fields{"plot": name, "error": err.Error()}, "[plots.Prefetch] prefetch failed")
			}
		}(name)
	}
	wg.Wait()
}

// Cached reports whether both the image and predictions of name are cached.
func (s *Set) Cached(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, img := s.images[name]
	_, preds := s.preds[name]
	return img && preds
}

// Clear drops every cache entry. The set stays usable.
func (s *Set) Clear() {
	s.mu.Lock()
	s.images = make(map[string]image.Image)
	s.preds = make(map[string][]overlay.Detection)
	s.mu.Unlock()
}
