// Package app holds the viewer session state and its events.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gemini-viewer/internal/api"
	"gemini-viewer/internal/logging"
	"gemini-viewer/internal/overlay"
	"gemini-viewer/internal/plots"
)

// ErrNoResult is returned by operations that need an open inference result.
var ErrNoResult = errors.New("app: no inference result open")

// EventType identifies state events.
type EventType int

const (
	EventResultOpened EventType = iota
	EventPlotLoaded
	EventFilterChanged
	EventOptionsChanged
	EventThresholdSaved
	EventClosed
)

// EventListener is called when an event occurs.
type EventListener func(data interface{})

// Client is the part of the data service the viewer session uses.
type Client interface {
	GetPlotImages(ctx context.Context, r api.InferenceResult) ([]string, error)
	UpdateThreshold(ctx context.Context, req api.ThresholdRequest) error
	RevertThreshold(ctx context.Context, resultID string) error
}

// SourceFunc builds the plot loader for a result.
type SourceFunc func(r api.InferenceResult) plots.Source

// State is one viewer session: the open inference result, its plot set, and
// the filter and display toggles applied to every plot.
type State struct {
	mu sync.RWMutex

	client Client
	source SourceFunc

	result *api.InferenceResult
	plots  *plots.Set
	plot   *plots.Plot
	// classes is the class set of the last loaded plot.
	classes []string

	filter overlay.Filter
	opts   overlay.Options

	listeners map[EventType][]EventListener
}

// NewState creates a session with an initial threshold and display toggles.
func NewState(client Client, source SourceFunc, threshold float64, opts overlay.Options) *State {
	opts.Hovered = -1
	return &State{
		client:    client,
		source:    source,
		filter:    overlay.Filter{Threshold: threshold},
		opts:      opts,
		listeners: make(map[EventType][]EventListener),
	}
}

// On registers an event listener for the specified event type.
func (s *State) On(event EventType, listener EventListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners[event] = append(s.listeners[event], listener)
}

// Emit triggers all listeners for the specified event type.
func (s *State) Emit(event EventType, data interface{}) {
	s.mu.RLock()
	listeners := s.listeners[event]
	s.mu.RUnlock()

	for _, listener := range listeners {
		listener(data)
	}
}

// OpenResult fetches the plot list of r and loads its first plot.
func (s *State) OpenResult(ctx context.Context, r api.InferenceResult) error {
	names, err := s.client.GetPlotImages(ctx, r)
	if err != nil {
		return fmt.Errorf("open result %s: %w", r.ID, err)
	}

	s.mu.Lock()
	if s.plots != nil {
		s.plots.Clear()
	}
	s.result = &r
	s.plots = plots.NewSet(names, s.source(r))
	s.plot = nil
	// A new result starts with every class selected.
	s.filter.Classes = nil
	s.classes = nil
	s.mu.Unlock()

	logging.Info(logging.Fields{"result": r.ID, "plots": len(names)}, "[app.OpenResult] result opened")
	s.Emit(EventResultOpened, r)

	if len(names) == 0 {
		return nil
	}
	return s.LoadCurrent(ctx)
}

// Result returns the open result, or nil.
func (s *State) Result() *api.InferenceResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Plot returns the loaded plot, or nil.
func (s *State) Plot() *plots.Plot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.plot
}

// Position returns the cursor and the number of plots.
func (s *State) Position() (index, total int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.plots == nil {
		return 0, 0
	}
	return s.plots.Index(), s.plots.Len()
}

// LoadCurrent loads the plot under the cursor and prefetches its
// neighbors in the background.
func (s *State) LoadCurrent(ctx context.Context) error {
	s.mu.RLock()
	set := s.plots
	s.mu.RUnlock()
	if set == nil {
		return ErrNoResult
	}

	p, err := set.Load(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	// Drop the result if navigation moved on while this plot was loading.
	if set != s.plots || set.Current() != p.Name {
		s.mu.Unlock()
		return nil
	}
	s.plot = p
	// A plot with a different class set starts with every class selected,
	// so classes new to this plot are not hidden by an earlier selection.
	classes := overlay.Classes(p.Detections)
	reset := s.filter.Classes != nil && !sameClasses(classes, s.classes)
	if reset {
		s.filter.Classes = nil
	}
	s.classes = classes
	f := s.filter
	s.mu.Unlock()

	if reset {
		s.Emit(EventFilterChanged, f)
	}
	s.Emit(EventPlotLoaded, p)
	go set.Prefetch(context.WithoutCancel(ctx))
	return nil
}

func sameClasses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, c := range a {
		set[c] = true
	}
	for _, c := range b {
		if !set[c] {
			return false
		}
	}
	return true
}

// NextPlot moves to the next plot and loads it. It reports false at the end.
func (s *State) NextPlot(ctx context.Context) (bool, error) {
	return s.move(ctx, func(set *plots.Set) bool { return set.Next() })
}

// PrevPlot moves to the previous plot and loads it.
func (s *State) PrevPlot(ctx context.Context) (bool, error) {
	return s.move(ctx, func(set *plots.Set) bool { return set.Prev() })
}

func (s *State) move(ctx context.Context, step func(*plots.Set) bool) (bool, error) {
	s.mu.Lock()
	if s.plots == nil {
		s.mu.Unlock()
		return false, ErrNoResult
	}
	moved := step(s.plots)
	s.mu.Unlock()
	if !moved {
		return false, nil
	}
	return true, s.LoadCurrent(ctx)
}

// Filter returns the current threshold and class selection.
func (s *State) Filter() overlay.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

// SetThreshold sets the confidence threshold, clamped to [0,1].
func (s *State) SetThreshold(t float64) {
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	s.mu.Lock()
	s.filter.Threshold = t
	f := s.filter
	s.mu.Unlock()
	s.Emit(EventFilterChanged, f)
}

// SetClasses restricts the visible classes; nil selects all.
func (s *State) SetClasses(classes map[string]bool) {
	s.mu.Lock()
	s.filter.Classes = classes
	f := s.filter
	s.mu.Unlock()
	s.Emit(EventFilterChanged, f)
}

// Options returns the display toggles.
func (s *State) Options() overlay.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.opts
}

// SetOptions replaces the display toggles.
func (s *State) SetOptions(o overlay.Options) {
	s.mu.Lock()
	s.opts = o
	s.mu.Unlock()
	s.Emit(EventOptionsChanged, o)
}

// SaveThreshold persists the current threshold for the open result.
func (s *State) SaveThreshold(ctx context.Context) error {
	s.mu.RLock()
	r, t := s.result, s.filter.Threshold
	s.mu.RUnlock()
	if r == nil {
		return ErrNoResult
	}
	if err := s.client.UpdateThreshold(ctx, api.ThresholdRequest{ResultID: r.ID, Threshold: t}); err != nil {
		return err
	}
	s.Emit(EventThresholdSaved, t)
	return nil
}

// RevertThreshold restores the server-side threshold of the open result.
func (s *State) RevertThreshold(ctx context.Context) error {
	s.mu.RLock()
	r := s.result
	s.mu.RUnlock()
	if r == nil {
		return ErrNoResult
	}
	return s.client.RevertThreshold(ctx, r.ID)
}

// Close drops the plot caches and the open result.
func (s *State) Close() {
	s.mu.Lock()
	if s.plots != nil {
		s.plots.Clear()
	}
	s.plots = nil
	s.plot = nil
	s.result = nil
	s.classes = nil
	s.mu.Unlock()
	s.Emit(EventClosed, nil)
}
