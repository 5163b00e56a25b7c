// Package tui is the terminal renderer: a Bubble Tea program that owns the
// frame loop, advances the simulated clock, runs the pipeline's pre-render
// hooks, and plots the point collection on an ASCII plate-carrée world view
// with frame-timing statistics.
package tui

import (
	"errors"
	"sync"

	"github.com/signalsfoundry/orbit-visualizer/render"
)

// ErrPointsExist indicates CreatePoints was called twice; the terminal
// renderer carries a single collection per session.
var ErrPointsExist = errors.New("point collection already created")

// Screen implements render.Renderer for the terminal. Hooks registered via
// OnPreRender run on the frame loop inside the Bubble Tea update cycle.
type Screen struct {
	mu        sync.Mutex
	points    []*render.Point
	transform render.Mat3
	hooks     []func()
}

// NewScreen constructs an empty screen with an identity transform.
func NewScreen() *Screen {
	return &Screen{transform: render.Identity()}
}

// CreatePoints allocates the screen's point collection.
func (s *Screen) CreatePoints(specs []render.PointSpec) (render.PointCollection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.points != nil {
		return nil, ErrPointsExist
	}
	s.points = make([]*render.Point, len(specs))
	return (*screenCollection)(s), nil
}

// OnPreRender registers a per-frame hook.
func (s *Screen) OnPreRender(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

// Frame executes the registered pre-render hooks once. The renderer calls
// this once per display frame.
func (s *Screen) Frame() {
	s.mu.Lock()
	hooks := s.hooks
	s.mu.Unlock()
	for _, fn := range hooks {
		fn()
	}
}

// Snapshot copies the current point pointers and transform for drawing.
func (s *Screen) Snapshot() ([]*render.Point, render.Mat3) {
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]*render.Point, len(s.points))
	copy(points, s.points)
	return points, s.transform
}

// screenCollection exposes the Screen's slots as a render.PointCollection.
type screenCollection Screen

func (c *screenCollection) Len() int {
	s := (*Screen)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.points)
}

func (c *screenCollection) Set(i int, p *render.Point) {
	s := (*Screen)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	if i >= 0 && i < len(s.points) {
		s.points[i] = p
	}
}

func (c *screenCollection) SetTransform(m render.Mat3) {
	s := (*Screen)(c)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transform = m
}
