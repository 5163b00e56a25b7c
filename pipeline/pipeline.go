// Package pipeline implements the batched propagation pipeline: element
// registration, the self-rescheduling propagation loop, the target/current
// streaming double buffer, the per-frame render consumption step, and the
// lifecycle coordinator that releases backend resources when it is safe.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/orbit-visualizer/internal/logging"
	"github.com/signalsfoundry/orbit-visualizer/internal/observability"
	"github.com/signalsfoundry/orbit-visualizer/propagate"
	"github.com/signalsfoundry/orbit-visualizer/render"
	"github.com/signalsfoundry/orbit-visualizer/simclock"
	"github.com/signalsfoundry/orbit-visualizer/tle"
)

// defaultTickInterval is the propagation loop's reschedule delay. The loop
// runs on its own cadence, not the renderer's.
const defaultTickInterval = 50 * time.Millisecond

var defaultPointSpec = render.PointSpec{
	Color: render.Color{R: 255, G: 200, B: 40, A: 255},
	Size:  2,
}

// Config assembles a pipeline session.
type Config struct {
	Backend  propagate.Backend
	Elements []tle.RawElement
	Clock    *simclock.Clock
	Renderer render.Renderer

	// TickInterval overrides the propagation loop cadence when positive.
	TickInterval time.Duration

	// PointSpec styles one satellite's point; nil applies a default style
	// to every point.
	PointSpec func(m SatelliteMetadata) render.PointSpec

	Log     logging.Logger
	Metrics *observability.PipelineCollector
}

// Pipeline is one visualization session's propagation state: the registered
// set, its buffers, the background loop, the consumption step, and the
// coordinator that tears everything down. Create one per session; there is
// no process-wide instance.
type Pipeline struct {
	backend propagate.Backend
	set     propagate.SetHandle
	meta    []SatelliteMetadata
	buffers *Buffers

	loop     *Loop
	consumer *Consumer
	coord    *Coordinator

	alive    atomic.Bool
	inFlight atomic.Int32

	loopDone chan struct{}
	started  atomic.Bool

	log logging.Logger
}

// New registers the elements with the backend and wires up the session.
// Registration and renderer failures escalate: a pipeline that cannot start
// reports that to the caller instead of retrying.
func New(ctx context.Context, cfg Config) (*Pipeline, error) {
	if cfg.Backend == nil {
		return nil, errors.New("pipeline: backend is required")
	}
	if cfg.Clock == nil {
		return nil, errors.New("pipeline: clock is required")
	}
	if cfg.Renderer == nil {
		return nil, errors.New("pipeline: renderer is required")
	}
	log := cfg.Log
	if log == nil {
		log = logging.Noop()
	}
	interval := cfg.TickInterval
	if interval <= 0 {
		interval = defaultTickInterval
	}

	set, meta, err := Register(ctx, cfg.Backend, cfg.Elements, log)
	if err != nil {
		return nil, err
	}
	cfg.Metrics.SetRegisteredSatellites(len(meta))
	cfg.Metrics.AddDroppedElements(len(cfg.Elements) - len(meta))

	buffers, err := NewBuffers(len(meta), cfg.Backend.Components())
	if err != nil {
		return nil, err
	}

	specs := make([]render.PointSpec, len(meta))
	for i, m := range meta {
		if cfg.PointSpec != nil {
			specs[i] = cfg.PointSpec(m)
		} else {
			specs[i] = defaultPointSpec
		}
	}
	sink, err := cfg.Renderer.CreatePoints(specs)
	if err != nil {
		return nil, fmt.Errorf("create point collection: %w", err)
	}

	p := &Pipeline{
		backend:  cfg.Backend,
		set:      set,
		meta:     meta,
		buffers:  buffers,
		loopDone: make(chan struct{}),
		log:      log,
	}
	p.alive.Store(true)

	points := make([]render.Point, len(meta))
	for i := range points {
		points[i].Color = specs[i].Color
		points[i].Size = specs[i].Size
	}

	p.loop = newLoop(cfg.Backend, set, meta, buffers, cfg.Clock, interval, &p.alive, &p.inFlight, log, cfg.Metrics)
	p.consumer = newConsumer(meta, buffers, cfg.Clock, sink, points, cfg.Metrics)
	p.coord = NewCoordinator(set, &p.alive, &p.inFlight, cfg.Backend.ReleaseSet, log)

	cfg.Renderer.OnPreRender(p.consumer.PreRender)

	return p, nil
}

// Start launches the propagation loop. It is a no-op after the first call.
func (p *Pipeline) Start(ctx context.Context) {
	if !p.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(p.loopDone)
		p.loop.Run(ctx)
	}()
}

// Shutdown stops the loop, waits out any in-flight backend call, and
// releases the registered set. Safe to call more than once.
func (p *Pipeline) Shutdown(ctx context.Context) error {
	err := p.coord.Shutdown(ctx)
	if p.started.Load() {
		select {
		case <-p.loopDone:
		case <-ctx.Done():
		}
	}
	return err
}

// Metadata returns the registered satellites in buffer-index order. The
// returned slice is shared; callers must not mutate it.
func (p *Pipeline) Metadata() []SatelliteMetadata { return p.meta }

// Len returns the registered satellite count.
func (p *Pipeline) Len() int { return len(p.meta) }
