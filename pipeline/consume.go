package pipeline

import (
	"time"

	"github.com/signalsfoundry/orbit-visualizer/internal/observability"
	"github.com/signalsfoundry/orbit-visualizer/render"
	"github.com/signalsfoundry/orbit-visualizer/simclock"
)

// transformInterval is the minimum simulated-time advance between
// coordinate-frame transform recomputations. Recomputing every frame would
// spend trigonometry on changes far below what a frame can show.
const transformInterval = time.Second

// Consumer is the render consumption step: invoked once per frame as a
// pre-render hook, it copies the target buffer into the current buffer and
// feeds positions into the renderer's point collection without allocating.
type Consumer struct {
	meta    []SatelliteMetadata
	buffers *Buffers
	clock   *simclock.Clock
	sink    render.PointCollection

	// points are pre-allocated per satellite and reused every frame.
	points []render.Point

	lastTransformAt time.Time
	transformSet    bool

	metrics *observability.PipelineCollector
}

func newConsumer(meta []SatelliteMetadata, buffers *Buffers, clock *simclock.Clock, sink render.PointCollection, points []render.Point, metrics *observability.PipelineCollector) *Consumer {
	return &Consumer{
		meta:    meta,
		buffers: buffers,
		clock:   clock,
		sink:    sink,
		points:  points,
		metrics: metrics,
	}
}

// PreRender runs one consumption step. It tolerates being invoked before the
// pipeline finished initialising (a startup race with the renderer's frame
// loop) by doing nothing.
func (c *Consumer) PreRender() {
	if c == nil || len(c.meta) == 0 || c.buffers == nil || c.sink == nil {
		return
	}
	start := time.Now()
	defer func() {
		c.metrics.ObserveFrame(time.Since(start))
	}()

	now := c.clock.Now()

	// Wraparound: once the clock has drifted a full span past the stop
	// bound, rewind to the start bound and skip this frame's update.
	if distance := absDuration(now.Sub(c.clock.Stop())); distance > c.clock.Span() {
		c.clock.Reset()
		c.metrics.IncClockReset()
		return
	}

	if !c.transformSet || absDuration(now.Sub(c.lastTransformAt)) > transformInterval {
		m, err := render.FixedFrame(now)
		if err != nil {
			// Earth-fixed frame unavailable at this instant; present the
			// collection in the inertial frame instead.
			m = render.Identity()
		}
		c.sink.SetTransform(m)
		c.lastTransformAt = now
		c.transformSet = true
		c.metrics.IncTransformRecompute()
	}

	current := c.buffers.SyncCurrent()
	for i := range current {
		c.points[i].Position = current[i].Position
		c.sink.Set(i, &c.points[i])
	}
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
