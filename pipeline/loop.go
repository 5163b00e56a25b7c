package pipeline

import (
	"context"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/signalsfoundry/orbit-visualizer/internal/logging"
	"github.com/signalsfoundry/orbit-visualizer/internal/observability"
	"github.com/signalsfoundry/orbit-visualizer/propagate"
	"github.com/signalsfoundry/orbit-visualizer/simclock"
)

const tracerName = "github.com/signalsfoundry/orbit-visualizer/pipeline"

// Loop is the self-rescheduling background task that keeps the target buffer
// fresh. At each tick it computes per-satellite time offsets from the
// simulated clock and hands them to the backend; a tick that finds a call
// already outstanding defers instead of queueing a second one, so at most one
// backend call is ever in flight for the set.
type Loop struct {
	backend  propagate.Backend
	set      propagate.SetHandle
	meta     []SatelliteMetadata
	buffers  *Buffers
	clock    *simclock.Clock
	interval time.Duration

	// alive is shared with the lifecycle coordinator: once false, no new
	// backend call may start. inFlight is 0 or 1, always.
	alive    *atomic.Bool
	inFlight *atomic.Int32

	// offsets is reused across ticks so steady-state ticking allocates only
	// the backend's result slice.
	offsets []float64

	log     logging.Logger
	metrics *observability.PipelineCollector
	tracer  trace.Tracer
}

func newLoop(backend propagate.Backend, set propagate.SetHandle, meta []SatelliteMetadata, buffers *Buffers, clock *simclock.Clock, interval time.Duration, alive *atomic.Bool, inFlight *atomic.Int32, log logging.Logger, metrics *observability.PipelineCollector) *Loop {
	if log == nil {
		log = logging.Noop()
	}
	return &Loop{
		backend:  backend,
		set:      set,
		meta:     meta,
		buffers:  buffers,
		clock:    clock,
		interval: interval,
		alive:    alive,
		inFlight: inFlight,
		offsets:  make([]float64, len(meta)),
		log:      log,
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// Run drives ticks until ctx is cancelled or the liveness flag is cleared.
// Each tick reschedules the next one after it fully resolves, independent of
// any render frame rate.
func (l *Loop) Run(ctx context.Context) {
	timer := time.NewTimer(l.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}
		if !l.alive.Load() {
			return
		}
		l.Tick(ctx)
		timer.Reset(l.interval)
	}
}

// Tick runs one propagation step. It reports whether a backend call was made:
// false means the tick deferred (stopped, empty set, or a call still in
// flight). A failed backend call leaves the target buffer at its previous
// value; the next tick retries by construction.
func (l *Loop) Tick(ctx context.Context) bool {
	if !l.alive.Load() || len(l.meta) == 0 {
		return false
	}
	if !l.inFlight.CompareAndSwap(0, 1) {
		// A call is outstanding; defer to the next tick.
		return false
	}
	// Re-check liveness after the claim. Shutdown may have cleared the flag
	// and observed in-flight zero between the check above and the swap; a
	// backend call must never start once that has happened.
	if !l.alive.Load() {
		l.inFlight.Store(0)
		return false
	}
	defer func() {
		l.inFlight.Store(0)
		l.metrics.SetInFlight(0)
	}()
	l.metrics.SetInFlight(1)

	simNow := l.clock.Now()
	for i, m := range l.meta {
		l.offsets[i] = simNow.Sub(m.Epoch).Minutes()
	}

	ctx, span := l.tracer.Start(ctx, "pipeline.propagate",
		trace.WithAttributes(
			attribute.String("backend", l.backend.Name()),
			attribute.Int("satellites", len(l.meta)),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := l.backend.Propagate(ctx, l.set, l.offsets)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "propagate failed")
		l.metrics.ObservePropagate(observability.OutcomeError, elapsed)
		l.log.Warn(ctx, "propagation call failed",
			logging.String("backend", l.backend.Name()),
			logging.String("error", err.Error()),
		)
		return true
	}

	if werr := l.buffers.WriteTarget(out); werr != nil {
		span.RecordError(werr)
		span.SetStatus(codes.Error, "invalid backend output")
		l.metrics.ObservePropagate(observability.OutcomeInvalid, elapsed)
		l.log.Warn(ctx, "discarding invalid backend output",
			logging.String("backend", l.backend.Name()),
			logging.String("error", werr.Error()),
		)
		return true
	}

	l.metrics.ObservePropagate(observability.OutcomeOK, elapsed)
	return true
}
