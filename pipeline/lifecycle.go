package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/orbit-visualizer/internal/logging"
	"github.com/signalsfoundry/orbit-visualizer/propagate"
)

// defaultPollInterval is the delay between in-flight counter checks while
// shutdown waits for an outstanding backend call to resolve.
const defaultPollInterval = 10 * time.Millisecond

// Coordinator owns the registered set handle's lifetime. It is the only
// component allowed to release the handle, and it does so at most once, and
// only after no backend call is in flight.
type Coordinator struct {
	handle   propagate.SetHandle
	alive    *atomic.Bool
	inFlight *atomic.Int32
	release  func(context.Context, propagate.SetHandle) error
	poll     time.Duration
	log      logging.Logger

	releaseOnce sync.Once
}

// NewCoordinator builds a coordinator for the given handle. A zero handle is
// legal and makes Shutdown a flag-clearing no-op, which covers teardown
// racing a registration that never completed.
func NewCoordinator(handle propagate.SetHandle, alive *atomic.Bool, inFlight *atomic.Int32, release func(context.Context, propagate.SetHandle) error, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Noop()
	}
	return &Coordinator{
		handle:   handle,
		alive:    alive,
		inFlight: inFlight,
		release:  release,
		poll:     defaultPollInterval,
		log:      log,
	}
}

// Shutdown clears the liveness flag, waits for any in-flight backend call to
// resolve, then releases the handle. The flag is cleared before anything
// else so the propagation loop cannot start a new call while we wait.
//
// A release failure is logged and swallowed: the backend is going away, and
// the handle is treated as released either way. The only returned error is
// ctx expiring while an in-flight call never resolved.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.alive.Store(false)

	if c.handle == 0 {
		return nil
	}

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()
	for c.inFlight.Load() != 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("shutdown: in-flight call did not resolve: %w", ctx.Err())
		case <-ticker.C:
		}
	}

	c.releaseOnce.Do(func() {
		if err := c.release(ctx, c.handle); err != nil {
			c.log.Warn(ctx, "release of registered set failed",
				logging.Int("handle", int(c.handle)),
				logging.String("error", err.Error()),
			)
			return
		}
		c.log.Info(ctx, "released registered set", logging.Int("handle", int(c.handle)))
	})
	return nil
}
