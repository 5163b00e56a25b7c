// Package propagate provides the propagation backend capability: registering
// batches of orbital constants and computing position samples for them. The
// pipeline consumes the Backend interface only; the concrete SGP4 backends
// here are interchangeable with any other implementation of it.
package propagate

import (
	"context"
	"errors"
	"fmt"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"

	"github.com/signalsfoundry/orbit-visualizer/tle"
)

var (
	// ErrUnknownBackend indicates Open was given a name no backend answers to.
	ErrUnknownBackend = errors.New("unknown propagation backend")
	// ErrUnknownSet indicates a handle that was never registered or was
	// already released.
	ErrUnknownSet = errors.New("unknown registered set")
	// ErrEmptySet indicates a registration attempt with no constants.
	ErrEmptySet = errors.New("empty constant set")
)

// SetHandle is an opaque token for a batch of constants accepted by a
// backend. The zero value is never a valid handle.
type SetHandle int

// OrbitalConstants is the backend-ready representation of one element set.
// Instances are immutable after derivation.
type OrbitalConstants struct {
	sat   satellite.Satellite
	epoch time.Time
}

// Epoch returns the element's reference instant.
func (c OrbitalConstants) Epoch() time.Time { return c.epoch }

// DeriveConstants converts a raw element into backend constants. Malformed
// elements yield an error; derivation never panics even when the underlying
// SGP4 initialization does.
func DeriveConstants(e tle.RawElement) (c OrbitalConstants, err error) {
	if verr := e.Validate(); verr != nil {
		return OrbitalConstants{}, verr
	}
	epoch, err := tle.ParseEpoch(e.Line1)
	if err != nil {
		return OrbitalConstants{}, err
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: sgp4 init: %v", tle.ErrMalformedElement, r)
		}
	}()
	sat := satellite.TLEToSat(e.Line1, e.Line2, satellite.GravityWGS72)

	return OrbitalConstants{sat: sat, epoch: epoch}, nil
}

// Backend is the propagation capability consumed by the pipeline.
//
// Propagate returns positions in kilometers, flattened Components() values
// per satellite in registration order. Implementations must not retain the
// offsets slice.
type Backend interface {
	Name() string

	// Components is 3 (position) or 6 (position and velocity) values per
	// satellite in Propagate's output.
	Components() int

	RegisterSet(ctx context.Context, constants []OrbitalConstants) (SetHandle, error)
	Propagate(ctx context.Context, set SetHandle, offsetsMinutes []float64) ([]float32, error)
	ReleaseSet(ctx context.Context, set SetHandle) error
}

// Option configures backend construction.
type Option func(*options)

type options struct {
	velocity bool
	workers  int
}

// WithVelocity makes the backend emit 6 components per satellite instead
// of 3.
func WithVelocity() Option {
	return func(o *options) { o.velocity = true }
}

// WithWorkers caps the parallel backend's worker pool at n. Zero or negative
// keeps the default of GOMAXPROCS. The serial backend ignores it.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// Open selects a backend by name. The empty name picks the parallel backend.
// An unknown name is a startup error for the caller to escalate; steady-state
// propagation failures are reported per call, never from Open.
func Open(name string, opts ...Option) (Backend, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	switch name {
	case "", "parallel":
		return newParallelBackend(o), nil
	case "serial":
		return newSerialBackend(o), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, name)
	}
}
