package pipeline

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/signalsfoundry/orbit-visualizer/render"
)

const kmToM = 1000.0

var (
	// ErrSampleNotFinite indicates the backend returned a NaN or infinite
	// component, which violates its contract. The offending write is
	// discarded wholesale.
	ErrSampleNotFinite = errors.New("backend returned non-finite sample")
	// ErrSampleLength indicates the backend output length does not match the
	// registered set.
	ErrSampleLength = errors.New("backend output length mismatch")
)

// Sample is one satellite's state in meters (and meters per second), in the
// inertial frame the backend computes in.
type Sample struct {
	Position render.Vec3
	Velocity render.Vec3
}

// Buffers is the streaming double buffer between the propagation loop and
// the render consumption step. The loop writes only the target buffer; the
// consumer copies target into current via SyncCurrent and reads current.
// Both keep length N for the registered set's whole lifetime. The mutex
// makes the loop's target writes and the consumer's copy exclude each other;
// the two run on different goroutines.
type Buffers struct {
	mu         sync.Mutex
	target     []Sample
	current    []Sample
	components int
}

// NewBuffers allocates target and current for n satellites with the given
// backend component count (3 or 6).
func NewBuffers(n, components int) (*Buffers, error) {
	if n <= 0 {
		return nil, fmt.Errorf("buffer length %d must be positive", n)
	}
	if components != 3 && components != 6 {
		return nil, fmt.Errorf("components %d must be 3 or 6", components)
	}
	return &Buffers{
		target:     make([]Sample, n),
		current:    make([]Sample, n),
		components: components,
	}, nil
}

// Len returns the satellite count N.
func (b *Buffers) Len() int { return len(b.target) }

// Target returns the producer-side buffer.
func (b *Buffers) Target() []Sample { return b.target }

// Current returns the consumer-side buffer. Only the consumer goroutine
// touches it.
func (b *Buffers) Current() []Sample { return b.current }

// SyncCurrent copies the latest target samples into the current buffer and
// returns it. The copy excludes concurrent WriteTarget calls, so a frame
// never observes a half-written sample.
func (b *Buffers) SyncCurrent() []Sample {
	b.mu.Lock()
	copy(b.current, b.target)
	b.mu.Unlock()
	return b.current
}

// WriteTarget validates a flat backend result (kilometers) and overwrites the
// target buffer component-wise in meters. On any validation failure the
// target buffer is left untouched.
func (b *Buffers) WriteTarget(flat []float32) error {
	if len(flat) != len(b.target)*b.components {
		return fmt.Errorf("%w: got %d values, want %d", ErrSampleLength, len(flat), len(b.target)*b.components)
	}
	for i, v := range flat {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("%w: component %d = %v", ErrSampleNotFinite, i, f)
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.target {
		base := i * b.components
		b.target[i].Position = render.Vec3{
			X: float64(flat[base]) * kmToM,
			Y: float64(flat[base+1]) * kmToM,
			Z: float64(flat[base+2]) * kmToM,
		}
		if b.components == 6 {
			b.target[i].Velocity = render.Vec3{
				X: float64(flat[base+3]) * kmToM,
				Y: float64(flat[base+4]) * kmToM,
				Z: float64(flat[base+5]) * kmToM,
			}
		}
	}
	return nil
}
