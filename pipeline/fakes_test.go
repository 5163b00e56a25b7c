package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/orbit-visualizer/propagate"
	"github.com/signalsfoundry/orbit-visualizer/render"
)

// fakeBackend counts concurrent Propagate calls and can be made slow or
// failing to exercise the loop's invariants.
type fakeBackend struct {
	components int
	delay      time.Duration

	mu         sync.Mutex
	fail       bool
	output     []float32
	sets       map[propagate.SetHandle][]propagate.OrbitalConstants
	nextHandle propagate.SetHandle

	calls         atomic.Int32
	concurrent    atomic.Int32
	maxConcurrent atomic.Int32
	releases      atomic.Int32
	releaseErr    error
}

func newFakeBackend(components int) *fakeBackend {
	return &fakeBackend{
		components: components,
		sets:       make(map[propagate.SetHandle][]propagate.OrbitalConstants),
	}
}

func (b *fakeBackend) Name() string    { return "fake" }
func (b *fakeBackend) Components() int { return b.components }

func (b *fakeBackend) RegisterSet(ctx context.Context, constants []propagate.OrbitalConstants) (propagate.SetHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(constants) == 0 {
		return 0, propagate.ErrEmptySet
	}
	b.nextHandle++
	b.sets[b.nextHandle] = constants
	return b.nextHandle, nil
}

func (b *fakeBackend) Propagate(ctx context.Context, set propagate.SetHandle, offsetsMinutes []float64) ([]float32, error) {
	n := b.concurrent.Add(1)
	defer b.concurrent.Add(-1)
	for {
		prev := b.maxConcurrent.Load()
		if n <= prev || b.maxConcurrent.CompareAndSwap(prev, n) {
			break
		}
	}
	b.calls.Add(1)

	if b.delay > 0 {
		select {
		case <-time.After(b.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return nil, errors.New("backend exploded")
	}
	if b.output != nil {
		out := make([]float32, len(b.output))
		copy(out, b.output)
		return out, nil
	}
	out := make([]float32, len(offsetsMinutes)*b.components)
	for i := range out {
		out[i] = float32(i + 1)
	}
	return out, nil
}

func (b *fakeBackend) ReleaseSet(ctx context.Context, set propagate.SetHandle) error {
	b.releases.Add(1)
	return b.releaseErr
}

func (b *fakeBackend) setFail(fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail = fail
}

func (b *fakeBackend) setOutput(out []float32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.output = out
}

// fakeSink records transform and point assignments.
type fakeSink struct {
	points        []*render.Point
	transforms    int
	lastTransform render.Mat3
	setCalls      int
}

func newFakeSink(n int) *fakeSink {
	return &fakeSink{points: make([]*render.Point, n)}
}

func (s *fakeSink) Len() int { return len(s.points) }

func (s *fakeSink) Set(i int, p *render.Point) {
	s.points[i] = p
	s.setCalls++
}

func (s *fakeSink) SetTransform(m render.Mat3) {
	s.lastTransform = m
	s.transforms++
}

// fakeRenderer hands out fakeSinks and collects pre-render hooks.
type fakeRenderer struct {
	sink  *fakeSink
	hooks []func()
}

func (r *fakeRenderer) CreatePoints(specs []render.PointSpec) (render.PointCollection, error) {
	r.sink = newFakeSink(len(specs))
	return r.sink, nil
}

func (r *fakeRenderer) OnPreRender(fn func()) {
	r.hooks = append(r.hooks, fn)
}

func (r *fakeRenderer) frame() {
	for _, fn := range r.hooks {
		fn()
	}
}
