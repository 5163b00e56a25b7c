package propagate

import (
	"context"
	"fmt"
	"sync"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// setStore holds registered constant batches behind integer handles. It is
// shared by the serial and parallel backends.
type setStore struct {
	mu   sync.Mutex
	next SetHandle
	sets map[SetHandle][]OrbitalConstants
}

func newSetStore() *setStore {
	return &setStore{sets: make(map[SetHandle][]OrbitalConstants)}
}

func (s *setStore) register(constants []OrbitalConstants) (SetHandle, error) {
	if len(constants) == 0 {
		return 0, ErrEmptySet
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	// Backends own their copy; callers may reuse the input slice.
	batch := make([]OrbitalConstants, len(constants))
	copy(batch, constants)
	s.sets[s.next] = batch
	return s.next, nil
}

func (s *setStore) lookup(set SetHandle) ([]OrbitalConstants, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	batch, ok := s.sets[set]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", ErrUnknownSet, set)
	}
	return batch, nil
}

func (s *setStore) release(set SetHandle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sets[set]; !ok {
		return fmt.Errorf("%w: handle %d", ErrUnknownSet, set)
	}
	delete(s.sets, set)
	return nil
}

// propagateOne evaluates one satellite at its epoch plus offsetMinutes and
// writes components values (km, km/s) into out.
func propagateOne(c OrbitalConstants, offsetMinutes float64, out []float32, components int) {
	t := c.epoch.Add(time.Duration(offsetMinutes * float64(time.Minute))).UTC()
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	pos, vel := satellite.Propagate(c.sat, year, int(month), day, hour, min, sec)

	out[0] = float32(pos.X)
	out[1] = float32(pos.Y)
	out[2] = float32(pos.Z)
	if components == 6 {
		out[3] = float32(vel.X)
		out[4] = float32(vel.Y)
		out[5] = float32(vel.Z)
	}
}

// serialBackend runs SGP4 for every satellite on the calling goroutine.
type serialBackend struct {
	store      *setStore
	components int
}

func newSerialBackend(o options) *serialBackend {
	components := 3
	if o.velocity {
		components = 6
	}
	return &serialBackend{store: newSetStore(), components: components}
}

func (b *serialBackend) Name() string    { return "serial" }
func (b *serialBackend) Components() int { return b.components }

func (b *serialBackend) RegisterSet(ctx context.Context, constants []OrbitalConstants) (SetHandle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.store.register(constants)
}

func (b *serialBackend) Propagate(ctx context.Context, set SetHandle, offsetsMinutes []float64) ([]float32, error) {
	batch, err := b.store.lookup(set)
	if err != nil {
		return nil, err
	}
	if len(offsetsMinutes) != len(batch) {
		return nil, fmt.Errorf("offsets length %d does not match set size %d", len(offsetsMinutes), len(batch))
	}

	out := make([]float32, len(batch)*b.components)
	for i, c := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		propagateOne(c, offsetsMinutes[i], out[i*b.components:(i+1)*b.components], b.components)
	}
	return out, nil
}

func (b *serialBackend) ReleaseSet(ctx context.Context, set SetHandle) error {
	return b.store.release(set)
}
