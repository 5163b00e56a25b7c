package propagate

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// parallelBackend shards the per-satellite SGP4 evaluation across a fixed
// worker pool. Output ranges per worker are disjoint, so no synchronization
// is needed on the result slice.
type parallelBackend struct {
	store      *setStore
	components int
	workers    int
}

func newParallelBackend(o options) *parallelBackend {
	components := 3
	if o.velocity {
		components = 6
	}
	workers := o.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &parallelBackend{
		store:      newSetStore(),
		components: components,
		workers:    workers,
	}
}

func (b *parallelBackend) Name() string    { return "parallel" }
func (b *parallelBackend) Components() int { return b.components }

func (b *parallelBackend) RegisterSet(ctx context.Context, constants []OrbitalConstants) (SetHandle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return b.store.register(constants)
}

func (b *parallelBackend) Propagate(ctx context.Context, set SetHandle, offsetsMinutes []float64) ([]float32, error) {
	batch, err := b.store.lookup(set)
	if err != nil {
		return nil, err
	}
	if len(offsetsMinutes) != len(batch) {
		return nil, fmt.Errorf("offsets length %d does not match set size %d", len(offsetsMinutes), len(batch))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make([]float32, len(batch)*b.components)

	workers := b.workers
	if workers > len(batch) {
		workers = len(batch)
	}
	if workers <= 1 {
		for i, c := range batch {
			propagateOne(c, offsetsMinutes[i], out[i*b.components:(i+1)*b.components], b.components)
		}
		return out, nil
	}

	var wg sync.WaitGroup
	chunk := (len(batch) + workers - 1) / workers
	for start := 0; start < len(batch); start += chunk {
		end := start + chunk
		if end > len(batch) {
			end = len(batch)
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				propagateOne(batch[i], offsetsMinutes[i], out[i*b.components:(i+1)*b.components], b.components)
			}
		}(start, end)
	}
	wg.Wait()

	return out, nil
}

func (b *parallelBackend) ReleaseSet(ctx context.Context, set SetHandle) error {
	return b.store.release(set)
}
