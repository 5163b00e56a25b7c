package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/signalsfoundry/orbit-visualizer/internal/logging"
	"github.com/signalsfoundry/orbit-visualizer/propagate"
	"github.com/signalsfoundry/orbit-visualizer/tle"
)

// ErrNoElements indicates no element in the batch survived derivation, so
// there is nothing to register.
var ErrNoElements = errors.New("no usable elements in batch")

// SatelliteMetadata describes one registered satellite. Index is dense and
// stable: indices 0..N-1 address the same satellite in every pipeline buffer
// for the registered set's lifetime.
type SatelliteMetadata struct {
	Name          string
	CatalogNumber string
	Epoch         time.Time
	Index         int
}

// Register derives constants for every raw element, drops the ones that fail
// derivation, and registers the surviving batch with the backend in a single
// call. Indices follow the filtered order, not the input order; callers must
// use the returned metadata.
//
// A malformed element is never an error, since real feeds contain them. An
// empty surviving batch is.
func Register(ctx context.Context, backend propagate.Backend, elements []tle.RawElement, log logging.Logger) (propagate.SetHandle, []SatelliteMetadata, error) {
	if log == nil {
		log = logging.Noop()
	}

	constants := make([]propagate.OrbitalConstants, 0, len(elements))
	meta := make([]SatelliteMetadata, 0, len(elements))
	for _, e := range elements {
		c, err := propagate.DeriveConstants(e)
		if err != nil {
			log.Debug(ctx, "dropping element",
				logging.String("name", e.Name),
				logging.String("error", err.Error()),
			)
			continue
		}
		meta = append(meta, SatelliteMetadata{
			Name:          e.Name,
			CatalogNumber: e.CatalogNumber(),
			Epoch:         c.Epoch(),
			Index:         len(meta),
		})
		constants = append(constants, c)
	}
	if len(constants) == 0 {
		return 0, nil, fmt.Errorf("%w: %d elements supplied", ErrNoElements, len(elements))
	}

	set, err := backend.RegisterSet(ctx, constants)
	if err != nil {
		return 0, nil, fmt.Errorf("register set: %w", err)
	}

	log.Info(ctx, "registered element set",
		logging.String("backend", backend.Name()),
		logging.Int("satellites", len(meta)),
		logging.Int("dropped", len(elements)-len(meta)),
	)
	return set, meta, nil
}
