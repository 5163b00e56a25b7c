package propagate

import (
	"context"
	"errors"
	"math"
	"runtime"
	"testing"

	"github.com/signalsfoundry/orbit-visualizer/tle"
)

const (
	issLine1 = "1 25544U 98067A   21275.59097222  .00000204  00000-0  10270-4 0  9990"
	issLine2 = "2 25544  51.6459 115.9059 0001817  61.3028  35.9198 15.49370953257760"
)

func issElement() tle.RawElement {
	return tle.RawElement{Name: "ISS (ZARYA)", Line1: issLine1, Line2: issLine2}
}

func TestDeriveConstants(t *testing.T) {
	c, err := DeriveConstants(issElement())
	if err != nil {
		t.Fatalf("DeriveConstants: %v", err)
	}
	if c.Epoch().Year() != 2021 {
		t.Fatalf("Epoch year = %d, want 2021", c.Epoch().Year())
	}
}

func TestDeriveConstantsMalformed(t *testing.T) {
	bad := tle.RawElement{Name: "BAD", Line1: "1 nonsense", Line2: issLine2}
	if _, err := DeriveConstants(bad); !errors.Is(err, tle.ErrMalformedElement) {
		t.Fatalf("DeriveConstants error = %v, want ErrMalformedElement", err)
	}
}

func TestOpenUnknownBackend(t *testing.T) {
	if _, err := Open("cuda"); !errors.Is(err, ErrUnknownBackend) {
		t.Fatalf("Open error = %v, want ErrUnknownBackend", err)
	}
}

func TestBackendsAgree(t *testing.T) {
	ctx := context.Background()

	c, err := DeriveConstants(issElement())
	if err != nil {
		t.Fatalf("DeriveConstants: %v", err)
	}
	constants := []OrbitalConstants{c, c, c}
	offsets := []float64{0, 45, 90}

	serial, err := Open("serial")
	if err != nil {
		t.Fatalf("Open(serial): %v", err)
	}
	parallel, err := Open("parallel")
	if err != nil {
		t.Fatalf("Open(parallel): %v", err)
	}

	var outputs [][]float32
	for _, b := range []Backend{serial, parallel} {
		set, err := b.RegisterSet(ctx, constants)
		if err != nil {
			t.Fatalf("%s RegisterSet: %v", b.Name(), err)
		}
		out, err := b.Propagate(ctx, set, offsets)
		if err != nil {
			t.Fatalf("%s Propagate: %v", b.Name(), err)
		}
		if len(out) != len(constants)*b.Components() {
			t.Fatalf("%s output length = %d, want %d", b.Name(), len(out), len(constants)*b.Components())
		}
		for i, v := range out {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				t.Fatalf("%s output[%d] = %v, want finite", b.Name(), i, v)
			}
		}
		outputs = append(outputs, out)
		if err := b.ReleaseSet(ctx, set); err != nil {
			t.Fatalf("%s ReleaseSet: %v", b.Name(), err)
		}
	}

	for i := range outputs[0] {
		if outputs[0][i] != outputs[1][i] {
			t.Fatalf("serial and parallel outputs differ at %d: %v vs %v", i, outputs[0][i], outputs[1][i])
		}
	}
}

func TestBackendWithVelocity(t *testing.T) {
	ctx := context.Background()

	b, err := Open("serial", WithVelocity())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if b.Components() != 6 {
		t.Fatalf("Components = %d, want 6", b.Components())
	}

	c, err := DeriveConstants(issElement())
	if err != nil {
		t.Fatalf("DeriveConstants: %v", err)
	}
	set, err := b.RegisterSet(ctx, []OrbitalConstants{c})
	if err != nil {
		t.Fatalf("RegisterSet: %v", err)
	}
	out, err := b.Propagate(ctx, set, []float64{0})
	if err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	if len(out) != 6 {
		t.Fatalf("output length = %d, want 6", len(out))
	}
}

func TestPropagateUnknownSet(t *testing.T) {
	ctx := context.Background()

	b, err := Open("serial")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := b.Propagate(ctx, SetHandle(99), []float64{0}); !errors.Is(err, ErrUnknownSet) {
		t.Fatalf("Propagate error = %v, want ErrUnknownSet", err)
	}
	if err := b.ReleaseSet(ctx, SetHandle(99)); !errors.Is(err, ErrUnknownSet) {
		t.Fatalf("ReleaseSet error = %v, want ErrUnknownSet", err)
	}
}

func TestRegisterEmptySet(t *testing.T) {
	ctx := context.Background()

	b, err := Open("serial")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := b.RegisterSet(ctx, nil); !errors.Is(err, ErrEmptySet) {
		t.Fatalf("RegisterSet error = %v, want ErrEmptySet", err)
	}
}

func TestOffsetsLengthMismatch(t *testing.T) {
	ctx := context.Background()

	b, err := Open("parallel")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	c, err := DeriveConstants(issElement())
	if err != nil {
		t.Fatalf("DeriveConstants: %v", err)
	}
	set, err := b.RegisterSet(ctx, []OrbitalConstants{c, c})
	if err != nil {
		t.Fatalf("RegisterSet: %v", err)
	}
	if _, err := b.Propagate(ctx, set, []float64{0}); err == nil {
		t.Fatal("Propagate with mismatched offsets length succeeded, want error")
	}
}

func TestWithWorkers(t *testing.T) {
	b, err := Open("parallel", WithWorkers(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := b.(*parallelBackend).workers; got != 2 {
		t.Fatalf("workers = %d, want 2", got)
	}

	b, err = Open("parallel", WithWorkers(-3))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := b.(*parallelBackend).workers; got != runtime.GOMAXPROCS(0) {
		t.Fatalf("workers = %d, want GOMAXPROCS %d", got, runtime.GOMAXPROCS(0))
	}
}
