package pipeline

import (
	"errors"
	"math"
	"testing"
)

func TestBuffersLengthInvariant(t *testing.T) {
	b, err := NewBuffers(5, 3)
	if err != nil {
		t.Fatalf("NewBuffers: %v", err)
	}
	if len(b.Target()) != 5 || len(b.Current()) != 5 {
		t.Fatalf("len(target) = %d, len(current) = %d, want 5 and 5", len(b.Target()), len(b.Current()))
	}

	// A write never changes the buffer lengths.
	if err := b.WriteTarget(make([]float32, 15)); err != nil {
		t.Fatalf("WriteTarget: %v", err)
	}
	if len(b.Target()) != 5 || len(b.Current()) != 5 {
		t.Fatalf("lengths changed after write: target %d, current %d", len(b.Target()), len(b.Current()))
	}
}

func TestBuffersRejectBadDimensions(t *testing.T) {
	if _, err := NewBuffers(0, 3); err == nil {
		t.Fatal("NewBuffers(0, 3) succeeded, want error")
	}
	if _, err := NewBuffers(4, 4); err == nil {
		t.Fatal("NewBuffers(4, 4) succeeded, want error")
	}
}

func TestWriteTargetConvertsKmToM(t *testing.T) {
	b, err := NewBuffers(1, 3)
	if err != nil {
		t.Fatalf("NewBuffers: %v", err)
	}
	if err := b.WriteTarget([]float32{1, -2, 3.5}); err != nil {
		t.Fatalf("WriteTarget: %v", err)
	}

	got := b.Target()[0].Position
	if got.X != 1000 || got.Y != -2000 || got.Z != 3500 {
		t.Fatalf("Position = %+v, want {1000 -2000 3500}", got)
	}
}

func TestWriteTargetVelocityComponents(t *testing.T) {
	b, err := NewBuffers(1, 6)
	if err != nil {
		t.Fatalf("NewBuffers: %v", err)
	}
	if err := b.WriteTarget([]float32{1, 2, 3, 0.5, -0.5, 1.5}); err != nil {
		t.Fatalf("WriteTarget: %v", err)
	}

	vel := b.Target()[0].Velocity
	if vel.X != 500 || vel.Y != -500 || vel.Z != 1500 {
		t.Fatalf("Velocity = %+v, want {500 -500 1500}", vel)
	}
}

func TestWriteTargetLengthMismatch(t *testing.T) {
	b, err := NewBuffers(2, 3)
	if err != nil {
		t.Fatalf("NewBuffers: %v", err)
	}
	if err := b.WriteTarget([]float32{1, 2, 3}); !errors.Is(err, ErrSampleLength) {
		t.Fatalf("WriteTarget error = %v, want ErrSampleLength", err)
	}
}

func TestWriteTargetNonFiniteLeavesTargetUntouched(t *testing.T) {
	b, err := NewBuffers(2, 3)
	if err != nil {
		t.Fatalf("NewBuffers: %v", err)
	}
	if err := b.WriteTarget([]float32{1, 1, 1, 2, 2, 2}); err != nil {
		t.Fatalf("initial WriteTarget: %v", err)
	}

	bad := []float32{9, 9, 9, 9, 9, float32(math.NaN())}
	if err := b.WriteTarget(bad); !errors.Is(err, ErrSampleNotFinite) {
		t.Fatalf("WriteTarget error = %v, want ErrSampleNotFinite", err)
	}

	if got := b.Target()[0].Position.X; got != 1000 {
		t.Fatalf("target mutated by rejected write: Position.X = %v, want 1000", got)
	}

	inf := []float32{9, 9, float32(math.Inf(1)), 9, 9, 9}
	if err := b.WriteTarget(inf); !errors.Is(err, ErrSampleNotFinite) {
		t.Fatalf("WriteTarget error = %v, want ErrSampleNotFinite", err)
	}
}

func TestWriteTargetConcurrentWithSyncCurrent(t *testing.T) {
	b, err := NewBuffers(4, 3)
	if err != nil {
		t.Fatalf("NewBuffers: %v", err)
	}

	// Writer fills every component of a batch with the same value, so a
	// consistent read always sees X == Y == Z within each sample.
	done := make(chan struct{})
	go func() {
		defer close(done)
		flat := make([]float32, 12)
		for n := 0; n < 5000; n++ {
			v := float32(n % 97)
			for i := range flat {
				flat[i] = v
			}
			if err := b.WriteTarget(flat); err != nil {
				t.Errorf("WriteTarget: %v", err)
				return
			}
		}
	}()

	for n := 0; n < 5000; n++ {
		for i, s := range b.SyncCurrent() {
			p := s.Position
			if p.X != p.Y || p.Y != p.Z {
				t.Fatalf("sample %d torn: %+v", i, p)
			}
		}
	}
	<-done
}
