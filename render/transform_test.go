package render

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestIdentityApply(t *testing.T) {
	v := Vec3{X: 1, Y: 2, Z: 3}
	if got := Identity().Apply(v); got != v {
		t.Fatalf("Identity().Apply(%+v) = %+v, want unchanged", v, got)
	}
}

func TestFixedFrameIsRotation(t *testing.T) {
	at := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	m, err := FixedFrame(at)
	if err != nil {
		t.Fatalf("FixedFrame: %v", err)
	}

	// A rotation about the z axis preserves vector length and the z
	// component.
	v := Vec3{X: 7000e3, Y: -1500e3, Z: 2000e3}
	got := m.Apply(v)

	wantNorm := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	gotNorm := math.Sqrt(got.X*got.X + got.Y*got.Y + got.Z*got.Z)
	if math.Abs(gotNorm-wantNorm) > 1e-6*wantNorm {
		t.Fatalf("norm changed: %v -> %v", wantNorm, gotNorm)
	}
	if got.Z != v.Z {
		t.Fatalf("z component changed: %v -> %v", v.Z, got.Z)
	}
}

func TestFixedFrameVariesWithTime(t *testing.T) {
	at := time.Date(2024, time.March, 31, 12, 0, 0, 0, time.UTC)
	m1, err := FixedFrame(at)
	if err != nil {
		t.Fatalf("FixedFrame: %v", err)
	}
	m2, err := FixedFrame(at.Add(time.Hour))
	if err != nil {
		t.Fatalf("FixedFrame: %v", err)
	}
	if m1 == m2 {
		t.Fatal("transforms for instants an hour apart are identical")
	}
}

func TestFixedFrameOutOfRange(t *testing.T) {
	at := time.Date(1800, time.January, 1, 0, 0, 0, 0, time.UTC)
	m, err := FixedFrame(at)
	if !errors.Is(err, ErrFrameUnavailable) {
		t.Fatalf("FixedFrame error = %v, want ErrFrameUnavailable", err)
	}
	if m != Identity() {
		t.Fatalf("out-of-range transform = %v, want identity", m)
	}
}
