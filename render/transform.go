package render

import (
	"errors"
	"math"
	"time"

	satellite "github.com/joshuaferrara/go-satellite"
)

// ErrFrameUnavailable indicates the Earth-fixed frame cannot be evaluated at
// the requested instant. Callers fall back to the inertial (identity) frame.
var ErrFrameUnavailable = errors.New("earth-fixed frame unavailable")

// Mat3 is a 3x3 rotation matrix in row-major order.
type Mat3 [9]float64

// Identity returns the identity rotation.
func Identity() Mat3 {
	return Mat3{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
}

// Apply returns m * v.
func (m Mat3) Apply(v Vec3) Vec3 {
	return Vec3{
		X: m[0]*v.X + m[1]*v.Y + m[2]*v.Z,
		Y: m[3]*v.X + m[4]*v.Y + m[5]*v.Z,
		Z: m[6]*v.X + m[7]*v.Y + m[8]*v.Z,
	}
}

// FixedFrame returns the rotation taking inertial (ECI) positions into the
// Earth-fixed (ECEF) frame at instant t, built from Greenwich mean sidereal
// time. Positions in the pipeline's buffers stay inertial; the renderer
// applies this as the collection's uniform transform.
//
// The sidereal-time polynomial is only meaningful for instants the Julian
// day conversion can represent; out-of-range instants return
// ErrFrameUnavailable and callers should keep the inertial frame.
func FixedFrame(t time.Time) (Mat3, error) {
	t = t.UTC()
	year := t.Year()
	if year < 1957 || year > 2156 {
		return Identity(), ErrFrameUnavailable
	}

	_, month, day := t.Date()
	hour, min, sec := t.Clock()
	jd := satellite.JDay(year, int(month), day, hour, min, sec)
	gmst := satellite.ThetaG_JD(jd)

	sin, cos := math.Sin(gmst), math.Cos(gmst)
	return Mat3{
		cos, sin, 0,
		-sin, cos, 0,
		0, 0, 1,
	}, nil
}
