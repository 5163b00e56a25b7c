// Package render defines the sink the propagation pipeline streams positions
// into. A renderer exposes an indexable collection of points, a pre-render
// hook registration point, and a single uniform transform applied to the
// whole collection. The pipeline never depends on a concrete renderer.
package render

// Vec3 is a Cartesian position in meters.
type Vec3 struct {
	X, Y, Z float64
}

// Color is an RGBA color with 8-bit channels.
type Color struct {
	R, G, B, A uint8
}

// Point is a renderable point. Position is mutated every frame by the
// consumer; Color and Size are fixed at creation and never change.
//
// Points are pre-allocated once per satellite and reused, so the per-frame
// hand-off allocates nothing.
type Point struct {
	Position Vec3
	Color    Color
	Size     float64
}

// PointSpec describes the fixed attributes of one point at creation time.
type PointSpec struct {
	Color Color
	Size  float64
}

// PointCollection is a mutable, indexable set of rendered points.
//
// Set assigns the point for slot i; callers pass the same *Point for a given
// slot on every frame. SetTransform installs the uniform model transform
// applied to every point's position.
type PointCollection interface {
	Len() int
	Set(i int, p *Point)
	SetTransform(m Mat3)
}

// Renderer is the surface the pipeline needs from a rendering engine.
type Renderer interface {
	// CreatePoints allocates one point slot per spec and returns the
	// collection. Called once per visualization session.
	CreatePoints(specs []PointSpec) (PointCollection, error)

	// OnPreRender registers fn to run once per frame, before the frame is
	// drawn. Hooks run on the renderer's frame loop.
	OnPreRender(fn func())
}
