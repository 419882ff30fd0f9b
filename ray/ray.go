package ray

import (
	"math"

	"row-major/raytracer/vmath/vec3"
)

// Span is a closed parametric interval [Lo, Hi] along a ray.
type Span struct {
	Lo, Hi float64
}

// ForwardSpan is the interval used for scene queries: everything in front of
// the ray origin, excluding a small neighborhood of the origin so that a
// scattered ray does not immediately re-hit the surface it left.
func ForwardSpan() Span {
	return Span{Lo: 0.001, Hi: math.Inf(1)}
}

func (s Span) Contains(t float64) bool {
	return s.Lo <= t && t <= s.Hi
}

func SpanOverlaps(a, b Span) bool {
	return !(a.Lo > b.Hi || a.Hi < b.Lo)
}

// Ray is a half-line.  Slope is not required to be unit length; code that
// needs a unit direction must normalize it.
type Ray struct {
	Point vec3.T
	Slope vec3.T
}

func (r *Ray) Eval(t float64) vec3.T {
	return vec3.T{
		r.Point[0] + t*r.Slope[0],
		r.Point[1] + t*r.Slope[1],
		r.Point[2] + t*r.Slope[2],
	}
}
