// Package mat33 provides the small amount of 3x3 matrix support needed for the
// camera basis and view rotations.  Matrices are stored row-major.
package mat33

import (
	"math"

	"row-major/raytracer/vmath/vec3"
)

type T struct {
	Elts [9]float64
}

// FromColumns builds the matrix whose columns are a, b, and c.  With an
// orthonormal basis as columns, the result maps basis coordinates to world
// coordinates.
func FromColumns(a, b, c vec3.T) T {
	return T{[9]float64{
		a[0], b[0], c[0],
		a[1], b[1], c[1],
		a[2], b[2], c[2],
	}}
}

func (m T) Col(i int) vec3.T {
	return vec3.T{m.Elts[i], m.Elts[3+i], m.Elts[6+i]}
}

func MulMV(a T, b vec3.T) vec3.T {
	return vec3.T{
		a.Elts[0]*b[0] + a.Elts[1]*b[1] + a.Elts[2]*b[2],
		a.Elts[3]*b[0] + a.Elts[4]*b[1] + a.Elts[5]*b[2],
		a.Elts[6]*b[0] + a.Elts[7]*b[1] + a.Elts[8]*b[2],
	}
}

// Rotation returns the matrix rotating by angle radians about axis
// (right-handed), via Rodrigues' formula.  axis need not be normalized.
func Rotation(axis vec3.T, angle float64) T {
	k := vec3.Normalize(axis)
	s, c := math.Sin(angle), math.Cos(angle)
	t := 1 - c
	return T{[9]float64{
		t*k[0]*k[0] + c, t*k[0]*k[1] - s*k[2], t*k[0]*k[2] + s*k[1],
		t*k[0]*k[1] + s*k[2], t*k[1]*k[1] + c, t*k[1]*k[2] - s*k[0],
		t*k[0]*k[2] - s*k[1], t*k[1]*k[2] + s*k[0], t*k[2]*k[2] + c,
	}}
}
