package contact

import (
	"row-major/raytracer/ray"
	"row-major/raytracer/vmath/vec3"
)

// Contact describes where a ray struck a surface.
//
// N is unit length and always faces back against R.Slope.  FrontFace records
// whether the ray arrived from the outside of the surface; when it did not,
// N is the inward normal.
type Contact struct {
	T         float64
	R         ray.Ray
	P         vec3.T
	N         vec3.T
	FrontFace bool
}

// New builds a Contact for ray r at parameter t, orienting outwardNormal
// against the ray.
func New(r ray.Ray, t float64, outwardNormal vec3.T) Contact {
	frontFace := vec3.IProd(r.Slope, outwardNormal) < 0
	n := outwardNormal
	if !frontFace {
		n = vec3.Neg(outwardNormal)
	}
	return Contact{
		T:         t,
		R:         r,
		P:         r.Eval(t),
		N:         n,
		FrontFace: frontFace,
	}
}
