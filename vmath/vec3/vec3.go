// Package vec3 holds the 3-vector used for points, directions, and linear RGB
// colors throughout the renderer.
package vec3

import (
	"math"
	"math/rand"
)

type T [3]float64

// nearZeroEps is the per-component magnitude below which a vector is treated
// as degenerate.
const nearZeroEps = 1e-8

func (v T) Norm() float64 {
	return math.Sqrt(v.NormSquared())
}

func (v T) NormSquared() float64 {
	return v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
}

// NearZero reports whether every component of v has magnitude below 1e-8.
func (v T) NearZero() bool {
	return math.Abs(v[0]) < nearZeroEps && math.Abs(v[1]) < nearZeroEps && math.Abs(v[2]) < nearZeroEps
}

// Normalize returns v scaled to unit length.  The zero vector yields NaNs.
func Normalize(v T) T {
	l := v.Norm()
	return T{
		v[0] / l,
		v[1] / l,
		v[2] / l,
	}
}

func AddVV(a, b T) T {
	return T{
		a[0] + b[0],
		a[1] + b[1],
		a[2] + b[2],
	}
}

func SubVV(a, b T) T {
	return T{
		a[0] - b[0],
		a[1] - b[1],
		a[2] - b[2],
	}
}

// MulVV is the component-wise (Hadamard) product, used to attenuate colors.
func MulVV(a, b T) T {
	return T{
		a[0] * b[0],
		a[1] * b[1],
		a[2] * b[2],
	}
}

func MulVS(a T, b float64) T {
	return T{
		a[0] * b,
		a[1] * b,
		a[2] * b,
	}
}

func DivVS(a T, b float64) T {
	return T{
		a[0] / b,
		a[1] / b,
		a[2] / b,
	}
}

func Neg(a T) T {
	return T{-a[0], -a[1], -a[2]}
}

// IProd is the inner (dot) product.
func IProd(a, b T) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

// CProd is the cross product.
func CProd(a, b T) T {
	return T{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

// Lerp blends linearly from a (t=0) to b (t=1).
func Lerp(t float64, a, b T) T {
	return AddVV(MulVS(a, 1.0-t), MulVS(b, t))
}

func Reflect(a, n T) T {
	return SubVV(a, MulVS(n, 2*IProd(a, n)))
}

// Refract bends the unit vector uv through a surface with unit normal n,
// where etaRatio is the ratio of the refractive indices (incident over
// transmitted).
//
// The caller is responsible for ruling out total internal reflection first;
// when it occurs the parallel component is computed from the absolute value
// and the result is meaningless.
func Refract(uv, n T, etaRatio float64) T {
	cosTheta := math.Min(IProd(Neg(uv), n), 1.0)
	perp := MulVS(AddVV(uv, MulVS(n, cosTheta)), etaRatio)
	parallel := MulVS(n, -math.Sqrt(math.Abs(1.0-perp.NormSquared())))
	return AddVV(perp, parallel)
}

// RandomInUnitSphere rejection-samples a point strictly inside the unit ball.
//
// There is no cap on the number of attempts.  Each attempt succeeds with
// probability pi/6, so the loop terminates almost surely for any
// non-degenerate source.
func RandomInUnitSphere(rng *rand.Rand) T {
	for {
		p := T{
			2*rng.Float64() - 1,
			2*rng.Float64() - 1,
			2*rng.Float64() - 1,
		}
		if p.NormSquared() < 1.0 {
			return p
		}
	}
}

func RandomUnitVector(rng *rand.Rand) T {
	return Normalize(RandomInUnitSphere(rng))
}

// RandomInUnitDisk rejection-samples a point inside the unit disk in the z=0
// plane.  Used for thin-lens sampling.
func RandomInUnitDisk(rng *rand.Rand) T {
	for {
		p := T{
			2*rng.Float64() - 1,
			2*rng.Float64() - 1,
			0,
		}
		if p.NormSquared() < 1.0 {
			return p
		}
	}
}

// Random returns a vector with each component uniform in [0, 1).
func Random(rng *rand.Rand) T {
	return T{rng.Float64(), rng.Float64(), rng.Float64()}
}
