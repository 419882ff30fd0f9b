// Package material implements the surface scattering models.
//
// The set of materials is closed: a Material is a tagged value and Scatter
// switches on its Kind.  Adding a material means adding a Kind and a case.
package material

import (
	"fmt"
	"math"
	"math/rand"

	"row-major/raytracer/contact"
	"row-major/raytracer/ray"
	"row-major/raytracer/vmath/vec3"
)

type Kind int

const (
	KindLambertian Kind = iota
	KindMetal
	KindDielectric
)

func (k Kind) String() string {
	switch k {
	case KindLambertian:
		return "lambertian"
	case KindMetal:
		return "metal"
	case KindDielectric:
		return "dielectric"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Material is immutable once attached to a primitive.  Only the fields that
// belong to Kind are meaningful.
type Material struct {
	Kind Kind

	// Lambertian and Metal.
	Albedo vec3.T

	// Metal.  In [0, 1].
	Fuzz float64

	// Dielectric.
	RefractiveIndex float64
}

func Lambertian(albedo vec3.T) Material {
	return Material{Kind: KindLambertian, Albedo: albedo}
}

// Metal builds a reflective material.  fuzz is clamped to 1.
func Metal(albedo vec3.T, fuzz float64) Material {
	if fuzz > 1 {
		fuzz = 1
	}
	return Material{Kind: KindMetal, Albedo: albedo, Fuzz: fuzz}
}

func Dielectric(refractiveIndex float64) Material {
	return Material{Kind: KindDielectric, RefractiveIndex: refractiveIndex}
}

// Scattered is the outcome of a successful scatter: the next ray along the
// path, and the color it is attenuated by.
type Scattered struct {
	Ray         ray.Ray
	Attenuation vec3.T
}

// Scatter turns the incoming ray at c into an outgoing ray.  ok is false when
// the material absorbs the ray, which ends the path.
func (m Material) Scatter(in ray.Ray, c contact.Contact, rng *rand.Rand) (s Scattered, ok bool) {
	switch m.Kind {
	case KindLambertian:
		return m.scatterLambertian(c, rng), true
	case KindMetal:
		return m.scatterMetal(in, c, rng)
	case KindDielectric:
		return m.scatterDielectric(in, c, rng), true
	}
	panic(fmt.Sprintf("material: unhandled kind %v", m.Kind))
}

func (m Material) scatterLambertian(c contact.Contact, rng *rand.Rand) Scattered {
	dir := vec3.AddVV(c.N, vec3.RandomUnitVector(rng))

	// The random vector can cancel the normal exactly.
	if dir.NearZero() {
		dir = c.N
	}

	return Scattered{
		Ray:         ray.Ray{Point: c.P, Slope: dir},
		Attenuation: m.Albedo,
	}
}

func (m Material) scatterMetal(in ray.Ray, c contact.Contact, rng *rand.Rand) (Scattered, bool) {
	reflected := vec3.Reflect(vec3.Normalize(in.Slope), c.N)
	dir := vec3.AddVV(reflected, vec3.MulVS(vec3.RandomInUnitSphere(rng), m.Fuzz))

	if vec3.IProd(dir, c.N) <= 0 {
		return Scattered{}, false
	}

	return Scattered{
		Ray:         ray.Ray{Point: c.P, Slope: dir},
		Attenuation: m.Albedo,
	}, true
}

func (m Material) scatterDielectric(in ray.Ray, c contact.Contact, rng *rand.Rand) Scattered {
	ratio := m.RefractiveIndex
	if c.FrontFace {
		ratio = 1.0 / m.RefractiveIndex
	}

	unit := vec3.Normalize(in.Slope)
	cosTheta := math.Min(vec3.IProd(vec3.Neg(unit), c.N), 1.0)
	sinTheta := math.Sqrt(1.0 - cosTheta*cosTheta)

	var dir vec3.T
	if ratio*sinTheta > 1.0 || Reflectance(cosTheta, ratio) > rng.Float64() {
		dir = vec3.Reflect(unit, c.N)
	} else {
		dir = vec3.Refract(unit, c.N, ratio)
	}

	return Scattered{
		Ray:         ray.Ray{Point: c.P, Slope: dir},
		Attenuation: vec3.T{1, 1, 1},
	}
}

// Reflectance is Schlick's approximation of the probability that light
// arriving at angle acos(cosine) reflects off a boundary with index ratio
// refIdx.
func Reflectance(cosine, refIdx float64) float64 {
	r0 := (1 - refIdx) / (1 + refIdx)
	r0 = r0 * r0
	return r0 + (1-r0)*math.Pow(1-cosine, 5)
}
