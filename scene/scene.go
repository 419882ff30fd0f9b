package scene

import (
	"math/rand"

	"row-major/raytracer/geometry"
	"row-major/raytracer/ray"
	"row-major/raytracer/vmath/vec3"
)

var (
	skyWhite = vec3.T{1.0, 1.0, 1.0}
	skyBlue  = vec3.T{0.5, 0.7, 1.0}
)

// Scene is an ordered list of primitives.  It is read concurrently by every
// render worker and must not be modified while a render is in flight.
//
// There is no spatial index: every query visits every object.
type Scene struct {
	Objects []geometry.Object
}

// Add is a convenience function to append an object and get its index.
func (s *Scene) Add(o geometry.Object) int {
	s.Objects = append(s.Objects, o)
	return len(s.Objects) - 1
}

// Hit returns the nearest intersection of r with any object within span.
func (s *Scene) Hit(r ray.Ray, span ray.Span) (geometry.HitRecord, bool) {
	var closest geometry.HitRecord
	found := false

	for i := range s.Objects {
		rec, ok := s.Objects[i].Hit(r, span)
		if !ok {
			continue
		}
		// Later objects must now beat this one to count.
		span.Hi = rec.T
		closest = rec
		found = true
	}

	return closest, found
}

// Sky is the radiance arriving along a ray that escapes the scene: a vertical
// gradient from white straight down to light blue straight up.
func Sky(r ray.Ray) vec3.T {
	unit := vec3.Normalize(r.Slope)
	t := 0.5 * (unit[1] + 1.0)
	return vec3.Lerp(t, skyWhite, skyBlue)
}

// SampleRay estimates the radiance arriving back along r by following at most
// depthLim bounces.
//
// A path that is still bouncing when the depth limit runs out contributes
// nothing beyond what it has already collected.
func (s *Scene) SampleRay(r ray.Ray, depthLim int, rng *rand.Rand) vec3.T {
	accum := vec3.T{}
	curK := vec3.T{1, 1, 1}
	curRay := r

	for i := 0; i < depthLim; i++ {
		rec, ok := s.Hit(curRay, ray.ForwardSpan())
		if !ok {
			accum = vec3.AddVV(accum, vec3.MulVV(curK, Sky(curRay)))
			break
		}

		scattered, ok := rec.Material.Scatter(curRay, rec.Contact, rng)
		if !ok {
			break
		}

		curK = vec3.MulVV(curK, scattered.Attenuation)
		curRay = scattered.Ray
	}

	return accum
}
