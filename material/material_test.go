package material

import (
	"math"
	"math/rand"
	"testing"

	"row-major/raytracer/contact"
	"row-major/raytracer/ray"
	"row-major/raytracer/vmath/vec3"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-12)

// floorContact is a hit on the plane y=0, seen from above.
func floorContact(in ray.Ray) contact.Contact {
	t := -in.Point[1] / in.Slope[1]
	return contact.New(in, t, vec3.T{0, 1, 0})
}

func TestLambertianScatter(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	albedo := vec3.T{0.2, 0.4, 0.6}
	m := Lambertian(albedo)

	in := ray.Ray{Point: vec3.T{0, 1, 0}, Slope: vec3.T{1, -1, 0}}
	c := floorContact(in)

	for i := 0; i < 1000; i++ {
		s, ok := m.Scatter(in, c, rng)
		if !ok {
			t.Fatalf("Lambertian absorbed a ray")
		}
		if diff := cmp.Diff(s.Attenuation, albedo); diff != "" {
			t.Fatalf("Attenuation is not the albedo; diff (-got +want)\n%s", diff)
		}

		// Attenuation never exceeds 1 per channel, so no bounce adds energy.
		for j := 0; j < 3; j++ {
			if s.Attenuation[j] > 1 {
				t.Fatalf("Attenuation %v exceeds 1", s.Attenuation)
			}
		}

		if vec3.IProd(s.Ray.Slope, c.N) < 0 {
			t.Fatalf("Scattered direction %v points into the surface", s.Ray.Slope)
		}
		if s.Ray.Slope.NearZero() {
			t.Fatalf("Scattered direction is degenerate")
		}
		if diff := cmp.Diff(s.Ray.Point, c.P); diff != "" {
			t.Fatalf("Scattered ray does not leave from the hit point; diff (-got +want)\n%s", diff)
		}
	}
}

func TestMetalMirror(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Metal(vec3.T{0.9, 0.9, 0.9}, 0)

	in := ray.Ray{Point: vec3.T{0, 1, 0}, Slope: vec3.T{1, -1, 0}}
	s, ok := m.Scatter(in, floorContact(in), rng)
	if !ok {
		t.Fatalf("Mirror absorbed a ray")
	}

	want := vec3.Normalize(vec3.T{1, 1, 0})
	if diff := cmp.Diff(s.Ray.Slope, want, approx); diff != "" {
		t.Errorf("Wrong reflection; diff (-got +want)\n%s", diff)
	}
}

func TestMetalGrazingAbsorbs(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Metal(vec3.T{0.9, 0.9, 0.9}, 0)

	// Parallel to the surface: the reflection has no normal component.
	in := ray.Ray{Point: vec3.T{0, 0, 0}, Slope: vec3.T{1, 0, 0}}
	c := contact.Contact{T: 1, R: in, P: vec3.T{1, 0, 0}, N: vec3.T{0, 1, 0}, FrontFace: true}

	if _, ok := m.Scatter(in, c, rng); ok {
		t.Errorf("Expected grazing reflection to be absorbed")
	}
}

func TestMetalFuzzClamped(t *testing.T) {
	if got := Metal(vec3.T{}, 3).Fuzz; got != 1 {
		t.Errorf("Fuzz = %v, want 1", got)
	}
}

func TestDielectricMatchedIndexPassesThrough(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Dielectric(1.0)

	in := ray.Ray{Point: vec3.T{0, 1, 0}, Slope: vec3.T{1, -2, 0}}
	c := floorContact(in)

	for i := 0; i < 100; i++ {
		s, ok := m.Scatter(in, c, rng)
		if !ok {
			t.Fatalf("Dielectric absorbed a ray")
		}
		if diff := cmp.Diff(s.Ray.Slope, vec3.Normalize(in.Slope), approx); diff != "" {
			t.Fatalf("Ray bent at a matched boundary; diff (-got +want)\n%s", diff)
		}
		if diff := cmp.Diff(s.Attenuation, vec3.T{1, 1, 1}); diff != "" {
			t.Fatalf("Glass attenuated the ray; diff (-got +want)\n%s", diff)
		}
	}
}

func TestDielectricTotalInternalReflection(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	m := Dielectric(1.5)

	// Leaving the glass at a shallow angle, from below the surface.
	in := ray.Ray{Point: vec3.T{0, -1, 0}, Slope: vec3.T{5, 1, 0}}
	c := contact.New(in, 1, vec3.T{0, 1, 0})
	if c.FrontFace {
		t.Fatalf("Expected a back-face contact")
	}

	for i := 0; i < 100; i++ {
		s, _ := m.Scatter(in, c, rng)
		if s.Ray.Slope[1] >= 0 {
			t.Fatalf("Ray escaped the glass despite total internal reflection: %v", s.Ray.Slope)
		}
	}
}

func TestReflectance(t *testing.T) {
	testCases := []struct {
		name   string
		cosine float64
		refIdx float64
		want   float64
	}{
		{"normal incidence", 1, 1.5, 0.04},
		{"grazing", 0, 1.5, 1},
		{"matched", 0.5, 1, math.Pow(0.5, 5)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(Reflectance(tc.cosine, tc.refIdx), tc.want, approx); diff != "" {
				t.Errorf("Wrong reflectance; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestKindString(t *testing.T) {
	if got := KindDielectric.String(); got != "dielectric" {
		t.Errorf("String() = %q, want %q", got, "dielectric")
	}
	if got := Kind(42).String(); got != "Kind(42)" {
		t.Errorf("String() = %q, want %q", got, "Kind(42)")
	}
}
