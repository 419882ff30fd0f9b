package scenepack

import (
	"fmt"
	"math/rand"
	"sort"

	"row-major/raytracer/camera"
	"row-major/raytracer/geometry"
	"row-major/raytracer/material"
	"row-major/raytracer/scene"
	"row-major/raytracer/tracer"
	"row-major/raytracer/vmath/vec3"
)

type builtinFunc func(rng *rand.Rand) *Loaded

var builtins = map[string]builtinFunc{
	"rtiow_final":   rtiowFinal,
	"three_spheres": threeSpheres,
}

// BuiltinNames lists the scenes available to Builtin.
func BuiltinNames() []string {
	names := []string{}
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Builtin constructs a named scene.  Scenes with randomized layouts draw from
// a generator seeded with seed, so a given seed always yields the same scene.
// The returned options carry no render seed.
func Builtin(name string, seed int64) (*Loaded, error) {
	f, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: no builtin scene named %q (have %v)", ErrInvalidScene, name, BuiltinNames())
	}

	loaded := f(rand.New(rand.NewSource(seed)))
	loaded.Name = name
	return loaded, nil
}

// rtiowFinal is the closing scene of "Ray Tracing in One Weekend": a field of
// small random spheres around three large ones.
func rtiowFinal(rng *rand.Rand) *Loaded {
	sc := &scene.Scene{}

	sc.Add(geometry.NewSphere(vec3.T{0, -1000, 0}, 1000, material.Lambertian(vec3.T{0.5, 0.5, 0.5})))

	for a := -11; a < 11; a++ {
		for b := -11; b < 11; b++ {
			chooseMat := rng.Float64()
			center := vec3.T{float64(a) + 0.9*rng.Float64(), 0.2, float64(b) + 0.9*rng.Float64()}

			if vec3.SubVV(center, vec3.T{4, 0.2, 0}).Norm() <= 0.9 {
				continue
			}

			switch {
			case chooseMat < 0.8:
				albedo := vec3.MulVV(vec3.Random(rng), vec3.Random(rng))
				sc.Add(geometry.NewSphere(center, 0.2, material.Lambertian(albedo)))
			case chooseMat < 0.95:
				sc.Add(geometry.NewSphere(center, 0.2, material.Dielectric(1.5)))
			}
			// The remaining draws leave their cell empty.
		}
	}

	sc.Add(geometry.NewSphere(vec3.T{0, 1, 0}, 1.0, material.Dielectric(1.5)))
	sc.Add(geometry.NewSphere(vec3.T{-4, 1, 0}, 1.0, material.Lambertian(vec3.T{0.4, 0.2, 0.1})))
	sc.Add(geometry.NewSphere(vec3.T{4, 1, 0}, 1.0, material.Metal(vec3.T{0.7, 0.6, 0.5}, 0.0)))

	return &Loaded{
		Scene: sc,
		Camera: camera.Params{
			LookFrom:    vec3.T{13, 2, 3},
			LookTo:      vec3.T{0, 0, 0},
			Up:          vec3.T{0, 1, 0},
			VerticalFOV: 20,
			Aperture:    0.1,
			FocusDist:   10,
		},
		Options: tracer.Options{
			Width:           1200,
			Height:          800,
			SamplesPerPixel: 10,
			MaxDepth:        50,
		},
	}
}

// threeSpheres is a small scene: a diffuse sphere between a hollow glass
// sphere and a fuzzy metal one, on a large diffuse ground sphere.
func threeSpheres(rng *rand.Rand) *Loaded {
	sc := &scene.Scene{}

	sc.Add(geometry.NewSphere(vec3.T{0, -100.5, -1}, 100, material.Lambertian(vec3.T{0.8, 0.8, 0.0})))
	sc.Add(geometry.NewSphere(vec3.T{0, 0, -1}, 0.5, material.Lambertian(vec3.T{0.1, 0.2, 0.5})))
	sc.Add(geometry.NewSphere(vec3.T{-1, 0, -1}, 0.5, material.Dielectric(1.5)))
	sc.Add(geometry.NewSphere(vec3.T{-1, 0, -1}, -0.45, material.Dielectric(1.5)))
	sc.Add(geometry.NewSphere(vec3.T{1, 0, -1}, 0.5, material.Metal(vec3.T{0.8, 0.6, 0.2}, 0.3)))

	return &Loaded{
		Scene: sc,
		Camera: camera.Params{
			LookFrom:    vec3.T{-2, 2, 1},
			LookTo:      vec3.T{0, 0, -1},
			Up:          vec3.T{0, 1, 0},
			VerticalFOV: 30,
		},
		Options: tracer.Options{
			Width:           400,
			Height:          225,
			SamplesPerPixel: 50,
			MaxDepth:        20,
		},
	}
}
