// Package scenepack loads scene descriptions: YAML scene files, and the
// scenes built into the binaries.
package scenepack

import (
	"context"
	"errors"
	"fmt"
	"os"

	"row-major/raytracer/camera"
	"row-major/raytracer/geometry"
	"row-major/raytracer/material"
	"row-major/raytracer/scene"
	"row-major/raytracer/tracer"
	"row-major/raytracer/vmath/vec3"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"sigs.k8s.io/yaml"
)

// ErrInvalidScene is wrapped by every semantic error in a scene description.
var ErrInvalidScene = errors.New("invalid scene")

// File is the on-disk scene description.
type File struct {
	Image  Image    `json:"image"`
	Seed   *uint64  `json:"seed,omitempty"`
	Camera Camera   `json:"camera"`
	World  []Object `json:"world"`
}

type Image struct {
	Width           int `json:"width"`
	Height          int `json:"height"`
	SamplesPerPixel int `json:"samples_per_pixel"`
	MaxRayDepth     int `json:"max_ray_depth"`
}

type Camera struct {
	LookFrom    vec3.T   `json:"look_from"`
	LookTo      vec3.T   `json:"look_to"`
	Up          *vec3.T  `json:"up,omitempty"`
	VerticalFOV float64  `json:"vertical_fov"`
	Aperture    float64  `json:"aperture"`
	FocusDist   *float64 `json:"focus_dist,omitempty"`
}

// Object holds exactly one geometry and one material.
type Object struct {
	Sphere   *Sphere  `json:"sphere,omitempty"`
	Box      *Box     `json:"box,omitempty"`
	Material Material `json:"material"`
}

type Sphere struct {
	Center vec3.T  `json:"center"`
	Radius float64 `json:"radius"`
}

type Box struct {
	Min vec3.T `json:"min"`
	Max vec3.T `json:"max"`
}

// Material holds exactly one of its fields.
type Material struct {
	Lambertian *Lambertian `json:"lambertian,omitempty"`
	Metal      *Metal      `json:"metal,omitempty"`
	Dielectric *Dielectric `json:"dielectric,omitempty"`
}

type Lambertian struct {
	Albedo vec3.T `json:"albedo"`
}

type Metal struct {
	Albedo vec3.T  `json:"albedo"`
	Fuzz   float64 `json:"fuzz"`
}

type Dielectric struct {
	RefractiveIndex float64 `json:"refractive_index"`
}

// Loaded is a scene ready to hand to tracer.Render.
type Loaded struct {
	Name    string
	Scene   *scene.Scene
	Camera  camera.Params
	Options tracer.Options
}

func LoadFile(ctx context.Context, fileName string) (*Loaded, error) {
	otelTracer := otel.Tracer("row-major/raytracer/scenepack")
	var span trace.Span
	_, span = otelTracer.Start(ctx, "scenepack.LoadFile")
	defer span.End()

	span.SetAttributes(attribute.String("file", fileName))

	fileBytes, err := os.ReadFile(fileName)
	if err != nil {
		err := fmt.Errorf("while reading scene file: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	loaded, err := Parse(fileBytes)
	if err != nil {
		err := fmt.Errorf("while parsing scene file %s: %w", fileName, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	loaded.Name = fileName

	span.SetStatus(codes.Ok, "")
	return loaded, nil
}

// Parse decodes and converts a YAML (or JSON) scene description.  Unknown
// fields are rejected.
func Parse(data []byte) (*Loaded, error) {
	f := &File{}
	if err := yaml.UnmarshalStrict(data, f); err != nil {
		return nil, fmt.Errorf("while unmarshaling scene: %w", err)
	}
	return Convert(f)
}

// Convert validates f and builds the scene, camera, and render options it
// describes.
func Convert(f *File) (*Loaded, error) {
	sc := &scene.Scene{}
	for i, o := range f.World {
		obj, err := convertObject(o)
		if err != nil {
			return nil, fmt.Errorf("while converting world[%d]: %w", i, err)
		}
		sc.Add(obj)
	}

	cam := camera.Params{
		LookFrom:    f.Camera.LookFrom,
		LookTo:      f.Camera.LookTo,
		Up:          vec3.T{0, 1, 0},
		VerticalFOV: f.Camera.VerticalFOV,
		Aperture:    f.Camera.Aperture,
	}
	if f.Camera.Up != nil {
		cam.Up = *f.Camera.Up
	}
	if f.Camera.FocusDist != nil {
		if *f.Camera.FocusDist <= 0 {
			return nil, fmt.Errorf("%w: focus_dist must be positive, got %v", ErrInvalidScene, *f.Camera.FocusDist)
		}
		cam.FocusDist = *f.Camera.FocusDist
	}
	if cam.VerticalFOV <= 0 || cam.VerticalFOV >= 180 {
		return nil, fmt.Errorf("%w: vertical_fov must be in (0, 180), got %v", ErrInvalidScene, cam.VerticalFOV)
	}
	if cam.Aperture < 0 {
		return nil, fmt.Errorf("%w: aperture must not be negative, got %v", ErrInvalidScene, cam.Aperture)
	}

	opts := tracer.Options{
		Width:           f.Image.Width,
		Height:          f.Image.Height,
		SamplesPerPixel: f.Image.SamplesPerPixel,
		MaxDepth:        f.Image.MaxRayDepth,
		Seed:            f.Seed,
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidScene, err)
	}

	return &Loaded{
		Scene:   sc,
		Camera:  cam,
		Options: opts,
	}, nil
}

func convertObject(o Object) (geometry.Object, error) {
	m, err := convertMaterial(o.Material)
	if err != nil {
		return geometry.Object{}, err
	}

	switch {
	case o.Sphere != nil && o.Box != nil:
		return geometry.Object{}, fmt.Errorf("%w: object has both sphere and box", ErrInvalidScene)
	case o.Sphere != nil:
		if o.Sphere.Radius <= 0 {
			return geometry.Object{}, fmt.Errorf("%w: sphere radius must be positive, got %v", ErrInvalidScene, o.Sphere.Radius)
		}
		return geometry.NewSphere(o.Sphere.Center, o.Sphere.Radius, m), nil
	case o.Box != nil:
		return geometry.NewBox(o.Box.Min, o.Box.Max, m), nil
	}

	return geometry.Object{}, fmt.Errorf("%w: object has no geometry", ErrInvalidScene)
}

func convertMaterial(m Material) (material.Material, error) {
	set := 0
	if m.Lambertian != nil {
		set++
	}
	if m.Metal != nil {
		set++
	}
	if m.Dielectric != nil {
		set++
	}
	if set != 1 {
		return material.Material{}, fmt.Errorf("%w: material must set exactly one of lambertian, metal, dielectric; got %d", ErrInvalidScene, set)
	}

	switch {
	case m.Lambertian != nil:
		return material.Lambertian(m.Lambertian.Albedo), nil
	case m.Metal != nil:
		if m.Metal.Fuzz < 0 || m.Metal.Fuzz > 1 {
			return material.Material{}, fmt.Errorf("%w: metal fuzz must be in [0, 1], got %v", ErrInvalidScene, m.Metal.Fuzz)
		}
		return material.Metal(m.Metal.Albedo, m.Metal.Fuzz), nil
	default:
		if m.Dielectric.RefractiveIndex <= 0 {
			return material.Material{}, fmt.Errorf("%w: refractive_index must be positive, got %v", ErrInvalidScene, m.Dielectric.RefractiveIndex)
		}
		return material.Dielectric(m.Dielectric.RefractiveIndex), nil
	}
}
