// Package camera implements a thin-lens camera and the free-fly controls used
// by the previewer.
package camera

import (
	"fmt"
	"math"
	"math/rand"

	"row-major/raytracer/ray"
	"row-major/raytracer/vmath/mat33"
	"row-major/raytracer/vmath/vec3"
)

// Params are the user-facing camera settings.  A Camera is derived from them
// and must be rebuilt whenever they change.
type Params struct {
	LookFrom vec3.T
	LookTo   vec3.T
	Up       vec3.T

	// Vertical field of view, in degrees.
	VerticalFOV float64

	Aperture float64

	// Distance to the plane of perfect focus.  Zero means |LookFrom - LookTo|.
	FocusDist float64
}

func (p *Params) focusDist() float64 {
	if p.FocusDist > 0 {
		return p.FocusDist
	}
	return vec3.SubVV(p.LookFrom, p.LookTo).Norm()
}

// Camera is immutable per frame and safe for concurrent use.
//
// A degenerate configuration (LookFrom == LookTo, or Up parallel to the view
// direction) produces NaN basis vectors, which propagate into the rendered
// pixels rather than failing.
type Camera struct {
	origin vec3.T

	// Columns are u (right), v (up), w (backwards).
	basis mat33.T

	horizontal vec3.T
	vertical   vec3.T
	lowerLeft  vec3.T

	viewportWidth  float64
	viewportHeight float64
	lensRadius     float64
	focusDist      float64
}

func New(p Params, aspectRatio float64) *Camera {
	theta := p.VerticalFOV * math.Pi / 180
	viewportHeight := 2.0 * math.Tan(theta/2)
	viewportWidth := aspectRatio * viewportHeight

	w := vec3.Normalize(vec3.SubVV(p.LookFrom, p.LookTo))
	u := vec3.Normalize(vec3.CProd(p.Up, w))
	v := vec3.CProd(w, u)

	focusDist := p.focusDist()
	horizontal := vec3.MulVS(u, viewportWidth*focusDist)
	vertical := vec3.MulVS(v, viewportHeight*focusDist)

	lowerLeft := p.LookFrom
	lowerLeft = vec3.SubVV(lowerLeft, vec3.DivVS(horizontal, 2))
	lowerLeft = vec3.SubVV(lowerLeft, vec3.DivVS(vertical, 2))
	lowerLeft = vec3.SubVV(lowerLeft, vec3.MulVS(w, focusDist))

	return &Camera{
		origin:         p.LookFrom,
		basis:          mat33.FromColumns(u, v, w),
		horizontal:     horizontal,
		vertical:       vertical,
		lowerLeft:      lowerLeft,
		viewportWidth:  viewportWidth,
		viewportHeight: viewportHeight,
		lensRadius:     p.Aperture / 2,
		focusDist:      focusDist,
	}
}

// LensSample draws a point on the lens disk, in lens coordinates, scaled by
// the lens radius.  A pinhole camera (zero aperture) consumes no randomness.
func (c *Camera) LensSample(rng *rand.Rand) vec3.T {
	if c.lensRadius == 0 {
		return vec3.T{}
	}
	return vec3.MulVS(vec3.RandomInUnitDisk(rng), c.lensRadius)
}

// GetRay maps normalized image coordinates (s, t) in [0, 1]^2, with (0, 0) at
// the lower left, to a world-space ray leaving the lens at lensSample.
//
// The returned direction is not normalized.
func (c *Camera) GetRay(s, t float64, lensSample vec3.T) ray.Ray {
	offset := mat33.MulMV(c.basis, vec3.T{lensSample[0], lensSample[1], 0})

	dir := c.lowerLeft
	dir = vec3.AddVV(dir, vec3.MulVS(c.horizontal, s))
	dir = vec3.AddVV(dir, vec3.MulVS(c.vertical, t))
	dir = vec3.SubVV(dir, c.origin)
	dir = vec3.SubVV(dir, offset)

	return ray.Ray{
		Point: vec3.AddVV(c.origin, offset),
		Slope: dir,
	}
}

type Direction int

const (
	Forward Direction = iota
	Backward
	Left
	Right
	Upward
	Downward
)

// ParseDirection accepts the lowercase direction names used by the previewer.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "forward":
		return Forward, nil
	case "backward":
		return Backward, nil
	case "left":
		return Left, nil
	case "right":
		return Right, nil
	case "up":
		return Upward, nil
	case "down":
		return Downward, nil
	}
	return 0, fmt.Errorf("unknown direction %q", s)
}

// Move translates the camera and its target together by step along one of
// the view-relative axes.
func (p *Params) Move(d Direction, step float64) {
	forward := vec3.Normalize(vec3.SubVV(p.LookTo, p.LookFrom))
	right := vec3.Normalize(vec3.CProd(forward, p.Up))
	up := vec3.CProd(right, forward)

	var delta vec3.T
	switch d {
	case Forward:
		delta = vec3.MulVS(forward, step)
	case Backward:
		delta = vec3.MulVS(forward, -step)
	case Right:
		delta = vec3.MulVS(right, step)
	case Left:
		delta = vec3.MulVS(right, -step)
	case Upward:
		delta = vec3.MulVS(up, step)
	case Downward:
		delta = vec3.MulVS(up, -step)
	}

	p.LookFrom = vec3.AddVV(p.LookFrom, delta)
	p.LookTo = vec3.AddVV(p.LookTo, delta)
}

// Look turns the view direction by yaw radians about Up and then by pitch
// radians about the camera's right axis.  LookFrom stays fixed and the
// distance to LookTo is preserved.
//
// Pitching through the Up axis is refused: the step is dropped when it would
// leave the view direction within about half a degree of Up.
func (p *Params) Look(pitch, yaw float64) {
	offset := vec3.SubVV(p.LookTo, p.LookFrom)

	offset = mat33.MulMV(mat33.Rotation(p.Up, yaw), offset)

	right := vec3.CProd(offset, p.Up)
	pitched := mat33.MulMV(mat33.Rotation(right, pitch), offset)

	cos := vec3.IProd(vec3.Normalize(pitched), vec3.Normalize(p.Up))
	if math.Abs(cos) < 0.99996 {
		offset = pitched
	}

	p.LookTo = vec3.AddVV(p.LookFrom, offset)
}
