package geometry

import (
	"fmt"
	"math"

	"row-major/raytracer/contact"
	"row-major/raytracer/material"
	"row-major/raytracer/ray"
	"row-major/raytracer/vmath/vec3"
)

// HitRecord is a contact together with the material of the primitive that
// was struck.  It lives only for one scatter step.
type HitRecord struct {
	contact.Contact
	Material material.Material
}

type Kind int

const (
	KindSphere Kind = iota
	KindBox
)

func (k Kind) String() string {
	switch k {
	case KindSphere:
		return "sphere"
	case KindBox:
		return "box"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Object is one primitive of a scene: a tagged geometry plus its material.
// Only the geometry field selected by Kind is meaningful.
type Object struct {
	Kind     Kind
	Sphere   Sphere
	Box      Box
	Material material.Material
}

func NewSphere(center vec3.T, radius float64, m material.Material) Object {
	return Object{
		Kind:     KindSphere,
		Sphere:   Sphere{Center: center, Radius: radius},
		Material: m,
	}
}

func NewBox(min, max vec3.T, m material.Material) Object {
	return Object{
		Kind: KindBox,
		Box: Box{Spans: [3]ray.Span{
			{Lo: math.Min(min[0], max[0]), Hi: math.Max(min[0], max[0])},
			{Lo: math.Min(min[1], max[1]), Hi: math.Max(min[1], max[1])},
			{Lo: math.Min(min[2], max[2]), Hi: math.Max(min[2], max[2])},
		}},
		Material: m,
	}
}

// Hit intersects r with the object, accepting only parameters within span.
func (o *Object) Hit(r ray.Ray, span ray.Span) (HitRecord, bool) {
	var c contact.Contact
	var ok bool

	switch o.Kind {
	case KindSphere:
		c, ok = o.Sphere.Hit(r, span)
	case KindBox:
		c, ok = o.Box.Hit(r, span)
	default:
		panic(fmt.Sprintf("geometry: unhandled kind %v", o.Kind))
	}

	if !ok {
		return HitRecord{}, false
	}
	return HitRecord{Contact: c, Material: o.Material}, true
}

type Sphere struct {
	Center vec3.T
	Radius float64
}

func (s *Sphere) Hit(r ray.Ray, span ray.Span) (contact.Contact, bool) {
	oc := vec3.SubVV(r.Point, s.Center)
	a := r.Slope.NormSquared()
	h := vec3.IProd(oc, r.Slope)
	c := oc.NormSquared() - s.Radius*s.Radius

	disc := h*h - a*c
	if disc < 0 {
		return contact.Contact{}, false
	}
	sqrtDisc := math.Sqrt(disc)

	// Prefer the nearer root; fall back to the farther one, which is the exit
	// point when the ray starts inside the sphere.
	t := (-h - sqrtDisc) / a
	if !span.Contains(t) {
		t = (-h + sqrtDisc) / a
		if !span.Contains(t) {
			return contact.Contact{}, false
		}
	}

	outward := vec3.DivVS(vec3.SubVV(r.Eval(t), s.Center), s.Radius)
	return contact.New(r, t, outward), true
}

// Box is an axis-aligned box given by one span per axis.
type Box struct {
	Spans [3]ray.Span
}

func (b *Box) Hit(r ray.Ray, span ray.Span) (contact.Contact, bool) {
	cover := ray.Span{Lo: math.Inf(-1), Hi: math.Inf(1)}

	// Axis and sign of the outward normal at the entry and exit faces.
	entryAxis, exitAxis := -1, -1
	entrySign, exitSign := 0.0, 0.0

	for i := 0; i < 3; i++ {
		// Parallel to this slab: the slab either contains the whole ray or
		// none of it.
		if r.Slope[i] == 0 {
			if r.Point[i] < b.Spans[i].Lo || r.Point[i] > b.Spans[i].Hi {
				return contact.Contact{}, false
			}
			continue
		}

		cur := ray.Span{
			Lo: (b.Spans[i].Lo - r.Point[i]) / r.Slope[i],
			Hi: (b.Spans[i].Hi - r.Point[i]) / r.Slope[i],
		}

		// Entering through the Lo face means an outward normal of -1.
		loSign, hiSign := -1.0, 1.0
		if cur.Hi < cur.Lo {
			cur.Hi, cur.Lo = cur.Lo, cur.Hi
			loSign, hiSign = 1.0, -1.0
		}

		// NaN comes from a degenerate camera ray.
		if math.IsNaN(cur.Lo) || math.IsNaN(cur.Hi) || !ray.SpanOverlaps(cover, cur) {
			return contact.Contact{}, false
		}

		if cur.Lo > cover.Lo {
			cover.Lo = cur.Lo
			entryAxis, entrySign = i, loSign
		}
		if cur.Hi < cover.Hi {
			cover.Hi = cur.Hi
			exitAxis, exitSign = i, hiSign
		}
	}

	if cover.Lo > cover.Hi {
		return contact.Contact{}, false
	}

	t, axis, sign := cover.Lo, entryAxis, entrySign
	if !span.Contains(t) {
		t, axis, sign = cover.Hi, exitAxis, exitSign
		if !span.Contains(t) {
			return contact.Contact{}, false
		}
	}
	if axis < 0 {
		return contact.Contact{}, false
	}

	outward := vec3.T{}
	outward[axis] = sign
	return contact.New(r, t, outward), true
}
