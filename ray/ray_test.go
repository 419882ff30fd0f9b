package ray

import (
	"math"
	"testing"

	"row-major/raytracer/vmath/vec3"

	"github.com/google/go-cmp/cmp"
)

func TestEval(t *testing.T) {
	r := Ray{Point: vec3.T{1, 2, 3}, Slope: vec3.T{0, 0, -2}}
	if diff := cmp.Diff(r.Eval(1.5), vec3.T{1, 2, 0}); diff != "" {
		t.Errorf("Wrong point; diff (-got +want)\n%s", diff)
	}
}

func TestSpan(t *testing.T) {
	fwd := ForwardSpan()
	if fwd.Contains(0) {
		t.Errorf("ForwardSpan contains the ray origin")
	}
	if !fwd.Contains(0.001) || !fwd.Contains(1e300) || !fwd.Contains(math.Inf(1)) {
		t.Errorf("ForwardSpan %v is missing points in front of the ray", fwd)
	}

	if !SpanOverlaps(Span{0, 1}, Span{1, 2}) {
		t.Errorf("Touching spans should overlap")
	}
	if SpanOverlaps(Span{0, 1}, Span{1.5, 2}) {
		t.Errorf("Disjoint spans should not overlap")
	}
}
