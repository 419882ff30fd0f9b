package vec3

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var approx = cmpopts.EquateApprox(0, 1e-12)

func TestArithmetic(t *testing.T) {
	a := T{1, 2, 3}
	b := T{4, 5, 6}

	testCases := []struct {
		name string
		got  T
		want T
	}{
		{"AddVV", AddVV(a, b), T{5, 7, 9}},
		{"SubVV", SubVV(a, b), T{-3, -3, -3}},
		{"MulVV", MulVV(a, b), T{4, 10, 18}},
		{"MulVS", MulVS(a, 2), T{2, 4, 6}},
		{"DivVS", DivVS(b, 2), T{2, 2.5, 3}},
		{"Neg", Neg(a), T{-1, -2, -3}},
		{"CProd", CProd(T{1, 0, 0}, T{0, 1, 0}), T{0, 0, 1}},
		{"Lerp", Lerp(0.25, T{0, 0, 0}, T{4, 8, 12}), T{1, 2, 3}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(tc.got, tc.want, approx); diff != "" {
				t.Errorf("Wrong result; diff (-got +want)\n%s", diff)
			}
		})
	}

	if got, want := IProd(a, b), 32.0; got != want {
		t.Errorf("IProd(%v, %v) = %v, want %v", a, b, got, want)
	}
}

func TestNormalize(t *testing.T) {
	got := Normalize(T{3, 0, 4})
	if diff := cmp.Diff(got, T{0.6, 0, 0.8}, approx); diff != "" {
		t.Errorf("Wrong result; diff (-got +want)\n%s", diff)
	}
	if math.Abs(got.Norm()-1) > 1e-12 {
		t.Errorf("Norm of normalized vector is %v, want 1", got.Norm())
	}
}

func TestNearZero(t *testing.T) {
	if !(T{1e-9, -1e-9, 0}).NearZero() {
		t.Errorf("Expected tiny vector to be near zero")
	}
	if (T{0, 1e-3, 0}).NearZero() {
		t.Errorf("Expected small but visible vector not to be near zero")
	}
}

func TestReflect(t *testing.T) {
	got := Reflect(T{1, -1, 0}, T{0, 1, 0})
	if diff := cmp.Diff(got, T{1, 1, 0}, approx); diff != "" {
		t.Errorf("Wrong reflection; diff (-got +want)\n%s", diff)
	}
}

func TestRefractMatchedIndexIsStraight(t *testing.T) {
	uv := Normalize(T{1, -1, 0})
	got := Refract(uv, T{0, 1, 0}, 1.0)
	if diff := cmp.Diff(got, uv, approx); diff != "" {
		t.Errorf("Ray bent at a boundary between equal indices; diff (-got +want)\n%s", diff)
	}
}

func TestRefractObeysSnell(t *testing.T) {
	n := T{0, 1, 0}
	uv := Normalize(T{1, -1, 0})
	eta := 1.0 / 1.5

	got := Refract(uv, n, eta)

	sinIn := math.Abs(uv[0])
	sinOut := math.Abs(got[0]) / got.Norm()
	if math.Abs(sinOut-eta*sinIn) > 1e-12 {
		t.Errorf("sin(out) = %v, want %v", sinOut, eta*sinIn)
	}
	if got[1] >= 0 {
		t.Errorf("Refracted ray %v does not continue through the surface", got)
	}
}

func TestRandomSamplers(t *testing.T) {
	rng := rand.New(rand.NewSource(12345))

	for i := 0; i < 1000; i++ {
		if p := RandomInUnitSphere(rng); p.NormSquared() >= 1 {
			t.Fatalf("RandomInUnitSphere returned %v, outside the unit ball", p)
		}

		if p := RandomInUnitDisk(rng); p.NormSquared() >= 1 || p[2] != 0 {
			t.Fatalf("RandomInUnitDisk returned %v, outside the unit disk", p)
		}

		if p := RandomUnitVector(rng); math.Abs(p.Norm()-1) > 1e-12 {
			t.Fatalf("RandomUnitVector returned %v, with norm %v", p, p.Norm())
		}
	}
}

func TestRandomSamplersAreSeeded(t *testing.T) {
	a := RandomInUnitSphere(rand.New(rand.NewSource(7)))
	b := RandomInUnitSphere(rand.New(rand.NewSource(7)))
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("Same seed gave different samples; diff (-got +want)\n%s", diff)
	}
}
