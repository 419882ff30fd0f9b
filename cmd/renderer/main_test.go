package main

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"

	"row-major/raytracer/tracer"

	"github.com/google/go-cmp/cmp"
)

func setFlag(t *testing.T, name, value string) {
	t.Helper()
	old := flag.Lookup(name).Value.String()
	if err := flag.Set(name, value); err != nil {
		t.Fatalf("Error setting --%s: %v", name, err)
	}
	t.Cleanup(func() { flag.Set(name, old) })
}

func TestApplyOverrides(t *testing.T) {
	setFlag(t, "width", "64")
	setFlag(t, "seed", "18446744073709551615")
	setFlag(t, "workers", "3")

	opts := tracer.Options{Width: 400, Height: 225, SamplesPerPixel: 50, MaxDepth: 20}
	if err := applyOverrides(&opts); err != nil {
		t.Fatalf("Error applying overrides: %v", err)
	}

	seed := uint64(18446744073709551615)
	want := tracer.Options{Width: 64, Height: 225, SamplesPerPixel: 50, MaxDepth: 20, Seed: &seed, Workers: 3}
	if diff := cmp.Diff(opts, want); diff != "" {
		t.Errorf("Wrong options; diff (-got +want)\n%s", diff)
	}
}

func TestApplyOverridesRejectsBadValues(t *testing.T) {
	t.Run("seed", func(t *testing.T) {
		setFlag(t, "seed", "-1")
		opts := tracer.Options{Width: 4, Height: 4, SamplesPerPixel: 1, MaxDepth: 1}
		if err := applyOverrides(&opts); err == nil {
			t.Errorf("Expected error for negative seed")
		}
	})

	t.Run("width", func(t *testing.T) {
		setFlag(t, "width", "-5")
		opts := tracer.Options{Width: 4, Height: 4, SamplesPerPixel: 1, MaxDepth: 1}
		if err := applyOverrides(&opts); !errors.Is(err, tracer.ErrInvalidOptions) {
			t.Errorf("applyOverrides() = %v, want error wrapping ErrInvalidOptions", err)
		}
	})
}

func TestRefusesToOverwrite(t *testing.T) {
	name := filepath.Join(t.TempDir(), "out.png")

	if err := checkNotExists(name); err != nil {
		t.Fatalf("checkNotExists on a fresh path: %v", err)
	}
	if err := writeNewFile(name, []byte("first")); err != nil {
		t.Fatalf("Error writing new file: %v", err)
	}

	if err := checkNotExists(name); err == nil {
		t.Errorf("checkNotExists accepted an existing file")
	}
	if err := writeNewFile(name, []byte("second")); err == nil {
		t.Errorf("writeNewFile replaced an existing file")
	}

	got, err := os.ReadFile(name)
	if err != nil {
		t.Fatalf("Error reading file: %v", err)
	}
	if string(got) != "first" {
		t.Errorf("File contents %q, want %q", got, "first")
	}
}
