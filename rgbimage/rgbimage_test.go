package rgbimage

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"row-major/raytracer/vmath/vec3"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeColor(t *testing.T) {
	testCases := []struct {
		name string
		in   vec3.T
		want [3]byte
	}{
		{"black", vec3.T{0, 0, 0}, [3]byte{0, 0, 0}},
		{"white clamps", vec3.T{1, 1, 1}, [3]byte{255, 255, 255}},
		{"over range clamps", vec3.T{4, 100, math.Inf(1)}, [3]byte{255, 255, 255}},
		{"gamma 2", vec3.T{0.25, 0.0625, 0.01}, [3]byte{128, 64, 25}},
		{"negative is black", vec3.T{-1, -0.5, 0}, [3]byte{0, 0, 0}},
		{"NaN is black", vec3.T{math.NaN(), 0.25, math.NaN()}, [3]byte{0, 128, 0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if diff := cmp.Diff(EncodeColor(tc.in), tc.want); diff != "" {
				t.Errorf("Wrong encoding; diff (-got +want)\n%s", diff)
			}
		})
	}
}

func TestSetAt(t *testing.T) {
	im := New(2, 3)
	im.Set(1, 2, [3]byte{1, 2, 3})

	if diff := cmp.Diff(im.At(1, 2), [3]byte{1, 2, 3}); diff != "" {
		t.Errorf("Wrong pixel; diff (-got +want)\n%s", diff)
	}
	if diff := cmp.Diff(im.Pix[9:], []byte{0, 0, 0, 0, 0, 0, 1, 2, 3}); diff != "" {
		t.Errorf("Wrong row; diff (-got +want)\n%s", diff)
	}
	if got, want := len(im.Pix), 2*3*3; got != want {
		t.Errorf("len(Pix) = %d, want %d", got, want)
	}
}

func TestToImage(t *testing.T) {
	im := New(2, 3)
	im.Set(0, 1, [3]byte{10, 20, 30})

	out := im.ToImage()
	if got, want := out.Bounds().Dx(), 3; got != want {
		t.Errorf("Width %d, want %d", got, want)
	}
	if got, want := out.Bounds().Dy(), 2; got != want {
		t.Errorf("Height %d, want %d", got, want)
	}

	c := out.RGBAAt(1, 0)
	if diff := cmp.Diff([4]uint8{c.R, c.G, c.B, c.A}, [4]uint8{10, 20, 30, 255}); diff != "" {
		t.Errorf("Wrong pixel; diff (-got +want)\n%s", diff)
	}
}

func TestRawDumpRoundTrip(t *testing.T) {
	im := New(4, 5)
	for i := range im.Pix {
		im.Pix[i] = byte(i * 7)
	}
	im.Metadata = map[string]interface{}{
		"seed":            "18446744073709551615",
		"samplesPerPixel": 16,
	}

	buf := &bytes.Buffer{}
	if err := WriteRGBImage(im, buf); err != nil {
		t.Fatalf("Error writing: %v", err)
	}

	got, err := ReadRGBImage(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Error reading: %v", err)
	}

	want := &RGBImage{
		RowSize: 4,
		ColSize: 5,
		Pix:     im.Pix,
		Metadata: map[string]interface{}{
			"seed":            "18446744073709551615",
			"samplesPerPixel": 16.0,
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Round trip changed the image; diff (-got +want)\n%s", diff)
	}
}

func TestReadHeader(t *testing.T) {
	im := New(3, 2)
	im.Metadata = map[string]interface{}{"maxDepth": 50}

	buf := &bytes.Buffer{}
	if err := WriteRGBImage(im, buf); err != nil {
		t.Fatalf("Error writing: %v", err)
	}

	hdr, err := ReadHeader(buf)
	if err != nil {
		t.Fatalf("Error reading header: %v", err)
	}

	want := map[string]interface{}{
		"rowSize":           3.0,
		"colSize":           2.0,
		"dataLayoutVersion": 1.0,
		"maxDepth":          50.0,
	}
	if diff := cmp.Diff(hdr.AsMap(), want); diff != "" {
		t.Errorf("Wrong header; diff (-got +want)\n%s", diff)
	}
}

func TestReadRejectsTruncated(t *testing.T) {
	im := New(8, 8)
	buf := &bytes.Buffer{}
	if err := WriteRGBImage(im, buf); err != nil {
		t.Fatalf("Error writing: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()/2]
	if _, err := ReadRGBImage(bytes.NewReader(truncated)); err == nil {
		t.Errorf("Expected error reading truncated dump")
	}
}

func TestWritePNG(t *testing.T) {
	buf := &bytes.Buffer{}
	if err := WritePNG(New(2, 2), buf); err != nil {
		t.Fatalf("Error writing png: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")) {
		t.Errorf("Output does not start with the PNG signature")
	}
}

func TestReadHeaderRejectsOversizedLength(t *testing.T) {
	testCases := []struct {
		name   string
		length uint64
	}{
		{"max uint64", ^uint64(0)},
		{"just over limit", maxHeaderLength + 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			buf := make([]byte, 8, 64)
			binary.LittleEndian.PutUint64(buf, tc.length)
			buf = append(buf, make([]byte, 56)...)

			if _, err := ReadHeader(bytes.NewReader(buf)); err == nil {
				t.Errorf("Expected error for header length %d", tc.length)
			}
			if _, err := ReadRGBImage(bytes.NewReader(buf)); err == nil {
				t.Errorf("Expected error reading image with header length %d", tc.length)
			}
		})
	}
}

func TestReadRejectsBadDimensions(t *testing.T) {
	testCases := []struct {
		name       string
		rows, cols int
	}{
		{"product over limit", 1 << 20, 1 << 20},
		{"product overflows int", 1 << 40, 1 << 40},
		{"negative", -1, 4},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// Only the header is consulted before the dimensions are checked.
			im := &RGBImage{RowSize: tc.rows, ColSize: tc.cols}
			buf := &bytes.Buffer{}
			if err := WriteRGBImage(im, buf); err != nil {
				t.Fatalf("Error writing: %v", err)
			}

			if _, err := ReadRGBImage(bytes.NewReader(buf.Bytes())); err == nil {
				t.Errorf("Expected error reading %dx%d image", tc.cols, tc.rows)
			}
		})
	}
}
