// Package rgbimage holds the 8-bit RGB frame buffer the renderer writes into,
// and its two on-disk forms: PNG, and a compressed raw dump with a protobuf
// header describing the render.
package rgbimage

import (
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"
	"os"

	"row-major/raytracer/vmath/vec3"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

const dataLayoutVersion = 1

const (
	// Headers are a handful of scalar fields; anything bigger is corrupt.
	maxHeaderLength = 1 << 20

	// Largest pixel count a dump may declare.
	maxPixels = 1 << 28
)

// RGBImage is a row-major buffer of 3-byte pixels.  Row 0 is the top of the
// image.
type RGBImage struct {
	RowSize, ColSize int
	Pix              []byte

	// Metadata is carried in the raw dump header.  Values must be accepted by
	// structpb.NewValue.
	Metadata map[string]interface{}
}

func New(rowSize, colSize int) *RGBImage {
	im := &RGBImage{}
	im.Resize(rowSize, colSize)
	return im
}

func (s *RGBImage) Resize(rowSize, colSize int) {
	s.RowSize = rowSize
	s.ColSize = colSize
	s.Pix = make([]byte, rowSize*colSize*3)
}

func (s *RGBImage) offset(r, c int) int {
	return (r*s.ColSize + c) * 3
}

func (s *RGBImage) Set(r, c int, px [3]byte) {
	i := s.offset(r, c)
	s.Pix[i+0] = px[0]
	s.Pix[i+1] = px[1]
	s.Pix[i+2] = px[2]
}

func (s *RGBImage) At(r, c int) [3]byte {
	i := s.offset(r, c)
	return [3]byte{s.Pix[i+0], s.Pix[i+1], s.Pix[i+2]}
}

// EncodeColor converts a linear color to display bytes: gamma 2 (square
// root), clamped to [0, 0.999], scaled by 256.  NaN channels encode as 0.
func EncodeColor(c vec3.T) [3]byte {
	return [3]byte{
		encodeChannel(c[0]),
		encodeChannel(c[1]),
		encodeChannel(c[2]),
	}
}

func encodeChannel(x float64) byte {
	if math.IsNaN(x) || x <= 0 {
		return 0
	}
	x = math.Sqrt(x)
	if x > 0.999 {
		x = 0.999
	}
	return byte(x * 256)
}

// ToImage copies the buffer into an image.RGBA, for encoders and texture
// uploaders.
func (s *RGBImage) ToImage() *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, s.ColSize, s.RowSize))
	for r := 0; r < s.RowSize; r++ {
		for c := 0; c < s.ColSize; c++ {
			px := s.At(r, c)
			out.SetRGBA(c, r, color.RGBA{R: px[0], G: px[1], B: px[2], A: 0xff})
		}
	}
	return out
}

func WritePNG(im *RGBImage, w io.Writer) error {
	if err := png.Encode(w, im.ToImage()); err != nil {
		return fmt.Errorf("while encoding png: %w", err)
	}
	return nil
}

// Header builds the protobuf header written at the front of a raw dump.
func Header(im *RGBImage) (*structpb.Struct, error) {
	fields := map[string]interface{}{}
	for k, v := range im.Metadata {
		fields[k] = v
	}
	fields["rowSize"] = im.RowSize
	fields["colSize"] = im.ColSize
	fields["dataLayoutVersion"] = dataLayoutVersion

	hdr, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("while building header: %w", err)
	}
	return hdr, nil
}

// ReadHeader reads just the header of a raw dump, leaving in positioned at
// the start of the compressed pixel data.
func ReadHeader(in io.Reader) (*structpb.Struct, error) {
	var headerLength uint64
	if err := binary.Read(in, binary.LittleEndian, &headerLength); err != nil {
		return nil, fmt.Errorf("while reading header length: %w", err)
	}

	if headerLength > maxHeaderLength {
		return nil, fmt.Errorf("header length %d exceeds limit %d", headerLength, maxHeaderLength)
	}

	headerBytes := make([]byte, int(headerLength))
	if _, err := io.ReadFull(in, headerBytes); err != nil {
		return nil, fmt.Errorf("while reading header bytes: %w", err)
	}

	hdr := &structpb.Struct{}
	if err := proto.Unmarshal(headerBytes, hdr); err != nil {
		return nil, fmt.Errorf("while unmarshaling header: %w", err)
	}

	return hdr, nil
}

func ReadRGBImage(in io.Reader) (*RGBImage, error) {
	hdr, err := ReadHeader(in)
	if err != nil {
		return nil, err
	}

	fields := hdr.GetFields()
	if v := fields["dataLayoutVersion"].GetNumberValue(); v != dataLayoutVersion {
		return nil, fmt.Errorf("bad data layout version: %v", v)
	}

	im := &RGBImage{Metadata: map[string]interface{}{}}
	for k, v := range fields {
		switch k {
		case "rowSize", "colSize", "dataLayoutVersion":
		default:
			im.Metadata[k] = v.AsInterface()
		}
	}

	rowsF := fields["rowSize"].GetNumberValue()
	colsF := fields["colSize"].GetNumberValue()
	if !(rowsF >= 0 && colsF >= 0 && rowsF*colsF <= maxPixels) || rowsF != math.Trunc(rowsF) || colsF != math.Trunc(colsF) {
		return nil, fmt.Errorf("bad dimensions %vx%v", colsF, rowsF)
	}
	im.Resize(int(rowsF), int(colsF))

	zipReader, err := zlib.NewReader(in)
	if err != nil {
		return nil, fmt.Errorf("while opening zip reader: %w", err)
	}
	defer zipReader.Close()

	if _, err := io.ReadFull(zipReader, im.Pix); err != nil {
		return nil, fmt.Errorf("while reading pixels: %w", err)
	}

	return im, nil
}

func ReadRGBImageFromFile(name string) (*RGBImage, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("while opening file: %w", err)
	}
	defer f.Close()

	return ReadRGBImage(f)
}

func WriteRGBImage(im *RGBImage, w io.Writer) error {
	hdr, err := Header(im)
	if err != nil {
		return err
	}

	hdrBytes, err := proto.MarshalOptions{Deterministic: true}.Marshal(hdr)
	if err != nil {
		return fmt.Errorf("while marshaling header: %w", err)
	}

	headerLengthBytes := make([]byte, 8)
	binary.LittleEndian.PutUint64(headerLengthBytes, uint64(len(hdrBytes)))
	if _, err := w.Write(headerLengthBytes); err != nil {
		return fmt.Errorf("while writing header length: %w", err)
	}

	if _, err := w.Write(hdrBytes); err != nil {
		return fmt.Errorf("while writing header: %w", err)
	}

	zipWriter := zlib.NewWriter(w)

	if _, err := zipWriter.Write(im.Pix); err != nil {
		return fmt.Errorf("while writing pixels: %w", err)
	}

	if err := zipWriter.Close(); err != nil {
		return fmt.Errorf("while closing zip writer: %w", err)
	}

	return nil
}
