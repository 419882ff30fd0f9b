// Package tracer is the Monte Carlo integrator: it fires jittered camera rays
// through every pixel, averages the radiance estimates, and writes the
// gamma-corrected result into an RGB frame buffer.
package tracer

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"row-major/raytracer/camera"
	"row-major/raytracer/rendermetrics"
	"row-major/raytracer/rgbimage"
	"row-major/raytracer/scene"
	"row-major/raytracer/vmath/vec3"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// ErrInvalidOptions is wrapped by every validation failure reported by
// Options.Validate.
var ErrInvalidOptions = errors.New("invalid render options")

// ProgressFunction is called after each finished row with the number of rows
// done so far and the total.  Calls are serialized.
type ProgressFunction func(done, total int)

type Options struct {
	Width, Height   int
	SamplesPerPixel int
	MaxDepth        int

	// Seed makes the render reproducible.  When nil, a seed is drawn from the
	// system entropy source and reported in Result.Seed.
	Seed *uint64

	// Workers bounds the number of rows rendered at once.  Zero means
	// runtime.NumCPU().
	Workers int

	Progress ProgressFunction
}

// Validate reports the first problem with o.  It must pass before any pixel
// work starts.
func (o *Options) Validate() error {
	if o.Width <= 0 {
		return fmt.Errorf("%w: width must be positive, got %d", ErrInvalidOptions, o.Width)
	}
	if o.Height <= 0 {
		return fmt.Errorf("%w: height must be positive, got %d", ErrInvalidOptions, o.Height)
	}
	if o.SamplesPerPixel <= 0 {
		return fmt.Errorf("%w: samples per pixel must be positive, got %d", ErrInvalidOptions, o.SamplesPerPixel)
	}
	if o.MaxDepth <= 0 {
		return fmt.Errorf("%w: max ray depth must be positive, got %d", ErrInvalidOptions, o.MaxDepth)
	}
	if o.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalidOptions, o.Workers)
	}
	return nil
}

func (o *Options) AspectRatio() float64 {
	return float64(o.Width) / float64(o.Height)
}

type Result struct {
	Image *rgbimage.RGBImage

	// Seed is the seed the render actually used.  Rendering again with it
	// reproduces Image exactly.
	Seed uint64
}

// RowSeed derives the generator seed for image row j from the render seed.
// It is a SplitMix64 step, so neighboring rows get unrelated streams and the
// result does not depend on which worker renders the row.
func RowSeed(seed uint64, j int) int64 {
	z := seed + 0x9e3779b97f4a7c15*uint64(j+1)
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z = z ^ (z >> 31)
	return int64(z)
}

// BufferRow maps image row j, counted from the bottom, to the frame buffer
// row, counted from the top.
func BufferRow(j, height int) int {
	return height - 1 - j
}

func entropySeed() (uint64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("while reading entropy: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ChunkWorker renders a contiguous range of image rows.  It owns its random
// generator; the scene and camera are shared read-only.
type ChunkWorker struct {
	rng *rand.Rand

	seed            uint64
	samplesPerPixel int
	maxDepth        int

	imgRows int
	imgCols int

	// Image rows [rowSrc, rowLim), counted from the bottom.
	rowSrc int
	rowLim int

	camera *camera.Camera
	scene  *scene.Scene
	out    *rgbimage.RGBImage
}

func normalizer(n int) float64 {
	if n <= 1 {
		return 1
	}
	return float64(n - 1)
}

func (w *ChunkWorker) renderRow(j int) {
	w.rng.Seed(RowSeed(w.seed, j))

	uScale := normalizer(w.imgCols)
	vScale := normalizer(w.imgRows)
	sampleScale := 1.0 / float64(w.samplesPerPixel)

	row := BufferRow(j, w.imgRows)
	for i := 0; i < w.imgCols; i++ {
		accum := vec3.T{}
		for cs := 0; cs < w.samplesPerPixel; cs++ {
			u := (float64(i) + w.rng.Float64()) / uScale
			v := (float64(j) + w.rng.Float64()) / vScale

			query := w.camera.GetRay(u, v, w.camera.LensSample(w.rng))
			accum = vec3.AddVV(accum, w.scene.SampleRay(query, w.maxDepth, w.rng))
		}

		w.out.Set(row, i, rgbimage.EncodeColor(vec3.MulVS(accum, sampleScale)))
	}
}

// Render produces one frame of sc as seen through cam.
//
// It either returns a complete image or an error; invalid options are
// reported before any tracing starts.  Cancelling ctx stops new rows from
// being started, and the partial frame is discarded.  Render keeps no state
// between calls, so it may be called repeatedly with edited scenes and
// cameras.
func Render(ctx context.Context, sc *scene.Scene, cam camera.Params, opts Options) (*Result, error) {
	tracer := otel.Tracer("row-major/raytracer/tracer")
	var span trace.Span
	ctx, span = tracer.Start(ctx, "tracer.Render")
	defer span.End()

	if err := opts.Validate(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var seed uint64
	if opts.Seed != nil {
		seed = *opts.Seed
	} else {
		var err error
		seed, err = entropySeed()
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		glog.V(1).Infof("No seed given, drew seed %d", seed)
	}

	span.SetAttributes(
		attribute.Int64("width", int64(opts.Width)),
		attribute.Int64("height", int64(opts.Height)),
		attribute.Int64("samples_per_pixel", int64(opts.SamplesPerPixel)),
		attribute.Int64("max_depth", int64(opts.MaxDepth)),
		attribute.Int64("objects", int64(len(sc.Objects))),
	)

	out := rgbimage.New(opts.Height, opts.Width)
	cm := camera.New(cam, opts.AspectRatio())

	workers := opts.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}

	// We chunk work by rows.  Chunks are smaller than height/workers so that
	// expensive regions of the image spread over several workers.
	chunkRows := opts.Height / (4 * workers)
	if chunkRows < 1 {
		chunkRows = 1
	}

	// progressMutex serializes calls to the progress function.
	progressMutex := sync.Mutex{}
	rowsDone := 0
	rowSamples := int64(opts.Width * opts.SamplesPerPixel)

	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(workers))

	for rowSrc := 0; rowSrc < opts.Height; rowSrc += chunkRows {
		rowLim := rowSrc + chunkRows
		if rowLim > opts.Height {
			rowLim = opts.Height
		}

		if err := sem.Acquire(egCtx, 1); err != nil {
			eg.Wait()
			err := fmt.Errorf("while acquiring worker semaphore: %w", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		worker := &ChunkWorker{
			rng:             rand.New(rand.NewSource(RowSeed(seed, rowSrc))),
			seed:            seed,
			samplesPerPixel: opts.SamplesPerPixel,
			maxDepth:        opts.MaxDepth,
			imgRows:         opts.Height,
			imgCols:         opts.Width,
			rowSrc:          rowSrc,
			rowLim:          rowLim,
			camera:          cm,
			scene:           sc,
			out:             out,
		}

		eg.Go(func() error {
			defer sem.Release(1)
			for j := worker.rowSrc; j < worker.rowLim; j++ {
				if err := egCtx.Err(); err != nil {
					return err
				}
				worker.renderRow(j)
				rendermetrics.RecordRow(egCtx, rowSamples)

				progressMutex.Lock()
				rowsDone++
				if opts.Progress != nil {
					opts.Progress(rowsDone, opts.Height)
				}
				progressMutex.Unlock()
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		err := fmt.Errorf("while waiting for row workers: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	out.Metadata = map[string]interface{}{
		"seed":            fmt.Sprintf("%d", seed),
		"samplesPerPixel": opts.SamplesPerPixel,
		"maxDepth":        opts.MaxDepth,
	}

	span.SetStatus(codes.Ok, "")
	return &Result{Image: out, Seed: seed}, nil
}
