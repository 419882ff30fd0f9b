// renderer traces one frame of a scene and writes it out as a PNG and/or a
// raw RGB dump, optionally uploading it to GCS and recording it in Firestore.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strconv"
	"syscall"
	"time"

	"row-major/raytracer/framecache"
	"row-major/raytracer/renderlog"
	"row-major/raytracer/rendermetrics"
	"row-major/raytracer/rgbimage"
	"row-major/raytracer/scenepack"
	"row-major/raytracer/tracer"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/profiler"
	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"
	googleopt "google.golang.org/api/option"
)

var (
	sceneFile    = flag.String("scene-file", "", "YAML scene file to render.  Takes precedence over --builtin-scene.")
	builtinScene = flag.String("builtin-scene", "three_spheres", "Name of a builtin scene to render.")
	builtinSeed  = flag.Int64("builtin-seed", 0, "Seed for the layout of randomized builtin scenes.")

	width           = flag.Int("width", 0, "Override image width.")
	height          = flag.Int("height", 0, "Override image height.")
	samplesPerPixel = flag.Int("samples-per-pixel", 0, "Override samples per pixel.")
	maxDepth        = flag.Int("max-depth", 0, "Override maximum ray depth.")
	seed            = flag.String("seed", "", "Render seed (decimal uint64).  If empty, the scene's seed is used, or one is drawn at random.")
	workers         = flag.Int("workers", 0, "Rows rendered concurrently.  0 means one per CPU.")

	outputPNG    = flag.String("output-png", "output.png", "Write a PNG to this file.  Empty to skip.")
	outputRGB    = flag.String("output-rgb", "", "Write a raw RGB dump to this file.  Empty to skip.")
	outputBucket = flag.String("output-bucket", "", "GCS bucket to upload the PNG to.  Empty to skip.")
	outputObject = flag.String("output-object", "", "Object name for the upload.  Defaults to the base name of --output-png.")

	cacheDir      = flag.String("cache-dir", "", "Directory of the frame cache for seeded renders.  Empty to disable.")
	recordProject = flag.String("record-project", "", "GCP project whose Firestore receives a record of the render.  Empty to skip.")

	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 1.0, "What ratio of traces should be exported?")
	enableMetrics        = flag.Bool("enable-metrics", false, "Export render metrics to Cloud Monitoring?")
	enableProfiling      = flag.Bool("enable-profiling", false, "Enable Cloud Profiler?")

	cpuprofile = flag.String("cpu-profile", "", "write cpu profile to `file`")
	memprofile = flag.String("mem-profile", "", "write memory profile to `file`")
)

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")

	glog.Infof("flags:")
	glog.Infof("scene-file: %v", *sceneFile)
	glog.Infof("builtin-scene: %v", *builtinScene)
	glog.Infof("builtin-seed: %v", *builtinSeed)
	glog.Infof("width: %v", *width)
	glog.Infof("height: %v", *height)
	glog.Infof("samples-per-pixel: %v", *samplesPerPixel)
	glog.Infof("max-depth: %v", *maxDepth)
	glog.Infof("seed: %v", *seed)
	glog.Infof("workers: %v", *workers)
	glog.Infof("output-png: %v", *outputPNG)
	glog.Infof("output-rgb: %v", *outputRGB)
	glog.Infof("output-bucket: %v", *outputBucket)
	glog.Infof("output-object: %v", *outputObject)
	glog.Infof("cache-dir: %v", *cacheDir)
	glog.Infof("record-project: %v", *recordProject)
	glog.Infof("monitoring: %v", *monitoring)
	glog.Infof("monitoring-project: %v", *monitoringProject)
	glog.Infof("monitoring-trace-ratio: %v", *monitoringTraceRatio)
	glog.Infof("enable-metrics: %v", *enableMetrics)
	glog.Infof("enable-profiling: %v", *enableProfiling)
	glog.Infof("cpu-profile: %v", *cpuprofile)
	glog.Infof("mem-profile: %v", *memprofile)

	defer glog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Stop starting new rows on interrupt.  The partial frame is discarded.
	go func() {
		signalCh := make(chan os.Signal, 1)
		signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)
		<-signalCh
		glog.Infof("Interrupted, cancelling render")
		cancel()
	}()

	// Cloud Profiler initialization, best done as early as possible.
	if *enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "raytracer-renderer",
			ServiceVersion: "0.0.1",
			ProjectID:      *monitoringProject,
		}); err != nil {
			glog.Exitf("Error initializing profiler: %v", err)
		}
	}

	if *monitoring {
		traceOpts := []cloudtrace.Option{}
		if *monitoringProject != "" {
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			glog.Exitf("Failed to install Cloud Trace OpenTelemetry trace pipeline: %v", err)
		}
		defer traceShutdown()
	}

	if *enableMetrics {
		if err := rendermetrics.RegisterViews(); err != nil {
			glog.Exitf("Failed to register metric views: %v", err)
		}

		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			ProjectID:         *monitoringProject,
			MetricPrefix:      "raytracer",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			glog.Exitf("Error initializing metrics: %v", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			glog.Exitf("Error starting metrics exporter: %v", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			glog.Exitf("could not create CPU profile: %v", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			glog.Exitf("could not start CPU profile: %v", err)
		}
		defer pprof.StopCPUProfile()
	}

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			glog.Exitf("could not create memory profile: %v", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			glog.Exitf("could not write memory profile: %v", err)
		}
	}
}

func loadScene(ctx context.Context) (*scenepack.Loaded, error) {
	if *sceneFile != "" {
		return scenepack.LoadFile(ctx, *sceneFile)
	}
	return scenepack.Builtin(*builtinScene, *builtinSeed)
}

// applyOverrides folds the command-line overrides into the scene's options.
func applyOverrides(opts *tracer.Options) error {
	if *width != 0 {
		opts.Width = *width
	}
	if *height != 0 {
		opts.Height = *height
	}
	if *samplesPerPixel != 0 {
		opts.SamplesPerPixel = *samplesPerPixel
	}
	if *maxDepth != 0 {
		opts.MaxDepth = *maxDepth
	}
	if *seed != "" {
		s, err := strconv.ParseUint(*seed, 10, 64)
		if err != nil {
			return fmt.Errorf("while parsing --seed: %w", err)
		}
		opts.Seed = &s
	}
	opts.Workers = *workers
	return opts.Validate()
}

// checkNotExists refuses to clobber an earlier render's output.
func checkNotExists(name string) error {
	if name == "" {
		return nil
	}
	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("output file %q exists; refusing to overwrite it", name)
	}
	return nil
}

// writeNewFile writes data to a file that must not exist yet.
func writeNewFile(name string, data []byte) error {
	f, err := os.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("while creating %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("while writing %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("while closing %s: %w", name, err)
	}
	return nil
}

// progressPrinter reports row progress.  On a terminal it rewrites a single
// status line; otherwise it logs every tenth of the frame.
func progressPrinter() tracer.ProgressFunction {
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return func(done, total int) {
			fmt.Fprintf(os.Stderr, "\rrows: %d/%d", done, total)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		}
	}

	lastDecile := 0
	return func(done, total int) {
		decile := done * 10 / total
		if decile != lastDecile {
			lastDecile = decile
			glog.Infof("Rendered %d/%d rows", done, total)
		}
	}
}

func do(ctx context.Context) error {
	loaded, err := loadScene(ctx)
	if err != nil {
		return fmt.Errorf("while loading scene: %w", err)
	}

	opts := loaded.Options
	if err := applyOverrides(&opts); err != nil {
		return err
	}
	opts.Progress = progressPrinter()

	if err := checkNotExists(*outputPNG); err != nil {
		return err
	}
	if err := checkNotExists(*outputRGB); err != nil {
		return err
	}

	var cache *framecache.Cache
	var cacheKey []byte
	if *cacheDir != "" {
		var cacheable bool
		cacheKey, cacheable, err = framecache.Key(loaded.Scene, loaded.Camera, opts)
		if err != nil {
			return fmt.Errorf("while computing frame cache key: %w", err)
		}
		if cacheable {
			cache, err = framecache.Open(*cacheDir)
			if err != nil {
				return err
			}
			defer cache.Close()
		} else {
			glog.Infof("Render has no fixed seed; not using the frame cache")
		}
	}

	startedAt := time.Now()
	var res *tracer.Result
	cacheHit := false
	if cache != nil {
		im, ok, err := cache.Get(ctx, cacheKey)
		if err != nil {
			return err
		}
		if ok {
			glog.Infof("Frame cache hit")
			res = &tracer.Result{Image: im, Seed: *opts.Seed}
			cacheHit = true
		}
	}

	if res == nil {
		glog.Infof("Rendering %q: %dx%d, %d samples per pixel, max depth %d, %d objects", loaded.Name, opts.Width, opts.Height, opts.SamplesPerPixel, opts.MaxDepth, len(loaded.Scene.Objects))
		res, err = tracer.Render(rendermetrics.WithScene(ctx, loaded.Name), loaded.Scene, loaded.Camera, opts)
		if err != nil {
			return fmt.Errorf("while rendering: %w", err)
		}
		glog.Infof("Rendered with seed %d in %v", res.Seed, time.Since(startedAt))

		if cache != nil {
			if err := cache.Put(ctx, cacheKey, res.Image); err != nil {
				return err
			}
		}
	}
	elapsed := time.Since(startedAt)

	pngBuf := &bytes.Buffer{}
	if err := rgbimage.WritePNG(res.Image, pngBuf); err != nil {
		return err
	}

	outputURLs := []string{}

	if *outputPNG != "" {
		if err := writeNewFile(*outputPNG, pngBuf.Bytes()); err != nil {
			return err
		}
		outputURLs = append(outputURLs, "file://"+*outputPNG)
	}

	if *outputRGB != "" {
		rgbBuf := &bytes.Buffer{}
		if err := rgbimage.WriteRGBImage(res.Image, rgbBuf); err != nil {
			return err
		}
		if err := writeNewFile(*outputRGB, rgbBuf.Bytes()); err != nil {
			return err
		}
		outputURLs = append(outputURLs, "file://"+*outputRGB)
	}

	if *outputBucket != "" {
		object := *outputObject
		if object == "" {
			object = filepath.Base(*outputPNG)
		}
		if object == "" || object == "." {
			return fmt.Errorf("--output-bucket needs --output-object or --output-png")
		}
		if err := upload(ctx, *outputBucket, object, pngBuf.Bytes()); err != nil {
			return err
		}
		outputURLs = append(outputURLs, fmt.Sprintf("gs://%s/%s", *outputBucket, object))
	}

	if *recordProject != "" {
		fstore, err := firestore.NewClient(ctx, *recordProject)
		if err != nil {
			return fmt.Errorf("while creating Firestore client: %w", err)
		}
		defer fstore.Close()

		rec := renderlog.NewRecord(loaded.Name, opts, res, startedAt, elapsed)
		rec.CacheHit = cacheHit
		rec.OutputURLs = outputURLs

		id, err := renderlog.New(fstore).Record(ctx, rec)
		if err != nil {
			return err
		}
		glog.Infof("Recorded render as %s", id)
	}

	return nil
}

// upload writes data to a new GCS object.  Existing objects are not replaced.
func upload(ctx context.Context, bucket, object string, data []byte) error {
	tr := otel.Tracer("row-major/raytracer/cmd/renderer")
	var span trace.Span
	ctx, span = tr.Start(ctx, "upload")
	defer span.End()

	gcs, err := storage.NewClient(ctx, googleopt.WithGRPCConnectionPool(1))
	if err != nil {
		err := fmt.Errorf("while creating GCS client: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer gcs.Close()

	obj := gcs.Bucket(bucket).Object(object)

	// Create condition: object does not currently exist.
	w := obj.If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = "image/png"

	if _, err := w.Write(data); err != nil {
		w.Close()
		err := fmt.Errorf("while writing to object writer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if err := w.Close(); err != nil {
		err := fmt.Errorf("while closing object writer: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	glog.Infof("Uploaded gs://%s/%s (generation %d)", bucket, object, w.Attrs().Generation)
	span.SetStatus(codes.Ok, "")
	return nil
}
