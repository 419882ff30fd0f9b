// previewer serves low-resolution renders of a scene over HTTP, with
// endpoints for moving and turning the camera between frames.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"row-major/raytracer/camera"
	"row-major/raytracer/healthz"
	"row-major/raytracer/rendermetrics"
	"row-major/raytracer/rgbimage"
	"row-major/raytracer/scene"
	"row-major/raytracer/scenepack"
	"row-major/raytracer/tracer"

	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/time/rate"
)

var (
	listen = flag.String("listen", "127.0.0.1:8080", "Server address:port.")

	sceneFile    = flag.String("scene-file", "", "YAML scene file to preview.  Takes precedence over --builtin-scene.")
	builtinScene = flag.String("builtin-scene", "three_spheres", "Name of a builtin scene to preview.")
	builtinSeed  = flag.Int64("builtin-seed", 0, "Seed for the layout of randomized builtin scenes.")

	previewWidth    = flag.Int("preview-width", 320, "Width of preview frames.")
	previewHeight   = flag.Int("preview-height", 180, "Height of preview frames.")
	previewSamples  = flag.Int("preview-samples-per-pixel", 4, "Samples per pixel for preview frames.")
	previewMaxDepth = flag.Int("preview-max-depth", 8, "Maximum ray depth for preview frames.")

	frameRate  = flag.Float64("frame-rate", 2, "Maximum frames rendered per second.")
	frameBurst = flag.Int("frame-burst", 1, "Frames that may be rendered back to back before rate limiting applies.")

	monitoring           = flag.Bool("monitoring", false, "Enable monitoring?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 0.01, "What ratio of traces should be exported?")
)

// Previewer owns the live camera.  The scene and options are fixed at
// startup.
type Previewer struct {
	name  string
	scene *scene.Scene
	opts  tracer.Options

	limiter *rate.Limiter

	camMutex sync.Mutex
	cam      camera.Params

	ready atomic.Bool
}

func NewPreviewer(loaded *scenepack.Loaded, opts tracer.Options, limiter *rate.Limiter) *Previewer {
	return &Previewer{
		name:    loaded.Name,
		scene:   loaded.Scene,
		opts:    opts,
		limiter: limiter,
		cam:     loaded.Camera,
	}
}

func (p *Previewer) snapshot() camera.Params {
	p.camMutex.Lock()
	defer p.camMutex.Unlock()
	return p.cam
}

// Render traces one preview frame from the current camera.
func (p *Previewer) Render(ctx context.Context) (*tracer.Result, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("while waiting for frame limiter: %w", err)
	}

	res, err := tracer.Render(rendermetrics.WithScene(ctx, p.name), p.scene, p.snapshot(), p.opts)
	if err != nil {
		return nil, err
	}
	p.ready.Store(true)
	return res, nil
}

func (p *Previewer) checkReady() error {
	if !p.ready.Load() {
		return errors.New("no frame rendered yet")
	}
	return nil
}

func (p *Previewer) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	res, err := p.Render(r.Context())
	if err != nil {
		glog.Errorf("Error rendering frame: %v", err)
		http.Error(w, "503 Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	buf := &bytes.Buffer{}
	if err := rgbimage.WritePNG(res.Image, buf); err != nil {
		glog.Errorf("Error encoding frame: %v", err)
		http.Error(w, "500 Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Render-Seed", strconv.FormatUint(res.Seed, 10))
	w.Write(buf.Bytes())
}

func (p *Previewer) handleMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	dir, err := camera.ParseDirection(r.FormValue("dir"))
	if err != nil {
		http.Error(w, "400 Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}

	step := 0.5
	if s := r.FormValue("step"); s != "" {
		step, err = strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(step) || math.IsInf(step, 0) {
			http.Error(w, "400 Bad Request: bad step", http.StatusBadRequest)
			return
		}
	}

	p.camMutex.Lock()
	p.cam.Move(dir, step)
	cam := p.cam
	p.camMutex.Unlock()

	writeCamera(w, cam)
}

func (p *Previewer) handleLook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "405 Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var angles [2]float64
	for i, name := range []string{"pitch", "yaw"} {
		s := r.FormValue(name)
		if s == "" {
			continue
		}
		deg, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(deg) || math.IsInf(deg, 0) {
			http.Error(w, fmt.Sprintf("400 Bad Request: bad %s", name), http.StatusBadRequest)
			return
		}
		angles[i] = deg * math.Pi / 180
	}

	p.camMutex.Lock()
	p.cam.Look(angles[0], angles[1])
	cam := p.cam
	p.camMutex.Unlock()

	writeCamera(w, cam)
}

func writeCamera(w http.ResponseWriter, cam camera.Params) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "look_from: %v\nlook_to: %v\n", cam.LookFrom, cam.LookTo)
}

func (p *Previewer) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/frame.png", p.handleFrame)
	mux.HandleFunc("/move", p.handleMove)
	mux.HandleFunc("/look", p.handleLook)
	mux.Handle("/healthz", healthz.New())
	mux.Handle("/readyz", healthz.NewChecked(p.checkReady))
}

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")

	glog.Infof("flags:")
	glog.Infof("listen: %v", *listen)
	glog.Infof("scene-file: %v", *sceneFile)
	glog.Infof("builtin-scene: %v", *builtinScene)
	glog.Infof("builtin-seed: %v", *builtinSeed)
	glog.Infof("preview-width: %v", *previewWidth)
	glog.Infof("preview-height: %v", *previewHeight)
	glog.Infof("preview-samples-per-pixel: %v", *previewSamples)
	glog.Infof("preview-max-depth: %v", *previewMaxDepth)
	glog.Infof("frame-rate: %v", *frameRate)
	glog.Infof("frame-burst: %v", *frameBurst)
	glog.Infof("monitoring: %v", *monitoring)
	glog.Infof("monitoring-project: %v", *monitoringProject)
	glog.Infof("monitoring-trace-ratio: %v", *monitoringTraceRatio)

	defer glog.Flush()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	if err := do(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
}

func do(ctx context.Context) error {
	var loaded *scenepack.Loaded
	var err error
	if *sceneFile != "" {
		loaded, err = scenepack.LoadFile(ctx, *sceneFile)
	} else {
		loaded, err = scenepack.Builtin(*builtinScene, *builtinSeed)
	}
	if err != nil {
		return fmt.Errorf("while loading scene: %w", err)
	}

	opts := tracer.Options{
		Width:           *previewWidth,
		Height:          *previewHeight,
		SamplesPerPixel: *previewSamples,
		MaxDepth:        *previewMaxDepth,
	}
	if err := opts.Validate(); err != nil {
		return err
	}

	pv := NewPreviewer(loaded, opts, rate.NewLimiter(rate.Limit(*frameRate), *frameBurst))

	serveMux := http.NewServeMux()
	pv.RegisterHandlers(serveMux)
	serveMux.HandleFunc("/debug/pprof/", pprof.Index)
	serveMux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	serveMux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	serveMux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	serveMux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	server := &http.Server{
		Addr:    *listen,
		Handler: serveMux,

		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	// Warm up with one frame; /readyz reports ready once it finishes.
	go func() {
		if _, err := pv.Render(ctx); err != nil {
			glog.Errorf("Error rendering warm-up frame: %v", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		return fmt.Errorf("while serving http: %w", err)
	case <-signalCh:
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("while shutting down http server: %w", err)
	}
	return nil
}
