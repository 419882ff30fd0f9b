// Package framecache stores finished seeded renders in a local badger
// database, so that re-running a render with the same scene, camera, options,
// and seed returns the stored frame instead of tracing it again.
package framecache

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"row-major/raytracer/camera"
	"row-major/raytracer/geometry"
	"row-major/raytracer/rgbimage"
	"row-major/raytracer/scene"
	"row-major/raytracer/tracer"

	"github.com/dgraph-io/badger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// keyLayoutVersion is bumped whenever the digest input or the integrator
// output changes, so stale frames are never served.
const keyLayoutVersion = 1

const keyPrefix = "frame/"

type keyInput struct {
	Version         int               `json:"version"`
	Objects         []geometry.Object `json:"objects"`
	Camera          camera.Params     `json:"camera"`
	Width           int               `json:"width"`
	Height          int               `json:"height"`
	SamplesPerPixel int               `json:"samplesPerPixel"`
	MaxDepth        int               `json:"maxDepth"`
	Seed            uint64            `json:"seed"`
}

// Key computes the cache key for a render.  Renders without a fixed seed are
// not reproducible, and get ok == false.
func Key(sc *scene.Scene, cam camera.Params, opts tracer.Options) (key []byte, ok bool, err error) {
	if opts.Seed == nil {
		return nil, false, nil
	}

	in := keyInput{
		Version:         keyLayoutVersion,
		Objects:         sc.Objects,
		Camera:          cam,
		Width:           opts.Width,
		Height:          opts.Height,
		SamplesPerPixel: opts.SamplesPerPixel,
		MaxDepth:        opts.MaxDepth,
		Seed:            *opts.Seed,
	}
	inBytes, err := json.Marshal(&in)
	if err != nil {
		return nil, false, fmt.Errorf("while marshaling cache key input: %w", err)
	}

	digest := sha256.Sum256(inBytes)
	return []byte(keyPrefix + hex.EncodeToString(digest[:])), true, nil
}

type Cache struct {
	db *badger.DB
}

// Open opens (creating if needed) the cache database in dir.
func Open(dir string) (*Cache, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("while opening badger dir %q: %w", dir, err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

// Get returns the frame stored under key.  A missing key is not an error; it
// is reported with ok == false.
func (c *Cache) Get(ctx context.Context, key []byte) (im *rgbimage.RGBImage, ok bool, err error) {
	tr := otel.Tracer("row-major/raytracer/framecache")
	var span trace.Span
	_, span = tr.Start(ctx, "framecache.Get")
	defer span.End()

	var val []byte
	err = c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		val, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		span.SetAttributes(attribute.Bool("hit", false))
		span.SetStatus(codes.Ok, "")
		return nil, false, nil
	}
	if err != nil {
		err := fmt.Errorf("while reading cached frame: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	im, err = rgbimage.ReadRGBImage(bytes.NewReader(val))
	if err != nil {
		err := fmt.Errorf("while decoding cached frame: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, false, err
	}

	span.SetAttributes(attribute.Bool("hit", true))
	span.SetStatus(codes.Ok, "")
	return im, true, nil
}

// Put stores im under key, replacing any previous frame.
func (c *Cache) Put(ctx context.Context, key []byte, im *rgbimage.RGBImage) error {
	tr := otel.Tracer("row-major/raytracer/framecache")
	var span trace.Span
	_, span = tr.Start(ctx, "framecache.Put")
	defer span.End()

	buf := &bytes.Buffer{}
	if err := rgbimage.WriteRGBImage(im, buf); err != nil {
		err := fmt.Errorf("while encoding frame: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, buf.Bytes())
	})
	if err != nil {
		err := fmt.Errorf("while writing cached frame: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "")
	return nil
}
