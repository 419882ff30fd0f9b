// Package renderlog records completed renders in Firestore.
package renderlog

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"row-major/raytracer/tracer"

	"cloud.google.com/go/firestore"
)

const collection = "Renders"

// RenderRecord describes one finished render.
type RenderRecord struct {
	Scene string `firestore:"scene"`

	// Seed is a decimal string; Firestore integers are signed.
	Seed string `firestore:"seed"`

	Width           int64 `firestore:"width"`
	Height          int64 `firestore:"height"`
	SamplesPerPixel int64 `firestore:"samplesPerPixel"`
	MaxDepth        int64 `firestore:"maxDepth"`

	// CacheHit is set when the frame came from the frame cache rather than
	// being traced.
	CacheHit bool `firestore:"cacheHit"`

	StartedAt  time.Time     `firestore:"startedAt"`
	Elapsed    time.Duration `firestore:"elapsed"`
	OutputURLs []string      `firestore:"outputURLs"`
}

// NewRecord fills in a record from the render's inputs and result.
func NewRecord(sceneName string, opts tracer.Options, res *tracer.Result, startedAt time.Time, elapsed time.Duration) *RenderRecord {
	return &RenderRecord{
		Scene:           sceneName,
		Seed:            strconv.FormatUint(res.Seed, 10),
		Width:           int64(opts.Width),
		Height:          int64(opts.Height),
		SamplesPerPixel: int64(opts.SamplesPerPixel),
		MaxDepth:        int64(opts.MaxDepth),
		StartedAt:       startedAt,
		Elapsed:         elapsed,
	}
}

type Recorder struct {
	firestoreClient *firestore.Client
}

func New(firestoreClient *firestore.Client) *Recorder {
	return &Recorder{
		firestoreClient: firestoreClient,
	}
}

// Record stores rec as a new document and returns the document ID.
func (r *Recorder) Record(ctx context.Context, rec *RenderRecord) (string, error) {
	docRef := r.firestoreClient.Collection(collection).NewDoc()
	if _, err := docRef.Set(ctx, rec); err != nil {
		return "", fmt.Errorf("while writing render record: %w", err)
	}
	return docRef.ID, nil
}
