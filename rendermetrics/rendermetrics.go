// Package rendermetrics defines the OpenCensus measures recorded while
// rendering.
package rendermetrics

import (
	"context"

	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var (
	RowsRendered  = stats.Int64("raytracer/rows_rendered", "Image rows completed", stats.UnitDimensionless)
	SamplesTraced = stats.Int64("raytracer/samples_traced", "Camera samples traced to completion", stats.UnitDimensionless)

	KeyScene = tag.MustNewKey("scene")
)

var (
	RowsRenderedView = &view.View{
		Name:        "raytracer/rows_rendered",
		Description: "Counter of image rows that have been rendered",
		TagKeys:     []tag.Key{KeyScene},
		Measure:     RowsRendered,
		Aggregation: view.Sum(),
	}

	SamplesTracedView = &view.View{
		Name:        "raytracer/samples_traced",
		Description: "Counter of camera samples that have been traced",
		TagKeys:     []tag.Key{KeyScene},
		Measure:     SamplesTraced,
		Aggregation: view.Sum(),
	}
)

// RegisterViews registers every view in this package with the default
// OpenCensus worker.
func RegisterViews() error {
	return view.Register(RowsRenderedView, SamplesTracedView)
}

// WithScene tags ctx so that measurements recorded under it carry the scene
// name.
func WithScene(ctx context.Context, scene string) context.Context {
	tagged, err := tag.New(ctx, tag.Upsert(KeyScene, scene))
	if err != nil {
		// Only invalid tag values fail, and those are simply left untagged.
		return ctx
	}
	return tagged
}

// RecordRow notes that one row holding samples camera samples is finished.
func RecordRow(ctx context.Context, samples int64) {
	stats.Record(ctx, RowsRendered.M(1), SamplesTraced.M(samples))
}
