package rendermetrics

import (
	"context"
	"testing"

	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

func TestRecordRow(t *testing.T) {
	if err := RegisterViews(); err != nil {
		t.Fatalf("Error registering views: %v", err)
	}
	defer view.Unregister(RowsRenderedView, SamplesTracedView)

	ctx := WithScene(context.Background(), "test_scene")
	RecordRow(ctx, 100)
	RecordRow(ctx, 100)

	testCases := []struct {
		view string
		want float64
	}{
		{RowsRenderedView.Name, 2},
		{SamplesTracedView.Name, 200},
	}

	for _, tc := range testCases {
		t.Run(tc.view, func(t *testing.T) {
			rows, err := view.RetrieveData(tc.view)
			if err != nil {
				t.Fatalf("Error retrieving data: %v", err)
			}

			var got float64
			for _, row := range rows {
				for _, tg := range row.Tags {
					if tg.Key == KeyScene && tg.Value == "test_scene" {
						got = row.Data.(*view.SumData).Value
					}
				}
			}
			if got != tc.want {
				t.Errorf("Sum for test_scene = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWithSceneTags(t *testing.T) {
	ctx := WithScene(context.Background(), "abc")
	got, ok := tag.FromContext(ctx).Value(KeyScene)
	if !ok || got != "abc" {
		t.Errorf("Scene tag = %q, %v; want %q, true", got, ok, "abc")
	}
}
