package bench

import (
	"reflect"
	"testing"
)

func TestTableSetGet(t *testing.T) {
	table := make(Table)
	table.Set(MetricAD, "muscima", "model_0001000", 0.25)

	if v, ok := table.Get(MetricAD, "muscima", "model_0001000"); !ok || v != 0.25 {
		t.Errorf("Get() = %v, %v, want 0.25, true", v, ok)
	}
	if _, ok := table.Get(MetricAD, "muscima", "model_0002000"); ok {
		t.Error("Get() of unset checkpoint should report false")
	}
	if _, ok := table.Get("AP", "muscima", "model_0001000"); ok {
		t.Error("Get() of unset metric should report false")
	}

	table.Set(MetricAD, "muscima", "model_0001000", 0.2)
	if v, _ := table.Get(MetricAD, "muscima", "model_0001000"); v != 0.2 {
		t.Errorf("Set() did not overwrite, got %v", v)
	}
}

func TestTableMerge(t *testing.T) {
	table := make(Table)
	table.Merge("muscima", "model_0001000", map[string]float64{"AP": 40, "AP50": 65})
	table.Merge("deepscores", "model_0001000", nil)
	table.Set(MetricAD, "deepscores", "model_0001000", 0.3)

	if got, want := table.Metrics(), []string{"AD", "AP", "AP50"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Metrics() = %v, want %v", got, want)
	}
	if got, want := table.Datasets("AP"), []string{"muscima"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Datasets(AP) = %v, want %v", got, want)
	}
	if got := table.Datasets("mAR"); len(got) != 0 {
		t.Errorf("Datasets(mAR) = %v, want empty", got)
	}
}

func TestSeries(t *testing.T) {
	table := make(Table)
	table.Set(MetricAD, "muscima", "model_final", 0.1)
	table.Set(MetricAD, "muscima", "model_0010000", 0.2)
	table.Set(MetricAD, "muscima", "model_0002000", 0.4)
	table.Set(MetricAD, "muscima", "model_0005000", 0.3)

	got := table.Series(MetricAD, "muscima")
	want := []Point{
		{Checkpoint: "model_0002000", Iteration: 2000, Value: 0.4},
		{Checkpoint: "model_0005000", Iteration: 5000, Value: 0.3},
		{Checkpoint: "model_0010000", Iteration: 10000, Value: 0.2},
		{Checkpoint: "model_final", Iteration: -1, Value: 0.1},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Series() = %+v, want %+v", got, want)
	}

	best, ok := Best(got)
	if !ok || best.Checkpoint != "model_final" {
		t.Errorf("Best() = %+v, %v, want model_final", best, ok)
	}
}

func TestBestEmpty(t *testing.T) {
	if _, ok := Best(nil); ok {
		t.Error("Best(nil) should report false")
	}
}
