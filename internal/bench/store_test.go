package bench

import (
	"errors"
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenStore(filepath.Join(t.TempDir(), "db", "results.sqlite3"))
	if err != nil {
		t.Fatalf("OpenStore() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreSaveRun(t *testing.T) {
	s := openTestStore(t)

	table := make(Table)
	table.Set(MetricAD, "muscima", "model_0002000", 0.4)
	table.Set(MetricAD, "muscima", "model_0001000", 0.5)
	table.Set("AP", "muscima", "model_0001000", 38.5)

	id, err := s.SaveRun("bench.yaml", 0.7, table)
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	if id == "" {
		t.Fatal("SaveRun() returned empty id")
	}

	runs, err := s.Runs()
	if err != nil {
		t.Fatalf("Runs() error = %v", err)
	}
	if len(runs) != 1 || runs[0].ID != id || runs[0].Source != "bench.yaml" || runs[0].Threshold != 0.7 {
		t.Errorf("Runs() = %+v", runs)
	}

	got, err := s.Table(id)
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	for _, c := range []struct {
		metric, checkpoint string
		want               float64
	}{
		{MetricAD, "model_0001000", 0.5},
		{MetricAD, "model_0002000", 0.4},
		{"AP", "model_0001000", 38.5},
	} {
		if v, ok := got.Get(c.metric, "muscima", c.checkpoint); !ok || v != c.want {
			t.Errorf("Table().Get(%s, %s) = %v, %v, want %v", c.metric, c.checkpoint, v, ok, c.want)
		}
	}

	history, err := s.History(MetricAD, "muscima")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("History() returned %d rows, want 2", len(history))
	}
	if history[0].Iteration != 1000 || history[1].Iteration != 2000 {
		t.Errorf("History() order = %d, %d, want 1000, 2000", history[0].Iteration, history[1].Iteration)
	}
}

func TestStoreEmptyRun(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveRun("bench.yaml", 0.7, make(Table))
	if err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}
	got, err := s.Table(id)
	if err != nil {
		t.Fatalf("Table() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Table() = %v, want empty", got)
	}
}

func TestStoreUnknownRun(t *testing.T) {
	s := openTestStore(t)

	_, err := s.Table("00000000-0000-0000-0000-000000000000")
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("Table() error = %v, want ErrRecordNotFound", err)
	}
}

func TestStoreNil(t *testing.T) {
	var s *Store
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil store = %v", err)
	}
	if _, err := s.Runs(); err == nil {
		t.Error("Runs() on nil store should fail")
	}
}
