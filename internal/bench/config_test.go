package bench

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jamesainslie/go-omreval/annotation"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want 0.7", cfg.Threshold)
	}
	if cfg.Format() != annotation.XYWH {
		t.Errorf("Format() = %v, want xywh", cfg.Format())
	}
	if got := SweepThresholds(cfg.Sweep.Min, cfg.Sweep.Max, cfg.Sweep.Step); len(got) != 19 {
		t.Errorf("default sweep has %d points, want 19", len(got))
	}
	// Defaults alone lack datasets.
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() on defaults should fail without datasets")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bench.yaml")
	content := `inference_dir: runs/inference
datasets:
  - name: muscima
    ground_truth: data/muscima_test.json
  - name: deepscores
    ground_truth: data/deepscores_test.json
threshold: 0.5
box_format: xyxy
sweep:
  min: 0.1
  max: 0.9
  step: 0.2
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.InferenceDir != "runs/inference" {
		t.Errorf("InferenceDir = %q", cfg.InferenceDir)
	}
	if len(cfg.Datasets) != 2 || cfg.Datasets[1].Name != "deepscores" {
		t.Errorf("Datasets = %+v", cfg.Datasets)
	}
	if cfg.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", cfg.Threshold)
	}
	if cfg.Format() != annotation.XYXY {
		t.Errorf("Format() = %v, want xyxy", cfg.Format())
	}
	// Unset keys keep their defaults.
	if cfg.DBPath != "omreval.sqlite3" {
		t.Errorf("DBPath = %q, want default", cfg.DBPath)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("LoadConfig() on missing file should fail")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("datasets: [unclosed"), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Error("LoadConfig() on invalid yaml should fail")
	}
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg := DefaultConfig()
		cfg.Datasets = []Dataset{{Name: "muscima", GroundTruth: "gt.json"}}
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{
			name:    "no datasets",
			mutate:  func(c *Config) { c.Datasets = nil },
			wantErr: "no datasets",
		},
		{
			name: "duplicate dataset",
			mutate: func(c *Config) {
				c.Datasets = append(c.Datasets, c.Datasets[0])
			},
			wantErr: "listed twice",
		},
		{
			name:    "missing ground truth",
			mutate:  func(c *Config) { c.Datasets[0].GroundTruth = "" },
			wantErr: "no ground_truth",
		},
		{
			name:    "threshold out of range",
			mutate:  func(c *Config) { c.Threshold = 1.5 },
			wantErr: "threshold",
		},
		{
			name:    "unknown box format",
			mutate:  func(c *Config) { c.BoxFormat = "polygon" },
			wantErr: "polygon",
		},
		{
			name:    "empty sweep",
			mutate:  func(c *Config) { c.Sweep.Step = 0 },
			wantErr: "sweep",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}
