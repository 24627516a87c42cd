// Package bench evaluates every checkpoint of a training run and collects
// the results into a metrics table.
package bench

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jamesainslie/go-omreval/annotation"
)

// Dataset pairs a dataset name with its ground-truth file.
type Dataset struct {
	Name        string `yaml:"name"`
	GroundTruth string `yaml:"ground_truth"`
}

// SweepConfig bounds a threshold sweep. Max is exclusive.
type SweepConfig struct {
	Min  float64 `yaml:"min"`
	Max  float64 `yaml:"max"`
	Step float64 `yaml:"step"`
}

// Config holds benchmark parameters.
type Config struct {
	InferenceDir string      `yaml:"inference_dir"` // <dir>/<dataset>/<checkpoint>/bbox.json
	Datasets     []Dataset   `yaml:"datasets"`
	Threshold    float64     `yaml:"threshold"`
	Workers      int         `yaml:"workers"`
	BoxFormat    string      `yaml:"box_format"`
	DBPath       string      `yaml:"db_path"`
	Recompute    bool        `yaml:"recompute"` // ignore cached average distances
	Sweep        SweepConfig `yaml:"sweep"`
}

// DefaultConfig returns default benchmark configuration.
func DefaultConfig() Config {
	return Config{
		InferenceDir: "inference",
		Threshold:    0.7,
		BoxFormat:    "xywh",
		DBPath:       "omreval.sqlite3",
		Sweep: SweepConfig{
			Min:  0.05,
			Max:  1.0,
			Step: 0.05,
		},
	}
}

// LoadConfig reads a YAML config file over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the config for usable values.
func (c Config) Validate() error {
	var errs []error

	if len(c.Datasets) == 0 {
		errs = append(errs, errors.New("no datasets configured"))
	}
	seen := make(map[string]bool, len(c.Datasets))
	for i, d := range c.Datasets {
		if d.Name == "" {
			errs = append(errs, fmt.Errorf("dataset %d has no name", i))
		}
		if d.GroundTruth == "" {
			errs = append(errs, fmt.Errorf("dataset %q has no ground_truth", d.Name))
		}
		if seen[d.Name] {
			errs = append(errs, fmt.Errorf("dataset %q listed twice", d.Name))
		}
		seen[d.Name] = true
	}

	if err := annotation.ValidateThreshold(c.Threshold); err != nil {
		errs = append(errs, err)
	}
	if _, err := annotation.ParseBoxFormat(c.BoxFormat); err != nil {
		errs = append(errs, err)
	}
	if c.Sweep.Step <= 0 || c.Sweep.Min >= c.Sweep.Max {
		errs = append(errs, fmt.Errorf("sweep range [%v, %v) step %v is empty", c.Sweep.Min, c.Sweep.Max, c.Sweep.Step))
	}

	return errors.Join(errs...)
}

// Dataset returns the dataset called name.
func (c Config) Dataset(name string) (Dataset, bool) {
	for _, d := range c.Datasets {
		if d.Name == name {
			return d, true
		}
	}
	return Dataset{}, false
}

// Format returns the parsed box format.
func (c Config) Format() annotation.BoxFormat {
	f, err := annotation.ParseBoxFormat(c.BoxFormat)
	if err != nil {
		return annotation.XYWH
	}
	return f
}
