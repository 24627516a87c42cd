package omreval

import (
	"log/slog"
	"runtime"

	"github.com/jamesainslie/go-omreval/annotation"
)

// Option configures an Evaluator.
type Option func(*config)

type config struct {
	threshold float64
	workers   int
	format    annotation.BoxFormat
	logger    *slog.Logger
}

func defaultConfig() config {
	return config{
		threshold: 0.7,
		workers:   runtime.NumCPU(),
		format:    annotation.XYWH,
		logger:    slog.Default(),
	}
}

// WithThreshold sets the minimum prediction score (default: 0.7).
// Predictions scoring strictly below it are discarded before sequencing.
func WithThreshold(t float64) Option {
	return func(c *config) {
		c.threshold = t
	}
}

// WithWorkers sets how many images are aligned in parallel (default: runtime.NumCPU()).
func WithWorkers(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithBoxFormat sets the bbox layout used when decoding files (default: XYWH).
func WithBoxFormat(f annotation.BoxFormat) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
