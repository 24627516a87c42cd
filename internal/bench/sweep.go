package bench

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"path/filepath"
	"sort"

	omreval "github.com/jamesainslie/go-omreval"
	"github.com/jamesainslie/go-omreval/annotation"
)

// SweepResult holds the dataset score for one threshold value.
type SweepResult struct {
	Threshold         float64
	Score             float64
	Matched           int
	MissingPrediction int
	MissingTruth      int
}

// SweepThresholds generates threshold values from min (inclusive) to max
// (exclusive) with the given step. Values are computed by index so rounding
// error does not accumulate.
func SweepThresholds(min, max, step float64) []float64 {
	if step <= 0 || min >= max {
		return nil
	}
	var thresholds []float64
	for i := 0; ; i++ {
		t := math.Round((min+float64(i)*step)*1e9) / 1e9
		if t >= max {
			break
		}
		thresholds = append(thresholds, t)
	}
	return thresholds
}

// Sweep evaluates the same records at several thresholds and returns
// results sorted by score, best (lowest) first.
func Sweep(ctx context.Context, truth, pred []annotation.Record, excluded annotation.Exclusions, thresholds []float64, logger *slog.Logger, opts ...omreval.Option) ([]SweepResult, error) {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]SweepResult, 0, len(thresholds))
	for _, threshold := range thresholds {
		evOpts := append([]omreval.Option{omreval.WithLogger(logger)}, opts...)
		evOpts = append(evOpts, omreval.WithThreshold(threshold))
		ev, err := omreval.New(evOpts...)
		if err != nil {
			return nil, err
		}

		res, err := ev.EvaluateRecords(ctx, truth, pred, excluded...)
		if cerr := ev.Close(); cerr != nil {
			err = errors.Join(err, cerr)
		}
		if err != nil {
			return nil, fmt.Errorf("threshold %.3f: %w", threshold, err)
		}

		logger.Debug("sweep point", "threshold", threshold, "score", res.Score)
		results = append(results, SweepResult{
			Threshold:         threshold,
			Score:             res.Score,
			Matched:           res.Matched,
			MissingPrediction: res.MissingPrediction,
			MissingTruth:      res.MissingTruth,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score < results[j].Score
	})

	return results, nil
}

// SweepCheckpoint sweeps the configured threshold range over one
// checkpoint of one dataset.
func SweepCheckpoint(ctx context.Context, cfg Config, dataset, checkpoint string, logger *slog.Logger) ([]SweepResult, error) {
	ds, ok := cfg.Dataset(dataset)
	if !ok {
		return nil, fmt.Errorf("dataset %q is not configured", dataset)
	}

	truth, truthEx, err := annotation.Load(ds.GroundTruth, cfg.Format())
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", dataset, err)
	}
	pred, predEx, err := annotation.Load(filepath.Join(cfg.InferenceDir, dataset, checkpoint, PredictionsFile), cfg.Format())
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", checkpoint, err)
	}

	var opts []omreval.Option
	if cfg.Workers > 0 {
		opts = append(opts, omreval.WithWorkers(cfg.Workers))
	}
	thresholds := SweepThresholds(cfg.Sweep.Min, cfg.Sweep.Max, cfg.Sweep.Step)
	return Sweep(ctx, truth, pred, append(truthEx, predEx...), thresholds, logger, opts...)
}
