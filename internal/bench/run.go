package bench

import (
	"context"
	"fmt"
	"log/slog"

	omreval "github.com/jamesainslie/go-omreval"
	"github.com/jamesainslie/go-omreval/annotation"
)

// CheckpointResult is the outcome of scoring one checkpoint.
type CheckpointResult struct {
	Checkpoint Checkpoint
	Score      float64
	Images     int
	Excluded   int
	Cached     bool
}

// Runner scores every checkpoint of every configured dataset.
type Runner struct {
	cfg    Config
	eval   *omreval.Evaluator
	logger *slog.Logger
}

// NewRunner creates a Runner. Call Close when done.
func NewRunner(cfg Config, logger *slog.Logger) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []omreval.Option{
		omreval.WithThreshold(cfg.Threshold),
		omreval.WithBoxFormat(cfg.Format()),
		omreval.WithLogger(logger),
	}
	if cfg.Workers > 0 {
		opts = append(opts, omreval.WithWorkers(cfg.Workers))
	}

	ev, err := omreval.New(opts...)
	if err != nil {
		return nil, err
	}
	return &Runner{cfg: cfg, eval: ev, logger: logger}, nil
}

// Run scores all checkpoints and returns the merged metrics table. A
// checkpoint whose cached score was computed with the same threshold and box
// format is not re-evaluated unless Recompute is set.
func (r *Runner) Run(ctx context.Context) (Table, []CheckpointResult, error) {
	table := make(Table)
	var results []CheckpointResult

	for _, ds := range r.cfg.Datasets {
		checkpoints, err := DiscoverCheckpoints(r.cfg.InferenceDir, ds.Name)
		if err != nil {
			return nil, nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
		}
		if len(checkpoints) == 0 {
			r.logger.Warn("no checkpoints found", "dataset", ds.Name, "dir", r.cfg.InferenceDir)
			continue
		}

		var truth []annotation.Record
		var truthEx annotation.Exclusions
		truthLoaded := false

		for _, cp := range checkpoints {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}

			res, ok, err := r.cached(cp)
			if err != nil {
				return nil, nil, err
			}
			if !ok {
				if !truthLoaded {
					truth, truthEx, err = annotation.Load(ds.GroundTruth, r.cfg.Format())
					if err != nil {
						return nil, nil, fmt.Errorf("dataset %s: %w", ds.Name, err)
					}
					for _, x := range truthEx {
						r.logger.Warn("excluding malformed ground truth", "dataset", ds.Name, "reason", x.String())
					}
					truth = annotation.Filter(truth, truthEx)
					truthLoaded = true
				}
				res, err = r.score(ctx, cp, truth, truthEx)
				if err != nil {
					return nil, nil, err
				}
			}

			coco, err := LoadCocoResults(cp.Dir)
			if err != nil {
				return nil, nil, fmt.Errorf("checkpoint %s: %w", cp.Name, err)
			}
			table.Merge(ds.Name, cp.Name, coco)
			table.Set(MetricAD, ds.Name, cp.Name, res.Score)

			r.logger.Info("checkpoint scored",
				"dataset", ds.Name,
				"checkpoint", cp.Name,
				"ad", res.Score,
				"cached", res.Cached,
			)
			results = append(results, res)
		}
	}

	return table, results, nil
}

func (r *Runner) cached(cp Checkpoint) (CheckpointResult, bool, error) {
	if r.cfg.Recompute {
		return CheckpointResult{}, false, nil
	}
	c, ok, err := ReadCache(cp.Dir)
	if err != nil {
		r.logger.Warn("ignoring unreadable cache", "checkpoint", cp.Name, "error", err)
		return CheckpointResult{}, false, nil
	}
	if !ok || c.Threshold != r.cfg.Threshold || c.BoxFormat != r.cfg.Format().String() {
		return CheckpointResult{}, false, nil
	}
	return CheckpointResult{
		Checkpoint: cp,
		Score:      c.Score,
		Images:     c.Images,
		Excluded:   c.Excluded,
		Cached:     true,
	}, true, nil
}

func (r *Runner) score(ctx context.Context, cp Checkpoint, truth []annotation.Record, truthEx annotation.Exclusions) (CheckpointResult, error) {
	pred, predEx, err := annotation.Load(cp.PredictionsPath(), r.cfg.Format())
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("checkpoint %s: %w", cp.Name, err)
	}

	// truth is already filtered; truthEx only drops the matching predictions.
	res, err := r.eval.EvaluateRecords(ctx, truth, annotation.Filter(pred, truthEx), predEx...)
	if err != nil {
		return CheckpointResult{}, fmt.Errorf("checkpoint %s: %w", cp.Name, err)
	}

	out := CheckpointResult{
		Checkpoint: cp,
		Score:      res.Score,
		Images:     len(res.Images),
		Excluded:   len(truthEx) + len(res.Excluded),
	}
	if err := WriteCache(cp.Dir, CachedScore{
		Score:     out.Score,
		Images:    out.Images,
		Excluded:  out.Excluded,
		Threshold: r.cfg.Threshold,
		BoxFormat: r.cfg.Format().String(),
	}); err != nil {
		r.logger.Warn("could not write cache", "checkpoint", cp.Name, "error", err)
	}
	return out, nil
}

// Close releases the runner's evaluator.
func (r *Runner) Close() error {
	return r.eval.Close()
}
