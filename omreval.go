package omreval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/jamesainslie/go-omreval/align"
	"github.com/jamesainslie/go-omreval/annotation"
	"github.com/jamesainslie/go-omreval/sequence"
)

// Evaluator scores predicted annotations against ground truth.
// It is safe for concurrent use.
type Evaluator struct {
	pool      *align.Pool
	threshold float64
	workers   int
	format    annotation.BoxFormat
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates an Evaluator.
func New(opts ...Option) (*Evaluator, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := annotation.ValidateThreshold(cfg.threshold); err != nil {
		return nil, err
	}

	return &Evaluator{
		pool:      align.NewPool(cfg.workers),
		threshold: cfg.threshold,
		workers:   cfg.workers,
		format:    cfg.format,
		logger:    cfg.logger,
	}, nil
}

// Threshold returns the prediction score threshold.
func (e *Evaluator) Threshold() float64 { return e.threshold }

// EvaluateImage aligns one image's ground truth against its predictions.
// An image with annotations on only one side gets the fixed penalty; an
// image with none on either side scores 0.
func (e *Evaluator) EvaluateImage(ctx context.Context, id annotation.ImageID, truth, pred []annotation.Annotation) (ImageResult, error) {
	if err := e.checkOpen(); err != nil {
		return ImageResult{}, err
	}
	defer e.mu.RUnlock()

	switch {
	case len(truth) == 0 && len(pred) == 0:
		return ImageResult{ImageID: id, Status: Matched}, nil
	case len(pred) == 0:
		return ImageResult{ImageID: id, Status: MissingPrediction}, nil
	case len(truth) == 0:
		return ImageResult{ImageID: id, Status: MissingTruth}, nil
	}

	al, err := e.pool.Acquire(ctx)
	if err != nil {
		return ImageResult{}, err
	}
	defer e.pool.Release(al)

	return e.alignImage(al, id, truth, pred), nil
}

// Evaluate scores every image in the union of truth and pred. Images on only
// one side contribute Penalty without being aligned. Images are aligned in
// parallel; cancelling ctx aborts the evaluation.
func (e *Evaluator) Evaluate(ctx context.Context, truth, pred annotation.Index) (Result, error) {
	if err := e.checkOpen(); err != nil {
		return Result{}, err
	}
	defer e.mu.RUnlock()

	ids := lo.Union(nonEmpty(truth), nonEmpty(pred))
	if len(ids) == 0 {
		return Result{}, ErrNoImages
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	images := make([]ImageResult, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, id := range ids {
		t, p := truth[id], pred[id]
		switch {
		case len(p) == 0:
			images[i] = ImageResult{ImageID: id, Status: MissingPrediction}
			continue
		case len(t) == 0:
			images[i] = ImageResult{ImageID: id, Status: MissingTruth}
			continue
		}

		g.Go(func() error {
			al, err := e.pool.Acquire(gctx)
			if err != nil {
				return err
			}
			defer e.pool.Release(al)

			images[i] = e.alignImage(al, id, t, p)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("evaluating images: %w", err)
	}

	res := summarize(images)
	e.logger.Debug("dataset evaluated",
		"images", len(images),
		"matched", res.Matched,
		"missing_prediction", res.MissingPrediction,
		"missing_truth", res.MissingTruth,
		"score", res.Score,
	)
	return res, nil
}

// EvaluateRecords indexes decoded records and evaluates them. Predictions
// are filtered by the threshold; ground truth is not. Any image named in
// excluded, or holding an unscored prediction, is left out of the
// evaluation and reported in Result.Excluded.
func (e *Evaluator) EvaluateRecords(ctx context.Context, truth, pred []annotation.Record, excluded ...annotation.Exclusion) (Result, error) {
	ex := append(annotation.Exclusions(nil), excluded...)
	ex = append(ex, annotation.RequireScores(pred)...)

	for _, x := range ex {
		e.logger.Warn("excluding malformed annotation", "reason", x.String())
	}

	threshold := e.threshold
	truthIdx := annotation.BuildIndex(annotation.Filter(truth, ex), nil)
	predIdx := annotation.BuildIndex(annotation.Filter(pred, ex), &threshold)

	res, err := e.Evaluate(ctx, truthIdx, predIdx)
	if err != nil {
		return Result{Excluded: ex}, err
	}
	res.Excluded = ex
	return res, nil
}

// EvaluateFiles loads a ground-truth file and a prediction file and
// evaluates them. Malformed records exclude their image and are reported in
// Result.Excluded rather than failing the run.
func (e *Evaluator) EvaluateFiles(ctx context.Context, truthPath, predPath string) (Result, error) {
	truth, truthEx, err := annotation.Load(truthPath, e.format)
	if err != nil {
		return Result{}, fmt.Errorf("loading ground truth: %w", err)
	}
	pred, predEx, err := annotation.Load(predPath, e.format)
	if err != nil {
		return Result{}, fmt.Errorf("loading predictions: %w", err)
	}

	e.logger.Debug("annotations loaded",
		"truth", len(truth),
		"predictions", len(pred),
		"excluded", len(truthEx)+len(predEx),
	)

	return e.EvaluateRecords(ctx, truth, pred, append(truthEx, predEx...)...)
}

func (e *Evaluator) alignImage(al *align.Aligner, id annotation.ImageID, truth, pred []annotation.Annotation) ImageResult {
	ts := sequence.Build(truth)
	ps := sequence.Build(pred)
	d := al.Distance(ts, ps)

	res := ImageResult{
		ImageID:    id,
		Status:     Matched,
		Truth:      ts,
		Pred:       ps,
		Distance:   d,
		Normalized: align.Normalize(d, ts, ps),
	}
	e.logger.Debug("image aligned",
		"image", id,
		"truth_chords", len(ts),
		"pred_chords", len(ps),
		"distance", d,
		"normalized", res.Normalized,
	)
	return res
}

// checkOpen read-locks the evaluator; callers must RUnlock on success.
func (e *Evaluator) checkOpen() error {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return ErrEvaluatorClosed
	}
	return nil
}

// Close releases all resources.
func (e *Evaluator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var errs []error
	if e.pool != nil {
		if err := e.pool.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func nonEmpty(idx annotation.Index) []annotation.ImageID {
	ids := make([]annotation.ImageID, 0, len(idx))
	for id, anns := range idx {
		if len(anns) > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
