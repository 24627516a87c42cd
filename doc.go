// Package omreval scores a symbol detector against ground truth by the
// order in which symbols occur, not only by per-box overlap.
//
// Each image's annotations are sorted left to right and grouped into chords
// (labels whose boxes overlap horizontally). The ground-truth and predicted
// chord sequences are aligned with an edit distance whose costs are chord
// set differences, normalized by the larger label count, and averaged over
// every image that appears in either set.
//
// # Quick Start
//
//	ev, err := omreval.New(omreval.WithThreshold(0.7))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer ev.Close()
//
//	res, err := ev.EvaluateFiles(ctx, "annotations.json", "bbox.json")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("AD: %.4f over %d images\n", res.Score, len(res.Images))
//
// # Scoring
//
// An image present on only one side contributes the fixed penalty 1.0. An
// image with two empty sequences contributes 0. A normalized distance is not
// bounded by 1: two disjoint single-label chords score 2.0.
//
// # Thread Safety
//
// Evaluator is safe for concurrent use. Images are aligned in parallel, each
// worker holding its own aligner from an internal pool sized by WithWorkers.
package omreval
