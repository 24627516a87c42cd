package omreval

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/jamesainslie/go-omreval/align"
	"github.com/jamesainslie/go-omreval/annotation"
	"github.com/jamesainslie/go-omreval/sequence"
)

// Penalty is the contribution of an image present on only one side.
const Penalty = 1.0

// Status says which sides an image appeared on.
type Status int

const (
	// Matched images appear in both ground truth and predictions.
	Matched Status = iota
	// MissingPrediction images have ground truth but no surviving predictions.
	MissingPrediction
	// MissingTruth images have predictions but no ground truth.
	MissingTruth
)

func (s Status) String() string {
	switch s {
	case Matched:
		return "matched"
	case MissingPrediction:
		return "missing-prediction"
	case MissingTruth:
		return "missing-truth"
	default:
		return "unknown"
	}
}

// ImageResult is the evaluation of one image.
type ImageResult struct {
	ImageID    annotation.ImageID
	Status     Status
	Truth      sequence.Sequence // nil unless Matched
	Pred       sequence.Sequence // nil unless Matched
	Distance   int
	Normalized float64
}

// Contribution is the image's share of the dataset score: the normalized
// distance when matched, Penalty otherwise.
func (r ImageResult) Contribution() float64 {
	if r.Status != Matched {
		return Penalty
	}
	return r.Normalized
}

// Explain returns the edit script behind a matched image's distance.
func (r ImageResult) Explain() align.Alignment {
	return align.NewAligner().Align(r.Truth, r.Pred)
}

// Stats summarizes per-image contributions.
type Stats struct {
	Mean   float64
	StdDev float64
	Median float64
	Max    float64
}

// Result is the evaluation of a dataset.
type Result struct {
	// Score is the mean contribution over the union of image ids.
	Score float64

	Images            []ImageResult // sorted by ImageID
	Matched           int
	MissingPrediction int
	MissingTruth      int
	Stats             Stats

	// Excluded lists records rejected as malformed. Their images are left
	// out of Images and Score.
	Excluded annotation.Exclusions
}

// Err returns a single error describing every exclusion, or nil.
func (r Result) Err() error {
	return r.Excluded.Err()
}

// Image returns the result for id.
func (r Result) Image(id annotation.ImageID) (ImageResult, bool) {
	i := sort.Search(len(r.Images), func(i int) bool { return r.Images[i].ImageID >= id })
	if i < len(r.Images) && r.Images[i].ImageID == id {
		return r.Images[i], true
	}
	return ImageResult{}, false
}

func summarize(images []ImageResult) Result {
	res := Result{Images: images}
	if len(images) == 0 {
		return res
	}

	values := make([]float64, len(images))
	for i, img := range images {
		values[i] = img.Contribution()
		switch img.Status {
		case Matched:
			res.Matched++
		case MissingPrediction:
			res.MissingPrediction++
		case MissingTruth:
			res.MissingTruth++
		}
	}

	res.Score = stat.Mean(values, nil)
	res.Stats.Mean = res.Score
	if len(values) > 1 {
		res.Stats.StdDev = stat.StdDev(values, nil)
	}
	res.Stats.Max = floats.Max(values)

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	res.Stats.Median = stat.Quantile(0.5, stat.Empirical, sorted, nil)
	if math.IsNaN(res.Stats.StdDev) {
		res.Stats.StdDev = 0
	}
	return res
}
