package bench

import (
	"sort"

	"github.com/samber/lo"
)

// MetricAD is the table key for the average normalized sequence distance.
const MetricAD = "AD"

// Table holds metric values keyed metric -> dataset -> checkpoint.
type Table map[string]map[string]map[string]float64

// Set stores one value.
func (t Table) Set(metric, dataset, checkpoint string, v float64) {
	byDataset, ok := t[metric]
	if !ok {
		byDataset = make(map[string]map[string]float64)
		t[metric] = byDataset
	}
	byCheckpoint, ok := byDataset[dataset]
	if !ok {
		byCheckpoint = make(map[string]float64)
		byDataset[dataset] = byCheckpoint
	}
	byCheckpoint[checkpoint] = v
}

// Get returns one value.
func (t Table) Get(metric, dataset, checkpoint string) (float64, bool) {
	v, ok := t[metric][dataset][checkpoint]
	return v, ok
}

// Merge stores every metric of one checkpoint.
func (t Table) Merge(dataset, checkpoint string, values map[string]float64) {
	for metric, v := range values {
		t.Set(metric, dataset, checkpoint, v)
	}
}

// Metrics returns the metric names in sorted order.
func (t Table) Metrics() []string {
	keys := lo.Keys(t)
	sort.Strings(keys)
	return keys
}

// Datasets returns the dataset names recorded for metric, sorted.
func (t Table) Datasets(metric string) []string {
	keys := lo.Keys(t[metric])
	sort.Strings(keys)
	return keys
}

// Point is one checkpoint's value in a series.
type Point struct {
	Checkpoint string
	Iteration  int
	Value      float64
}

// Series returns one metric for one dataset ordered by training iteration.
// Checkpoints without an iteration sort last, by name.
func (t Table) Series(metric, dataset string) []Point {
	byCheckpoint := t[metric][dataset]
	points := make([]Point, 0, len(byCheckpoint))
	for name, v := range byCheckpoint {
		iter, ok := ParseIteration(name)
		if !ok {
			iter = -1
		}
		points = append(points, Point{Checkpoint: name, Iteration: iter, Value: v})
	}

	sort.Slice(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if (a.Iteration < 0) != (b.Iteration < 0) {
			return b.Iteration < 0
		}
		if a.Iteration != b.Iteration {
			return a.Iteration < b.Iteration
		}
		return a.Checkpoint < b.Checkpoint
	})
	return points
}

// Best returns the point with the lowest value, for metrics where lower is
// better such as AD.
func Best(points []Point) (Point, bool) {
	if len(points) == 0 {
		return Point{}, false
	}
	return lo.MinBy(points, func(a, b Point) bool { return a.Value < b.Value }), true
}
