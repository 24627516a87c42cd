package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

const (
	// PredictionsFile is the detector output inside a checkpoint directory.
	PredictionsFile = "bbox.json"
	// CocoResultsFile optionally holds other metrics (metric name -> value)
	// computed for the same checkpoint.
	CocoResultsFile = "coco_results.json"
)

// Checkpoint is one evaluated model snapshot for one dataset.
type Checkpoint struct {
	Dataset   string
	Name      string // directory name, e.g. model_0005000
	Iteration int    // -1 when the name carries no iteration
	Dir       string
}

// PredictionsPath returns the path of the checkpoint's detector output.
func (c Checkpoint) PredictionsPath() string {
	return filepath.Join(c.Dir, PredictionsFile)
}

var trailingDigits = regexp.MustCompile(`(\d+)$`)

// ParseIteration extracts the training iteration from a checkpoint name's
// trailing digits.
func ParseIteration(name string) (int, bool) {
	m := trailingDigits.FindStringSubmatch(name)
	if m == nil {
		return -1, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return -1, false
	}
	return n, true
}

// DiscoverCheckpoints lists every checkpoint directory under
// <inferenceDir>/<dataset> that holds a predictions file, ordered by
// iteration. Checkpoints without an iteration come last.
func DiscoverCheckpoints(inferenceDir, dataset string) ([]Checkpoint, error) {
	root := filepath.Join(inferenceDir, dataset)
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}

	var checkpoints []Checkpoint
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		dir := filepath.Join(root, entry.Name())
		if _, err := os.Stat(filepath.Join(dir, PredictionsFile)); err != nil {
			continue
		}

		iter, _ := ParseIteration(entry.Name())
		checkpoints = append(checkpoints, Checkpoint{
			Dataset:   dataset,
			Name:      entry.Name(),
			Iteration: iter,
			Dir:       dir,
		})
	}

	sort.SliceStable(checkpoints, func(i, j int) bool {
		a, b := checkpoints[i], checkpoints[j]
		if (a.Iteration < 0) != (b.Iteration < 0) {
			return b.Iteration < 0
		}
		if a.Iteration != b.Iteration {
			return a.Iteration < b.Iteration
		}
		return a.Name < b.Name
	})
	return checkpoints, nil
}

// LoadCocoResults reads a checkpoint's optional metrics file. A missing
// file yields nil and no error.
func LoadCocoResults(dir string) (map[string]float64, error) {
	data, err := os.ReadFile(filepath.Join(dir, CocoResultsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read coco results: %w", err)
	}

	var results map[string]float64
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("parse coco results: %w", err)
	}
	return results, nil
}
