// Package annotation decodes detection records and groups them by image.
package annotation

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
)

// ErrMalformedAnnotation indicates a record that could not be decoded.
var ErrMalformedAnnotation = errors.New("annotation: malformed record")

// ErrInvalidThreshold indicates a score threshold outside [0, 1].
var ErrInvalidThreshold = errors.New("annotation: threshold must be in [0, 1]")

// ImageID identifies an image in a dataset.
type ImageID int64

// Label is a category id. Labels are compared by equality only.
type Label int64

// BoundingBox is an axis-aligned box in image space.
// Only X1 and X2 are used for sequencing.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// Annotation is a labelled box.
type Annotation struct {
	Box   BoundingBox
	Label Label
}

// Record is one decoded detection or ground-truth annotation.
// Score is nil for ground truth.
type Record struct {
	ImageID ImageID
	Box     BoundingBox
	Label   Label
	Score   *float64
}

// Index maps an image to its annotations. A missing key means the image
// has no annotations.
type Index map[ImageID][]Annotation

// Images returns the image ids in ascending order.
func (idx Index) Images() []ImageID {
	ids := make([]ImageID, 0, len(idx))
	for id := range idx {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len returns the total number of annotations across all images.
func (idx Index) Len() int {
	n := 0
	for _, anns := range idx {
		n += len(anns)
	}
	return n
}

// ValidateThreshold checks that t is a usable score threshold.
func ValidateThreshold(t float64) error {
	if math.IsNaN(t) || t < 0 || t > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, t)
	}
	return nil
}

// BuildIndex groups records by image. When threshold is non-nil, records
// scoring strictly below it are dropped. Records without a score never pass
// a threshold. Images left with no annotations are absent from the index.
func BuildIndex(records []Record, threshold *float64) Index {
	idx := make(Index)
	for _, r := range records {
		if threshold != nil && (r.Score == nil || *r.Score < *threshold) {
			continue
		}
		idx[r.ImageID] = append(idx[r.ImageID], Annotation{Box: r.Box, Label: r.Label})
	}
	return idx
}

// Exclusion records why an image's data was rejected.
type Exclusion struct {
	ImageID ImageID
	Known   bool // false when the image id itself could not be decoded
	Record  int  // position of the offending record in its document
	Reason  string
}

func (e Exclusion) String() string {
	if !e.Known {
		return fmt.Sprintf("record %d (unknown image): %s", e.Record, e.Reason)
	}
	return fmt.Sprintf("image %d (record %d): %s", e.ImageID, e.Record, e.Reason)
}

// Exclusions is a list of rejected records.
type Exclusions []Exclusion

// Images returns the distinct known image ids that were excluded.
func (ex Exclusions) Images() map[ImageID]struct{} {
	out := make(map[ImageID]struct{}, len(ex))
	for _, e := range ex {
		if e.Known {
			out[e.ImageID] = struct{}{}
		}
	}
	return out
}

// Err returns a single error naming every exclusion, or nil.
func (ex Exclusions) Err() error {
	if len(ex) == 0 {
		return nil
	}
	parts := make([]string, len(ex))
	for i, e := range ex {
		parts[i] = e.String()
	}
	return fmt.Errorf("%w: %d excluded: %s", ErrMalformedAnnotation, len(ex), strings.Join(parts, "; "))
}

// Filter drops every record belonging to an excluded image.
func Filter(records []Record, ex Exclusions) []Record {
	if len(ex) == 0 {
		return records
	}
	bad := ex.Images()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if _, skip := bad[r.ImageID]; skip {
			continue
		}
		out = append(out, r)
	}
	return out
}

// RequireScores reports every record that carries no score. Predictions
// need a score before a threshold can be applied to them.
func RequireScores(records []Record) Exclusions {
	var ex Exclusions
	for i, r := range records {
		if r.Score == nil {
			ex = append(ex, Exclusion{ImageID: r.ImageID, Known: true, Record: i, Reason: "missing score"})
		}
	}
	return ex
}
