// Package align computes the edit distance between two chord sequences.
//
// Deleting a chord costs its size; aligning one chord against another costs
// the size of their symmetric difference. The distance is filled bottom-up
// over prefix lengths (i, j), so memory is owned by a single call or a single
// Aligner and nothing is cached across calls.
package align

import (
	"fmt"
	"sync"

	"github.com/jamesainslie/go-omreval/sequence"
)

// Op is one edit operation in an alignment.
type Op int

const (
	// Match pairs two identical chords.
	Match Op = iota
	// Substitute pairs two chords that differ.
	Substitute
	// DeleteTruth drops a ground-truth chord the prediction missed.
	DeleteTruth
	// DeletePred drops a predicted chord with no ground-truth counterpart.
	DeletePred
)

func (o Op) String() string {
	switch o {
	case Match:
		return "match"
	case Substitute:
		return "substitute"
	case DeleteTruth:
		return "delete-truth"
	case DeletePred:
		return "delete-pred"
	default:
		return fmt.Sprintf("Op(%d)", int(o))
	}
}

// Step is one operation of an alignment. TruthIndex or PredIndex is -1 when
// the operation does not consume a chord from that side.
type Step struct {
	Op         Op
	TruthIndex int
	PredIndex  int
	Cost       int
}

// Alignment is an edit script turning a truth sequence into a prediction.
type Alignment struct {
	Distance int
	Steps    []Step
}

// Aligner holds scratch buffers reused across alignments.
// It is safe for use by one goroutine at a time; use a Pool to share
// aligners between workers.
type Aligner struct {
	mu    sync.Mutex
	prev  []int
	cur   []int
	table []int
}

// NewAligner returns an Aligner with empty scratch buffers.
func NewAligner() *Aligner {
	return &Aligner{}
}

// Distance returns the minimum edit cost between truth and pred.
func Distance(truth, pred sequence.Sequence) int {
	return NewAligner().Distance(truth, pred)
}

// Distance returns the minimum edit cost between truth and pred. The longer
// sequence indexes rows so two rows of len(shorter)+1 cells suffice.
func (a *Aligner) Distance(truth, pred sequence.Sequence) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, cols := truth, pred
	if len(rows) < len(cols) {
		rows, cols = cols, rows
	}
	m := len(cols)

	a.prev = grow(a.prev, m+1)
	a.cur = grow(a.cur, m+1)
	prev, cur := a.prev, a.cur

	prev[0] = 0
	for j := 1; j <= m; j++ {
		prev[j] = prev[j-1] + cols[j-1].Size()
	}

	for i := 1; i <= len(rows); i++ {
		t := rows[i-1]
		cur[0] = prev[0] + t.Size()
		for j := 1; j <= m; j++ {
			p := cols[j-1]
			cur[j] = min(
				prev[j]+t.Size(),
				cur[j-1]+p.Size(),
				prev[j-1]+t.SymmetricDifference(p),
			)
		}
		prev, cur = cur, prev
	}

	return prev[m]
}

// Align returns the distance together with the edit script that achieves it.
func (a *Aligner) Align(truth, pred sequence.Sequence) Alignment {
	a.mu.Lock()
	defer a.mu.Unlock()

	n, m := len(truth), len(pred)
	width := m + 1
	a.table = grow(a.table, (n+1)*width)
	d := a.table

	d[0] = 0
	for j := 1; j <= m; j++ {
		d[j] = d[j-1] + pred[j-1].Size()
	}
	for i := 1; i <= n; i++ {
		t := truth[i-1]
		row, up := i*width, (i-1)*width
		d[row] = d[up] + t.Size()
		for j := 1; j <= m; j++ {
			p := pred[j-1]
			d[row+j] = min(
				d[up+j]+t.Size(),
				d[row+j-1]+p.Size(),
				d[up+j-1]+t.SymmetricDifference(p),
			)
		}
	}

	steps := make([]Step, 0, max(n, m))
	i, j := n, m
	for i > 0 || j > 0 {
		here := d[i*width+j]
		switch {
		case i > 0 && j > 0 && here == d[(i-1)*width+j-1]+truth[i-1].SymmetricDifference(pred[j-1]):
			cost := here - d[(i-1)*width+j-1]
			op := Match
			if cost > 0 {
				op = Substitute
			}
			steps = append(steps, Step{Op: op, TruthIndex: i - 1, PredIndex: j - 1, Cost: cost})
			i--
			j--
		case i > 0 && here == d[(i-1)*width+j]+truth[i-1].Size():
			steps = append(steps, Step{Op: DeleteTruth, TruthIndex: i - 1, PredIndex: -1, Cost: truth[i-1].Size()})
			i--
		default:
			steps = append(steps, Step{Op: DeletePred, TruthIndex: -1, PredIndex: j - 1, Cost: pred[j-1].Size()})
			j--
		}
	}

	for l, r := 0, len(steps)-1; l < r; l, r = l+1, r-1 {
		steps[l], steps[r] = steps[r], steps[l]
	}

	return Alignment{Distance: d[n*width+m], Steps: steps}
}

// Normalize divides a raw distance by the larger total label count of the
// two sequences. Two empty sequences normalize to 0. The result can exceed
// 1: disjoint single-label chords give 2/1.
func Normalize(raw int, truth, pred sequence.Sequence) float64 {
	n := max(truth.TotalLabels(), pred.TotalLabels())
	if n == 0 {
		return 0
	}
	return float64(raw) / float64(n)
}

func grow(buf []int, n int) []int {
	if cap(buf) < n {
		return make([]int, n)
	}
	return buf[:n]
}
