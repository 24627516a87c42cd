// Package sequence turns an image's unordered annotations into an ordered
// sequence of chords: groups of labels that occur at the same horizontal
// position.
package sequence

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/jamesainslie/go-omreval/annotation"
)

// Chord is the set of labels sounding at one instant. Labels are kept
// sorted and unique: two identical labels at the same instant collapse to
// one entry.
type Chord []annotation.Label

// NewChord builds a chord from labels, dropping duplicates.
func NewChord(labels ...annotation.Label) Chord {
	c := make(Chord, 0, len(labels))
	for _, l := range labels {
		c = c.add(l)
	}
	return c
}

// add inserts l keeping the chord sorted and unique.
func (c Chord) add(l annotation.Label) Chord {
	i := sort.Search(len(c), func(i int) bool { return c[i] >= l })
	if i < len(c) && c[i] == l {
		return c
	}
	c = append(c, 0)
	copy(c[i+1:], c[i:])
	c[i] = l
	return c
}

// Size returns the number of distinct labels in the chord.
func (c Chord) Size() int { return len(c) }

// Contains reports whether l is in the chord.
func (c Chord) Contains(l annotation.Label) bool {
	i := sort.Search(len(c), func(i int) bool { return c[i] >= l })
	return i < len(c) && c[i] == l
}

// Equal reports whether both chords hold the same labels.
func (c Chord) Equal(o Chord) bool {
	if len(c) != len(o) {
		return false
	}
	for i := range c {
		if c[i] != o[i] {
			return false
		}
	}
	return true
}

// SymmetricDifference returns |c \ o| + |o \ c|.
func (c Chord) SymmetricDifference(o Chord) int {
	i, j, diff := 0, 0, 0
	for i < len(c) && j < len(o) {
		switch {
		case c[i] == o[j]:
			i++
			j++
		case c[i] < o[j]:
			diff++
			i++
		default:
			diff++
			j++
		}
	}
	return diff + (len(c) - i) + (len(o) - j)
}

func (c Chord) String() string {
	parts := make([]string, len(c))
	for i, l := range c {
		parts[i] = fmt.Sprint(int64(l))
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// Sequence is an ordered list of chords.
type Sequence []Chord

// TotalLabels returns the sum of chord sizes.
func (s Sequence) TotalLabels() int {
	return lo.SumBy(s, func(c Chord) int { return c.Size() })
}

// Equal reports whether both sequences hold the same chords in order.
func (s Sequence) Equal(o Sequence) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

func (s Sequence) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Build orders annotations by X1 and groups them into chords. An
// annotation joins the current chord when its X1 is at or before the X2 of
// the annotation immediately preceding it; otherwise it starts a new chord.
// Overlap is therefore chained: a run of pairwise-overlapping boxes forms
// one chord even if its first and last boxes are disjoint.
//
// The input slice is not modified.
func Build(anns []annotation.Annotation) Sequence {
	if len(anns) == 0 {
		return Sequence{}
	}

	sorted := make([]annotation.Annotation, len(anns))
	copy(sorted, anns)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Box.X1 < sorted[j].Box.X1
	})

	var seq Sequence
	prevX2 := math.Inf(-1)
	for _, a := range sorted {
		if len(seq) > 0 && a.Box.X1 <= prevX2 {
			last := len(seq) - 1
			seq[last] = seq[last].add(a.Label)
		} else {
			seq = append(seq, NewChord(a.Label))
		}
		prevX2 = a.Box.X2
	}
	return seq
}
