package datatype

import (
	"math"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Aggregate selects how ZUNION and ZINTER combine scores of the same member
type Aggregate int

const (
	AggSum Aggregate = iota
	AggMin
	AggMax
)

var ErrAggregate = errors.New("syntax error")

// ParseAggregate parses SUM, MIN or MAX, case-insensitively
func ParseAggregate(s string) (Aggregate, error) {
	switch strings.ToUpper(s) {
	case "SUM":
		return AggSum, nil
	case "MIN":
		return AggMin, nil
	case "MAX":
		return AggMax, nil
	}
	return 0, ErrAggregate
}

func (a Aggregate) combine(x, y float64) float64 {
	switch a {
	case AggMin:
		return math.Min(x, y)
	case AggMax:
		return math.Max(x, y)
	}
	r := x + y
	// inf + -inf
	if math.IsNaN(r) {
		return 0
	}
	return r
}

func weighted(score, weight float64) float64 {
	r := score * weight
	// inf * 0
	if math.IsNaN(r) {
		return 0
	}
	return r
}

// ZUnion merges inputs, nil entries standing for missing keys. weights may be nil
func ZUnion(inputs []map[string]float64, weights []float64, agg Aggregate) map[string]float64 {
	out := make(map[string]float64)
	for i, in := range inputs {
		w := weightAt(weights, i)
		for m, s := range in {
			s = weighted(s, w)
			if cur, ok := out[m]; ok {
				out[m] = agg.combine(cur, s)
			} else {
				out[m] = s
			}
		}
	}
	return out
}

// ZInter keeps members present in every input
func ZInter(inputs []map[string]float64, weights []float64, agg Aggregate) map[string]float64 {
	out := make(map[string]float64)
	if len(inputs) == 0 {
		return out
	}
	for _, in := range inputs {
		if len(in) == 0 {
			return out
		}
	}
next:
	for m, s := range inputs[0] {
		acc := weighted(s, weightAt(weights, 0))
		for i, in := range inputs[1:] {
			other, ok := in[m]
			if !ok {
				continue next
			}
			acc = agg.combine(acc, weighted(other, weightAt(weights, i+1)))
		}
		out[m] = acc
	}
	return out
}

// ZDiff keeps members of the first input absent from the others
func ZDiff(inputs []map[string]float64) map[string]float64 {
	out := make(map[string]float64)
	if len(inputs) == 0 {
		return out
	}
next:
	for m, s := range inputs[0] {
		for _, in := range inputs[1:] {
			if _, ok := in[m]; ok {
				continue next
			}
		}
		out[m] = s
	}
	return out
}

func weightAt(weights []float64, i int) float64 {
	if i < len(weights) {
		return weights[i]
	}
	return 1
}

// ScoreMap returns member to score for every member
func (z *SortedSet) ScoreMap() map[string]float64 {
	out := make(map[string]float64, len(z.scores))
	for m, s := range z.scores {
		out[m] = s
	}
	return out
}

// ScoreMap returns every member of s with score 1, so sets can take part in
// sorted-set algebra
func (s *Set) ScoreMap() map[string]float64 {
	out := make(map[string]float64, len(s.members))
	for m := range s.members {
		out[m] = 1
	}
	return out
}

// SortedSetFromMap builds a sorted set from member to score pairs
func SortedSetFromMap(scores map[string]float64) *SortedSet {
	z := NewSortedSet()
	for m, s := range scores {
		z.Set(m, s)
	}
	return z
}

// SortedEntries orders scores the way a sorted set would
func SortedEntries(scores map[string]float64) []ZEntry {
	out := make([]ZEntry, 0, len(scores))
	for m, s := range scores {
		out = append(out, ZEntry{Member: m, Score: s})
	}
	slices.SortFunc(out, func(a, b ZEntry) int {
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		}
		return strings.Compare(a.Member, b.Member)
	})
	return out
}
