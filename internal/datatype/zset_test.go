package datatype

import (
	"fmt"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func members(entries []ZEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Member
	}
	return out
}

func TestSortedSetOrdering(t *testing.T) {
	z := NewSortedSet()
	z.Set("b", 1)
	z.Set("a", 1)
	z.Set("c", 0)
	z.Set("d", 2)

	assert.Equal(t, []string{"c", "a", "b", "d"}, members(z.RangeByRank(0, -1, false)))
	assert.Equal(t, []string{"d", "b", "a", "c"}, members(z.RangeByRank(0, -1, true)))

	// reinsert updates without duplicating
	z.Set("c", 5)
	assert.Equal(t, 4, z.Len())
	assert.Equal(t, []string{"a", "b", "d", "c"}, members(z.RangeByRank(0, -1, false)))
}

func TestSortedSetRandomizedOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	z := NewSortedSet()
	want := make(map[string]float64)

	for i := 0; i < 2000; i++ {
		m := fmt.Sprintf("m%d", rng.Intn(500))
		s := float64(rng.Intn(50))
		if rng.Intn(5) == 0 {
			z.Remove(m)
			delete(want, m)
			continue
		}
		z.Set(m, s)
		want[m] = s
	}

	expected := SortedEntries(want)
	assert.Equal(t, expected, z.Entries())
	require.Equal(t, len(want), z.Len())

	for i, e := range expected {
		r, ok := z.Rank(e.Member, false)
		require.True(t, ok)
		assert.Equal(t, i, r)
		rr, _ := z.Rank(e.Member, true)
		assert.Equal(t, len(expected)-1-i, rr)
	}
	assert.True(t, sort.SliceIsSorted(expected, func(i, j int) bool {
		if expected[i].Score != expected[j].Score {
			return expected[i].Score < expected[j].Score
		}
		return expected[i].Member < expected[j].Member
	}))
}

func TestSortedSetAddFlags(t *testing.T) {
	tests := []struct {
		name  string
		score float64
		flags AddFlags
		want  AddResult
	}{
		{"nx existing", 5, AddFlags{NX: true}, AddResult{Skipped: true, Score: 2}},
		{"xx existing", 5, AddFlags{XX: true}, AddResult{Updated: true, Score: 5}},
		{"gt lower", 1, AddFlags{GT: true}, AddResult{Skipped: true, Score: 2}},
		{"gt higher", 3, AddFlags{GT: true}, AddResult{Updated: true, Score: 3}},
		{"lt higher", 3, AddFlags{LT: true}, AddResult{Skipped: true, Score: 2}},
		{"lt lower", 1, AddFlags{LT: true}, AddResult{Updated: true, Score: 1}},
		{"same score", 2, AddFlags{}, AddResult{Score: 2}},
		{"incr", 3, AddFlags{Incr: true}, AddResult{Updated: true, Score: 5}},
		{"incr gt lower", -1, AddFlags{Incr: true, GT: true}, AddResult{Skipped: true, Score: 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := NewSortedSet()
			z.Set("m", 2)
			got, err := z.Add("m", tt.score, tt.flags)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	z := NewSortedSet()
	res, err := z.Add("new", 1, AddFlags{XX: true})
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 0, z.Len())

	res, err = z.Add("new", 1, AddFlags{GT: true})
	require.NoError(t, err)
	assert.True(t, res.Added)

	z.Set("inf", math.Inf(1))
	_, err = z.Add("inf", math.Inf(-1), AddFlags{Incr: true})
	assert.ErrorIs(t, err, ErrScoreNaN)
}

func TestSortedSetScoreRange(t *testing.T) {
	z := NewSortedSet()
	for i, m := range []string{"a", "b", "c", "d", "e"} {
		z.Set(m, float64(i+1))
	}

	tests := []struct {
		min, max string
		want     []string
	}{
		{"-inf", "+inf", []string{"a", "b", "c", "d", "e"}},
		{"(1", "3", []string{"b", "c"}},
		{"(1", "(3", []string{"b"}},
		{"2", "2", []string{"b"}},
		{"(2", "(2", []string{}},
		{"4", "2", []string{}},
		{"10", "+inf", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.min+".."+tt.max, func(t *testing.T) {
			r, err := ParseScoreRange(tt.min, tt.max)
			require.NoError(t, err)
			assert.Equal(t, tt.want, members(z.RangeByScore(r, false, 0, -1)))
			assert.Equal(t, len(tt.want), z.CountScore(r))
		})
	}

	r, _ := ParseScoreRange("-inf", "+inf")
	assert.Equal(t, []string{"e", "d"}, members(z.RangeByScore(r, true, 0, 2)))
	assert.Equal(t, []string{"c", "d"}, members(z.RangeByScore(r, false, 2, 2)))

	_, err := ParseScoreRange("x", "1")
	assert.ErrorIs(t, err, ErrMinMaxFloat)
}

func TestSortedSetLexRange(t *testing.T) {
	z := NewSortedSet()
	for _, m := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		z.Set(m, 0)
	}

	tests := []struct {
		min, max string
		want     []string
	}{
		{"-", "[c", []string{"a", "b", "c"}},
		{"-", "(c", []string{"a", "b"}},
		{"[aaa", "(g", []string{"b", "c", "d", "e", "f"}},
		{"+", "-", []string{}},
	}
	for _, tt := range tests {
		r, err := ParseLexRange(tt.min, tt.max)
		require.NoError(t, err)
		assert.Equal(t, tt.want, members(z.RangeByLex(r, false, 0, -1)))
		assert.Equal(t, len(tt.want), z.CountLex(r))
	}

	r, _ := ParseLexRange("[g", "[e")
	assert.Empty(t, z.RangeByLex(r, false, 0, -1))
	r, _ = ParseLexRange("-", "+")
	assert.Equal(t, []string{"g", "f"}, members(z.RangeByLex(r, true, 0, 2)))

	_, err := ParseLexRange("a", "[b")
	assert.ErrorIs(t, err, ErrMinMaxLex)
}

func TestSortedSetRemoveRanges(t *testing.T) {
	build := func() *SortedSet {
		z := NewSortedSet()
		for i, m := range []string{"one", "two", "three"} {
			z.Set(m, float64(i+1))
		}
		return z
	}

	z := build()
	assert.Equal(t, 2, z.RemoveRangeByRank(0, 1))
	assert.Equal(t, []string{"three"}, members(z.Entries()))

	z = build()
	r, _ := ParseScoreRange("-inf", "(2")
	assert.Equal(t, 1, z.RemoveRangeByScore(r))

	z = build()
	popped := z.Pop(2, true)
	assert.Equal(t, []string{"three", "two"}, members(popped))
	assert.Equal(t, 1, z.Len())
	assert.Empty(t, z.Pop(0, false))
}

func TestZAlgebra(t *testing.T) {
	a := map[string]float64{"one": 1, "two": 2}
	b := map[string]float64{"one": 1, "two": 2, "three": 3}

	union := ZUnion([]map[string]float64{a, b}, []float64{2, 3}, AggSum)
	assert.Equal(t, map[string]float64{"one": 5, "two": 10, "three": 9}, union)

	inter := ZInter([]map[string]float64{a, b}, nil, AggMax)
	assert.Equal(t, map[string]float64{"one": 1, "two": 2}, inter)

	assert.Equal(t, map[string]float64{"three": 3}, ZDiff([]map[string]float64{b, a}))
	assert.Empty(t, ZInter([]map[string]float64{a, nil}, nil, AggSum))

	inf := ZUnion([]map[string]float64{{"x": math.Inf(1)}}, []float64{0}, AggSum)
	assert.Equal(t, 0.0, inf["x"])

	_, err := ParseAggregate("avg")
	assert.Error(t, err)
}
