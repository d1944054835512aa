package datatype

import (
	"math"
	"strings"

	"github.com/eternalApril/moonmock/internal/storage"
	"golang.org/x/exp/rand"
)

// ZEntry is one member of a sorted set with its score
type ZEntry struct {
	Member string
	Score  float64
}

// SortedSet keeps unique members ordered by score, ties broken by member bytes
type SortedSet struct {
	scores map[string]float64
	zsl    *skiplist
}

func NewSortedSet() *SortedSet {
	return &SortedSet{scores: make(map[string]float64), zsl: newSkiplist()}
}

func (z *SortedSet) Kind() storage.Kind { return storage.KindZSet }

func (z *SortedSet) Empty() bool { return len(z.scores) == 0 }

func (z *SortedSet) Clone() storage.Value {
	c := NewSortedSet()
	for m, s := range z.scores {
		c.Set(m, s)
	}
	return c
}

func (z *SortedSet) Len() int {
	return len(z.scores)
}

// AddFlags are the ZADD conditions
type AddFlags struct {
	NX, XX, GT, LT, Incr bool
}

// AddResult describes what Add did to one member
type AddResult struct {
	Added   bool
	Updated bool // existing member whose score changed
	Score   float64
	Skipped bool // a condition prevented the write
}

// Add inserts or updates member under the conditions in f. The conditions are
// evaluated against the existing score before anything is written
func (z *SortedSet) Add(member string, score float64, f AddFlags) (AddResult, error) {
	cur, exists := z.scores[member]

	if f.Incr {
		if exists {
			score += cur
		}
		if math.IsNaN(score) {
			return AddResult{}, ErrScoreNaN
		}
	}

	switch {
	case exists && f.NX, !exists && f.XX:
		return AddResult{Skipped: true, Score: cur}, nil
	case exists && f.GT && score <= cur, exists && f.LT && score >= cur:
		return AddResult{Skipped: true, Score: cur}, nil
	}

	if !exists {
		z.Set(member, score)
		return AddResult{Added: true, Score: score}, nil
	}
	if score != cur {
		z.Set(member, score)
		return AddResult{Updated: true, Score: score}, nil
	}
	return AddResult{Score: score}, nil
}

// Set writes the score of member unconditionally
func (z *SortedSet) Set(member string, score float64) {
	if cur, ok := z.scores[member]; ok {
		if cur == score {
			return
		}
		z.zsl.delete(cur, member)
	}
	z.scores[member] = score
	z.zsl.insert(score, member)
}

// IncrBy adds delta to the score of member, creating it at 0
func (z *SortedSet) IncrBy(member string, delta float64) (float64, error) {
	res, err := z.Add(member, delta, AddFlags{Incr: true})
	return res.Score, err
}

// Remove deletes member and reports whether it existed
func (z *SortedSet) Remove(member string) bool {
	score, ok := z.scores[member]
	if !ok {
		return false
	}
	delete(z.scores, member)
	z.zsl.delete(score, member)
	return true
}

func (z *SortedSet) Score(member string) (float64, bool) {
	s, ok := z.scores[member]
	return s, ok
}

// Rank returns the 0-based position of member, counted from the highest score
// when reverse is set
func (z *SortedSet) Rank(member string, reverse bool) (int, bool) {
	score, ok := z.scores[member]
	if !ok {
		return 0, false
	}
	r := z.zsl.rank(score, member) - 1
	if reverse {
		r = z.zsl.length - 1 - r
	}
	return r, true
}

// Entries returns every member in ascending order
func (z *SortedSet) Entries() []ZEntry {
	out := make([]ZEntry, 0, z.zsl.length)
	for x := z.zsl.header.levels[0].forward; x != nil; x = x.levels[0].forward {
		out = append(out, ZEntry{Member: x.member, Score: x.score})
	}
	return out
}

// RangeByRank returns the members between ranks start and stop inclusive.
// Negative ranks count from the end
func (z *SortedSet) RangeByRank(start, stop int64, reverse bool) []ZEntry {
	n := int64(z.zsl.length)
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []ZEntry{}
	}

	out := make([]ZEntry, 0, stop-start+1)
	if reverse {
		x := z.zsl.byRank(int(n - start))
		for i := start; i <= stop && x != nil; i++ {
			out = append(out, ZEntry{Member: x.member, Score: x.score})
			x = x.backward
		}
		return out
	}
	x := z.zsl.byRank(int(start + 1))
	for i := start; i <= stop && x != nil; i++ {
		out = append(out, ZEntry{Member: x.member, Score: x.score})
		x = x.levels[0].forward
	}
	return out
}

// walk collects members from first (or last when reverse) while inRange holds,
// skipping offset matches and stopping after count when count is not negative
func (z *SortedSet) walk(first *zNode, reverse bool, inRange func(*zNode) bool, offset, count int) []ZEntry {
	out := []ZEntry{}
	for x := first; x != nil && inRange(x); {
		if offset > 0 {
			offset--
		} else {
			if count >= 0 && len(out) >= count {
				break
			}
			out = append(out, ZEntry{Member: x.member, Score: x.score})
		}
		if reverse {
			x = x.backward
		} else {
			x = x.levels[0].forward
		}
	}
	return out
}

// RangeByScore returns members whose score is inside r
func (z *SortedSet) RangeByScore(r ScoreRange, reverse bool, offset, count int) []ZEntry {
	if reverse {
		return z.walk(z.zsl.lastMatching(r.aboveMin, r.belowMax), true, r.aboveMin, offset, count)
	}
	return z.walk(z.zsl.firstMatching(r.aboveMin, r.belowMax), false, r.belowMax, offset, count)
}

// RangeByLex returns members inside r. Meaningful when all scores are equal
func (z *SortedSet) RangeByLex(r LexRange, reverse bool, offset, count int) []ZEntry {
	if reverse {
		return z.walk(z.zsl.lastMatching(r.aboveMin, r.belowMax), true, r.aboveMin, offset, count)
	}
	return z.walk(z.zsl.firstMatching(r.aboveMin, r.belowMax), false, r.belowMax, offset, count)
}

func (z *SortedSet) count(aboveMin, belowMax func(*zNode) bool) int {
	first := z.zsl.firstMatching(aboveMin, belowMax)
	if first == nil {
		return 0
	}
	last := z.zsl.lastMatching(aboveMin, belowMax)
	return z.zsl.rank(last.score, last.member) - z.zsl.rank(first.score, first.member) + 1
}

// CountScore returns how many members have a score inside r
func (z *SortedSet) CountScore(r ScoreRange) int {
	return z.count(r.aboveMin, r.belowMax)
}

// CountLex returns how many members are inside r
func (z *SortedSet) CountLex(r LexRange) int {
	return z.count(r.aboveMin, r.belowMax)
}

func (z *SortedSet) removeEntries(entries []ZEntry) int {
	for _, e := range entries {
		z.Remove(e.Member)
	}
	return len(entries)
}

func (z *SortedSet) RemoveRangeByRank(start, stop int64) int {
	return z.removeEntries(z.RangeByRank(start, stop, false))
}

func (z *SortedSet) RemoveRangeByScore(r ScoreRange) int {
	return z.removeEntries(z.RangeByScore(r, false, 0, -1))
}

func (z *SortedSet) RemoveRangeByLex(r LexRange) int {
	return z.removeEntries(z.RangeByLex(r, false, 0, -1))
}

// Pop removes up to count members with the lowest scores, or the highest when highest is set
func (z *SortedSet) Pop(count int, highest bool) []ZEntry {
	if count <= 0 {
		return []ZEntry{}
	}
	entries := z.RangeByRank(0, int64(count-1), highest)
	z.removeEntries(entries)
	return entries
}

// RandomMembers picks members the way ZRANDMEMBER does
func (z *SortedSet) RandomMembers(rng *rand.Rand, count int64) []ZEntry {
	members := make([]string, 0, len(z.scores))
	for _, e := range z.Entries() {
		members = append(members, e.Member)
	}
	picked := sample(rng, members, count)
	out := make([]ZEntry, len(picked))
	for i, m := range picked {
		out[i] = ZEntry{Member: m, Score: z.scores[m]}
	}
	return out
}

// ScoreBound is one end of a score interval
type ScoreBound struct {
	Value     float64
	Exclusive bool
}

// ScoreRange is a score interval as written in ZRANGEBYSCORE
type ScoreRange struct {
	Min, Max ScoreBound
}

// ParseScoreBound parses "1.5", "(1.5", "-inf" or "+inf"
func ParseScoreBound(s string) (ScoreBound, error) {
	var b ScoreBound
	if strings.HasPrefix(s, "(") {
		b.Exclusive = true
		s = s[1:]
	}
	f, err := ParseFloat(s)
	if err != nil {
		return ScoreBound{}, ErrMinMaxFloat
	}
	b.Value = f
	return b, nil
}

// ParseScoreRange parses both ends of a score interval
func ParseScoreRange(minArg, maxArg string) (ScoreRange, error) {
	lo, err := ParseScoreBound(minArg)
	if err != nil {
		return ScoreRange{}, err
	}
	hi, err := ParseScoreBound(maxArg)
	if err != nil {
		return ScoreRange{}, err
	}
	return ScoreRange{Min: lo, Max: hi}, nil
}

func (r ScoreRange) aboveMin(n *zNode) bool {
	if r.Min.Exclusive {
		return n.score > r.Min.Value
	}
	return n.score >= r.Min.Value
}

func (r ScoreRange) belowMax(n *zNode) bool {
	if r.Max.Exclusive {
		return n.score < r.Max.Value
	}
	return n.score <= r.Max.Value
}

// LexBound is one end of a lexicographic interval
type LexBound struct {
	Value     string
	Exclusive bool
	Inf       int // -1 for "-", 1 for "+"
}

// LexRange is a member interval as written in ZRANGEBYLEX
type LexRange struct {
	Min, Max LexBound
}

// ParseLexBound parses "[a", "(a", "-" or "+"
func ParseLexBound(s string) (LexBound, error) {
	switch {
	case s == "-":
		return LexBound{Inf: -1}, nil
	case s == "+":
		return LexBound{Inf: 1}, nil
	case strings.HasPrefix(s, "("):
		return LexBound{Value: s[1:], Exclusive: true}, nil
	case strings.HasPrefix(s, "["):
		return LexBound{Value: s[1:]}, nil
	}
	return LexBound{}, ErrMinMaxLex
}

// ParseLexRange parses both ends of a lexicographic interval
func ParseLexRange(minArg, maxArg string) (LexRange, error) {
	lo, err := ParseLexBound(minArg)
	if err != nil {
		return LexRange{}, err
	}
	hi, err := ParseLexBound(maxArg)
	if err != nil {
		return LexRange{}, err
	}
	return LexRange{Min: lo, Max: hi}, nil
}

func (r LexRange) aboveMin(n *zNode) bool {
	switch r.Min.Inf {
	case -1:
		return true
	case 1:
		return false
	}
	if r.Min.Exclusive {
		return n.member > r.Min.Value
	}
	return n.member >= r.Min.Value
}

func (r LexRange) belowMax(n *zNode) bool {
	switch r.Max.Inf {
	case 1:
		return true
	case -1:
		return false
	}
	if r.Max.Exclusive {
		return n.member < r.Max.Value
	}
	return n.member <= r.Max.Value
}
