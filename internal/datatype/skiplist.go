package datatype

import "golang.org/x/exp/rand"

const (
	maxLevel = 32
	// a node reaches the next level with probability 1/4
	levelThreshold = 0xFFFF / 4
)

type zLevel struct {
	forward *zNode
	span    int // number of nodes skipped by forward, used for rank
}

type zNode struct {
	member   string
	score    float64
	backward *zNode
	levels   []zLevel
}

// before reports whether n sorts strictly before (score, member)
func (n *zNode) before(score float64, member string) bool {
	return n.score < score || (n.score == score && n.member < member)
}

// skiplist orders members by score then member bytes and tracks spans so rank
// lookups take logarithmic time
type skiplist struct {
	header *zNode
	tail   *zNode
	length int
	level  int
}

func newSkiplist() *skiplist {
	return &skiplist{
		header: &zNode{levels: make([]zLevel, maxLevel)},
		level:  1,
	}
}

func randomLevel() int {
	lvl := 1
	for lvl < maxLevel && rand.Uint32()&0xFFFF < levelThreshold {
		lvl++
	}
	return lvl
}

// insert adds a member that must not already be present
func (sl *skiplist) insert(score float64, member string) *zNode {
	var (
		update [maxLevel]*zNode
		rank   [maxLevel]int
	)

	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		if i < sl.level-1 {
			rank[i] = rank[i+1]
		}
		for x.levels[i].forward != nil && x.levels[i].forward.before(score, member) {
			rank[i] += x.levels[i].span
			x = x.levels[i].forward
		}
		update[i] = x
	}

	lvl := randomLevel()
	if lvl > sl.level {
		for i := sl.level; i < lvl; i++ {
			rank[i] = 0
			update[i] = sl.header
			update[i].levels[i].span = sl.length
		}
		sl.level = lvl
	}

	x = &zNode{member: member, score: score, levels: make([]zLevel, lvl)}
	for i := 0; i < lvl; i++ {
		x.levels[i].forward = update[i].levels[i].forward
		update[i].levels[i].forward = x
		x.levels[i].span = update[i].levels[i].span - (rank[0] - rank[i])
		update[i].levels[i].span = rank[0] - rank[i] + 1
	}
	for i := lvl; i < sl.level; i++ {
		update[i].levels[i].span++
	}

	if update[0] != sl.header {
		x.backward = update[0]
	}
	if x.levels[0].forward != nil {
		x.levels[0].forward.backward = x
	} else {
		sl.tail = x
	}
	sl.length++
	return x
}

// delete removes (score, member) and reports whether it was present
func (sl *skiplist) delete(score float64, member string) bool {
	var update [maxLevel]*zNode

	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && x.levels[i].forward.before(score, member) {
			x = x.levels[i].forward
		}
		update[i] = x
	}

	x = x.levels[0].forward
	if x == nil || x.score != score || x.member != member {
		return false
	}

	for i := 0; i < sl.level; i++ {
		if update[i].levels[i].forward == x {
			update[i].levels[i].span += x.levels[i].span - 1
			update[i].levels[i].forward = x.levels[i].forward
		} else {
			update[i].levels[i].span--
		}
	}
	if x.levels[0].forward != nil {
		x.levels[0].forward.backward = x.backward
	} else {
		sl.tail = x.backward
	}
	for sl.level > 1 && sl.header.levels[sl.level-1].forward == nil {
		sl.level--
	}
	sl.length--
	return true
}

// rank returns the 1-based position of (score, member), 0 when absent
func (sl *skiplist) rank(score float64, member string) int {
	x := sl.header
	rank := 0
	for i := sl.level - 1; i >= 0; i-- {
		for fwd := x.levels[i].forward; fwd != nil && (fwd.before(score, member) || (fwd.score == score && fwd.member == member)); fwd = x.levels[i].forward {
			rank += x.levels[i].span
			x = fwd
		}
		if x != sl.header && x.member == member {
			return rank
		}
	}
	return 0
}

// byRank returns the node at 1-based position rank
func (sl *skiplist) byRank(rank int) *zNode {
	x := sl.header
	traversed := 0
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && traversed+x.levels[i].span <= rank {
			traversed += x.levels[i].span
			x = x.levels[i].forward
		}
		if traversed == rank {
			return x
		}
	}
	return nil
}

// firstMatching returns the first node for which aboveMin holds, provided it
// also satisfies belowMax
func (sl *skiplist) firstMatching(aboveMin, belowMax func(*zNode) bool) *zNode {
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && !aboveMin(x.levels[i].forward) {
			x = x.levels[i].forward
		}
	}
	x = x.levels[0].forward
	if x == nil || !belowMax(x) {
		return nil
	}
	return x
}

// lastMatching returns the last node for which belowMax holds, provided it also
// satisfies aboveMin
func (sl *skiplist) lastMatching(aboveMin, belowMax func(*zNode) bool) *zNode {
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.levels[i].forward != nil && belowMax(x.levels[i].forward) {
			x = x.levels[i].forward
		}
	}
	if x == sl.header || !aboveMin(x) {
		return nil
	}
	return x
}
