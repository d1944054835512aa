package datatype

import "github.com/eternalApril/moonmock/internal/storage"

// List is a double-ended queue of byte strings backed by a ring buffer
type List struct {
	buf  []string
	head int
	n    int
}

func NewList() *List {
	return &List{}
}

func (l *List) Kind() storage.Kind { return storage.KindList }

func (l *List) Empty() bool { return l.n == 0 }

func (l *List) Clone() storage.Value {
	return &List{buf: l.Range(0, -1), n: l.n}
}

func (l *List) Len() int {
	return l.n
}

func (l *List) slot(i int) int {
	return (l.head + i) % len(l.buf)
}

func (l *List) growIfFull() {
	if l.n < len(l.buf) {
		return
	}
	size := len(l.buf) * 2
	if size == 0 {
		size = 8
	}
	nb := make([]string, size)
	for i := 0; i < l.n; i++ {
		nb[i] = l.buf[l.slot(i)]
	}
	l.buf = nb
	l.head = 0
}

// PushFront inserts values at the head one after another, so the last value ends
// up first. It returns the new length
func (l *List) PushFront(values ...string) int {
	for _, v := range values {
		l.growIfFull()
		l.head = (l.head - 1 + len(l.buf)) % len(l.buf)
		l.buf[l.head] = v
		l.n++
	}
	return l.n
}

// PushBack appends values at the tail and returns the new length
func (l *List) PushBack(values ...string) int {
	for _, v := range values {
		l.growIfFull()
		l.buf[l.slot(l.n)] = v
		l.n++
	}
	return l.n
}

// PopFront removes and returns the head element
func (l *List) PopFront() (string, bool) {
	if l.n == 0 {
		return "", false
	}
	v := l.buf[l.head]
	l.buf[l.head] = ""
	l.head = (l.head + 1) % len(l.buf)
	l.n--
	return v, true
}

// PopBack removes and returns the tail element
func (l *List) PopBack() (string, bool) {
	if l.n == 0 {
		return "", false
	}
	i := l.slot(l.n - 1)
	v := l.buf[i]
	l.buf[i] = ""
	l.n--
	return v, true
}

// Pop removes up to count elements from the head, or from the tail when back is set
func (l *List) Pop(count int, back bool) []string {
	out := make([]string, 0, min(count, l.n))
	for len(out) < count {
		var (
			v  string
			ok bool
		)
		if back {
			v, ok = l.PopBack()
		} else {
			v, ok = l.PopFront()
		}
		if !ok {
			break
		}
		out = append(out, v)
	}
	return out
}

// normIndex converts a possibly negative index into an offset from the head
func (l *List) normIndex(i int64) (int, bool) {
	if i < 0 {
		i += int64(l.n)
	}
	if i < 0 || i >= int64(l.n) {
		return 0, false
	}
	return int(i), true
}

// Index returns the element at i. Negative indexes count from the tail
func (l *List) Index(i int64) (string, bool) {
	idx, ok := l.normIndex(i)
	if !ok {
		return "", false
	}
	return l.buf[l.slot(idx)], true
}

// Set replaces the element at i
func (l *List) Set(i int64, v string) error {
	idx, ok := l.normIndex(i)
	if !ok {
		return ErrIndexRange
	}
	l.buf[l.slot(idx)] = v
	return nil
}

// clampRange normalizes inclusive start/stop indexes over the list
func (l *List) clampRange(start, stop int64) (int, int, bool) {
	n := int64(l.n)
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
		return 0, 0, false
	}
	return int(start), int(stop), true
}

// Range returns the elements between start and stop inclusive
func (l *List) Range(start, stop int64) []string {
	from, to, ok := l.clampRange(start, stop)
	if !ok {
		return []string{}
	}
	out := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, l.buf[l.slot(i)])
	}
	return out
}

// Trim keeps only the elements between start and stop inclusive
func (l *List) Trim(start, stop int64) {
	from, to, ok := l.clampRange(start, stop)
	if !ok {
		*l = List{}
		return
	}
	kept := l.Range(int64(from), int64(to))
	*l = List{buf: kept, n: len(kept)}
}

// Insert puts v before or after the first occurrence of pivot. It returns the new
// length, or -1 when the pivot is not found
func (l *List) Insert(pivot, v string, after bool) int {
	items := l.Range(0, -1)
	for i, item := range items {
		if item != pivot {
			continue
		}
		if after {
			i++
		}
		items = append(items, "")
		copy(items[i+1:], items[i:])
		items[i] = v
		*l = List{buf: items, n: len(items)}
		return l.n
	}
	return -1
}

// Remove deletes elements equal to v: the first count from the head when count is
// positive, the last -count from the tail when negative, all of them when zero.
// It returns how many were removed
func (l *List) Remove(count int64, v string) int {
	items := l.Range(0, -1)
	limit := count
	if limit < 0 {
		limit = -limit
	}

	removed := 0
	keep := make([]bool, len(items))
	for i := range keep {
		keep[i] = true
	}
	visit := func(i int) bool {
		if items[i] == v {
			keep[i] = false
			removed++
		}
		return limit == 0 || int64(removed) < limit
	}
	if count >= 0 {
		for i := 0; i < len(items) && visit(i); i++ {
		}
	} else {
		for i := len(items) - 1; i >= 0 && visit(i); i-- {
		}
	}
	if removed == 0 {
		return 0
	}

	out := items[:0]
	for i, item := range items {
		if keep[i] {
			out = append(out, item)
		}
	}
	*l = List{buf: out, n: len(out)}
	return removed
}

// Pos returns the indexes of elements equal to v. rank selects the n-th match,
// negative rank searches from the tail. count 0 means every match, maxLen 0 means
// no comparison limit
func (l *List) Pos(v string, rank int64, count int, maxLen int) []int {
	var out []int
	skip := rank - 1
	step, i := 1, 0
	if rank < 0 {
		skip = -rank - 1
		step, i = -1, l.n-1
	}
	for scanned := 0; i >= 0 && i < l.n; i += step {
		if maxLen > 0 && scanned >= maxLen {
			break
		}
		scanned++
		if l.buf[l.slot(i)] != v {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		out = append(out, i)
		if count > 0 && len(out) >= count {
			break
		}
	}
	return out
}
