package datatype

import (
	"github.com/eternalApril/moonmock/internal/storage"
	"golang.org/x/exp/rand"
)

// Hash maps fields to values and remembers field insertion order
type Hash struct {
	values map[string]string
	order  []string
}

func NewHash() *Hash {
	return &Hash{values: make(map[string]string)}
}

func (h *Hash) Kind() storage.Kind { return storage.KindHash }

func (h *Hash) Empty() bool { return len(h.values) == 0 }

func (h *Hash) Clone() storage.Value {
	c := &Hash{values: make(map[string]string, len(h.values)), order: append([]string(nil), h.order...)}
	for k, v := range h.values {
		c.values[k] = v
	}
	return c
}

func (h *Hash) Len() int {
	return len(h.values)
}

func (h *Hash) Get(field string) (string, bool) {
	v, ok := h.values[field]
	return v, ok
}

// Set stores value under field and reports whether the field is new
func (h *Hash) Set(field, value string) bool {
	_, exists := h.values[field]
	h.values[field] = value
	if !exists {
		h.order = append(h.order, field)
	}
	return !exists
}

// Delete removes field and reports whether it existed
func (h *Hash) Delete(field string) bool {
	if _, ok := h.values[field]; !ok {
		return false
	}
	delete(h.values, field)
	for i, f := range h.order {
		if f == field {
			h.order = append(h.order[:i], h.order[i+1:]...)
			break
		}
	}
	return true
}

// Fields returns field names in insertion order
func (h *Hash) Fields() []string {
	return append([]string(nil), h.order...)
}

// Pairs returns field/value pairs interleaved, in insertion order
func (h *Hash) Pairs() []string {
	out := make([]string, 0, 2*len(h.order))
	for _, f := range h.order {
		out = append(out, f, h.values[f])
	}
	return out
}

// IncrBy adds delta to the integer stored at field, creating it at 0
func (h *Hash) IncrBy(field string, delta int64) (int64, error) {
	var n int64
	if v, ok := h.values[field]; ok {
		var err error
		if n, err = ParseInt(v); err != nil {
			return 0, ErrHashNotInteger
		}
	}
	n, err := addInt(n, delta)
	if err != nil {
		return 0, err
	}
	h.Set(field, formatInt(n))
	return n, nil
}

// IncrByFloat adds delta to the number stored at field, creating it at 0
func (h *Hash) IncrByFloat(field string, delta float64) (string, error) {
	var f float64
	if v, ok := h.values[field]; ok {
		var err error
		if f, err = ParseFloat(v); err != nil {
			return "", ErrHashNotFloat
		}
	}
	f, err := addFloat(f, delta)
	if err != nil {
		return "", err
	}
	out := FormatFloat(f)
	h.Set(field, out)
	return out, nil
}

// RandomFields picks count fields. A positive count returns distinct fields, at
// most all of them; a negative count samples -count fields with replacement
func (h *Hash) RandomFields(rng *rand.Rand, count int64) []string {
	return sample(rng, h.order, count)
}

// sample picks elements of items the way the random-member commands do
func sample(rng *rand.Rand, items []string, count int64) []string {
	if len(items) == 0 || count == 0 {
		return []string{}
	}
	if count < 0 {
		out := make([]string, -count)
		for i := range out {
			out[i] = items[rng.Intn(len(items))]
		}
		return out
	}
	if count >= int64(len(items)) {
		return append([]string(nil), items...)
	}
	perm := rng.Perm(len(items))[:count]
	out := make([]string, count)
	for i, p := range perm {
		out[i] = items[p]
	}
	return out
}
