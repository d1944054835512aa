package datatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func TestHashFieldOrder(t *testing.T) {
	h := NewHash()
	assert.True(t, h.Set("b", "1"))
	assert.True(t, h.Set("a", "2"))
	assert.False(t, h.Set("b", "3"))

	assert.Equal(t, []string{"b", "a"}, h.Fields())
	assert.Equal(t, []string{"b", "3", "a", "2"}, h.Pairs())

	assert.True(t, h.Delete("b"))
	assert.False(t, h.Delete("b"))
	assert.Equal(t, []string{"a"}, h.Fields())

	h.Delete("a")
	assert.True(t, h.Empty())
}

func TestHashIncr(t *testing.T) {
	h := NewHash()
	n, err := h.IncrBy("n", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	h.Set("s", "abc")
	_, err = h.IncrBy("s", 1)
	assert.ErrorIs(t, err, ErrHashNotInteger)
	_, err = h.IncrByFloat("s", 1)
	assert.ErrorIs(t, err, ErrHashNotFloat)

	f, err := h.IncrByFloat("f", 10.5)
	require.NoError(t, err)
	assert.Equal(t, "10.5", f)
}

func TestRandomFields(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	h := NewHash()
	h.Set("a", "1")
	h.Set("b", "2")
	h.Set("c", "3")

	distinct := h.RandomFields(rng, 2)
	assert.Len(t, distinct, 2)
	assert.NotEqual(t, distinct[0], distinct[1])

	assert.ElementsMatch(t, []string{"a", "b", "c"}, h.RandomFields(rng, 10))

	repeated := h.RandomFields(rng, -10)
	assert.Len(t, repeated, 10)
	for _, f := range repeated {
		assert.Contains(t, []string{"a", "b", "c"}, f)
	}

	assert.Empty(t, NewHash().RandomFields(rng, -3))
}

func TestSetAlgebra(t *testing.T) {
	a := NewSet("a", "b", "c", "d")
	b := NewSet("c")
	c := NewSet("a", "c", "e")

	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, Union([]*Set{a, b, c}).Members())
	assert.Equal(t, []string{"c"}, Inter([]*Set{a, b, c}).Members())
	assert.Equal(t, []string{"b", "d"}, Diff([]*Set{a, b, c}).Members())

	// missing keys
	assert.Empty(t, Inter([]*Set{a, nil}).Members())
	assert.Equal(t, a.Members(), Diff([]*Set{a, nil}).Members())
	assert.Empty(t, Diff([]*Set{nil, a}).Members())

	// operands untouched
	assert.Equal(t, 4, a.Len())
}

func TestSetPop(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := NewSet("x", "y", "z")

	popped := s.Pop(rng, 2)
	assert.Len(t, popped, 2)
	assert.Equal(t, 1, s.Len())
	for _, m := range popped {
		assert.False(t, s.Has(m))
	}

	assert.Equal(t, 1, len(s.Pop(rng, 5)))
	assert.True(t, s.Empty())
}

func TestSetCloneIsIndependent(t *testing.T) {
	s := NewSet("a")
	c := s.Clone().(*Set)
	c.Add("b")
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, 2, c.Len())
}
