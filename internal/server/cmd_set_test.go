package server

import (
	"testing"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBasics(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(3), do(c, "SADD", "s", "c", "a", "b", "a"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "SADD", "s", "a"))
	assert.Equal(t, resp.MakeInteger(3), do(c, "SCARD", "s"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "SCARD", "missing"))

	members := do(c, "SMEMBERS", "s")
	assert.Equal(t, byte(resp.TypeSet), members.Type)
	assert.Equal(t, []string{"a", "b", "c"}, strs(members))

	assert.Equal(t, resp.MakeInteger(1), do(c, "SISMEMBER", "s", "a"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "SISMEMBER", "missing", "a"))
	assert.Equal(t, ints(1, 0, 1), do(c, "SMISMEMBER", "s", "a", "z", "c"))

	assert.Equal(t, resp.MakeInteger(2), do(c, "SREM", "s", "a", "b", "z"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "SREM", "s", "c"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "s"))
}

func TestSetPopAndRandomMember(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.True(t, do(c, "SPOP", "missing").IsNull)
	assert.Empty(t, do(c, "SPOP", "missing", "2").Array)
	assert.True(t, do(c, "SRANDMEMBER", "missing").IsNull)

	ok(t, c, "SADD", "s", "a", "b", "c", "d")
	assert.Len(t, do(c, "SRANDMEMBER", "s", "-10").Array, 10)
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, strs(do(c, "SRANDMEMBER", "s", "10")))
	assert.Equal(t, resp.MakeInteger(4), do(c, "SCARD", "s"))

	popped := strs(do(c, "SPOP", "s", "3"))
	assert.Len(t, popped, 3)
	assert.Equal(t, resp.MakeInteger(1), do(c, "SCARD", "s"))

	last := do(c, "SPOP", "s").Text()
	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, append(popped, last))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "s"))

	assert.Equal(t, string(errNegativeCount), do(c, "SPOP", "s", "-1").Text())
}

func TestSetSeedMakesSamplingRepeatable(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()
	ok(t, c, "SADD", "s", "a", "b", "c", "d", "e", "f")

	e.Seed(7)
	first := strs(do(c, "SRANDMEMBER", "s", "3"))
	e.Seed(7)
	assert.Equal(t, first, strs(do(c, "SRANDMEMBER", "s", "3")))
}

func TestSetMove(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SADD", "src", "a", "b")
	assert.Equal(t, resp.MakeInteger(1), do(c, "SMOVE", "src", "dst", "a"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "SMOVE", "src", "dst", "z"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "SMOVE", "src", "src", "b"))
	assert.Equal(t, []string{"b"}, strs(do(c, "SMEMBERS", "src")))
	assert.Equal(t, []string{"a"}, strs(do(c, "SMEMBERS", "dst")))

	ok(t, c, "SET", "str", "x")
	assert.Equal(t, string(errWrongType), do(c, "SMOVE", "src", "str", "b").Text())
	assert.Equal(t, resp.MakeInteger(1), do(c, "SISMEMBER", "src", "b"))
}

func TestSetAlgebra(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SADD", "s1", "a", "b", "c", "d")
	ok(t, c, "SADD", "s2", "c", "d", "e")
	ok(t, c, "SADD", "s3", "d", "x")

	assert.Equal(t, []string{"a", "b", "c", "d", "e", "x"}, strs(do(c, "SUNION", "s1", "s2", "s3")))
	assert.Equal(t, []string{"d"}, strs(do(c, "SINTER", "s1", "s2", "s3")))
	assert.Equal(t, []string{"a", "b"}, strs(do(c, "SDIFF", "s1", "s2", "s3")))
	assert.Empty(t, do(c, "SINTER", "s1", "missing").Array)
	assert.Equal(t, []string{"a", "b", "c", "d"}, strs(do(c, "SDIFF", "s1", "missing")))

	ok(t, c, "SET", "dest", "string")
	assert.Equal(t, resp.MakeInteger(2), do(c, "SINTERSTORE", "dest", "s1", "s2"))
	assert.Equal(t, resp.MakeSimpleString("set"), do(c, "TYPE", "dest"))
	assert.Equal(t, resp.MakeInteger(6), do(c, "SUNIONSTORE", "dest", "s1", "s2", "s3"))

	// an empty result deletes the destination
	assert.Equal(t, resp.MakeInteger(0), do(c, "SINTERSTORE", "dest", "s3", "missing"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "dest"))

	ok(t, c, "SET", "str", "x")
	assert.Equal(t, string(errWrongType), do(c, "SUNION", "s1", "str").Text())
}

func TestSetInterCard(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SADD", "s1", "a", "b", "c")
	ok(t, c, "SADD", "s2", "a", "b", "c", "d")

	assert.Equal(t, resp.MakeInteger(3), do(c, "SINTERCARD", "2", "s1", "s2"))
	assert.Equal(t, resp.MakeInteger(2), do(c, "SINTERCARD", "2", "s1", "s2", "LIMIT", "2"))
	assert.Equal(t, resp.MakeInteger(3), do(c, "SINTERCARD", "2", "s1", "s2", "LIMIT", "0"))
	assert.Equal(t, string(errNumKeys), do(c, "SINTERCARD", "0", "s1").Text())
	assert.Equal(t, string(errSyntax), do(c, "SINTERCARD", "3", "s1", "s2").Text())
	assert.Equal(t, "ERR LIMIT can't be negative", do(c, "SINTERCARD", "1", "s1", "LIMIT", "-1").Text())

	older, _ := setupEngine(t, withVersion("6.2.0"))
	oc := older.NewClient()
	assert.Contains(t, do(oc, "SINTERCARD", "1", "s1").Text(), "unknown command")
	assert.Equal(t, ints(0, 0), do(oc, "SMISMEMBER", "missing", "a", "b"))
}

func TestSetScan(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	for _, m := range []string{"m1", "m2", "m3", "m4", "m5"} {
		ok(t, c, "SADD", "s", m)
	}
	var seen []string
	cursor := "0"
	for {
		v := ok(t, c, "SSCAN", "s", cursor, "COUNT", "2")
		require.Len(t, v.Array, 2)
		seen = append(seen, strs(v.Array[1])...)
		cursor = v.Array[0].Text()
		if cursor == "0" {
			break
		}
	}
	assert.ElementsMatch(t, []string{"m1", "m2", "m3", "m4", "m5"}, seen)
}
