package server

import (
	"testing"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/stretchr/testify/assert"
)

func TestPushPopRange(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(3), do(c, "RPUSH", "l", "a", "b", "c"))
	assert.Equal(t, resp.MakeInteger(5), do(c, "LPUSH", "l", "y", "x"))
	assert.Equal(t, []string{"x", "y", "a", "b", "c"}, strs(do(c, "LRANGE", "l", "0", "-1")))
	assert.Equal(t, []string{"b", "c"}, strs(do(c, "LRANGE", "l", "-2", "100")))
	assert.Empty(t, do(c, "LRANGE", "l", "4", "2").Array)
	assert.Empty(t, do(c, "LRANGE", "none", "0", "-1").Array)

	assert.Equal(t, resp.MakeBulkString("x"), do(c, "LPOP", "l"))
	assert.Equal(t, resp.MakeBulkString("c"), do(c, "RPOP", "l"))
	assert.Equal(t, []string{"y", "a"}, strs(do(c, "LPOP", "l", "2")))
	assert.Equal(t, resp.MakeInteger(1), do(c, "LLEN", "l"))

	assert.Equal(t, resp.MakeInteger(0), do(c, "LPUSHX", "none", "v"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "none"))
	assert.Equal(t, resp.MakeInteger(2), do(c, "RPUSHX", "l", "z"))

	// popping the last element removes the key
	assert.Equal(t, []string{"z", "b"}, strs(do(c, "RPOP", "l", "5")))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "l"))
	assert.True(t, do(c, "LPOP", "l").IsNull)
	v := do(c, "LPOP", "l", "2")
	assert.True(t, v.IsNull)
	assert.Equal(t, byte(resp.TypeArray), v.Type)
	assert.Equal(t, string(errNegativeCount), do(c, "LPOP", "x", "-1").Text())
}

func TestPopCountNeedsVersion(t *testing.T) {
	e, _ := setupEngine(t, withVersion("6.0.0"))
	c := e.NewClient()

	ok(t, c, "RPUSH", "l", "a", "b")
	assert.Equal(t, "ERR wrong number of arguments for 'lpop' command", do(c, "LPOP", "l", "2").Text())
}

func TestListIndexing(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()
	ok(t, c, "RPUSH", "l", "a", "b", "c", "b", "a")

	assert.Equal(t, resp.MakeBulkString("c"), do(c, "LINDEX", "l", "2"))
	assert.Equal(t, resp.MakeBulkString("a"), do(c, "LINDEX", "l", "-1"))
	assert.True(t, do(c, "LINDEX", "l", "10").IsNull)

	assert.Equal(t, resp.MakeOK(), do(c, "LSET", "l", "-1", "z"))
	assert.Equal(t, "ERR index out of range", do(c, "LSET", "l", "10", "z").Text())
	assert.Equal(t, string(errNoSuchKey), do(c, "LSET", "none", "0", "z").Text())

	assert.Equal(t, resp.MakeInteger(6), do(c, "LINSERT", "l", "BEFORE", "c", "new"))
	assert.Equal(t, resp.MakeInteger(-1), do(c, "LINSERT", "l", "AFTER", "missing", "x"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "LINSERT", "none", "AFTER", "a", "x"))
	assert.Equal(t, []string{"a", "b", "new", "c", "b", "z"}, strs(do(c, "LRANGE", "l", "0", "-1")))

	assert.Equal(t, resp.MakeInteger(1), do(c, "LPOS", "l", "b"))
	assert.Equal(t, resp.MakeInteger(4), do(c, "LPOS", "l", "b", "RANK", "2"))
	assert.Equal(t, resp.MakeInteger(4), do(c, "LPOS", "l", "b", "RANK", "-1"))
	assert.Equal(t, ints(1, 4), do(c, "LPOS", "l", "b", "COUNT", "0"))
	assert.True(t, do(c, "LPOS", "l", "b", "MAXLEN", "1").IsNull)
	assert.Contains(t, do(c, "LPOS", "l", "b", "RANK", "0").Text(), "RANK can't be zero")

	assert.Equal(t, resp.MakeInteger(2), do(c, "LREM", "l", "0", "b"))
	assert.Equal(t, resp.MakeOK(), do(c, "LTRIM", "l", "1", "-2"))
	assert.Equal(t, []string{"new", "c"}, strs(do(c, "LRANGE", "l", "0", "-1")))
	assert.Equal(t, resp.MakeOK(), do(c, "LTRIM", "l", "5", "10"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "l"))
}

func TestLMove(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()
	ok(t, c, "RPUSH", "src", "a", "b", "c")

	assert.Equal(t, resp.MakeBulkString("c"), do(c, "RPOPLPUSH", "src", "dst"))
	assert.Equal(t, resp.MakeBulkString("a"), do(c, "LMOVE", "src", "dst", "LEFT", "RIGHT"))
	assert.Equal(t, []string{"c", "a"}, strs(do(c, "LRANGE", "dst", "0", "-1")))

	// rotating a list onto itself
	assert.Equal(t, resp.MakeBulkString("a"), do(c, "LMOVE", "dst", "dst", "RIGHT", "LEFT"))
	assert.Equal(t, []string{"a", "c"}, strs(do(c, "LRANGE", "dst", "0", "-1")))

	assert.True(t, do(c, "RPOPLPUSH", "none", "dst").IsNull)
	assert.Equal(t, "ERR syntax error", do(c, "LMOVE", "src", "dst", "UP", "LEFT").Text())

	ok(t, c, "SET", "str", "x")
	assert.Equal(t, string(errWrongType), do(c, "LMOVE", "src", "str", "LEFT", "LEFT").Text())
	assert.Equal(t, resp.MakeInteger(1), do(c, "LLEN", "src"), "nothing popped on a type error")
}

func TestLMPop(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()
	ok(t, c, "RPUSH", "b", "1", "2", "3")

	v := do(c, "LMPOP", "2", "a", "b", "RIGHT", "COUNT", "2")
	assert.Equal(t, resp.MakeArray([]resp.Value{
		resp.MakeBulkString("b"),
		resp.MakeBulkArray([]string{"3", "2"}),
	}), v)
	assert.True(t, do(c, "LMPOP", "1", "a", "LEFT").IsNull)

	assert.Equal(t, string(errNumKeys), do(c, "LMPOP", "0", "a", "LEFT").Text())
	assert.Equal(t, "ERR syntax error", do(c, "LMPOP", "3", "a", "LEFT").Text())
	assert.Equal(t, "ERR count should be greater than 0", do(c, "LMPOP", "1", "b", "LEFT", "COUNT", "0").Text())

	// inside MULTI a blocking pop answers at once
	ok(t, c, "MULTI")
	do(c, "BLMPOP", "0", "1", "a", "LEFT")
	v = do(c, "EXEC")
	assert.Len(t, v.Array, 1)
	assert.True(t, v.Array[0].IsNull)
}
