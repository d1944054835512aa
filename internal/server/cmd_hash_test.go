package server

import (
	"testing"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashBasics(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(2), do(c, "HSET", "h", "a", "1", "b", "2"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "HSET", "h", "b", "20", "c", "3"))
	assert.Equal(t, resp.MakeOK(), do(c, "HMSET", "h", "d", "4"))
	assert.Equal(t, "ERR wrong number of arguments for 'hset' command", do(c, "HSET", "h", "a", "1", "b").Text())

	assert.Equal(t, resp.MakeBulkString("20"), do(c, "HGET", "h", "b"))
	assert.True(t, do(c, "HGET", "h", "zz").IsNull)
	assert.True(t, do(c, "HGET", "missing", "a").IsNull)

	mget := do(c, "HMGET", "h", "a", "zz", "c")
	require.Len(t, mget.Array, 3)
	assert.Equal(t, "1", mget.Array[0].Text())
	assert.True(t, mget.Array[1].IsNull)
	assert.Equal(t, "3", mget.Array[2].Text())

	assert.Equal(t, resp.MakeInteger(4), do(c, "HLEN", "h"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, strs(do(c, "HKEYS", "h")))
	assert.Equal(t, []string{"1", "20", "3", "4"}, strs(do(c, "HVALS", "h")))

	all := do(c, "HGETALL", "h")
	assert.Equal(t, byte(resp.TypeMap), all.Type)
	assert.Equal(t, []string{"a", "1", "b", "20", "c", "3", "d", "4"}, strs(all))
	assert.Empty(t, do(c, "HGETALL", "missing").Array)

	assert.Equal(t, resp.MakeInteger(1), do(c, "HEXISTS", "h", "a"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "HEXISTS", "h", "zz"))
	assert.Equal(t, resp.MakeInteger(2), do(c, "HSTRLEN", "h", "b"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "HSTRLEN", "h", "zz"))

	assert.Equal(t, resp.MakeInteger(0), do(c, "HSETNX", "h", "a", "x"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "HSETNX", "h", "e", "5"))
	assert.Equal(t, resp.MakeBulkString("1"), do(c, "HGET", "h", "a"))
}

func TestHashDeleteRemovesEmptyKey(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "HSET", "h", "a", "1", "b", "2")
	assert.Equal(t, resp.MakeInteger(1), do(c, "HDEL", "h", "a", "zz"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "EXISTS", "h"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "HDEL", "h", "b"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "h"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "HDEL", "h", "b"))
}

func TestHashIncrements(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(5), do(c, "HINCRBY", "h", "n", "5"))
	assert.Equal(t, resp.MakeInteger(2), do(c, "HINCRBY", "h", "n", "-3"))
	assert.Equal(t, resp.MakeBulkString("2.5"), do(c, "HINCRBYFLOAT", "h", "n", "0.5"))

	ok(t, c, "HSET", "h", "s", "abc")
	assert.Equal(t, "ERR hash value is not an integer", do(c, "HINCRBY", "h", "s", "1").Text())
	assert.Equal(t, "ERR hash value is not a float", do(c, "HINCRBYFLOAT", "h", "s", "1").Text())
	assert.Equal(t, string(errNotInteger), do(c, "HINCRBY", "h", "n", "x").Text())

	ok(t, c, "HSET", "h", "big", "9223372036854775807")
	assert.Equal(t, "ERR increment or decrement would overflow", do(c, "HINCRBY", "h", "big", "1").Text())

	// a failed increment on a new key leaves nothing behind
	assert.True(t, do(c, "HINCRBY", "fresh", "f", "x").IsError())
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "fresh"))
}

func TestHashRandomField(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.True(t, do(c, "HRANDFIELD", "missing").IsNull)
	assert.Empty(t, do(c, "HRANDFIELD", "missing", "3").Array)

	ok(t, c, "HSET", "h", "a", "1", "b", "2", "c", "3")
	one := do(c, "HRANDFIELD", "h").Text()
	assert.Contains(t, []string{"a", "b", "c"}, one)

	assert.ElementsMatch(t, []string{"a", "b", "c"}, strs(do(c, "HRANDFIELD", "h", "10")))
	assert.Len(t, do(c, "HRANDFIELD", "h", "-7").Array, 7)

	flat := do(c, "HRANDFIELD", "h", "2", "WITHVALUES")
	require.Len(t, flat.Array, 4)
	assert.Equal(t, map[string]string{"a": "1", "b": "2", "c": "3"}[flat.Array[0].Text()], flat.Array[1].Text())

	ok(t, c, "HELLO", "3")
	nested := do(c, "HRANDFIELD", "h", "2", "WITHVALUES")
	require.Len(t, nested.Array, 2)
	assert.Len(t, nested.Array[0].Array, 2)

	assert.Equal(t, string(errSyntax), do(c, "HRANDFIELD", "h", "2", "WITHSCORES").Text())

	older, _ := setupEngine(t, withVersion("6.0.0"))
	assert.Contains(t, do(older.NewClient(), "HRANDFIELD", "h").Text(), "unknown command")
}

func TestHashScan(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "HSET", "h", "f1", "1", "f2", "2", "g1", "3")
	seen := map[string]string{}
	cursor := "0"
	for {
		v := ok(t, c, "HSCAN", "h", cursor, "MATCH", "f*", "COUNT", "1")
		items := strs(v.Array[1])
		for i := 0; i+1 < len(items); i += 2 {
			seen[items[i]] = items[i+1]
		}
		cursor = v.Array[0].Text()
		if cursor == "0" {
			break
		}
	}
	assert.Equal(t, map[string]string{"f1": "1", "f2": "2"}, seen)
}
