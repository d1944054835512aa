package server

import (
	"strconv"
	"testing"
	"time"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/stretchr/testify/assert"
)

func TestBasicSetGetDel(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.True(t, do(c, "GET", "mykey").IsNull, "missing key")
	assert.Equal(t, resp.MakeOK(), do(c, "SET", "mykey", "myvalue"))
	assert.Equal(t, resp.MakeBulkString("myvalue"), do(c, "GET", "mykey"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "DEL", "mykey"))
	assert.True(t, do(c, "GET", "mykey").IsNull, "deleted key")
}

func TestSetNX_XX(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeOK(), do(c, "SET", "k1", "v1", "NX"))
	assert.True(t, do(c, "SET", "k1", "v2", "NX").IsNull)
	assert.Equal(t, resp.MakeBulkString("v1"), do(c, "GET", "k1"))

	assert.True(t, do(c, "SET", "k2", "v2", "XX").IsNull)
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "k2"))

	assert.Equal(t, resp.MakeOK(), do(c, "SET", "k1", "v_updated", "XX"))
	assert.Equal(t, resp.MakeBulkString("v_updated"), do(c, "GET", "k1"))
}

func TestSetGet(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.True(t, do(c, "SET", "k", "a", "GET").IsNull)
	assert.Equal(t, resp.MakeBulkString("a"), do(c, "SET", "k", "b", "GET"))
	// NX with GET reports the old value and leaves it in place
	assert.Equal(t, resp.MakeBulkString("b"), do(c, "SET", "k", "c", "NX", "GET"))
	assert.Equal(t, resp.MakeBulkString("b"), do(c, "GET", "k"))

	ok(t, c, "RPUSH", "list", "x")
	assert.Equal(t, string(errWrongType), do(c, "SET", "list", "v", "GET").Text())
	// without GET, SET overwrites any type
	assert.Equal(t, resp.MakeOK(), do(c, "SET", "list", "v"))
}

func TestSetTTL(t *testing.T) {
	e, clock := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SET", "k_ex", "val", "EX", "1")
	assert.Equal(t, resp.MakeInteger(1), do(c, "TTL", "k_ex"))

	clock.Advance(999 * time.Millisecond)
	assert.Equal(t, resp.MakeBulkString("val"), do(c, "GET", "k_ex"))
	clock.Advance(time.Millisecond)
	assert.True(t, do(c, "GET", "k_ex").IsNull, "key should have expired")

	ok(t, c, "SET", "k_px", "val", "PX", "100")
	assert.Equal(t, resp.MakeInteger(100), do(c, "PTTL", "k_px"))
	clock.Advance(150 * time.Millisecond)
	assert.True(t, do(c, "GET", "k_px").IsNull, "key should have expired (PX)")
}

func TestSetKeepTTL(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SET", "k_keep", "v1", "EX", "100")
	ok(t, c, "SET", "k_keep", "v2", "KEEPTTL")
	assert.Equal(t, resp.MakeBulkString("v2"), do(c, "GET", "k_keep"))
	assert.Equal(t, resp.MakeInteger(100), do(c, "TTL", "k_keep"))

	// a plain SET clears the TTL
	ok(t, c, "SET", "k_keep", "v3")
	assert.Equal(t, resp.MakeInteger(-1), do(c, "TTL", "k_keep"))

	ok(t, c, "SET", "k_new_keep", "v1", "KEEPTTL")
	assert.Equal(t, resp.MakeInteger(-1), do(c, "TTL", "k_new_keep"))
}

func TestSetTimestamps(t *testing.T) {
	e, clock := setupEngine(t)
	c := e.NewClient()

	future := clock.Now().Add(2 * time.Second)
	ok(t, c, "SET", "k_exat", "v", "EXAT", strconv.FormatInt(future.Unix(), 10))
	assert.Equal(t, resp.MakeInteger(2), do(c, "TTL", "k_exat"))

	ok(t, c, "SET", "k_pxat", "v", "PXAT", strconv.FormatInt(future.UnixMilli()+5, 10))
	assert.Equal(t, resp.MakeInteger(2005), do(c, "PTTL", "k_pxat"))
	assert.Equal(t, resp.MakeInteger(future.UnixMilli()+5), do(c, "PEXPIRETIME", "k_pxat"))
}

func TestTTL_PTTL_Codes(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(-2), do(c, "TTL", "missing"))
	assert.Equal(t, resp.MakeInteger(-2), do(c, "PTTL", "missing"))

	ok(t, c, "SET", "persistent", "val")
	assert.Equal(t, resp.MakeInteger(-1), do(c, "TTL", "persistent"))
	assert.Equal(t, resp.MakeInteger(-1), do(c, "PTTL", "persistent"))
}

func TestSetSyntaxErrors(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"NX and XX together", []string{"k", "v", "NX", "XX"}, "ERR syntax error"},
		{"XX and NX together", []string{"k", "v", "XX", "NX"}, "ERR syntax error"},
		{"EX without value", []string{"k", "v", "EX"}, "ERR syntax error"},
		{"EX with non-integer", []string{"k", "v", "EX", "abc"}, "ERR value is not an integer or out of range"},
		{"EX zero", []string{"k", "v", "EX", "0"}, "ERR invalid expire time in 'set' command"},
		{"Double TTL (EX then PX)", []string{"k", "v", "EX", "10", "PX", "100"}, "ERR syntax error"},
		{"KEEPTTL with EX", []string{"k", "v", "KEEPTTL", "EX", "10"}, "ERR syntax error"},
		{"Unknown Argument", []string{"k", "v", "FOOBAR"}, "ERR syntax error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := do(c, append([]string{"SET"}, tt.args...)...)
			assert.True(t, res.IsError())
			assert.Equal(t, tt.expected, res.Text())
		})
	}
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "k"))
}

func TestSetGetOptionNeedsVersion(t *testing.T) {
	e, _ := setupEngine(t, withVersion("6.0.0"))
	c := e.NewClient()

	assert.Equal(t, "ERR syntax error", do(c, "SET", "k", "v", "GET").Text())
	assert.Equal(t, resp.MakeOK(), do(c, "SET", "k", "v", "KEEPTTL"))
}

func TestIncrDecr(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(1), do(c, "INCR", "n"))
	assert.Equal(t, resp.MakeInteger(11), do(c, "INCRBY", "n", "10"))
	assert.Equal(t, resp.MakeInteger(10), do(c, "DECR", "n"))
	assert.Equal(t, resp.MakeInteger(-5), do(c, "DECRBY", "n", "15"))

	ok(t, c, "SET", "big", "9223372036854775807")
	assert.Equal(t, "ERR increment or decrement would overflow", do(c, "INCR", "big").Text())
	assert.Equal(t, resp.MakeBulkString("9223372036854775807"), do(c, "GET", "big"))

	ok(t, c, "SET", "word", "abc")
	assert.Equal(t, string(errNotInteger), do(c, "INCR", "word").Text())
	assert.Equal(t, "ERR decrement would overflow", do(c, "DECRBY", "n", "-9223372036854775808").Text())

	// INCR keeps the TTL of the key
	ok(t, c, "SET", "t", "1", "EX", "50")
	ok(t, c, "INCR", "t")
	assert.Equal(t, resp.MakeInteger(50), do(c, "TTL", "t"))
}

func TestIncrByFloat(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeBulkString("10.5"), do(c, "INCRBYFLOAT", "f", "10.5"))
	assert.Equal(t, resp.MakeBulkString("5010.5"), do(c, "INCRBYFLOAT", "f", "5.0e3"))
	assert.Equal(t, resp.MakeBulkString("5010"), do(c, "INCRBYFLOAT", "f", "-0.5"))
	assert.Equal(t, string(errNotFloat), do(c, "INCRBYFLOAT", "f", "abc").Text())
}

func TestMultiKeyStrings(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "MSET", "a", "1", "b", "2")
	ok(t, c, "RPUSH", "l", "x")
	v := do(c, "MGET", "a", "missing", "b", "l")
	assert.Equal(t, resp.MakeArray([]resp.Value{
		resp.MakeBulkString("1"),
		resp.MakeNilBulkString(),
		resp.MakeBulkString("2"),
		resp.MakeNilBulkString(),
	}), v)

	assert.Equal(t, resp.MakeInteger(0), do(c, "MSETNX", "c", "3", "a", "x"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "c"))
	assert.Equal(t, resp.MakeInteger(1), do(c, "MSETNX", "c", "3", "d", "4"))
	assert.Equal(t, "ERR wrong number of arguments for 'mset' command", do(c, "MSET", "a", "1", "b").Text())
}

func TestStringEditing(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(5), do(c, "APPEND", "s", "Hello"))
	assert.Equal(t, resp.MakeInteger(11), do(c, "APPEND", "s", " World"))
	assert.Equal(t, resp.MakeInteger(11), do(c, "STRLEN", "s"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "STRLEN", "none"))

	assert.Equal(t, resp.MakeBulkString("World"), do(c, "GETRANGE", "s", "-5", "-1"))
	assert.Equal(t, resp.MakeBulkString("Hello World"), do(c, "GETRANGE", "s", "0", "100"))
	assert.Equal(t, resp.MakeBulkString(""), do(c, "GETRANGE", "none", "0", "1"))

	assert.Equal(t, resp.MakeInteger(11), do(c, "SETRANGE", "s", "6", "Redis"))
	assert.Equal(t, resp.MakeBulkString("Hello Redis"), do(c, "GET", "s"))

	// padding with zero bytes
	assert.Equal(t, resp.MakeInteger(8), do(c, "SETRANGE", "pad", "5", "abc"))
	assert.Equal(t, resp.MakeBulkString("\x00\x00\x00\x00\x00abc"), do(c, "GET", "pad"))

	assert.Equal(t, resp.MakeInteger(0), do(c, "SETRANGE", "empty", "3", ""))
	assert.Equal(t, resp.MakeInteger(0), do(c, "EXISTS", "empty"))
	assert.Equal(t, string(errOffsetRange), do(c, "SETRANGE", "s", "-1", "x").Text())
}

func TestGetExGetDelGetSet(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "SET", "k", "v")
	assert.Equal(t, resp.MakeBulkString("v"), do(c, "GETEX", "k", "EX", "10"))
	assert.Equal(t, resp.MakeInteger(10), do(c, "TTL", "k"))
	assert.Equal(t, resp.MakeBulkString("v"), do(c, "GETEX", "k", "PERSIST"))
	assert.Equal(t, resp.MakeInteger(-1), do(c, "TTL", "k"))
	assert.Equal(t, "ERR syntax error", do(c, "GETEX", "k", "EX", "10", "PERSIST").Text())

	assert.Equal(t, resp.MakeBulkString("v"), do(c, "GETSET", "k", "w"))
	assert.Equal(t, resp.MakeBulkString("w"), do(c, "GETDEL", "k"))
	assert.True(t, do(c, "GETDEL", "k").IsNull)

	assert.Equal(t, resp.MakeInteger(1), do(c, "SETNX", "n", "1"))
	assert.Equal(t, resp.MakeInteger(0), do(c, "SETNX", "n", "2"))
	assert.Equal(t, resp.MakeOK(), do(c, "PSETEX", "p", "1500", "v"))
	assert.Equal(t, resp.MakeInteger(1500), do(c, "PTTL", "p"))
}

func TestLCS(t *testing.T) {
	e, _ := setupEngine(t)
	c := e.NewClient()

	ok(t, c, "MSET", "key1", "ohmytext", "key2", "mynewtext")
	assert.Equal(t, resp.MakeBulkString("mytext"), do(c, "LCS", "key1", "key2"))
	assert.Equal(t, resp.MakeInteger(6), do(c, "LCS", "key1", "key2", "LEN"))

	v := do(c, "LCS", "key1", "key2", "IDX", "MINMATCHLEN", "4", "WITHMATCHLEN")
	assert.Equal(t, resp.MakeMap([]resp.Value{
		resp.MakeBulkString("matches"), resp.MakeArray([]resp.Value{
			resp.MakeArray([]resp.Value{ints(4, 7), ints(5, 8), resp.MakeInteger(4)}),
		}),
		resp.MakeBulkString("len"), resp.MakeInteger(6),
	}), v)

	assert.Equal(t, "ERR If you want both the length and indexes, please just use IDX.",
		do(c, "LCS", "key1", "key2", "LEN", "IDX").Text())
}
