package server

import (
	"strconv"
	"testing"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type counter struct{ n int64 }

func (c *counter) Kind() storage.Kind   { return storage.KindExtension }
func (c *counter) Empty() bool          { return false }
func (c *counter) Clone() storage.Value { return &counter{n: c.n} }
func (c *counter) TypeName() string     { return "counter" }

type counterExtension struct{}

func (counterExtension) Name() string { return "counter" }

func (counterExtension) Commands() []ExtensionCommand {
	return []ExtensionCommand{
		{
			Name: "CINCR", Arity: -2, Flags: "write fast",
			FirstKey: 1, LastKey: 1,
			Summary: "Increments a counter.",
			Handler: func(ctx *Context) resp.Value {
				key := ctx.Args()[0]
				by := int64(1)
				if len(ctx.Args()) > 2 {
					return WrongArity(ctx)
				}
				if len(ctx.Args()) == 2 {
					n, err := datatype.ParseInt(ctx.Args()[1])
					if err != nil {
						return ErrorReply(err)
					}
					by = n
				}
				c := &counter{}
				if v, ok := ctx.DB().Get(key); ok {
					if c, ok = v.(*counter); !ok {
						return ErrorReply(errWrongType)
					}
				}
				c.n += by
				if err := ctx.DB().Set(key, c, true); err != nil {
					return ErrorReply(err)
				}
				ctx.Written(key, "cincr")
				return resp.MakeInteger(c.n)
			},
		},
		{
			Name: "cget", Arity: 2, Flags: "readonly fast",
			FirstKey: 1, LastKey: 1, KeyStep: 1,
			Handler: func(ctx *Context) resp.Value {
				v, ok := ctx.DB().Get(ctx.Args()[0])
				if !ok {
					return resp.MakeNilBulkString()
				}
				c, ok := v.(*counter)
				if !ok {
					return ErrorReply(errWrongType)
				}
				return resp.MakeBulkString(strconv.FormatInt(c.n, 10))
			},
		},
	}
}

func TestExtensionCommands(t *testing.T) {
	e, _ := setupEngine(t)
	require.NoError(t, e.RegisterExtension(counterExtension{}))
	c := e.NewClient()

	assert.Equal(t, resp.MakeInteger(1), do(c, "CINCR", "hits"))
	assert.Equal(t, resp.MakeInteger(11), do(c, "cincr", "hits", "10"))
	assert.Equal(t, resp.MakeBulkString("11"), do(c, "CGET", "hits"))
	assert.True(t, do(c, "CGET", "missing").IsNull)
	assert.Equal(t, "ERR wrong number of arguments for 'cincr' command", do(c, "CINCR", "hits", "1", "2").Text())
	assert.Equal(t, "ERR wrong number of arguments for 'cget' command", do(c, "CGET").Text())

	assert.Equal(t, resp.MakeSimpleString("counter"), do(c, "TYPE", "hits"))
	assert.Equal(t, string(errWrongType), do(c, "GET", "hits").Text())
	assert.Equal(t, string(errWrongType), do(c, "LPUSH", "hits", "x").Text())

	ok(t, c, "SET", "str", "x")
	assert.Equal(t, string(errWrongType), do(c, "CINCR", "str").Text())
	assert.Equal(t, string(errWrongType), do(c, "CGET", "str").Text())

	assert.Equal(t, []string{"hits"}, strs(do(c, "COMMAND", "GETKEYS", "CINCR", "hits", "2")))
	assert.Equal(t, []string{"cget", "cincr"}, strs(do(c, "COMMAND", "LIST", "FILTERBY", "ACLCAT", "module")))
}

func TestExtensionCommandsJoinTransactionsAndScripts(t *testing.T) {
	e, _ := setupEngine(t)
	require.NoError(t, e.RegisterExtension(counterExtension{}))
	c := e.NewClient()

	ok(t, c, "MULTI")
	ok(t, c, "CINCR", "n")
	ok(t, c, "CINCR", "n", "5")
	assert.Equal(t, ints(1, 6), do(c, "EXEC"))

	v := do(c, "EVAL", "return redis.call('CINCR', KEYS[1])", "1", "n")
	assert.Equal(t, resp.MakeInteger(7), v)
}

func TestExtensionWritesNotifyAndTouchWatches(t *testing.T) {
	e, _ := setupEngine(t)
	require.NoError(t, e.RegisterExtension(counterExtension{}))
	sub, c, other := e.NewClient(), e.NewClient(), e.NewClient()

	ok(t, c, "CONFIG", "SET", "notify-keyspace-events", "Ed")
	ok(t, sub, "SUBSCRIBE", "__keyevent@0__:cincr")
	ok(t, c, "CINCR", "n")
	assert.Equal(t, []string{"message", "__keyevent@0__:cincr", "n"}, nextMessage(t, sub))

	ok(t, c, "WATCH", "n")
	ok(t, other, "CINCR", "n")
	ok(t, c, "MULTI")
	ok(t, c, "CGET", "n")
	assert.True(t, do(c, "EXEC").IsNull)
}

func TestRegisterExtensionRejectsClashes(t *testing.T) {
	e, _ := setupEngine(t)
	require.NoError(t, e.RegisterExtension(counterExtension{}))

	err := e.RegisterExtension(counterExtension{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")

	e2, _ := setupEngine(t)
	err = e2.RegisterExtension(badExtension{name: "GET"})
	assert.Contains(t, err.Error(), "command GET already registered")
	err = e2.RegisterExtension(badExtension{name: "NOHANDLER"})
	assert.Contains(t, err.Error(), "needs a handler")

	// nothing of a rejected extension is added
	assert.Contains(t, do(e2.NewClient(), "NOHANDLER").Text(), "unknown command")
}

type badExtension struct{ name string }

func (b badExtension) Name() string { return "bad" }

func (b badExtension) Commands() []ExtensionCommand {
	return []ExtensionCommand{{Name: b.name, Arity: 1}}
}
