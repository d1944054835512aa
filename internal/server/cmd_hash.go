package server

import (
	"strings"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerHashCommands(r *registry) {
	hash := storage.KindHash
	r.add("HSET", hset, -4, "write denyoom fast", oneKey, hash, "2.0.0",
		"Creates or modifies the value of a field in a hash.")
	r.add("HMSET", hset, -4, "write denyoom fast", oneKey, hash, "2.0.0",
		"Sets the values of multiple fields.")
	r.add("HSETNX", hsetNX, 4, "write denyoom fast", oneKey, hash, "2.0.0",
		"Sets the value of a field in a hash only when the field doesn't exist.")
	r.add("HGET", hget, 3, "readonly fast", oneKey, hash, "2.0.0",
		"Returns the value of a field in a hash.")
	r.add("HMGET", hmget, -3, "readonly fast", oneKey, hash, "2.0.0",
		"Returns the values of all fields in a hash.")
	r.add("HDEL", hdel, -3, "write fast", oneKey, hash, "2.0.0",
		"Deletes one or more fields and their values from a hash. Deletes the hash if no fields remain.")
	r.add("HEXISTS", hexists, 3, "readonly fast", oneKey, hash, "2.0.0",
		"Determines whether a field exists in a hash.")
	r.add("HLEN", hlen, 2, "readonly fast", oneKey, hash, "2.0.0",
		"Returns the number of fields in a hash.")
	r.add("HKEYS", hkeys, 2, "readonly", oneKey, hash, "2.0.0",
		"Returns all fields in a hash.")
	r.add("HVALS", hvals, 2, "readonly", oneKey, hash, "2.0.0",
		"Returns all values in a hash.")
	r.add("HGETALL", hgetAll, 2, "readonly", oneKey, hash, "2.0.0",
		"Returns all fields and values in a hash.")
	r.add("HINCRBY", hincrBy, 4, "write denyoom fast", oneKey, hash, "2.0.0",
		"Increments the integer value of a field in a hash by a number. Uses 0 as initial value if the field doesn't exist.")
	r.add("HINCRBYFLOAT", hincrByFloat, 4, "write denyoom fast", oneKey, hash, "2.6.0",
		"Increments the floating point value of a field by a number. Uses 0 as initial value if the field doesn't exist.")
	r.add("HSTRLEN", hstrlen, 3, "readonly fast", oneKey, hash, "3.2.0",
		"Returns the length of the value of a field.")
	r.add("HRANDFIELD", hrandField, -2, "readonly random", oneKey, hash, "6.2.0",
		"Returns one or more random fields from a hash.")
	r.add("HSCAN", hscan, -3, "readonly random", oneKey, hash, "2.8.0",
		"Iterates over fields and values of a hash.")
}

func newHash() *datatype.Hash {
	return datatype.NewHash()
}

// hset serves HSET and HMSET
func hset(ctx *Context) resp.Value {
	key := ctx.args[0]
	if len(ctx.args)%2 != 1 {
		return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(ctx.name))
	}
	h, err := obtain(ctx, key, newHash)
	if err != nil {
		return errorReply(err)
	}
	added := 0
	for i := 1; i < len(ctx.args); i += 2 {
		if h.Set(ctx.args[i], ctx.args[i+1]) {
			added++
		}
	}
	ctx.written(key, "hset", notifyHash)
	if ctx.name == "HMSET" {
		return resp.MakeOK()
	}
	return intReply(added)
}

func hsetNX(ctx *Context) resp.Value {
	key, field := ctx.args[0], ctx.args[1]
	h, err := obtain(ctx, key, newHash)
	if err != nil {
		return errorReply(err)
	}
	if _, ok := h.Get(field); ok {
		return resp.MakeInteger(0)
	}
	h.Set(field, ctx.args[2])
	ctx.written(key, "hset", notifyHash)
	return resp.MakeInteger(1)
}

func hget(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil || !ok {
		return nilOrError(err)
	}
	return nilOr(h.Get(ctx.args[1]))
}

func hmget(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	fields := ctx.args[1:]
	out := make([]resp.Value, len(fields))
	for i, f := range fields {
		if !ok {
			out[i] = resp.MakeNilBulkString()
			continue
		}
		out[i] = nilOr(h.Get(f))
	}
	return resp.MakeArray(out)
}

func hdel(ctx *Context) resp.Value {
	key := ctx.args[0]
	h, ok, err := lookupAs[*datatype.Hash](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := 0
	for _, f := range ctx.args[1:] {
		if h.Delete(f) {
			n++
		}
	}
	if n > 0 {
		ctx.written(key, "hdel", notifyHash)
	}
	return intReply(n)
}

func hexists(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	_, found := h.Get(ctx.args[1])
	return boolInt(found)
}

func hlen(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(h.Len())
}

func hkeys(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeArray(nil)
	}
	return bulks(h.Fields())
}

func hvals(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeArray(nil)
	}
	pairs := h.Pairs()
	vals := make([]string, 0, len(pairs)/2)
	for i := 1; i < len(pairs); i += 2 {
		vals = append(vals, pairs[i])
	}
	return bulks(vals)
}

func hgetAll(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeMap(nil)
	}
	return resp.MakeMap(bulks(h.Pairs()).Array)
}

func hincrBy(ctx *Context) resp.Value {
	key := ctx.args[0]
	delta, err := parseInt(ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	h, err := obtain(ctx, key, newHash)
	if err != nil {
		return errorReply(err)
	}
	n, err := h.IncrBy(ctx.args[1], delta)
	if err != nil {
		dropIfEmpty(ctx, key, h)
		return errorReply(err)
	}
	ctx.written(key, "hincrby", notifyHash)
	return resp.MakeInteger(n)
}

func hincrByFloat(ctx *Context) resp.Value {
	key := ctx.args[0]
	delta, err := parseFloat(ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	h, err := obtain(ctx, key, newHash)
	if err != nil {
		return errorReply(err)
	}
	out, err := h.IncrByFloat(ctx.args[1], delta)
	if err != nil {
		dropIfEmpty(ctx, key, h)
		return errorReply(err)
	}
	ctx.written(key, "hincrbyfloat", notifyHash)
	return resp.MakeBulkString(out)
}

func hstrlen(ctx *Context) resp.Value {
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	v, _ := h.Get(ctx.args[1])
	return intReply(len(v))
}

func hrandField(ctx *Context) resp.Value {
	if len(ctx.args) > 3 {
		return errorReply(errSyntax)
	}
	withCount := len(ctx.args) > 1
	count := int64(1)
	if withCount {
		var err error
		if count, err = parseSampleCount(ctx.args[1]); err != nil {
			return errorReply(err)
		}
	}
	withValues := false
	if len(ctx.args) == 3 {
		if strings.ToUpper(ctx.args[2]) != "WITHVALUES" {
			return errorReply(errSyntax)
		}
		withValues = true
	}

	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if withCount {
			return resp.MakeArray(nil)
		}
		return resp.MakeNilBulkString()
	}

	fields := h.RandomFields(ctx.e.rng, count)
	if !withCount {
		return resp.MakeBulkString(fields[0])
	}
	if !withValues {
		return bulks(fields)
	}
	items := make([]resp.Value, 0, 2*len(fields))
	for _, f := range fields {
		v, _ := h.Get(f)
		items = append(items, resp.MakeBulkString(f), resp.MakeBulkString(v))
	}
	return pairReply(ctx, items)
}

func hscan(ctx *Context) resp.Value {
	cursor, err := parseCursor(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	opts, err := parseScanOptions(ctx, ctx.args[2:], false)
	if err != nil {
		return errorReply(err)
	}
	h, ok, err := lookupAs[*datatype.Hash](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return scanReply(0, nil)
	}

	fields := h.Fields()
	next, found := scanItems(fields, cursor, opts)
	out := make([]string, 0, 2*len(found))
	for _, i := range found {
		v, _ := h.Get(fields[i])
		out = append(out, fields[i], v)
	}
	return scanReply(next, out)
}
