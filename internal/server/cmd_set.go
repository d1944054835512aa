package server

import (
	"math"
	"strings"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerSetCommands(r *registry) {
	set := storage.KindSet
	r.add("SADD", sadd, -3, "write denyoom fast", oneKey, set, "1.0.0",
		"Adds one or more members to a set. Creates the key if it doesn't exist.")
	r.add("SREM", srem, -3, "write fast", oneKey, set, "1.0.0",
		"Removes one or more members from a set. Deletes the set if the last member was removed.")
	r.add("SMEMBERS", smembers, 2, "readonly", oneKey, set, "1.0.0",
		"Returns all members of a set.")
	r.add("SISMEMBER", sismember, 3, "readonly fast", oneKey, set, "1.0.0",
		"Determines whether a member belongs to a set.")
	r.add("SMISMEMBER", smismember, -3, "readonly fast", oneKey, set, "6.2.0",
		"Determines whether multiple members belong to a set.")
	r.add("SCARD", scard, 2, "readonly fast", oneKey, set, "1.0.0",
		"Returns the number of members in a set.")
	r.add("SPOP", spop, -2, "write random fast", oneKey, set, "1.0.0",
		"Returns one or more random members from a set after removing them. Deletes the set if the last member was popped.")
	r.add("SRANDMEMBER", srandMember, -2, "readonly random", oneKey, set, "1.0.0",
		"Get one or multiple random members from a set")
	r.add("SMOVE", smove, 4, "write fast", twoKeys, set, "1.0.0",
		"Moves a member from one set to another.")
	r.add("SUNION", setAlgebra, -2, "readonly", allKeys, set, "1.0.0",
		"Returns the union of multiple sets.")
	r.add("SINTER", setAlgebra, -2, "readonly", allKeys, set, "1.0.0",
		"Returns the intersect of multiple sets.")
	r.add("SDIFF", setAlgebra, -2, "readonly", allKeys, set, "1.0.0",
		"Returns the difference of multiple sets.")
	r.add("SUNIONSTORE", setAlgebraStore, -3, "write denyoom", allKeys, anyKind, "1.0.0",
		"Stores the union of multiple sets in a key.")
	r.add("SINTERSTORE", setAlgebraStore, -3, "write denyoom", allKeys, anyKind, "1.0.0",
		"Stores the intersect of multiple sets in a key.")
	r.add("SDIFFSTORE", setAlgebraStore, -3, "write denyoom", allKeys, anyKind, "1.0.0",
		"Stores the difference of multiple sets in a key.")
	r.add("SINTERCARD", sinterCard, -3, "readonly movablekeys", noKeys, anyKind, "7.0.0",
		"Returns the number of members of the intersect of multiple sets.")
	r.add("SSCAN", sscan, -3, "readonly random", oneKey, set, "2.8.0",
		"Iterates over members of a set.")
}

func newSet() *datatype.Set {
	return datatype.NewSet()
}

func sadd(ctx *Context) resp.Value {
	key := ctx.args[0]
	s, err := obtain(ctx, key, newSet)
	if err != nil {
		return errorReply(err)
	}
	n := s.Add(ctx.args[1:]...)
	if n > 0 {
		ctx.written(key, "sadd", notifySet)
	}
	return intReply(n)
}

func srem(ctx *Context) resp.Value {
	key := ctx.args[0]
	s, ok, err := lookupAs[*datatype.Set](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := s.Remove(ctx.args[1:]...)
	if n > 0 {
		ctx.written(key, "srem", notifySet)
	}
	return intReply(n)
}

func smembers(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.Set](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeSet(nil)
	}
	return resp.MakeSet(s.Members())
}

func sismember(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.Set](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	return boolInt(ok && s.Has(ctx.args[1]))
}

func smismember(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.Set](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	members := ctx.args[1:]
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = boolInt(ok && s.Has(m))
	}
	return resp.MakeArray(out)
}

func scard(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.Set](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(s.Len())
}

func spop(ctx *Context) resp.Value {
	key := ctx.args[0]
	if len(ctx.args) > 2 {
		return errorReply(errSyntax)
	}
	withCount := len(ctx.args) == 2
	count := int64(1)
	if withCount {
		if !ctx.option("COUNT") {
			return errorReply(errSyntax)
		}
		var err error
		if count, err = parsePositive(ctx.args[1]); err != nil {
			return errorReply(err)
		}
	}

	s, ok, err := lookupAs[*datatype.Set](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if withCount {
			return resp.MakeSet(nil)
		}
		return resp.MakeNilBulkString()
	}

	popped := s.Pop(ctx.e.rng, count)
	if len(popped) > 0 {
		ctx.written(key, "spop", notifySet)
	}
	if withCount {
		return resp.MakeSet(popped)
	}
	return resp.MakeBulkString(popped[0])
}

func srandMember(ctx *Context) resp.Value {
	if len(ctx.args) > 2 {
		return errorReply(errSyntax)
	}
	withCount := len(ctx.args) == 2
	count := int64(1)
	if withCount {
		var err error
		if count, err = parseSampleCount(ctx.args[1]); err != nil {
			return errorReply(err)
		}
	}

	s, ok, err := lookupAs[*datatype.Set](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if withCount {
			return resp.MakeArray(nil)
		}
		return resp.MakeNilBulkString()
	}
	picked := s.RandomMembers(ctx.e.rng, count)
	if withCount {
		return bulks(picked)
	}
	return resp.MakeBulkString(picked[0])
}

func smove(ctx *Context) resp.Value {
	srcKey, dstKey, member := ctx.args[0], ctx.args[1], ctx.args[2]
	src, ok, err := lookupAs[*datatype.Set](ctx, srcKey)
	if err != nil {
		return errorReply(err)
	}
	if !ok || !src.Has(member) {
		return resp.MakeInteger(0)
	}
	if srcKey == dstKey {
		return resp.MakeInteger(1)
	}

	dst, err := obtain(ctx, dstKey, newSet)
	if err != nil {
		return errorReply(err)
	}
	src.Remove(member)
	ctx.written(srcKey, "srem", notifySet)
	if dst.Add(member) > 0 {
		ctx.written(dstKey, "sadd", notifySet)
	}
	return resp.MakeInteger(1)
}

// loadSets returns the sets at keys, nil for missing ones
func loadSets(ctx *Context, keys []string) ([]*datatype.Set, error) {
	sets := make([]*datatype.Set, len(keys))
	for i, key := range keys {
		s, ok, err := lookupAs[*datatype.Set](ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			sets[i] = s
		}
	}
	return sets, nil
}

// combine applies the set operation named by the command prefix
func combine(op string, sets []*datatype.Set) *datatype.Set {
	switch {
	case strings.HasPrefix(op, "SUNION"):
		return datatype.Union(sets)
	case strings.HasPrefix(op, "SINTER"):
		return datatype.Inter(sets)
	}
	return datatype.Diff(sets)
}

// setAlgebra serves SUNION, SINTER and SDIFF
func setAlgebra(ctx *Context) resp.Value {
	sets, err := loadSets(ctx, ctx.args)
	if err != nil {
		return errorReply(err)
	}
	return resp.MakeSet(combine(ctx.name, sets).Members())
}

// setAlgebraStore serves SUNIONSTORE, SINTERSTORE and SDIFFSTORE
func setAlgebraStore(ctx *Context) resp.Value {
	dest := ctx.args[0]
	sets, err := loadSets(ctx, ctx.args[1:])
	if err != nil {
		return errorReply(err)
	}
	result := combine(ctx.name, sets)
	return storeResult(ctx, dest, result, strings.ToLower(ctx.name), notifySet)
}

// storeResult replaces dest with the result of a STORE command, or deletes dest
// when the result is empty. It replies with the stored cardinality
func storeResult(ctx *Context, dest string, v interface {
	storage.Value
	Len() int
}, event string, class notifyFlags) resp.Value {
	if v.Empty() {
		if ctx.db.Delete(dest) {
			ctx.written(dest, "del", notifyGeneric)
		}
		return resp.MakeInteger(0)
	}
	if err := ctx.db.Set(dest, v, false); err != nil {
		return errorReply(err)
	}
	ctx.written(dest, event, class)
	return intReply(v.Len())
}

// parseLimit parses the LIMIT option of SINTERCARD and ZINTERCARD
func parseLimit(args []string) (int, error) {
	limit := 0
	p := newArgParser(args)
	for p.more() {
		if p.next() != "LIMIT" {
			return 0, errSyntax
		}
		n, err := p.int()
		if err != nil {
			return 0, err
		}
		if n < 0 {
			return 0, replyError("ERR LIMIT can't be negative")
		}
		limit = int(min(n, math.MaxInt32))
	}
	return limit, nil
}

func sinterCard(ctx *Context) resp.Value {
	keys, rest, err := parseNumKeys(ctx.args)
	if err != nil {
		return errorReply(err)
	}
	limit, err := parseLimit(rest)
	if err != nil {
		return errorReply(err)
	}
	sets, err := loadSets(ctx, keys)
	if err != nil {
		return errorReply(err)
	}
	n := datatype.Inter(sets).Len()
	if limit > 0 {
		n = min(n, limit)
	}
	return intReply(n)
}

func sscan(ctx *Context) resp.Value {
	cursor, err := parseCursor(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	opts, err := parseScanOptions(ctx, ctx.args[2:], false)
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.Set](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return scanReply(0, nil)
	}

	members := s.Members()
	next, found := scanItems(members, cursor, opts)
	out := make([]string, len(found))
	for i, idx := range found {
		out[i] = members[idx]
	}
	return scanReply(next, out)
}
