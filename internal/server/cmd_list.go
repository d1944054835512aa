package server

import (
	"math"
	"strings"
	"time"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerListCommands(r *registry) {
	list := storage.KindList
	r.add("LPUSH", push, -3, "write denyoom fast", oneKey, list, "1.0.0",
		"Prepends one or more elements to a list. Creates the key if it doesn't exist.")
	r.add("RPUSH", push, -3, "write denyoom fast", oneKey, list, "1.0.0",
		"Appends one or more elements to a list. Creates the key if it doesn't exist.")
	r.add("LPUSHX", push, -3, "write denyoom fast", oneKey, list, "2.2.0",
		"Prepends one or more elements to a list only when the list exists.")
	r.add("RPUSHX", push, -3, "write denyoom fast", oneKey, list, "2.2.0",
		"Appends an element to a list only when the list exists.")
	r.add("LPOP", pop, -2, "write fast", oneKey, list, "1.0.0",
		"Returns the first elements in a list after removing it. Deletes the list if the last element was popped.")
	r.add("RPOP", pop, -2, "write fast", oneKey, list, "1.0.0",
		"Returns and removes the last elements of a list. Deletes the list if the last element was popped.")
	r.add("LLEN", llen, 2, "readonly fast", oneKey, list, "1.0.0",
		"Returns the length of a list.")
	r.add("LRANGE", lrange, 4, "readonly", oneKey, list, "1.0.0",
		"Returns a range of elements from a list.")
	r.add("LINDEX", lindex, 3, "readonly", oneKey, list, "1.0.0",
		"Returns an element from a list by its index.")
	r.add("LSET", lset, 4, "write denyoom", oneKey, list, "1.0.0",
		"Sets the value of an element in a list by its index.")
	r.add("LINSERT", linsert, 5, "write denyoom", oneKey, list, "2.2.0",
		"Inserts an element before or after another element in a list.")
	r.add("LREM", lrem, 4, "write", oneKey, list, "1.0.0",
		"Removes elements from a list. Deletes the list if the last element was removed.")
	r.add("LTRIM", ltrim, 4, "write", oneKey, list, "1.0.0",
		"Removes elements from both ends a list. Deletes the list if all elements were trimmed.")
	r.add("LPOS", lpos, -3, "readonly", oneKey, list, "6.0.6",
		"Returns the index of matching elements in a list.")
	r.add("RPOPLPUSH", lmove, 3, "write denyoom", twoKeys, list, "1.2.0",
		"Returns the last element of a list after removing and pushing it to another list.")
	r.add("LMOVE", lmove, 5, "write denyoom", twoKeys, list, "6.2.0",
		"Returns an element after popping it from one list and pushing it to another.")
	r.add("LMPOP", lmpop, -4, "write movablekeys", noKeys, anyKind, "7.0.0",
		"Returns multiple elements from a list after removing them.")
	r.add("BLPOP", bpop, -3, "write blocking", keysThenTimeout, anyKind, "2.0.0",
		"Removes and returns the first element in a list. Blocks until an element is available otherwise.")
	r.add("BRPOP", bpop, -3, "write blocking", keysThenTimeout, anyKind, "2.0.0",
		"Removes and returns the last element in a list. Blocks until an element is available otherwise.")
	r.add("BRPOPLPUSH", lmove, 4, "write denyoom blocking", twoKeys, list, "2.2.0",
		"Pops an element from a list, pushes it to another list and returns it.")
	r.add("BLMOVE", lmove, 6, "write denyoom blocking", twoKeys, list, "6.2.0",
		"Pops an element from a list, pushes it to another list and returns it.")
	r.add("BLMPOP", lmpop, -5, "write blocking movablekeys", noKeys, anyKind, "7.0.0",
		"Pops the first element from one of multiple lists. Blocks until an element is available otherwise.")
}

// listEnd is the LEFT or RIGHT side of a list
type listEnd bool

const (
	left  listEnd = false
	right listEnd = true
)

func parseEnd(s string) (listEnd, error) {
	switch strings.ToUpper(s) {
	case "LEFT":
		return left, nil
	case "RIGHT":
		return right, nil
	}
	return left, errSyntax
}

func (e listEnd) pushEvent() string {
	if e == right {
		return "rpush"
	}
	return "lpush"
}

func (e listEnd) popEvent() string {
	if e == right {
		return "rpop"
	}
	return "lpop"
}

func newList() *datatype.List {
	return datatype.NewList()
}

// push serves LPUSH, RPUSH, LPUSHX and RPUSHX
func push(ctx *Context) resp.Value {
	key := ctx.args[0]
	side := listEnd(ctx.name[0] == 'R')

	var (
		l   *datatype.List
		err error
	)
	if strings.HasSuffix(ctx.name, "X") {
		var ok bool
		l, ok, err = lookupAs[*datatype.List](ctx, key)
		if err == nil && !ok {
			return resp.MakeInteger(0)
		}
	} else {
		l, err = obtain(ctx, key, newList)
	}
	if err != nil {
		return errorReply(err)
	}

	var n int
	if side == right {
		n = l.PushBack(ctx.args[1:]...)
	} else {
		n = l.PushFront(ctx.args[1:]...)
	}
	ctx.written(key, side.pushEvent(), notifyList)
	return intReply(n)
}

// pop serves LPOP and RPOP
func pop(ctx *Context) resp.Value {
	key := ctx.args[0]
	side := listEnd(ctx.name == "RPOP")
	if len(ctx.args) > 2 {
		return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(ctx.name))
	}

	count, withCount := int64(1), len(ctx.args) == 2
	if withCount {
		if !ctx.option("COUNT") {
			return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(ctx.name))
		}
		var err error
		if count, err = parsePositive(ctx.args[1]); err != nil {
			return errorReply(err)
		}
	}

	l, ok, err := lookupAs[*datatype.List](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if withCount {
			return resp.MakeNilArray()
		}
		return resp.MakeNilBulkString()
	}

	items := l.Pop(int(min(count, math.MaxInt32)), bool(side))
	if len(items) > 0 {
		ctx.written(key, side.popEvent(), notifyList)
	}
	if withCount {
		return bulks(items)
	}
	return resp.MakeBulkString(items[0])
}

func llen(ctx *Context) resp.Value {
	l, ok, err := lookupAs[*datatype.List](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(l.Len())
}

func lrange(ctx *Context) resp.Value {
	start, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	stop, err := parseInt(ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	l, ok, err := lookupAs[*datatype.List](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeArray(nil)
	}
	return bulks(l.Range(start, stop))
}

func lindex(ctx *Context) resp.Value {
	idx, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	l, ok, err := lookupAs[*datatype.List](ctx, ctx.args[0])
	if err != nil || !ok {
		return nilOrError(err)
	}
	return nilOr(l.Index(idx))
}

func lset(ctx *Context) resp.Value {
	key := ctx.args[0]
	idx, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	l, ok, err := lookupAs[*datatype.List](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return errorReply(errNoSuchKey)
	}
	if err := l.Set(idx, ctx.args[2]); err != nil {
		return errorReply(err)
	}
	ctx.written(key, "lset", notifyList)
	return resp.MakeOK()
}

func linsert(ctx *Context) resp.Value {
	key := ctx.args[0]
	var after bool
	switch strings.ToUpper(ctx.args[1]) {
	case "BEFORE":
	case "AFTER":
		after = true
	default:
		return errorReply(errSyntax)
	}

	l, ok, err := lookupAs[*datatype.List](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := l.Insert(ctx.args[2], ctx.args[3], after)
	if n > 0 {
		ctx.written(key, "linsert", notifyList)
	}
	return intReply(n)
}

func lrem(ctx *Context) resp.Value {
	key := ctx.args[0]
	count, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	l, ok, err := lookupAs[*datatype.List](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := l.Remove(count, ctx.args[2])
	if n > 0 {
		ctx.written(key, "lrem", notifyList)
	}
	return intReply(n)
}

func ltrim(ctx *Context) resp.Value {
	key := ctx.args[0]
	start, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	stop, err := parseInt(ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	l, ok, err := lookupAs[*datatype.List](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if ok {
		l.Trim(start, stop)
		ctx.written(key, "ltrim", notifyList)
	}
	return resp.MakeOK()
}

func lpos(ctx *Context) resp.Value {
	rank, count, maxLen := int64(1), int64(-1), int64(0)
	p := newArgParser(ctx.args[2:])
	for p.more() {
		opt := p.next()
		n, err := p.int()
		if err != nil {
			return errorReply(err)
		}
		switch opt {
		case "RANK":
			if n == 0 || n == math.MinInt64 {
				return resp.MakeError("ERR RANK can't be zero: use 1 to start from the first match, " +
					"2 from the second ... or use negative to start from the end of the list")
			}
			rank = n
		case "COUNT":
			if n < 0 {
				return resp.MakeError("ERR COUNT can't be negative")
			}
			count = n
		case "MAXLEN":
			if n < 0 {
				return resp.MakeError("ERR MAXLEN can't be negative")
			}
			maxLen = n
		default:
			return errorReply(errSyntax)
		}
	}

	l, ok, err := lookupAs[*datatype.List](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	withCount := count >= 0
	if !ok {
		if withCount {
			return resp.MakeArray(nil)
		}
		return resp.MakeNilBulkString()
	}

	limit := 1
	if withCount {
		limit = int(min(count, math.MaxInt32))
	}
	found := l.Pos(ctx.args[1], rank, limit, int(min(maxLen, math.MaxInt32)))
	if !withCount {
		if len(found) == 0 {
			return resp.MakeNilBulkString()
		}
		return intReply(found[0])
	}
	out := make([]resp.Value, len(found))
	for i, idx := range found {
		out[i] = intReply(idx)
	}
	return resp.MakeArray(out)
}

// lmove serves RPOPLPUSH, LMOVE, BRPOPLPUSH and BLMOVE
func lmove(ctx *Context) resp.Value {
	src, dst := ctx.args[0], ctx.args[1]
	from, to := right, left
	rest := ctx.args[2:]
	if ctx.name == "LMOVE" || ctx.name == "BLMOVE" {
		var err error
		if from, err = parseEnd(rest[0]); err != nil {
			return errorReply(err)
		}
		if to, err = parseEnd(rest[1]); err != nil {
			return errorReply(err)
		}
		rest = rest[2:]
	}

	blocking := ctx.name[0] == 'B'
	var timeout time.Duration
	if blocking {
		var err error
		if timeout, err = parseTimeout(rest[0]); err != nil {
			return errorReply(err)
		}
	}

	l, ok, err := lookupAs[*datatype.List](ctx, src)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if blocking {
			return ctx.block([]string{src}, timeout, resp.MakeNilBulkString())
		}
		return resp.MakeNilBulkString()
	}

	items := l.Pop(1, bool(from))
	ctx.written(src, from.popEvent(), notifyList)

	target, err := obtain(ctx, dst, newList)
	if err != nil {
		return errorReply(err)
	}
	if to == right {
		target.PushBack(items[0])
	} else {
		target.PushFront(items[0])
	}
	ctx.written(dst, to.pushEvent(), notifyList)
	return resp.MakeBulkString(items[0])
}

// bpop serves BLPOP and BRPOP
func bpop(ctx *Context) resp.Value {
	side := listEnd(ctx.name == "BRPOP")
	keys := ctx.args[:len(ctx.args)-1]
	timeout, err := parseTimeout(ctx.args[len(ctx.args)-1])
	if err != nil {
		return errorReply(err)
	}

	for _, key := range keys {
		l, ok, err := lookupAs[*datatype.List](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if !ok {
			continue
		}
		items := l.Pop(1, bool(side))
		ctx.written(key, side.popEvent(), notifyList)
		return bulks([]string{key, items[0]})
	}
	return ctx.block(keys, timeout, resp.MakeNilArray())
}

// parseNumKeys reads the numkeys argument and the keys following it
func parseNumKeys(args []string) ([]string, []string, error) {
	n, err := parseInt(args[0])
	if err != nil {
		return nil, nil, err
	}
	if n <= 0 {
		return nil, nil, errNumKeys
	}
	if n > int64(len(args)-1) {
		return nil, nil, errSyntax
	}
	return args[1 : 1+n], args[1+n:], nil
}

// lmpop serves LMPOP and BLMPOP
func lmpop(ctx *Context) resp.Value {
	args := ctx.args
	blocking := ctx.name == "BLMPOP"
	var timeout time.Duration
	if blocking {
		var err error
		if timeout, err = parseTimeout(args[0]); err != nil {
			return errorReply(err)
		}
		args = args[1:]
	}

	keys, rest, err := parseNumKeys(args)
	if err != nil {
		return errorReply(err)
	}
	if len(rest) == 0 {
		return errorReply(errSyntax)
	}
	side, err := parseEnd(rest[0])
	if err != nil {
		return errorReply(err)
	}
	count, seen := int64(1), false
	p := newArgParser(rest[1:])
	for p.more() {
		if p.next() != "COUNT" || seen {
			return errorReply(errSyntax)
		}
		seen = true
		if count, err = p.int(); err != nil {
			return errorReply(err)
		}
		if count <= 0 {
			return resp.MakeError("ERR count should be greater than 0")
		}
	}

	for _, key := range keys {
		l, ok, err := lookupAs[*datatype.List](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if !ok {
			continue
		}
		items := l.Pop(int(min(count, math.MaxInt32)), bool(side))
		ctx.written(key, side.popEvent(), notifyList)
		return resp.MakeArray([]resp.Value{resp.MakeBulkString(key), bulks(items)})
	}
	if blocking {
		return ctx.block(keys, timeout, resp.MakeNilArray())
	}
	return resp.MakeNilArray()
}
