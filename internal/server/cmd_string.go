package server

import (
	"math"
	"strings"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerStringCommands(r *registry) {
	str := storage.KindString
	r.add("GET", get, 2, "readonly fast", oneKey, str, "1.0.0",
		"Returns the string value of a key.")
	r.add("SET", set, -3, "write denyoom", oneKey, anyKind, "1.0.0",
		"Sets the string value of a key, ignoring its type. The key is created if it doesn't exist.")
	r.add("SETNX", setNX, 3, "write denyoom fast", oneKey, anyKind, "1.0.0",
		"Set the string value of a key only when the key doesn't exist.")
	r.add("SETEX", setEX, 4, "write denyoom", oneKey, anyKind, "2.0.0",
		"Sets the string value and expiration time of a key. Creates the key if it doesn't exist.")
	r.add("PSETEX", setEX, 4, "write denyoom", oneKey, anyKind, "2.6.0",
		"Sets both string value and expiration time in milliseconds of a key.")
	r.add("GETSET", getSet, 3, "write denyoom fast", oneKey, str, "1.0.0",
		"Returns the previous string value of a key after setting it to a new value.")
	r.add("GETDEL", getDel, 2, "write fast", oneKey, str, "6.2.0",
		"Returns the string value of a key after deleting the key.")
	r.add("GETEX", getEx, -2, "write fast", oneKey, str, "6.2.0",
		"Returns the string value of a key after setting its expiration time.")
	r.add("MGET", mget, -2, "readonly fast", allKeys, anyKind, "1.0.0",
		"Atomically returns the string values of one or more keys.")
	r.add("MSET", mset, -3, "write denyoom", pairKeys, anyKind, "1.0.1",
		"Atomically creates or modifies the string values of one or more keys.")
	r.add("MSETNX", msetNX, -3, "write denyoom", pairKeys, anyKind, "1.0.1",
		"Atomically modifies the string values of one or more keys only when all keys don't exist.")
	r.add("APPEND", appendCommand, 3, "write denyoom fast", oneKey, str, "2.0.0",
		"Appends a string to the value of a key. Creates the key if it doesn't exist.")
	r.add("STRLEN", strlen, 2, "readonly fast", oneKey, str, "2.2.0",
		"Returns the length of a string value.")
	r.add("INCR", incr, 2, "write denyoom fast", oneKey, str, "1.0.0",
		"Increments the integer value of a key by one. Uses 0 as initial value if the key doesn't exist.")
	r.add("DECR", incr, 2, "write denyoom fast", oneKey, str, "1.0.0",
		"Decrements the integer value of a key by one. Uses 0 as initial value if the key doesn't exist.")
	r.add("INCRBY", incr, 3, "write denyoom fast", oneKey, str, "1.0.0",
		"Increments the integer value of a key by a number. Uses 0 as initial value if the key doesn't exist.")
	r.add("DECRBY", incr, 3, "write denyoom fast", oneKey, str, "1.0.0",
		"Decrements a number from the integer value of a key. Uses 0 as initial value if the key doesn't exist.")
	r.add("INCRBYFLOAT", incrByFloat, 3, "write denyoom fast", oneKey, str, "2.6.0",
		"Increment the floating point value of a key by a number. Uses 0 as initial value if the key doesn't exist.")
	r.add("GETRANGE", getRange, 4, "readonly", oneKey, str, "2.4.0",
		"Returns a substring of the string stored at a key.")
	r.add("SUBSTR", getRange, 4, "readonly", oneKey, str, "1.0.0",
		"Returns a substring from a string value.")
	r.add("SETRANGE", setRange, 4, "write denyoom", oneKey, str, "2.2.0",
		"Overwrites a part of a string value with another by an offset. Creates the key if it doesn't exist.")
	r.add("LCS", lcs, -3, "readonly", twoKeys, anyKind, "7.0.0",
		"Finds the longest common substring.")
}

func get(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	return nilOr(stringOf(s), ok)
}

func stringOf(s *datatype.String) string {
	if s == nil {
		return ""
	}
	return s.String()
}

// storeString replaces whatever key holds with a string, clearing its TTL unless keepTTL
func storeString(ctx *Context, key, value string, keepTTL bool) {
	if err := ctx.db.Set(key, datatype.NewString([]byte(value)), keepTTL); err != nil {
		panic(err)
	}
}

// expiryOption is a parsed EX, PX, EXAT or PXAT argument
type expiryOption struct {
	set  bool
	atMs int64
}

// parseExpiry converts the value of an expiry option into an absolute deadline
func parseExpiry(ctx *Context, opt, arg string) (expiryOption, error) {
	n, err := parseInt(arg)
	if err != nil {
		return expiryOption{}, err
	}
	invalid := formatted(errExpireTime, strings.ToLower(ctx.name))
	if n <= 0 {
		return expiryOption{}, invalid
	}
	if opt == "EX" || opt == "EXAT" {
		if n > math.MaxInt64/1000 {
			return expiryOption{}, invalid
		}
		n *= 1000
	}
	if opt == "EX" || opt == "PX" {
		now := ctx.Now()
		if n > math.MaxInt64-now {
			return expiryOption{}, invalid
		}
		n += now
	}
	return expiryOption{set: true, atMs: n}, nil
}

func set(ctx *Context) resp.Value {
	key, value := ctx.args[0], ctx.args[1]
	var (
		nx, xx, withGet, keepTTL bool
		exp                      expiryOption
	)

	p := newArgParser(ctx.args[2:])
	for p.more() {
		opt := p.next()
		if !ctx.option(opt) {
			return errorReply(errSyntax)
		}
		switch opt {
		case "NX":
			if xx {
				return errorReply(errSyntax)
			}
			nx = true
		case "XX":
			if nx {
				return errorReply(errSyntax)
			}
			xx = true
		case "GET":
			withGet = true
		case "KEEPTTL":
			if exp.set {
				return errorReply(errSyntax)
			}
			keepTTL = true
		case "EX", "PX", "EXAT", "PXAT":
			if exp.set || keepTTL {
				return errorReply(errSyntax)
			}
			arg, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			if exp, err = parseExpiry(ctx, opt, arg); err != nil {
				return errorReply(err)
			}
		default:
			return errorReply(errSyntax)
		}
	}

	var (
		old    *datatype.String
		hadOld bool
	)
	if withGet {
		var err error
		old, hadOld, err = lookupAs[*datatype.String](ctx, key)
		if err != nil {
			return errorReply(err)
		}
	}

	skipped := resp.MakeNilBulkString()
	if withGet {
		skipped = nilOr(stringOf(old), hadOld)
	}
	present := ctx.db.Exists(key)
	if (nx && present) || (xx && !present) {
		return skipped
	}

	storeString(ctx, key, value, keepTTL)
	ctx.written(key, "set", notifyString)
	if exp.set {
		ctx.db.SetExpire(key, exp.atMs)
		ctx.written(key, "expire", notifyGeneric)
	}

	if withGet {
		return skipped
	}
	return resp.MakeOK()
}

func setNX(ctx *Context) resp.Value {
	key := ctx.args[0]
	if ctx.db.Exists(key) {
		return resp.MakeInteger(0)
	}
	storeString(ctx, key, ctx.args[1], false)
	ctx.written(key, "set", notifyString)
	return resp.MakeInteger(1)
}

// setEX serves SETEX and PSETEX
func setEX(ctx *Context) resp.Value {
	key := ctx.args[0]
	opt := "EX"
	if ctx.name == "PSETEX" {
		opt = "PX"
	}
	exp, err := parseExpiry(ctx, opt, ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	storeString(ctx, key, ctx.args[2], false)
	ctx.db.SetExpire(key, exp.atMs)
	ctx.written(key, "set", notifyString)
	ctx.written(key, "expire", notifyGeneric)
	return resp.MakeOK()
}

func getSet(ctx *Context) resp.Value {
	key := ctx.args[0]
	old, ok, err := lookupAs[*datatype.String](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	reply := nilOr(stringOf(old), ok)
	storeString(ctx, key, ctx.args[1], false)
	ctx.written(key, "set", notifyString)
	return reply
}

func getDel(ctx *Context) resp.Value {
	key := ctx.args[0]
	s, ok, err := lookupAs[*datatype.String](ctx, key)
	if err != nil || !ok {
		return nilOrError(err)
	}
	ctx.db.Delete(key)
	ctx.written(key, "del", notifyGeneric)
	return resp.MakeBulkString(s.String())
}

// nilOrError returns the error reply for err, or the null bulk string
func nilOrError(err error) resp.Value {
	if err != nil {
		return errorReply(err)
	}
	return resp.MakeNilBulkString()
}

func getEx(ctx *Context) resp.Value {
	key := ctx.args[0]
	var (
		exp     expiryOption
		persist bool
	)
	p := newArgParser(ctx.args[1:])
	for p.more() {
		switch opt := p.next(); opt {
		case "EX", "PX", "EXAT", "PXAT":
			if exp.set || persist {
				return errorReply(errSyntax)
			}
			arg, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			if exp, err = parseExpiry(ctx, opt, arg); err != nil {
				return errorReply(err)
			}
		case "PERSIST":
			if exp.set {
				return errorReply(errSyntax)
			}
			persist = true
		default:
			return errorReply(errSyntax)
		}
	}

	s, ok, err := lookupAs[*datatype.String](ctx, key)
	if err != nil || !ok {
		return nilOrError(err)
	}
	reply := resp.MakeBulkString(s.String())
	switch {
	case exp.set:
		ctx.db.SetExpire(key, exp.atMs)
		if exp.atMs <= ctx.Now() {
			ctx.written(key, "del", notifyGeneric)
		} else {
			ctx.written(key, "expire", notifyGeneric)
		}
	case persist:
		if ctx.db.Persist(key) {
			ctx.written(key, "persist", notifyGeneric)
		}
	}
	return reply
}

func mget(ctx *Context) resp.Value {
	out := make([]resp.Value, len(ctx.args))
	for i, key := range ctx.args {
		v, ok := ctx.db.Get(key)
		ctx.e.countLookup(ok)
		s, isString := v.(*datatype.String)
		if !ok || !isString {
			out[i] = resp.MakeNilBulkString()
			continue
		}
		out[i] = resp.MakeBulkString(s.String())
	}
	return resp.MakeArray(out)
}

func mset(ctx *Context) resp.Value {
	if len(ctx.args)%2 != 0 {
		return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(ctx.name))
	}
	for i := 0; i < len(ctx.args); i += 2 {
		storeString(ctx, ctx.args[i], ctx.args[i+1], false)
		ctx.written(ctx.args[i], "set", notifyString)
	}
	return resp.MakeOK()
}

func msetNX(ctx *Context) resp.Value {
	if len(ctx.args)%2 != 0 {
		return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(ctx.name))
	}
	for i := 0; i < len(ctx.args); i += 2 {
		if ctx.db.Exists(ctx.args[i]) {
			return resp.MakeInteger(0)
		}
	}
	mset(ctx)
	return resp.MakeInteger(1)
}

func appendCommand(ctx *Context) resp.Value {
	key := ctx.args[0]
	s, err := obtain(ctx, key, func() *datatype.String { return datatype.NewString(nil) })
	if err != nil {
		return errorReply(err)
	}
	n, err := s.Append([]byte(ctx.args[1]))
	if err != nil {
		return errorReply(err)
	}
	ctx.written(key, "append", notifyString)
	return intReply(n)
}

func strlen(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(s.Len())
}

// incr serves INCR, DECR, INCRBY and DECRBY
func incr(ctx *Context) resp.Value {
	key := ctx.args[0]
	delta := int64(1)
	if len(ctx.args) == 2 {
		n, err := parseInt(ctx.args[1])
		if err != nil {
			return errorReply(err)
		}
		delta = n
	}
	if strings.HasPrefix(ctx.name, "DECR") {
		if delta == math.MinInt64 {
			return resp.MakeError("ERR decrement would overflow")
		}
		delta = -delta
	}

	s, ok, err := lookupAs[*datatype.String](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		s = datatype.NewString([]byte("0"))
	}
	n, err := s.IncrBy(delta)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		storeString(ctx, key, s.String(), true)
	}
	ctx.written(key, "incrby", notifyString)
	return resp.MakeInteger(n)
}

func incrByFloat(ctx *Context) resp.Value {
	key := ctx.args[0]
	delta, err := parseFloat(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}

	s, ok, err := lookupAs[*datatype.String](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		s = datatype.NewString([]byte("0"))
	}
	out, err := s.IncrByFloat(delta)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		storeString(ctx, key, out, true)
	}
	ctx.written(key, "incrbyfloat", notifyString)
	return resp.MakeBulkString(out)
}

func getRange(ctx *Context) resp.Value {
	start, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	end, err := parseInt(ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeBulkString("")
	}
	return resp.MakeBulkString(string(s.GetRange(start, end)))
}

func setRange(ctx *Context) resp.Value {
	key, value := ctx.args[0], ctx.args[2]
	offset, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	if offset < 0 {
		return errorReply(errOffsetRange)
	}
	if offset+int64(len(value)) > datatype.MaxStringLen {
		return errorReply(datatype.ErrStringTooLong)
	}

	s, ok, err := lookupAs[*datatype.String](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if value == "" {
			return resp.MakeInteger(0)
		}
		s = datatype.NewString(nil)
		if err := ctx.db.Set(key, s, false); err != nil {
			return errorReply(err)
		}
	}
	if value == "" {
		return intReply(s.Len())
	}
	n, err := s.SetRange(offset, []byte(value))
	if err != nil {
		return errorReply(err)
	}
	ctx.written(key, "setrange", notifyString)
	return intReply(n)
}

func lcs(ctx *Context) resp.Value {
	var (
		wantLen, wantIdx, withMatchLen bool
		minLen                         int64
	)
	p := newArgParser(ctx.args[2:])
	for p.more() {
		switch p.next() {
		case "LEN":
			wantLen = true
		case "IDX":
			wantIdx = true
		case "WITHMATCHLEN":
			withMatchLen = true
		case "MINMATCHLEN":
			n, err := p.int()
			if err != nil {
				return errorReply(err)
			}
			minLen = max(n, 0)
		default:
			return errorReply(errSyntax)
		}
	}
	if wantLen && wantIdx {
		return resp.MakeError("ERR If you want both the length and indexes, please just use IDX.")
	}

	var inputs [2][]byte
	for i := range inputs {
		s, ok, err := lookupAs[*datatype.String](ctx, ctx.args[i])
		if err != nil {
			return resp.MakeError("ERR The specified keys must contain string values")
		}
		if ok {
			inputs[i] = s.Bytes()
		}
	}

	common, matches := datatype.LCS(inputs[0], inputs[1], int(min(minLen, math.MaxInt32)))
	switch {
	case wantLen:
		return intReply(len(common))
	case !wantIdx:
		return resp.MakeBulkString(string(common))
	}

	out := make([]resp.Value, len(matches))
	for i, m := range matches {
		item := []resp.Value{
			resp.MakeArray([]resp.Value{intReply(m.AStart), intReply(m.AEnd)}),
			resp.MakeArray([]resp.Value{intReply(m.BStart), intReply(m.BEnd)}),
		}
		if withMatchLen {
			item = append(item, intReply(m.Len()))
		}
		out[i] = resp.MakeArray(item)
	}
	return resp.MakeMap([]resp.Value{
		resp.MakeBulkString("matches"), resp.MakeArray(out),
		resp.MakeBulkString("len"), intReply(len(common)),
	})
}
