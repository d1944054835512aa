package server

import (
	"math"
	"strconv"
	"strings"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/glob"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
	"github.com/pkg/errors"
)

func registerGenericCommands(r *registry) {
	r.add("DEL", del, -2, "write", allKeys, anyKind, "1.0.0",
		"Deletes one or more keys.")
	r.add("UNLINK", del, -2, "write fast", allKeys, anyKind, "4.0.0",
		"Asynchronously deletes one or more keys.")
	r.add("EXISTS", exists, -2, "readonly fast", allKeys, anyKind, "1.0.0",
		"Determines whether one or more keys exist.")
	r.add("TYPE", typeCommand, 2, "readonly fast", oneKey, anyKind, "1.0.0",
		"Determines the type of value stored at a key.")
	r.add("KEYS", keys, 2, "readonly", noKeys, anyKind, "1.0.0",
		"Returns all key names that match a pattern.")
	r.add("SCAN", scan, -2, "readonly", noKeys, anyKind, "2.8.0",
		"Iterates over the key names in the database.")
	r.add("RANDOMKEY", randomKey, 1, "readonly random", noKeys, anyKind, "1.0.0",
		"Returns a random key name from the database.")
	r.add("RENAME", rename, 3, "write", twoKeys, anyKind, "1.0.0",
		"Renames a key and overwrites the destination.")
	r.add("RENAMENX", renameNX, 3, "write fast", twoKeys, anyKind, "1.0.0",
		"Renames a key only when the target key name doesn't exist.")
	r.add("MOVE", move, 3, "write fast", oneKey, anyKind, "1.0.0",
		"Moves a key to another database.")
	r.add("COPY", copyCommand, -3, "write denyoom", twoKeys, anyKind, "6.2.0",
		"Copies the value of a key to a new key.")
	r.add("EXPIRE", expire, -3, "write fast", oneKey, anyKind, "1.0.0",
		"Sets the expiration time of a key in seconds.")
	r.add("PEXPIRE", expire, -3, "write fast", oneKey, anyKind, "2.6.0",
		"Sets the expiration time of a key in milliseconds.")
	r.add("EXPIREAT", expire, -3, "write fast", oneKey, anyKind, "1.2.0",
		"Sets the expiration time of a key to a Unix timestamp.")
	r.add("PEXPIREAT", expire, -3, "write fast", oneKey, anyKind, "2.6.0",
		"Sets the expiration time of a key to a Unix milliseconds timestamp.")
	r.add("TTL", ttl, 2, "readonly fast", oneKey, anyKind, "1.0.0",
		"Returns the expiration time in seconds of a key.")
	r.add("PTTL", ttl, 2, "readonly fast", oneKey, anyKind, "2.6.0",
		"Returns the expiration time in milliseconds of a key.")
	r.add("EXPIRETIME", expireTime, 2, "readonly fast", oneKey, anyKind, "7.0.0",
		"Returns the expiration time of a key as a Unix timestamp.")
	r.add("PEXPIRETIME", expireTime, 2, "readonly fast", oneKey, anyKind, "7.0.0",
		"Returns the expiration time of a key as a Unix milliseconds timestamp.")
	r.add("PERSIST", persist, 2, "write fast", oneKey, anyKind, "2.2.0",
		"Removes the expiration time of a key.")
	r.add("TOUCH", touch, -2, "readonly fast", allKeys, anyKind, "3.2.1",
		"Returns the number of existing keys out of those specified after updating the time they were last accessed.")
	r.add("OBJECT", object, -2, "readonly", keySpec{2, 2, 1}, anyKind, "2.2.3",
		"A container for object introspection commands.")
}

// del serves DEL and UNLINK. Removal is always synchronous
func del(ctx *Context) resp.Value {
	n := 0
	for _, key := range ctx.args {
		if ctx.db.Delete(key) {
			n++
			ctx.written(key, "del", notifyGeneric)
		}
	}
	return intReply(n)
}

func exists(ctx *Context) resp.Value {
	n := 0
	for _, key := range ctx.args {
		if ctx.db.Exists(key) {
			n++
		}
	}
	return intReply(n)
}

func typeCommand(ctx *Context) resp.Value {
	v, ok := ctx.db.Get(ctx.args[0])
	if !ok {
		return resp.MakeSimpleString("none")
	}
	return resp.MakeSimpleString(storage.TypeName(v))
}

func keys(ctx *Context) resp.Value {
	return bulks(ctx.db.KeysMatching(ctx.args[0]))
}

// parseCursor parses a SCAN family cursor
func parseCursor(s string) (uint64, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, replyError("ERR invalid cursor")
	}
	return n, nil
}

// scanOptions are the trailing MATCH, COUNT and TYPE arguments of the SCAN family
type scanOptions struct {
	match    string
	count    int
	typeName string
}

func parseScanOptions(ctx *Context, args []string, allowType bool) (scanOptions, error) {
	opts := scanOptions{count: 10}
	p := newArgParser(args)
	for p.more() {
		switch p.next() {
		case "MATCH":
			v, err := p.value()
			if err != nil {
				return opts, err
			}
			opts.match = v
		case "COUNT":
			n, err := p.int()
			if err != nil {
				return opts, err
			}
			if n < 1 {
				return opts, errSyntax
			}
			opts.count = int(min(n, math.MaxInt32))
		case "TYPE":
			if !allowType || !ctx.option("TYPE") {
				return opts, errSyntax
			}
			v, err := p.value()
			if err != nil {
				return opts, err
			}
			opts.typeName = strings.ToLower(v)
		default:
			return opts, errSyntax
		}
	}
	return opts, nil
}

func scan(ctx *Context) resp.Value {
	cursor, err := parseCursor(ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	opts, err := parseScanOptions(ctx, ctx.args[1:], true)
	if err != nil {
		return errorReply(err)
	}

	next, found := ctx.db.Scan(cursor, opts.count, func(key string, v storage.Value) bool {
		if opts.match != "" && !glob.Match(opts.match, key) {
			return false
		}
		return opts.typeName == "" || storage.TypeName(v) == opts.typeName
	})
	return scanReply(next, found)
}

func scanReply(next uint64, items []string) resp.Value {
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString(strconv.FormatUint(next, 10)),
		bulks(items),
	})
}

func randomKey(ctx *Context) resp.Value {
	// expired keys are dropped on the way, so the key count shrinks
	for ctx.db.Len() > 0 {
		key, ok := ctx.db.KeyAt(ctx.e.rng.Intn(ctx.db.Len()))
		if !ok {
			break
		}
		if ctx.db.Exists(key) {
			return resp.MakeBulkString(key)
		}
	}
	return resp.MakeNilBulkString()
}

func rename(ctx *Context) resp.Value {
	src, dst := ctx.args[0], ctx.args[1]
	if err := ctx.db.Rename(src, dst); err != nil {
		return errorReply(err)
	}
	if src != dst {
		ctx.written(src, "rename_from", notifyGeneric)
		ctx.written(dst, "rename_to", notifyGeneric)
	}
	return resp.MakeOK()
}

func renameNX(ctx *Context) resp.Value {
	src, dst := ctx.args[0], ctx.args[1]
	if !ctx.db.Exists(src) {
		return errorReply(errNoSuchKey)
	}
	if ctx.db.Exists(dst) {
		return resp.MakeInteger(0)
	}
	if err := ctx.db.Rename(src, dst); err != nil {
		return errorReply(err)
	}
	ctx.written(src, "rename_from", notifyGeneric)
	ctx.written(dst, "rename_to", notifyGeneric)
	return resp.MakeInteger(1)
}

// targetDB parses a database index argument of MOVE and COPY
func targetDB(ctx *Context, arg string) (*storage.Database, error) {
	n, err := parseInt(arg)
	if err != nil {
		return nil, err
	}
	if n < 0 || n > math.MaxInt32 {
		return nil, errDBIndex
	}
	return ctx.e.ks.DB(int(n))
}

func move(ctx *Context) resp.Value {
	key := ctx.args[0]
	dst, err := targetDB(ctx, ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	err = ctx.db.MoveTo(dst, key)
	switch errors.Cause(err) {
	case nil:
	case storage.ErrNoSuchKey, storage.ErrKeyExists:
		return resp.MakeInteger(0)
	default:
		return errorReply(err)
	}
	ctx.written(key, "move_from", notifyGeneric)
	ctx.e.touched(dst, key, "move_to", notifyGeneric)
	return resp.MakeInteger(1)
}

func copyCommand(ctx *Context) resp.Value {
	src, dstKey := ctx.args[0], ctx.args[1]
	dst := ctx.db
	replace := false

	p := newArgParser(ctx.args[2:])
	for p.more() {
		switch p.next() {
		case "DB":
			v, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			if dst, err = targetDB(ctx, v); err != nil {
				return errorReply(err)
			}
		case "REPLACE":
			replace = true
		default:
			return errorReply(errSyntax)
		}
	}

	if dst == ctx.db && src == dstKey {
		return errorReply(errSameObject)
	}
	slot, ok := ctx.db.Lookup(src)
	if !ok {
		return resp.MakeInteger(0)
	}
	if dst.Exists(dstKey) {
		if !replace {
			return resp.MakeInteger(0)
		}
		dst.Delete(dstKey)
	}

	expireAt := slot.ExpireAt
	if err := dst.Set(dstKey, slot.Value.Clone(), false); err != nil {
		return errorReply(err)
	}
	if expireAt != 0 {
		dst.SetExpire(dstKey, expireAt)
	}
	ctx.e.touched(dst, dstKey, "copy_to", notifyGeneric)
	return resp.MakeInteger(1)
}

// expireCondition is the NX, XX, GT or LT option of the EXPIRE family
type expireCondition byte

const (
	expireAlways expireCondition = iota
	expireNX
	expireXX
	expireGT
	expireLT
)

func parseExpireCondition(ctx *Context, args []string) (expireCondition, error) {
	if len(args) > 0 && !ctx.e.Supports("EXPIRE NX") {
		return 0, errSyntax
	}
	var nx, xx, gt, lt bool
	for _, a := range args {
		switch strings.ToUpper(a) {
		case "NX":
			nx = true
		case "XX":
			xx = true
		case "GT":
			gt = true
		case "LT":
			lt = true
		default:
			return 0, replyError("ERR Unsupported option " + a)
		}
	}
	switch {
	case nx && (xx || gt || lt):
		return 0, replyError("ERR NX and XX, GT or LT options at the same time are not compatible")
	case gt && lt:
		return 0, replyError("ERR GT and LT options at the same time are not compatible")
	case nx:
		return expireNX, nil
	case gt:
		return expireGT, nil
	case lt:
		return expireLT, nil
	case xx:
		return expireXX, nil
	}
	return expireAlways, nil
}

// allows reports whether the condition lets a key with the current expiry
// (0 for none) take the new deadline
func (c expireCondition) allows(current, next int64) bool {
	switch c {
	case expireNX:
		return current == 0
	case expireXX:
		return current != 0
	case expireGT:
		return current != 0 && next > current
	case expireLT:
		return current == 0 || next < current
	}
	return true
}

// expire serves EXPIRE, PEXPIRE, EXPIREAT and PEXPIREAT
func expire(ctx *Context) resp.Value {
	key := ctx.args[0]
	n, err := parseInt(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	cond, err := parseExpireCondition(ctx, ctx.args[2:])
	if err != nil {
		return errorReply(err)
	}

	invalid := errorReply(formatted(errExpireTime, strings.ToLower(ctx.name)))
	seconds := ctx.name == "EXPIRE" || ctx.name == "EXPIREAT"
	if seconds {
		if n > math.MaxInt64/1000 || n < math.MinInt64/1000 {
			return invalid
		}
		n *= 1000
	}
	at := n
	if ctx.name == "EXPIRE" || ctx.name == "PEXPIRE" {
		now := ctx.Now()
		if n > 0 && now > math.MaxInt64-n {
			return invalid
		}
		at = now + n
	}

	current, status := ctx.db.Expiry(key)
	if status == storage.ExpNotFound {
		return resp.MakeInteger(0)
	}
	if !cond.allows(current, at) {
		return resp.MakeInteger(0)
	}

	ctx.db.SetExpire(key, at)
	if at <= ctx.Now() {
		ctx.written(key, "del", notifyGeneric)
	} else {
		ctx.written(key, "expire", notifyGeneric)
	}
	return resp.MakeInteger(1)
}

// ttl serves TTL and PTTL
func ttl(ctx *Context) resp.Value {
	at, status := ctx.db.Expiry(ctx.args[0])
	if status != storage.ExpActive {
		return resp.MakeInteger(int64(status))
	}
	left := max(at-ctx.Now(), 0)
	if ctx.name == "TTL" {
		left = (left + 500) / 1000
	}
	return resp.MakeInteger(left)
}

// expireTime serves EXPIRETIME and PEXPIRETIME
func expireTime(ctx *Context) resp.Value {
	at, status := ctx.db.Expiry(ctx.args[0])
	if status != storage.ExpActive {
		return resp.MakeInteger(int64(status))
	}
	if ctx.name == "EXPIRETIME" {
		at /= 1000
	}
	return resp.MakeInteger(at)
}

func persist(ctx *Context) resp.Value {
	key := ctx.args[0]
	if !ctx.db.Persist(key) {
		return resp.MakeInteger(0)
	}
	ctx.written(key, "persist", notifyGeneric)
	return resp.MakeInteger(1)
}

func touch(ctx *Context) resp.Value {
	return exists(ctx)
}

var objectSubcommands = map[string]subcommand{
	"ENCODING": {objectEncoding, 3},
	"REFCOUNT": {objectRefCount, 3},
	"IDLETIME": {objectIdleTime, 3},
	"FREQ":     {objectFreq, 3},
}

func object(ctx *Context) resp.Value {
	return dispatchSub(ctx, objectSubcommands)
}

// objectValue returns the value named by the subcommand argument, or the null reply
func objectValue(ctx *Context) (storage.Value, bool) {
	return ctx.db.Get(ctx.args[1])
}

func objectEncoding(ctx *Context) resp.Value {
	v, ok := objectValue(ctx)
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(encoding(v))
}

// small collections are reported with the compact encodings of the real server
const compactEntries = 128

// encoding approximates the internal representation a server would pick for v
func encoding(v storage.Value) string {
	switch t := v.(type) {
	case *datatype.String:
		if _, err := t.Int(); err == nil {
			return "int"
		}
		if t.Len() <= 44 {
			return "embstr"
		}
		return "raw"
	case *datatype.List:
		if t.Len() <= compactEntries {
			return "listpack"
		}
		return "quicklist"
	case *datatype.Set:
		if t.Len() <= 512 && allIntegers(t.Members()) {
			return "intset"
		}
		if t.Len() <= compactEntries {
			return "listpack"
		}
		return "hashtable"
	case *datatype.Hash:
		if t.Len() <= compactEntries {
			return "listpack"
		}
		return "hashtable"
	case *datatype.SortedSet:
		if t.Len() <= compactEntries {
			return "listpack"
		}
		return "skiplist"
	case *datatype.Stream:
		return "stream"
	}
	return "raw"
}

func allIntegers(members []string) bool {
	for _, m := range members {
		if _, err := datatype.ParseInt(m); err != nil {
			return false
		}
	}
	return true
}

func objectRefCount(ctx *Context) resp.Value {
	if _, ok := objectValue(ctx); !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeInteger(1)
}

// objectIdleTime reports 0: access times are not tracked
func objectIdleTime(ctx *Context) resp.Value {
	if _, ok := objectValue(ctx); !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeInteger(0)
}

func objectFreq(ctx *Context) resp.Value {
	if _, ok := objectValue(ctx); !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeError("ERR An LFU maxmemory policy is not selected, access frequency not tracked. " +
		"Please note that when switching between policies at runtime LRU and LFU data will take some time to adjust.")
}
