package server

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerStreamCommands(r *registry) {
	stream := storage.KindStream
	r.add("XADD", xadd, -5, "write denyoom fast", oneKey, stream, "5.0.0",
		"Appends a new message to a stream. Creates the key if it doesn't exist.")
	r.add("XLEN", xlen, 2, "readonly fast", oneKey, stream, "5.0.0",
		"Return the number of messages in a stream.")
	r.add("XRANGE", xrange, -4, "readonly", oneKey, stream, "5.0.0",
		"Returns the messages from a stream within a range of IDs.")
	r.add("XREVRANGE", xrange, -4, "readonly", oneKey, stream, "5.0.0",
		"Returns the messages from a stream within a range of IDs in reverse order.")
	r.add("XDEL", xdel, -3, "write fast", oneKey, stream, "5.0.0",
		"Returns the number of messages after removing them from a stream.")
	r.add("XTRIM", xtrim, -4, "write", oneKey, stream, "5.0.0",
		"Deletes messages from the beginning of a stream.")
	r.add("XSETID", xsetID, -3, "write denyoom fast", oneKey, stream, "5.0.0",
		"An internal command for replicating stream values.")
	r.add("XREAD", xread, -4, "readonly blocking movablekeys", noKeys, anyKind, "5.0.0",
		"Returns messages from multiple streams with IDs greater than the ones requested. Blocks until a message is available otherwise.")
	r.add("XREADGROUP", xreadGroup, -7, "write blocking movablekeys", noKeys, anyKind, "5.0.0",
		"Returns new or historical messages from a stream for a consumer in a group. Blocks until a message is available otherwise.")
	r.add("XACK", xack, -4, "write fast", oneKey, stream, "5.0.0",
		"Returns the number of messages that were successfully acknowledged by the consumer group member of a stream.")
	r.add("XGROUP", xgroup, -2, "write", keySpec{2, 2, 1}, anyKind, "5.0.0",
		"A container for consumer groups commands.")
	r.add("XPENDING", xpending, -3, "readonly", oneKey, stream, "5.0.0",
		"Returns the information and entries from a stream consumer group's pending entries list.")
	r.add("XCLAIM", xclaim, -6, "write fast", oneKey, stream, "5.0.0",
		"Changes, or acquires, ownership of a message in a consumer group, as if the message was delivered a consumer group member.")
	r.add("XAUTOCLAIM", xautoClaim, -6, "write fast", oneKey, stream, "6.2.0",
		"Changes, or acquires, ownership of messages in a consumer group, as if the messages were delivered to as consumer group member.")
	r.add("XINFO", xinfo, -2, "readonly", keySpec{2, 2, 1}, anyKind, "5.0.0",
		"A container for stream introspection commands.")
}

const errStreamKeyRequired replyError = "ERR The XGROUP subcommand requires the key to exist. " +
	"Note that for CREATE you may want to use the MKSTREAM option to create an empty stream automatically."

func entryValue(e *datatype.StreamEntry) resp.Value {
	fields := resp.MakeNilArray()
	if e.Fields != nil {
		fields = bulks(e.Fields)
	}
	return resp.MakeArray([]resp.Value{resp.MakeBulkString(e.ID.String()), fields})
}

func entriesValue(entries []*datatype.StreamEntry) resp.Value {
	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		out[i] = entryValue(e)
	}
	return resp.MakeArray(out)
}

func idsValue(ids []datatype.StreamID) resp.Value {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return bulks(out)
}

func parseIDs(args []string) ([]datatype.StreamID, error) {
	ids := make([]datatype.StreamID, len(args))
	for i, s := range args {
		id, err := datatype.ParseStreamID(s, 0)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}

// trimSpec is a parsed MAXLEN or MINID clause
type trimSpec struct {
	set    bool
	minID  bool
	approx bool
	maxLen int64
	min    datatype.StreamID
	limit  int64
}

// parseTrim reads MAXLEN|MINID [=|~] threshold [LIMIT count] at args[i] and
// returns the index after the clause
func parseTrim(ctx *Context, args []string, i int, t *trimSpec) (int, error) {
	strategy := strings.ToUpper(args[i])
	if strategy == "MINID" && !ctx.option("MINID") {
		return i, errSyntax
	}
	t.set, t.minID = true, strategy == "MINID"
	i++
	if i < len(args) && (args[i] == "=" || args[i] == "~") {
		t.approx = args[i] == "~"
		i++
	}
	if i >= len(args) {
		return i, errSyntax
	}
	if t.minID {
		id, err := datatype.ParseStreamID(args[i], 0)
		if err != nil {
			return i, err
		}
		t.min = id
	} else {
		n, err := parseInt(args[i])
		if err != nil {
			return i, err
		}
		if n < 0 {
			return i, replyError("ERR The MAXLEN argument must be >= 0.")
		}
		t.maxLen = n
	}
	i++

	if i < len(args) && strings.ToUpper(args[i]) == "LIMIT" {
		if !ctx.option("LIMIT") || i+1 >= len(args) {
			return i, errSyntax
		}
		n, err := parseInt(args[i+1])
		if err != nil {
			return i, err
		}
		if n < 0 {
			return i, replyError("ERR The LIMIT argument must be >= 0.")
		}
		if !t.approx {
			return i, replyError("ERR syntax error, LIMIT cannot be used without the special ~ option")
		}
		t.limit = n
		i += 2
	}
	return i, nil
}

// apply trims s and returns how many entries were removed. Approximate trimming
// is exact here, bounded by LIMIT when given
func (t trimSpec) apply(s *datatype.Stream) int {
	if !t.set {
		return 0
	}
	limit := int(min(t.limit, math.MaxInt32))
	if t.minID {
		return s.TrimMinID(t.min, limit)
	}
	return s.TrimMaxLen(t.maxLen, limit)
}

func xadd(ctx *Context) resp.Value {
	key := ctx.args[0]
	var (
		trim  trimSpec
		noMk  bool
		i     = 1
		err   error
		args  = ctx.args
		parse = true
	)
	for parse && i < len(args) {
		switch strings.ToUpper(args[i]) {
		case "NOMKSTREAM":
			if !ctx.option("NOMKSTREAM") {
				parse = false
				continue
			}
			noMk = true
			i++
		case "MAXLEN", "MINID":
			if trim.set {
				return errorReply(errSyntax)
			}
			if i, err = parseTrim(ctx, args, i, &trim); err != nil {
				return errorReply(err)
			}
		default:
			parse = false
		}
	}

	rest := args[i:]
	if len(rest) < 3 || len(rest)%2 != 1 {
		return resp.MakeErrorWrongNumberOfArguments("xadd")
	}
	idSpec, fields := rest[0], slices.Clone(rest[1:])

	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if noMk {
			return resp.MakeNilBulkString()
		}
		s = datatype.NewStream()
	}
	id, err := s.NextID(idSpec, ctx.Now())
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if s, err = obtain(ctx, key, datatype.NewStream); err != nil {
			return errorReply(err)
		}
	}

	s.Append(id, fields)
	ctx.written(key, "xadd", notifyStream)
	if trim.apply(s) > 0 {
		ctx.written(key, "xtrim", notifyStream)
	}
	return resp.MakeBulkString(id.String())
}

func xlen(ctx *Context) resp.Value {
	s, ok, err := lookupAs[*datatype.Stream](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(s.Len())
}

// xrange serves XRANGE and XREVRANGE
func xrange(ctx *Context) resp.Value {
	reverse := ctx.name == "XREVRANGE"
	lo, hi := ctx.args[1], ctx.args[2]
	if reverse {
		lo, hi = hi, lo
	}
	start, err := datatype.ParseRangeStart(lo)
	if err != nil {
		return errorReply(err)
	}
	end, err := datatype.ParseRangeEnd(hi)
	if err != nil {
		return errorReply(err)
	}

	count := int64(0)
	switch len(ctx.args) {
	case 3:
	case 5:
		if strings.ToUpper(ctx.args[3]) != "COUNT" {
			return errorReply(errSyntax)
		}
		if count, err = parseInt(ctx.args[4]); err != nil {
			return errorReply(err)
		}
		if count <= 0 {
			return resp.MakeArray(nil)
		}
	default:
		return errorReply(errSyntax)
	}

	s, ok, err := lookupAs[*datatype.Stream](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeArray(nil)
	}
	return entriesValue(s.Range(start, end, int(min(count, 1<<31-1)), reverse))
}

func xdel(ctx *Context) resp.Value {
	key := ctx.args[0]
	ids, err := parseIDs(ctx.args[1:])
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := s.Delete(ids...)
	if n > 0 {
		ctx.written(key, "xdel", notifyStream)
	}
	return intReply(n)
}

func xtrim(ctx *Context) resp.Value {
	key := ctx.args[0]
	s := strings.ToUpper(ctx.args[1])
	if s != "MAXLEN" && s != "MINID" {
		return errorReply(errSyntax)
	}
	var trim trimSpec
	i, err := parseTrim(ctx, ctx.args, 1, &trim)
	if err != nil {
		return errorReply(err)
	}
	if i != len(ctx.args) {
		return errorReply(errSyntax)
	}

	st, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := trim.apply(st)
	if n > 0 {
		ctx.written(key, "xtrim", notifyStream)
	}
	return intReply(n)
}

func xsetID(ctx *Context) resp.Value {
	key := ctx.args[0]
	id, err := datatype.ParseStreamID(ctx.args[1], 0)
	if err != nil {
		return errorReply(err)
	}
	entriesAdded := int64(-1)
	var maxDeleted *datatype.StreamID
	p := newArgParser(ctx.args[2:])
	for p.more() {
		switch p.next() {
		case "ENTRIESADDED":
			if entriesAdded, err = p.int(); err != nil {
				return errorReply(err)
			}
			if entriesAdded < 0 {
				return resp.MakeError("ERR entries_added must be positive")
			}
		case "MAXDELETEDID":
			v, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			md, err := datatype.ParseStreamID(v, 0)
			if err != nil {
				return errorReply(err)
			}
			if id.Less(md) {
				return resp.MakeError("ERR The ID specified in XSETID is smaller than the provided max_deleted_entry_id")
			}
			maxDeleted = &md
		default:
			return errorReply(errSyntax)
		}
	}

	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return errorReply(errNoSuchKey)
	}
	if entriesAdded >= 0 && entriesAdded < int64(s.Len()) {
		return resp.MakeError("ERR The entries_added specified in XSETID is smaller than the target stream length")
	}
	if err := s.SetLastID(id, entriesAdded, maxDeleted); err != nil {
		return errorReply(err)
	}
	ctx.written(key, "xsetid", notifyStream)
	return resp.MakeOK()
}

// streamRead holds the options shared by XREAD and XREADGROUP
type streamRead struct {
	count    int
	block    time.Duration
	blocking bool
	noAck    bool
	keys     []string
	ids      []string
	idsAt    int // index of the first ID in the command arguments
}

func parseStreamRead(ctx *Context, args []string, offset int) (streamRead, error) {
	var r streamRead
	for i := 0; i < len(args); i++ {
		switch strings.ToUpper(args[i]) {
		case "COUNT":
			if i+1 >= len(args) {
				return r, errSyntax
			}
			n, err := parseInt(args[i+1])
			if err != nil {
				return r, err
			}
			r.count = int(max(min(n, 1<<31-1), 0))
			i++
		case "BLOCK":
			if i+1 >= len(args) {
				return r, errSyntax
			}
			d, err := parseMillisTimeout(args[i+1])
			if err != nil {
				return r, err
			}
			r.block, r.blocking = d, true
			i++
		case "NOACK":
			if ctx.name != "XREADGROUP" {
				return r, errSyntax
			}
			r.noAck = true
		case "STREAMS":
			rest := args[i+1:]
			if len(rest) == 0 || len(rest)%2 != 0 {
				latest := "$"
				if ctx.name == "XREADGROUP" {
					latest = ">"
				}
				return r, replyError(fmt.Sprintf("ERR Unbalanced '%s' list of streams: for each stream key an ID or '%s' must be specified.",
					strings.ToLower(ctx.name), latest))
			}
			n := len(rest) / 2
			r.keys, r.ids = rest[:n], rest[n:]
			r.idsAt = offset + i + 1 + n
			return r, nil
		default:
			return r, errSyntax
		}
	}
	return r, errSyntax
}

// streamsReply renders per-stream results: a map for RESP3, an array of
// [key, entries] pairs for RESP2
func streamsReply(ctx *Context, keys []string, results []resp.Value) resp.Value {
	items := make([]resp.Value, 0, 2*len(keys))
	for i, key := range keys {
		items = append(items, resp.MakeBulkString(key), results[i])
	}
	if ctx.client.Protocol() >= 3 {
		return resp.MakeMap(items)
	}
	out := make([]resp.Value, len(keys))
	for i := range keys {
		out[i] = resp.MakeArray(items[2*i : 2*i+2])
	}
	return resp.MakeArray(out)
}

func xread(ctx *Context) resp.Value {
	r, err := parseStreamRead(ctx, ctx.args, 0)
	if err != nil {
		return errorReply(err)
	}

	streams := make([]*datatype.Stream, len(r.keys))
	after := make([]datatype.StreamID, len(r.keys))
	for i, key := range r.keys {
		s, ok, err := lookupAs[*datatype.Stream](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if ok {
			streams[i] = s
		}
		switch r.ids[i] {
		case "$":
			if ok {
				after[i] = s.LastID()
			}
		case "+":
		default:
			if after[i], err = datatype.ParseStreamID(r.ids[i], 0); err != nil {
				return errorReply(err)
			}
		}
	}

	var (
		keys    []string
		results []resp.Value
	)
	for i, s := range streams {
		if s == nil {
			continue
		}
		var entries []*datatype.StreamEntry
		if r.ids[i] == "+" {
			if last, ok := s.Last(); ok {
				entries = []*datatype.StreamEntry{last}
			}
		} else {
			entries = s.After(after[i], r.count)
		}
		if len(entries) > 0 {
			keys = append(keys, r.keys[i])
			results = append(results, entriesValue(entries))
		}
	}
	if len(keys) > 0 {
		return streamsReply(ctx, keys, results)
	}
	if !r.blocking {
		return resp.MakeNilArray()
	}

	// a retry must only see entries added after the original call
	args := slices.Clone(ctx.args)
	for i, id := range r.ids {
		if id == "$" {
			args[r.idsAt+i] = after[i].String()
		}
	}
	ctx.args = args
	return ctx.block(r.keys, r.block, resp.MakeNilArray())
}

func noGroupError(key, group string) resp.Value {
	return resp.MakeError(fmt.Sprintf("NOGROUP No such key '%s' or consumer group '%s'", key, group))
}

func xreadGroup(ctx *Context) resp.Value {
	if strings.ToUpper(ctx.args[0]) != "GROUP" {
		return errorReply(errSyntax)
	}
	group, consumer := ctx.args[1], ctx.args[2]
	r, err := parseStreamRead(ctx, ctx.args[3:], 3)
	if err != nil {
		return errorReply(err)
	}

	type target struct {
		s     *datatype.Stream
		g     *datatype.Group
		start datatype.StreamID
		fresh bool
	}
	targets := make([]target, len(r.keys))
	for i, key := range r.keys {
		s, ok, err := lookupAs[*datatype.Stream](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		var g *datatype.Group
		if ok {
			g, ok = s.Group(group)
		}
		if !ok {
			if ctx.retry {
				if s == nil {
					return resp.MakeError("UNBLOCKED the stream key no longer exists")
				}
				return resp.MakeError("UNBLOCKED the consumer group this client was blocked on no longer exists")
			}
			return resp.MakeError(fmt.Sprintf(
				"NOGROUP No such key '%s' or consumer group '%s' in XREADGROUP with GROUP option", key, group))
		}
		t := target{s: s, g: g, fresh: r.ids[i] == ">"}
		if !t.fresh {
			if t.start, err = datatype.ParseStreamID(r.ids[i], 0); err != nil {
				return errorReply(err)
			}
		}
		targets[i] = t
	}

	now := ctx.Now()
	var (
		keys    []string
		results []resp.Value
		history bool
	)
	for i, t := range targets {
		key := r.keys[i]
		if t.g.CreateConsumer(consumer, now) {
			ctx.written(key, "xgroup-createconsumer", notifyStream)
		}
		if !t.fresh {
			history = true
			keys = append(keys, key)
			results = append(results, entriesValue(t.s.ReadPending(t.g, consumer, t.start, r.count, now)))
			continue
		}
		entries := t.s.ReadGroup(t.g, consumer, r.count, r.noAck, now)
		if len(entries) > 0 {
			keys = append(keys, key)
			results = append(results, entriesValue(entries))
		}
	}
	if len(keys) > 0 || history {
		return streamsReply(ctx, keys, results)
	}
	if !r.blocking {
		return resp.MakeNilArray()
	}
	return ctx.block(r.keys, r.block, resp.MakeNilArray())
}

// streamGroup looks up a stream and one of its consumer groups
func streamGroup(ctx *Context, key, group string) (*datatype.Stream, *datatype.Group, resp.Value, bool) {
	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return nil, nil, errorReply(err), false
	}
	if !ok {
		return nil, nil, noGroupError(key, group), false
	}
	g, ok := s.Group(group)
	if !ok {
		return nil, nil, noGroupError(key, group), false
	}
	return s, g, resp.Value{}, true
}

func xack(ctx *Context) resp.Value {
	key := ctx.args[0]
	ids, err := parseIDs(ctx.args[2:])
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	g, ok := s.Group(ctx.args[1])
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(g.Ack(ids...))
}

var xgroupSubcommands = map[string]subcommand{
	"CREATE":         {xgroupCreate, -5},
	"SETID":          {xgroupSetID, -5},
	"DESTROY":        {xgroupDestroy, 4},
	"CREATECONSUMER": {xgroupCreateConsumer, 5},
	"DELCONSUMER":    {xgroupDelConsumer, 5},
}

func xgroup(ctx *Context) resp.Value {
	return dispatchSub(ctx, xgroupSubcommands)
}

// groupStart resolves the ID of XGROUP CREATE and SETID, where "$" is the last
// ID of the stream
func groupStart(s *datatype.Stream, arg string) (datatype.StreamID, error) {
	if arg == "$" {
		if s == nil {
			return datatype.MinStreamID, nil
		}
		return s.LastID(), nil
	}
	return datatype.ParseStreamID(arg, 0)
}

// parseEntriesRead reads the optional ENTRIESREAD of XGROUP CREATE and SETID
func parseEntriesRead(ctx *Context, args []string, allowMkStream bool) (int64, bool, error) {
	entriesRead := int64(-1)
	mkStream := false
	p := newArgParser(args)
	for p.more() {
		switch p.next() {
		case "MKSTREAM":
			if !allowMkStream {
				return 0, false, errSyntax
			}
			mkStream = true
		case "ENTRIESREAD":
			if !ctx.option("ENTRIESREAD") {
				return 0, false, errSyntax
			}
			n, err := p.int()
			if err != nil {
				return 0, false, err
			}
			if n < 0 && n != -1 {
				return 0, false, replyError("ERR value for ENTRIESREAD must be positive or -1")
			}
			entriesRead = n
		default:
			return 0, false, errSyntax
		}
	}
	return entriesRead, mkStream, nil
}

func xgroupCreate(ctx *Context) resp.Value {
	key, group := ctx.args[1], ctx.args[2]
	entriesRead, mkStream, err := parseEntriesRead(ctx, ctx.args[4:], true)
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok && !mkStream {
		return errorReply(errStreamKeyRequired)
	}
	start, err := groupStart(s, ctx.args[3])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if s, err = obtain(ctx, key, datatype.NewStream); err != nil {
			return errorReply(err)
		}
	}
	if err := s.CreateGroup(group, start, entriesRead); err != nil {
		return errorReply(err)
	}
	ctx.written(key, "xgroup-create", notifyStream)
	return resp.MakeOK()
}

func xgroupSetID(ctx *Context) resp.Value {
	key, group := ctx.args[1], ctx.args[2]
	entriesRead, _, err := parseEntriesRead(ctx, ctx.args[4:], false)
	if err != nil {
		return errorReply(err)
	}
	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return errorReply(errStreamKeyRequired)
	}
	g, ok := s.Group(group)
	if !ok {
		return resp.MakeError(fmt.Sprintf("NOGROUP No such consumer group '%s' for key name '%s'", group, key))
	}
	start, err := groupStart(s, ctx.args[3])
	if err != nil {
		return errorReply(err)
	}
	g.LastDelivered, g.EntriesRead = start, entriesRead
	ctx.written(key, "xgroup-setid", notifyStream)
	return resp.MakeOK()
}

func xgroupDestroy(ctx *Context) resp.Value {
	key := ctx.args[1]
	s, ok, err := lookupAs[*datatype.Stream](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return errorReply(errStreamKeyRequired)
	}
	if !s.DestroyGroup(ctx.args[2]) {
		return resp.MakeInteger(0)
	}
	ctx.written(key, "xgroup-destroy", notifyStream)
	return resp.MakeInteger(1)
}

func xgroupCreateConsumer(ctx *Context) resp.Value {
	key := ctx.args[1]
	_, g, reply, ok := streamGroup(ctx, key, ctx.args[2])
	if !ok {
		return reply
	}
	if !g.CreateConsumer(ctx.args[3], ctx.Now()) {
		return resp.MakeInteger(0)
	}
	ctx.written(key, "xgroup-createconsumer", notifyStream)
	return resp.MakeInteger(1)
}

func xgroupDelConsumer(ctx *Context) resp.Value {
	key := ctx.args[1]
	_, g, reply, ok := streamGroup(ctx, key, ctx.args[2])
	if !ok {
		return reply
	}
	n := g.DeleteConsumer(ctx.args[3])
	ctx.written(key, "xgroup-delconsumer", notifyStream)
	return intReply(n)
}

func xpending(ctx *Context) resp.Value {
	key := ctx.args[0]
	args := ctx.args[2:]
	if len(args) == 0 {
		_, g, reply, ok := streamGroup(ctx, key, ctx.args[1])
		if !ok {
			return reply
		}
		n := g.PendingCount("")
		if n == 0 {
			return resp.MakeArray([]resp.Value{
				resp.MakeInteger(0), resp.MakeNilBulkString(), resp.MakeNilBulkString(), resp.MakeNilArray(),
			})
		}
		first, last, per := g.PendingSummary()
		rows := make([]resp.Value, len(per))
		for i, cp := range per {
			rows[i] = bulks([]string{cp.Consumer, strconv.Itoa(cp.Count)})
		}
		return resp.MakeArray([]resp.Value{
			intReply(n),
			resp.MakeBulkString(first.String()),
			resp.MakeBulkString(last.String()),
			resp.MakeArray(rows),
		})
	}

	var minIdle int64
	if strings.ToUpper(args[0]) == "IDLE" {
		if !ctx.option("IDLE") || len(args) < 2 {
			return errorReply(errSyntax)
		}
		var err error
		if minIdle, err = parseInt(args[1]); err != nil {
			return errorReply(err)
		}
		args = args[2:]
	}
	if len(args) < 3 || len(args) > 4 {
		return errorReply(errSyntax)
	}
	start, err := datatype.ParseRangeStart(args[0])
	if err != nil {
		return errorReply(err)
	}
	end, err := datatype.ParseRangeEnd(args[1])
	if err != nil {
		return errorReply(err)
	}
	count, err := parseInt(args[2])
	if err != nil {
		return errorReply(err)
	}
	consumer := ""
	if len(args) == 4 {
		consumer = args[3]
	}

	_, g, reply, ok := streamGroup(ctx, key, ctx.args[1])
	if !ok {
		return reply
	}
	if count <= 0 {
		return resp.MakeArray(nil)
	}
	now := ctx.Now()
	pending := g.PendingRange(start, end, int(min(count, 1<<31-1)), consumer, minIdle, now)
	rows := make([]resp.Value, len(pending))
	for i, p := range pending {
		rows[i] = resp.MakeArray([]resp.Value{
			resp.MakeBulkString(p.ID.String()),
			resp.MakeBulkString(p.Consumer),
			resp.MakeInteger(now - p.DeliveredAt),
			resp.MakeInteger(p.Deliveries),
		})
	}
	return resp.MakeArray(rows)
}

func xclaim(ctx *Context) resp.Value {
	key, group, consumer := ctx.args[0], ctx.args[1], ctx.args[2]
	minIdle, err := parseInt(ctx.args[3])
	if err != nil {
		return resp.MakeError("ERR Invalid min-idle-time argument for XCLAIM")
	}

	i := 4
	var ids []datatype.StreamID
	for ; i < len(ctx.args); i++ {
		id, err := datatype.ParseStreamID(ctx.args[i], 0)
		if err != nil {
			break
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return errorReply(datatype.ErrStreamIDInvalid)
	}

	opts := datatype.ClaimOptions{MinIdle: max(minIdle, 0)}
	p := newArgParser(ctx.args[i:])
	for p.more() {
		opt := p.next()
		switch opt {
		case "FORCE":
			opts.Force = true
		case "JUSTID":
			opts.JustID = true
		case "IDLE", "TIME", "RETRYCOUNT":
			n, err := p.int()
			if err != nil {
				return errorReply(err)
			}
			switch opt {
			case "IDLE":
				opts.IdleMs = &n
			case "TIME":
				opts.TimeMs = &n
			default:
				opts.RetryCount = &n
			}
		case "LASTID":
			v, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			if _, err := datatype.ParseStreamID(v, 0); err != nil {
				return errorReply(err)
			}
		default:
			return resp.MakeError("ERR Unrecognized XCLAIM option '" + ctx.args[i+p.pos-1] + "'")
		}
	}

	s, g, reply, ok := streamGroup(ctx, key, group)
	if !ok {
		return reply
	}
	claimed := s.Claim(g, consumer, ids, opts, ctx.Now())
	if len(claimed) > 0 {
		ctx.written(key, "xclaim", notifyStream)
	}
	if opts.JustID {
		out := make([]datatype.StreamID, len(claimed))
		for i, e := range claimed {
			out[i] = e.ID
		}
		return idsValue(out)
	}
	return entriesValue(claimed)
}

func xautoClaim(ctx *Context) resp.Value {
	key, group, consumer := ctx.args[0], ctx.args[1], ctx.args[2]
	minIdle, err := parseInt(ctx.args[3])
	if err != nil {
		return resp.MakeError("ERR Invalid min-idle-time argument for XAUTOCLAIM")
	}
	start, err := datatype.ParseRangeStart(ctx.args[4])
	if err != nil {
		return errorReply(err)
	}

	count, justID := int64(100), false
	p := newArgParser(ctx.args[5:])
	for p.more() {
		switch p.next() {
		case "COUNT":
			if count, err = p.int(); err != nil {
				return errorReply(err)
			}
			if count <= 0 || count > 1<<20 {
				return resp.MakeError("ERR COUNT must be > 0")
			}
		case "JUSTID":
			justID = true
		default:
			return errorReply(errSyntax)
		}
	}

	s, g, reply, ok := streamGroup(ctx, key, group)
	if !ok {
		return reply
	}
	next, claimed, deleted := s.AutoClaim(g, consumer, max(minIdle, 0), start, int(count), justID, ctx.Now())
	if len(claimed) > 0 || len(deleted) > 0 {
		ctx.written(key, "xautoclaim", notifyStream)
	}
	var body resp.Value
	if justID {
		ids := make([]datatype.StreamID, len(claimed))
		for i, e := range claimed {
			ids[i] = e.ID
		}
		body = idsValue(ids)
	} else {
		body = entriesValue(claimed)
	}
	return resp.MakeArray([]resp.Value{resp.MakeBulkString(next.String()), body, idsValue(deleted)})
}

var xinfoSubcommands = map[string]subcommand{
	"STREAM":    {xinfoStream, -3},
	"GROUPS":    {xinfoGroups, 3},
	"CONSUMERS": {xinfoConsumers, 4},
}

func xinfo(ctx *Context) resp.Value {
	return dispatchSub(ctx, xinfoSubcommands)
}

// infoStream looks up the stream inspected by an XINFO subcommand
func infoStream(ctx *Context) (*datatype.Stream, resp.Value, bool) {
	s, ok, err := lookupAs[*datatype.Stream](ctx, ctx.args[1])
	if err != nil {
		return nil, errorReply(err), false
	}
	if !ok {
		return nil, errorReply(errNoSuchKey), false
	}
	return s, resp.Value{}, true
}

// field is one key of an XINFO map reply
func field(name string, v resp.Value) []resp.Value {
	return []resp.Value{resp.MakeBulkString(name), v}
}

func optionalEntry(e *datatype.StreamEntry, ok bool) resp.Value {
	if !ok {
		return resp.MakeNilBulkString()
	}
	return entryValue(e)
}

func entriesReadValue(n int64) resp.Value {
	if n < 0 {
		return resp.MakeNilBulkString()
	}
	return resp.MakeInteger(n)
}

func lagValue(s *datatype.Stream, g *datatype.Group) resp.Value {
	lag, ok := s.Lag(g)
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeInteger(lag)
}

func xinfoStream(ctx *Context) resp.Value {
	full, count := false, int64(10)
	switch args := ctx.args[2:]; {
	case len(args) == 0:
	case strings.ToUpper(args[0]) == "FULL":
		full = true
		switch {
		case len(args) == 1:
		case len(args) == 3 && strings.ToUpper(args[1]) == "COUNT":
			var err error
			if count, err = parseInt(args[2]); err != nil {
				return errorReply(err)
			}
		default:
			return errorReply(errSyntax)
		}
	default:
		return errorReply(errSyntax)
	}

	s, reply, ok := infoStream(ctx)
	if !ok {
		return reply
	}
	first, hasFirst := s.First()
	recordedFirst := datatype.MinStreamID
	if hasFirst {
		recordedFirst = first.ID
	}

	var items []resp.Value
	items = append(items, field("length", intReply(s.Len()))...)
	items = append(items, field("radix-tree-keys", intReply(min(s.Len(), 1)))...)
	items = append(items, field("radix-tree-nodes", intReply(min(s.Len(), 1)+1))...)
	items = append(items, field("last-generated-id", resp.MakeBulkString(s.LastID().String()))...)
	items = append(items, field("max-deleted-entry-id", resp.MakeBulkString(s.MaxDeletedID().String()))...)
	items = append(items, field("entries-added", resp.MakeInteger(int64(s.EntriesAdded())))...)
	items = append(items, field("recorded-first-entry-id", resp.MakeBulkString(recordedFirst.String()))...)

	if !full {
		last, hasLast := s.Last()
		items = append(items, field("groups", intReply(len(s.Groups())))...)
		items = append(items, field("first-entry", optionalEntry(first, hasFirst))...)
		items = append(items, field("last-entry", optionalEntry(last, hasLast))...)
		return resp.MakeMap(items)
	}

	limit := int(max(min(count, 1<<31-1), 0))
	items = append(items, field("entries", entriesValue(s.Range(datatype.MinStreamID, datatype.MaxStreamID, limit, false)))...)
	now := ctx.Now()
	groups := make([]resp.Value, 0, len(s.Groups()))
	for _, g := range s.Groups() {
		groups = append(groups, fullGroupInfo(s, g, limit, now))
	}
	items = append(items, field("groups", resp.MakeArray(groups))...)
	return resp.MakeMap(items)
}

func fullGroupInfo(s *datatype.Stream, g *datatype.Group, limit int, now int64) resp.Value {
	pending := g.PendingRange(datatype.MinStreamID, datatype.MaxStreamID, limit, "", 0, now)
	pel := make([]resp.Value, len(pending))
	for i, p := range pending {
		pel[i] = resp.MakeArray([]resp.Value{
			resp.MakeBulkString(p.ID.String()),
			resp.MakeBulkString(p.Consumer),
			resp.MakeInteger(p.DeliveredAt),
			resp.MakeInteger(p.Deliveries),
		})
	}

	consumers := make([]resp.Value, 0)
	for _, c := range g.Consumers() {
		own := g.PendingRange(datatype.MinStreamID, datatype.MaxStreamID, limit, c.Name, 0, now)
		rows := make([]resp.Value, len(own))
		for i, p := range own {
			rows[i] = resp.MakeArray([]resp.Value{
				resp.MakeBulkString(p.ID.String()),
				resp.MakeInteger(p.DeliveredAt),
				resp.MakeInteger(p.Deliveries),
			})
		}
		var ci []resp.Value
		ci = append(ci, field("name", resp.MakeBulkString(c.Name))...)
		ci = append(ci, field("seen-time", resp.MakeInteger(c.SeenAt))...)
		ci = append(ci, field("active-time", resp.MakeInteger(c.ActiveAt))...)
		ci = append(ci, field("pel-count", intReply(g.PendingCount(c.Name)))...)
		ci = append(ci, field("pending", resp.MakeArray(rows))...)
		consumers = append(consumers, resp.MakeMap(ci))
	}

	var gi []resp.Value
	gi = append(gi, field("name", resp.MakeBulkString(g.Name))...)
	gi = append(gi, field("last-delivered-id", resp.MakeBulkString(g.LastDelivered.String()))...)
	gi = append(gi, field("entries-read", entriesReadValue(g.EntriesRead))...)
	gi = append(gi, field("lag", lagValue(s, g))...)
	gi = append(gi, field("pel-count", intReply(g.PendingCount("")))...)
	gi = append(gi, field("pending", resp.MakeArray(pel))...)
	gi = append(gi, field("consumers", resp.MakeArray(consumers))...)
	return resp.MakeMap(gi)
}

func xinfoGroups(ctx *Context) resp.Value {
	s, reply, ok := infoStream(ctx)
	if !ok {
		return reply
	}
	groups := s.Groups()
	out := make([]resp.Value, len(groups))
	for i, g := range groups {
		var gi []resp.Value
		gi = append(gi, field("name", resp.MakeBulkString(g.Name))...)
		gi = append(gi, field("consumers", intReply(len(g.Consumers())))...)
		gi = append(gi, field("pending", intReply(g.PendingCount("")))...)
		gi = append(gi, field("last-delivered-id", resp.MakeBulkString(g.LastDelivered.String()))...)
		gi = append(gi, field("entries-read", entriesReadValue(g.EntriesRead))...)
		gi = append(gi, field("lag", lagValue(s, g))...)
		out[i] = resp.MakeMap(gi)
	}
	return resp.MakeArray(out)
}

func xinfoConsumers(ctx *Context) resp.Value {
	s, reply, ok := infoStream(ctx)
	if !ok {
		return reply
	}
	g, ok := s.Group(ctx.args[2])
	if !ok {
		return resp.MakeError(fmt.Sprintf("NOGROUP No such consumer group '%s' for key name '%s'", ctx.args[2], ctx.args[1]))
	}
	now := ctx.Now()
	consumers := g.Consumers()
	out := make([]resp.Value, len(consumers))
	for i, c := range consumers {
		inactive := int64(-1)
		if c.ActiveAt > 0 {
			inactive = now - c.ActiveAt
		}
		var ci []resp.Value
		ci = append(ci, field("name", resp.MakeBulkString(c.Name))...)
		ci = append(ci, field("pending", intReply(g.PendingCount(c.Name)))...)
		ci = append(ci, field("idle", resp.MakeInteger(now-c.SeenAt))...)
		ci = append(ci, field("inactive", resp.MakeInteger(inactive))...)
		out[i] = resp.MakeMap(ci)
	}
	return resp.MakeArray(out)
}
