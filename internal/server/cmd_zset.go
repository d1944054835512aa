package server

import (
	"math"
	"strings"
	"time"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func registerZSetCommands(r *registry) {
	zset := storage.KindZSet
	r.add("ZADD", zadd, -4, "write denyoom fast", oneKey, zset, "1.2.0",
		"Adds one or more members to a sorted set, or updates their scores. Creates the key if it doesn't exist.")
	r.add("ZINCRBY", zincrBy, 4, "write denyoom fast", oneKey, zset, "1.2.0",
		"Increments the score of a member in a sorted set.")
	r.add("ZREM", zrem, -3, "write fast", oneKey, zset, "1.2.0",
		"Removes one or more members from a sorted set. Deletes the sorted set if all members were removed.")
	r.add("ZSCORE", zscore, 3, "readonly fast", oneKey, zset, "1.2.0",
		"Returns the score of a member in a sorted set.")
	r.add("ZMSCORE", zmscore, -3, "readonly fast", oneKey, zset, "6.2.0",
		"Returns the score of one or more members in a sorted set.")
	r.add("ZCARD", zcard, 2, "readonly fast", oneKey, zset, "1.2.0",
		"Returns the number of members in a sorted set.")
	r.add("ZCOUNT", zcount, 4, "readonly fast", oneKey, zset, "2.0.0",
		"Returns the count of members in a sorted set that have scores within a range.")
	r.add("ZLEXCOUNT", zlexCount, 4, "readonly fast", oneKey, zset, "2.8.9",
		"Returns the number of members in a sorted set within a lexicographical range.")
	r.add("ZRANK", zrank, -3, "readonly fast", oneKey, zset, "2.0.0",
		"Returns the index of a member in a sorted set ordered by ascending scores.")
	r.add("ZREVRANK", zrank, -3, "readonly fast", oneKey, zset, "2.0.0",
		"Returns the index of a member in a sorted set ordered by descending scores.")
	r.add("ZRANGE", zrange, -4, "readonly", oneKey, zset, "1.2.0",
		"Returns members in a sorted set within a range of indexes.")
	r.add("ZRANGESTORE", zrange, -5, "write denyoom", twoKeys, anyKind, "6.2.0",
		"Stores a range of members from sorted set in a key.")
	r.add("ZREVRANGE", zrange, -4, "readonly", oneKey, zset, "1.2.0",
		"Returns members in a sorted set within a range of indexes in reverse order.")
	r.add("ZRANGEBYSCORE", zrange, -4, "readonly", oneKey, zset, "1.0.5",
		"Returns members in a sorted set within a range of scores.")
	r.add("ZREVRANGEBYSCORE", zrange, -4, "readonly", oneKey, zset, "2.2.0",
		"Returns members in a sorted set within a range of scores in reverse order.")
	r.add("ZRANGEBYLEX", zrange, -4, "readonly", oneKey, zset, "2.8.9",
		"Returns members in a sorted set within a lexicographical range.")
	r.add("ZREVRANGEBYLEX", zrange, -4, "readonly", oneKey, zset, "2.8.9",
		"Returns members in a sorted set within a lexicographical range in reverse order.")
	r.add("ZREMRANGEBYRANK", zremRange, 4, "write", oneKey, zset, "2.0.0",
		"Removes members in a sorted set within a range of indexes. Deletes the sorted set if all members were removed.")
	r.add("ZREMRANGEBYSCORE", zremRange, 4, "write", oneKey, zset, "1.2.0",
		"Removes members in a sorted set within a range of scores. Deletes the sorted set if all members were removed.")
	r.add("ZREMRANGEBYLEX", zremRange, 4, "write", oneKey, zset, "2.8.9",
		"Removes members in a sorted set within a lexicographical range. Deletes the sorted set if all members were removed.")
	r.add("ZPOPMIN", zpop, -2, "write fast", oneKey, zset, "5.0.0",
		"Returns the lowest-scoring members from a sorted set after removing them. Deletes the sorted set if the last member was popped.")
	r.add("ZPOPMAX", zpop, -2, "write fast", oneKey, zset, "5.0.0",
		"Returns the highest-scoring members from a sorted set after removing them. Deletes the sorted set if the last member was popped.")
	r.add("BZPOPMIN", bzpop, -3, "write blocking fast", keysThenTimeout, anyKind, "5.0.0",
		"Removes and returns the member with the lowest score from one or more sorted sets. Blocks until a member is available otherwise.")
	r.add("BZPOPMAX", bzpop, -3, "write blocking fast", keysThenTimeout, anyKind, "5.0.0",
		"Removes and returns the member with the highest score from one or more sorted sets. Blocks until a member available otherwise.")
	r.add("ZMPOP", zmpop, -4, "write movablekeys", noKeys, anyKind, "7.0.0",
		"Returns the highest- or lowest-scoring members from one or more sorted sets after removing them.")
	r.add("BZMPOP", zmpop, -5, "write blocking movablekeys", noKeys, anyKind, "7.0.0",
		"Removes and returns a member by score from one or more sorted sets. Blocks until a member is available otherwise.")
	r.add("ZUNIONSTORE", zalgebra, -4, "write denyoom movablekeys", noKeys, anyKind, "2.0.0",
		"Stores the union of multiple sorted sets in a key.")
	r.add("ZINTERSTORE", zalgebra, -4, "write denyoom movablekeys", noKeys, anyKind, "2.0.0",
		"Stores the intersect of multiple sorted sets in a key.")
	r.add("ZDIFFSTORE", zalgebra, -4, "write denyoom movablekeys", noKeys, anyKind, "6.2.0",
		"Stores the difference of multiple sorted sets in a key.")
	r.add("ZUNION", zalgebra, -3, "readonly movablekeys", noKeys, anyKind, "6.2.0",
		"Returns the union of multiple sorted sets.")
	r.add("ZINTER", zalgebra, -3, "readonly movablekeys", noKeys, anyKind, "6.2.0",
		"Returns the intersect of multiple sorted sets.")
	r.add("ZDIFF", zalgebra, -3, "readonly movablekeys", noKeys, anyKind, "6.2.0",
		"Returns the difference between multiple sorted sets.")
	r.add("ZINTERCARD", zinterCard, -3, "readonly movablekeys", noKeys, anyKind, "7.0.0",
		"Returns the number of members of the intersect of multiple sorted sets.")
	r.add("ZRANDMEMBER", zrandMember, -2, "readonly random", oneKey, zset, "6.2.0",
		"Returns one or more random members from a sorted set.")
	r.add("ZSCAN", zscan, -3, "readonly random", oneKey, zset, "2.8.0",
		"Iterates over members and scores of a sorted set.")
}

func newZSet() *datatype.SortedSet {
	return datatype.NewSortedSet()
}

// entriesReply renders members, with their scores as doubles when withScores
func entriesReply(ctx *Context, entries []datatype.ZEntry, withScores bool) resp.Value {
	if !withScores {
		out := make([]resp.Value, len(entries))
		for i, e := range entries {
			out[i] = resp.MakeBulkString(e.Member)
		}
		return resp.MakeArray(out)
	}
	items := make([]resp.Value, 0, 2*len(entries))
	for _, e := range entries {
		items = append(items, resp.MakeBulkString(e.Member), resp.MakeDouble(e.Score))
	}
	return pairReply(ctx, items)
}

// nestedEntries always renders [member, score] pairs, as ZMPOP does
func nestedEntries(entries []datatype.ZEntry) resp.Value {
	out := make([]resp.Value, len(entries))
	for i, e := range entries {
		out[i] = resp.MakeArray([]resp.Value{resp.MakeBulkString(e.Member), resp.MakeDouble(e.Score)})
	}
	return resp.MakeArray(out)
}

func zadd(ctx *Context) resp.Value {
	key := ctx.args[0]
	var (
		f  datatype.AddFlags
		ch bool
	)
	i := 1
options:
	for ; i < len(ctx.args); i++ {
		opt := strings.ToUpper(ctx.args[i])
		if (opt == "GT" || opt == "LT") && !ctx.option("GT") {
			return errorReply(errNotFloat)
		}
		switch opt {
		case "NX":
			f.NX = true
		case "XX":
			f.XX = true
		case "GT":
			f.GT = true
		case "LT":
			f.LT = true
		case "CH":
			ch = true
		case "INCR":
			f.Incr = true
		default:
			break options
		}
	}

	pairs := ctx.args[i:]
	if len(pairs) == 0 || len(pairs)%2 != 0 {
		return errorReply(errSyntax)
	}
	switch {
	case f.NX && f.XX:
		return resp.MakeError("ERR XX and NX options at the same time are not compatible")
	case (f.GT && f.LT) || (f.NX && (f.GT || f.LT)):
		return resp.MakeError("ERR GT, LT, and/or NX options at the same time are not compatible")
	case f.Incr && len(pairs) > 2:
		return resp.MakeError("ERR INCR option supports a single increment-element pair")
	}

	scores := make([]float64, len(pairs)/2)
	for j := range scores {
		s, err := parseFloat(pairs[2*j])
		if err != nil {
			return errorReply(err)
		}
		scores[j] = s
	}

	var z *datatype.SortedSet
	if f.XX {
		var (
			ok  bool
			err error
		)
		z, ok, err = lookupAs[*datatype.SortedSet](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if !ok {
			if f.Incr {
				return resp.MakeNilBulkString()
			}
			return resp.MakeInteger(0)
		}
	} else {
		var err error
		if z, err = obtain(ctx, key, newZSet); err != nil {
			return errorReply(err)
		}
	}

	var (
		added, updated int
		last           datatype.AddResult
	)
	for j, score := range scores {
		res, err := z.Add(pairs[2*j+1], score, f)
		if err != nil {
			dropIfEmpty(ctx, key, z)
			return errorReply(err)
		}
		if res.Added {
			added++
		}
		if res.Updated {
			updated++
		}
		last = res
	}

	if added+updated > 0 {
		event := "zadd"
		if f.Incr {
			event = "zincr"
		}
		ctx.written(key, event, notifyZSet)
	} else {
		dropIfEmpty(ctx, key, z)
	}

	if f.Incr {
		if last.Skipped {
			return resp.MakeNilBulkString()
		}
		return resp.MakeDouble(last.Score)
	}
	if ch {
		return intReply(added + updated)
	}
	return intReply(added)
}

func zincrBy(ctx *Context) resp.Value {
	key := ctx.args[0]
	delta, err := parseFloat(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	z, err := obtain(ctx, key, newZSet)
	if err != nil {
		return errorReply(err)
	}
	score, err := z.IncrBy(ctx.args[2], delta)
	if err != nil {
		dropIfEmpty(ctx, key, z)
		return errorReply(err)
	}
	ctx.written(key, "zincr", notifyZSet)
	return resp.MakeDouble(score)
}

func zrem(ctx *Context) resp.Value {
	key := ctx.args[0]
	z, ok, err := lookupAs[*datatype.SortedSet](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := 0
	for _, m := range ctx.args[1:] {
		if z.Remove(m) {
			n++
		}
	}
	if n > 0 {
		ctx.written(key, "zrem", notifyZSet)
	}
	return intReply(n)
}

func scoreOrNil(z *datatype.SortedSet, member string) resp.Value {
	if z == nil {
		return resp.MakeNilBulkString()
	}
	s, ok := z.Score(member)
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeDouble(s)
}

func zscore(ctx *Context) resp.Value {
	z, _, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	return scoreOrNil(z, ctx.args[1])
}

func zmscore(ctx *Context) resp.Value {
	z, _, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	members := ctx.args[1:]
	out := make([]resp.Value, len(members))
	for i, m := range members {
		out[i] = scoreOrNil(z, m)
	}
	return resp.MakeArray(out)
}

func zcard(ctx *Context) resp.Value {
	z, ok, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(z.Len())
}

func zcount(ctx *Context) resp.Value {
	r, err := datatype.ParseScoreRange(ctx.args[1], ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	z, ok, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(z.CountScore(r))
}

func zlexCount(ctx *Context) resp.Value {
	r, err := datatype.ParseLexRange(ctx.args[1], ctx.args[2])
	if err != nil {
		return errorReply(err)
	}
	z, ok, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	return intReply(z.CountLex(r))
}

// zrank serves ZRANK and ZREVRANK
func zrank(ctx *Context) resp.Value {
	if len(ctx.args) > 3 {
		return errorReply(errSyntax)
	}
	withScore := false
	if len(ctx.args) == 3 {
		if strings.ToUpper(ctx.args[2]) != "WITHSCORE" || !ctx.option("WITHSCORE") {
			return errorReply(errSyntax)
		}
		withScore = true
	}

	z, ok, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	var rank int
	if ok {
		rank, ok = z.Rank(ctx.args[1], ctx.name == "ZREVRANK")
	}
	if !ok {
		if withScore {
			return resp.MakeNilArray()
		}
		return resp.MakeNilBulkString()
	}
	if !withScore {
		return intReply(rank)
	}
	score, _ := z.Score(ctx.args[1])
	return resp.MakeArray([]resp.Value{intReply(rank), resp.MakeDouble(score)})
}

// rangeBy is how ZRANGE interprets its min and max arguments
type rangeBy byte

const (
	byRank rangeBy = iota
	byScore
	byLex
)

// rangeQuery is a parsed ZRANGE family request
type rangeQuery struct {
	by         rangeBy
	rev        bool
	min, max   string
	offset     int64
	count      int64 // negative means no limit
	limited    bool
	withScores bool
}

// parseRangeQuery reads a ZRANGE style request. The legacy commands fix by and
// rev, and take their bounds in max, min order when reversed
func parseRangeQuery(ctx *Context, args []string) (rangeQuery, error) {
	q := rangeQuery{min: args[0], max: args[1], count: -1}
	modern := ctx.name == "ZRANGE" || ctx.name == "ZRANGESTORE"
	switch ctx.name {
	case "ZREVRANGE":
		q.rev = true
	case "ZRANGEBYSCORE":
		q.by = byScore
	case "ZREVRANGEBYSCORE":
		q.by, q.rev = byScore, true
	case "ZRANGEBYLEX":
		q.by = byLex
	case "ZREVRANGEBYLEX":
		q.by, q.rev = byLex, true
	}

	p := newArgParser(args[2:])
	for p.more() {
		opt := p.next()
		switch {
		case opt == "WITHSCORES" && ctx.name != "ZRANGESTORE" && q.by != byLex:
			q.withScores = true
		case opt == "LIMIT" && ctx.name != "ZREVRANGE":
			offset, err := p.int()
			if err != nil {
				return q, err
			}
			count, err := p.int()
			if err != nil {
				return q, err
			}
			q.offset, q.count, q.limited = offset, count, true
		case modern && (opt == "BYSCORE" || opt == "BYLEX"):
			if !ctx.option("BYSCORE") || q.by != byRank {
				return q, errSyntax
			}
			q.by = byScore
			if opt == "BYLEX" {
				q.by = byLex
			}
		case modern && opt == "REV":
			q.rev = true
		default:
			return q, errSyntax
		}
	}

	if q.limited && q.by == byRank {
		return q, replyError("ERR syntax error, LIMIT is only supported in combination with either BYSCORE or BYLEX")
	}
	if q.withScores && q.by == byLex {
		return q, replyError("ERR syntax error, WITHSCORES not supported in combination with BYLEX")
	}
	if q.rev && q.by != byRank {
		q.min, q.max = q.max, q.min
	}
	return q, nil
}

// run evaluates the query against z
func (q rangeQuery) run(z *datatype.SortedSet) ([]datatype.ZEntry, error) {
	switch q.by {
	case byScore, byLex:
		if q.offset < 0 {
			return nil, nil
		}
		offset, count := int(min(q.offset, math.MaxInt32)), int(max(min(q.count, math.MaxInt32), -1))
		if q.by == byScore {
			r, err := datatype.ParseScoreRange(q.min, q.max)
			if err != nil {
				return nil, err
			}
			return z.RangeByScore(r, q.rev, offset, count), nil
		}
		r, err := datatype.ParseLexRange(q.min, q.max)
		if err != nil {
			return nil, err
		}
		return z.RangeByLex(r, q.rev, offset, count), nil
	}
	start, err := parseInt(q.min)
	if err != nil {
		return nil, err
	}
	stop, err := parseInt(q.max)
	if err != nil {
		return nil, err
	}
	return z.RangeByRank(start, stop, q.rev), nil
}

// zrange serves ZRANGE, ZRANGESTORE and the legacy range commands
func zrange(ctx *Context) resp.Value {
	args := ctx.args
	var dest string
	if ctx.name == "ZRANGESTORE" {
		dest, args = args[0], args[1:]
	}
	key := args[0]
	q, err := parseRangeQuery(ctx, args[1:])
	if err != nil {
		return errorReply(err)
	}

	z, ok, err := lookupAs[*datatype.SortedSet](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		z = newZSet()
	}
	entries, err := q.run(z)
	if err != nil {
		return errorReply(err)
	}

	if ctx.name == "ZRANGESTORE" {
		out := newZSet()
		for _, e := range entries {
			out.Set(e.Member, e.Score)
		}
		return storeResult(ctx, dest, out, "zrangestore", notifyZSet)
	}
	return entriesReply(ctx, entries, q.withScores)
}

// zremRange serves ZREMRANGEBYRANK, ZREMRANGEBYSCORE and ZREMRANGEBYLEX
func zremRange(ctx *Context) resp.Value {
	key := ctx.args[0]
	var remove func(z *datatype.SortedSet) int

	switch ctx.name {
	case "ZREMRANGEBYRANK":
		start, err := parseInt(ctx.args[1])
		if err != nil {
			return errorReply(err)
		}
		stop, err := parseInt(ctx.args[2])
		if err != nil {
			return errorReply(err)
		}
		remove = func(z *datatype.SortedSet) int { return z.RemoveRangeByRank(start, stop) }
	case "ZREMRANGEBYSCORE":
		r, err := datatype.ParseScoreRange(ctx.args[1], ctx.args[2])
		if err != nil {
			return errorReply(err)
		}
		remove = func(z *datatype.SortedSet) int { return z.RemoveRangeByScore(r) }
	default:
		r, err := datatype.ParseLexRange(ctx.args[1], ctx.args[2])
		if err != nil {
			return errorReply(err)
		}
		remove = func(z *datatype.SortedSet) int { return z.RemoveRangeByLex(r) }
	}

	z, ok, err := lookupAs[*datatype.SortedSet](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeInteger(0)
	}
	n := remove(z)
	if n > 0 {
		ctx.written(key, strings.ToLower(ctx.name), notifyZSet)
	}
	return intReply(n)
}

// zpop serves ZPOPMIN and ZPOPMAX
func zpop(ctx *Context) resp.Value {
	key := ctx.args[0]
	highest := ctx.name == "ZPOPMAX"
	if len(ctx.args) > 2 {
		return errorReply(errSyntax)
	}
	withCount := len(ctx.args) == 2
	count := int64(1)
	if withCount {
		var err error
		if count, err = parsePositive(ctx.args[1]); err != nil {
			return errorReply(err)
		}
	}

	z, ok, err := lookupAs[*datatype.SortedSet](ctx, key)
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return resp.MakeArray(nil)
	}
	popped := z.Pop(int(min(count, math.MaxInt32)), highest)
	if len(popped) > 0 {
		ctx.written(key, strings.ToLower(ctx.name), notifyZSet)
	}
	if withCount {
		return entriesReply(ctx, popped, true)
	}
	if len(popped) == 0 {
		return resp.MakeArray(nil)
	}
	return resp.MakeArray([]resp.Value{resp.MakeBulkString(popped[0].Member), resp.MakeDouble(popped[0].Score)})
}

// bzpop serves BZPOPMIN and BZPOPMAX
func bzpop(ctx *Context) resp.Value {
	highest := ctx.name == "BZPOPMAX"
	keys := ctx.args[:len(ctx.args)-1]
	timeout, err := parseTimeout(ctx.args[len(ctx.args)-1])
	if err != nil {
		return errorReply(err)
	}

	for _, key := range keys {
		z, ok, err := lookupAs[*datatype.SortedSet](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if !ok {
			continue
		}
		e := z.Pop(1, highest)[0]
		ctx.written(key, strings.ToLower(ctx.name[1:]), notifyZSet)
		return resp.MakeArray([]resp.Value{
			resp.MakeBulkString(key),
			resp.MakeBulkString(e.Member),
			resp.MakeDouble(e.Score),
		})
	}
	return ctx.block(keys, timeout, resp.MakeNilArray())
}

// zmpop serves ZMPOP and BZMPOP
func zmpop(ctx *Context) resp.Value {
	args := ctx.args
	blocking := ctx.name == "BZMPOP"
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
	var highest bool
	switch strings.ToUpper(rest[0]) {
	case "MIN":
	case "MAX":
		highest = true
	default:
		return errorReply(errSyntax)
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

	event := "zpopmin"
	if highest {
		event = "zpopmax"
	}
	for _, key := range keys {
		z, ok, err := lookupAs[*datatype.SortedSet](ctx, key)
		if err != nil {
			return errorReply(err)
		}
		if !ok {
			continue
		}
		popped := z.Pop(int(min(count, math.MaxInt32)), highest)
		ctx.written(key, event, notifyZSet)
		return resp.MakeArray([]resp.Value{resp.MakeBulkString(key), nestedEntries(popped)})
	}
	if blocking {
		return ctx.block(keys, timeout, resp.MakeNilArray())
	}
	return resp.MakeNilArray()
}

// loadScoreMaps reads sets and sorted sets as member to score maps. Missing
// keys give nil maps
func loadScoreMaps(ctx *Context, keys []string) ([]map[string]float64, error) {
	out := make([]map[string]float64, len(keys))
	for i, key := range keys {
		v, ok := ctx.db.Get(key)
		ctx.e.countLookup(ok)
		if !ok {
			continue
		}
		switch t := v.(type) {
		case *datatype.SortedSet:
			out[i] = t.ScoreMap()
		case *datatype.Set:
			out[i] = t.ScoreMap()
		default:
			return nil, errWrongType
		}
	}
	return out, nil
}

// zalgebra serves ZUNION, ZINTER, ZDIFF and their STORE variants
func zalgebra(ctx *Context) resp.Value {
	args := ctx.args
	store := strings.HasSuffix(ctx.name, "STORE")
	var dest string
	if store {
		dest, args = args[0], args[1:]
	}
	keys, rest, err := parseNumKeys(args)
	if err != nil {
		if err == errNumKeys {
			return resp.MakeError("ERR at least 1 input key is needed for '" + strings.ToLower(ctx.name) + "' command")
		}
		return errorReply(err)
	}

	diff := strings.HasPrefix(ctx.name, "ZDIFF")
	var (
		weights    []float64
		agg        datatype.Aggregate
		withScores bool
	)
	p := newArgParser(rest)
	for p.more() {
		switch opt := p.next(); {
		case opt == "WEIGHTS" && !diff:
			if len(p.args)-p.pos < len(keys) {
				return errorReply(errSyntax)
			}
			weights = make([]float64, len(keys))
			for i := range weights {
				w, err := datatype.ParseFloat(p.args[p.pos])
				if err != nil {
					return resp.MakeError("ERR weight value is not a float")
				}
				weights[i] = w
				p.pos++
			}
		case opt == "AGGREGATE" && !diff:
			v, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			if agg, err = datatype.ParseAggregate(v); err != nil {
				return errorReply(errSyntax)
			}
		case opt == "WITHSCORES" && !store:
			withScores = true
		default:
			return errorReply(errSyntax)
		}
	}

	inputs, err := loadScoreMaps(ctx, keys)
	if err != nil {
		return errorReply(err)
	}
	var result map[string]float64
	switch {
	case strings.HasPrefix(ctx.name, "ZUNION"):
		result = datatype.ZUnion(inputs, weights, agg)
	case strings.HasPrefix(ctx.name, "ZINTER"):
		result = datatype.ZInter(inputs, weights, agg)
	default:
		result = datatype.ZDiff(inputs)
	}

	if store {
		return storeResult(ctx, dest, datatype.SortedSetFromMap(result), strings.ToLower(ctx.name), notifyZSet)
	}
	return entriesReply(ctx, datatype.SortedEntries(result), withScores)
}

func zinterCard(ctx *Context) resp.Value {
	keys, rest, err := parseNumKeys(ctx.args)
	if err != nil {
		return errorReply(err)
	}
	limit, err := parseLimit(rest)
	if err != nil {
		return errorReply(err)
	}
	inputs, err := loadScoreMaps(ctx, keys)
	if err != nil {
		return errorReply(err)
	}
	n := len(datatype.ZInter(inputs, nil, datatype.AggSum))
	if limit > 0 {
		n = min(n, limit)
	}
	return intReply(n)
}

func zrandMember(ctx *Context) resp.Value {
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
	withScores := false
	if len(ctx.args) == 3 {
		if strings.ToUpper(ctx.args[2]) != "WITHSCORES" {
			return errorReply(errSyntax)
		}
		withScores = true
	}

	z, ok, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		if withCount {
			return resp.MakeArray(nil)
		}
		return resp.MakeNilBulkString()
	}
	picked := z.RandomMembers(ctx.e.rng, count)
	if !withCount {
		return resp.MakeBulkString(picked[0].Member)
	}
	return entriesReply(ctx, picked, withScores)
}

func zscan(ctx *Context) resp.Value {
	cursor, err := parseCursor(ctx.args[1])
	if err != nil {
		return errorReply(err)
	}
	opts, err := parseScanOptions(ctx, ctx.args[2:], false)
	if err != nil {
		return errorReply(err)
	}
	z, ok, err := lookupAs[*datatype.SortedSet](ctx, ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if !ok {
		return scanReply(0, nil)
	}

	entries := z.Entries()
	members := make([]string, len(entries))
	for i, e := range entries {
		members[i] = e.Member
	}
	next, found := scanItems(members, cursor, opts)
	out := make([]string, 0, 2*len(found))
	for _, i := range found {
		out = append(out, entries[i].Member, resp.FormatDouble(entries[i].Score))
	}
	return scanReply(next, out)
}
