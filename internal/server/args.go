package server

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/eternalApril/moonmock/internal/datatype"
	"github.com/eternalApril/moonmock/internal/glob"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

func parseInt(s string) (int64, error) {
	n, err := datatype.ParseInt(s)
	if err != nil {
		return 0, errNotInteger
	}
	return n, nil
}

func parseFloat(s string) (float64, error) {
	f, err := datatype.ParseFloat(s)
	if err != nil {
		return 0, errNotFloat
	}
	return f, nil
}

// parsePositive parses a count that must be >= 0
func parsePositive(s string) (int64, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errNegativeCount
	}
	return n, nil
}

// parseTimeout parses the trailing timeout of blocking pops, in seconds with
// an optional fraction
func parseTimeout(s string) (time.Duration, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errTimeout
	}
	if f < 0 {
		return 0, errTimeoutNeg
	}
	if f > float64(math.MaxInt64)/float64(time.Second) {
		return 0, errTimeout
	}
	return time.Duration(f * float64(time.Second)), nil
}

// parseMillisTimeout parses the BLOCK argument of stream reads
func parseMillisTimeout(s string) (time.Duration, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, errTimeout
	}
	if n < 0 {
		return 0, errTimeoutNeg
	}
	if n > math.MaxInt64/int64(time.Millisecond) {
		return 0, errTimeout
	}
	return time.Duration(n) * time.Millisecond, nil
}

// argParser walks optional trailing arguments
type argParser struct {
	args []string
	pos  int
}

func newArgParser(args []string) *argParser {
	return &argParser{args: args}
}

func (p *argParser) more() bool {
	return p.pos < len(p.args)
}

// next returns the upper-cased next token
func (p *argParser) next() string {
	s := strings.ToUpper(p.args[p.pos])
	p.pos++
	return s
}

// value consumes the argument following an option
func (p *argParser) value() (string, error) {
	if p.pos >= len(p.args) {
		return "", errSyntax
	}
	s := p.args[p.pos]
	p.pos++
	return s, nil
}

func (p *argParser) int() (int64, error) {
	s, err := p.value()
	if err != nil {
		return 0, err
	}
	return parseInt(s)
}

// bulks renders strings as an array of bulk strings
func bulks(items []string) resp.Value {
	return resp.MakeBulkArray(items)
}

// nilOr returns a bulk string, or the null bulk string when ok is false
func nilOr(s string, ok bool) resp.Value {
	if !ok {
		return resp.MakeNilBulkString()
	}
	return resp.MakeBulkString(s)
}

func intReply(n int) resp.Value {
	return resp.MakeInteger(int64(n))
}

func boolInt(b bool) resp.Value {
	if b {
		return resp.MakeInteger(1)
	}
	return resp.MakeInteger(0)
}

// pairReply renders interleaved key/value items: nested two-element arrays for
// RESP3 clients, a flat array for RESP2
func pairReply(ctx *Context, items []resp.Value) resp.Value {
	if ctx.client.Protocol() < 3 {
		return resp.MakeArray(items)
	}
	out := make([]resp.Value, 0, len(items)/2)
	for i := 0; i+1 < len(items); i += 2 {
		out = append(out, resp.MakeArray([]resp.Value{items[i], items[i+1]}))
	}
	return resp.MakeArray(out)
}

// parseSampleCount parses the count of the random-member commands. A negative
// count allows repeats
func parseSampleCount(s string) (int64, error) {
	n, err := parseInt(s)
	if err != nil {
		return 0, err
	}
	if n < -math.MaxInt64/2 {
		return 0, replyError("ERR value is out of range")
	}
	return n, nil
}

// scanItems walks items from position cursor like SCAN walks keys. It returns
// the next cursor and the matching items visited
func scanItems(items []string, cursor uint64, opts scanOptions) (uint64, []int) {
	var found []int
	if cursor >= uint64(len(items)) {
		return 0, found
	}
	end := min(cursor+uint64(opts.count), uint64(len(items)))
	for i := cursor; i < end; i++ {
		if opts.match == "" || glob.Match(opts.match, items[i]) {
			found = append(found, int(i))
		}
	}
	if end >= uint64(len(items)) {
		end = 0
	}
	return end, found
}

// dropIfEmpty removes a value that a failed command created and left empty
func dropIfEmpty(ctx *Context, key string, v storage.Value) {
	if v.Empty() {
		ctx.db.Delete(key)
	}
}
