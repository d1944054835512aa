package server

import (
	"slices"
	"strings"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
)

type cmdFlag uint32

const (
	flagWrite cmdFlag = 1 << iota
	flagReadonly
	flagDenyOOM
	flagAdmin
	flagPubSub
	flagNoScript
	flagBlocking
	flagLoading
	flagStale
	flagFast
	flagMovableKeys
	flagNoMulti
	flagRandom
)

var flagNames = []struct {
	flag cmdFlag
	name string
}{
	{flagWrite, "write"},
	{flagReadonly, "readonly"},
	{flagDenyOOM, "denyoom"},
	{flagAdmin, "admin"},
	{flagPubSub, "pubsub"},
	{flagNoScript, "noscript"},
	{flagBlocking, "blocking"},
	{flagLoading, "loading"},
	{flagStale, "stale"},
	{flagFast, "fast"},
	{flagMovableKeys, "movablekeys"},
	{flagNoMulti, "no_multi"},
	{flagRandom, "random"},
}

func parseFlags(s string) cmdFlag {
	var f cmdFlag
	for _, word := range strings.Fields(s) {
		for _, fn := range flagNames {
			if fn.name == word {
				f |= fn.flag
			}
		}
	}
	return f
}

func (f cmdFlag) names() []string {
	out := []string{}
	for _, fn := range flagNames {
		if f&fn.flag != 0 {
			out = append(out, fn.name)
		}
	}
	return out
}

// keySpec locates key arguments: 1-based positions, last may count from the end
type keySpec struct {
	first, last, step int
}

var (
	noKeys   = keySpec{}
	oneKey   = keySpec{1, 1, 1}
	twoKeys  = keySpec{1, 2, 1}
	allKeys  = keySpec{1, -1, 1}
	pairKeys = keySpec{1, -1, 2}
	// blocking pops: every argument but the trailing timeout
	keysThenTimeout = keySpec{1, -2, 1}
)

// anyKind registers a command whose handler checks the stored kinds itself
const anyKind = storage.KindNone

// positions returns the indexes into args (without the command name) holding keys
func (k keySpec) positions(nargs int) []int {
	if k.first == 0 {
		return nil
	}
	last := k.last
	if last < 0 {
		last = nargs + 1 + last
	}
	var out []int
	for i := k.first; i <= last && i <= nargs; i += k.step {
		out = append(out, i-1)
	}
	return out
}

// commandSpec is one registry entry
type commandSpec struct {
	name    string
	handler commandFunc
	arity   int // includes the command name, negative means at least -arity
	flags   cmdFlag
	keys    keySpec
	// kind is the variant every key must hold, KindNone when the handler checks
	kind    storage.Kind
	since   string
	group   string
	summary string
}

func (s *commandSpec) arityOK(nargs int) bool {
	n := nargs + 1
	if s.arity >= 0 {
		return n == s.arity
	}
	return n >= -s.arity
}

// registry maps upper-case command names to their spec. It is built once per
// engine; afterwards only RegisterExtension adds entries, under the engine lock
type registry struct {
	commands map[string]*commandSpec
	version  version
	group    string
}

func newRegistry(v version) *registry {
	r := &registry{
		commands: make(map[string]*commandSpec),
		version:  v,
	}
	r.inGroup("connection", registerConnectionCommands)
	r.inGroup("server", registerServerCommands)
	r.inGroup("generic", registerGenericCommands)
	r.inGroup("string", registerStringCommands)
	r.inGroup("bitmap", registerBitCommands)
	r.inGroup("list", registerListCommands)
	r.inGroup("hash", registerHashCommands)
	r.inGroup("set", registerSetCommands)
	r.inGroup("sorted-set", registerZSetCommands)
	r.inGroup("stream", registerStreamCommands)
	r.inGroup("pubsub", registerPubSubCommands)
	r.inGroup("transactions", registerTxCommands)
	r.inGroup("scripting", registerScriptingCommands)
	return r
}

func (r *registry) inGroup(group string, fn func(r *registry)) {
	r.group = group
	fn(r)
	r.group = ""
}

// add registers a command unless the emulated version predates it
func (r *registry) add(name string, h commandFunc, arity int, flags string, keys keySpec, kind storage.Kind, since, summary string) {
	if !r.version.atLeast(mustParseVersion(since)) {
		return
	}
	r.commands[name] = &commandSpec{
		name:    name,
		handler: h,
		arity:   arity,
		flags:   parseFlags(flags),
		keys:    keys,
		kind:    kind,
		since:   since,
		group:   r.group,
		summary: summary,
	}
}

func (r *registry) lookup(name string) (*commandSpec, bool) {
	spec, ok := r.commands[strings.ToUpper(name)]
	return spec, ok
}

// names returns every registered command name in lower case, sorted
func (r *registry) names() []string {
	out := make([]string, 0, len(r.commands))
	for name := range r.commands {
		out = append(out, strings.ToLower(name))
	}
	slices.Sort(out)
	return out
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	v := resp.MakeArray(vals)
	v.Type = resp.TypeSet
	return v
}

// infoReply renders one COMMAND INFO entry
func (s *commandSpec) infoReply() resp.Value {
	return resp.MakeArray([]resp.Value{
		resp.MakeBulkString(strings.ToLower(s.name)),
		resp.MakeInteger(int64(s.arity)),
		makeFlagsArray(s.flags.names()),
		resp.MakeInteger(int64(s.keys.first)),
		resp.MakeInteger(int64(s.keys.last)),
		resp.MakeInteger(int64(s.keys.step)),
		makeFlagsArray([]string{"@" + s.group}),
		resp.MakeArray(nil),
		resp.MakeArray(nil),
		resp.MakeArray(nil),
	})
}

// docsReply renders one COMMAND DOCS entry
func (s *commandSpec) docsReply() resp.Value {
	return resp.MakeMap([]resp.Value{
		resp.MakeBulkString("summary"),
		resp.MakeBulkString(s.summary),
		resp.MakeBulkString("since"),
		resp.MakeBulkString(s.since),
		resp.MakeBulkString("group"),
		resp.MakeBulkString(s.group),
	})
}
