package server

import (
	"fmt"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/eternalApril/moonmock/internal/glob"
	"github.com/eternalApril/moonmock/internal/resp"
)

func registerServerCommands(r *registry) {
	r.add("DBSIZE", dbSize, 1, "readonly fast", noKeys, anyKind, "1.0.0",
		"Returns the number of keys in the database.")
	r.add("FLUSHDB", flushDB, -1, "write", noKeys, anyKind, "1.0.0",
		"Removes all keys from the current database.")
	r.add("FLUSHALL", flushAll, -1, "write", noKeys, anyKind, "1.0.0",
		"Removes all keys from all databases.")
	r.add("TIME", timeCommand, 1, "loading stale fast random", noKeys, anyKind, "2.6.0",
		"Returns the server time.")
	r.add("COMMAND", command, -1, "loading stale", noKeys, anyKind, "2.8.13",
		"Returns detailed information about all commands.")
	r.add("CONFIG", configCommand, -2, "admin noscript loading stale", noKeys, anyKind, "2.0.0",
		"A container for server configuration commands.")
	r.add("INFO", info, -1, "loading stale", noKeys, anyKind, "1.0.0",
		"Returns information and statistics about the server.")
	r.add("LASTSAVE", lastSave, 1, "loading stale fast random", noKeys, anyKind, "1.0.0",
		"Returns the Unix timestamp of the last successful save to disk.")
	r.add("SAVE", save, 1, "admin noscript", noKeys, anyKind, "1.0.0",
		"Synchronously saves the database(s) to disk.")
	r.add("BGSAVE", bgSave, -1, "admin noscript", noKeys, anyKind, "1.0.0",
		"Asynchronously saves the database(s) to disk.")
}

func dbSize(ctx *Context) resp.Value {
	return intReply(ctx.db.Len())
}

// flushMode accepts the optional ASYNC or SYNC argument of the flush commands
func flushMode(args []string) error {
	if len(args) > 1 {
		return errSyntax
	}
	if len(args) == 1 {
		switch strings.ToUpper(args[0]) {
		case "ASYNC", "SYNC":
		default:
			return errSyntax
		}
	}
	return nil
}

func flushDB(ctx *Context) resp.Value {
	if err := flushMode(ctx.args); err != nil {
		return errorReply(err)
	}
	ctx.db.Flush()
	return resp.MakeOK()
}

func flushAll(ctx *Context) resp.Value {
	if err := flushMode(ctx.args); err != nil {
		return errorReply(err)
	}
	ctx.e.ks.FlushAll()
	return resp.MakeOK()
}

func timeCommand(ctx *Context) resp.Value {
	now := ctx.e.ks.Now()
	return bulks([]string{
		strconv.FormatInt(now.Unix(), 10),
		strconv.FormatInt(int64(now.Nanosecond()/1000), 10),
	})
}

func lastSave(ctx *Context) resp.Value {
	return resp.MakeInteger(ctx.e.startedAt.Unix())
}

func save(_ *Context) resp.Value {
	return resp.MakeOK()
}

func bgSave(ctx *Context) resp.Value {
	if len(ctx.args) > 1 || (len(ctx.args) == 1 && !strings.EqualFold(ctx.args[0], "SCHEDULE")) {
		return errorReply(errSyntax)
	}
	return resp.MakeSimpleString("Background saving started")
}

var commandSubcommands = map[string]subcommand{
	"COUNT":   {commandCount, 2},
	"INFO":    {commandInfo, -2},
	"DOCS":    {commandDocs, -2},
	"LIST":    {commandList, -2},
	"GETKEYS": {commandGetKeys, -3},
}

func command(ctx *Context) resp.Value {
	if len(ctx.args) == 0 {
		names := ctx.e.registry.names()
		out := make([]resp.Value, 0, len(names))
		for _, name := range names {
			spec, _ := ctx.e.registry.lookup(name)
			out = append(out, spec.infoReply())
		}
		return resp.MakeArray(out)
	}
	return dispatchSub(ctx, commandSubcommands)
}

func commandCount(ctx *Context) resp.Value {
	return intReply(len(ctx.e.registry.commands))
}

func commandInfo(ctx *Context) resp.Value {
	names := ctx.args[1:]
	if len(names) == 0 {
		names = ctx.e.registry.names()
	}
	out := make([]resp.Value, len(names))
	for i, name := range names {
		spec, ok := ctx.e.registry.lookup(name)
		if !ok {
			out[i] = resp.MakeNilArray()
			continue
		}
		out[i] = spec.infoReply()
	}
	return resp.MakeArray(out)
}

func commandDocs(ctx *Context) resp.Value {
	names := ctx.args[1:]
	if len(names) == 0 {
		names = ctx.e.registry.names()
	}
	var kv []resp.Value
	for _, name := range names {
		spec, ok := ctx.e.registry.lookup(name)
		if !ok {
			continue
		}
		kv = append(kv, resp.MakeBulkString(strings.ToLower(spec.name)), spec.docsReply())
	}
	return resp.MakeMap(kv)
}

func commandList(ctx *Context) resp.Value {
	names := ctx.e.registry.names()
	if len(ctx.args) == 1 {
		return bulks(names)
	}
	if len(ctx.args) != 4 || !strings.EqualFold(ctx.args[1], "FILTERBY") {
		return errorReply(errSyntax)
	}

	filter, value := strings.ToUpper(ctx.args[2]), ctx.args[3]
	out := []string{}
	for _, name := range names {
		spec, _ := ctx.e.registry.lookup(name)
		switch filter {
		case "PATTERN":
			if glob.MatchFold(value, name) {
				out = append(out, name)
			}
		case "ACLCAT":
			if strings.EqualFold(strings.TrimPrefix(value, "@"), spec.group) {
				out = append(out, name)
			}
		case "MODULE":
		default:
			return errorReply(errSyntax)
		}
	}
	return bulks(out)
}

func commandGetKeys(ctx *Context) resp.Value {
	spec, ok := ctx.e.registry.lookup(ctx.args[1])
	if !ok {
		return resp.MakeError("ERR Invalid command specified")
	}
	args := ctx.args[2:]
	if !spec.arityOK(len(args)) {
		return resp.MakeError("ERR Invalid number of arguments specified for command")
	}
	positions := spec.keys.positions(len(args))
	if len(positions) == 0 {
		return resp.MakeError("ERR The command has no key arguments")
	}
	keys := make([]string, len(positions))
	for i, p := range positions {
		keys[i] = args[p]
	}
	return bulks(keys)
}

var configSubcommands = map[string]subcommand{
	"GET":       {configGet, -3},
	"SET":       {configSet, -4},
	"RESETSTAT": {configResetStat, 2},
	"REWRITE":   {configRewrite, 2},
}

func configCommand(ctx *Context) resp.Value {
	return dispatchSub(ctx, configSubcommands)
}

// configParams returns the current value of every parameter CONFIG GET knows
func (e *Engine) configParams() map[string]string {
	params := map[string]string{
		"databases":              strconv.Itoa(e.ks.Len()),
		"notify-keyspace-events": e.notifyOn.String(),
		"port":                   e.cfg.Server.Port,
		"bind":                   e.cfg.Server.Host,
		"save":                   "",
		"appendonly":             "no",
		"maxmemory":              "0",
		"maxmemory-policy":       "noeviction",
		"timeout":                "0",
		"hz":                     "10",
		"lua-time-limit":         "5000",
		"proto-max-bulk-len":     "536870912",
		"list-max-listpack-size": "-2",
	}
	for k, v := range e.configOverrides {
		params[k] = v
	}
	return params
}

func configGet(ctx *Context) resp.Value {
	params := ctx.e.configParams()
	names := make([]string, 0, len(params))
	for name := range params {
		for _, pattern := range ctx.args[1:] {
			if glob.MatchFold(pattern, name) {
				names = append(names, name)
				break
			}
		}
	}
	slices.Sort(names)

	kv := make([]resp.Value, 0, 2*len(names))
	for _, name := range names {
		kv = append(kv, resp.MakeBulkString(name), resp.MakeBulkString(params[name]))
	}
	return resp.MakeMap(kv)
}

func configSet(ctx *Context) resp.Value {
	pairs := ctx.args[1:]
	if len(pairs)%2 != 0 {
		return resp.MakeErrorWrongNumberOfArguments("config|set")
	}

	params := ctx.e.configParams()
	flags := ctx.e.notifyOn
	overrides := make(map[string]string)
	for i := 0; i < len(pairs); i += 2 {
		name, value := strings.ToLower(pairs[i]), pairs[i+1]
		if _, ok := params[name]; !ok {
			return resp.MakeError(fmt.Sprintf("ERR Unknown option or number of arguments for CONFIG SET - '%s'", pairs[i]))
		}
		switch name {
		case "notify-keyspace-events":
			f, err := parseNotifyFlags(value)
			if err != nil {
				return resp.MakeError(fmt.Sprintf(
					"ERR CONFIG SET failed (possibly related to argument '%s') - Invalid event class character. Use 'Ag$lshzxeKEtmdn'.", name))
			}
			flags = f
		case "databases", "port", "bind":
			return resp.MakeError(fmt.Sprintf(
				"ERR CONFIG SET failed (possibly related to argument '%s') - can't set immutable config", name))
		default:
			overrides[name] = value
		}
	}

	ctx.e.notifyOn = flags
	if ctx.e.configOverrides == nil {
		ctx.e.configOverrides = make(map[string]string)
	}
	for k, v := range overrides {
		ctx.e.configOverrides[k] = v
	}
	return resp.MakeOK()
}

func configResetStat(ctx *Context) resp.Value {
	ctx.e.stats = stats{}
	return resp.MakeOK()
}

func configRewrite(_ *Context) resp.Value {
	return resp.MakeError("ERR The server is running without a config file")
}

var defaultInfoSections = []string{"server", "clients", "memory", "persistence", "stats", "replication", "keyspace"}

func info(ctx *Context) resp.Value {
	sections := defaultInfoSections
	if len(ctx.args) > 0 {
		sections = nil
		for _, a := range ctx.args {
			switch s := strings.ToLower(a); s {
			case "all", "everything", "default":
				sections = defaultInfoSections
			default:
				sections = append(sections, s)
			}
		}
	}

	var b strings.Builder
	for _, s := range sections {
		lines := ctx.e.infoSection(ctx, s)
		if lines == nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\r\n")
		}
		b.WriteString("# " + strings.ToUpper(s[:1]) + s[1:] + "\r\n")
		for _, l := range lines {
			b.WriteString(l + "\r\n")
		}
	}
	return resp.MakeBulkString(b.String())
}

func (e *Engine) infoSection(ctx *Context, section string) []string {
	switch section {
	case "server":
		uptime := int64(e.ks.Now().Sub(e.startedAt).Seconds())
		return []string{
			"redis_version:" + e.version.String(),
			"redis_mode:standalone",
			"os:" + runtime.GOOS,
			"arch_bits:64",
			"process_id:0",
			"tcp_port:" + e.cfg.Server.Port,
			fmt.Sprintf("uptime_in_seconds:%d", uptime),
			fmt.Sprintf("uptime_in_days:%d", uptime/86400),
			"hz:10",
		}
	case "clients":
		return []string{
			fmt.Sprintf("connected_clients:%d", len(e.clients)),
			fmt.Sprintf("blocked_clients:%d", e.waiters.Len()),
			fmt.Sprintf("pubsub_clients:%d", e.broker.Subscribers()),
		}
	case "memory":
		return []string{"used_memory:0", "maxmemory:0", "maxmemory_policy:noeviction"}
	case "persistence":
		return []string{
			"loading:0",
			"rdb_changes_since_last_save:0",
			fmt.Sprintf("rdb_last_save_time:%d", e.startedAt.Unix()),
			"aof_enabled:0",
		}
	case "stats":
		return []string{
			fmt.Sprintf("total_connections_received:%d", e.stats.connections),
			fmt.Sprintf("total_commands_processed:%d", e.stats.commands),
			fmt.Sprintf("expired_keys:%d", e.stats.expired),
			"evicted_keys:0",
			fmt.Sprintf("keyspace_hits:%d", e.stats.hits),
			fmt.Sprintf("keyspace_misses:%d", e.stats.misses),
			fmt.Sprintf("pubsub_channels:%d", len(e.broker.Channels(""))),
			fmt.Sprintf("pubsub_patterns:%d", e.broker.NumPat()),
			fmt.Sprintf("pubsub_messages_delivered:%d", e.stats.published),
		}
	case "replication":
		return []string{"role:master", "connected_slaves:0"}
	case "keyspace":
		lines := []string{}
		for i := 0; i < e.ks.Len(); i++ {
			db, _ := e.ks.DB(i) //nolint:errcheck
			if db.Len() == 0 {
				continue
			}
			lines = append(lines, fmt.Sprintf("db%d:keys=%d,expires=%d,avg_ttl=0", i, db.Len(), db.VolatileLen()))
		}
		return lines
	}
	return nil
}
