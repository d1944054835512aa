package server

import (
	"fmt"
	"strings"

	"github.com/eternalApril/moonmock/internal/resp"
)

func registerConnectionCommands(r *registry) {
	r.add("PING", ping, -1, "fast", noKeys, anyKind, "1.0.0",
		"Returns the server's liveliness response.")
	r.add("ECHO", echo, 2, "fast", noKeys, anyKind, "1.0.0",
		"Returns the given string.")
	r.add("SELECT", selectDB, 2, "loading stale fast", noKeys, anyKind, "1.0.0",
		"Changes the selected database.")
	r.add("SWAPDB", swapDB, 3, "write fast", noKeys, anyKind, "4.0.0",
		"Swaps two databases.")
	r.add("QUIT", quit, -1, "noscript loading stale fast", noKeys, anyKind, "1.0.0",
		"Closes the connection.")
	r.add("RESET", reset, 1, "noscript loading stale fast", noKeys, anyKind, "6.2.0",
		"Resets the connection.")
	r.add("HELLO", hello, -1, "noscript loading stale fast", noKeys, anyKind, "6.0.0",
		"Handshakes with the server.")
	r.add("AUTH", auth, -2, "noscript loading stale fast", noKeys, anyKind, "1.0.0",
		"Authenticates the connection.")
	r.add("CLIENT", clientCommand, -2, "", noKeys, anyKind, "2.4.0",
		"A container for client connection commands.")
}

// subcommand is one entry of a container command such as CLIENT or XGROUP.
// arity counts the container name and the subcommand
type subcommand struct {
	fn    commandFunc
	arity int
}

// dispatchSub runs the subcommand named by the first argument
func dispatchSub(ctx *Context, subs map[string]subcommand) resp.Value {
	sub := strings.ToUpper(ctx.args[0])
	s, ok := subs[sub]
	if !ok {
		return unknownSubcommand(ctx.name, ctx.args[0])
	}
	n := len(ctx.args) + 1
	if (s.arity >= 0 && n != s.arity) || (s.arity < 0 && n < -s.arity) {
		return resp.MakeError(fmt.Sprintf("ERR wrong number of arguments for '%s|%s' command",
			strings.ToLower(ctx.name), strings.ToLower(sub)))
	}
	return s.fn(ctx)
}

func ping(ctx *Context) resp.Value {
	if len(ctx.args) > 1 {
		return resp.MakeErrorWrongNumberOfArguments("ping")
	}
	if ctx.client.Protocol() < 3 && ctx.e.subscribed(ctx.client) {
		msg := ""
		if len(ctx.args) == 1 {
			msg = ctx.args[0]
		}
		return resp.MakeArray([]resp.Value{resp.MakeBulkString("pong"), resp.MakeBulkString(msg)})
	}
	if len(ctx.args) == 1 {
		return resp.MakeBulkString(ctx.args[0])
	}
	return resp.MakeSimpleString("PONG")
}

func echo(ctx *Context) resp.Value {
	return resp.MakeBulkString(ctx.args[0])
}

func selectDB(ctx *Context) resp.Value {
	n, err := parseInt(ctx.args[0])
	if err != nil {
		return errorReply(err)
	}
	if n < 0 || n >= int64(ctx.e.ks.Len()) {
		return errorReply(errDBIndex)
	}
	ctx.client.db = int(n)
	db, _ := ctx.e.ks.DB(int(n)) //nolint:errcheck
	ctx.db = db
	return resp.MakeOK()
}

func swapDB(ctx *Context) resp.Value {
	a, err := parseInt(ctx.args[0])
	if err != nil {
		return resp.MakeError("ERR invalid first DB index")
	}
	b, err := parseInt(ctx.args[1])
	if err != nil {
		return resp.MakeError("ERR invalid second DB index")
	}
	if err := ctx.e.ks.Swap(int(a), int(b)); err != nil {
		return errorReply(err)
	}
	// waiters on either database may be served by the swapped-in data
	for rk := range ctx.e.waiters.byKey {
		if rk.db == int(a) || rk.db == int(b) {
			ctx.e.signalReady(rk.db, rk.key)
		}
	}
	return resp.MakeOK()
}

func quit(ctx *Context) resp.Value {
	ctx.client.quit = true
	return resp.MakeOK()
}

func reset(ctx *Context) resp.Value {
	c := ctx.client
	c.tx.reset()
	ctx.e.unwatchAll(c)
	ctx.e.broker.RemoveAll(c)
	c.db = 0
	c.name = ""
	c.proto.Store(2)
	return resp.MakeSimpleString("RESET")
}

func auth(ctx *Context) resp.Value {
	if len(ctx.args) > 2 {
		return errorReply(errSyntax)
	}
	return resp.MakeOK()
}

func hello(ctx *Context) resp.Value {
	c := ctx.client
	proto := c.Protocol()
	p := newArgParser(ctx.args)
	if p.more() {
		v, err := parseInt(p.args[0])
		if err != nil {
			return resp.MakeError("ERR Protocol version is not an integer or out of range")
		}
		if v != 2 && v != 3 {
			return resp.MakeError("NOPROTO unsupported protocol version")
		}
		proto = int(v)
		p.pos++
	}

	name, setName := "", false
	for p.more() {
		switch opt := p.next(); opt {
		case "AUTH":
			if _, err := p.value(); err != nil {
				return errorReply(err)
			}
			if _, err := p.value(); err != nil {
				return errorReply(err)
			}
		case "SETNAME":
			v, err := p.value()
			if err != nil {
				return errorReply(err)
			}
			if !validClientName(v) {
				return errorReply(errClientName)
			}
			name, setName = v, true
		default:
			return resp.MakeError(fmt.Sprintf("ERR Syntax error in HELLO option '%s'", strings.ToLower(opt)))
		}
	}

	c.proto.Store(int32(proto))
	if setName {
		c.name = name
	}

	return resp.MakeMap([]resp.Value{
		resp.MakeBulkString("server"), resp.MakeBulkString("redis"),
		resp.MakeBulkString("version"), resp.MakeBulkString(ctx.e.version.String()),
		resp.MakeBulkString("proto"), resp.MakeInteger(int64(proto)),
		resp.MakeBulkString("id"), resp.MakeInteger(c.id),
		resp.MakeBulkString("mode"), resp.MakeBulkString("standalone"),
		resp.MakeBulkString("role"), resp.MakeBulkString("master"),
		resp.MakeBulkString("modules"), resp.MakeArray(nil),
	})
}

func validClientName(name string) bool {
	for i := 0; i < len(name); i++ {
		if name[i] < '!' || name[i] > '~' {
			return false
		}
	}
	return true
}

var clientSubcommands = map[string]subcommand{
	"ID":       {clientID, 2},
	"SETNAME":  {clientSetName, 3},
	"GETNAME":  {clientGetName, 2},
	"LIST":     {clientList, -2},
	"INFO":     {clientInfo, 2},
	"SETINFO":  {clientSetInfo, 4},
	"NO-EVICT": {clientOnOff, 3},
	"NO-TOUCH": {clientOnOff, 3},
}

func clientCommand(ctx *Context) resp.Value {
	return dispatchSub(ctx, clientSubcommands)
}

func clientID(ctx *Context) resp.Value {
	return resp.MakeInteger(ctx.client.id)
}

func clientSetName(ctx *Context) resp.Value {
	if !validClientName(ctx.args[1]) {
		return errorReply(errClientName)
	}
	ctx.client.name = ctx.args[1]
	return resp.MakeOK()
}

func clientGetName(ctx *Context) resp.Value {
	return nilOr(ctx.client.name, ctx.client.name != "")
}

func clientList(ctx *Context) resp.Value {
	now := ctx.e.ks.Now()
	var b strings.Builder
	for _, c := range ctx.e.clientsByID() {
		b.WriteString(c.info(now, ctx.e.broker.Count(c)))
		b.WriteByte('\n')
	}
	return resp.MakeBulkString(b.String())
}

func clientInfo(ctx *Context) resp.Value {
	c := ctx.client
	return resp.MakeBulkString(c.info(ctx.e.ks.Now(), ctx.e.broker.Count(c)) + "\n")
}

func clientSetInfo(ctx *Context) resp.Value {
	switch strings.ToUpper(ctx.args[1]) {
	case "LIB-NAME", "LIB-VER":
		return resp.MakeOK()
	}
	return resp.MakeError(fmt.Sprintf("ERR Unrecognized option '%s'", ctx.args[1]))
}

func clientOnOff(ctx *Context) resp.Value {
	switch strings.ToUpper(ctx.args[1]) {
	case "ON", "OFF":
		return resp.MakeOK()
	}
	return errorReply(errSyntax)
}
