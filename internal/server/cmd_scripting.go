package server

import (
	"strings"

	"github.com/eternalApril/moonmock/internal/resp"
)

// ScriptRunner executes EVAL scripts. Run calls back into the engine through
// call, under the lock already held by the EVAL that started it
type ScriptRunner interface {
	Load(body string) string
	Exists(sha string) bool
	Flush()
	Run(sha string, keys, args []string, call func(args []string) resp.Value) resp.Value
}

func registerScriptingCommands(r *registry) {
	r.add("EVAL", eval, -3, "noscript stale movablekeys", noKeys, anyKind, "2.6.0",
		"Executes a server-side Lua script.")
	r.add("EVALSHA", eval, -3, "noscript stale movablekeys", noKeys, anyKind, "2.6.0",
		"Executes a server-side Lua script by SHA1 digest.")
	r.add("EVAL_RO", eval, -3, "readonly noscript stale movablekeys", noKeys, anyKind, "7.0.0",
		"Executes a read-only server-side Lua script.")
	r.add("EVALSHA_RO", eval, -3, "readonly noscript stale movablekeys", noKeys, anyKind, "7.0.0",
		"Executes a read-only server-side Lua script by SHA1 digest.")
	r.add("SCRIPT", scriptCommand, -2, "noscript", noKeys, anyKind, "2.6.0",
		"A container for Lua scripts management commands.")
}

// scriptArgs splits the numkeys, keys and arguments of EVAL
func scriptArgs(args []string) ([]string, []string, error) {
	n, err := parseInt(args[0])
	if err != nil {
		return nil, nil, err
	}
	if n < 0 {
		return nil, nil, replyError("ERR Number of keys can't be negative")
	}
	if n > int64(len(args)-1) {
		return nil, nil, replyError("ERR Number of keys can't be greater than number of args")
	}
	return args[1 : 1+n], args[1+n:], nil
}

// eval serves EVAL, EVALSHA and their read-only variants
func eval(ctx *Context) resp.Value {
	if ctx.e.scripts == nil {
		return resp.MakeError("ERR scripting is disabled")
	}
	keys, args, err := scriptArgs(ctx.args[1:])
	if err != nil {
		return errorReply(err)
	}

	var sha string
	if strings.HasPrefix(ctx.name, "EVALSHA") {
		sha = strings.ToLower(ctx.args[0])
		if !ctx.e.scripts.Exists(sha) {
			return errorReply(errNoScript)
		}
	} else {
		sha = ctx.e.scripts.Load(ctx.args[0])
	}

	readOnly := strings.HasSuffix(ctx.name, "_RO")
	return ctx.e.scripts.Run(sha, keys, args, func(call []string) resp.Value {
		return ctx.e.scriptCall(ctx, call, readOnly)
	})
}

// scriptCall runs one redis.call from a script. Blocking commands time out at
// once and the script sees the client's current database
func (e *Engine) scriptCall(parent *Context, args []string, readOnly bool) resp.Value {
	name := strings.ToUpper(args[0])
	spec, ok := e.registry.lookup(name)
	if !ok {
		return resp.MakeError("ERR Unknown Redis command called from script")
	}
	if spec.flags&flagNoScript != 0 {
		return errorReply(errNotInScript)
	}
	if !spec.arityOK(len(args) - 1) {
		return resp.MakeError("ERR Wrong number of args calling Redis command from script")
	}
	if readOnly && spec.flags&flagWrite != 0 {
		return resp.MakeError("ERR Write commands are not allowed from read-only scripts.")
	}

	ctx := e.newContext(parent.client, spec, args[1:])
	ctx.noBlock = true
	ctx.inScript = true
	return e.call(ctx)
}

var scriptSubcommands = map[string]subcommand{
	"LOAD":   {scriptLoad, 3},
	"EXISTS": {scriptExists, -3},
	"FLUSH":  {scriptFlush, -2},
	"KILL":   {scriptKill, 2},
}

func scriptCommand(ctx *Context) resp.Value {
	if ctx.e.scripts == nil {
		return resp.MakeError("ERR scripting is disabled")
	}
	return dispatchSub(ctx, scriptSubcommands)
}

// compiler is implemented by hosts that can validate a script without running it
type compiler interface {
	Compile(body string) error
}

func scriptLoad(ctx *Context) resp.Value {
	body := ctx.args[1]
	if c, ok := ctx.e.scripts.(compiler); ok {
		if err := c.Compile(body); err != nil {
			return resp.MakeError("ERR Error compiling script (new function): " +
				strings.ReplaceAll(err.Error(), "<string>", "user_script"))
		}
	}
	return resp.MakeBulkString(ctx.e.scripts.Load(body))
}

func scriptExists(ctx *Context) resp.Value {
	shas := ctx.args[1:]
	out := make([]resp.Value, len(shas))
	for i, sha := range shas {
		out[i] = boolInt(ctx.e.scripts.Exists(sha))
	}
	return resp.MakeArray(out)
}

func scriptFlush(ctx *Context) resp.Value {
	switch len(ctx.args) {
	case 1:
	case 2:
		mode := strings.ToUpper(ctx.args[1])
		if mode != "ASYNC" && mode != "SYNC" {
			return resp.MakeError("ERR SCRIPT FLUSH only support SYNC|ASYNC option")
		}
	default:
		return errorReply(errSyntax)
	}
	ctx.e.scripts.Flush()
	return resp.MakeOK()
}

func scriptKill(ctx *Context) resp.Value {
	return resp.MakeError("NOTBUSY No scripts in execution right now.")
}
