// Package scripting runs EVAL scripts on gopher-lua. Scripts reach the data
// only through the call function handed to Run
package scripting

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"sync"

	"github.com/eternalApril/moonmock/internal/resp"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Caller issues one command back into the engine
type Caller = func(args []string) resp.Value

// Host caches script bodies by SHA1 and runs them
type Host struct {
	mu      sync.Mutex
	scripts map[string]string
	logger  *zap.Logger
}

func NewHost(logger *zap.Logger) *Host {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Host{
		scripts: make(map[string]string),
		logger:  logger,
	}
}

// SHA1Hex returns the lowercase hex digest EVALSHA refers to
func SHA1Hex(body string) string {
	sum := sha1.Sum([]byte(body))
	return hex.EncodeToString(sum[:])
}

// Load caches body and returns its digest
func (h *Host) Load(body string) string {
	sha := SHA1Hex(body)
	h.mu.Lock()
	h.scripts[sha] = body
	h.mu.Unlock()
	return sha
}

func (h *Host) Exists(sha string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.scripts[strings.ToLower(sha)]
	return ok
}

// Flush forgets every cached script
func (h *Host) Flush() {
	h.mu.Lock()
	h.scripts = make(map[string]string)
	h.mu.Unlock()
}

// Compile reports whether body is valid Lua
func (h *Host) Compile(body string) error {
	L := newState()
	defer L.Close()
	_, err := L.LoadString(body)
	return err
}

// Run executes a cached script with KEYS and ARGV bound. Every run gets a fresh
// interpreter, so globals never leak between scripts
func (h *Host) Run(sha string, keys, args []string, call Caller) resp.Value {
	sha = strings.ToLower(sha)
	h.mu.Lock()
	body, ok := h.scripts[sha]
	h.mu.Unlock()
	if !ok {
		return resp.MakeError("NOSCRIPT No matching script. Please use EVAL.")
	}

	L := newState()
	defer L.Close()

	L.SetGlobal("KEYS", stringTable(L, keys))
	L.SetGlobal("ARGV", stringTable(L, args))
	L.SetGlobal("redis", h.redisLib(L, call))

	fn, err := L.LoadString(body)
	if err != nil {
		return resp.MakeError("ERR Error compiling script (new function): " + scriptMessage(err.Error()))
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return h.failure(sha, err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	return toReply(ret)
}

// failure converts a script error. Errors raised by redis.call keep the text
// of the failed command
func (h *Host) failure(sha string, err error) resp.Value {
	if apiErr, ok := err.(*lua.ApiError); ok {
		if t, ok := apiErr.Object.(*lua.LTable); ok {
			if msg, ok := t.RawGetString("err").(lua.LString); ok {
				return resp.MakeError(string(msg))
			}
		}
		if msg, ok := apiErr.Object.(lua.LString); ok {
			err = errorString(string(msg))
		}
	}
	h.logger.Debug("script failed", zap.String("sha", sha), zap.Error(err))
	return resp.MakeError("ERR " + scriptMessage(err.Error()) + " script: " + sha + ", on @user_script:1.")
}

type errorString string

func (e errorString) Error() string { return string(e) }

// scriptMessage names the chunk the way server-side errors do
func scriptMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "<string>", "user_script")
	if i := strings.Index(msg, "\nstack traceback:"); i >= 0 {
		msg = msg[:i]
	}
	return msg
}

func newState() *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// scripts must not reach the host
	for _, name := range []string{"dofile", "loadfile", "print"} {
		L.SetGlobal(name, lua.LNil)
	}
	return L
}

func stringTable(L *lua.LState, items []string) *lua.LTable {
	t := L.CreateTable(len(items), 0)
	for _, s := range items {
		t.Append(lua.LString(s))
	}
	return t
}

// redisLib builds the redis global: call, pcall and the reply helpers
func (h *Host) redisLib(L *lua.LState, call Caller) *lua.LTable {
	lib := L.NewTable()
	invoke := func(L *lua.LState, protected bool) int {
		n := L.GetTop()
		if n == 0 {
			return raise(L, protected, "ERR Please specify at least one argument for this redis lib call")
		}
		args := make([]string, n)
		for i := 1; i <= n; i++ {
			switch v := L.Get(i).(type) {
			case lua.LString:
				args[i-1] = string(v)
			case lua.LNumber:
				args[i-1] = v.String()
			default:
				return raise(L, protected, "ERR Lua redis lib command arguments must be strings or integers")
			}
		}
		reply := call(args)
		if reply.IsError() && !protected {
			L.Error(errorTable(L, reply.Text()), 1)
			return 0
		}
		L.Push(toLua(L, reply))
		return 1
	}

	L.SetFuncs(lib, map[string]lua.LGFunction{
		"call":  func(L *lua.LState) int { return invoke(L, false) },
		"pcall": func(L *lua.LState) int { return invoke(L, true) },
		"error_reply": func(L *lua.LState) int {
			L.Push(errorTable(L, L.CheckString(1)))
			return 1
		},
		"status_reply": func(L *lua.LState) int {
			t := L.NewTable()
			t.RawSetString("ok", lua.LString(L.CheckString(1)))
			L.Push(t)
			return 1
		},
		"sha1hex": func(L *lua.LState) int {
			L.Push(lua.LString(SHA1Hex(L.CheckString(1))))
			return 1
		},
		"log": func(L *lua.LState) int {
			level := L.CheckInt(1)
			msg := L.CheckString(2)
			switch {
			case level >= logWarning:
				h.logger.Warn(msg, zap.String("source", "script"))
			case level >= logNotice:
				h.logger.Info(msg, zap.String("source", "script"))
			default:
				h.logger.Debug(msg, zap.String("source", "script"))
			}
			return 0
		},
	})
	lib.RawSetString("LOG_DEBUG", lua.LNumber(logDebug))
	lib.RawSetString("LOG_VERBOSE", lua.LNumber(logVerbose))
	lib.RawSetString("LOG_NOTICE", lua.LNumber(logNotice))
	lib.RawSetString("LOG_WARNING", lua.LNumber(logWarning))
	return lib
}

const (
	logDebug = iota
	logVerbose
	logNotice
	logWarning
)

func errorTable(L *lua.LState, msg string) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("err", lua.LString(msg))
	return t
}

// raise fails redis.call with msg, or returns it as an error table from pcall
func raise(L *lua.LState, protected bool, msg string) int {
	if protected {
		L.Push(errorTable(L, msg))
		return 1
	}
	L.Error(errorTable(L, msg), 1)
	return 0
}
