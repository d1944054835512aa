package server

import (
	"time"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/storage"
	"github.com/pkg/errors"
)

// commandFunc is the handler of one command. It runs with the engine lock held
type commandFunc func(ctx *Context) resp.Value

// Context carries one command invocation through its handler
type Context struct {
	e      *Engine
	client *Client
	spec   *commandSpec
	name   string   // upper-case command name
	args   []string // arguments without the command name
	db     *storage.Database

	noBlock  bool // inside EXEC or a script: blocking commands time out at once
	retry    bool // re-run of a blocked command after one of its keys was written
	inScript bool

	blockReq *blockRequest
}

// blockRequest is what a handler asks for when it cannot proceed yet
type blockRequest struct {
	keys         []string
	timeout      time.Duration
	timeoutReply resp.Value
}

// Engine returns the engine running the command
func (ctx *Context) Engine() *Engine {
	return ctx.e
}

// Client returns the calling client
func (ctx *Context) Client() *Client {
	return ctx.client
}

// Args returns the command arguments, without the command name
func (ctx *Context) Args() []string {
	return ctx.args
}

// DB returns the database selected by the caller
func (ctx *Context) DB() *storage.Database {
	return ctx.db
}

// Now returns the engine clock in unix milliseconds
func (ctx *Context) Now() int64 {
	return ctx.e.ks.NowMs()
}

// Written records a mutation of key. Extension commands call it after every write
func (ctx *Context) Written(key, event string) {
	ctx.written(key, event, notifyModule)
}

// written bumps the version of key, drops it when its value became empty, wakes
// the waiters blocked on it and emits the keyspace notification for event
func (ctx *Context) written(key, event string, class notifyFlags) {
	ctx.e.touched(ctx.db, key, event, class)
}

// touched is written for a database other than the caller's, as MOVE and COPY need
func (e *Engine) touched(db *storage.Database, key, event string, class notifyFlags) {
	removed, err := db.Touch(key)
	if err != nil {
		panic(errors.Wrapf(err, "touch %q", key))
	}
	e.signalReady(db.ID(), key)
	e.notify(class, event, key, db.ID())
	if removed {
		e.notify(notifyGeneric, "del", key, db.ID())
	}
}

// block parks the client until one of keys is written or timeout elapses. Zero
// waits forever. Where blocking is not allowed the timeout reply is returned at once
func (ctx *Context) block(keys []string, timeout time.Duration, timeoutReply resp.Value) resp.Value {
	if ctx.noBlock {
		return timeoutReply
	}
	ctx.blockReq = &blockRequest{keys: keys, timeout: timeout, timeoutReply: timeoutReply}
	return resp.Value{}
}

// option reports whether the emulated version accepts the given option of this command
func (ctx *Context) option(opt string) bool {
	since, ok := optionSince[ctx.name+" "+opt]
	if !ok {
		return true
	}
	return ctx.e.version.atLeast(mustParseVersion(since))
}

// lookupAs returns the live value of key as T. A value of another kind is a WRONGTYPE error
func lookupAs[T storage.Value](ctx *Context, key string) (T, bool, error) {
	var zero T
	v, ok := ctx.db.Get(key)
	ctx.e.countLookup(ok)
	if !ok {
		ctx.e.notify(notifyKeyMiss, "keymiss", key, ctx.db.ID())
		return zero, false, nil
	}
	t, ok := v.(T)
	if !ok {
		return zero, false, errWrongType
	}
	return t, true, nil
}

// obtain returns the value of key as T, storing a fresh one from create when absent.
// Callers validate their arguments first: an inserted value stays until written
// removes it again
func obtain[T storage.Value](ctx *Context, key string, create func() T) (T, error) {
	t, ok, err := lookupAs[T](ctx, key)
	if err != nil || ok {
		return t, err
	}
	t = create()
	if err := ctx.db.Set(key, t, false); err != nil {
		return t, err
	}
	ctx.e.notify(notifyNew, "new", key, ctx.db.ID())
	return t, nil
}

// Lookup returns the live value of key for extension commands
func Lookup[T storage.Value](ctx *Context, key string) (T, bool, error) {
	return lookupAs[T](ctx, key)
}

// Obtain returns the value of key, creating it with create when absent
func Obtain[T storage.Value](ctx *Context, key string, create func() T) (T, error) {
	return obtain(ctx, key, create)
}
