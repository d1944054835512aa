package server

import (
	"github.com/eternalApril/moonmock/internal/resp"
)

// watchKey identifies a watched key across databases
type watchKey struct {
	db  int
	key string
}

type queuedCommand struct {
	spec *commandSpec
	args []string
}

// transaction is the per-client MULTI state and the versions snapshotted by WATCH
type transaction struct {
	active  bool
	dirty   bool // a command failed validation while queuing, EXEC must abort
	queue   []queuedCommand
	watched map[watchKey]uint64
}

func (t *transaction) begin() {
	t.active = true
	t.dirty = false
	t.queue = nil
}

// flag marks a queuing failure. Outside MULTI it does nothing
func (t *transaction) flag() {
	if t.active {
		t.dirty = true
	}
}

func (t *transaction) enqueue(spec *commandSpec, args []string) {
	t.queue = append(t.queue, queuedCommand{spec: spec, args: args})
}

func (t *transaction) reset() {
	t.active = false
	t.dirty = false
	t.queue = nil
}

// controlsTransaction lists the commands executed immediately inside MULTI
func controlsTransaction(name string) bool {
	switch name {
	case "EXEC", "DISCARD", "MULTI", "WATCH", "QUIT", "RESET":
		return true
	}
	return false
}

func registerTxCommands(r *registry) {
	r.add("MULTI", multiCommand, 1, "noscript loading stale fast", noKeys, anyKind, "1.2.0",
		"Starts a transaction.")
	r.add("EXEC", execCommand, 1, "noscript loading stale", noKeys, anyKind, "1.2.0",
		"Executes all commands in a transaction.")
	r.add("DISCARD", discardCommand, 1, "noscript loading stale fast", noKeys, anyKind, "2.0.0",
		"Discards a transaction.")
	r.add("WATCH", watchCommand, -2, "noscript loading stale fast", allKeys, anyKind, "2.2.0",
		"Monitors changes to keys to determine the execution of a transaction.")
	r.add("UNWATCH", unwatchCommand, 1, "noscript loading stale fast", noKeys, anyKind, "2.2.0",
		"Forgets about watched keys of a transaction.")
}

func multiCommand(ctx *Context) resp.Value {
	tx := &ctx.client.tx
	if tx.active {
		return errorReply(errNestedMulti)
	}
	tx.begin()
	return resp.MakeOK()
}

func discardCommand(ctx *Context) resp.Value {
	tx := &ctx.client.tx
	if !tx.active {
		return errorReply(errDiscardNo)
	}
	tx.reset()
	ctx.e.unwatchAll(ctx.client)
	return resp.MakeOK()
}

// execCommand runs the queued commands in order. Per-command errors land in
// their slot of the reply, a changed watched key aborts everything
func execCommand(ctx *Context) resp.Value {
	c := ctx.client
	e := ctx.e
	if !c.tx.active {
		return errorReply(errExecNoMulti)
	}

	queue, dirty := c.tx.queue, c.tx.dirty
	c.tx.reset()
	defer e.unwatchAll(c)

	if dirty {
		return errorReply(errExecAbort)
	}
	if !e.watchesHold(c) {
		return resp.MakeNilArray()
	}

	replies := make([]resp.Value, len(queue))
	for i, q := range queue {
		sub := e.newContext(c, q.spec, q.args)
		sub.noBlock = true
		replies[i] = e.call(sub)
	}
	return resp.MakeArray(replies)
}

func watchCommand(ctx *Context) resp.Value {
	c := ctx.client
	if c.tx.active {
		return errorReply(errWatchInMulti)
	}
	if c.tx.watched == nil {
		c.tx.watched = make(map[watchKey]uint64)
	}
	for _, key := range ctx.args {
		wk := watchKey{db: ctx.db.ID(), key: key}
		if _, ok := c.tx.watched[wk]; ok {
			continue
		}
		ctx.db.Watch(key)
		c.tx.watched[wk] = ctx.db.Version(key)
	}
	return resp.MakeOK()
}

func unwatchCommand(ctx *Context) resp.Value {
	ctx.e.unwatchAll(ctx.client)
	return resp.MakeOK()
}

// watchesHold reports whether every watched key still has its snapshotted version
func (e *Engine) watchesHold(c *Client) bool {
	for wk, v := range c.tx.watched {
		db, err := e.ks.DB(wk.db)
		if err != nil {
			return false
		}
		if db.Version(wk.key) != v {
			return false
		}
	}
	return true
}

func (e *Engine) unwatchAll(c *Client) {
	for wk := range c.tx.watched {
		if db, err := e.ks.DB(wk.db); err == nil {
			db.Unwatch(wk.key)
		}
	}
	c.tx.watched = nil
}
