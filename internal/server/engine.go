package server

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternalApril/moonmock/internal/config"
	"github.com/eternalApril/moonmock/internal/metrics"
	"github.com/eternalApril/moonmock/internal/pubsub"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/eternalApril/moonmock/internal/scripting"
	"github.com/eternalApril/moonmock/internal/storage"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/rand"
)

// Engine coordinates the execution of commands. Every command, a whole EXEC
// batch and a whole script run inside one critical section guarded by mu
type Engine struct {
	mu       sync.Mutex
	ks       *storage.Keyspace
	registry *registry
	version  version
	broker   *pubsub.Broker
	scripts  ScriptRunner
	rng      *rand.Rand
	waiters  *waitQueue
	notifyOn notifyFlags
	clients  map[int64]*Client
	nextID   int64
	stats    stats

	configOverrides map[string]string // CONFIG SET values of parameters without behavior

	cfg       *config.Config
	logger    *zap.Logger
	metrics   *metrics.Metrics
	startedAt time.Time
	stopGC    chan struct{} // Channel for the background GC stop signal
	stopOnce  sync.Once     // Ensures that the stop happens only once

	offline atomic.Bool // set by SetConnected(false)
}

// stats are the counters reported by INFO and cleared by CONFIG RESETSTAT
type stats struct {
	commands    int64
	connections int64
	expired     int64
	hits        int64
	misses      int64
	published   int64
}

// NewEngine builds the keyspace and the command registry for the configured
// server version and, if enabled in the config, starts background cleanup of
// outdated keys. m may be nil
func NewEngine(cfg *config.Config, logger *zap.Logger, m *metrics.Metrics) (*Engine, error) {
	v, err := parseVersion(cfg.Engine.Version)
	if err != nil {
		return nil, err
	}
	ks, err := storage.New(cfg.Engine.Databases)
	if err != nil {
		return nil, errors.Wrap(err, "create keyspace")
	}
	flags, err := parseNotifyFlags(cfg.Engine.NotifyKeyspaceEvents)
	if err != nil {
		return nil, errors.Wrap(err, "notify_keyspace_events")
	}

	seed := cfg.Engine.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	e := &Engine{
		ks:        ks,
		registry:  newRegistry(v),
		version:   v,
		broker:    pubsub.NewBroker(),
		scripts:   scripting.NewHost(logger),
		rng:       rand.New(rand.NewSource(uint64(seed))),
		waiters:   newWaitQueue(),
		notifyOn:  flags,
		clients:   make(map[int64]*Client),
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		startedAt: time.Now(),
		stopGC:    make(chan struct{}),
	}
	ks.OnExpire(e.onExpire)

	if cfg.GC.Enabled {
		go e.startGCLoop()
	}

	return e, nil
}

// SetScriptRunner replaces the script host
func (e *Engine) SetScriptRunner(r ScriptRunner) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.scripts = r
}

// SetClock replaces the time source used for expiry and stream IDs
func (e *Engine) SetClock(now func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ks.SetClock(now)
}

// Seed makes every sampling command deterministic from now on
func (e *Engine) Seed(seed uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Seed(seed)
}

// SetConnected switches the engine off and back on. While off, Client.Do fails
// with ErrDisconnected and listeners refuse and drop their connections. The
// data is kept
func (e *Engine) SetConnected(on bool) {
	e.offline.Store(!on)
	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("connectivity changed", zap.Bool("connected", on))
	}
}

// Connected reports whether clients can reach the engine
func (e *Engine) Connected() bool {
	return !e.offline.Load()
}

// Broker returns the pub/sub broker shared by all clients
func (e *Engine) Broker() *pubsub.Broker {
	return e.broker
}

// Execute runs one command for c and returns its reply. A blocking command that
// cannot proceed parks here, outside the lock, until it is woken, times out or
// ctx is done
func (e *Engine) Execute(ctx context.Context, c *Client, args []string) resp.Value {
	if len(args) == 0 {
		return resp.MakeError("ERR empty command")
	}
	args = append([]string(nil), args...)

	e.mu.Lock()
	if c.closed {
		e.mu.Unlock()
		return resp.MakeError("ERR connection closed")
	}
	reply, w := e.process(c, args)
	e.serveReady()
	if c.quit {
		e.closeClient(c)
	}
	e.mu.Unlock()

	if w != nil {
		return e.wait(ctx, w)
	}
	return reply
}

// MayBlock reports whether args name a blocking command c could park on. A
// command queued by MULTI never blocks
func (e *Engine) MayBlock(c *Client, args []string) bool {
	if len(args) == 0 {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	spec, ok := e.registry.lookup(strings.ToUpper(args[0]))
	return ok && spec.flags&flagBlocking != 0 && !c.tx.active
}

// process runs the dispatcher checks for a top-level command and either queues
// it, executes it or returns the waiter it registered
func (e *Engine) process(c *Client, args []string) (resp.Value, *waiter) {
	name := strings.ToUpper(args[0])
	c.lastCmd = strings.ToLower(name)

	spec, ok := e.registry.lookup(name)
	if !ok {
		c.tx.flag()
		return unknownCommand(args[0], args[1:]), nil
	}
	if !spec.arityOK(len(args) - 1) {
		c.tx.flag()
		return resp.MakeErrorWrongNumberOfArguments(strings.ToLower(name)), nil
	}

	if c.Protocol() < 3 && e.subscribed(c) && !allowedWhileSubscribed(name) {
		return errorReply(formatted(errPubSubContext, strings.ToLower(name))), nil
	}

	if c.tx.active {
		if spec.flags&flagNoMulti != 0 {
			c.tx.flag()
			return resp.MakeError("ERR Command not allowed inside a transaction"), nil
		}
		if !controlsTransaction(name) {
			c.tx.enqueue(spec, args[1:])
			return resp.MakeSimpleString("QUEUED"), nil
		}
	}

	ctx := e.newContext(c, spec, args[1:])
	reply := e.call(ctx)
	if ctx.blockReq != nil {
		return resp.Value{}, e.park(ctx)
	}
	return reply, nil
}

func (e *Engine) newContext(c *Client, spec *commandSpec, args []string) *Context {
	db, err := e.ks.DB(c.db)
	if err != nil {
		// SELECT validates the index, a bad one means a corrupted client
		panic(err)
	}
	return &Context{
		e:      e,
		client: c,
		spec:   spec,
		name:   spec.name,
		args:   args,
		db:     db,
	}
}

// call type-checks the keys of a command and runs its handler
func (e *Engine) call(ctx *Context) resp.Value {
	if err := e.checkKinds(ctx); err != nil {
		return errorReply(err)
	}
	return e.invoke(ctx)
}

// invoke runs the handler. A panic aborts only this command
func (e *Engine) invoke(ctx *Context) (reply resp.Value) {
	if e.logger.Core().Enabled(zap.DebugLevel) {
		e.logger.Debug("executing command",
			zap.String("cmd", ctx.name),
			zap.Int("args_count", len(ctx.args)),
			zap.Int64("client", ctx.client.id),
		)
	}

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("command aborted",
				zap.String("cmd", ctx.name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			reply = resp.MakeError(string(errInternal))
		}
		e.stats.commands++
		e.metrics.ObserveCommand(ctx.name, reply.IsError(), time.Since(start))
	}()

	return ctx.spec.handler(ctx)
}

// checkKinds fails with WRONGTYPE when a key of a single-kind command holds
// another kind. Absent keys pass
func (e *Engine) checkKinds(ctx *Context) error {
	if ctx.spec.kind == storage.KindNone {
		return nil
	}
	for _, pos := range ctx.spec.keys.positions(len(ctx.args)) {
		v, ok := ctx.db.Get(ctx.args[pos])
		if ok && v.Kind() != ctx.spec.kind {
			return errWrongType
		}
	}
	return nil
}

// allowedWhileSubscribed lists what a RESP2 client may run in subscribed state
func allowedWhileSubscribed(name string) bool {
	switch name {
	case "SUBSCRIBE", "PSUBSCRIBE", "SSUBSCRIBE", "UNSUBSCRIBE", "PUNSUBSCRIBE", "SUNSUBSCRIBE",
		"PING", "QUIT", "RESET":
		return true
	}
	return false
}

// subscribed reports whether c holds any channel, pattern or shard subscription
func (e *Engine) subscribed(c *Client) bool {
	return e.broker.Count(c)+e.broker.ShardCount(c) > 0
}

func (e *Engine) countLookup(hit bool) {
	if hit {
		e.stats.hits++
	} else {
		e.stats.misses++
	}
	e.metrics.Lookup(hit)
}

func (e *Engine) onExpire(db int, key string) {
	e.stats.expired++
	e.metrics.Expired(1)
	e.notify(notifyExpired, "expired", key, db)
}

// Shutdown stops background work and disconnects every client
func (e *Engine) Shutdown() {
	e.stopOnce.Do(func() {
		if e.cfg.GC.Enabled {
			close(e.stopGC)
		}

		e.mu.Lock()
		for _, c := range e.clients {
			e.closeClient(c)
		}
		e.mu.Unlock()
		e.logger.Info("engine stopped")
	})
}
