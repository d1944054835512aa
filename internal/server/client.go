package server

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eternalApril/moonmock/internal/pubsub"
	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/pkg/errors"
)

// ErrDisconnected is the failure of every command issued while the engine is
// switched off with SetConnected
var ErrDisconnected = errors.New("connection refused: server is disconnected")

// Client is one connection to the engine, in-process or behind a socket.
// Commands of one client are expected to be issued sequentially
type Client struct {
	e         *Engine
	id        int64
	addr      string
	createdAt time.Time
	proto     atomic.Int32

	// guarded by the engine lock
	db      int
	name    string
	lastCmd string
	tx      transaction
	closed  bool
	quit    bool

	msgMu      sync.Mutex
	msgs       chan resp.Value
	msgsClosed bool
}

// NewClient connects an in-process client to database 0 speaking RESP2
func (e *Engine) NewClient() *Client {
	return e.newClient("")
}

func (e *Engine) newClient(addr string) *Client {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.nextID++
	c := &Client{
		e:         e,
		id:        e.nextID,
		addr:      addr,
		createdAt: e.ks.Now(),
		msgs:      make(chan resp.Value, e.cfg.Engine.PubSubBuffer),
	}
	c.proto.Store(2)
	e.clients[c.id] = c
	e.stats.connections++
	e.metrics.Connected(1)
	return c
}

// ID returns the client id reported by CLIENT ID
func (c *Client) ID() int64 {
	return c.id
}

// Protocol returns the negotiated protocol version, 2 or 3
func (c *Client) Protocol() int {
	return int(c.proto.Load())
}

// Do runs one command. Arguments are the command name followed by its parameters
func (c *Client) Do(ctx context.Context, args ...string) resp.Value {
	if !c.e.Connected() {
		return errorReply(ErrDisconnected)
	}
	return c.e.Execute(ctx, c, args)
}

// Messages streams pub/sub deliveries as push replies. It is closed with the client
func (c *Client) Messages() <-chan resp.Value {
	return c.msgs
}

// Deliver queues a pub/sub message without blocking. A full buffer drops it
func (c *Client) Deliver(msg pubsub.Message) bool {
	var push resp.Value
	switch msg.Kind {
	case pubsub.KindPMessage:
		push = resp.MakePush([]resp.Value{
			resp.MakeBulkString(string(msg.Kind)),
			resp.MakeBulkString(msg.Pattern),
			resp.MakeBulkString(msg.Channel),
			resp.MakeBulkString(msg.Payload),
		})
	default:
		push = resp.MakePush([]resp.Value{
			resp.MakeBulkString(string(msg.Kind)),
			resp.MakeBulkString(msg.Channel),
			resp.MakeBulkString(msg.Payload),
		})
	}

	c.msgMu.Lock()
	defer c.msgMu.Unlock()
	if c.msgsClosed {
		return false
	}
	select {
	case c.msgs <- push:
		return true
	default:
		return false
	}
}

// Closed reports whether the client was closed, by Close or by QUIT
func (c *Client) Closed() bool {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	return c.closed
}

// Close disconnects the client: its waiters, subscriptions, watches and queued
// transaction are dropped
func (c *Client) Close() {
	c.e.mu.Lock()
	defer c.e.mu.Unlock()
	c.e.closeClient(c)
}

func (e *Engine) closeClient(c *Client) {
	if c.closed {
		return
	}
	c.closed = true

	e.waiters.dropClient(c, e.metrics)
	e.broker.RemoveAll(c)
	e.unwatchAll(c)
	c.tx.reset()
	delete(e.clients, c.id)
	e.metrics.Connected(-1)

	c.msgMu.Lock()
	c.msgsClosed = true
	close(c.msgs)
	c.msgMu.Unlock()
}

// clientsByID returns the open clients in connection order
func (e *Engine) clientsByID() []*Client {
	out := make([]*Client, 0, len(e.clients))
	for _, c := range e.clients {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b *Client) int { return cmp.Compare(a.id, b.id) })
	return out
}

// info renders one line of CLIENT LIST
func (c *Client) info(now time.Time, subs int) string {
	var flags strings.Builder
	if c.tx.active {
		flags.WriteByte('x')
	}
	if subs > 0 {
		flags.WriteByte('P')
	}
	if flags.Len() == 0 {
		flags.WriteByte('N')
	}
	multi := -1
	if c.tx.active {
		multi = len(c.tx.queue)
	}
	addr := c.addr
	if addr == "" {
		addr = "in-process"
	}
	return fmt.Sprintf("id=%d addr=%s name=%s age=%d db=%d sub=%d multi=%d flags=%s resp=%d cmd=%s",
		c.id, addr, c.name, int64(now.Sub(c.createdAt).Seconds()), c.db, subs, multi, flags.String(),
		c.Protocol(), c.lastCmd)
}
