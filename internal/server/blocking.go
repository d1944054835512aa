package server

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/eternalApril/moonmock/internal/metrics"
	"github.com/eternalApril/moonmock/internal/resp"
)

// waiter is a client parked in a blocking command. Exactly one of wake, timeout
// or disconnect resolves it, always under the engine lock
type waiter struct {
	client       *Client
	spec         *commandSpec
	db           int
	args         []string
	keys         []string
	timeout      time.Duration
	timeoutReply resp.Value
	done         chan resp.Value // receives the single resolving reply
	resolved     bool
}

type readyKey struct {
	db  int
	key string
}

// waitQueue indexes waiters by key in registration order and collects the keys
// written during the current step
type waitQueue struct {
	byKey     map[readyKey][]*waiter
	byClient  map[*Client][]*waiter
	ready     []readyKey
	signalled map[readyKey]struct{}
}

func newWaitQueue() *waitQueue {
	return &waitQueue{
		byKey:     make(map[readyKey][]*waiter),
		byClient:  make(map[*Client][]*waiter),
		signalled: make(map[readyKey]struct{}),
	}
}

// Len returns the number of parked waiters
func (q *waitQueue) Len() int {
	n := 0
	for _, ws := range q.byClient {
		n += len(ws)
	}
	return n
}

func (q *waitQueue) add(w *waiter) {
	for _, key := range w.keys {
		rk := readyKey{db: w.db, key: key}
		if slices.Contains(q.byKey[rk], w) {
			continue
		}
		q.byKey[rk] = append(q.byKey[rk], w)
	}
	q.byClient[w.client] = append(q.byClient[w.client], w)
}

func (q *waitQueue) remove(w *waiter) {
	for _, key := range w.keys {
		rk := readyKey{db: w.db, key: key}
		list := slices.DeleteFunc(q.byKey[rk], func(x *waiter) bool { return x == w })
		if len(list) == 0 {
			delete(q.byKey, rk)
		} else {
			q.byKey[rk] = list
		}
	}
	list := slices.DeleteFunc(q.byClient[w.client], func(x *waiter) bool { return x == w })
	if len(list) == 0 {
		delete(q.byClient, w.client)
	} else {
		q.byClient[w.client] = list
	}
}

// dropClient resolves every waiter of a disconnecting client with its timeout reply
func (q *waitQueue) dropClient(c *Client, m *metrics.Metrics) {
	for _, w := range slices.Clone(q.byClient[c]) {
		q.remove(w)
		w.resolved = true
		w.done <- w.timeoutReply
		m.Blocked(-1)
	}
}

// signalReady records that key was written. Only keys somebody waits on are kept
func (e *Engine) signalReady(db int, key string) {
	q := e.waiters
	rk := readyKey{db: db, key: key}
	if _, ok := q.byKey[rk]; !ok {
		return
	}
	if _, ok := q.signalled[rk]; ok {
		return
	}
	q.signalled[rk] = struct{}{}
	q.ready = append(q.ready, rk)
}

// park registers the waiter requested by a handler
func (e *Engine) park(ctx *Context) *waiter {
	req := ctx.blockReq
	w := &waiter{
		client:       ctx.client,
		spec:         ctx.spec,
		db:           ctx.db.ID(),
		args:         ctx.args,
		keys:         req.keys,
		timeout:      req.timeout,
		timeoutReply: req.timeoutReply,
		done:         make(chan resp.Value, 1),
	}
	e.waiters.add(w)
	e.metrics.Blocked(1)
	return w
}

// wait blocks outside the lock until w is resolved. Timeout and cancellation
// reacquire the lock, so they cannot both win against a wake
func (e *Engine) wait(ctx context.Context, w *waiter) resp.Value {
	var expired <-chan time.Time
	if w.timeout > 0 {
		timer := time.NewTimer(w.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	reply := w.timeoutReply
	select {
	case r := <-w.done:
		return r
	case <-expired:
	case <-ctx.Done():
		reply = errorReply(ctx.Err())
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if w.resolved {
		return <-w.done
	}
	w.resolved = true
	e.waiters.remove(w)
	e.metrics.Blocked(-1)
	return reply
}

// serveReady retries, oldest first, the waiters of every key written in this
// step. A retry consumes data inside the same critical section that decided the
// wake, and may itself write keys that are served in turn
func (e *Engine) serveReady() {
	q := e.waiters
	for len(q.ready) > 0 {
		rk := q.ready[0]
		q.ready = q.ready[1:]
		delete(q.signalled, rk)

		for _, w := range slices.Clone(q.byKey[rk]) {
			if w.resolved {
				continue
			}
			reply, ok := e.retry(w)
			if !ok {
				continue
			}
			w.resolved = true
			q.remove(w)
			e.metrics.Blocked(-1)
			w.done <- reply
		}
	}
}

// retry re-runs the blocked command. It reports false when the command would
// still block, or when a key now holds a kind the command cannot serve
func (e *Engine) retry(w *waiter) (resp.Value, bool) {
	db, err := e.ks.DB(w.db)
	if err != nil {
		return resp.Value{}, false
	}
	ctx := &Context{
		e:      e,
		client: w.client,
		spec:   w.spec,
		name:   w.spec.name,
		args:   w.args,
		db:     db,
		retry:  true,
	}
	if err := e.checkKinds(ctx); err != nil {
		return resp.Value{}, false
	}
	reply := e.invoke(ctx)
	if ctx.blockReq != nil {
		return resp.Value{}, false
	}
	if reply.IsError() && strings.HasPrefix(reply.Text(), "WRONGTYPE") {
		return resp.Value{}, false
	}
	return reply, true
}
