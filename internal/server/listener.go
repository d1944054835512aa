package server

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// pipelineDepth is how many decoded requests of one connection may wait for
// execution
const pipelineDepth = 64

// Listener serves an engine over RESP on a stream socket
type Listener struct {
	e      *Engine
	ln     net.Listener
	logger *zap.Logger

	ctx    context.Context // cancelled on Close, wakes blocked commands
	cancel context.CancelFunc

	mu     sync.Mutex
	peers  map[*Peer]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Listen binds addr and starts accepting connections in the background
func (e *Engine) Listen(network, addr string) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "listen %s", addr)
	}
	return e.Serve(ln), nil
}

// Serve accepts connections from ln until the returned Listener is closed
func (e *Engine) Serve(ln net.Listener) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	l := &Listener{
		e:      e,
		ln:     ln,
		logger: e.logger,
		ctx:    ctx,
		cancel: cancel,
		peers:  make(map[*Peer]struct{}),
	}
	l.wg.Add(1)
	go l.acceptLoop()
	return l
}

// Addr returns the bound address
func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

func (l *Listener) acceptLoop() {
	defer l.wg.Done()
	for {
		conn, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			l.logger.Error("accept failed", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}

		if !l.e.Connected() {
			conn.Close() //nolint:errcheck
			continue
		}

		l.mu.Lock()
		if l.closed {
			l.mu.Unlock()
			conn.Close() //nolint:errcheck
			return
		}
		peer := NewPeer(conn, l.e.newClient(conn.RemoteAddr().String()))
		l.peers[peer] = struct{}{}
		l.wg.Add(1)
		l.mu.Unlock()

		go l.handle(peer)
	}
}

// request is one decoded command, or the read error that ends the connection
type request struct {
	args []string
	err  error
}

// handle runs one connection: requests are executed in order and pub/sub
// messages are forwarded as they arrive
func (l *Listener) handle(p *Peer) {
	defer l.wg.Done()
	addr := p.conn.RemoteAddr().String()
	if l.logger.Core().Enabled(zap.DebugLevel) {
		l.logger.Debug("client connected", zap.String("addr", addr), zap.Int64("id", p.client.ID()))
	}

	// gone is cancelled once the socket fails, releasing a parked command
	ctx, gone := context.WithCancel(l.ctx)
	defer gone()

	reqs := make(chan request, pipelineDepth)
	stop := make(chan struct{})
	l.wg.Add(1)
	go l.readLoop(p, reqs, stop, gone)

	pushed := make(chan struct{})
	go func() {
		defer close(pushed)
		for msg := range p.client.Messages() {
			if err := p.Push(msg); err != nil {
				return
			}
		}
	}()

	defer func() {
		close(stop)
		p.client.Close()
		p.Flush() //nolint:errcheck
		p.Close() //nolint:errcheck
		<-pushed

		l.mu.Lock()
		delete(l.peers, p)
		l.mu.Unlock()
		if l.logger.Core().Enabled(zap.DebugLevel) {
			l.logger.Debug("client disconnected", zap.String("addr", addr))
		}
	}()

	for req := range reqs {
		if req.err != nil {
			if errors.Is(req.err, errNotCommand) {
				p.Send(resp.MakeError("ERR " + req.err.Error())) //nolint:errcheck
				return
			}
			if req.err != io.EOF && !errors.Is(req.err, net.ErrClosed) {
				l.logger.Warn("read command failed", zap.String("addr", addr), zap.Error(req.err))
			}
			return
		}
		if len(req.args) == 0 {
			continue
		}
		if !l.e.Connected() {
			return
		}

		if err := l.exec(ctx, p, req.args, len(reqs) > 0); err != nil {
			l.logger.Debug("write reply failed", zap.String("addr", addr), zap.Error(err))
			return
		}
		if p.client.Closed() {
			return
		}
	}
}

// readLoop decodes requests ahead of their execution, so a closed socket is
// noticed even while a command is parked. The failed read is delivered last
func (l *Listener) readLoop(p *Peer, reqs chan<- request, stop <-chan struct{}, gone context.CancelFunc) {
	defer l.wg.Done()
	defer close(reqs)
	for {
		args, err := p.ReadCommand()
		if err != nil {
			gone()
		}
		select {
		case reqs <- request{args: args, err: err}:
		case <-stop:
			return
		}
		if err != nil {
			return
		}
	}
}

// exec runs one command and writes its reply. Unless the command may park, the
// peer stays locked from execution to write so no push overtakes the reply
func (l *Listener) exec(ctx context.Context, p *Peer, args []string, more bool) error {
	if l.e.MayBlock(p.client, args) {
		// replies of earlier pipelined commands must not wait behind a parked one
		if err := p.Flush(); err != nil {
			return err
		}
		return p.Send(l.e.Execute(ctx, p.client, args))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send(l.e.Execute(ctx, p.client, args), more)
}

// DropConnections closes every open connection. Clients may dial again
func (l *Listener) DropConnections() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for p := range l.peers {
		p.Close() //nolint:errcheck
	}
}

// Close stops accepting, disconnects every client and waits for the
// connection goroutines to finish
func (l *Listener) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	err := l.ln.Close()
	for p := range l.peers {
		p.Close() //nolint:errcheck
	}
	l.mu.Unlock()

	l.cancel()
	l.wg.Wait()
	return err
}
