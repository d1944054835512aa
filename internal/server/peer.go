package server

import (
	"net"
	"sync"

	"github.com/eternalApril/moonmock/internal/resp"
	"github.com/pkg/errors"
)

var errNotCommand = errors.New("Protocol error: expected an array of bulk strings")

// Peer is the socket side of a Client. Replies and pub/sub pushes share one
// encoder, so every write goes through mu
type Peer struct {
	conn   net.Conn
	reader *resp.Decoder
	writer *resp.Encoder
	client *Client
	mu     sync.Mutex
}

// NewPeer wraps conn for client c
func NewPeer(conn net.Conn, c *Client) *Peer {
	return &Peer{
		conn:   conn,
		reader: resp.NewDecoder(conn),
		writer: resp.NewEncoder(conn),
		client: c,
	}
}

// ReadCommand reads the next request and returns its arguments
func (p *Peer) ReadCommand() ([]string, error) {
	v, err := p.reader.Read()
	if err != nil {
		return nil, err
	}
	if v.Type != resp.TypeArray || v.IsNull {
		return nil, errNotCommand
	}
	args := make([]string, len(v.Array))
	for i, el := range v.Array {
		if el.Type != resp.TypeBulkString || el.IsNull {
			return nil, errNotCommand
		}
		args[i] = string(el.String)
	}
	return args, nil
}

// send writes v in the client's current protocol. The caller holds mu. Output
// stays buffered while more pipelined requests are waiting
func (p *Peer) send(v resp.Value, more bool) error {
	p.writer.SetProtocol(p.client.Protocol())
	if err := p.writer.Write(v); err != nil {
		return err
	}
	if more {
		return nil
	}
	return p.writer.Flush()
}

// Send writes v and flushes it
func (p *Peer) Send(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.send(v, false)
}

// Flush writes out buffered replies
func (p *Peer) Flush() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writer.Flush()
}

// Push writes an out-of-band message and flushes it at once
func (p *Peer) Push(v resp.Value) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer.SetProtocol(p.client.Protocol())
	if err := p.writer.Write(v); err != nil {
		return err
	}
	return p.writer.Flush()
}

// Close terminates the underlying network connection
func (p *Peer) Close() error {
	return p.conn.Close()
}
