// Package moonmock runs a Redis compatible server inside the test process.
//
//	s, err := moonmock.Run()
//	if err != nil {
//		t.Fatal(err)
//	}
//	defer s.Close()
//	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
//
// Clients may also skip the socket entirely with NewConn
package moonmock

import (
	"net"
	"sync"
	"time"

	"github.com/eternalApril/moonmock/internal/config"
	"github.com/eternalApril/moonmock/internal/logger"
	"github.com/eternalApril/moonmock/internal/metrics"
	"github.com/eternalApril/moonmock/internal/server"
	"github.com/pkg/errors"
)

// Server is an engine listening on a loopback port
type Server struct {
	engine   *server.Engine
	listener *server.Listener
	metrics  *metrics.Metrics

	mu     sync.Mutex
	offset time.Duration
}

// Run starts a server with the default configuration on a random loopback port
func Run() (*Server, error) {
	cfg := config.Default()
	cfg.Server.Port = "0"
	return RunWithConfig(cfg)
}

// RunWithConfig starts a server from cfg. Port "0" picks a free port
func RunWithConfig(cfg *config.Config) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logger.Quiet()
	m := metrics.New()
	engine, err := server.NewEngine(cfg, log, m)
	if err != nil {
		return nil, errors.Wrap(err, "create engine")
	}

	s := &Server{engine: engine, metrics: m}
	engine.SetClock(s.now)

	listener, err := engine.Listen("tcp", net.JoinHostPort(cfg.Server.Host, cfg.Server.Port))
	if err != nil {
		engine.Shutdown()
		return nil, err
	}
	s.listener = listener
	return s, nil
}

func (s *Server) now() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Now().Add(s.offset)
}

// Addr returns the host:port clients dial
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Engine exposes the engine for extensions and direct inspection
func (s *Server) Engine() *server.Engine {
	return s.engine
}

// Metrics returns the server's private Prometheus collectors
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// NewConn returns an in-process client that bypasses the socket
func (s *Server) NewConn() *server.Client {
	return s.engine.NewClient()
}

// FastForward moves the server clock forward by d, expiring keys whose TTL
// falls inside the jump
func (s *Server) FastForward(d time.Duration) {
	s.mu.Lock()
	s.offset += d
	s.mu.Unlock()
}

// Seed makes SPOP, SRANDMEMBER, RANDOMKEY and the other sampling commands
// repeatable
func (s *Server) Seed(seed uint64) {
	s.engine.Seed(seed)
}

// SetConnected switches the server off and back on without losing data. While
// off, new and open connections are dropped and in-process clients fail with
// server.ErrDisconnected
func (s *Server) SetConnected(on bool) {
	s.engine.SetConnected(on)
	if !on {
		s.listener.DropConnections()
	}
}

// Close disconnects every client and stops the server
func (s *Server) Close() error {
	err := s.listener.Close()
	s.engine.Shutdown()
	return err
}
