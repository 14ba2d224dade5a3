package anovawifi

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// OnConnectionFunc is invoked once per accepted socket, after the
// Connection has started listening. It typically runs the handshake and
// hands the resulting Device off to a Manager.
type OnConnectionFunc func(*Connection)

// Server is the appliance-facing TCP accept loop: one Connection per
// socket, dispatched to a pluggable handler.
type Server struct {
	host   string
	port   int
	logger *zap.Logger
	onConn OnConnectionFunc

	mu       sync.Mutex
	listener net.Listener
	wg       sync.WaitGroup
	alive    atomic.Bool
}

// NewServer constructs a Server bound to host:port. Listening does not
// start until Serve is called.
func NewServer(host string, port int, logger *zap.Logger, onConn OnConnectionFunc) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{host: host, port: port, logger: logger, onConn: onConn}
}

// Addr returns the bound listener's address. Only valid after Serve has
// started listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Alive reports whether the listener is currently accepting connections.
func (s *Server) Alive() bool {
	return s.alive.Load()
}

// Serve binds the listener and runs the accept loop until Close is
// called or Accept fails. It blocks the calling goroutine.
func (s *Server) Serve() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.alive.Store(true)
	defer s.alive.Store(false)

	for {
		conn, err := listener.Accept()
		if err != nil {
			return nil
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			connection := NewConnection(conn, s.logger)
			connection.StartListening()
			s.onConn(connection)
		}()
	}
}

// Close stops accepting new connections and waits for all in-flight
// handlers to complete.
func (s *Server) Close() error {
	s.mu.Lock()
	listener := s.listener
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil {
			return err
		}
	}
	s.wg.Wait()
	return nil
}
