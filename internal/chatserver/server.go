// Package chatserver implements the TLS accept loop: bind, accept with a
// short periodic timeout so shutdown is observed promptly, handshake
// each connection, and submit the resulting session to the worker pool.
package chatserver

import (
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/stlalpha/chatroomd/internal/logging"
	"github.com/stlalpha/chatroomd/internal/pool"
	"github.com/stlalpha/chatroomd/internal/room"
	"github.com/stlalpha/chatroomd/internal/session"
	"github.com/stlalpha/chatroomd/internal/user"
)

// acceptPollInterval bounds how long Accept blocks before the loop
// rechecks the shutdown flag, the same ~3s figure used for per-session
// frame reads.
const acceptPollInterval = 3 * time.Second

// Config holds everything the accept loop needs to bind and to build a
// Session for each accepted connection.
type Config struct {
	Host      string
	Port      int
	TLSConfig *tls.Config
	Users     *user.Directory
	Rooms     *room.Directory
	Pool      *pool.Pool
	Shutdown  *pool.Shutdown
}

// Server is a TLS-wrapped accept loop, one per listening port.
type Server struct {
	cfg      Config
	mu       sync.Mutex
	listener net.Listener
}

// New validates cfg and returns a Server ready for ListenAndServe.
func New(cfg Config) (*Server, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.TLSConfig == nil {
		return nil, fmt.Errorf("TLS config is required")
	}
	if cfg.Pool == nil || cfg.Users == nil || cfg.Rooms == nil || cfg.Shutdown == nil {
		return nil, fmt.Errorf("pool, users, rooms, and shutdown are all required")
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	return &Server{cfg: cfg}, nil
}

// ListenAndServe binds the listener and blocks, accepting connections
// until Close is called or the shutdown flag is observed.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logging.Info("chat server listening on %s", addr)

	tcpLn, isTCP := ln.(*net.TCPListener)

	for {
		if s.cfg.Shutdown.Triggered() {
			return nil
		}
		if isTCP {
			_ = tcpLn.SetDeadline(time.Now().Add(acceptPollInterval))
		}

		conn, err := ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			s.mu.Lock()
			closed := s.listener == nil
			s.mu.Unlock()
			if closed {
				return nil
			}
			logging.Error("accept error: %v", err)
			continue
		}

		// The handshake runs synchronously on the accept goroutine, per
		// §4.3: "build a TLS server-side handshake... on success, allocate
		// a work item... and submit it to the worker pool." A slow or
		// failing handshake therefore occupies the single accept thread,
		// not a pool slot, and only a live, handshaken connection is ever
		// submitted.
		tlsConn := tls.Server(conn, s.cfg.TLSConfig)
		if err := tlsConn.Handshake(); err != nil {
			logging.Warn("TLS handshake failed for %s: %v", conn.RemoteAddr(), err)
			tlsConn.Close()
			continue
		}

		s.submit(tlsConn)
	}
}

// submit hands a live, handshaken TLS connection to the worker pool.
func (s *Server) submit(tlsConn *tls.Conn) {
	accepted := s.cfg.Pool.Submit(func() {
		defer tlsConn.Close()

		onFailure := func() {
			logging.Error("session for %s hit a programmer-visible fault; triggering shutdown", tlsConn.RemoteAddr())
			s.cfg.Shutdown.Trigger()
		}
		sess := session.New(tlsConn, s.cfg.Users, s.cfg.Rooms, onFailure)
		sess.Run(s.cfg.Shutdown.Triggered)
	})
	if !accepted {
		tlsConn.Close()
	}
}

// Close stops the accept loop. A racing Accept error after Close is
// recognized as a clean shutdown rather than logged as an error, since
// listener is nilled under the same mutex ListenAndServe checks.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		err := s.listener.Close()
		s.listener = nil
		return err
	}
	return nil
}
