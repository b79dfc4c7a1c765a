package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"leafdb/config"
	"leafdb/executor"
)

// Server accepts TCP connections and spawns a goroutine per client.
type Server struct {
	cfg      *config.Config
	exec     *executor.Executor
	slots    chan struct{} // nil when connections are unlimited
	mu       sync.Mutex    // protects listener and conns
	listener net.Listener
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
	quit     chan struct{}
}

// New creates a server with the given configuration and executor.
func New(cfg *config.Config, exec *executor.Executor) *Server {
	s := &Server{
		cfg:   cfg,
		exec:  exec,
		conns: make(map[net.Conn]struct{}),
		quit:  make(chan struct{}),
	}
	if cfg.MaxConns > 0 {
		s.slots = make(chan struct{}, cfg.MaxConns)
	}
	return s
}

// ListenAndServe starts accepting connections. It blocks until Shutdown
// is called or an unrecoverable error occurs.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	s.mu.Lock()
	if s.stopping() {
		s.mu.Unlock()
		ln.Close()
		return nil
	}
	s.listener = ln
	s.mu.Unlock()
	log.Printf("leafdb listening on %s", ln.Addr())

	var delay time.Duration // backoff after a failed Accept
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.stopping() {
				return nil
			}
			delay = min(max(2*delay, 5*time.Millisecond), time.Second)
			log.Printf("accept error: %v; retrying in %v", err, delay)
			select {
			case <-time.After(delay):
			case <-s.quit:
				return nil
			}
			continue
		}
		delay = 0

		if !s.track(conn) {
			conn.Close()
			return nil
		}
		admitted := s.acquire()
		go func() {
			defer s.untrack(conn)
			c := newConnection(conn, s.cfg, s.exec)
			if !admitted {
				c.Refuse()
				return
			}
			defer s.release()
			c.Handle()
		}()
	}
}

func (s *Server) stopping() bool {
	select {
	case <-s.quit:
		return true
	default:
		return false
	}
}

// acquire takes a connection slot, reporting false if none is free.
func (s *Server) acquire() bool {
	if s.slots == nil {
		return true
	}
	select {
	case s.slots <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Server) release() {
	if s.slots != nil {
		<-s.slots
	}
}

// track registers conn so that Shutdown closes it. It reports false once
// Shutdown has begun; the caller must then close conn itself.
func (s *Server) track(conn net.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping() {
		return false
	}
	s.conns[conn] = struct{}{}
	s.wg.Add(1)
	return true
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	s.wg.Done()
}

// Addr returns the listener's network address, or nil if not yet listening.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln != nil {
		return ln.Addr()
	}
	return nil
}

// Shutdown stops accepting new connections and closes open ones, then
// waits for their goroutines to finish, respecting the context deadline.
// A statement already executing runs to completion.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	close(s.quit)
	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
