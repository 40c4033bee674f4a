/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package server

import (
	"bufio"
	"crypto/tls"
	"log"
	"net"
	"os"
	"sync"
	"time"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/trace"
)

// KeepAliveConfig enables keep-alive when non-zero: how long an idle
// connection may wait between requests, and how many requests one
// connection may serve (0 means unlimited). The zero value disables
// keep-alive entirely — every response closes the connection.
type KeepAliveConfig struct {
	IdleTimeout time.Duration
	MaxRequests int
}

// Config collects every server tunable plus the
// handler/filter/error-handler/hook registration, flattened into one
// struct consumed once by New.
type Config struct {
	Network   string // "tcp", "tcp4", "tcp6"; default "tcp"
	Addr      string // "host:port"
	TLSConfig *tls.Config

	BacklogSize int // documentation/diagnostics only; see listener.go
	PoolSize    int // worker goroutines; default 64
	QueueSize   int // bounded accept queue; default 1024
	BufferSize  int // per-connection read/write buffer size; default 8192

	ReadTimeout time.Duration // per-request read deadline; 0 = none
	Limits      scamper.Limits
	KeepAlive   KeepAliveConfig

	Name string // Server response header; empty disables it

	Handlers      []RequestHandler
	Filters       []ResponseFilter
	ErrorHandlers []ErrorHandler
	Hooks         []Hook

	ErrorLog *log.Logger
	Trace    *trace.ServerTrace
}

func (c Config) withDefaults() Config {
	if c.Network == "" {
		c.Network = "tcp"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 64
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 8192
	}
	if c.ErrorLog == nil {
		c.ErrorLog = log.New(os.Stderr, "", log.LstdFlags)
	}
	return c
}

// Server runs the accept loop, worker pool, per-connection pipeline
// and lifecycle hooks for one listening address. It implements
// scamper.ServerHandle so a dispatched request can report the server
// handling it via its attributes.
type Server struct {
	cfg       Config
	pipeline  *Pipeline
	registry  registry
	correlate *correlator

	mu       sync.Mutex
	listener net.Listener
	addr     string
	pool     *workerPool
	stopped  bool
}

// New constructs a Server from cfg without starting it; call Start to
// bind the listener and begin accepting connections.
func New(cfg Config) *Server {
	cfg = cfg.withDefaults()
	s := &Server{
		cfg: cfg,
		pipeline: &Pipeline{
			Handlers:      cfg.Handlers,
			Filters:       cfg.Filters,
			ErrorHandlers: cfg.ErrorHandlers,
			ErrorLog:      cfg.ErrorLog,
		},
		correlate: newCorrelator(),
	}
	for _, h := range cfg.Hooks {
		s.registry.register(h)
	}
	return s
}

// Addr reports the address the server is bound to, satisfying
// scamper.ServerHandle. Empty before Start succeeds.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// SetTLSConfig installs cfg as the listener's TLS configuration. It
// must be called before Start; scamper/internal/th's StartTLS uses it
// to install a freshly minted test certificate.
func (s *Server) SetTLSConfig(cfg *tls.Config) { s.cfg.TLSConfig = cfg }

// Start runs every registered lifecycle hook's Start in order (a
// Critical hook's failure aborts server creation), binds the
// listener, and begins accepting connections on a background
// goroutine.
func (s *Server) Start() error {
	if err := s.registry.start(s, hookName); err != nil {
		return err
	}

	ln, err := listen(s.cfg.Network, s.cfg.Addr, s.cfg.TLSConfig)
	if err != nil {
		s.registry.stop(s)
		return scamper.ConnError("listen", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.addr = ln.Addr().String()
	s.pool = newWorkerPool(s.cfg.PoolSize, s.cfg.QueueSize, s.serveConn)
	s.mu.Unlock()

	go s.acceptLoop(ln)
	return nil
}

// acceptLoop accepts in a loop, backing off on a temporary error
// instead of spinning, and hands every accepted connection to the
// worker pool. A connection that finds the queue full is answered
// with 503 and closed instead of being queued without bound.
func (s *Server) acceptLoop(ln net.Listener) {
	var backoff time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopped() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if backoff == 0 {
					backoff = 5 * time.Millisecond
				} else {
					backoff *= 2
				}
				if max := time.Second; backoff > max {
					backoff = max
				}
				time.Sleep(backoff)
				continue
			}
			return
		}
		backoff = 0

		if !s.pool.submit(conn) {
			s.reject503(conn)
			continue
		}
	}
}

// reject503 answers a connection the worker pool cannot take: write a
// bare 503 and close, without ever handing the connection to a
// handler.
func (s *Server) reject503(conn net.Conn) {
	resp := scamper.NewResponse(503)
	resp = resp.WithHeader(scamper.HeaderConnection, "close")
	bw := bufio.NewWriterSize(conn, s.cfg.BufferSize)
	scamper.WriteResponse(bw, resp, false)
	conn.Close()
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop closes the listener so the accept loop exits, waits for
// in-flight connections to drain, then runs every started hook's Stop
// in reverse order.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	ln := s.listener
	pool := s.pool
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	if pool != nil {
		pool.closeWait()
	}
	s.registry.stop(s)
	return nil
}

// Close is an alias for Stop, matching net/http.Server's naming.
func (s *Server) Close() error { return s.Stop() }

func hookName(h Hook) string {
	if n, ok := h.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "hook"
}
