/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package client implements the outbound HTTP/1.1 client: request
// normalization, connection acquisition through scamper/pool, the
// request/response filter chain, Expect: 100-continue handling, and
// optional proxy dialing. Each Client owns one Pool, and the response
// reaches the caller through a handler callback rather than an
// io.ReadCloser body the caller must remember to Close — the
// connection's fate is decided when the handler returns.
package client

import (
	"bufio"
	"crypto/tls"
	"errors"
	"net"
	"strconv"
	"time"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/cookie"
	"github.com/losizm/scamper-go/pool"
	"github.com/losizm/scamper-go/trace"
	"github.com/losizm/scamper-go/uri"
)

// isTimeout reports whether err (or anything it wraps) is a net.Error
// reporting Timeout(), distinguishing a read timeout from an ordinary
// connection error.
func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// Config bundles the per-client tunables.
type Config struct {
	ResolveTo       string // default authority for relative targets
	Accept          string
	AcceptEncoding  string
	BufferSize      int
	ReadTimeout     time.Duration
	ContinueTimeout time.Duration // 0 disables the 100-continue wait
	KeepAlive       bool
	Cookies         cookie.Store
	Trust           *tls.Config
	Proxy           string // proxy URL ("http://host:port" or "socks5://host:port"); empty = direct
	Outgoing        []RequestFilter
	Incoming        []ResponseFilter
	UserAgent       string
	Trace           *trace.ClientTrace

	Pool pool.Config
}

// Client issues HTTP/1.1 requests over pooled, optionally keep-alive
// connections. The zero value is not usable; construct with New. A
// Client owns exactly one Pool; multiple clients get independent
// pools.
type Client struct {
	resolveTo       string
	accept          string
	acceptEncoding  string
	bufferSize      int
	readTimeout     time.Duration
	continueTimeout time.Duration
	keepAlive       bool
	userAgent       string
	cookies         cookie.Store
	trust           *tls.Config
	proxy           string
	outgoing        []RequestFilter
	incoming        []ResponseFilter
	trace           *trace.ClientTrace

	pool *pool.Pool
	cor  *correlator
}

// New constructs a Client from cfg.
func New(cfg Config) *Client {
	bufSize := cfg.BufferSize
	if bufSize <= 0 {
		bufSize = 8 * 1024
	}
	return &Client{
		resolveTo:       cfg.ResolveTo,
		accept:          cfg.Accept,
		acceptEncoding:  cfg.AcceptEncoding,
		bufferSize:      bufSize,
		readTimeout:     cfg.ReadTimeout,
		continueTimeout: cfg.ContinueTimeout,
		keepAlive:       cfg.KeepAlive,
		userAgent:       cfg.UserAgent,
		cookies:         cfg.Cookies,
		trust:           cfg.Trust,
		proxy:           cfg.Proxy,
		outgoing:        cfg.Outgoing,
		incoming:        cfg.Incoming,
		trace:           cfg.Trace,
		pool:            pool.New(cfg.Pool),
		cor:             newCorrelator(),
	}
}

// Close shuts down the client's idle-connection pool.
func (c *Client) Close() { c.pool.Close() }

// socketHandle adapts a net.Conn to scamper.SocketHandle so it can be
// attached as a request/response attribute without this package
// importing the root package's unexported attribute machinery, and
// vice versa.
type socketHandle struct{ net.Conn }

func (s socketHandle) RemoteAddr() string { return s.Conn.RemoteAddr().String() }
func (s socketHandle) LocalAddr() string  { return s.Conn.LocalAddr().String() }

// liveConn is one acquired connection plus its buffered reader/writer
// and the tag it should be returned to the pool under.
type liveConn struct {
	tag  pool.Tag
	conn net.Conn
	br   *bufio.Reader
	bw   *bufio.Writer
	// reused reports whether this connection came from the pool (as
	// opposed to a freshly dialed one); nothing in the client reads it.
	reused bool
}

func (c *Client) dial(u uri.URI) (*liveConn, error) {
	host := u.Host
	port := u.Port
	if port == 0 {
		if u.Scheme == uri.SchemeHTTPS || u.Scheme == uri.SchemeWSS {
			port = 443
		} else {
			port = 80
		}
	}
	secure := u.Scheme == uri.SchemeHTTPS || u.Scheme == uri.SchemeWSS
	tag := pool.Tag{Secure: secure, Host: host, Port: port}
	hostPort := net.JoinHostPort(host, strconv.Itoa(port))

	if c.trace != nil && c.trace.GetConn != nil {
		c.trace.GetConn(hostPort)
	}

	if c.keepAlive {
		if conn, ok := c.pool.Get(tag); ok {
			if c.trace != nil && c.trace.GotConn != nil {
				c.trace.GotConn(trace.GotConnInfo{Reused: true, WasIdle: true})
			}
			return &liveConn{tag: tag, conn: conn, br: bufio.NewReaderSize(conn, c.bufferSize), bw: bufio.NewWriterSize(conn, c.bufferSize), reused: true}, nil
		}
	}

	raw, err := c.dialRaw(hostPort)
	if err != nil {
		return nil, scamper.ConnError("dial", err)
	}
	conn := raw
	if secure {
		tlsConn := tls.Client(raw, cloneTLS(c.trust, host))
		if err := tlsConn.Handshake(); err != nil {
			raw.Close()
			return nil, scamper.ConnError("tls-handshake", err)
		}
		conn = tlsConn
	}
	if c.trace != nil && c.trace.GotConn != nil {
		c.trace.GotConn(trace.GotConnInfo{})
	}
	return &liveConn{tag: tag, conn: conn, br: bufio.NewReaderSize(conn, c.bufferSize), bw: bufio.NewWriterSize(conn, c.bufferSize)}, nil
}

func cloneTLS(base *tls.Config, serverName string) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = serverName
	}
	return cfg
}

// Send normalizes and dispatches req, invoking handler on the
// (filtered) response and deciding the connection's fate after the
// handler returns. Send is a package-level generic function, not a
// method, because Go methods cannot carry their own type parameters.
func Send[T any](c *Client, req scamper.Request, handler func(scamper.Response) (T, error)) (T, error) {
	var zero T

	target, err := uri.Parse(req.Target())
	if err != nil {
		return zero, scamper.ErrMissingHost
	}
	if !target.IsAbsolute() && c.resolveTo != "" {
		ru, rerr := uri.Parse(c.resolveTo)
		if rerr == nil {
			target = target.ToAbsolute(ru.Scheme, ru.Host, ru.Port)
		}
	}

	req, target, err = normalize(c, req, target)
	if err != nil {
		return zero, err
	}

	lc, err := c.dial(target)
	if err != nil {
		return zero, err
	}

	req, err = runRequestFilters(c.outgoing, req)
	if err != nil {
		lc.conn.Close()
		return zero, err
	}

	correlate := c.cor.next()
	req = scamper.WithCorrelate(req, correlate)
	req = scamper.WithSocket(req, socketHandle{lc.conn})

	if c.readTimeout > 0 {
		lc.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	sendErr := c.writeRequest(lc, req)
	if c.trace != nil && c.trace.WroteRequest != nil {
		c.trace.WroteRequest(sendErr)
	}
	if sendErr != nil {
		lc.conn.Close()
		return zero, sendErr
	}

	resp, err := scamper.ReadResponse(lc.br, req.Method(), !c.keepAlive, scamper.DefaultLimits)
	if err != nil {
		lc.conn.Close()
		if isTimeout(err) {
			return zero, scamper.ReadTimeout("client-read-response")
		}
		return zero, err
	}
	if c.trace != nil && c.trace.GotFirstResponseByte != nil {
		c.trace.GotFirstResponseByte()
	}

	if c.cookies != nil {
		for _, raw := range resp.Headers().Values(scamper.HeaderSetCookie) {
			if sc, ok := cookie.ParseSetCookie(raw); ok {
				c.cookies.Put(target.Host, sc)
			}
		}
	}

	resp, err = runResponseFilters(c.incoming, resp)
	if err != nil {
		lc.conn.Close()
		return zero, err
	}
	resp = scamper.WithCorrelate(resp, correlate)
	resp = scamper.WithSocket(resp, socketHandle{lc.conn})
	resp = scamper.WithOutgoingRequest(resp, req)

	result, herr := handler(resp)

	reusable := c.keepAlive && !scamper.HasConnectionToken(resp, "close") && herr == nil
	if reusable {
		// Drain any unread body before returning the connection, so
		// the next user of this tag starts at the next message
		// boundary.
		if rc, oerr := resp.Entity().Open(); oerr == nil {
			drain(rc)
		}
		c.pool.Put(lc.tag, lc.conn)
	} else {
		lc.conn.Close()
	}

	return result, herr
}

func drain(rc interface{ Read([]byte) (int, error) }) {
	buf := make([]byte, 4096)
	for {
		n, err := rc.Read(buf)
		if n == 0 || err != nil {
			return
		}
	}
}

// writeRequest writes req to lc. If the request carries
// Expect: 100-continue, wait up to continueTimeout for an interim 1xx
// before sending the body.
func (c *Client) writeRequest(lc *liveConn, req scamper.Request) error {
	if scamper.Expects100Continue(req) && c.continueTimeout > 0 {
		return c.writeWith100Continue(lc, req)
	}
	return scamper.WriteRequest(lc.bw, req)
}

// writeWith100Continue writes the start line and headers, waits up to
// continueTimeout for an interim 1xx, then sends the body regardless
// of whether one arrived.
func (c *Client) writeWith100Continue(lc *liveConn, req scamper.Request) error {
	body, chunked, err := scamper.WriteRequestHead(lc.bw, req)
	if err != nil {
		return err
	}
	if c.trace != nil && c.trace.Wait100Continue != nil {
		c.trace.Wait100Continue()
	}
	lc.conn.SetReadDeadline(time.Now().Add(c.continueTimeout))
	if line, lerr := scamper.ReadStatusLine(lc.br, scamper.DefaultLimits); lerr == nil && line.Code/100 == 1 {
		scamper.ReadHeaders(lc.br, scamper.DefaultLimits)
	}
	if c.readTimeout > 0 {
		lc.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	} else {
		lc.conn.SetReadDeadline(time.Time{})
	}
	return scamper.WriteRequestBody(lc.bw, body, chunked)
}
