/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package server implements the inbound HTTP/1.1 pipeline: the
// acceptor, the per-connection keep-alive loop, the ordered
// handler/filter/error-handler chain, and lifecycle hooks. Requests
// and responses flow through as immutable values rather than
// net/http's streaming ResponseWriter.
package server

import (
	"crypto/tls"
	"net"
	"time"
)

// keepAliveListener wraps a *net.TCPListener to enable TCP keep-alive
// on every accepted connection.
type keepAliveListener struct {
	*net.TCPListener
}

func (l keepAliveListener) Accept() (net.Conn, error) {
	conn, err := l.AcceptTCP()
	if err != nil {
		return nil, err
	}
	conn.SetKeepAlive(true)
	conn.SetKeepAlivePeriod(3 * time.Minute)
	return conn, nil
}

// listen binds (host, port). net.ListenConfig doesn't expose a
// backlog knob portably, so BacklogSize is recorded for diagnostics
// and backpressure is enforced by the worker pool's bounded queue.
func listen(network, addr string, tlsConfig *tls.Config) (net.Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	if tcpLn, ok := ln.(*net.TCPListener); ok {
		ln = keepAliveListener{tcpLn}
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return ln, nil
}
