/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package trace implements a small client+server observation surface:
// per-request and per-connection hooks, with ready-made adapters that
// write one *log.Logger line per event. The library never mandates a
// logging backend — callers plug their own hook functions to feed
// whatever sink they use.
package trace

import (
	"log"
	"time"
)

// GotConnInfo describes the connection a client request obtained. No
// raw net.Conn is exposed: a trace hook observes, it doesn't touch
// the wire.
type GotConnInfo struct {
	Reused   bool
	WasIdle  bool
	IdleTime time.Duration
}

// ClientTrace is a set of hooks run during one client Send call. Any
// hook may be nil.
type ClientTrace struct {
	GetConn              func(hostPort string)
	GotConn              func(GotConnInfo)
	GotFirstResponseByte func()
	Wait100Continue      func()
	WroteRequest         func(err error)
}

// ServerTrace is a set of hooks run by the server's accept loop and
// per-connection pipeline. Any hook may be nil.
type ServerTrace struct {
	Accepted         func(remoteAddr string)
	RequestStart     func(correlate, method, target string)
	RequestDone      func(correlate string, status int, dur time.Duration)
	ConnectionClosed func(remoteAddr string, requests int)
}

// Logging builds a ClientTrace whose every hook writes one line to l.
func Logging(l *log.Logger) *ClientTrace {
	return &ClientTrace{
		GetConn: func(hostPort string) {
			l.Printf("client: get-conn host=%s", hostPort)
		},
		GotConn: func(info GotConnInfo) {
			l.Printf("client: got-conn reused=%t was-idle=%t idle=%s", info.Reused, info.WasIdle, info.IdleTime)
		},
		GotFirstResponseByte: func() {
			l.Printf("client: got-first-response-byte")
		},
		Wait100Continue: func() {
			l.Printf("client: wait-100-continue")
		},
		WroteRequest: func(err error) {
			l.Printf("client: wrote-request err=%v", err)
		},
	}
}

// LoggingServer builds a ServerTrace whose every hook writes one line
// to l.
func LoggingServer(l *log.Logger) *ServerTrace {
	return &ServerTrace{
		Accepted: func(remoteAddr string) {
			l.Printf("server: accepted remote=%s", remoteAddr)
		},
		RequestStart: func(correlate, method, target string) {
			l.Printf("server: request-start id=%s %s %s", correlate, method, target)
		},
		RequestDone: func(correlate string, status int, dur time.Duration) {
			l.Printf("server: request-done id=%s status=%d dur=%s", correlate, status, dur)
		},
		ConnectionClosed: func(remoteAddr string, requests int) {
			l.Printf("server: connection-closed remote=%s requests=%d", remoteAddr, requests)
		},
	}
}
