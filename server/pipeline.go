/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package server

import (
	"bufio"
	"log"
	"net"

	scamper "github.com/losizm/scamper-go"
)

// HijackFunc receives a connection whose ownership has been
// transferred out of the HTTP pipeline after an Upgrade response,
// together with its buffered reader/writer (the reader may already
// hold bytes the peer pipelined behind the handshake). The pipeline
// neither reads, writes, nor closes the connection once the func is
// invoked.
type HijackFunc func(conn net.Conn, br *bufio.Reader, bw *bufio.Writer)

// Control is the sum a handler returns: the handler chain loops on
// Request and terminates on Response. Exactly one of the two is set.
// A Response may additionally carry a Hijack func for protocol
// upgrades.
type Control struct {
	Request  *scamper.Request
	Response *scamper.Response
	Hijack   HijackFunc
}

// Next continues the handler chain with req (possibly rewritten).
func Next(req scamper.Request) Control { return Control{Request: &req} }

// Respond short-circuits the handler chain with resp.
func Respond(resp scamper.Response) Control { return Control{Response: &resp} }

// Upgrade short-circuits with resp (typically 101 Switching
// Protocols) and, after resp is written, transfers the connection's
// ownership to fn. The keep-alive loop ends; fn decides when the
// socket closes.
func Upgrade(resp scamper.Response, fn HijackFunc) Control {
	return Control{Response: &resp, Hijack: fn}
}

// RequestHandler is one link of the ordered chain: it takes a request
// and returns either a request (for the next handler) or a response
// (short-circuiting the chain).
type RequestHandler func(scamper.Request) (Control, error)

// ResponseFilter rewrites the chosen response before it is written.
type ResponseFilter func(scamper.Response) (scamper.Response, error)

// ErrorHandler consumes an error raised by a RequestHandler and, if
// it recognizes it, produces the response to send instead of the
// default status mapping.
type ErrorHandler func(err error, req scamper.Request) (scamper.Response, bool)

// Pipeline is one scope's ordered handlers/filters/error-handlers —
// the server's root scope, or a router's nested scope.
type Pipeline struct {
	Handlers      []RequestHandler
	Filters       []ResponseFilter
	ErrorHandlers []ErrorHandler
	ErrorLog      *log.Logger
}

// Run executes p's handler chain on req, applies the response filters
// to whichever response is chosen, and returns the final Control. A
// handler panic is recovered and treated as an ApplicationError —
// unless it is ErrAborted, which Run reports to the caller (the
// connection loop) as aborted so the connection is dropped with no
// response.
func (p *Pipeline) Run(req scamper.Request) (out Control, aborted bool) {
	out, aborted = p.runHandlers(req)
	if aborted {
		return Control{}, true
	}
	resp := *out.Response
	for _, f := range p.Filters {
		var err error
		resp, err = f(resp)
		if err != nil {
			resp = p.mapError(err, req)
			break
		}
	}
	out.Response = &resp
	return out, false
}

func (p *Pipeline) runHandlers(req scamper.Request) (out Control, aborted bool) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = scamper.ApplicationError(nil)
			}
			if err == scamper.ErrAborted {
				aborted = true
				return
			}
			out = Respond(p.mapError(scamper.ApplicationError(err), req))
		}
	}()

	current := req
	for _, h := range p.Handlers {
		ctrl, err := h(current)
		if err != nil {
			if err == scamper.ErrAborted {
				return Control{}, true
			}
			return Respond(p.mapError(err, current)), false
		}
		if ctrl.Response != nil {
			return ctrl, false
		}
		if ctrl.Request != nil {
			current = *ctrl.Request
		}
	}
	// No handler produced a response: fall through to 404, matching a
	// router's "no route matched" outcome bubbling to the root scope.
	return Respond(scamper.NewResponse(404)), false
}

// mapError gives user error handlers first claim on err; if none
// matches, the error is logged and mapped to a default status.
func (p *Pipeline) mapError(err error, req scamper.Request) scamper.Response {
	for _, eh := range p.ErrorHandlers {
		if resp, ok := eh(err, req); ok {
			return resp
		}
	}
	if p.ErrorLog != nil {
		p.ErrorLog.Printf("scamper: unhandled error: %v", err)
	}
	return scamper.NewResponse(statusFor(err))
}

// statusFor maps a codec/protocol error Kind to its default HTTP
// status (400/408/413/414/431, else 500), used when no user error
// handler matches.
func statusFor(err error) int {
	switch {
	case scamper.Is(err, scamper.KindLimitExceeded):
		if err == scamper.ErrHeaderFieldsTooLarge {
			return 431
		}
		if err == scamper.ErrRequestTooLong {
			return 414
		}
		return 413
	case scamper.Is(err, scamper.KindTimeout):
		return 408
	case scamper.Is(err, scamper.KindParse), scamper.Is(err, scamper.KindProtocol):
		return 400
	default:
		return 500
	}
}
