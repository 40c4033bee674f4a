/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"time"

	scamper "github.com/losizm/scamper-go"
)

// socketHandle adapts a net.Conn to scamper.SocketHandle so a request
// can carry its peer addresses as an attribute, mirroring the
// identical adapter in scamper/client.
type socketHandle struct{ net.Conn }

func (s socketHandle) RemoteAddr() string { return s.Conn.RemoteAddr().String() }
func (s socketHandle) LocalAddr() string  { return s.Conn.LocalAddr().String() }

// serveConn runs the keep-alive loop for one accepted connection:
// parse one request, dispatch it through the pipeline, write the
// response, then decide whether to keep the connection open.
func (s *Server) serveConn(conn net.Conn) {
	hijacked := false
	defer func() {
		if !hijacked {
			conn.Close()
		}
	}()

	remoteAddr := conn.RemoteAddr().String()
	if s.cfg.Trace != nil && s.cfg.Trace.Accepted != nil {
		s.cfg.Trace.Accepted(remoteAddr)
	}

	br := bufio.NewReaderSize(conn, s.cfg.BufferSize)
	bw := bufio.NewWriterSize(conn, s.cfg.BufferSize)
	sock := socketHandle{conn}

	requests := 0
	maxRequests := s.cfg.KeepAlive.MaxRequests
	defer func() {
		if s.cfg.Trace != nil && s.cfg.Trace.ConnectionClosed != nil {
			s.cfg.Trace.ConnectionClosed(remoteAddr, requests)
		}
	}()

	for {
		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		} else if s.cfg.KeepAlive.IdleTimeout > 0 && requests > 0 {
			conn.SetReadDeadline(time.Now().Add(s.cfg.KeepAlive.IdleTimeout))
		}

		req, err := scamper.ReadRequest(br, s.cfg.Limits)
		if err != nil {
			if err == io.EOF || (requests > 0 && isTimeoutOrEOF(err)) {
				// The peer hung up cleanly, or an idle keep-alive
				// connection timed out: close quietly, no response.
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				err = scamper.ReadTimeout("read-request")
			}
			resp := s.pipeline.mapError(err, scamper.Request{})
			resp = s.withServerHeader(resp)
			scamper.WriteResponse(bw, resp, false)
			return
		}

		requests++
		req = scamper.WithSocket(req, sock)
		req = scamper.WithRequestCount(req, requests)
		correlate := ""
		if s.correlate != nil {
			correlate = s.correlate.next()
			req = scamper.WithCorrelate(req, correlate)
		}
		req = scamper.WithServer(req, s)

		if s.cfg.Trace != nil && s.cfg.Trace.RequestStart != nil {
			s.cfg.Trace.RequestStart(correlate, req.Method(), req.Target())
		}
		start := time.Now()
		ctrl, aborted := s.pipeline.Run(req)
		if aborted {
			return
		}
		resp := s.withServerHeader(*ctrl.Response)
		if s.cfg.Trace != nil && s.cfg.Trace.RequestDone != nil {
			s.cfg.Trace.RequestDone(correlate, resp.Status(), time.Since(start))
		}

		if ctrl.Hijack != nil {
			if err := scamper.WriteResponse(bw, resp, false); err != nil {
				return
			}
			// Ownership transfers: clear the read deadline the HTTP
			// loop set and let the new protocol drive the socket.
			conn.SetReadDeadline(time.Time{})
			hijacked = true
			ctrl.Hijack(conn, br, bw)
			return
		}

		willClose := s.connectionWillClose(req, resp, requests, maxRequests)
		if willClose {
			resp = scamper.SetHeader(resp, scamper.HeaderConnection, "close")
		} else {
			resp = scamper.SetHeader(resp, scamper.HeaderConnection, "keep-alive")
		}

		noBody := req.Method() == "HEAD"
		if err := scamper.WriteResponse(bw, resp, noBody); err != nil {
			return
		}

		if willClose {
			return
		}
	}
}

func isTimeoutOrEOF(err error) bool {
	if scamper.Is(err, scamper.KindTimeout) || scamper.Is(err, scamper.KindConnection) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// connectionWillClose decides the connection's fate after a response:
// it closes when keep-alive is not configured, when either side asked
// for Connection: close, or when max_requests has been reached.
func (s *Server) connectionWillClose(req scamper.Request, resp scamper.Response, requests int, maxRequests int) bool {
	if s.cfg.KeepAlive == (KeepAliveConfig{}) {
		return true
	}
	if scamper.HasConnectionToken(req, "close") || scamper.HasConnectionToken(resp, "close") {
		return true
	}
	if maxRequests > 0 && requests >= maxRequests {
		return true
	}
	return false
}

func (s *Server) withServerHeader(resp scamper.Response) scamper.Response {
	if !resp.Headers().Has("Server") && s.cfg.Name != "" {
		resp = resp.WithHeader("Server", s.cfg.Name)
	}
	return resp
}
