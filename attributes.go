/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

// attrKey keys the closed set of well-known message attributes.
// Attributes are process-local and never transmitted.
type attrKey struct{ name string }

var (
	attrCorrelate    = attrKey{"correlate"}
	attrServer       = attrKey{"server"}
	attrSocket       = attrKey{"socket"}
	attrRequestCount = attrKey{"request_count"}
	attrRequest      = attrKey{"request"} // response-only: outgoing post-filter request snapshot
)

// attributes is an immutable-after-construction map: it is populated
// while a message is being assembled (by the codec or a builder) and
// never mutated again once the message is handed to application code.
type attributes map[attrKey]any

func (a attributes) with(k attrKey, v any) attributes {
	next := make(attributes, len(a)+1)
	for kk, vv := range a {
		next[kk] = vv
	}
	next[k] = v
	return next
}

func (a attributes) get(k attrKey) (any, bool) {
	v, ok := a[k]
	return v, ok
}

// Correlate returns the correlate id attached to m by the client or
// server, if any.
func Correlate(m Message) (string, bool) {
	v, ok := m.attrs().get(attrCorrelate)
	if !ok {
		return "", false
	}
	return v.(string), true
}

// RequestCount returns the 1-based count of requests served so far on
// the connection m arrived on, used by keep-alive accounting.
func RequestCount(m Message) (int, bool) {
	v, ok := m.attrs().get(attrRequestCount)
	if !ok {
		return 0, false
	}
	return v.(int), true
}

// OutgoingRequest returns the post-filter request snapshot attached to
// a Response by the client.
func OutgoingRequest(r Response) (Request, bool) {
	v, ok := r.attrs().get(attrRequest)
	if !ok {
		return Request{}, false
	}
	return v.(Request), true
}

// ServerHandle and SocketHandle are the narrow capability interfaces a
// Request/Response attribute can carry without the root package
// importing scamper/server or net; the stored value is an interface
// satisfied by a concrete type in a different package.
type ServerHandle interface {
	Addr() string
}

type SocketHandle interface {
	RemoteAddr() string
	LocalAddr() string
}

// withAttrer is satisfied by Request and Response; it is the
// unexported hook the With* attribute setters below use so that
// scamper/server and scamper/client (which cannot see the unexported
// attrKey type) can still attach well-known attributes through plain
// exported functions.
type withAttrer[T any] interface {
	withAttr(k attrKey, v any) T
}

// WithCorrelate returns a copy of m carrying the correlate id attached
// by the client or server pipeline.
func WithCorrelate[T withAttrer[T]](m T, id string) T { return m.withAttr(attrCorrelate, id) }

// WithServer returns a copy of m carrying a reference to the server it
// arrived through (requests only, in practice).
func WithServer[T withAttrer[T]](m T, s ServerHandle) T { return m.withAttr(attrServer, s) }

// ServerOf returns the ServerHandle attached to m, if any.
func ServerOf(m Message) (ServerHandle, bool) {
	v, ok := m.attrs().get(attrServer)
	if !ok {
		return nil, false
	}
	return v.(ServerHandle), true
}

// WithSocket returns a copy of m carrying a reference to the
// connection it arrived on / will be written to.
func WithSocket[T withAttrer[T]](m T, s SocketHandle) T { return m.withAttr(attrSocket, s) }

// SocketOf returns the SocketHandle attached to m, if any.
func SocketOf(m Message) (SocketHandle, bool) {
	v, ok := m.attrs().get(attrSocket)
	if !ok {
		return nil, false
	}
	return v.(SocketHandle), true
}

// WithRequestCount returns a copy of m carrying the 1-based count of
// requests served so far on the connection m arrived on.
func WithRequestCount[T withAttrer[T]](m T, n int) T { return m.withAttr(attrRequestCount, n) }

// WithOutgoingRequest returns a copy of r carrying the post-filter
// request snapshot the client sent to produce r.
func WithOutgoingRequest(r Response, req Request) Response {
	return r.withAttr(attrRequest, req)
}
