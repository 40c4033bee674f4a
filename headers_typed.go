/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"strconv"
	"strings"
)

// Well-known header names in canonical form.
const (
	HeaderHost              = "Host"
	HeaderUserAgent         = "User-Agent"
	HeaderConnection        = "Connection"
	HeaderContentType       = "Content-Type"
	HeaderContentLength     = "Content-Length"
	HeaderTransferEncoding  = "Transfer-Encoding"
	HeaderLocation          = "Location"
	HeaderCookie            = "Cookie"
	HeaderSetCookie         = "Set-Cookie"
	HeaderAccept            = "Accept"
	HeaderAcceptEncoding    = "Accept-Encoding"
	HeaderExpect            = "Expect"
	HeaderUpgrade           = "Upgrade"
	HeaderTE                = "TE"
	HeaderSecWebSocketKey     = "Sec-WebSocket-Key"
	HeaderSecWebSocketAccept  = "Sec-WebSocket-Accept"
	HeaderSecWebSocketVersion = "Sec-WebSocket-Version"
	HeaderSecWebSocketExt     = "Sec-WebSocket-Extensions"
)

// The generic accessors for any header name follow one contract:
// HasHeader, GetHeader (value plus ok), RequireHeader (errors if
// absent), SetHeader, RemoveHeaderFrom. The typed accessors further
// down offer only a getter (value plus ok) and a setter. Go has no extension
// methods, so each accessor is a free function generic over the
// Message/Mutable[T] capability interfaces rather than a method —
// callers write ContentType(msg) / SetContentType(msg, v).

// HasHeader reports whether name occurs at least once on m.
func HasHeader(m Message, name string) bool { return m.Headers().Has(name) }

// GetHeader returns the first value of name on m, and whether it was present.
func GetHeader(m Message, name string) (string, bool) { return m.Headers().Get(name) }

// RequireHeader returns the first value of name on m, or
// ErrHeaderNotFound if absent.
func RequireHeader(m Message, name string) (string, error) {
	if v, ok := m.Headers().Get(name); ok {
		return v, nil
	}
	return "", ErrHeaderNotFound
}

// SetHeader returns a copy of m with name set to value (prior
// occurrences removed first, per Header.Set).
func SetHeader[T Mutable[T]](m T, name, value string) T {
	return m.WithHeaders(m.Headers().Set(name, value))
}

// RemoveHeaderFrom returns a copy of m with every occurrence of name removed.
func RemoveHeaderFrom[T Mutable[T]](m T, name string) T {
	return m.WithHeaders(m.Headers().Remove(name))
}

// --- Content-Type -----------------------------------------------------

// ContentType returns the media type of the Content-Type header value
// (any ";" parameters are dropped), and whether it was present.
func ContentType(m Message) (mediaType string, ok bool) {
	v, ok := m.Headers().Get(HeaderContentType)
	if !ok {
		return "", false
	}
	if i := strings.IndexByte(v, ';'); i >= 0 {
		return strings.TrimSpace(v[:i]), true
	}
	return strings.TrimSpace(v), true
}

// SetContentType returns a copy of m with Content-Type set to v.
func SetContentType[T Mutable[T]](m T, v string) T { return SetHeader(m, HeaderContentType, v) }

// --- Content-Length ----------------------------------------------------

// ContentLength returns the parsed Content-Length, and whether a
// valid one was present; a negative or non-decimal value reports
// ok=false.
func ContentLength(m Message) (int64, bool) {
	v, ok := m.Headers().Get(HeaderContentLength)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// SetContentLength returns a copy of m with Content-Length set to n.
func SetContentLength[T Mutable[T]](m T, n int64) T {
	return SetHeader(m, HeaderContentLength, strconv.FormatInt(n, 10))
}

// --- Transfer-Encoding ---------------------------------------------------

// IsChunked reports whether "chunked" is the last coding in
// Transfer-Encoding.
func IsChunked(m Message) bool {
	v, ok := m.Headers().Get(HeaderTransferEncoding)
	if !ok {
		return false
	}
	codings := strings.Split(v, ",")
	last := strings.TrimSpace(codings[len(codings)-1])
	return strings.EqualFold(last, "chunked")
}

// SetChunked returns a copy of m with Transfer-Encoding: chunked.
func SetChunked[T Mutable[T]](m T) T { return SetHeader(m, HeaderTransferEncoding, "chunked") }

// --- Host ----------------------------------------------------------------

// Host returns the Host header value of a Request.
func Host(r Request) (string, bool) { return r.Headers().Get(HeaderHost) }

// SetHost returns a copy of r with Host set.
func SetHost(r Request, host string) Request { return SetHeader(r, HeaderHost, host) }

// --- Location --------------------------------------------------------------

// Location returns the Location header of a Response (redirect target).
func Location(r Response) (string, bool) { return r.Headers().Get(HeaderLocation) }

// SetLocation returns a copy of r with Location set.
func SetLocation(r Response, target string) Response { return SetHeader(r, HeaderLocation, target) }

// --- Connection tokens ------------------------------------------------------

// ConnectionTokens returns the comma-separated, trimmed tokens of the
// Connection header (e.g. ["close"], ["keep-alive"], ["TE"]).
func ConnectionTokens(m Message) []string {
	v, ok := m.Headers().Get(HeaderConnection)
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			tokens = append(tokens, t)
		}
	}
	return tokens
}

// HasConnectionToken reports whether token (case-insensitive) is among
// the Connection header's tokens.
func HasConnectionToken(m Message, token string) bool {
	for _, t := range ConnectionTokens(m) {
		if strings.EqualFold(t, token) {
			return true
		}
	}
	return false
}

// --- Expect: 100-continue --------------------------------------------------

// Expects100Continue reports whether the request carries
// "Expect: 100-continue".
func Expects100Continue(r Request) bool {
	v, ok := r.Headers().Get(HeaderExpect)
	return ok && strings.EqualFold(strings.TrimSpace(v), "100-continue")
}
