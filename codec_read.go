/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"bufio"
	"io"
	"strings"
)

// Limits bounds the wire codec: a byte limit on the start line, a max
// header count and a max total header byte count, and a max
// single-chunk size. Zero fields fall back to DefaultLimits.
type Limits struct {
	MaxStartLineBytes int
	MaxHeaderCount    int
	MaxHeaderBytes    int
	MaxChunkBytes     int64
	MaxBodyBytes      int64 // not read by the codec: whole-body size is not capped
}

// DefaultLimits holds conservative defaults comparable to what most
// HTTP servers ship with.
var DefaultLimits = Limits{
	MaxStartLineBytes: 8 * 1024,
	MaxHeaderCount:    100,
	MaxHeaderBytes:    1 << 20,
	MaxChunkBytes:     DefaultMaxChunkSize,
}

func (l Limits) orDefault() Limits {
	out := l
	if out.MaxStartLineBytes <= 0 {
		out.MaxStartLineBytes = DefaultLimits.MaxStartLineBytes
	}
	if out.MaxHeaderCount <= 0 {
		out.MaxHeaderCount = DefaultLimits.MaxHeaderCount
	}
	if out.MaxHeaderBytes <= 0 {
		out.MaxHeaderBytes = DefaultLimits.MaxHeaderBytes
	}
	if out.MaxChunkBytes <= 0 {
		out.MaxChunkBytes = DefaultLimits.MaxChunkBytes
	}
	return out
}

// readLine reads one CRLF- or LF-terminated line, trimmed of the
// terminator, enforcing maxBytes.
func readLine(r *bufio.Reader, maxBytes int, tooLongErr error) (string, error) {
	var line []byte
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			if err == io.EOF && len(line) == 0 && chunk == nil {
				return "", io.EOF
			}
			return "", ConnError("read-line", err)
		}
		line = append(line, chunk...)
		if len(line) > maxBytes {
			return "", tooLongErr
		}
		if !isPrefix {
			break
		}
	}
	return string(line), nil
}

// ReadRequestLine reads and parses a request-line.
func ReadRequestLine(r *bufio.Reader, limits Limits) (RequestLine, error) {
	limits = limits.orDefault()
	line, err := readLine(r, limits.MaxStartLineBytes, ErrRequestTooLong)
	if err != nil {
		return RequestLine{}, err
	}
	return parseRequestLine(line)
}

// ReadStatusLine reads and parses a status-line.
func ReadStatusLine(r *bufio.Reader, limits Limits) (StatusLine, error) {
	limits = limits.orDefault()
	line, err := readLine(r, limits.MaxStartLineBytes, ErrResponseTooLong)
	if err != nil {
		return StatusLine{}, err
	}
	return parseStatusLine(line)
}

// ReadHeaders reads CRLF-delimited "Name: Value" lines until an empty
// line. Obsolete line folding is not accepted. Enforces
// MaxHeaderCount and MaxHeaderBytes.
func ReadHeaders(r *bufio.Reader, limits Limits) (Header, error) {
	limits = limits.orDefault()
	h := Header{}
	total := 0
	count := 0
	for {
		line, err := readLine(r, limits.MaxHeaderBytes-total+1, ErrHeaderFieldsTooLarge)
		if err != nil {
			return Header{}, err
		}
		if line == "" {
			break
		}
		// No leading whitespace (obsolete line folding) is accepted.
		if line[0] == ' ' || line[0] == '\t' {
			return Header{}, ErrMalformedHeader
		}
		colon := strings.IndexByte(line, ':')
		if colon <= 0 {
			return Header{}, ErrMalformedHeader
		}
		name := line[:colon]
		value := strings.TrimSpace(line[colon+1:])
		if !ValidHeaderName(name) || !ValidHeaderValue(value) {
			return Header{}, ErrMalformedHeader
		}
		count++
		total += len(line) + 2
		if count > limits.MaxHeaderCount || total > limits.MaxHeaderBytes {
			return Header{}, ErrHeaderFieldsTooLarge
		}
		h = h.Add(name, value)
	}
	return h, nil
}

// bodyKind selects the body-framing strategy for an incoming message.
type bodyKind int

const (
	bodyEmpty bodyKind = iota
	bodyFixed
	bodyChunked
	bodyUntilClose
)

// resolveBodyFraming applies the body-framing rules in order:
// chunked Transfer-Encoding, then Content-Length, then the
// empty-body statuses/methods, then read-until-close for responses
// on a closing connection, then empty.
func resolveBodyFraming(h Header, isResponse bool, status int, method string, connectionWillClose bool) (bodyKind, int64, error) {
	if hasCLConflict(h) {
		return 0, 0, ErrConflictingLength
	}
	if IsChunked(headerOnly{h: h}) {
		return bodyChunked, -1, nil
	}
	if clStr, ok := h.Get(HeaderContentLength); ok {
		n, err := parseContentLength(clStr)
		if err != nil {
			return 0, 0, wrapErr(KindParse, "resolve-body-length", "invalid Content-Length", err)
		}
		return bodyFixed, n, nil
	}
	switch {
	case isResponse && (status/100 == 1 || status == 204 || status == 304):
		return bodyEmpty, 0, nil
	case !isResponse && method == "HEAD":
		return bodyEmpty, 0, nil
	case isResponse && connectionWillClose:
		return bodyUntilClose, -1, nil
	default:
		return bodyEmpty, 0, nil
	}
}

// hasCLConflict reports whether both Transfer-Encoding and
// Content-Length are present; a message carrying both is rejected.
func hasCLConflict(h Header) bool {
	return h.Has(HeaderTransferEncoding) && h.Has(HeaderContentLength)
}

func parseContentLength(s string) (int64, error) {
	if s == "" {
		return 0, errInvalidContentLength
	}
	var n int64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, errInvalidContentLength
		}
		n = n*10 + int64(c-'0')
		if n < 0 {
			return 0, errInvalidContentLength
		}
	}
	return n, nil
}

var errInvalidContentLength = newErr(KindParse, "resolve-body-length", "Content-Length is not a non-negative decimal integer")

// headerOnly adapts a bare Header to Message for helpers (ContentType,
// IsChunked, ...) that only need header access.
type headerOnly struct{ h Header }

func (h headerOnly) Headers() Header   { return h.h }
func (h headerOnly) Entity() Entity    { return EmptyEntity }
func (h headerOnly) attrs() attributes { return nil }

func bodyReader(r *bufio.Reader, kind bodyKind, length int64, limits Limits) io.ReadCloser {
	limits = limits.orDefault()
	switch kind {
	case bodyChunked:
		return io.NopCloser(newChunkedReader(r, limits.MaxChunkBytes))
	case bodyFixed:
		if length == 0 {
			return io.NopCloser(strings.NewReader(""))
		}
		return io.NopCloser(io.LimitReader(r, length))
	case bodyUntilClose:
		return io.NopCloser(r)
	default:
		return io.NopCloser(strings.NewReader(""))
	}
}

// ReadRequest reads one full HTTP/1.1 request (start line, headers,
// body) from r. A streaming reader (not pre-buffered) is attached as
// the request's Entity so callers may still enforce their own body
// byte caps with an io.LimitReader-style wrapper.
func ReadRequest(r *bufio.Reader, limits Limits) (Request, error) {
	limits = limits.orDefault()
	line, err := ReadRequestLine(r, limits)
	if err != nil {
		return Request{}, err
	}
	h, err := ReadHeaders(r, limits)
	if err != nil {
		return Request{}, err
	}
	if hasCLConflict(h) {
		return Request{}, ErrConflictingLength
	}
	kind, length, err := resolveBodyFraming(h, false, 0, line.Method, false)
	if err != nil {
		return Request{}, err
	}
	rc := bodyReader(r, kind, length, limits)
	req := Request{base: base{header: h, entity: &readCloserEntity{rc: rc, size: entitySize(kind, length)}}, Line: line}
	return req, nil
}

// ReadResponse reads one full HTTP/1.1 response for a request made
// with method and on a connection that will/won't close afterward
// (needed to resolve the "until EOF" framing rule).
func ReadResponse(r *bufio.Reader, method string, connectionWillClose bool, limits Limits) (Response, error) {
	limits = limits.orDefault()
	line, err := ReadStatusLine(r, limits)
	if err != nil {
		return Response{}, err
	}
	h, err := ReadHeaders(r, limits)
	if err != nil {
		return Response{}, err
	}
	if hasCLConflict(h) {
		return Response{}, ErrConflictingLength
	}
	kind, length, err := resolveBodyFraming(h, true, line.Code, method, connectionWillClose)
	if err != nil {
		return Response{}, err
	}
	if method == "HEAD" {
		kind, length = bodyEmpty, 0
	}
	rc := bodyReader(r, kind, length, limits)
	resp := Response{base: base{header: h, entity: &readCloserEntity{rc: rc, size: entitySize(kind, length)}}, Line: line}
	return resp, nil
}

func entitySize(kind bodyKind, length int64) int64 {
	if kind == bodyFixed {
		return length
	}
	return -1
}

// readCloserEntity adapts an already-open io.ReadCloser (the live
// socket body) to the Entity interface; it is single-shot.
type readCloserEntity struct {
	rc     io.ReadCloser
	size   int64
	opened bool
}

func (e *readCloserEntity) Open() (io.ReadCloser, error) {
	if e.opened {
		return nil, errEntityAlreadyConsumed
	}
	e.opened = true
	return e.rc, nil
}
func (e *readCloserEntity) Size() int64      { return e.size }
func (e *readCloserEntity) Restartable() bool { return false }
