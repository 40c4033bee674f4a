/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is an HTTP version (major, minor).
type Version struct {
	Major, Minor int
}

func (v Version) String() string { return fmt.Sprintf("HTTP/%d.%d", v.Major, v.Minor) }

// Version11 is the only wire version this module emits; 1.0 peers are
// still accepted on read.
var Version11 = Version{Major: 1, Minor: 1}

// AtLeast reports whether v is >= other.
func (v Version) AtLeast(other Version) bool {
	if v.Major != other.Major {
		return v.Major > other.Major
	}
	return v.Minor >= other.Minor
}

func parseVersion(s string) (Version, error) {
	if !strings.HasPrefix(s, "HTTP/") {
		return Version{}, ErrMalformedStartLine
	}
	s = s[len("HTTP/"):]
	dot := strings.IndexByte(s, '.')
	if dot < 0 {
		return Version{}, ErrMalformedStartLine
	}
	major, err := strconv.Atoi(s[:dot])
	if err != nil || major < 0 {
		return Version{}, ErrMalformedStartLine
	}
	minor, err := strconv.Atoi(s[dot+1:])
	if err != nil || minor < 0 {
		return Version{}, ErrMalformedStartLine
	}
	return Version{Major: major, Minor: minor}, nil
}

// RequestLine is (method, target, version). Target is the
// raw request-target exactly as it will appear on the wire: an
// origin-form path[?query], an absolute URI (seen from a proxy-style
// client request), or the literal "*" for OPTIONS.
type RequestLine struct {
	Method  string
	Target  string
	Version Version
}

func (l RequestLine) String() string {
	return l.Method + " " + l.Target + " " + l.Version.String()
}

// validMethod reuses the header token grammar: methods are tokens.
func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for i := 0; i < len(m); i++ {
		if !isToken(m[i]) {
			return false
		}
	}
	return true
}

func parseRequestLine(line string) (RequestLine, error) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return RequestLine{}, ErrMalformedStartLine
	}
	rest := line[sp1+1:]
	sp2 := strings.IndexByte(rest, ' ')
	if sp2 < 0 {
		return RequestLine{}, ErrMalformedStartLine
	}
	method := line[:sp1]
	target := rest[:sp2]
	versionStr := rest[sp2+1:]
	if !validMethod(method) || target == "" || containsCTLOrSpace(target) {
		return RequestLine{}, ErrMalformedStartLine
	}
	version, err := parseVersion(versionStr)
	if err != nil {
		return RequestLine{}, ErrMalformedStartLine
	}
	return RequestLine{Method: method, Target: target, Version: version}, nil
}

func containsCTLOrSpace(s string) bool {
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == ' ' || b < ' ' || b == 0x7f {
			return true
		}
	}
	return false
}

// StatusLine is (version, code, reason).
type StatusLine struct {
	Version Version
	Code    int
	Reason  string
}

func (l StatusLine) String() string {
	return fmt.Sprintf("%s %d %s", l.Version, l.Code, l.Reason)
}

func parseStatusLine(line string) (StatusLine, error) {
	sp1 := strings.IndexByte(line, ' ')
	if sp1 < 0 {
		return StatusLine{}, ErrMalformedStartLine
	}
	version, err := parseVersion(line[:sp1])
	if err != nil {
		return StatusLine{}, ErrMalformedStartLine
	}
	rest := line[sp1+1:]
	var codeStr, reason string
	if sp2 := strings.IndexByte(rest, ' '); sp2 >= 0 {
		codeStr = rest[:sp2]
		reason = rest[sp2+1:]
	} else {
		codeStr = rest
	}
	if len(codeStr) != 3 {
		return StatusLine{}, ErrMalformedStartLine
	}
	code, err := strconv.Atoi(codeStr)
	if err != nil || code < 100 || code > 599 {
		return StatusLine{}, ErrMalformedStartLine
	}
	return StatusLine{Version: version, Code: code, Reason: reason}, nil
}

// StatusText returns a registered reason phrase for code, or "" if
// none is registered (callers may substitute free text).
func StatusText(code int) string {
	if t, ok := statusText[code]; ok {
		return t
	}
	return ""
}

var statusText = map[int]string{
	100: "Continue", 101: "Switching Protocols",
	200: "OK", 201: "Created", 202: "Accepted", 204: "No Content",
	206: "Partial Content",
	301: "Moved Permanently", 302: "Found", 303: "See Other",
	304: "Not Modified", 307: "Temporary Redirect", 308: "Permanent Redirect",
	400: "Bad Request", 401: "Unauthorized", 403: "Forbidden", 404: "Not Found",
	405: "Method Not Allowed", 408: "Request Timeout", 409: "Conflict",
	411: "Length Required", 413: "Payload Too Large", 414: "URI Too Long",
	417: "Expectation Failed", 426: "Upgrade Required",
	431: "Request Header Fields Too Large",
	500: "Internal Server Error", 501: "Not Implemented",
	502: "Bad Gateway", 503: "Service Unavailable", 504: "Gateway Timeout",
}

// Well-known status codes referenced by the codec and pipeline.
const (
	StatusContinue           = 100
	StatusSwitchingProtocols = 101
	StatusOK                 = 200
	StatusNoContent          = 204
	StatusSeeOther           = 303
	StatusNotModified        = 304
	StatusBadRequest         = 400
	StatusNotFound           = 404
	StatusRequestTimeout     = 408
	StatusExpectationFailed  = 417
	StatusURITooLong         = 414
	StatusHeaderFieldsTooLarge = 431
	StatusInternalServerError  = 500
	StatusServiceUnavailable   = 503
)

func bodyAllowedForStatus(status int) bool {
	switch {
	case status >= 100 && status <= 199:
		return false
	case status == StatusNoContent:
		return false
	case status == StatusNotModified:
		return false
	}
	return true
}
