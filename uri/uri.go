/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package uri implements the restricted URI surface scamper needs:
// absolute/relative reference parsing, RFC 3986 path normalization,
// and an order-preserving query string codec. The general net/url
// grammar is trimmed down to the http/https/ws/wss schemes scamper
// actually routes and dials.
package uri

import (
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// Scheme enumerates the only absolute-URI schemes scamper accepts.
type Scheme string

const (
	SchemeHTTP  Scheme = "http"
	SchemeHTTPS Scheme = "https"
	SchemeWS    Scheme = "ws"
	SchemeWSS   Scheme = "wss"
)

func (s Scheme) valid() bool {
	switch s {
	case SchemeHTTP, SchemeHTTPS, SchemeWS, SchemeWSS:
		return true
	}
	return false
}

// defaultPort returns the scheme's default port: 80 for http/ws, 443
// for https/wss.
func (s Scheme) defaultPort() int {
	switch s {
	case SchemeHTTPS, SchemeWSS:
		return 443
	default:
		return 80
	}
}

// URI is a parsed absolute or relative URI reference, restricted to
// scamper's wire-relevant grammar: no user-info is permitted on
// absolute forms, the path is normalized on construction, and the
// query is an order-preserving multimap rather than a raw string.
type URI struct {
	Scheme   Scheme // empty for relative (origin-form) references
	Host     string // hostname only, lowercased; empty for relative
	Port     int    // 0 means "use Scheme.defaultPort()"
	Path     string // normalized, always starts with "/" unless empty
	Query    Query
	Fragment string
}

// IsAbsolute reports whether u carries a scheme and host.
func (u URI) IsAbsolute() bool { return u.Scheme != "" }

// Parse parses raw as either an absolute URI (schemes
// http/https/ws/wss, no user-info) or a relative origin-form
// reference ("path[?query]" or the literal "*"). Host labels are
// normalized via IDNA (golang.org/x/net/idna); see splitHostPort.
func Parse(raw string) (URI, error) {
	if raw == "*" {
		return URI{Path: "*"}, nil
	}

	var u URI
	rest := raw

	if i := strings.IndexByte(rest, '#'); i >= 0 {
		frag, err := percentDecode(rest[i+1:])
		if err != nil {
			return URI{}, errMalformed("invalid fragment encoding")
		}
		u.Fragment = frag
		rest = rest[:i]
	}

	if schemeEnd := strings.Index(rest, "://"); schemeEnd > 0 && isValidSchemeToken(rest[:schemeEnd]) {
		scheme := Scheme(strings.ToLower(rest[:schemeEnd]))
		if !scheme.valid() {
			return URI{}, errMalformed("unsupported scheme " + string(scheme))
		}
		u.Scheme = scheme
		rest = rest[schemeEnd+3:]

		authority := rest
		if i := strings.IndexAny(rest, "/?"); i >= 0 {
			authority = rest[:i]
			rest = rest[i:]
		} else {
			rest = ""
		}
		if strings.ContainsRune(authority, '@') {
			return URI{}, errMalformed("user-info is not permitted")
		}
		host, port, err := splitHostPort(authority)
		if err != nil {
			return URI{}, err
		}
		u.Host = host
		u.Port = port
	}

	path := rest
	if i := strings.IndexByte(rest, '?'); i >= 0 {
		path = rest[:i]
		q, err := ParseQuery(rest[i+1:])
		if err != nil {
			return URI{}, err
		}
		u.Query = q
	}

	decodedPath, err := percentDecode(path)
	if err != nil {
		return URI{}, errMalformed("invalid path encoding")
	}
	u.Path = normalizePath(decodedPath)

	if u.IsAbsolute() && u.Path == "" {
		u.Path = "/"
	}
	return u, nil
}

func isValidSchemeToken(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.'):
		default:
			return false
		}
	}
	return true
}

// splitHostPort validates and normalizes an authority with no
// user-info: "host" or "host:port". Host labels are normalized through
// IDNA; a host IDNA rejects is kept as a lowercase copy, not refused.
// Port, if present, must be in 1..65535.
func splitHostPort(authority string) (host string, port int, err error) {
	if authority == "" {
		return "", 0, errMalformed("missing host")
	}
	h := authority
	if i := strings.LastIndexByte(authority, ':'); i >= 0 && !strings.Contains(authority[i:], "]") {
		h = authority[:i]
		portStr := authority[i+1:]
		if portStr != "" {
			n, convErr := strconv.Atoi(portStr)
			if convErr != nil || n < 1 || n > 65535 {
				return "", 0, errMalformed("port out of range")
			}
			port = n
		}
	}
	h = strings.TrimPrefix(strings.TrimSuffix(h, "]"), "[")
	normalized, idnaErr := idna.Lookup.ToASCII(h)
	if idnaErr != nil {
		// Not every valid host (IP literals, already-ASCII names with
		// characters idna rejects for lookup) round-trips through
		// ToASCII; fall back to a lowercase copy of the original label
		// rather than rejecting what may be a perfectly valid host.
		normalized = strings.ToLower(h)
	}
	return normalized, port, nil
}

// normalizePath removes "." and ".." segments per RFC 3986 §5.2.4 and
// collapses duplicate slashes.
func normalizePath(p string) string {
	if p == "" {
		return ""
	}
	absolute := strings.HasPrefix(p, "/")
	trailingSlash := len(p) > 1 && strings.HasSuffix(p, "/")

	segments := strings.Split(p, "/")
	out := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(out) > 0 {
				out = out[:len(out)-1]
			}
		default:
			out = append(out, seg)
		}
	}

	joined := strings.Join(out, "/")
	switch {
	case absolute:
		joined = "/" + joined
	case joined == "":
		joined = "."
	}
	if trailingSlash && !strings.HasSuffix(joined, "/") {
		joined += "/"
	}
	return joined
}

// ToAbsolute stamps scheme and authority onto a relative
// (origin-form) URI.
func (u URI) ToAbsolute(scheme Scheme, host string, port int) URI {
	u.Scheme = scheme
	u.Host = strings.ToLower(host)
	u.Port = port
	return u
}

// ToTarget strips scheme/authority/fragment, preserving path and
// query; it rewrites a client's absolute request target into
// origin-form before it goes on the wire. An empty path (e.g. after
// stripping "http://host") is rendered as "/"; the "*" form for
// OPTIONS is the caller's to request.
func (u URI) ToTarget() string {
	path := u.Path
	if path == "" {
		path = "/"
	}
	if u.Query.Len() == 0 {
		return path
	}
	return path + "?" + u.Query.Encode()
}

// Authority returns "host[:port]", omitting the port when it equals
// the scheme's default (or is unset).
func (u URI) Authority() string {
	if u.Host == "" {
		return ""
	}
	if u.Port == 0 || u.Port == u.Scheme.defaultPort() {
		return u.Host
	}
	return u.Host + ":" + strconv.Itoa(u.Port)
}

// String reassembles u into its normalized ASCII wire form. Equality
// between two URIs is defined on this normalized form.
func (u URI) String() string {
	var b strings.Builder
	if u.IsAbsolute() {
		b.WriteString(string(u.Scheme))
		b.WriteString("://")
		b.WriteString(u.Authority())
	}
	if u.Path == "*" {
		b.WriteString("*")
	} else {
		b.WriteString(percentEncodePath(u.Path))
	}
	if u.Query.Len() > 0 {
		b.WriteByte('?')
		b.WriteString(u.Query.Encode())
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(percentEncodeFragment(u.Fragment))
	}
	return b.String()
}

// Equal reports whether u and other normalize to the same ASCII form.
func (u URI) Equal(other URI) bool { return u.String() == other.String() }

func errMalformed(msg string) error { return &ParseError{Msg: msg} }

// ParseError reports a malformed URI.
type ParseError struct{ Msg string }

func (e *ParseError) Error() string { return "uri: " + e.Msg }
