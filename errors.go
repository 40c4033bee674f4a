/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package scamper implements an HTTP/1.1 message model and wire codec:
// request/response parsing and serialization, chunked transfer coding,
// and body-length resolution. The client, server, router, connection
// pool and WebSocket layers live in sibling packages that build on top
// of the types defined here.
package scamper

import (
	"errors"
	"fmt"
)

// Kind classifies an error surfaced by the codec, client or server so
// that callers (in particular the server pipeline's status-code
// mapping, see scamper/server) can react without string matching.
type Kind int

const (
	// KindParse covers a malformed start line, header, URI or chunk size.
	KindParse Kind = iota
	// KindLimitExceeded covers header count/bytes, body bytes, URI length
	// and WebSocket frame length breaches.
	KindLimitExceeded
	// KindTimeout covers read, continue and idle timeouts.
	KindTimeout
	// KindProtocol covers HTTP/WebSocket semantic violations: conflicting
	// Transfer-Encoding/Content-Length, reserved WebSocket bits, oversized
	// control frames, wrong masking direction, and so on.
	KindProtocol
	// KindConnection covers EOF mid-message, TLS failure, socket reset.
	KindConnection
	// KindApplication covers errors raised by user handlers.
	KindApplication
	// KindLifecycle covers critical-service Start failures.
	KindLifecycle
)

func (k Kind) String() string {
	switch k {
	case KindParse:
		return "parse"
	case KindLimitExceeded:
		return "limit-exceeded"
	case KindTimeout:
		return "timeout"
	case KindProtocol:
		return "protocol"
	case KindConnection:
		return "connection"
	case KindApplication:
		return "application"
	case KindLifecycle:
		return "lifecycle"
	default:
		return "unknown"
	}
}

// Error is the concrete error type for every Kind above, KindApplication
// included: ApplicationError wraps a user handler's error in an *Error
// of that Kind.
type Error struct {
	Kind    Kind
	Op      string // e.g. "read-start-line", "read-headers", "read-chunk-size"
	Message string
	Err     error // underlying cause, if any; nil for pure parse failures
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scamper: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("scamper: %s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether err (or something it wraps) is a *Error of Kind k.
func Is(err error, k Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == k
	}
	return false
}

func newErr(k Kind, op, msg string) error {
	return &Error{Kind: k, Op: op, Message: msg}
}

func wrapErr(k Kind, op, msg string, cause error) error {
	return &Error{Kind: k, Op: op, Message: msg, Err: cause}
}

// Sentinel errors for conditions callers routinely branch on, kept as
// package variables so they can be compared with ==.
var (
	// ErrMalformedStartLine: request-line/status-line failed to parse.
	ErrMalformedStartLine = newErr(KindParse, "read-start-line", "malformed start line")
	// ErrMalformedHeader: a header line is not "Name: Value".
	ErrMalformedHeader = newErr(KindParse, "read-headers", "malformed header")
	// ErrHeaderFieldsTooLarge: header count or total header bytes exceeded
	// the configured limit.
	ErrHeaderFieldsTooLarge = newErr(KindLimitExceeded, "read-headers", "header fields too large")
	// ErrRequestTooLong / ErrResponseTooLong: start line exceeded the byte
	// limit before a CRLF was found.
	ErrRequestTooLong  = newErr(KindLimitExceeded, "read-start-line", "request line too long")
	ErrResponseTooLong = newErr(KindLimitExceeded, "read-start-line", "status line too long")
	// ErrBodyTooLarge: a single chunk exceeded the configured chunk-size
	// cap (Limits.MaxChunkBytes).
	ErrBodyTooLarge = newErr(KindLimitExceeded, "read-body", "body too large")
	// ErrUnexpectedEOF: the peer closed the connection mid-message.
	ErrUnexpectedEOF = newErr(KindConnection, "read-body", "unexpected EOF")
	// ErrConflictingLength: both Transfer-Encoding and Content-Length
	// were present on the same message.
	ErrConflictingLength = newErr(KindProtocol, "resolve-body-length", "conflicting Transfer-Encoding and Content-Length")
	// ErrMissingHost: an outgoing request has no absolute target and no
	// Host to fall back to.
	ErrMissingHost = errors.New("scamper: request has no Host")
	// ErrHijacked names a write/flush attempted after the connection was
	// handed off via Hijack. No function in this module returns it.
	ErrHijacked = errors.New("scamper: connection has been hijacked")
	// ErrAborted is returned by a request handler (see scamper/server) to
	// signal that the pipeline must drop the connection without writing
	// any response. It is never converted to a 500.
	ErrAborted = errors.New("scamper: response aborted")
	// ErrHeaderNotFound is returned by a typed accessor's "required" form
	// (RequireHeader) when the header is absent.
	ErrHeaderNotFound = errors.New("scamper: header not found")
	// ErrParameterNotConvertible is returned by a router path-parameter
	// accessor (e.g. Params.Int) when the segment cannot be converted.
	ErrParameterNotConvertible = errors.New("scamper: path parameter not convertible")
)

// ReadTimeout reports a socket read timing out before any byte of a
// response/request was seen.
func ReadTimeout(op string) error { return newErr(KindTimeout, op, "read timeout") }

// ConnError wraps a low-level network error (EOF, reset, TLS failure)
// observed while reading or writing a message.
func ConnError(op string, cause error) error {
	return wrapErr(KindConnection, op, "connection error", cause)
}

// ApplicationError wraps a panic/error value raised by a user-supplied
// handler or filter.
func ApplicationError(cause error) error {
	return wrapErr(KindApplication, "handler", "application error", cause)
}

// LifecycleError wraps a critical-service Start failure.
func LifecycleError(hook string, cause error) error {
	return wrapErr(KindLifecycle, "lifecycle-start", fmt.Sprintf("critical hook %q failed", hook), cause)
}
