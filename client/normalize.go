/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package client

import (
	"strconv"
	"strings"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/uri"
)

const defaultUserAgent = "scamper-go/1.0"

// normalize rewrites req for the wire using u (the already-parsed
// absolute target) and the client's configuration: effective
// Connection tokens, per-method body framing, Host/User-Agent/Cookie/
// Accept defaults, and the origin-form target. It returns the
// rewritten request and the origin to dial/pool against.
func normalize(c *Client, req scamper.Request, u uri.URI) (scamper.Request, uri.URI, error) {
	if !u.IsAbsolute() || !validScheme(u.Scheme) {
		return scamper.Request{}, u, scamper.ErrMissingHost
	}

	// Effective Connection header.
	tokens := connectionTokensMinusManaged(req)
	if scamper.HasHeader(req, scamper.HeaderTE) {
		tokens = append(tokens, "TE")
	}
	if c.keepAlive {
		tokens = append(tokens, "keep-alive")
	} else {
		tokens = append(tokens, "close")
	}
	req = scamper.SetHeader(req, scamper.HeaderConnection, strings.Join(tokens, ", "))

	// Body rewrite by method.
	req = rewriteBodyForMethod(req)

	// Host / User-Agent / Cookie / Accept defaults.
	req = scamper.SetHeader(req, scamper.HeaderHost, u.Authority())
	if !scamper.HasHeader(req, scamper.HeaderUserAgent) {
		ua := c.userAgent
		if ua == "" {
			ua = defaultUserAgent
		}
		req = scamper.SetHeader(req, scamper.HeaderUserAgent, ua)
	}
	if c.cookies != nil {
		secure := u.Scheme == uri.SchemeHTTPS || u.Scheme == uri.SchemeWSS
		if cookies := c.cookies.Get(secure, u.Host, pathOr(u.Path, "/")); len(cookies) > 0 {
			parts := make([]string, len(cookies))
			for i, pc := range cookies {
				parts[i] = pc.String()
			}
			req = scamper.SetHeader(req, scamper.HeaderCookie, strings.Join(parts, "; "))
		}
	}
	if !scamper.HasHeader(req, scamper.HeaderAccept) && c.accept != "" {
		req = scamper.SetHeader(req, scamper.HeaderAccept, c.accept)
	}
	if !scamper.HasHeader(req, scamper.HeaderAcceptEncoding) && c.acceptEncoding != "" {
		req = scamper.SetHeader(req, scamper.HeaderAcceptEncoding, c.acceptEncoding)
	}

	// Rewrite target to origin-form.
	target := u.ToTarget()
	if req.Method() == "OPTIONS" && u.Path == "" {
		target = "*"
	}
	req = req.WithTarget(target)

	return req, u, nil
}

func validScheme(s uri.Scheme) bool {
	switch s {
	case uri.SchemeHTTP, uri.SchemeHTTPS, uri.SchemeWS, uri.SchemeWSS:
		return true
	}
	return false
}

func pathOr(p, def string) string {
	if p == "" {
		return def
	}
	return p
}

// connectionTokensMinusManaged strips the tokens the client owns
// (close, keep-alive, TE) from the caller-supplied Connection header.
func connectionTokensMinusManaged(req scamper.Request) []string {
	var out []string
	for _, t := range scamper.ConnectionTokens(req) {
		switch strings.ToLower(t) {
		case "close", "keep-alive", "te":
			continue
		}
		out = append(out, t)
	}
	return out
}

// rewriteBodyForMethod empties the body for GET/HEAD/DELETE/TRACE and
// resolves the framing header for every other method: a caller-forced
// chunked coding wins, then a valid Content-Length, then the entity's
// known size, falling back to chunked.
func rewriteBodyForMethod(req scamper.Request) scamper.Request {
	if scamper.MethodCarriesNoBody(req.Method()) {
		req = req.WithEntity(scamper.EmptyEntity)
		req = req.RemoveHeader(scamper.HeaderContentLength)
		req = req.RemoveHeader(scamper.HeaderTransferEncoding)
		return req
	}
	if scamper.IsChunked(req) {
		req = scamper.SetHeader(req, scamper.HeaderTransferEncoding, "chunked")
		return req
	}
	if cl, ok := scamper.ContentLength(req); ok {
		req = scamper.SetHeader(req, scamper.HeaderContentLength, strconv.FormatInt(cl, 10))
		return req
	}
	if size := req.Entity().Size(); size >= 0 {
		req = scamper.SetHeader(req, scamper.HeaderContentLength, strconv.FormatInt(size, 10))
		return req
	}
	req = scamper.SetHeader(req, scamper.HeaderTransferEncoding, "chunked")
	return req
}
