/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package cookie implements request Cookie and response Set-Cookie
// values and a domain/path/secure-scoped store. Unlike net/http's
// single mutable http.Cookie, request and response cookies are split
// into two immutable value types.
package cookie

import (
	"bytes"
	"strconv"
	"strings"
	"time"
)

// SameSite is the SameSite attribute of a SetCookie.
type SameSite int

const (
	SameSiteDefault SameSite = iota
	SameSiteLax
	SameSiteStrict
	SameSiteNone
)

func (s SameSite) String() string {
	switch s {
	case SameSiteLax:
		return "Lax"
	case SameSiteStrict:
		return "Strict"
	case SameSiteNone:
		return "None"
	default:
		return ""
	}
}

// Plain is a request-side cookie: just a name and a value.
type Plain struct {
	Name  string
	Value string
}

// String renders c for use in a Cookie request header line, joined
// with "; " by the caller for multiple cookies.
func (c Plain) String() string {
	if !ValidName(c.Name) {
		return ""
	}
	return c.Name + "=" + sanitizeValue(c.Value)
}

// Set is a response-side cookie carrying the full set of Set-Cookie
// attributes.
type Set struct {
	Name     string
	Value    string
	Path     string
	Domain   string
	MaxAge   int // 0 = unset, <0 = delete now, >0 = seconds
	Expires  time.Time
	Secure   bool
	HTTPOnly bool
	SameSite SameSite
}

// String renders c as a Set-Cookie response header value.
func (c Set) String() string {
	if !ValidName(c.Name) {
		return ""
	}
	var b bytes.Buffer
	b.WriteString(c.Name)
	b.WriteByte('=')
	b.WriteString(sanitizeValue(c.Value))

	if c.Path != "" {
		b.WriteString("; Path=")
		b.WriteString(sanitizePath(c.Path))
	}
	if c.Domain != "" && validDomain(c.Domain) {
		d := c.Domain
		if d[0] == '.' {
			d = d[1:]
		}
		b.WriteString("; Domain=")
		b.WriteString(d)
	}
	if !c.Expires.IsZero() {
		b.WriteString("; Expires=")
		b.WriteString(c.Expires.UTC().Format(http1123))
	}
	if c.MaxAge > 0 {
		b.WriteString("; Max-Age=")
		b.WriteString(strconv.Itoa(c.MaxAge))
	} else if c.MaxAge < 0 {
		b.WriteString("; Max-Age=0")
	}
	switch c.SameSite {
	case SameSiteLax, SameSiteStrict, SameSiteNone:
		b.WriteString("; SameSite=")
		b.WriteString(c.SameSite.String())
	}
	if c.HTTPOnly {
		b.WriteString("; HttpOnly")
	}
	if c.Secure {
		b.WriteString("; Secure")
	}
	return b.String()
}

const http1123 = "Mon, 02 Jan 2006 15:04:05 GMT"

// ParseCookieHeader parses the value of a Cookie request header
// ("name=value; name2=value2") into a sequence of Plain cookies.
// Malformed pairs are skipped, not fatal.
func ParseCookieHeader(v string) []Plain {
	var out []Plain
	parts := strings.Split(v, ";")
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		name, val := p, ""
		if i := strings.IndexByte(p, '='); i >= 0 {
			name, val = p[:i], p[i+1:]
		}
		if !ValidName(name) {
			continue
		}
		val, ok := unquoteValue(val)
		if !ok {
			continue
		}
		out = append(out, Plain{Name: name, Value: val})
	}
	return out
}

// ParseSetCookie parses one Set-Cookie response header value into a
// Set. The caller loops over multiple Set-Cookie occurrences itself,
// since Header.Values already gives each line separately.
func ParseSetCookie(line string) (Set, bool) {
	parts := strings.Split(line, ";")
	if len(parts) == 0 {
		return Set{}, false
	}
	first := strings.TrimSpace(parts[0])
	eq := strings.IndexByte(first, '=')
	if eq < 0 {
		return Set{}, false
	}
	name, value := first[:eq], first[eq+1:]
	if !ValidName(name) {
		return Set{}, false
	}
	value, ok := unquoteValue(value)
	if !ok {
		return Set{}, false
	}
	c := Set{Name: name, Value: value}
	for _, p := range parts[1:] {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		attr, val := p, ""
		if i := strings.IndexByte(p, '='); i >= 0 {
			attr, val = p[:i], p[i+1:]
		}
		switch strings.ToLower(attr) {
		case "secure":
			c.Secure = true
		case "httponly":
			c.HTTPOnly = true
		case "domain":
			c.Domain = val
		case "path":
			c.Path = val
		case "max-age":
			if n, err := strconv.Atoi(val); err == nil {
				c.MaxAge = n
			}
		case "expires":
			if t, err := time.Parse(time.RFC1123, val); err == nil {
				c.Expires = t.UTC()
			} else if t, err := time.Parse("Mon, 02-Jan-2006 15:04:05 MST", val); err == nil {
				c.Expires = t.UTC()
			}
		case "samesite":
			switch strings.ToLower(val) {
			case "lax":
				c.SameSite = SameSiteLax
			case "strict":
				c.SameSite = SameSiteStrict
			case "none":
				c.SameSite = SameSiteNone
			}
		}
	}
	return c, true
}

func unquoteValue(v string) (string, bool) {
	if len(v) > 1 && v[0] == '"' && v[len(v)-1] == '"' {
		v = v[1 : len(v)-1]
	}
	for i := 0; i < len(v); i++ {
		if !validValueByte(v[i]) {
			return "", false
		}
	}
	return v, true
}

func sanitizeValue(v string) string {
	var b strings.Builder
	for i := 0; i < len(v); i++ {
		if validValueByte(v[i]) {
			b.WriteByte(v[i])
		}
	}
	return b.String()
}

func sanitizePath(p string) string {
	var b strings.Builder
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c == ';' || c < 0x20 || c == 0x7f {
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func validValueByte(b byte) bool {
	return b == 0x21 || (b >= 0x23 && b <= 0x2b) || (b >= 0x2d && b <= 0x3a) ||
		(b >= 0x3c && b <= 0x5b) || (b >= 0x5d && b <= 0x7e)
}

func validDomain(d string) bool {
	if d == "" {
		return false
	}
	for i := 0; i < len(d); i++ {
		c := d[i]
		ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
			c == '.' || c == '-'
		if !ok {
			return false
		}
	}
	return true
}

// ValidName reports whether name is a valid cookie-name token (RFC
// 6265 §4.1.1).
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if !isToken(name[i]) {
			return false
		}
	}
	return true
}

func isToken(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	}
	switch c {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}
