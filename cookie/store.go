/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package cookie

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Store is the cookie-store contract the client consumes.
// scamper/client depends only on this interface, never on Jar
// directly, so a caller may supply any compatible implementation.
type Store interface {
	// Get selects cookies applicable to a request against (secure,
	// host, path), per RFC 6265 §5.1.3/§5.1.4 domain-match/path-match,
	// already filtered by expiry.
	Get(secure bool, host, path string) []Plain
	// Put stores c as scoped to host, replacing any prior cookie with
	// the same (name, domain, path) triple.
	Put(host string, c Set)
}

// None is the null store: Get returns empty, Put is ignored.
var None Store = noneStore{}

type noneStore struct{}

func (noneStore) Get(bool, string, string) []Plain { return nil }
func (noneStore) Put(string, Set)                  {}

// entry is a stored cookie together with the host/path it was scoped to.
type entry struct {
	name, value   string
	domain, path  string
	hostOnly      bool
	secure        bool
	expires       time.Time
	persistent    bool
	lastUpdated   time.Time
}

func (e entry) id() string { return e.domain + ";" + e.path + ";" + e.name }

func (e entry) expired(now time.Time) bool {
	return e.persistent && !e.expires.IsZero() && !now.Before(e.expires)
}

// domainMatch implements RFC 6265 §5.1.3.
func (e entry) domainMatch(host string) bool {
	if e.domain == host {
		return true
	}
	return !e.hostOnly && hasDotSuffix(host, e.domain)
}

// pathMatch implements RFC 6265 §5.1.4.
func (e entry) pathMatch(path string) bool {
	if path == e.path {
		return true
	}
	if strings.HasPrefix(path, e.path) {
		if e.path != "" && e.path[len(e.path)-1] == '/' {
			return true
		}
		if len(path) > len(e.path) && path[len(e.path)] == '/' {
			return true
		}
	}
	return false
}

func hasDotSuffix(s, suffix string) bool {
	return len(s) > len(suffix) && s[len(s)-len(suffix)-1] == '.' && strings.HasSuffix(s, suffix)
}

// Jar is an in-memory, thread-safe Store keyed by registrable domain
// (via golang.org/x/net/publicsuffix, the same library net/http's own
// cookiejar uses to keep a cookie from being set across an entire
// public suffix).
type Jar struct {
	mu      sync.Mutex
	entries map[string]map[string]entry // jarKey(host) -> id -> entry
}

// NewJar constructs an empty Jar.
func NewJar() *Jar {
	return &Jar{entries: make(map[string]map[string]entry)}
}

// jarKey reduces host to its registrable domain (eTLD+1) so cookies
// set with a Domain attribute land in the same bucket as the hosts
// they cover.
func jarKey(host string) string {
	host = strings.ToLower(host)
	suffix, _ := publicsuffix.PublicSuffix(host)
	if suffix == host || len(suffix) >= len(host) {
		return host
	}
	i := len(host) - len(suffix) - 1
	if i <= 0 || host[i] != '.' {
		return host
	}
	prev := strings.LastIndexByte(host[:i], '.')
	return host[prev+1:]
}

func (j *Jar) Get(secure bool, host, path string) []Plain {
	host = strings.ToLower(host)
	j.mu.Lock()
	defer j.mu.Unlock()
	now := time.Now()
	bucket := j.entries[jarKey(host)]
	var out []Plain
	var stale []string
	for id, e := range bucket {
		if e.expired(now) {
			stale = append(stale, id)
			continue
		}
		if !e.domainMatch(host) || !e.pathMatch(path) || (e.secure && !secure) {
			continue
		}
		out = append(out, Plain{Name: e.name, Value: e.value})
	}
	for _, id := range stale {
		delete(bucket, id)
	}
	return out
}

func (j *Jar) Put(host string, c Set) {
	host = strings.ToLower(host)
	key := jarKey(host)
	domain := c.Domain
	hostOnly := domain == ""
	if hostOnly {
		domain = host
	} else {
		domain = strings.ToLower(strings.TrimPrefix(domain, "."))
		// A cookie may not claim an entire public suffix (e.g.
		// Domain=com); demote it to a host-only cookie instead.
		if suffix, _ := publicsuffix.PublicSuffix(domain); suffix == domain && domain != host {
			domain, hostOnly = host, true
		}
	}
	path := c.Path
	if path == "" {
		path = defaultPath(c.Path)
	}
	e := entry{
		name: c.Name, value: c.Value, domain: domain, path: path,
		hostOnly: hostOnly, secure: c.Secure, lastUpdated: time.Now(),
	}
	switch {
	case c.MaxAge < 0:
		e.persistent = true
		e.expires = time.Unix(0, 0)
	case c.MaxAge > 0:
		e.persistent = true
		e.expires = time.Now().Add(time.Duration(c.MaxAge) * time.Second)
	case !c.Expires.IsZero():
		e.persistent = true
		e.expires = c.Expires
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	bucket := j.entries[key]
	if bucket == nil {
		bucket = make(map[string]entry)
		j.entries[key] = bucket
	}
	if e.persistent && time.Now().After(e.expires) {
		delete(bucket, e.id())
		return
	}
	bucket[e.id()] = e
}

func defaultPath(requestPath string) string {
	if len(requestPath) == 0 || requestPath[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(requestPath, "/")
	if i == 0 {
		return "/"
	}
	return requestPath[:i]
}
