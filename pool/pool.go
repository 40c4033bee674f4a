/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package pool implements the client's per-origin idle connection
// manager: at-most-once ownership, a liveness probe on check-out, a
// cooperative eviction tick, and a size cap. A Pool is a value owned
// by one client instance, not a package-level singleton — multiple
// clients get independent pools.
package pool

import (
	"net"
	"sync"
	"time"
)

// Tag identifies a pooled origin: (secure, host, port).
type Tag struct {
	Secure bool
	Host   string
	Port   int
}

// Conn is the minimal capability a pooled connection must offer: the
// pool only ever dials net.Conn, wraps/closes it, and probes
// liveness — it never interprets HTTP framing itself.
type Conn = net.Conn

// entry is one idle, pool-owned connection and the time it was
// queued.
type entry struct {
	conn      Conn
	queuedAt  time.Time
	closeable bool // set true by Put; Get drops the entry instead of clearing it
}

// Pool is a per-client idle-connection manager. The zero value is not
// usable; construct with New. Pool is safe for concurrent use: all
// operations are serialized by a single critical section.
type Pool struct {
	mu sync.Mutex

	idleTimeout time.Duration
	evictEvery  time.Duration
	maxIdle     int

	idle map[Tag][]*entry

	evictRunning bool
	stopEvict    chan struct{}
}

// Config bundles the pool's tunables.
type Config struct {
	IdleTimeout       time.Duration
	EvictionInterval  time.Duration
	QueueSize         int // max idle entries across all tags
}

// DefaultConfig mirrors net/http's historical Transport defaults
// (90s idle timeout), scaled down for the eviction tick since this
// pool runs its own ticker rather than per-connection AfterFunc timers.
var DefaultConfig = Config{
	IdleTimeout:      90 * time.Second,
	EvictionInterval: 10 * time.Second,
	QueueSize:        100,
}

// New constructs a Pool from cfg, falling back to DefaultConfig fields
// for any zero value.
func New(cfg Config) *Pool {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultConfig.IdleTimeout
	}
	if cfg.EvictionInterval <= 0 {
		cfg.EvictionInterval = DefaultConfig.EvictionInterval
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultConfig.QueueSize
	}
	return &Pool{
		idleTimeout: cfg.IdleTimeout,
		evictEvery:  cfg.EvictionInterval,
		maxIdle:     cfg.QueueSize,
		idle:        make(map[Tag][]*entry),
	}
}

// Get checks out an idle connection for tag, if one passes the
// liveness probe. Ownership transfers to the caller: the pool no
// longer tracks the entry. Get holds the
// pool's critical section only around list manipulation, never around
// the probe's I/O.
func (p *Pool) Get(tag Tag) (Conn, bool) {
	p.mu.Lock()
	for {
		conns := p.idle[tag]
		if len(conns) == 0 {
			p.mu.Unlock()
			return nil, false
		}
		// FIFO within a tag: the oldest entry is checked out first.
		e := conns[0]
		conns = conns[1:]
		p.idle[tag] = conns
		p.mu.Unlock()

		if p.liveness(e) {
			return e.conn, true
		}
		e.conn.Close()
		p.mu.Lock()
	}
}

// liveness probes a candidate entry: queue dwell-time within
// idleTimeout, and a short non-blocking read returns "would block"
// (no unsolicited bytes, no RST/EOF). The entry is exclusively owned
// at this point (already popped from p.idle), so mutating its read
// deadline is not visible to any concurrent reader.
func (p *Pool) liveness(e *entry) bool {
	if time.Since(e.queuedAt) >= p.idleTimeout {
		return false
	}
	e.conn.SetReadDeadline(time.Now().Add(time.Millisecond))
	one := make([]byte, 1)
	n, err := e.conn.Read(one)
	e.conn.SetReadDeadline(time.Time{})
	if n > 0 {
		return false // unsolicited bytes: protocol violation, discard
	}
	if err == nil {
		return false // EOF observed as a successful zero-length read
	}
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// Put returns conn to the pool under tag for reuse. Re-insertion is
// only valid after a cleanly finished round-trip whose response
// permitted keep-alive — the caller is responsible for that
// precondition; Put itself just enforces the size cap by evicting the
// oldest entry across all tags when the cap is exceeded.
func (p *Pool) Put(tag Tag, conn Conn) {
	e := &entry{conn: conn, queuedAt: time.Now(), closeable: true}

	p.mu.Lock()
	p.idle[tag] = append(p.idle[tag], e)
	p.ensureEvictLocked()
	over := p.totalLocked() - p.maxIdle
	var drop []*entry
	for over > 0 {
		victimTag, victimIdx, ok := p.oldestLocked()
		if !ok {
			break
		}
		conns := p.idle[victimTag]
		drop = append(drop, conns[victimIdx])
		p.idle[victimTag] = append(conns[:victimIdx], conns[victimIdx+1:]...)
		over--
	}
	p.mu.Unlock()

	for _, d := range drop {
		d.conn.Close()
	}
}

func (p *Pool) totalLocked() int {
	n := 0
	for _, c := range p.idle {
		n += len(c)
	}
	return n
}

// oldestLocked returns the tag/index of the entry with the smallest
// queuedAt across all tags, used both by Put's size-cap eviction and
// by the eviction tick's age-based trim.
func (p *Pool) oldestLocked() (Tag, int, bool) {
	var bestTag Tag
	bestIdx := -1
	var bestTime time.Time
	for tag, conns := range p.idle {
		for i, e := range conns {
			if bestIdx < 0 || e.queuedAt.Before(bestTime) {
				bestTag, bestIdx, bestTime = tag, i, e.queuedAt
			}
		}
	}
	return bestTag, bestIdx, bestIdx >= 0
}

// Size returns the total number of idle connections held across all
// tags.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalLocked()
}

// Close drains and closes every idle connection and stops the
// eviction task. It does not affect connections currently checked out
// (the pool never tracked them to begin with).
func (p *Pool) Close() {
	p.mu.Lock()
	all := p.idle
	p.idle = make(map[Tag][]*entry)
	stop := p.stopEvict
	p.evictRunning = false
	p.stopEvict = nil
	p.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	for _, conns := range all {
		for _, e := range conns {
			e.conn.Close()
		}
	}
}
