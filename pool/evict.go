/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package pool

import "time"

// ensureEvictLocked starts the eviction task if it is not already
// running. The task terminates when the pool empties and is restarted
// by the next insertion. Caller must hold p.mu.
func (p *Pool) ensureEvictLocked() {
	if p.evictRunning {
		return
	}
	p.evictRunning = true
	stop := make(chan struct{})
	p.stopEvict = stop
	go p.evictLoop(stop)
}

func (p *Pool) evictLoop(stop chan struct{}) {
	t := time.NewTicker(p.evictEvery)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if p.evictTick() {
				return
			}
		}
	}
}

// evictTick performs one eviction pass: (a) drop entries older than
// idleTimeout, (b) trim oldest entries until the size cap holds. It
// returns true when the pool is now empty, so the caller's loop can
// terminate the task (restarted lazily by Put).
func (p *Pool) evictTick() bool {
	p.mu.Lock()
	now := time.Now()
	var stale []*entry
	for tag, conns := range p.idle {
		kept := conns[:0]
		for _, e := range conns {
			if now.Sub(e.queuedAt) >= p.idleTimeout {
				stale = append(stale, e)
				continue
			}
			kept = append(kept, e)
		}
		if len(kept) == 0 {
			delete(p.idle, tag)
		} else {
			p.idle[tag] = kept
		}
	}

	var trimmed []*entry
	for p.totalLocked() > p.maxIdle {
		tag, idx, ok := p.oldestLocked()
		if !ok {
			break
		}
		conns := p.idle[tag]
		trimmed = append(trimmed, conns[idx])
		conns = append(conns[:idx], conns[idx+1:]...)
		if len(conns) == 0 {
			delete(p.idle, tag)
		} else {
			p.idle[tag] = conns
		}
	}

	empty := len(p.idle) == 0
	if empty {
		p.evictRunning = false
		p.stopEvict = nil
	}
	p.mu.Unlock()

	for _, e := range stale {
		e.conn.Close()
	}
	for _, e := range trimmed {
		e.conn.Close()
	}
	return empty
}
