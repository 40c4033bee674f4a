/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package server

import (
	scamper "github.com/losizm/scamper-go"
)

// Hook observes a server's Start/Stop transitions.
type Hook interface {
	Start(*Server) error
	Stop(*Server) error
}

// HookFunc adapts a pair of plain functions to Hook, for callers that
// don't need a Stop action (or vice versa); pass nil for the unused
// half.
type HookFunc struct {
	OnStart func(*Server) error
	OnStop  func(*Server) error
}

func (h HookFunc) Start(s *Server) error {
	if h.OnStart == nil {
		return nil
	}
	return h.OnStart(s)
}

func (h HookFunc) Stop(s *Server) error {
	if h.OnStop == nil {
		return nil
	}
	return h.OnStop(s)
}

// criticalHook marks a Hook whose Start failure must abort server
// creation.
type criticalHook struct{ Hook }

// Critical wraps h so the lifecycle registry treats its Start failure
// as fatal.
func Critical(h Hook) Hook { return criticalHook{h} }

func isCritical(h Hook) bool {
	_, ok := h.(criticalHook)
	return ok
}

// registry runs hooks in registration order on Start and reverse
// order on Stop.
type registry struct {
	hooks   []Hook
	started []Hook // prefix of hooks that completed Start, for Stop-on-abort
}

func (r *registry) register(h Hook) { r.hooks = append(r.hooks, h) }

// start runs every hook's Start in order. On a critical hook's
// failure, it stops every hook that already started (reverse order)
// and returns a LifecycleError.
func (r *registry) start(s *Server, name func(Hook) string) error {
	for _, h := range r.hooks {
		if err := h.Start(s); err != nil {
			if isCritical(h) {
				r.stop(s)
				return scamper.LifecycleError(name(h), err)
			}
			// Non-critical failure: ignored, and the hook is not
			// recorded as started.
			continue
		}
		r.started = append(r.started, h)
	}
	return nil
}

// stop runs every started hook's Stop in reverse registration order.
func (r *registry) stop(s *Server) {
	for i := len(r.started) - 1; i >= 0; i-- {
		r.started[i].Stop(s)
	}
	r.started = nil
}
