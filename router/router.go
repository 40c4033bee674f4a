/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package router

import (
	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/server"
	"github.com/losizm/scamper-go/uri"
)

// RouteHandler is a route's action: it receives the matched request
// and its bound path parameters, and returns a server.Control the same
// way a plain server.RequestHandler does.
type RouteHandler func(req scamper.Request, params Params) (server.Control, error)

type route struct {
	method  string
	pattern Pattern
	handler RouteHandler
}

type mount struct {
	prefix []string
	router *Router
}

// Router is a composable subtree of the server pipeline scoped to a
// mount path: a nested pipeline with its own routes, filters, error
// handlers, lifecycle hooks, and sub-routers. The matching algorithm
// lives in pattern.go.
type Router struct {
	routes []route
	mounts []mount

	filters       []server.ResponseFilter
	errorHandlers []server.ErrorHandler
	hooks         []server.Hook
}

// New returns an empty Router ready for route/mount registration.
func New() *Router { return &Router{} }

// Handle registers a route path (literal/:param/*tail segments) for
// method. It panics on an invalid route path: route tables are built
// once at startup, not from untrusted input.
func (r *Router) Handle(method, path string, h RouteHandler) {
	pat, err := compilePattern(path)
	if err != nil {
		panic(err)
	}
	r.routes = append(r.routes, route{method: method, pattern: pat, handler: h})
}

func (r *Router) Get(path string, h RouteHandler)    { r.Handle("GET", path, h) }
func (r *Router) Post(path string, h RouteHandler)   { r.Handle("POST", path, h) }
func (r *Router) Put(path string, h RouteHandler)    { r.Handle("PUT", path, h) }
func (r *Router) Patch(path string, h RouteHandler)  { r.Handle("PATCH", path, h) }
func (r *Router) Delete(path string, h RouteHandler) { r.Handle("DELETE", path, h) }

// Mount attaches sub at path, stripping path from the request before
// sub's routes are tried. It returns ErrInvalidMountPath for a path
// that isn't absolute, carries a parameter segment, or contains "..".
func (r *Router) Mount(path string, sub *Router) error {
	prefix, err := compileMountPath(path)
	if err != nil {
		return err
	}
	r.mounts = append(r.mounts, mount{prefix: prefix, router: sub})
	return nil
}

// UseFilter appends a response filter to this router's own scope.
func (r *Router) UseFilter(f server.ResponseFilter) { r.filters = append(r.filters, f) }

// UseErrorHandler appends an error handler to this router's own scope.
func (r *Router) UseErrorHandler(h server.ErrorHandler) { r.errorHandlers = append(r.errorHandlers, h) }

// UseHook registers a lifecycle hook scoped to this router. Hooks()
// must be folded into the root server.Config.Hooks by whoever wires
// this router into a Server, since only the Server owns a lifecycle
// registry.
func (r *Router) UseHook(h server.Hook) { r.hooks = append(r.hooks, h) }

// Hooks returns every lifecycle hook registered on r and, transitively,
// on its mounted sub-routers.
func (r *Router) Hooks() []server.Hook {
	all := append([]server.Hook{}, r.hooks...)
	for _, m := range r.mounts {
		all = append(all, m.router.Hooks()...)
	}
	return all
}

func (r *Router) bestMatch(method string, segments []string) (RouteHandler, Params, bool) {
	var best RouteHandler
	var bestParams map[string]string
	var bestScore []int
	found := false
	for _, rt := range r.routes {
		if rt.method != method {
			continue
		}
		ok, params, score := rt.pattern.match(segments)
		if !ok {
			continue
		}
		if !found || moreSpecific(score, bestScore) {
			best, bestParams, bestScore, found = rt.handler, params, score, true
		}
	}
	return best, Params(bestParams), found
}

func requestPath(target string) (string, uri.Query, error) {
	u, err := uri.Parse(target)
	if err != nil {
		return "", uri.Query{}, err
	}
	return u.Path, u.Query, nil
}

func rebuildTarget(path string, query uri.Query) string {
	u := uri.URI{Path: path, Query: query}
	return u.ToTarget()
}

// tryDispatch attempts to satisfy req within r's own routes, then its
// sub-mounts, reporting matched=false when nothing in this subtree
// claims the request (so the caller can keep searching sibling mounts
// or finally answer 404).
func (r *Router) tryDispatch(req scamper.Request) (ctrl server.Control, err error, matched bool) {
	path, query, perr := requestPath(req.Target())
	if perr != nil {
		return server.Control{}, perr, true
	}
	segments := splitSegments(path)

	if h, params, ok := r.bestMatch(req.Method(), segments); ok {
		ctrl, err = r.runRoute(h, req, params)
		return ctrl, err, true
	}

	for _, m := range r.mounts {
		rest, ok := stripPrefix(segments, m.prefix)
		if !ok {
			continue
		}
		subTarget := rebuildTarget("/"+joinSegments(rest), query)
		subReq := req.WithTarget(subTarget)
		ctrl, err, ok := m.router.tryDispatch(subReq)
		if ok {
			return ctrl, err, true
		}
	}
	return server.Control{}, nil, false
}

func joinSegments(segments []string) string {
	out := ""
	for i, s := range segments {
		if i > 0 {
			out += "/"
		}
		out += s
	}
	return out
}

func (r *Router) runRoute(h RouteHandler, req scamper.Request, params Params) (ctrl server.Control, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			cause, ok := rec.(error)
			if !ok {
				cause = scamper.ApplicationError(nil)
			}
			if cause == scamper.ErrAborted {
				ctrl, err = server.Control{}, scamper.ErrAborted
				return
			}
			err = scamper.ApplicationError(cause)
		}
	}()

	ctrl, err = h(req, params)
	if err != nil {
		if err == scamper.ErrAborted {
			return server.Control{}, err
		}
		for _, eh := range r.errorHandlers {
			if resp, ok := eh(err, req); ok {
				return server.Respond(resp), nil
			}
		}
		return server.Control{}, err
	}
	if ctrl.Response != nil {
		resp := *ctrl.Response
		for _, f := range r.filters {
			resp, err = f(resp)
			if err != nil {
				return server.Control{}, err
			}
		}
		ctrl.Response = &resp
		return ctrl, nil
	}
	return ctrl, nil
}

// Dispatch is the server.RequestHandler this router presents to its
// parent scope (the server root, or an enclosing router's Mount). Bind
// it directly: server.Config{Handlers: []server.RequestHandler{root.Dispatch}}.
func (r *Router) Dispatch(req scamper.Request) (server.Control, error) {
	ctrl, err, matched := r.tryDispatch(req)
	if !matched {
		return server.Respond(scamper.NewResponse(404)), nil
	}
	return ctrl, err
}
