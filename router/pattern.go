/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package router implements mount-path composition, parameterized
// route matching (literal, :name and trailing *name segments) and
// static file serving on top of scamper/server's Pipeline.
package router

import (
	"errors"
	"strings"
)

// ErrInvalidMountPath reports a mount path that is not absolute,
// carries a :name/*name segment, or contains "..".
var ErrInvalidMountPath = errors.New("router: invalid mount path")

// ErrInvalidRoutePath reports a route path with more than one *name
// segment, a *name segment that isn't last, or an unnamed parameter.
var ErrInvalidRoutePath = errors.New("router: invalid route path")

type segmentKind int

const (
	segLiteral segmentKind = iota
	segParam
	segTail
)

type segment struct {
	kind segmentKind
	name string
}

// Pattern is a compiled route path: literal segments, single-segment
// :name parameters, and at most one trailing *name segment that
// consumes the remainder of the path including further slashes.
type Pattern struct {
	segments []segment
}

func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func compilePattern(path string) (Pattern, error) {
	if !strings.HasPrefix(path, "/") {
		return Pattern{}, ErrInvalidRoutePath
	}
	parts := splitSegments(path)
	segs := make([]segment, 0, len(parts))
	for i, p := range parts {
		switch {
		case p == "..":
			return Pattern{}, ErrInvalidRoutePath
		case strings.HasPrefix(p, ":"):
			name := p[1:]
			if name == "" {
				return Pattern{}, ErrInvalidRoutePath
			}
			segs = append(segs, segment{kind: segParam, name: name})
		case strings.HasPrefix(p, "*"):
			name := p[1:]
			if name == "" || i != len(parts)-1 {
				return Pattern{}, ErrInvalidRoutePath
			}
			segs = append(segs, segment{kind: segTail, name: name})
		default:
			segs = append(segs, segment{kind: segLiteral, name: p})
		}
	}
	return Pattern{segments: segs}, nil
}

// match reports whether segments satisfies p, returning the bound
// path parameters and a per-segment specificity score (literal=2,
// param=1, tail=0) used to break ties between overlapping routes:
// literal outranks :param outranks *tail.
func (p Pattern) match(segments []string) (ok bool, params map[string]string, score []int) {
	params = map[string]string{}
	score = make([]int, 0, len(p.segments))
	i := 0
	for _, seg := range p.segments {
		switch seg.kind {
		case segLiteral:
			if i >= len(segments) || segments[i] != seg.name {
				return false, nil, nil
			}
			score = append(score, 2)
			i++
		case segParam:
			if i >= len(segments) {
				return false, nil, nil
			}
			params[seg.name] = segments[i]
			score = append(score, 1)
			i++
		case segTail:
			if i >= len(segments) {
				return false, nil, nil
			}
			params[seg.name] = strings.Join(segments[i:], "/")
			score = append(score, 0)
			i = len(segments)
		}
	}
	if i != len(segments) {
		return false, nil, nil
	}
	return true, params, score
}

// moreSpecific reports whether score a outranks score b. The caller
// only replaces its current best on a strict win, so among equally
// specific routes the earlier registration holds.
func moreSpecific(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return len(a) > len(b)
}

func compileMountPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, ErrInvalidMountPath
	}
	parts := splitSegments(path)
	for _, p := range parts {
		if p == "" || p == ".." || strings.HasPrefix(p, ":") || strings.HasPrefix(p, "*") {
			return nil, ErrInvalidMountPath
		}
	}
	return parts, nil
}

func stripPrefix(segments, prefix []string) ([]string, bool) {
	if len(segments) < len(prefix) {
		return nil, false
	}
	for i, p := range prefix {
		if segments[i] != p {
			return nil, false
		}
	}
	return segments[len(prefix):], true
}
