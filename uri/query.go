/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package uri

import "strings"

// Query is an ordered sequence of (name, value) pairs — a multimap
// preserving insertion order. It offers a url.Values-like
// Get/Add/Encode API but is backed by a slice instead of
// map[string][]string so duplicate keys keep their relative order on
// both parse and re-encode.
type Query struct {
	pairs []queryPair
}

type queryPair struct{ name, value string }

// ParseQuery parses an application/x-www-form-urlencoded query string
// (without a leading "?") into an order-preserving Query, percent-
// decoding names and values and accepting empty values.
func ParseQuery(raw string) (Query, error) {
	var q Query
	if raw == "" {
		return q, nil
	}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		name, value, _ := strings.Cut(part, "=")
		decodedName, err := percentDecodeQueryComponent(name)
		if err != nil {
			return Query{}, errMalformed("invalid query name encoding")
		}
		decodedValue, err := percentDecodeQueryComponent(value)
		if err != nil {
			return Query{}, errMalformed("invalid query value encoding")
		}
		q.pairs = append(q.pairs, queryPair{decodedName, decodedValue})
	}
	return q, nil
}

// Add appends a (name, value) pair, preserving any existing occurrences
// of name.
func (q Query) Add(name, value string) Query {
	q.pairs = append(append([]queryPair(nil), q.pairs...), queryPair{name, value})
	return q
}

// Set replaces all occurrences of name with a single (name, value) pair
// at the position of its first prior occurrence, or appends if absent.
func (q Query) Set(name, value string) Query {
	out := make([]queryPair, 0, len(q.pairs)+1)
	set := false
	for _, p := range q.pairs {
		if p.name == name {
			if !set {
				out = append(out, queryPair{name, value})
				set = true
			}
			continue
		}
		out = append(out, p)
	}
	if !set {
		out = append(out, queryPair{name, value})
	}
	return Query{pairs: out}
}

// Get returns the first value for name, and whether it was present.
func (q Query) Get(name string) (string, bool) {
	for _, p := range q.pairs {
		if p.name == name {
			return p.value, true
		}
	}
	return "", false
}

// Values returns every value for name, in insertion order.
func (q Query) Values(name string) []string {
	var out []string
	for _, p := range q.pairs {
		if p.name == name {
			out = append(out, p.value)
		}
	}
	return out
}

// Names returns every distinct name, in first-occurrence order.
func (q Query) Names() []string {
	seen := make(map[string]bool, len(q.pairs))
	var out []string
	for _, p := range q.pairs {
		if !seen[p.name] {
			seen[p.name] = true
			out = append(out, p.name)
		}
	}
	return out
}

// Len returns the number of (name, value) pairs.
func (q Query) Len() int { return len(q.pairs) }

// Each calls fn for every (name, value) pair in insertion order.
func (q Query) Each(fn func(name, value string)) {
	for _, p := range q.pairs {
		fn(p.name, p.value)
	}
}

// Encode serializes q back to application/x-www-form-urlencoded form,
// in insertion order.
func (q Query) Encode() string {
	var b strings.Builder
	for i, p := range q.pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(percentEncodeQueryComponent(p.name))
		b.WriteByte('=')
		b.WriteString(percentEncodeQueryComponent(p.value))
	}
	return b.String()
}
