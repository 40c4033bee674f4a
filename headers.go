/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// field is one (name, value) header occurrence as it appeared on the
// wire (or as added by a builder), in original case.
type field struct {
	name  string
	value string
}

// Header is an ordered, case-insensitive multimap of header fields.
// Unlike net/http's map[string][]string, Header preserves the
// insertion order of distinct header lines, which matters both for
// wire-compatible round-tripping and for deterministic Set-Cookie /
// Link ordering.
//
// Header is a value type: every mutator (Add, Set, Remove) returns a
// new Header backed by a fresh copy of the field slice, leaving the
// receiver untouched, matching the message model's copy-on-write
// discipline.
type Header struct {
	fields []field
}

// NewHeader builds a Header from an initial ordered list of (name,
// value) pairs, two at a time: NewHeader("Host", "x", "Accept", "*/*").
// An odd number of arguments panics, mirroring a programmer error.
func NewHeader(nameValue ...string) Header {
	if len(nameValue)%2 != 0 {
		panic("scamper: NewHeader requires an even number of arguments")
	}
	h := Header{}
	for i := 0; i < len(nameValue); i += 2 {
		h = h.Add(nameValue[i], nameValue[i+1])
	}
	return h
}

func isToken(r byte) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '!', '#', '$', '%', '&', '\'', '*', '+', '-', '.', '^', '_', '`', '|', '~':
		return true
	}
	return false
}

// ValidHeaderName reports whether name matches the HTTP token grammar
// (RFC 7230 §3.2.6).
func ValidHeaderName(name string) bool {
	return httpguts.ValidHeaderFieldName(name)
}

// ValidHeaderValue reports whether value is visible ASCII plus SP/HTAB
// with no CR or LF.
func ValidHeaderValue(value string) bool {
	return httpguts.ValidHeaderFieldValue(value)
}

func eqFold(a, b string) bool { return strings.EqualFold(a, b) }

// Add returns a Header with (name, value) appended after any existing
// occurrences of name. Duplicate names are permitted and keep their
// relative order.
func (h Header) Add(name, value string) Header {
	next := make([]field, len(h.fields), len(h.fields)+1)
	copy(next, h.fields)
	next = append(next, field{name: name, value: value})
	return Header{fields: next}
}

// Set returns a Header with all occurrences of name replaced by a
// single (name, value) occurrence at the position of the first
// existing occurrence (or appended, if name was absent).
func (h Header) Set(name, value string) Header {
	next := make([]field, 0, len(h.fields)+1)
	replaced := false
	for _, f := range h.fields {
		if eqFold(f.name, name) {
			if !replaced {
				next = append(next, field{name: name, value: value})
				replaced = true
			}
			continue
		}
		next = append(next, f)
	}
	if !replaced {
		next = append(next, field{name: name, value: value})
	}
	return Header{fields: next}
}

// Remove returns a Header with every occurrence of name removed.
func (h Header) Remove(name string) Header {
	next := make([]field, 0, len(h.fields))
	for _, f := range h.fields {
		if !eqFold(f.name, name) {
			next = append(next, f)
		}
	}
	return Header{fields: next}
}

// Get returns the first value associated with name, and whether any
// occurrence was found.
func (h Header) Get(name string) (string, bool) {
	for _, f := range h.fields {
		if eqFold(f.name, name) {
			return f.value, true
		}
	}
	return "", false
}

// GetOr returns the first value associated with name, or def if absent.
func (h Header) GetOr(name, def string) string {
	if v, ok := h.Get(name); ok {
		return v
	}
	return def
}

// Values returns every value associated with name, in order, or nil.
func (h Header) Values(name string) []string {
	var vs []string
	for _, f := range h.fields {
		if eqFold(f.name, name) {
			vs = append(vs, f.value)
		}
	}
	return vs
}

// Has reports whether name occurs at least once.
func (h Header) Has(name string) bool {
	_, ok := h.Get(name)
	return ok
}

// Len returns the number of (name, value) occurrences, used by the
// codec's header-count limit.
func (h Header) Len() int { return len(h.fields) }

// Names returns the distinct header names in first-occurrence order.
func (h Header) Names() []string {
	seen := make(map[string]bool, len(h.fields))
	var names []string
	for _, f := range h.fields {
		key := strings.ToLower(f.name)
		if !seen[key] {
			seen[key] = true
			names = append(names, f.name)
		}
	}
	return names
}

// ByteSize returns the approximate wire size of the header block
// ("Name: Value\r\n" per field), used to enforce a maximum total
// header byte count.
func (h Header) ByteSize() int {
	n := 0
	for _, f := range h.fields {
		n += len(f.name) + len(": ") + len(f.value) + len("\r\n")
	}
	return n
}

// Each calls fn for every (name, value) occurrence in wire order.
func (h Header) Each(fn func(name, value string)) {
	for _, f := range h.fields {
		fn(f.name, f.value)
	}
}

// sortedNames returns a deterministic, but not wire-order, view of the
// header names. Nothing in the module calls it.
func (h Header) sortedNames() []string {
	names := h.Names()
	sort.Strings(names)
	return names
}
