/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"bufio"
	"io"
	"strings"
	"testing"
)

func TestWithHeaderCopyOnWrite(t *testing.T) {
	base := NewRequest("GET", "/").WithHeader("A", "1")
	mod := base.WithHeader("B", "2")
	if base.Headers().Has("B") {
		t.Fatal("mutating a copy leaked into the original")
	}
	if !mod.Headers().Has("A") || !mod.Headers().Has("B") {
		t.Fatalf("copy lost headers: %v", mod.Headers().Names())
	}
}

func TestSetHeaderReplacesAllOccurrences(t *testing.T) {
	req := NewRequest("GET", "/").
		WithHeader("X", "1").
		WithHeader("X", "2").
		WithHeader("Y", "3")
	req = SetHeader(req, "X", "9")
	if vs := req.Headers().Values("X"); len(vs) != 1 || vs[0] != "9" {
		t.Fatalf("Values(X) = %v, want [9]", vs)
	}
	// The replacement holds the first occurrence's position.
	var order []string
	req.Headers().Each(func(name, _ string) { order = append(order, name) })
	if order[0] != "X" || order[1] != "Y" {
		t.Fatalf("order = %v", order)
	}
}

func TestWithStatusUpdatesDefaultReason(t *testing.T) {
	resp := NewResponse(200)
	if resp.Reason() != "OK" {
		t.Fatalf("Reason = %q", resp.Reason())
	}
	resp = resp.WithStatus(404)
	if resp.Reason() != "Not Found" {
		t.Fatalf("Reason after WithStatus = %q, want Not Found", resp.Reason())
	}

	custom := NewResponse(200)
	custom.Line.Reason = "All Good"
	custom = custom.WithStatus(404)
	if custom.Reason() != "All Good" {
		t.Fatalf("custom reason was overwritten: %q", custom.Reason())
	}
}

func TestHeaderLookupCaseInsensitive(t *testing.T) {
	req := NewRequest("GET", "/").WithHeader("Content-Type", "text/plain")
	if v, ok := GetHeader(req, "content-type"); !ok || v != "text/plain" {
		t.Fatalf("case-insensitive lookup failed: %q ok=%v", v, ok)
	}
	req = req.RemoveHeader("CONTENT-TYPE")
	if req.Headers().Has("Content-Type") {
		t.Fatal("case-insensitive remove failed")
	}
}

func TestAttributesNotTransmitted(t *testing.T) {
	req := NewRequest("GET", "/x")
	req = WithCorrelate(req, "abc-0001-0001")
	req = WithRequestCount(req, 3)

	if id, ok := Correlate(req); !ok || id != "abc-0001-0001" {
		t.Fatalf("Correlate = %q ok=%v", id, ok)
	}
	if n, ok := RequestCount(req); !ok || n != 3 {
		t.Fatalf("RequestCount = %d ok=%v", n, ok)
	}

	// Attributes never show up as headers on the wire.
	var out strings.Builder
	w := bufio.NewWriter(&out)
	if err := WriteRequest(w, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if strings.Contains(out.String(), "abc-0001-0001") {
		t.Fatalf("attribute leaked onto the wire: %q", out.String())
	}
}

func TestEntityRestartability(t *testing.T) {
	b := BytesEntity([]byte("twice"))
	for i := 0; i < 2; i++ {
		rc, err := b.Open()
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
		data, _ := io.ReadAll(rc)
		if string(data) != "twice" {
			t.Fatalf("read %d = %q", i, data)
		}
	}

	r := ReaderEntity(strings.NewReader("once"))
	if _, err := r.Open(); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := r.Open(); err == nil {
		t.Fatal("second open of a single-shot entity succeeded")
	}
	if r.Size() != -1 {
		t.Fatalf("reader entity size = %d, want -1", r.Size())
	}
}

func TestRequireHeaderAbsent(t *testing.T) {
	req := NewRequest("GET", "/")
	if _, err := RequireHeader(req, HeaderHost); err != ErrHeaderNotFound {
		t.Fatalf("err = %v, want ErrHeaderNotFound", err)
	}
}

func TestConnectionTokens(t *testing.T) {
	req := NewRequest("GET", "/").WithHeader(HeaderConnection, "keep-alive, TE , upgrade")
	tokens := ConnectionTokens(req)
	if len(tokens) != 3 || tokens[0] != "keep-alive" || tokens[1] != "TE" || tokens[2] != "upgrade" {
		t.Fatalf("tokens = %v", tokens)
	}
	if !HasConnectionToken(req, "UPGRADE") {
		t.Fatal("HasConnectionToken should be case-insensitive")
	}
}
