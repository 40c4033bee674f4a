/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"
)

func TestRequestRoundTrip(t *testing.T) {
	raw := "GET /motd HTTP/1.1\r\nHost: localhost:8080\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	req, err := ReadRequest(r, DefaultLimits)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if req.Method() != "GET" || req.Target() != "/motd" || req.Version() != Version11 {
		t.Fatalf("unexpected request line: %+v", req.Line)
	}
	host, ok := Host(req)
	if !ok || host != "localhost:8080" {
		t.Fatalf("unexpected Host: %q ok=%v", host, ok)
	}
	body, err := io.ReadAll(mustOpen(t, req.Entity()))
	if err != nil || len(body) != 0 {
		t.Fatalf("expected empty body, got %q err=%v", body, err)
	}

	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	if err := WriteRequest(w, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	if out.String() != raw {
		t.Fatalf("round-trip mismatch:\n got: %q\nwant: %q", out.String(), raw)
	}
}

func TestChunkedBodyDecode(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	req, err := ReadRequest(r, DefaultLimits)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	body, err := io.ReadAll(mustOpen(t, req.Entity()))
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "hello" {
		t.Fatalf("body = %q, want %q", body, "hello")
	}
}

func mustOpen(t *testing.T, e Entity) io.Reader {
	t.Helper()
	rc, err := e.Open()
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return rc
}

// read(write(R)) preserves method, target, headers and body bytes.
func TestCodecWriteReadRoundTrip(t *testing.T) {
	req := NewRequest("POST", "/items").
		WithHeader(HeaderHost, "example.com").
		WithHeader(HeaderContentType, "text/plain").
		WithEntity(BytesEntity([]byte("payload")))

	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	if err := WriteRequest(w, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}

	r := bufio.NewReader(&out)
	got, err := ReadRequest(r, DefaultLimits)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if got.Method() != req.Method() || got.Target() != req.Target() {
		t.Fatalf("start line mismatch: got %+v want %+v", got.Line, req.Line)
	}
	body, _ := io.ReadAll(mustOpen(t, got.Entity()))
	if string(body) != "payload" {
		t.Fatalf("body = %q", body)
	}
	if cl, ok := GetHeader(got, HeaderContentLength); !ok || cl != "7" {
		t.Fatalf("Content-Length = %q ok=%v, want 7", cl, ok)
	}
}

// GET/HEAD/DELETE/TRACE requests never carry Content-Length,
// Transfer-Encoding, or body bytes on the wire.
func TestNoBodyMethods(t *testing.T) {
	for _, method := range []string{"GET", "HEAD", "DELETE", "TRACE"} {
		req := NewRequest(method, "/x").WithEntity(BytesEntity([]byte("should be dropped")))
		var out bytes.Buffer
		w := bufio.NewWriter(&out)
		if err := WriteRequest(w, req); err != nil {
			t.Fatalf("%s: WriteRequest: %v", method, err)
		}
		s := out.String()
		if strings.Contains(s, HeaderContentLength) || strings.Contains(s, HeaderTransferEncoding) {
			t.Fatalf("%s: unexpected framing header in %q", method, s)
		}
		if strings.Contains(s, "should be dropped") {
			t.Fatalf("%s: body leaked into wire bytes: %q", method, s)
		}
	}
}

// Unknown entity size with neither framing header set produces
// Transfer-Encoding: chunked that decodes back to the same bytes.
func TestUnknownSizeIsChunked(t *testing.T) {
	req := NewRequest("POST", "/x").WithEntity(ReaderEntity(strings.NewReader("streamed")))
	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	if err := WriteRequest(w, req); err != nil {
		t.Fatalf("WriteRequest: %v", err)
	}
	r := bufio.NewReader(&out)
	got, err := ReadRequest(r, DefaultLimits)
	if err != nil {
		t.Fatalf("ReadRequest: %v", err)
	}
	if v, ok := GetHeader(got, HeaderTransferEncoding); !ok || !strings.EqualFold(v, "chunked") {
		t.Fatalf("Transfer-Encoding = %q ok=%v, want chunked", v, ok)
	}
	body, _ := io.ReadAll(mustOpen(t, got.Entity()))
	if string(body) != "streamed" {
		t.Fatalf("body = %q", body)
	}
}

func TestConflictingTransferEncodingAndContentLength(t *testing.T) {
	raw := "POST /x HTTP/1.1\r\nContent-Length: 5\r\nTransfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n"
	r := bufio.NewReader(strings.NewReader(raw))
	_, err := ReadRequest(r, DefaultLimits)
	if err != ErrConflictingLength {
		t.Fatalf("err = %v, want ErrConflictingLength", err)
	}
}

func TestHeaderFieldsTooLarge(t *testing.T) {
	var b strings.Builder
	b.WriteString("GET / HTTP/1.1\r\n")
	for i := 0; i < 20; i++ {
		b.WriteString("X-Custom: value\r\n")
	}
	b.WriteString("\r\n")
	limits := Limits{MaxHeaderCount: 10}
	r := bufio.NewReader(strings.NewReader(b.String()))
	_, err := ReadRequest(r, limits)
	if err != ErrHeaderFieldsTooLarge {
		t.Fatalf("err = %v, want ErrHeaderFieldsTooLarge", err)
	}
}

func TestHeaderOrderPreserved(t *testing.T) {
	h := NewHeader("Zebra", "1", "Apple", "2", "Zebra", "3")
	var got []string
	h.Each(func(name, value string) { got = append(got, name+"="+value) })
	want := []string{"Zebra=1", "Apple=2", "Zebra=3"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}
