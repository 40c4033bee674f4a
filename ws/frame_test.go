/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package ws

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func testMaskKey() [4]byte { return [4]byte{0xA1, 0xB2, 0xC3, 0xD4} }

func writeFrameBytes(t *testing.T, f Frame, isServer bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	if err := WriteFrame(w, f, isServer, testMaskKey); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	return buf.Bytes()
}

func TestClientFrameIsMaskedAndRoundTrips(t *testing.T) {
	payload := []byte("hello websocket")
	raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpText, Payload: payload}, false)

	if raw[1]&0x80 == 0 {
		t.Fatal("client-written frame is not masked")
	}
	if bytes.Contains(raw, payload) {
		t.Fatal("masked frame carries the payload in the clear")
	}

	got, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), true, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !got.Fin || got.Opcode != OpText || !bytes.Equal(got.Payload, payload) {
		t.Fatalf("round trip = %+v", got)
	}
}

func TestServerFrameIsUnmasked(t *testing.T) {
	payload := []byte("from server")
	raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpBinary, Payload: payload}, true)
	if raw[1]&0x80 != 0 {
		t.Fatal("server-written frame is masked")
	}
	got, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if !bytes.Equal(got.Payload, payload) {
		t.Fatalf("payload = %q", got.Payload)
	}
}

func TestExtendedLengths(t *testing.T) {
	for _, n := range []int{125, 126, 65535, 65536} {
		payload := bytes.Repeat([]byte{0x5A}, n)
		raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpBinary, Payload: payload}, true)
		got, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 0)
		if err != nil {
			t.Fatalf("n=%d: ReadFrame: %v", n, err)
		}
		if len(got.Payload) != n {
			t.Fatalf("n=%d: read %d bytes", n, len(got.Payload))
		}
	}
}

func TestWrongMaskDirectionRejected(t *testing.T) {
	raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpText, Payload: []byte("x")}, true)
	// A server reading its own (unmasked) output sees a client
	// violating the masking requirement.
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), true, 0); err != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestReservedBitsRejected(t *testing.T) {
	raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpText, Payload: []byte("x")}, true)
	raw[0] |= 0x20 // RSV2
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 0); err != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestUnknownOpcodeRejected(t *testing.T) {
	raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpText, Payload: []byte("x")}, true)
	raw[0] = (raw[0] &^ 0x0F) | 0x3
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 0); err != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestControlFrameConstraints(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	long := bytes.Repeat([]byte{0x01}, MaxControlPayload+1)
	if err := WriteFrame(w, Frame{Fin: true, Opcode: OpPing, Payload: long}, true, nil); err != ErrProtocol {
		t.Fatalf("oversized control write err = %v, want ErrProtocol", err)
	}
	if err := WriteFrame(w, Frame{Fin: false, Opcode: OpClose, Payload: nil}, true, nil); err != ErrProtocol {
		t.Fatalf("fragmented control write err = %v, want ErrProtocol", err)
	}

	// On the read side, hand-craft a fragmented Ping.
	raw := []byte{0x09, 0x00} // FIN=0, opcode=Ping, len=0, unmasked
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 0); err != ErrProtocol {
		t.Fatalf("fragmented control read err = %v, want ErrProtocol", err)
	}
}

func TestRSV1OnContinuationRejected(t *testing.T) {
	raw := []byte{0x40, 0x00} // FIN=0, RSV1=1, opcode=Continuation, len=0
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 0); err != ErrProtocol {
		t.Fatalf("err = %v, want ErrProtocol", err)
	}
}

func TestMaxPayloadEnforced(t *testing.T) {
	raw := writeFrameBytes(t, Frame{Fin: true, Opcode: OpBinary, Payload: bytes.Repeat([]byte{0}, 1024)}, true)
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader(raw)), false, 512); err != ErrMessageTooBig {
		t.Fatalf("err = %v, want ErrMessageTooBig", err)
	}
}

func TestDeflateRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("compressible payload ", 64))
	compressed, err := deflateCompress(original)
	if err != nil {
		t.Fatalf("deflateCompress: %v", err)
	}
	if len(compressed) >= len(original) {
		t.Fatalf("no compression achieved: %d >= %d", len(compressed), len(original))
	}
	got, err := deflateDecompress(compressed)
	if err != nil {
		t.Fatalf("deflateDecompress: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatal("round trip mismatch")
	}
}

func TestDeflateEmptyPayload(t *testing.T) {
	compressed, err := deflateCompress(nil)
	if err != nil {
		t.Fatalf("deflateCompress: %v", err)
	}
	if len(compressed) == 0 {
		t.Fatal("empty compressed payload is not a valid DEFLATE stream")
	}
	got, err := deflateDecompress(compressed)
	if err != nil {
		t.Fatalf("deflateDecompress: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("decompressed %d bytes from empty message", len(got))
	}
}

// Fragments of one compressed message concatenate into a single
// DEFLATE stream terminated by the re-appended sync marker.
func TestDeflateFragmentReassembly(t *testing.T) {
	original := []byte(strings.Repeat("fragmented deflate message ", 32))
	compressed, err := deflateCompress(original)
	if err != nil {
		t.Fatalf("deflateCompress: %v", err)
	}
	mid := len(compressed) / 2
	reassembled := append(append([]byte{}, compressed[:mid]...), compressed[mid:]...)
	got, err := deflateDecompress(reassembled)
	if err != nil {
		t.Fatalf("deflateDecompress: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Fatal("fragment reassembly mismatch")
	}
}

func TestNegotiate(t *testing.T) {
	cases := []struct {
		header string
		want   bool
	}{
		{"permessage-deflate", true},
		{"permessage-deflate; client_no_context_takeover", true},
		{"permessage-deflate; client_max_window_bits", true},
		{"permessage-deflate; client_max_window_bits=8", false},
		{"permessage-deflate; server_max_window_bits=10", false},
		{"x-webkit-deflate-frame", false},
		{"x-unknown, permessage-deflate; server_no_context_takeover", true},
		{"", false},
	}
	for _, c := range cases {
		got, value := Negotiate(c.header)
		if got != c.want {
			t.Fatalf("Negotiate(%q) = %v, want %v", c.header, got, c.want)
		}
		if got && !strings.Contains(value, "permessage-deflate") {
			t.Fatalf("Negotiate(%q) response value = %q", c.header, value)
		}
	}
}
