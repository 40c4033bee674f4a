/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package ws

import (
	"bytes"
	"compress/flate"
	"io"
	"strings"
)

// deflateSyncMarker is the 4-byte sync-flush trailer RFC 7692
// requires a sender to strip before transmission, and a receiver to
// re-append before inflating.
var deflateSyncMarker = []byte{0x00, 0x00, 0xff, 0xff}

// deflateCompress deflates payload with a stateless (no-context-
// takeover) raw-DEFLATE writer and strips the trailing sync marker.
func deflateCompress(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(payload); err != nil {
		return nil, err
	}
	if err := fw.Flush(); err != nil {
		return nil, err
	}
	out := buf.Bytes()
	if bytes.HasSuffix(out, deflateSyncMarker) {
		out = out[:len(out)-len(deflateSyncMarker)]
	}
	if len(out) == 0 {
		// RFC 7692 §7.2.1: an otherwise-empty compressed payload is
		// sent as a single 0x00 block so the receiver still sees a
		// valid DEFLATE stream.
		out = []byte{0x00}
	}
	return out, nil
}

// deflateDecompress appends the sync marker back onto the
// concatenated fragment payloads and inflates.
func deflateDecompress(compressed []byte) ([]byte, error) {
	src := append(append([]byte{}, compressed...), deflateSyncMarker...)
	fr := flate.NewReader(bytes.NewReader(src))
	defer fr.Close()
	out, err := io.ReadAll(fr)
	// A sync-flushed stream carries no final block, so the inflater
	// reports io.ErrUnexpectedEOF once it has consumed every byte.
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return out, nil
}

// Negotiate parses the Sec-WebSocket-Extensions request header value
// and reports whether permessage-deflate should be enabled, plus the
// response-header value to echo back. The negotiable parameter set is
// client_no_context_takeover, server_no_context_takeover, and a bare
// client_max_window_bits; anything else (including a
// client_max_window_bits override with a value) declines that offer
// entirely. This endpoint always operates stateless, so both
// no_context_takeover flags are echoed regardless of the offer.
func Negotiate(reqExtensionHeader string) (enabled bool, responseValue string) {
	for _, offer := range strings.Split(reqExtensionHeader, ",") {
		parts := strings.Split(offer, ";")
		if strings.TrimSpace(parts[0]) != "permessage-deflate" {
			continue
		}
		ok := true
		for _, p := range parts[1:] {
			switch strings.TrimSpace(p) {
			case "", "client_no_context_takeover", "server_no_context_takeover", "client_max_window_bits":
			default:
				ok = false
			}
		}
		if !ok {
			continue
		}
		return true, "permessage-deflate; client_no_context_takeover; server_no_context_takeover"
	}
	return false, ""
}
