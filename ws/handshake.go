/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package ws

import (
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"strings"

	scamper "github.com/losizm/scamper-go"
)

// magicGUID is RFC 6455's fixed handshake constant.
const magicGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

// ErrNotUpgrade reports a request that does not satisfy the handshake
// validation rules.
var ErrNotUpgrade = errors.New("ws: not a valid upgrade request")

// AcceptValue computes Sec-WebSocket-Accept = Base64(SHA-1(key ||
// GUID)). Comparison against a peer-supplied value is byte-exact; no
// Base64 padding normalization is applied.
func AcceptValue(key string) string {
	h := sha1.New()
	h.Write([]byte(key))
	h.Write([]byte(magicGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// ValidateUpgrade checks req against the handshake rules: GET method,
// Upgrade: websocket, Connection: upgrade (case-insensitive token),
// Sec-WebSocket-Version: 13, and a Sec-WebSocket-Key whose Base64
// decodes to exactly 16 bytes. It returns the key for AcceptValue,
// and whether compression was negotiated.
func ValidateUpgrade(req scamper.Request) (key string, wantsCompression bool, err error) {
	if req.Method() != "GET" {
		return "", false, ErrNotUpgrade
	}
	upgrade, _ := scamper.GetHeader(req, scamper.HeaderUpgrade)
	if !strings.EqualFold(strings.TrimSpace(upgrade), "websocket") {
		return "", false, ErrNotUpgrade
	}
	if !scamper.HasConnectionToken(req, "upgrade") {
		return "", false, ErrNotUpgrade
	}
	version, _ := scamper.GetHeader(req, scamper.HeaderSecWebSocketVersion)
	if strings.TrimSpace(version) != "13" {
		return "", false, ErrNotUpgrade
	}
	key, ok := scamper.GetHeader(req, scamper.HeaderSecWebSocketKey)
	if !ok {
		return "", false, ErrNotUpgrade
	}
	decoded, derr := base64.StdEncoding.DecodeString(key)
	if derr != nil || len(decoded) != 16 {
		return "", false, ErrNotUpgrade
	}
	ext, _ := scamper.GetHeader(req, scamper.HeaderSecWebSocketExt)
	compress, _ := Negotiate(ext)
	return key, compress, nil
}

// UpgradeResponse builds the 101 Switching Protocols response,
// including Sec-WebSocket-Accept and, if compress is true, the
// negotiated Sec-WebSocket-Extensions value.
func UpgradeResponse(key string, compress bool) scamper.Response {
	resp := scamper.NewResponse(101)
	resp = scamper.SetHeader(resp, scamper.HeaderUpgrade, "websocket")
	resp = scamper.SetHeader(resp, scamper.HeaderConnection, "upgrade")
	resp = scamper.SetHeader(resp, scamper.HeaderSecWebSocketAccept, AcceptValue(key))
	if compress {
		_, value := Negotiate("permessage-deflate; client_no_context_takeover; server_no_context_takeover")
		resp = scamper.SetHeader(resp, scamper.HeaderSecWebSocketExt, value)
	}
	return resp
}
