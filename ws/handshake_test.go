/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package ws

import (
	"testing"

	scamper "github.com/losizm/scamper-go"
)

func upgradeRequest() scamper.Request {
	return scamper.NewRequest("GET", "/chat").
		WithHeader(scamper.HeaderUpgrade, "websocket").
		WithHeader(scamper.HeaderConnection, "Upgrade").
		WithHeader(scamper.HeaderSecWebSocketVersion, "13").
		WithHeader(scamper.HeaderSecWebSocketKey, "dGhlIHNhbXBsZSBub25jZQ==")
}

func TestAcceptValue(t *testing.T) {
	// The RFC 6455 sample key/accept pair.
	got := AcceptValue("dGhlIHNhbXBsZSBub25jZQ==")
	if got != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("AcceptValue = %q", got)
	}
}

func TestValidateUpgrade(t *testing.T) {
	key, compress, err := ValidateUpgrade(upgradeRequest())
	if err != nil {
		t.Fatalf("ValidateUpgrade: %v", err)
	}
	if key != "dGhlIHNhbXBsZSBub25jZQ==" {
		t.Fatalf("key = %q", key)
	}
	if compress {
		t.Fatal("compression negotiated without an extension offer")
	}
}

func TestValidateUpgradeRejections(t *testing.T) {
	cases := map[string]scamper.Request{
		"wrong method":  upgradeRequest().WithMethod("POST"),
		"no upgrade":    upgradeRequest().RemoveHeader(scamper.HeaderUpgrade),
		"no connection": upgradeRequest().RemoveHeader(scamper.HeaderConnection),
		"bad version":   scamper.SetHeader(upgradeRequest(), scamper.HeaderSecWebSocketVersion, "8"),
		"no key":        upgradeRequest().RemoveHeader(scamper.HeaderSecWebSocketKey),
		"short key":     scamper.SetHeader(upgradeRequest(), scamper.HeaderSecWebSocketKey, "c2hvcnQ="),
		"bad base64":    scamper.SetHeader(upgradeRequest(), scamper.HeaderSecWebSocketKey, "!!!not-base64!!!"),
	}
	for name, req := range cases {
		if _, _, err := ValidateUpgrade(req); err != ErrNotUpgrade {
			t.Fatalf("%s: err = %v, want ErrNotUpgrade", name, err)
		}
	}
}

func TestUpgradeResponse(t *testing.T) {
	resp := UpgradeResponse("dGhlIHNhbXBsZSBub25jZQ==", false)
	if resp.Status() != 101 {
		t.Fatalf("status = %d", resp.Status())
	}
	if v, _ := scamper.GetHeader(resp, scamper.HeaderUpgrade); v != "websocket" {
		t.Fatalf("Upgrade = %q", v)
	}
	if v, _ := scamper.GetHeader(resp, scamper.HeaderSecWebSocketAccept); v != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("Sec-WebSocket-Accept = %q", v)
	}
	if resp.Headers().Has(scamper.HeaderSecWebSocketExt) {
		t.Fatal("extension header present without negotiation")
	}

	resp = UpgradeResponse("dGhlIHNhbXBsZSBub25jZQ==", true)
	if v, _ := scamper.GetHeader(resp, scamper.HeaderSecWebSocketExt); v == "" {
		t.Fatal("extension header missing after negotiation")
	}
}

func TestCompressionNegotiatedThroughUpgrade(t *testing.T) {
	req := upgradeRequest().WithHeader(scamper.HeaderSecWebSocketExt, "permessage-deflate; client_no_context_takeover")
	_, compress, err := ValidateUpgrade(req)
	if err != nil {
		t.Fatalf("ValidateUpgrade: %v", err)
	}
	if !compress {
		t.Fatal("permessage-deflate offer was not accepted")
	}
}
