/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package server

import (
	"bufio"
	"fmt"
	"net"
	"testing"
	"time"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/ws"
)

// wsEchoHandler upgrades a handshake request and echoes every text
// message back over the session.
func wsEchoHandler(req scamper.Request) (Control, error) {
	key, compress, err := ws.ValidateUpgrade(req)
	if err != nil {
		return Respond(scamper.NewResponse(400)), nil
	}
	resp := ws.UpgradeResponse(key, compress)
	return Upgrade(resp, func(conn net.Conn, br *bufio.Reader, bw *bufio.Writer) {
		session := ws.NewBuffered(conn, br, bw, true, ws.Config{Compress: compress}, ws.Handlers{
			Text: func(s *ws.Session, text string) { s.WriteText(text) },
		})
		session.Open()
		session.Wait()
	}), nil
}

func TestWebSocketUpgradeThroughPipeline(t *testing.T) {
	s := startServer(t, Config{Handlers: []RequestHandler{wsEchoHandler}})
	conn := dialServer(t, s)
	br := bufio.NewReader(conn)

	fmt.Fprintf(conn, "GET /chat HTTP/1.1\r\n"+
		"Host: %s\r\n"+
		"Upgrade: websocket\r\n"+
		"Connection: Upgrade\r\n"+
		"Sec-WebSocket-Version: 13\r\n"+
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n\r\n", s.Addr())

	line, err := scamper.ReadStatusLine(br, scamper.DefaultLimits)
	if err != nil {
		t.Fatalf("ReadStatusLine: %v", err)
	}
	if line.Code != 101 {
		t.Fatalf("status = %d, want 101", line.Code)
	}
	headers, err := scamper.ReadHeaders(br, scamper.DefaultLimits)
	if err != nil {
		t.Fatalf("ReadHeaders: %v", err)
	}
	if accept, _ := headers.Get(scamper.HeaderSecWebSocketAccept); accept != "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=" {
		t.Fatalf("Sec-WebSocket-Accept = %q", accept)
	}

	// The socket now speaks WebSocket: send a masked Text frame and
	// expect the echo back, unmasked.
	bw := bufio.NewWriter(conn)
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	frame := ws.Frame{Fin: true, Opcode: ws.OpText, MaskKey: key, Payload: []byte("over http")}
	if err := ws.WriteFrame(bw, frame, false, nil); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	if err := bw.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	echo, err := ws.ReadFrame(br, false, 0)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if echo.Opcode != ws.OpText || string(echo.Payload) != "over http" {
		t.Fatalf("echo = %+v", echo)
	}
}

func TestNonUpgradeRequestStaysHTTP(t *testing.T) {
	s := startServer(t, Config{Handlers: []RequestHandler{wsEchoHandler}})
	conn := dialServer(t, s)

	fmt.Fprintf(conn, "GET /chat HTTP/1.1\r\nHost: %s\r\n\r\n", s.Addr())
	resp := readResponse(t, bufio.NewReader(conn), "GET")
	if resp.Status() != 400 {
		t.Fatalf("status = %d, want 400 for a non-upgrade request", resp.Status())
	}
}
