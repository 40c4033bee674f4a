/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package client_test

import (
	"io"
	"testing"
	"time"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/client"
	"github.com/losizm/scamper-go/cookie"
	"github.com/losizm/scamper-go/internal/th"
	"github.com/losizm/scamper-go/server"
)

func echoServer(t *testing.T) *th.Server {
	t.Helper()
	s := th.NewUnstartedServer(server.Config{
		KeepAlive: server.KeepAliveConfig{IdleTimeout: 30 * time.Second, MaxRequests: 100},
		Handlers: []server.RequestHandler{func(req scamper.Request) (server.Control, error) {
			resp := scamper.NewResponse(200).
				WithHeader("X-Target", req.Target()).
				WithEntity(scamper.StringEntity("echo"))
			return server.Respond(resp), nil
		}},
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start test server: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestSendRoundTrip(t *testing.T) {
	s := echoServer(t)
	c := s.Client()
	defer c.Close()

	status, body, err := th.Get(c, s.URL+"/hello?x=1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if status != 200 || body != "echo" {
		t.Fatalf("status=%d body=%q", status, body)
	}
}

func TestSendRewritesTargetToOriginForm(t *testing.T) {
	s := echoServer(t)
	c := s.Client()
	defer c.Close()

	req := scamper.NewRequest("GET", s.URL+"/a/b?q=2")
	target, err := client.Send(c, req, func(resp scamper.Response) (string, error) {
		v, _ := scamper.GetHeader(resp, "X-Target")
		return v, nil
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if target != "/a/b?q=2" {
		t.Fatalf("server saw target %q, want origin-form", target)
	}
}

func TestPoolReusesConnection(t *testing.T) {
	s := echoServer(t)
	c := s.Client()
	defer c.Close()

	socketID := func() string {
		req := scamper.NewRequest("GET", s.URL+"/")
		id, err := client.Send(c, req, func(resp scamper.Response) (string, error) {
			// Drain so the connection is clean for reuse.
			if rc, oerr := resp.Entity().Open(); oerr == nil {
				io.ReadAll(rc)
				rc.Close()
			}
			sock, ok := scamper.SocketOf(resp)
			if !ok {
				t.Fatal("response carries no socket attribute")
			}
			return sock.LocalAddr(), nil
		})
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		return id
	}

	first := socketID()
	second := socketID()
	if first != second {
		t.Fatalf("second send dialed a new socket: %q then %q", first, second)
	}
}

func TestSendWithoutKeepAliveClosesConnection(t *testing.T) {
	s := echoServer(t)
	c := client.New(client.Config{})
	defer c.Close()

	var addrs [2]string
	for i := range addrs {
		req := scamper.NewRequest("GET", s.URL+"/")
		addr, err := client.Send(c, req, func(resp scamper.Response) (string, error) {
			sock, _ := scamper.SocketOf(resp)
			return sock.LocalAddr(), nil
		})
		if err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
		addrs[i] = addr
	}
	if addrs[0] == addrs[1] {
		t.Fatal("keep-alive disabled but the socket was reused")
	}
}

func TestResponseAttributes(t *testing.T) {
	s := echoServer(t)
	c := s.Client()
	defer c.Close()

	req := scamper.NewRequest("GET", s.URL+"/attr")
	ok, err := client.Send(c, req, func(resp scamper.Response) (bool, error) {
		if _, present := scamper.Correlate(resp); !present {
			return false, nil
		}
		snapshot, present := scamper.OutgoingRequest(resp)
		if !present {
			return false, nil
		}
		if snapshot.Target() != "/attr" {
			t.Fatalf("snapshot target = %q", snapshot.Target())
		}
		return true, nil
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !ok {
		t.Fatal("response attributes missing")
	}
}

func TestFiltersRunInOrder(t *testing.T) {
	s := echoServer(t)

	var order []string
	c := client.New(client.Config{
		KeepAlive: true,
		Outgoing: []client.RequestFilter{
			func(req scamper.Request) (scamper.Request, error) {
				order = append(order, "req-1")
				return req.WithHeader("X-F", "1"), nil
			},
			func(req scamper.Request) (scamper.Request, error) {
				order = append(order, "req-2")
				return req, nil
			},
		},
		Incoming: []client.ResponseFilter{
			func(resp scamper.Response) (scamper.Response, error) {
				order = append(order, "resp-1")
				return resp, nil
			},
		},
	})
	defer c.Close()

	if _, _, err := th.Get(c, s.URL+"/"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	want := []string{"req-1", "req-2", "resp-1"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestSetCookieStoredAndReplayed(t *testing.T) {
	s := th.NewUnstartedServer(server.Config{
		KeepAlive: server.KeepAliveConfig{IdleTimeout: 30 * time.Second},
		Handlers: []server.RequestHandler{func(req scamper.Request) (server.Control, error) {
			echoed, _ := scamper.GetHeader(req, scamper.HeaderCookie)
			resp := scamper.NewResponse(200).
				WithHeader(scamper.HeaderSetCookie, "sid=abc; Path=/").
				WithHeader("X-Got-Cookie", echoed).
				WithEntity(scamper.StringEntity("ok"))
			return server.Respond(resp), nil
		}},
	})
	if err := s.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(s.Close)

	c := client.New(client.Config{KeepAlive: true, Cookies: cookie.NewJar()})
	defer c.Close()

	if _, _, err := th.Get(c, s.URL+"/first"); err != nil {
		t.Fatalf("first Get: %v", err)
	}
	req := scamper.NewRequest("GET", s.URL+"/second")
	got, err := client.Send(c, req, func(resp scamper.Response) (string, error) {
		v, _ := scamper.GetHeader(resp, "X-Got-Cookie")
		return v, nil
	})
	if err != nil {
		t.Fatalf("second Send: %v", err)
	}
	if got != "sid=abc" {
		t.Fatalf("replayed cookie = %q, want sid=abc", got)
	}
}

func TestTLSRoundTrip(t *testing.T) {
	s := th.NewUnstartedServer(server.Config{
		Handlers: []server.RequestHandler{func(scamper.Request) (server.Control, error) {
			return server.Respond(scamper.NewResponse(200).WithEntity(scamper.StringEntity("secure"))), nil
		}},
	})
	if err := s.StartTLS(); err != nil {
		t.Fatalf("StartTLS: %v", err)
	}
	t.Cleanup(s.Close)

	c := s.Client()
	defer c.Close()
	status, body, err := th.Get(c, s.URL+"/")
	if err != nil {
		t.Fatalf("Get over TLS: %v", err)
	}
	if status != 200 || body != "secure" {
		t.Fatalf("status=%d body=%q", status, body)
	}
}
