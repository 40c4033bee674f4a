/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package client

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/proxy"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/uri"
)

const dialTimeout = 30 * time.Second

// dialRaw opens the TCP connection to hostPort, either directly or
// through the configured proxy. An "http" proxy URL tunnels with a
// CONNECT request; a "socks5" URL goes through the SOCKS5 dialer of
// golang.org/x/net/proxy. TLS, if any, is layered on top by the
// caller, so a CONNECT tunnel carries https traffic end-to-end
// encrypted.
func (c *Client) dialRaw(hostPort string) (net.Conn, error) {
	if c.proxy == "" {
		return net.DialTimeout("tcp", hostPort, dialTimeout)
	}

	if isSOCKS(c.proxy) {
		proxyAddr, aerr := proxyAuthority(c.proxy[len("socks5://"):], 1080)
		if aerr != nil {
			return nil, aerr
		}
		d, derr := proxy.SOCKS5("tcp", proxyAddr, nil, &net.Dialer{Timeout: dialTimeout})
		if derr != nil {
			return nil, derr
		}
		return d.Dial("tcp", hostPort)
	}

	pu, err := uri.Parse(c.proxy)
	if err != nil || !pu.IsAbsolute() {
		if err == nil {
			err = fmt.Errorf("client: proxy %q is not an absolute URL", c.proxy)
		}
		return nil, err
	}
	proxyAddr := net.JoinHostPort(pu.Host, strconv.Itoa(proxyPort(pu)))

	conn, err := net.DialTimeout("tcp", proxyAddr, dialTimeout)
	if err != nil {
		return nil, err
	}
	if err := connectTunnel(conn, hostPort); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// isSOCKS reports whether the proxy URL uses a socks5 scheme. The
// scheme is read off the raw string because the uri package's grammar
// only admits http/https/ws/wss.
func isSOCKS(proxyURL string) bool {
	return len(proxyURL) >= 9 && proxyURL[:9] == "socks5://"
}

func proxyPort(u uri.URI) int {
	if u.Port != 0 {
		return u.Port
	}
	return 8080
}

// proxyAuthority splits a bare "host[:port]/..." authority, applying
// defPort when no port is given.
func proxyAuthority(rest string, defPort int) (string, error) {
	for i := 0; i < len(rest); i++ {
		if rest[i] == '/' {
			rest = rest[:i]
			break
		}
	}
	if rest == "" {
		return "", fmt.Errorf("client: proxy URL has no host")
	}
	if host, port, err := net.SplitHostPort(rest); err == nil {
		return net.JoinHostPort(host, port), nil
	}
	return net.JoinHostPort(rest, strconv.Itoa(defPort)), nil
}

// connectTunnel issues "CONNECT host:port HTTP/1.1" on conn and
// requires a 2xx before handing the socket back as a transparent
// byte pipe.
func connectTunnel(conn net.Conn, hostPort string) error {
	bw := bufio.NewWriter(conn)
	if _, err := fmt.Fprintf(bw, "CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", hostPort, hostPort); err != nil {
		return err
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	br := bufio.NewReader(conn)
	line, err := scamper.ReadStatusLine(br, scamper.DefaultLimits)
	if err != nil {
		return err
	}
	if _, err := scamper.ReadHeaders(br, scamper.DefaultLimits); err != nil {
		return err
	}
	if line.Code/100 != 2 {
		return fmt.Errorf("client: proxy refused CONNECT: %d %s", line.Code, line.Reason)
	}
	return nil
}
