/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

// Package th implements an httptest-style unstarted/started test
// server (plus TLS variant) built directly on scamper/server and
// scamper/client. No separate connection-state tracking is needed on
// Close: Server.Stop already drains its worker pool.
package th

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"net"
	"time"

	"github.com/losizm/scamper-go/client"
	"github.com/losizm/scamper-go/server"
)

// Server wraps a scamper/server.Server bound to an ephemeral
// loopback port, reporting its base URL the way httptest servers do.
type Server struct {
	URL string
	*server.Server

	cert *x509.Certificate
}

// NewUnstartedServer constructs a Server from cfg without starting it,
// defaulting Addr to an OS-assigned loopback port when unset.
func NewUnstartedServer(cfg server.Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:0"
	}
	return &Server{Server: server.New(cfg)}
}

// Start binds the listener and begins accepting plain-HTTP connections.
func (s *Server) Start() error {
	if err := s.Server.Start(); err != nil {
		return err
	}
	s.URL = "http://" + s.Addr()
	return nil
}

// StartTLS is like Start but serves HTTPS using a throw-away,
// self-signed localhost certificate minted for this one server
// instance, so the package carries no checked-in key material.
func (s *Server) StartTLS() error {
	cert, certDER, key, err := generateLocalhostCert()
	if err != nil {
		return fmt.Errorf("th: generate test certificate: %w", err)
	}
	s.cert = cert

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{{Certificate: [][]byte{certDER}, PrivateKey: key}},
		NextProtos:   []string{"http/1.1"},
	}
	s.Server.SetTLSConfig(tlsCfg)

	if err := s.Server.Start(); err != nil {
		return err
	}
	s.URL = "https://" + s.Addr()
	return nil
}

// Certificate returns the server's TLS certificate, or nil for a plain
// HTTP server.
func (s *Server) Certificate() *x509.Certificate { return s.cert }

// Close stops the server, waiting for in-flight requests to finish.
func (s *Server) Close() { s.Server.Stop() }

// Client returns a scamper/client.Client configured to trust this
// server's TLS certificate (a no-op trust store for a plain-HTTP
// server).
func (s *Server) Client() *client.Client {
	cfg := client.Config{KeepAlive: true}
	if s.cert != nil {
		pool := x509.NewCertPool()
		pool.AddCert(s.cert)
		cfg.Trust = &tls.Config{RootCAs: pool}
	}
	return client.New(cfg)
}

func generateLocalhostCert() (*x509.Certificate, []byte, *ecdsa.PrivateKey, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, nil, nil, err
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, nil, nil, err
	}
	template := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"scamper-go test"}},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		DNSNames:              []string{"localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, nil, nil, err
	}
	return cert, der, key, nil
}
