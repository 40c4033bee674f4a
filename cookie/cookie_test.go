/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package cookie

import (
	"strings"
	"testing"
	"time"
)

func TestPlainString(t *testing.T) {
	c := Plain{Name: "session", Value: "abc123"}
	if got := c.String(); got != "session=abc123" {
		t.Fatalf("String() = %q", got)
	}
	bad := Plain{Name: "bad name", Value: "x"}
	if got := bad.String(); got != "" {
		t.Fatalf("invalid name rendered as %q", got)
	}
}

func TestSetString(t *testing.T) {
	c := Set{
		Name:     "id",
		Value:    "42",
		Path:     "/app",
		Domain:   "example.com",
		MaxAge:   3600,
		Secure:   true,
		HTTPOnly: true,
		SameSite: SameSiteLax,
	}
	got := c.String()
	for _, want := range []string{"id=42", "Path=/app", "Domain=example.com", "Max-Age=3600", "SameSite=Lax", "HttpOnly", "Secure"} {
		if !strings.Contains(got, want) {
			t.Fatalf("String() = %q, missing %q", got, want)
		}
	}
}

func TestParseCookieHeader(t *testing.T) {
	got := ParseCookieHeader("a=1; b=2;  c=3")
	if len(got) != 3 {
		t.Fatalf("parsed %d cookies, want 3", len(got))
	}
	if got[0].Name != "a" || got[0].Value != "1" || got[2].Name != "c" {
		t.Fatalf("parsed = %+v", got)
	}
}

func TestParseSetCookie(t *testing.T) {
	c, ok := ParseSetCookie("token=xyz; Path=/; Domain=example.com; Max-Age=60; Secure; HttpOnly; SameSite=Strict")
	if !ok {
		t.Fatal("ParseSetCookie failed")
	}
	if c.Name != "token" || c.Value != "xyz" || c.Path != "/" || c.Domain != "example.com" {
		t.Fatalf("parsed = %+v", c)
	}
	if c.MaxAge != 60 || !c.Secure || !c.HTTPOnly || c.SameSite != SameSiteStrict {
		t.Fatalf("attributes = %+v", c)
	}

	if _, ok := ParseSetCookie("novalue"); ok {
		t.Fatal("accepted a Set-Cookie line with no =")
	}
}

func TestJarPathScoping(t *testing.T) {
	j := NewJar()
	j.Put("example.com", Set{Name: "deep", Value: "1", Path: "/app"})
	j.Put("example.com", Set{Name: "wide", Value: "2", Path: "/"})

	got := j.Get(false, "example.com", "/app/page")
	if len(got) != 2 {
		t.Fatalf("got %d cookies for /app/page, want 2", len(got))
	}
	got = j.Get(false, "example.com", "/other")
	if len(got) != 1 || got[0].Name != "wide" {
		t.Fatalf("got %+v for /other, want only wide", got)
	}
}

func TestJarSecureScoping(t *testing.T) {
	j := NewJar()
	j.Put("example.com", Set{Name: "s", Value: "1", Path: "/", Secure: true})
	if got := j.Get(false, "example.com", "/"); len(got) != 0 {
		t.Fatalf("secure cookie returned over insecure scheme: %+v", got)
	}
	if got := j.Get(true, "example.com", "/"); len(got) != 1 {
		t.Fatalf("secure cookie missing over https: %+v", got)
	}
}

func TestJarDomainScoping(t *testing.T) {
	j := NewJar()
	j.Put("www.example.com", Set{Name: "d", Value: "1", Path: "/", Domain: "example.com"})
	if got := j.Get(false, "api.example.com", "/"); len(got) != 1 {
		t.Fatalf("domain cookie not visible on sibling subdomain: %+v", got)
	}

	j.Put("www.example.com", Set{Name: "h", Value: "2", Path: "/"})
	got := j.Get(false, "api.example.com", "/")
	for _, c := range got {
		if c.Name == "h" {
			t.Fatal("host-only cookie leaked to a sibling subdomain")
		}
	}
}

func TestJarRejectsPublicSuffixDomain(t *testing.T) {
	j := NewJar()
	j.Put("www.example.com", Set{Name: "evil", Value: "1", Path: "/", Domain: "com"})
	if got := j.Get(false, "other.com", "/"); len(got) != 0 {
		t.Fatalf("public-suffix cookie visible across sites: %+v", got)
	}
}

func TestJarReplaceSameTriple(t *testing.T) {
	j := NewJar()
	j.Put("example.com", Set{Name: "k", Value: "old", Path: "/"})
	j.Put("example.com", Set{Name: "k", Value: "new", Path: "/"})
	got := j.Get(false, "example.com", "/")
	if len(got) != 1 || got[0].Value != "new" {
		t.Fatalf("got %+v, want single replaced cookie", got)
	}
}

func TestJarExpiry(t *testing.T) {
	j := NewJar()
	j.Put("example.com", Set{Name: "gone", Value: "1", Path: "/", Expires: time.Now().Add(-time.Hour)})
	if got := j.Get(false, "example.com", "/"); len(got) != 0 {
		t.Fatalf("expired cookie returned: %+v", got)
	}

	j.Put("example.com", Set{Name: "del", Value: "1", Path: "/"})
	j.Put("example.com", Set{Name: "del", Value: "", Path: "/", MaxAge: -1})
	if got := j.Get(false, "example.com", "/"); len(got) != 0 {
		t.Fatalf("Max-Age<0 did not delete: %+v", got)
	}
}

func TestNoneStore(t *testing.T) {
	None.Put("example.com", Set{Name: "x", Value: "1"})
	if got := None.Get(false, "example.com", "/"); len(got) != 0 {
		t.Fatalf("None store returned cookies: %+v", got)
	}
}
