/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package th

import (
	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/client"
)

// NewRequest builds a synthetic request for exercising a handler
// directly, without a real socket. Method defaults to GET; a
// non-empty body becomes a restartable in-memory entity.
func NewRequest(method, target string, body string) scamper.Request {
	if method == "" {
		method = "GET"
	}
	req := scamper.NewRequest(method, target)
	if body != "" {
		req = req.WithEntity(scamper.StringEntity(body))
	}
	return req
}

// Get issues a GET to the server's base URL + path and returns the
// response body as a string, a thin convenience over client.Send for
// table-driven tests.
func Get(c *client.Client, url string) (int, string, error) {
	req := scamper.NewRequest("GET", url)
	return do(c, req)
}

// Post issues a POST with body to the server's base URL + path.
func Post(c *client.Client, url, contentType, body string) (int, string, error) {
	req := scamper.NewRequest("POST", url).
		WithHeader(scamper.HeaderContentType, contentType).
		WithEntity(scamper.StringEntity(body))
	return do(c, req)
}

type result struct {
	status int
	body   string
}

func do(c *client.Client, req scamper.Request) (int, string, error) {
	res, err := client.Send(c, req, func(resp scamper.Response) (result, error) {
		rc, oerr := resp.Entity().Open()
		if oerr != nil {
			return result{status: resp.Status()}, nil
		}
		defer rc.Close()
		var buf []byte
		chunk := make([]byte, 4096)
		for {
			n, rerr := rc.Read(chunk)
			buf = append(buf, chunk[:n]...)
			if rerr != nil {
				break
			}
		}
		return result{status: resp.Status(), body: string(buf)}, nil
	})
	return res.status, res.body, err
}
