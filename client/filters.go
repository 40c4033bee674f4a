/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package client

import scamper "github.com/losizm/scamper-go"

// RequestFilter rewrites an outgoing request before it is written to
// the wire. Filters run in registration order. A plain func type
// rather than an interface: scamper.Request is a value type with no
// polymorphic dispatch need.
type RequestFilter func(scamper.Request) (scamper.Request, error)

// ResponseFilter rewrites an incoming response before it reaches the
// caller's handler, in registration order.
type ResponseFilter func(scamper.Response) (scamper.Response, error)

func runRequestFilters(filters []RequestFilter, req scamper.Request) (scamper.Request, error) {
	var err error
	for _, f := range filters {
		req, err = f(req)
		if err != nil {
			return scamper.Request{}, err
		}
	}
	return req, nil
}

func runResponseFilters(filters []ResponseFilter, resp scamper.Response) (scamper.Response, error) {
	var err error
	for _, f := range filters {
		resp, err = f(resp)
		if err != nil {
			return scamper.Response{}, err
		}
	}
	return resp, nil
}
