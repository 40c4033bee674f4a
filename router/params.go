/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package router

import (
	"strconv"

	scamper "github.com/losizm/scamper-go"
)

// Params is the set of path parameters a matched route bound.
type Params map[string]string

// String returns the named parameter, or def if it wasn't bound.
func (p Params) String(name, def string) string {
	if v, ok := p[name]; ok {
		return v
	}
	return def
}

// Get returns the named parameter and whether it was bound.
func (p Params) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Int decodes the named parameter as a base-10 integer. A missing
// parameter or a decoding failure both surface
// scamper.ErrParameterNotConvertible, normally recovered as 400 Bad
// Request by a user-provided error handler.
func (p Params) Int(name string) (int, error) {
	v, ok := p[name]
	if !ok {
		return 0, scamper.ErrParameterNotConvertible
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, scamper.ErrParameterNotConvertible
	}
	return n, nil
}

// Int64 is Int's 64-bit counterpart, for :id-style parameters that
// don't fit an int on 32-bit platforms.
func (p Params) Int64(name string) (int64, error) {
	v, ok := p[name]
	if !ok {
		return 0, scamper.ErrParameterNotConvertible
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, scamper.ErrParameterNotConvertible
	}
	return n, nil
}
