/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package server

import (
	"fmt"
	"sync/atomic"
	"time"
)

// correlator mints correlate ids on the server side, the same
// "<ms-epoch-hex>-<id-hex4>-<seq-hex4>" scheme scamper/client uses
// for outgoing requests, so a correlate id is unique and monotonic
// within whichever side minted it.
type correlator struct {
	id  uint32
	seq uint32
}

var nextServerID uint32

func newCorrelator() *correlator {
	return &correlator{id: atomic.AddUint32(&nextServerID, 1)}
}

func (c *correlator) next() string {
	seq := atomic.AddUint32(&c.seq, 1)
	ms := time.Now().UnixMilli()
	return fmt.Sprintf("%x-%04x-%04x", ms, c.id&0xffff, seq&0xffff)
}
