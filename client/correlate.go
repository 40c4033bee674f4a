/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package client

import (
	"fmt"
	"sync/atomic"
	"time"
)

// correlator mints correlate ids of the form
// "<ms-epoch-hex>-<client-id-hex4>-<request-seq-hex4>", monotonically
// increasing per client. One correlator is embedded per Client value.
type correlator struct {
	clientID uint32
	seq      uint32
}

var nextClientID uint32

func newCorrelator() *correlator {
	return &correlator{clientID: atomic.AddUint32(&nextClientID, 1)}
}

func (c *correlator) next() string {
	seq := atomic.AddUint32(&c.seq, 1)
	ms := time.Now().UnixMilli()
	return fmt.Sprintf("%x-%04x-%04x", ms, c.clientID&0xffff, seq&0xffff)
}
