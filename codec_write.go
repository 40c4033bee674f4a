/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"bufio"
	"io"
	"strconv"
)

// prepareOutgoing applies the write-side framing rules to an
// already-built message, returning the Header that will actually be
// written (Content-Length/Transfer-Encoding added or stripped) and the
// entity reader to copy after it. It is shared by request and response
// serialization; noBody forces the GET/HEAD/DELETE/TRACE stripping
// rule (body replaced with empty, both framing headers removed).
func prepareOutgoing(h Header, e Entity, noBody bool) (Header, io.Reader, bool, error) {
	if noBody {
		h = h.Remove(HeaderContentLength).Remove(HeaderTransferEncoding)
		return h, nil, false, nil
	}

	h = h.Remove(HeaderContentLength)
	// Preserve a caller-forced chunked Transfer-Encoding.
	if IsChunked(headerOnly{h: h}) {
		r, err := openEntity(e)
		if err != nil {
			return h, nil, false, err
		}
		return h, r, true, nil
	}
	h = h.Remove(HeaderTransferEncoding)

	size := e.Size()
	r, err := openEntity(e)
	if err != nil {
		return h, nil, false, err
	}
	if size >= 0 {
		h = h.Set(HeaderContentLength, strconv.FormatInt(size, 10))
		return h, r, false, nil
	}
	h = h.Set(HeaderTransferEncoding, "chunked")
	return h, r, true, nil
}

func openEntity(e Entity) (io.Reader, error) {
	if e == nil {
		return nil, nil
	}
	rc, err := e.Open()
	if err != nil {
		return nil, err
	}
	return rc, nil
}

func writeHeaderBlock(w *bufio.Writer, h Header) error {
	var err error
	h.Each(func(name, value string) {
		if err != nil {
			return
		}
		_, err = w.WriteString(name)
		if err == nil {
			_, err = w.WriteString(": ")
		}
		if err == nil {
			_, err = w.WriteString(value)
		}
		if err == nil {
			_, err = w.WriteString("\r\n")
		}
	})
	if err != nil {
		return err
	}
	_, err = w.WriteString("\r\n")
	return err
}

func copyBody(w *bufio.Writer, r io.Reader, chunked bool) error {
	if r == nil {
		return nil
	}
	if rc, ok := r.(io.Closer); ok {
		defer rc.Close()
	}
	if !chunked {
		_, err := io.Copy(w, r)
		return err
	}
	cw := newChunkedWriter(w)
	if _, err := io.Copy(cw, r); err != nil {
		return err
	}
	return cw.Close()
}

// WriteRequest serializes req to w: request-line, headers in insertion
// order, CRLF, body.
func WriteRequest(w *bufio.Writer, req Request) error {
	noBody := MethodCarriesNoBody(req.Method())
	h, body, chunked, err := prepareOutgoing(req.Headers(), req.Entity(), noBody)
	if err != nil {
		return err
	}
	if _, err := w.WriteString(req.Line.String() + "\r\n"); err != nil {
		return err
	}
	if err := writeHeaderBlock(w, h); err != nil {
		return err
	}
	if err := copyBody(w, body, chunked); err != nil {
		return err
	}
	return w.Flush()
}

// WriteRequestHead writes only the request-line and header block of
// req, flushing afterward, and returns the resolved body reader and
// chunked flag for a later WriteRequestBody call. Used by the
// client's Expect: 100-continue wait, which must send headers, wait
// for an interim response, and only then send the body.
func WriteRequestHead(w *bufio.Writer, req Request) (io.Reader, bool, error) {
	noBody := MethodCarriesNoBody(req.Method())
	h, body, chunked, err := prepareOutgoing(req.Headers(), req.Entity(), noBody)
	if err != nil {
		return nil, false, err
	}
	if _, err := w.WriteString(req.Line.String() + "\r\n"); err != nil {
		return nil, false, err
	}
	if err := writeHeaderBlock(w, h); err != nil {
		return nil, false, err
	}
	if err := w.Flush(); err != nil {
		return nil, false, err
	}
	return body, chunked, nil
}

// WriteRequestBody writes the body previously resolved by
// WriteRequestHead and flushes.
func WriteRequestBody(w *bufio.Writer, body io.Reader, chunked bool) error {
	if err := copyBody(w, body, chunked); err != nil {
		return err
	}
	return w.Flush()
}

// WriteResponse serializes resp to w. noBody covers the pipeline's
// HEAD-request write-time rule: the caller passes true whenever the
// request method was HEAD, regardless of what the handler put in the
// entity; 204/304 and 1xx statuses suppress the body here directly.
func WriteResponse(w *bufio.Writer, resp Response, noBody bool) error {
	noBody = noBody || !bodyAllowedForStatus(resp.Status())
	h, body, chunked, err := prepareOutgoing(resp.Headers(), resp.Entity(), noBody)
	if err != nil {
		return err
	}
	if _, err := w.WriteString(resp.Line.String() + "\r\n"); err != nil {
		return err
	}
	if err := writeHeaderBlock(w, h); err != nil {
		return err
	}
	if err := copyBody(w, body, chunked); err != nil {
		return err
	}
	return w.Flush()
}
