/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package scamper

import (
	"bytes"
	"io"
	"os"
)

// Entity is an abstract byte source for a message body. It is
// consumed at most once unless Restartable reports true, in which
// case Open may be called again to obtain a fresh reader.
//
// Entity deliberately does not expose trailers or multipart
// decomposition; both belong to external collaborators.
type Entity interface {
	// Open returns a fresh reader over the entity's bytes. For
	// single-shot entities (a generic io.Reader or io.ReadCloser
	// source) Open may only be called once; a second
	// call returns an error.
	Open() (io.ReadCloser, error)
	// Size returns the known length in bytes, or -1 if unknown (e.g. a
	// generic reader source with no declared length).
	Size() int64
	// Restartable reports whether Open can be called more than once.
	Restartable() bool
}

// EmptyEntity is the zero-length entity used for GET/HEAD/DELETE/TRACE
// requests and for responses that carry no body.
var EmptyEntity Entity = bytesEntity{}

type bytesEntity struct{ b []byte }

// BytesEntity constructs a restartable, known-size Entity backed by an
// in-memory byte slice.
func BytesEntity(b []byte) Entity { return bytesEntity{b: b} }

// StringEntity constructs a restartable, known-size Entity backed by a
// string (e.g. a JSON or form-encoded body built by the caller).
func StringEntity(s string) Entity { return bytesEntity{b: []byte(s)} }

func (e bytesEntity) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(e.b)), nil
}
func (e bytesEntity) Size() int64      { return int64(len(e.b)) }
func (e bytesEntity) Restartable() bool { return true }

// fileEntity is restartable (a file can be reopened) and always
// reports its size.
type fileEntity struct {
	path string
	size int64
}

// FileEntity constructs a restartable Entity backed by the named file.
// The file is stat'd eagerly so Size() is available without opening
// the file.
func FileEntity(path string) (Entity, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, &os.PathError{Op: "open", Path: path, Err: os.ErrInvalid}
	}
	return fileEntity{path: path, size: fi.Size()}, nil
}

func (e fileEntity) Open() (io.ReadCloser, error) { return os.Open(e.path) }
func (e fileEntity) Size() int64                  { return e.size }
func (e fileEntity) Restartable() bool            { return true }

// readerEntity wraps a single-shot io.Reader of unknown length. Open
// may be called exactly once.
type readerEntity struct {
	r      io.Reader
	opened bool
}

// ReaderEntity constructs a single-shot, unknown-size Entity backed by
// an arbitrary io.Reader (e.g. a pipe, a network stream being relayed).
func ReaderEntity(r io.Reader) Entity { return &readerEntity{r: r} }

func (e *readerEntity) Open() (io.ReadCloser, error) {
	if e.opened {
		return nil, errEntityAlreadyConsumed
	}
	e.opened = true
	if rc, ok := e.r.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(e.r), nil
}
func (e *readerEntity) Size() int64      { return -1 }
func (e *readerEntity) Restartable() bool { return false }

var errEntityAlreadyConsumed = newErr(KindApplication, "entity-open", "entity already consumed and is not restartable")
