/*
 * Copyright (c) 2018 The Go Authors. All rights reserved.
 * Use of this source code is governed by a BSD-style license that can be found in the LICENSE file.
 */

package router

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	scamper "github.com/losizm/scamper-go"
	"github.com/losizm/scamper-go/server"
)

// errNoOverlap reports a Range request whose first-byte-pos exceeds
// the content size.
var errNoOverlap = errors.New("router: invalid range: failed to overlap")

// httpRange is one decoded byte range.
type httpRange struct {
	start, length int64
}

func (r httpRange) contentRange(size int64) string {
	return fmt.Sprintf("bytes %d-%d/%d", r.start, r.start+r.length-1, size)
}

// parseRange accepts a single-range "bytes=start-end" request per
// RFC 7233. A multi-range request is rejected with errNoOverlap
// rather than served as multipart/byteranges.
func parseRange(s string, size int64) (httpRange, error) {
	const b = "bytes="
	if !strings.HasPrefix(s, b) {
		return httpRange{}, errors.New("router: invalid range header")
	}
	spec := strings.TrimPrefix(s, b)
	if strings.Contains(spec, ",") {
		return httpRange{}, errNoOverlap
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 {
		return httpRange{}, errors.New("router: invalid range header")
	}
	startStr, endStr := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])

	if startStr == "" {
		// suffix range: "-N" means the last N bytes.
		n, err := strconv.ParseInt(endStr, 10, 64)
		if err != nil || n == 0 {
			return httpRange{}, errors.New("router: invalid range header")
		}
		if n > size {
			n = size
		}
		return httpRange{start: size - n, length: n}, nil
	}

	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil || start >= size {
		return httpRange{}, errNoOverlap
	}
	end := size - 1
	if endStr != "" {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < start {
			return httpRange{}, errors.New("router: invalid range header")
		}
		if end >= size {
			end = size - 1
		}
	}
	return httpRange{start: start, length: end - start + 1}, nil
}

// Files serves the tree rooted at dir as a RouteHandler, reading the
// remainder of the matched path from params[tailParam]. The caller
// registers it against a *name route, e.g.
// r.Get("/static/*path", router.Files("./public", "path")).
func Files(dir, tailParam string) RouteHandler {
	return func(req scamper.Request, params Params) (server.Control, error) {
		rel := params.String(tailParam, "")
		return serveFile(dir, rel, req)
	}
}

func serveFile(dir, rel string, req scamper.Request) (server.Control, error) {
	upath := "/" + rel
	clean := path.Clean(upath)
	if strings.Contains(clean, "..") {
		// Directory-escape attempts look like a missing file, not a
		// distinct resource.
		return server.Respond(scamper.NewResponse(404)), nil
	}

	full := filepath.Join(dir, filepath.FromSlash(clean))
	info, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return server.Respond(scamper.NewResponse(404)), nil
		}
		return server.Control{}, scamper.ConnError("stat-file", err)
	}

	if info.IsDir() {
		if !strings.HasSuffix(req.Target(), "/") {
			resp := scamper.NewResponse(303).WithHeader(scamper.HeaderLocation, req.Target()+"/")
			return server.Respond(resp), nil
		}
		indexPath := filepath.Join(full, "index.html")
		if idx, err := os.Stat(indexPath); err == nil && !idx.IsDir() {
			full, info = indexPath, idx
		} else {
			return server.Respond(listDir(full)), nil
		}
	}

	contentType := mime.TypeByExtension(filepath.Ext(full))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	size := info.Size()
	rangeHeader, hasRange := scamper.GetHeader(req, "Range")
	if !hasRange {
		entity, err := scamper.FileEntity(full)
		if err != nil {
			return server.Control{}, scamper.ConnError("open-file", err)
		}
		resp := scamper.NewResponse(200).
			WithHeader(scamper.HeaderContentType, contentType).
			WithHeader("Accept-Ranges", "bytes").
			WithEntity(entity)
		return server.Respond(resp), nil
	}

	rng, err := parseRange(rangeHeader, size)
	if err != nil {
		resp := scamper.NewResponse(416).WithHeader("Content-Range", fmt.Sprintf("bytes */%d", size))
		return server.Respond(resp), nil
	}
	f, err := os.Open(full)
	if err != nil {
		return server.Control{}, scamper.ConnError("open-file", err)
	}
	defer f.Close()
	if _, err := f.Seek(rng.start, io.SeekStart); err != nil {
		return server.Control{}, scamper.ConnError("seek-file", err)
	}
	data := make([]byte, rng.length)
	if _, err := io.ReadFull(f, data); err != nil {
		return server.Control{}, scamper.ConnError("read-file", err)
	}
	resp := scamper.NewResponse(206).
		WithHeader(scamper.HeaderContentType, contentType).
		WithHeader("Content-Range", rng.contentRange(size)).
		WithHeader("Accept-Ranges", "bytes").
		WithEntity(scamper.BytesEntity(data))
	return server.Respond(resp), nil
}

// listDir renders a minimal directory listing with escaped names.
func listDir(full string) scamper.Response {
	entries, _ := os.ReadDir(full)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var b strings.Builder
	b.WriteString("<pre>\n")
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		escaped := htmlEscape(name)
		b.WriteString(fmt.Sprintf("<a href=\"%s\">%s</a>\n", escaped, escaped))
	}
	b.WriteString("</pre>\n")

	return scamper.NewResponse(200).
		WithHeader(scamper.HeaderContentType, "text/html; charset=utf-8").
		WithEntity(scamper.StringEntity(b.String()))
}

var htmlReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

func htmlEscape(s string) string { return htmlReplacer.Replace(s) }
