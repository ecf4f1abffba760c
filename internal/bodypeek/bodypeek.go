// Package bodypeek implements the scoped body-peek primitive: draining
// a streaming request body into memory for inspection while guaranteeing
// the caller can restore a byte-identical streaming body afterward.
package bodypeek

import (
	"bytes"
	"errors"
	"io"
	"net/http"
)

// ErrBodyTooLarge is returned by Peek when the body exceeds maxBytes.
var ErrBodyTooLarge = errors.New("request body exceeds maximum peek size")

// Peek holds the drained bytes of a request body and restores the request
// to a readable state once committed. The zero value is not usable; build
// one with Do.
type Peek struct {
	req   *http.Request
	bytes []byte
}

// Bytes returns the drained body.
func (p *Peek) Bytes() []byte { return p.bytes }

// Restore replaces the request's body with a fresh reader over the same
// bytes, so a subsequent forward sees exactly what the client sent. It is
// idempotent and safe to call multiple times (e.g. from a defer after an
// early return).
func (p *Peek) Restore() {
	p.req.Body = io.NopCloser(bytes.NewReader(p.bytes))
	p.req.ContentLength = int64(len(p.bytes))
}

// Do drains req.Body fully into memory, up to maxBytes, and returns a Peek
// that exposes the drained bytes. On success Do has already restored
// req.Body, so the request can be forwarded as is; calling Restore again
// (e.g. from a defer) re-arms a fresh reader over the same bytes.
//
// If the body cannot be fully read, or exceeds maxBytes, Do returns an
// error and the request body must be treated as unusable; the caller
// should not attempt to forward the request in that case.
func Do(req *http.Request, maxBytes int64) (*Peek, error) {
	if req.Body == nil {
		return &Peek{req: req, bytes: nil}, nil
	}

	limited := io.LimitReader(req.Body, maxBytes+1)
	data, err := io.ReadAll(limited)
	req.Body.Close()
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrBodyTooLarge
	}

	p := &Peek{req: req, bytes: data}
	p.Restore()
	return p, nil
}
