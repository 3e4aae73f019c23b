// File: internal/engine/transfer.go
// Package engine
// License: Apache-2.0
//
// Transfer is the per-request native handle: request description, socket
// state, and incremental response parse state. A Transfer is owned by the
// Multi from Add until it is reported finished or removed.

package engine

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
)

type transferState int

const (
	stateNew transferState = iota
	stateConnecting
	stateSending
	stateReceiving
	stateDone
)

// Transfer carries one HTTP exchange. Construction validates the target
// URI; everything after that happens on the reactor goroutine through the
// owning Multi.
type Transfer struct {
	method  string
	url     *url.URL
	headers []string
	body    []byte
	timeout time.Duration
	verbose bool

	// OnBody receives response body bytes as they arrive. Set before Add.
	OnBody func(p []byte)

	state    transferState
	fd       int
	out      []byte
	outOff   int
	parser   responseParser
	deadline time.Time
	err      error
	done     bool
}

// NewTransfer builds a transfer for method and rawURI. The URI must parse
// and carry a host; scheme support is checked later, at hand-off.
func NewTransfer(method, rawURI string, headers []string, timeout time.Duration) (*Transfer, error) {
	if method == "" {
		return nil, fmt.Errorf("%w: empty method", api.ErrBadHandle)
	}
	u, err := url.Parse(rawURI)
	if err != nil {
		return nil, fmt.Errorf("parse uri: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: uri %q has no host", api.ErrBadHandle, rawURI)
	}
	t := &Transfer{
		method:  strings.ToUpper(method),
		url:     u,
		headers: headers,
		timeout: timeout,
		fd:      -1,
	}
	if t.method == "HEAD" {
		t.parser.noBody = true
	}
	return t, nil
}

// SetBody sets the outbound request body. Must be called before hand-off.
func (t *Transfer) SetBody(p []byte) { t.body = p }

// Body returns the outbound request body.
func (t *Transfer) Body() []byte { return t.body }

// SetVerbose toggles per-transfer progress logging.
func (t *Transfer) SetVerbose(v bool) { t.verbose = v }

// SetMaxHeaderBytes bounds the response header block size. Zero keeps the
// default.
func (t *Transfer) SetMaxHeaderBytes(n int) { t.parser.maxHeader = n }

// Status returns the parsed HTTP status code, api.StatusUndefined until a
// status line has been received.
func (t *Transfer) Status() int { return t.parser.status }

// Headers returns the response headers in receive order, duplicates
// preserved.
func (t *Transfer) Headers() []api.Header { return t.parser.headers }

// Err returns the transport-level failure, nil for a clean exchange.
func (t *Transfer) Err() error { return t.err }

// URI returns the target as given at construction.
func (t *Transfer) URI() string { return t.url.String() }

func (t *Transfer) sink(p []byte) {
	if t.OnBody != nil {
		t.OnBody(p)
	}
}

// requestBytes serializes the request line, headers, and body. A
// Connection: close header is added unless the caller supplied one, since
// the engine does not reuse connections.
func (t *Transfer) requestBytes() []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", t.method, t.url.RequestURI())

	hasHost, hasConn, hasLength := false, false, false
	for _, h := range t.headers {
		switch {
		case hasHeaderName(h, "host"):
			hasHost = true
		case hasHeaderName(h, "connection"):
			hasConn = true
		case hasHeaderName(h, "content-length"):
			hasLength = true
		}
	}
	if !hasHost {
		fmt.Fprintf(&b, "Host: %s\r\n", t.url.Host)
	}
	for _, h := range t.headers {
		b.WriteString(h)
		b.WriteString("\r\n")
	}
	if !hasConn {
		b.WriteString("Connection: close\r\n")
	}
	if !hasLength && (len(t.body) > 0 || methodCarriesBody(t.method)) {
		fmt.Fprintf(&b, "Content-Length: %d\r\n", len(t.body))
	}
	b.WriteString("\r\n")
	b.Write(t.body)
	return b.Bytes()
}

func hasHeaderName(line, name string) bool {
	i := strings.IndexByte(line, ':')
	if i < 0 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(line[:i]), name)
}

func methodCarriesBody(method string) bool {
	switch method {
	case "POST", "PUT", "PATCH":
		return true
	}
	return false
}
