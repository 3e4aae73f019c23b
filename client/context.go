// File: client/context.go
// Package client
// License: Apache-2.0
//
// CallContext is the unit of work: request description, response
// accumulation, completion bookkeeping, and the dual-ownership discipline
// that keeps it alive while either the caller or the engine still holds it.

package client

import (
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/bitbouncer/deprecated-csi-http-client/internal/engine"
	uuid "github.com/satori/go.uuid"
)

// defaultRxReserve pre-sizes the response buffer so typical responses never
// reallocate early.
const defaultRxReserve = 32 << 10

// liveContexts counts contexts that have been constructed and not yet fully
// released by both owners. Read lock-free.
var liveContexts atomic.Int64

// ContextCount returns the number of currently live call contexts,
// process-wide. Diagnostic only.
func ContextCount() int64 { return liveContexts.Load() }

// Callback is invoked on the reactor goroutine exactly once when a transfer
// completes.
type Callback func(*CallContext)

// CallContext describes one request and accumulates its response. A context
// is shared between the caller, who reads results from it, and the engine,
// which must keep it alive while the native transfer is in flight.
type CallContext struct {
	id      string
	method  string
	uri     string
	headers []string
	timeout time.Duration

	rx           []byte
	rxHeaders    []api.Header
	httpResult   int
	transportOK  bool
	transportErr error

	startTS time.Time
	endTS   time.Time

	callback Callback
	transfer *engine.Transfer

	// Reactor-goroutine completion bookkeeping.
	finalized bool

	mu         sync.Mutex
	engineRef  *CallContext // self-reference, held while the engine owns us
	callerDone bool
	released   bool
}

// NewCallContext builds a context and allocates its native transfer handle
// immediately. If allocation fails the context is unusable: hand-off
// surfaces api.ErrBadHandle. Mirrors the behavior of a null native handle
// rather than failing construction.
func NewCallContext(method, uri string, headers []string, timeout time.Duration) *CallContext {
	liveContexts.Add(1)
	c := &CallContext{
		id:         uuid.NewV4().String(),
		method:     method,
		uri:        uri,
		headers:    headers,
		timeout:    timeout,
		rx:         make([]byte, 0, defaultRxReserve),
		httpResult: api.StatusUndefined,
	}
	t, err := engine.NewTransfer(method, uri, headers, timeout)
	if err != nil {
		log.Printf("[client] context %s: transfer allocation failed: %v", c.id, err)
		return c
	}
	t.OnBody = func(p []byte) { c.rx = append(c.rx, p...) }
	c.transfer = t
	return c
}

// ID returns the context's unique identifier.
func (c *CallContext) ID() string { return c.id }

// Method returns the request method.
func (c *CallContext) Method() string { return c.method }

// URI returns the request target.
func (c *CallContext) URI() string { return c.uri }

// SetVerbose toggles transfer progress logging.
func (c *CallContext) SetVerbose(v bool) {
	if c.transfer != nil {
		c.transfer.SetVerbose(v)
	}
}

// SetTxContent sets the outbound request body. Must be called before
// hand-off.
func (c *CallContext) SetTxContent(p []byte) {
	if c.transfer != nil {
		c.transfer.SetBody(p)
	}
}

// TxContent returns the outbound request body.
func (c *CallContext) TxContent() []byte {
	if c.transfer == nil {
		return nil
	}
	return c.transfer.Body()
}

// TxContentLength returns the outbound body size.
func (c *CallContext) TxContentLength() int { return len(c.TxContent()) }

// RxContent returns the accumulated response body as a string.
func (c *CallContext) RxContent() string { return string(c.rx) }

// RxContentLength returns the number of response body bytes received.
func (c *CallContext) RxContentLength() int { return len(c.rx) }

// RxHeader returns the value of the first response header matching name,
// case-insensitively. Returns "" both when the header is absent and when it
// is present with an empty value; callers that need the distinction must
// walk RxHeaders. Known limitation, kept for compatibility.
func (c *CallContext) RxHeader(name string) string {
	for _, h := range c.rxHeaders {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// RxHeaders returns the response headers in receive order, duplicates
// preserved.
func (c *CallContext) RxHeaders() []api.Header { return c.rxHeaders }

// HTTPResult returns the response status code, api.StatusUndefined until a
// status line arrived.
func (c *CallContext) HTTPResult() int { return c.httpResult }

// TransportResult reports whether the exchange succeeded at the transport
// level. False only for network/engine failure (DNS, connect, timeout,
// protocol error), independent of the HTTP status.
func (c *CallContext) TransportResult() bool { return c.transportOK }

// TransportError returns the transport-level failure, nil when
// TransportResult is true.
func (c *CallContext) TransportError() error { return c.transportErr }

// Ok reports transport success with a 2xx status.
func (c *CallContext) Ok() bool {
	return c.transportOK && c.httpResult >= 200 && c.httpResult < 300
}

// Milliseconds returns the transfer duration in milliseconds.
func (c *CallContext) Milliseconds() int64 { return c.endTS.Sub(c.startTS).Milliseconds() }

// Microseconds returns the transfer duration in microseconds.
func (c *CallContext) Microseconds() int64 { return c.endTS.Sub(c.startTS).Microseconds() }

// RxKBPerSec returns the inbound throughput, bytes received per elapsed
// millisecond.
func (c *CallContext) RxKBPerSec() int {
	ms := c.Milliseconds()
	if ms == 0 {
		return 0
	}
	return int(int64(len(c.rx)) / ms)
}

// Close releases the caller's hold on the context. The context stays alive
// until the engine has released it too; the in-flight transfer is not
// aborted by dropping the handle.
func (c *CallContext) Close() {
	c.mu.Lock()
	if c.callerDone {
		c.mu.Unlock()
		return
	}
	c.callerDone = true
	drop := c.engineRef == nil && !c.released
	if drop {
		c.released = true
	}
	c.mu.Unlock()
	if drop {
		c.destroy()
	}
}

// engineStart engages engine ownership: a self-reference keeps the context
// from being destroyed while the engine holds a live pointer into it.
func (c *CallContext) engineStart() {
	c.mu.Lock()
	c.engineRef = c
	c.mu.Unlock()
}

// engineStop disengages engine ownership, destroying the context if the
// caller is already gone.
func (c *CallContext) engineStop() {
	c.mu.Lock()
	c.engineRef = nil
	drop := c.callerDone && !c.released
	if drop {
		c.released = true
	}
	c.mu.Unlock()
	if drop {
		c.destroy()
	}
}

// destroy releases the native transfer handle and the outbound header
// list handed to it. Runs exactly once, only after both owners are gone;
// received results stay readable.
func (c *CallContext) destroy() {
	c.transfer = nil
	c.headers = nil
	liveContexts.Add(-1)
}

// reserve grows the response buffer capacity.
func (c *CallContext) reserve(n int) {
	if n <= cap(c.rx) {
		return
	}
	buf := make([]byte, len(c.rx), n)
	copy(buf, c.rx)
	c.rx = buf
}

// finalize copies the transfer outcome into the context. Reactor goroutine
// only; runs at most once per context.
func (c *CallContext) finalize(t *engine.Transfer, end time.Time) {
	c.endTS = end
	c.rxHeaders = t.Headers()
	c.httpResult = t.Status()
	if err := t.Err(); err != nil {
		c.transportOK = false
		c.transportErr = err
	} else {
		c.transportOK = true
	}
	c.finalized = true
}
