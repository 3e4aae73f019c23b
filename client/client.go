// File: client/client.go
// Package client
// License: Apache-2.0
//
// Client adapts the multi-transfer engine to an externally owned reactor:
// socket notifications become registry operations, timeout requests become
// reactor timers, and every progress call is followed by a completion sweep
// that drains finished transfers into user callbacks.

package client

import (
	"sync/atomic"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/bitbouncer/deprecated-csi-http-client/internal/engine"
	"github.com/bitbouncer/deprecated-csi-http-client/reactor"
	"github.com/rcrowley/go-metrics"
)

// Config holds client parameters, immutable per instance.
type Config struct {
	// KeepalivePeriod is the fixed idle tick that bounds worst-case latency
	// between reactor iterations and lets the engine notice expiry with no
	// socket activity.
	KeepalivePeriod time.Duration

	// MaxHeaderBytes bounds the response header block per transfer.
	MaxHeaderBytes int

	// RxReserve pre-sizes each context's response buffer at hand-off.
	RxReserve int

	// Metrics receives the client's gauges and counters.
	Metrics metrics.Registry
}

// DefaultConfig returns the default client parameters.
func DefaultConfig() *Config {
	return &Config{
		KeepalivePeriod: time.Second,
		MaxHeaderBytes:  64 << 10,
		RxReserve:       defaultRxReserve,
		Metrics:         metrics.DefaultRegistry,
	}
}

// Client is the dispatch facade. One instance owns one engine, one socket
// registry, and two timers, all touched only on the loop goroutine. The
// loop itself is borrowed, never owned.
type Client struct {
	loop     *reactor.Loop
	cfg      *Config
	multi    *engine.Multi
	registry *socketRegistry

	// Loop-goroutine state.
	pending   map[*engine.Transfer]*CallContext
	deadline  *reactor.Timer
	keepalive *reactor.Timer

	inflight atomic.Int64
	closed   atomic.Bool

	completed metrics.Counter
	failed    metrics.Counter
	rxBytes   metrics.Meter
}

// New creates a client on loop. The loop may be started before or after;
// requests handed off before Run are processed once it runs.
func New(loop *reactor.Loop, cfg *Config) *Client {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.KeepalivePeriod <= 0 {
		cfg.KeepalivePeriod = time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.DefaultRegistry
	}

	c := &Client{
		loop:    loop,
		cfg:     cfg,
		pending: make(map[*engine.Transfer]*CallContext),
	}
	c.registry = newSocketRegistry(loop)
	c.registry.onEvent = c.onSocketEvent
	c.multi = engine.NewMulti(engine.Callbacks{
		OpenSocket:  c.registry.open,
		CloseSocket: c.registry.closeFD,
		Socket:      c.registry.watch,
		Timer:       c.onTimerRequest,
	})

	c.completed = metrics.GetOrRegisterCounter("httpclient.transfers.completed", cfg.Metrics)
	c.failed = metrics.GetOrRegisterCounter("httpclient.transfers.failed", cfg.Metrics)
	c.rxBytes = metrics.GetOrRegisterMeter("httpclient.rx.bytes", cfg.Metrics)
	metrics.NewRegisteredFunctionalGauge("httpclient.contexts.live", cfg.Metrics, ContextCount)
	metrics.NewRegisteredFunctionalGauge("httpclient.transfers.inflight", cfg.Metrics, c.inflight.Load)

	_ = loop.Dispatch(c.armKeepalive)
	return c
}

// PerformAsync registers cb on the context, stamps its start time, engages
// engine ownership, and posts the hand-off onto the reactor. Safe to call
// from any goroutine; hand-offs are processed in post order. cb fires on
// the reactor goroutine, exactly once — unless the client is closed first,
// in which case it never fires.
func (c *Client) PerformAsync(ctx *CallContext, cb Callback) error {
	if ctx == nil || ctx.transfer == nil {
		return api.ErrBadHandle
	}
	if c.closed.Load() {
		return api.ErrClosed
	}
	ctx.callback = cb
	ctx.reserve(c.cfg.RxReserve)
	ctx.transfer.SetMaxHeaderBytes(c.cfg.MaxHeaderBytes)
	ctx.startTS = time.Now()
	ctx.engineStart()
	c.inflight.Add(1)
	if err := c.loop.Post(func() { c.perform(ctx) }); err != nil {
		c.inflight.Add(-1)
		ctx.engineStop()
		return err
	}
	return nil
}

// Perform is the synchronous convenience: it blocks the calling goroutine
// until the transfer completes and returns the same context, now populated.
// Calling it on the reactor goroutine is a caller error and fails with
// api.ErrLoopThread instead of deadlocking.
func (c *Client) Perform(ctx *CallContext) (*CallContext, error) {
	if c.loop.OnLoop() {
		return nil, api.ErrLoopThread
	}
	done := make(chan struct{})
	if err := c.PerformAsync(ctx, func(*CallContext) { close(done) }); err != nil {
		return nil, err
	}
	<-done
	return ctx, nil
}

// Close hard-stops the client: no new requests, both timers cancelled, all
// registry entries torn down. In-flight transfers are abandoned and their
// callbacks never fire. Idempotent.
func (c *Client) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.inflight.Store(0)
	_ = c.loop.Dispatch(func() {
		if c.deadline != nil {
			c.deadline.Stop()
		}
		if c.keepalive != nil {
			c.keepalive.Stop()
		}
		c.multi.CloseAll()
		c.registry.closeAll()
		for _, ctx := range c.pending {
			ctx.engineStop()
		}
		c.pending = make(map[*engine.Transfer]*CallContext)
	})
}

// Done reports whether no transfers remain outstanding. Non-blocking.
// Always true after Close, whose abandoned transfers no longer count.
func (c *Client) Done() bool {
	if c.closed.Load() {
		return true
	}
	return c.inflight.Load() == 0
}

// perform runs on the loop goroutine: the actual hand-off to the engine.
func (c *Client) perform(ctx *CallContext) {
	if c.closed.Load() {
		// Raced with Close: abandon silently.
		ctx.engineStop()
		return
	}
	c.pending[ctx.transfer] = ctx
	c.multi.Add(ctx.transfer)
	c.checkCompleted()
}

// onSocketEvent funnels a readiness notification into the engine, followed
// unconditionally by a completion sweep.
func (c *Client) onSocketEvent(fd int, r reactor.Readiness) {
	if c.closed.Load() {
		return
	}
	var events api.SocketInterest
	switch {
	case r.Readable && r.Writable:
		events = api.InterestReadWrite
	case r.Readable:
		events = api.InterestRead
	case r.Writable:
		events = api.InterestWrite
	}
	c.multi.SocketAction(fd, events)
	c.checkCompleted()
}

// onTimerRequest services the engine's timeout-change notification. A
// non-positive delay is run through the loop queue rather than a zero
// timer, which would re-enter the arm/fire cycle.
func (c *Client) onTimerRequest(d time.Duration) {
	if c.closed.Load() {
		return
	}
	if d < 0 {
		if c.deadline != nil {
			c.deadline.Stop()
		}
		return
	}
	if d == 0 {
		_ = c.loop.Post(c.onDeadline)
		return
	}
	if c.deadline == nil {
		c.deadline = c.loop.AfterFunc(d, c.onDeadline)
	} else {
		c.deadline.Reset(d)
	}
}

// onDeadline fires the engine's time-based progress with no specific socket
// ready.
func (c *Client) onDeadline() {
	if c.closed.Load() {
		return
	}
	c.multi.ActionTimeout()
	c.checkCompleted()
}

func (c *Client) armKeepalive() {
	if c.closed.Load() {
		return
	}
	c.keepalive = c.loop.AfterFunc(c.cfg.KeepalivePeriod, c.keepaliveTick)
}

// keepaliveTick fires on a fixed period regardless of engine requests and
// always re-arms itself unless the client is closing.
func (c *Client) keepaliveTick() {
	if c.closed.Load() {
		return
	}
	c.multi.ActionTimeout()
	c.checkCompleted()
	c.keepalive.Reset(c.cfg.KeepalivePeriod)
}

// checkCompleted drains the engine's finished queue: one progress call can
// finish multiple transfers, so every progress entry point ends here.
func (c *Client) checkCompleted() {
	for {
		t, ok := c.multi.PopFinished()
		if !ok {
			return
		}
		ctx := c.pending[t]
		delete(c.pending, t)
		if ctx == nil || ctx.finalized {
			continue
		}
		ctx.finalize(t, time.Now())
		if ctx.transportOK {
			c.completed.Inc(1)
		} else {
			c.failed.Inc(1)
		}
		c.rxBytes.Mark(int64(ctx.RxContentLength()))
		cb := ctx.callback
		ctx.engineStop()
		c.inflight.Add(-1)
		if cb != nil {
			cb(ctx)
		}
	}
}
