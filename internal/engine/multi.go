// File: internal/engine/multi.go
// Package engine
// License: Apache-2.0
//
// Multi is the multi-transfer set: it owns every in-flight Transfer, drives
// their socket state machines from readiness and timeout notifications, and
// reports finished transfers through a drain queue. It never creates its
// own threads or blocks; the host funnels all calls through one reactor
// goroutine and is told what to watch via the four callback slots.

package engine

import (
	"fmt"
	"log"
	"net"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/eapache/queue/v2"
)

// Callbacks are the notification slots the Multi drives its host through.
// All four must be set.
type Callbacks struct {
	OpenSocket  api.OpenSocketFunc
	CloseSocket api.CloseSocketFunc
	Socket      api.SocketFunc
	Timer       api.TimerFunc
}

// Multi coordinates a set of concurrent transfers. Not safe for concurrent
// use: every method must be called from the same goroutine.
type Multi struct {
	cb       Callbacks
	byFD     map[int]*Transfer
	active   map[*Transfer]struct{}
	finished *queue.Queue[*Transfer]
}

// NewMulti creates an empty transfer set.
func NewMulti(cb Callbacks) *Multi {
	return &Multi{
		cb:       cb,
		byFD:     make(map[int]*Transfer),
		active:   make(map[*Transfer]struct{}),
		finished: queue.New[*Transfer](),
	}
}

// Add hands a transfer to the set and starts it: resolve, nonblocking
// connect, socket announcement. Failures never return as errors — the
// transfer is queued finished with its transport error set, exactly like a
// failure later in its life.
func (m *Multi) Add(t *Transfer) {
	m.active[t] = struct{}{}
	t.state = stateConnecting
	if t.timeout > 0 {
		t.deadline = time.Now().Add(t.timeout)
	}

	addr, err := m.resolve(t)
	if err != nil {
		m.fail(t, err)
		m.updateTimer()
		return
	}
	fd, err := t.connectStart(addr)
	if err != nil {
		m.fail(t, fmt.Errorf("connect %s: %w", addr, err))
		m.updateTimer()
		return
	}
	t.fd = fd
	m.byFD[fd] = t
	if t.verbose {
		log.Printf("[engine] %s %s: connecting fd=%d addr=%s", t.method, t.URI(), fd, addr)
	}
	m.cb.OpenSocket(fd)
	m.cb.Socket(fd, api.InterestWrite)
	m.updateTimer()
}

// Remove abandons a transfer: its socket is torn down and it is never
// reported finished. No-op for transfers already finished or unknown.
func (m *Multi) Remove(t *Transfer) {
	if _, ok := m.active[t]; !ok {
		return
	}
	delete(m.active, t)
	m.releaseSocket(t)
	t.state = stateDone
	t.done = true
}

// SocketAction is the readiness-driven progress entry point. events carries
// which conditions fired, encoded as a SocketInterest mask.
func (m *Multi) SocketAction(fd int, events api.SocketInterest) {
	if t, ok := m.byFD[fd]; ok {
		m.progress(t, events.WantRead(), events.WantWrite())
	}
	m.expire(time.Now())
	m.updateTimer()
}

// ActionTimeout is the time-based progress entry point ("no specific socket
// ready"): expire overdue transfers purely from elapsed time.
func (m *Multi) ActionTimeout() {
	m.expire(time.Now())
	m.updateTimer()
}

// PopFinished drains one finished transfer, in completion order.
func (m *Multi) PopFinished() (*Transfer, bool) {
	if m.finished.Length() == 0 {
		return nil, false
	}
	return m.finished.Remove(), true
}

// Running returns the number of transfers not yet finished or removed.
func (m *Multi) Running() int { return len(m.active) }

// CloseAll abandons every transfer and drops any undrained completions.
func (m *Multi) CloseAll() {
	for t := range m.active {
		m.releaseSocket(t)
		t.state = stateDone
		t.done = true
	}
	m.active = make(map[*Transfer]struct{})
	for m.finished.Length() > 0 {
		m.finished.Remove()
	}
	m.cb.Timer(-1)
}

func (m *Multi) resolve(t *Transfer) (*net.TCPAddr, error) {
	if t.url.Scheme != "http" {
		return nil, fmt.Errorf("%w: scheme %q", api.ErrNotSupported, t.url.Scheme)
	}
	host := t.url.Host
	if t.url.Port() == "" {
		host = net.JoinHostPort(t.url.Hostname(), "80")
	}
	addr, err := net.ResolveTCPAddr("tcp", host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	return addr, nil
}

func (m *Multi) progress(t *Transfer, readable, writable bool) {
	if t.state == stateConnecting && (writable || readable) {
		if err := t.connectCheck(); err != nil {
			m.fail(t, fmt.Errorf("connect %s: %w", t.url.Host, err))
			return
		}
		if t.verbose {
			log.Printf("[engine] %s %s: connected fd=%d", t.method, t.URI(), t.fd)
		}
		t.out = t.requestBytes()
		t.outOff = 0
		t.state = stateSending
		writable = true
	}

	if t.state == stateSending && writable {
		sent, err := t.sendSome()
		if err != nil {
			m.fail(t, fmt.Errorf("send: %w", err))
			return
		}
		if sent {
			if t.verbose {
				log.Printf("[engine] %s %s: request sent (%d bytes)", t.method, t.URI(), len(t.out))
			}
			t.state = stateReceiving
		}
	}

	if t.state == stateReceiving && readable {
		complete, err := t.readSome()
		if err != nil {
			m.fail(t, err)
			return
		}
		if complete {
			m.finishOK(t)
			return
		}
	}

	// One-shot waits: re-announce the interest the transfer still has.
	switch t.state {
	case stateConnecting, stateSending:
		m.cb.Socket(t.fd, api.InterestWrite)
	case stateReceiving:
		m.cb.Socket(t.fd, api.InterestRead)
	}
}

func (m *Multi) expire(now time.Time) {
	var overdue []*Transfer
	for t := range m.active {
		if !t.deadline.IsZero() && now.After(t.deadline) {
			overdue = append(overdue, t)
		}
	}
	for _, t := range overdue {
		m.fail(t, fmt.Errorf("%w after %v", api.ErrOperationTimeout, t.timeout))
	}
}

// updateTimer reports the delay to the nearest transfer deadline, or cancels
// the host timer when nothing is pending.
func (m *Multi) updateTimer() {
	var nearest time.Time
	for t := range m.active {
		if t.deadline.IsZero() {
			continue
		}
		if nearest.IsZero() || t.deadline.Before(nearest) {
			nearest = t.deadline
		}
	}
	if nearest.IsZero() {
		m.cb.Timer(-1)
		return
	}
	d := time.Until(nearest)
	if d < 0 {
		d = 0
	}
	m.cb.Timer(d)
}

func (m *Multi) finishOK(t *Transfer) {
	if t.done {
		return
	}
	if t.verbose {
		log.Printf("[engine] %s %s: finished status=%d", t.method, t.URI(), t.Status())
	}
	m.finish(t)
}

func (m *Multi) fail(t *Transfer, err error) {
	if t.done {
		return
	}
	t.err = err
	if t.verbose {
		log.Printf("[engine] %s %s: failed: %v", t.method, t.URI(), err)
	}
	m.finish(t)
}

// finish moves a transfer to the finished queue exactly once.
func (m *Multi) finish(t *Transfer) {
	t.done = true
	t.state = stateDone
	m.releaseSocket(t)
	delete(m.active, t)
	m.finished.Add(t)
}

func (m *Multi) releaseSocket(t *Transfer) {
	if t.fd < 0 {
		return
	}
	delete(m.byFD, t.fd)
	m.cb.CloseSocket(t.fd)
	t.fd = -1
}
