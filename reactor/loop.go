// File: reactor/loop.go
// Package reactor
// License: Apache-2.0
//
// The cooperative loop itself: posted-operation FIFO, timer heap, poller.

package reactor

import (
	"bytes"
	"container/heap"
	"log"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/eapache/queue/v2"
)

// Loop is a single-threaded cooperative reactor. All callbacks run on the
// goroutine that called Run.
type Loop struct {
	poll *poller

	mu      sync.Mutex
	pending *queue.Queue[func()]

	// Loop-goroutine state, never touched from outside.
	timers  timerHeap
	sockets map[int]*Socket

	gid     atomic.Int64
	running atomic.Bool
	stopped atomic.Bool
}

// NewLoop creates a loop ready to Run.
func NewLoop() (*Loop, error) {
	p, err := newPoller()
	if err != nil {
		return nil, err
	}
	return &Loop{
		poll:    p,
		pending: queue.New[func()](),
		sockets: make(map[int]*Socket),
	}, nil
}

// Run drives the loop until Stop is called. It must be invoked on exactly
// one goroutine, which becomes the loop goroutine.
func (l *Loop) Run() error {
	if !l.running.CompareAndSwap(false, true) {
		return nil
	}
	l.gid.Store(goroutineID())
	defer l.poll.close()

	events := make([]pollEvent, maxPollEvents)
	for {
		l.runPending()
		if l.stopped.Load() {
			return nil
		}
		l.fireTimers(time.Now())

		n, err := l.poll.wait(l.nextTimerMs(), events)
		if err != nil {
			log.Printf("[reactor] %v", err)
			continue
		}
		l.fireTimers(time.Now())
		for i := 0; i < n; i++ {
			l.deliver(events[i])
		}
	}
}

// Stop makes Run return after the current iteration. Posted operations that
// have not run yet are dropped.
func (l *Loop) Stop() {
	if l.stopped.CompareAndSwap(false, true) {
		l.poll.wake()
	}
}

// Post queues fn for execution on the loop goroutine. Safe to call from any
// goroutine; operations posted from one goroutine run in post order.
func (l *Loop) Post(fn func()) error {
	if l.stopped.Load() {
		return api.ErrLoopStopped
	}
	l.mu.Lock()
	l.pending.Add(fn)
	l.mu.Unlock()
	l.poll.wake()
	return nil
}

// Dispatch runs fn inline when called on the loop goroutine, otherwise
// posts it.
func (l *Loop) Dispatch(fn func()) error {
	if l.OnLoop() {
		fn()
		return nil
	}
	return l.Post(fn)
}

// OnLoop reports whether the caller is the loop goroutine.
func (l *Loop) OnLoop() bool {
	return l.gid.Load() != 0 && l.gid.Load() == goroutineID()
}

func (l *Loop) runPending() {
	for {
		l.mu.Lock()
		if l.pending.Length() == 0 {
			l.mu.Unlock()
			return
		}
		fn := l.pending.Remove()
		l.mu.Unlock()
		fn()
	}
}

// nextTimerMs returns the poll timeout to the nearest timer, -1 when no
// timer is armed.
func (l *Loop) nextTimerMs() int {
	if l.timers.Len() == 0 {
		return -1
	}
	d := time.Until(l.timers[0].when)
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	return ms
}

func (l *Loop) fireTimers(now time.Time) {
	for l.timers.Len() > 0 && !l.timers[0].when.After(now) {
		lt := heap.Pop(&l.timers).(*loopTimer)
		lt.index = -1
		lt.fn()
	}
}

func (l *Loop) deliver(ev pollEvent) {
	s := l.sockets[ev.fd]
	if s == nil || s.closed || s.cb == nil {
		return
	}
	s.cb(Readiness{Readable: ev.readable, Writable: ev.writable, Hangup: ev.hangup})
}

// goroutineID extracts the numeric goroutine id from the stack header. Used
// only to detect re-entry onto the loop goroutine.
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	fields := bytes.Fields(buf[:n])
	if len(fields) < 2 {
		return 0
	}
	id, err := strconv.ParseInt(string(fields[1]), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
