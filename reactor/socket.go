// File: reactor/socket.go
// Package reactor
// License: Apache-2.0
//
// Socket wraps an already-connected descriptor for one-shot readiness
// watches. The wrapper owns the descriptor: Close releases it.

package reactor

import (
	"github.com/bitbouncer/deprecated-csi-http-client/api"
)

// Readiness describes one delivered readiness event.
type Readiness struct {
	Readable bool
	Writable bool
	Hangup   bool
}

// WatchFunc receives readiness events on the loop goroutine.
type WatchFunc func(Readiness)

// Socket is a loop-owned wrapper around a native descriptor. All methods
// must be called on the loop goroutine.
type Socket struct {
	loop       *Loop
	fd         int
	cb         WatchFunc
	registered bool
	closed     bool
}

// NewSocket wraps fd. The loop takes no interest in it until Watch is
// called.
func (l *Loop) NewSocket(fd int) *Socket {
	s := &Socket{loop: l, fd: fd}
	l.sockets[fd] = s
	return s
}

// FD returns the wrapped descriptor.
func (s *Socket) FD() int { return s.fd }

// Watch arms a one-shot readiness wait. The watch is not re-armed
// automatically: after an event is delivered the caller must Watch again if
// the same interest persists. InterestNone disarms.
func (s *Socket) Watch(interest api.SocketInterest, cb WatchFunc) error {
	if s.closed {
		return api.ErrBadHandle
	}
	s.cb = cb
	err := s.loop.poll.arm(s.fd, interest, s.registered)
	if err == nil {
		s.registered = true
	}
	return err
}

// Close cancels any pending watch and releases the descriptor. Idempotent.
func (s *Socket) Close() {
	if s.closed {
		return
	}
	s.closed = true
	if s.registered {
		s.loop.poll.del(s.fd)
	}
	delete(s.loop.sockets, s.fd)
	s.loop.poll.closeFD(s.fd)
}
