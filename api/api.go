// File: api/api.go
// Package api
// License: Apache-2.0
//
// Contracts shared between the transfer engine, the reactor, and the client
// adapter: socket interest values, the four engine notification slots, and
// the HTTP status sentinel. This package has no project imports by design.

package api

import "time"

// StatusUndefined is the HTTP result of a context whose transfer has not
// produced a status line (never started, still in flight, or failed at the
// transport level before any response arrived).
const StatusUndefined = 0

// SocketInterest describes which readiness conditions the engine wants to be
// notified about for a given socket descriptor.
type SocketInterest int

const (
	InterestNone SocketInterest = iota
	InterestRead
	InterestWrite
	InterestReadWrite
)

// WantRead reports whether read readiness is requested.
func (i SocketInterest) WantRead() bool {
	return i == InterestRead || i == InterestReadWrite
}

// WantWrite reports whether write readiness is requested.
func (i SocketInterest) WantWrite() bool {
	return i == InterestWrite || i == InterestReadWrite
}

func (i SocketInterest) String() string {
	switch i {
	case InterestNone:
		return "none"
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	case InterestReadWrite:
		return "read+write"
	}
	return "invalid"
}

// The four notification slots the transfer engine drives its host through.
// All of them are invoked on the reactor goroutine, possibly re-entrantly
// from within a progress call.
type (
	// OpenSocketFunc announces a freshly created, connecting descriptor the
	// host should wrap and track.
	OpenSocketFunc func(fd int)

	// CloseSocketFunc announces that the engine is finished with a
	// descriptor. Closing an unknown descriptor must be a no-op.
	CloseSocketFunc func(fd int)

	// SocketFunc announces the interest the engine currently has in a
	// descriptor. Readiness waits are one-shot: the engine re-issues the
	// interest after every progress call for descriptors it still watches.
	SocketFunc func(fd int, interest SocketInterest)

	// TimerFunc announces the delay after which the engine wants its
	// time-based progress entry point invoked. Zero means immediately, a
	// negative delay cancels any pending invocation.
	TimerFunc func(d time.Duration)
)

// Header is a single response header line. Order and duplicates are
// preserved exactly as received.
type Header struct {
	Name  string
	Value string
}
