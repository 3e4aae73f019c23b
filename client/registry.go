// File: client/registry.go
// Package client
// License: Apache-2.0
//
// socketRegistry maps engine socket descriptors to reactor socket wrappers.
// The wrappers are exclusively owned here: created when the engine
// announces a descriptor, destroyed when it signals closure. Reactor
// goroutine only.

package client

import (
	"log"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/bitbouncer/deprecated-csi-http-client/reactor"
)

type registryEntry struct {
	sock     *reactor.Socket
	interest api.SocketInterest
}

type socketRegistry struct {
	loop    *reactor.Loop
	onEvent func(fd int, r reactor.Readiness)
	entries map[int]*registryEntry
}

func newSocketRegistry(loop *reactor.Loop) *socketRegistry {
	return &socketRegistry{
		loop:    loop,
		entries: make(map[int]*registryEntry),
	}
}

// open wraps an already-connected descriptor supplied by the engine. At
// most one entry exists per descriptor; a duplicate open is ignored.
func (r *socketRegistry) open(fd int) {
	if _, ok := r.entries[fd]; ok {
		return
	}
	r.entries[fd] = &registryEntry{sock: r.loop.NewSocket(fd)}
}

// closeFD cancels pending watches and releases the wrapper. Closing a
// descriptor that was never mapped is a no-op, not an error: the engine may
// request closure of descriptors that never registered successfully.
func (r *socketRegistry) closeFD(fd int) {
	e := r.entries[fd]
	if e == nil {
		return
	}
	e.sock.Close()
	delete(r.entries, fd)
}

// watch arms the requested readiness interest. One-shot from the caller's
// perspective: after an event the engine re-issues the interest it still
// has, and the registry never re-arms on its own.
func (r *socketRegistry) watch(fd int, interest api.SocketInterest) {
	e := r.entries[fd]
	if e == nil {
		return
	}
	e.interest = interest
	var cb reactor.WatchFunc
	if interest != api.InterestNone {
		cb = func(ev reactor.Readiness) { r.onEvent(fd, ev) }
	}
	if err := e.sock.Watch(interest, cb); err != nil {
		log.Printf("[client] watch fd=%d %s: %v", fd, interest, err)
	}
}

// closeAll tears down every entry.
func (r *socketRegistry) closeAll() {
	for fd, e := range r.entries {
		e.sock.Close()
		delete(r.entries, fd)
	}
}

func (r *socketRegistry) size() int { return len(r.entries) }
