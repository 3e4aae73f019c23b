//go:build linux

// Copyright Apache-2.0.

// registry_test.go — descriptor map invariants: no residual entries,
// idempotent close, unknown-descriptor tolerance.
package client

import (
	"testing"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/bitbouncer/deprecated-csi-http-client/reactor"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// onLoop runs fn on the reactor goroutine and waits for it.
func onLoop(t *testing.T, loop *reactor.Loop, fn func()) {
	t.Helper()
	done := make(chan struct{})
	require.NoError(t, loop.Post(func() {
		fn()
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop operation did not run")
	}
}

func TestRegistry_OpenCloseLeavesNoEntry(t *testing.T) {
	loop := startLoop(t)
	reg := newSocketRegistry(loop)
	reg.onEvent = func(int, reactor.Readiness) {}

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	defer unix.Close(fds[1])

	onLoop(t, loop, func() {
		reg.open(fds[0])
		require.Equal(t, 1, reg.size())
		reg.open(fds[0]) // duplicate open is ignored
		require.Equal(t, 1, reg.size())

		reg.watch(fds[0], api.InterestRead)
		reg.closeFD(fds[0])
		require.Equal(t, 0, reg.size())
	})
}

func TestRegistry_CloseUnknownDescriptorIsNoop(t *testing.T) {
	loop := startLoop(t)
	reg := newSocketRegistry(loop)

	onLoop(t, loop, func() {
		reg.closeFD(424242)
		reg.watch(424242, api.InterestRead) // never-mapped watch is a no-op too
		require.Equal(t, 0, reg.size())
	})
}

func TestRegistry_CloseAll(t *testing.T) {
	loop := startLoop(t)
	reg := newSocketRegistry(loop)

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)

	onLoop(t, loop, func() {
		reg.open(fds[0])
		reg.open(fds[1])
		require.Equal(t, 2, reg.size())
		reg.closeAll()
		require.Equal(t, 0, reg.size())
	})
}
