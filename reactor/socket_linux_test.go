//go:build linux

// Copyright Apache-2.0.

// socket_linux_test.go — Socket wrapper: one-shot readiness delivery,
// re-arming, idempotent close.
package reactor

import (
	"testing"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"golang.org/x/sys/unix"
)

func socketPair(t *testing.T) (int, int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	return fds[0], fds[1]
}

func TestSocket_WatchDeliversReadable(t *testing.T) {
	l := startLoop(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	events := make(chan Readiness, 1)
	_ = l.Post(func() {
		s := l.NewSocket(a)
		if err := s.Watch(api.InterestRead, func(r Readiness) { events <- r }); err != nil {
			t.Errorf("Watch: %v", err)
		}
	})

	if _, err := unix.Write(b, []byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case r := <-events:
		if !r.Readable {
			t.Errorf("expected readable event, got %+v", r)
		}
	case <-time.After(time.Second):
		t.Fatal("readiness not delivered")
	}
}

func TestSocket_WatchIsOneShot(t *testing.T) {
	l := startLoop(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	events := make(chan Readiness, 4)
	_ = l.Post(func() {
		s := l.NewSocket(a)
		_ = s.Watch(api.InterestRead, func(r Readiness) { events <- r })
	})

	_, _ = unix.Write(b, []byte("x"))
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("first event not delivered")
	}

	// Data still pending, but the watch was one-shot and never re-armed.
	select {
	case <-events:
		t.Error("one-shot watch delivered a second event without re-arm")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSocket_CloseIdempotent(t *testing.T) {
	l := startLoop(t)
	a, b := socketPair(t)
	defer unix.Close(b)

	done := make(chan struct{})
	_ = l.Post(func() {
		s := l.NewSocket(a)
		_ = s.Watch(api.InterestRead, func(Readiness) {})
		s.Close()
		s.Close()
		close(done)
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("close did not run")
	}
}
