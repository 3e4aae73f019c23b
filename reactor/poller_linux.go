//go:build linux

// File: reactor/poller_linux.go
// Package reactor
// License: Apache-2.0
//
// Linux epoll poller. Readiness waits are armed with EPOLLONESHOT so the
// caller decides, after every event, whether the same interest is still
// wanted. A nonblocking eventfd doubles as the cross-goroutine wakeup pipe.

package reactor

import (
	"encoding/binary"
	"fmt"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"golang.org/x/sys/unix"
)

const maxPollEvents = 128

// pollEvent is one readiness notification translated out of epoll terms.
type pollEvent struct {
	fd       int
	readable bool
	writable bool
	hangup   bool
}

type poller struct {
	epfd   int
	wakefd int
	events []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wakeup: %w", err)
	}
	return &poller{
		epfd:   epfd,
		wakefd: wakefd,
		events: make([]unix.EpollEvent, maxPollEvents),
	}, nil
}

// wake interrupts a blocked wait from another goroutine.
func (p *poller) wake() {
	var one [8]byte
	binary.LittleEndian.PutUint64(one[:], 1)
	_, _ = unix.Write(p.wakefd, one[:])
}

// arm installs a one-shot readiness wait for fd. interest InterestNone
// leaves the registration in place but disarmed.
func (p *poller) arm(fd int, interest api.SocketInterest, known bool) error {
	var ev unix.EpollEvent
	ev.Events = unix.EPOLLONESHOT
	if interest.WantRead() {
		ev.Events |= unix.EPOLLIN | unix.EPOLLRDHUP
	}
	if interest.WantWrite() {
		ev.Events |= unix.EPOLLOUT
	}
	ev.Fd = int32(fd)

	op := unix.EPOLL_CTL_ADD
	if known {
		op = unix.EPOLL_CTL_MOD
	}
	if err := unix.EpollCtl(p.epfd, op, fd, &ev); err != nil {
		return fmt.Errorf("epoll ctl arm fd=%d: %w", fd, err)
	}
	return nil
}

// del removes fd from the epoll set. Errors are deliberately ignored: the
// descriptor may already be gone.
func (p *poller) del(fd int) {
	_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// closeFD releases a descriptor owned by a socket wrapper.
func (p *poller) closeFD(fd int) {
	_ = unix.Close(fd)
}

// wait blocks for up to timeoutMs (-1 = indefinitely) and translates the
// raw epoll events into out. Wakeup-eventfd events are drained internally
// and not reported.
func (p *poller) wait(timeoutMs int, out []pollEvent) (int, error) {
	n, err := unix.EpollWait(p.epfd, p.events, timeoutMs)
	if err != nil {
		if err == unix.EINTR {
			return 0, nil
		}
		return 0, fmt.Errorf("epoll wait: %w", err)
	}

	filled := 0
	for i := 0; i < n && filled < len(out); i++ {
		ev := p.events[i]
		if int(ev.Fd) == p.wakefd {
			var buf [8]byte
			_, _ = unix.Read(p.wakefd, buf[:])
			continue
		}
		pe := pollEvent{fd: int(ev.Fd)}
		if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
			pe.readable = true
		}
		if ev.Events&unix.EPOLLOUT != 0 {
			pe.writable = true
		}
		if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
			// Error conditions surface through the next read/write attempt.
			pe.hangup = true
			pe.readable = true
			pe.writable = true
		}
		out[filled] = pe
		filled++
	}
	return filled, nil
}

func (p *poller) close() {
	_ = unix.Close(p.wakefd)
	_ = unix.Close(p.epfd)
}
