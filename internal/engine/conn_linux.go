//go:build linux

// File: internal/engine/conn_linux.go
// Package engine
// License: Apache-2.0
//
// Raw nonblocking socket operations for a Transfer. The descriptor is
// created here but closed by the host (through the CloseSocket slot), which
// owns the reactor-side wrapper.

package engine

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// connectStart creates a nonblocking socket and begins connecting to addr.
// Returns the descriptor; completion is signalled by write readiness.
func (t *Transfer) connectStart(addr *net.TCPAddr) (int, error) {
	domain := unix.AF_INET
	if addr.IP.To4() == nil {
		domain = unix.AF_INET6
	}
	fd, err := unix.Socket(domain, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, fmt.Errorf("socket: %w", err)
	}

	var sa unix.Sockaddr
	if domain == unix.AF_INET {
		var sa4 unix.SockaddrInet4
		copy(sa4.Addr[:], addr.IP.To4())
		sa4.Port = addr.Port
		sa = &sa4
	} else {
		var sa6 unix.SockaddrInet6
		copy(sa6.Addr[:], addr.IP.To16())
		sa6.Port = addr.Port
		sa = &sa6
	}

	if err := unix.Connect(fd, sa); err != nil && err != unix.EINPROGRESS {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// connectCheck reads SO_ERROR once the socket reports writable.
func (t *Transfer) connectCheck() error {
	v, err := unix.GetsockoptInt(t.fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return err
	}
	if v != 0 {
		return unix.Errno(v)
	}
	return nil
}

// sendSome writes as much of the serialized request as the socket accepts.
// Returns true once the full request is out.
func (t *Transfer) sendSome() (bool, error) {
	for t.outOff < len(t.out) {
		n, err := unix.Write(t.fd, t.out[t.outOff:])
		if n > 0 {
			t.outOff += n
			continue
		}
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return false, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}

// readSome drains the socket into the response parser. Returns true when
// the response is complete.
func (t *Transfer) readSome() (bool, error) {
	var buf [16 << 10]byte
	for {
		n, err := unix.Read(t.fd, buf[:])
		if n > 0 {
			if ferr := t.parser.feed(buf[:n], t.sink); ferr != nil {
				return false, ferr
			}
			if t.parser.complete {
				return true, nil
			}
			continue
		}
		switch err {
		case unix.EAGAIN:
			return false, nil
		case unix.EINTR:
			continue
		case nil:
			// n == 0: peer closed the connection.
			if ferr := t.parser.finishEOF(); ferr != nil {
				return false, ferr
			}
			return true, nil
		default:
			return false, fmt.Errorf("read: %w", err)
		}
	}
}
