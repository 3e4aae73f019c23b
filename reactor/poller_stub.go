//go:build !linux

// File: reactor/poller_stub.go
// Package reactor
// License: Apache-2.0
//
// Non-Linux stub. The reactor needs epoll semantics; other platforms are
// not supported.

package reactor

import (
	"github.com/bitbouncer/deprecated-csi-http-client/api"
)

const maxPollEvents = 128

type pollEvent struct {
	fd       int
	readable bool
	writable bool
	hangup   bool
}

type poller struct{}

func newPoller() (*poller, error) { return nil, api.ErrNotSupported }

func (p *poller) wake()                                   {}
func (p *poller) arm(int, api.SocketInterest, bool) error { return api.ErrNotSupported }
func (p *poller) del(int)                                 {}
func (p *poller) closeFD(int)                             {}
func (p *poller) wait(int, []pollEvent) (int, error)      { return 0, api.ErrNotSupported }
func (p *poller) close()                                  {}
