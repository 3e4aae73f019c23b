//go:build !linux

// File: internal/engine/conn_stub.go
// Package engine
// License: Apache-2.0
//
// Non-Linux stub: the engine needs raw nonblocking descriptors.

package engine

import (
	"net"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
)

func (t *Transfer) connectStart(*net.TCPAddr) (int, error) { return -1, api.ErrNotSupported }
func (t *Transfer) connectCheck() error                    { return api.ErrNotSupported }
func (t *Transfer) sendSome() (bool, error)                { return false, api.ErrNotSupported }
func (t *Transfer) readSome() (bool, error)                { return false, api.ErrNotSupported }
