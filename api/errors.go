// File: api/errors.go
// Package api
// License: Apache-2.0
//
// Common error values used across the library.

package api

import "errors"

var (
	// ErrClosed is returned when an operation is attempted on a client that
	// has been hard-stopped.
	ErrClosed = errors.New("client is closed")

	// ErrBadHandle is returned when a call context carries no usable native
	// transfer handle (construction failed).
	ErrBadHandle = errors.New("invalid transfer handle")

	// ErrNotSupported marks transfers the engine cannot carry out, such as
	// https targets.
	ErrNotSupported = errors.New("operation not supported")

	// ErrOperationTimeout marks transfers that exceeded their deadline.
	ErrOperationTimeout = errors.New("operation timeout")

	// ErrLoopThread is returned by blocking entry points invoked from the
	// reactor goroutine, where blocking would deadlock the loop.
	ErrLoopThread = errors.New("blocking call on reactor goroutine")

	// ErrLoopStopped is returned when work is posted to a loop that has
	// already been stopped.
	ErrLoopStopped = errors.New("event loop is stopped")
)
