// File: reactor/doc.go
// Package reactor
// License: Apache-2.0

// Package reactor implements a single-threaded cooperative event loop:
// one goroutine owns an epoll instance, a timer heap, and a FIFO of posted
// operations, and every callback — socket readiness, timer expiry, posted
// work — runs on that goroutine. Cross-goroutine hand-off goes through
// Post, which is the only thread-safe entry point; everything else must be
// called on the loop goroutine.
//
// The loop is externally owned: callers construct it, run it on a goroutine
// of their choosing, and stop it when done. Components built on top of it
// (such as the HTTP client adapter) borrow the loop, they never manage its
// lifetime.
package reactor
