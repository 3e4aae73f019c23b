// File: internal/engine/doc.go
// Package engine
// License: Apache-2.0

// Package engine implements a nonblocking multi-transfer HTTP/1.x engine.
// It owns no threads and never sleeps: the host funnels socket readiness
// and timeouts into SocketAction/ActionTimeout and is told, through four
// callback slots, which descriptors to open, close, and watch, and when to
// come back. Finished transfers queue up until the host drains them with
// PopFinished.
//
// The engine speaks plain HTTP/1.1 over one fresh connection per transfer:
// no TLS, no connection reuse, no redirects. Those belong to the layers
// above or are out of scope entirely.
package engine
