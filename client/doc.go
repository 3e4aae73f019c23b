// File: client/doc.go
// Package client
// License: Apache-2.0

// Package client adapts a multi-transfer HTTP engine to an externally owned
// single-threaded reactor. The engine expects to be told, via callbacks,
// when to watch sockets and when to re-run after a timeout; the reactor
// expects sockets to be registered and readiness delivered asynchronously.
// The client bridges the two driving models: all engine progress, registry
// mutation, and completion dispatch happen on the reactor goroutine, while
// hand-offs and the process-wide context counter are the only state touched
// from other goroutines.
//
// Typical use:
//
//	loop, _ := reactor.NewLoop()
//	go loop.Run()
//	cl := client.New(loop, nil)
//	ctx := client.NewCallContext("GET", "http://example.org/", nil, time.Second)
//	ctx, err := cl.Perform(ctx)
//	if err == nil && ctx.Ok() {
//		fmt.Println(ctx.RxContent())
//	}
//	ctx.Close()
package client
