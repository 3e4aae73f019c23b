// Copyright Apache-2.0.

// context_test.go — CallContext contract: ok() truth table, header lookup,
// live counter under concurrency, dual-ownership release.
package client

import (
	"sync"
	"testing"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_OkTruthTable(t *testing.T) {
	cases := []struct {
		transportOK bool
		status      int
		ok          bool
	}{
		{true, 200, true},
		{true, 204, true},
		{true, 299, true},
		{true, 199, false},
		{true, 300, false},
		{true, 304, false},
		{true, 404, false},
		{true, 500, false},
		{false, 200, false},
		{false, api.StatusUndefined, false},
	}
	for _, tc := range cases {
		c := NewCallContext("GET", "http://example.org/", nil, time.Second)
		c.transportOK = tc.transportOK
		c.httpResult = tc.status
		assert.Equal(t, tc.ok, c.Ok(), "transportOK=%v status=%d", tc.transportOK, tc.status)
		if !tc.transportOK {
			assert.False(t, c.Ok(), "ok() must imply transport success")
		}
		c.Close()
	}
}

func TestContext_RxHeaderLookup(t *testing.T) {
	c := NewCallContext("GET", "http://example.org/", nil, time.Second)
	defer c.Close()
	c.rxHeaders = []api.Header{
		{Name: "Content-Type", Value: "text/plain"},
		{Name: "X-Dup", Value: "first"},
		{Name: "X-Dup", Value: "second"},
		{Name: "X-Empty", Value: ""},
	}

	assert.Equal(t, "text/plain", c.RxHeader("content-type"), "lookup is case-insensitive")
	assert.Equal(t, "first", c.RxHeader("x-dup"), "first occurrence wins")
	// Absent and present-but-empty are indistinguishable through RxHeader.
	assert.Equal(t, "", c.RxHeader("X-Empty"))
	assert.Equal(t, "", c.RxHeader("X-Missing"))
	assert.Len(t, c.RxHeaders(), 4)
}

func TestContext_LiveCounterConcurrent(t *testing.T) {
	base := ContextCount()

	const workers = 16
	const perWorker = 50
	var wg sync.WaitGroup
	kept := make(chan *CallContext, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				c := NewCallContext("GET", "http://example.org/", nil, time.Second)
				if i%2 == 0 {
					c.Close()
				} else {
					kept <- c
				}
			}
		}()
	}
	wg.Wait()
	close(kept)

	var open []*CallContext
	for c := range kept {
		open = append(open, c)
	}
	require.Equal(t, base+int64(len(open)), ContextCount(),
		"counter must equal constructions minus destructions")

	for _, c := range open {
		c.Close()
	}
	require.Equal(t, base, ContextCount())
}

func TestContext_EngineRetainDefersRelease(t *testing.T) {
	base := ContextCount()
	c := NewCallContext("GET", "http://example.org/", nil, time.Second)
	require.Equal(t, base+1, ContextCount())

	c.engineStart()
	c.Close() // caller gone, engine still holds a reference
	assert.Equal(t, base+1, ContextCount(), "context must stay alive while engine-retained")
	assert.NotNil(t, c.engineRef)

	c.engineStop()
	assert.Equal(t, base, ContextCount(), "context released once both owners are gone")
}

func TestContext_CloseIdempotent(t *testing.T) {
	base := ContextCount()
	c := NewCallContext("GET", "http://example.org/", nil, time.Second)
	c.Close()
	c.Close()
	assert.Equal(t, base, ContextCount())
}

func TestContext_BadURIYieldsUnusableHandle(t *testing.T) {
	c := NewCallContext("GET", "://not-a-uri", nil, time.Second)
	defer c.Close()
	assert.Nil(t, c.transfer)
	assert.Equal(t, api.StatusUndefined, c.HTTPResult())
	assert.False(t, c.TransportResult())
}

func TestContext_Timing(t *testing.T) {
	c := NewCallContext("GET", "http://example.org/", nil, time.Second)
	defer c.Close()
	c.startTS = time.Now()
	c.endTS = c.startTS.Add(250 * time.Millisecond)
	c.rx = make([]byte, 500)

	assert.Equal(t, int64(250), c.Milliseconds())
	assert.Equal(t, int64(250_000), c.Microseconds())
	assert.Equal(t, 2, c.RxKBPerSec(), "500 bytes over 250ms")
}
