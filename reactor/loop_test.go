//go:build linux

// Copyright Apache-2.0.

// loop_test.go — Loop contract: post ordering, cross-goroutine wakeup,
// inline dispatch, timer expiry and cancellation.
package reactor

import (
	"sync"
	"testing"
	"time"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()
	l, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	go l.Run()
	t.Cleanup(l.Stop)
	return l
}

func TestLoop_PostOrdering(t *testing.T) {
	l := startLoop(t)

	const n = 200
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		i := i
		if err := l.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
			if i == n-1 {
				close(done)
			}
		}); err != nil {
			t.Fatalf("Post: %v", err)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posted operations did not run")
	}
	mu.Lock()
	defer mu.Unlock()
	for i := 0; i < n; i++ {
		if got[i] != i {
			t.Fatalf("post order violated at %d: got %d", i, got[i])
		}
	}
}

func TestLoop_PostWakesBlockedLoop(t *testing.T) {
	l := startLoop(t)

	// Let the loop block in the poller with no timers armed.
	time.Sleep(20 * time.Millisecond)

	start := time.Now()
	done := make(chan struct{})
	if err := l.Post(func() { close(done) }); err != nil {
		t.Fatalf("Post: %v", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("post did not wake the loop")
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("wakeup took %v", elapsed)
	}
}

func TestLoop_DispatchRunsInlineOnLoop(t *testing.T) {
	l := startLoop(t)

	inline := make(chan bool, 1)
	_ = l.Post(func() {
		ran := false
		_ = l.Dispatch(func() { ran = true })
		inline <- ran
	})
	select {
	case ran := <-inline:
		if !ran {
			t.Error("Dispatch on the loop goroutine did not run inline")
		}
	case <-time.After(time.Second):
		t.Fatal("dispatch probe did not run")
	}
}

func TestLoop_OnLoop(t *testing.T) {
	l := startLoop(t)

	if l.OnLoop() {
		t.Error("OnLoop true on a foreign goroutine")
	}
	res := make(chan bool, 1)
	_ = l.Post(func() { res <- l.OnLoop() })
	if !<-res {
		t.Error("OnLoop false on the loop goroutine")
	}
}

func TestLoop_PostAfterStop(t *testing.T) {
	l, err := NewLoop()
	if err != nil {
		t.Fatalf("NewLoop: %v", err)
	}
	go l.Run()
	l.Stop()
	time.Sleep(10 * time.Millisecond)
	if err := l.Post(func() {}); err != api.ErrLoopStopped {
		t.Errorf("Post after Stop: got %v, want ErrLoopStopped", err)
	}
}

func TestTimer_AfterFuncFires(t *testing.T) {
	l := startLoop(t)

	fired := make(chan time.Time, 1)
	start := time.Now()
	_ = l.Post(func() {
		l.AfterFunc(20*time.Millisecond, func() { fired <- time.Now() })
	})
	select {
	case at := <-fired:
		if at.Sub(start) < 15*time.Millisecond {
			t.Errorf("timer fired early: %v", at.Sub(start))
		}
	case <-time.After(time.Second):
		t.Fatal("timer did not fire")
	}
}

func TestTimer_StopPreventsFire(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{}, 1)
	_ = l.Post(func() {
		tm := l.AfterFunc(30*time.Millisecond, func() { fired <- struct{}{} })
		tm.Stop()
	})
	select {
	case <-fired:
		t.Error("stopped timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestTimer_ResetReArms(t *testing.T) {
	l := startLoop(t)

	var count int
	fired := make(chan struct{}, 2)
	_ = l.Post(func() {
		var tm *Timer
		tm = l.AfterFunc(10*time.Millisecond, func() {
			count++
			fired <- struct{}{}
			if count == 1 {
				tm.Reset(10 * time.Millisecond)
			}
		})
	})
	for i := 0; i < 2; i++ {
		select {
		case <-fired:
		case <-time.After(time.Second):
			t.Fatalf("timer firing %d did not happen", i+1)
		}
	}
}
