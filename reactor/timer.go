// File: reactor/timer.go
// Package reactor
// License: Apache-2.0
//
// Heap-scheduled one-shot timers firing on the loop goroutine.

package reactor

import (
	"container/heap"
	"time"
)

// Timer is a one-shot timer owned by a loop. All methods must be called on
// the loop goroutine.
type Timer struct {
	loop *Loop
	lt   *loopTimer
}

// AfterFunc arms fn to run on the loop goroutine after d. Must be called on
// the loop goroutine; use Post/Dispatch to arm timers from outside.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	lt := &loopTimer{when: time.Now().Add(d), fn: fn}
	heap.Push(&l.timers, lt)
	return &Timer{loop: l, lt: lt}
}

// Stop cancels the timer if it has not fired yet.
func (t *Timer) Stop() {
	if t.lt.index >= 0 {
		heap.Remove(&t.loop.timers, t.lt.index)
		t.lt.index = -1
	}
}

// Reset re-arms the timer to fire after d, whether or not it already fired.
func (t *Timer) Reset(d time.Duration) {
	t.Stop()
	t.lt.when = time.Now().Add(d)
	heap.Push(&t.loop.timers, t.lt)
}

type loopTimer struct {
	when  time.Time
	fn    func()
	index int
}

type timerHeap []*loopTimer

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].when.Before(h[j].when) }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	lt := x.(*loopTimer)
	lt.index = len(*h)
	*h = append(*h, lt)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	lt := old[n-1]
	old[n-1] = nil
	lt.index = -1
	*h = old[:n-1]
	return lt
}
