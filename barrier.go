// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import (
	"runtime"
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// barrier is the completion barrier of spec.md §4.2: a counter threads
// "arrive at", and a waiter blocks until the counter reaches zero.
//
// A barrier is created by [Shop.Spread] for each spread and its address is
// published into every chunk's work item before that chunk is enqueued;
// Spread does not return until Wait (or SpinWait) observes the counter at
// zero, which is what keeps that back-pointer valid for the barrier's
// entire lifetime.
type barrier struct {
	counter atomix.Int64
	useSpin bool
	mu      sync.Mutex
	cond    *sync.Cond
}

func newBarrier() *barrier {
	b := &barrier{useSpin: true}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Initialize sets the counter to n, the number of arrivals the barrier
// should expect. Must be called before the barrier is published to any
// chunk.
func (b *barrier) Initialize(n int64) {
	b.counter.StoreRelease(n)
}

// AddExpectedArrival increments the counter by one. Producers call this
// before enqueuing a chunk they have not yet published, keeping the
// invariant "counter >= number of chunks outstanding" at all times.
func (b *barrier) AddExpectedArrival() {
	b.counter.AddAcqRel(1)
}

// Arrive decrements the counter by one. In block mode, the last arrival
// wakes every waiter. Arrive must not touch the barrier after it observes
// it has made the last arrival: the waiter may destroy (stop referencing)
// the barrier the instant it observes zero.
func (b *barrier) Arrive() {
	if b.useSpin {
		b.counter.AddAcqRel(-1)
		return
	}
	b.mu.Lock()
	v := b.counter.AddAcqRel(-1)
	if v == 0 {
		b.cond.Broadcast()
	}
	b.mu.Unlock()
}

// UseSpinWait selects how Arrive reports arrivals. In spin mode (true, the
// default) Arrive only decrements the counter and never signals the
// condition variable, so a waiter must poll with SpinWait. In block mode
// (false) Arrive decrements under the mutex and broadcasts on the last
// arrival, which is what wakes Wait.
func (b *barrier) UseSpinWait(enabled bool) {
	b.useSpin = enabled
}

// SpinWait polls the counter for up to nopCount short pauses, then yields
// the goroutine until the counter reaches zero. It reports stalled=true if
// the spin budget was exhausted before the counter reached zero — the
// dispatcher uses this as a signal to increase work subdivision on the next
// spread (spec.md §4.2, §9).
func (b *barrier) SpinWait(nopCount int) (stalled bool) {
	sw := spin.Wait{}
	for range nopCount {
		if b.counter.LoadAcquire() <= 0 {
			return false
		}
		sw.Once()
	}
	for b.counter.LoadAcquire() > 0 {
		runtime.Gosched()
	}
	return true
}

// Wait blocks on the condition variable until the counter reaches zero.
// Only a block-mode Arrive broadcasts that condition variable, so in spin
// mode Wait returns only if the counter is already zero; the dispatcher
// calls it in spin mode only after SpinWait, which itself does not return
// before the counter reaches zero.
func (b *barrier) Wait() {
	b.mu.Lock()
	for b.counter.LoadAcquire() > 0 {
		b.cond.Wait()
	}
	b.mu.Unlock()
}
