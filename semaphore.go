// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import (
	"sync"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
)

// semaphore is a counting semaphore with spin-then-block wait semantics
// (spec.md §4.1). The value counts available permits and never goes below
// zero; goroutines parked waiting for a permit are counted separately in
// waiters. Go has no portable userspace futex in the
// standard library, so the parked phase is realized with a mutex/condition
// variable pair — the idiomatic substitute reached for throughout the
// examples pack wherever a blocking wait is needed and no futex is
// available.
type semaphore struct {
	value   atomix.Int64
	mu      sync.Mutex
	cond    *sync.Cond
	waiters int64
}

func newSemaphore(initial int64) *semaphore {
	s := &semaphore{}
	s.value.StoreRelaxed(initial)
	s.cond = sync.NewCond(&s.mu)
	return s
}

// Signal adds n permits (default 1) and wakes up to n parked waiters.
func (s *semaphore) Signal(n int64) {
	if n <= 0 {
		n = 1
	}
	s.value.AddAcqRel(n)

	s.mu.Lock()
	w := s.waiters
	s.mu.Unlock()
	if w == 0 {
		return
	}
	// sync.Cond has no "wake n" primitive: when n covers every parked waiter
	// this broadcasts, otherwise it signals n times. Every woken waiter
	// re-checks the value itself, and one that loses the race parks again.
	if n >= w {
		s.cond.Broadcast()
	} else {
		for range n {
			s.cond.Signal()
		}
	}
}

// Wait blocks until a permit is available, spinning first for spinCount
// iterations if spinCount > 0.
func (s *semaphore) Wait(spinCount int) {
	if spinCount > 0 {
		sw := spin.Wait{}
		for range spinCount {
			if s.tryAcquire() {
				return
			}
			sw.Once()
		}
	}

	s.mu.Lock()
	s.waiters++
	for !s.tryAcquire() {
		s.cond.Wait()
	}
	s.waiters--
	s.mu.Unlock()
}

// tryAcquire attempts the fast-path decrement; returns true on success.
func (s *semaphore) tryAcquire() bool {
	for {
		v := s.value.LoadAcquire()
		if v <= 0 {
			return false
		}
		if s.value.CompareAndSwapAcqRel(v, v-1) {
			return true
		}
	}
}
