// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSemaphoreBasic(t *testing.T) {
	sem := newSemaphore(0)
	if sem.tryAcquire() {
		t.Fatalf("tryAcquire on empty semaphore: want false")
	}
	sem.Signal(1)
	if !sem.tryAcquire() {
		t.Fatalf("tryAcquire after Signal(1): want true")
	}
}

func TestSemaphoreWaitUnblocksOnSignal(t *testing.T) {
	sem := newSemaphore(0)
	done := make(chan struct{})
	go func() {
		sem.Wait(0)
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("Wait returned before Signal")
	case <-time.After(20 * time.Millisecond):
	}

	sem.Signal(1)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Wait did not unblock after Signal")
	}
}

// TestSemaphoreNoLostSignal checks that a signal racing with wait is never
// lost: every permit signaled is eventually acquired by exactly one waiter.
func TestSemaphoreNoLostSignal(t *testing.T) {
	sem := newSemaphore(0)
	const n = 200
	var acquired atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			sem.Wait(16)
			acquired.Add(1)
		}()
	}
	for range n {
		sem.Signal(1)
	}
	wg.Wait()
	if got := acquired.Load(); got != n {
		t.Fatalf("acquired=%d, want %d", got, n)
	}
}
