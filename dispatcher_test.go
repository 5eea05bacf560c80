// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool_test

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"code.hybscloud.com/sweatpool"
)

func newTestShop(t *testing.T, opts ...sweatpool.Option) *sweatpool.Shop {
	t.Helper()
	opts = append([]sweatpool.Option{sweatpool.WithMaxHardwareConcurrency(4)}, opts...)
	s, err := sweatpool.New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// TestSpreadTotality checks that every index in [0, iterations) is visited
// exactly once, matching spec.md seed scenario's totality property.
func TestSpreadTotality(t *testing.T) {
	s := newTestShop(t)

	const n = 10_000
	var seen [n]atomic.Int32
	ok := s.Spread(n, func(start, end uint32) {
		for i := start; i < end; i++ {
			seen[i].Add(1)
		}
	})
	if !ok {
		t.Fatalf("Spread returned false")
	}
	for i := range seen {
		if v := seen[i].Load(); v != 1 {
			t.Fatalf("index %d visited %d times, want 1", i, v)
		}
	}
}

// TestSpreadZeroIterations checks the early-exit path.
func TestSpreadZeroIterations(t *testing.T) {
	s := newTestShop(t)
	called := false
	ok := s.Spread(0, func(start, end uint32) { called = true })
	if !ok || called {
		t.Fatalf("Spread(0): ok=%v called=%v, want ok=true called=false", ok, called)
	}
}

// TestSpreadHappensBefore checks that writes performed inside chunks are
// visible to the caller once Spread returns, without any additional
// synchronization.
func TestSpreadHappensBefore(t *testing.T) {
	s := newTestShop(t)

	const n = 5000
	data := make([]int, n)
	s.Spread(n, func(start, end uint32) {
		for i := start; i < end; i++ {
			data[i] = int(i) * 2
		}
	})
	for i, v := range data {
		if v != i*2 {
			t.Fatalf("data[%d]=%d, want %d", i, v, i*2)
		}
	}
}

// TestSpreadConcurrentCallers runs two concurrent Spread calls on the same
// shop and checks neither observes the other's range.
func TestSpreadConcurrentCallers(t *testing.T) {
	s := newTestShop(t)

	const n = 2000
	var a, b [n]atomic.Int32
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.Spread(n, func(start, end uint32) {
			for i := start; i < end; i++ {
				a[i].Add(1)
			}
		})
	}()
	go func() {
		defer wg.Done()
		s.Spread(n, func(start, end uint32) {
			for i := start; i < end; i++ {
				b[i].Add(1)
			}
		})
	}()
	wg.Wait()

	for i := 0; i < n; i++ {
		if a[i].Load() != 1 {
			t.Fatalf("a[%d]=%d, want 1", i, a[i].Load())
		}
		if b[i].Load() != 1 {
			t.Fatalf("b[%d]=%d, want 1", i, b[i].Load())
		}
	}
}

// TestFireAndForgetRecursiveSpread checks the recursion-safety property: a
// fire-and-forget task that itself calls Spread on the same shop must
// complete sequentially on its own worker, without deadlocking.
func TestFireAndForgetRecursiveSpread(t *testing.T) {
	s := newTestShop(t)

	done := make(chan struct{})
	var total atomic.Int64
	ok := s.FireAndForget(func() {
		defer close(done)
		s.Spread(50, func(start, end uint32) {
			total.Add(int64(end - start))
		})
	})
	if !ok {
		t.Fatalf("FireAndForget returned false")
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("recursive Spread inside FireAndForget deadlocked")
	}
	if total.Load() != 50 {
		t.Fatalf("total=%d, want 50", total.Load())
	}
}

// TestNestedSpreadOnWorker checks direct recursion: a chunk that calls
// Spread again on the same shop.
func TestNestedSpreadOnWorker(t *testing.T) {
	s := newTestShop(t)

	var inner atomic.Int64
	var invocations atomic.Int64
	ok := s.Spread(20, func(start, end uint32) {
		invocations.Add(1)
		// Each outer chunk re-spreads its own range: the sum across every
		// invocation must still telescope back to the outer total.
		s.Spread(end-start, func(innerStart, innerEnd uint32) {
			inner.Add(int64(innerEnd - innerStart))
		})
	})
	if !ok {
		t.Fatalf("outer Spread returned false")
	}
	if invocations.Load() == 0 {
		t.Fatalf("outer work closure was never invoked")
	}
	if got, want := inner.Load(), int64(20); got != want {
		t.Fatalf("inner total=%d, want %d", got, want)
	}
}

// TestDispatchResult checks that Dispatch's future resolves with the
// expected value.
func TestDispatchResult(t *testing.T) {
	s := newTestShop(t)

	f := sweatpool.Dispatch(s, func() int { return 21 * 2 })
	v, err := f.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if v != 42 {
		t.Fatalf("v=%d, want 42", v)
	}
}

// TestDispatchPanicRecovered checks that a panic inside dispatched work is
// captured in the future's error rather than crashing the worker.
func TestDispatchPanicRecovered(t *testing.T) {
	s := newTestShop(t)

	f := sweatpool.Dispatch(s, func() int {
		panic("boom")
	})
	_, err := f.Get()
	if err == nil {
		t.Fatalf("Get: want non-nil error after panic")
	}

	// The shop must still be usable after a dispatched panic.
	g := sweatpool.Dispatch(s, func() int { return 7 })
	v, err := g.Get()
	if err != nil || v != 7 {
		t.Fatalf("post-panic dispatch: v=%d err=%v", v, err)
	}
}

// TestSpreadCallerOnlyShop checks Spread on a zero-worker, caller-only
// shop runs entirely on the caller.
func TestSpreadCallerOnlyShop(t *testing.T) {
	s, err := sweatpool.New(sweatpool.WithMaxHardwareConcurrency(0), sweatpool.WithMinWorkers(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	var n atomic.Int64
	ok := s.Spread(100, func(start, end uint32) {
		n.Add(int64(end - start))
	})
	if !ok || n.Load() != 100 {
		t.Fatalf("ok=%v n=%d, want true 100", ok, n.Load())
	}
}

// TestFireAndForgetCallerOnlyShop checks FireAndForget on a zero-worker
// shop runs its task inline rather than enqueueing it to a queue nobody
// services.
func TestFireAndForgetCallerOnlyShop(t *testing.T) {
	s, err := sweatpool.New(sweatpool.WithMaxHardwareConcurrency(0), sweatpool.WithMinWorkers(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	ran := false
	ok := s.FireAndForget(func() { ran = true })
	if !ok || !ran {
		t.Fatalf("ok=%v ran=%v, want true true", ok, ran)
	}
	if got := s.NumberOfItems(); got != 0 {
		t.Fatalf("NumberOfItems=%d, want 0", got)
	}
}

// TestDispatchCallerOnlyShop checks Dispatch on a zero-worker shop runs
// work inline and returns an already-resolved future, rather than blocking
// forever on an unserviced queue.
func TestDispatchCallerOnlyShop(t *testing.T) {
	s, err := sweatpool.New(sweatpool.WithMaxHardwareConcurrency(0), sweatpool.WithMinWorkers(0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	f := sweatpool.Dispatch(s, func() int { return 9 })
	if !f.Done() {
		t.Fatalf("Dispatch on caller-only shop did not resolve")
	}
	v, err := f.Get()
	if err != nil || v != 9 {
		t.Fatalf("v=%d err=%v, want 9 nil", v, err)
	}
}

// TestOperationsAfterClose check that Spread, FireAndForget, and Dispatch
// reject a closed shop instead of enqueueing into a pool with no worker
// left to drain it.
func TestOperationsAfterClose(t *testing.T) {
	s, err := sweatpool.New(sweatpool.WithMaxHardwareConcurrency(4))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	ran := false
	ok := s.Spread(10, func(start, end uint32) { ran = true })
	if ok || !ran {
		t.Fatalf("Spread after Close: ok=%v ran=%v, want false true", ok, ran)
	}

	if s.FireAndForget(func() {}) {
		t.Fatalf("FireAndForget after Close: want false")
	}

	f := sweatpool.Dispatch(s, func() int { return 1 })
	_, err := f.Get()
	if !errors.Is(err, sweatpool.ErrShopClosed) {
		t.Fatalf("Dispatch after Close: err=%v, want ErrShopClosed", err)
	}

	if err := s.SetMaxAllowedThreads(1); !errors.Is(err, sweatpool.ErrShopClosed) {
		t.Fatalf("SetMaxAllowedThreads after Close: err=%v, want ErrShopClosed", err)
	}
	if err := s.ConfigureHMP(sweatpool.HMPInfo{Cores: [3]int{1, 0, 0}, Power: [3]float64{1, 0, 0}}, 0); !errors.Is(err, sweatpool.ErrShopClosed) {
		t.Fatalf("ConfigureHMP after Close: err=%v, want ErrShopClosed", err)
	}
}

// TestNewWithHMPSizesPool checks that New sizes the pool from the HMP
// cluster core counts, the same way ConfigureHMP resizes an existing shop,
// rather than from the hardware concurrency probe.
func TestNewWithHMPSizesPool(t *testing.T) {
	info := sweatpool.HMPInfo{Cores: [3]int{4, 4, 0}, Power: [3]float64{1, 1, 0}}

	s, err := sweatpool.New(sweatpool.WithHMP(info), sweatpool.WithCallerThread(true))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Close()

	// One slot of the 8 total cores is reserved for the caller thread.
	if got, want := s.NumberOfWorkers(), uint16(7); got != want {
		t.Fatalf("NumberOfWorkers=%d, want %d", got, want)
	}
}

// TestNumberOfWorkersAndItems checks the basic accessors.
func TestNumberOfWorkersAndItems(t *testing.T) {
	s := newTestShop(t)
	if s.NumberOfWorkers() == 0 {
		t.Fatalf("NumberOfWorkers: want > 0")
	}
	s.Spread(1000, func(start, end uint32) {})
	// by the time Spread returns, all items have been drained
	if got := s.NumberOfItems(); got != 0 {
		t.Fatalf("NumberOfItems after Spread returned: got %d, want 0", got)
	}
}
