// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue_test

import (
	"errors"
	"sync"
	"testing"

	"code.hybscloud.com/sweatpool/internal/queue"
)

func TestMPMCBasic(t *testing.T) {
	q := queue.NewMPMC[int](3)

	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}

	for i := range 4 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	v := 999
	if err := q.Enqueue(&v); !errors.Is(err, queue.ErrWouldBlock) {
		t.Fatalf("Enqueue on full: got %v, want ErrWouldBlock", err)
	}

	seen := make(map[int]bool)
	for range 4 {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		seen[got] = true
	}
	for i := range 4 {
		if !seen[i+100] {
			t.Fatalf("missing dequeued value %d", i+100)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, queue.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

func TestMPSCBasic(t *testing.T) {
	q := queue.NewMPSC[int](3)

	if q.Cap() != 4 {
		t.Fatalf("Cap: got %d, want 4", q.Cap())
	}

	for i := range 4 {
		v := i + 100
		if err := q.Enqueue(&v); err != nil {
			t.Fatalf("Enqueue(%d): %v", i, err)
		}
	}

	for i := range 4 {
		got, err := q.Dequeue()
		if err != nil {
			t.Fatalf("Dequeue(%d): %v", i, err)
		}
		if got != i+100 {
			t.Fatalf("Dequeue(%d): got %d, want %d", i, got, i+100)
		}
	}

	if _, err := q.Dequeue(); !errors.Is(err, queue.ErrWouldBlock) {
		t.Fatalf("Dequeue on empty: got %v, want ErrWouldBlock", err)
	}
}

// TestMPMCConcurrentNoDoubleDequeue stresses many producers and consumers
// against one MPMC queue and checks every enqueued value is observed exactly
// once, grounding the "no double execution" invariant the dispatcher's
// shared steal queue depends on.
func TestMPMCConcurrentNoDoubleDequeue(t *testing.T) {
	const producers = 8
	const perProducer = 2000
	const total = producers * perProducer

	q := queue.NewMPMC[int](1024)

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := range producers {
		go func(p int) {
			defer wg.Done()
			for i := range perProducer {
				v := p*perProducer + i
				for q.Enqueue(&v) != nil {
					// backpressure: retry
				}
			}
		}(p)
	}

	seen := make([]int32, total)
	var seenMu sync.Mutex
	var consumerWg sync.WaitGroup
	consumed := 0
	var consumedMu sync.Mutex
	done := make(chan struct{})

	const consumers = 4
	consumerWg.Add(consumers)
	for range consumers {
		go func() {
			defer consumerWg.Done()
			for {
				select {
				case <-done:
					return
				default:
				}
				v, err := q.Dequeue()
				if err != nil {
					continue
				}
				seenMu.Lock()
				seen[v]++
				seenMu.Unlock()
				consumedMu.Lock()
				consumed++
				n := consumed
				consumedMu.Unlock()
				if n == total {
					close(done)
					return
				}
			}
		}()
	}

	wg.Wait()
	consumerWg.Wait()

	for i, c := range seen {
		if c != 1 {
			t.Fatalf("value %d seen %d times, want 1", i, c)
		}
	}
}
