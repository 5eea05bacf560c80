// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import (
	"bytes"
	"runtime"
	"strconv"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/spin"
	"code.hybscloud.com/sweatpool/internal/queue"
)

// workItem is the type-erased unit of work the dispatcher enqueues, per
// spec.md §3. A closure plus two uint32s already fits comfortably in one
// cache line; Go's garbage collector owns its lifetime, so — unlike the
// inline-vs-heap storage the original data model describes — there is no
// separate "small callable" representation to engineer here. See
// SPEC_FULL.md §3 for why this is a deliberate simplification rather than a
// dropped invariant.
type workItem struct {
	// spread is set for a parallel-for chunk; it runs over [start, end) and
	// then arrives at barrier.
	spread  func(start, end uint32)
	start   uint32
	end     uint32
	barrier *barrier

	// task is set for a fire-and-forget or dispatch unit; spread and task
	// are mutually exclusive.
	task func()
}

func (w workItem) run() {
	if w.spread != nil {
		w.spread(w.start, w.end)
		if w.barrier != nil {
			w.barrier.Arrive()
		}
		return
	}
	w.task()
}

// worker is the record of spec.md §3: a goroutine, its wakeup signal, and
// its own producer sub-queue (the "producer token" of the original data
// model, realized as a dedicated [queue.MPSC] rather than a handle type —
// see DESIGN.md Open-question decisions).
type worker struct {
	index       int
	sub         *queue.MPSC[workItem]
	wake        chan struct{}  // nil when wakeSem is used instead
	wakeSem     *semaphore     // non-nil under slowThreadSignals
	goroutineID int64
	idReady     chan struct{}

	// retiring is set by Shop.SetMaxAllowedThreads/ConfigureHMP when this
	// worker is being removed from a live pool, as opposed to the whole
	// shop shutting down via Shop.exit.
	retiring atomix.Bool
	stopped  chan struct{}
}

func newWorker(index, subQueueCapacity int, slowThreadSignals bool) *worker {
	w := &worker{
		index:   index,
		sub:     queue.NewMPSC[workItem](subQueueCapacity),
		idReady: make(chan struct{}),
		stopped: make(chan struct{}),
	}
	if slowThreadSignals {
		w.wakeSem = newSemaphore(0)
	} else {
		w.wake = make(chan struct{}, 1)
	}
	return w
}

// signal wakes this worker if it is parked. Never blocks: the channel is
// buffered to depth 1, so a signal sent before the worker parks is not
// lost, it is simply observed the next time the worker reaches its wait
// point.
func (w *worker) signal() {
	if w.wakeSem != nil {
		w.wakeSem.Signal(1)
		return
	}
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// run is the worker loop of spec.md §4.7: drain the sub-queue, then the
// shared steal queue (decrementing workItems per unit executed); if still
// running, spin briefly re-attempting both queues (internal/queue exposes no
// non-destructive peek, so "polling for work" and "doing the work found"
// are the same operation here), then block on the wakeup signal.
func (w *worker) run(s *Shop) {
	w.goroutineID = currentGoroutineID()
	close(w.idReady)
	defer close(w.stopped)

	for {
		w.drain(s)

		if s.exit.LoadAcquire() {
			return
		}
		if w.retiring.LoadAcquire() {
			w.handOff(s)
			return
		}

		if s.cfg.spinBeforeSuspension && w.spinForWork(s) {
			continue
		}

		if s.exit.LoadAcquire() {
			return
		}
		if w.retiring.LoadAcquire() {
			w.handOff(s)
			return
		}

		if w.wakeSem != nil {
			w.wakeSem.Wait(0)
		} else {
			select {
			case <-w.wake:
			case <-s.exitCh:
			}
		}
	}
}

// retire asks this worker to stop accepting its sub-queue and exit,
// handing any remaining work to the shop's shared steal queue, then blocks
// until the worker goroutine has returned. Used by
// Shop.SetMaxAllowedThreads and Shop.ConfigureHMP to shrink a live pool
// without dropping enqueued work.
func (w *worker) retire(s *Shop) {
	w.retiring.StoreRelease(true)
	w.signal()
	<-w.idReady // retire is only meaningful once the worker has started
	<-w.stopped
}

// handOff moves every item still sitting in this worker's sub-queue onto
// the shop's shared steal queue, so a retiring worker never silently drops
// enqueued work.
func (w *worker) handOff(s *Shop) {
	for {
		item, err := w.sub.Dequeue()
		if err != nil {
			return
		}
		for s.shared.Enqueue(&item) != nil {
			runtime.Gosched()
		}
	}
}

// drain executes every work item immediately addressable through this
// worker's own sub-queue, then through the shared steal queue.
func (w *worker) drain(s *Shop) {
	for {
		item, err := w.sub.Dequeue()
		if err != nil {
			break
		}
		item.run()
		s.workItems.AddAcqRel(-1)
	}
	for {
		item, err := s.shared.Dequeue()
		if err != nil {
			break
		}
		item.run()
		s.workItems.AddAcqRel(-1)
	}
}

// spinForWork busy-polls both queues for up to the configured spin budget.
// Any item it finds is executed immediately rather than discarded, since
// the underlying queues have no side-effect-free peek. Returns true if any
// work was found (and therefore the worker should re-enter drain rather
// than park).
func (w *worker) spinForWork(s *Shop) bool {
	sw := spin.Wait{}
	found := false
	for range s.cfg.workerSpinCount {
		if s.exit.LoadAcquire() {
			return found
		}
		item, err := w.sub.Dequeue()
		if err == nil {
			item.run()
			s.workItems.AddAcqRel(-1)
			found = true
			continue
		}
		item, err = s.shared.Dequeue()
		if err == nil {
			item.run()
			s.workItems.AddAcqRel(-1)
			found = true
			continue
		}
		if found {
			return true
		}
		sw.Once()
	}
	return found
}

// currentGoroutineID returns an identifier stable for the lifetime of the
// calling goroutine, used only for the recursion-safety check of spec.md §9
// ("compare current_thread_id against each worker's thread id"). Go
// deliberately exposes no public goroutine-id API; this parses the header
// line of runtime.Stack's own output, the one sanctioned way to obtain it
// without an unsafe runtime dependency. It is only ever called once per
// worker (at startup) and once per Spread call that finds pre-existing work
// (never on the hot per-chunk path).
func currentGoroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return -1
	}
	return id
}
