// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

// Spread runs a data-parallel loop of iterations steps, splitting
// [0, iterations) across the shop's workers and the calling goroutine and
// handing each slice to work(start, end). It does not return until every
// slice has completed or been run directly by the caller (spec.md §4.5).
//
// parallelizable optionally supplies the minimum number of iterations
// worth parallelizing as one unit (default 1): a larger value favors fewer,
// larger chunks over maximal fan-out.
//
// Spread returns false if a chunk could not be enqueued under memory
// pressure, or if the shop has been closed; in both cases every iteration
// still runs (the remainder sequentially on the caller), but the caller may
// want to note the failure.
func (s *Shop) Spread(iterations uint32, work func(start, end uint32), parallelizable ...uint32) bool {
	if iterations == 0 {
		return true
	}
	if s.exit.LoadAcquire() {
		// No worker is left to service an enqueue: run in place and report
		// the misuse rather than enqueueing into a queue nobody drains.
		work(0, iterations)
		return false
	}

	parallelizableCount := uint32(1)
	if len(parallelizable) > 0 && parallelizable[0] > 0 {
		parallelizableCount = parallelizable[0]
	}

	numWorkers := len(s.workers)
	workItems := s.workItems.LoadAcquire()
	preExisting := workItems != 0

	if preExisting && (numWorkers == 0 || s.callerIsWorker()) {
		work(0, iterations)
		return true
	}

	freeWorkers := numWorkers - int(workItems)
	if freeWorkers < 0 {
		freeWorkers = 0
	}
	maxWorkParts := freeWorkers
	if maxWorkParts == 0 {
		maxWorkParts = numWorkers
	}
	if maxWorkParts == 0 {
		// No worker threads at all: a caller-only shop runs everything
		// sequentially in place.
		work(0, iterations)
		return true
	}
	useCallerThread := s.cfg.useCallerThread && freeWorkers > 0

	if hmp := s.hmp.Load(); hmp != nil && !preExisting {
		return s.spreadHMP(*hmp, iterations, work, parallelizableCount, useCallerThread)
	}

	// spec.md §4.5 step 2's third bullet: once pre-existing work is
	// detected but the caller is not itself a worker, subsequent chunks
	// skip per-worker targeting and go straight to the shared queue.
	forceShared := preExisting

	return s.spreadDefault(iterations, work, parallelizableCount, maxWorkParts, useCallerThread, preExisting, forceShared)
}

// callerIsWorker reports whether the calling goroutine is itself one of the
// shop's own workers (a chunk recursively calling Spread on its own shop).
// See spec.md §9's recursion-safety requirement.
func (s *Shop) callerIsWorker() bool {
	id := currentGoroutineID()
	for _, w := range s.workers {
		select {
		case <-w.idReady:
		default:
			continue // not started yet, cannot be the caller
		}
		if w.goroutineID == id {
			return true
		}
	}
	return false
}

func (s *Shop) spreadDefault(iterations uint32, work func(start, end uint32), parallelizableCount uint32, maxWorkParts int, useCallerThread bool, preExisting bool, forceShared bool) bool {
	numberOfWorkParts := iterations / parallelizableCount
	if numberOfWorkParts == 0 {
		numberOfWorkParts = 1
	}
	if numberOfWorkParts > uint32(maxWorkParts) {
		numberOfWorkParts = uint32(maxWorkParts)
	}

	dispatchParts := numberOfWorkParts
	if useCallerThread {
		if dispatchParts > 1 {
			dispatchParts--
		} else {
			dispatchParts = 0
		}
	}
	if dispatchParts == 0 {
		work(0, iterations)
		return true
	}

	totalParts := dispatchParts
	if useCallerThread {
		totalParts++
	}
	topChunks := planChunks(iterations, totalParts)

	callerChunk, enqueueChunks := chunkRange{}, topChunks
	if useCallerThread {
		callerChunk = topChunks[len(topChunks)-1]
		enqueueChunks = topChunks[:len(topChunks)-1]
	}

	// Work-stealing subdivision (spec.md §4.5 step 6): split each macro
	// chunk further so idle workers have something to steal from busy
	// neighbors. Only applied when the shop was otherwise quiescent.
	sliceDiv := uint32(1)
	if !preExisting && len(enqueueChunks) > 0 {
		avgLen := iterations / uint32(len(enqueueChunks))
		if avgLen == 0 {
			avgLen = 1
		}
		div := s.stealingDivision.LoadAcquire()
		if div > stealingDivisionMax {
			div = stealingDivisionMax
		}
		sliceDiv = uint32(div)
		if sliceDiv > avgLen {
			sliceDiv = avgLen
		}
		if sliceDiv < 1 {
			sliceDiv = 1
		}
	}

	pieces := make([]chunkRange, 0, uint32(len(enqueueChunks))*sliceDiv)
	for _, macro := range enqueueChunks {
		if sliceDiv <= 1 {
			pieces = append(pieces, macro)
			continue
		}
		for _, sub := range planChunks(macro.stop-macro.start, sliceDiv) {
			pieces = append(pieces, chunkRange{start: macro.start + sub.start, stop: macro.start + sub.stop})
		}
	}

	barrier := newBarrier()
	barrier.UseSpinWait(s.cfg.spinBeforeSuspension)

	ok := s.enqueuePieces(pieces, work, barrier, forceShared)

	if useCallerThread {
		barrier.AddExpectedArrival()
		work(callerChunk.start, callerChunk.stop)
		barrier.Arrive()
	}

	s.callerSteal(barrier)
	s.join(barrier)

	return ok
}

// enqueuePieces publishes each range in pieces as a work item, stopping at
// the first enqueue failure and running that piece plus everything after
// it directly on the caller (spec.md §4.5's enqueue-failure recovery).
func (s *Shop) enqueuePieces(pieces []chunkRange, work func(start, end uint32), barrier *barrier, forceShared bool) bool {
	ok := true
	for _, p := range pieces {
		if !ok {
			work(p.start, p.stop)
			continue
		}
		barrier.AddExpectedArrival()
		item := workItem{spread: work, start: p.start, end: p.stop, barrier: barrier}
		var err error
		if forceShared {
			err = s.enqueueItemShared(&item)
		} else {
			err = s.enqueueItem(&item)
		}
		if err != nil {
			barrier.Arrive()
			ok = false
			work(p.start, p.stop)
		}
	}
	return ok
}

// enqueueItemShared always publishes to the shared steal queue, bypassing
// per-worker targeting. Used once pre-existing work has been observed on a
// non-worker caller (spec.md §4.5 step 2's third bullet).
func (s *Shop) enqueueItemShared(item *workItem) error {
	s.workItems.AddAcqRel(1)
	if err := s.shared.Enqueue(item); err != nil {
		s.workItems.AddAcqRel(-1)
		return err
	}
	s.wakeOneWorker()
	return nil
}

// enqueueItem publishes item to a worker's sub-queue under exact-worker
// selection, or to the shared steal queue otherwise. workItems is
// incremented before the enqueue attempt and rolled back on failure, per
// the increment-before-enqueue ordering noted in DESIGN.md.
func (s *Shop) enqueueItem(item *workItem) error {
	s.workItems.AddAcqRel(1)

	if s.cfg.exactWorkerSelection && len(s.workers) > 0 {
		idx := int(s.nextWorker.Add(1)-1) % len(s.workers)
		w := s.workers[idx]
		if err := w.sub.Enqueue(item); err != nil {
			s.workItems.AddAcqRel(-1)
			return err
		}
		w.signal()
		return nil
	}

	if err := s.shared.Enqueue(item); err != nil {
		s.workItems.AddAcqRel(-1)
		return err
	}
	s.wakeOneWorker()
	return nil
}

func (s *Shop) wakeOneWorker() {
	if len(s.workers) == 0 {
		return
	}
	idx := int(s.nextWorker.Add(1)-1) % len(s.workers)
	s.workers[idx].signal()
}

// callerSteal lets the calling goroutine drain the shared steal queue
// while waiting on barrier, serialized against other concurrently
// spreading callers via stealMu (spec.md §4.5 step 9).
func (s *Shop) callerSteal(barrier *barrier) {
	for barrier.counter.LoadAcquire() > 0 {
		s.stealMu.Lock()
		item, err := s.shared.Dequeue()
		s.stealMu.Unlock()
		if err != nil {
			return
		}
		item.run()
		s.workItems.AddAcqRel(-1)
	}
}

// join waits for barrier to reach zero, spinning first if configured, and
// adapts stealingDivision based on whether the spin budget was exhausted
// (spec.md §4.5 step 10, §9).
func (s *Shop) join(barrier *barrier) {
	if !s.cfg.spinBeforeSuspension {
		barrier.Wait()
		return
	}

	stalled := barrier.SpinWait(s.cfg.callerSpinCount)
	if stalled {
		for {
			cur := s.stealingDivision.LoadAcquire()
			if cur >= stealingDivisionMax {
				break
			}
			if s.stealingDivision.CompareAndSwapAcqRel(cur, cur+1) {
				break
			}
		}
		barrier.Wait()
		return
	}

	for {
		cur := s.stealingDivision.LoadAcquire()
		if cur <= stealingDivisionMin {
			break
		}
		if s.stealingDivision.CompareAndSwapAcqRel(cur, cur-1) {
			break
		}
	}
}

// spreadHMP partitions iterations across HMP clusters proportionally to
// their configured power, then spreads each cluster's share across its own
// cores (spec.md §4.5 step 4).
func (s *Shop) spreadHMP(cfg hmpConfig, iterations uint32, work func(start, end uint32), parallelizableCount uint32, useCallerThread bool) bool {
	clusters := planHMP(cfg, iterations, parallelizableCount)
	if len(clusters) == 0 {
		work(0, iterations)
		return true
	}

	barrier := newBarrier()
	barrier.UseSpinWait(s.cfg.spinBeforeSuspension)

	ok := true
	workerCursor := 0
	var callerChunk *chunkRange

	for ci, cluster := range clusters {
		cores := cluster.cores
		if cores <= 0 {
			continue
		}
		perCore := planChunks(cluster.stop-cluster.start, uint32(cores))
		for pi, pc := range perCore {
			start, stop := cluster.start+pc.start, cluster.start+pc.stop
			if ci == 0 && pi == 0 && useCallerThread {
				cr := chunkRange{start: start, stop: stop}
				callerChunk = &cr
				continue
			}
			barrier.AddExpectedArrival()
			item := workItem{spread: work, start: start, end: stop, barrier: barrier}
			targetIdx := workerCursor % maxInt(len(s.workers), 1)
			workerCursor++
			if err := s.enqueueItemAt(&item, targetIdx); err != nil {
				barrier.Arrive()
				ok = false
				work(start, stop)
			}
		}
	}

	if callerChunk != nil {
		barrier.AddExpectedArrival()
		work(callerChunk.start, callerChunk.stop)
		barrier.Arrive()
	}

	s.callerSteal(barrier)
	s.join(barrier)
	return ok
}

func (s *Shop) enqueueItemAt(item *workItem, workerIdx int) error {
	s.workItems.AddAcqRel(1)
	if s.cfg.exactWorkerSelection && workerIdx >= 0 && workerIdx < len(s.workers) {
		w := s.workers[workerIdx]
		if err := w.sub.Enqueue(item); err != nil {
			s.workItems.AddAcqRel(-1)
			return err
		}
		w.signal()
		return nil
	}
	if err := s.shared.Enqueue(item); err != nil {
		s.workItems.AddAcqRel(-1)
		return err
	}
	s.wakeOneWorker()
	return nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// FireAndForget enqueues work to run asynchronously and returns immediately.
// work must not panic; see Dispatch if you need the result or need to
// observe a failure.
//
// Under exact-worker selection, FireAndForget always targets worker 0, per
// spec.md §4.6. A zero-worker (caller-only) shop has nobody to defer to, so
// work runs synchronously in that case instead of being enqueued to an
// unserviced queue (spec.md §4.6). FireAndForget returns false without
// running work if the shop has already been closed.
func (s *Shop) FireAndForget(work func()) bool {
	if s.exit.LoadAcquire() {
		return false
	}
	if len(s.workers) == 0 {
		work()
		return true
	}

	item := workItem{task: work}
	var err error
	if s.cfg.exactWorkerSelection {
		s.workItems.AddAcqRel(1)
		w := s.workers[0]
		if err = w.sub.Enqueue(&item); err != nil {
			s.workItems.AddAcqRel(-1)
		} else {
			w.signal()
		}
	} else {
		err = s.enqueueItem(&item)
	}
	return err == nil
}

// Dispatch enqueues work to run asynchronously and returns a [Future] for
// its result. If work panics, the future resolves with the recovered value
// wrapped in an error rather than propagating the panic into the worker
// goroutine. If work cannot be enqueued, the future resolves immediately
// with [ErrResourceExhausted]. A zero-worker (caller-only) shop has nobody
// to defer to, so work runs synchronously and the returned future is
// already resolved by the time Dispatch returns (spec.md §4.6). If the shop
// has already been closed, work never runs and the future resolves with
// [ErrShopClosed].
func Dispatch[R any](s *Shop, work func() R) *Future[R] {
	f := newFuture[R]()

	if s.exit.LoadAcquire() {
		var zero R
		f.resolve(zero, ErrShopClosed)
		return f
	}

	task := func() {
		var result R
		var rerr error
		func() {
			defer func() {
				if p := recover(); p != nil {
					rerr = panicError{p}
				}
			}()
			result = work()
		}()
		f.resolve(result, rerr)
	}

	if len(s.workers) == 0 {
		task()
		return f
	}

	item := workItem{task: task}
	if err := s.enqueueItem(&item); err != nil {
		var zero R
		f.resolve(zero, ErrResourceExhausted)
	}
	return f
}

type panicError struct{ v any }

func (p panicError) Error() string { return "sweatpool: dispatched work panicked" }

func (p panicError) Unwrap() error {
	if err, ok := p.v.(error); ok {
		return err
	}
	return nil
}
