// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import (
	"runtime"
	"sync"
	"sync/atomic"

	"code.hybscloud.com/atomix"
	"code.hybscloud.com/sweatpool/internal/affinity"
	"code.hybscloud.com/sweatpool/internal/hwprobe"
	"code.hybscloud.com/sweatpool/internal/plog"
	"code.hybscloud.com/sweatpool/internal/queue"
)

// stealingDivisionMin and stealingDivisionMax bound the adaptive
// subdivision factor Spread applies when splitting work beyond one chunk
// per worker, per spec.md §9: too few chunks starves the work-stealing
// path, too many turns enqueue overhead into the bottleneck.
const (
	stealingDivisionMin = 4
	stealingDivisionMax = 16
)

// Shop is a fixed-size worker pool. The zero value is not usable; construct
// one with [New].
type Shop struct {
	cfg config

	workers []*worker
	shared  *queue.MPMC[workItem]

	// workItems counts items enqueued but not yet executed, across both the
	// shared queue and every worker's sub-queue. Used by
	// [Shop.NumberOfItems] and by [Shop.SetMaxAllowedThreads]'s
	// idle-queue precondition.
	workItems atomix.Int64

	exit   atomix.Bool
	exitCh chan struct{}
	wg     sync.WaitGroup

	// stealingDivision is the caller's adaptive work-subdivision factor
	// (spec.md §9): increased when a spread stalls waiting on the
	// completion barrier, decayed gradually rather than reset so a single
	// quiet spread doesn't erase what busier ones learned.
	stealingDivision atomix.Int64

	// stealMu serializes callers racing each other on the shared steal
	// queue while each spins on its own completion barrier.
	stealMu sync.Mutex

	hmp atomic.Pointer[hmpConfig]

	// resizeMu serializes SetMaxAllowedThreads/ConfigureHMP against each
	// other. Spread, FireAndForget and Dispatch do not take it, so a
	// reconfiguration concurrent with them is not guarded by this lock.
	resizeMu sync.Mutex

	logger *plog.Logger

	nextWorker atomic.Uint64 // round-robin cursor for exact worker selection
}

// New constructs a [Shop] and starts its worker goroutines.
//
// If [WithHMP] is set, worker count comes from the cluster core counts (see
// [Shop.ConfigureHMP]). Otherwise it is [WithMaxHardwareConcurrency]'s value
// if explicitly set, otherwise the container-quota-aware concurrency probe
// (internal/hwprobe, backed by go.uber.org/automaxprocs), minus one if
// [WithCallerThread] is enabled (the default) and more than one worker
// would otherwise be spawned. If the result is zero, New returns
// [ErrNoWorkers] unless [WithMinWorkers] explicitly allows fewer.
func New(opts ...Option) (*Shop, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	logger := plog.New(nil)

	var hmpCfg *hmpConfig
	var n int
	if cfg.hmp != nil {
		// HMP sizes the pool itself, from cluster core counts rather than
		// the hardware-concurrency probe, matching ConfigureHMP's sizing so
		// the two entry points never disagree on worker count.
		h := newHMPConfig(*cfg.hmp)
		hmpCfg = &h
		n = h.workerCount(cfg.useCallerThread)
	} else {
		n = cfg.maxHardwareConcurrency
		if !cfg.maxHardwareConcurrencySet {
			n = hwprobe.Concurrency(plog.PrintfAdapter{L: logger})
		}
		if cfg.useCallerThread && n > 1 {
			n--
		}
	}
	if n < cfg.minWorkers {
		n = cfg.minWorkers
	}
	if n <= 0 && !cfg.minWorkersSet {
		return nil, ErrNoWorkers
	}

	s := &Shop{
		cfg:     cfg,
		shared:  queue.NewMPMC[workItem](cfg.sharedQueueCapacity),
		exitCh:  make(chan struct{}),
		logger:  logger,
		workers: make([]*worker, n),
	}
	s.stealingDivision.StoreRelaxed(stealingDivisionMin)
	if hmpCfg != nil {
		s.hmp.Store(hmpCfg)
	}

	for i := range s.workers {
		w := newWorker(i, cfg.subQueueCapacity, cfg.slowThreadSignals)
		s.workers[i] = w
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			w.run(s)
		}()
	}

	logger.Info().Int64("workers", int64(n)).Log("shop started")
	return s, nil
}

// NumberOfWorkers reports the number of worker goroutines in the shop.
func (s *Shop) NumberOfWorkers() uint16 {
	return uint16(len(s.workers))
}

// NumberOfItems reports the number of work items currently enqueued but
// not yet executed, across all queues. The count is approximate: concurrent
// Spread, FireAndForget and Dispatch calls can leave it momentarily over or
// under the true number.
func (s *Shop) NumberOfItems() uint16 {
	n := s.workItems.LoadAcquire()
	if n < 0 {
		n = 0
	}
	if n > 0xffff {
		n = 0xffff
	}
	return uint16(n)
}

// SetPriority applies level to every worker's OS thread scheduling
// priority. Returns false if the shop is closed, a worker's task could not
// be enqueued, or the platform has no priority syscall wired up
// (internal/affinity).
//
// Priority applies to the calling OS thread, so the change runs as a task on
// each worker's own goroutine rather than the caller's.
func (s *Shop) SetPriority(level Priority) bool {
	if s.exit.LoadAcquire() {
		return false
	}
	ok := true
	for _, w := range s.workers {
		done := make(chan error, 1)
		item := workItem{task: func() { done <- affinity.SetPriority(int(level)) }}
		s.workItems.AddAcqRel(1)
		if err := w.sub.Enqueue(&item); err != nil {
			s.workItems.AddAcqRel(-1)
			ok = false
			continue
		}
		w.signal()
		if <-done != nil {
			ok = false
		}
	}
	return ok
}

// BindWorkerToCPU pins the given worker's OS thread to cpuID. Returns
// false if workerIndex is out of range or the platform has no affinity
// syscall wired up.
//
// Affinity applies to the calling OS thread, so the bind runs as a task on
// the target worker's own goroutine rather than the caller's.
func (s *Shop) BindWorkerToCPU(workerIndex int, cpuID int) bool {
	if s.exit.LoadAcquire() || workerIndex < 0 || workerIndex >= len(s.workers) {
		return false
	}
	done := make(chan error, 1)
	item := workItem{task: func() { done <- affinity.BindToCPU(cpuID) }}
	w := s.workers[workerIndex]
	s.workItems.AddAcqRel(1)
	if err := w.sub.Enqueue(&item); err != nil {
		s.workItems.AddAcqRel(-1)
		return false
	}
	w.signal()
	return <-done == nil
}

// SetMaxAllowedThreads resizes the pool to n workers. Only legal on an idle
// shop (no pending work items) with HMP disabled.
func (s *Shop) SetMaxAllowedThreads(n int) error {
	if s.exit.LoadAcquire() {
		return ErrShopClosed
	}

	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()

	if s.hmp.Load() != nil {
		return ErrHMPEnabled
	}
	if s.workItems.LoadAcquire() != 0 {
		return ErrQueueNotEmpty
	}
	if n < 0 {
		n = 0
	}

	cur := len(s.workers)
	switch {
	case n == cur:
		return nil
	case n > cur:
		for i := cur; i < n; i++ {
			w := newWorker(i, s.cfg.subQueueCapacity, s.cfg.slowThreadSignals)
			s.workers = append(s.workers, w)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				w.run(s)
			}()
		}
	default:
		retiring := s.workers[n:]
		s.workers = s.workers[:n]
		for _, w := range retiring {
			w.retire(s)
		}
	}

	s.logger.Info().Int64("workers", int64(len(s.workers))).Log("pool resized")
	return nil
}

// ConfigureHMP enables or replaces the shop's heterogeneous
// multi-processing cluster layout. k is reserved for future use selecting
// among multiple HMP strategies and is currently ignored beyond validation
// (k must be >= 0).
//
// Only legal while no spread is in flight.
func (s *Shop) ConfigureHMP(info HMPInfo, k int) error {
	if s.exit.LoadAcquire() {
		return ErrShopClosed
	}
	if k < 0 {
		return ErrInvalidHMPConfig
	}
	if err := info.validate(); err != nil {
		return err
	}

	s.resizeMu.Lock()
	defer s.resizeMu.Unlock()

	if s.workItems.LoadAcquire() != 0 {
		return ErrPendingSpread
	}

	cfg := newHMPConfig(info)
	want := cfg.workerCount(s.cfg.useCallerThread)
	if want != len(s.workers) {
		if err := s.setWorkerCountLocked(want); err != nil {
			return err
		}
	}
	s.hmp.Store(&cfg)
	s.logger.Info().Log("hmp configured")
	return nil
}

// setWorkerCountLocked must be called with resizeMu held.
func (s *Shop) setWorkerCountLocked(n int) error {
	if n < 0 {
		n = 0
	}
	cur := len(s.workers)
	if n == cur {
		return nil
	}
	if n > cur {
		for i := cur; i < n; i++ {
			w := newWorker(i, s.cfg.subQueueCapacity, s.cfg.slowThreadSignals)
			s.workers = append(s.workers, w)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				runtime.LockOSThread()
				defer runtime.UnlockOSThread()
				w.run(s)
			}()
		}
		return nil
	}
	retiring := s.workers[n:]
	s.workers = s.workers[:n]
	for _, w := range retiring {
		w.retire(s)
	}
	return nil
}

// Close stops every worker goroutine and waits for them to exit. Close is
// not idempotent: a second call panics. Callers own the shop's single
// shutdown.
func (s *Shop) Close() error {
	s.exit.StoreRelease(true)
	close(s.exitCh)
	for _, w := range s.workers {
		w.signal()
	}
	s.wg.Wait()
	s.logger.Info().Log("shop closed")
	return nil
}
