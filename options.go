// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

// Priority is a coarse scheduling priority hint passed to [Shop.SetPriority].
//
// It maps onto the platform's native priority/nice concept; on Linux it is
// realized as a `setpriority` call on each worker goroutine's OS thread
// (see internal/affinity).
type Priority int

const (
	PriorityIdle Priority = iota
	PriorityBackground
	PriorityLow
	PriorityNormal
	PriorityHigh
	PriorityForeground
	PriorityTimeCritical
)

// config holds the compile-time-equivalent knobs spec.md §6 calls "compile
// time configuration". Go has no preprocessor, so these are construction
// time [Option]s instead, applied once by [New] and (for the subset that
// remain legal to change at runtime) by [Shop.SetMaxAllowedThreads] and
// [Shop.ConfigureHMP].
type config struct {
	maxHardwareConcurrency    int
	maxHardwareConcurrencySet bool
	minWorkers                int
	minWorkersSet             bool
	useCallerThread        bool
	exactWorkerSelection   bool
	spinBeforeSuspension   bool
	workerSpinCount        int
	callerSpinCount        int
	hmp                    *HMPInfo
	slowThreadSignals      bool
	subQueueCapacity       int
	sharedQueueCapacity    int
}

func defaultConfig() config {
	return config{
		maxHardwareConcurrency: 0, // dynamic: ask the hardware probe
		minWorkers:             0,
		useCallerThread:        true,
		exactWorkerSelection:   true,
		spinBeforeSuspension:   true,
		workerSpinCount:        1000,
		callerSpinCount:        4000,
		slowThreadSignals:      false,
		subQueueCapacity:       256,
		sharedQueueCapacity:    1024,
	}
}

// Option configures a [Shop] at construction time. Mirrors the fluent
// option-struct shape of the teacher package's own `Builder`/`Options`
// pair, using Go's functional-options idiom instead of method chaining on
// an exported builder type, since sweatpool's knobs are independent rather
// than mutually-exclusive algorithm selectors.
type Option func(*config)

// WithMaxHardwareConcurrency caps the pool at n worker threads regardless of
// what the hardware concurrency probe reports. Without this option, New
// asks the hardware concurrency probe (internal/hwprobe). n may be 0 (a
// caller-only shop, see [WithMinWorkers]).
func WithMaxHardwareConcurrency(n int) Option {
	return func(c *config) {
		c.maxHardwareConcurrency = n
		c.maxHardwareConcurrencySet = true
	}
}

// WithMinWorkers allows [New] to succeed with fewer workers than it would
// otherwise require, including zero (a caller-only shop: every [Shop.Spread]
// call runs entirely on the caller thread). Without this option, [New]
// returns [ErrNoWorkers] if the probe reports zero usable cores.
func WithMinWorkers(n int) Option {
	return func(c *config) {
		c.minWorkers = n
		c.minWorkersSet = true
	}
}

// WithCallerThread controls whether Spread reserves one chunk for the
// calling goroutine (default true).
func WithCallerThread(enabled bool) Option {
	return func(c *config) { c.useCallerThread = enabled }
}

// WithExactWorkerSelection controls whether chunks are targeted at a
// specific worker's sub-queue (default true) or always placed on the shared
// queue.
func WithExactWorkerSelection(enabled bool) Option {
	return func(c *config) { c.exactWorkerSelection = enabled }
}

// WithSpinBeforeSuspension controls whether the completion barrier and
// worker wakeup spin before blocking (default true).
func WithSpinBeforeSuspension(enabled bool) Option {
	return func(c *config) { c.spinBeforeSuspension = enabled }
}

// WithWorkerSpinCount sets the worker's pre-sleep spin budget.
func WithWorkerSpinCount(n int) Option {
	return func(c *config) { c.workerSpinCount = n }
}

// WithCallerSpinCount sets the caller's pre-block spin budget on the
// completion barrier.
func WithCallerSpinCount(n int) Option {
	return func(c *config) { c.callerSpinCount = n }
}

// WithHMP enables heterogeneous multi-processing cluster-weighted
// scheduling from construction. When set, [New] sizes the pool from
// info's cluster core counts (the same sizing [Shop.ConfigureHMP] applies
// later) instead of the hardware concurrency probe or
// [WithMaxHardwareConcurrency].
func WithHMP(info HMPInfo) Option {
	return func(c *config) { cp := info; c.hmp = &cp }
}

// WithSlowThreadSignals forces semaphore-based wakeups for every worker
// instead of per-worker wakeup channels, for platforms where per-goroutine
// signaling is comparatively expensive (mirrors the teacher-adjacent
// `slow_thread_signals` compile flag, typically relevant to older/emulated
// platforms).
func WithSlowThreadSignals(enabled bool) Option {
	return func(c *config) { c.slowThreadSignals = enabled }
}

// WithSubQueueCapacity sets the bounded capacity of each worker's targeted
// sub-queue (default 256).
func WithSubQueueCapacity(n int) Option {
	return func(c *config) { c.subQueueCapacity = n }
}

// WithSharedQueueCapacity sets the bounded capacity of the shared steal
// queue (default 1024).
func WithSharedQueueCapacity(n int) Option {
	return func(c *config) { c.sharedQueueCapacity = n }
}
