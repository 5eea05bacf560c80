// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import (
	"errors"
	"fmt"

	"code.hybscloud.com/iox"
)

// ErrWouldBlock indicates an enqueue could not proceed immediately because
// the underlying work queue reported backpressure. It is an alias of
// [iox.ErrWouldBlock] for ecosystem consistency with the rest of the
// hybscloud stack.
var ErrWouldBlock = iox.ErrWouldBlock

// ErrResourceExhausted is the error a [Future] resolves with when [Dispatch]
// could not enqueue the work. It wraps [ErrWouldBlock], so
// errors.Is(err, ErrWouldBlock) holds.
var ErrResourceExhausted = fmt.Errorf("sweatpool: resource exhausted, could not dispatch work: %w", ErrWouldBlock)

// ErrQueueNotEmpty is returned by [Shop.SetMaxAllowedThreads] when the shop
// has outstanding work; resizing the pool is only legal on an idle shop.
var ErrQueueNotEmpty = errors.New("sweatpool: cannot resize pool while work is pending")

// ErrHMPEnabled is returned by [Shop.SetMaxAllowedThreads] when HMP
// configuration is active; the two knobs are mutually exclusive.
var ErrHMPEnabled = errors.New("sweatpool: cannot set max allowed threads while HMP is configured")

// ErrPendingSpread is returned by [Shop.ConfigureHMP] when called while a
// spread is in flight.
var ErrPendingSpread = errors.New("sweatpool: cannot configure HMP while a spread is pending")

// ErrNoWorkers is returned by [New] when the computed worker count is zero
// and the caller did not explicitly allow a zero-worker (caller-only) shop
// via [WithMinWorkers].
var ErrNoWorkers = errors.New("sweatpool: hardware concurrency probe reported zero usable workers")

// ErrInvalidHMPConfig is returned by [Shop.ConfigureHMP] when the supplied
// [HMPInfo] fails its invariant checks (no cluster with cores, a negative
// core count, or power given to a cluster with zero cores).
var ErrInvalidHMPConfig = errors.New("sweatpool: invalid HMP configuration")

// ErrShopClosed is returned (as a [Future] error, or directly) when
// [Dispatch], [Shop.SetMaxAllowedThreads], or [Shop.ConfigureHMP] is called
// on a [Shop] that has already been closed. [Shop.Spread] and
// [Shop.FireAndForget] cannot return an error, so they signal the same
// condition by returning false instead.
var ErrShopClosed = errors.New("sweatpool: shop is closed")
