// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

import "sync"

// Future is the result of a [Dispatch] call: a one-shot container the
// caller reads from once the dispatched work has completed, per spec.md
// §4.6 ("dispatch(work) -> future<R>").
type Future[R any] struct {
	mu   sync.Mutex
	cond *sync.Cond
	done bool
	val  R
	err  error
}

func newFuture[R any]() *Future[R] {
	f := &Future[R]{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Get blocks until the dispatched work completes (or could not be
// dispatched) and returns its result, or a non-nil error.
func (f *Future[R]) Get() (R, error) {
	f.mu.Lock()
	for !f.done {
		f.cond.Wait()
	}
	v, err := f.val, f.err
	f.mu.Unlock()
	return v, err
}

// Done reports whether the result is already available, without blocking.
func (f *Future[R]) Done() bool {
	f.mu.Lock()
	d := f.done
	f.mu.Unlock()
	return d
}

func (f *Future[R]) resolve(v R, err error) {
	f.mu.Lock()
	f.val, f.err, f.done = v, err, true
	f.cond.Broadcast()
	f.mu.Unlock()
}
