// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package queue provides the two bounded lock-free queue shapes the
// dispatcher needs: [MPMC] (the shared steal queue) and [MPSC] (a worker's
// targeted sub-queue). Both reject Enqueue with [ErrWouldBlock] rather than
// block, and both guarantee every accepted element is dequeued exactly once.
//
// Capacity rounds up to the next power of 2; panics if capacity < 2.
package queue
