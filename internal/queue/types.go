// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package queue

import "code.hybscloud.com/iox"

// ErrWouldBlock indicates the operation cannot proceed immediately: the
// queue is full (Enqueue) or empty (Dequeue). It is a control-flow signal,
// not a failure.
var ErrWouldBlock = iox.ErrWouldBlock

// pad is cache line padding to prevent false sharing.
type pad [64]byte

// padShort is padding to fill a cache line after an 8-byte field.
type padShort [64 - 8]byte

// roundToPow2 rounds n up to the next power of 2.
func roundToPow2(n int) int {
	if n < 2 {
		return 2
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
