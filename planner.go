// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package sweatpool

// planChunk computes the half-open range [start, stop) of chunk i out of
// numberOfChunks chunks partitioning [0, iterations), per spec.md §4.4.
//
// Pure function: the first `extra` chunks get one extra iteration each.
// When iterations < numberOfChunks, callers must not request chunk indices
// at or beyond iterations — only `iterations` chunks are ever scheduled.
func planChunk(iterations, numberOfChunks, i uint32) (start, stop uint32) {
	base := iterations / numberOfChunks
	extra := iterations % numberOfChunks

	var head uint32
	if i < extra {
		head = i
	} else {
		head = extra
	}
	var tail uint32
	if i > extra {
		tail = i - extra
	}
	start = head*(base+1) + tail*base

	stop = start + base
	if i < extra {
		stop++
	}
	return start, stop
}

// planChunks returns the full partition of [0, iterations) into
// min(iterations, numberOfChunks) chunks. The returned slice has exactly
// that many entries and its ranges partition [0, iterations) exactly,
// satisfying the totality invariant of spec.md §8.
func planChunks(iterations, numberOfChunks uint32) []chunkRange {
	if iterations == 0 || numberOfChunks == 0 {
		return nil
	}
	n := numberOfChunks
	if iterations < n {
		n = iterations
	}
	out := make([]chunkRange, n)
	for i := range n {
		start, stop := planChunk(iterations, n, i)
		out[i] = chunkRange{start: start, stop: stop}
	}
	return out
}

type chunkRange struct {
	start, stop uint32
}
