// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build linux

// Package affinity pins worker goroutines to CPUs and adjusts their
// scheduling priority. Both operations apply to the calling OS thread, so
// callers must have already called runtime.LockOSThread.
package affinity

import (
	"golang.org/x/sys/unix"
)

// BindToCPU pins the calling OS thread to cpuID. The caller must have
// already locked the calling goroutine to its OS thread.
func BindToCPU(cpuID int) error {
	var set unix.CPUSet
	set.Zero()
	set.Set(cpuID)
	return unix.SchedSetaffinity(0, &set)
}

// niceFromPriority maps the coarse sweatpool priority levels onto a Linux
// nice value, low (nice -20) being highest priority.
func niceFromPriority(level int) int {
	// level ranges over sweatpool.Priority's 7 values, 0 (idle) .. 6
	// (time-critical); spread that across nice's usable [-20, 19] range.
	switch {
	case level <= 0:
		return 19
	case level >= 6:
		return -20
	default:
		return 19 - level*(39/6)
	}
}

// SetPriority adjusts the scheduling priority of the calling OS thread to
// correspond to the given coarse sweatpool priority level (0..6).
func SetPriority(level int) error {
	return unix.Setpriority(unix.PRIO_PROCESS, 0, niceFromPriority(level))
}
