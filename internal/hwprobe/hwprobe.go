// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package hwprobe answers "how many workers should the shop spawn" by
// asking the runtime for a container-quota-aware CPU count rather than the
// host's raw core count.
package hwprobe

import (
	"runtime"

	"go.uber.org/automaxprocs/maxprocs"
)

// Logger is the minimal logging surface hwprobe needs; satisfied by
// internal/plog.PrintfAdapter so this package does not import plog directly and
// create an import cycle risk.
type Logger interface {
	Printf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// Concurrency runs automaxprocs' GOMAXPROCS-from-cgroup-quota adjustment
// once, then reports the resulting value. log may be nil.
func Concurrency(log Logger) int {
	if log == nil {
		log = nopLogger{}
	}
	_, _ = maxprocs.Set(maxprocs.Logger(log.Printf))
	n := runtime.GOMAXPROCS(0)
	if n < 1 {
		n = 1
	}
	return n
}
