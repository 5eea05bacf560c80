// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package plog wires the shop's lifecycle logging: construction, pool
// resizing, HMP reconfiguration and shutdown. Changes of the adaptive
// stealing division are not logged. It is never called from the hot
// dispatch path.
package plog

import (
	"fmt"
	"io"
	"os"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the narrow surface sweatpool's shop uses for lifecycle events.
type Logger = logiface.Logger[*stumpy.Event]

// New builds a stumpy-backed structured logger writing to w (os.Stderr if
// nil).
func New(w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
	)
}

// Printf adapts Logger to automaxprocs' printf-style Logger interface, used
// by internal/hwprobe.
func Printf(l *Logger, format string, args ...any) {
	l.Info().Log(fmt.Sprintf(format, args...))
}

// PrintfAdapter satisfies internal/hwprobe.Logger by forwarding to a
// *Logger's Info level.
type PrintfAdapter struct{ L *Logger }

func (a PrintfAdapter) Printf(format string, args ...any) {
	Printf(a.L, format, args...)
}
