// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

//go:build !linux

package affinity

import "errors"

// errUnsupported is returned on platforms with no affinity/priority syscall
// wired up yet.
var errUnsupported = errors.New("affinity: not supported on this platform")

func BindToCPU(cpuID int) error {
	return errUnsupported
}

func SetPriority(level int) error {
	return errUnsupported
}
