// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package igb

import "time"

// Kernel is what the driver asks of its host environment.  Production
// code passes HostKernel; tests substitute fakes to observe timing.
type Kernel interface {
	Sleep(d time.Duration)
}

// HostKernel sleeps on the host operating system clock.
type HostKernel struct{}

func (HostKernel) Sleep(d time.Duration) { time.Sleep(d) }

// WaitFor polls cond every interval until it returns true.  Negative
// tries means poll forever.  Otherwise cond is evaluated at most tries
// times with a sleep after each failed evaluation; ErrTimeout is
// returned once all tries are spent.
func WaitFor(k Kernel, cond func() bool, interval time.Duration, tries int) error {
	for i := 0; tries < 0 || i < tries; i++ {
		if cond() {
			return nil
		}
		k.Sleep(interval)
	}
	return ErrTimeout
}
