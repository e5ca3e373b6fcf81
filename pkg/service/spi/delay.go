// Copyright 2020 Ewout Prangsma
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// Author Ewout Prangsma
//
package spi

import "time"

// Delayer blocks the calling goroutine for at least the given duration.
type Delayer interface {
	Delay(d time.Duration)
}

// DelayerFunc adapts a function to a Delayer.
type DelayerFunc func(d time.Duration)

// Delay calls f(d).
func (f DelayerFunc) Delay(d time.Duration) { f(d) }

// busyWaitLimit is the duration below which SleepDelayer spins instead of sleeping.
const busyWaitLimit = time.Millisecond

// SleepDelayer waits on the wall clock. Short delays are busy-waited
// since the scheduler cannot sleep for a few microseconds.
var SleepDelayer Delayer = DelayerFunc(func(d time.Duration) {
	if d <= 0 {
		return
	}
	if d >= busyWaitLimit {
		time.Sleep(d)
		return
	}
	for start := time.Now(); time.Since(start) < d; {
	}
})

// NoDelay returns immediately.
var NoDelay Delayer = DelayerFunc(func(time.Duration) {})
