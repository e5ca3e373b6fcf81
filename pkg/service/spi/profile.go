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

// BitOrder of the bits of a word on the data line.
type BitOrder int

const (
	MSBFirst BitOrder = iota
	LSBFirst
)

// Profile is the timing convention of a chip.
type Profile struct {
	// Name used in logs and metrics.
	Name string
	// ClockIdleHigh is CPOL=1.
	ClockIdleHigh bool
	// SampleSecondEdge is CPHA=1.
	SampleSecondEdge bool
	BitOrder         BitOrder
	// WordGap is an extra wait after each word, once chip select is released.
	WordGap time.Duration
}

var (
	// ProfileAD9833 is SPI mode 2: clock idles high, data sampled on the falling edge.
	ProfileAD9833 = Profile{
		Name:          "ad9833",
		ClockIdleHigh: true,
		BitOrder:      MSBFirst,
		WordGap:       10 * time.Microsecond,
	}
	// ProfileMCP41010 is SPI mode 0: clock idles low, data sampled on the rising edge.
	ProfileMCP41010 = Profile{
		Name:     "mcp41010",
		BitOrder: MSBFirst,
	}
)

// Mode returns the standard SPI mode number (0..3).
func (p Profile) Mode() int {
	mode := 0
	if p.ClockIdleHigh {
		mode |= 2
	}
	if p.SampleSecondEdge {
		mode |= 1
	}
	return mode
}

func (p Profile) idleClock() LineState {
	if p.ClockIdleHigh {
		return LineSCK
	}
	return 0
}

func (p Profile) bitIndex(i, bits int) int {
	if p.BitOrder == LSBFirst {
		return i
	}
	return bits - 1 - i
}
