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

import "fmt"

// LineState is the 8-bit level of the parallel port lines D0..D7.
type LineState uint8

// Port lines used by the emulated bus.
const (
	LineCS0  LineState = 0x01 // D0
	LineCS1  LineState = 0x02 // D1
	LineCS2  LineState = 0x04 // D2
	LineSCK  LineState = 0x08 // D3
	LineMOSI LineState = 0x20 // D5

	LinesAllCS LineState = LineCS0 | LineCS1 | LineCS2

	// DirectionMask selects the lines driven as output (0x2F).
	DirectionMask = LinesAllCS | LineSCK | LineMOSI
	// EnableMask selects the lines enabled on the port (D0..D5).
	EnableMask LineState = 0x3F
)

// String returns the state as a hex byte.
func (s LineState) String() string {
	return fmt.Sprintf("0x%02x", uint8(s))
}

// ChipSelect identifies one of the three chip-select lines.
type ChipSelect int

const (
	CS0 ChipSelect = iota
	CS1
	CS2
)

// Valid returns true for CS0, CS1 and CS2.
func (cs ChipSelect) Valid() bool {
	return cs >= CS0 && cs <= CS2
}

// Line returns the port line of the chip select.
func (cs ChipSelect) Line() LineState {
	switch cs {
	case CS1:
		return LineCS1
	case CS2:
		return LineCS2
	default:
		return LineCS0
	}
}

// ChipSelectOrDefault converts an index into a chip select.
// Indices outside 0..2 yield def.
func ChipSelectOrDefault(index int, def ChipSelect) ChipSelect {
	cs := ChipSelect(index)
	if cs.Valid() {
		return cs
	}
	return def
}
