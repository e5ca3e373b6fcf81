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

import (
	"github.com/pkg/errors"
)

// Frame is a unit of bits shifted out while one chip select was low.
type Frame struct {
	ChipSelect ChipSelect
	Bits       int
	Value      uint32
}

// Word returns the frame value as a 16-bit word.
func (f Frame) Word() uint16 { return uint16(f.Value) }

// DecodeFrames reconstructs the frames of a recorded sequence of line
// states, sampling the data line on the edges defined by the profile.
// The sequence is assumed to start from the profile's idle state.
// More than one chip select low at the same time is reported as an error.
func DecodeFrames(states []uint8, p Profile) ([]Frame, error) {
	idleClock := p.idleClock()
	prev := LinesAllCS | idleClock
	var frames []Frame
	var current *Frame
	for i, raw := range states {
		s := LineState(raw)
		selected := LinesAllCS &^ s
		switch selected {
		case 0:
			if current != nil {
				frames = append(frames, *current)
				current = nil
			}
		case LineCS0, LineCS1, LineCS2:
			cs := CS0
			if selected == LineCS1 {
				cs = CS1
			} else if selected == LineCS2 {
				cs = CS2
			}
			if current == nil {
				current = &Frame{ChipSelect: cs}
			} else if current.ChipSelect != cs {
				return frames, errors.Errorf("chip select changed within frame at state %d", i)
			}
			prevClock := prev & LineSCK
			clock := s & LineSCK
			leading := prevClock == idleClock && clock != idleClock
			trailing := prevClock != idleClock && clock == idleClock
			if (leading && !p.SampleSecondEdge) || (trailing && p.SampleSecondEdge) {
				var bit uint32
				if s&LineMOSI != 0 {
					bit = 1
				}
				if p.BitOrder == LSBFirst {
					current.Value |= bit << uint(current.Bits)
				} else {
					current.Value = current.Value<<1 | bit
				}
				current.Bits++
			}
		default:
			return frames, errors.Errorf("multiple chip selects asserted (%s) at state %d", s, i)
		}
		prev = s
	}
	if current != nil {
		return frames, errors.Errorf("frame on chip select %d not terminated", current.ChipSelect)
	}
	return frames, nil
}

// DecodeWords decodes the frames of the given states and returns the
// 16-bit words sent to the given chip select.
func DecodeWords(states []uint8, cs ChipSelect, p Profile) ([]uint16, error) {
	frames, err := DecodeFrames(states, p)
	if err != nil {
		return nil, err
	}
	var words []uint16
	for _, f := range frames {
		if f.ChipSelect != cs {
			continue
		}
		if f.Bits != WordBits {
			return words, errors.Errorf("frame of %d bits on chip select %d", f.Bits, cs)
		}
		words = append(words, f.Word())
	}
	return words, nil
}
