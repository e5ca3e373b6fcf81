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
package devices

import (
	"fmt"
	"math"
	"strings"

	"github.com/sonicwave/SignalWorker/model"
)

// ControlRegister is the 16-bit AD9833 control word.
type ControlRegister uint16

// Control register fields.
const (
	ControlMode    ControlRegister = 1 << 1
	ControlDiv2    ControlRegister = 1 << 3
	ControlOpBitEn ControlRegister = 1 << 5
	ControlSleep12 ControlRegister = 1 << 6
	ControlSleep1  ControlRegister = 1 << 7
	ControlReset   ControlRegister = 1 << 8
	ControlPSelect ControlRegister = 1 << 10
	ControlFSelect ControlRegister = 1 << 11
	ControlHLB     ControlRegister = 1 << 12
	ControlB28     ControlRegister = 1 << 13
)

var controlFieldNames = []struct {
	field ControlRegister
	name  string
}{
	{ControlB28, "B28"},
	{ControlHLB, "HLB"},
	{ControlFSelect, "FSELECT"},
	{ControlPSelect, "PSELECT"},
	{ControlReset, "RESET"},
	{ControlSleep1, "SLEEP1"},
	{ControlSleep12, "SLEEP12"},
	{ControlOpBitEn, "OPBITEN"},
	{ControlDiv2, "DIV2"},
	{ControlMode, "MODE"},
}

// Has returns true when all bits of field are set.
func (c ControlRegister) Has(field ControlRegister) bool {
	return c&field == field
}

// Set returns the register with the bits of field set.
func (c ControlRegister) Set(field ControlRegister) ControlRegister {
	return c | field
}

// Clear returns the register with the bits of field cleared.
func (c ControlRegister) Clear(field ControlRegister) ControlRegister {
	return c &^ field
}

// SetTo sets or clears field.
func (c ControlRegister) SetTo(field ControlRegister, value bool) ControlRegister {
	if value {
		return c.Set(field)
	}
	return c.Clear(field)
}

// WithMode returns the register with all waveform bits replaced by m.
// Bits outside the waveform mask are preserved.
func (c ControlRegister) WithMode(m Mode) ControlRegister {
	return c.Clear(ModeMask) | ControlRegister(m)
}

// Mode returns the waveform bits of the register.
func (c ControlRegister) Mode() Mode {
	return Mode(c & ModeMask)
}

// String returns the hex value followed by the names of the set fields.
func (c ControlRegister) String() string {
	var names []string
	for _, f := range controlFieldNames {
		if c.Has(f.field) {
			names = append(names, f.name)
		}
	}
	return fmt.Sprintf("0x%04x[%s]", uint16(c), strings.Join(names, "|"))
}

// Mode is a waveform encoding of the control register.
type Mode uint16

const (
	ModeSine     Mode = 0
	ModeTriangle      = Mode(ControlMode)
	// ModeSquare outputs the MSB of the DAC data.
	ModeSquare = Mode(ControlOpBitEn | ControlDiv2)
	// ModeSquareHalf outputs the MSB/2 of the DAC data.
	ModeSquareHalf = Mode(ControlOpBitEn)
	// ModeOff powers down the DAC and the internal clock.
	ModeOff = Mode(ControlSleep1 | ControlSleep12)

	// ModeMask covers all waveform bits.
	ModeMask = ControlSleep1 | ControlSleep12 | ControlOpBitEn | ControlDiv2 | ControlMode
)

// Valid returns true for the five known encodings.
func (m Mode) Valid() bool {
	switch m {
	case ModeSine, ModeTriangle, ModeSquare, ModeSquareHalf, ModeOff:
		return true
	}
	return false
}

// String returns the waveform name of the mode.
func (m Mode) String() string {
	if w, ok := m.Waveform(); ok {
		return string(w)
	}
	return fmt.Sprintf("mode(0x%04x)", uint16(m))
}

// Waveform returns the waveform of the mode.
func (m Mode) Waveform() (model.Waveform, bool) {
	switch m {
	case ModeSine:
		return model.WaveformSine, true
	case ModeTriangle:
		return model.WaveformTriangle, true
	case ModeSquare:
		return model.WaveformSquare, true
	case ModeSquareHalf:
		return model.WaveformSquareHalf, true
	case ModeOff:
		return model.WaveformOff, true
	}
	return "", false
}

// ModeForWaveform returns the mode encoding of the given waveform.
func ModeForWaveform(w model.Waveform) (Mode, error) {
	switch w {
	case model.WaveformSine:
		return ModeSine, nil
	case model.WaveformTriangle:
		return ModeTriangle, nil
	case model.WaveformSquare:
		return ModeSquare, nil
	case model.WaveformSquareHalf:
		return ModeSquareHalf, nil
	case model.WaveformOff:
		return ModeOff, nil
	}
	return ModeOff, model.InvalidArgument("unknown waveform '%s'", w)
}

// Frequency register addresses.
const (
	FreqAddr0 uint16 = 1 << 14
	FreqAddr1 uint16 = 1 << 15

	// FrequencyRegisterBits is the width of a frequency register.
	FrequencyRegisterBits = 28
	frequencyScale        = 1 << FrequencyRegisterBits
	frequencyWordMask     = 0x3FFF
)

// FrequencyRegister returns round(hz * 2^28 / masterClockHz), truncated to 28 bits.
func FrequencyRegister(hz, masterClockHz float64) uint32 {
	reg := math.Round(hz * (frequencyScale / masterClockHz))
	return uint32(math.Mod(reg, frequencyScale))
}

// FrequencyHz returns the output frequency produced by the given register value.
func FrequencyHz(reg uint32, masterClockHz float64) float64 {
	return float64(reg) * masterClockHz / frequencyScale
}

// FrequencyResolution returns the frequency step of one register LSB.
func FrequencyResolution(masterClockHz float64) float64 {
	return masterClockHz / frequencyScale
}

// FrequencyWords splits a register value into its address-tagged 14-bit halves.
func FrequencyWords(channel int, reg uint32) (lsb, msb uint16) {
	addr := FreqAddr0
	if channel == 1 {
		addr = FreqAddr1
	}
	lsb = addr | uint16(reg&frequencyWordMask)
	msb = addr | uint16((reg>>14)&frequencyWordMask)
	return lsb, msb
}
