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
	"tinygo.org/x/drivers"

	"github.com/sonicwave/SignalWorker/model"
)

// Device is a view of an Engine bound to a single chip select and
// profile. It implements drivers.SPI for shift-out-only chips.
type Device struct {
	engine  *Engine
	cs      ChipSelect
	profile Profile
}

var _ drivers.SPI = &Device{}

// Device returns a bus view for the given chip select and profile.
func (e *Engine) Device(cs ChipSelect, p Profile) *Device {
	return &Device{
		engine:  e,
		cs:      cs,
		profile: p,
	}
}

// WithChipSelect returns a view of the same engine & profile on another
// chip select.
func (d *Device) WithChipSelect(cs ChipSelect) *Device {
	return d.engine.Device(cs, d.profile)
}

// ConfigureIdle configures the idle line state of the device's profile.
func (d *Device) ConfigureIdle() error {
	return d.engine.ConfigureIdle(d.profile)
}

// ChipSelect returns the chip select of the device.
func (d *Device) ChipSelect() ChipSelect { return d.cs }

// Profile returns the timing profile of the device.
func (d *Device) Profile() Profile { return d.profile }

// WriteWords sends each word as a separate frame.
func (d *Device) WriteWords(words ...uint16) error {
	return d.engine.TransferWords(words, d.cs, d.profile)
}

// Tx sends w as big-endian 16-bit words, one frame per word.
// An odd trailing byte is padded with a zero low byte.
// There is no data-in line, so r is zero filled.
func (d *Device) Tx(w, r []byte) error {
	words := make([]uint16, 0, (len(w)+1)/2)
	for i := 0; i < len(w); i += 2 {
		word := uint16(w[i]) << 8
		if i+1 < len(w) {
			word |= uint16(w[i+1])
		}
		words = append(words, word)
	}
	if err := d.engine.TransferWords(words, d.cs, d.profile); err != nil {
		return err
	}
	for i := range r {
		r[i] = 0
	}
	return nil
}

// Transfer sends a single 8-bit frame. The returned byte is always 0.
func (d *Device) Transfer(b byte) (byte, error) {
	if !d.cs.Valid() {
		return 0, model.InvalidArgument("chip select %d out of range", d.cs)
	}
	return 0, d.engine.transfer(uint32(b), 8, d.cs, d.profile)
}
