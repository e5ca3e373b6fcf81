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
	"math"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/spi"
)

const (
	// ResetHold is the minimum time the RESET bit stays asserted.
	ResetHold = 5 * time.Millisecond

	ad9833Name = "ad9833"
)

// AD9833 drives an AD9833 programmable waveform generator.
// The driver keeps an image of the control register so writes of one
// field preserve all others.
// Methods are not safe for concurrent use.
type AD9833 struct {
	cfg     config
	log     zerolog.Logger
	bus     *spi.Device
	cs      spi.ChipSelect
	control ControlRegister
}

var _ Device = &AD9833{}

// NewAD9833 creates an unattached AD9833 driver on chip select 0.
func NewAD9833(options ...Option) *AD9833 {
	cfg := newConfig(options)
	if cfg.masterClockHz <= 0 || math.IsNaN(cfg.masterClockHz) || math.IsInf(cfg.masterClockHz, 0) {
		cfg.masterClockHz = model.DefaultMasterClockHz
	}
	return &AD9833{
		cfg: cfg,
		log: cfg.log.With().Str("component", ad9833Name).Logger(),
		cs:  spi.CS0,
	}
}

// Name returns the chip name.
func (d *AD9833) Name() string { return ad9833Name }

// MasterClock returns the master clock frequency in Hz.
func (d *AD9833) MasterClock() float64 { return d.cfg.masterClockHz }

// ControlRegister returns the current image of the control register.
func (d *AD9833) ControlRegister() ControlRegister { return d.control }

// ChipSelect returns the chip-select line used for writes.
func (d *AD9833) ChipSelect() spi.ChipSelect { return d.cs }

// IsAttached returns true when the driver has a port.
func (d *AD9833) IsAttached() bool { return d.bus != nil }

// Attach the driver to the given port and configure the idle line state
// for SPI mode 2.
func (d *AD9833) Attach(port bridge.API) error {
	if port == nil {
		return model.InvalidArgument("port is nil")
	}
	bus := d.cfg.newEngine(port, d.log).Device(d.cs, spi.ProfileAD9833)
	if err := bus.ConfigureIdle(); err != nil {
		return err
	}
	d.bus = bus
	attachTotal.WithLabelValues(ad9833Name).Inc()
	d.log.Debug().Int("cs", int(d.cs)).Msg("attached")
	return nil
}

// InitializeIdleState reconfigures the idle line state without touching
// the control register.
func (d *AD9833) InitializeIdleState() error {
	if err := d.ensureAttached(); err != nil {
		return err
	}
	return d.bus.ConfigureIdle()
}

// Detach releases the port and clears the control register image.
func (d *AD9833) Detach() {
	if d.bus != nil {
		d.log.Debug().Msg("detached")
	}
	d.bus = nil
	d.control = 0
}

// SetCsChannel selects the chip-select line. Indices outside 0..2 select CS0.
func (d *AD9833) SetCsChannel(index int) {
	d.cs = spi.ChipSelectOrDefault(index, spi.CS0)
	if d.bus != nil {
		d.bus = d.bus.WithChipSelect(d.cs)
	}
}

// Begin selects 28-bit frequency loading (B28) and resets the chip.
func (d *AD9833) Begin() error {
	if err := d.ensureAttached(); err != nil {
		return err
	}
	d.control = ControlB28
	if err := d.writeControl(); err != nil {
		return err
	}
	return d.Reset()
}

// Reset asserts RESET, holds it for ResetHold and clears it again.
func (d *AD9833) Reset() error {
	if err := d.ensureAttached(); err != nil {
		return err
	}
	d.control = d.control.Set(ControlReset)
	if err := d.writeControl(); err != nil {
		return err
	}
	d.cfg.delayer.Delay(ResetHold)
	d.control = d.control.Clear(ControlReset)
	return d.writeControl()
}

// SetMode replaces the waveform bits of the control register and writes it.
func (d *AD9833) SetMode(m Mode) error {
	if !m.Valid() {
		return model.InvalidArgument("unknown mode 0x%04x", uint16(m))
	}
	if err := d.ensureAttached(); err != nil {
		return err
	}
	d.control = d.control.WithMode(m)
	d.log.Debug().Str("mode", m.String()).Msg("set mode")
	return d.writeControl()
}

// Shutdown powers down the output (ModeOff).
func (d *AD9833) Shutdown() error {
	return d.SetMode(ModeOff)
}

// SetFrequency loads frequency register 0 or 1 with the given frequency.
// It writes the control register, the LSB half and the MSB half.
func (d *AD9833) SetFrequency(channel int, hz float64) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return model.InvalidArgument("frequency must be finite")
	}
	if hz < 0 {
		return model.InvalidArgument("frequency must be >= 0, got %v", hz)
	}
	if err := d.ensureAttached(); err != nil {
		return err
	}
	reg := FrequencyRegister(hz, d.cfg.masterClockHz)
	lsb, msb := FrequencyWords(channel, reg)
	d.log.Debug().
		Int("channel", channel).
		Float64("hz", hz).
		Uint32("register", reg).
		Msg("set frequency")
	return d.write(uint16(d.control), lsb, msb)
}

// SetActiveFrequency selects the frequency register that feeds the
// phase accumulator.
func (d *AD9833) SetActiveFrequency(channel int) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if err := d.ensureAttached(); err != nil {
		return err
	}
	d.control = d.control.SetTo(ControlFSelect, channel == 1)
	return d.writeControl()
}

func validateChannel(channel int) error {
	if channel != 0 && channel != 1 {
		return model.InvalidArgument("channel must be 0 or 1, got %d", channel)
	}
	return nil
}

func (d *AD9833) ensureAttached() error {
	if d.bus == nil {
		return model.DeviceNotAttached(ad9833Name)
	}
	return nil
}

func (d *AD9833) writeControl() error {
	return d.write(uint16(d.control))
}

// write sends each word as a separate frame.
func (d *AD9833) write(words ...uint16) error {
	if err := d.bus.WriteWords(words...); err != nil {
		writeErrorTotal.WithLabelValues(ad9833Name).Inc()
		return errors.WithStack(err)
	}
	writeTotal.WithLabelValues(ad9833Name).Add(float64(len(words)))
	return nil
}
