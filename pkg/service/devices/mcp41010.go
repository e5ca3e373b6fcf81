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
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"tinygo.org/x/drivers"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/spi"
)

const (
	// MCP41010 commands (C1C0 P1P0 with pot 0 selected)
	mcp41010CmdWritePot0    = 0x11
	mcp41010CmdShutdownPot0 = 0x21

	// MaxWiper is the highest wiper setting.
	MaxWiper = 255

	mcp41010Name = "mcp41010"
)

// MCP41010 drives a single-channel 8-bit digital potentiometer.
// Methods are not safe for concurrent use.
type MCP41010 struct {
	cfg    config
	log    zerolog.Logger
	bus    drivers.SPI
	cs     spi.ChipSelect
	device *spi.Device
}

var _ Device = &MCP41010{}

// NewMCP41010 creates an unattached MCP41010 driver on chip select 1.
func NewMCP41010(options ...Option) *MCP41010 {
	cfg := newConfig(options)
	return &MCP41010{
		cfg: cfg,
		log: cfg.log.With().Str("component", mcp41010Name).Logger(),
		cs:  spi.CS1,
	}
}

// Name returns the chip name.
func (d *MCP41010) Name() string { return mcp41010Name }

// ChipSelect returns the chip-select line used for writes.
func (d *MCP41010) ChipSelect() spi.ChipSelect { return d.cs }

// IsAttached returns true when the driver has a port.
func (d *MCP41010) IsAttached() bool { return d.bus != nil }

// Attach the driver to the given port and configure the idle line state
// for SPI mode 0.
func (d *MCP41010) Attach(port bridge.API) error {
	if port == nil {
		return model.InvalidArgument("port is nil")
	}
	device := d.cfg.newEngine(port, d.log).Device(d.cs, spi.ProfileMCP41010)
	if err := device.ConfigureIdle(); err != nil {
		return err
	}
	d.bind(device)
	attachTotal.WithLabelValues(mcp41010Name).Inc()
	d.log.Debug().Int("cs", int(d.cs)).Msg("attached")
	return nil
}

// Detach releases the port.
func (d *MCP41010) Detach() {
	d.bind(nil)
}

func (d *MCP41010) bind(device *spi.Device) {
	d.device = device
	if device == nil {
		d.bus = nil
		return
	}
	d.bus = device
}

// SetCsChannel selects the chip-select line. Indices outside 0..2 select CS1.
func (d *MCP41010) SetCsChannel(index int) {
	d.cs = spi.ChipSelectOrDefault(index, spi.CS1)
	if d.device != nil {
		d.bind(d.device.WithChipSelect(d.cs))
	}
}

// WriteValue sets the wiper. Values are clamped to 0..255.
func (d *MCP41010) WriteValue(value int) error {
	if d.bus == nil {
		return model.DeviceNotAttached(mcp41010Name)
	}
	value = lo.Clamp(value, 0, MaxWiper)
	d.log.Debug().Int("value", value).Msg("write wiper")
	return d.write(mcp41010CmdWritePot0, byte(value))
}

// Shutdown disconnects the wiper (hardware shutdown of pot 0).
// The next WriteValue reconnects it.
func (d *MCP41010) Shutdown() error {
	if d.bus == nil {
		return model.DeviceNotAttached(mcp41010Name)
	}
	return d.write(mcp41010CmdShutdownPot0, 0)
}

// write sends command & data byte as one 16-bit frame.
func (d *MCP41010) write(command, data byte) error {
	if err := d.bus.Tx([]byte{command, data}, nil); err != nil {
		writeErrorTotal.WithLabelValues(mcp41010Name).Inc()
		return errors.WithStack(err)
	}
	writeTotal.WithLabelValues(mcp41010Name).Inc()
	return nil
}
