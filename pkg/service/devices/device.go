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
	"github.com/rs/zerolog"

	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/spi"
)

// Device contains the API that is supported by all chip drivers.
type Device interface {
	// Name of the chip, used in logs and errors.
	Name() string
	// Attach the driver to a port and configure the idle line state.
	Attach(port bridge.API) error
	// Detach releases the port. Calling it when not attached is a no-op.
	Detach()
	// IsAttached returns true between a successful Attach and Detach.
	IsAttached() bool
	// SetCsChannel selects the chip-select line for subsequent writes.
	SetCsChannel(index int)
	// ChipSelect returns the currently selected chip-select line.
	ChipSelect() spi.ChipSelect
}

// Option configures a chip driver.
type Option func(c *config)

type config struct {
	masterClockHz float64
	engineOptions []spi.Option
	delayer       spi.Delayer
	log           zerolog.Logger
}

// WithMasterClock sets the AD9833 master clock frequency in Hz.
func WithMasterClock(hz float64) Option {
	return func(c *config) {
		c.masterClockHz = hz
	}
}

// WithEngineOptions passes options to the SPI engine created on Attach.
func WithEngineOptions(options ...spi.Option) Option {
	return func(c *config) {
		c.engineOptions = append(c.engineOptions, options...)
	}
}

// WithDelayer sets the delay primitive used by the driver and its engine.
func WithDelayer(d spi.Delayer) Option {
	return func(c *config) {
		c.delayer = d
	}
}

// WithLogger sets the logger of the driver.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) {
		c.log = log
	}
}

func newConfig(options []Option) config {
	c := config{
		delayer: spi.SleepDelayer,
		log:     zerolog.Nop(),
	}
	for _, option := range options {
		option(&c)
	}
	return c
}

// newEngine creates an engine for the port using the configured options.
func (c config) newEngine(port bridge.API, log zerolog.Logger) *spi.Engine {
	options := append([]spi.Option{spi.WithDelayer(c.delayer), spi.WithLogger(log)}, c.engineOptions...)
	return spi.NewEngine(port, options...)
}
