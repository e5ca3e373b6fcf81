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
	"time"

	"github.com/rs/zerolog"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
)

const (
	// DefaultTransitionDelay is the minimum hold time after each line change.
	DefaultTransitionDelay = 2 * time.Microsecond
	// DefaultSettleDelay is the wait after configuring the idle state.
	DefaultSettleDelay = time.Millisecond
	// WordBits is the number of bits clocked per word.
	WordBits = 16
)

// Engine emulates a shift-out-only SPI master by toggling port lines.
// An Engine is not safe for concurrent use; callers serialize access
// (see bridge.Bus).
type Engine struct {
	port            bridge.API
	delayer         Delayer
	transitionDelay time.Duration
	settleDelay     time.Duration
	log             zerolog.Logger
}

// Option configures an Engine.
type Option func(e *Engine)

// WithDelayer sets the delay primitive.
func WithDelayer(d Delayer) Option {
	return func(e *Engine) {
		e.delayer = d
	}
}

// WithTransitionDelay sets the hold time after each line change.
func WithTransitionDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.transitionDelay = d
	}
}

// WithSettleDelay sets the wait after configuring the idle state.
func WithSettleDelay(d time.Duration) Option {
	return func(e *Engine) {
		e.settleDelay = d
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// NewEngine creates an engine driving the given port.
func NewEngine(port bridge.API, options ...Option) *Engine {
	e := &Engine{
		port:            port,
		delayer:         SleepDelayer,
		transitionDelay: DefaultTransitionDelay,
		settleDelay:     DefaultSettleDelay,
		log:             zerolog.Nop(),
	}
	for _, option := range options {
		option(e)
	}
	return e
}

// ConfigureIdle enables D0..D5, sets the bus lines as output and drives
// the idle state of the given profile: all chip selects high, clock at
// its idle level, data low.
func (e *Engine) ConfigureIdle(p Profile) error {
	idle := LinesAllCS | p.idleClock()
	configureIdleTotal.WithLabelValues(p.Name).Inc()
	if err := e.port.ConfigureOutput(uint8(EnableMask), uint8(DirectionMask), uint8(idle&DirectionMask)); err != nil {
		gpioFaultTotal.WithLabelValues(p.Name).Inc()
		return model.GpioFault(err, "configure %s idle state", p.Name)
	}
	e.log.Debug().
		Str("profile", p.Name).
		Int("mode", p.Mode()).
		Str("idle", idle.String()).
		Msg("configured idle state")
	e.delayer.Delay(e.settleDelay)
	return nil
}

// TransferWords clocks out each word (16 bits) as a separate frame on
// the given chip select. The first failing port write aborts the
// transfer; remaining words are not sent.
func (e *Engine) TransferWords(words []uint16, cs ChipSelect, p Profile) error {
	if !cs.Valid() {
		return model.InvalidArgument("chip select %d out of range", cs)
	}
	for _, w := range words {
		if err := e.transfer(uint32(w), WordBits, cs, p); err != nil {
			return err
		}
	}
	return nil
}

// transfer sends one frame of the given number of bits.
func (e *Engine) transfer(value uint32, bits int, cs ChipSelect, p Profile) error {
	idleClock := p.idleClock()
	idle := LinesAllCS | idleClock
	active := (LinesAllCS &^ cs.Line()) | idleClock

	// Select chip
	if err := e.drive(active, p); err != nil {
		return err
	}
	for i := 0; i < bits; i++ {
		var bit LineState
		if (value>>uint(p.bitIndex(i, bits)))&1 != 0 {
			bit = LineMOSI
		}
		data := active | bit
		if !p.SampleSecondEdge {
			// Data valid before the leading edge
			if err := e.drive(data, p); err != nil {
				return err
			}
			if err := e.drive(data^LineSCK, p); err != nil {
				return err
			}
			if err := e.drive(data, p); err != nil {
				return err
			}
		} else {
			// Data changes on the leading edge
			if err := e.drive(active^LineSCK, p); err != nil {
				return err
			}
			if err := e.drive(data^LineSCK, p); err != nil {
				return err
			}
			if err := e.drive(data, p); err != nil {
				return err
			}
		}
	}
	// Release chip
	if err := e.drive(idle, p); err != nil {
		return err
	}
	wordsTotal.WithLabelValues(p.Name).Inc()
	if p.WordGap > 0 {
		e.delayer.Delay(p.WordGap)
	}
	return nil
}

// drive writes the output lines and holds them for the transition delay.
func (e *Engine) drive(s LineState, p Profile) error {
	if err := e.port.DriveLines(uint8(DirectionMask), uint8(s&DirectionMask)); err != nil {
		gpioFaultTotal.WithLabelValues(p.Name).Inc()
		return model.GpioFault(err, "drive %s lines %s", p.Name, s)
	}
	e.delayer.Delay(e.transitionDelay)
	return nil
}
