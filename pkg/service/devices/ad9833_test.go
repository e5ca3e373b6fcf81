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
	"bytes"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/spi"
)

func newAttachedAD9833(t *testing.T, options ...Option) (*AD9833, *bridge.VirtualBridge) {
	port := bridge.NewVirtualBridge()
	d := NewAD9833(append([]Option{WithDelayer(spi.NoDelay)}, options...)...)
	require.NoError(t, d.Attach(port))
	port.ClearCalls()
	return d, port
}

func ad9833Words(t *testing.T, port *bridge.VirtualBridge, cs spi.ChipSelect) []uint16 {
	words, err := spi.DecodeWords(port.Drives(), cs, spi.ProfileAD9833)
	require.NoError(t, err)
	return words
}

func TestAD9833Attach(t *testing.T) {
	port := bridge.NewVirtualBridge()
	d := NewAD9833(WithDelayer(spi.NoDelay))
	assert.False(t, d.IsAttached())
	assert.Equal(t, spi.CS0, d.ChipSelect())
	assert.Equal(t, float64(model.DefaultMasterClockHz), d.MasterClock())

	require.NoError(t, d.Attach(port))
	assert.True(t, d.IsAttached())
	calls := port.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, bridge.Call{Kind: bridge.CallConfigureOutput, EnableMask: 0x3F, DirectionMask: 0x2F, State: 0x0F}, calls[0])
}

func TestAD9833AttachFault(t *testing.T) {
	port := bridge.NewVirtualBridge()
	port.FailAfter(0, errors.New("no device"))
	d := NewAD9833(WithDelayer(spi.NoDelay))

	err := d.Attach(port)
	require.Error(t, err)
	assert.True(t, model.IsGpioFault(err))
	assert.False(t, d.IsAttached())
}

func TestAD9833BeginFrequencySine(t *testing.T) {
	port := bridge.NewVirtualBridge()
	var resetHoldAt []int
	delayer := spi.DelayerFunc(func(d time.Duration) {
		if d == ResetHold {
			resetHoldAt = append(resetHoldAt, len(port.Drives()))
		}
	})
	d := NewAD9833(WithDelayer(delayer), WithMasterClock(25_000_000))
	require.NoError(t, d.Attach(port))

	require.NoError(t, d.Begin())
	require.NoError(t, d.SetFrequency(0, 1000.0))
	require.NoError(t, d.SetActiveFrequency(0))
	require.NoError(t, d.SetMode(ModeSine))

	reg := uint16(math.Round(1000 * (1 << 28) / 25_000_000.0))
	assert.Equal(t, []uint16{
		0x2000,                    // B28
		0x2100,                    // B28 | RESET
		0x2000,                    // RESET cleared
		0x2000,                    // control before frequency load
		0x4000 | reg&0x3FFF,       // FREQ0 LSB
		0x4000 | (reg>>14)&0x3FFF, // FREQ0 MSB
		0x2000,                    // FSELECT = 0
		0x2000,                    // sine
	}, ad9833Words(t, port, spi.CS0))
	assert.Equal(t, uint16(0x69F1), 0x4000|reg&0x3FFF)

	// Reset is held after the second frame
	assert.Equal(t, []int{2 * 50}, resetHoldAt)
	assert.Equal(t, ControlB28, d.ControlRegister())
}

func TestAD9833SetFrequencyInvalid(t *testing.T) {
	d, port := newAttachedAD9833(t)

	tests := []struct {
		channel int
		hz      float64
	}{
		{2, 1000},
		{-1, 1000},
		{0, -1},
		{1, math.NaN()},
		{0, math.Inf(1)},
	}
	for _, test := range tests {
		err := d.SetFrequency(test.channel, test.hz)
		require.Error(t, err, "channel %d hz %v", test.channel, test.hz)
		assert.True(t, model.IsInvalidArgument(err))
	}
	assert.Empty(t, port.Calls())

	assert.True(t, model.IsInvalidArgument(d.SetActiveFrequency(2)))
	assert.True(t, model.IsInvalidArgument(d.SetMode(Mode(0x0100))))
	assert.Empty(t, port.Calls())
}

func TestAD9833SetFrequencyChannel1(t *testing.T) {
	d, port := newAttachedAD9833(t)
	d.SetCsChannel(2)
	require.NoError(t, d.SetFrequency(1, 12_500_000))

	// 12.5 MHz is 2^27
	assert.Equal(t, []uint16{0x0000, 0x8000, 0x8000 | 0x2000}, ad9833Words(t, port, spi.CS2))

	require.NoError(t, d.SetActiveFrequency(1))
	assert.True(t, d.ControlRegister().Has(ControlFSelect))
	require.NoError(t, d.SetActiveFrequency(0))
	assert.False(t, d.ControlRegister().Has(ControlFSelect))
}

func TestAD9833FrequencyRoundTrip(t *testing.T) {
	const mclk = 25_000_000.0
	step := FrequencyResolution(mclk)
	d, port := newAttachedAD9833(t, WithMasterClock(mclk))

	for _, f := range []float64{0, 0.05, 1, 440, 1000, 12345.678, 1e6, 3.3e6, mclk / 2} {
		port.ClearCalls()
		require.NoError(t, d.SetFrequency(0, f))
		words := ad9833Words(t, port, spi.CS0)
		require.Len(t, words, 3)
		assert.Equal(t, FreqAddr0, words[1]&0xC000)
		assert.Equal(t, FreqAddr0, words[2]&0xC000)
		reg := uint32(words[1]&0x3FFF) | uint32(words[2]&0x3FFF)<<14
		assert.Equal(t, FrequencyRegister(f, mclk), reg)
		assert.InDelta(t, f, FrequencyHz(reg, mclk), step, "frequency %v", f)
	}
}

func TestAD9833ModeExclusive(t *testing.T) {
	d, _ := newAttachedAD9833(t)
	require.NoError(t, d.Begin())

	modes := []Mode{ModeSine, ModeTriangle, ModeSquare, ModeSquareHalf, ModeOff}
	for _, x := range modes {
		for _, y := range modes {
			require.NoError(t, d.SetMode(x))
			require.NoError(t, d.SetMode(y))
			assert.Equal(t, y, d.ControlRegister().Mode(), "%s then %s", x, y)
			assert.True(t, d.ControlRegister().Has(ControlB28), "B28 survives %s then %s", x, y)
		}
	}
	require.NoError(t, d.Shutdown())
	assert.Equal(t, ModeOff, d.ControlRegister().Mode())
}

func TestAD9833SetModeLogsName(t *testing.T) {
	var buf bytes.Buffer
	d, _ := newAttachedAD9833(t, WithLogger(zerolog.New(&buf)))

	require.NoError(t, d.SetMode(ModeSine))
	assert.Contains(t, buf.String(), `"mode":"sine"`)
}

func TestAD9833Detach(t *testing.T) {
	d := NewAD9833(WithDelayer(spi.NoDelay))
	d.Detach()
	d.Detach()
	assert.False(t, d.IsAttached())

	port := bridge.NewVirtualBridge()
	require.NoError(t, d.Attach(port))
	require.NoError(t, d.Begin())
	d.Detach()
	d.Detach()
	assert.Equal(t, ControlRegister(0), d.ControlRegister())

	port.ClearCalls()
	for _, err := range []error{
		d.Begin(),
		d.Reset(),
		d.SetMode(ModeSine),
		d.Shutdown(),
		d.SetFrequency(0, 1000),
		d.SetActiveFrequency(0),
		d.InitializeIdleState(),
	} {
		assert.True(t, model.IsDeviceNotAttached(err))
	}
	assert.Empty(t, port.Calls())

	// Re-attach runs idle configuration again
	require.NoError(t, d.Attach(port))
	calls := port.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, bridge.CallConfigureOutput, calls[0].Kind)
}

func TestAD9833GpioFault(t *testing.T) {
	d, port := newAttachedAD9833(t)
	injected := errors.New("usb write failed")
	port.FailAfter(60, injected)

	err := d.SetFrequency(0, 1000)
	require.Error(t, err)
	assert.True(t, model.IsGpioFault(err))
	assert.Equal(t, injected, model.AdapterError(err))
	assert.Len(t, port.Drives(), 60)
}

func TestAD9833SetCsChannel(t *testing.T) {
	d := NewAD9833()
	d.SetCsChannel(1)
	assert.Equal(t, spi.CS1, d.ChipSelect())
	d.SetCsChannel(7)
	assert.Equal(t, spi.CS0, d.ChipSelect())
}

func TestAD9833SetCsChannelWhileAttached(t *testing.T) {
	d, port := newAttachedAD9833(t)
	require.Equal(t, spi.CS0, d.bus.ChipSelect())
	d.SetCsChannel(2)
	assert.Equal(t, spi.CS2, d.bus.ChipSelect())
	assert.Equal(t, spi.ProfileAD9833, d.bus.Profile())

	require.NoError(t, d.Shutdown())
	assert.Equal(t, []uint16{0x00C0}, ad9833Words(t, port, spi.CS2))
}

func TestAD9833InitializeIdleState(t *testing.T) {
	d, port := newAttachedAD9833(t)
	require.NoError(t, d.Begin())
	control := d.ControlRegister()
	port.ClearCalls()

	require.NoError(t, d.InitializeIdleState())
	assert.Equal(t, control, d.ControlRegister())
	calls := port.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, bridge.CallConfigureOutput, calls[0].Kind)
}
