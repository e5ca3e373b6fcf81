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
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
)

type recordingDelayer struct {
	delays []time.Duration
}

func (r *recordingDelayer) Delay(d time.Duration) {
	r.delays = append(r.delays, d)
}

func (r *recordingDelayer) total() time.Duration {
	var sum time.Duration
	for _, d := range r.delays {
		sum += d
	}
	return sum
}

func newTestEngine(t *testing.T) (*Engine, *bridge.VirtualBridge, *recordingDelayer) {
	port := bridge.NewVirtualBridge()
	delays := &recordingDelayer{}
	e := NewEngine(port, WithDelayer(delays))
	require.NoError(t, port.ConfigureOutput(uint8(EnableMask), uint8(DirectionMask), 0x0F))
	port.ClearCalls()
	return e, port, delays
}

func TestConfigureIdle(t *testing.T) {
	port := bridge.NewVirtualBridge()
	delays := &recordingDelayer{}
	e := NewEngine(port, WithDelayer(delays))

	require.NoError(t, e.ConfigureIdle(ProfileAD9833))
	require.NoError(t, e.ConfigureIdle(ProfileMCP41010))

	calls := port.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, bridge.Call{Kind: bridge.CallConfigureOutput, EnableMask: 0x3F, DirectionMask: 0x2F, State: 0x0F}, calls[0])
	assert.Equal(t, bridge.Call{Kind: bridge.CallConfigureOutput, EnableMask: 0x3F, DirectionMask: 0x2F, State: 0x07}, calls[1])
	assert.Equal(t, []time.Duration{time.Millisecond, time.Millisecond}, delays.delays)
}

func TestConfigureIdleLogsState(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine(bridge.NewVirtualBridge(), WithDelayer(NoDelay), WithLogger(zerolog.New(&buf)))

	require.NoError(t, e.ConfigureIdle(ProfileAD9833))
	assert.Contains(t, buf.String(), `"idle":"0x0f"`)
	assert.Contains(t, buf.String(), `"profile":"ad9833"`)
}

func TestConfigureIdleFault(t *testing.T) {
	port := bridge.NewVirtualBridge()
	port.FailAfter(0, errors.New("unplugged"))
	e := NewEngine(port, WithDelayer(NoDelay))

	err := e.ConfigureIdle(ProfileAD9833)
	require.Error(t, err)
	assert.True(t, model.IsGpioFault(err))
	assert.EqualError(t, model.AdapterError(err), "unplugged")
}

func TestTransferWordMode2Sequence(t *testing.T) {
	e, port, delays := newTestEngine(t)

	require.NoError(t, e.TransferWords([]uint16{0x8000}, CS0, ProfileAD9833))

	drives := port.Drives()
	require.Len(t, drives, 1+16*3+1)
	assert.Equal(t, uint8(0x0E), drives[0], "select CS0, clock idle high")
	assert.Equal(t, []uint8{0x2E, 0x26, 0x2E}, drives[1:4], "first bit is 1")
	for i := 1; i < 16; i++ {
		assert.Equal(t, []uint8{0x0E, 0x06, 0x0E}, drives[1+i*3:4+i*3], "bit %d is 0", i)
	}
	assert.Equal(t, uint8(0x0F), drives[len(drives)-1], "idle")

	require.Len(t, delays.delays, 51)
	assert.Equal(t, 50*2*time.Microsecond+10*time.Microsecond, delays.total())
	assert.Equal(t, 10*time.Microsecond, delays.delays[50])
}

func TestTransferWordMode0Sequence(t *testing.T) {
	e, port, delays := newTestEngine(t)

	require.NoError(t, e.TransferWords([]uint16{0x0001}, CS1, ProfileMCP41010))

	drives := port.Drives()
	require.Len(t, drives, 50)
	assert.Equal(t, uint8(0x05), drives[0], "select CS1, clock idle low")
	assert.Equal(t, []uint8{0x05, 0x0D, 0x05}, drives[1:4], "first bit is 0")
	assert.Equal(t, []uint8{0x25, 0x2D, 0x25}, drives[46:49], "last bit is 1")
	assert.Equal(t, uint8(0x07), drives[49], "idle")
	// No word gap
	assert.Len(t, delays.delays, 50)
}

func TestTransferChipSelectExclusive(t *testing.T) {
	for _, cs := range []ChipSelect{CS0, CS1, CS2} {
		e, port, _ := newTestEngine(t)
		require.NoError(t, e.TransferWords([]uint16{0xA5A5, 0x5A5A}, cs, ProfileAD9833))

		for i, s := range port.Drives() {
			low := LinesAllCS &^ LineState(s)
			assert.True(t, low == 0 || low == cs.Line(), "state %d (%02x) selects other chips", i, s)
		}
		words, err := DecodeWords(port.Drives(), cs, ProfileAD9833)
		require.NoError(t, err)
		assert.Equal(t, []uint16{0xA5A5, 0x5A5A}, words)
	}
}

func TestTransferAllModesRoundTrip(t *testing.T) {
	words := []uint16{0x0000, 0xFFFF, 0x1234, 0x8001, 0x2100}
	for mode := 0; mode < 4; mode++ {
		for _, order := range []BitOrder{MSBFirst, LSBFirst} {
			p := Profile{
				Name:             "test",
				ClockIdleHigh:    mode&2 != 0,
				SampleSecondEdge: mode&1 != 0,
				BitOrder:         order,
			}
			require.Equal(t, mode, p.Mode())
			port := bridge.NewVirtualBridge()
			e := NewEngine(port, WithDelayer(NoDelay))
			require.NoError(t, e.ConfigureIdle(p))
			require.NoError(t, e.TransferWords(words, CS2, p))

			decoded, err := DecodeWords(port.Drives(), CS2, p)
			require.NoError(t, err)
			assert.Equal(t, words, decoded, "mode %d order %d", mode, order)
			assert.Equal(t, uint8(LinesAllCS|p.idleClock()), port.State(), "bus returns to idle")
		}
	}
}

func TestTransferAbortsOnFault(t *testing.T) {
	e, port, _ := newTestEngine(t)
	port.FailAfter(5, errors.New("write failed"))

	err := e.TransferWords([]uint16{0x1234, 0x5678}, CS0, ProfileAD9833)
	require.Error(t, err)
	assert.True(t, model.IsGpioFault(err))
	assert.Len(t, port.Drives(), 5)
}

func TestTransferInvalidChipSelect(t *testing.T) {
	e, port, _ := newTestEngine(t)

	err := e.TransferWords([]uint16{0x1234}, ChipSelect(3), ProfileAD9833)
	require.Error(t, err)
	assert.True(t, model.IsInvalidArgument(err))
	assert.Empty(t, port.Calls())
}

func TestTransferEmpty(t *testing.T) {
	e, port, _ := newTestEngine(t)
	require.NoError(t, e.TransferWords(nil, CS0, ProfileAD9833))
	assert.Empty(t, port.Calls())
}

func TestChipSelectOrDefault(t *testing.T) {
	assert.Equal(t, CS2, ChipSelectOrDefault(2, CS0))
	assert.Equal(t, CS0, ChipSelectOrDefault(3, CS0))
	assert.Equal(t, CS1, ChipSelectOrDefault(-1, CS1))
}

func TestDecodeRejectsMultipleChipSelects(t *testing.T) {
	_, err := DecodeFrames([]uint8{0x0C}, ProfileMCP41010)
	assert.Error(t, err)
}
