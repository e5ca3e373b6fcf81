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
package generator

import (
	"github.com/dustin/go-humanize"

	"github.com/sonicwave/SignalWorker/model"
)

// State is a snapshot of the session.
type State struct {
	// DeviceOpen is set once the bridge is opened.
	DeviceOpen bool `json:"device_open"`
	// ADReady is set once the AD9833 is attached and initialized.
	ADReady bool `json:"ad_ready"`
	// MCPReady is set once the MCP41010 is attached and its wiper is at 0.
	MCPReady bool `json:"mcp_ready"`
	// Ready is ADReady && MCPReady.
	Ready         bool `json:"ready"`
	OutputEnabled bool `json:"output_enabled"`
	Transitioning bool `json:"transitioning"`
	// Desired output frequency in Hz
	Frequency float64 `json:"frequency_hz"`
	// Desired wiper setting (0..255)
	Intensity int            `json:"intensity"`
	Waveform  model.Waveform `json:"waveform"`
	LastError string         `json:"last_error,omitempty"`
}

// FrequencyText returns the frequency in human readable SI form.
func (s State) FrequencyText() string {
	return humanize.SIWithDigits(s.Frequency, 3, "Hz")
}

// desiredState is what the caller asked for, independent of hardware readiness.
type desiredState struct {
	frequency     float64
	intensity     int
	outputEnabled bool
	waveform      model.Waveform
}

func defaultDesiredState() desiredState {
	return desiredState{
		waveform: model.WaveformSine,
	}
}
