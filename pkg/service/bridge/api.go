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

package bridge

// API of the bridge, the USB adapter that exposes an 8-bit parallel
// GPIO port (D0..D7) on which the SPI bus is emulated.
type API interface {
	// ConfigureOutput enables the lines in enableMask, configures the lines
	// in directionMask as outputs and drives them to initialState.
	ConfigureOutput(enableMask, directionMask, initialState uint8) error
	// DriveLines drives all output lines in directionMask to the
	// corresponding bits of state.
	DriveLines(directionMask, state uint8) error

	Close() error
}

// Opener opens the bridge adapter.
type Opener func() (API, error)
