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

import (
	"fmt"
	"sync"
)

// CallKind identifies the bridge primitive that was invoked.
type CallKind int

const (
	CallConfigureOutput CallKind = iota
	CallDriveLines
)

// Call is a single recorded invocation of the virtual bridge.
type Call struct {
	Kind          CallKind
	EnableMask    uint8
	DirectionMask uint8
	State         uint8
}

// VirtualBridge is an in-memory bridge that records every line change.
// It is used when no adapter hardware is available and in tests.
type VirtualBridge struct {
	mutex     sync.Mutex
	calls     []Call
	enabled   uint8
	direction uint8
	state     uint8
	closed    bool
	failAfter int
	failErr   error
}

// NewVirtualBridge creates a new virtual bridge.
func NewVirtualBridge() *VirtualBridge {
	return &VirtualBridge{failAfter: -1}
}

// ConfigureOutput records the configuration and drives the initial state.
func (b *VirtualBridge) ConfigureOutput(enableMask, directionMask, initialState uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	configureOutputTotal.WithLabelValues("virtual").Inc()
	if err := b.checkFailure(); err != nil {
		return err
	}
	if directionMask&^enableMask != 0 {
		return fmt.Errorf("direction mask 0x%02x exceeds enable mask 0x%02x", directionMask, enableMask)
	}
	b.calls = append(b.calls, Call{
		Kind:          CallConfigureOutput,
		EnableMask:    enableMask,
		DirectionMask: directionMask,
		State:         initialState,
	})
	b.enabled = enableMask
	b.direction = directionMask
	b.state = initialState & directionMask
	return nil
}

// DriveLines records the new line state.
func (b *VirtualBridge) DriveLines(directionMask, state uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if err := b.checkFailure(); err != nil {
		driveLinesErrorTotal.WithLabelValues("virtual").Inc()
		return err
	}
	if directionMask&^b.direction != 0 {
		return fmt.Errorf("lines 0x%02x are not configured as output", directionMask&^b.direction)
	}
	b.calls = append(b.calls, Call{
		Kind:          CallDriveLines,
		DirectionMask: directionMask,
		State:         state,
	})
	b.state = (b.state &^ directionMask) | (state & directionMask)
	return nil
}

// Close the bridge. Further calls fail.
func (b *VirtualBridge) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	return nil
}

// FailAfter makes the bridge fail every call after n more successful calls.
// A negative n disables failure injection.
func (b *VirtualBridge) FailAfter(n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.failAfter = n
	b.failErr = err
}

// Calls returns a copy of all recorded calls.
func (b *VirtualBridge) Calls() []Call {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return append([]Call(nil), b.calls...)
}

// Drives returns the states of all recorded DriveLines calls.
func (b *VirtualBridge) Drives() []uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	var result []uint8
	for _, c := range b.calls {
		if c.Kind == CallDriveLines {
			result = append(result, c.State)
		}
	}
	return result
}

// State returns the current level of the output lines.
func (b *VirtualBridge) State() uint8 {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// IsClosed returns true once Close has been called.
func (b *VirtualBridge) IsClosed() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.closed
}

// ClearCalls forgets all recorded calls.
func (b *VirtualBridge) ClearCalls() {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.calls = nil
}

// checkFailure must be called with the mutex held.
func (b *VirtualBridge) checkFailure() error {
	if b.closed {
		return fmt.Errorf("virtual bridge closed")
	}
	switch {
	case b.failAfter < 0:
		return nil
	case b.failAfter == 0:
		if b.failErr != nil {
			return b.failErr
		}
		return fmt.Errorf("virtual bridge failure")
	default:
		b.failAfter--
		return nil
	}
}
