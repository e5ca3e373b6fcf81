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
//go:build !linux

package bridge

import "errors"

// LineUnused marks a parallel port bit that is not wired to a GPIO line.
const LineUnused = -1

// NewGPIOCDevBridge is not available on non-Linux platforms.
func NewGPIOCDevBridge(chipName string, offsets [8]int) (API, error) {
	return nil, errors.New("bridge: gpiocdev not supported on this platform (requires Linux)")
}

// NewSysfsBridge is not available on non-Linux platforms.
func NewSysfsBridge(pins [8]int) (API, error) {
	return nil, errors.New("bridge: sysfs gpio not supported on this platform (requires Linux)")
}
