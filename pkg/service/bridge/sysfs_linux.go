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
//go:build linux

package bridge

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/ecc1/gpio"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
)

const (
	sysfsUnexportPath = "/sys/class/gpio/unexport"
)

type sysfsBridge struct {
	mutex sync.Mutex
	pins  [8]int
	lines [8]gpio.OutputPin
	state uint8
}

// NewSysfsBridge opens a bridge that maps port bit i (D0..D7) onto
// sysfs GPIO pin number pins[i].
func NewSysfsBridge(pins [8]int) (API, error) {
	return &sysfsBridge{pins: pins}, nil
}

// ConfigureOutput exports all lines in directionMask as outputs.
func (b *sysfsBridge) ConfigureOutput(enableMask, directionMask, initialState uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	configureOutputTotal.WithLabelValues("sysfs").Inc()
	mask := enableMask & directionMask
	for bit := uint(0); bit < 8; bit++ {
		if mask&(1<<bit) == 0 {
			b.lines[bit] = nil
			continue
		}
		pin := b.pins[bit]
		if pin == LineUnused {
			return fmt.Errorf("port bit D%d is not mapped to a gpio pin", bit)
		}
		activeLow := false
		initialValue := initialState&(1<<bit) != 0
		p, err := gpio.Output(pin, activeLow, initialValue)
		if err != nil {
			return errors.Wrapf(err, "Output[%d] failed", pin)
		}
		b.lines[bit] = p
	}
	b.state = initialState & mask
	return nil
}

// DriveLines writes the lines whose level changed.
func (b *sysfsBridge) DriveLines(directionMask, state uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for bit := uint(0); bit < 8; bit++ {
		m := uint8(1) << bit
		if directionMask&m == 0 {
			continue
		}
		p := b.lines[bit]
		if p == nil {
			driveLinesErrorTotal.WithLabelValues("sysfs").Inc()
			return fmt.Errorf("port bit D%d is not configured as output", bit)
		}
		if (b.state^state)&m == 0 {
			continue
		}
		if err := p.Write(state&m != 0); err != nil {
			driveLinesErrorTotal.WithLabelValues("sysfs").Inc()
			return errors.Wrapf(err, "Write[D%d] failed", bit)
		}
		b.state = (b.state &^ m) | (state & m)
	}
	return nil
}

// Close unexports all used pins.
func (b *sysfsBridge) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var ae aerr.AggregateError
	for bit, p := range b.lines {
		if p == nil {
			continue
		}
		b.lines[bit] = nil
		content := strconv.Itoa(b.pins[bit])
		if err := os.WriteFile(sysfsUnexportPath, []byte(content), 0644); err != nil {
			ae.Add(fmt.Errorf("failed to unexport pin %d: %w", b.pins[bit], err))
		}
	}
	return ae.AsError()
}
