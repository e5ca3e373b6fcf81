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
	"sync"

	"github.com/pkg/errors"
	"github.com/warthog618/go-gpiocdev"
)

const (
	gpiocdevConsumer = "signalworker"
	// LineUnused marks a parallel port bit that is not wired to a GPIO line.
	LineUnused = -1
)

type gpiocdevBridge struct {
	mutex   sync.Mutex
	chip    *gpiocdev.Chip
	offsets [8]int
	lines   *gpiocdev.Lines
	bits    []uint // port bits of the requested lines, in request order
}

// NewGPIOCDevBridge opens a bridge that maps port bit i (D0..D7) onto
// line offsets[i] of the given Linux GPIO character device.
func NewGPIOCDevBridge(chipName string, offsets [8]int) (API, error) {
	chip, err := gpiocdev.NewChip(chipName, gpiocdev.WithConsumer(gpiocdevConsumer))
	if err != nil {
		return nil, fmt.Errorf("open gpio chip %s: %w", chipName, err)
	}
	return &gpiocdevBridge{
		chip:    chip,
		offsets: offsets,
	}, nil
}

// ConfigureOutput (re)requests all lines in directionMask as outputs.
func (b *gpiocdevBridge) ConfigureOutput(enableMask, directionMask, initialState uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	configureOutputTotal.WithLabelValues("gpiocdev").Inc()
	if b.chip == nil {
		return errors.New("bridge closed")
	}
	if b.lines != nil {
		b.lines.Close()
		b.lines = nil
		b.bits = nil
	}
	mask := enableMask & directionMask
	var offsets, values []int
	var bits []uint
	for bit := uint(0); bit < 8; bit++ {
		if mask&(1<<bit) == 0 {
			continue
		}
		offset := b.offsets[bit]
		if offset == LineUnused {
			return fmt.Errorf("port bit D%d is not mapped to a gpio line", bit)
		}
		offsets = append(offsets, offset)
		values = append(values, int((initialState>>bit)&1))
		bits = append(bits, bit)
	}
	if len(offsets) == 0 {
		return nil
	}
	lines, err := b.chip.RequestLines(offsets, gpiocdev.AsOutput(values...), gpiocdev.WithConsumer(gpiocdevConsumer))
	if err != nil {
		return fmt.Errorf("request lines %v: %w", offsets, err)
	}
	b.lines = lines
	b.bits = bits
	return nil
}

// DriveLines sets the value of all requested lines in directionMask.
func (b *gpiocdevBridge) DriveLines(directionMask, state uint8) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.lines == nil {
		driveLinesErrorTotal.WithLabelValues("gpiocdev").Inc()
		return errors.New("lines not configured")
	}
	values := make([]int, len(b.bits))
	for i, bit := range b.bits {
		if directionMask&(1<<bit) == 0 {
			driveLinesErrorTotal.WithLabelValues("gpiocdev").Inc()
			return fmt.Errorf("configured line D%d missing from direction mask 0x%02x", bit, directionMask)
		}
		values[i] = int((state >> bit) & 1)
	}
	if err := b.lines.SetValues(values); err != nil {
		driveLinesErrorTotal.WithLabelValues("gpiocdev").Inc()
		return fmt.Errorf("set values: %w", err)
	}
	return nil
}

// Close releases the lines and the chip.
func (b *gpiocdevBridge) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	var errs []error
	if b.lines != nil {
		if err := b.lines.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close lines: %w", err))
		}
		b.lines = nil
	}
	if b.chip != nil {
		if err := b.chip.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close chip: %w", err))
		}
		b.chip = nil
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}
