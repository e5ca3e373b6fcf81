package model

import (
	"github.com/pkg/errors"
)

const (
	// DefaultMasterClockHz is the AD9833 reference clock on common breakout boards.
	DefaultMasterClockHz = 25_000_000
	// GPIOLineCount is the number of parallel port lines (D0..D7).
	GPIOLineCount = 8
)

// Config of the signal worker hardware.
type Config struct {
	// Frequency of the AD9833 master clock in Hz.
	MasterClockHz float64 `json:"mclk_hz"`
	// Devices attached to the emulated SPI bus.
	Devices []HWDevice `json:"devices"`
}

// DefaultConfig returns the wiring of the common adapter board:
// AD9833 on CS0, MCP41010 on CS1.
func DefaultConfig() Config {
	return Config{
		MasterClockHz: DefaultMasterClockHz,
		Devices: []HWDevice{
			{Type: HWDeviceTypeAD9833, ChipSelect: 0},
			{Type: HWDeviceTypeMCP41010, ChipSelect: 1},
		},
	}
}

// DeviceByType returns the first device of the given type.
func (c Config) DeviceByType(t HWDeviceType) (HWDevice, bool) {
	for _, d := range c.Devices {
		if d.Type == t {
			return d, true
		}
	}
	return HWDevice{}, false
}

// Validate the configuration.
func (c Config) Validate() error {
	if c.MasterClockHz <= 0 {
		return errors.Wrapf(ValidationError, "master clock must be positive, got %v", c.MasterClockHz)
	}
	used := make(map[int]HWDeviceType)
	for _, d := range c.Devices {
		if err := d.Validate(); err != nil {
			return maskAny(err)
		}
		if other, found := used[d.ChipSelect]; found {
			return errors.Wrapf(ValidationError, "chip select %d used by both %s and %s", d.ChipSelect, other, d.Type)
		}
		used[d.ChipSelect] = d.Type
	}
	for _, t := range []HWDeviceType{HWDeviceTypeAD9833, HWDeviceTypeMCP41010} {
		if _, found := c.DeviceByType(t); !found {
			return errors.Wrapf(ValidationError, "missing device '%s'", t)
		}
	}
	return nil
}
