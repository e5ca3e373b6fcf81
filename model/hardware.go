package model

import "github.com/pkg/errors"

// HWDevice describes one SPI chip attached to the emulated bus.
type HWDevice struct {
	// Type of the device
	Type HWDeviceType `json:"type"`
	// ChipSelect is the index (0..2) of the chip-select line used for the device.
	ChipSelect int `json:"chip_select"`
}

// HWDeviceType identifies a supported chip.
type HWDeviceType string

const (
	HWDeviceTypeAD9833   HWDeviceType = "ad9833"
	HWDeviceTypeMCP41010 HWDeviceType = "mcp41010"
)

// Validate the device type.
func (t HWDeviceType) Validate() error {
	switch t {
	case HWDeviceTypeAD9833, HWDeviceTypeMCP41010:
		return nil
	default:
		return errors.Wrapf(ValidationError, "invalid device type '%s'", string(t))
	}
}

// Validate the device.
func (d HWDevice) Validate() error {
	if err := d.Type.Validate(); err != nil {
		return maskAny(err)
	}
	if d.ChipSelect < 0 || d.ChipSelect > 2 {
		return errors.Wrapf(ValidationError, "chip select of %s must be 0..2, got %d", d.Type, d.ChipSelect)
	}
	return nil
}
