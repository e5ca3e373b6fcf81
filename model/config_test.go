package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigIsValid(t *testing.T) {
	c := DefaultConfig()
	assert.NoError(t, c.Validate())
	ad, found := c.DeviceByType(HWDeviceTypeAD9833)
	assert.True(t, found)
	assert.Equal(t, 0, ad.ChipSelect)
	mcp, found := c.DeviceByType(HWDeviceTypeMCP41010)
	assert.True(t, found)
	assert.Equal(t, 1, mcp.ChipSelect)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *Config)
	}{
		{"zero clock", func(c *Config) { c.MasterClockHz = 0 }},
		{"shared chip select", func(c *Config) { c.Devices[1].ChipSelect = 0 }},
		{"chip select out of range", func(c *Config) { c.Devices[0].ChipSelect = 3 }},
		{"unknown type", func(c *Config) { c.Devices[0].Type = "mcp23017" }},
		{"missing device", func(c *Config) { c.Devices = c.Devices[:1] }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultConfig()
			tc.modify(&c)
			err := c.Validate()
			assert.Error(t, err)
			assert.True(t, IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestParseWaveform(t *testing.T) {
	w, err := ParseWaveform(" Square-Half ")
	assert.NoError(t, err)
	assert.Equal(t, WaveformSquareHalf, w)

	_, err = ParseWaveform("sawtooth")
	assert.True(t, IsInvalidArgument(err))
}

func TestGpioFaultCause(t *testing.T) {
	cause := assert.AnError
	err := GpioFault(cause, "drive lines 0x%02x", 0x2f)
	assert.True(t, IsGpioFault(err))
	assert.False(t, IsInvalidArgument(err))
	assert.Equal(t, cause, AdapterError(err))
	assert.Contains(t, err.Error(), "drive lines 0x2f")
}
