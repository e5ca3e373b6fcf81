package model

import (
	"strings"

	"github.com/pkg/errors"
)

// Waveform identifies an output waveform of the signal generator.
type Waveform string

const (
	WaveformSine       Waveform = "sine"
	WaveformTriangle   Waveform = "triangle"
	WaveformSquare     Waveform = "square"
	WaveformSquareHalf Waveform = "square-half"
	WaveformOff        Waveform = "off"
)

// AllWaveforms lists all known waveforms.
var AllWaveforms = []Waveform{
	WaveformSine,
	WaveformTriangle,
	WaveformSquare,
	WaveformSquareHalf,
	WaveformOff,
}

// ParseWaveform parses a (case insensitive) waveform name.
func ParseWaveform(s string) (Waveform, error) {
	w := Waveform(strings.ToLower(strings.TrimSpace(s)))
	if err := w.Validate(); err != nil {
		return "", err
	}
	return w, nil
}

// Validate the waveform.
func (w Waveform) Validate() error {
	for _, x := range AllWaveforms {
		if x == w {
			return nil
		}
	}
	return errors.Wrapf(InvalidArgumentError, "unknown waveform '%s'", string(w))
}
