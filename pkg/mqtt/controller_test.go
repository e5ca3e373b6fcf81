// Copyright 2024 Ewout Prangsma
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

package mqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/generator"
)

type fakeService struct {
	state       generator.State
	err         error
	calls       []string
	frequency   float64
	intensity   int
	waveform    model.Waveform
	subscribers int
}

func (f *fakeService) ApplyFrequency(ctx context.Context, hz float64) error {
	f.calls = append(f.calls, "frequency")
	f.frequency = hz
	return f.err
}

func (f *fakeService) ApplyIntensity(ctx context.Context, value int) error {
	f.calls = append(f.calls, "intensity")
	f.intensity = value
	return f.err
}

func (f *fakeService) SetWaveform(ctx context.Context, w model.Waveform) error {
	f.calls = append(f.calls, "waveform")
	f.waveform = w
	return f.err
}

func (f *fakeService) StartOutput(ctx context.Context, hz float64, intensity int) error {
	f.calls = append(f.calls, "start")
	f.frequency, f.intensity = hz, intensity
	return f.err
}

func (f *fakeService) StopOutput(ctx context.Context) error {
	f.calls = append(f.calls, "stop")
	return f.err
}

func (f *fakeService) State() generator.State { return f.state }

func (f *fakeService) Subscribe(cb func(generator.State)) context.CancelFunc {
	f.subscribers++
	return func() { f.subscribers-- }
}

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 0 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func newTestController(t *testing.T, svc Service) *Controller {
	c, err := New(Config{BrokerAddress: "tcp://localhost:1883", TopicPrefix: "lab/gen1/"}, zerolog.Nop(), svc)
	require.NoError(t, err)
	return c
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{}, zerolog.Nop(), &fakeService{})
	assert.True(t, model.IsValidation(err))

	_, err = New(Config{BrokerAddress: "tcp://localhost:1883"}, zerolog.Nop(), nil)
	assert.True(t, model.IsValidation(err))

	c, err := New(Config{BrokerAddress: "tcp://localhost:1883"}, zerolog.Nop(), &fakeService{})
	require.NoError(t, err)
	assert.Equal(t, DefaultClientID, c.cfg.ClientID)
	assert.Equal(t, "signalworker/log", c.LogTopic())
	assert.Equal(t, "signalworker/state", c.topics.state)
}

func TestTopics(t *testing.T) {
	tp := newTopics("lab/gen1/")
	assert.Equal(t, []string{
		"lab/gen1/frequency/set",
		"lab/gen1/intensity/set",
		"lab/gen1/waveform/set",
		"lab/gen1/output/set",
	}, tp.commands())
	assert.Equal(t, "lab/gen1/state", tp.state)
	assert.Equal(t, "lab/gen1/online", tp.online)
}

func TestHandleFrequency(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(t, svc)
	require.NoError(t, c.handleCommand(context.Background(), "lab/gen1/frequency/set", "1.5 kHz"))
	assert.Equal(t, 1500.0, svc.frequency)

	assert.True(t, model.IsInvalidArgument(c.handleCommand(context.Background(), "lab/gen1/frequency/set", "fast")))
	assert.Equal(t, []string{"frequency"}, svc.calls)
}

func TestHandleIntensity(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(t, svc)
	require.NoError(t, c.handleCommand(context.Background(), "lab/gen1/intensity/set", " 200\n"))
	assert.Equal(t, 200, svc.intensity)

	assert.True(t, model.IsInvalidArgument(c.handleCommand(context.Background(), "lab/gen1/intensity/set", "loud")))
}

func TestHandleWaveform(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(t, svc)
	require.NoError(t, c.handleCommand(context.Background(), "lab/gen1/waveform/set", "SQUARE"))
	assert.Equal(t, model.WaveformSquare, svc.waveform)

	assert.True(t, model.IsInvalidArgument(c.handleCommand(context.Background(), "lab/gen1/waveform/set", "noise")))
}

func TestHandleOutput(t *testing.T) {
	svc := &fakeService{state: generator.State{Frequency: 440, Intensity: 30}}
	c := newTestController(t, svc)
	require.NoError(t, c.handleCommand(context.Background(), "lab/gen1/output/set", "ON"))
	assert.Equal(t, 440.0, svc.frequency)
	assert.Equal(t, 30, svc.intensity)
	require.NoError(t, c.handleCommand(context.Background(), "lab/gen1/output/set", "off"))
	assert.Equal(t, []string{"start", "stop"}, svc.calls)

	assert.True(t, model.IsInvalidArgument(c.handleCommand(context.Background(), "lab/gen1/output/set", "maybe")))
}

func TestHandleUnknownTopic(t *testing.T) {
	svc := &fakeService{}
	c := newTestController(t, svc)
	assert.True(t, model.IsInvalidArgument(c.handleCommand(context.Background(), "lab/gen1/phase/set", "1")))
	assert.Empty(t, svc.calls)
}

func TestOnMessageServiceError(t *testing.T) {
	svc := &fakeService{err: errors.Wrap(model.NotReadyError, "not open")}
	c := newTestController(t, svc)
	c.onMessage(nil, fakeMessage{topic: "lab/gen1/intensity/set", payload: []byte("12")})
	assert.Equal(t, []string{"intensity"}, svc.calls)
	assert.Equal(t, 12, svc.intensity)
}

func TestPublishNotConnected(t *testing.T) {
	c := newTestController(t, &fakeService{})
	err := c.Publish(context.Background(), "lab/gen1/state", []byte("{}"), true)
	assert.True(t, IsNotConnected(err))
	// Publishing state without a connection is silently skipped
	c.publishState()
}

func TestFormatState(t *testing.T) {
	encoded, err := formatState(generator.State{Ready: true, OutputEnabled: true, Frequency: 1000, Intensity: 7, Waveform: model.WaveformTriangle})
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	assert.Equal(t, true, decoded["ready"])
	assert.Equal(t, true, decoded["output_enabled"])
	assert.Equal(t, 1000.0, decoded["frequency_hz"])
	assert.Equal(t, 7.0, decoded["intensity"])
	assert.Equal(t, "triangle", decoded["waveform"])
	assert.Equal(t, "1 kHz", decoded["frequency_text"])
	assert.NotContains(t, decoded, "last_error")
}

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		in  string
		out float64
	}{
		{"440", 440},
		{"1k", 1000},
		{"2.5kHz", 2500},
		{" 12.5 Hz ", 12.5},
		{"1M", 1000000},
	}
	for _, tc := range tests {
		hz, err := parseFrequency(tc.in)
		require.NoError(t, err, tc.in)
		assert.InDelta(t, tc.out, hz, 1e-9, tc.in)
	}
	for _, in := range []string{"", "abc", "10 volt"} {
		_, err := parseFrequency(in)
		assert.True(t, model.IsInvalidArgument(err), in)
	}
}

func TestParseBool(t *testing.T) {
	for _, in := range []string{"1", "true", "ON", "yes"} {
		v, err := parseBool(in)
		require.NoError(t, err)
		assert.True(t, v, in)
	}
	for _, in := range []string{"0", "False", "off", "no"} {
		v, err := parseBool(in)
		require.NoError(t, err)
		assert.False(t, v, in)
	}
	_, err := parseBool("sometimes")
	assert.Error(t, err)
}

func TestCommandName(t *testing.T) {
	assert.Equal(t, "frequency", commandName("lab/gen1/frequency/set"))
	assert.Equal(t, "x", commandName("x"))
}
