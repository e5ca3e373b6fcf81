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
package generator

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/mattn/go-pubsub"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/devices"
	"github.com/sonicwave/SignalWorker/pkg/service/spi"
	"github.com/sonicwave/SignalWorker/pkg/service/util"
)

const (
	// Hold between switching the output off and selecting a new waveform
	outputSwitchDelay = 5 * time.Millisecond
	// A ramp is aborted after this many consecutive failed ticks
	maxRampFailures = 3
	// The generator always uses frequency register 0
	frequencyChannel = 0
)

// MaxFrequencyHz is the highest accepted frequency.
const MaxFrequencyHz = math.MaxInt32

// Service manages a signal generator session: an AD9833 producing the
// waveform and an MCP41010 setting its intensity, both on one bridge.
type Service interface {
	// Open the bridge and initialize chips that are not ready yet.
	// Does nothing when the hardware is already ready.
	Open(ctx context.Context) error
	// Run keeps the hardware open until the given context is canceled.
	Run(ctx context.Context) error
	// ApplyFrequency sets the desired frequency (Hz, negative values become 0).
	// It is written to the hardware when ready and different from the last written value.
	ApplyFrequency(ctx context.Context, hz float64) error
	// ApplyIntensity sets the desired wiper setting (clamped to 0..255).
	ApplyIntensity(ctx context.Context, value int) error
	// SetWaveform selects the waveform used while the output is enabled.
	SetWaveform(ctx context.Context, w model.Waveform) error
	// StartOutput applies the given values and enables the output.
	StartOutput(ctx context.Context, hz float64, intensity int) error
	// StopOutput disables the output.
	StopOutput(ctx context.Context) error
	// TransitionTo ramps frequency and intensity to the given targets in the background.
	TransitionTo(hz float64, intensity int, spec RampSpec) error
	// Close detaches all chips and closes the bridge.
	Close(ctx context.Context) error
	// State returns a snapshot of the session.
	State() State
	// Subscribe calls cb with a snapshot on every state change.
	// Call the returned function to unsubscribe.
	Subscribe(cb func(State)) context.CancelFunc
}

// Config of the generator service.
type Config struct {
	Hardware model.Config
	// Backoff of the Run loop.
	SupervisorBackoff util.Backoff
}

// Dependencies of the generator service.
type Dependencies struct {
	Log    zerolog.Logger
	Opener bridge.Opener
	// Delayer used for bus timing. Defaults to spi.SleepDelayer.
	Delayer spi.Delayer
}

type service struct {
	Config
	Dependencies

	mutex            sync.Mutex
	bus              bridge.Bus
	ad               *devices.AD9833
	pot              *devices.MCP41010
	state            State
	desired          desiredState
	lastFrequency    float64 // NaN when unknown
	lastIntensity    int     // -1 when unknown
	lastMode         devices.Mode
	states           *pubsub.PubSub
	transitionID     uint64
	transitionCancel context.CancelFunc

	subscriberMutex  sync.Mutex
	subscribers      map[uint64]func(State)
	lastSubscriberID uint64
}

// NewService creates a generator service for the given hardware configuration.
func NewService(conf Config, deps Dependencies) (Service, error) {
	if err := conf.Hardware.Validate(); err != nil {
		return nil, errors.WithStack(err)
	}
	if deps.Opener == nil {
		return nil, model.InvalidArgument("opener is required")
	}
	if deps.Delayer == nil {
		deps.Delayer = spi.SleepDelayer
	}
	if conf.SupervisorBackoff.Interval <= 0 {
		conf.SupervisorBackoff = util.Backoff{Interval: time.Second, MaxDelay: time.Second * 30}
	}
	deps.Log = deps.Log.With().Str("component", "generator").Logger()

	options := []devices.Option{
		devices.WithDelayer(deps.Delayer),
		devices.WithLogger(deps.Log),
	}
	ad := devices.NewAD9833(append(options, devices.WithMasterClock(conf.Hardware.MasterClockHz))...)
	if hw, found := conf.Hardware.DeviceByType(model.HWDeviceTypeAD9833); found {
		ad.SetCsChannel(hw.ChipSelect)
	}
	pot := devices.NewMCP41010(options...)
	if hw, found := conf.Hardware.DeviceByType(model.HWDeviceTypeMCP41010); found {
		pot.SetCsChannel(hw.ChipSelect)
	}
	s := &service{
		Config:        conf,
		Dependencies:  deps,
		ad:            ad,
		pot:           pot,
		desired:       defaultDesiredState(),
		lastFrequency: math.NaN(),
		lastIntensity: -1,
		lastMode:      devices.ModeOff,
		states:        pubsub.New(),
		subscribers:   make(map[uint64]func(State)),
	}
	s.states.Sub(s.notifySubscribers)
	return s, nil
}

// State returns a snapshot of the session.
func (s *service) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.snapshotLocked()
}

// Subscribe calls cb with a snapshot on every state change.
func (s *service) Subscribe(cb func(State)) context.CancelFunc {
	s.subscriberMutex.Lock()
	defer s.subscriberMutex.Unlock()
	s.lastSubscriberID++
	id := s.lastSubscriberID
	s.subscribers[id] = cb
	return func() {
		s.subscriberMutex.Lock()
		defer s.subscriberMutex.Unlock()
		delete(s.subscribers, id)
	}
}

// notifySubscribers passes a published snapshot to every subscriber.
func (s *service) notifySubscribers(st State) {
	s.subscriberMutex.Lock()
	callbacks := make([]func(State), 0, len(s.subscribers))
	for _, cb := range s.subscribers {
		callbacks = append(callbacks, cb)
	}
	s.subscriberMutex.Unlock()
	for _, cb := range callbacks {
		cb(st)
	}
}

// Run keeps the hardware open until the given context is canceled.
// A session dropped by a gpio fault is reopened on the next round.
func (s *service) Run(ctx context.Context) error {
	return util.UntilCanceled(ctx, s.Log, "open hardware", s.SupervisorBackoff, func() error {
		return s.Open(ctx)
	})
}

// Open the bridge and initialize chips that are not ready yet.
func (s *service) Open(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state.DeviceOpen && s.isReadyLocked() {
		return nil
	}
	if !s.state.DeviceOpen {
		port, err := s.Opener()
		if err != nil {
			openTotal.WithLabelValues("failed").Inc()
			s.state.LastError = err.Error()
			s.publishLocked()
			return errors.Wrap(err, "failed to open bridge")
		}
		s.bus = bridge.NewBus(port, s.Log)
		s.state.DeviceOpen = true
		s.Log.Info().Msg("bridge opened")
	}

	wasReady := s.isReadyLocked()
	var errs []error
	if !s.state.MCPReady {
		if err := s.initMCP41010Locked(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if !s.state.ADReady {
		if err := s.initAD9833Locked(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if !wasReady && s.isReadyLocked() {
		waveform := s.desired.waveform
		s.desired = defaultDesiredState()
		s.desired.waveform = waveform
		s.Log.Info().Msg("hardware ready")
	}

	switch len(errs) {
	case 0:
		openTotal.WithLabelValues("success").Inc()
		s.state.LastError = ""
		s.publishLocked()
		return nil
	case 1:
		openTotal.WithLabelValues("failed").Inc()
		return s.failLocked(errs[0], "open hardware")
	default:
		openTotal.WithLabelValues("failed").Inc()
		var ae aerr.AggregateError
		for _, err := range errs {
			ae.Add(err)
		}
		if lo.ContainsBy(errs, model.IsGpioFault) {
			return s.failLocked(model.GpioFault(ae.AsError(), "open hardware"), "open hardware")
		}
		return s.failLocked(ae.AsError(), "open hardware")
	}
}

// initMCP41010Locked attaches the potentiometer and sets its wiper to 0.
func (s *service) initMCP41010Locked(ctx context.Context) error {
	if err := s.execute(ctx, func(port bridge.API) error {
		if err := s.pot.Attach(port); err != nil {
			return err
		}
		return s.pot.WriteValue(0)
	}); err != nil {
		s.state.MCPReady = false
		return errors.Wrap(err, "failed to initialize mcp41010")
	}
	s.lastIntensity = 0
	intensityGauge.Set(0)
	s.state.MCPReady = true
	s.Log.Info().Int("cs", int(s.pot.ChipSelect())).Msg("mcp41010 initialized")
	return nil
}

// initAD9833Locked attaches the generator, resets it and powers down its output.
func (s *service) initAD9833Locked(ctx context.Context) error {
	if err := s.execute(ctx, func(port bridge.API) error {
		if err := s.ad.Attach(port); err != nil {
			return err
		}
		if err := s.ad.Begin(); err != nil {
			return err
		}
		return s.ad.Shutdown()
	}); err != nil {
		s.state.ADReady = false
		return errors.Wrap(err, "failed to initialize ad9833")
	}
	s.lastFrequency = math.NaN()
	s.lastMode = devices.ModeOff
	s.state.ADReady = true
	s.Log.Info().
		Int("cs", int(s.ad.ChipSelect())).
		Str("mclk", humanize.SIWithDigits(s.ad.MasterClock(), 3, "Hz")).
		Msg("ad9833 initialized")
	return nil
}

// ApplyFrequency sets the desired frequency.
func (s *service) ApplyFrequency(ctx context.Context, hz float64) error {
	if err := validateFrequency(hz); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.desired.frequency = math.Max(hz, 0)
	err := s.applyFrequencyLocked(ctx, s.desired.frequency, false)
	s.publishLocked()
	return err
}

// ApplyIntensity sets the desired wiper setting.
func (s *service) ApplyIntensity(ctx context.Context, value int) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.desired.intensity = lo.Clamp(value, 0, devices.MaxWiper)
	err := s.applyIntensityLocked(ctx, s.desired.intensity, false)
	s.publishLocked()
	return err
}

// SetWaveform selects the waveform used while the output is enabled.
func (s *service) SetWaveform(ctx context.Context, w model.Waveform) error {
	mode, err := devices.ModeForWaveform(w)
	if err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.desired.waveform = w
	if s.isReadyLocked() && s.desired.outputEnabled {
		if err := s.execute(ctx, func(bridge.API) error {
			if err := s.ad.SetMode(mode); err != nil {
				return err
			}
			s.lastMode = mode
			return nil
		}); err != nil {
			return s.failLocked(err, "set waveform")
		}
	}
	s.publishLocked()
	return nil
}

// StartOutput applies the given values and enables the output.
func (s *service) StartOutput(ctx context.Context, hz float64, intensity int) error {
	if err := validateFrequency(hz); err != nil {
		return err
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cancelTransitionLocked()
	s.desired.frequency = math.Max(hz, 0)
	s.desired.intensity = lo.Clamp(intensity, 0, devices.MaxWiper)
	if !s.isReadyLocked() {
		s.desired.outputEnabled = false
		s.publishLocked()
		return errors.Wrap(model.NotReadyError, "hardware is initializing")
	}
	s.desired.outputEnabled = true
	if err := s.startOutputLocked(ctx); err != nil {
		s.desired.outputEnabled = false
		outputEnabledGauge.Set(0)
		s.publishLocked()
		return err
	}
	outputEnabledGauge.Set(1)
	s.Log.Info().
		Str("frequency", humanize.SIWithDigits(s.desired.frequency, 3, "Hz")).
		Int("intensity", s.desired.intensity).
		Str("waveform", string(s.desired.waveform)).
		Msg("output started")
	s.publishLocked()
	return nil
}

func (s *service) startOutputLocked(ctx context.Context) error {
	if err := s.applyFrequencyLocked(ctx, s.desired.frequency, false); err != nil {
		return err
	}
	if err := s.applyIntensityLocked(ctx, s.desired.intensity, false); err != nil {
		return err
	}
	mode, err := devices.ModeForWaveform(s.desired.waveform)
	if err != nil {
		return err
	}
	if err := s.execute(ctx, func(bridge.API) error {
		if s.lastMode != devices.ModeOff {
			if err := s.ad.SetMode(devices.ModeOff); err != nil {
				return err
			}
			s.lastMode = devices.ModeOff
			s.Delayer.Delay(outputSwitchDelay)
		}
		if err := s.ad.SetMode(mode); err != nil {
			return err
		}
		s.lastMode = mode
		return nil
	}); err != nil {
		return s.failLocked(err, "start output")
	}
	return nil
}

// StopOutput disables the output.
func (s *service) StopOutput(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cancelTransitionLocked()
	s.desired.outputEnabled = false
	outputEnabledGauge.Set(0)
	if !s.isReadyLocked() {
		s.publishLocked()
		return nil
	}
	if err := s.execute(ctx, s.stopOutputOp); err != nil {
		return s.failLocked(err, "stop output")
	}
	s.Log.Info().Msg("output stopped")
	s.publishLocked()
	return nil
}

// stopOutputOp switches the output off, passing through sine so the DAC
// settles at mid scale.
func (s *service) stopOutputOp(bridge.API) error {
	if s.lastMode != devices.ModeOff {
		if err := s.ad.SetMode(devices.ModeOff); err != nil {
			return err
		}
		s.lastMode = devices.ModeOff
	}
	if err := s.ad.SetMode(devices.ModeSine); err != nil {
		return err
	}
	if err := s.ad.SetMode(devices.ModeOff); err != nil {
		return err
	}
	s.lastMode = devices.ModeOff
	return nil
}

// TransitionTo ramps frequency and intensity to the given targets.
func (s *service) TransitionTo(hz float64, intensity int, spec RampSpec) error {
	if err := validateFrequency(hz); err != nil {
		return err
	}
	startFreq, startIntensity := s.rampStart()
	plan, err := PlanRamp(startFreq, startIntensity,
		int(math.Round(math.Max(hz, 0))), lo.Clamp(intensity, 0, devices.MaxWiper), spec)
	if err != nil {
		return err
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.cancelTransitionLocked()
	ctx, cancel := context.WithCancel(context.Background())
	s.transitionID++
	s.transitionCancel = cancel
	s.state.Transitioning = true
	s.publishLocked()
	go s.runTransition(ctx, s.transitionID, plan)
	return nil
}

// rampStart returns the last applied frequency & intensity, falling back
// to the desired values.
func (s *service) rampStart() (int, int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	startFreq := int(math.Round(s.desired.frequency))
	if !math.IsNaN(s.lastFrequency) {
		startFreq = int(math.Round(s.lastFrequency))
	}
	startIntensity := s.desired.intensity
	if s.lastIntensity >= 0 {
		startIntensity = s.lastIntensity
	}
	return startFreq, startIntensity
}

// runTransition applies the points of the plan, one per tick.
func (s *service) runTransition(ctx context.Context, id uint64, plan RampPlan) {
	log := s.Log.With().Uint64("transition", id).Logger()
	defer func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		if s.transitionID == id {
			s.transitionCancel = nil
			s.state.Transitioning = false
			s.publishLocked()
		}
	}()

	var last *RampPoint
	failures := 0
	for _, p := range plan.Points {
		if ctx.Err() != nil {
			return
		}
		if last == nil || p != *last {
			stop, attempted, failed := s.applyRampPoint(ctx, p)
			if stop {
				log.Debug().Msg("transition stopped")
				return
			}
			point := p
			last = &point
			if failed {
				failures++
				if failures > maxRampFailures {
					log.Warn().Int("failures", failures).Msg("transition aborted after consecutive failures")
					return
				}
			} else if attempted {
				failures = 0
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(plan.Tick):
			// Next point
		}
	}
}

// applyRampPoint writes a single point of a ramp.
func (s *service) applyRampPoint(ctx context.Context, p RampPoint) (stop, attempted, failed bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if ctx.Err() != nil || !s.desired.outputEnabled {
		return true, false, false
	}
	hz := float64(p.Frequency)
	attempted = s.isReadyLocked() && (hz != s.lastFrequency || p.Intensity != s.lastIntensity)
	s.desired.frequency = hz
	s.desired.intensity = p.Intensity
	errF := s.applyFrequencyLocked(ctx, hz, false)
	errI := s.applyIntensityLocked(ctx, p.Intensity, false)
	s.publishLocked()
	return false, attempted, errF != nil || errI != nil
}

// Close detaches all chips and closes the bridge.
func (s *service) Close(ctx context.Context) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var ae aerr.AggregateError
	if s.isReadyLocked() {
		if err := s.execute(ctx, s.stopOutputOp); err != nil {
			ae.Add(err)
		}
	}
	if err := s.releaseLocked(); err != nil {
		ae.Add(err)
	}
	s.publishLocked()
	return ae.AsError()
}

func (s *service) applyFrequencyLocked(ctx context.Context, hz float64, force bool) error {
	if !s.isReadyLocked() || (!force && hz == s.lastFrequency) {
		return nil
	}
	if err := s.execute(ctx, func(bridge.API) error {
		if err := s.ad.SetFrequency(frequencyChannel, hz); err != nil {
			return err
		}
		return s.ad.SetActiveFrequency(frequencyChannel)
	}); err != nil {
		return s.failLocked(err, "set frequency")
	}
	s.lastFrequency = hz
	frequencyGauge.Set(hz)
	s.Log.Debug().Str("frequency", humanize.SIWithDigits(hz, 3, "Hz")).Msg("frequency applied")
	if !s.desired.outputEnabled {
		// Loading a frequency must not start the output
		if err := s.execute(ctx, func(bridge.API) error {
			if err := s.ad.SetMode(devices.ModeOff); err != nil {
				return err
			}
			s.lastMode = devices.ModeOff
			return nil
		}); err != nil {
			return s.failLocked(err, "switch output off")
		}
	}
	return nil
}

func (s *service) applyIntensityLocked(ctx context.Context, value int, force bool) error {
	if !s.isReadyLocked() || (!force && value == s.lastIntensity) {
		return nil
	}
	if err := s.execute(ctx, func(bridge.API) error {
		return s.pot.WriteValue(value)
	}); err != nil {
		return s.failLocked(err, "set intensity")
	}
	s.lastIntensity = value
	intensityGauge.Set(float64(value))
	s.Log.Debug().Int("intensity", value).Msg("intensity applied")
	return nil
}

// execute runs op on the bus goroutine.
func (s *service) execute(ctx context.Context, op func(port bridge.API) error) error {
	if s.bus == nil {
		return errors.Wrap(model.NotReadyError, "bridge is not open")
	}
	start := time.Now()
	defer func() {
		busOperationSeconds.Observe(time.Since(start).Seconds())
	}()
	return s.bus.Execute(ctx, func(ctx context.Context, port bridge.API) error {
		return op(port)
	})
}

// failLocked records the failure. A gpio fault drops the session so the
// next Open starts with a fresh attach.
func (s *service) failLocked(err error, action string) error {
	s.Log.Error().Err(err).Msgf("%s failed", action)
	s.state.LastError = err.Error()
	if model.IsGpioFault(err) {
		gpioFaultTotal.Inc()
		if closeErr := s.releaseLocked(); closeErr != nil {
			s.Log.Warn().Err(closeErr).Msg("failed to close bridge after gpio fault")
		}
	}
	s.publishLocked()
	return err
}

// releaseLocked detaches all chips, closes the bus and resets the session.
func (s *service) releaseLocked() error {
	s.cancelTransitionLocked()
	s.ad.Detach()
	s.pot.Detach()
	var err error
	if s.bus != nil {
		err = s.bus.Close()
		s.bus = nil
	}
	s.state = State{LastError: s.state.LastError}
	s.lastFrequency = math.NaN()
	s.lastIntensity = -1
	s.lastMode = devices.ModeOff
	waveform := s.desired.waveform
	s.desired = defaultDesiredState()
	s.desired.waveform = waveform
	outputEnabledGauge.Set(0)
	return err
}

func (s *service) cancelTransitionLocked() {
	if s.transitionCancel != nil {
		s.transitionCancel()
		s.transitionCancel = nil
	}
	s.state.Transitioning = false
}

func (s *service) isReadyLocked() bool {
	return s.state.ADReady && s.state.MCPReady
}

func (s *service) snapshotLocked() State {
	st := s.state
	st.Ready = s.isReadyLocked()
	st.OutputEnabled = s.desired.outputEnabled
	st.Frequency = s.desired.frequency
	st.Intensity = s.desired.intensity
	st.Waveform = s.desired.waveform
	return st
}

func (s *service) publishLocked() {
	s.states.Pub(s.snapshotLocked())
}

func validateFrequency(hz float64) error {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return model.InvalidArgument("frequency must be finite")
	}
	if hz > MaxFrequencyHz {
		return model.InvalidArgument("frequency must be <= %d Hz, got %v", MaxFrequencyHz, hz)
	}
	return nil
}
