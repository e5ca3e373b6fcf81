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
package service

import (
	"context"
	"time"

	aerr "github.com/ewoutp/go-aggregate-error"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sonicwave/SignalWorker/pkg/logging"
	"github.com/sonicwave/SignalWorker/pkg/mqtt"
	"github.com/sonicwave/SignalWorker/pkg/server"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/generator"
	"github.com/sonicwave/SignalWorker/pkg/service/spi"
)

const (
	// Time given to bring the output into a safe state on shutdown
	closeTimeout = time.Second * 5
)

type Service interface {
	// Run the worker until the given context is cancelled.
	Run(ctx context.Context) error
	// Generator returns the signal generator session.
	Generator() generator.Service
}

type Config struct {
	ProgramVersion string
	Generator      generator.Config
	Server         server.Config
	// MQTT control, disabled when BrokerAddress is empty
	MQTT mqtt.Config
	// If set, logs are published on the MQTT log topic
	MQTTLog bool
}

type Dependencies struct {
	Logger  zerolog.Logger
	Opener  bridge.Opener
	Delayer spi.Delayer
	// Optional MQTT log output
	LogWriter logging.MQTTWriter
}

type service struct {
	Config
	Dependencies

	generator generator.Service
	server    *server.Server
	mqtt      *mqtt.Controller
}

// NewService creates a Service instance and returns it.
func NewService(conf Config, deps Dependencies) (Service, error) {
	deps.Logger = deps.Logger.With().Str("component", "service").Logger()
	gen, err := generator.NewService(conf.Generator, generator.Dependencies{
		Log:     deps.Logger,
		Opener:  deps.Opener,
		Delayer: deps.Delayer,
	})
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create generator service")
	}
	srv, err := server.New(conf.Server, deps.Logger, gen)
	if err != nil {
		return nil, errors.Wrap(err, "Failed to create server")
	}
	s := &service{
		Config:       conf,
		Dependencies: deps,
		generator:    gen,
		server:       srv,
	}
	if conf.MQTT.BrokerAddress != "" {
		s.mqtt, err = mqtt.New(conf.MQTT, deps.Logger, gen)
		if err != nil {
			return nil, errors.Wrap(err, "Failed to create MQTT controller")
		}
	}
	return s, nil
}

// Generator returns the signal generator session.
func (s *service) Generator() generator.Service {
	return s.generator
}

// Run the generator, the HTTP server and (optionally) the MQTT
// controller until the given context is canceled.
// On exit the output is stopped and the bridge is closed.
func (s *service) Run(ctx context.Context) error {
	log := s.Logger
	log.Info().Str("version", s.ProgramVersion).Msg("Starting signal worker")
	startTimeGauge.SetToCurrentTime()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.generator.Run(gctx)
	})
	g.Go(func() error {
		return s.server.Run(gctx)
	})
	if s.mqtt != nil {
		if s.MQTTLog && s.LogWriter != nil {
			s.LogWriter.SetDestination(s.mqtt.LogTopic(), s.mqtt)
			s.LogWriter.Enable(true)
		}
		g.Go(func() error {
			return s.mqtt.Run(gctx)
		})
	}

	var ae aerr.AggregateError
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker failed")
		ae.Add(err)
	}
	if s.LogWriter != nil {
		s.LogWriter.Enable(false)
	}

	// Bring output into safe state
	closeCtx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := s.generator.Close(closeCtx); err != nil {
		log.Warn().Err(err).Msg("Failed to close generator")
		ae.Add(err)
	}
	log.Info().Msg("Signal worker stopped")
	return ae.AsError()
}
