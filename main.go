//    Copyright 2017 Ewout Prangsma
//
//    Licensed under the Apache License, Version 2.0 (the "License");
//    you may not use this file except in compliance with the License.
//    You may obtain a copy of the License at
//
//        http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS,
//    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//    See the License for the specific language governing permissions and
//    limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	terminate "github.com/pulcy/go-terminate"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/environment"
	"github.com/sonicwave/SignalWorker/pkg/logging"
	"github.com/sonicwave/SignalWorker/pkg/mqtt"
	"github.com/sonicwave/SignalWorker/pkg/server"
	"github.com/sonicwave/SignalWorker/pkg/service"
	"github.com/sonicwave/SignalWorker/pkg/service/bridge"
	"github.com/sonicwave/SignalWorker/pkg/service/generator"
)

const (
	projectName       = "Sonicwave Signal Worker"
	defaultServerPort = 7130
)

var (
	projectVersion = "dev"
	projectBuild   = "dev"
	maskAny        = errors.WithStack
)

func main() {
	var levelFlag string
	var bridgeType string
	var gpioChip string
	var gpioLines []int
	var serverHost string
	var serverPort int
	var mqttConf mqtt.Config
	var mqttLog bool
	hwConf := model.DefaultConfig()
	var adCS, mcpCS int

	pflag.StringVarP(&levelFlag, "level", "l", "info", "Set log level")
	pflag.StringVarP(&bridgeType, "bridge", "b", "auto", "Type of bridge to use (auto|virtual|gpiocdev|sysfs)")
	pflag.StringVar(&gpioChip, "gpio-chip", "gpiochip0", "GPIO chip used by the gpiocdev bridge")
	pflag.IntSliceVar(&gpioLines, "gpio-lines", []int{0, 1, 2, 3, 4, 5, 6, 7}, "GPIO line offsets (sysfs: pin numbers) of port bits D0..D7, -1 for unused")
	pflag.Float64Var(&hwConf.MasterClockHz, "mclk", model.DefaultMasterClockHz, "Frequency of the AD9833 master clock in Hz")
	pflag.IntVar(&adCS, "ad9833-cs", 0, "Chip select channel (0..2) of the AD9833")
	pflag.IntVar(&mcpCS, "mcp41010-cs", 1, "Chip select channel (0..2) of the MCP41010")
	pflag.StringVar(&serverHost, "host", "0.0.0.0", "Host address the HTTP server will listen on")
	pflag.IntVar(&serverPort, "port", defaultServerPort, "Port the HTTP server will listen on")
	pflag.StringVar(&mqttConf.BrokerAddress, "mqtt-broker", "", "Address of the MQTT broker (e.g. tcp://localhost:1883), empty to disable MQTT")
	pflag.StringVar(&mqttConf.TopicPrefix, "mqtt-prefix", mqtt.DefaultTopicPrefix, "Prefix of all MQTT topics")
	pflag.StringVar(&mqttConf.ClientID, "mqtt-client-id", mqtt.DefaultClientID, "MQTT client ID")
	pflag.BoolVar(&mqttLog, "mqtt-log", false, "Publish logs on the MQTT log topic")
	pflag.Parse()

	// Prepare to shutdown in a controlled manor
	ctx, cancel := context.WithCancel(context.Background())

	// Prepare logging
	var logOutput io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	var mqttWriter logging.MQTTWriter
	if mqttLog {
		mqttWriter = logging.NewMQTTWriter(ctx)
		logOutput = logging.NewMultiWriter(logOutput, mqttWriter)
	}
	logger := zerolog.New(logOutput).With().Timestamp().Logger()
	level, err := zerolog.ParseLevel(levelFlag)
	if err != nil {
		Exitf("Invalid log level '%s': %v\n", levelFlag, err)
	}
	logger = logger.Level(level)

	// Prepare hardware
	if bridgeType == "auto" {
		bridgeType = environment.AutoDetectBridgeType(logger)
	}
	hwConf.Devices = []model.HWDevice{
		{Type: model.HWDeviceTypeAD9833, ChipSelect: adCS},
		{Type: model.HWDeviceTypeMCP41010, ChipSelect: mcpCS},
	}
	opener, err := newOpener(bridgeType, gpioChip, gpioLines)
	if err != nil {
		Exitf("Failed to prepare bridge: %v\n", err)
	}

	svc, err := service.NewService(service.Config{
		ProgramVersion: projectVersion,
		Generator: generator.Config{
			Hardware: hwConf,
		},
		Server: server.Config{
			Host:     serverHost,
			HTTPPort: serverPort,
		},
		MQTT:    mqttConf,
		MQTTLog: mqttLog,
	}, service.Dependencies{
		Logger:    logger,
		Opener:    opener,
		LogWriter: mqttWriter,
	})
	if err != nil {
		Exitf("Failed to initialize Service: %v\n", err)
	}

	t := terminate.NewTerminator(func(template string, args ...interface{}) {
		logger.Info().Msgf(template, args...)
	}, cancel)
	go t.ListenSignals()

	fmt.Printf("Starting %s (version %s build %s)\n", projectName, projectVersion, projectBuild)
	if err := svc.Run(ctx); err != nil {
		Exitf("Service run failed: %v\n", err)
	}
}

// newOpener returns the opener of the bridge of given type.
func newOpener(bridgeType, gpioChip string, gpioLines []int) (bridge.Opener, error) {
	var lines [model.GPIOLineCount]int
	if bridgeType != environment.BridgeTypeVirtual {
		if len(gpioLines) != model.GPIOLineCount {
			return nil, errors.Wrapf(model.ValidationError, "expected %d gpio lines, got %d", model.GPIOLineCount, len(gpioLines))
		}
		copy(lines[:], gpioLines)
	}
	switch bridgeType {
	case environment.BridgeTypeVirtual:
		return func() (bridge.API, error) {
			return bridge.NewVirtualBridge(), nil
		}, nil
	case environment.BridgeTypeGPIOCDev:
		return func() (bridge.API, error) {
			b, err := bridge.NewGPIOCDevBridge(gpioChip, lines)
			return b, maskAny(err)
		}, nil
	case environment.BridgeTypeSysfs:
		return func() (bridge.API, error) {
			b, err := bridge.NewSysfsBridge(lines)
			return b, maskAny(err)
		}, nil
	default:
		return nil, errors.Wrapf(model.ValidationError, "unknown bridge type '%s' (virtual|gpiocdev|sysfs)", bridgeType)
	}
}

// Print the given error message and exit with code 1
func Exitf(message string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, message, args...)
	os.Exit(1)
}
