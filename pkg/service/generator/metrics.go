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
	"github.com/sonicwave/SignalWorker/pkg/metrics"
)

const (
	subSystem = "generator"
)

var (
	// Number of hardware opens per result
	openTotal = metrics.MustRegisterCounterVec(subSystem,
		"open_total",
		"Total number of hardware open attempts",
		"result")
	// Total number of gpio faults that dropped the session
	gpioFaultTotal = metrics.MustRegisterCounter(subSystem,
		"gpio_fault_total",
		"Total number of gpio faults that dropped the session")
	// Current state of the output (1=enabled)
	outputEnabledGauge = metrics.MustRegisterGauge(subSystem,
		"output_enabled",
		"Current state of the output (1=enabled)")
	// Last applied frequency in Hz
	frequencyGauge = metrics.MustRegisterGauge(subSystem,
		"frequency_hz",
		"Last applied frequency in Hz")
	// Last applied wiper setting
	intensityGauge = metrics.MustRegisterGauge(subSystem,
		"intensity",
		"Last applied wiper setting")
	// Duration of bus operations
	busOperationSeconds = metrics.MustRegisterHistogram(subSystem,
		"bus_operation_seconds",
		"Duration of bus operations",
		[]float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1})
)
