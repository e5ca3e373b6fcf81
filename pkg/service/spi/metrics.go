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
package spi

import (
	"github.com/sonicwave/SignalWorker/pkg/metrics"
)

const (
	subSystem = "spi"
)

var (
	// Total number of frames sent per profile
	wordsTotal = metrics.MustRegisterCounterVec(subSystem,
		"words_total",
		"Total number of frames sent",
		"profile")
	// Total number of idle state configurations per profile
	configureIdleTotal = metrics.MustRegisterCounterVec(subSystem,
		"configure_idle_total",
		"Total number of idle state configurations",
		"profile")
	// Total number of port failures per profile
	gpioFaultTotal = metrics.MustRegisterCounterVec(subSystem,
		"gpio_fault_total",
		"Total number of port failures",
		"profile")
)
