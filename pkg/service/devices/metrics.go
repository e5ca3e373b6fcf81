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
package devices

import (
	"github.com/sonicwave/SignalWorker/pkg/metrics"
)

const (
	subSystem = "devices"
)

var (
	// Total number of successful attaches per chip
	attachTotal = metrics.MustRegisterCounterVec(subSystem,
		"attach_total",
		"Total number of successful attaches",
		"chip")
	// Total number of words written per chip
	writeTotal = metrics.MustRegisterCounterVec(subSystem,
		"write_total",
		"Total number of words written",
		"chip")
	// Total number of failed writes per chip
	writeErrorTotal = metrics.MustRegisterCounterVec(subSystem,
		"write_error_total",
		"Total number of failed writes",
		"chip")
)
