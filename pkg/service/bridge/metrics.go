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
package bridge

import (
	"github.com/sonicwave/SignalWorker/pkg/metrics"
)

const (
	subSystem = "bridge"
)

var (
	// Total number of operations executed on a bus
	busExecuteTotal = metrics.MustRegisterCounter(subSystem,
		"execute_total",
		"Total number of operations executed on a bus")
	// Total number of bus operations that failed
	busExecuteErrorTotal = metrics.MustRegisterCounter(subSystem,
		"execute_error_total",
		"Total number of bus operations that failed")
	// Total number of port configurations per bridge type
	configureOutputTotal = metrics.MustRegisterCounterVec(subSystem,
		"configure_output_total",
		"Total number of port configurations",
		"bridge")
	// Total number of failed line writes per bridge type
	driveLinesErrorTotal = metrics.MustRegisterCounterVec(subSystem,
		"drive_lines_error_total",
		"Total number of failed line writes",
		"bridge")
)
