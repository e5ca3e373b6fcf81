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
	"math"
	"time"

	"github.com/sonicwave/SignalWorker/model"
)

// RampSpec describes how a transition is spread over time.
// When Steps is positive it defines the number of points,
// otherwise the number of points is Duration/Tick rounded up.
type RampSpec struct {
	Duration time.Duration
	Steps    int
	Tick     time.Duration
}

// RampPoint is a single frequency/intensity pair of a ramp.
type RampPoint struct {
	Frequency int
	Intensity int
}

// RampPlan is the list of points applied one per tick.
type RampPlan struct {
	Tick   time.Duration
	Points []RampPoint
}

const (
	// MaxRampSteps is the highest number of points of a ramp.
	MaxRampSteps = 100_000
	// MaxRampValue bounds the start & target values of a ramp.
	MaxRampValue = math.MaxInt32
)

// PlanRamp distributes frequency and intensity changes evenly over the
// points of the spec. Both sequences are monotonic and the last point
// is always the target.
func PlanRamp(startFreq, startIntensity, targetFreq, targetIntensity int, spec RampSpec) (RampPlan, error) {
	if spec.Tick <= 0 {
		return RampPlan{}, model.InvalidArgument("tick must be positive, got %s", spec.Tick)
	}
	for _, v := range []int{startFreq, startIntensity, targetFreq, targetIntensity} {
		if v < -MaxRampValue || v > MaxRampValue {
			return RampPlan{}, model.InvalidArgument("ramp value %d out of range", v)
		}
	}
	steps := float64(spec.Steps)
	if spec.Steps <= 0 {
		steps = math.Ceil(float64(spec.Duration) / float64(spec.Tick))
	}
	if steps > MaxRampSteps {
		return RampPlan{}, model.InvalidArgument("ramp must have at most %d steps, got %.0f", MaxRampSteps, steps)
	}
	n := int(math.Max(steps, 1))
	points := make([]RampPoint, n)
	for i := range points {
		points[i] = RampPoint{
			Frequency: rampValue(startFreq, targetFreq, i, n),
			Intensity: rampValue(startIntensity, targetIntensity, i, n),
		}
	}
	return RampPlan{Tick: spec.Tick, Points: points}, nil
}

// rampValue returns point i of n points evenly spread from start to end:
// start + floor(delta*i/(n-1)) towards end, the last point being end.
func rampValue(start, end, i, n int) int {
	if i >= n-1 {
		return end
	}
	delta := int64(end) - int64(start)
	sign := int64(1)
	if delta < 0 {
		sign, delta = -1, -delta
	}
	d := int64(n - 1)
	q, r := delta/d, delta%d
	step := q*int64(i) + r*int64(i)/d
	return int(int64(start) + sign*step)
}
