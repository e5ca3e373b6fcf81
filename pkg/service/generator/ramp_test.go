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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonicwave/SignalWorker/model"
)

func frequencies(p RampPlan) []int {
	result := make([]int, len(p.Points))
	for i, x := range p.Points {
		result[i] = x.Frequency
	}
	return result
}

func intensities(p RampPlan) []int {
	result := make([]int, len(p.Points))
	for i, x := range p.Points {
		result[i] = x.Intensity
	}
	return result
}

func assertMonotonic(t *testing.T, values []int, increasing bool) {
	for i := 1; i < len(values); i++ {
		if increasing {
			assert.LessOrEqual(t, values[i-1], values[i], "%v", values)
		} else {
			assert.GreaterOrEqual(t, values[i-1], values[i], "%v", values)
		}
	}
}

func TestPlanRampConstant(t *testing.T) {
	plan, err := PlanRamp(120, 70, 120, 70, RampSpec{Steps: 3, Tick: 10 * time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, plan.Tick)
	assert.Equal(t, []RampPoint{{120, 70}, {120, 70}, {120, 70}}, plan.Points)
}

func TestPlanRampIncreasing(t *testing.T) {
	plan, err := PlanRamp(0, 0, 10, 5, RampSpec{Steps: 6, Tick: 20 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, plan.Points, 6)
	assert.Equal(t, RampPoint{10, 5}, plan.Points[5])
	assert.Equal(t, []int{0, 2, 4, 6, 8, 10}, frequencies(plan))
	assertMonotonic(t, intensities(plan), true)
}

func TestPlanRampDecreasing(t *testing.T) {
	plan, err := PlanRamp(10, 8, 4, 2, RampSpec{Steps: 4, Tick: 30 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, plan.Points, 4)
	assert.Equal(t, RampPoint{4, 2}, plan.Points[3])
	assertMonotonic(t, frequencies(plan), false)
	assertMonotonic(t, intensities(plan), false)
}

func TestPlanRampDuration(t *testing.T) {
	plan, err := PlanRamp(3, 0, 6, 100, RampSpec{Duration: 25 * time.Millisecond, Tick: 10 * time.Millisecond})
	require.NoError(t, err)
	require.Len(t, plan.Points, 3)
	assert.Equal(t, RampPoint{6, 100}, plan.Points[2])
	assertMonotonic(t, frequencies(plan), true)
	assertMonotonic(t, intensities(plan), true)
}

func TestPlanRampSingleStep(t *testing.T) {
	plan, err := PlanRamp(0, 0, 500, 20, RampSpec{Tick: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, []RampPoint{{500, 20}}, plan.Points)
}

func TestPlanRampInvalidTick(t *testing.T) {
	_, err := PlanRamp(0, 0, 1, 1, RampSpec{Steps: 3})
	assert.True(t, model.IsInvalidArgument(err))
}

func TestPlanRampLargeDelta(t *testing.T) {
	plan, err := PlanRamp(0, 0, 2_000_000_000, 0, RampSpec{Steps: 2, Tick: time.Millisecond})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2_000_000_000}, frequencies(plan))

	plan, err = PlanRamp(MaxRampValue, 0, -MaxRampValue, 0, RampSpec{Steps: MaxRampSteps, Tick: time.Millisecond})
	require.NoError(t, err)
	require.Len(t, plan.Points, MaxRampSteps)
	assert.Equal(t, -MaxRampValue, plan.Points[MaxRampSteps-1].Frequency)
	assertMonotonic(t, frequencies(plan), false)
}

func TestPlanRampOutOfRange(t *testing.T) {
	_, err := PlanRamp(0, 0, 20_000_000_000, 0, RampSpec{Steps: 2, Tick: time.Millisecond})
	assert.True(t, model.IsInvalidArgument(err))

	_, err = PlanRamp(0, 0, 1, 1, RampSpec{Steps: MaxRampSteps + 1, Tick: time.Millisecond})
	assert.True(t, model.IsInvalidArgument(err))

	_, err = PlanRamp(0, 0, 1, 1, RampSpec{Duration: time.Hour, Tick: time.Nanosecond})
	assert.True(t, model.IsInvalidArgument(err))
}
