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
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/generator"
)

type statePayload struct {
	generator.State
	FrequencyText string `json:"frequency_text"`
}

// formatState returns the JSON payload of the state topic.
func formatState(st generator.State) ([]byte, error) {
	encoded, err := json.Marshal(statePayload{
		State:         st,
		FrequencyText: st.FrequencyText(),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return encoded, nil
}

// parseFrequency parses a frequency in Hz.
// SI prefixes are accepted, e.g. "440", "1.5k", "2 kHz".
func parseFrequency(str string) (float64, error) {
	str = strings.TrimSpace(str)
	value, unit, err := humanize.ParseSI(str)
	if err != nil {
		return 0, model.InvalidArgument("invalid frequency '%s'", str)
	}
	if unit != "" && !strings.EqualFold(unit, "hz") {
		return 0, model.InvalidArgument("invalid frequency unit '%s'", unit)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, model.InvalidArgument("invalid frequency '%s'", str)
	}
	return value, nil
}

// parseIntensity parses a wiper setting.
func parseIntensity(str string) (int, error) {
	str = strings.TrimSpace(str)
	value, err := strconv.Atoi(str)
	if err != nil {
		return 0, model.InvalidArgument("invalid intensity '%s'", str)
	}
	return value, nil
}

// Parse a string into a bool
func parseBool(str string) (bool, error) {
	str = strings.ToLower(strings.TrimSpace(str))
	switch str {
	case "1", "t", "true", "on", "yes":
		return true, nil
	case "0", "f", "false", "off", "no":
		return false, nil
	}
	return false, fmt.Errorf("invalid bool value '%s'", str)
}
