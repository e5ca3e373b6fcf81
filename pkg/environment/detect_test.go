//    Copyright 2018 Ewout Prangsma
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
package environment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectBridgeType(t *testing.T) {
	none := func(string) bool { return false }
	only := func(p string) func(string) bool {
		return func(pattern string) bool { return pattern == p }
	}
	assert.Equal(t, BridgeTypeVirtual, detectBridgeType("x86_64", only("/dev/gpiochip*")))
	assert.Equal(t, BridgeTypeGPIOCDev, detectBridgeType("aarch64", only("/dev/gpiochip*")))
	assert.Equal(t, BridgeTypeGPIOCDev, detectBridgeType("armv7l", only("/dev/gpiochip*")))
	assert.Equal(t, BridgeTypeSysfs, detectBridgeType("armv6l", only("/sys/class/gpio/export")))
	assert.Equal(t, BridgeTypeVirtual, detectBridgeType("armv7l", none))
}
