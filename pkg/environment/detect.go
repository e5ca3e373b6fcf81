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
	"path/filepath"
	"strings"
)

const (
	BridgeTypeVirtual  = "virtual"
	BridgeTypeGPIOCDev = "gpiocdev"
	BridgeTypeSysfs    = "sysfs"
)

// detectBridgeType selects a bridge type for a host with given machine
// name. exists reports whether a path (glob) is present.
func detectBridgeType(machine string, exists func(pattern string) bool) string {
	machine = strings.ToLower(strings.TrimSpace(machine))
	if !strings.HasPrefix(machine, "arm") && !strings.HasPrefix(machine, "aarch64") {
		// Development host
		return BridgeTypeVirtual
	}
	if exists("/dev/gpiochip*") {
		return BridgeTypeGPIOCDev
	}
	if exists("/sys/class/gpio/export") {
		return BridgeTypeSysfs
	}
	return BridgeTypeVirtual
}

func pathExists(pattern string) bool {
	matches, err := filepath.Glob(pattern)
	return err == nil && len(matches) > 0
}
