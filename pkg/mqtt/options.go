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
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
)

const (
	mqttPublishTimeout    = time.Millisecond * 200
	mqttSubscribeTimeout  = time.Second * 5
	mqttConnectTimeout    = time.Second * 10
	mqttDisconnectQuiesce = 250
)

// defaultMQTTClientOptions returns the client options shared by all
// MQTT clients of the worker.
func defaultMQTTClientOptions(brokerAddress, clientID string) *mqttapi.ClientOptions {
	return mqttapi.NewClientOptions().
		AddBroker(brokerAddress).
		SetClientID(clientID).
		SetCleanSession(true).
		SetKeepAlive(time.Second * 30).
		SetConnectTimeout(mqttConnectTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(time.Second * 5).
		SetOrderMatters(false)
}
