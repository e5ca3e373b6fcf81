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
	"context"
	"strings"
	"sync"
	"time"

	mqttapi "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/sonicwave/SignalWorker/model"
	"github.com/sonicwave/SignalWorker/pkg/service/generator"
	"github.com/sonicwave/SignalWorker/pkg/service/util"
)

const (
	// DefaultTopicPrefix is used when no topic prefix is configured.
	DefaultTopicPrefix = "signalworker"
	// DefaultClientID is used when no client ID is configured.
	DefaultClientID = "signalworker"

	commandTimeout = time.Second * 5
)

var (
	// NotConnectedError is returned when publishing while no broker
	// connection exists.
	NotConnectedError = errors.New("mqtt not connected")
	IsNotConnected    = func(err error) bool { return errors.Cause(err) == NotConnectedError }
)

// Config of the MQTT controller.
type Config struct {
	// Address of the broker, e.g. tcp://localhost:1883
	BrokerAddress string
	// Prefix of all topics
	TopicPrefix string
	ClientID    string
	// Reconnect backoff
	Backoff util.Backoff
}

// Service is the part of the generator service controlled over MQTT.
type Service interface {
	ApplyFrequency(ctx context.Context, hz float64) error
	ApplyIntensity(ctx context.Context, value int) error
	SetWaveform(ctx context.Context, w model.Waveform) error
	StartOutput(ctx context.Context, hz float64, intensity int) error
	StopOutput(ctx context.Context) error
	State() generator.State
	Subscribe(cb func(generator.State)) context.CancelFunc
}

// Controller accepts commands on <prefix>/*/set topics and publishes
// the generator state on <prefix>/state.
type Controller struct {
	log     zerolog.Logger
	cfg     Config
	service Service
	topics  topics

	mutex  sync.Mutex
	client mqttapi.Client
	ctx    context.Context
}

type topics struct {
	frequency string
	intensity string
	waveform  string
	output    string
	state     string
	online    string
	log       string
}

func newTopics(prefix string) topics {
	prefix = strings.TrimSuffix(prefix, "/") + "/"
	return topics{
		frequency: prefix + "frequency/set",
		intensity: prefix + "intensity/set",
		waveform:  prefix + "waveform/set",
		output:    prefix + "output/set",
		state:     prefix + "state",
		online:    prefix + "online",
		log:       prefix + "log",
	}
}

// commands returns the topics the controller subscribes to.
func (t topics) commands() []string {
	return []string{t.frequency, t.intensity, t.waveform, t.output}
}

// New creates a new MQTT controller.
func New(cfg Config, log zerolog.Logger, service Service) (*Controller, error) {
	if cfg.BrokerAddress == "" {
		return nil, errors.Wrap(model.ValidationError, "mqtt broker address is required")
	}
	if service == nil {
		return nil, errors.Wrap(model.ValidationError, "service is required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Backoff.Interval <= 0 {
		cfg.Backoff = util.Backoff{
			Interval: time.Second,
			MaxDelay: time.Second * 30,
		}
	}
	return &Controller{
		log:     log.With().Str("component", "mqtt").Logger(),
		cfg:     cfg,
		service: service,
		topics:  newTopics(cfg.TopicPrefix),
	}, nil
}

// LogTopic returns the topic that log messages are published on.
func (c *Controller) LogTopic() string {
	return c.topics.log
}

// Run the controller until the given context is canceled.
// Lost broker connections are re-established with backoff.
func (c *Controller) Run(ctx context.Context) error {
	return util.UntilCanceled(ctx, c.log, "mqtt session", c.cfg.Backoff, func() error {
		return c.runSession(ctx)
	})
}

// runSession connects to the broker and serves until the connection is
// lost or the context is canceled.
func (c *Controller) runSession(ctx context.Context) error {
	lost := make(chan error, 1)

	// Prepare MQTT client options
	opts := defaultMQTTClientOptions(c.cfg.BrokerAddress, c.cfg.ClientID)
	// Reconnects are driven by Run
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetWill(c.topics.online, "false", 0, true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(func(_ mqttapi.Client, err error) {
		select {
		case lost <- err:
		default:
		}
	})

	// Connect client
	client := mqttapi.NewClient(opts)
	c.setClient(ctx, client)
	token := client.Connect()
	if !token.WaitTimeout(mqttConnectTimeout) {
		c.setClient(nil, nil)
		return errors.Errorf("timeout connecting to mqtt broker %s", c.cfg.BrokerAddress)
	}
	if err := token.Error(); err != nil {
		c.setClient(nil, nil)
		return errors.Wrapf(err, "failed to connect to mqtt broker %s", c.cfg.BrokerAddress)
	}
	unsubscribe := c.service.Subscribe(func(generator.State) {
		c.publishState()
	})
	defer func() {
		unsubscribe()
		c.setClient(nil, nil)
		if client.IsConnected() {
			client.Publish(c.topics.online, 0, true, "false").WaitTimeout(mqttPublishTimeout)
		}
		client.Disconnect(mqttDisconnectQuiesce)
		c.log.Debug().Msg("Disconnected from MQTT")
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-lost:
		return errors.Wrap(err, "lost connection to mqtt broker")
	}
}

func (c *Controller) onConnect(client mqttapi.Client) {
	c.log.Debug().Str("broker", c.cfg.BrokerAddress).Msg("Connected to MQTT")
	filters := make(map[string]byte)
	for _, topic := range c.topics.commands() {
		filters[topic] = 0
	}
	token := client.SubscribeMultiple(filters, c.onMessage)
	if !token.WaitTimeout(mqttSubscribeTimeout) || token.Error() != nil {
		c.log.Error().Err(token.Error()).Msg("failed to subscribe to command topics")
		client.Disconnect(mqttDisconnectQuiesce)
		return
	}
	c.log.Debug().Strs("topics", c.topics.commands()).Msg("Subscribed to MQTT topics")
	client.Publish(c.topics.online, 0, true, "true")
	c.publishState()
}

// Receive command messages
func (c *Controller) onMessage(client mqttapi.Client, msg mqttapi.Message) {
	ctx, cancel := c.commandContext()
	defer cancel()

	topic := msg.Topic()
	payload := string(msg.Payload())
	log := c.log.With().Str("topic", topic).Str("payload", payload).Logger()
	if err := c.handleCommand(ctx, topic, payload); err != nil {
		messagesTotal.WithLabelValues(commandName(topic), "error").Inc()
		if model.IsInvalidArgument(err) {
			log.Warn().Err(err).Msg("Rejected MQTT command")
		} else {
			log.Error().Err(err).Msg("MQTT command failed")
		}
		return
	}
	messagesTotal.WithLabelValues(commandName(topic), "ok").Inc()
	log.Debug().Msg("Handled MQTT command")
}

// handleCommand applies the command received on the given topic.
func (c *Controller) handleCommand(ctx context.Context, topic, payload string) error {
	switch topic {
	case c.topics.frequency:
		hz, err := parseFrequency(payload)
		if err != nil {
			return err
		}
		return c.service.ApplyFrequency(ctx, hz)
	case c.topics.intensity:
		value, err := parseIntensity(payload)
		if err != nil {
			return err
		}
		return c.service.ApplyIntensity(ctx, value)
	case c.topics.waveform:
		w, err := model.ParseWaveform(payload)
		if err != nil {
			return err
		}
		return c.service.SetWaveform(ctx, w)
	case c.topics.output:
		on, err := parseBool(payload)
		if err != nil {
			return model.InvalidArgument("%s", err.Error())
		}
		if !on {
			return c.service.StopOutput(ctx)
		}
		st := c.service.State()
		return c.service.StartOutput(ctx, st.Frequency, st.Intensity)
	default:
		return model.InvalidArgument("unknown topic '%s'", topic)
	}
}

// publishState publishes the current state (retained).
// State change notifications arrive asynchronously, so the snapshot is
// taken here instead of using the notified value.
func (c *Controller) publishState() {
	payload, err := formatState(c.service.State())
	if err != nil {
		c.log.Error().Err(err).Msg("failed to format state")
		return
	}
	ctx, cancel := c.commandContext()
	defer cancel()
	if err := c.Publish(ctx, c.topics.state, payload, true); err != nil {
		if !IsNotConnected(err) {
			c.log.Warn().Err(err).Msg("failed to publish state")
		}
		return
	}
}

// Publish the given payload on the given topic.
// Errors are returned, never logged.
func (c *Controller) Publish(ctx context.Context, topic string, payload []byte, retained bool) error {
	c.mutex.Lock()
	client := c.client
	c.mutex.Unlock()

	if client == nil || !client.IsConnected() {
		publishTotal.WithLabelValues("not_connected").Inc()
		return errors.WithStack(NotConnectedError)
	}
	timeout := mqttPublishTimeout
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		timeout = time.Until(deadline)
	}
	token := client.Publish(topic, 0, retained, payload)
	if !token.WaitTimeout(timeout) {
		publishTotal.WithLabelValues("timeout").Inc()
		return errors.Errorf("timeout publishing to '%s'", topic)
	}
	if err := token.Error(); err != nil {
		publishTotal.WithLabelValues("error").Inc()
		return errors.Wrapf(err, "failed to publish to '%s'", topic)
	}
	publishTotal.WithLabelValues("ok").Inc()
	return nil
}

func (c *Controller) setClient(ctx context.Context, client mqttapi.Client) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.client = client
	c.ctx = ctx
}

func (c *Controller) commandContext() (context.Context, context.CancelFunc) {
	c.mutex.Lock()
	base := c.ctx
	c.mutex.Unlock()
	if base == nil {
		base = context.Background()
	}
	return context.WithTimeout(base, commandTimeout)
}

// commandName returns the metric label of a command topic.
func commandName(topic string) string {
	parts := strings.Split(strings.TrimSuffix(topic, "/set"), "/")
	return parts[len(parts)-1]
}
