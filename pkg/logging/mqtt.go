// Copyright 2018 Ewout Prangsma
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

package logging

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Publisher sends a payload to an MQTT topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte, retained bool) error
}

// MQTTWriter is a log output that publishes log lines on an MQTT topic.
// Lines are queued; when the queue is full the oldest line is dropped.
type MQTTWriter interface {
	zerolog.LevelWriter
	// Enable or disable publishing. Lines written while disabled are queued.
	Enable(enable bool)
	// SetDestination sets topic & publisher used for log lines.
	SetDestination(topic string, publisher Publisher)
	// SetLevel sets the minimum level of published lines.
	SetLevel(level zerolog.Level)
	// Dropped returns the number of lines dropped because the queue was full.
	Dropped() uint64
}

type mqttLogger struct {
	mutex     sync.Mutex
	queue     chan logLine
	wakeup    chan struct{}
	topic     string
	publisher Publisher
	enable    bool
	level     zerolog.Level
	dropped   uint64
}

type logLine struct {
	level zerolog.Level
	data  []byte
}

type logMsg struct {
	Level   string `json:"level,omitempty"`
	Message string `json:"message"`
}

const (
	mqttQueueSize      = 512
	mqttPublishTimeout = time.Second
)

// NewMQTTWriter creates a new MQTT output for logs.
// The MQTT sender is closed when the given context is canceled.
func NewMQTTWriter(ctx context.Context) MQTTWriter {
	l := newMQTTLogger(mqttQueueSize)
	go l.run(ctx)
	return l
}

func newMQTTLogger(queueSize int) *mqttLogger {
	return &mqttLogger{
		queue:  make(chan logLine, queueSize),
		wakeup: make(chan struct{}, 1),
		level:  zerolog.DebugLevel,
	}
}

// Write queues a line of unknown level.
func (l *mqttLogger) Write(p []byte) (int, error) {
	return l.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel queues a line unless its level is below the configured level.
func (l *mqttLogger) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	l.mutex.Lock()
	minLevel := l.level
	l.mutex.Unlock()
	if level != zerolog.NoLevel && level < minLevel {
		return len(p), nil
	}
	// zerolog reuses its buffers
	line := logLine{level: level, data: append([]byte(nil), p...)}
	for {
		select {
		case l.queue <- line:
			return len(p), nil
		default:
			select {
			case <-l.queue:
				l.mutex.Lock()
				l.dropped++
				l.mutex.Unlock()
			default:
			}
		}
	}
}

func (l *mqttLogger) Enable(enable bool) {
	l.mutex.Lock()
	l.enable = enable
	l.mutex.Unlock()
	l.notify()
}

func (l *mqttLogger) SetDestination(topic string, publisher Publisher) {
	l.mutex.Lock()
	l.topic = topic
	l.publisher = publisher
	l.mutex.Unlock()
	l.notify()
}

func (l *mqttLogger) SetLevel(level zerolog.Level) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.level = level
}

func (l *mqttLogger) Dropped() uint64 {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return l.dropped
}

func (l *mqttLogger) notify() {
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// destination returns the publisher & topic when publishing is possible.
func (l *mqttLogger) destination() (Publisher, string, bool) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	ok := l.enable && l.topic != "" && l.publisher != nil
	return l.publisher, l.topic, ok
}

func (l *mqttLogger) run(ctx context.Context) {
	for {
		publisher, topic, ok := l.destination()
		if !ok {
			select {
			case <-l.wakeup:
			case <-ctx.Done():
				return
			}
			continue
		}
		select {
		case line := <-l.queue:
			l.publish(ctx, publisher, topic, line)
		case <-l.wakeup:
		case <-ctx.Done():
			return
		}
	}
}

func (l *mqttLogger) publish(ctx context.Context, publisher Publisher, topic string, line logLine) {
	msg := logMsg{Message: string(line.data)}
	if line.level != zerolog.NoLevel {
		msg.Level = line.level.String()
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return
	}
	pctx, cancel := context.WithTimeout(ctx, mqttPublishTimeout)
	defer cancel()
	// Errors are ignored; logging them would feed back into this writer
	publisher.Publish(pctx, topic, encoded, false)
}
