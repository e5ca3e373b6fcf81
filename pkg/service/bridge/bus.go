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
	"context"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

var (
	// BusClosedError is returned by Execute once the bus is closed.
	BusClosedError = errors.New("bus closed")
	IsBusClosed    = func(err error) bool { return errors.Cause(err) == BusClosedError }
)

// Bus serializes all operations on a single bridge.
// Every operation runs on the same goroutine (and OS thread), one at a time,
// so clock/data transitions of different callers never interleave.
type Bus interface {
	// Execute an operation on the bus and wait for its result.
	// Once queued, an operation always runs to completion.
	Execute(ctx context.Context, op func(ctx context.Context, port API) error) error
	// Close the bus and the underlying bridge.
	Close() error
}

type bus struct {
	log       zerolog.Logger
	port      API
	queue     chan func()
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewBus starts a bus processing operations on the given bridge.
func NewBus(port API, log zerolog.Logger) Bus {
	b := &bus{
		log:   log.With().Str("component", "bus").Logger(),
		port:  port,
		queue: make(chan func()),
		done:  make(chan struct{}),
	}
	go b.queueProcessor()
	return b
}

// Execute an operation on the bus.
func (b *bus) Execute(ctx context.Context, op func(context.Context, API) error) error {
	result := make(chan error, 1)
	req := func() {
		result <- b.execute(ctx, op)
	}

	// Put request in queue
	select {
	case b.queue <- req:
		// Request is on the queue
	case <-b.done:
		return errors.WithStack(BusClosedError)
	case <-ctx.Done():
		// Context canceled
		return ctx.Err()
	}

	// Wait until result is available
	return <-result
}

// Process bus requests from the queue until the bus is closed.
func (b *bus) queueProcessor() {
	// Ensure we're always using the same OS thread
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	for {
		select {
		case req := <-b.queue:
			req()
		case <-b.done:
			return
		}
	}
}

func (b *bus) execute(ctx context.Context, op func(context.Context, API) error) error {
	busExecuteTotal.Inc()
	if err := op(ctx, b.port); err != nil {
		busExecuteErrorTotal.Inc()
		b.log.Debug().Err(err).Msg("bus operation failed")
		return err
	}
	return nil
}

// Close the bus and the bridge it owns.
func (b *bus) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = b.Execute(context.Background(), func(ctx context.Context, port API) error {
			return port.Close()
		})
		close(b.done)
	})
	return b.closeErr
}
