// Copyright 2026 The Taskette Authors
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

// Package asyncexec adapts the scheduler's synchronous task model to an
// async/await-flavored style: Run polls a computation to completion,
// parking the calling task on a Waker's futex between attempts rather than
// busy-polling, and Channel is a single-slot producer/consumer queue built
// on a Futex, mirroring the original project's taskette-utils futures
// helper.
package asyncexec

import (
	"sync"

	"tana.dev/taskette/config"
	"tana.dev/taskette/futex"
	"tana.dev/taskette/sched"
	"tana.dev/taskette/task"
)

// Spawn is a thin pass-through to sched.Spawn, so call sites built around
// this package's async style don't need a separate import of package
// sched just to create the tasks that drive it.
func Spawn(fn func(), stack []byte, cfg config.TaskConfig) (task.Handle, error) {
	return sched.Spawn(fn, stack, cfg)
}

// Waker is handed to a poll function so it can be woken once progress
// might be possible, instead of being repeatedly re-polled.
type Waker struct {
	f *futex.Futex
}

// Wake marks progress possible and unblocks whoever is parked waiting on
// this Waker.
func (w Waker) Wake() error {
	w.f.AsRef().Store(1)
	return w.f.WakeAll()
}

// Run repeatedly invokes poll, parking the calling task between attempts,
// until poll reports a value ready.
func Run[T any](poll func(Waker) (T, bool)) (T, error) {
	f := futex.New(0)
	w := Waker{f: f}
	for {
		if v, ok := poll(w); ok {
			return v, nil
		}
		if err := f.Wait(0); err != nil {
			var zero T
			return zero, err
		}
		f.AsRef().Store(0)
	}
}

// Channel is a single-slot, multi-producer/single-consumer queue: Send
// blocks while the slot is occupied, Receive blocks while it is empty.
type Channel[T any] struct {
	full *futex.Futex // 0: empty, 1: full

	mu    sync.Mutex
	value T
}

// NewChannel returns an empty Channel.
func NewChannel[T any]() *Channel[T] {
	return &Channel[T]{full: futex.New(0)}
}

// Send blocks until the slot is empty, then stores v and wakes a
// receiver.
func (c *Channel[T]) Send(v T) error {
	for {
		if c.full.AsRef().CompareAndSwap(0, 1) {
			c.mu.Lock()
			c.value = v
			c.mu.Unlock()
			return c.full.WakeAll()
		}
		if err := c.full.Wait(1); err != nil {
			return err
		}
	}
}

// Receive blocks until the slot is full, then takes the value and wakes a
// sender.
func (c *Channel[T]) Receive() (T, error) {
	for {
		if c.full.AsRef().CompareAndSwap(1, 0) {
			c.mu.Lock()
			v := c.value
			c.mu.Unlock()
			if err := c.full.WakeAll(); err != nil {
				return v, err
			}
			return v, nil
		}
		var zero T
		if err := c.full.Wait(0); err != nil {
			return zero, err
		}
	}
}
