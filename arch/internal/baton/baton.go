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

// Package baton implements the goroutine/channel dispatcher shared by
// every simulated Architecture Port in this repository. It models "one
// task's code runs at a time, everyone else is parked" by handing a single
// token (the baton) from task to task: RequestSwitch blocks the calling
// goroutine on a private channel until the dispatcher goroutine hands it
// the baton back.
//
// A single dedicated dispatcher goroutine serializes every switch decision,
// the same way a real target serializes context switches by running the
// PendSV handler at the lowest exception priority: only one OnSwitch call
// is ever in flight.
package baton

import (
	"sync"
	"sync/atomic"

	"tana.dev/taskette/arch"
)

// Dispatcher owns the single switch-request channel and the table of
// per-task resume channels ("slots"). Ports hold one, route their
// RequestSwitch/WaitForInterrupt methods to it, and build InitStack and
// RunWithStack from NewSlot, SetCurrent and Resume.
type Dispatcher struct {
	reqCh    chan arch.StackPointer
	current  atomic.Uint64
	onSwitch func(arch.StackPointer) arch.StackPointer

	mu     sync.Mutex
	slots  map[arch.StackPointer]chan struct{}
	nextID atomic.Uint64
}

// New creates a Dispatcher and starts its loop goroutine. onSwitch is the
// scheduler's dispatch decision (internal/core.SelectTask).
func New(onSwitch func(arch.StackPointer) arch.StackPointer) *Dispatcher {
	d := &Dispatcher{
		reqCh:    make(chan arch.StackPointer, 1),
		onSwitch: onSwitch,
		slots:    make(map[arch.StackPointer]chan struct{}),
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	for out := range d.reqCh {
		if arch.StackPointer(d.current.Load()) != out {
			// Stale or already-superseded request: the task named by out
			// is no longer current, so whatever needed a dispatch decision
			// already got one. Coalesce, matching a PendSV pending bit
			// that stays set across multiple pend requests but only
			// fires the handler once.
			continue
		}
		next := d.onSwitch(out)
		d.current.Store(uint64(next))
		d.signal(next)
	}
}

func (d *Dispatcher) signal(sp arch.StackPointer) {
	d.mu.Lock()
	ch := d.slots[sp]
	d.mu.Unlock()
	ch <- struct{}{}
}

// NewSlot allocates a fresh task slot and returns its StackPointer and the
// channel the task's goroutine should block on before running entry.
func (d *Dispatcher) NewSlot() (arch.StackPointer, chan struct{}) {
	id := arch.StackPointer(d.nextID.Add(1))
	ch := make(chan struct{})
	d.mu.Lock()
	d.slots[id] = ch
	d.mu.Unlock()
	return id, ch
}

// SetCurrent records sp as the running task without going through a
// dispatch decision. Used once, at boot, before the first RunWithStack.
func (d *Dispatcher) SetCurrent(sp arch.StackPointer) {
	d.current.Store(uint64(sp))
}

// Current reports the StackPointer presently deemed running.
func (d *Dispatcher) Current() arch.StackPointer {
	return arch.StackPointer(d.current.Load())
}

// Resume signals sp's slot directly, without a dispatch decision. Used
// once, at boot, to start the idle task running.
func (d *Dispatcher) Resume(sp arch.StackPointer) {
	d.signal(sp)
}

// RequestSwitch blocks the calling goroutine until the dispatcher has
// picked a (possibly different) task to run and signaled it back in.
// Callers must only invoke this as the currently-running task.
func (d *Dispatcher) RequestSwitch() {
	my := arch.StackPointer(d.current.Load())
	d.mu.Lock()
	ch := d.slots[my]
	d.mu.Unlock()
	d.reqCh <- my
	<-ch
}

// KickIdle asks the dispatcher to reconsider its decision, but only if the
// idle task is the one presently running. A real tick ISR can truly
// preempt whatever is executing; a goroutine cannot be safely suspended
// from outside without its cooperation, so this dispatcher only ever
// forces a decision when the "current" task is idle, which by
// construction is always either parked or about to re-enter
// WaitForInterrupt with no observable side effects in between. A timer
// wakeup that makes some other, busier task ready is instead picked up the
// next time that busy task itself calls RequestSwitch, which every task in
// this repository does regularly.
func (d *Dispatcher) KickIdle(idleSP arch.StackPointer) {
	if arch.StackPointer(d.current.Load()) != idleSP {
		return
	}
	select {
	case d.reqCh <- idleSP:
	default:
		// a switch decision is already pending; coalesce.
	}
}
