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

// Package sim is the default Architecture Port: a pure-Go goroutine and
// channel simulation of a single-hardware-thread target, used by
// cmd/taskette-sim and by every test outside package arch/wasm.
package sim

import (
	"sync/atomic"
	"time"

	"tana.dev/taskette/arch"
	"tana.dev/taskette/arch/internal/baton"
)

// Backend implements arch.Port by running each task body as its own
// goroutine, parked on a private channel whenever it is not the one
// "running" task.
type Backend struct {
	disp      *baton.Dispatcher
	cfg       arch.SetupConfig
	idleStack []byte
	idleTaken atomic.Bool
	idleSP    atomic.Uint64
	stop      chan struct{}
}

// New returns a Backend whose idle task is given a stack buffer of
// idleStackSize bytes (only meaningful if stack-canary checking is later
// enabled; the idle body never recurses).
func New(idleStackSize int) *Backend {
	if idleStackSize <= 0 {
		idleStackSize = 64
	}
	b := &Backend{idleStack: make([]byte, idleStackSize)}
	b.disp = baton.New(func(out arch.StackPointer) arch.StackPointer { return b.cfg.OnSwitch(out) })
	return b
}

func (b *Backend) Setup(cfg arch.SetupConfig) error {
	b.cfg = cfg
	return nil
}

func (b *Backend) StartTimer() {
	freq := b.cfg.TickFreqHz
	if freq == 0 {
		freq = 1000
	}
	interval := time.Second / time.Duration(freq)
	b.stop = make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.cfg.OnTick()
				b.disp.KickIdle(arch.StackPointer(b.idleSP.Load()))
			case <-b.stop:
				return
			}
		}
	}()
}

// Stop halts the tick source. Not part of arch.Port; used by tests and by
// the CLI to shut a scenario down cleanly.
func (b *Backend) Stop() {
	if b.stop != nil {
		close(b.stop)
	}
}

func (b *Backend) RequestSwitch()    { b.disp.RequestSwitch() }
func (b *Backend) WaitForInterrupt() { b.disp.RequestSwitch() }

func (b *Backend) InitStack(stack []byte, entry func()) (arch.StackPointer, error) {
	sp, ch := b.disp.NewSlot()
	go func() {
		<-ch
		entry()
		select {} // the task's TCB is already gone; this goroutine halts forever
	}()
	return sp, nil
}

func (b *Backend) IdleTaskStack() ([]byte, bool) {
	if b.idleTaken.Swap(true) {
		return nil, false
	}
	return b.idleStack, true
}

func (b *Backend) RunWithStack(sp arch.StackPointer) {
	b.idleSP.Store(uint64(sp))
	b.disp.SetCurrent(sp)
	b.disp.Resume(sp)
	select {} // the boot goroutine never returns once the kernel is running
}
