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

// Package arch defines the Architecture Port contract: the boundary
// between the architecture-independent scheduler core and a specific
// execution target. A real Cortex-M or RISC-V port lays out machine
// register frames and masks interrupts; the ports in this repository
// (arch/sim, arch/wasm) simulate "exactly one task's code runs at a time"
// with goroutines and channels, since Go has no linker-placed stacks or
// PendSV exception to borrow.
package arch

// StackPointer is an opaque per-task handle returned by InitStack and
// threaded through OnSwitch. Ports that do not manage a real machine stack
// are free to give it any meaning convenient for identifying a task slot;
// the core never inspects its value, only compares and stores it.
type StackPointer uint64

// SetupConfig carries the callbacks a Port invokes once installed: OnTick
// on every timer tick, OnSwitch whenever the port's dispatcher needs to
// decide which task runs next. Passing these in as closures (rather than
// having a Port import package sched) keeps arch free of the core/sched
// import cycle that would otherwise result.
type SetupConfig struct {
	// ClockFreqHz is the nominal clock rate of the simulated target, for
	// ports that derive a tick period from it.
	ClockFreqHz uint32
	// TickFreqHz is the rate at which OnTick should fire.
	TickFreqHz uint32
	// OnTick advances the timer subsystem. Called from the port's internal
	// tick source, never from task context; it must not block.
	OnTick func()
	// OnSwitch is the scheduler's dispatcher (internal/core.SelectTask):
	// given the outgoing task's StackPointer, it returns the incoming
	// task's StackPointer.
	OnSwitch func(outgoing StackPointer) StackPointer
}

// Port is the contract a target must satisfy, matching spec §6.2:
// Setup, StartTimer, a context-switch request, stack layout, idle-wait,
// idle-stack allocation, and the final handoff that never returns.
type Port interface {
	// Setup installs the callbacks and performs one-time target
	// initialization. Called exactly once, before Start.
	Setup(cfg SetupConfig) error

	// StartTimer begins the periodic tick source. Called exactly once,
	// after Setup, from Scheduler.Start.
	StartTimer()

	// RequestSwitch suspends the calling task and requests a dispatch
	// decision. It must only be called from task context (including the
	// idle task); it returns once the calling task has been redispatched.
	RequestSwitch()

	// WaitForInterrupt is RequestSwitch under the name the idle task calls
	// it by; ports may implement it identically to RequestSwitch.
	WaitForInterrupt()

	// InitStack lays out a fresh task's initial state so that, once
	// dispatched, it begins executing entry. entry need not return (the
	// idle body loops forever, and the wrapper core.Spawn installs ends in
	// Remove, whose context switch never comes back); if it does return,
	// the core has already removed the task from the table.
	InitStack(stack []byte, entry func()) (StackPointer, error)

	// IdleTaskStack returns the stack reserved for the idle task. It may be
	// called at most once; the second call reports ok == false.
	IdleTaskStack() ([]byte, bool)

	// RunWithStack switches to sp and never returns. Called exactly once,
	// at the end of Scheduler.Start, with the idle task's StackPointer.
	RunWithStack(sp StackPointer)
}
