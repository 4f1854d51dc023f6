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

// Package sched is the scheduler's public entry point: Init wires an
// Architecture Port to the core and timer state; Scheduler.Start
// hands control to the port and never returns; Spawn and YieldNow are the
// operations task code calls on itself.
package sched

import (
	"tana.dev/taskette/arch"
	"tana.dev/taskette/config"
	"tana.dev/taskette/internal/core"
	"tana.dev/taskette/internal/klog"
	"tana.dev/taskette/internal/timer"
	"tana.dev/taskette/task"
)

// Scheduler is the handle returned by Init; its only job is to start the
// kernel once every initial task has been spawned.
type Scheduler struct {
	port        arch.Port
	clockFreqHz uint32
	cfg         config.SchedulerConfig
}

// Init initializes the task table, ready queues, and timer, and installs
// port as the Architecture Port the running kernel will dispatch through.
// It fails if called twice, or if port cannot supply an idle-task stack.
func Init(port arch.Port, clockFreqHz uint32, cfg config.SchedulerConfig) (*Scheduler, error) {
	if cfg.TickFreq == 0 {
		cfg.TickFreq = config.DefaultSchedulerConfig().TickFreq
	}
	if err := core.Init(port, cfg.StackCanary); err != nil {
		return nil, err
	}
	if err := timer.Init(); err != nil {
		return nil, err
	}
	return &Scheduler{port: port, clockFreqHz: clockFreqHz, cfg: cfg}, nil
}

// Spawn creates a new task running fn on stack at the given priority, and
// returns a Handle to it. If the scheduler is already running this also
// requests an immediate context switch, so a higher-priority newcomer
// preempts the caller right away.
func Spawn(fn func(), stack []byte, cfg config.TaskConfig) (task.Handle, error) {
	if cfg.Priority == 0 {
		cfg.Priority = config.DefaultTaskConfig().Priority
	}
	id, err := core.Spawn(fn, stack, cfg.Priority)
	if err != nil {
		return task.Handle{}, err
	}
	return task.NewHandle(id), nil
}

// YieldNow requests a context switch without otherwise changing the
// calling task's state, so an equal- or higher-priority task can run.
func YieldNow() {
	core.RequestSwitch()
}

// Start installs the tick source, lays out the idle task's initial frame,
// and hands control to the Architecture Port. It never returns.
func (s *Scheduler) Start() {
	err := s.port.Setup(arch.SetupConfig{
		ClockFreqHz: s.clockFreqHz,
		TickFreqHz:  s.cfg.TickFreq,
		OnTick:      handleTick,
		OnSwitch:    core.SelectTask,
	})
	if err != nil {
		klog.Default().Fatal("architecture port setup failed", "error", err)
	}

	idleSP, err := s.port.InitStack(core.IdleStack(), idleBody(s.port))
	if err != nil {
		klog.Default().Fatal("idle task stack initialization failed", "error", err)
	}
	core.SetIdleSP(idleSP)
	core.MarkStarted()

	s.port.StartTimer()
	klog.Default().Info("scheduler started", "tick_freq_hz", s.cfg.TickFreq)
	s.port.RunWithStack(idleSP) // never returns
}

// handleTick is the Architecture Port's OnTick callback: it advances the
// timer, which may unblock tasks. It runs outside any task's context, so
// it must not request a context switch itself; the port's own tick source
// is responsible for giving the newly-runnable task a chance to run (see
// arch/internal/baton.Dispatcher.KickIdle).
func handleTick() {
	timer.Tick()
}

func idleBody(port arch.Port) func() {
	return func() {
		for {
			port.WaitForInterrupt()
		}
	}
}
