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

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/asyncexec"
	"tana.dev/taskette/config"
	"tana.dev/taskette/delay"
	"tana.dev/taskette/futex"
	"tana.dev/taskette/sched"
	"tana.dev/taskette/task"
)

// runScenario boots a fresh arch/sim backend and scheduler, calls spawn to
// create the scenario's tasks, starts the scheduler in a goroutine, and
// waits up to timeout for the channel spawn returned to close before
// reporting a timeout error. Every scenario subcommand uses this shape: it is the
// taskette-sim equivalent of the original Rust examples' demo.rs.
func runScenario(timeout time.Duration, spawn func(b *sim.Backend, s *sched.Scheduler) <-chan struct{}) error {
	b := sim.New(256)
	defer b.Stop()

	s, err := sched.Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
	if err != nil {
		return fmt.Errorf("scheduler init: %w", err)
	}

	done := spawn(b, s)
	go s.Start()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scenario timed out after %s", timeout)
	}
}

func newPreemptionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preemption",
		Short: "a low-priority task spawns a higher-priority one and is preempted immediately",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return runScenario(2*time.Second, func(b *sim.Backend, s *sched.Scheduler) <-chan struct{} {
				done := make(chan struct{})
				_, err := sched.Spawn(func() {
					fmt.Fprintln(out, "low: started")
					_, err := sched.Spawn(func() {
						fmt.Fprintln(out, "high: running, preempted the low-priority task")
					}, make([]byte, 64), config.TaskConfig{Priority: 5})
					if err != nil {
						fmt.Fprintln(out, "low: failed to spawn high-priority task:", err)
						close(done)
						return
					}
					fmt.Fprintln(out, "low: resumed after spawn")
					close(done)
				}, make([]byte, 64), config.TaskConfig{Priority: 1})
				if err != nil {
					close(done)
				}
				return done
			})
		},
	}
}

func newParkUnparkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "park-unpark",
		Short: "one task parks itself and another unparks it",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return runScenario(2*time.Second, func(b *sim.Backend, s *sched.Scheduler) <-chan struct{} {
				done := make(chan struct{})
				parked, err := sched.Spawn(func() {
					fmt.Fprintln(out, "worker: parking")
					if err := task.Park(); err != nil {
						fmt.Fprintln(out, "worker: park failed:", err)
					}
					fmt.Fprintln(out, "worker: unparked")
					close(done)
				}, make([]byte, 64), config.TaskConfig{Priority: 2})
				if err != nil {
					close(done)
					return done
				}
				_, err = sched.Spawn(func() {
					fmt.Fprintln(out, "waker: unparking worker")
					if err := parked.Unpark(); err != nil {
						fmt.Fprintln(out, "waker: unpark failed:", err)
					}
				}, make([]byte, 64), config.TaskConfig{Priority: 1})
				if err != nil {
					close(done)
				}
				return done
			})
		},
	}
}

func newFutexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "futex",
		Short: "a waiter blocks on a futex word until a waker changes it and wakes it",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return runScenario(2*time.Second, func(b *sim.Backend, s *sched.Scheduler) <-chan struct{} {
				done := make(chan struct{})
				f := futex.New(0)
				_, err := sched.Spawn(func() {
					fmt.Fprintln(out, "waiter: waiting")
					if err := f.Wait(0); err != nil {
						fmt.Fprintln(out, "waiter: wait failed:", err)
					}
					fmt.Fprintln(out, "waiter: woken")
					close(done)
				}, make([]byte, 64), config.TaskConfig{Priority: 2})
				if err != nil {
					close(done)
					return done
				}
				_, err = sched.Spawn(func() {
					f.AsRef().Store(1)
					fmt.Fprintln(out, "waker: waking")
					if err := f.WakeOne(); err != nil {
						fmt.Fprintln(out, "waker: wake failed:", err)
					}
				}, make([]byte, 64), config.TaskConfig{Priority: 1})
				if err != nil {
					close(done)
				}
				return done
			})
		},
	}
}

func newAsyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "async",
		Short: "a producer and a consumer task exchange values over a single-slot async channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			return runScenario(2*time.Second, func(b *sim.Backend, s *sched.Scheduler) <-chan struct{} {
				done := make(chan struct{})
				ch := asyncexec.NewChannel[int]()
				const n = 3
				_, err := asyncexec.Spawn(func() {
					for i := 0; i < n; i++ {
						if err := ch.Send(i); err != nil {
							fmt.Fprintln(out, "producer: send failed:", err)
							return
						}
						fmt.Fprintln(out, "producer: sent", i)
					}
					close(done)
				}, make([]byte, 64), config.TaskConfig{Priority: 1})
				if err != nil {
					close(done)
					return done
				}
				_, err = asyncexec.Spawn(func() {
					for i := 0; i < n; i++ {
						v, err := ch.Receive()
						if err != nil {
							fmt.Fprintln(out, "consumer: receive failed:", err)
							return
						}
						fmt.Fprintln(out, "consumer: received", v)
					}
				}, make([]byte, 64), config.TaskConfig{Priority: 2})
				if err != nil {
					close(done)
				}
				return done
			})
		},
	}
}

func newCanaryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "canary",
		Short: "demonstrates the stack canary check catching a corrupted task stack",
		Long: `canary spawns a task that corrupts its own stack-canary words and then
yields. selectTask's canary check runs on every context switch and panics
the moment it observes the corruption, crashing this process the same way
a real target would halt on a detected stack overflow. This command is
expected to exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			b := sim.New(256)
			defer b.Stop()

			s, err := sched.Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000, StackCanary: true})
			if err != nil {
				return fmt.Errorf("scheduler init: %w", err)
			}

			stack := make([]byte, 64)
			_, err = sched.Spawn(func() {
				fmt.Fprintln(out, "victim: corrupting its own stack canary")
				// Smash the first canary word: a stand-in for a real
				// stack overflow, since a Go goroutine's stack is not
				// the byte slice passed here.
				stack[0] ^= 0xff
				_ = delay.Sleep(2)
			}, stack, config.TaskConfig{Priority: 1})
			if err != nil {
				return fmt.Errorf("spawn: %w", err)
			}

			s.Start() // never returns; the canary check panics first
			return nil
		},
	}
}
