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

package sched

import (
	"sync"
	"testing"
	"time"

	"github.com/go-quicktest/qt"

	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/config"
	"tana.dev/taskette/futex"
	"tana.dev/taskette/task"
)

// TestPreemptionOrdering spawns a low-priority task that, from within its
// own body, spawns a higher-priority one. The higher-priority task must
// run to completion before the low-priority spawner's next line executes,
// the way spec.md's "Preemption" end-to-end scenario requires.
func TestPreemptionOrdering(t *testing.T) {
	b := sim.New(256)
	s, err := Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
	qt.Assert(t, qt.IsNil(err))

	var mu sync.Mutex
	var trace []string
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}

	done := make(chan struct{})
	lowDone := make(chan struct{})

	_, err = Spawn(func() {
		record("low-start")
		_, err := Spawn(func() {
			record("high-run")
			close(done)
		}, make([]byte, 64), config.TaskConfig{Priority: 5})
		qt.Check(t, qt.IsNil(err))
		record("low-after-spawn")
		close(lowDone)
	}, make([]byte, 64), config.TaskConfig{Priority: 1})
	qt.Assert(t, qt.IsNil(err))

	go s.Start()

	select {
	case <-lowDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for low-priority task to resume")
	}

	mu.Lock()
	defer mu.Unlock()
	qt.Assert(t, qt.DeepEquals(trace, []string{"low-start", "high-run", "low-after-spawn"}))
}

// TestParkUnpark spawns a task that parks itself, and a second, waking
// task that unparks it; the parked task must not observe the shared
// counter change until after it has actually been unparked.
func TestParkUnpark(t *testing.T) {
	b := sim.New(256)
	s, err := Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
	qt.Assert(t, qt.IsNil(err))

	var counter int
	var mu sync.Mutex
	observed := make(chan int, 1)
	parked := make(chan task.Handle, 1)
	resumeDone := make(chan struct{})

	_, err = Spawn(func() {
		h, err := task.Current()
		qt.Check(t, qt.IsNil(err))
		parked <- h
		qt.Check(t, qt.IsNil(task.Park()))

		mu.Lock()
		v := counter
		mu.Unlock()
		observed <- v
		close(resumeDone)
	}, make([]byte, 64), config.TaskConfig{Priority: 3})
	qt.Assert(t, qt.IsNil(err))

	_, err = Spawn(func() {
		h := <-parked
		mu.Lock()
		counter = 42
		mu.Unlock()
		qt.Check(t, qt.IsNil(h.Unpark()))
	}, make([]byte, 64), config.TaskConfig{Priority: 2})
	qt.Assert(t, qt.IsNil(err))

	go s.Start()

	select {
	case <-resumeDone:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for parked task to resume")
	}
	qt.Assert(t, qt.Equals(<-observed, 42))
}

// TestFutexOrdering exercises futex wait/wake: a waiter blocked on a
// Futex's word must not be woken until the word actually changes and Wake
// is called.
func TestFutexOrdering(t *testing.T) {
	b := sim.New(256)
	s, err := Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
	qt.Assert(t, qt.IsNil(err))

	f := futex.New(0)
	var trace []string
	var mu sync.Mutex
	record := func(s string) {
		mu.Lock()
		trace = append(trace, s)
		mu.Unlock()
	}
	done := make(chan struct{})

	_, err = Spawn(func() {
		record("waiter-wait")
		qt.Check(t, qt.IsNil(f.Wait(0)))
		record("waiter-woken")
		close(done)
	}, make([]byte, 64), config.TaskConfig{Priority: 2})
	qt.Assert(t, qt.IsNil(err))

	_, err = Spawn(func() {
		f.AsRef().Store(1)
		record("waker-wake")
		qt.Check(t, qt.IsNil(f.WakeAll()))
	}, make([]byte, 64), config.TaskConfig{Priority: 1})
	qt.Assert(t, qt.IsNil(err))

	go s.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for futex waiter to wake")
	}

	mu.Lock()
	defer mu.Unlock()
	qt.Assert(t, qt.DeepEquals(trace, []string{"waiter-wait", "waker-wake", "waiter-woken"}))
}
