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

package futex

import (
	"testing"
	"time"

	"github.com/go-quicktest/qt"

	"tana.dev/taskette/arch"
	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/internal/core"
)

func TestWakeWithNoWaitersIsNoop(t *testing.T) {
	f := New(0)
	qt.Assert(t, qt.IsNil(f.WakeOne()))
	qt.Assert(t, qt.IsNil(f.WakeAll()))
}

func TestWaitReturnsImmediatelyWhenWordAlreadyChanged(t *testing.T) {
	f := New(1)
	// Calling Wait(0) on a Futex never initialized with the scheduler
	// running must not even look up the current task, since the fast
	// compare already fails.
	qt.Assert(t, qt.IsNil(f.Wait(0)))
}

func bootTestScheduler(t *testing.T) *sim.Backend {
	t.Helper()
	b := sim.New(256)
	err := b.Setup(arch.SetupConfig{
		ClockFreqHz: 1_000_000,
		TickFreqHz:  1000,
		OnTick:      func() {},
		OnSwitch:    core.SelectTask,
	})
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.IsNil(core.Init(b, false)))
	return b
}

func startScheduler(b *sim.Backend) {
	idleSP, _ := b.InitStack(core.IdleStack(), func() {
		for {
			b.WaitForInterrupt()
		}
	})
	core.SetIdleSP(idleSP)
	core.MarkStarted()
	go b.RunWithStack(idleSP)
}

// TestWaitWakeOrdering is the end-to-end futex scenario: a waiter blocks
// on Wait, and only resumes after the word changes and a waker calls Wake.
func TestWaitWakeOrdering(t *testing.T) {
	b := bootTestScheduler(t)
	f := New(0)

	done := make(chan struct{})
	_, err := core.Spawn(func() {
		qt.Check(t, qt.IsNil(f.Wait(0)))
		close(done)
	}, make([]byte, 64), 2)
	qt.Assert(t, qt.IsNil(err))

	_, err = core.Spawn(func() {
		f.AsRef().Store(1)
		qt.Check(t, qt.IsNil(f.WakeOne()))
	}, make([]byte, 64), 1)
	qt.Assert(t, qt.IsNil(err))

	startScheduler(b)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for futex waiter to wake")
	}
}

// TestWakeOneWakesOnlyOne checks that WakeOne unblocks exactly one of
// several waiters, in FIFO order, leaving the rest parked.
func TestWakeOneWakesOnlyOne(t *testing.T) {
	b := bootTestScheduler(t)
	f := New(0)

	firstWoke := make(chan int, 1)
	secondStillBlocked := make(chan struct{})

	_, err := core.Spawn(func() {
		qt.Check(t, qt.IsNil(f.Wait(0)))
		firstWoke <- 1
	}, make([]byte, 64), 3)
	qt.Assert(t, qt.IsNil(err))

	secondID, err := core.Spawn(func() {
		qt.Check(t, qt.IsNil(f.Wait(0)))
		firstWoke <- 2
	}, make([]byte, 64), 2)
	qt.Assert(t, qt.IsNil(err))

	_, err = core.Spawn(func() {
		// Lower priority than both waiters, so by the time this task is
		// dispatched both have already registered and blocked.
		f.AsRef().Store(1)
		qt.Check(t, qt.IsNil(f.WakeOne()))
		close(secondStillBlocked)
	}, make([]byte, 64), 1)
	qt.Assert(t, qt.IsNil(err))

	startScheduler(b)

	select {
	case who := <-firstWoke:
		qt.Assert(t, qt.Equals(who, 1))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the first waiter to wake")
	}
	<-secondStillBlocked
	qt.Assert(t, qt.IsTrue(core.DumpState().Tasks[secondID].Blocked))
}
