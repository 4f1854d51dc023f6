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

package timer

import (
	"container/heap"
	"testing"
	"time"

	"github.com/go-quicktest/qt"

	"tana.dev/taskette/arch"
	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/errors"
	"tana.dev/taskette/internal/core"
)

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
	qt.Assert(t, qt.IsNil(Init()))
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

// TestWaitUntilFiresAtDeadline checks the deadline <= now fire predicate:
// a registration for tick 5 must not fire on ticks 1-4 and must fire
// exactly on tick 5.
func TestWaitUntilFiresAtDeadline(t *testing.T) {
	b := bootTestScheduler(t)

	woke := make(chan struct{})
	_, err := core.Spawn(func() {
		qt.Check(t, qt.IsNil(WaitUntil(5)))
		close(woke)
	}, make([]byte, 64), 1)
	qt.Assert(t, qt.IsNil(err))

	startScheduler(b)

	for i := 0; i < 4; i++ {
		Tick()
		select {
		case <-woke:
			t.Fatalf("woke early, at tick %d", i+1)
		default:
		}
	}
	Tick() // tick 5
	select {
	case <-woke:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for timer wakeup")
	}
}

// TestWaitUntilPastDeadlineReturnsImmediately checks that registering a
// deadline that has already elapsed does not block the caller at all.
func TestWaitUntilPastDeadlineReturnsImmediately(t *testing.T) {
	b := bootTestScheduler(t)

	g.mu.Lock()
	g.now = 10
	g.mu.Unlock()

	done := make(chan struct{})
	_, err := core.Spawn(func() {
		qt.Check(t, qt.IsNil(WaitUntil(3)))
		close(done)
	}, make([]byte, 64), 1)
	qt.Assert(t, qt.IsNil(err))

	startScheduler(b)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out: a past deadline should not block the caller")
	}
}

// TestTimerFullWhenSaturated saturates the registration heap directly
// (rather than by spawning MaxTimerRegs distinct tasks, which would
// exceed the unrelated MaxNumTasks limit first) and checks the next
// WaitUntil call observes TimerFull.
func TestTimerFullWhenSaturated(t *testing.T) {
	b := bootTestScheduler(t)
	startScheduler(b)

	g.mu.Lock()
	for i := 0; i < MaxTimerRegs; i++ {
		heap.Push(&g.h, entry{deadline: 1_000_000, id: core.TaskID(i + 1)})
	}
	g.mu.Unlock()

	errCh := make(chan error, 1)
	_, err := core.Spawn(func() {
		errCh <- WaitUntil(1_000_000)
	}, make([]byte, 64), 1)
	qt.Assert(t, qt.IsNil(err))

	select {
	case err := <-errCh:
		qt.Assert(t, qt.ErrorIs(err, errors.TimerFull))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for TimerFull")
	}
}
