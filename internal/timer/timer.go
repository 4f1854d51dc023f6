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

// Package timer implements the scheduler's monotonic clock and the
// bounded min-heap of (deadline, TaskId) registrations that back
// WaitUntil. Tick advances the clock and unblocks anything whose deadline
// has arrived; it is called from the Architecture Port's tick source,
// outside any task's context, so it never requests a context switch
// itself (see internal/core.UnblockTaskQuiet).
package timer

import (
	"container/heap"
	"sync"

	"tana.dev/taskette/errors"
	"tana.dev/taskette/internal/core"
)

// MaxTimerRegs bounds the number of outstanding (deadline, TaskId)
// registrations.
const MaxTimerRegs = 32

type entry struct {
	deadline uint64
	id       core.TaskID
}

type entryHeap []entry

func (h entryHeap) Len() int            { return len(h) }
func (h entryHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h entryHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x interface{}) { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

type state struct {
	mu  sync.Mutex
	now uint64
	h   entryHeap
}

var g state

// Init resets the timer to tick 0 with no outstanding registrations.
func Init() error {
	g.mu.Lock()
	g.now = 0
	g.h = nil
	g.mu.Unlock()
	return nil
}

// CurrentTime reports the current tick count.
func CurrentTime() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now
}

// Tick advances the clock by one and unblocks every task whose deadline is
// now due: deadline <= now is the fire predicate (not the inverted
// deadline >= now form that appears in one prior revision of this code,
// which fires a registration on the first tick after it is made, however
// far off its deadline is).
func Tick() {
	g.mu.Lock()
	g.now++
	now := g.now
	var due []core.TaskID
	for len(g.h) > 0 && g.h[0].deadline <= now {
		e := heap.Pop(&g.h).(entry)
		due = append(due, e.id)
	}
	g.mu.Unlock()

	for _, id := range due {
		// A task may have been independently unblocked (for example by a
		// futex wake) between registering and its deadline arriving; that
		// makes this call a no-op rather than an error, which is exactly
		// UnblockTaskQuiet's idempotent contract.
		_ = core.UnblockTaskQuiet(id)
	}
}

// WaitUntil registers the calling task to be unblocked once the clock
// reaches deadline, and blocks it. If deadline has already passed it
// returns immediately without blocking.
func WaitUntil(deadline uint64) error {
	id, err := core.CurrentTaskID()
	if err != nil {
		return err
	}

	g.mu.Lock()
	if deadline <= g.now {
		g.mu.Unlock()
		return nil
	}
	if len(g.h) >= MaxTimerRegs {
		g.mu.Unlock()
		return errors.TimerFull
	}
	heap.Push(&g.h, entry{deadline: deadline, id: id})
	g.mu.Unlock()

	return core.BlockTask(id)
}
