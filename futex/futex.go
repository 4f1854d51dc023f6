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

// Package futex implements the scheduler's wait/wake primitive: an atomic
// word plus a bounded FIFO of waiting tasks, with the double-checked
// compare-then-block pattern needed to avoid a missed wakeup between the
// comparison and the block.
package futex

import (
	"sync"
	"sync/atomic"

	"tana.dev/taskette/errors"
	"tana.dev/taskette/internal/core"
)

// maxWaiters bounds a single Futex's waiter queue at the task-table limit:
// no more tasks can ever be alive to wait on it than that.
const maxWaiters = core.MaxNumTasks

// Futex pairs an atomic word with a bounded FIFO of blocked waiters.
type Futex struct {
	value atomic.Uint32

	mu      sync.Mutex
	waiters [maxWaiters]core.TaskID
	head    int
	size    int
}

// New returns a Futex whose word starts at initial.
func New(initial uint32) *Futex {
	f := &Futex{}
	f.value.Store(initial)
	return f
}

// AsRef returns the Futex's underlying atomic word, for callers that want
// to read or update it directly (for example a single-slot channel
// implementation storing "empty"/"full" in the word itself).
func (f *Futex) AsRef() *atomic.Uint32 { return &f.value }

func (f *Futex) pushWaiter(id core.TaskID) bool {
	if f.size == len(f.waiters) {
		return false
	}
	f.waiters[(f.head+f.size)%len(f.waiters)] = id
	f.size++
	return true
}

func (f *Futex) popWaiter() (core.TaskID, bool) {
	if f.size == 0 {
		return 0, false
	}
	id := f.waiters[f.head]
	f.head = (f.head + 1) % len(f.waiters)
	f.size--
	return id, true
}

// Wait blocks the calling task if and only if the Futex's word still
// equals compare by the time the calling task is safely enqueued as a
// waiter. The comparison is re-checked once more inside the critical
// section (the "double check") to close the race where the word changes,
// and a wake happens, between the caller's first read and its enqueue.
func (f *Futex) Wait(compare uint32) error {
	if f.value.Load() != compare {
		return nil
	}
	id, err := core.CurrentTaskID()
	if err != nil {
		return err
	}

	f.mu.Lock()
	if f.value.Load() != compare {
		f.mu.Unlock()
		return nil
	}
	if !f.pushWaiter(id) {
		f.mu.Unlock()
		return errors.TaskFull
	}
	f.mu.Unlock()

	return core.BlockTask(id)
}

// WakeOne unblocks at most one waiting task.
func (f *Futex) WakeOne() error { return f.Wake(1) }

// WakeAll unblocks every waiting task.
func (f *Futex) WakeAll() error { return f.Wake(maxWaiters) }

// Wake unblocks up to n waiting tasks, in FIFO order.
func (f *Futex) Wake(n int) error {
	f.mu.Lock()
	ids := make([]core.TaskID, 0, n)
	for i := 0; i < n; i++ {
		id, ok := f.popWaiter()
		if !ok {
			break
		}
		ids = append(ids, id)
	}
	f.mu.Unlock()

	for _, id := range ids {
		if err := core.UnblockTask(id); err != nil {
			return err
		}
	}
	return nil
}
