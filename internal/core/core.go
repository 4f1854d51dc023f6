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

// Package core holds the scheduler's architecture-independent state: the
// task table, the ready-queue/priority-bitmap pair, and the five
// operations that mutate them (Spawn, SelectTask, BlockTask, UnblockTask,
// Remove). Every mutation happens under a single mutex, playing the role a
// real port's critical-section/interrupt-mask pair plays on bare metal.
package core

import (
	"context"
	"fmt"
	"sync"

	"tana.dev/taskette/arch"
	"tana.dev/taskette/errors"
	"tana.dev/taskette/internal/klog"
)

// TaskID identifies a task. TaskID 0 is reserved for the idle task.
type TaskID uint32

const (
	// MaxNumTasks bounds the task table, including idle.
	MaxNumTasks = 16
	// MaxPriority is the highest priority value a task may be spawned at.
	// Priority 0 is reserved for idle.
	MaxPriority = 10

	// IdleTaskID is the reserved identifier of the idle task.
	IdleTaskID TaskID = 0
	// IdlePriority is the reserved priority of the idle task.
	IdlePriority uint = 0

	// CanaryWords is the number of machine words of stack-canary guard.
	CanaryWords = 4
	// CanaryPattern is the 32-bit pattern written into each canary word.
	CanaryPattern uint32 = 0xABCD1234
)

// TCB is a task control block: everything the scheduler needs to know
// about one task besides its place in a ready queue.
type TCB struct {
	SP        arch.StackPointer
	Priority  uint
	Blocked   bool
	StackBase []byte // nil unless stack-canary checking is enabled for this task
}

type state struct {
	tasks   map[TaskID]*TCB
	lastID  TaskID
	ready   readyQueues
	current TaskID

	initialized   bool
	started       bool
	canaryEnabled bool

	port      arch.Port
	idleStack []byte
}

type guardedState struct {
	mu sync.Mutex
	s  state
}

var g = &guardedState{}

// Init resets and initializes the scheduler's global state, installing
// port as the Architecture Port to dispatch through. It fails if already
// initialized or if port cannot provide an idle-task stack.
func Init(port arch.Port, canaryEnabled bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.s.initialized {
		return errors.New("taskette: scheduler already initialized")
	}
	idleStack, ok := port.IdleTaskStack()
	if !ok {
		return errors.New("taskette: architecture port could not provide an idle task stack")
	}

	g.s = state{
		tasks:         make(map[TaskID]*TCB, MaxNumTasks),
		current:       IdleTaskID,
		initialized:   true,
		canaryEnabled: canaryEnabled,
		port:          port,
		idleStack:     idleStack,
	}
	g.s.tasks[IdleTaskID] = &TCB{Priority: IdlePriority}
	if canaryEnabled {
		writeCanary(idleStack)
		g.s.tasks[IdleTaskID].StackBase = idleStack
	}
	g.s.ready.enqueue(IdleTaskID, IdlePriority)
	return nil
}

// Started reports whether MarkStarted has been called.
func Started() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.started
}

// MarkStarted flips the scheduler into "running" state; after this, Spawn
// requests an immediate context switch rather than merely enqueueing.
func MarkStarted() {
	g.mu.Lock()
	g.s.started = true
	g.mu.Unlock()
}

// IdleStack returns the stack reserved for the idle task at Init time.
func IdleStack() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.s.idleStack
}

// SetIdleSP records the idle task's StackPointer once the port has laid out
// its initial frame.
func SetIdleSP(sp arch.StackPointer) {
	g.mu.Lock()
	g.s.tasks[IdleTaskID].SP = sp
	g.mu.Unlock()
}

// RequestSwitch asks the installed port to suspend the calling task and
// dispatch the next one. It is the mechanism behind the public
// sched.YieldNow and every internal operation that needs the caller to
// stop running (BlockTask, UnblockTask, Spawn-after-start).
func RequestSwitch() {
	g.mu.Lock()
	port := g.s.port
	g.mu.Unlock()
	if port != nil {
		port.RequestSwitch()
	}
}

// allocID must be called with g.mu held. It returns the next free TaskID,
// wrapping past the maximum uint32 value but always skipping the reserved
// idle id 0.
func (s *state) allocID() TaskID {
	for {
		s.lastID++
		if s.lastID == IdleTaskID {
			s.lastID = 1
		}
		if _, exists := s.tasks[s.lastID]; !exists {
			return s.lastID
		}
	}
}

// Spawn allocates a TaskID, asks the port to lay out entry's initial
// frame, and inserts the task into its priority's ready queue. If the
// scheduler is already running it then requests a context switch so a
// higher-priority newcomer preempts immediately.
func Spawn(fn func(), stack []byte, priority uint) (TaskID, error) {
	if priority == 0 || priority > MaxPriority {
		return 0, errors.InvalidPriority
	}

	g.mu.Lock()
	if !g.s.initialized {
		g.mu.Unlock()
		return 0, errors.NotInitialized
	}
	if len(g.s.tasks) >= MaxNumTasks {
		g.mu.Unlock()
		return 0, errors.TaskFull
	}
	id := g.s.allocID()
	// Reserve the slot immediately so a concurrent Spawn can't also see
	// room for one more task; the TCB's SP is filled in once InitStack
	// returns.
	g.s.tasks[id] = &TCB{Priority: priority, Blocked: false}
	canary := g.s.canaryEnabled
	port := g.s.port
	started := g.s.started
	g.mu.Unlock()

	if canary {
		writeCanary(stack)
	}

	entry := func() {
		fn()
		_ = Remove(id)
	}
	sp, err := port.InitStack(stack, entry)
	if err != nil {
		g.mu.Lock()
		delete(g.s.tasks, id)
		g.mu.Unlock()
		return 0, err
	}

	g.mu.Lock()
	tcb := g.s.tasks[id]
	tcb.SP = sp
	if canary {
		tcb.StackBase = stack
	}
	g.s.ready.enqueue(id, priority)
	g.mu.Unlock()

	if started {
		RequestSwitch()
	}
	return id, nil
}

// SelectTask is the dispatcher entry point: given the outgoing task's
// StackPointer, it re-enqueues it (unless it just blocked), checks its
// stack canary, then picks and returns the highest-priority ready task's
// StackPointer. Installed as the Architecture Port's OnSwitch callback.
func SelectTask(outgoing arch.StackPointer) arch.StackPointer {
	g.mu.Lock()
	defer g.mu.Unlock()

	outID := g.s.current
	if tcb, ok := g.s.tasks[outID]; ok {
		tcb.SP = outgoing
		if !tcb.Blocked {
			g.s.ready.enqueue(outID, tcb.Priority)
		}
		if g.s.canaryEnabled && tcb.StackBase != nil && !checkCanary(tcb.StackBase) {
			klog.Default().PanicKind(context.Background(), "stack overflow detected")
			panic(fmt.Sprintf("Stack overflow detected in Task #%d", outID))
		}
	}
	// else: outID was removed by the entry wrapper installed in Spawn
	// before halting; nothing to re-enqueue.

	p := g.s.ready.highestPriority()
	nextID, ok := g.s.ready.dequeue(p)
	if !ok {
		klog.Default().PanicKind(context.Background(), "ready queue/bitmap invariant violated")
		panic("taskette: ready queue/bitmap invariant violated: no runnable task at the reported highest priority")
	}
	nextTCB, ok := g.s.tasks[nextID]
	if !ok {
		klog.Default().PanicKind(context.Background(), "scheduler invariant violated")
		panic("taskette: scheduler invariant violated: dispatched task has no task control block")
	}
	g.s.current = nextID
	return nextTCB.SP
}

// CurrentTaskID reports the TaskID of the task presently deemed running.
func CurrentTaskID() (TaskID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.s.initialized {
		return 0, errors.NotInitialized
	}
	return g.s.current, nil
}

// BlockTask marks id blocked and removes it from its ready queue, then (if
// this changed its state) requests a context switch. Idempotent: blocking
// an already-blocked task is a no-op.
func BlockTask(id TaskID) error {
	g.mu.Lock()
	if !g.s.initialized {
		g.mu.Unlock()
		return errors.NotInitialized
	}
	tcb, ok := g.s.tasks[id]
	if !ok {
		g.mu.Unlock()
		return errors.NotFound
	}
	already := tcb.Blocked
	if !already {
		tcb.Blocked = true
		g.s.ready.removeFromQueue(id, tcb.Priority)
	}
	g.mu.Unlock()

	if !already {
		RequestSwitch()
	}
	return nil
}

// UnblockTask marks id runnable, enqueues it, and requests a context
// switch so a higher-priority wakeup can preempt the caller immediately.
// Idempotent: unblocking an already-runnable task is a no-op. Must only be
// called from task context; the timer tick source uses UnblockTaskQuiet
// instead.
func UnblockTask(id TaskID) error {
	changed, err := unblockLocked(id)
	if err != nil {
		return err
	}
	if changed {
		RequestSwitch()
	}
	return nil
}

// UnblockTaskQuiet has UnblockTask's state-mutation semantics without
// requesting a context switch. It exists for the timer tick source, which
// runs outside any task's context and therefore cannot safely block
// waiting to be redispatched the way RequestSwitch requires. The
// scheduler's port still delivers the wakeup promptly: it kicks the idle
// task if idle is the one presently running, and otherwise the
// newly-runnable task is picked up the next time any task voluntarily
// yields.
func UnblockTaskQuiet(id TaskID) error {
	_, err := unblockLocked(id)
	return err
}

func unblockLocked(id TaskID) (changed bool, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.s.initialized {
		return false, errors.NotInitialized
	}
	tcb, ok := g.s.tasks[id]
	if !ok {
		return false, errors.NotFound
	}
	if !tcb.Blocked {
		return false, nil
	}
	tcb.Blocked = false
	g.s.ready.enqueue(id, tcb.Priority)
	return true, nil
}

// Remove deletes id's task control block entirely, then requests a
// context switch. Called once, by the entry-point wrapper installed in
// Spawn, immediately after the task's body function returns; since the
// removed id is never reinserted into a ready queue, the RequestSwitch
// call never returns, which is this simulation's equivalent of the
// trampoline halting forever once the real task has finished.
func Remove(id TaskID) error {
	g.mu.Lock()
	if !g.s.initialized {
		g.mu.Unlock()
		return errors.NotInitialized
	}
	tcb, ok := g.s.tasks[id]
	if !ok {
		g.mu.Unlock()
		return errors.NotFound
	}
	if !tcb.Blocked {
		g.s.ready.removeFromQueue(id, tcb.Priority)
	}
	delete(g.s.tasks, id)
	g.mu.Unlock()

	RequestSwitch()
	return nil
}

// Snapshot is a point-in-time copy of the task table, for the inspect CLI
// subcommand and for tests that assert on scheduler state.
type Snapshot struct {
	Current TaskID
	Tasks   map[TaskID]TCB
}

// DumpState returns a Snapshot of the current task table.
func DumpState() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := Snapshot{Current: g.s.current, Tasks: make(map[TaskID]TCB, len(g.s.tasks))}
	for id, tcb := range g.s.tasks {
		snap.Tasks[id] = *tcb
	}
	return snap
}
