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

// Package task gives a task code running under the scheduler a handle to
// itself and to other tasks: Current identifies the caller, Park blocks
// it, and a Handle obtained from Spawn or Current lets any task unblock
// another.
package task

import "tana.dev/taskette/internal/core"

// TaskID identifies a task; see internal/core.TaskID.
type TaskID = core.TaskID

// Handle is a cheap, comparable reference to a task, typically stashed by
// one task so another can later call Unpark on it.
type Handle struct {
	id TaskID
}

// NewHandle wraps id in a Handle. Used by package sched when a task is
// spawned.
func NewHandle(id TaskID) Handle { return Handle{id: id} }

// ID reports the wrapped TaskID.
func (h Handle) ID() TaskID { return h.id }

// Unpark marks h's task runnable if it is currently parked. It is
// idempotent: unparking an already-runnable task is a no-op.
func (h Handle) Unpark() error {
	return core.UnblockTask(h.id)
}

// Current returns a Handle to the calling task.
func Current() (Handle, error) {
	id, err := core.CurrentTaskID()
	if err != nil {
		return Handle{}, err
	}
	return Handle{id: id}, nil
}

// Park blocks the calling task until some other task calls Unpark on a
// Handle naming it.
func Park() error {
	id, err := core.CurrentTaskID()
	if err != nil {
		return err
	}
	return core.BlockTask(id)
}
