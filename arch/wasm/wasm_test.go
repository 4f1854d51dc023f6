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

package wasm

import (
	"context"
	"testing"
	"time"

	"github.com/go-quicktest/qt"

	"tana.dev/taskette/config"
	"tana.dev/taskette/sched"
)

// incrementWasm is a hand-assembled WASM module exporting a single
// function "increment" of type (i32) -> i32, computing x+1. It has no
// imports, no memory, and no access to anything outside its own stack.
//
//	(module
//	  (func (export "increment") (param i32) (result i32)
//	    local.get 0
//	    i32.const 1
//	    i32.add))
var incrementWasm = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x0d, 0x01, 0x09, 0x69, 0x6e, 0x63, 0x72,
	0x65, 0x6d, 0x65, 0x6e, 0x74, 0x00, 0x00,
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x41,
	0x01, 0x6a, 0x0b,
}

func TestCompileTaskStepsGuestFunction(t *testing.T) {
	b := New(context.Background(), 256)
	defer b.Close()

	wt, err := b.CompileTask(incrementWasm, "increment")
	qt.Assert(t, qt.IsNil(err))

	v, err := b.Step(wt, 41)
	qt.Assert(t, qt.IsNil(err))
	qt.Assert(t, qt.Equals(v, uint32(42)))
}

func TestCompileTaskUnknownExportFails(t *testing.T) {
	b := New(context.Background(), 256)
	defer b.Close()

	_, err := b.CompileTask(incrementWasm, "no_such_export")
	qt.Assert(t, qt.IsNotNil(err))
}

// TestWasmBackendRunsTasks exercises the Port contract end to end: a
// task spawned on a wasm.Backend steps a compiled guest function on every
// iteration and hand control back to the scheduler with RequestSwitch, the
// same way an arch/sim task would.
func TestWasmBackendRunsTasks(t *testing.T) {
	b := New(context.Background(), 256)
	defer b.Close()

	s, err := sched.Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
	qt.Assert(t, qt.IsNil(err))

	wt, err := b.CompileTask(incrementWasm, "increment")
	qt.Assert(t, qt.IsNil(err))

	results := make(chan uint32, 3)
	_, err = sched.Spawn(func() {
		v := uint32(0)
		for i := 0; i < 3; i++ {
			stepped, stepErr := b.Step(wt, v)
			if stepErr != nil {
				close(results)
				return
			}
			v = stepped
			results <- v
			sched.YieldNow()
		}
	}, make([]byte, 64), config.TaskConfig{Priority: 1})
	qt.Assert(t, qt.IsNil(err))

	go s.Start()

	for i := 1; i <= 3; i++ {
		select {
		case v, ok := <-results:
			qt.Assert(t, qt.IsTrue(ok))
			qt.Assert(t, qt.Equals(v, uint32(i)))
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for wasm task step")
		}
	}
}
