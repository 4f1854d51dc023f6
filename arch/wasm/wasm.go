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

// Package wasm is a second Architecture Port backend: it shares
// arch/sim's goroutine/channel dispatcher (task-to-task context switching
// does not depend on the target), but hosts each task's computational
// workload as a WebAssembly function instance under
// github.com/tetratelabs/wazero, sandboxed with no access to the outside
// world. Where arch/sim's entry closures run ordinary Go code, an
// arch/wasm task typically calls a WasmTask's Step method between yields,
// giving the Port layer a genuinely independent implementation to
// exercise.
package wasm

import (
	"context"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"tana.dev/taskette/arch"
	"tana.dev/taskette/arch/internal/baton"
)

// Backend implements arch.Port identically to arch/sim.Backend for
// context-switch purposes; it additionally owns a wazero Runtime that
// task bodies can use to compile and run WASM workloads via CompileTask.
type Backend struct {
	disp      *baton.Dispatcher
	cfg       arch.SetupConfig
	idleStack []byte
	idleTaken bool
	idleSP    arch.StackPointer

	ctx     context.Context
	runtime wazero.Runtime
	stop    chan struct{}
}

// New returns a Backend with its own wazero Runtime; no module is compiled
// until CompileTask is called.
func New(ctx context.Context, idleStackSize int) *Backend {
	if idleStackSize <= 0 {
		idleStackSize = 64
	}
	b := &Backend{
		idleStack: make([]byte, idleStackSize),
		ctx:       ctx,
		runtime:   wazero.NewRuntime(ctx),
	}
	b.disp = baton.New(func(out arch.StackPointer) arch.StackPointer { return b.cfg.OnSwitch(out) })
	return b
}

// Close releases the underlying wazero Runtime.
func (b *Backend) Close() error {
	return b.runtime.Close(b.ctx)
}

func (b *Backend) Setup(cfg arch.SetupConfig) error {
	b.cfg = cfg
	return nil
}

func (b *Backend) StartTimer() {
	// The tick source itself has nothing to do with the guest runtime;
	// like arch/sim's, it is a plain time.Ticker goroutine that calls
	// OnTick and then the dispatcher's KickIdle, owned by this backend so
	// arch/wasm does not depend on arch/sim.
	b.stop = make(chan struct{})
	go b.runTicker()
}

func (b *Backend) RequestSwitch()    { b.disp.RequestSwitch() }
func (b *Backend) WaitForInterrupt() { b.disp.RequestSwitch() }

func (b *Backend) InitStack(stack []byte, entry func()) (arch.StackPointer, error) {
	sp, ch := b.disp.NewSlot()
	go func() {
		<-ch
		entry()
		select {}
	}()
	return sp, nil
}

func (b *Backend) IdleTaskStack() ([]byte, bool) {
	if b.idleTaken {
		return nil, false
	}
	b.idleTaken = true
	return b.idleStack, true
}

func (b *Backend) RunWithStack(sp arch.StackPointer) {
	b.idleSP = sp
	b.disp.SetCurrent(sp)
	b.disp.Resume(sp)
	select {}
}

// Stop halts the tick source.
func (b *Backend) Stop() {
	if b.stop != nil {
		close(b.stop)
	}
}

// WasmTask is a compiled, instantiated WASM module a task body can call
// into between scheduler yields.
type WasmTask struct {
	module   api.Module
	instance api.Function
}

// CompileTask compiles and instantiates code, a WASM binary module
// exporting a single function named exportName of type (i32) -> i32. The
// instance is sandboxed: it has no imports besides what code itself
// declares, and no filesystem or network access.
func (b *Backend) CompileTask(code []byte, exportName string) (*WasmTask, error) {
	compiled, err := b.runtime.CompileModule(b.ctx, code)
	if err != nil {
		return nil, fmt.Errorf("arch/wasm: compiling module: %w", err)
	}
	inst, err := b.runtime.InstantiateModule(b.ctx, compiled, wazero.NewModuleConfig())
	if err != nil {
		return nil, fmt.Errorf("arch/wasm: instantiating module: %w", err)
	}
	fn := inst.ExportedFunction(exportName)
	if fn == nil {
		return nil, fmt.Errorf("arch/wasm: module has no exported function %q", exportName)
	}
	return &WasmTask{module: inst, instance: fn}, nil
}

// Step calls the task's exported function with in and returns its i32
// result.
func (b *Backend) Step(t *WasmTask, in uint32) (uint32, error) {
	results, err := t.instance.Call(b.ctx, uint64(in))
	if err != nil {
		return 0, fmt.Errorf("arch/wasm: step: %w", err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("arch/wasm: step: expected 1 result, got %d", len(results))
	}
	return uint32(results[0]), nil
}

func (b *Backend) runTicker() {
	freq := b.cfg.TickFreqHz
	if freq == 0 {
		freq = 1000
	}
	period := time.Second / time.Duration(freq)
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			b.cfg.OnTick()
			b.disp.KickIdle(b.idleSP)
		}
	}
}
