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

// Package klog is the scheduler's logging adapter: a thin wrapper around
// log/slog, used at initialization, on fatal/panic paths, and at CLI
// boundaries. It is never called from the context-switch hot path.
package klog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/kr/pretty"
)

// Logger wraps a *slog.Logger with a DumpState helper for pretty-printing
// scheduler state during debugging.
type Logger struct {
	*slog.Logger
}

var std = &Logger{slog.Default()}

// Default returns the package-level logger used when no Logger has been
// threaded through explicitly.
func Default() *Logger { return std }

// SetDefault replaces the package-level logger, for example so the CLI can
// install a -v-controlled handler.
func SetDefault(l *Logger) { std = l }

// New builds a Logger writing text-handler output to w at the given level.
func New(w io.Writer, level slog.Level) *Logger {
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return &Logger{slog.New(h)}
}

// Fatal logs msg at error level with args, then calls os.Exit(1).
func (l *Logger) Fatal(msg string, args ...any) {
	l.Logger.Error(msg, args...)
	os.Exit(1)
}

// DumpState pretty-prints v (typically a snapshot of the task table or
// ready queues) under label, for the inspect CLI subcommand.
func (l *Logger) DumpState(label string, v any) {
	fmt.Fprintf(os.Stderr, "%s:\n", label)
	pretty.Fprintf(os.Stderr, "%# v\n", v)
}

// PanicKind logs a structured record describing an invariant violation or
// stack-canary hit before the caller panics.
func (l *Logger) PanicKind(ctx context.Context, reason string, attrs ...slog.Attr) {
	l.Logger.LogAttrs(ctx, slog.LevelError, reason, attrs...)
}
