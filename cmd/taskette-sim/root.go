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

package main

import (
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tana.dev/taskette/internal/klog"
)

// runID namespaces log lines for a single invocation, the way a
// scheduler-visualization tool tags every trace it emits with one run.
var runID = uuid.New().String()

func newRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:           "taskette-sim",
		Short:         "run demo scenarios and tooling for the taskette scheduler",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			l := klog.New(cmd.ErrOrStderr(), level)
			l.Logger = l.Logger.With("run_id", runID)
			klog.SetDefault(l)
			l.Info("taskette-sim starting")
		},
	}
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	for _, sub := range []*cobra.Command{
		newPreemptionCmd(),
		newParkUnparkCmd(),
		newFutexCmd(),
		newAsyncCmd(),
		newCanaryCmd(),
		newBenchCmd(),
		newInspectCmd(),
		newStatsCmd(),
	} {
		cmd.AddCommand(sub)
	}

	return cmd
}
