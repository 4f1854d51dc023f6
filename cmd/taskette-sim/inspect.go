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
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/config"
	"tana.dev/taskette/internal/core"
	"tana.dev/taskette/internal/klog"
	"tana.dev/taskette/sched"
	"tana.dev/taskette/task"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "spawn a few parked tasks and print a snapshot of the live task table",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			b := sim.New(256)
			defer b.Stop()

			s, err := sched.Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
			if err != nil {
				return fmt.Errorf("scheduler init: %w", err)
			}

			for _, priority := range []uint{1, 2, 3} {
				p := priority
				_, err := sched.Spawn(func() {
					_ = task.Park()
				}, make([]byte, 64), config.TaskConfig{Priority: p})
				if err != nil {
					return fmt.Errorf("spawn priority %d task: %w", p, err)
				}
			}

			go s.Start()
			time.Sleep(20 * time.Millisecond)

			snap := core.DumpState()
			klog.Default().DumpState("task table", snap)

			ids := make([]int, 0, len(snap.Tasks))
			for id := range snap.Tasks {
				ids = append(ids, int(id))
			}
			sort.Ints(ids)
			fmt.Fprintf(out, "current=%d tasks=%d\n", snap.Current, len(snap.Tasks))
			for _, id := range ids {
				tcb := snap.Tasks[core.TaskID(id)]
				fmt.Fprintf(out, "  task %d: priority=%d blocked=%t\n", id, tcb.Priority, tcb.Blocked)
			}
			return nil
		},
	}
}
