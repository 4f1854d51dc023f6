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
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/config"
	"tana.dev/taskette/internal/timer"
	"tana.dev/taskette/sched"
)

func newStatsCmd() *cobra.Command {
	var runMillis int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "run two tasks for a period and report tick and dispatch counts with thousands separators",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			b := sim.New(256)
			defer b.Stop()

			s, err := sched.Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
			if err != nil {
				return fmt.Errorf("scheduler init: %w", err)
			}

			priorities := []uint{1, 2}
			counters := make([]atomic.Int64, len(priorities))
			for i, priority := range priorities {
				c := &counters[i]
				_, err := sched.Spawn(func() {
					for {
						c.Add(1)
						sched.YieldNow()
					}
				}, make([]byte, 64), config.TaskConfig{Priority: priority})
				if err != nil {
					return fmt.Errorf("spawn priority %d task: %w", priority, err)
				}
			}

			go s.Start()
			time.Sleep(time.Duration(runMillis) * time.Millisecond)

			p := message.NewPrinter(language.English)
			p.Fprintf(out, "ticks elapsed: %d\n", timer.CurrentTime())
			for i, priority := range priorities {
				p.Fprintf(out, "task priority %d dispatched %d times\n", priority, counters[i].Load())
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&runMillis, "millis", 50, "how long to let the scheduler run before reporting stats")
	return cmd
}
