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
	"time"

	"github.com/spf13/cobra"

	"tana.dev/taskette/arch/sim"
	"tana.dev/taskette/config"
	"tana.dev/taskette/sched"
)

// benchIterations is the number of pairwise yield_now round trips timed,
// matching the original Cortex-M and RISC-V benchmark examples.
const benchIterations = 1000

func newBenchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bench",
		Short: "time 1000 pairwise yield_now round trips between two tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			b := sim.New(256)
			defer b.Stop()

			s, err := sched.Init(b, 1_000_000, config.SchedulerConfig{TickFreq: 1000})
			if err != nil {
				return fmt.Errorf("scheduler init: %w", err)
			}

			done := make(chan time.Duration, 1)
			var start time.Time

			_, err = sched.Spawn(func() {
				start = time.Now()
				for i := 0; i < benchIterations; i++ {
					sched.YieldNow()
				}
				done <- time.Since(start)
			}, make([]byte, 64), config.TaskConfig{Priority: 2})
			if err != nil {
				return fmt.Errorf("spawn timer task: %w", err)
			}

			_, err = sched.Spawn(func() {
				for i := 0; i < benchIterations; i++ {
					sched.YieldNow()
				}
			}, make([]byte, 64), config.TaskConfig{Priority: 2})
			if err != nil {
				return fmt.Errorf("spawn partner task: %w", err)
			}

			go s.Start()

			select {
			case elapsed := <-done:
				perSwitch := elapsed / time.Duration(2*benchIterations)
				fmt.Fprintf(out, "%d round trips in %s (%s/switch)\n", benchIterations, elapsed, perSwitch)
				return nil
			case <-time.After(10 * time.Second):
				return fmt.Errorf("benchmark timed out")
			}
		},
	}
}
