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

// Package config holds the structured configuration used by
// cmd/taskette-sim: per-run scheduler settings, per-task settings, and the
// YAML file format tying them together. The CLI builds its configurations
// in code; it does not call Load.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchedulerConfig configures the scheduler core for one run.
type SchedulerConfig struct {
	// TickFreq is the timer tick frequency in Hz. Zero means "use the
	// default" wherever a SchedulerConfig is consumed.
	TickFreq uint32 `yaml:"tick_freq"`

	// StackCanary enables the four-word stack canary check in selectTask.
	StackCanary bool `yaml:"stack_canary"`
}

// DefaultSchedulerConfig returns the scheduler defaults: 1000 Hz tick,
// canary checking off.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{TickFreq: 1000}
}

// TaskConfig configures one spawned task.
type TaskConfig struct {
	Priority  uint `yaml:"priority"`
	StackSize int  `yaml:"stack_size"`
}

// DefaultTaskConfig returns the task defaults: priority 1, a 4KiB stack
// buffer (relevant only when StackCanary is enabled).
func DefaultTaskConfig() TaskConfig {
	return TaskConfig{Priority: 1, StackSize: 4096}
}

// NamedTaskConfig is a TaskConfig tagged with a name, for scenario files
// that spawn more than one task.
type NamedTaskConfig struct {
	Name string `yaml:"name"`
	TaskConfig
}

// RunConfig is the top-level shape of a taskette-sim scenario file.
type RunConfig struct {
	Scheduler SchedulerConfig   `yaml:"scheduler"`
	Tasks     []NamedTaskConfig `yaml:"tasks"`
}

// Load reads and parses a YAML RunConfig from path, filling in defaults for
// zero-valued fields.
func Load(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var rc RunConfig
	if err := yaml.Unmarshal(data, &rc); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if rc.Scheduler.TickFreq == 0 {
		rc.Scheduler.TickFreq = DefaultSchedulerConfig().TickFreq
	}
	for i := range rc.Tasks {
		if rc.Tasks[i].Priority == 0 {
			rc.Tasks[i].Priority = DefaultTaskConfig().Priority
		}
		if rc.Tasks[i].StackSize == 0 {
			rc.Tasks[i].StackSize = DefaultTaskConfig().StackSize
		}
	}
	return &rc, nil
}
