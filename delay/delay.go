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

// Package delay provides the one-line Sleep helper built on top of the
// timer subsystem, the same composition as the original project's
// taskette-utils delay helper.
package delay

import "tana.dev/taskette/internal/timer"

// Sleep blocks the calling task for at least ticks timer ticks.
func Sleep(ticks uint64) error {
	return timer.WaitUntil(timer.CurrentTime() + ticks)
}
