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

// Command taskette-sim runs the demo scenarios and tooling for the
// taskette scheduling substrate on top of the arch/sim Architecture Port.
package main

import "os"

func main() {
	os.Exit(Main())
}

// Main builds and executes the root command, returning a process exit
// code. Split out from main so tests can drive it via
// testscript.RunMain without an os.Exit inside the test binary itself.
func Main() int {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}
