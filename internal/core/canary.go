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

package core

import "encoding/binary"

// writeCanary stamps CanaryWords machine words of CanaryPattern at the
// base (index 0) of stack. Silently does nothing if stack is too short to
// hold the guard, since a caller passing an undersized buffer has already
// opted out of meaningful overflow detection.
func writeCanary(stack []byte) {
	if len(stack) < CanaryWords*4 {
		return
	}
	for i := 0; i < CanaryWords; i++ {
		binary.LittleEndian.PutUint32(stack[i*4:], CanaryPattern)
	}
}

// checkCanary reports whether every canary word at the base of stack still
// holds CanaryPattern.
func checkCanary(stack []byte) bool {
	if len(stack) < CanaryWords*4 {
		return true
	}
	for i := 0; i < CanaryWords; i++ {
		if binary.LittleEndian.Uint32(stack[i*4:]) != CanaryPattern {
			return false
		}
	}
	return true
}
