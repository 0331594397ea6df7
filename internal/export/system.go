/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemInfo describes the machine an export runs on.
type SystemInfo struct {
	LogicalCores int
	TotalMemMB   uint64
}

// ProbeSystem inspects the host to size the encoder workload. Failures fall
// back to runtime values so export never blocks on the probe.
func ProbeSystem() SystemInfo {
	info := SystemInfo{LogicalCores: runtime.NumCPU()}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		info.LogicalCores = n
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		info.TotalMemMB = vm.Total / (1024 * 1024)
	}
	return info
}

// EncoderThreads caps ffmpeg's thread count. Encoding beyond eight threads
// gains little and starves the frame producer.
func (s SystemInfo) EncoderThreads() int {
	n := s.LogicalCores
	if n < 1 {
		n = 1
	}
	if n > 8 {
		n = 8
	}
	return n
}
