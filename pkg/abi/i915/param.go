// Copyright 2026 The gVisor Authors.
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

package i915

import "fmt"

// GETPARAM parameters.
const (
	I915_PARAM_CHIPSET_ID             = 4
	I915_PARAM_HAS_EXECBUF2           = 9
	I915_PARAM_REVISION               = 32
	I915_PARAM_SUBSLICE_TOTAL         = 33
	I915_PARAM_EU_TOTAL               = 34
	I915_PARAM_HAS_EXEC_SOFTPIN       = 37
	I915_PARAM_HAS_POOLED_EU          = 38
	I915_PARAM_MIN_EU_IN_POOL         = 39
	I915_PARAM_HAS_SCHEDULER          = 41
	I915_PARAM_CS_TIMESTAMP_FREQUENCY = 51
	I915_PARAM_OA_TIMESTAMP_FREQUENCY = 57

	// PRELIM_I915_PARAM marks parameters only understood by kernels carrying
	// the prelim uAPI.
	PRELIM_I915_PARAM             = 1 << 16
	PRELIM_I915_PARAM_HAS_VM_BIND = PRELIM_I915_PARAM | 6
)

// Bits reported by I915_PARAM_HAS_SCHEDULER.
const (
	I915_SCHEDULER_CAP_ENABLED    = 1 << 0
	I915_SCHEDULER_CAP_PRIORITY   = 1 << 1
	I915_SCHEDULER_CAP_PREEMPTION = 1 << 2
)

var paramNames = map[int32]string{
	I915_PARAM_CHIPSET_ID:             "I915_PARAM_CHIPSET_ID",
	I915_PARAM_HAS_EXECBUF2:           "I915_PARAM_HAS_EXECBUF2",
	I915_PARAM_REVISION:               "I915_PARAM_REVISION",
	I915_PARAM_SUBSLICE_TOTAL:         "I915_PARAM_SUBSLICE_TOTAL",
	I915_PARAM_EU_TOTAL:               "I915_PARAM_EU_TOTAL",
	I915_PARAM_HAS_EXEC_SOFTPIN:       "I915_PARAM_HAS_EXEC_SOFTPIN",
	I915_PARAM_HAS_POOLED_EU:          "I915_PARAM_HAS_POOLED_EU",
	I915_PARAM_MIN_EU_IN_POOL:         "I915_PARAM_MIN_EU_IN_POOL",
	I915_PARAM_HAS_SCHEDULER:          "I915_PARAM_HAS_SCHEDULER",
	I915_PARAM_CS_TIMESTAMP_FREQUENCY: "I915_PARAM_CS_TIMESTAMP_FREQUENCY",
	I915_PARAM_OA_TIMESTAMP_FREQUENCY: "I915_PARAM_OA_TIMESTAMP_FREQUENCY",
	PRELIM_I915_PARAM_HAS_VM_BIND:     "PRELIM_I915_PARAM_HAS_VM_BIND",
}

// ParamName returns the symbolic name of a GETPARAM parameter.
func ParamName(param int32) string {
	if name, ok := paramNames[param]; ok {
		return name
	}
	return fmt.Sprintf("param(%d)", param)
}

// Engine classes, enum drm_i915_gem_engine_class.
const (
	I915_ENGINE_CLASS_RENDER        = 0
	I915_ENGINE_CLASS_COPY          = 1
	I915_ENGINE_CLASS_VIDEO         = 2
	I915_ENGINE_CLASS_VIDEO_ENHANCE = 3
	I915_ENGINE_CLASS_COMPUTE       = 4
	I915_ENGINE_CLASS_INVALID       = 0xffff

	// I915_ENGINE_CLASS_INVALID_NONE and I915_ENGINE_CLASS_INVALID_VIRTUAL
	// are instance values used with I915_ENGINE_CLASS_INVALID in engine maps.
	I915_ENGINE_CLASS_INVALID_NONE    = 0xffff
	I915_ENGINE_CLASS_INVALID_VIRTUAL = 0xfffe
)

// EngineClassName returns a short name for an engine class.
func EngineClassName(class uint16) string {
	switch class {
	case I915_ENGINE_CLASS_RENDER:
		return "render"
	case I915_ENGINE_CLASS_COPY:
		return "copy"
	case I915_ENGINE_CLASS_VIDEO:
		return "video"
	case I915_ENGINE_CLASS_VIDEO_ENHANCE:
		return "video-enhance"
	case I915_ENGINE_CLASS_COMPUTE:
		return "compute"
	case I915_ENGINE_CLASS_INVALID:
		return "invalid"
	default:
		return fmt.Sprintf("class(%d)", class)
	}
}

// Engine capability bits reported in EngineInfo.Capabilities.
const (
	I915_VIDEO_CLASS_CAPABILITY_HEVC            = 1 << 0
	I915_VIDEO_AND_ENHANCE_CLASS_CAPABILITY_SFC = 1 << 1
)

// Memory classes, enum drm_i915_gem_memory_class.
const (
	I915_MEMORY_CLASS_SYSTEM = 0
	I915_MEMORY_CLASS_DEVICE = 1
)

// MemoryClassName returns a short name for a memory class.
func MemoryClassName(class uint16) string {
	switch class {
	case I915_MEMORY_CLASS_SYSTEM:
		return "system"
	case I915_MEMORY_CLASS_DEVICE:
		return "device"
	default:
		return fmt.Sprintf("class(%d)", class)
	}
}

// Execbuffer ring selectors. The legacy selector for an engine is what
// context binding reports back to submission.
const (
	I915_EXEC_DEFAULT   = 0
	I915_EXEC_RENDER    = 1
	I915_EXEC_BSD       = 2
	I915_EXEC_BLT       = 3
	I915_EXEC_VEBOX     = 4
	I915_EXEC_RING_MASK = 0x3f
	I915_EXEC_NO_RELOC  = 1 << 11
)

// GEM_MMAP_OFFSET flags.
const (
	I915_MMAP_OFFSET_GTT = 0
	I915_MMAP_OFFSET_WC  = 1
	I915_MMAP_OFFSET_WB  = 2
	I915_MMAP_OFFSET_UC  = 3
)

// Tiling modes.
const (
	I915_TILING_NONE = 0
	I915_TILING_X    = 1
	I915_TILING_Y    = 2
)
