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

import (
	"fmt"

	"gvisor.dev/gpudrm/pkg/binary"
)

// Context creation flags and extensions.
const (
	I915_CONTEXT_CREATE_FLAGS_USE_EXTENSIONS  = 1 << 0
	I915_CONTEXT_CREATE_FLAGS_SINGLE_TIMELINE = 1 << 1

	I915_CONTEXT_CREATE_EXT_SETPARAM = 0

	// PRELIM_I915_USER_EXT marks extension names only understood by kernels
	// carrying the prelim uAPI.
	PRELIM_I915_USER_EXT                          = 1 << 16
	PRELIM_I915_CONTEXT_CREATE_EXT_RUNALONE       = PRELIM_I915_USER_EXT | 3
	PRELIM_I915_CONTEXT_CREATE_FLAGS_LONG_RUNNING = 1 << 31
)

// Context parameters.
const (
	I915_CONTEXT_PARAM_BAN_PERIOD  = 0x1
	I915_CONTEXT_PARAM_NO_ZEROMAP  = 0x2
	I915_CONTEXT_PARAM_GTT_SIZE    = 0x3
	I915_CONTEXT_PARAM_PRIORITY    = 0x6
	I915_CONTEXT_PARAM_SSEU        = 0x7
	I915_CONTEXT_PARAM_RECOVERABLE = 0x8
	I915_CONTEXT_PARAM_VM          = 0x9
	I915_CONTEXT_PARAM_ENGINES     = 0xa
	I915_CONTEXT_PARAM_PERSISTENCE = 0xb

	// PRELIM_I915_CONTEXT_PARAM marks context parameters only understood by
	// kernels carrying the prelim uAPI.
	PRELIM_I915_CONTEXT_PARAM             = 1 << 16
	PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAGS = PRELIM_I915_CONTEXT_PARAM | 0xfd

	// PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAG_SIP enables the system routine
	// used by debuggers. The DEBUG_FLAGS value carries a mask in its upper
	// 32 bits and the flag values in its lower 32 bits.
	PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAG_SIP = 1 << 0
)

// Context priorities.
const (
	I915_CONTEXT_MAX_USER_PRIORITY = 1023
	I915_CONTEXT_DEFAULT_PRIORITY  = 0
	I915_CONTEXT_MIN_USER_PRIORITY = -1023
)

// DebugFlagsValue returns the DEBUG_FLAGS context parameter value that sets
// flags.
func DebugFlagsValue(flags uint32) uint64 {
	return uint64(flags)<<32 | uint64(flags)
}

// ContextParamName returns the symbolic name of a context parameter.
func ContextParamName(param uint64) string {
	switch param {
	case I915_CONTEXT_PARAM_BAN_PERIOD:
		return "I915_CONTEXT_PARAM_BAN_PERIOD"
	case I915_CONTEXT_PARAM_NO_ZEROMAP:
		return "I915_CONTEXT_PARAM_NO_ZEROMAP"
	case I915_CONTEXT_PARAM_GTT_SIZE:
		return "I915_CONTEXT_PARAM_GTT_SIZE"
	case I915_CONTEXT_PARAM_PRIORITY:
		return "I915_CONTEXT_PARAM_PRIORITY"
	case I915_CONTEXT_PARAM_SSEU:
		return "I915_CONTEXT_PARAM_SSEU"
	case I915_CONTEXT_PARAM_RECOVERABLE:
		return "I915_CONTEXT_PARAM_RECOVERABLE"
	case I915_CONTEXT_PARAM_VM:
		return "I915_CONTEXT_PARAM_VM"
	case I915_CONTEXT_PARAM_ENGINES:
		return "I915_CONTEXT_PARAM_ENGINES"
	case I915_CONTEXT_PARAM_PERSISTENCE:
		return "I915_CONTEXT_PARAM_PERSISTENCE"
	case PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAGS:
		return "PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAGS"
	default:
		return fmt.Sprintf("context_param(%#x)", param)
	}
}

// EncodeContextEngines encodes struct i915_context_param_engines for the
// I915_CONTEXT_PARAM_ENGINES context parameter: a zero extension chain
// followed by the engine map.
func EncodeContextEngines(engines []EngineClassInstance) []byte {
	buf := make([]byte, 0, 8+len(engines)*SizeofEngineClassInstance)
	buf = binary.AppendUint64(buf, 0)
	for _, e := range engines {
		buf = binary.AppendUint16(buf, e.EngineClass)
		buf = binary.AppendUint16(buf, e.EngineInstance)
	}
	return buf
}

// ParseContextEngines decodes the engine map of an
// I915_CONTEXT_PARAM_ENGINES value.
func ParseContextEngines(b []byte) ([]EngineClassInstance, error) {
	if len(b) < 8 || (len(b)-8)%SizeofEngineClassInstance != 0 {
		return nil, malformed("engine map of %d bytes", len(b))
	}
	r := binary.NewReader(b)
	r.Skip(8)
	engines := make([]EngineClassInstance, 0, (len(b)-8)/SizeofEngineClassInstance)
	for r.Remaining() > 0 {
		engines = append(engines, EngineClassInstance{EngineClass: r.Uint16(), EngineInstance: r.Uint16()})
	}
	return engines, r.Err()
}
