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

// GEM_CREATE_EXT extension names.
const (
	I915_GEM_CREATE_EXT_MEMORY_REGIONS = 0
)

// SizeofGemCreateExtMemoryRegions is the size of
// struct drm_i915_gem_create_ext_memory_regions.
const SizeofGemCreateExtMemoryRegions = SizeofUserExtension + 16

// GemCreateExt is struct drm_i915_gem_create_ext.
type GemCreateExt struct {
	Size       uint64
	Handle     uint32
	Flags      uint32
	Extensions uint64
}

// GemCreateExtMemoryRegions is struct drm_i915_gem_create_ext_memory_regions.
// Regions holds the address of NumRegions MemoryClassInstance values in
// placement order.
type GemCreateExtMemoryRegions struct {
	Base       UserExtension
	_          uint32
	NumRegions uint32
	Regions    uint64
}
