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
	"errors"
	"fmt"

	"gvisor.dev/gpudrm/pkg/binary"
)

// Query ids for DRM_IOCTL_I915_QUERY.
const (
	DRM_I915_QUERY_TOPOLOGY_INFO      = 1
	DRM_I915_QUERY_ENGINE_INFO        = 2
	DRM_I915_QUERY_PERF_CONFIG        = 3
	DRM_I915_QUERY_MEMORY_REGIONS     = 4
	DRM_I915_QUERY_HWCONFIG_BLOB      = 5
	DRM_I915_QUERY_GEOMETRY_SUBSLICES = 6

	// PRELIM_DRM_I915_QUERY marks query ids only understood by kernels
	// carrying the prelim uAPI.
	PRELIM_DRM_I915_QUERY                = 1 << 16
	PRELIM_DRM_I915_QUERY_ENGINE_INFO    = PRELIM_DRM_I915_QUERY | 2
	PRELIM_DRM_I915_QUERY_MEMORY_REGIONS = PRELIM_DRM_I915_QUERY | 4
	PRELIM_DRM_I915_QUERY_DISTANCE_INFO  = PRELIM_DRM_I915_QUERY | 5
	PRELIM_DRM_I915_QUERY_COMPUTE_SLICES = PRELIM_DRM_I915_QUERY | 8
)

// QueryName returns the symbolic name of a query id.
func QueryName(id uint64) string {
	switch id {
	case DRM_I915_QUERY_TOPOLOGY_INFO:
		return "DRM_I915_QUERY_TOPOLOGY_INFO"
	case DRM_I915_QUERY_ENGINE_INFO:
		return "DRM_I915_QUERY_ENGINE_INFO"
	case DRM_I915_QUERY_PERF_CONFIG:
		return "DRM_I915_QUERY_PERF_CONFIG"
	case DRM_I915_QUERY_MEMORY_REGIONS:
		return "DRM_I915_QUERY_MEMORY_REGIONS"
	case DRM_I915_QUERY_HWCONFIG_BLOB:
		return "DRM_I915_QUERY_HWCONFIG_BLOB"
	case DRM_I915_QUERY_GEOMETRY_SUBSLICES:
		return "DRM_I915_QUERY_GEOMETRY_SUBSLICES"
	case PRELIM_DRM_I915_QUERY_ENGINE_INFO:
		return "PRELIM_DRM_I915_QUERY_ENGINE_INFO"
	case PRELIM_DRM_I915_QUERY_MEMORY_REGIONS:
		return "PRELIM_DRM_I915_QUERY_MEMORY_REGIONS"
	case PRELIM_DRM_I915_QUERY_DISTANCE_INFO:
		return "PRELIM_DRM_I915_QUERY_DISTANCE_INFO"
	case PRELIM_DRM_I915_QUERY_COMPUTE_SLICES:
		return "PRELIM_DRM_I915_QUERY_COMPUTE_SLICES"
	default:
		return fmt.Sprintf("query(%#x)", id)
	}
}

// ComputeSlicesFlags returns the query item flags selecting the engine whose
// tile a PRELIM_DRM_I915_QUERY_COMPUTE_SLICES query describes.
func ComputeSlicesFlags(e EngineClassInstance) uint32 {
	return uint32(e.EngineClass) | uint32(e.EngineInstance)<<16
}

// ErrMalformed is returned when a query response does not match the layout
// its header describes.
var ErrMalformed = errors.New("malformed i915 query response")

func malformed(format string, v ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, v...))
}

// Sizes of query response headers and records.
const (
	SizeofTopologyInfoHeader  = 16
	SizeofEngineInfoHeader    = 16
	SizeofEngineInfo          = 56
	SizeofMemoryRegionsHeader = 16
	SizeofMemoryRegionInfo    = 88
	SizeofDistanceInfo        = 24
)

// TopologyInfo is a decoded struct drm_i915_query_topology_info.
//
// Data holds three bitmasks: slices at offset 0, the sub-slices of slice s
// at SubsliceOffset + s*SubsliceStride, and the EUs of sub-slice ss of slice
// s at EUOffset + (s*MaxSubslices + ss)*EUStride. Offsets are relative to
// the start of Data.
type TopologyInfo struct {
	Flags             uint16
	MaxSlices         uint16
	MaxSubslices      uint16
	MaxEUsPerSubslice uint16
	SubsliceOffset    uint16
	SubsliceStride    uint16
	EUOffset          uint16
	EUStride          uint16
	Data              []byte
}

func bytesFor(bits int) int {
	return (bits + 7) / 8
}

// validate checks that every mask the header describes lies inside Data.
func (t *TopologyInfo) validate() error {
	slices, subslices, eus := int(t.MaxSlices), int(t.MaxSubslices), int(t.MaxEUsPerSubslice)
	if slices == 0 {
		return nil
	}
	if need := bytesFor(slices); need > len(t.Data) {
		return malformed("slice mask needs %d bytes, have %d", need, len(t.Data))
	}
	if subslices == 0 {
		return nil
	}
	if need := int(t.SubsliceOffset) + (slices-1)*int(t.SubsliceStride) + bytesFor(subslices); need > len(t.Data) {
		return malformed("sub-slice masks need %d bytes, have %d", need, len(t.Data))
	}
	if eus == 0 {
		return nil
	}
	if need := int(t.EUOffset) + (slices*subslices-1)*int(t.EUStride) + bytesFor(eus); need > len(t.Data) {
		return malformed("EU masks need %d bytes, have %d", need, len(t.Data))
	}
	return nil
}

// SliceAvailable reports whether slice s is enabled.
func (t *TopologyInfo) SliceAvailable(s int) bool {
	return binary.NewReader(t.Data).Bit(s/8, uint(s%8))
}

// SubsliceAvailable reports whether sub-slice ss of slice s is enabled.
func (t *TopologyInfo) SubsliceAvailable(s, ss int) bool {
	return binary.NewReader(t.Data).Bit(int(t.SubsliceOffset)+s*int(t.SubsliceStride)+ss/8, uint(ss%8))
}

// EUAvailable reports whether EU eu of sub-slice ss of slice s is enabled.
func (t *TopologyInfo) EUAvailable(s, ss, eu int) bool {
	return binary.NewReader(t.Data).Bit(int(t.EUOffset)+(s*int(t.MaxSubslices)+ss)*int(t.EUStride)+eu/8, uint(eu%8))
}

// ParseTopologyInfo decodes a DRM_I915_QUERY_TOPOLOGY_INFO or
// PRELIM_DRM_I915_QUERY_COMPUTE_SLICES response.
func ParseTopologyInfo(b []byte) (*TopologyInfo, error) {
	r := binary.NewReader(b)
	t := &TopologyInfo{
		Flags:             r.Uint16(),
		MaxSlices:         r.Uint16(),
		MaxSubslices:      r.Uint16(),
		MaxEUsPerSubslice: r.Uint16(),
		SubsliceOffset:    r.Uint16(),
		SubsliceStride:    r.Uint16(),
		EUOffset:          r.Uint16(),
		EUStride:          r.Uint16(),
	}
	if err := r.Err(); err != nil {
		return nil, malformed("topology header: %v", err)
	}
	t.Data = append([]byte(nil), r.Bytes(r.Remaining())...)
	if err := t.validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// EncodeTopologyInfo is the inverse of ParseTopologyInfo.
func EncodeTopologyInfo(t *TopologyInfo) []byte {
	buf := make([]byte, 0, SizeofTopologyInfoHeader+len(t.Data))
	for _, v := range []uint16{t.Flags, t.MaxSlices, t.MaxSubslices, t.MaxEUsPerSubslice, t.SubsliceOffset, t.SubsliceStride, t.EUOffset, t.EUStride} {
		buf = binary.AppendUint16(buf, v)
	}
	return append(buf, t.Data...)
}

// EngineInfo is a decoded struct drm_i915_engine_info.
type EngineInfo struct {
	Engine          EngineClassInstance
	Flags           uint64
	Capabilities    uint64
	LogicalInstance uint16
}

// I915_ENGINE_INFO_HAS_LOGICAL_INSTANCE is set in EngineInfo.Flags when
// LogicalInstance is valid.
const I915_ENGINE_INFO_HAS_LOGICAL_INSTANCE = 1 << 0

// ParseEngineInfo decodes a struct drm_i915_query_engine_info response.
func ParseEngineInfo(b []byte) ([]EngineInfo, error) {
	r := binary.NewReader(b)
	n := r.Uint32()
	r.Skip(12)
	if err := r.Err(); err != nil {
		return nil, malformed("engine info header: %v", err)
	}
	if need := uint64(SizeofEngineInfoHeader) + uint64(n)*SizeofEngineInfo; need > uint64(len(b)) {
		return nil, malformed("%d engines need %d bytes, have %d", n, need, len(b))
	}
	engines := make([]EngineInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		var e EngineInfo
		e.Engine.EngineClass = r.Uint16()
		e.Engine.EngineInstance = r.Uint16()
		r.Skip(4)
		e.Flags = r.Uint64()
		e.Capabilities = r.Uint64()
		e.LogicalInstance = r.Uint16()
		r.Skip(6 + 24)
		engines = append(engines, e)
	}
	if err := r.Err(); err != nil {
		return nil, malformed("engine info: %v", err)
	}
	return engines, nil
}

// EncodeEngineInfo is the inverse of ParseEngineInfo.
func EncodeEngineInfo(engines []EngineInfo) []byte {
	buf := make([]byte, 0, SizeofEngineInfoHeader+len(engines)*SizeofEngineInfo)
	buf = binary.AppendUint32(buf, uint32(len(engines)))
	buf = binary.AppendZeros(buf, 12)
	for _, e := range engines {
		buf = binary.AppendUint16(buf, e.Engine.EngineClass)
		buf = binary.AppendUint16(buf, e.Engine.EngineInstance)
		buf = binary.AppendZeros(buf, 4)
		buf = binary.AppendUint64(buf, e.Flags)
		buf = binary.AppendUint64(buf, e.Capabilities)
		buf = binary.AppendUint16(buf, e.LogicalInstance)
		buf = binary.AppendZeros(buf, 6+24)
	}
	return buf
}

// MemoryRegionInfo is a decoded struct drm_i915_memory_region_info.
type MemoryRegionInfo struct {
	Region                    MemoryClassInstance
	ProbedSize                uint64
	UnallocatedSize           uint64
	ProbedCPUVisibleSize      uint64
	UnallocatedCPUVisibleSize uint64
}

// ParseMemoryRegions decodes a struct drm_i915_query_memory_regions
// response.
func ParseMemoryRegions(b []byte) ([]MemoryRegionInfo, error) {
	r := binary.NewReader(b)
	n := r.Uint32()
	r.Skip(12)
	if err := r.Err(); err != nil {
		return nil, malformed("memory regions header: %v", err)
	}
	if need := uint64(SizeofMemoryRegionsHeader) + uint64(n)*SizeofMemoryRegionInfo; need > uint64(len(b)) {
		return nil, malformed("%d regions need %d bytes, have %d", n, need, len(b))
	}
	regions := make([]MemoryRegionInfo, 0, n)
	for i := uint32(0); i < n; i++ {
		var m MemoryRegionInfo
		m.Region.MemoryClass = r.Uint16()
		m.Region.MemoryInstance = r.Uint16()
		r.Skip(4)
		m.ProbedSize = r.Uint64()
		m.UnallocatedSize = r.Uint64()
		m.ProbedCPUVisibleSize = r.Uint64()
		m.UnallocatedCPUVisibleSize = r.Uint64()
		r.Skip(6 * 8)
		regions = append(regions, m)
	}
	if err := r.Err(); err != nil {
		return nil, malformed("memory regions: %v", err)
	}
	return regions, nil
}

// EncodeMemoryRegions is the inverse of ParseMemoryRegions.
func EncodeMemoryRegions(regions []MemoryRegionInfo) []byte {
	buf := make([]byte, 0, SizeofMemoryRegionsHeader+len(regions)*SizeofMemoryRegionInfo)
	buf = binary.AppendUint32(buf, uint32(len(regions)))
	buf = binary.AppendZeros(buf, 12)
	for _, m := range regions {
		buf = binary.AppendUint16(buf, m.Region.MemoryClass)
		buf = binary.AppendUint16(buf, m.Region.MemoryInstance)
		buf = binary.AppendZeros(buf, 4)
		buf = binary.AppendUint64(buf, m.ProbedSize)
		buf = binary.AppendUint64(buf, m.UnallocatedSize)
		buf = binary.AppendUint64(buf, m.ProbedCPUVisibleSize)
		buf = binary.AppendUint64(buf, m.UnallocatedCPUVisibleSize)
		buf = binary.AppendZeros(buf, 6*8)
	}
	return buf
}

// DistanceInfo is struct prelim_drm_i915_query_distance_info. The caller
// fills Engine and Region; the kernel fills Distance.
type DistanceInfo struct {
	Engine   EngineClassInstance
	Region   MemoryClassInstance
	Distance uint32
}

// ParseDistanceInfo decodes a PRELIM_DRM_I915_QUERY_DISTANCE_INFO item.
func ParseDistanceInfo(b []byte) (DistanceInfo, error) {
	r := binary.NewReader(b)
	d := DistanceInfo{
		Engine:   EngineClassInstance{EngineClass: r.Uint16(), EngineInstance: r.Uint16()},
		Region:   MemoryClassInstance{MemoryClass: r.Uint16(), MemoryInstance: r.Uint16()},
		Distance: r.Uint32(),
	}
	r.Skip(12)
	if err := r.Err(); err != nil {
		return DistanceInfo{}, malformed("distance info: %v", err)
	}
	return d, nil
}

// EncodeDistanceInfo is the inverse of ParseDistanceInfo.
func EncodeDistanceInfo(d DistanceInfo) []byte {
	buf := make([]byte, 0, SizeofDistanceInfo)
	buf = binary.AppendUint16(buf, d.Engine.EngineClass)
	buf = binary.AppendUint16(buf, d.Engine.EngineInstance)
	buf = binary.AppendUint16(buf, d.Region.MemoryClass)
	buf = binary.AppendUint16(buf, d.Region.MemoryInstance)
	buf = binary.AppendUint32(buf, d.Distance)
	return binary.AppendZeros(buf, 12)
}
