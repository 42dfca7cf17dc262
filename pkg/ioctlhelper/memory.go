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

package ioctlhelper

import (
	"math/bits"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
)

// MemoryRegion is one kernel-reported memory region.
type MemoryRegion struct {
	Region          i915.MemoryClassInstance `json:"region" yaml:"region"`
	ProbedSize      uint64                   `json:"probedSize" yaml:"probedSize"`
	UnallocatedSize uint64                   `json:"unallocatedSize" yaml:"unallocatedSize"`

	// TileMask has bit t set if tile t reaches this region at minimum
	// distance. It is zero for system memory.
	TileMask uint32 `json:"tileMask" yaml:"tileMask"`
}

// IsLocal reports whether the region is device-local memory.
func (r *MemoryRegion) IsLocal() bool {
	return r.Region.MemoryClass == i915.I915_MEMORY_CLASS_DEVICE
}

// TranslateToMemoryRegions converts a DRM_I915_QUERY_MEMORY_REGIONS response
// into regions in kernel order. Empty regions are kept.
func TranslateToMemoryRegions(blob []byte) ([]MemoryRegion, error) {
	infos, err := i915.ParseMemoryRegions(blob)
	if err != nil {
		return nil, malformed("memory regions", err)
	}
	regions := make([]MemoryRegion, len(infos))
	for i, info := range infos {
		regions[i] = MemoryRegion{
			Region:          info.Region,
			ProbedSize:      info.ProbedSize,
			UnallocatedSize: info.UnallocatedSize,
		}
	}
	return regions, nil
}

// MemoryInfo is the memory layout of a device. It is immutable.
type MemoryInfo struct {
	regions   []MemoryRegion
	system    int
	local     []int
	tileLocal []int
}

// NewMemoryInfo builds a MemoryInfo from regions in kernel order. Until
// distances are known, the t-th local region is assumed to belong to tile t.
func NewMemoryInfo(regions []MemoryRegion) *MemoryInfo {
	m := &MemoryInfo{
		regions: append([]MemoryRegion(nil), regions...),
		system:  -1,
	}
	for i := range m.regions {
		r := &m.regions[i]
		switch {
		case r.Region.MemoryClass == i915.I915_MEMORY_CLASS_SYSTEM && m.system < 0:
			m.system = i
		case r.IsLocal():
			tile := len(m.local)
			m.local = append(m.local, i)
			m.tileLocal = append(m.tileLocal, i)
			if tile < 32 {
				r.TileMask = 1 << tile
			}
		}
	}
	return m
}

// createMemoryInfo queries memory regions with queryID.
func createMemoryInfo(f drm.File, queryID uint64) (*MemoryInfo, error) {
	blob := drm.Query(f, queryID, 0)
	if len(blob) == 0 {
		return nil, nil
	}
	regions, err := TranslateToMemoryRegions(blob)
	if err != nil {
		return nil, err
	}
	return NewMemoryInfo(regions), nil
}

// Regions returns all regions in kernel order.
func (m *MemoryInfo) Regions() []MemoryRegion {
	return append([]MemoryRegion(nil), m.regions...)
}

// SystemRegion returns the first system memory region.
func (m *MemoryInfo) SystemRegion() (MemoryRegion, bool) {
	if m.system < 0 {
		return MemoryRegion{}, false
	}
	return m.regions[m.system], true
}

// LocalRegions returns the device-local regions in kernel order.
func (m *MemoryInfo) LocalRegions() []MemoryRegion {
	out := make([]MemoryRegion, len(m.local))
	for i, idx := range m.local {
		out[i] = m.regions[idx]
	}
	return out
}

// LocalRegionCount returns the number of device-local regions.
func (m *MemoryInfo) LocalRegionCount() int {
	return len(m.local)
}

// RegionForTile returns the local region owned by tile.
func (m *MemoryInfo) RegionForTile(tile int) (MemoryRegion, bool) {
	if tile < 0 || tile >= len(m.tileLocal) || m.tileLocal[tile] < 0 {
		return MemoryRegion{}, false
	}
	return m.regions[m.tileLocal[tile]], true
}

// TotalLocalSize returns the probed size of all device-local regions.
func (m *MemoryInfo) TotalLocalSize() uint64 {
	var total uint64
	for _, idx := range m.local {
		total += m.regions[idx].ProbedSize
	}
	return total
}

// RegionsForBanks returns the placement list for a buffer object in the
// local memory of the tiles set in banks.
func (m *MemoryInfo) RegionsForBanks(banks uint32) []i915.MemoryClassInstance {
	var out []i915.MemoryClassInstance
	for banks != 0 {
		tile := bits.TrailingZeros32(banks)
		banks &^= 1 << tile
		if r, ok := m.RegionForTile(tile); ok {
			out = append(out, r.Region)
		}
	}
	return out
}

// AssignRegionsFromDistances returns a copy of m in which each local region
// is labeled with the tiles that reach it at minimum distance, and each tile
// owns the first region it reaches at minimum distance.
//
// infos must be grouped by region in kernel order, as ResolveDistances
// produces them. The i-th distinct local region in infos is tile i.
func (m *MemoryInfo) AssignRegionsFromDistances(infos []DistanceInfo) *MemoryInfo {
	out := &MemoryInfo{
		regions: append([]MemoryRegion(nil), m.regions...),
		system:  m.system,
		local:   append([]int(nil), m.local...),
	}
	homes := engineHomeTiles(infos)
	tileCount := 0
	for _, t := range homes {
		tileCount = max(tileCount, t+1)
	}
	tileCount = max(tileCount, len(regionOrder(infos)))

	out.tileLocal = make([]int, tileCount)
	for t := range out.tileLocal {
		out.tileLocal[t] = -1
	}
	for _, region := range regionOrder(infos) {
		idx := out.indexOf(region)
		if idx < 0 {
			continue
		}
		mask := regionTileMask(infos, region, homes)
		out.regions[idx].TileMask = mask
		for t := range out.tileLocal {
			if mask&(1<<t) != 0 && out.tileLocal[t] < 0 {
				out.tileLocal[t] = idx
			}
		}
	}
	return out
}

func (m *MemoryInfo) indexOf(region i915.MemoryClassInstance) int {
	for i := range m.regions {
		if m.regions[i].Region == region {
			return i
		}
	}
	return -1
}
