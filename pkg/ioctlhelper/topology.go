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
	"maps"
	"slices"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/log"
)

// TopologyData holds the compute unit counts of a device.
//
// MaxSliceCount and MaxSubSliceCount are one past the highest enabled index,
// not counts: masks may have holes.
type TopologyData struct {
	SliceCount       int `json:"sliceCount" yaml:"sliceCount"`
	SubSliceCount    int `json:"subSliceCount" yaml:"subSliceCount"`
	EUCount          int `json:"euCount" yaml:"euCount"`
	MaxSliceCount    int `json:"maxSliceCount" yaml:"maxSliceCount"`
	MaxSubSliceCount int `json:"maxSubSliceCount" yaml:"maxSubSliceCount"`
	MaxEUPerSubSlice int `json:"maxEuPerSubSlice" yaml:"maxEuPerSubSlice"`
}

// TopologyMapping lists the enabled slices of a tile and, when exactly one
// slice is enabled, its enabled sub-slices.
type TopologyMapping struct {
	SliceIndices    []int `json:"sliceIndices" yaml:"sliceIndices"`
	SubsliceIndices []int `json:"subsliceIndices" yaml:"subsliceIndices"`
}

// TopologyMap maps tile index to that tile's mapping.
type TopologyMap map[int]TopologyMapping

// Tiles returns the tile indices in increasing order.
func (m TopologyMap) Tiles() []int {
	return slices.Sorted(maps.Keys(m))
}

// TranslateTopologyInfo counts the enabled slices, sub-slices and EUs of a
// decoded topology response. It reports whether the device has at least one
// of each.
func TranslateTopologyInfo(t *i915.TopologyInfo) (TopologyData, TopologyMapping, bool) {
	var (
		data    TopologyData
		mapping TopologyMapping
		enabled []int
	)
	for x := 0; x < int(t.MaxSlices); x++ {
		if !t.SliceAvailable(x) {
			continue
		}
		enabled = append(enabled, x)
		data.SliceCount++

		var subslices []int
		for y := 0; y < int(t.MaxSubslices); y++ {
			if !t.SubsliceAvailable(x, y) {
				continue
			}
			data.SubSliceCount++
			subslices = append(subslices, y)
			for z := 0; z < int(t.MaxEUsPerSubslice); z++ {
				if t.EUAvailable(x, y, z) {
					data.EUCount++
				}
			}
		}
		if n := len(subslices); n > 0 {
			data.MaxSubSliceCount = max(data.MaxSubSliceCount, subslices[n-1]+1)
		}
		if data.SliceCount == 1 {
			mapping.SubsliceIndices = subslices
		}
	}
	if n := len(enabled); n > 0 {
		data.MaxSliceCount = enabled[n-1] + 1
		mapping.SliceIndices = enabled
	}
	// Sub-slice indices are ambiguous across several slices.
	if data.SliceCount != 1 {
		mapping.SubsliceIndices = nil
	}
	return data, mapping, data.SliceCount > 0 && data.SubSliceCount > 0 && data.EUCount > 0
}

// decodeTopology fetches and decodes one topology query.
func decodeTopology(f drm.File, queryID uint64, flags uint32) (*i915.TopologyInfo, error) {
	blob := drm.Query(f, queryID, flags)
	if len(blob) == 0 {
		return nil, ErrNoTopology
	}
	info, err := i915.ParseTopologyInfo(blob)
	if err != nil {
		return nil, malformed(i915.QueryName(queryID), err)
	}
	return info, nil
}

// getTopologyDataAndMap decodes DRM_I915_QUERY_TOPOLOGY_INFO, which
// describes tile 0 only.
func getTopologyDataAndMap(f drm.File) (TopologyData, TopologyMap, error) {
	info, err := decodeTopology(f, i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0)
	if err != nil {
		return TopologyData{}, nil, err
	}
	data, mapping, ok := TranslateTopologyInfo(info)
	data.MaxEUPerSubSlice = int(info.MaxEUsPerSubslice)
	topology := TopologyMap{0: mapping}
	if !ok {
		log.Infof("Topology reports %d slices, %d sub-slices, %d EUs", data.SliceCount, data.SubSliceCount, data.EUCount)
		return data, topology, ErrNoTopology
	}
	return data, topology, nil
}
