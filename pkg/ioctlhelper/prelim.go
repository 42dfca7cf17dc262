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
	"errors"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/log"
)

// Prelim speaks the i915 uAPI with the prelim extensions.
type Prelim struct {
	common
}

var _ Helper = (*Prelim)(nil)

func (p *Prelim) probe() Capabilities {
	caps := p.probeCommon()
	if _, err := p.file.GetContextParam(0, i915.PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAGS); err == nil {
		caps.ContextDebug = true
	}
	if v, err := p.file.GetParam(i915.PRELIM_I915_PARAM_HAS_VM_BIND); err == nil && v > 0 {
		caps.VMBind = true
	}
	return caps
}

// Variant implements Helper.Variant.
func (p *Prelim) Variant() Variant {
	return VariantPrelim
}

// CreateMemoryInfo implements Helper.CreateMemoryInfo.
func (p *Prelim) CreateMemoryInfo() (*MemoryInfo, error) {
	return createMemoryInfo(p.file, i915.PRELIM_DRM_I915_QUERY_MEMORY_REGIONS)
}

// CreateEngineInfo implements Helper.CreateEngineInfo.
func (p *Prelim) CreateEngineInfo(mem *MemoryInfo, sysman bool) (*EngineInfo, *MemoryInfo, error) {
	return createEngineInfo(p.file, p, i915.PRELIM_DRM_I915_QUERY_ENGINE_INFO, mem, sysman)
}

// QueryDistances implements Helper.QueryDistances.
func (p *Prelim) QueryDistances(infos []DistanceInfo) error {
	return queryDistances(p.file, infos)
}

// GetTopologyDataAndMap implements Helper.GetTopologyDataAndMap.
//
// With tile information, each tile's topology is queried through its
// default engine and the device reports the smallest counts and largest
// maxima across tiles. Otherwise, or if any tile fails, the mainline query
// is used.
func (p *Prelim) GetTopologyDataAndMap(engines *EngineInfo) (TopologyData, TopologyMap, error) {
	if engines == nil || engines.TileCount() == 0 {
		return getTopologyDataAndMap(p.file)
	}
	data, topology, err := p.perTileTopology(engines)
	if err == nil {
		return data, topology, nil
	}
	if errors.Is(err, ErrMalformedResponse) {
		return TopologyData{}, nil, err
	}
	log.Infof("Per-tile topology unavailable, using tile 0 topology: %v", err)
	return getTopologyDataAndMap(p.file)
}

func (p *Prelim) perTileTopology(engines *EngineInfo) (TopologyData, TopologyMap, error) {
	var data TopologyData
	topology := make(TopologyMap)
	for tile := 0; tile < engines.TileCount(); tile++ {
		engine, ok := engines.DefaultEngine(tile)
		if !ok {
			return TopologyData{}, nil, ErrNoTopology
		}
		info, err := decodeTopology(p.file, i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, i915.ComputeSlicesFlags(engine))
		if err != nil {
			return TopologyData{}, nil, err
		}
		tileData, mapping, ok := TranslateTopologyInfo(info)
		if !ok {
			return TopologyData{}, nil, ErrNoTopology
		}
		if tile == 0 {
			data.SliceCount = tileData.SliceCount
			data.SubSliceCount = tileData.SubSliceCount
			data.EUCount = tileData.EUCount
		} else {
			data.SliceCount = min(data.SliceCount, tileData.SliceCount)
			data.SubSliceCount = min(data.SubSliceCount, tileData.SubSliceCount)
			data.EUCount = min(data.EUCount, tileData.EUCount)
		}
		data.MaxSliceCount = max(data.MaxSliceCount, tileData.MaxSliceCount)
		data.MaxSubSliceCount = max(data.MaxSubSliceCount, tileData.MaxSubSliceCount)
		data.MaxEUPerSubSlice = max(data.MaxEUPerSubSlice, int(info.MaxEUsPerSubslice))
		topology[tile] = mapping
	}
	return data, topology, nil
}

// CreateDrmContext implements Helper.CreateDrmContext.
func (p *Prelim) CreateDrmContext(env ContextEnv, desc ContextDescriptor, vmID, deviceIndex uint32) (Context, error) {
	return createDrmContext(p.file, p, p.caps, p.opts.DebuggingMode, env, desc, vmID, deviceIndex)
}

func (p *Prelim) longRunningFlag() uint32 {
	return i915.PRELIM_I915_CONTEXT_CREATE_FLAGS_LONG_RUNNING
}

func (p *Prelim) cooperativeExtension() (drm.ContextExtension, error) {
	return drm.ContextExtension{Name: i915.PRELIM_I915_CONTEXT_CREATE_EXT_RUNALONE}, nil
}

func (p *Prelim) setContextDebugFlag(ctxID uint32) error {
	flag := uint32(i915.PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAG_SIP)
	return setContextParam(p.file, ctxID, i915.PRELIM_I915_CONTEXT_PARAM_DEBUG_FLAGS, i915.DebugFlagsValue(flag))
}
