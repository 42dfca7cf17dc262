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

	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
)

// DistanceInfo pairs an engine with a local memory region. QueryDistances
// fills Distance, or Err if the kernel could not report it.
type DistanceInfo struct {
	Region   i915.MemoryClassInstance
	Engine   i915.EngineClassInstance
	Distance uint32
	Err      error
}

// ResolveDistances counts the local memory regions, one per tile, and pairs
// each with every engine whose distance decides tile ownership: compute,
// render and copy engines always, video engines only when sysman is
// enabled. Pairs are grouped by region in kernel order.
func ResolveDistances(engines []EngineCapabilities, regions []MemoryRegion, sysman bool) (int, []DistanceInfo) {
	tileCount := 0
	var infos []DistanceInfo
	for _, region := range regions {
		if !region.IsLocal() {
			continue
		}
		tileCount++
		for _, engine := range engines {
			switch engine.Engine.EngineClass {
			case i915.I915_ENGINE_CLASS_COMPUTE, i915.I915_ENGINE_CLASS_RENDER, i915.I915_ENGINE_CLASS_COPY:
			case i915.I915_ENGINE_CLASS_VIDEO, i915.I915_ENGINE_CLASS_VIDEO_ENHANCE:
				if !sysman {
					continue
				}
			default:
				continue
			}
			infos = append(infos, DistanceInfo{Region: region.Region, Engine: engine.Engine})
		}
	}
	if tileCount == 0 {
		return 0, nil
	}
	return tileCount, infos
}

// distancesUnsupported reports whether the kernel rejected every pair with
// EINVAL, which is how kernels without the distance query answer.
func distancesUnsupported(infos []DistanceInfo) bool {
	for i := range infos {
		if !errors.Is(infos[i].Err, unix.EINVAL) {
			return false
		}
	}
	return true
}

// queryDistances asks the kernel for the distance of every pair in one
// batch.
func queryDistances(f drm.File, infos []DistanceInfo) error {
	if len(infos) == 0 {
		return nil
	}
	items := make([]drm.QueryItem, len(infos))
	for i := range infos {
		data := i915.EncodeDistanceInfo(i915.DistanceInfo{Engine: infos[i].Engine, Region: infos[i].Region})
		items[i] = drm.QueryItem{
			QueryID: i915.PRELIM_DRM_I915_QUERY_DISTANCE_INFO,
			Length:  int32(len(data)),
			Data:    data,
		}
	}
	if err := drm.QueryItems(f, items); err != nil {
		return err
	}
	for i := range items {
		if err := items[i].Err(); err != nil {
			infos[i].Err = err
			continue
		}
		if int(items[i].Length) > len(items[i].Data) {
			return malformed("distance info", i915.ErrMalformed)
		}
		d, err := i915.ParseDistanceInfo(items[i].Data[:items[i].Length])
		if err != nil {
			return malformed("distance info", err)
		}
		infos[i].Distance = d.Distance
		infos[i].Err = nil
	}
	return nil
}

// regionOrder returns the distinct regions of infos in order of first
// appearance. The i-th region is tile i.
func regionOrder(infos []DistanceInfo) []i915.MemoryClassInstance {
	var order []i915.MemoryClassInstance
	for i := range infos {
		if i == 0 || infos[i].Region != infos[i-1].Region {
			order = append(order, infos[i].Region)
		}
	}
	return order
}

// engineHomeTiles returns the tile of each engine: the tile whose region the
// engine reaches at the smallest distance, the lowest such tile on ties.
// Engines without any reported distance are absent.
func engineHomeTiles(infos []DistanceInfo) map[i915.EngineClassInstance]int {
	type best struct {
		tile     int
		distance uint32
	}
	found := make(map[i915.EngineClassInstance]best)
	tile := -1
	for i := range infos {
		if i == 0 || infos[i].Region != infos[i-1].Region {
			tile++
		}
		if infos[i].Err != nil {
			continue
		}
		if b, ok := found[infos[i].Engine]; !ok || infos[i].Distance < b.distance {
			found[infos[i].Engine] = best{tile: tile, distance: infos[i].Distance}
		}
	}
	homes := make(map[i915.EngineClassInstance]int, len(found))
	for e, b := range found {
		homes[e] = b.tile
	}
	return homes
}

// regionTileMask returns the tiles whose engines reach region at the
// smallest distance any engine reaches it.
func regionTileMask(infos []DistanceInfo, region i915.MemoryClassInstance, homes map[i915.EngineClassInstance]int) uint32 {
	var (
		minDistance uint32
		seen        bool
	)
	for i := range infos {
		if infos[i].Region != region || infos[i].Err != nil {
			continue
		}
		if !seen || infos[i].Distance < minDistance {
			minDistance = infos[i].Distance
			seen = true
		}
	}
	var mask uint32
	if !seen {
		return mask
	}
	for i := range infos {
		if infos[i].Region != region || infos[i].Err != nil || infos[i].Distance != minDistance {
			continue
		}
		if t, ok := homes[infos[i].Engine]; ok && t < 32 {
			mask |= 1 << t
		}
	}
	return mask
}
