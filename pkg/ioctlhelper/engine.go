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
	"fmt"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/log"
)

// EngineCapabilities is one kernel-reported engine.
type EngineCapabilities struct {
	Engine       i915.EngineClassInstance `json:"engine" yaml:"engine"`
	Capabilities uint64                   `json:"capabilities" yaml:"capabilities"`
}

// TranslateToEngineCaps converts a DRM_I915_QUERY_ENGINE_INFO response into
// engines in kernel order.
func TranslateToEngineCaps(blob []byte) ([]EngineCapabilities, error) {
	infos, err := i915.ParseEngineInfo(blob)
	if err != nil {
		return nil, malformed("engine info", err)
	}
	engines := make([]EngineCapabilities, len(infos))
	for i, info := range infos {
		engines[i] = EngineCapabilities{
			Engine:       info.Engine,
			Capabilities: info.Capabilities,
		}
	}
	return engines, nil
}

// EngineType is the logical engine a context submits to.
type EngineType int

// Engine types.
const (
	EngineRCS EngineType = iota
	EngineBCS
	EngineBCS1
	EngineBCS2
	EngineBCS3
	EngineBCS4
	EngineBCS5
	EngineBCS6
	EngineBCS7
	EngineBCS8
	EngineVCS
	EngineVECS
	EngineCCS
	EngineCCS1
	EngineCCS2
	EngineCCS3
	EngineCCCS
	numEngineTypes
)

var engineTypeNames = [numEngineTypes]string{
	EngineRCS:  "rcs",
	EngineBCS:  "bcs",
	EngineBCS1: "bcs1",
	EngineBCS2: "bcs2",
	EngineBCS3: "bcs3",
	EngineBCS4: "bcs4",
	EngineBCS5: "bcs5",
	EngineBCS6: "bcs6",
	EngineBCS7: "bcs7",
	EngineBCS8: "bcs8",
	EngineVCS:  "vcs",
	EngineVECS: "vecs",
	EngineCCS:  "ccs",
	EngineCCS1: "ccs1",
	EngineCCS2: "ccs2",
	EngineCCS3: "ccs3",
	EngineCCCS: "cccs",
}

// String implements fmt.Stringer.
func (t EngineType) String() string {
	if t >= 0 && t < numEngineTypes {
		return engineTypeNames[t]
	}
	return fmt.Sprintf("engine(%d)", int(t))
}

// ParseEngineType parses the String form of an EngineType.
func ParseEngineType(s string) (EngineType, error) {
	for t, name := range engineTypeNames {
		if name == s {
			return EngineType(t), nil
		}
	}
	return 0, fmt.Errorf("unknown engine type %q", s)
}

// AllEngineTypes returns every engine type in declaration order.
func AllEngineTypes() []EngineType {
	types := make([]EngineType, numEngineTypes)
	for i := range types {
		types[i] = EngineType(i)
	}
	return types
}

// LegacyExecFlag returns the execbuffer ring selector used when a context
// has no engine map.
func (t EngineType) LegacyExecFlag() uint64 {
	switch {
	case t == EngineRCS || t == EngineCCCS || (t >= EngineCCS && t <= EngineCCS3):
		return i915.I915_EXEC_RENDER
	case t >= EngineBCS && t <= EngineBCS8:
		return i915.I915_EXEC_BLT
	case t == EngineVCS:
		return i915.I915_EXEC_BSD
	case t == EngineVECS:
		return i915.I915_EXEC_VEBOX
	default:
		return i915.I915_EXEC_DEFAULT
	}
}

// engineTypesFor returns the logical engine types served by the rank-th
// engine of class on a tile. Compute and copy engines are numbered per tile,
// since kernels number instances across the whole device.
func engineTypesFor(class uint16, rank int) []EngineType {
	switch class {
	case i915.I915_ENGINE_CLASS_RENDER:
		if rank == 0 {
			return []EngineType{EngineRCS, EngineCCCS}
		}
	case i915.I915_ENGINE_CLASS_COPY:
		if rank <= 8 {
			return []EngineType{EngineBCS + EngineType(rank)}
		}
	case i915.I915_ENGINE_CLASS_VIDEO:
		if rank == 0 {
			return []EngineType{EngineVCS}
		}
	case i915.I915_ENGINE_CLASS_VIDEO_ENHANCE:
		if rank == 0 {
			return []EngineType{EngineVECS}
		}
	case i915.I915_ENGINE_CLASS_COMPUTE:
		if rank <= 3 {
			return []EngineType{EngineCCS + EngineType(rank)}
		}
	}
	return nil
}

// EngineInfo is the engine layout of a device. It is immutable.
type EngineInfo struct {
	engines    []EngineCapabilities
	tileCount  int
	tiles      []map[EngineType]i915.EngineClassInstance
	engineTile map[i915.EngineClassInstance]int
}

// NewEngineInfo returns an EngineInfo with every engine on tile 0.
func NewEngineInfo(engines []EngineCapabilities) *EngineInfo {
	ei := &EngineInfo{
		engines:    append([]EngineCapabilities(nil), engines...),
		tiles:      []map[EngineType]i915.EngineClassInstance{{}},
		engineTile: make(map[i915.EngineClassInstance]int),
	}
	for _, e := range ei.engines {
		ei.mapEngine(0, e.Engine)
	}
	return ei
}

// newMultiTileEngineInfo returns an EngineInfo with engines placed on tiles
// by distance. Engines without a reported distance are on no tile.
func newMultiTileEngineInfo(engines []EngineCapabilities, tileCount int, infos []DistanceInfo) *EngineInfo {
	ei := &EngineInfo{
		engines:    append([]EngineCapabilities(nil), engines...),
		tileCount:  tileCount,
		tiles:      make([]map[EngineType]i915.EngineClassInstance, tileCount),
		engineTile: make(map[i915.EngineClassInstance]int),
	}
	for t := range ei.tiles {
		ei.tiles[t] = make(map[EngineType]i915.EngineClassInstance)
	}
	homes := engineHomeTiles(infos)
	for _, e := range ei.engines {
		if t, ok := homes[e.Engine]; ok && t < tileCount {
			ei.mapEngine(t, e.Engine)
		}
	}
	return ei
}

// mapEngine places e on tile. Engines must be mapped in kernel order.
func (ei *EngineInfo) mapEngine(tile int, e i915.EngineClassInstance) {
	rank := ei.NumEngines(tile, e.EngineClass)
	ei.engineTile[e] = tile
	for _, t := range engineTypesFor(e.EngineClass, rank) {
		ei.tiles[tile][t] = e
	}
}

// Engines returns the engines in kernel order.
func (ei *EngineInfo) Engines() []EngineCapabilities {
	return append([]EngineCapabilities(nil), ei.engines...)
}

// TileCount returns the number of tiles distances were resolved for, or 0
// if the device has no tile information.
func (ei *EngineInfo) TileCount() int {
	return ei.tileCount
}

// TileMask returns a mask with one bit per tile.
func (ei *EngineInfo) TileMask() uint32 {
	if ei.tileCount >= 32 {
		return ^uint32(0)
	}
	return 1<<ei.tileCount - 1
}

// EngineInstance returns the kernel engine serving engine type t on tile.
func (ei *EngineInfo) EngineInstance(tile int, t EngineType) (i915.EngineClassInstance, bool) {
	if tile < 0 || tile >= len(ei.tiles) {
		return i915.EngineClassInstance{}, false
	}
	e, ok := ei.tiles[tile][t]
	return e, ok
}

// EngineTileIndex returns the tile a kernel engine belongs to.
func (ei *EngineInfo) EngineTileIndex(e i915.EngineClassInstance) (int, bool) {
	t, ok := ei.engineTile[e]
	return t, ok
}

// EngineTypes returns the engine types available on tile, in declaration
// order.
func (ei *EngineInfo) EngineTypes(tile int) []EngineType {
	var types []EngineType
	for _, t := range AllEngineTypes() {
		if _, ok := ei.EngineInstance(tile, t); ok {
			types = append(types, t)
		}
	}
	return types
}

// NumEngines returns the number of engines of class on tile.
func (ei *EngineInfo) NumEngines(tile int, class uint16) int {
	n := 0
	for e, t := range ei.engineTile {
		if t == tile && e.EngineClass == class {
			n++
		}
	}
	return n
}

// CCSCount returns the number of compute engines on tile 0.
func (ei *EngineInfo) CCSCount() int {
	return ei.NumEngines(0, i915.I915_ENGINE_CLASS_COMPUTE)
}

// DefaultEngine returns the engine a tile's topology is queried through:
// the first compute engine, else the render engine.
func (ei *EngineInfo) DefaultEngine(tile int) (i915.EngineClassInstance, bool) {
	if e, ok := ei.EngineInstance(tile, EngineCCS); ok {
		return e, true
	}
	return ei.EngineInstance(tile, EngineRCS)
}

// distanceQuerier is the dialect-specific part of engine discovery.
type distanceQuerier interface {
	QueryDistances(infos []DistanceInfo) error
}

// createEngineInfo queries engines with queryID and resolves tiles.
func createEngineInfo(f drm.File, d distanceQuerier, queryID uint64, mem *MemoryInfo, sysman bool) (*EngineInfo, *MemoryInfo, error) {
	blob := drm.Query(f, queryID, 0)
	if len(blob) == 0 {
		log.Infof("Kernel reports no engines")
		return nil, mem, nil
	}
	engines, err := TranslateToEngineCaps(blob)
	if err != nil {
		return nil, mem, err
	}
	if mem == nil {
		return NewEngineInfo(engines), nil, nil
	}

	tileCount, infos := ResolveDistances(engines, mem.Regions(), sysman)
	if tileCount == 0 {
		return NewEngineInfo(engines), mem, nil
	}
	if err := d.QueryDistances(infos); err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return nil, mem, err
		}
		log.Warningf("Distance query failed: %v", err)
		return nil, mem, nil
	}
	if distancesUnsupported(infos) {
		if tileCount != 1 {
			return nil, mem, fmt.Errorf("%w: %d local memory regions", ErrMultiTileWithoutDistance, tileCount)
		}
		log.Debugf("Distance query unsupported, assuming a single tile")
		return NewEngineInfo(engines), mem, nil
	}
	log.Debugf("Resolved %d engines across %d tiles", len(engines), tileCount)
	return newMultiTileEngineInfo(engines, tileCount, infos), mem.AssignRegionsFromDistances(infos), nil
}
