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

package gpu

import (
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
)

// Platform identifies a device.
type Platform struct {
	DeviceID   uint16  `json:"deviceId" yaml:"deviceId"`
	RevisionID uint16  `json:"revisionId" yaml:"revisionId"`
	Product    Product `json:"product" yaml:"product"`
}

// MultiTileArchInfo describes the tiles of a device. IsValid is false for
// devices without tile information.
type MultiTileArchInfo struct {
	IsValid   bool   `json:"isValid" yaml:"isValid"`
	TileCount int    `json:"tileCount" yaml:"tileCount"`
	TileMask  uint32 `json:"tileMask" yaml:"tileMask"`
}

// GTSystemInfo are the compute resource counts of a device.
type GTSystemInfo struct {
	SliceCount       int `json:"sliceCount" yaml:"sliceCount"`
	SubSliceCount    int `json:"subSliceCount" yaml:"subSliceCount"`
	EUCount          int `json:"euCount" yaml:"euCount"`
	MaxSliceCount    int `json:"maxSliceCount" yaml:"maxSliceCount"`
	MaxSubSliceCount int `json:"maxSubSliceCount" yaml:"maxSubSliceCount"`
	MaxEUPerSubSlice int `json:"maxEuPerSubSlice" yaml:"maxEuPerSubSlice"`
	CCSCount         int `json:"ccsCount" yaml:"ccsCount"`

	MultiTile MultiTileArchInfo `json:"multiTile" yaml:"multiTile"`
}

// HardwareInfo is the discovered description of a device.
type HardwareInfo struct {
	Platform     Platform                 `json:"platform" yaml:"platform"`
	GTSystemInfo GTSystemInfo             `json:"gtSystemInfo" yaml:"gtSystemInfo"`
	Capabilities ioctlhelper.Capabilities `json:"capabilities" yaml:"capabilities"`

	// TimestampFrequency is the command streamer timestamp frequency in Hz,
	// or 0 if unknown.
	TimestampFrequency uint64 `json:"timestampFrequency" yaml:"timestampFrequency"`

	// LocalMemorySize is the total size of device-local memory.
	LocalMemorySize uint64 `json:"localMemorySize" yaml:"localMemorySize"`
}

// applyTopology copies topology counts into the system info.
func (g *GTSystemInfo) applyTopology(data ioctlhelper.TopologyData) {
	g.SliceCount = data.SliceCount
	g.SubSliceCount = data.SubSliceCount
	g.EUCount = data.EUCount
	g.MaxSliceCount = data.MaxSliceCount
	g.MaxSubSliceCount = data.MaxSubSliceCount
	g.MaxEUPerSubSlice = data.MaxEUPerSubSlice
}

// multiTileInfo returns the tile description of engines. engines may be
// nil.
func multiTileInfo(engines *ioctlhelper.EngineInfo) MultiTileArchInfo {
	if engines == nil || engines.TileCount() == 0 {
		return MultiTileArchInfo{}
	}
	return MultiTileArchInfo{
		IsValid:   true,
		TileCount: engines.TileCount(),
		TileMask:  engines.TileMask(),
	}
}
