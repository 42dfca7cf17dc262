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
	"context"
	"errors"
	"fmt"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
	"gvisor.dev/gpudrm/pkg/log"
)

// Kind is the OS driver model a Backend speaks.
type Kind int

// Backend kinds.
const (
	KindDRM Kind = iota
	KindWDDM
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindDRM:
		return "drm"
	case KindWDDM:
		return "wddm"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Backend is the OS-specific source of a device's description. The set of
// backends is closed: DRMBackend and WDDMBackend.
type Backend interface {
	// Kind returns the driver model.
	Kind() Kind

	// Close releases the OS handle.
	Close() error

	// discover describes the device. It is called exactly once.
	discover(ctx context.Context, opts Options) (*discovery, error)
}

// discovery is the result of device bring-up. It is never modified after
// discover returns.
type discovery struct {
	hw       HardwareInfo
	mem      *ioctlhelper.MemoryInfo
	engines  *ioctlhelper.EngineInfo
	topology ioctlhelper.TopologyMap
}

// DRMBackend describes a device through a Linux DRM render node.
type DRMBackend struct {
	file   drm.File
	helper ioctlhelper.Helper
}

var _ Backend = (*DRMBackend)(nil)

// NewDRMBackend returns a backend driving f. It takes ownership of f.
func NewDRMBackend(f drm.File, opts ioctlhelper.Options) (*DRMBackend, error) {
	h, err := ioctlhelper.New(f, opts)
	if err != nil {
		return nil, err
	}
	return &DRMBackend{file: f, helper: h}, nil
}

// Kind implements Backend.Kind.
func (b *DRMBackend) Kind() Kind {
	return KindDRM
}

// Helper returns the kernel dialect of the device.
func (b *DRMBackend) Helper() ioctlhelper.Helper {
	return b.helper
}

// Close implements Backend.Close.
func (b *DRMBackend) Close() error {
	return b.file.Close()
}

// discover implements Backend.discover.
//
// Discovery runs memory, then engines, then topology, since engine
// discovery resolves tiles through memory regions and per-tile topology is
// queried through each tile's engines.
func (b *DRMBackend) discover(ctx context.Context, opts Options) (*discovery, error) {
	platform, err := b.platform()
	if err != nil {
		return nil, err
	}

	mem, err := b.helper.CreateMemoryInfo()
	if err != nil {
		return nil, fmt.Errorf("querying memory regions: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	engines, mem, err := b.helper.CreateEngineInfo(mem, opts.Sysman)
	if err != nil {
		return nil, fmt.Errorf("querying engines: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, topology, err := b.topology(engines)
	if err != nil {
		return nil, err
	}

	hw := HardwareInfo{
		Platform:     platform,
		Capabilities: b.helper.Capabilities(),
	}
	hw.GTSystemInfo.applyTopology(data)
	hw.GTSystemInfo.CCSCount = platform.Product.DefaultCCSCount
	if engines != nil {
		hw.GTSystemInfo.CCSCount = engines.CCSCount()
	}
	hw.GTSystemInfo.MultiTile = multiTileInfo(engines)
	if tiles := hw.GTSystemInfo.MultiTile.TileCount; tiles > platform.Product.MaxTiles && platform.Product.Family != FamilyUnknown {
		log.Warningf("%s reports %d tiles, product has at most %d", platform.Product.Name, tiles, platform.Product.MaxTiles)
	}
	if freq, err := b.helper.GetParam(i915.I915_PARAM_CS_TIMESTAMP_FREQUENCY); err == nil && freq > 0 {
		hw.TimestampFrequency = uint64(freq)
	}
	if mem != nil {
		hw.LocalMemorySize = mem.TotalLocalSize()
	}
	return &discovery{hw: hw, mem: mem, engines: engines, topology: topology}, nil
}

// platform identifies the device from its chipset id.
func (b *DRMBackend) platform() (Platform, error) {
	id, err := b.helper.GetParam(i915.I915_PARAM_CHIPSET_ID)
	if err != nil {
		return Platform{}, fmt.Errorf("reading device id: %w", err)
	}
	p := Platform{DeviceID: uint16(id)}
	if rev, err := b.helper.GetParam(i915.I915_PARAM_REVISION); err == nil {
		p.RevisionID = uint16(rev)
	}
	product, ok := LookupProduct(p.DeviceID)
	if !ok {
		log.Infof("Unknown device id %#04x", p.DeviceID)
		product = unknownProduct(p.DeviceID)
	}
	p.Product = product
	return p, nil
}

// topology queries the compute topology, falling back to the sub-slice and
// EU totals when the kernel has no topology query.
func (b *DRMBackend) topology(engines *ioctlhelper.EngineInfo) (ioctlhelper.TopologyData, ioctlhelper.TopologyMap, error) {
	data, topology, err := b.helper.GetTopologyDataAndMap(engines)
	if err == nil {
		return data, topology, nil
	}
	if errors.Is(err, ioctlhelper.ErrMalformedResponse) {
		return ioctlhelper.TopologyData{}, nil, fmt.Errorf("querying topology: %w", err)
	}
	log.Infof("Topology query unusable (%v), using %s and %s", err,
		i915.ParamName(i915.I915_PARAM_SUBSLICE_TOTAL), i915.ParamName(i915.I915_PARAM_EU_TOTAL))

	subslices, err := b.helper.GetParam(i915.I915_PARAM_SUBSLICE_TOTAL)
	if err != nil || subslices <= 0 {
		return ioctlhelper.TopologyData{}, nil, fmt.Errorf("reading sub-slice total: %w", ioctlhelper.ErrNoTopology)
	}
	eus, err := b.helper.GetParam(i915.I915_PARAM_EU_TOTAL)
	if err != nil || eus <= 0 {
		return ioctlhelper.TopologyData{}, nil, fmt.Errorf("reading EU total: %w", ioctlhelper.ErrNoTopology)
	}
	data = ioctlhelper.TopologyData{
		SliceCount:       1,
		SubSliceCount:    int(subslices),
		EUCount:          int(eus),
		MaxSliceCount:    1,
		MaxSubSliceCount: int(subslices),
		MaxEUPerSubSlice: int((eus + subslices - 1) / subslices),
	}
	return data, ioctlhelper.TopologyMap{}, nil
}
