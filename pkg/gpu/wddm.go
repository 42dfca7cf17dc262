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
	"fmt"

	"gvisor.dev/gpudrm/pkg/ioctlhelper"
)

// AdapterInfo is the adapter description a Windows kernel-mode driver
// reports. Unlike DRM, the driver reports compute counts directly.
type AdapterInfo struct {
	DeviceID           uint16
	RevisionID         uint16
	GTSystemInfo       GTSystemInfo
	Engines            []ioctlhelper.EngineCapabilities
	Regions            []ioctlhelper.MemoryRegion
	Capabilities       ioctlhelper.Capabilities
	TimestampFrequency uint64
}

// AdapterInfoSource queries a Windows adapter. The D3DKMT implementation is
// supplied by the Windows build; this package only consumes it.
type AdapterInfoSource interface {
	// AdapterInfo returns the adapter description.
	AdapterInfo(ctx context.Context) (AdapterInfo, error)

	// Close releases the adapter.
	Close() error
}

// WDDMBackend describes a device through a Windows display driver adapter.
type WDDMBackend struct {
	src AdapterInfoSource
}

var _ Backend = (*WDDMBackend)(nil)

// NewWDDMBackend returns a backend reading src. It takes ownership of src.
func NewWDDMBackend(src AdapterInfoSource) *WDDMBackend {
	return &WDDMBackend{src: src}
}

// Kind implements Backend.Kind.
func (b *WDDMBackend) Kind() Kind {
	return KindWDDM
}

// Close implements Backend.Close.
func (b *WDDMBackend) Close() error {
	return b.src.Close()
}

// discover implements Backend.discover.
func (b *WDDMBackend) discover(ctx context.Context, _ Options) (*discovery, error) {
	info, err := b.src.AdapterInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("querying adapter: %w", err)
	}
	if info.GTSystemInfo.EUCount == 0 {
		return nil, fmt.Errorf("adapter %#04x: %w", info.DeviceID, ioctlhelper.ErrNoTopology)
	}

	product, ok := LookupProduct(info.DeviceID)
	if !ok {
		product = unknownProduct(info.DeviceID)
	}
	d := &discovery{
		hw: HardwareInfo{
			Platform: Platform{
				DeviceID:   info.DeviceID,
				RevisionID: info.RevisionID,
				Product:    product,
			},
			GTSystemInfo:       info.GTSystemInfo,
			Capabilities:       info.Capabilities,
			TimestampFrequency: info.TimestampFrequency,
		},
		topology: ioctlhelper.TopologyMap{},
	}
	if len(info.Regions) > 0 {
		d.mem = ioctlhelper.NewMemoryInfo(info.Regions)
		d.hw.LocalMemorySize = d.mem.TotalLocalSize()
	}
	if len(info.Engines) > 0 {
		d.engines = ioctlhelper.NewEngineInfo(info.Engines)
		if d.hw.GTSystemInfo.CCSCount == 0 {
			d.hw.GTSystemInfo.CCSCount = d.engines.CCSCount()
		}
	}
	return d, nil
}
