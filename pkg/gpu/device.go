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

// Package gpu brings up Intel GPUs: it discovers a device's memory, engines,
// tiles and compute topology once, at construction, and publishes the
// result read-only.
package gpu

import (
	"context"
	"fmt"
	"slices"

	"github.com/mohae/deepcopy"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/cleanup"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
	"gvisor.dev/gpudrm/pkg/log"
)

// Options configure device bring-up.
type Options struct {
	// Sysman includes video engines in tile resolution.
	Sysman bool
}

// Device is a discovered GPU. All methods are safe for concurrent use.
type Device struct {
	backend Backend
	disc    *discovery
	report  Report
}

// NewDevice discovers the device behind backend. It takes ownership of
// backend, and closes it if discovery fails.
//
// Malformed kernel responses and multi-tile devices whose tiles cannot be
// resolved fail bring-up. Kernel features that are merely unsupported do
// not.
func NewDevice(ctx context.Context, backend Backend, opts Options) (*Device, error) {
	var cu cleanup.Cleanup
	cu.AddRelease(backend.Kind().String()+" backend", backend.Close)
	defer cu.Clean()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	disc, err := backend.discover(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("%v device bring-up: %w", backend.Kind(), err)
	}
	d := &Device{
		backend: backend,
		disc:    disc,
	}
	d.report = d.buildReport()

	cu.Release()
	gt := disc.hw.GTSystemInfo
	log.Infof("Discovered %s (%#04x rev %d): %d slices, %d sub-slices, %d EUs, %d CCS, %d tiles",
		disc.hw.Platform.Product.Name, disc.hw.Platform.DeviceID, disc.hw.Platform.RevisionID,
		gt.SliceCount, gt.SubSliceCount, gt.EUCount, gt.CCSCount, gt.MultiTile.TileCount)
	return d, nil
}

// Kind returns the driver model of the device.
func (d *Device) Kind() Kind {
	return d.backend.Kind()
}

// HardwareInfo returns the device description.
func (d *Device) HardwareInfo() HardwareInfo {
	return d.disc.hw
}

// MemoryInfo returns the memory layout, or nil if the driver reports none.
func (d *Device) MemoryInfo() *ioctlhelper.MemoryInfo {
	return d.disc.mem
}

// EngineInfo returns the engine layout, or nil if the driver reports none.
func (d *Device) EngineInfo() *ioctlhelper.EngineInfo {
	return d.disc.engines
}

// TopologyMapping returns the slice and sub-slice indices of tile.
func (d *Device) TopologyMapping(tile int) (ioctlhelper.TopologyMapping, bool) {
	m, ok := d.disc.topology[tile]
	if !ok {
		return ioctlhelper.TopologyMapping{}, false
	}
	return ioctlhelper.TopologyMapping{
		SliceIndices:    slices.Clone(m.SliceIndices),
		SubsliceIndices: slices.Clone(m.SubsliceIndices),
	}, true
}

// Tiles returns the tiles with a topology mapping, in order.
func (d *Device) Tiles() []int {
	return d.disc.topology.Tiles()
}

// Helper returns the kernel dialect of a DRM device.
func (d *Device) Helper() (ioctlhelper.Helper, bool) {
	b, ok := d.backend.(*DRMBackend)
	if !ok {
		return nil, false
	}
	return b.Helper(), true
}

// ContextEnv returns the device state context creation depends on.
func (d *Device) ContextEnv() ioctlhelper.ContextEnv {
	return ioctlhelper.ContextEnv{
		Engines: d.disc.engines,
		NumCCS:  d.disc.hw.GTSystemInfo.CCSCount,
	}
}

// CreateContext creates a context for desc on tile, bound to VM vmID if it
// is not zero.
func (d *Device) CreateContext(desc ioctlhelper.ContextDescriptor, vmID, tile uint32) (ioctlhelper.Context, error) {
	h, ok := d.Helper()
	if !ok {
		return ioctlhelper.Context{}, fmt.Errorf("contexts on %v devices: %w", d.Kind(), ioctlhelper.ErrNotSupported)
	}
	return h.CreateDrmContext(d.ContextEnv(), desc, vmID, tile)
}

// Close releases the device.
func (d *Device) Close() error {
	return d.backend.Close()
}

// RegionReport is one memory region in a Report.
type RegionReport struct {
	Class           string `json:"class" yaml:"class"`
	Instance        uint16 `json:"instance" yaml:"instance"`
	ProbedSize      uint64 `json:"probedSize" yaml:"probedSize"`
	UnallocatedSize uint64 `json:"unallocatedSize" yaml:"unallocatedSize"`
	TileMask        uint32 `json:"tileMask" yaml:"tileMask"`
}

// EngineReport is one engine in a Report.
type EngineReport struct {
	Class        string   `json:"class" yaml:"class"`
	Instance     uint16   `json:"instance" yaml:"instance"`
	Tile         int      `json:"tile" yaml:"tile"`
	Types        []string `json:"types,omitempty" yaml:"types,omitempty"`
	Capabilities uint64   `json:"capabilities" yaml:"capabilities"`
}

// Report is a self-contained, serializable description of a device.
type Report struct {
	Backend  Kind                    `json:"backend" yaml:"backend"`
	Hardware HardwareInfo            `json:"hardware" yaml:"hardware"`
	Regions  []RegionReport          `json:"regions" yaml:"regions"`
	Engines  []EngineReport          `json:"engines" yaml:"engines"`
	Topology ioctlhelper.TopologyMap `json:"topology" yaml:"topology"`
}

// Snapshot returns a copy of the device description that the caller owns.
func (d *Device) Snapshot() Report {
	return deepcopy.Copy(d.report).(Report)
}

func (d *Device) buildReport() Report {
	r := Report{
		Backend:  d.backend.Kind(),
		Hardware: d.disc.hw,
		Topology: d.disc.topology,
	}
	if mem := d.disc.mem; mem != nil {
		for _, region := range mem.Regions() {
			r.Regions = append(r.Regions, RegionReport{
				Class:           i915.MemoryClassName(region.Region.MemoryClass),
				Instance:        region.Region.MemoryInstance,
				ProbedSize:      region.ProbedSize,
				UnallocatedSize: region.UnallocatedSize,
				TileMask:        region.TileMask,
			})
		}
	}
	if engines := d.disc.engines; engines != nil {
		tiles := max(engines.TileCount(), 1)
		for _, e := range engines.Engines() {
			er := EngineReport{
				Class:        i915.EngineClassName(e.Engine.EngineClass),
				Instance:     e.Engine.EngineInstance,
				Tile:         -1,
				Capabilities: e.Capabilities,
			}
			if tile, ok := engines.EngineTileIndex(e.Engine); ok {
				er.Tile = tile
			}
			for tile := 0; tile < tiles; tile++ {
				for _, t := range engines.EngineTypes(tile) {
					if inst, _ := engines.EngineInstance(tile, t); inst == e.Engine {
						er.Types = append(er.Types, t.String())
					}
				}
			}
			r.Engines = append(r.Engines, er)
		}
	}
	return r
}
