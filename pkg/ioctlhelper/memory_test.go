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
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm/drmtest"
)

func TestTranslateToMemoryRegions(t *testing.T) {
	in := []i915.MemoryRegionInfo{
		region(system0, 32<<30),
		region(local0, 0),
		region(local1, 8<<30),
	}
	got, err := TranslateToMemoryRegions(i915.EncodeMemoryRegions(in))
	if err != nil {
		t.Fatalf("TranslateToMemoryRegions failed: %v", err)
	}
	want := []MemoryRegion{
		{Region: system0, ProbedSize: 32 << 30, UnallocatedSize: 32 << 30},
		{Region: local0},
		{Region: local1, ProbedSize: 8 << 30, UnallocatedSize: 8 << 30},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("regions mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateToMemoryRegionsTruncated(t *testing.T) {
	blob := i915.EncodeMemoryRegions([]i915.MemoryRegionInfo{region(system0, 1<<30), region(local0, 1<<30)})
	_, err := TranslateToMemoryRegions(blob[:len(blob)-8])
	if !errors.Is(err, ErrMalformedResponse) || !errors.Is(err, i915.ErrMalformed) {
		t.Errorf("TranslateToMemoryRegions error = %v, want %v", err, ErrMalformedResponse)
	}
}

func TestMemoryInfo(t *testing.T) {
	m := NewMemoryInfo([]MemoryRegion{
		{Region: system0, ProbedSize: 64 << 30},
		{Region: local0, ProbedSize: 16 << 30},
		{Region: local1, ProbedSize: 8 << 30},
	})

	sys, ok := m.SystemRegion()
	if !ok || sys.Region != system0 || sys.TileMask != 0 {
		t.Errorf("SystemRegion() = %+v, %t, want %v with no tiles", sys, ok, system0)
	}
	if got := m.LocalRegionCount(); got != 2 {
		t.Errorf("LocalRegionCount() = %d, want 2", got)
	}
	wantLocal := []MemoryRegion{
		{Region: local0, ProbedSize: 16 << 30, TileMask: 1},
		{Region: local1, ProbedSize: 8 << 30, TileMask: 2},
	}
	if diff := cmp.Diff(wantLocal, m.LocalRegions()); diff != "" {
		t.Errorf("LocalRegions() mismatch (-want +got):\n%s", diff)
	}
	if got := m.TotalLocalSize(); got != 24<<30 {
		t.Errorf("TotalLocalSize() = %d, want %d", got, uint64(24<<30))
	}
	if r, ok := m.RegionForTile(1); !ok || r.Region != local1 {
		t.Errorf("RegionForTile(1) = %+v, %t, want %v", r, ok, local1)
	}
	if _, ok := m.RegionForTile(2); ok {
		t.Errorf("RegionForTile(2) found a region")
	}
	for _, tc := range []struct {
		banks uint32
		want  []i915.MemoryClassInstance
	}{
		{banks: 0b01, want: []i915.MemoryClassInstance{local0}},
		{banks: 0b10, want: []i915.MemoryClassInstance{local1}},
		{banks: 0b11, want: []i915.MemoryClassInstance{local0, local1}},
		{banks: 0b100},
	} {
		if diff := cmp.Diff(tc.want, m.RegionsForBanks(tc.banks)); diff != "" {
			t.Errorf("RegionsForBanks(%#b) mismatch (-want +got):\n%s", tc.banks, diff)
		}
	}
}

func TestMemoryInfoSystemOnly(t *testing.T) {
	m := NewMemoryInfo([]MemoryRegion{{Region: system0, ProbedSize: 1 << 30}})
	if got := m.LocalRegionCount(); got != 0 {
		t.Errorf("LocalRegionCount() = %d, want 0", got)
	}
	if got := m.RegionsForBanks(1); len(got) != 0 {
		t.Errorf("RegionsForBanks(1) = %v, want none", got)
	}
}

func TestAssignRegionsFromDistances(t *testing.T) {
	m := NewMemoryInfo([]MemoryRegion{{Region: system0}, {Region: local0}, {Region: local1}})
	infos := []DistanceInfo{
		{Region: local0, Engine: ccs0, Distance: 0},
		{Region: local0, Engine: ccs1, Err: unix.EINVAL},
		{Region: local1, Engine: ccs0, Err: unix.EINVAL},
		{Region: local1, Engine: ccs1, Err: unix.EINVAL},
	}
	got := m.AssignRegionsFromDistances(infos)

	if r, ok := got.RegionForTile(0); !ok || r.Region != local0 || r.TileMask != 1 {
		t.Errorf("RegionForTile(0) = %+v, %t, want %v on tile 0", r, ok, local0)
	}
	if r, ok := got.RegionForTile(1); ok {
		t.Errorf("RegionForTile(1) = %+v, want none", r)
	}
	if got.Regions()[2].TileMask != 0 {
		t.Errorf("unreached region has tile mask %#x", got.Regions()[2].TileMask)
	}
	// The receiver keeps its own assignment.
	if r, ok := m.RegionForTile(1); !ok || r.Region != local1 {
		t.Errorf("original RegionForTile(1) = %+v, %t, want %v", r, ok, local1)
	}
}

func TestAssignRegionsSharedRegion(t *testing.T) {
	m := NewMemoryInfo([]MemoryRegion{{Region: system0}, {Region: local0}, {Region: local1}})
	// Both tiles' engines are nearest to their own region, and tile 1's
	// engine reaches local0 as closely as tile 0's.
	infos := []DistanceInfo{
		{Region: local0, Engine: ccs0, Distance: 10},
		{Region: local0, Engine: ccs1, Distance: 10},
		{Region: local1, Engine: ccs0, Distance: 50},
		{Region: local1, Engine: ccs1, Distance: 0},
	}
	got := m.AssignRegionsFromDistances(infos)
	want := []uint32{0, 0b11, 0b10}
	for i, r := range got.Regions() {
		if r.TileMask != want[i] {
			t.Errorf("region %v tile mask = %#b, want %#b", r.Region, r.TileMask, want[i])
		}
	}
	if r, ok := got.RegionForTile(1); !ok || r.Region != local0 {
		t.Errorf("RegionForTile(1) = %+v, %t, want first reachable region %v", r, ok, local0)
	}
}

func TestCreateMemoryInfo(t *testing.T) {
	f := drmtest.NewFake()
	h := newHelper(t, f, VariantUpstream, DebuggingDisabled)
	m, err := h.CreateMemoryInfo()
	if err != nil || m != nil {
		t.Errorf("CreateMemoryInfo() = %v, %v on a kernel without regions, want nil, nil", m, err)
	}

	scriptRegions(f, region(system0, 4<<30), region(local0, 0))
	m, err = h.CreateMemoryInfo()
	if err != nil {
		t.Fatalf("CreateMemoryInfo failed: %v", err)
	}
	if got := len(m.Regions()); got != 2 {
		t.Errorf("got %d regions, want 2", got)
	}
}
