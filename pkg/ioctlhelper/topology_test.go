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
	"github.com/google/go-cmp/cmp/cmpopts"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm/drmtest"
)

func TestTranslateTopologyInfo(t *testing.T) {
	for _, tc := range []struct {
		name        string
		builder     *drmtest.TopologyBuilder
		wantData    TopologyData
		wantMapping TopologyMapping
		wantOK      bool
	}{
		{
			name:    "sparse single slice",
			builder: drmtest.NewTopologyBuilder(4, 4, 8).EnableEUs(3, 1, 8).EnableEUs(3, 2, 8),
			wantData: TopologyData{
				SliceCount:       1,
				SubSliceCount:    2,
				EUCount:          16,
				MaxSliceCount:    4,
				MaxSubSliceCount: 3,
			},
			wantMapping: TopologyMapping{SliceIndices: []int{3}, SubsliceIndices: []int{1, 2}},
			wantOK:      true,
		},
		{
			name:    "two slices",
			builder: drmtest.NewTopologyBuilder(2, 2, 8).EnableEUs(0, 0, 4).EnableEUs(1, 1, 4),
			wantData: TopologyData{
				SliceCount:       2,
				SubSliceCount:    2,
				EUCount:          8,
				MaxSliceCount:    2,
				MaxSubSliceCount: 2,
			},
			wantMapping: TopologyMapping{SliceIndices: []int{0, 1}},
			wantOK:      true,
		},
		{
			name:    "no EUs",
			builder: drmtest.NewTopologyBuilder(1, 2, 8).EnableSubslice(0, 0),
			wantData: TopologyData{
				SliceCount:       1,
				SubSliceCount:    1,
				MaxSliceCount:    1,
				MaxSubSliceCount: 1,
			},
			wantMapping: TopologyMapping{SliceIndices: []int{0}, SubsliceIndices: []int{0}},
		},
		{
			name:    "empty",
			builder: drmtest.NewTopologyBuilder(1, 2, 8),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			data, mapping, ok := TranslateTopologyInfo(tc.builder.Info())
			if ok != tc.wantOK {
				t.Errorf("ok = %t, want %t", ok, tc.wantOK)
			}
			if diff := cmp.Diff(tc.wantData, data); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantMapping, mapping, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("mapping mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTranslateTopologyInfoCounts(t *testing.T) {
	b := drmtest.NewTopologyBuilder(2, 8, 16)
	for ss := 0; ss < 6; ss++ {
		b.EnableEUs(1, ss, 16)
	}
	data, _, ok := TranslateTopologyInfo(b.Info())
	if !ok {
		t.Fatalf("TranslateTopologyInfo reported no topology")
	}
	if data.SubSliceCount > data.SliceCount*data.MaxSubSliceCount {
		t.Errorf("%d sub-slices exceed %d slices of %d", data.SubSliceCount, data.SliceCount, data.MaxSubSliceCount)
	}
	if data.EUCount != 6*16 {
		t.Errorf("EUCount = %d, want %d", data.EUCount, 6*16)
	}
}

func TestUpstreamTopology(t *testing.T) {
	f := drmtest.NewFake()
	f.SetQuery(i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0, drmtest.NewTopologyBuilder(1, 4, 8).EnableEUs(0, 0, 8).EnableEUs(0, 1, 8).Bytes())
	h := newHelper(t, f, VariantUpstream, DebuggingDisabled)

	data, topology, err := h.GetTopologyDataAndMap(nil)
	if err != nil {
		t.Fatalf("GetTopologyDataAndMap failed: %v", err)
	}
	wantData := TopologyData{
		SliceCount:       1,
		SubSliceCount:    2,
		EUCount:          16,
		MaxSliceCount:    1,
		MaxSubSliceCount: 2,
		MaxEUPerSubSlice: 8,
	}
	if diff := cmp.Diff(wantData, data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	wantMap := TopologyMap{0: {SliceIndices: []int{0}, SubsliceIndices: []int{0, 1}}}
	if diff := cmp.Diff(wantMap, topology); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
}

func TestTopologyErrors(t *testing.T) {
	// A header describing 64 slices with no mask bytes behind it.
	truncated := make([]byte, i915.SizeofTopologyInfoHeader)
	truncated[2] = 64

	for _, tc := range []struct {
		name  string
		blob  []byte
		wants []error
	}{
		{
			name:  "unsupported",
			wants: []error{ErrNoTopology},
		},
		{
			name:  "nothing enabled",
			blob:  drmtest.NewTopologyBuilder(1, 1, 8).Bytes(),
			wants: []error{ErrNoTopology},
		},
		{
			name:  "truncated",
			blob:  truncated,
			wants: []error{ErrMalformedResponse, i915.ErrMalformed},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := drmtest.NewFake()
			if tc.blob != nil {
				f.SetQuery(i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0, tc.blob)
			}
			h := newHelper(t, f, VariantUpstream, DebuggingDisabled)
			_, _, err := h.GetTopologyDataAndMap(nil)
			for _, want := range tc.wants {
				if !errors.Is(err, want) {
					t.Errorf("GetTopologyDataAndMap error = %v, want %v", err, want)
				}
			}
		})
	}
}

func newTwoTileHelper(t *testing.T, f *drmtest.Fake) (Helper, *EngineInfo) {
	t.Helper()
	scriptTwoTiles(f)
	h := newHelper(t, f, VariantPrelim, DebuggingDisabled)
	mem, err := h.CreateMemoryInfo()
	if err != nil {
		t.Fatalf("CreateMemoryInfo failed: %v", err)
	}
	engines, _, err := h.CreateEngineInfo(mem, false)
	if err != nil {
		t.Fatalf("CreateEngineInfo failed: %v", err)
	}
	if got := engines.TileCount(); got != 2 {
		t.Fatalf("TileCount() = %d, want 2", got)
	}
	return h, engines
}

func TestPrelimPerTileTopology(t *testing.T) {
	f := drmtest.NewFake()
	f.SetQuery(i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, i915.ComputeSlicesFlags(ccs0),
		drmtest.NewTopologyBuilder(2, 4, 8).EnableEUs(0, 0, 8).EnableEUs(0, 1, 8).EnableEUs(0, 2, 8).Bytes())
	f.SetQuery(i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, i915.ComputeSlicesFlags(ccs1),
		drmtest.NewTopologyBuilder(2, 4, 16).EnableEUs(1, 0, 8).EnableEUs(1, 1, 8).Bytes())
	h, engines := newTwoTileHelper(t, f)

	data, topology, err := h.GetTopologyDataAndMap(engines)
	if err != nil {
		t.Fatalf("GetTopologyDataAndMap failed: %v", err)
	}
	wantData := TopologyData{
		SliceCount:       1,
		SubSliceCount:    2,
		EUCount:          16,
		MaxSliceCount:    2,
		MaxSubSliceCount: 3,
		MaxEUPerSubSlice: 16,
	}
	if diff := cmp.Diff(wantData, data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	wantMap := TopologyMap{
		0: {SliceIndices: []int{0}, SubsliceIndices: []int{0, 1, 2}},
		1: {SliceIndices: []int{1}, SubsliceIndices: []int{0, 1}},
	}
	if diff := cmp.Diff(wantMap, topology); diff != "" {
		t.Errorf("map mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 1}, topology.Tiles()); diff != "" {
		t.Errorf("Tiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestPrelimTopologyFallback(t *testing.T) {
	f := drmtest.NewFake()
	f.SetQuery(i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0, drmtest.NewTopologyBuilder(1, 2, 8).EnableEUs(0, 0, 8).Bytes())
	h, engines := newTwoTileHelper(t, f)

	data, topology, err := h.GetTopologyDataAndMap(engines)
	if err != nil {
		t.Fatalf("GetTopologyDataAndMap failed: %v", err)
	}
	if data.EUCount != 8 {
		t.Errorf("EUCount = %d, want 8", data.EUCount)
	}
	if diff := cmp.Diff([]int{0}, topology.Tiles()); diff != "" {
		t.Errorf("Tiles() mismatch (-want +got):\n%s", diff)
	}
}

func TestPrelimTopologyMalformed(t *testing.T) {
	f := drmtest.NewFake()
	truncated := make([]byte, i915.SizeofTopologyInfoHeader)
	truncated[2] = 64
	f.SetQuery(i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, i915.ComputeSlicesFlags(ccs0), truncated)
	f.SetQuery(i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0, drmtest.NewTopologyBuilder(1, 2, 8).EnableEUs(0, 0, 8).Bytes())
	h, engines := newTwoTileHelper(t, f)

	if _, _, err := h.GetTopologyDataAndMap(engines); !errors.Is(err, ErrMalformedResponse) {
		t.Errorf("GetTopologyDataAndMap error = %v, want %v", err, ErrMalformedResponse)
	}
}
