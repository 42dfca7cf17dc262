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

package drm_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/drm/drmtest"
)

func TestQuery(t *testing.T) {
	f := drmtest.NewFake()
	want := drmtest.NewTopologyBuilder(1, 2, 8).EnableEUs(0, 0, 8).Bytes()
	f.SetQuery(i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0, want)

	got := drm.Query(f, i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Query mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"DRM_IOCTL_I915_QUERY", "DRM_IOCTL_I915_QUERY"}, f.Calls()); diff != "" {
		t.Errorf("Query should probe then fill (-want +got):\n%s", diff)
	}
}

func TestQueryFlagsSelectResponse(t *testing.T) {
	f := drmtest.NewFake()
	f.SetQuery(i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, 4, []byte{1, 2, 3})
	if got := drm.Query(f, i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, 0); len(got) != 0 {
		t.Errorf("Query with other flags = %v, want empty", got)
	}
	if got := drm.Query(f, i915.PRELIM_DRM_I915_QUERY_COMPUTE_SLICES, 4); len(got) != 3 {
		t.Errorf("Query = %v, want 3 bytes", got)
	}
}

func TestQueryFailures(t *testing.T) {
	for _, tc := range []struct {
		name  string
		setup func(f *drmtest.Fake)
	}{
		{
			name:  "unsupported query",
			setup: func(f *drmtest.Fake) {},
		},
		{
			name: "ioctl fails",
			setup: func(f *drmtest.Fake) {
				f.SetQuery(i915.DRM_I915_QUERY_ENGINE_INFO, 0, make([]byte, 16))
				f.FailIoctl(i915.DRM_IOCTL_I915_QUERY, unix.ENODEV)
			},
		},
		{
			name: "item error",
			setup: func(f *drmtest.Fake) {
				f.SetQueryItemError(i915.DRM_I915_QUERY_ENGINE_INFO, unix.ENODEV)
			},
		},
		{
			name: "zero length",
			setup: func(f *drmtest.Fake) {
				f.SetQuery(i915.DRM_I915_QUERY_ENGINE_INFO, 0, nil)
			},
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := drmtest.NewFake()
			tc.setup(f)
			if got := drm.Query(f, i915.DRM_I915_QUERY_ENGINE_INFO, 0); len(got) != 0 {
				t.Errorf("Query = %v, want empty", got)
			}
		})
	}
}

// growingFile reports a larger size on every call.
type growingFile struct {
	*drmtest.Fake
	calls int32
}

func (g *growingFile) Query(items []drm.QueryItem) error {
	g.calls++
	for i := range items {
		items[i].Length = 16 * g.calls
	}
	return nil
}

func TestQuerySizeChanges(t *testing.T) {
	g := &growingFile{Fake: drmtest.NewFake()}
	if got := drm.Query(g, i915.DRM_I915_QUERY_MEMORY_REGIONS, 0); len(got) != 0 {
		t.Errorf("Query = %v, want empty", got)
	}
}

func TestQueryItems(t *testing.T) {
	f := drmtest.NewFake()
	compute := i915.EngineClassInstance{EngineClass: i915.I915_ENGINE_CLASS_COMPUTE}
	local0 := i915.MemoryClassInstance{MemoryClass: i915.I915_MEMORY_CLASS_DEVICE}
	local1 := i915.MemoryClassInstance{MemoryClass: i915.I915_MEMORY_CLASS_DEVICE, MemoryInstance: 1}
	f.SetDistance(compute, local0, 0)

	items := make([]drm.QueryItem, 2)
	for i, region := range []i915.MemoryClassInstance{local0, local1} {
		data := i915.EncodeDistanceInfo(i915.DistanceInfo{Engine: compute, Region: region, Distance: 7})
		items[i] = drm.QueryItem{
			QueryID: i915.PRELIM_DRM_I915_QUERY_DISTANCE_INFO,
			Length:  int32(len(data)),
			Data:    data,
		}
	}
	if err := drm.QueryItems(f, items); err != nil {
		t.Fatalf("QueryItems failed: %v", err)
	}
	if err := items[0].Err(); err != nil {
		t.Errorf("item 0 failed: %v", err)
	}
	d, err := i915.ParseDistanceInfo(items[0].Data)
	if err != nil {
		t.Fatalf("ParseDistanceInfo failed: %v", err)
	}
	if d.Distance != 0 {
		t.Errorf("item 0 distance = %d, want 0", d.Distance)
	}
	if err := items[1].Err(); !errors.Is(err, unix.EINVAL) {
		t.Errorf("item 1 error = %v, want EINVAL", err)
	}
}

func TestQueryItemsEmpty(t *testing.T) {
	f := drmtest.NewFake()
	if err := drm.QueryItems(f, nil); err != nil {
		t.Errorf("QueryItems(nil) = %v, want nil", err)
	}
	if calls := f.Calls(); len(calls) != 0 {
		t.Errorf("QueryItems(nil) issued %v", calls)
	}
}
