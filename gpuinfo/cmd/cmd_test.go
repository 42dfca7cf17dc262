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

package cmd

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"text/tabwriter"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"

	"gvisor.dev/gpudrm/gpuinfo/config"
	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm/drmtest"
	"gvisor.dev/gpudrm/pkg/gpu"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
)

// dg2Fake scripts a single-tile discrete device.
func dg2Fake() *drmtest.Fake {
	system0 := i915.MemoryClassInstance{MemoryClass: i915.I915_MEMORY_CLASS_SYSTEM}
	local0 := i915.MemoryClassInstance{MemoryClass: i915.I915_MEMORY_CLASS_DEVICE}
	f := drmtest.NewFake()
	f.SetParam(i915.I915_PARAM_CHIPSET_ID, 0x56a0)
	f.SetQuery(i915.DRM_I915_QUERY_MEMORY_REGIONS, 0, i915.EncodeMemoryRegions([]i915.MemoryRegionInfo{
		{Region: system0, ProbedSize: 32 << 30},
		{Region: local0, ProbedSize: 16 << 30},
	}))
	f.SetQuery(i915.DRM_I915_QUERY_ENGINE_INFO, 0, i915.EncodeEngineInfo([]i915.EngineInfo{
		{Engine: i915.EngineClassInstance{EngineClass: i915.I915_ENGINE_CLASS_RENDER}},
		{Engine: i915.EngineClassInstance{EngineClass: i915.I915_ENGINE_CLASS_COMPUTE}},
	}))
	f.SetQuery(i915.DRM_I915_QUERY_TOPOLOGY_INFO, 0, drmtest.NewTopologyBuilder(1, 4, 16).EnableEUs(0, 0, 16).Bytes())
	return f
}

func newDevice(t *testing.T, f *drmtest.Fake) *gpu.Device {
	t.Helper()
	b, err := gpu.NewDRMBackend(f, ioctlhelper.Options{Variant: ioctlhelper.VariantUpstream})
	if err != nil {
		t.Fatalf("NewDRMBackend failed: %v", err)
	}
	d, err := gpu.NewDevice(context.Background(), b, gpu.Options{})
	if err != nil {
		t.Fatalf("NewDevice failed: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestContextCheck(t *testing.T) {
	f := dg2Fake()
	d := newDevice(t, f)

	c := &Context{vm: true, gemSize: 1 << 20}
	r, err := c.check(d, ioctlhelper.EngineCCS)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if r.VM == 0 || r.GemHandle == 0 || r.Context.ID == 0 {
		t.Errorf("check() = %+v, want a VM, a buffer and a context", r)
	}
	if r.Engine != "ccs" {
		t.Errorf("engine = %q, want ccs", r.Engine)
	}
	if !slices.Contains(f.Calls(), i915.IoctlName(i915.DRM_IOCTL_I915_GEM_CREATE_EXT)) {
		t.Errorf("buffer not placed in local memory, calls: %v", f.Calls())
	}
	if contexts, vms, gems := f.Live(); contexts+vms+gems != 0 {
		t.Errorf("check leaked %d contexts, %d VMs, %d buffers", contexts, vms, gems)
	}
}

func TestContextCheckReleasesOnFailure(t *testing.T) {
	f := dg2Fake()
	d := newDevice(t, f)
	f.FailIoctl(i915.DRM_IOCTL_I915_GEM_CREATE_EXT, unix.ENOMEM)

	c := &Context{vm: true, gemSize: 1 << 20}
	if _, err := c.check(d, ioctlhelper.EngineCCS); !errors.Is(err, unix.ENOMEM) {
		t.Errorf("check error = %v, want %v", err, unix.ENOMEM)
	}
	if contexts, vms, gems := f.Live(); contexts+vms+gems != 0 {
		t.Errorf("check leaked %d contexts, %d VMs, %d buffers", contexts, vms, gems)
	}
}

func TestContextCheckWithoutVM(t *testing.T) {
	f := dg2Fake()
	d := newDevice(t, f)

	r, err := (&Context{}).check(d, ioctlhelper.EngineRCS)
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if r.VM != 0 || r.GemHandle != 0 {
		t.Errorf("check() = %+v, want neither a VM nor a buffer", r)
	}
	if slices.Contains(f.Calls(), i915.IoctlName(i915.DRM_IOCTL_I915_GEM_VM_CREATE)) {
		t.Errorf("VM created without --vm")
	}
}

func TestContextCheckTileOutOfRange(t *testing.T) {
	for _, tile := range []uint{1, 32, 1 << 20} {
		f := dg2Fake()
		d := newDevice(t, f)

		c := &Context{tile: tile, vm: true, gemSize: 4096}
		if _, err := c.check(d, ioctlhelper.EngineCCS); err == nil {
			t.Errorf("check(tile %d) succeeded on a single-tile device", tile)
		}
		for _, req := range []uint32{
			i915.DRM_IOCTL_I915_GEM_VM_CREATE,
			i915.DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT,
			i915.DRM_IOCTL_I915_GEM_CREATE_EXT,
		} {
			if slices.Contains(f.Calls(), i915.IoctlName(req)) {
				t.Errorf("tile %d: %s issued before the tile was rejected", tile, i915.IoctlName(req))
			}
		}
	}
}

func TestWriteOutput(t *testing.T) {
	v := []memoryReport{{
		Device:          "renderD128",
		LocalMemorySize: 16 << 30,
		Regions:         []gpu.RegionReport{{Class: "device", ProbedSize: 16 << 30, TileMask: 1}},
	}}
	text := func(tw *tabwriter.Writer) {
		tw.Write([]byte("a\tb\n"))
	}

	var buf bytes.Buffer
	if err := writeOutput(&buf, config.OutputYAML, v, text); err != nil {
		t.Fatalf("writeOutput failed: %v", err)
	}
	var got []memoryReport
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("yaml.Unmarshal failed: %v\n%s", err, buf.String())
	}
	if diff := cmp.Diff(v, got); diff != "" {
		t.Errorf("YAML output mismatch (-want +got):\n%s", diff)
	}

	buf.Reset()
	if err := writeOutput(&buf, config.OutputJSON, v, text); err != nil {
		t.Fatalf("writeOutput failed: %v", err)
	}
	if !strings.Contains(buf.String(), `"localMemorySize": 17179869184`) {
		t.Errorf("JSON output missing size:\n%s", buf.String())
	}

	buf.Reset()
	if err := writeOutput(&buf, config.OutputText, v, text); err != nil {
		t.Fatalf("writeOutput failed: %v", err)
	}
	if got := buf.String(); got != "a  b\n" {
		t.Errorf("text output = %q, want %q", got, "a  b\n")
	}
}

func TestFormatSize(t *testing.T) {
	for n, want := range map[uint64]string{
		0:        "0 B",
		512:      "512 B",
		1 << 10:  "1.0 KiB",
		1536:     "1.5 KiB",
		16 << 30: "16.0 GiB",
		1 << 50:  "1.0 PiB",
	} {
		if got := formatSize(n); got != want {
			t.Errorf("formatSize(%d) = %q, want %q", n, got, want)
		}
	}
}

func TestFormatIndices(t *testing.T) {
	if got := formatIndices(nil); got != "-" {
		t.Errorf("formatIndices(nil) = %q, want -", got)
	}
	if got := formatIndices([]int{0, 2}); got != "[0 2]" {
		t.Errorf("formatIndices([0 2]) = %q, want [0 2]", got)
	}
}
