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

package i915

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseTopologyInfo(t *testing.T) {
	// One slice with sub-slices 0 and 1, each with EUs 0-3.
	in := &TopologyInfo{
		MaxSlices:         1,
		MaxSubslices:      2,
		MaxEUsPerSubslice: 8,
		SubsliceOffset:    1,
		SubsliceStride:    1,
		EUOffset:          2,
		EUStride:          1,
		Data:              []byte{0x01, 0x03, 0x0f, 0x0f},
	}
	got, err := ParseTopologyInfo(EncodeTopologyInfo(in))
	if err != nil {
		t.Fatalf("ParseTopologyInfo failed: %v", err)
	}
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("ParseTopologyInfo mismatch (-want +got):\n%s", diff)
	}
	if !got.SliceAvailable(0) || got.SliceAvailable(1) {
		t.Errorf("slice mask decoded wrong")
	}
	if !got.SubsliceAvailable(0, 1) || got.SubsliceAvailable(0, 2) {
		t.Errorf("sub-slice mask decoded wrong")
	}
	if !got.EUAvailable(0, 1, 3) || got.EUAvailable(0, 1, 4) {
		t.Errorf("EU mask decoded wrong")
	}
	if got.SliceAvailable(40) || got.EUAvailable(3, 0, 0) {
		t.Errorf("bits past the end of Data reported as set")
	}
}

func TestParseTopologyInfoMalformed(t *testing.T) {
	for _, tc := range []struct {
		name string
		blob []byte
	}{
		{
			name: "short header",
			blob: make([]byte, SizeofTopologyInfoHeader-1),
		},
		{
			name: "slice mask past end",
			blob: EncodeTopologyInfo(&TopologyInfo{MaxSlices: 9, Data: []byte{0xff}}),
		},
		{
			name: "sub-slice stride past end",
			blob: EncodeTopologyInfo(&TopologyInfo{
				MaxSlices:      2,
				MaxSubslices:   8,
				SubsliceOffset: 1,
				SubsliceStride: 4,
				Data:           []byte{0x03, 0xff, 0xff},
			}),
		},
		{
			name: "EU offset past end",
			blob: EncodeTopologyInfo(&TopologyInfo{
				MaxSlices:         1,
				MaxSubslices:      1,
				MaxEUsPerSubslice: 8,
				SubsliceOffset:    1,
				SubsliceStride:    1,
				EUOffset:          40,
				EUStride:          1,
				Data:              []byte{0x01, 0x01, 0xff},
			}),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseTopologyInfo(tc.blob); !errors.Is(err, ErrMalformed) {
				t.Errorf("ParseTopologyInfo returned %v, want ErrMalformed", err)
			}
		})
	}
}

func TestParseEngineInfo(t *testing.T) {
	want := []EngineInfo{
		{Engine: EngineClassInstance{I915_ENGINE_CLASS_RENDER, 0}},
		{Engine: EngineClassInstance{I915_ENGINE_CLASS_COPY, 0}, Flags: I915_ENGINE_INFO_HAS_LOGICAL_INSTANCE, LogicalInstance: 0},
		{Engine: EngineClassInstance{I915_ENGINE_CLASS_VIDEO, 1}, Capabilities: I915_VIDEO_CLASS_CAPABILITY_HEVC},
		{Engine: EngineClassInstance{I915_ENGINE_CLASS_COMPUTE, 3}, Flags: I915_ENGINE_INFO_HAS_LOGICAL_INSTANCE, LogicalInstance: 3},
	}
	blob := EncodeEngineInfo(want)
	if got, want := len(blob), SizeofEngineInfoHeader+4*SizeofEngineInfo; got != want {
		t.Fatalf("encoded length = %d, want %d", got, want)
	}
	got, err := ParseEngineInfo(blob)
	if err != nil {
		t.Fatalf("ParseEngineInfo failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseEngineInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestParseEngineInfoCountExceedsBuffer(t *testing.T) {
	blob := EncodeEngineInfo([]EngineInfo{{}, {}})
	blob[0] = 3
	if _, err := ParseEngineInfo(blob); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseEngineInfo returned %v, want ErrMalformed", err)
	}
	if _, err := ParseEngineInfo(nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseEngineInfo(nil) returned %v, want ErrMalformed", err)
	}
}

func TestParseMemoryRegions(t *testing.T) {
	want := []MemoryRegionInfo{
		{Region: MemoryClassInstance{I915_MEMORY_CLASS_SYSTEM, 0}, ProbedSize: 64 << 30, UnallocatedSize: 60 << 30},
		{Region: MemoryClassInstance{I915_MEMORY_CLASS_DEVICE, 0}, ProbedSize: 16 << 30, ProbedCPUVisibleSize: 256 << 20},
		{Region: MemoryClassInstance{I915_MEMORY_CLASS_DEVICE, 1}},
	}
	got, err := ParseMemoryRegions(EncodeMemoryRegions(want))
	if err != nil {
		t.Fatalf("ParseMemoryRegions failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseMemoryRegions mismatch (-want +got):\n%s", diff)
	}
}

func TestParseMemoryRegionsTruncated(t *testing.T) {
	blob := EncodeMemoryRegions([]MemoryRegionInfo{{}, {}})
	if _, err := ParseMemoryRegions(blob[:len(blob)-1]); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseMemoryRegions returned %v, want ErrMalformed", err)
	}
}

func TestParseDistanceInfo(t *testing.T) {
	want := DistanceInfo{
		Engine:   EngineClassInstance{I915_ENGINE_CLASS_COMPUTE, 1},
		Region:   MemoryClassInstance{I915_MEMORY_CLASS_DEVICE, 1},
		Distance: 100,
	}
	blob := EncodeDistanceInfo(want)
	if len(blob) != SizeofDistanceInfo {
		t.Fatalf("encoded length = %d, want %d", len(blob), SizeofDistanceInfo)
	}
	got, err := ParseDistanceInfo(blob)
	if err != nil {
		t.Fatalf("ParseDistanceInfo failed: %v", err)
	}
	if got != want {
		t.Errorf("ParseDistanceInfo = %+v, want %+v", got, want)
	}
	if _, err := ParseDistanceInfo(blob[:8]); !errors.Is(err, ErrMalformed) {
		t.Errorf("ParseDistanceInfo(short) returned %v, want ErrMalformed", err)
	}
}
