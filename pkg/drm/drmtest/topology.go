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

package drmtest

import (
	"gvisor.dev/gpudrm/pkg/abi/i915"
)

// TopologyBuilder encodes enabled (slice, sub-slice, EU) units into a
// topology query response laid out the way i915 lays it out: the slice
// mask, then one sub-slice mask per slice, then one EU mask per sub-slice.
type TopologyBuilder struct {
	maxSlices, maxSubslices, maxEUs int
	slices                          map[int]bool
	subslices                       map[[2]int]bool
	eus                             map[[3]int]bool
}

// NewTopologyBuilder returns a builder for a device with the given maxima.
func NewTopologyBuilder(maxSlices, maxSubslices, maxEUsPerSubslice int) *TopologyBuilder {
	return &TopologyBuilder{
		maxSlices:    maxSlices,
		maxSubslices: maxSubslices,
		maxEUs:       maxEUsPerSubslice,
		slices:       make(map[int]bool),
		subslices:    make(map[[2]int]bool),
		eus:          make(map[[3]int]bool),
	}
}

// EnableSlice marks a slice enabled.
func (b *TopologyBuilder) EnableSlice(s int) *TopologyBuilder {
	b.slices[s] = true
	return b
}

// EnableSubslice marks a sub-slice and its slice enabled.
func (b *TopologyBuilder) EnableSubslice(s, ss int) *TopologyBuilder {
	b.EnableSlice(s)
	b.subslices[[2]int{s, ss}] = true
	return b
}

// EnableEU marks an EU, its sub-slice and its slice enabled.
func (b *TopologyBuilder) EnableEU(s, ss, eu int) *TopologyBuilder {
	b.EnableSubslice(s, ss)
	b.eus[[3]int{s, ss, eu}] = true
	return b
}

// EnableEUs marks EUs [0, n) of a sub-slice enabled.
func (b *TopologyBuilder) EnableEUs(s, ss, n int) *TopologyBuilder {
	for eu := 0; eu < n; eu++ {
		b.EnableEU(s, ss, eu)
	}
	return b
}

func bytesFor(bits int) int {
	return (bits + 7) / 8
}

// Info returns the decoded form of the response.
func (b *TopologyBuilder) Info() *i915.TopologyInfo {
	subsliceOffset := bytesFor(b.maxSlices)
	subsliceStride := bytesFor(b.maxSubslices)
	euOffset := subsliceOffset + b.maxSlices*subsliceStride
	euStride := bytesFor(b.maxEUs)
	data := make([]byte, euOffset+b.maxSlices*b.maxSubslices*euStride)

	set := func(off, bit int) {
		data[off+bit/8] |= 1 << (bit % 8)
	}
	for s := range b.slices {
		set(0, s)
	}
	for k := range b.subslices {
		set(subsliceOffset+k[0]*subsliceStride, k[1])
	}
	for k := range b.eus {
		set(euOffset+(k[0]*b.maxSubslices+k[1])*euStride, k[2])
	}
	return &i915.TopologyInfo{
		MaxSlices:         uint16(b.maxSlices),
		MaxSubslices:      uint16(b.maxSubslices),
		MaxEUsPerSubslice: uint16(b.maxEUs),
		SubsliceOffset:    uint16(subsliceOffset),
		SubsliceStride:    uint16(subsliceStride),
		EUOffset:          uint16(euOffset),
		EUStride:          uint16(euStride),
		Data:              data,
	}
}

// Bytes returns the encoded response.
func (b *TopologyBuilder) Bytes() []byte {
	return i915.EncodeTopologyInfo(b.Info())
}
