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
	"fmt"

	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
)

// Upstream speaks the mainline i915 uAPI.
type Upstream struct {
	common
}

var _ Helper = (*Upstream)(nil)

func (u *Upstream) probe() Capabilities {
	return u.probeCommon()
}

// Variant implements Helper.Variant.
func (u *Upstream) Variant() Variant {
	return VariantUpstream
}

// CreateMemoryInfo implements Helper.CreateMemoryInfo.
func (u *Upstream) CreateMemoryInfo() (*MemoryInfo, error) {
	return createMemoryInfo(u.file, i915.DRM_I915_QUERY_MEMORY_REGIONS)
}

// CreateEngineInfo implements Helper.CreateEngineInfo.
func (u *Upstream) CreateEngineInfo(mem *MemoryInfo, sysman bool) (*EngineInfo, *MemoryInfo, error) {
	return createEngineInfo(u.file, u, i915.DRM_I915_QUERY_ENGINE_INFO, mem, sysman)
}

// QueryDistances implements Helper.QueryDistances. Mainline kernels have no
// distance query, so every pair reports EINVAL without asking the kernel.
func (u *Upstream) QueryDistances(infos []DistanceInfo) error {
	for i := range infos {
		infos[i].Err = unix.EINVAL
	}
	return nil
}

// GetTopologyDataAndMap implements Helper.GetTopologyDataAndMap. Mainline
// kernels describe tile 0 only.
func (u *Upstream) GetTopologyDataAndMap(*EngineInfo) (TopologyData, TopologyMap, error) {
	return getTopologyDataAndMap(u.file)
}

// CreateDrmContext implements Helper.CreateDrmContext.
func (u *Upstream) CreateDrmContext(env ContextEnv, desc ContextDescriptor, vmID, deviceIndex uint32) (Context, error) {
	return createDrmContext(u.file, u, u.caps, u.opts.DebuggingMode, env, desc, vmID, deviceIndex)
}

func (u *Upstream) longRunningFlag() uint32 {
	return 0
}

func (u *Upstream) cooperativeExtension() (drm.ContextExtension, error) {
	return drm.ContextExtension{}, fmt.Errorf("run-alone contexts: %w", ErrNotSupported)
}

func (u *Upstream) setContextDebugFlag(uint32) error {
	return fmt.Errorf("context debug flags: %w", ErrNotSupported)
}
