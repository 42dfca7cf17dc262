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

	"gvisor.dev/gpudrm/pkg/log"
)

// DestroyContext implements Helper.DestroyContext.
func (c *common) DestroyContext(ctxID uint32) error {
	if err := c.file.DestroyContext(ctxID); err != nil {
		return fmt.Errorf("destroying context %d: %w", ctxID, err)
	}
	return nil
}

// CreateVM implements Helper.CreateVM.
func (c *common) CreateVM() (uint32, error) {
	id, err := c.file.CreateVM(0)
	if err != nil {
		return 0, fmt.Errorf("creating VM: %w", err)
	}
	log.Debugf("Created VM %d", id)
	return id, nil
}

// DestroyVM implements Helper.DestroyVM.
func (c *common) DestroyVM(vmID uint32) error {
	if err := c.file.DestroyVM(vmID); err != nil {
		return fmt.Errorf("destroying VM %d: %w", vmID, err)
	}
	return nil
}

// CreateGem implements Helper.CreateGem.
func (c *common) CreateGem(mem *MemoryInfo, size uint64, memoryBanks uint32) (uint32, error) {
	if memoryBanks != 0 && mem != nil {
		if regions := mem.RegionsForBanks(memoryBanks); len(regions) > 0 {
			handle, err := c.file.CreateGemExt(size, regions)
			if err != nil {
				return 0, fmt.Errorf("creating %d byte buffer in %v: %w", size, regions, err)
			}
			return handle, nil
		}
		log.Debugf("No local memory for banks %#x, using default placement", memoryBanks)
	}
	handle, err := c.file.CreateGem(size)
	if err != nil {
		return 0, fmt.Errorf("creating %d byte buffer: %w", size, err)
	}
	return handle, nil
}

// CloseGem implements Helper.CloseGem.
func (c *common) CloseGem(handle uint32) error {
	if err := c.file.CloseGem(handle); err != nil {
		return fmt.Errorf("closing buffer %d: %w", handle, err)
	}
	return nil
}
