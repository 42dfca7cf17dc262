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

// Package drm provides access to an i915 DRM render node.
//
// File is the driver surface seen from user space. Open returns the Linux
// host implementation; drmtest provides an in-memory one. Callers above this
// package never see ioctl request numbers or raw pointers.
package drm

import (
	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
)

// QueryItem is one item of a DRM_IOCTL_I915_QUERY batch.
type QueryItem struct {
	QueryID uint64
	Flags   uint32

	// Length is the size of Data on input, or 0 to probe for the size the
	// kernel needs. On output it is the number of bytes the kernel reports,
	// or a negative errno that applies to this item alone.
	Length int32

	// Data receives the response. It must be at least Length bytes long
	// unless Length is 0.
	Data []byte
}

// Err returns the per-item error reported by the kernel, if any.
func (q *QueryItem) Err() error {
	if q.Length < 0 {
		return unix.Errno(-q.Length)
	}
	return nil
}

// ContextExtension is one link of the extension chain passed to
// DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT. Param is only meaningful for
// I915_CONTEXT_CREATE_EXT_SETPARAM.
type ContextExtension struct {
	Name  uint32
	Param i915.ContextParam
}

// File is an open i915 render node.
//
// Errors returned by a File wrap the kernel's unix.Errno.
type File interface {
	// Query issues DRM_IOCTL_I915_QUERY for items and updates each item's
	// Length in place.
	Query(items []QueryItem) error

	// GetParam returns the value of a DRM_IOCTL_I915_GETPARAM parameter.
	GetParam(param int32) (int32, error)

	// CreateContext creates a context with the given create flags and
	// extension chain and returns its id.
	CreateContext(flags uint32, exts []ContextExtension) (uint32, error)

	// DestroyContext destroys a context.
	DestroyContext(ctxID uint32) error

	// GetContextParam returns the value of a context parameter.
	GetContextParam(ctxID uint32, param uint64) (uint64, error)

	// SetContextParam sets a context parameter. When data is not nil, the
	// kernel reads the parameter from data and p.Size and p.Value are
	// ignored.
	SetContextParam(p i915.ContextParam, data []byte) error

	// CreateVM creates a GPU virtual address space and returns its id.
	CreateVM(flags uint32) (uint32, error)

	// DestroyVM destroys a GPU virtual address space.
	DestroyVM(vmID uint32) error

	// CreateGem creates a buffer object of at least size bytes in the
	// default placement and returns its handle.
	CreateGem(size uint64) (uint32, error)

	// CreateGemExt creates a buffer object placed in one of regions, in
	// order of preference, and returns its handle.
	CreateGemExt(size uint64, regions []i915.MemoryClassInstance) (uint32, error)

	// CloseGem releases a buffer object handle.
	CloseGem(handle uint32) error

	// Close releases the file.
	Close() error
}
