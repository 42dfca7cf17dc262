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

// Package i915 defines the Linux DRM/i915 kernel driver ABI: ioctl request
// numbers, parameter structs and the binary layout of query responses.
//
// Structs passed directly to ioctl(2) mirror include/uapi/drm/i915_drm.h and
// include/uapi/drm/drm.h field for field. Variable-length query responses are
// described by Parse/Encode function pairs in query.go instead.
package i915

import "fmt"

// ioctl(2) request encoding, from include/uapi/asm-generic/ioctl.h.
const (
	_IOC_NRBITS   = 8
	_IOC_TYPEBITS = 8
	_IOC_SIZEBITS = 14
	_IOC_DIRBITS  = 2

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = _IOC_NRSHIFT + _IOC_NRBITS
	_IOC_SIZESHIFT = _IOC_TYPESHIFT + _IOC_TYPEBITS
	_IOC_DIRSHIFT  = _IOC_SIZESHIFT + _IOC_SIZEBITS

	_IOC_NONE  = 0
	_IOC_WRITE = 1
	_IOC_READ  = 2
)

// IOC encodes an ioctl request number.
func IOC(dir, typ, nr, size uint32) uint32 {
	return dir<<_IOC_DIRSHIFT | size<<_IOC_SIZESHIFT | typ<<_IOC_TYPESHIFT | nr<<_IOC_NRSHIFT
}

// IOCNr returns the IOC_NR part of an ioctl request number.
func IOCNr(req uint32) uint32 {
	return (req >> _IOC_NRSHIFT) & (1<<_IOC_NRBITS - 1)
}

// IOCSize returns the IOC_SIZE part of an ioctl request number.
func IOCSize(req uint32) uint32 {
	return (req >> _IOC_SIZESHIFT) & (1<<_IOC_SIZEBITS - 1)
}

// DRM ioctl bases, from include/uapi/drm/drm.h.
const (
	DRM_IOCTL_BASE   = 'd'
	DRM_COMMAND_BASE = 0x40
)

// DRM_IOW encodes a write-only DRM ioctl.
func DRM_IOW(nr, size uint32) uint32 {
	return IOC(_IOC_WRITE, DRM_IOCTL_BASE, nr, size)
}

// DRM_IOWR encodes a read-write DRM ioctl.
func DRM_IOWR(nr, size uint32) uint32 {
	return IOC(_IOC_READ|_IOC_WRITE, DRM_IOCTL_BASE, nr, size)
}

// Driver-private command numbers, from include/uapi/drm/i915_drm.h. Add
// DRM_COMMAND_BASE to obtain the IOC_NR part of the request.
const (
	DRM_I915_GETPARAM             = 0x06
	DRM_I915_GEM_EXECBUFFER2      = 0x29
	DRM_I915_GEM_EXECBUFFER2_WR   = DRM_I915_GEM_EXECBUFFER2
	DRM_I915_GEM_CREATE           = 0x1b
	DRM_I915_GEM_SET_DOMAIN       = 0x1f
	DRM_I915_GEM_SET_TILING       = 0x21
	DRM_I915_GEM_GET_TILING       = 0x22
	DRM_I915_GEM_MMAP_OFFSET      = 0x24
	DRM_I915_GEM_WAIT             = 0x2c
	DRM_I915_GEM_CONTEXT_CREATE   = 0x2d
	DRM_I915_GEM_CONTEXT_DESTROY  = 0x2e
	DRM_I915_REG_READ             = 0x31
	DRM_I915_GET_RESET_STATS      = 0x32
	DRM_I915_GEM_USERPTR          = 0x33
	DRM_I915_GEM_CONTEXT_GETPARAM = 0x34
	DRM_I915_GEM_CONTEXT_SETPARAM = 0x35
	DRM_I915_QUERY                = 0x39
	DRM_I915_GEM_VM_CREATE        = 0x3a
	DRM_I915_GEM_VM_DESTROY       = 0x3b
	DRM_I915_GEM_CREATE_EXT       = 0x3c
)

// Core DRM command numbers, from include/uapi/drm/drm.h.
const (
	DRM_GEM_CLOSE          = 0x09
	DRM_PRIME_HANDLE_TO_FD = 0x2d
	DRM_PRIME_FD_TO_HANDLE = 0x2e
)

// Full ioctl request numbers. Each is DRM_IOW/DRM_IOWR of the command number
// and the size of its parameter struct; ioctl_test.go checks the encoding.
const (
	DRM_IOCTL_I915_GETPARAM               = 0xc0106446
	DRM_IOCTL_I915_GEM_EXECBUFFER2        = 0x40406469
	DRM_IOCTL_I915_GEM_EXECBUFFER2_WR     = 0xc0406469
	DRM_IOCTL_I915_GEM_CREATE             = 0xc010645b
	DRM_IOCTL_I915_GEM_CREATE_EXT         = 0xc018647c
	DRM_IOCTL_I915_GEM_SET_DOMAIN         = 0x400c645f
	DRM_IOCTL_I915_GEM_SET_TILING         = 0xc0106461
	DRM_IOCTL_I915_GEM_GET_TILING         = 0xc0106462
	DRM_IOCTL_I915_GEM_MMAP_OFFSET        = 0xc0206464
	DRM_IOCTL_I915_GEM_WAIT               = 0xc010646c
	DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT = 0xc010646d
	DRM_IOCTL_I915_GEM_CONTEXT_DESTROY    = 0x4008646e
	DRM_IOCTL_I915_REG_READ               = 0xc0106471
	DRM_IOCTL_I915_GET_RESET_STATS        = 0xc0186472
	DRM_IOCTL_I915_GEM_USERPTR            = 0xc0186473
	DRM_IOCTL_I915_GEM_CONTEXT_GETPARAM   = 0xc0186474
	DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM   = 0xc0186475
	DRM_IOCTL_I915_QUERY                  = 0xc0106479
	DRM_IOCTL_I915_GEM_VM_CREATE          = 0xc010647a
	DRM_IOCTL_I915_GEM_VM_DESTROY         = 0x4010647b
	DRM_IOCTL_GEM_CLOSE                   = 0x40086409
	DRM_IOCTL_PRIME_HANDLE_TO_FD          = 0xc00c642d
	DRM_IOCTL_PRIME_FD_TO_HANDLE          = 0xc00c642e
)

// Sizes of the ioctl parameter structs.
const (
	SizeofGetParam         = 16
	SizeofExecBuffer2      = 64
	SizeofGemCreate        = 16
	SizeofGemCreateExt     = 24
	SizeofGemSetDomain     = 12
	SizeofGemSetTiling     = 16
	SizeofGemGetTiling     = 16
	SizeofGemMmapOffset    = 32
	SizeofGemWait          = 16
	SizeofContextCreateExt = 16
	SizeofContextDestroy   = 8
	SizeofRegRead          = 16
	SizeofResetStats       = 24
	SizeofGemUserptr       = 24
	SizeofContextParam     = 24
	SizeofQuery            = 16
	SizeofQueryItem        = 24
	SizeofVMControl        = 16
	SizeofGemClose         = 8
	SizeofPrimeHandle      = 12
	SizeofUserExtension    = 32

	SizeofContextCreateExtSetParam = SizeofUserExtension + SizeofContextParam
	SizeofEngineClassInstance      = 4
)

var ioctlNames = map[uint32]string{
	DRM_IOCTL_I915_GETPARAM:               "DRM_IOCTL_I915_GETPARAM",
	DRM_IOCTL_I915_GEM_EXECBUFFER2:        "DRM_IOCTL_I915_GEM_EXECBUFFER2",
	DRM_IOCTL_I915_GEM_EXECBUFFER2_WR:     "DRM_IOCTL_I915_GEM_EXECBUFFER2_WR",
	DRM_IOCTL_I915_GEM_CREATE:             "DRM_IOCTL_I915_GEM_CREATE",
	DRM_IOCTL_I915_GEM_CREATE_EXT:         "DRM_IOCTL_I915_GEM_CREATE_EXT",
	DRM_IOCTL_I915_GEM_SET_DOMAIN:         "DRM_IOCTL_I915_GEM_SET_DOMAIN",
	DRM_IOCTL_I915_GEM_SET_TILING:         "DRM_IOCTL_I915_GEM_SET_TILING",
	DRM_IOCTL_I915_GEM_GET_TILING:         "DRM_IOCTL_I915_GEM_GET_TILING",
	DRM_IOCTL_I915_GEM_MMAP_OFFSET:        "DRM_IOCTL_I915_GEM_MMAP_OFFSET",
	DRM_IOCTL_I915_GEM_WAIT:               "DRM_IOCTL_I915_GEM_WAIT",
	DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT: "DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT",
	DRM_IOCTL_I915_GEM_CONTEXT_DESTROY:    "DRM_IOCTL_I915_GEM_CONTEXT_DESTROY",
	DRM_IOCTL_I915_REG_READ:               "DRM_IOCTL_I915_REG_READ",
	DRM_IOCTL_I915_GET_RESET_STATS:        "DRM_IOCTL_I915_GET_RESET_STATS",
	DRM_IOCTL_I915_GEM_USERPTR:            "DRM_IOCTL_I915_GEM_USERPTR",
	DRM_IOCTL_I915_GEM_CONTEXT_GETPARAM:   "DRM_IOCTL_I915_GEM_CONTEXT_GETPARAM",
	DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM:   "DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM",
	DRM_IOCTL_I915_QUERY:                  "DRM_IOCTL_I915_QUERY",
	DRM_IOCTL_I915_GEM_VM_CREATE:          "DRM_IOCTL_I915_GEM_VM_CREATE",
	DRM_IOCTL_I915_GEM_VM_DESTROY:         "DRM_IOCTL_I915_GEM_VM_DESTROY",
	DRM_IOCTL_GEM_CLOSE:                   "DRM_IOCTL_GEM_CLOSE",
	DRM_IOCTL_PRIME_HANDLE_TO_FD:          "DRM_IOCTL_PRIME_HANDLE_TO_FD",
	DRM_IOCTL_PRIME_FD_TO_HANDLE:          "DRM_IOCTL_PRIME_FD_TO_HANDLE",
}

// IoctlName returns the symbolic name of an ioctl request number.
func IoctlName(req uint32) string {
	if name, ok := ioctlNames[req]; ok {
		return name
	}
	return fmt.Sprintf("ioctl(%#x)", req)
}

// Parameter structs passed by pointer to ioctl(2). Field order, widths and
// explicit padding match the kernel's definitions exactly.

// GetParam is struct drm_i915_getparam. Value holds the address of an int
// that receives the result.
type GetParam struct {
	Param int32
	_     uint32
	Value uint64
}

// Query is struct drm_i915_query.
type Query struct {
	NumItems uint32
	Flags    uint32
	ItemsPtr uint64
}

// QueryItem is struct drm_i915_query_item.
//
// On input, Length is the size of the buffer at DataPtr, or 0 to ask the
// kernel for the required size. On output, Length is the number of bytes
// written, or a negative errno for this item alone.
type QueryItem struct {
	QueryID uint64
	Length  int32
	Flags   uint32
	DataPtr uint64
}

// GemCreate is struct drm_i915_gem_create.
type GemCreate struct {
	Size   uint64
	Handle uint32
	_      uint32
}

// GemClose is struct drm_gem_close.
type GemClose struct {
	Handle uint32
	_      uint32
}

// VMControl is struct drm_i915_gem_vm_control.
type VMControl struct {
	Extensions uint64
	Flags      uint32
	VMID       uint32
}

// ContextCreateExt is struct drm_i915_gem_context_create_ext.
type ContextCreateExt struct {
	CtxID      uint32
	Flags      uint32
	Extensions uint64
}

// ContextDestroy is struct drm_i915_gem_context_destroy.
type ContextDestroy struct {
	CtxID uint32
	_     uint32
}

// ContextParam is struct drm_i915_gem_context_param.
type ContextParam struct {
	CtxID uint32
	Size  uint32
	Param uint64
	Value uint64
}

// UserExtension is struct i915_user_extension, the header of every chained
// extension.
type UserExtension struct {
	NextExtension uint64
	Name          uint32
	Flags         uint32
	Rsvd          [4]uint32
}

// ContextCreateExtSetParam is struct drm_i915_gem_context_create_ext_setparam.
type ContextCreateExtSetParam struct {
	Base  UserExtension
	Param ContextParam
}

// EngineClassInstance is struct i915_engine_class_instance.
type EngineClassInstance struct {
	EngineClass    uint16
	EngineInstance uint16
}

// String implements fmt.Stringer.
func (e EngineClassInstance) String() string {
	return fmt.Sprintf("%s:%d", EngineClassName(e.EngineClass), e.EngineInstance)
}

// MemoryClassInstance is struct drm_i915_gem_memory_class_instance.
type MemoryClassInstance struct {
	MemoryClass    uint16
	MemoryInstance uint16
}

// String implements fmt.Stringer.
func (m MemoryClassInstance) String() string {
	return fmt.Sprintf("%s:%d", MemoryClassName(m.MemoryClass), m.MemoryInstance)
}
