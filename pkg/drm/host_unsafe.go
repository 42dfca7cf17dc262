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

package drm

import (
	"runtime"
	"unsafe"

	"golang.org/x/exp/constraints"
	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
)

// ioctlInvokePtrArg makes an ioctl syscall with a pointer to params. GEM and
// context ioctls may block in the driver, so this is not a RawSyscall.
func ioctlInvokePtrArg[Cmd constraints.Integer, Params any](hostFd int32, cmd Cmd, params *Params) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(hostFd), uintptr(cmd), uintptr(unsafe.Pointer(params)))
	if errno != 0 {
		return errno
	}
	return nil
}

// pin keeps p at a fixed address until pinner is unpinned and returns that
// address for use inside an ioctl argument.
func pin[T any](pinner *runtime.Pinner, p *T) uint64 {
	pinner.Pin(p)
	return uint64(uintptr(unsafe.Pointer(p)))
}

// Query implements File.Query.
func (f *HostFile) Query(items []QueryItem) error {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	if len(items) == 0 {
		return nil
	}
	raw := make([]i915.QueryItem, len(items))
	for i := range items {
		if items[i].Length > 0 && len(items[i].Data) < int(items[i].Length) {
			return unix.EINVAL
		}
		raw[i] = i915.QueryItem{
			QueryID: items[i].QueryID,
			Length:  items[i].Length,
			Flags:   items[i].Flags,
		}
		if items[i].Length > 0 {
			raw[i].DataPtr = pin(&pinner, &items[i].Data[0])
		}
	}
	q := i915.Query{
		NumItems: uint32(len(raw)),
		ItemsPtr: pin(&pinner, &raw[0]),
	}
	err := f.ioctl(i915.DRM_IOCTL_I915_QUERY, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_QUERY, &q)
	})
	if err != nil {
		return err
	}
	for i := range items {
		items[i].Length = raw[i].Length
	}
	return nil
}

// GetParam implements File.GetParam.
func (f *HostFile) GetParam(param int32) (int32, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	var value int32
	gp := i915.GetParam{
		Param: param,
		Value: pin(&pinner, &value),
	}
	err := f.ioctl(i915.DRM_IOCTL_I915_GETPARAM, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GETPARAM, &gp)
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// CreateContext implements File.CreateContext.
func (f *HostFile) CreateContext(flags uint32, exts []ContextExtension) (uint32, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	chain := make([]i915.ContextCreateExtSetParam, len(exts))
	for i, ext := range exts {
		chain[i].Base.Name = ext.Name
		chain[i].Param = ext.Param
		if i+1 < len(chain) {
			chain[i].Base.NextExtension = pin(&pinner, &chain[i+1])
		}
	}
	create := i915.ContextCreateExt{Flags: flags}
	if len(chain) > 0 {
		create.Flags |= i915.I915_CONTEXT_CREATE_FLAGS_USE_EXTENSIONS
		create.Extensions = pin(&pinner, &chain[0])
	}
	err := f.ioctl(i915.DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT, &create)
	})
	if err != nil {
		return 0, err
	}
	return create.CtxID, nil
}

// DestroyContext implements File.DestroyContext.
func (f *HostFile) DestroyContext(ctxID uint32) error {
	destroy := i915.ContextDestroy{CtxID: ctxID}
	return f.ioctl(i915.DRM_IOCTL_I915_GEM_CONTEXT_DESTROY, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_CONTEXT_DESTROY, &destroy)
	})
}

// GetContextParam implements File.GetContextParam.
func (f *HostFile) GetContextParam(ctxID uint32, param uint64) (uint64, error) {
	p := i915.ContextParam{CtxID: ctxID, Param: param}
	if err := f.ioctl(i915.DRM_IOCTL_I915_GEM_CONTEXT_GETPARAM, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_CONTEXT_GETPARAM, &p)
	}); err != nil {
		return 0, err
	}
	return p.Value, nil
}

// SetContextParam implements File.SetContextParam.
func (f *HostFile) SetContextParam(p i915.ContextParam, data []byte) error {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	if data != nil {
		p.Size = uint32(len(data))
		p.Value = 0
		if len(data) > 0 {
			p.Value = pin(&pinner, &data[0])
		}
	}
	err := f.ioctl(i915.DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM, &p)
	})
	return err
}

// CreateVM implements File.CreateVM.
func (f *HostFile) CreateVM(flags uint32) (uint32, error) {
	ctl := i915.VMControl{Flags: flags}
	if err := f.ioctl(i915.DRM_IOCTL_I915_GEM_VM_CREATE, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_VM_CREATE, &ctl)
	}); err != nil {
		return 0, err
	}
	return ctl.VMID, nil
}

// DestroyVM implements File.DestroyVM.
func (f *HostFile) DestroyVM(vmID uint32) error {
	ctl := i915.VMControl{VMID: vmID}
	return f.ioctl(i915.DRM_IOCTL_I915_GEM_VM_DESTROY, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_VM_DESTROY, &ctl)
	})
}

// CreateGem implements File.CreateGem.
func (f *HostFile) CreateGem(size uint64) (uint32, error) {
	create := i915.GemCreate{Size: size}
	if err := f.ioctl(i915.DRM_IOCTL_I915_GEM_CREATE, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_CREATE, &create)
	}); err != nil {
		return 0, err
	}
	return create.Handle, nil
}

// CreateGemExt implements File.CreateGemExt.
func (f *HostFile) CreateGemExt(size uint64, regions []i915.MemoryClassInstance) (uint32, error) {
	var pinner runtime.Pinner
	defer pinner.Unpin()
	if len(regions) == 0 {
		return f.CreateGem(size)
	}
	placement := append([]i915.MemoryClassInstance(nil), regions...)
	ext := i915.GemCreateExtMemoryRegions{
		Base:       i915.UserExtension{Name: i915.I915_GEM_CREATE_EXT_MEMORY_REGIONS},
		NumRegions: uint32(len(placement)),
		Regions:    pin(&pinner, &placement[0]),
	}
	create := i915.GemCreateExt{
		Size:       size,
		Extensions: pin(&pinner, &ext),
	}
	err := f.ioctl(i915.DRM_IOCTL_I915_GEM_CREATE_EXT, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_I915_GEM_CREATE_EXT, &create)
	})
	if err != nil {
		return 0, err
	}
	return create.Handle, nil
}

// CloseGem implements File.CloseGem.
func (f *HostFile) CloseGem(handle uint32) error {
	c := i915.GemClose{Handle: handle}
	return f.ioctl(i915.DRM_IOCTL_GEM_CLOSE, func() error {
		return ioctlInvokePtrArg(f.fd, i915.DRM_IOCTL_GEM_CLOSE, &c)
	})
}
