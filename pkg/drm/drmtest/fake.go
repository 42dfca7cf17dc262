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

// Package drmtest provides an in-memory i915 driver for tests.
package drmtest

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
)

type queryKey struct {
	id    uint64
	flags uint32
}

// Context is a context created on a Fake.
type Context struct {
	ID         uint32
	Flags      uint32
	Extensions []drm.ContextExtension
	Params     map[uint64]uint64
	Engines    []i915.EngineClassInstance
}

// Gem is a buffer object created on a Fake.
type Gem struct {
	Handle  uint32
	Size    uint64
	Regions []i915.MemoryClassInstance
}

// Fake implements drm.File in memory. The zero value is not usable; call
// NewFake.
//
// Query responses, getparam values and distances are scripted by the test.
// Ioctls can be made to fail by request number, and context parameters by
// parameter id.
type Fake struct {
	mu sync.Mutex

	queries    map[queryKey][]byte
	itemErrors map[uint64]unix.Errno
	params     map[int32]int32
	distances  map[i915.DistanceInfo]uint32

	// defaultParams are the parameters of the default context, id 0.
	defaultParams map[uint64]uint64

	// errors fail whole ioctls by request number.
	errors map[uint32]error

	// contextParamErrors fail SetContextParam by parameter id.
	contextParamErrors map[uint64]error

	nextID   uint32
	contexts map[uint32]*Context
	vms      map[uint32]bool
	gems     map[uint32]*Gem
	calls    []string
	closed   bool
}

var _ drm.File = (*Fake)(nil)

// NewFake returns a Fake with no scripted responses.
func NewFake() *Fake {
	return &Fake{
		queries:            make(map[queryKey][]byte),
		itemErrors:         make(map[uint64]unix.Errno),
		params:             make(map[int32]int32),
		distances:          make(map[i915.DistanceInfo]uint32),
		defaultParams:      make(map[uint64]uint64),
		errors:             make(map[uint32]error),
		contextParamErrors: make(map[uint64]error),
		nextID:             1,
		contexts:           make(map[uint32]*Context),
		vms:                make(map[uint32]bool),
		gems:               make(map[uint32]*Gem),
	}
}

// SetQuery scripts the response to query id with the given item flags.
func (f *Fake) SetQuery(id uint64, flags uint32, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries[queryKey{id, flags}] = append([]byte(nil), data...)
}

// SetQueryItemError makes every item of query id report errno.
func (f *Fake) SetQueryItemError(id uint64, errno unix.Errno) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemErrors[id] = errno
}

// SetParam scripts a GETPARAM value. Unscripted parameters fail with EINVAL.
func (f *Fake) SetParam(param int32, value int32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params[param] = value
}

// SetDistance scripts the distance between an engine and a memory region
// reported by PRELIM_DRM_I915_QUERY_DISTANCE_INFO. Unscripted pairs report
// EINVAL for their item.
func (f *Fake) SetDistance(engine i915.EngineClassInstance, region i915.MemoryClassInstance, distance uint32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.distances[i915.DistanceInfo{Engine: engine, Region: region}] = distance
}

// SetDefaultContextParam scripts a parameter of the default context.
// GetContextParam fails with EINVAL for unscripted default parameters, which
// is how kernels report parameters they do not know.
func (f *Fake) SetDefaultContextParam(param, value uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultParams[param] = value
}

// FailIoctl makes every ioctl with request number req fail with err. A nil
// err clears the failure.
func (f *Fake) FailIoctl(req uint32, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errors, req)
		return
	}
	f.errors[req] = err
}

// FailContextParam makes SetContextParam for param fail with err.
func (f *Fake) FailContextParam(param uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contextParamErrors[param] = err
}

// Calls returns the ioctls issued so far, by name, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Context returns the live context with the given id.
func (f *Fake) Context(id uint32) (*Context, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.contexts[id]
	return c, ok
}

// Gem returns the live buffer object with the given handle.
func (f *Fake) Gem(handle uint32) (*Gem, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.gems[handle]
	return g, ok
}

// Live returns the number of live contexts, VMs and buffer objects.
func (f *Fake) Live() (contexts, vms, gems int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.contexts), len(f.vms), len(f.gems)
}

// Closed reports whether Close was called.
func (f *Fake) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// begin records a call and returns its injected error. f.mu must be held.
func (f *Fake) begin(req uint32) error {
	name := i915.IoctlName(req)
	f.calls = append(f.calls, name)
	if f.closed {
		return fmt.Errorf("%s: %w", name, unix.EBADF)
	}
	if err, ok := f.errors[req]; ok {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (f *Fake) allocID() uint32 {
	id := f.nextID
	f.nextID++
	return id
}

// Query implements drm.File.Query.
func (f *Fake) Query(items []drm.QueryItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_QUERY); err != nil {
		return err
	}
	for i := range items {
		f.queryItem(&items[i])
	}
	return nil
}

func (f *Fake) queryItem(item *drm.QueryItem) {
	if errno, ok := f.itemErrors[item.QueryID]; ok {
		item.Length = -int32(errno)
		return
	}
	if item.QueryID == i915.PRELIM_DRM_I915_QUERY_DISTANCE_INFO {
		f.distanceItem(item)
		return
	}
	data, ok := f.queries[queryKey{item.QueryID, item.Flags}]
	if !ok {
		item.Length = -int32(unix.EINVAL)
		return
	}
	switch {
	case item.Length == 0:
		item.Length = int32(len(data))
	case int(item.Length) < len(data) || len(item.Data) < int(item.Length):
		item.Length = -int32(unix.EINVAL)
	default:
		copy(item.Data, data)
		item.Length = int32(len(data))
	}
}

func (f *Fake) distanceItem(item *drm.QueryItem) {
	if item.Length == 0 {
		item.Length = i915.SizeofDistanceInfo
		return
	}
	d, err := i915.ParseDistanceInfo(item.Data[:min(len(item.Data), int(item.Length))])
	if err != nil {
		item.Length = -int32(unix.EINVAL)
		return
	}
	distance, ok := f.distances[i915.DistanceInfo{Engine: d.Engine, Region: d.Region}]
	if !ok {
		item.Length = -int32(unix.EINVAL)
		return
	}
	d.Distance = distance
	copy(item.Data, i915.EncodeDistanceInfo(d))
	item.Length = i915.SizeofDistanceInfo
}

// GetParam implements drm.File.GetParam.
func (f *Fake) GetParam(param int32) (int32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GETPARAM); err != nil {
		return 0, err
	}
	v, ok := f.params[param]
	if !ok {
		return 0, fmt.Errorf("%s(%s): %w", i915.IoctlName(i915.DRM_IOCTL_I915_GETPARAM), i915.ParamName(param), unix.EINVAL)
	}
	return v, nil
}

// CreateContext implements drm.File.CreateContext.
func (f *Fake) CreateContext(flags uint32, exts []drm.ContextExtension) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_CONTEXT_CREATE_EXT); err != nil {
		return 0, err
	}
	if len(exts) > 0 {
		flags |= i915.I915_CONTEXT_CREATE_FLAGS_USE_EXTENSIONS
	}
	c := &Context{
		ID:         f.allocID(),
		Flags:      flags,
		Extensions: append([]drm.ContextExtension(nil), exts...),
		Params:     make(map[uint64]uint64),
	}
	for _, ext := range exts {
		if ext.Name == i915.I915_CONTEXT_CREATE_EXT_SETPARAM {
			c.Params[ext.Param.Param] = ext.Param.Value
		}
	}
	f.contexts[c.ID] = c
	return c.ID, nil
}

// DestroyContext implements drm.File.DestroyContext.
func (f *Fake) DestroyContext(ctxID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_CONTEXT_DESTROY); err != nil {
		return err
	}
	if _, ok := f.contexts[ctxID]; !ok {
		return unix.ENOENT
	}
	delete(f.contexts, ctxID)
	return nil
}

// GetContextParam implements drm.File.GetContextParam.
func (f *Fake) GetContextParam(ctxID uint32, param uint64) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_CONTEXT_GETPARAM); err != nil {
		return 0, err
	}
	if ctxID == 0 {
		v, ok := f.defaultParams[param]
		if !ok {
			return 0, unix.EINVAL
		}
		return v, nil
	}
	c, ok := f.contexts[ctxID]
	if !ok {
		return 0, unix.ENOENT
	}
	v, ok := c.Params[param]
	if !ok {
		return 0, unix.EINVAL
	}
	return v, nil
}

// SetContextParam implements drm.File.SetContextParam.
func (f *Fake) SetContextParam(p i915.ContextParam, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM); err != nil {
		return err
	}
	if err, ok := f.contextParamErrors[p.Param]; ok {
		return fmt.Errorf("%s(%s): %w", i915.IoctlName(i915.DRM_IOCTL_I915_GEM_CONTEXT_SETPARAM), i915.ContextParamName(p.Param), err)
	}
	c, ok := f.contexts[p.CtxID]
	if !ok {
		return unix.ENOENT
	}
	if p.Param == i915.I915_CONTEXT_PARAM_ENGINES {
		engines, err := i915.ParseContextEngines(data)
		if err != nil {
			return unix.EINVAL
		}
		c.Engines = engines
		return nil
	}
	c.Params[p.Param] = p.Value
	return nil
}

// CreateVM implements drm.File.CreateVM.
func (f *Fake) CreateVM(flags uint32) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_VM_CREATE); err != nil {
		return 0, err
	}
	id := f.allocID()
	f.vms[id] = true
	return id, nil
}

// DestroyVM implements drm.File.DestroyVM.
func (f *Fake) DestroyVM(vmID uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_VM_DESTROY); err != nil {
		return err
	}
	if !f.vms[vmID] {
		return unix.ENOENT
	}
	delete(f.vms, vmID)
	return nil
}

// CreateGem implements drm.File.CreateGem.
func (f *Fake) CreateGem(size uint64) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_CREATE); err != nil {
		return 0, err
	}
	return f.newGem(size, nil)
}

// CreateGemExt implements drm.File.CreateGemExt.
func (f *Fake) CreateGemExt(size uint64, regions []i915.MemoryClassInstance) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_I915_GEM_CREATE_EXT); err != nil {
		return 0, err
	}
	return f.newGem(size, append([]i915.MemoryClassInstance(nil), regions...))
}

func (f *Fake) newGem(size uint64, regions []i915.MemoryClassInstance) (uint32, error) {
	if size == 0 {
		return 0, unix.EINVAL
	}
	g := &Gem{Handle: f.allocID(), Size: size, Regions: regions}
	f.gems[g.Handle] = g
	return g.Handle, nil
}

// CloseGem implements drm.File.CloseGem.
func (f *Fake) CloseGem(handle uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin(i915.DRM_IOCTL_GEM_CLOSE); err != nil {
		return err
	}
	if _, ok := f.gems[handle]; !ok {
		return unix.ENOENT
	}
	delete(f.gems, handle)
	return nil
}

// Close implements drm.File.Close.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}
