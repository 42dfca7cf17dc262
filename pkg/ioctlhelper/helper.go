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

// Package ioctlhelper translates between the i915 kernel driver and the
// logical GPU model: engines, memory regions, tiles and compute topology.
//
// Kernels come in two dialects. Upstream kernels speak the mainline uAPI.
// Kernels built from the DII tree additionally speak the "prelim" uAPI,
// which adds distance queries, per-tile topology, debuggable contexts and
// run-alone contexts. A Helper implements one dialect and is chosen once
// per device by New.
package ioctlhelper

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/log"
)

var (
	// ErrMalformedResponse is returned when the kernel returns a response
	// that does not match its own layout. It indicates an ABI mismatch and
	// aborts device bring-up.
	ErrMalformedResponse = errors.New("malformed kernel response")

	// ErrMultiTileWithoutDistance is returned when a device reports more
	// than one local memory region but the kernel cannot report
	// engine-to-region distances.
	ErrMultiTileWithoutDistance = errors.New("multi-tile device without distance query support")

	// ErrNoTopology is returned when the kernel reports no usable compute
	// topology.
	ErrNoTopology = errors.New("no usable compute topology")

	// ErrNotSupported is returned for operations the kernel dialect lacks.
	ErrNotSupported = errors.New("not supported by kernel")
)

func malformed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, what, err)
}

// Variant identifies a kernel uAPI dialect.
type Variant int

// Variants.
const (
	VariantAuto Variant = iota
	VariantUpstream
	VariantPrelim
)

// String implements fmt.Stringer.
func (v Variant) String() string {
	switch v {
	case VariantAuto:
		return "auto"
	case VariantUpstream:
		return "upstream"
	case VariantPrelim:
		return "prelim"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// ParseVariant parses the String form of a Variant.
func ParseVariant(s string) (Variant, error) {
	switch s {
	case "", "auto":
		return VariantAuto, nil
	case "upstream":
		return VariantUpstream, nil
	case "prelim":
		return VariantPrelim, nil
	default:
		return 0, fmt.Errorf("invalid ioctl helper %q, must be one of auto, upstream, prelim", s)
	}
}

// DebuggingMode is the debugger attach mode of the process.
type DebuggingMode int

// Debugging modes.
const (
	DebuggingDisabled DebuggingMode = iota
	DebuggingOnline
	DebuggingOffline
)

// String implements fmt.Stringer.
func (m DebuggingMode) String() string {
	switch m {
	case DebuggingDisabled:
		return "disabled"
	case DebuggingOnline:
		return "online"
	case DebuggingOffline:
		return "offline"
	default:
		return fmt.Sprintf("debugging(%d)", int(m))
	}
}

// ParseDebuggingMode parses the String form of a DebuggingMode.
func ParseDebuggingMode(s string) (DebuggingMode, error) {
	switch s {
	case "", "disabled":
		return DebuggingDisabled, nil
	case "online":
		return DebuggingOnline, nil
	case "offline":
		return DebuggingOffline, nil
	default:
		return 0, fmt.Errorf("invalid debugging mode %q, must be one of disabled, online, offline", s)
	}
}

// Options configures New.
type Options struct {
	// Variant forces a dialect. VariantAuto detects it from sysfs.
	Variant Variant

	// Fs is the filesystem sysfs is read from. Nil means the host
	// filesystem.
	Fs afero.Fs

	// CardPath is the sysfs directory of the device's card node, e.g.
	// /sys/class/drm/card0. Used only for detection.
	CardPath string

	// DebuggingMode is the debugger attach mode of the process.
	DebuggingMode DebuggingMode
}

// Capabilities are the optional kernel features a Helper probed at
// construction.
type Capabilities struct {
	Preemption            bool
	NonPersistentContexts bool
	ContextDebug          bool
	VMBind                bool
}

// Helper is one kernel dialect.
type Helper interface {
	// Variant returns the dialect.
	Variant() Variant

	// File returns the render node the helper drives.
	File() drm.File

	// Capabilities returns the optional kernel features probed at
	// construction.
	Capabilities() Capabilities

	// GetParam returns a GETPARAM value.
	GetParam(param int32) (int32, error)

	// CreateMemoryInfo queries the memory regions. It returns nil without
	// error if the kernel does not report memory regions.
	CreateMemoryInfo() (*MemoryInfo, error)

	// CreateEngineInfo queries the engines and resolves which tile each
	// engine and memory region belongs to. It returns the engine info and
	// mem with regions assigned to tiles. The engine info is nil without
	// error if the kernel does not report engines.
	CreateEngineInfo(mem *MemoryInfo, sysman bool) (*EngineInfo, *MemoryInfo, error)

	// QueryDistances fills in the Distance and Err fields of infos.
	QueryDistances(infos []DistanceInfo) error

	// GetTopologyDataAndMap queries the compute topology. engines may be
	// nil. On ErrNoTopology the returned data holds whatever was decoded.
	GetTopologyDataAndMap(engines *EngineInfo) (TopologyData, TopologyMap, error)

	// CreateDrmContext creates a context for desc on tile deviceIndex,
	// bound to VM vmID if it is not zero.
	CreateDrmContext(env ContextEnv, desc ContextDescriptor, vmID, deviceIndex uint32) (Context, error)

	// DestroyContext destroys a context.
	DestroyContext(ctxID uint32) error

	// CreateVM creates a GPU virtual address space.
	CreateVM() (uint32, error)

	// DestroyVM destroys a GPU virtual address space.
	DestroyVM(vmID uint32) error

	// CreateGem creates a buffer object of size bytes placed in the local
	// memory of the tiles in memoryBanks, or in default memory if
	// memoryBanks is zero.
	CreateGem(mem *MemoryInfo, size uint64, memoryBanks uint32) (uint32, error)

	// CloseGem releases a buffer object.
	CloseGem(handle uint32) error

	// IoctlRequestString returns the name of an ioctl request.
	IoctlRequestString(req uint32) string

	// DrmParamString returns the name of a GETPARAM parameter.
	DrmParamString(param int32) string
}

// prelimVersionFile exists in the card's sysfs directory on kernels that
// speak the prelim uAPI.
const prelimVersionFile = "prelim_uapi_version"

// Detect returns the dialect of the kernel driving the card at cardPath.
func Detect(fs afero.Fs, cardPath string) Variant {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if cardPath == "" {
		return VariantUpstream
	}
	ok, err := afero.Exists(fs, filepath.Join(cardPath, prelimVersionFile))
	if err != nil {
		log.Warningf("Checking %s for prelim uAPI: %v", cardPath, err)
		return VariantUpstream
	}
	if ok {
		return VariantPrelim
	}
	return VariantUpstream
}

// New returns the Helper for the kernel behind f and probes its
// capabilities.
func New(f drm.File, opts Options) (Helper, error) {
	v := opts.Variant
	if v == VariantAuto {
		v = Detect(opts.Fs, opts.CardPath)
	}
	c := common{file: f, opts: opts}
	var h Helper
	switch v {
	case VariantUpstream:
		u := &Upstream{common: c}
		u.caps = u.probe()
		h = u
	case VariantPrelim:
		p := &Prelim{common: c}
		p.caps = p.probe()
		h = p
	default:
		return nil, fmt.Errorf("unknown ioctl helper variant %v", v)
	}
	log.Infof("Using %v ioctl helper, capabilities %+v", v, h.Capabilities())
	return h, nil
}

// common is the part of a Helper shared by all dialects.
type common struct {
	file drm.File
	opts Options
	caps Capabilities
}

// File implements Helper.File.
func (c *common) File() drm.File {
	return c.file
}

// Capabilities implements Helper.Capabilities.
func (c *common) Capabilities() Capabilities {
	return c.caps
}

// GetParam implements Helper.GetParam.
func (c *common) GetParam(param int32) (int32, error) {
	v, err := c.file.GetParam(param)
	if err != nil {
		return 0, err
	}
	log.Debugf("%s = %d", i915.ParamName(param), v)
	return v, nil
}

// IoctlRequestString implements Helper.IoctlRequestString.
func (c *common) IoctlRequestString(req uint32) string {
	return i915.IoctlName(req)
}

// DrmParamString implements Helper.DrmParamString.
func (c *common) DrmParamString(param int32) string {
	return i915.ParamName(param)
}

// probeCommon fills the capabilities every dialect probes the same way.
func (c *common) probeCommon() Capabilities {
	var caps Capabilities
	if sched, err := c.file.GetParam(i915.I915_PARAM_HAS_SCHEDULER); err == nil {
		caps.Preemption = sched&i915.I915_SCHEDULER_CAP_PREEMPTION != 0
	} else {
		log.Debugf("%s unavailable: %v", i915.ParamName(i915.I915_PARAM_HAS_SCHEDULER), err)
	}
	// The default context always exists; probing its persistence tells
	// whether the kernel lets contexts opt out of it.
	if _, err := c.file.GetContextParam(0, i915.I915_CONTEXT_PARAM_PERSISTENCE); err == nil {
		caps.NonPersistentContexts = true
	}
	return caps
}
