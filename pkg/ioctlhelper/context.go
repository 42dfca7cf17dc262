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

	"gvisor.dev/gpudrm/pkg/abi/i915"
	"gvisor.dev/gpudrm/pkg/cleanup"
	"gvisor.dev/gpudrm/pkg/drm"
	"gvisor.dev/gpudrm/pkg/log"
)

// ContextDescriptor describes the context a caller wants.
type ContextDescriptor struct {
	// EngineType is the engine the context submits to.
	EngineType EngineType

	// Internal marks contexts used by the runtime itself. They are never
	// debuggable.
	Internal bool

	// Cooperative requests a context that runs alone on its engine.
	Cooperative bool

	// LowPriority requests the lowest user priority. Ignored without
	// preemption.
	LowPriority bool
}

// ContextEnv is the discovered device state context creation depends on.
type ContextEnv struct {
	// Engines is the device's engine info. May be nil.
	Engines *EngineInfo

	// NumCCS is the number of enabled compute engines.
	NumCCS int
}

// Context is a created context.
type Context struct {
	ID uint32

	// ExecFlag is the execbuffer engine selector for the context.
	ExecFlag uint64

	Debuggable  bool
	Cooperative bool
}

// contextDialect is the dialect-specific part of context creation.
type contextDialect interface {
	// longRunningFlag returns the create flag requested when VM bind is
	// available.
	longRunningFlag() uint32

	// cooperativeExtension returns the create extension that makes a
	// context run alone.
	cooperativeExtension() (drm.ContextExtension, error)

	// setContextDebugFlag marks a context debuggable.
	setContextDebugFlag(ctxID uint32) error
}

// setContextParam sets one scalar context parameter.
func setContextParam(f drm.File, ctxID uint32, param, value uint64) error {
	if err := f.SetContextParam(i915.ContextParam{CtxID: ctxID, Param: param, Value: value}, nil); err != nil {
		return fmt.Errorf("setting %s on context %d: %w", i915.ContextParamName(param), ctxID, err)
	}
	return nil
}

// createDrmContext creates a context and applies every attribute desc and
// the device call for. A context whose attributes cannot all be applied is
// destroyed.
func createDrmContext(f drm.File, d contextDialect, caps Capabilities, mode DebuggingMode, env ContextEnv, desc ContextDescriptor, vmID, deviceIndex uint32) (Context, error) {
	debuggable := caps.ContextDebug && mode != DebuggingDisabled && !desc.Internal
	debugCooperative := mode != DebuggingOffline && debuggable && env.NumCCS > 0
	cooperative := desc.Cooperative || debugCooperative

	var flags uint32
	if caps.VMBind {
		flags |= d.longRunningFlag()
	}
	var exts []drm.ContextExtension
	if vmID > 0 {
		exts = append(exts, drm.ContextExtension{
			Name:  i915.I915_CONTEXT_CREATE_EXT_SETPARAM,
			Param: i915.ContextParam{Param: i915.I915_CONTEXT_PARAM_VM, Value: uint64(vmID)},
		})
	}
	if cooperative {
		ext, err := d.cooperativeExtension()
		if err != nil {
			return Context{}, fmt.Errorf("creating cooperative context: %w", err)
		}
		exts = append(exts, ext)
	}

	id, err := f.CreateContext(flags, exts)
	if err != nil {
		return Context{}, fmt.Errorf("creating context: %w", err)
	}
	var cu cleanup.Cleanup
	cu.AddRelease(fmt.Sprintf("context %d", id), func() error { return f.DestroyContext(id) })
	defer cu.Clean()

	if caps.NonPersistentContexts {
		if err := setContextParam(f, id, i915.I915_CONTEXT_PARAM_PERSISTENCE, 0); err != nil {
			return Context{}, err
		}
	}
	if err := setContextParam(f, id, i915.I915_CONTEXT_PARAM_RECOVERABLE, 0); err != nil {
		return Context{}, err
	}
	if debuggable {
		if err := d.setContextDebugFlag(id); err != nil {
			return Context{}, err
		}
	}
	if caps.Preemption && desc.LowPriority {
		priority := int64(i915.I915_CONTEXT_MIN_USER_PRIORITY)
		if err := setContextParam(f, id, i915.I915_CONTEXT_PARAM_PRIORITY, uint64(priority)); err != nil {
			return Context{}, err
		}
	}
	execFlag, err := bindDrmContext(f, env.Engines, id, deviceIndex, desc.EngineType)
	if err != nil {
		return Context{}, err
	}

	cu.Release()
	log.Debugf("Created context %d for %v on tile %d (vm %d, debuggable %t, cooperative %t)", id, desc.EngineType, deviceIndex, vmID, debuggable, cooperative)
	return Context{
		ID:          id,
		ExecFlag:    execFlag,
		Debuggable:  debuggable,
		Cooperative: cooperative,
	}, nil
}

// bindDrmContext gives a context an engine map holding the engine of type t
// on tile deviceIndex and returns the execbuffer selector for it. Without
// such an engine the context keeps the legacy ring map.
func bindDrmContext(f drm.File, engines *EngineInfo, ctxID, deviceIndex uint32, t EngineType) (uint64, error) {
	if engines == nil {
		return t.LegacyExecFlag(), nil
	}
	engine, ok := engines.EngineInstance(int(deviceIndex), t)
	if !ok {
		return t.LegacyExecFlag(), nil
	}
	p := i915.ContextParam{CtxID: ctxID, Param: i915.I915_CONTEXT_PARAM_ENGINES}
	if err := f.SetContextParam(p, i915.EncodeContextEngines([]i915.EngineClassInstance{engine})); err != nil {
		return 0, fmt.Errorf("binding context %d to %v: %w", ctxID, engine, err)
	}
	// The engine is at index 0 of the context's map.
	return i915.I915_EXEC_DEFAULT, nil
}
