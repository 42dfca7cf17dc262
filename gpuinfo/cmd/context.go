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

package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"

	"gvisor.dev/gpudrm/gpuinfo/cmd/util"
	"gvisor.dev/gpudrm/gpuinfo/config"
	"gvisor.dev/gpudrm/pkg/cleanup"
	"gvisor.dev/gpudrm/pkg/gpu"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
	"gvisor.dev/gpudrm/pkg/log"
)

// Context implements subcommands.Command for the "context" command.
type Context struct {
	engine      string
	tile        uint
	vm          bool
	gemSize     uint64
	internal    bool
	cooperative bool
	lowPriority bool
}

// Name implements subcommands.Command.Name.
func (*Context) Name() string {
	return "context"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Context) Synopsis() string {
	return "create and destroy a context to check the kernel accepts it"
}

// Usage implements subcommands.Command.Usage.
func (*Context) Usage() string {
	return `context [flags] - create a context on one engine of one tile, optionally with a VM and a buffer object in the tile's memory, print it and release everything.

Exactly one device must be selected.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Context) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.engine, "engine", ioctlhelper.EngineCCS.String(), "engine type the context submits to, e.g. rcs, bcs, ccs1.")
	f.UintVar(&c.tile, "tile", 0, "tile the engine is taken from.")
	f.BoolVar(&c.vm, "vm", false, "create a VM and bind the context to it.")
	f.Uint64Var(&c.gemSize, "gem-size", 0, "if not zero, also create a buffer object of this size in the tile's local memory.")
	f.BoolVar(&c.internal, "internal", false, "create an internal context, which is never debuggable.")
	f.BoolVar(&c.cooperative, "cooperative", false, "request a context that runs alone on its engine.")
	f.BoolVar(&c.lowPriority, "low-priority", false, "request the lowest user priority.")
}

// contextReport describes the resources a context check created.
type contextReport struct {
	Device    string              `json:"device" yaml:"device"`
	Engine    string              `json:"engine" yaml:"engine"`
	Tile      uint32              `json:"tile" yaml:"tile"`
	Context   ioctlhelper.Context `json:"context" yaml:"context"`
	VM        uint32              `json:"vm,omitempty" yaml:"vm,omitempty"`
	GemHandle uint32              `json:"gemHandle,omitempty" yaml:"gemHandle,omitempty"`
}

// Execute implements subcommands.Command.Execute.
func (c *Context) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	engine, err := ioctlhelper.ParseEngineType(c.engine)
	if err != nil {
		util.Fatalf("%v", err)
	}
	devices, err := discover(ctx, conf)
	if err != nil {
		util.Fatalf("discovering devices: %v", err)
	}
	defer closeAll(devices)
	if len(devices) != 1 {
		return util.Errorf("%d devices selected, use --device to select one", len(devices))
	}

	d := devices[0]
	r, err := c.check(d.device, engine)
	if err != nil {
		return util.Errorf("%s: %v", d.host.Name(), err)
	}
	r.Device = d.host.Name()
	if err := writeOutput(os.Stdout, conf.Output, r, func(tw *tabwriter.Writer) {
		fmt.Fprintf(tw, "device\t%s\n", r.Device)
		fmt.Fprintf(tw, "engine\t%s on tile %d\n", r.Engine, r.Tile)
		fmt.Fprintf(tw, "context\t%d\n", r.Context.ID)
		fmt.Fprintf(tw, "exec flag\t%#x\n", r.Context.ExecFlag)
		fmt.Fprintf(tw, "debuggable\t%t\n", r.Context.Debuggable)
		fmt.Fprintf(tw, "cooperative\t%t\n", r.Context.Cooperative)
		if r.VM != 0 {
			fmt.Fprintf(tw, "vm\t%d\n", r.VM)
		}
		if r.GemHandle != 0 {
			fmt.Fprintf(tw, "gem\t%d\n", r.GemHandle)
		}
	}); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// check creates the resources c asks for on d, then releases them.
func (c *Context) check(d *gpu.Device, engine ioctlhelper.EngineType) (contextReport, error) {
	h, ok := d.Helper()
	if !ok {
		return contextReport{}, fmt.Errorf("contexts on %v devices: %w", d.Kind(), ioctlhelper.ErrNotSupported)
	}
	tiles := max(d.EngineInfo().TileCount(), 1)
	if c.tile >= uint(tiles) {
		return contextReport{}, fmt.Errorf("tile %d out of range, device has %d tile(s)", c.tile, tiles)
	}
	r := contextReport{Engine: engine.String(), Tile: uint32(c.tile)}

	var cu cleanup.Cleanup
	defer cu.Clean()

	if c.vm {
		vm, err := h.CreateVM()
		if err != nil {
			return contextReport{}, err
		}
		cu.AddRelease(fmt.Sprintf("VM %d", vm), func() error { return h.DestroyVM(vm) })
		r.VM = vm
	}

	desc := ioctlhelper.ContextDescriptor{
		EngineType:  engine,
		Internal:    c.internal,
		Cooperative: c.cooperative,
		LowPriority: c.lowPriority,
	}
	created, err := d.CreateContext(desc, r.VM, r.Tile)
	if err != nil {
		return contextReport{}, err
	}
	cu.AddRelease(fmt.Sprintf("context %d", created.ID), func() error { return h.DestroyContext(created.ID) })
	r.Context = created

	if c.gemSize > 0 {
		handle, err := h.CreateGem(d.MemoryInfo(), c.gemSize, 1<<r.Tile)
		if err != nil {
			return contextReport{}, err
		}
		cu.AddRelease(fmt.Sprintf("buffer object %d", handle), func() error { return h.CloseGem(handle) })
		r.GemHandle = handle
	}
	log.Infof("Created context %d on %v tile %d", created.ID, engine, r.Tile)
	return r, nil
}
