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
	"gvisor.dev/gpudrm/pkg/gpu"
)

type memoryReport struct {
	Device          string             `json:"device" yaml:"device"`
	LocalMemorySize uint64             `json:"localMemorySize" yaml:"localMemorySize"`
	Regions         []gpu.RegionReport `json:"regions" yaml:"regions"`
}

// Memory implements subcommands.Command for the "memory" command.
type Memory struct{}

// Name implements subcommands.Command.Name.
func (*Memory) Name() string {
	return "memory"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Memory) Synopsis() string {
	return "print the memory regions of devices"
}

// Usage implements subcommands.Command.Usage.
func (*Memory) Usage() string {
	return `memory [flags] - print each memory region, its size and the tiles closest to it.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Memory) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Memory) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	devices, err := discover(ctx, conf)
	if err != nil {
		util.Fatalf("discovering devices: %v", err)
	}
	defer closeAll(devices)

	reports := make([]memoryReport, len(devices))
	for i, d := range devices {
		r := d.device.Snapshot()
		reports[i] = memoryReport{
			Device:          d.host.Name(),
			LocalMemorySize: r.Hardware.LocalMemorySize,
			Regions:         r.Regions,
		}
	}
	if err := writeOutput(os.Stdout, conf.Output, reports, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NODE\tCLASS\tINSTANCE\tSIZE\tFREE\tTILES")
		for _, r := range reports {
			for _, region := range r.Regions {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%#x\n", r.Device, region.Class, region.Instance, formatSize(region.ProbedSize), formatSize(region.UnallocatedSize), region.TileMask)
			}
		}
	}); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
