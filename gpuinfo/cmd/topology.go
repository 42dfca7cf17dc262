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
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
)

type topologyReport struct {
	Device   string                  `json:"device" yaml:"device"`
	System   gpu.GTSystemInfo        `json:"gtSystemInfo" yaml:"gtSystemInfo"`
	Topology ioctlhelper.TopologyMap `json:"topology" yaml:"topology"`
}

// Topology implements subcommands.Command for the "topology" command.
type Topology struct{}

// Name implements subcommands.Command.Name.
func (*Topology) Name() string {
	return "topology"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Topology) Synopsis() string {
	return "print the compute topology of devices"
}

// Usage implements subcommands.Command.Usage.
func (*Topology) Usage() string {
	return `topology [flags] - print slice, sub-slice and EU counts and the enabled slices of each tile.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Topology) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Topology) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
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

	reports := make([]topologyReport, len(devices))
	for i, d := range devices {
		r := d.device.Snapshot()
		reports[i] = topologyReport{
			Device:   d.host.Name(),
			System:   r.Hardware.GTSystemInfo,
			Topology: r.Topology,
		}
	}
	if err := writeOutput(os.Stdout, conf.Output, reports, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NODE\tTILE\tSLICES\tSUB-SLICES")
		for _, r := range reports {
			tiles := r.Topology.Tiles()
			if len(tiles) == 0 {
				fmt.Fprintf(tw, "%s\t-\t%d\t%d\n", r.Device, r.System.SliceCount, r.System.SubSliceCount)
				continue
			}
			for _, tile := range tiles {
				m := r.Topology[tile]
				fmt.Fprintf(tw, "%s\t%d\t%s\t%s\n", r.Device, tile, formatIndices(m.SliceIndices), formatIndices(m.SubsliceIndices))
			}
		}
	}); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
