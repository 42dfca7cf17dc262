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

type deviceReport struct {
	Device gpu.HostDevice `json:"device" yaml:"device"`
	Report gpu.Report     `json:"report" yaml:"report"`
}

// Info implements subcommands.Command for the "info" command.
type Info struct{}

// Name implements subcommands.Command.Name.
func (*Info) Name() string {
	return "info"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Info) Synopsis() string {
	return "discover devices and print everything found"
}

// Usage implements subcommands.Command.Usage.
func (*Info) Usage() string {
	return `info [flags] - open each selected device, discover its hardware, memory, engines and topology, and print them.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Info) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Info) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
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

	reports := make([]deviceReport, len(devices))
	for i, d := range devices {
		reports[i] = deviceReport{Device: d.host, Report: d.device.Snapshot()}
	}
	if err := writeOutput(os.Stdout, conf.Output, reports, func(tw *tabwriter.Writer) {
		for _, r := range reports {
			hw := r.Report.Hardware
			gt := hw.GTSystemInfo
			fmt.Fprintf(tw, "%s\t%s (%s, IP %s)\n", r.Device.Name(), hw.Platform.Product.Name, hw.Platform.Product.Family, hw.Platform.Product.IP)
			fmt.Fprintf(tw, "  backend\t%s\n", r.Report.Backend)
			fmt.Fprintf(tw, "  device id\t%#04x rev %d\n", hw.Platform.DeviceID, hw.Platform.RevisionID)
			fmt.Fprintf(tw, "  slices\t%d (max %d)\n", gt.SliceCount, gt.MaxSliceCount)
			fmt.Fprintf(tw, "  sub-slices\t%d (max %d)\n", gt.SubSliceCount, gt.MaxSubSliceCount)
			fmt.Fprintf(tw, "  EUs\t%d (max %d per sub-slice)\n", gt.EUCount, gt.MaxEUPerSubSlice)
			fmt.Fprintf(tw, "  CCS\t%d\n", gt.CCSCount)
			fmt.Fprintf(tw, "  tiles\t%d (mask %#x)\n", gt.MultiTile.TileCount, gt.MultiTile.TileMask)
			fmt.Fprintf(tw, "  local memory\t%s\n", formatSize(hw.LocalMemorySize))
			fmt.Fprintf(tw, "  timestamp\t%d Hz\n", hw.TimestampFrequency)
			fmt.Fprintf(tw, "  capabilities\t%+v\n", hw.Capabilities)
			fmt.Fprintf(tw, "  regions\t%d\n", len(r.Report.Regions))
			fmt.Fprintf(tw, "  engines\t%d\n", len(r.Report.Engines))
		}
	}); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
