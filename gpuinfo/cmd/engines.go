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
	"strings"
	"text/tabwriter"

	"github.com/google/subcommands"

	"gvisor.dev/gpudrm/gpuinfo/cmd/util"
	"gvisor.dev/gpudrm/gpuinfo/config"
	"gvisor.dev/gpudrm/pkg/gpu"
)

type enginesReport struct {
	Device  string             `json:"device" yaml:"device"`
	Engines []gpu.EngineReport `json:"engines" yaml:"engines"`
}

// Engines implements subcommands.Command for the "engines" command.
type Engines struct{}

// Name implements subcommands.Command.Name.
func (*Engines) Name() string {
	return "engines"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Engines) Synopsis() string {
	return "print the engines of devices and the tiles they belong to"
}

// Usage implements subcommands.Command.Usage.
func (*Engines) Usage() string {
	return `engines [flags] - print each engine, its tile and the engine types it serves.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*Engines) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*Engines) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
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

	reports := make([]enginesReport, len(devices))
	for i, d := range devices {
		reports[i] = enginesReport{Device: d.host.Name(), Engines: d.device.Snapshot().Engines}
	}
	if err := writeOutput(os.Stdout, conf.Output, reports, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NODE\tCLASS\tINSTANCE\tTILE\tTYPES\tCAPABILITIES")
		for _, r := range reports {
			for _, e := range r.Engines {
				tile := "-"
				if e.Tile >= 0 {
					tile = fmt.Sprint(e.Tile)
				}
				types := "-"
				if len(e.Types) > 0 {
					types = strings.Join(e.Types, ",")
				}
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%#x\n", r.Device, e.Class, e.Instance, tile, types, e.Capabilities)
			}
		}
	}); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
