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

// List implements subcommands.Command for the "list" command.
type List struct{}

// Name implements subcommands.Command.Name.
func (*List) Name() string {
	return "list"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*List) Synopsis() string {
	return "list i915 devices on the host"
}

// Usage implements subcommands.Command.Usage.
func (*List) Usage() string {
	return `list [flags] - list i915 devices on the host without opening them.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (*List) SetFlags(*flag.FlagSet) {}

// Execute implements subcommands.Command.Execute.
func (*List) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	conf := args[0].(*config.Config)

	devices, err := selectDevices(conf)
	if err != nil {
		util.Fatalf("listing devices: %v", err)
	}
	if err := writeOutput(os.Stdout, conf.Output, devices, func(tw *tabwriter.Writer) {
		fmt.Fprintln(tw, "NODE\tCARD\tPCI\tDEVICE\tREV\tPRODUCT\tMAX MHZ")
		for _, d := range devices {
			product, ok := gpu.LookupProduct(d.DeviceID)
			name := product.Name
			if !ok {
				name = "unknown"
			}
			card := "-"
			if d.CardPath != "" {
				card = d.CardPath
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%#04x\t%d\t%s\t%d\n", d.Name(), card, d.PCIAddress, d.DeviceID, d.RevisionID, name, d.MaxFrequencyMHz)
		}
	}); err != nil {
		util.Fatalf("writing output: %v", err)
	}
	return subcommands.ExitSuccess
}
