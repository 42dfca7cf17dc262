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

// Package cmd holds implementations of the gpuinfo commands.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"gvisor.dev/gpudrm/gpuinfo/config"
	"gvisor.dev/gpudrm/pkg/gpu"
	"gvisor.dev/gpudrm/pkg/log"
)

// selectDevices enumerates the host devices conf selects.
func selectDevices(conf *config.Config) ([]gpu.HostDevice, error) {
	all, err := gpu.Enumerate(nil, conf.SysfsRoot, conf.DevRoot)
	if err != nil {
		return nil, err
	}
	var devices []gpu.HostDevice
	for _, d := range all {
		if d.Matches(conf.Device) {
			devices = append(devices, d)
		}
	}
	if len(devices) == 0 {
		if conf.Device != "" {
			return nil, fmt.Errorf("no i915 device matches %q", conf.Device)
		}
		return nil, fmt.Errorf("no i915 devices under %s", conf.SysfsRoot)
	}
	return devices, nil
}

// discoveredDevice is a host device brought up for inspection.
type discoveredDevice struct {
	host   gpu.HostDevice
	device *gpu.Device
}

// discover brings up every device conf selects. The caller must close the
// devices.
func discover(ctx context.Context, conf *config.Config) ([]discoveredDevice, error) {
	hosts, err := selectDevices(conf)
	if err != nil {
		return nil, err
	}
	opts := conf.ToOpenOptions()
	devices, err := gpu.DiscoverAll(ctx, hosts, func(ctx context.Context, hd gpu.HostDevice) (*gpu.Device, error) {
		return gpu.Open(ctx, hd, opts)
	})
	if err != nil {
		return nil, err
	}
	out := make([]discoveredDevice, len(devices))
	for i, d := range devices {
		out[i] = discoveredDevice{host: hosts[i], device: d}
	}
	return out, nil
}

func closeAll(devices []discoveredDevice) {
	for _, d := range devices {
		if err := d.device.Close(); err != nil {
			log.Warningf("Closing %s: %v", d.host.Name(), err)
		}
	}
}

// writeOutput writes v to w in the given format. Text output is produced by
// text, which writes to a tabwriter.
func writeOutput(w io.Writer, format string, v any, text func(tw *tabwriter.Writer)) error {
	switch format {
	case config.OutputJSON:
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling JSON: %w", err)
		}
		b = append(b, '\n')
		_, err = w.Write(b)
		return err
	case config.OutputYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("marshaling YAML: %w", err)
		}
		return enc.Close()
	default:
		tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
		text(tw)
		return tw.Flush()
	}
}

// formatSize formats a byte count in binary units.
func formatSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit && exp < 4; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTP"[exp])
}

// formatIndices formats a list of indices, or "-" if it is empty.
func formatIndices(indices []int) string {
	if len(indices) == 0 {
		return "-"
	}
	return fmt.Sprint(indices)
}
