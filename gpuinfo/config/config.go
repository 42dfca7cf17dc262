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

// Package config holds the configuration of the gpuinfo tool.
package config

import (
	"fmt"

	"gvisor.dev/gpudrm/pkg/gpu"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
)

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
	OutputYAML = "yaml"
)

// Config holds configuration that is not part of the device itself.
//
// Fields tagged with `flag` are populated from the flag of that name, which
// a configuration file may also set.
type Config struct {
	// ConfigFile is a TOML file whose keys are flag names. Flags given on
	// the command line take precedence over the file.
	ConfigFile string `flag:"config"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format"`

	// SysfsRoot is where sysfs is mounted.
	SysfsRoot string `flag:"sysfs-root"`

	// DevRoot holds the DRM device nodes.
	DevRoot string `flag:"dev-root"`

	// Device selects the devices to inspect by render node name, card name
	// or PCI address. Empty selects every device.
	Device string `flag:"device"`

	// IoctlHelper selects the kernel uAPI dialect: auto, upstream or
	// prelim.
	IoctlHelper string `flag:"ioctl-helper"`

	// DebuggingMode is the debugger attach mode contexts are created for:
	// disabled, online or offline.
	DebuggingMode string `flag:"debugging-mode"`

	// Sysman resolves video engines to tiles as well.
	Sysman bool `flag:"sysman"`

	// IoctlMaxRestarts bounds the re-issue of interrupted ioctls. 0 uses
	// the default.
	IoctlMaxRestarts uint64 `flag:"ioctl-max-restarts"`

	// Output is the output format: text, json or yaml.
	Output string `flag:"output"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("invalid log format %q, must be one of text, json", c.LogFormat)
	}
	switch c.Output {
	case OutputText, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("invalid output format %q, must be one of %s, %s, %s", c.Output, OutputText, OutputJSON, OutputYAML)
	}
	if _, err := ioctlhelper.ParseVariant(c.IoctlHelper); err != nil {
		return err
	}
	if _, err := ioctlhelper.ParseDebuggingMode(c.DebuggingMode); err != nil {
		return err
	}
	return nil
}

// ToHelperOptions returns the ioctl helper options of c. c must be valid.
func (c *Config) ToHelperOptions() ioctlhelper.Options {
	variant, _ := ioctlhelper.ParseVariant(c.IoctlHelper)
	mode, _ := ioctlhelper.ParseDebuggingMode(c.DebuggingMode)
	return ioctlhelper.Options{
		Variant:       variant,
		DebuggingMode: mode,
	}
}

// ToDeviceOptions returns the device bring-up options of c.
func (c *Config) ToDeviceOptions() gpu.Options {
	return gpu.Options{Sysman: c.Sysman}
}

// ToOpenOptions returns the options gpu.Open is called with.
func (c *Config) ToOpenOptions() gpu.OpenOptions {
	return gpu.OpenOptions{
		Device:      c.ToDeviceOptions(),
		Helper:      c.ToHelperOptions(),
		MaxRestarts: c.IoctlMaxRestarts,
	}
}
