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

package config

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"gvisor.dev/gpudrm/pkg/gpu"
	"gvisor.dev/gpudrm/pkg/ioctlhelper"
)

func newFlagSet() *flag.FlagSet {
	testFlags := flag.NewFlagSet("test", flag.ContinueOnError)
	RegisterFlags(testFlags)
	return testFlags
}

func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gpuinfo.toml")
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefault(t *testing.T) {
	c, err := NewFromFlags(newFlagSet())
	if err != nil {
		t.Fatal(err)
	}
	// All defaults doesn't require setting flags.
	if flags := c.ToFlags(); len(flags) > 0 {
		t.Errorf("default flags not set correctly for: %s", flags)
	}
	if c.SysfsRoot != gpu.DefaultSysfsRoot || c.DevRoot != gpu.DefaultDevRoot {
		t.Errorf("SysfsRoot, DevRoot = %q, %q", c.SysfsRoot, c.DevRoot)
	}
}

func TestFromFlags(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--debug", "--device=renderD129", "--ioctl-helper=prelim", "--ioctl-max-restarts=7", "--output=yaml"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if want := true; c.Debug != want {
		t.Errorf("Debug=%v, want: %v", c.Debug, want)
	}
	if want := "renderD129"; c.Device != want {
		t.Errorf("Device=%v, want: %v", c.Device, want)
	}
	if want := "prelim"; c.IoctlHelper != want {
		t.Errorf("IoctlHelper=%v, want: %v", c.IoctlHelper, want)
	}
	if want := uint64(7); c.IoctlMaxRestarts != want {
		t.Errorf("IoctlMaxRestarts=%v, want: %v", c.IoctlMaxRestarts, want)
	}
	if want := OutputYAML; c.Output != want {
		t.Errorf("Output=%v, want: %v", c.Output, want)
	}
}

func TestToFlagsFromFlags(t *testing.T) {
	args := []string{"--debug=true", "--debugging-mode=online", "--sysman=true", "--output=json"}
	testFlags := newFlagSet()
	if err := testFlags.Parse(args); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(args, c.ToFlags()); diff != "" {
		t.Errorf("ToFlags mismatch (-want +got):\n%s", diff)
	}
}

func TestInvalidFlags(t *testing.T) {
	for _, tc := range []struct {
		name  string
		value string
		error string
	}{
		{
			name:  "log-format",
			value: "xml",
			error: "invalid log format",
		},
		{
			name:  "output",
			value: "csv",
			error: "invalid output format",
		},
		{
			name:  "ioctl-helper",
			value: "xe",
			error: "invalid ioctl helper",
		},
		{
			name:  "debugging-mode",
			value: "attached",
			error: "invalid debugging mode",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Lookup(tc.name).Value.Set(tc.value); err != nil {
				t.Errorf("Flag set: %v", err)
			}
			_, err := NewFromFlags(testFlags)
			if err == nil || !strings.Contains(err.Error(), tc.error) {
				t.Errorf("NewFromFlags() wrong error: %v, want: %q", err, tc.error)
			}
		})
	}
}

func TestConfigFile(t *testing.T) {
	path := writeConfig(t, `
device = "0000:3a:00.0"
output = "yaml"
sysman = true
ioctl-max-restarts = 32
ioctl-helper = "prelim"
`)
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--config=" + path, "--output=json"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	c, err := NewFromFlags(testFlags)
	if err != nil {
		t.Fatal(err)
	}
	want := &Config{
		ConfigFile:       path,
		LogFormat:        "text",
		SysfsRoot:        gpu.DefaultSysfsRoot,
		DevRoot:          gpu.DefaultDevRoot,
		Device:           "0000:3a:00.0",
		IoctlHelper:      "prelim",
		DebuggingMode:    "disabled",
		Sysman:           true,
		IoctlMaxRestarts: 32,
		// The command line wins over the file.
		Output: OutputJSON,
	}
	if diff := cmp.Diff(want, c); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigFileErrors(t *testing.T) {
	for _, tc := range []struct {
		name  string
		data  string
		error string
	}{
		{
			name:  "unknown flag",
			data:  `platform = "kvm"`,
			error: `unknown flag "platform"`,
		},
		{
			name:  "bad value",
			data:  `sysman = "sometimes"`,
			error: "setting sysman=sometimes",
		},
		{
			name:  "nested config",
			data:  `config = "/etc/other.toml"`,
			error: "cannot be set from a file",
		},
		{
			name:  "syntax",
			data:  `output = `,
			error: "reading config file",
		},
		{
			name:  "invalid after load",
			data:  `output = "csv"`,
			error: "invalid output format",
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			testFlags := newFlagSet()
			if err := testFlags.Parse([]string{"--config=" + writeConfig(t, tc.data)}); err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			_, err := NewFromFlags(testFlags)
			if err == nil || !strings.Contains(err.Error(), tc.error) {
				t.Errorf("NewFromFlags() wrong error: %v, want: %q", err, tc.error)
			}
		})
	}
}

func TestMissingConfigFile(t *testing.T) {
	testFlags := newFlagSet()
	if err := testFlags.Parse([]string{"--config=" + filepath.Join(t.TempDir(), "missing.toml")}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, err := NewFromFlags(testFlags); err == nil {
		t.Errorf("NewFromFlags() succeeded with a missing config file")
	}
}

func TestToOpenOptions(t *testing.T) {
	c := &Config{
		IoctlHelper:      "upstream",
		DebuggingMode:    "offline",
		Sysman:           true,
		IoctlMaxRestarts: 5,
	}
	want := gpu.OpenOptions{
		Device: gpu.Options{Sysman: true},
		Helper: ioctlhelper.Options{
			Variant:       ioctlhelper.VariantUpstream,
			DebuggingMode: ioctlhelper.DebuggingOffline,
		},
		MaxRestarts: 5,
	}
	if diff := cmp.Diff(want, c.ToOpenOptions()); diff != "" {
		t.Errorf("ToOpenOptions mismatch (-want +got):\n%s", diff)
	}
}
