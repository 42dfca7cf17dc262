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

package gpu

import (
	"bufio"
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"gvisor.dev/gpudrm/pkg/log"
)

// Default host locations.
const (
	DefaultSysfsRoot = "/sys"
	DefaultDevRoot   = "/dev/dri"
)

// i915DriverName is the kernel driver whose devices are enumerated.
const i915DriverName = "i915"

var (
	renderNodeRegexp = regexp.MustCompile(`^renderD([0-9]+)$`)
	cardRegexp       = regexp.MustCompile(`^card[0-9]+$`)
	gtRegexp         = regexp.MustCompile(`^gt([0-9]+)$`)
)

// HostDevice is an i915 device found in sysfs.
type HostDevice struct {
	// RenderMinor is the minor number of the render node, e.g. 128.
	RenderMinor int `json:"renderMinor" yaml:"renderMinor"`

	// RenderPath is the render node, e.g. /dev/dri/renderD128.
	RenderPath string `json:"renderPath" yaml:"renderPath"`

	// CardPath is the sysfs directory of the card node, e.g.
	// /sys/class/drm/card0. Empty if the device has no card node.
	CardPath string `json:"cardPath" yaml:"cardPath"`

	PCIAddress string `json:"pciAddress" yaml:"pciAddress"`
	VendorID   uint16 `json:"vendorId" yaml:"vendorId"`
	DeviceID   uint16 `json:"deviceId" yaml:"deviceId"`
	RevisionID uint16 `json:"revisionId" yaml:"revisionId"`
	Driver     string `json:"driver" yaml:"driver"`

	// MaxFrequencyMHz is the maximum GPU frequency, or 0 if unknown.
	MaxFrequencyMHz uint32 `json:"maxFrequencyMhz" yaml:"maxFrequencyMhz"`

	// TileMaxFrequencyMHz is the maximum frequency of each tile's GT.
	TileMaxFrequencyMHz []uint32 `json:"tileMaxFrequencyMhz,omitempty" yaml:"tileMaxFrequencyMhz,omitempty"`
}

// Name returns the render node name, e.g. renderD128.
func (d HostDevice) Name() string {
	return fmt.Sprintf("renderD%d", d.RenderMinor)
}

// Matches reports whether filter selects the device. filter is a render
// node name, a card name or a PCI address. The empty filter selects every
// device.
func (d HostDevice) Matches(filter string) bool {
	if filter == "" {
		return true
	}
	return filter == d.Name() || filter == d.PCIAddress || (d.CardPath != "" && filter == filepath.Base(d.CardPath))
}

// Enumerate returns the Intel devices bound to i915 under sysfsRoot, ordered
// by render node. Render node paths are placed under devRoot.
func Enumerate(fs afero.Fs, sysfsRoot, devRoot string) ([]HostDevice, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	drmDir := filepath.Join(sysfsRoot, "class", "drm")
	entries, err := afero.ReadDir(fs, drmDir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", drmDir, err)
	}

	var devices []HostDevice
	for _, entry := range entries {
		m := renderNodeRegexp.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		minor, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		d, err := readHostDevice(fs, drmDir, entry.Name())
		if err != nil {
			log.Warningf("Skipping %s: %v", entry.Name(), err)
			continue
		}
		if d.VendorID != IntelVendorID || d.Driver != i915DriverName {
			log.Debugf("Skipping %s: vendor %#04x, driver %q", entry.Name(), d.VendorID, d.Driver)
			continue
		}
		d.RenderMinor = minor
		d.RenderPath = filepath.Join(devRoot, entry.Name())
		devices = append(devices, d)
	}
	sort.Slice(devices, func(i, j int) bool {
		return devices[i].RenderMinor < devices[j].RenderMinor
	})
	return devices, nil
}

// readHostDevice reads the PCI description of a render node.
func readHostDevice(fs afero.Fs, drmDir, node string) (HostDevice, error) {
	deviceDir := filepath.Join(drmDir, node, "device")
	var (
		d   HostDevice
		err error
	)
	if d.VendorID, err = readHex16(fs, filepath.Join(deviceDir, "vendor")); err != nil {
		return HostDevice{}, err
	}
	if d.DeviceID, err = readHex16(fs, filepath.Join(deviceDir, "device")); err != nil {
		return HostDevice{}, err
	}
	if d.RevisionID, err = readHex16(fs, filepath.Join(deviceDir, "revision")); err != nil {
		log.Debugf("No revision for %s: %v", node, err)
	}
	uevent, err := afero.ReadFile(fs, filepath.Join(deviceDir, "uevent"))
	if err != nil {
		return HostDevice{}, fmt.Errorf("reading uevent: %w", err)
	}
	vars := parseUevent(uevent)
	d.Driver = vars["DRIVER"]
	d.PCIAddress = vars["PCI_SLOT_NAME"]

	// The card node sharing the PCI device is listed next to the render
	// node under device/drm.
	if siblings, err := afero.ReadDir(fs, filepath.Join(deviceDir, "drm")); err == nil {
		for _, s := range siblings {
			if cardRegexp.MatchString(s.Name()) {
				d.CardPath = filepath.Join(drmDir, s.Name())
				break
			}
		}
	}
	if d.CardPath != "" {
		d.MaxFrequencyMHz, d.TileMaxFrequencyMHz = readFrequencies(fs, d.CardPath)
	}
	return d, nil
}

// readFrequencies reads the device and per-tile maximum GPU frequencies of
// a card.
func readFrequencies(fs afero.Fs, cardPath string) (uint32, []uint32) {
	device, err := readUint32(fs, filepath.Join(cardPath, "gt_max_freq_mhz"))
	if err != nil {
		log.Debugf("No maximum frequency for %s: %v", cardPath, err)
	}
	entries, err := afero.ReadDir(fs, filepath.Join(cardPath, "gt"))
	if err != nil {
		return device, nil
	}
	var gts []int
	for _, e := range entries {
		if m := gtRegexp.FindStringSubmatch(e.Name()); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				gts = append(gts, n)
			}
		}
	}
	sort.Ints(gts)
	var tiles []uint32
	for _, gt := range gts {
		f, err := readUint32(fs, filepath.Join(cardPath, "gt", fmt.Sprintf("gt%d", gt), "rps_max_freq_mhz"))
		if err != nil {
			log.Debugf("No maximum frequency for gt%d of %s: %v", gt, cardPath, err)
		}
		tiles = append(tiles, f)
	}
	return device, tiles
}

func parseUevent(b []byte) map[string]string {
	vars := make(map[string]string)
	s := bufio.NewScanner(bytes.NewReader(b))
	for s.Scan() {
		if k, v, ok := strings.Cut(s.Text(), "="); ok {
			vars[k] = v
		}
	}
	return vars
}

func readHex16(fs afero.Fs, path string) (uint16, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(b)), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint16(v), nil
}

func readUint32(fs afero.Fs, path string) (uint32, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", path, err)
	}
	return uint32(v), nil
}
