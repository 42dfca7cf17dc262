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
	"fmt"
)

// Family is an Intel graphics product family.
type Family int

// Product families.
const (
	FamilyUnknown Family = iota
	FamilyTGL
	FamilyDG1
	FamilyADLS
	FamilyADLP
	FamilyDG2
	FamilyPVC
	FamilyMTL
	FamilyARL
	FamilyLNL
	FamilyBMG
)

var familyNames = map[Family]string{
	FamilyUnknown: "unknown",
	FamilyTGL:     "tgl",
	FamilyDG1:     "dg1",
	FamilyADLS:    "adls",
	FamilyADLP:    "adlp",
	FamilyDG2:     "dg2",
	FamilyPVC:     "pvc",
	FamilyMTL:     "mtl",
	FamilyARL:     "arl",
	FamilyLNL:     "lnl",
	FamilyBMG:     "bmg",
}

// String implements fmt.Stringer.
func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// IPVersion is a graphics IP version, e.g. 12.55.
type IPVersion struct {
	Architecture uint8 `json:"architecture" yaml:"architecture"`
	Release      uint8 `json:"release" yaml:"release"`
}

// String implements fmt.Stringer.
func (v IPVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Architecture, v.Release)
}

// Product is the static description of a PCI device id.
type Product struct {
	Family Family    `json:"family" yaml:"family"`
	Name   string    `json:"name" yaml:"name"`
	IP     IPVersion `json:"ip" yaml:"ip"`

	// Discrete is set for products with device-local memory.
	Discrete bool `json:"discrete" yaml:"discrete"`

	// DefaultCCSCount is the number of compute engines enabled per tile
	// when the kernel does not report engines.
	DefaultCCSCount int `json:"defaultCcsCount" yaml:"defaultCcsCount"`

	// MaxTiles is the largest tile count the product ships with.
	MaxTiles int `json:"maxTiles" yaml:"maxTiles"`
}

// IntelVendorID is the PCI vendor id of Intel.
const IntelVendorID = 0x8086

// products maps PCI device ids to products. It is never modified after
// initialization.
var products = map[uint16]Product{
	0x9a40: {Family: FamilyTGL, Name: "Intel Iris Xe Graphics (TGL GT2)", IP: IPVersion{12, 0}, MaxTiles: 1},
	0x9a49: {Family: FamilyTGL, Name: "Intel Iris Xe Graphics (TGL GT2)", IP: IPVersion{12, 0}, MaxTiles: 1},
	0x9a60: {Family: FamilyTGL, Name: "Intel UHD Graphics (TGL GT1)", IP: IPVersion{12, 0}, MaxTiles: 1},

	0x4905: {Family: FamilyDG1, Name: "Intel Iris Xe MAX Graphics (DG1)", IP: IPVersion{12, 10}, Discrete: true, MaxTiles: 1},
	0x4906: {Family: FamilyDG1, Name: "Intel Iris Xe Pod (DG1)", IP: IPVersion{12, 10}, Discrete: true, MaxTiles: 1},
	0x4908: {Family: FamilyDG1, Name: "Intel Iris Xe Graphics (DG1)", IP: IPVersion{12, 10}, Discrete: true, MaxTiles: 1},

	0x4680: {Family: FamilyADLS, Name: "Intel UHD Graphics 770 (ADL-S)", IP: IPVersion{12, 0}, MaxTiles: 1},
	0x4692: {Family: FamilyADLS, Name: "Intel UHD Graphics 730 (ADL-S)", IP: IPVersion{12, 0}, MaxTiles: 1},
	0x46a6: {Family: FamilyADLP, Name: "Intel Iris Xe Graphics (ADL-P)", IP: IPVersion{12, 0}, MaxTiles: 1},
	0x46a8: {Family: FamilyADLP, Name: "Intel Iris Xe Graphics (ADL-P)", IP: IPVersion{12, 0}, MaxTiles: 1},

	0x5690: {Family: FamilyDG2, Name: "Intel Arc A770M Graphics", IP: IPVersion{12, 55}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x5693: {Family: FamilyDG2, Name: "Intel Arc A370M Graphics", IP: IPVersion{12, 56}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56a0: {Family: FamilyDG2, Name: "Intel Arc A770 Graphics", IP: IPVersion{12, 55}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56a1: {Family: FamilyDG2, Name: "Intel Arc A750 Graphics", IP: IPVersion{12, 55}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56a5: {Family: FamilyDG2, Name: "Intel Arc A380 Graphics", IP: IPVersion{12, 56}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56a6: {Family: FamilyDG2, Name: "Intel Arc A310 Graphics", IP: IPVersion{12, 56}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56b0: {Family: FamilyDG2, Name: "Intel Arc Pro A30M Graphics", IP: IPVersion{12, 57}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56c0: {Family: FamilyDG2, Name: "Intel Data Center GPU Flex 170", IP: IPVersion{12, 55}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},
	0x56c1: {Family: FamilyDG2, Name: "Intel Data Center GPU Flex 140", IP: IPVersion{12, 56}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},

	0x0bd0: {Family: FamilyPVC, Name: "Intel Data Center GPU Max", IP: IPVersion{12, 60}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 2},
	0x0bd5: {Family: FamilyPVC, Name: "Intel Data Center GPU Max 1550", IP: IPVersion{12, 60}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 2},
	0x0bd6: {Family: FamilyPVC, Name: "Intel Data Center GPU Max 1450", IP: IPVersion{12, 60}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 2},
	0x0bda: {Family: FamilyPVC, Name: "Intel Data Center GPU Max 1100", IP: IPVersion{12, 60}, Discrete: true, DefaultCCSCount: 4, MaxTiles: 1},

	0x7d40: {Family: FamilyMTL, Name: "Intel Graphics (MTL-U)", IP: IPVersion{12, 70}, DefaultCCSCount: 1, MaxTiles: 1},
	0x7d55: {Family: FamilyMTL, Name: "Intel Arc Graphics (MTL-H)", IP: IPVersion{12, 71}, DefaultCCSCount: 1, MaxTiles: 1},
	0x7dd5: {Family: FamilyMTL, Name: "Intel Graphics (MTL-H)", IP: IPVersion{12, 71}, DefaultCCSCount: 1, MaxTiles: 1},

	0x7d51: {Family: FamilyARL, Name: "Intel Arc Graphics (ARL-H)", IP: IPVersion{12, 74}, DefaultCCSCount: 1, MaxTiles: 1},
	0x7d67: {Family: FamilyARL, Name: "Intel Graphics (ARL-S)", IP: IPVersion{12, 70}, DefaultCCSCount: 1, MaxTiles: 1},

	0x6420: {Family: FamilyLNL, Name: "Intel Graphics (LNL)", IP: IPVersion{20, 4}, DefaultCCSCount: 1, MaxTiles: 1},
	0x64a0: {Family: FamilyLNL, Name: "Intel Arc Graphics 140V (LNL)", IP: IPVersion{20, 4}, DefaultCCSCount: 1, MaxTiles: 1},

	0xe20b: {Family: FamilyBMG, Name: "Intel Arc B580 Graphics", IP: IPVersion{20, 1}, Discrete: true, DefaultCCSCount: 1, MaxTiles: 1},
	0xe20c: {Family: FamilyBMG, Name: "Intel Arc B570 Graphics", IP: IPVersion{20, 1}, Discrete: true, DefaultCCSCount: 1, MaxTiles: 1},
}

// LookupProduct returns the product with PCI device id deviceID.
func LookupProduct(deviceID uint16) (Product, bool) {
	p, ok := products[deviceID]
	return p, ok
}

// unknownProduct describes a device id missing from the table.
func unknownProduct(deviceID uint16) Product {
	return Product{
		Family:   FamilyUnknown,
		Name:     fmt.Sprintf("Intel graphics %#04x", deviceID),
		MaxTiles: 1,
	}
}
