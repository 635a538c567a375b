// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Identity, configuration access and bar windows for devices on a
// PCI bus.
package pci

import "fmt"

type VendorID uint16
type VendorDeviceID uint16

func (v VendorID) String() string       { return fmt.Sprintf("0x%04x", uint16(v)) }
func (d VendorDeviceID) String() string { return fmt.Sprintf("0x%04x", uint16(d)) }

const Intel VendorID = 0x8086

// Vendor/Device pair
type DeviceID struct {
	Vendor VendorID
	Device VendorDeviceID
}

func (d DeviceID) String() string { return fmt.Sprintf("%v:%v", d.Vendor, d.Device) }

type Command uint16

const (
	IOEnable Command = 1 << iota
	MemoryEnable
	BusMasterEnable
	SpecialCycles
	WriteInvalidate
	VgaPaletteSnoop
	Parity
	AddressDataStepping
	SERR
	BackToBackWrite
	INTxEmulationDisable
)

// Configuration space offsets used with Chip access.
const (
	IdentityOffset    = 0x0
	CommandOffset     = 0x4
	BaseAddressOffset = 0x10
)

type BusAddress struct {
	Domain        uint16
	Bus, Slot, Fn uint8
}

func (a BusAddress) String() string {
	return fmt.Sprintf("%04x:%02x:%02x.%01x", a.Domain, a.Bus, a.Slot, a.Fn)
}

// ParseBusAddress accepts [dddd:]bb:ss.f as printed by lspci and as
// named under /sys/bus/pci/devices.
func ParseBusAddress(s string) (a BusAddress, err error) {
	var d, b, sl, f uint
	if n, _ := fmt.Sscanf(s, "%x:%x:%x.%x", &d, &b, &sl, &f); n == 4 {
		a.Domain, a.Bus, a.Slot, a.Fn = uint16(d), uint8(b), uint8(sl), uint8(f)
		return
	}
	if n, _ := fmt.Sscanf(s, "%x:%x.%x", &b, &sl, &f); n == 3 {
		a.Bus, a.Slot, a.Fn = uint8(b), uint8(sl), uint8(f)
		return
	}
	err = fmt.Errorf("pci: bad bus address %q", s)
	return
}
