// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"unsafe"

	"github.com/platinasystems/igb/hw"
)

// Chip performs configuration space access for one host bridge.  The
// mmio argument is the bridge's mapped configuration window; offset
// is a byte offset inside the addressed function's configuration
// space and is dword aligned by the implementation.
type Chip interface {
	ReadConfig(mmio []byte, addr BusAddress, offset uint16) uint32
	WriteConfig(mmio []byte, addr BusAddress, offset uint16, value uint32)
}

// Generic is the standard ecam layout: the configuration space of
// bus/slot/function lives at bus<<20 | slot<<15 | fn<<12 inside the
// window.  Domains beyond the window's own are not addressable.
type Generic struct{}

func ecamOffset(addr BusAddress, offset uint16) uint {
	return uint(addr.Bus)<<20 | uint(addr.Slot)<<15 | uint(addr.Fn)<<12 | uint(offset)&^3
}

func (Generic) ReadConfig(mmio []byte, addr BusAddress, offset uint16) uint32 {
	o := ecamOffset(addr, offset)
	if o+4 > uint(len(mmio)) {
		// master abort
		return ^uint32(0)
	}
	return hw.LoadUint32(uintptr(unsafe.Pointer(&mmio[o])))
}

func (Generic) WriteConfig(mmio []byte, addr BusAddress, offset uint16, value uint32) {
	o := ecamOffset(addr, offset)
	if o+4 > uint(len(mmio)) {
		return
	}
	hw.StoreUint32(uintptr(unsafe.Pointer(&mmio[o])), value)
}

// ReadDeviceID reads the identity dword of the function at addr.  An
// absent function answers all ones.
func ReadDeviceID(c Chip, mmio []byte, addr BusAddress) DeviceID {
	v := c.ReadConfig(mmio, addr, IdentityOffset)
	return DeviceID{Vendor: VendorID(v), Device: VendorDeviceID(v >> 16)}
}

// Present reports whether a function answers configuration reads at
// addr.
func Present(c Chip, mmio []byte, addr BusAddress) bool {
	return c.ReadConfig(mmio, addr, IdentityOffset) != ^uint32(0)
}

func ReadCommand(c Chip, mmio []byte, addr BusAddress) Command {
	return Command(c.ReadConfig(mmio, addr, CommandOffset))
}

// WriteCommand writes the command half of the command/status dword.
// Status bits are write 1 to clear, so the zero high half leaves
// them alone.
func WriteCommand(c Chip, mmio []byte, addr BusAddress, v Command) {
	c.WriteConfig(mmio, addr, CommandOffset, uint32(v))
}
