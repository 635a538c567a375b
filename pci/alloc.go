// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import "fmt"

// BarAllocator hands out bus addresses for device base address
// registers during enumeration.
type BarAllocator interface {
	AllocMemory32(size uint32) (uint32, bool)
	AllocMemory64(size uint64) (uint64, bool)
}

// SimpleBarAllocator carves naturally aligned windows out of fixed
// host bridge apertures.  Windows are never reused.
type SimpleBarAllocator struct {
	next32, limit32 uint64
	next64, limit64 uint64
}

// SetMem32 gives the allocator the bridge's 32 bit memory aperture.
func (a *SimpleBarAllocator) SetMem32(base, size uint32) {
	a.next32 = uint64(base)
	a.limit32 = uint64(base) + uint64(size)
}

// SetMem64 gives the allocator the bridge's 64 bit memory aperture.
func (a *SimpleBarAllocator) SetMem64(base, size uint64) {
	a.next64 = base
	a.limit64 = base + size
}

func alignUp(x, align uint64) uint64 { return (x + align - 1) &^ (align - 1) }

// AllocMemory32 returns a window of size bytes from the 32 bit
// aperture.  Bar sizes are powers of two; anything else is refused.
func (a *SimpleBarAllocator) AllocMemory32(size uint32) (uint32, bool) {
	if size == 0 || size&(size-1) != 0 {
		return 0, false
	}
	base := alignUp(a.next32, uint64(size))
	if base+uint64(size) > a.limit32 {
		return 0, false
	}
	a.next32 = base + uint64(size)
	return uint32(base), true
}

// AllocMemory64 prefers the 64 bit aperture and falls back to the 32
// bit one for bridges without a high window.
func (a *SimpleBarAllocator) AllocMemory64(size uint64) (uint64, bool) {
	if size == 0 || size&(size-1) != 0 {
		return 0, false
	}
	base := alignUp(a.next64, size)
	if base+size <= a.limit64 {
		a.next64 = base + size
		return base, true
	}
	if size < 1<<32 {
		if v, ok := a.AllocMemory32(uint32(size)); ok {
			return uint64(v), true
		}
	}
	return 0, false
}

// SetupMemoryBar sizes memory base address register bar of the
// function at addr and programs it with a window from alloc.  Decoded
// size is determined by writing all ones to the register and reading
// back; only 1 bits are decoded.  Returns the bus address chosen.
func SetupMemoryBar(c Chip, mmio []byte, alloc BarAllocator, addr BusAddress, bar int) (uint64, error) {
	if bar < 0 || bar > 5 {
		return 0, fmt.Errorf("pci: bar %d out of range", bar)
	}
	lo := uint16(BaseAddressOffset + 4*bar)
	v := c.ReadConfig(mmio, addr, lo)
	if v&1 != 0 {
		return 0, fmt.Errorf("pci: bar %d is i/o", bar)
	}
	is64 := v>>1&3 == 2
	flags := v & 0xf

	c.WriteConfig(mmio, addr, lo, ^uint32(0))
	size := uint64(c.ReadConfig(mmio, addr, lo) &^ 0xf)
	if is64 {
		c.WriteConfig(mmio, addr, lo+4, ^uint32(0))
		size |= uint64(c.ReadConfig(mmio, addr, lo+4)) << 32
		size = ^size + 1
	} else {
		size = (^size + 1) & (1<<32 - 1)
	}
	if size == 0 {
		return 0, fmt.Errorf("pci: bar %d not implemented", bar)
	}

	var base uint64
	var ok bool
	if is64 {
		base, ok = alloc.AllocMemory64(size)
	} else {
		var b uint32
		if size < 1<<32 {
			b, ok = alloc.AllocMemory32(uint32(size))
		}
		base = uint64(b)
	}
	if !ok {
		return 0, fmt.Errorf("pci: no aperture space for bar %d size 0x%x", bar, size)
	}

	c.WriteConfig(mmio, addr, lo, uint32(base)|flags)
	if is64 {
		c.WriteConfig(mmio, addr, lo+4, uint32(base>>32))
	}
	return base, nil
}
