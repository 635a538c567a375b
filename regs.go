// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package igb

import (
	"unsafe"

	"github.com/platinasystems/igb/hw"
)

type reg hw.Reg32

func (m *Mac) addr_for_offset32(offset uint) uintptr {
	return uintptr(unsafe.Pointer(&m.mmio[offset]))
}
func (r *reg) offset() uint         { return uint(uintptr(unsafe.Pointer(r)) - hw.BaseAddress) }
func (r *reg) addr(m *Mac) uintptr  { return m.addr_for_offset32(r.offset()) }
func (r *reg) get(m *Mac) reg       { return reg(hw.LoadUint32(r.addr(m))) }
func (r *reg) set(m *Mac, v reg)    { hw.StoreUint32(r.addr(m), uint32(v)) }
func (r *reg) or(m *Mac, v reg) (x reg) {
	x = r.get(m) | v
	r.set(m, x)
	return
}
func (r *reg) andnot(m *Mac, v reg) (x reg) {
	x = r.get(m) &^ v
	r.set(m, x)
	return
}

// Multi-bit register field.
type bitfield struct{ lo, width uint }

func (f bitfield) mask() reg         { return (reg(1)<<f.width - 1) << f.lo }
func (f bitfield) get(v reg) reg     { return v >> f.lo & (reg(1)<<f.width - 1) }
func (f bitfield) put(v, x reg) reg  { return v&^f.mask() | x<<f.lo&f.mask() }

// Memory map of the 82576/i210 client controller family.  Byte
// offsets are relative to the start of BAR 0.
type regs struct {
	/* [0] full duplex
	   [6] set link up
	   [9:8] speed 0 => 10Mb, 1 => 100Mb, 2 => 1Gb
	   [11] force speed
	   [12] force duplex
	   [26] device reset
	   [31] phy reset */
	control reg
	_       [0x8 - 0x4]byte

	/* [0] full duplex
	   [1] link up
	   [7:6] speed 0 => 10Mb, 1 => 100Mb, 2 => 1Gb
	   [10] phy reset asserted */
	status_read_only reg
	_                [0x18 - 0xc]byte

	/* [23:22] link mode 0 => copper, 2 => sgmii, 3 => serdes */
	extended_control reg
	_                [0x20 - 0x1c]byte

	/* [15:0] data
	   [20:16] phy register address
	   [25:21] phy address
	   [27:26] opcode 1 => write, 2 => read
	   [28] ready
	   [29] interrupt on completion
	   [30] error
	   [31] destination 0 => gbe phy */
	mdi_control reg
	_           [0xc0 - 0x24]byte

	// [0] tx descriptor written back
	// [1] tx queue empty
	// [2] link status change
	// [4] rx descriptor minimum threshold
	// [6] rx overrun
	// [7] rx timer expired
	// [9] mdio access complete
	// [19] dock/undock
	// [31] interrupt asserted (status only)
	interrupt_status_clear_on_read    reg
	_                                 [0xd0 - 0xc4]byte
	interrupt_enable_write_1_to_set   reg
	_                                 [0xd8 - 0xd4]byte
	interrupt_enable_write_1_to_clear reg
	_                                 [0x100 - 0xdc]byte

	/* [1] rx enable
	   [2] store bad packets
	   [3] unicast promiscuous
	   [4] multicast promiscuous
	   [5] long packet enable
	   [7:6] loopback mode
	   [13:12] multicast offset
	   [15] accept broadcast
	   [17:16] rx buffer size
	   [18] vlan filter enable
	   [19] canonical form indicator enable
	   [20] canonical form indicator value
	   [21] pad small packets
	   [22] discard pause frames
	   [23] pass mac control frames
	   [26] strip ethernet crc */
	rx_control reg
	_          [0x400 - 0x104]byte

	/* [1] tx enable
	   [3] pad short packets
	   [11:4] collision threshold
	   [21:12] back-off collision distance
	   [22] software xoff
	   [24] re-transmit on late collision
	   [25] no re-transmit on underrun
	   [28] multiple request support */
	tx_control reg
	_          [0x1514 - 0x404]byte

	/* [0] non-selective interrupt clear on read
	   [4] multiple msi-x vectors
	   [11:7] low latency credits increment interval
	   [30] extended interrupt auto mask enable
	   [31] pba support */
	general_purpose_interrupt_enable reg
	_                                [0x1524 - 0x1518]byte

	// [15:0] rx/tx queue
	// [30] tcp timer
	// [31] other cause
	extended_interrupt_enable_write_1_to_set   reg
	extended_interrupt_enable_write_1_to_clear reg
	extended_interrupt_auto_clear_enable       reg
	extended_interrupt_auto_mask_enable        reg
	_                                          [0x1580 - 0x1534]byte
	extended_interrupt_status_clear_on_read    reg
	_                                          [0x5400 - 0x1584]byte

	/* [31:0] 4 low address bytes
	   [15:0] 2 high address bytes
	   [31] address valid */
	rx_ethernet_address0 [16]ethernet_address_reg
	_                    [0x54e0 - 0x5480]byte
	rx_ethernet_address1 [16]ethernet_address_reg
	_                    [0x5b50 - 0x5560]byte

	/* [0] semaphore taken by software
	   [1] semaphore taken against firmware
	   [2] wake mng clock
	   [3] eeprom update raised */
	software_semaphore reg

	/* [0] eeprom blocked
	   [6] eeprom present
	   [15:1] mode and state of manageability firmware */
	firmware_semaphore reg
	_                  [0x5b5c - 0x5b58]byte

	// [4:0] software access: eeprom, phy 0, phy 1, mac registers, flash
	// [20:16] same, for firmware
	software_firmware_sync reg
	_                      [0xf000 - 0x5b60]byte
}

type ethernet_address_reg [2]reg

func (r *ethernet_address_reg) get(m *Mac) (a EthernetAddress, valid bool) {
	var v [2]reg
	v[0], v[1] = r[0].get(m), r[1].get(m)
	valid = v[1]&(1<<31) != 0
	for i := range a {
		a[i] = byte(v[i/4] >> uint(8*(i%4)))
	}
	return
}

func (r *ethernet_address_reg) set(m *Mac, a EthernetAddress, valid bool) {
	var v [2]reg
	for i := range a {
		v[i/4] |= reg(a[i]) << uint(8*(i%4))
	}
	if valid {
		v[1] |= 1 << 31
	}
	// Valid bit lives in the high word; write it last so the filter
	// never matches a half written address.
	r[0].set(m, v[0])
	r[1].set(m, v[1])
}

// Check 82576/i210 memory map.
func check_reg_offsets() {
	r := (*regs)(hw.BasePointer)
	hw.CheckRegAddr("control", r.control.offset(), 0x0)
	hw.CheckRegAddr("status_read_only", r.status_read_only.offset(), 0x8)
	hw.CheckRegAddr("extended_control", r.extended_control.offset(), 0x18)
	hw.CheckRegAddr("mdi_control", r.mdi_control.offset(), 0x20)
	hw.CheckRegAddr("interrupt_status_clear_on_read", r.interrupt_status_clear_on_read.offset(), 0xc0)
	hw.CheckRegAddr("interrupt_enable_write_1_to_set", r.interrupt_enable_write_1_to_set.offset(), 0xd0)
	hw.CheckRegAddr("interrupt_enable_write_1_to_clear", r.interrupt_enable_write_1_to_clear.offset(), 0xd8)
	hw.CheckRegAddr("rx_control", r.rx_control.offset(), 0x100)
	hw.CheckRegAddr("tx_control", r.tx_control.offset(), 0x400)
	hw.CheckRegAddr("general_purpose_interrupt_enable", r.general_purpose_interrupt_enable.offset(), 0x1514)
	hw.CheckRegAddr("extended_interrupt_enable_write_1_to_set", r.extended_interrupt_enable_write_1_to_set.offset(), 0x1524)
	hw.CheckRegAddr("extended_interrupt_enable_write_1_to_clear", r.extended_interrupt_enable_write_1_to_clear.offset(), 0x1528)
	hw.CheckRegAddr("extended_interrupt_auto_clear_enable", r.extended_interrupt_auto_clear_enable.offset(), 0x152c)
	hw.CheckRegAddr("extended_interrupt_auto_mask_enable", r.extended_interrupt_auto_mask_enable.offset(), 0x1530)
	hw.CheckRegAddr("extended_interrupt_status_clear_on_read", r.extended_interrupt_status_clear_on_read.offset(), 0x1580)
	hw.CheckRegAddr("rx_ethernet_address0", r.rx_ethernet_address0[0][0].offset(), 0x5400)
	hw.CheckRegAddr("rx_ethernet_address1", r.rx_ethernet_address1[0][0].offset(), 0x54e0)
	hw.CheckRegAddr("software_semaphore", r.software_semaphore.offset(), 0x5b50)
	hw.CheckRegAddr("firmware_semaphore", r.firmware_semaphore.offset(), 0x5b54)
	hw.CheckRegAddr("software_firmware_sync", r.software_firmware_sync.offset(), 0x5b5c)
	hw.CheckRegAddr("sizeof regs", uint(unsafe.Sizeof(*r)), 0xf000)
}
