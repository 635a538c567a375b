// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package igb

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/platinasystems/igb/hw"
	"github.com/platinasystems/log"
)

// Mac owns the controller's BAR 0 register window.  All register
// access goes through exactly one Mac so updates never race.
type Mac struct {
	regs *regs
	mmio []byte
	k    Kernel
}

// NewMac wraps the mapped BAR 0 register window.  The window must
// cover the controller's whole register file and start 32 bit
// aligned.
func NewMac(mmio []byte, k Kernel) (*Mac, error) {
	check_reg_offsets()
	if k == nil || len(mmio) < int(unsafe.Sizeof(regs{})) {
		return nil, ErrInvalidParameter
	}
	if uintptr(unsafe.Pointer(&mmio[0]))&3 != 0 {
		return nil, ErrInvalidParameter
	}
	return &Mac{regs: (*regs)(hw.BasePointer), mmio: mmio, k: k}, nil
}

type Speed uint32

const (
	Mb10   Speed = 10
	Mb100  Speed = 100
	Mb1000 Speed = 1000
)

func (s Speed) String() string { return fmt.Sprintf("%dMb/s", uint32(s)) }

type MacStatus struct {
	FullDuplex       bool
	LinkUp           bool
	Speed            Speed
	PhyResetAsserted bool
}

func (s MacStatus) String() string {
	if !s.LinkUp {
		return "link down"
	}
	d := "half"
	if s.FullDuplex {
		d = "full"
	}
	return fmt.Sprintf("link up, %v, %s duplex", s.Speed, d)
}

type EthernetAddress [6]byte

func (a EthernetAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

const (
	status_full_duplex        = 1 << 0
	status_link_up            = 1 << 1
	status_phy_reset_asserted = 1 << 10
)

var status_speed = bitfield{6, 2}

// Status decodes the device status register.  Reading it has no side
// effects, so Status may be called at any rate.
func (m *Mac) Status() (s MacStatus) {
	v := m.regs.status_read_only.get(m)
	s.FullDuplex = v&status_full_duplex != 0
	s.LinkUp = v&status_link_up != 0
	s.PhyResetAsserted = v&status_phy_reset_asserted != 0
	switch status_speed.get(v) {
	case 2:
		s.Speed = Mb1000
	case 1:
		s.Speed = Mb100
	default:
		s.Speed = Mb10
	}
	return
}

type LinkMode int

const (
	LinkModeUnrecognized LinkMode = iota
	LinkModeDirectCopper
	LinkModeSGMII
	LinkModeInternalSerdes
)

func (l LinkMode) String() string {
	switch l {
	case LinkModeDirectCopper:
		return "direct copper"
	case LinkModeSGMII:
		return "sgmii"
	case LinkModeInternalSerdes:
		return "internal serdes"
	}
	return "unrecognized link mode"
}

var extended_control_link_mode = bitfield{22, 2}

// LinkMode decodes the physical link wiring from extended control.
// The raw field bits are returned alongside so callers can report
// encodings this driver does not recognize.
func (m *Mac) LinkMode() (LinkMode, uint32) {
	bits := uint32(extended_control_link_mode.get(m.regs.extended_control.get(m)))
	switch bits {
	case 0:
		return LinkModeDirectCopper, bits
	case 2:
		return LinkModeSGMII, bits
	case 3:
		return LinkModeInternalSerdes, bits
	}
	return LinkModeUnrecognized, bits
}

var (
	mdic_data            = bitfield{0, 16}
	mdic_phy_reg_address = bitfield{16, 5}
	mdic_phy_address     = bitfield{21, 5}
	mdic_opcode          = bitfield{26, 2}
)

const (
	mdic_op_write = 1
	mdic_op_read  = 2

	mdic_ready = 1 << 28
	mdic_error = 1 << 30
)

// An mdio transaction on the internal bus finishes in under 64 usec.
const (
	mdic_poll_interval = 50 * time.Microsecond
	mdic_poll_tries    = 640
)

func (m *Mac) mdic_command(op, phy, addr reg, data uint16) {
	var v reg
	v = mdic_data.put(v, reg(data))
	v = mdic_phy_reg_address.put(v, addr)
	v = mdic_phy_address.put(v, phy)
	v = mdic_opcode.put(v, op)
	m.regs.mdi_control.set(m, v)
	hw.MemoryBarrier()
}

func (m *Mac) mdic_wait() (reg, error) {
	r := &m.regs.mdi_control
	var v reg
	err := WaitFor(m.k, func() bool {
		v = r.get(m)
		return v&mdic_ready != 0
	}, mdic_poll_interval, mdic_poll_tries)
	if err != nil {
		return v, err
	}
	if v&mdic_error != 0 {
		err = UnknownError("MDIC read error")
		log.Print("igb: ", err)
		return v, err
	}
	return v, nil
}

// ReadMdic reads register addr of the phy at mdio address phy.
func (m *Mac) ReadMdic(phy, addr uint32) (uint16, error) {
	m.mdic_command(mdic_op_read, reg(phy), reg(addr), 0)
	v, err := m.mdic_wait()
	if err != nil {
		return 0, err
	}
	return uint16(mdic_data.get(v)), nil
}

// WriteMdic writes data to register addr of the phy at mdio address
// phy.
func (m *Mac) WriteMdic(phy, addr uint32, data uint16) error {
	m.mdic_command(mdic_op_write, reg(phy), reg(addr), data)
	_, err := m.mdic_wait()
	return err
}

// DisableInterrupts masks every interrupt source and acknowledges
// anything already asserted.
func (m *Mac) DisableInterrupts() {
	m.regs.extended_interrupt_enable_write_1_to_clear.set(m, ^reg(0))
	m.ClearInterrupts()
}

// EnableInterrupts unmasks every extended interrupt source.
func (m *Mac) EnableInterrupts() {
	m.regs.extended_interrupt_enable_write_1_to_set.set(m, ^reg(0))
}

// ClearInterrupts masks all extended interrupts and acknowledges
// asserted causes by reading them.
func (m *Mac) ClearInterrupts() {
	m.regs.extended_interrupt_enable_write_1_to_clear.set(m, ^reg(0))
	m.regs.extended_interrupt_status_clear_on_read.get(m)
}

const (
	ctrl_set_link_up  = 1 << 6
	ctrl_device_reset = 1 << 26
	ctrl_phy_reset    = 1 << 31
)

const (
	reset_poll_interval = 1 * time.Millisecond
	reset_poll_tries    = 1000
)

// Reset commands a device plus phy reset and waits for the mac to
// clear the reset bit.  Register state after a successful Reset is
// the power-on default.
func (m *Mac) Reset() error {
	m.regs.control.or(m, ctrl_device_reset|ctrl_phy_reset)
	return WaitFor(m.k, func() bool {
		return m.regs.control.get(m)&ctrl_device_reset == 0
	}, reset_poll_interval, reset_poll_tries)
}

// SetLinkUp tells the mac to bring the link up once auto-negotiation
// resolves.
func (m *Mac) SetLinkUp() {
	m.regs.control.or(m, ctrl_set_link_up)
}

const (
	swsm_smbi    = 1 << 0 // taken by software
	swsm_swesmbi = 1 << 1 // taken against firmware
)

const (
	semaphore_poll_interval = 50 * time.Microsecond
	semaphore_poll_tries    = 256
	sync_poll_interval      = 5 * time.Millisecond
	sync_poll_tries         = 200
)

// acquire_semaphore takes the hardware semaphore arbitrating between
// software and manageability firmware.
func (m *Mac) acquire_semaphore() error {
	r := &m.regs.software_semaphore
	err := WaitFor(m.k, func() bool {
		return r.get(m)&swsm_smbi == 0
	}, semaphore_poll_interval, semaphore_poll_tries)
	if err != nil {
		return err
	}
	// Claim against firmware; the set must read back or firmware won.
	err = WaitFor(m.k, func() bool {
		r.or(m, swsm_swesmbi)
		return r.get(m)&swsm_swesmbi != 0
	}, semaphore_poll_interval, semaphore_poll_tries)
	if err != nil {
		m.release_semaphore()
	}
	return err
}

func (m *Mac) release_semaphore() {
	m.regs.software_semaphore.andnot(m, swsm_smbi|swsm_swesmbi)
}

const (
	sw_fw_eeprom   = 1 << 0
	sw_fw_phy_0    = 1 << 1
	sw_fw_phy_1    = 1 << 2
	sw_fw_mac_regs = 1 << 3
	sw_fw_flash    = 1 << 4
)

// software_firmware_sync takes ownership of the resources in mask
// against manageability firmware.  Firmware grants are the same mask
// shifted into the high half.
func (m *Mac) software_firmware_sync(mask reg) error {
	r := &m.regs.software_firmware_sync
	fw_mask := mask << 16
	return WaitFor(m.k, func() (done bool) {
		if m.acquire_semaphore() != nil {
			return
		}
		v := r.get(m)
		if done = v&(mask|fw_mask) == 0; done {
			r.set(m, v|mask)
		}
		m.release_semaphore()
		return
	}, sync_poll_interval, sync_poll_tries)
}

func (m *Mac) software_firmware_sync_release(mask reg) {
	// Clear our grant bits even if the semaphore is wedged.
	err := m.acquire_semaphore()
	m.regs.software_firmware_sync.andnot(m, mask)
	if err == nil {
		m.release_semaphore()
	}
}

// HardwareAddr returns the station address the eeprom loaded into the
// first receive address filter.
func (m *Mac) HardwareAddr() (EthernetAddress, bool) {
	return m.regs.rx_ethernet_address0[0].get(m)
}

// SetHardwareAddr stores a station address in the first receive
// address filter and marks it valid.
func (m *Mac) SetHardwareAddr(a EthernetAddress) {
	m.regs.rx_ethernet_address0[0].set(m, a, true)
}
