// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package igb

import "time"

// Mdio is the capability a phy driver needs from the device that owns
// the mdio bus.
type Mdio interface {
	ReadMdic(phy, addr uint32) (uint16, error)
	WriteMdic(phy, addr uint32, data uint16) error
}

// syncer is an Mdio whose bus must also be arbitrated against
// manageability firmware around each transaction.
type syncer interface {
	software_firmware_sync(mask reg) error
	software_firmware_sync_release(mask reg)
}

// IEEE 802.3 clause 22 registers of the internal gigabit phy.
const (
	phy_control = 0
	phy_status  = 1

	phy_control_reset                    = 1 << 15
	phy_control_speed_100                = 1 << 13
	phy_control_auto_negotiation_enable  = 1 << 12
	phy_control_power_down               = 1 << 11
	phy_control_restart_auto_negotiation = 1 << 9
	phy_control_full_duplex              = 1 << 8

	phy_status_auto_negotiation_complete = 1 << 5
	phy_status_link_up                   = 1 << 2
)

// The 82576/i210 internal phy answers at mdio address 1.
const internal_phy_address = 1

// Phy drives the internal gigabit phy.
type Phy struct {
	mdio Mdio
	k    Kernel
	addr uint32
}

func NewPhy(mdio Mdio, k Kernel) *Phy {
	return &Phy{mdio: mdio, k: k, addr: internal_phy_address}
}

func (p *Phy) read_reg(addr uint32) (v uint16, err error) {
	if s, ok := p.mdio.(syncer); ok {
		if err = s.software_firmware_sync(sw_fw_phy_0); err != nil {
			return
		}
		defer s.software_firmware_sync_release(sw_fw_phy_0)
	}
	return p.mdio.ReadMdic(p.addr, addr)
}

func (p *Phy) write_reg(addr uint32, v uint16) (err error) {
	if s, ok := p.mdio.(syncer); ok {
		if err = s.software_firmware_sync(sw_fw_phy_0); err != nil {
			return
		}
		defer s.software_firmware_sync_release(sw_fw_phy_0)
	}
	return p.mdio.WriteMdic(p.addr, addr, v)
}

// PowerUp clears the phy power down bit if it is set.
func (p *Phy) PowerUp() error {
	v, err := p.read_reg(phy_control)
	if err != nil {
		return err
	}
	if v&phy_control_power_down == 0 {
		return nil
	}
	return p.write_reg(phy_control, v&^phy_control_power_down)
}

// EnableAutoNegotiation starts (or restarts) auto-negotiation.
func (p *Phy) EnableAutoNegotiation() error {
	v, err := p.read_reg(phy_control)
	if err != nil {
		return err
	}
	v |= phy_control_auto_negotiation_enable | phy_control_restart_auto_negotiation
	return p.write_reg(phy_control, v)
}

// Link partners commonly take seconds to resolve.
const (
	auto_negotiation_poll_interval = 100 * time.Millisecond
	auto_negotiation_poll_tries    = 45
)

// WaitAutoNegotiationComplete polls phy status until auto-negotiation
// finishes.
func (p *Phy) WaitAutoNegotiationComplete() error {
	var readErr error
	err := WaitFor(p.k, func() bool {
		v, err := p.read_reg(phy_status)
		if err != nil {
			readErr = err
			return true
		}
		return v&phy_status_auto_negotiation_complete != 0
	}, auto_negotiation_poll_interval, auto_negotiation_poll_tries)
	if readErr != nil {
		return readErr
	}
	return err
}
