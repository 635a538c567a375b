// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Driver for Intel 82576/i210 Gigabit Ethernet controllers.
package igb

import (
	"github.com/platinasystems/igb/pci"
	"github.com/platinasystems/log"
)

const (
	DeviceID82576 pci.VendorDeviceID = 0x10c9
	DeviceIDI210  pci.VendorDeviceID = 0x1533
)

var dev_id_names = map[pci.VendorDeviceID]string{
	DeviceID82576: "82576",
	DeviceIDI210:  "i210",
}

// DeviceName returns the family name of a supported device id.
func DeviceName(did uint16) string { return dev_id_names[pci.VendorDeviceID(did)] }

// CheckVidDid reports whether this driver handles the device with the
// given pci identity.
func CheckVidDid(vid, did uint16) bool {
	return pci.VendorID(vid) == pci.Intel && dev_id_names[pci.VendorDeviceID(did)] != ""
}

// phyDriver is what Open needs from the phy.
type phyDriver interface {
	PowerUp() error
	EnableAutoNegotiation() error
	WaitAutoNegotiationComplete() error
}

// Igb is one 82576/i210 device: the mac owning the register window
// and the phy behind its mdio bus.
type Igb struct {
	mac *Mac
	phy phyDriver
}

// New wraps the device whose BAR 0 registers are mapped at mmio.
func New(mmio []byte, k Kernel) (*Igb, error) {
	mac, err := NewMac(mmio, k)
	if err != nil {
		return nil, err
	}
	return &Igb{mac: mac, phy: NewPhy(mac, k)}, nil
}

// Mac returns the register owner for direct register work.
func (d *Igb) Mac() *Mac { return d.mac }

// Status decodes the current mac status.
func (d *Igb) Status() MacStatus { return d.mac.Status() }

// Open brings the device from power-on or pci reset to a quiet,
// link-negotiating state: interrupts masked, mac reset, phy powered
// up with auto-negotiation running.  It returns once negotiation
// completes.
func (d *Igb) Open() error {
	d.mac.DisableInterrupts()
	log.Print("igb: resetting mac")
	if err := d.mac.Reset(); err != nil {
		return err
	}
	d.mac.DisableInterrupts()
	log.Print("igb: setting up phy and link")
	if err := d.phy.PowerUp(); err != nil {
		return err
	}
	if err := d.setup_phy_and_link(); err != nil {
		return err
	}
	log.Print("igb: waiting for auto-negotiation")
	if err := d.phy.WaitAutoNegotiationComplete(); err != nil {
		return err
	}
	log.Print("igb: initialization complete")
	return nil
}

func (d *Igb) setup_phy_and_link() error {
	if err := d.phy.PowerUp(); err != nil {
		return err
	}
	return d.phy.EnableAutoNegotiation()
}
