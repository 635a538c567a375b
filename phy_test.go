// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package igb

import (
	"errors"
	"testing"
	"time"
)

// fakeMdio is a phy register file reachable over the Mdio interface.
type fakeMdio struct {
	regs     map[uint32]uint16
	phys     []uint32
	writes   []uint32
	readErr  error
	writeErr error
}

func newFakeMdio() *fakeMdio {
	return &fakeMdio{regs: make(map[uint32]uint16)}
}

func (f *fakeMdio) ReadMdic(phy, addr uint32) (uint16, error) {
	f.phys = append(f.phys, phy)
	if f.readErr != nil {
		return 0, f.readErr
	}
	return f.regs[addr], nil
}

func (f *fakeMdio) WriteMdic(phy, addr uint32, data uint16) error {
	f.phys = append(f.phys, phy)
	if f.writeErr != nil {
		return f.writeErr
	}
	f.regs[addr] = data
	f.writes = append(f.writes, addr)
	return nil
}

// syncMdio additionally counts firmware sync brackets.
type syncMdio struct {
	*fakeMdio
	syncs    int
	releases int
	mask     reg
	syncErr  error
}

func (s *syncMdio) software_firmware_sync(mask reg) error {
	if s.syncErr != nil {
		return s.syncErr
	}
	s.syncs++
	s.mask = mask
	return nil
}

func (s *syncMdio) software_firmware_sync_release(mask reg) { s.releases++ }

func TestPhyPowerUp(t *testing.T) {
	f := newFakeMdio()
	f.regs[phy_control] = phy_control_power_down | phy_control_speed_100
	p := NewPhy(f, &testKernel{})
	if err := p.PowerUp(); err != nil {
		t.Fatal(err)
	}
	if got, want := f.regs[phy_control], uint16(phy_control_speed_100); got != want {
		t.Errorf("control: got 0x%x want 0x%x", got, want)
	}
	// Already powered up: no write issued.
	f.writes = nil
	if err := p.PowerUp(); err != nil {
		t.Fatal(err)
	}
	if len(f.writes) != 0 {
		t.Errorf("unexpected writes: %v", f.writes)
	}
}

func TestPhyEnableAutoNegotiation(t *testing.T) {
	f := newFakeMdio()
	f.regs[phy_control] = phy_control_full_duplex
	p := NewPhy(f, &testKernel{})
	if err := p.EnableAutoNegotiation(); err != nil {
		t.Fatal(err)
	}
	want := uint16(phy_control_full_duplex |
		phy_control_auto_negotiation_enable |
		phy_control_restart_auto_negotiation)
	if got := f.regs[phy_control]; got != want {
		t.Errorf("control: got 0x%x want 0x%x", got, want)
	}
	for _, phy := range f.phys {
		if got, want := phy, uint32(internal_phy_address); got != want {
			t.Errorf("phy address: got %d want %d", got, want)
		}
	}
}

func TestPhyWaitAutoNegotiationComplete(t *testing.T) {
	f := newFakeMdio()
	k := &testKernel{}
	k.onSleep = func(n int) {
		if n == 3 {
			f.regs[phy_status] = phy_status_auto_negotiation_complete | phy_status_link_up
		}
	}
	p := NewPhy(f, k)
	if err := p.WaitAutoNegotiationComplete(); err != nil {
		t.Fatal(err)
	}
	if got, want := len(k.sleeps), 3; got != want {
		t.Errorf("sleeps: got %d want %d", got, want)
	}
}

func TestPhyWaitAutoNegotiationTimeout(t *testing.T) {
	f := newFakeMdio()
	k := &testKernel{}
	p := NewPhy(f, k)
	err := p.WaitAutoNegotiationComplete()
	if got, want := err, ErrTimeout; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if got, want := len(k.sleeps), 45; got != want {
		t.Errorf("sleeps: got %d want %d", got, want)
	}
	if got, want := k.sleeps[0], 100*time.Millisecond; got != want {
		t.Errorf("interval: got %v want %v", got, want)
	}
}

func TestPhyWaitAutoNegotiationReadError(t *testing.T) {
	f := newFakeMdio()
	f.readErr = errors.New("mdio bus fault")
	k := &testKernel{}
	p := NewPhy(f, k)
	if got, want := p.WaitAutoNegotiationComplete(), f.readErr; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	// A broken bus fails fast instead of sleeping through every retry.
	if len(k.sleeps) != 0 {
		t.Errorf("slept %d times", len(k.sleeps))
	}
}

func TestPhySyncBracket(t *testing.T) {
	s := &syncMdio{fakeMdio: newFakeMdio()}
	s.regs[phy_control] = phy_control_power_down
	p := NewPhy(s, &testKernel{})
	if err := p.PowerUp(); err != nil {
		t.Fatal(err)
	}
	// One read plus one write, each bracketed.
	if got, want := s.syncs, 2; got != want {
		t.Errorf("syncs: got %d want %d", got, want)
	}
	if got, want := s.releases, 2; got != want {
		t.Errorf("releases: got %d want %d", got, want)
	}
	if got, want := s.mask, reg(sw_fw_phy_0); got != want {
		t.Errorf("mask: got 0x%x want 0x%x", got, want)
	}
}

func TestPhySyncDenied(t *testing.T) {
	s := &syncMdio{fakeMdio: newFakeMdio()}
	s.syncErr = ErrTimeout
	p := NewPhy(s, &testKernel{})
	if got, want := p.PowerUp(), ErrTimeout; got != want {
		t.Fatalf("got %v want %v", got, want)
	}
	if len(s.phys) != 0 {
		t.Errorf("bus used without the firmware grant: %v", s.phys)
	}
}

// The mac satisfies Mdio including the firmware sync upgrade, so a phy
// transaction through a real mac must bracket itself and compose an
// mdio command.
func TestPhyOverMac(t *testing.T) {
	m, k := testMac(t)
	k.onSleep = func(int) {
		// Complete every mdio transaction on its first poll.
		poke(m, 0x20, peek(m, 0x20)|mdic_ready)
	}
	p := NewPhy(m, HostKernel{})
	if err := p.EnableAutoNegotiation(); err != nil {
		t.Fatal(err)
	}
	want := uint32(mdic_op_write<<26 | internal_phy_address<<21 | phy_control<<16 |
		phy_control_auto_negotiation_enable | phy_control_restart_auto_negotiation |
		mdic_ready)
	if got := peek(m, 0x20); got != want {
		t.Errorf("mdio command: got 0x%x want 0x%x", got, want)
	}
	if got, want := peek(m, 0x5b5c), uint32(0); got != want {
		t.Errorf("sync grant still held: got 0x%x want 0x%x", got, want)
	}
}
