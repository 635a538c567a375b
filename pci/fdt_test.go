// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"
)

// dtbBuilder assembles a flattened device tree: 40 byte header,
// structure block, strings block.
type dtbBuilder struct {
	strct   bytes.Buffer
	strs    bytes.Buffer
	nameOff map[string]uint32
}

func newDtbBuilder() *dtbBuilder {
	return &dtbBuilder{nameOff: make(map[string]uint32)}
}

func (d *dtbBuilder) cell(v uint32) {
	binary.Write(&d.strct, binary.BigEndian, v)
}

func (d *dtbBuilder) pad() {
	for d.strct.Len()%4 != 0 {
		d.strct.WriteByte(0)
	}
}

func (d *dtbBuilder) beginNode(name string) {
	d.cell(1)
	d.strct.WriteString(name)
	d.strct.WriteByte(0)
	d.pad()
}

func (d *dtbBuilder) endNode() { d.cell(2) }

func (d *dtbBuilder) prop(name string, value []byte) {
	off, ok := d.nameOff[name]
	if !ok {
		off = uint32(d.strs.Len())
		d.nameOff[name] = off
		d.strs.WriteString(name)
		d.strs.WriteByte(0)
	}
	d.cell(3)
	d.cell(uint32(len(value)))
	d.cell(off)
	d.strct.Write(value)
	d.pad()
}

func (d *dtbBuilder) blob() []byte {
	d.cell(9)
	var b bytes.Buffer
	header := []uint32{
		0xd00dfeed,
		uint32(40 + d.strct.Len() + d.strs.Len()),
		40,
		uint32(40 + d.strct.Len()),
		0,
		17,
		16,
		0,
		uint32(d.strs.Len()),
		uint32(d.strct.Len()),
	}
	binary.Write(&b, binary.BigEndian, header)
	b.Write(d.strct.Bytes())
	b.Write(d.strs.Bytes())
	return b.Bytes()
}

func cells(vs ...uint32) []byte {
	b := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint32(b[4*i:], v)
	}
	return b
}

func testDtb() []byte {
	d := newDtbBuilder()
	d.beginNode("")

	// Listed out of order to prove the sort.
	d.beginNode("pcie@2b500000")
	d.prop("device_type", []byte("pci\x00"))
	d.prop("reg", cells(0, 0x2b500000, 0, 0x1000000))
	d.prop("ranges", cells(
		0x02000000, 0, 0x50000000, 0, 0x50000000, 0, 0x8000000,
	))
	d.endNode()

	d.beginNode("memory@80000000")
	d.prop("device_type", []byte("memory\x00"))
	d.endNode()

	d.beginNode("pcie@10000000")
	d.prop("device_type", []byte("pci\x00"))
	d.prop("reg", cells(0, 0x10000000, 0, 0x10000000))
	d.prop("ranges", cells(
		// config space entries are not apertures
		0x00000000, 0, 0, 0, 0x10000000, 0, 0x10000000,
		0x01000000, 0, 0, 0, 0x3eff0000, 0, 0x10000,
		0x02000000, 0, 0x40000000, 0, 0x40000000, 0, 0x20000000,
		0x43000000, 8, 0, 8, 0, 4, 0,
	))
	d.endNode()

	d.endNode()
	return d.blob()
}

func TestHostBridgeWindows(t *testing.T) {
	bridges, err := HostBridgeWindows(testDtb())
	if err != nil {
		t.Fatal(err)
	}
	want := []HostBridge{
		{
			Name:     "pcie@10000000",
			EcamBase: 0x10000000,
			EcamSize: 0x10000000,
			Ranges: []HostRange{
				{Kind: RangeIo, CpuAddress: 0x3eff0000, Size: 0x10000},
				{Kind: RangeMem32, PciAddress: 0x40000000, CpuAddress: 0x40000000, Size: 0x20000000},
				{Kind: RangeMem64, Prefetch: true, PciAddress: 8 << 32, CpuAddress: 8 << 32, Size: 4 << 32},
			},
		},
		{
			Name:     "pcie@2b500000",
			EcamBase: 0x2b500000,
			EcamSize: 0x1000000,
			Ranges: []HostRange{
				{Kind: RangeMem32, PciAddress: 0x50000000, CpuAddress: 0x50000000, Size: 0x8000000},
			},
		},
	}
	if !reflect.DeepEqual(bridges, want) {
		t.Errorf("got %v want %v", bridges, want)
	}
}

func TestHostBridgeWindowsNotDtb(t *testing.T) {
	for _, bad := range [][]byte{nil, {1, 2}, {0xfe, 0xed, 0xd0, 0x0d}} {
		if _, err := HostBridgeWindows(bad); err == nil {
			t.Errorf("%x: want error", bad)
		}
	}
}

func TestSeedAllocator(t *testing.T) {
	b := HostBridge{
		Ranges: []HostRange{
			{Kind: RangeIo, CpuAddress: 0x3eff0000, Size: 0x10000},
			{Kind: RangeMem32, PciAddress: 0x40000000, CpuAddress: 0x40000000, Size: 0x20000000},
			{Kind: RangeMem64, PciAddress: 1 << 35, CpuAddress: 1 << 35, Size: 1 << 32},
		},
	}
	var a SimpleBarAllocator
	b.SeedAllocator(&a)
	base32, ok := a.AllocMemory32(0x100000)
	if !ok || base32 != 0x40000000 {
		t.Errorf("mem32: got 0x%x %v want 0x40000000 true", base32, ok)
	}
	base64, ok := a.AllocMemory64(1 << 32)
	if !ok || base64 != 1<<35 {
		t.Errorf("mem64: got 0x%x %v want 0x%x true", base64, ok, uint64(1)<<35)
	}
}

func TestHostRangeString(t *testing.T) {
	r := HostRange{
		Kind:       RangeMem64,
		Prefetch:   true,
		PciAddress: 8 << 32,
		CpuAddress: 8 << 32,
		Size:       4 << 32,
	}
	want := "{mem64 prefetchable pci 0x800000000 cpu 0x800000000 size 0x400000000}"
	if got := r.String(); got != want {
		t.Errorf("got %q want %q", got, want)
	}
}
