// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pci

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strings"

	"github.com/platinasystems/fdt"
)

type RangeKind int

const (
	RangeIo RangeKind = iota
	RangeMem32
	RangeMem64
)

func (k RangeKind) String() string {
	switch k {
	case RangeIo:
		return "i/o"
	case RangeMem32:
		return "mem32"
	case RangeMem64:
		return "mem64"
	}
	return "unknown"
}

// HostRange is one bridge aperture from a device tree ranges
// property: a window of pci bus addresses and where it sits in cpu
// space.
type HostRange struct {
	Kind       RangeKind
	Prefetch   bool
	PciAddress uint64
	CpuAddress uint64
	Size       uint64
}

func (r HostRange) String() string {
	p := ""
	if r.Prefetch {
		p = " prefetchable"
	}
	return fmt.Sprintf("{%v%s pci 0x%x cpu 0x%x size 0x%x}", r.Kind, p, r.PciAddress, r.CpuAddress, r.Size)
}

// HostBridge is an ecam host bridge described by a device tree.
type HostBridge struct {
	Name     string
	EcamBase uint64
	EcamSize uint64
	Ranges   []HostRange
}

// HostBridgeWindows parses a flattened device tree and returns each
// pci host bridge with its ecam window and apertures, sorted by node
// name.  Cells follow the host-generic-pci binding: 2 address plus 2
// size cells for reg, 3 pci address cells in ranges.
func HostBridgeWindows(dtb []byte) ([]HostBridge, error) {
	if len(dtb) < 4 || binary.BigEndian.Uint32(dtb) != 0xd00dfeed {
		return nil, fmt.Errorf("pci: not a flattened device tree")
	}
	t := &fdt.Tree{Debug: false, IsLittleEndian: false}
	t.Parse(dtb)

	var bridges []HostBridge
	eachNode(t.RootNode, func(n *fdt.Node) {
		if !isPciBridge(n) {
			return
		}
		b := HostBridge{Name: n.Name}
		if reg := n.Properties["reg"]; len(reg) >= 16 {
			b.EcamBase = binary.BigEndian.Uint64(reg)
			b.EcamSize = binary.BigEndian.Uint64(reg[8:])
		}
		for r := n.Properties["ranges"]; len(r) >= 28; r = r[28:] {
			hi := binary.BigEndian.Uint32(r)
			hr := HostRange{
				Prefetch:   hi&(1<<30) != 0,
				PciAddress: binary.BigEndian.Uint64(r[4:]),
				CpuAddress: binary.BigEndian.Uint64(r[12:]),
				Size:       binary.BigEndian.Uint64(r[20:]),
			}
			switch hi >> 24 & 3 {
			case 1:
				hr.Kind = RangeIo
			case 2:
				hr.Kind = RangeMem32
			case 3:
				hr.Kind = RangeMem64
			default:
				continue
			}
			b.Ranges = append(b.Ranges, hr)
		}
		bridges = append(bridges, b)
	})
	sort.Slice(bridges, func(i, j int) bool { return bridges[i].Name < bridges[j].Name })
	return bridges, nil
}

func isPciBridge(n *fdt.Node) bool {
	v, ok := n.Properties["device_type"]
	return ok && strings.Trim(string(v), "\x00") == "pci"
}

func eachNode(n *fdt.Node, fn func(*fdt.Node)) {
	if n == nil {
		return
	}
	fn(n)
	for _, c := range n.Children {
		eachNode(c, fn)
	}
}

// SeedAllocator primes alloc with this bridge's memory apertures.
// Bars are programmed with pci bus addresses, so the pci side of
// each range is what seeds the allocator.
func (b *HostBridge) SeedAllocator(alloc *SimpleBarAllocator) {
	for _, r := range b.Ranges {
		switch r.Kind {
		case RangeMem32:
			alloc.SetMem32(uint32(r.PciAddress), uint32(r.Size))
		case RangeMem64:
			alloc.SetMem64(r.PciAddress, r.Size)
		}
	}
}
