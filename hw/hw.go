// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memory mapped register read/write
package hw

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"unsafe"
)

// Must point to readable memory since compiler may perform
// read probes (nil checks) as part of memory addressing.
var (
	BasePointer = basePointer()
	BaseAddress = uintptr(BasePointer)
)

func basePointer() unsafe.Pointer {
	// ok for all 32 bit devices.
	x, err := syscall.Mmap(0, 0, 1<<32, syscall.PROT_READ, syscall.MAP_PRIVATE|syscall.MAP_ANON|syscall.MAP_NORESERVE)
	if err != nil {
		panic(err)
	}
	return unsafe.Pointer(&x[0])
}

func CheckRegAddr(name string, got, want uint) {
	if got != want {
		panic(fmt.Errorf("%s got 0x%x != want 0x%x", name, got, want))
	}
}

// Generic 32 bit register
type Reg32 uint32

// Memory-mapped read/write. Register accesses must be single untorn
// loads and stores issued in program order.
func LoadUint32(addr uintptr) (data uint32) {
	return atomic.LoadUint32((*uint32)(unsafe.Pointer(addr)))
}
func StoreUint32(addr uintptr, data uint32) {
	atomic.StoreUint32((*uint32)(unsafe.Pointer(addr)), data)
}

var barrier uint32

// MemoryBarrier orders loads and stores issued before it ahead of
// those issued after it.
func MemoryBarrier() { atomic.AddUint32(&barrier, 0) }
