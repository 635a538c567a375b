// Copyright 2019 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Igbup lists, enables and brings up the link on Intel 82576/i210
// devices through the sysfs pci interface.
//
//	igbup -list
//	igbup -dtb FILE
//	igbup [-v] [-addr [DDDD:]BB:SS.F] [-wait SECONDS] -up
package main

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jpillora/backoff"
	"github.com/platinasystems/flags"
	"github.com/platinasystems/parms"

	"github.com/platinasystems/igb"
	"github.com/platinasystems/igb/pci"
)

const sysfsRoot = "/sys/bus/pci/devices"

func main() {
	if err := igbup(os.Args[1:]...); err != nil {
		fmt.Fprintln(os.Stderr, "igbup:", err)
		os.Exit(1)
	}
}

func usage() string {
	return "igbup [-v] [-list] [-dtb FILE] [-addr [DDDD:]BB:SS.F] [-wait SECONDS] [-up]"
}

func igbup(args ...string) error {
	flag, args := flags.New(args, "-v", "-list", "-up", "-h")
	parm, args := parms.New(args, "-addr", "-dtb", "-wait")
	if len(args) > 0 {
		return fmt.Errorf("%v: unexpected", args)
	}
	if flag.ByName["-h"] {
		fmt.Println(usage())
		return nil
	}
	if fn := parm.ByName["-dtb"]; len(fn) > 0 {
		return showHostBridges(fn)
	}
	if flag.ByName["-list"] {
		return list()
	}
	if flag.ByName["-up"] {
		return up(parm.ByName["-addr"], parm.ByName["-wait"], flag.ByName["-v"])
	}
	fmt.Println(usage())
	return nil
}

func showHostBridges(fn string) error {
	b, err := ioutil.ReadFile(fn)
	if err != nil {
		return err
	}
	bridges, err := pci.HostBridgeWindows(b)
	if err != nil {
		return err
	}
	for _, hb := range bridges {
		fmt.Printf("%s: ecam 0x%x size 0x%x\n", hb.Name, hb.EcamBase, hb.EcamSize)
		for _, r := range hb.Ranges {
			fmt.Println("\t", r)
		}
	}
	return nil
}

func devices() (addrs []string, err error) {
	fis, err := ioutil.ReadDir(sysfsRoot)
	if err != nil {
		return
	}
	for _, fi := range fis {
		vid, verr := sysfsHex(filepath.Join(sysfsRoot, fi.Name(), "vendor"))
		did, derr := sysfsHex(filepath.Join(sysfsRoot, fi.Name(), "device"))
		if verr != nil || derr != nil {
			continue
		}
		if igb.CheckVidDid(vid, did) {
			addrs = append(addrs, fi.Name())
		}
	}
	return
}

func sysfsHex(path string) (uint16, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(b)), 0, 32)
	return uint16(v), err
}

func list() error {
	addrs, err := devices()
	if err != nil {
		return err
	}
	for _, a := range addrs {
		did, _ := sysfsHex(filepath.Join(sysfsRoot, a, "device"))
		fmt.Printf("%s: %s (device id 0x%04x)\n", a, igb.DeviceName(did), did)
	}
	return nil
}

func up(addr, wait string, verbose bool) error {
	if len(addr) == 0 {
		addrs, err := devices()
		if err != nil {
			return err
		}
		if len(addrs) == 0 {
			return fmt.Errorf("no 82576/i210 devices")
		}
		addr = addrs[0]
	} else if _, err := pci.ParseBusAddress(addr); err != nil {
		return err
	}
	// sysfs names are fully qualified: DDDD:BB:SS.F
	if strings.Count(addr, ":") == 1 {
		addr = "0000:" + addr
	}
	dir := filepath.Join(sysfsRoot, addr)

	// Turn on memory space decode.
	if err := ioutil.WriteFile(filepath.Join(dir, "enable"), []byte("1"), 0644); err != nil {
		return err
	}

	f, err := os.OpenFile(filepath.Join(dir, "resource0"), os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return err
	}
	mem, err := syscall.Mmap(int(f.Fd()), 0, int(fi.Size()),
		syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return err
	}
	defer syscall.Munmap(mem)

	d, err := igb.New(mem, igb.HostKernel{})
	if err != nil {
		return err
	}
	if verbose {
		mode, bits := d.Mac().LinkMode()
		fmt.Printf("%s: link mode %v (0x%x)\n", addr, mode, bits)
	}
	if err = d.Open(); err != nil {
		return err
	}

	waitSec := 10
	if len(wait) > 0 {
		if waitSec, err = strconv.Atoi(wait); err != nil {
			return err
		}
	}
	b := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
		Factor: 2,
		Jitter: false,
	}
	deadline := time.Now().Add(time.Duration(waitSec) * time.Second)
	for {
		s := d.Status()
		if s.LinkUp {
			fmt.Printf("%s: %v\n", addr, s)
			break
		}
		if time.Now().After(deadline) {
			fmt.Printf("%s: link did not come up\n", addr)
			break
		}
		time.Sleep(b.Duration())
	}
	if ea, valid := d.Mac().HardwareAddr(); valid {
		fmt.Printf("%s: address %v\n", addr, ea)
	}
	return nil
}
