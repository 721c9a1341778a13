// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package drm selects a kernel GPU driver for a DRM device and defines the
// object types and flags shared by the driver backends.
//
// Driver backends live in subpackages: dumb (linear kernel buffers drawn
// by the software renderer), intel (BLT engine) and nouveau (NVC0 2D
// engine).
package drm

import (
	"fmt"

	"github.com/gogpu/wld"
)

// Object types of DRM buffers.
const (
	// ObjectHandle is a GEM handle in Object.Handle.
	ObjectHandle = wld.BackendDRM
	// ObjectPrimeFD is a dma-buf file descriptor in Object.FD. The
	// receiver owns the descriptor.
	ObjectPrimeFD = wld.BackendDRM + 1
)

// Buffer flags understood by DRM backends.
const (
	// FlagScanout requests a buffer usable for display.
	FlagScanout wld.Flags = 0x1
	// FlagTiled requests a tiled layout where the driver supports one.
	FlagTiled wld.Flags = 0x2
)

// PCI vendor IDs.
const (
	VendorIntel  = 0x8086
	VendorNVIDIA = 0x10de
)

// Driver creates contexts for the devices it supports.
type Driver interface {
	Name() string
	Supported(vendor, device uint32) bool
	CreateContext(dev Device) (wld.Context, error)
}

// UnsupportedDeviceError is returned when no driver supports a device.
type UnsupportedDeviceError struct {
	Vendor, Device uint32
}

func (e *UnsupportedDeviceError) Error() string {
	return fmt.Sprintf("drm: no driver for device %04x:%04x", e.Vendor, e.Device)
}

// UnsupportedChipsetError is returned by a driver that recognises the
// vendor but not the chipset.
type UnsupportedChipsetError struct {
	Driver  string
	Chipset uint32
}

func (e *UnsupportedChipsetError) Error() string {
	return fmt.Sprintf("drm: %s: unsupported chipset 0x%x", e.Driver, e.Chipset)
}

// driverNamer is implemented by contexts that know their driver.
type driverNamer interface {
	DriverName() string
}

// DriverName returns the name of the driver that created ctx, or "" if ctx
// is not a DRM context.
func DriverName(ctx wld.Context) string {
	if n, ok := ctx.(driverNamer); ok {
		return n.DriverName()
	}
	return ""
}

// IsDumb reports whether ctx was created by the dumb driver.
func IsDumb(ctx wld.Context) bool {
	return DriverName(ctx) == "dumb"
}
