// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drm

import (
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/gogpu/wld"
)

// Registry is an ordered list of drivers. The first driver that supports a
// device wins.
type Registry struct {
	drivers []Driver
	sysfs   fs.FS
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithSysfs reads device IDs from fsys instead of /sys.
func WithSysfs(fsys fs.FS) RegistryOption {
	return func(r *Registry) { r.sysfs = fsys }
}

// NewRegistry creates a registry trying drivers in order.
func NewRegistry(drivers []Driver, opts ...RegistryOption) *Registry {
	r := &Registry{
		drivers: append([]Driver(nil), drivers...),
		sysfs:   os.DirFS("/sys"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Drivers returns the registered drivers in order.
func (r *Registry) Drivers() []Driver {
	return append([]Driver(nil), r.drivers...)
}

// Find returns the first driver supporting the device.
func (r *Registry) Find(vendor, device uint32) (Driver, error) {
	for _, d := range r.drivers {
		if d.Supported(vendor, device) {
			return d, nil
		}
	}
	return nil, &UnsupportedDeviceError{Vendor: vendor, Device: device}
}

// CreateContext identifies the device behind dev and creates a context
// with the first driver that supports it.
func (r *Registry) CreateContext(dev Device) (wld.Context, error) {
	vendor, device, err := r.DeviceID(dev.FD())
	if err != nil {
		return nil, err
	}
	d, err := r.Find(vendor, device)
	if err != nil {
		return nil, err
	}
	wld.Logger().Debug("wld: drm driver selected",
		"driver", d.Name(), "vendor", fmt.Sprintf("%04x", vendor), "device", fmt.Sprintf("%04x", device))
	return d.CreateContext(dev)
}

// DeviceID returns the PCI vendor and device IDs of the DRM device open
// at fd, read from dev/char/MAJOR:MINOR/device in sysfs.
func (r *Registry) DeviceID(fd int) (vendor, device uint32, err error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, 0, fmt.Errorf("drm: stat device: %w", err)
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return 0, 0, fmt.Errorf("drm: fd %d is not a character device", fd)
	}
	return ReadDeviceID(r.sysfs, unix.Major(uint64(st.Rdev)), unix.Minor(uint64(st.Rdev)))
}

// ReadDeviceID reads the vendor and device IDs of a character device from
// a sysfs tree.
func ReadDeviceID(sysfs fs.FS, major, minor uint32) (vendor, device uint32, err error) {
	dir := fmt.Sprintf("dev/char/%d:%d/device", major, minor)
	if vendor, err = readHex(sysfs, dir+"/vendor"); err != nil {
		return 0, 0, err
	}
	if device, err = readHex(sysfs, dir+"/device"); err != nil {
		return 0, 0, err
	}
	return vendor, device, nil
}

func readHex(fsys fs.FS, name string) (uint32, error) {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return 0, fmt.Errorf("drm: %w", err)
	}
	s := strings.TrimPrefix(strings.TrimSpace(string(data)), "0x")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("drm: %s: %w", name, err)
	}
	return uint32(v), nil
}
