// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wayland

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
)

// drmTransport allocates through the kernel driver of the compositor's
// device and shares buffers as PRIME descriptors.
type drmTransport struct {
	wl      DRM
	dev     drm.Device
	driver  wld.Context
	closeFD func(fd int) error
}

func newDRMTransport(display Display, queue Queue, open DeviceOpener, driver DriverFactory) (*drmTransport, error) {
	wl, err := display.BindDRM(queue)
	if err != nil {
		return nil, fmt.Errorf("wl_drm: %w", err)
	}
	t, err := authenticate(display, queue, wl, open)
	if err != nil {
		_ = wl.Destroy()
		return nil, err
	}
	t.driver, err = driver(t.dev)
	if err != nil {
		_ = closeDevice(t.dev)
		_ = wl.Destroy()
		return nil, fmt.Errorf("wl_drm: driver for %s: %w", wl.Device(), err)
	}
	wld.Logger().Debug("wayland: drm transport ready", "device", wl.Device(), "driver", drm.DriverName(t.driver))
	return t, nil
}

// authenticate opens the announced device and authenticates its magic
// with the compositor.
func authenticate(display Display, queue Queue, wl DRM, open DeviceOpener) (*drmTransport, error) {
	// Receive the device, format and capability events.
	if err := display.Roundtrip(queue); err != nil {
		return nil, fmt.Errorf("wl_drm: roundtrip: %w", err)
	}
	if wl.Capabilities()&DRMCapabilityPrime == 0 {
		return nil, errors.New("wl_drm: no PRIME support")
	}
	path := wl.Device()
	if path == "" {
		return nil, errors.New("wl_drm: no device announced")
	}
	dev, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("wl_drm: open %s: %w", path, err)
	}
	magic, err := dev.GetMagic()
	if err == nil {
		err = wl.Authenticate(magic)
	}
	if err == nil {
		err = display.Roundtrip(queue)
	}
	if err == nil && !wl.Authenticated() {
		err = errors.New("rejected")
	}
	if err != nil {
		_ = closeDevice(dev)
		return nil, fmt.Errorf("wl_drm: authenticate %s: %w", path, err)
	}
	return &drmTransport{wl: wl, dev: dev, closeFD: unix.Close}, nil
}

func closeDevice(dev drm.Device) error {
	if c, ok := dev.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func (t *drmTransport) hasFormat(f wld.Format) bool {
	return slices.Contains(t.wl.Formats(), uint32(f))
}

func (t *drmTransport) createRenderer() (*wld.Renderer, error) {
	return t.driver.CreateRenderer()
}

func (t *drmTransport) createBuffer(width, height int, format wld.Format, flags wld.Flags) (*wld.Buffer, error) {
	b, err := t.driver.CreateBuffer(width, height, format, flags)
	if err != nil {
		return nil, err
	}
	obj, err := b.Export(drm.ObjectPrimeFD)
	if err != nil {
		_ = b.Unreference()
		return nil, fmt.Errorf("wayland: export prime fd: %w", err)
	}
	tb, err := t.wl.CreatePrimeBuffer(obj.FD, width, height, format, 0, b.Pitch())
	// The compositor holds its own reference to the dma-buf.
	if cerr := t.closeFD(obj.FD); cerr != nil {
		wld.Logger().Debug("wayland: close prime fd", "fd", obj.FD, "err", cerr)
	}
	if err != nil {
		_ = b.Unreference()
		return nil, fmt.Errorf("wayland: create prime buffer: %w", err)
	}
	attachTransport(b, tb)
	return b, nil
}

func (t *drmTransport) destroy() error {
	return errors.Join(t.driver.Destroy(), closeDevice(t.dev), t.wl.Destroy())
}
