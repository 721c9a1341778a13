// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package intel implements wld buffers as i915 GEM objects and a renderer
// that draws with the BLT engine.
//
// Buffers at least 128 pixels wide are X-tiled. Drawing is encoded into a
// batch buffer of 8192 words which is executed on the BLT ring on
// generation 6 and later, and on the render ring before that.
package intel

import (
	"fmt"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
)

// Name is the driver name.
const Name = "intel"

// tileMinWidth is the narrowest buffer that gets X tiling.
const tileMinWidth = 128

// Driver supports Intel devices.
type Driver struct{}

func (Driver) Name() string { return Name }

func (Driver) Supported(vendor, _ uint32) bool { return vendor == drm.VendorIntel }

// CreateContext accepts a Device or a *drm.Kernel.
func (Driver) CreateContext(dev drm.Device) (wld.Context, error) {
	d, ok := dev.(Device)
	if !ok {
		k, ok := dev.(*drm.Kernel)
		if !ok {
			return nil, fmt.Errorf("intel: %T is not an i915 device", dev)
		}
		d = NewDevice(k)
	}
	return NewContext(d)
}

// Context allocates GEM buffers on an i915 device.
type Context struct {
	dev     Device
	chipset uint32
	gen     int
}

// NewContext queries the chipset of dev and creates a context.
func NewContext(dev Device) (*Context, error) {
	id, err := dev.ChipsetID()
	if err != nil {
		return nil, fmt.Errorf("intel: chipset id: %w", err)
	}
	c := &Context{dev: dev, chipset: id, gen: Gen(id)}
	wld.Logger().Debug("wld: intel context", "chipset", fmt.Sprintf("0x%04x", id), "gen", c.gen)
	return c, nil
}

// DriverName returns Name.
func (c *Context) DriverName() string { return Name }

// Gen returns the graphics generation of the device.
func (c *Context) Gen() int { return c.gen }

// Chipset returns the PCI device ID.
func (c *Context) Chipset() uint32 { return c.chipset }

// CreateRenderer creates a BLT renderer with its own batch buffer.
func (c *Context) CreateRenderer() (*wld.Renderer, error) {
	r, err := newRenderer(c)
	if err != nil {
		return nil, err
	}
	return wld.NewRenderer(r), nil
}

// CreateBuffer allocates a GEM object. Buffers at least 128 pixels wide
// are X-tiled if the kernel allows it.
func (c *Context) CreateBuffer(width, height int, format wld.Format, _ wld.Flags) (*wld.Buffer, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %v", wld.ErrUnsupportedFormat, format)
	}

	tiling := uint32(TilingNone)
	if width >= tileMinWidth {
		tiling = TilingX
	}
	pitch, rows := layout(width*bpp, height, tiling)
	size := alignUp(pitch*rows, 4096)

	handle, err := c.dev.GemCreate(uint64(size))
	if err != nil {
		return nil, fmt.Errorf("intel: create %dx%d: %w", width, height, err)
	}
	if tiling != TilingNone {
		got, err := c.dev.SetTiling(handle, tiling, uint32(pitch))
		if err != nil {
			wld.Logger().Debug("wld: intel tiling refused", "handle", handle, "err", err)
			got = TilingNone
		}
		tiling = got
	}

	o := &bo{handle: handle, tiling: tiling, pitch: pitch}
	return c.newBuffer(o, width, height, format, size), nil
}

// ImportBuffer wraps a PRIME file descriptor. The tiling mode is read back
// from the kernel.
func (c *Context) ImportBuffer(t wld.ObjectType, obj wld.Object, width, height int, format wld.Format, pitch int) (*wld.Buffer, error) {
	if t != drm.ObjectPrimeFD {
		return nil, &wld.UnsupportedObjectError{Type: t}
	}
	if err := wld.ValidateLayout(width, height, format, pitch); err != nil {
		return nil, err
	}
	handle, err := c.dev.PrimeFDToHandle(obj.FD)
	if err != nil {
		return nil, fmt.Errorf("intel: import fd %d: %w", obj.FD, err)
	}
	tiling, err := c.dev.GetTiling(handle)
	if err != nil {
		_ = c.dev.GemClose(handle)
		return nil, fmt.Errorf("intel: import fd %d: %w", obj.FD, err)
	}
	rows := height
	if tiling != TilingNone {
		rows = alignUp(height, 8)
	}
	o := &bo{handle: handle, tiling: tiling, pitch: pitch}
	return c.newBuffer(o, width, height, format, pitch*rows), nil
}

// CreateSurface creates a buffered surface without a socket.
func (c *Context) CreateSurface(width, height int, format wld.Format, flags wld.Flags) (wld.Surface, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	return wld.NewBufferedSurface(c, width, height, format, flags, nil), nil
}

// Destroy implements wld.Context. The device is not closed.
func (c *Context) Destroy() error { return nil }

// layout returns the pitch and allocated rows for a surface of rowBytes by
// height with the given tiling.
func layout(rowBytes, height int, tiling uint32) (pitch, rows int) {
	if tiling == TilingX {
		return alignUp(rowBytes, 512), alignUp(height, 8)
	}
	return alignUp(rowBytes, 64), height
}

func alignUp(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}

// buffer is the BufferImpl of GEM buffers.
type buffer struct {
	ctx           *Context
	bo            *bo
	size          int
	width, height int
}

func (c *Context) newBuffer(o *bo, width, height int, format wld.Format, size int) *wld.Buffer {
	impl := &buffer{ctx: c, bo: o, size: size, width: width, height: height}
	return wld.NewBuffer(impl, width, height, format, o.pitch, wld.WithExporter(impl))
}

// Tiling returns the tiling mode of an intel buffer.
func Tiling(b *wld.Buffer) (uint32, bool) {
	impl, ok := b.Impl().(*buffer)
	if !ok {
		return 0, false
	}
	return impl.bo.tiling, true
}

// Map maps the object through the GTT so tiled buffers read linearly.
func (b *buffer) Map(*wld.Buffer) ([]byte, error) {
	dev := b.ctx.dev
	offset, err := dev.MmapGTT(b.bo.handle)
	if err != nil {
		return nil, fmt.Errorf("intel: mmap gtt: %w", err)
	}
	data, err := dev.Mmap(offset, b.size)
	if err != nil {
		return nil, fmt.Errorf("intel: mmap: %w", err)
	}
	if err := dev.SetDomain(b.bo.handle, DomainGTT, DomainGTT); err != nil {
		_ = dev.Munmap(data)
		return nil, fmt.Errorf("intel: set domain: %w", err)
	}
	return data, nil
}

func (b *buffer) Unmap(wb *wld.Buffer) error {
	return b.ctx.dev.Munmap(wb.Data())
}

func (b *buffer) Destroy(*wld.Buffer) error {
	return b.ctx.dev.GemClose(b.bo.handle)
}

// Export implements wld.Exporter.
func (b *buffer) Export(_ *wld.Buffer, t wld.ObjectType) (wld.Object, bool, error) {
	switch t {
	case drm.ObjectHandle:
		return wld.Object{Handle: b.bo.handle}, true, nil
	case drm.ObjectPrimeFD:
		fd, err := b.ctx.dev.PrimeHandleToFD(b.bo.handle)
		if err != nil {
			return wld.Object{}, true, fmt.Errorf("intel: export: %w", err)
		}
		return wld.Object{FD: fd}, true, nil
	default:
		return wld.Object{}, false, nil
	}
}
