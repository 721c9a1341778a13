// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package nouveau implements wld buffers as nouveau GEM objects and a
// renderer that drives the Fermi (NVC0) 2D engine.
//
// Only the NVC0 and NVD0 chipset families are supported. Buffers taller
// than 64 rows are tiled unless wld.FlagMap is requested; tiled buffers
// cannot be mapped.
package nouveau

import (
	"errors"
	"fmt"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
)

// Name is the driver name.
const Name = "nouveau"

// ErrTiled is returned when mapping a tiled buffer.
var ErrTiled = errors.New("nouveau: tiled buffers cannot be mapped")

// Tiled layout used for tall buffers.
const (
	tileMinHeight = 0x40
	tileMode      = 0x40
	tileMemtype   = 0xfe
	tileRowAlign  = 0x80
)

// Driver supports NVIDIA devices.
type Driver struct{}

func (Driver) Name() string { return Name }

func (Driver) Supported(vendor, _ uint32) bool { return vendor == drm.VendorNVIDIA }

// CreateContext accepts a Device or a *drm.Kernel.
func (Driver) CreateContext(dev drm.Device) (wld.Context, error) {
	d, ok := dev.(Device)
	if !ok {
		k, ok := dev.(*drm.Kernel)
		if !ok {
			return nil, fmt.Errorf("nouveau: %T is not a nouveau device", dev)
		}
		d = NewDevice(k)
	}
	return NewContext(d)
}

// Context allocates GEM buffers on a nouveau device.
type Context struct {
	dev     Device
	chipset uint32
}

// NewContext checks the chipset of dev and creates a context.
func NewContext(dev Device) (*Context, error) {
	chipset, err := dev.ChipsetID()
	if err != nil {
		return nil, fmt.Errorf("nouveau: chipset id: %w", err)
	}
	switch chipset &^ 0xf {
	case 0xc0, 0xd0:
	default:
		return nil, &drm.UnsupportedChipsetError{Driver: Name, Chipset: chipset}
	}
	wld.Logger().Debug("wld: nouveau context", "chipset", fmt.Sprintf("0x%02x", chipset))
	return &Context{dev: dev, chipset: chipset}, nil
}

// DriverName returns Name.
func (c *Context) DriverName() string { return Name }

// Chipset returns the chipset ID.
func (c *Context) Chipset() uint32 { return c.chipset }

// CreateRenderer creates a renderer on its own channel.
func (c *Context) CreateRenderer() (*wld.Renderer, error) {
	r, err := newRenderer(c)
	if err != nil {
		return nil, err
	}
	return wld.NewRenderer(r), nil
}

// CreateBuffer allocates a VRAM object. drm.FlagScanout makes it
// contiguous.
func (c *Context) CreateBuffer(width, height int, format wld.Format, flags wld.Flags) (*wld.Buffer, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %v", wld.ErrUnsupportedFormat, format)
	}

	pitch := alignUp(width*bpp, 64)
	rows := height
	info := BO{Domain: DomainVRAM}
	if flags&drm.FlagScanout == 0 {
		info.TileFlags = tileNonContig
	}
	if height > tileMinHeight && flags&wld.FlagMap == 0 {
		info.TileMode = tileMode
		info.TileFlags |= tileMemtype << 8
		rows = alignUp(height, tileRowAlign)
	} else {
		info.Domain |= DomainMappable
	}
	info.Size = uint64(pitch * rows)

	out, err := c.dev.GemNew(info, 0)
	if err != nil {
		return nil, fmt.Errorf("nouveau: create %dx%d: %w", width, height, err)
	}
	return c.newBuffer(out, width, height, format, pitch), nil
}

// ImportBuffer wraps a PRIME file descriptor.
func (c *Context) ImportBuffer(t wld.ObjectType, obj wld.Object, width, height int, format wld.Format, pitch int) (*wld.Buffer, error) {
	if t != drm.ObjectPrimeFD {
		return nil, &wld.UnsupportedObjectError{Type: t}
	}
	if err := wld.ValidateLayout(width, height, format, pitch); err != nil {
		return nil, err
	}
	handle, err := c.dev.PrimeFDToHandle(obj.FD)
	if err != nil {
		return nil, fmt.Errorf("nouveau: import fd %d: %w", obj.FD, err)
	}
	info, err := c.dev.GemInfo(handle)
	if err != nil {
		_ = c.dev.GemClose(handle)
		return nil, fmt.Errorf("nouveau: import fd %d: %w", obj.FD, err)
	}
	return c.newBuffer(info, width, height, format, pitch), nil
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

func alignUp(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}

// bo is a buffer object as the 2D engine sees it.
type bo struct {
	handle    uint32
	domain    uint32
	size      int
	mapHandle uint64
	tileMode  uint32
	memtype   uint32

	pitch, width, height int
}

func (o *bo) tiled() bool { return o.memtype != 0 }

// buffer is the BufferImpl of nouveau buffers.
type buffer struct {
	ctx    *Context
	bo     *bo
	format wld.Format
}

func (c *Context) newBuffer(info BO, width, height int, format wld.Format, pitch int) *wld.Buffer {
	o := &bo{
		handle:    info.Handle,
		domain:    info.Domain & (DomainVRAM | DomainGART),
		size:      int(info.Size),
		mapHandle: info.MapHandle,
		tileMode:  info.TileMode,
		memtype:   info.TileFlags >> 8 & 0xff,
		pitch:     pitch,
		width:     width,
		height:    height,
	}
	if o.domain == 0 {
		o.domain = DomainVRAM
	}
	impl := &buffer{ctx: c, bo: o, format: format}
	return wld.NewBuffer(impl, width, height, format, pitch, wld.WithExporter(impl))
}

// Tiled reports whether b is a tiled nouveau buffer.
func Tiled(b *wld.Buffer) bool {
	impl, ok := b.Impl().(*buffer)
	return ok && impl.bo.tiled()
}

func (b *buffer) Map(*wld.Buffer) ([]byte, error) {
	if b.bo.tiled() {
		return nil, ErrTiled
	}
	if err := b.ctx.dev.CPUPrep(b.bo.handle, true); err != nil {
		return nil, fmt.Errorf("nouveau: wait idle: %w", err)
	}
	data, err := b.ctx.dev.Mmap(b.bo.mapHandle, b.bo.size)
	if err != nil {
		return nil, fmt.Errorf("nouveau: mmap: %w", err)
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
			return wld.Object{}, true, fmt.Errorf("nouveau: export: %w", err)
		}
		return wld.Object{FD: fd}, true, nil
	default:
		return wld.Object{}, false, nil
	}
}
