// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package dumb implements wld buffers as kernel dumb buffers: linear,
// CPU-mappable memory that any KMS driver can allocate. Drawing is done by
// the software renderer through a mapping.
package dumb

import (
	"fmt"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/software"
)

// Name is the driver name.
const Name = "dumb"

// Driver supports every device.
type Driver struct{}

func (Driver) Name() string { return Name }

func (Driver) Supported(vendor, device uint32) bool { return true }

func (Driver) CreateContext(dev drm.Device) (wld.Context, error) {
	return NewContext(dev), nil
}

// Context allocates dumb buffers on a device.
type Context struct {
	dev drm.Device
	sw  *software.Context
}

// NewContext creates a context on dev.
func NewContext(dev drm.Device) *Context {
	return &Context{dev: dev, sw: software.NewContext()}
}

// DriverName returns Name.
func (c *Context) DriverName() string { return Name }

// Device returns the device the context allocates on.
func (c *Context) Device() drm.Device { return c.dev }

// CreateRenderer returns a software renderer.
func (c *Context) CreateRenderer() (*wld.Renderer, error) {
	return c.sw.CreateRenderer()
}

// CreateBuffer allocates a dumb buffer. Flags are ignored; dumb buffers
// are always linear and mappable.
func (c *Context) CreateBuffer(width, height int, format wld.Format, _ wld.Flags) (*wld.Buffer, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	bpp := format.BytesPerPixel()
	if bpp == 0 {
		return nil, fmt.Errorf("%w: %v", wld.ErrUnsupportedFormat, format)
	}
	d, err := c.dev.CreateDumb(uint32(width), uint32(height), uint32(bpp*8))
	if err != nil {
		return nil, fmt.Errorf("dumb: create %dx%d: %w", width, height, err)
	}
	return c.newBuffer(d.Handle, width, height, format, int(d.Pitch), int(d.Size), true), nil
}

// ImportBuffer wraps a PRIME file descriptor. The descriptor stays owned
// by the caller.
func (c *Context) ImportBuffer(t wld.ObjectType, obj wld.Object, width, height int, format wld.Format, pitch int) (*wld.Buffer, error) {
	if t != drm.ObjectPrimeFD {
		return nil, &wld.UnsupportedObjectError{Type: t}
	}
	if err := wld.ValidateLayout(width, height, format, pitch); err != nil {
		return nil, err
	}
	handle, err := c.dev.PrimeFDToHandle(obj.FD)
	if err != nil {
		return nil, fmt.Errorf("dumb: import fd %d: %w", obj.FD, err)
	}
	return c.newBuffer(handle, width, height, format, pitch, pitch*height, false), nil
}

// CreateSurface creates a buffered surface without a socket.
func (c *Context) CreateSurface(width, height int, format wld.Format, flags wld.Flags) (wld.Surface, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	return wld.NewBufferedSurface(c, width, height, format, flags, nil), nil
}

// Destroy implements wld.Context. The device is not closed.
func (c *Context) Destroy() error {
	return c.sw.Destroy()
}

// buffer is the BufferImpl of dumb buffers.
type buffer struct {
	ctx    *Context
	handle uint32
	size   int
	// dumb is false for imported objects, which are released with
	// GemClose instead of DestroyDumb.
	dumb bool
}

func (c *Context) newBuffer(handle uint32, width, height int, format wld.Format, pitch, size int, dumb bool) *wld.Buffer {
	impl := &buffer{ctx: c, handle: handle, size: size, dumb: dumb}
	return wld.NewBuffer(impl, width, height, format, pitch, wld.WithExporter(impl))
}

// Handle returns the GEM handle of a dumb buffer.
func Handle(b *wld.Buffer) (uint32, bool) {
	impl, ok := b.Impl().(*buffer)
	if !ok {
		return 0, false
	}
	return impl.handle, true
}

func (b *buffer) Map(*wld.Buffer) ([]byte, error) {
	offset, err := b.ctx.dev.MapDumb(b.handle)
	if err != nil {
		return nil, fmt.Errorf("dumb: map: %w", err)
	}
	data, err := b.ctx.dev.Mmap(offset, b.size)
	if err != nil {
		return nil, fmt.Errorf("dumb: mmap: %w", err)
	}
	return data, nil
}

func (b *buffer) Unmap(wb *wld.Buffer) error {
	return b.ctx.dev.Munmap(wb.Data())
}

func (b *buffer) Destroy(*wld.Buffer) error {
	if b.dumb {
		return b.ctx.dev.DestroyDumb(b.handle)
	}
	return b.ctx.dev.GemClose(b.handle)
}

// Export implements wld.Exporter.
func (b *buffer) Export(_ *wld.Buffer, t wld.ObjectType) (wld.Object, bool, error) {
	switch t {
	case drm.ObjectHandle:
		return wld.Object{Handle: b.handle}, true, nil
	case drm.ObjectPrimeFD:
		fd, err := b.ctx.dev.PrimeHandleToFD(b.handle)
		if err != nil {
			return wld.Object{}, true, fmt.Errorf("dumb: export: %w", err)
		}
		return wld.Object{FD: fd}, true, nil
	default:
		return wld.Object{}, false, nil
	}
}
