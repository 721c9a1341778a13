// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wayland

import (
	"errors"
	"fmt"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/drm/dumb"
	"github.com/gogpu/wld/drm/intel"
	"github.com/gogpu/wld/drm/nouveau"
)

// transport is one buffer sharing mechanism.
type transport interface {
	createRenderer() (*wld.Renderer, error)
	createBuffer(width, height int, format wld.Format, flags wld.Flags) (*wld.Buffer, error)
	hasFormat(f wld.Format) bool
	destroy() error
}

// DriverFactory creates a driver context for an authenticated DRM device.
type DriverFactory func(dev drm.Device) (wld.Context, error)

// DeviceOpener opens the DRM device the compositor announced.
type DeviceOpener func(path string) (drm.Device, error)

type options struct {
	override InterfaceID
	driver   DriverFactory
	open     DeviceOpener
}

// Option configures NewContext.
type Option func(*options)

// WithOverride restricts NewContext to id alone, ignoring the requested
// list. It is how a user setting such as WLD_WAYLAND_INTERFACE is applied.
func WithOverride(id InterfaceID) Option {
	return func(o *options) { o.override = id }
}

// WithDriverRegistry creates drm transport driver contexts from r.
func WithDriverRegistry(r *drm.Registry) Option {
	return func(o *options) { o.driver = r.CreateContext }
}

// WithDriverFactory creates drm transport driver contexts with fn.
func WithDriverFactory(fn DriverFactory) Option {
	return func(o *options) { o.driver = fn }
}

// WithDeviceOpener replaces the function that opens the DRM device.
func WithDeviceOpener(fn DeviceOpener) Option {
	return func(o *options) { o.open = fn }
}

// DefaultDrivers returns the driver registry used when no other is given:
// intel, nouveau, then dumb.
func DefaultDrivers() *drm.Registry {
	return drm.NewRegistry([]drm.Driver{intel.Driver{}, nouveau.Driver{}, dumb.Driver{}})
}

func openKernel(path string) (drm.Device, error) {
	return drm.Open(path)
}

// Context allocates buffers the compositor can read.
type Context struct {
	display   Display
	queue     Queue
	id        InterfaceID
	transport transport
}

var _ wld.Context = (*Context)(nil)

// NewContext connects to the compositor through the first transport of ids
// that initialises. The list ends at its last element or at InterfaceNone.
// If it ends with InterfaceAny, every transport not yet tried is tried in
// order. With WithOverride only the overriding transport is tried.
func NewContext(display Display, ids []InterfaceID, opts ...Option) (*Context, error) {
	o := options{override: InterfaceNone, open: openKernel}
	for _, opt := range opts {
		opt(&o)
	}
	if o.driver == nil {
		o.driver = DefaultDrivers().CreateContext
	}

	queue, err := display.CreateQueue()
	if err != nil {
		return nil, fmt.Errorf("wayland: create queue: %w", err)
	}
	c := &Context{display: display, queue: queue}

	if o.override != InterfaceNone {
		t, err := c.create(o.override, &o)
		if err != nil {
			_ = queue.Destroy()
			return nil, fmt.Errorf("wayland: interface %v: %w", o.override, err)
		}
		c.id, c.transport = o.override, t
		return c, nil
	}

	tried := make([]bool, len(interfaceNames))
	var errs []error
	try := func(id InterfaceID) bool {
		tried[id] = true
		t, err := c.create(id, &o)
		if err != nil {
			wld.Logger().Debug("wayland: interface unavailable", "interface", id, "err", err)
			errs = append(errs, fmt.Errorf("%v: %w", id, err))
			return false
		}
		c.id, c.transport = id, t
		return true
	}

	rest := false
	for _, id := range ids {
		if id == InterfaceNone {
			break
		}
		if id == InterfaceAny {
			rest = true
			break
		}
		if id < 0 || int(id) >= len(tried) || tried[id] {
			continue
		}
		if try(id) {
			return c, nil
		}
	}
	if rest {
		for id := range tried {
			if !tried[id] && try(InterfaceID(id)) {
				return c, nil
			}
		}
	}

	_ = queue.Destroy()
	if len(errs) == 0 {
		return nil, ErrNoInterface
	}
	return nil, fmt.Errorf("%w: %w", ErrNoInterface, errors.Join(errs...))
}

func (c *Context) create(id InterfaceID, o *options) (transport, error) {
	switch id {
	case InterfaceSHM:
		return newSHMTransport(c.display, c.queue)
	case InterfaceDRM:
		return newDRMTransport(c.display, c.queue, o.open, o.driver)
	}
	return nil, fmt.Errorf("wayland: unknown interface %v", id)
}

// Interface returns the transport in use.
func (c *Context) Interface() InterfaceID { return c.id }

// Queue returns the private event queue.
func (c *Context) Queue() Queue { return c.queue }

// HasFormat reports whether the compositor accepts buffers of format f.
func (c *Context) HasFormat(f wld.Format) bool { return c.transport.hasFormat(f) }

// HasFormat reports whether ctx is a wayland context whose compositor
// accepts format f.
func HasFormat(ctx wld.Context, f wld.Format) bool {
	c, ok := ctx.(*Context)
	return ok && c.HasFormat(f)
}

// DRMFD returns the authenticated DRM device descriptor of a drm transport
// context, or -1.
func (c *Context) DRMFD() int {
	t, ok := c.transport.(*drmTransport)
	if !ok || !t.wl.Authenticated() {
		return -1
	}
	return t.dev.FD()
}

// DriverContext returns the DRM driver context of a drm transport context,
// or nil.
func (c *Context) DriverContext() wld.Context {
	if t, ok := c.transport.(*drmTransport); ok {
		return t.driver
	}
	return nil
}

// CreateRenderer implements wld.Context.
func (c *Context) CreateRenderer() (*wld.Renderer, error) {
	return c.transport.createRenderer()
}

// CreateBuffer implements wld.Context. The buffer exports ObjectBuffer.
func (c *Context) CreateBuffer(width, height int, format wld.Format, flags wld.Flags) (*wld.Buffer, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	if !c.transport.hasFormat(format) {
		return nil, fmt.Errorf("%w: %v not advertised by the compositor", wld.ErrUnsupportedFormat, format)
	}
	return c.transport.createBuffer(width, height, format, flags)
}

// ImportBuffer implements wld.Context. Wayland contexts import nothing.
func (c *Context) ImportBuffer(t wld.ObjectType, _ wld.Object, _, _ int, _ wld.Format, _ int) (*wld.Buffer, error) {
	return nil, &wld.UnsupportedObjectError{Type: t}
}

// CreateSurface implements wld.Context. The surface has no socket; use
// CreateSurfaceFor to present.
func (c *Context) CreateSurface(width, height int, format wld.Format, flags wld.Flags) (wld.Surface, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	return wld.NewBufferedSurface(c, width, height, format, flags, nil), nil
}

// CreateSurfaceFor creates a surface presented on wl.
func (c *Context) CreateSurfaceFor(wl Surface, width, height int, format wld.Format, flags wld.Flags) (*wld.BufferedSurface, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	s := newSocket(wl, c.queue)
	surface := wld.NewBufferedSurface(c, width, height, format, flags, s)
	s.surface = surface
	return surface, nil
}

// Destroy releases the transport and the queue. Buffers and surfaces must
// be destroyed first.
func (c *Context) Destroy() error {
	return errors.Join(c.transport.destroy(), c.queue.Destroy())
}
