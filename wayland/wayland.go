// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package wayland presents wld buffers to a Wayland compositor.
//
// The package does not speak the wire protocol. Callers bind the small
// interfaces below (Display, Queue, Surface, SHM, DRM) to the client
// library they use, and this package drives them: it picks a buffer
// transport, allocates buffers the compositor can read, and implements the
// wld.BufferSocket that attaches, damages and commits them.
//
// Two transports exist. The shm transport shares memfd-backed memory and
// renders in software. The drm transport allocates through the kernel
// driver picked for the compositor's DRM device and hands buffers over as
// PRIME file descriptors.
package wayland

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gogpu/wld"
)

// ObjectBuffer exports a wld.Buffer as its TransportBuffer, carried in
// Object.Value.
const ObjectBuffer = wld.BackendWayland

// InterfaceID names a buffer transport.
type InterfaceID int

// Transport identifiers. InterfaceNone and InterfaceAny are only meaningful
// in the interface list given to NewContext.
const (
	// InterfaceNone ends the list: no further transports are tried.
	InterfaceNone InterfaceID = -2
	// InterfaceAny tries every transport not yet tried.
	InterfaceAny InterfaceID = -1
	InterfaceDRM InterfaceID = 0
	InterfaceSHM InterfaceID = 1
)

var interfaceNames = []string{InterfaceDRM: "drm", InterfaceSHM: "shm"}

func (id InterfaceID) String() string {
	switch {
	case id == InterfaceNone:
		return "none"
	case id == InterfaceAny:
		return "any"
	case id >= 0 && int(id) < len(interfaceNames):
		return interfaceNames[id]
	}
	return fmt.Sprintf("InterfaceID(%d)", int(id))
}

// ParseInterface parses "drm", "shm", "any" or "none".
func ParseInterface(s string) (InterfaceID, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "drm":
		return InterfaceDRM, nil
	case "shm":
		return InterfaceSHM, nil
	case "any":
		return InterfaceAny, nil
	case "none":
		return InterfaceNone, nil
	}
	return InterfaceNone, fmt.Errorf("wayland: unknown interface %q", s)
}

// Errors reported while creating a context.
var (
	// ErrNoGlobal is returned by Display when the compositor does not
	// advertise the requested global.
	ErrNoGlobal = errors.New("wayland: global not advertised")

	// ErrNoInterface is returned when no requested transport could be
	// initialised.
	ErrNoInterface = errors.New("wayland: no usable interface")
)

// Display is the client connection.
type Display interface {
	// CreateQueue creates a private event queue. Objects bound by this
	// package deliver their events to it.
	CreateQueue() (Queue, error)

	// Roundtrip blocks until the compositor has handled every request sent
	// so far and the resulting events on q have been dispatched.
	Roundtrip(q Queue) error

	// BindSHM binds wl_shm on q, or returns ErrNoGlobal.
	BindSHM(q Queue) (SHM, error)

	// BindDRM binds wl_drm version 2 or later on q, or returns ErrNoGlobal.
	BindDRM(q Queue) (DRM, error)
}

// Queue is a private event queue.
type Queue interface {
	// DispatchPending dispatches queued events without reading the socket.
	DispatchPending() error
	Destroy() error
}

// Surface is the wl_surface buffers are presented on.
type Surface interface {
	Attach(b TransportBuffer, x, y int) error
	Damage(x, y, width, height int) error
	Commit() error
}

// TransportBuffer is a wl_buffer.
type TransportBuffer interface {
	// SetReleaseHandler installs the function called, from the queue's
	// dispatch, when the compositor releases the buffer.
	SetReleaseHandler(fn func())
	Destroy() error
}

// SHM is the wl_shm global. Formats are wl_shm format codes.
type SHM interface {
	Formats() []uint32
	CreatePool(fd int, size int) (Pool, error)
	Destroy() error
}

// Pool is a wl_shm_pool.
type Pool interface {
	CreateBuffer(offset, width, height, stride int, format uint32) (TransportBuffer, error)
	Destroy() error
}

// DRMCapabilityPrime is the wl_drm capability for PRIME buffers.
const DRMCapabilityPrime = 1

// DRM is the wl_drm global. Formats are fourcc codes.
type DRM interface {
	// Device is the device path announced by the compositor, or "".
	Device() string
	Authenticate(magic uint32) error
	Authenticated() bool
	Capabilities() uint32
	Formats() []uint32
	CreatePrimeBuffer(fd, width, height int, format wld.Format, offset, stride int) (TransportBuffer, error)
	Destroy() error
}

// attachTransport makes b export tb as ObjectBuffer and destroy it with b.
func attachTransport(b *wld.Buffer, tb TransportBuffer) {
	b.AddExporter(wld.ExporterFunc(func(_ *wld.Buffer, t wld.ObjectType) (wld.Object, bool, error) {
		if t != ObjectBuffer {
			return wld.Object{}, false, nil
		}
		return wld.Object{Value: tb}, true, nil
	}))
	b.AddDestructor(wld.DestructorFunc(func(*wld.Buffer) error {
		return tb.Destroy()
	}))
}

// TransportBufferOf returns the TransportBuffer b is presented as.
func TransportBufferOf(b *wld.Buffer) (TransportBuffer, error) {
	obj, err := b.Export(ObjectBuffer)
	if err != nil {
		return nil, err
	}
	tb, ok := obj.Value.(TransportBuffer)
	if !ok {
		return nil, &wld.UnsupportedObjectError{Type: ObjectBuffer}
	}
	return tb, nil
}
