// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package drmtest provides an in-memory drm.Device for tests of the driver
// backends.
package drmtest

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"

	"github.com/gogpu/wld/drm"
)

// Object is a fake GEM object.
type Object struct {
	Handle uint32
	Data   []byte
	Pitch  uint32
	Dumb   bool
}

// Device is a drm.Device whose buffer objects live in Go memory. Mmap
// returns the object's backing slice, so writes through a mapping are
// visible in Object.Data.
type Device struct {
	mu      sync.Mutex
	next    uint32
	nextFD  int
	objects map[uint32]*Object
	primes  map[int]uint32
	fail    map[string]error

	// Closed lists handles released with GemClose or DestroyDumb.
	Closed []uint32
	// Maps and Unmaps count Mmap and Munmap calls.
	Maps, Unmaps int
	// Magic is returned by GetMagic.
	Magic uint32
}

var _ drm.Device = (*Device)(nil)

// New returns an empty device.
func New() *Device {
	return &Device{
		next:    1,
		nextFD:  100,
		objects: make(map[uint32]*Object),
		primes:  make(map[int]uint32),
		fail:    make(map[string]error),
		Magic:   0x5eed,
	}
}

// Fail makes the named operation return err until cleared with a nil err.
// Names are the method names, such as "CreateDumb" or "Mmap".
func (d *Device) Fail(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, op)
		return
	}
	d.fail[op] = err
}

func (d *Device) failure(op string) error {
	return d.fail[op]
}

// Alloc creates an object of size bytes and returns its handle.
func (d *Device) Alloc(size int) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.alloc(size).Handle
}

func (d *Device) alloc(size int) *Object {
	obj := &Object{Handle: d.next, Data: make([]byte, size)}
	d.objects[obj.Handle] = obj
	d.next++
	return obj
}

// Object returns the object with the given handle, or nil.
func (d *Device) Object(handle uint32) *Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects[handle]
}

// Live returns the number of objects not yet released.
func (d *Device) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.objects)
}

// Offset returns the fake mmap offset of handle.
func Offset(handle uint32) uint64 {
	return uint64(handle) << 12
}

func (d *Device) FD() int { return -1 }

func (d *Device) GemClose(handle uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("GemClose"); err != nil {
		return err
	}
	if _, ok := d.objects[handle]; !ok {
		return unix.ENOENT
	}
	delete(d.objects, handle)
	d.Closed = append(d.Closed, handle)
	return nil
}

func (d *Device) PrimeHandleToFD(handle uint32) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("PrimeHandleToFD"); err != nil {
		return -1, err
	}
	if _, ok := d.objects[handle]; !ok {
		return -1, unix.ENOENT
	}
	fd := d.nextFD
	d.nextFD++
	d.primes[fd] = handle
	return fd, nil
}

func (d *Device) PrimeFDToHandle(fd int) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("PrimeFDToHandle"); err != nil {
		return 0, err
	}
	handle, ok := d.primes[fd]
	if !ok {
		return 0, unix.EBADF
	}
	return handle, nil
}

// ExportFD registers an object of size bytes under a prime fd, as if
// another process had shared it.
func (d *Device) ExportFD(size int) (fd int, handle uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	obj := d.alloc(size)
	fd = d.nextFD
	d.nextFD++
	d.primes[fd] = obj.Handle
	return fd, obj.Handle
}

func (d *Device) CreateDumb(width, height, bpp uint32) (drm.DumbBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("CreateDumb"); err != nil {
		return drm.DumbBuffer{}, err
	}
	if width == 0 || height == 0 || bpp == 0 {
		return drm.DumbBuffer{}, unix.EINVAL
	}
	pitch := (width*((bpp+7)/8) + 63) &^ 63
	obj := d.alloc(int(pitch * height))
	obj.Pitch = pitch
	obj.Dumb = true
	return drm.DumbBuffer{Handle: obj.Handle, Pitch: pitch, Size: uint64(len(obj.Data))}, nil
}

func (d *Device) MapDumb(handle uint32) (uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("MapDumb"); err != nil {
		return 0, err
	}
	if _, ok := d.objects[handle]; !ok {
		return 0, unix.ENOENT
	}
	return Offset(handle), nil
}

func (d *Device) DestroyDumb(handle uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("DestroyDumb"); err != nil {
		return err
	}
	obj, ok := d.objects[handle]
	if !ok || !obj.Dumb {
		return unix.ENOENT
	}
	delete(d.objects, handle)
	d.Closed = append(d.Closed, handle)
	return nil
}

func (d *Device) Mmap(offset uint64, size int) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("Mmap"); err != nil {
		return nil, err
	}
	obj, ok := d.objects[uint32(offset>>12)]
	if !ok || offset&0xfff != 0 {
		return nil, fmt.Errorf("drmtest: no object at offset 0x%x: %w", offset, unix.EINVAL)
	}
	if size > len(obj.Data) {
		return nil, unix.EINVAL
	}
	d.Maps++
	return obj.Data[:size:size], nil
}

func (d *Device) Munmap([]byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Unmaps++
	return nil
}

func (d *Device) GetMagic() (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.failure("GetMagic"); err != nil {
		return 0, err
	}
	return d.Magic, nil
}
