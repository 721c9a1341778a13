// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drm

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"github.com/gogpu/wld/internal/drmioctl"
)

// DumbBuffer is a linear buffer allocated by the kernel.
type DumbBuffer struct {
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// Device is the driver-independent part of a DRM device.
type Device interface {
	FD() int
	GemClose(handle uint32) error
	PrimeHandleToFD(handle uint32) (int, error)
	PrimeFDToHandle(fd int) (uint32, error)
	CreateDumb(width, height, bpp uint32) (DumbBuffer, error)
	MapDumb(handle uint32) (uint64, error)
	DestroyDumb(handle uint32) error
	Mmap(offset uint64, size int) ([]byte, error)
	Munmap(data []byte) error
	GetMagic() (uint32, error)
}

// Kernel is a Device backed by an open DRM file descriptor.
type Kernel struct {
	fd    int
	owned bool
}

// NewKernel wraps fd. The caller keeps ownership of fd.
func NewKernel(fd int) *Kernel {
	return &Kernel{fd: fd}
}

// Open opens the DRM device node at path.
func Open(path string) (*Kernel, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return &Kernel{fd: fd, owned: true}, nil
}

// Close closes the descriptor if the Kernel opened it.
func (k *Kernel) Close() error {
	if !k.owned || k.fd < 0 {
		return nil
	}
	fd := k.fd
	k.fd = -1
	if err := unix.Close(fd); err != nil {
		return fmt.Errorf("drm: close: %w", err)
	}
	return nil
}

func (k *Kernel) FD() int { return k.fd }

func (k *Kernel) GemClose(handle uint32) error {
	return drmioctl.GemClose(k.fd, handle)
}

func (k *Kernel) PrimeHandleToFD(handle uint32) (int, error) {
	return drmioctl.PrimeHandleToFD(k.fd, handle)
}

func (k *Kernel) PrimeFDToHandle(fd int) (uint32, error) {
	return drmioctl.PrimeFDToHandle(k.fd, fd)
}

func (k *Kernel) CreateDumb(width, height, bpp uint32) (DumbBuffer, error) {
	d, err := drmioctl.CreateDumb(k.fd, width, height, bpp)
	return DumbBuffer(d), err
}

func (k *Kernel) MapDumb(handle uint32) (uint64, error) {
	return drmioctl.MapDumb(k.fd, handle)
}

func (k *Kernel) DestroyDumb(handle uint32) error {
	return drmioctl.DestroyDumb(k.fd, handle)
}

func (k *Kernel) Mmap(offset uint64, size int) ([]byte, error) {
	return drmioctl.Mmap(k.fd, offset, size)
}

func (k *Kernel) Munmap(data []byte) error {
	return drmioctl.Munmap(data)
}

func (k *Kernel) GetMagic() (uint32, error) {
	return drmioctl.GetMagic(k.fd)
}
