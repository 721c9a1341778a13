// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package drmioctl issues DRM kernel ioctls.
//
// Argument structs mirror the kernel UAPI layouts byte for byte; field
// order and padding must not change.
package drmioctl

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Error is a failed ioctl. It unwraps to the errno.
type Error struct {
	Op  string
	Err unix.Errno
}

func (e *Error) Error() string {
	return fmt.Sprintf("drm: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

const (
	iocWrite = 1
	iocRead  = 2

	drmBase = 'd'

	// CommandBase is the first driver-specific ioctl number.
	CommandBase = 0x40
)

func ioc(dir, nr, size uintptr) uintptr {
	return dir<<30 | size<<16 | drmBase<<8 | nr
}

// IO encodes an ioctl with no argument direction.
func IO(nr uintptr) uintptr { return ioc(0, nr, 0) }

// IOR encodes a read ioctl of size bytes.
func IOR(nr, size uintptr) uintptr { return ioc(iocRead, nr, size) }

// IOW encodes a write ioctl of size bytes.
func IOW(nr, size uintptr) uintptr { return ioc(iocWrite, nr, size) }

// IOWR encodes a read-write ioctl of size bytes.
func IOWR(nr, size uintptr) uintptr { return ioc(iocRead|iocWrite, nr, size) }

// Ioctl issues req on fd, retrying while interrupted.
func Ioctl(fd int, op string, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return &Error{Op: op, Err: errno}
		}
	}
}

// Mmap maps size bytes of fd at offset for reading and writing.
func Mmap(fd int, offset uint64, size int) ([]byte, error) {
	data, err := unix.Mmap(fd, int64(offset), size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("drm: mmap: %w", err)
	}
	return data, nil
}

// Munmap releases a mapping made by Mmap.
func Munmap(data []byte) error {
	if err := unix.Munmap(data); err != nil {
		return fmt.Errorf("drm: munmap: %w", err)
	}
	return nil
}

// ptr converts a slice's backing array to a uint64 for UAPI pointer fields.
func ptr[T any](s []T) uint64 {
	if len(s) == 0 {
		return 0
	}
	return uint64(uintptr(unsafe.Pointer(&s[0])))
}
