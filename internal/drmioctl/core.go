// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drmioctl

import (
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
)

type gemClose struct {
	Handle uint32
	Pad    uint32
}

type primeHandle struct {
	Handle uint32
	Flags  uint32
	FD     int32
}

type createDumb struct {
	Height, Width, BPP, Flags uint32
	Handle, Pitch             uint32
	Size                      uint64
}

type mapDumb struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

type destroyDumb struct {
	Handle uint32
}

type auth struct {
	Magic uint32
}

var (
	ioctlGetMagic        = IOR(0x02, unsafe.Sizeof(auth{}))
	ioctlAuthMagic       = IOW(0x11, unsafe.Sizeof(auth{}))
	ioctlGemClose        = IOW(0x09, unsafe.Sizeof(gemClose{}))
	ioctlPrimeHandleToFD = IOWR(0x2d, unsafe.Sizeof(primeHandle{}))
	ioctlPrimeFDToHandle = IOWR(0x2e, unsafe.Sizeof(primeHandle{}))
	ioctlModeCreateDumb  = IOWR(0xb2, unsafe.Sizeof(createDumb{}))
	ioctlModeMapDumb     = IOWR(0xb3, unsafe.Sizeof(mapDumb{}))
	ioctlModeDestroyDumb = IOWR(0xb4, unsafe.Sizeof(destroyDumb{}))
)

// GemClose releases a GEM handle.
func GemClose(fd int, handle uint32) error {
	arg := gemClose{Handle: handle}
	return Ioctl(fd, "gem close", ioctlGemClose, unsafe.Pointer(&arg))
}

// PrimeHandleToFD exports a GEM handle as a close-on-exec dma-buf fd.
func PrimeHandleToFD(fd int, handle uint32) (int, error) {
	arg := primeHandle{Handle: handle, Flags: unix.O_CLOEXEC}
	if err := Ioctl(fd, "prime handle to fd", ioctlPrimeHandleToFD, unsafe.Pointer(&arg)); err != nil {
		return -1, err
	}
	return int(arg.FD), nil
}

// PrimeFDToHandle imports a dma-buf fd as a GEM handle.
func PrimeFDToHandle(fd, primeFD int) (uint32, error) {
	arg := primeHandle{FD: int32(primeFD)}
	if err := Ioctl(fd, "prime fd to handle", ioctlPrimeFDToHandle, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Handle, nil
}

// DumbBuffer is a kernel-allocated linear buffer.
type DumbBuffer struct {
	Handle uint32
	Pitch  uint32
	Size   uint64
}

// CreateDumb allocates a dumb buffer.
func CreateDumb(fd int, width, height, bpp uint32) (DumbBuffer, error) {
	arg := createDumb{Width: width, Height: height, BPP: bpp}
	if err := Ioctl(fd, "create dumb", ioctlModeCreateDumb, unsafe.Pointer(&arg)); err != nil {
		return DumbBuffer{}, err
	}
	return DumbBuffer{Handle: arg.Handle, Pitch: arg.Pitch, Size: arg.Size}, nil
}

// MapDumb returns the mmap offset of a dumb buffer.
func MapDumb(fd int, handle uint32) (uint64, error) {
	arg := mapDumb{Handle: handle}
	if err := Ioctl(fd, "map dumb", ioctlModeMapDumb, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Offset, nil
}

// DestroyDumb frees a dumb buffer.
func DestroyDumb(fd int, handle uint32) error {
	arg := destroyDumb{Handle: handle}
	err := Ioctl(fd, "destroy dumb", ioctlModeDestroyDumb, unsafe.Pointer(&arg))
	runtime.KeepAlive(&arg)
	return err
}

// GetMagic returns an authentication token for fd.
func GetMagic(fd int) (uint32, error) {
	var arg auth
	if err := Ioctl(fd, "get magic", ioctlGetMagic, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Magic, nil
}

// AuthMagic authenticates another client's token. Only the DRM master may
// call it.
func AuthMagic(fd int, magic uint32) error {
	arg := auth{Magic: magic}
	return Ioctl(fd, "auth magic", ioctlAuthMagic, unsafe.Pointer(&arg))
}
