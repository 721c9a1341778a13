// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drmioctl

import (
	"runtime"
	"unsafe"
)

// i915 parameters, domains and flags.
const (
	I915ParamChipsetID = 4

	I915TilingNone = 0
	I915TilingX    = 1

	I915DomainCPU    = 0x01
	I915DomainRender = 0x02
	I915DomainGTT    = 0x40

	I915ExecDefault = 0
	I915ExecBLT     = 3

	I915ExecObjectNeedsFence = 1 << 0
)

type i915GetParam struct {
	Param int32
	Pad   int32
	Value uint64 // *int32
}

type i915GemCreate struct {
	Size   uint64
	Handle uint32
	Pad    uint32
}

type i915GemPwrite struct {
	Handle  uint32
	Pad     uint32
	Offset  uint64
	Size    uint64
	DataPtr uint64
}

type i915SetDomain struct {
	Handle      uint32
	ReadDomains uint32
	WriteDomain uint32
}

type i915SetTiling struct {
	Handle      uint32
	TilingMode  uint32
	Stride      uint32
	SwizzleMode uint32
}

type i915GetTiling struct {
	Handle          uint32
	TilingMode      uint32
	SwizzleMode     uint32
	PhysSwizzleMode uint32
}

type i915MmapGTT struct {
	Handle uint32
	Pad    uint32
	Offset uint64
}

// I915RelocEntry is struct drm_i915_gem_relocation_entry.
type I915RelocEntry struct {
	TargetHandle   uint32
	Delta          uint32
	Offset         uint64
	PresumedOffset uint64
	ReadDomains    uint32
	WriteDomain    uint32
}

// I915ExecObject is struct drm_i915_gem_exec_object2 before its relocation
// pointer is filled in.
type I915ExecObject struct {
	Handle uint32
	Relocs []I915RelocEntry
	Flags  uint64
}

type i915ExecObject2 struct {
	Handle          uint32
	RelocationCount uint32
	RelocsPtr       uint64
	Alignment       uint64
	Offset          uint64
	Flags           uint64
	Rsvd1           uint64
	Rsvd2           uint64
}

type i915Execbuffer2 struct {
	BuffersPtr       uint64
	BufferCount      uint32
	BatchStartOffset uint32
	BatchLen         uint32
	DR1              uint32
	DR4              uint32
	NumCliprects     uint32
	CliprectsPtr     uint64
	Flags            uint64
	Rsvd1            uint64
	Rsvd2            uint64
}

var (
	ioctlI915GetParam    = IOWR(CommandBase+0x06, unsafe.Sizeof(i915GetParam{}))
	ioctlI915GemCreate   = IOWR(CommandBase+0x1b, unsafe.Sizeof(i915GemCreate{}))
	ioctlI915GemPwrite   = IOW(CommandBase+0x1d, unsafe.Sizeof(i915GemPwrite{}))
	ioctlI915SetDomain   = IOW(CommandBase+0x1f, unsafe.Sizeof(i915SetDomain{}))
	ioctlI915SetTiling   = IOWR(CommandBase+0x21, unsafe.Sizeof(i915SetTiling{}))
	ioctlI915GetTiling   = IOWR(CommandBase+0x22, unsafe.Sizeof(i915GetTiling{}))
	ioctlI915MmapGTT     = IOWR(CommandBase+0x24, unsafe.Sizeof(i915MmapGTT{}))
	ioctlI915Execbuffer2 = IOW(CommandBase+0x29, unsafe.Sizeof(i915Execbuffer2{}))
)

// I915GetParam queries a driver parameter.
func I915GetParam(fd int, param int32) (int32, error) {
	var value int32
	arg := i915GetParam{Param: param, Value: uint64(uintptr(unsafe.Pointer(&value)))}
	err := Ioctl(fd, "i915 getparam", ioctlI915GetParam, unsafe.Pointer(&arg))
	runtime.KeepAlive(&value)
	return value, err
}

// I915GemCreate allocates a buffer object of size bytes.
func I915GemCreate(fd int, size uint64) (uint32, error) {
	arg := i915GemCreate{Size: size}
	if err := Ioctl(fd, "i915 gem create", ioctlI915GemCreate, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Handle, nil
}

// I915GemPwrite copies data into a buffer object at offset.
func I915GemPwrite(fd int, handle uint32, offset uint64, data []byte) error {
	arg := i915GemPwrite{Handle: handle, Offset: offset, Size: uint64(len(data)), DataPtr: ptr(data)}
	err := Ioctl(fd, "i915 gem pwrite", ioctlI915GemPwrite, unsafe.Pointer(&arg))
	runtime.KeepAlive(data)
	return err
}

// I915SetDomain moves a buffer object to the given domains.
func I915SetDomain(fd int, handle, read, write uint32) error {
	arg := i915SetDomain{Handle: handle, ReadDomains: read, WriteDomain: write}
	return Ioctl(fd, "i915 set domain", ioctlI915SetDomain, unsafe.Pointer(&arg))
}

// I915SetTiling sets the tiling mode and returns the mode the kernel chose.
func I915SetTiling(fd int, handle, mode, stride uint32) (uint32, error) {
	arg := i915SetTiling{Handle: handle, TilingMode: mode, Stride: stride}
	if err := Ioctl(fd, "i915 set tiling", ioctlI915SetTiling, unsafe.Pointer(&arg)); err != nil {
		return I915TilingNone, err
	}
	return arg.TilingMode, nil
}

// I915GetTiling returns the tiling mode of a buffer object.
func I915GetTiling(fd int, handle uint32) (uint32, error) {
	arg := i915GetTiling{Handle: handle}
	if err := Ioctl(fd, "i915 get tiling", ioctlI915GetTiling, unsafe.Pointer(&arg)); err != nil {
		return I915TilingNone, err
	}
	return arg.TilingMode, nil
}

// I915MmapGTT returns the mmap offset of a buffer object's aperture view.
func I915MmapGTT(fd int, handle uint32) (uint64, error) {
	arg := i915MmapGTT{Handle: handle}
	if err := Ioctl(fd, "i915 mmap gtt", ioctlI915MmapGTT, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Offset, nil
}

// I915Execbuffer2 executes batchLen bytes of the last object on ring. The
// batch object must be last.
func I915Execbuffer2(fd int, objects []I915ExecObject, batchLen uint32, ring uint64) error {
	exec := make([]i915ExecObject2, len(objects))
	for i, o := range objects {
		exec[i] = i915ExecObject2{
			Handle:          o.Handle,
			RelocationCount: uint32(len(o.Relocs)),
			RelocsPtr:       ptr(o.Relocs),
			Flags:           o.Flags,
		}
	}
	arg := i915Execbuffer2{
		BuffersPtr:  ptr(exec),
		BufferCount: uint32(len(exec)),
		BatchLen:    batchLen,
		Flags:       ring,
	}
	err := Ioctl(fd, "i915 execbuffer2", ioctlI915Execbuffer2, unsafe.Pointer(&arg))
	runtime.KeepAlive(objects)
	runtime.KeepAlive(exec)
	return err
}
