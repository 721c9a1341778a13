// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package intel

import (
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/internal/drmioctl"
)

// Tiling modes.
const (
	TilingNone = drmioctl.I915TilingNone
	TilingX    = drmioctl.I915TilingX
)

// Memory domains.
const (
	DomainCPU    = drmioctl.I915DomainCPU
	DomainRender = drmioctl.I915DomainRender
	DomainGTT    = drmioctl.I915DomainGTT
)

// Rings.
const (
	RingDefault = drmioctl.I915ExecDefault
	RingBLT     = drmioctl.I915ExecBLT
)

// Reloc asks the kernel to write the address of Target plus Delta at byte
// Offset of the batch.
type Reloc struct {
	Target      uint32
	Delta       uint32
	Offset      uint64
	Read, Write uint32
}

// ExecObject is a buffer object taking part in an execution.
type ExecObject struct {
	Handle uint32
	Relocs []Reloc
	Fence  bool
}

// Device is a DRM device driven by i915.
type Device interface {
	drm.Device
	ChipsetID() (uint32, error)
	GemCreate(size uint64) (uint32, error)
	SetTiling(handle, mode, stride uint32) (uint32, error)
	GetTiling(handle uint32) (uint32, error)
	MmapGTT(handle uint32) (uint64, error)
	SetDomain(handle, read, write uint32) error
	Pwrite(handle uint32, offset uint64, data []byte) error
	// Execbuffer runs the first batchLen bytes of the last object.
	Execbuffer(objects []ExecObject, batchLen uint32, ring uint64) error
}

// kernelDevice implements Device with i915 ioctls.
type kernelDevice struct {
	*drm.Kernel
}

// NewDevice returns a Device issuing i915 ioctls on k.
func NewDevice(k *drm.Kernel) Device {
	return kernelDevice{k}
}

func (d kernelDevice) ChipsetID() (uint32, error) {
	id, err := drmioctl.I915GetParam(d.FD(), drmioctl.I915ParamChipsetID)
	return uint32(id), err
}

func (d kernelDevice) GemCreate(size uint64) (uint32, error) {
	return drmioctl.I915GemCreate(d.FD(), size)
}

func (d kernelDevice) SetTiling(handle, mode, stride uint32) (uint32, error) {
	return drmioctl.I915SetTiling(d.FD(), handle, mode, stride)
}

func (d kernelDevice) GetTiling(handle uint32) (uint32, error) {
	return drmioctl.I915GetTiling(d.FD(), handle)
}

func (d kernelDevice) MmapGTT(handle uint32) (uint64, error) {
	return drmioctl.I915MmapGTT(d.FD(), handle)
}

func (d kernelDevice) SetDomain(handle, read, write uint32) error {
	return drmioctl.I915SetDomain(d.FD(), handle, read, write)
}

func (d kernelDevice) Pwrite(handle uint32, offset uint64, data []byte) error {
	return drmioctl.I915GemPwrite(d.FD(), handle, offset, data)
}

func (d kernelDevice) Execbuffer(objects []ExecObject, batchLen uint32, ring uint64) error {
	exec := make([]drmioctl.I915ExecObject, len(objects))
	for i, o := range objects {
		exec[i].Handle = o.Handle
		if o.Fence {
			exec[i].Flags = drmioctl.I915ExecObjectNeedsFence
		}
		if len(o.Relocs) == 0 {
			continue
		}
		exec[i].Relocs = make([]drmioctl.I915RelocEntry, len(o.Relocs))
		for j, r := range o.Relocs {
			exec[i].Relocs[j] = drmioctl.I915RelocEntry{
				TargetHandle: r.Target,
				Delta:        r.Delta,
				Offset:       r.Offset,
				// Force the kernel to patch every relocation.
				PresumedOffset: ^uint64(0),
				ReadDomains:    r.Read,
				WriteDomain:    r.Write,
			}
		}
	}
	return drmioctl.I915Execbuffer2(d.FD(), exec, batchLen, ring)
}
