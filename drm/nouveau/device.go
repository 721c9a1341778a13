// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package nouveau

import (
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/internal/drmioctl"
)

// Memory domains.
const (
	DomainVRAM     = drmioctl.NouveauDomainVRAM
	DomainGART     = drmioctl.NouveauDomainGART
	DomainMappable = drmioctl.NouveauDomainMappable
)

// Relocation flags.
const (
	RelocLow  = drmioctl.NouveauRelocLow
	RelocHigh = drmioctl.NouveauRelocHigh
)

// tileNonContig allows a VRAM object to be scattered.
const tileNonContig = 0x8

// BO describes a buffer object.
type BO struct {
	Handle    uint32
	Domain    uint32
	Size      uint64
	Offset    uint64
	MapHandle uint64
	TileMode  uint32
	TileFlags uint32
}

// PushBO is a buffer object referenced by a submission.
type PushBO struct {
	Handle      uint32
	Read, Write uint32
	Valid       uint32
}

// PushReloc patches Offset of the push object RelocBO with the address of
// object BO plus Data.
type PushReloc struct {
	RelocBO uint32
	Offset  uint32
	BO      uint32
	Flags   uint32
	Data    uint32
}

// Push is a range of command words in object BO.
type Push struct {
	BO     uint32
	Offset uint64
	Length uint64
}

// Device is a DRM device driven by nouveau.
type Device interface {
	drm.Device
	ChipsetID() (uint32, error)
	ChannelAlloc() (uint32, error)
	ChannelFree(channel uint32) error
	GrobjAlloc(channel, handle, class uint32) error
	GemNew(info BO, align uint32) (BO, error)
	GemInfo(handle uint32) (BO, error)
	CPUPrep(handle uint32, write bool) error
	Pushbuf(channel uint32, bos []PushBO, relocs []PushReloc, push []Push) error
}

type kernelDevice struct {
	*drm.Kernel
}

// NewDevice returns a Device issuing nouveau ioctls on k.
func NewDevice(k *drm.Kernel) Device {
	return kernelDevice{k}
}

func (d kernelDevice) ChipsetID() (uint32, error) {
	v, err := drmioctl.NouveauGetParam(d.FD(), drmioctl.NouveauParamChipsetID)
	return uint32(v), err
}

func (d kernelDevice) ChannelAlloc() (uint32, error) {
	ch, err := drmioctl.NouveauChannelAlloc(d.FD())
	return uint32(ch.ID), err
}

func (d kernelDevice) ChannelFree(channel uint32) error {
	return drmioctl.NouveauChannelFree(d.FD(), int32(channel))
}

func (d kernelDevice) GrobjAlloc(channel, handle, class uint32) error {
	return drmioctl.NouveauGrobjAlloc(d.FD(), int32(channel), handle, int32(class))
}

func (d kernelDevice) GemNew(info BO, align uint32) (BO, error) {
	out, err := drmioctl.NouveauGemNew(d.FD(), drmioctl.NouveauGemInfo(info), align)
	return BO(out), err
}

func (d kernelDevice) GemInfo(handle uint32) (BO, error) {
	info, err := drmioctl.NouveauGemInfoQuery(d.FD(), handle)
	return BO(info), err
}

func (d kernelDevice) CPUPrep(handle uint32, write bool) error {
	var flags uint32
	if write {
		flags = drmioctl.NouveauCPUPrepWrite
	}
	return drmioctl.NouveauGemCPUPrep(d.FD(), handle, flags)
}

func (d kernelDevice) Pushbuf(channel uint32, bos []PushBO, relocs []PushReloc, push []Push) error {
	kbos := make([]drmioctl.NouveauPushbufBO, len(bos))
	for i, b := range bos {
		kbos[i] = drmioctl.NouveauPushbufBO{
			Handle:       b.Handle,
			ReadDomains:  b.Read,
			WriteDomains: b.Write,
			ValidDomains: b.Valid,
		}
	}
	krelocs := make([]drmioctl.NouveauPushbufReloc, len(relocs))
	for i, r := range relocs {
		krelocs[i] = drmioctl.NouveauPushbufReloc{
			RelocBOIndex:  r.RelocBO,
			RelocBOOffset: r.Offset,
			BOIndex:       r.BO,
			Flags:         r.Flags,
			Data:          r.Data,
		}
	}
	kpush := make([]drmioctl.NouveauPushbufPush, len(push))
	for i, p := range push {
		kpush[i] = drmioctl.NouveauPushbufPush{BOIndex: p.BO, Offset: p.Offset, Length: p.Length}
	}
	return drmioctl.NouveauGemPushbuf(d.FD(), channel, kbos, krelocs, kpush)
}
