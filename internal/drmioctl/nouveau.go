// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package drmioctl

import (
	"runtime"
	"unsafe"
)

// Nouveau parameters, domains and flags.
const (
	NouveauParamChipsetID = 11

	NouveauDomainVRAM     = 1 << 1
	NouveauDomainGART     = 1 << 2
	NouveauDomainMappable = 1 << 3

	NouveauRelocLow  = 1 << 0
	NouveauRelocHigh = 1 << 1
	NouveauRelocOr   = 1 << 2

	NouveauCPUPrepNoWait = 1 << 0
	NouveauCPUPrepWrite  = 1 << 2
)

type nouveauGetParam struct {
	Param uint64
	Value uint64
}

type nouveauSubchan struct {
	Handle  uint32
	GrClass uint32
}

// NouveauChannel is an allocated FIFO channel.
type NouveauChannel struct {
	ID             int32
	PushbufDomains uint32
	Notifier       uint32
}

type nouveauChannelAlloc struct {
	FBCtxDMAHandle uint32
	TTCtxDMAHandle uint32
	Channel        int32
	PushbufDomains uint32
	NotifierHandle uint32
	Subchan        [8]nouveauSubchan
	NrSubchan      uint32
}

type nouveauChannelFree struct {
	Channel int32
}

type nouveauGrobjAlloc struct {
	Channel int32
	Handle  uint32
	Class   int32
}

// NouveauGemInfo is struct drm_nouveau_gem_info.
type NouveauGemInfo struct {
	Handle    uint32
	Domain    uint32
	Size      uint64
	Offset    uint64
	MapHandle uint64
	TileMode  uint32
	TileFlags uint32
}

type nouveauGemNew struct {
	Info        NouveauGemInfo
	ChannelHint uint32
	Align       uint32
}

// NouveauPushbufBO is struct drm_nouveau_gem_pushbuf_bo.
type NouveauPushbufBO struct {
	UserPriv       uint64
	Handle         uint32
	ReadDomains    uint32
	WriteDomains   uint32
	ValidDomains   uint32
	PresumedValid  uint32
	PresumedDomain uint32
	PresumedOffset uint64
}

// NouveauPushbufReloc is struct drm_nouveau_gem_pushbuf_reloc.
type NouveauPushbufReloc struct {
	RelocBOIndex  uint32
	RelocBOOffset uint32
	BOIndex       uint32
	Flags         uint32
	Data          uint32
	Vor           uint32
	Tor           uint32
}

// NouveauPushbufPush is struct drm_nouveau_gem_pushbuf_push.
type NouveauPushbufPush struct {
	BOIndex uint32
	Pad     uint32
	Offset  uint64
	Length  uint64
}

type nouveauGemPushbuf struct {
	Channel       uint32
	NrBuffers     uint32
	Buffers       uint64
	NrRelocs      uint32
	NrPush        uint32
	Relocs        uint64
	Push          uint64
	Suffix0       uint32
	Suffix1       uint32
	VRAMAvailable uint64
	GARTAvailable uint64
}

type nouveauGemCPUPrep struct {
	Handle uint32
	Flags  uint32
}

var (
	ioctlNouveauGetParam     = IOWR(CommandBase+0x00, unsafe.Sizeof(nouveauGetParam{}))
	ioctlNouveauChannelAlloc = IOWR(CommandBase+0x02, unsafe.Sizeof(nouveauChannelAlloc{}))
	ioctlNouveauChannelFree  = IOW(CommandBase+0x03, unsafe.Sizeof(nouveauChannelFree{}))
	ioctlNouveauGrobjAlloc   = IOW(CommandBase+0x04, unsafe.Sizeof(nouveauGrobjAlloc{}))
	ioctlNouveauGemNew       = IOWR(CommandBase+0x40, unsafe.Sizeof(nouveauGemNew{}))
	ioctlNouveauGemPushbuf   = IOWR(CommandBase+0x41, unsafe.Sizeof(nouveauGemPushbuf{}))
	ioctlNouveauGemCPUPrep   = IOW(CommandBase+0x42, unsafe.Sizeof(nouveauGemCPUPrep{}))
	ioctlNouveauGemInfo      = IOWR(CommandBase+0x44, unsafe.Sizeof(NouveauGemInfo{}))
)

// NouveauGetParam queries a driver parameter.
func NouveauGetParam(fd int, param uint64) (uint64, error) {
	arg := nouveauGetParam{Param: param}
	if err := Ioctl(fd, "nouveau getparam", ioctlNouveauGetParam, unsafe.Pointer(&arg)); err != nil {
		return 0, err
	}
	return arg.Value, nil
}

// NouveauChannelAlloc allocates a FIFO channel.
func NouveauChannelAlloc(fd int) (NouveauChannel, error) {
	var arg nouveauChannelAlloc
	if err := Ioctl(fd, "nouveau channel alloc", ioctlNouveauChannelAlloc, unsafe.Pointer(&arg)); err != nil {
		return NouveauChannel{}, err
	}
	return NouveauChannel{ID: arg.Channel, PushbufDomains: arg.PushbufDomains, Notifier: arg.NotifierHandle}, nil
}

// NouveauChannelFree frees a FIFO channel.
func NouveauChannelFree(fd int, channel int32) error {
	arg := nouveauChannelFree{Channel: channel}
	return Ioctl(fd, "nouveau channel free", ioctlNouveauChannelFree, unsafe.Pointer(&arg))
}

// NouveauGrobjAlloc binds an engine object of class to handle on channel.
func NouveauGrobjAlloc(fd int, channel int32, handle uint32, class int32) error {
	arg := nouveauGrobjAlloc{Channel: channel, Handle: handle, Class: class}
	return Ioctl(fd, "nouveau grobj alloc", ioctlNouveauGrobjAlloc, unsafe.Pointer(&arg))
}

// NouveauGemNew allocates a buffer object described by info.
func NouveauGemNew(fd int, info NouveauGemInfo, align uint32) (NouveauGemInfo, error) {
	arg := nouveauGemNew{Info: info, Align: align}
	if err := Ioctl(fd, "nouveau gem new", ioctlNouveauGemNew, unsafe.Pointer(&arg)); err != nil {
		return NouveauGemInfo{}, err
	}
	return arg.Info, nil
}

// NouveauGemInfoQuery returns the placement of a buffer object.
func NouveauGemInfoQuery(fd int, handle uint32) (NouveauGemInfo, error) {
	arg := NouveauGemInfo{Handle: handle}
	if err := Ioctl(fd, "nouveau gem info", ioctlNouveauGemInfo, unsafe.Pointer(&arg)); err != nil {
		return NouveauGemInfo{}, err
	}
	return arg, nil
}

// NouveauGemCPUPrep waits for the GPU to finish with a buffer object.
func NouveauGemCPUPrep(fd int, handle, flags uint32) error {
	arg := nouveauGemCPUPrep{Handle: handle, Flags: flags}
	return Ioctl(fd, "nouveau gem cpu prep", ioctlNouveauGemCPUPrep, unsafe.Pointer(&arg))
}

// NouveauGemPushbuf submits push entries on channel.
func NouveauGemPushbuf(fd int, channel uint32, bos []NouveauPushbufBO, relocs []NouveauPushbufReloc, push []NouveauPushbufPush) error {
	arg := nouveauGemPushbuf{
		Channel:   channel,
		NrBuffers: uint32(len(bos)),
		Buffers:   ptr(bos),
		NrRelocs:  uint32(len(relocs)),
		NrPush:    uint32(len(push)),
		Relocs:    ptr(relocs),
		Push:      ptr(push),
	}
	err := Ioctl(fd, "nouveau gem pushbuf", ioctlNouveauGemPushbuf, unsafe.Pointer(&arg))
	runtime.KeepAlive(bos)
	runtime.KeepAlive(relocs)
	runtime.KeepAlive(push)
	return err
}
