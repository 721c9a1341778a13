// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package nouveau

import (
	"encoding/binary"

	"github.com/gogpu/wld/drm/drmtest"
)

type submission struct {
	channel uint32
	words   []uint32
	bos     []PushBO
	relocs  []PushReloc
	push    []Push
}

// fakeDevice is a nouveau Device over drmtest.Device.
type fakeDevice struct {
	*drmtest.Device
	chipset    uint32
	nextChan   uint32
	freed      []uint32
	grobjs     [][3]uint32
	infos      map[uint32]BO
	submits    []submission
	pushbufErr error
	preps      int
}

func newFakeDevice(chipset uint32) *fakeDevice {
	return &fakeDevice{
		Device:   drmtest.New(),
		chipset:  chipset,
		nextChan: 1,
		infos:    make(map[uint32]BO),
	}
}

func (d *fakeDevice) ChipsetID() (uint32, error) { return d.chipset, nil }

func (d *fakeDevice) ChannelAlloc() (uint32, error) {
	ch := d.nextChan
	d.nextChan++
	return ch, nil
}

func (d *fakeDevice) ChannelFree(channel uint32) error {
	d.freed = append(d.freed, channel)
	return nil
}

func (d *fakeDevice) GrobjAlloc(channel, handle, class uint32) error {
	d.grobjs = append(d.grobjs, [3]uint32{channel, handle, class})
	return nil
}

func (d *fakeDevice) GemNew(info BO, _ uint32) (BO, error) {
	info.Handle = d.Alloc(int(info.Size))
	info.MapHandle = drmtest.Offset(info.Handle)
	info.Offset = uint64(info.Handle)<<32 | 0x1000
	d.infos[info.Handle] = info
	return info, nil
}

func (d *fakeDevice) GemInfo(handle uint32) (BO, error) {
	if info, ok := d.infos[handle]; ok {
		return info, nil
	}
	obj := d.Object(handle)
	return BO{
		Handle:    handle,
		Domain:    DomainVRAM,
		Size:      uint64(len(obj.Data)),
		MapHandle: drmtest.Offset(handle),
	}, nil
}

func (d *fakeDevice) CPUPrep(uint32, bool) error {
	d.preps++
	return nil
}

func (d *fakeDevice) Pushbuf(channel uint32, bos []PushBO, relocs []PushReloc, push []Push) error {
	if d.pushbufErr != nil {
		return d.pushbufErr
	}
	data := d.Object(bos[push[0].BO].Handle).Data[push[0].Offset : push[0].Offset+push[0].Length]
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	d.submits = append(d.submits, submission{
		channel: channel,
		words:   words,
		bos:     append([]PushBO(nil), bos...),
		relocs:  append([]PushReloc(nil), relocs...),
		push:    append([]Push(nil), push...),
	})
	return nil
}
