// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package intel

import (
	"encoding/binary"

	"golang.org/x/sys/unix"

	"github.com/gogpu/wld/drm/drmtest"
)

// execution is one recorded Execbuffer call.
type execution struct {
	words   []uint32
	objects []ExecObject
	ring    uint64
}

// fakeDevice is an i915 Device over drmtest.Device.
type fakeDevice struct {
	*drmtest.Device
	chipset    uint32
	tiling     map[uint32]uint32
	tilingErr  error
	getTiling  error
	domains    []uint32
	execs      []execution
	execErr    error
	gemCreates int
}

func newFakeDevice(chipset uint32) *fakeDevice {
	return &fakeDevice{
		Device:  drmtest.New(),
		chipset: chipset,
		tiling:  make(map[uint32]uint32),
	}
}

func (d *fakeDevice) ChipsetID() (uint32, error) { return d.chipset, nil }

func (d *fakeDevice) GemCreate(size uint64) (uint32, error) {
	d.gemCreates++
	return d.Alloc(int(size)), nil
}

func (d *fakeDevice) SetTiling(handle, mode, _ uint32) (uint32, error) {
	if d.tilingErr != nil {
		return 0, d.tilingErr
	}
	d.tiling[handle] = mode
	return mode, nil
}

func (d *fakeDevice) GetTiling(handle uint32) (uint32, error) {
	if d.getTiling != nil {
		return 0, d.getTiling
	}
	if d.Object(handle) == nil {
		return 0, unix.ENOENT
	}
	return d.tiling[handle], nil
}

func (d *fakeDevice) MmapGTT(handle uint32) (uint64, error) {
	return drmtest.Offset(handle), nil
}

func (d *fakeDevice) SetDomain(handle, _, _ uint32) error {
	d.domains = append(d.domains, handle)
	return nil
}

func (d *fakeDevice) Pwrite(handle uint32, offset uint64, data []byte) error {
	copy(d.Object(handle).Data[offset:], data)
	return nil
}

func (d *fakeDevice) Execbuffer(objects []ExecObject, batchLen uint32, ring uint64) error {
	if d.execErr != nil {
		return d.execErr
	}
	data := d.Object(objects[len(objects)-1].Handle).Data[:batchLen]
	words := make([]uint32, batchLen/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	d.execs = append(d.execs, execution{
		words:   words,
		objects: append([]ExecObject(nil), objects...),
		ring:    ring,
	})
	return nil
}
