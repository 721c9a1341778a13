// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wayland

import (
	"errors"
	"fmt"
	"slices"

	"golang.org/x/sys/unix"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/software"
)

// wl_shm format codes.
const (
	shmFormatARGB8888 = 0
	shmFormatXRGB8888 = 1
)

func shmFormat(f wld.Format) (uint32, bool) {
	switch f {
	case wld.FormatARGB8888:
		return shmFormatARGB8888, true
	case wld.FormatXRGB8888:
		return shmFormatXRGB8888, true
	}
	return 0, false
}

// shmTransport shares memfd memory and draws in software.
type shmTransport struct {
	wl SHM
	sw *software.Context
}

func newSHMTransport(display Display, queue Queue) (*shmTransport, error) {
	wl, err := display.BindSHM(queue)
	if err != nil {
		return nil, fmt.Errorf("wl_shm: %w", err)
	}
	// Receive the format events.
	if err := display.Roundtrip(queue); err != nil {
		_ = wl.Destroy()
		return nil, fmt.Errorf("wl_shm: roundtrip: %w", err)
	}
	return &shmTransport{wl: wl, sw: software.NewContext()}, nil
}

func (t *shmTransport) hasFormat(f wld.Format) bool {
	code, ok := shmFormat(f)
	return ok && slices.Contains(t.wl.Formats(), code)
}

func (t *shmTransport) createRenderer() (*wld.Renderer, error) {
	return t.sw.CreateRenderer()
}

func (t *shmTransport) createBuffer(width, height int, format wld.Format, _ wld.Flags) (*wld.Buffer, error) {
	code, _ := shmFormat(format)
	pitch := format.Pitch(width)
	size := pitch * height

	fd, err := unix.MemfdCreate("wld-shm", unix.MFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("wayland: memfd: %w", err)
	}
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("wayland: resize shm file: %w", err)
	}

	pool, err := t.wl.CreatePool(fd, size)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("wayland: create pool: %w", err)
	}
	tb, err := pool.CreateBuffer(0, width, height, pitch, code)
	if perr := pool.Destroy(); err == nil {
		err = perr
	}
	if err != nil {
		if tb != nil {
			_ = tb.Destroy()
		}
		_ = unix.Close(fd)
		return nil, fmt.Errorf("wayland: create shm buffer: %w", err)
	}

	b := wld.NewBuffer(&shmBuffer{fd: fd, size: size}, width, height, format, pitch)
	attachTransport(b, tb)
	return b, nil
}

func (t *shmTransport) destroy() error {
	return errors.Join(t.sw.Destroy(), t.wl.Destroy())
}

// shmBuffer is a memfd mapped on demand.
type shmBuffer struct {
	fd   int
	size int
}

func (b *shmBuffer) Map(*wld.Buffer) ([]byte, error) {
	data, err := unix.Mmap(b.fd, 0, b.size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("wayland: map shm buffer: %w", err)
	}
	return data, nil
}

func (b *shmBuffer) Unmap(wb *wld.Buffer) error {
	return unix.Munmap(wb.Data())
}

func (b *shmBuffer) Destroy(*wld.Buffer) error {
	return unix.Close(b.fd)
}
