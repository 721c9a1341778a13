// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wayland

import (
	"errors"
	"fmt"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm/drmtest"
)

// fakeQueue delivers queued events on DispatchPending.
type fakeQueue struct {
	pending    []func()
	dispatches int
	destroyed  bool
}

func (q *fakeQueue) DispatchPending() error {
	q.dispatches++
	events := q.pending
	q.pending = nil
	for _, ev := range events {
		ev()
	}
	return nil
}

func (q *fakeQueue) Destroy() error {
	q.destroyed = true
	return nil
}

// fakeDisplay is a compositor advertising the globals it was given.
type fakeDisplay struct {
	shm        *fakeSHM
	drm        *fakeDRM
	queues     []*fakeQueue
	roundtrips int
	binds      []string
}

func (d *fakeDisplay) CreateQueue() (Queue, error) {
	q := &fakeQueue{}
	d.queues = append(d.queues, q)
	return q, nil
}

func (d *fakeDisplay) Roundtrip(q Queue) error {
	d.roundtrips++
	return q.DispatchPending()
}

func (d *fakeDisplay) BindSHM(q Queue) (SHM, error) {
	d.binds = append(d.binds, "shm")
	if d.shm == nil {
		return nil, ErrNoGlobal
	}
	d.shm.bound = true
	fq := q.(*fakeQueue)
	fq.pending = append(fq.pending, func() { d.shm.formats = d.shm.announce })
	return d.shm, nil
}

func (d *fakeDisplay) BindDRM(q Queue) (DRM, error) {
	d.binds = append(d.binds, "drm")
	if d.drm == nil {
		return nil, ErrNoGlobal
	}
	d.drm.queue = q.(*fakeQueue)
	d.drm.queue.pending = append(d.drm.queue.pending, func() {
		d.drm.device = d.drm.announceDevice
		d.drm.caps = d.drm.announceCaps
		d.drm.formats = d.drm.announce
	})
	return d.drm, nil
}

// fakeBuffer is a wl_buffer.
type fakeBuffer struct {
	name      string
	release   func()
	handlers  int
	destroyed bool
}

func (b *fakeBuffer) SetReleaseHandler(fn func()) {
	b.release = fn
	b.handlers++
}

func (b *fakeBuffer) Destroy() error {
	b.destroyed = true
	return nil
}

type fakeSHM struct {
	announce  []uint32
	formats   []uint32
	bound     bool
	pools     []*fakePool
	destroyed bool
}

func (s *fakeSHM) Formats() []uint32 { return s.formats }

func (s *fakeSHM) CreatePool(fd, size int) (Pool, error) {
	p := &fakePool{fd: fd, size: size}
	s.pools = append(s.pools, p)
	return p, nil
}

func (s *fakeSHM) Destroy() error {
	s.destroyed = true
	return nil
}

type fakePool struct {
	fd, size  int
	buffers   []*fakeBuffer
	args      [][5]int
	destroyed bool
}

func (p *fakePool) CreateBuffer(offset, width, height, stride int, format uint32) (TransportBuffer, error) {
	b := &fakeBuffer{name: fmt.Sprintf("shm%d", len(p.buffers))}
	p.buffers = append(p.buffers, b)
	p.args = append(p.args, [5]int{offset, width, height, stride, int(format)})
	return b, nil
}

func (p *fakePool) Destroy() error {
	p.destroyed = true
	return nil
}

type primeBuffer struct {
	fd, width, height int
	format            wld.Format
	stride            int
}

type fakeDRM struct {
	queue *fakeQueue

	announceDevice string
	announceCaps   uint32
	announce       []uint32
	acceptMagic    uint32

	device        string
	caps          uint32
	formats       []uint32
	authenticated bool
	magics        []uint32
	primes        []primeBuffer
	buffers       []*fakeBuffer
	destroyed     bool
}

func (d *fakeDRM) Device() string       { return d.device }
func (d *fakeDRM) Capabilities() uint32 { return d.caps }
func (d *fakeDRM) Formats() []uint32    { return d.formats }
func (d *fakeDRM) Authenticated() bool  { return d.authenticated }

func (d *fakeDRM) Authenticate(magic uint32) error {
	d.magics = append(d.magics, magic)
	d.queue.pending = append(d.queue.pending, func() {
		d.authenticated = magic == d.acceptMagic
	})
	return nil
}

func (d *fakeDRM) CreatePrimeBuffer(fd, width, height int, format wld.Format, offset, stride int) (TransportBuffer, error) {
	if offset != 0 {
		return nil, errors.New("unexpected offset")
	}
	d.primes = append(d.primes, primeBuffer{fd, width, height, format, stride})
	b := &fakeBuffer{name: fmt.Sprintf("prime%d", len(d.buffers))}
	d.buffers = append(d.buffers, b)
	return b, nil
}

func (d *fakeDRM) Destroy() error {
	d.destroyed = true
	return nil
}

// fakeSurface records requests as strings.
type fakeSurface struct {
	requests  []string
	attachErr error
}

func (s *fakeSurface) Attach(b TransportBuffer, x, y int) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	s.requests = append(s.requests, fmt.Sprintf("attach %s %d,%d", b.(*fakeBuffer).name, x, y))
	return nil
}

func (s *fakeSurface) Damage(x, y, width, height int) error {
	s.requests = append(s.requests, fmt.Sprintf("damage %d,%d %dx%d", x, y, width, height))
	return nil
}

func (s *fakeSurface) Commit() error {
	s.requests = append(s.requests, "commit")
	return nil
}

// fdDevice is a drmtest device with a descriptor and a close counter.
type fdDevice struct {
	*drmtest.Device
	fd     int
	closed int
}

func (d *fdDevice) FD() int { return d.fd }

func (d *fdDevice) Close() error {
	d.closed++
	return nil
}

func xrgbSHM() *fakeSHM {
	return &fakeSHM{announce: []uint32{shmFormatARGB8888, shmFormatXRGB8888}}
}

func primeDRM() *fakeDRM {
	return &fakeDRM{
		announceDevice: "/dev/dri/card7",
		announceCaps:   DRMCapabilityPrime,
		announce:       []uint32{uint32(wld.FormatXRGB8888)},
		acceptMagic:    0x5eed,
	}
}
