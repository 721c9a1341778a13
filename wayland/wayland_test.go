// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wayland

import (
	"errors"
	"reflect"
	"testing"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/drm/drmtest"
	"github.com/gogpu/wld/drm/dumb"
	"github.com/gogpu/wld/region"
	"github.com/gogpu/wld/software"
)

// TestParseInterface tests interface names.
func TestParseInterface(t *testing.T) {
	for _, id := range []InterfaceID{InterfaceDRM, InterfaceSHM, InterfaceAny, InterfaceNone} {
		got, err := ParseInterface(id.String())
		if err != nil || got != id {
			t.Errorf("ParseInterface(%q) = %v, %v", id.String(), got, err)
		}
	}
	if got, _ := ParseInterface(" SHM "); got != InterfaceSHM {
		t.Errorf("ParseInterface(\" SHM \") = %v", got)
	}
	if _, err := ParseInterface("vulkan"); err == nil {
		t.Error("ParseInterface(vulkan) succeeded")
	}
	if got := InterfaceID(7).String(); got != "InterfaceID(7)" {
		t.Errorf("String() = %q", got)
	}
}

// TestInterfaceOrder tests which transports are tried, and in what order.
func TestInterfaceOrder(t *testing.T) {
	tests := []struct {
		name      string
		shm, drm  bool
		ids       []InterfaceID
		want      InterfaceID
		wantErr   bool
		wantBinds []string
	}{
		{"fallback", true, false, []InterfaceID{InterfaceDRM, InterfaceSHM}, InterfaceSHM, false, []string{"drm", "shm"}},
		{"first wins", true, true, []InterfaceID{InterfaceSHM, InterfaceDRM}, InterfaceSHM, false, []string{"shm"}},
		{"any tries the rest", true, false, []InterfaceID{InterfaceDRM, InterfaceAny}, InterfaceSHM, false, []string{"drm", "shm"}},
		{"any alone", true, false, []InterfaceID{InterfaceAny}, InterfaceSHM, false, []string{"drm", "shm"}},
		{"none stops", true, false, []InterfaceID{InterfaceDRM, InterfaceNone, InterfaceSHM}, 0, true, []string{"drm"}},
		{"no retry", false, false, []InterfaceID{InterfaceDRM, InterfaceDRM, InterfaceAny}, 0, true, []string{"drm", "shm"}},
		{"empty", true, true, nil, 0, true, nil},
	}
	for _, tt := range tests {
		d := &fakeDisplay{}
		if tt.shm {
			d.shm = xrgbSHM()
		}
		if tt.drm {
			d.drm = primeDRM()
		}
		c, err := NewContext(d, tt.ids, WithDeviceOpener(func(string) (drm.Device, error) {
			return drmtest.New(), nil
		}), WithDriverFactory(func(dev drm.Device) (wld.Context, error) {
			return dumb.NewContext(dev), nil
		}))
		if !reflect.DeepEqual(d.binds, tt.wantBinds) {
			t.Errorf("%s: binds = %v, want %v", tt.name, d.binds, tt.wantBinds)
		}
		if tt.wantErr {
			if !errors.Is(err, ErrNoInterface) {
				t.Errorf("%s: err = %v, want ErrNoInterface", tt.name, err)
			}
			if !d.queues[0].destroyed {
				t.Errorf("%s: queue leaked", tt.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if c.Interface() != tt.want {
			t.Errorf("%s: interface = %v, want %v", tt.name, c.Interface(), tt.want)
		}
	}
}

// TestOverride tests that an override is tried alone.
func TestOverride(t *testing.T) {
	d := &fakeDisplay{shm: xrgbSHM()}
	c, err := NewContext(d, []InterfaceID{InterfaceDRM}, WithOverride(InterfaceSHM))
	if err != nil {
		t.Fatal(err)
	}
	if c.Interface() != InterfaceSHM || !reflect.DeepEqual(d.binds, []string{"shm"}) {
		t.Errorf("interface %v, binds %v", c.Interface(), d.binds)
	}

	d = &fakeDisplay{shm: xrgbSHM()}
	if _, err := NewContext(d, []InterfaceID{InterfaceSHM}, WithOverride(InterfaceDRM)); !errors.Is(err, ErrNoGlobal) {
		t.Errorf("failing override = %v, want ErrNoGlobal", err)
	}
	if !reflect.DeepEqual(d.binds, []string{"drm"}) {
		t.Errorf("binds = %v, want [drm]", d.binds)
	}
}

func newSHMContext(t *testing.T) (*Context, *fakeDisplay) {
	t.Helper()
	d := &fakeDisplay{shm: xrgbSHM()}
	c, err := NewContext(d, []InterfaceID{InterfaceSHM})
	if err != nil {
		t.Fatal(err)
	}
	return c, d
}

// TestSHMBuffer tests memfd allocation, pool arguments and mapping.
func TestSHMBuffer(t *testing.T) {
	c, d := newSHMContext(t)

	if !c.HasFormat(wld.FormatXRGB8888) || !HasFormat(c, wld.FormatARGB8888) {
		t.Error("announced formats not reported")
	}
	if HasFormat(software.NewContext(), wld.FormatXRGB8888) {
		t.Error("HasFormat true for a software context")
	}

	b, err := c.CreateBuffer(4, 3, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	pool := d.shm.pools[0]
	if pool.size != 48 || !pool.destroyed {
		t.Errorf("pool size %d destroyed %v", pool.size, pool.destroyed)
	}
	if want := [5]int{0, 4, 3, 16, shmFormatXRGB8888}; pool.args[0] != want {
		t.Errorf("buffer args = %v, want %v", pool.args[0], want)
	}

	if err := b.Map(); err != nil {
		t.Fatal(err)
	}
	if len(b.Data()) != 48 {
		t.Fatalf("mapping is %d bytes", len(b.Data()))
	}
	b.Data()[47] = 0xab
	_ = b.Unmap()
	_ = b.Map()
	if b.Data()[47] != 0xab {
		t.Error("shm contents lost across mappings")
	}
	_ = b.Unmap()

	tb, err := TransportBufferOf(b)
	if err != nil || tb != pool.buffers[0] {
		t.Fatalf("TransportBufferOf = %v, %v", tb, err)
	}
	if err := b.Unreference(); err != nil {
		t.Fatal(err)
	}
	if !pool.buffers[0].destroyed {
		t.Error("wl_buffer not destroyed with the buffer")
	}
}

// TestSHMFormats tests that only announced formats are allocated.
func TestSHMFormats(t *testing.T) {
	d := &fakeDisplay{shm: &fakeSHM{announce: []uint32{shmFormatARGB8888}}}
	c, err := NewContext(d, []InterfaceID{InterfaceSHM})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.CreateBuffer(2, 2, wld.FormatXRGB8888, 0); !errors.Is(err, wld.ErrUnsupportedFormat) {
		t.Errorf("CreateBuffer(XRGB) = %v, want ErrUnsupportedFormat", err)
	}
	if _, err := c.CreateBuffer(0, 2, wld.FormatARGB8888, 0); !errors.Is(err, wld.ErrInvalidSize) {
		t.Errorf("CreateBuffer(0x2) = %v, want ErrInvalidSize", err)
	}
	if _, err := c.ImportBuffer(ObjectBuffer, wld.Object{}, 1, 1, wld.FormatARGB8888, 4); err == nil {
		t.Error("ImportBuffer succeeded")
	}
}

// TestSocketAttach tests attach, damage boxes, commit and one-time release
// registration.
func TestSocketAttach(t *testing.T) {
	c, _ := newSHMContext(t)
	wl := &fakeSurface{}
	s, err := c.CreateSurfaceFor(wl, 4, 3, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}

	first, _ := s.Back()
	if err := s.Swap(); err != nil {
		t.Fatal(err)
	}
	want := []string{"attach shm0 0,0", "damage 0,0 4x3", "commit"}
	if !reflect.DeepEqual(wl.requests, want) {
		t.Errorf("requests = %q, want %q", wl.requests, want)
	}

	// The compositor releases the first buffer; the surface sees it on the
	// next poll.
	tb, _ := TransportBufferOf(first)
	fb := tb.(*fakeBuffer)
	c.Queue().(*fakeQueue).pending = append(c.Queue().(*fakeQueue).pending, fb.release)
	if !s.Busy(first) {
		t.Fatal("release delivered before dispatch")
	}

	damage := region.Rect(0, 0, 1, 1)
	damage.UnionRect(region.Rect(2, 2, 2, 1).Extents())
	back, err := s.Damage(damage)
	if err != nil {
		t.Fatal(err)
	}
	if back != first.Damage() {
		t.Fatal("released buffer not reused")
	}

	wl.requests = nil
	if err := s.Swap(); err != nil {
		t.Fatal(err)
	}
	want = []string{"attach shm0 0,0", "damage 0,0 1x1", "damage 2,2 2x1", "commit"}
	if !reflect.DeepEqual(wl.requests, want) {
		t.Errorf("requests = %q, want %q", wl.requests, want)
	}
	if fb.handlers != 1 {
		t.Errorf("release handler installed %d times", fb.handlers)
	}
}

// TestSocketAttachFailure tests that a failed attach keeps the back buffer.
func TestSocketAttachFailure(t *testing.T) {
	c, _ := newSHMContext(t)
	wl := &fakeSurface{attachErr: errors.New("protocol error")}
	s, _ := c.CreateSurfaceFor(wl, 2, 2, wld.FormatXRGB8888, 0)

	b, _ := s.Back()
	if err := s.Swap(); err == nil {
		t.Fatal("Swap succeeded")
	}
	if back, _ := s.Back(); back != b || s.Busy(b) {
		t.Error("failed attach changed the back buffer")
	}
}

// TestProcessReleases tests explicit release polling.
func TestProcessReleases(t *testing.T) {
	c, _ := newSHMContext(t)
	s, _ := c.CreateSurfaceFor(&fakeSurface{}, 2, 2, wld.FormatXRGB8888, 0)

	b, _ := s.Back()
	_ = s.Swap()
	tb, _ := TransportBufferOf(b)
	q := c.Queue().(*fakeQueue)
	q.pending = append(q.pending, tb.(*fakeBuffer).release)

	if err := s.ProcessReleases(); err != nil {
		t.Fatal(err)
	}
	if s.Busy(b) {
		t.Error("buffer busy after ProcessReleases")
	}
}

// TestSurfaceDestroy tests that pooled wl_buffers die with the surface.
func TestSurfaceDestroy(t *testing.T) {
	c, d := newSHMContext(t)
	s, _ := c.CreateSurfaceFor(&fakeSurface{}, 2, 2, wld.FormatXRGB8888, 0)
	_, _ = s.Take()
	_, _ = s.Back()

	if err := s.Destroy(); err != nil {
		t.Fatal(err)
	}
	for i, p := range d.shm.pools {
		if !p.buffers[0].destroyed {
			t.Errorf("wl_buffer %d not destroyed", i)
		}
	}
	if err := c.Destroy(); err != nil {
		t.Fatal(err)
	}
	if !d.shm.destroyed || !d.queues[0].destroyed {
		t.Error("context left globals behind")
	}
}

func newDRMContext(t *testing.T, wl *fakeDRM) (*Context, *fdDevice, []string) {
	t.Helper()
	dev := &fdDevice{Device: drmtest.New(), fd: 42}
	var opened []string
	c, err := NewContext(&fakeDisplay{drm: wl}, []InterfaceID{InterfaceDRM},
		WithDeviceOpener(func(path string) (drm.Device, error) {
			opened = append(opened, path)
			return dev, nil
		}),
		WithDriverFactory(func(d drm.Device) (wld.Context, error) {
			return dumb.NewContext(d), nil
		}))
	if err != nil {
		t.Fatal(err)
	}
	return c, dev, opened
}

// TestDRMTransport tests authentication and PRIME buffer creation.
func TestDRMTransport(t *testing.T) {
	wl := primeDRM()
	c, dev, opened := newDRMContext(t, wl)

	if !reflect.DeepEqual(opened, []string{"/dev/dri/card7"}) {
		t.Errorf("opened = %v", opened)
	}
	if !reflect.DeepEqual(wl.magics, []uint32{0x5eed}) {
		t.Errorf("magics = %v", wl.magics)
	}
	if c.DRMFD() != 42 {
		t.Errorf("DRMFD = %d, want 42", c.DRMFD())
	}
	if !drm.IsDumb(c.DriverContext()) {
		t.Error("driver context is not dumb")
	}
	if c.HasFormat(wld.FormatARGB8888) {
		t.Error("ARGB reported without announcement")
	}

	var closed []int
	c.transport.(*drmTransport).closeFD = func(fd int) error {
		closed = append(closed, fd)
		return nil
	}
	b, err := c.CreateBuffer(8, 2, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(wl.primes) != 1 {
		t.Fatalf("prime buffers = %d", len(wl.primes))
	}
	p := wl.primes[0]
	if p.width != 8 || p.height != 2 || p.format != wld.FormatXRGB8888 || p.stride != b.Pitch() {
		t.Errorf("prime buffer = %+v", p)
	}
	if !reflect.DeepEqual(closed, []int{p.fd}) {
		t.Errorf("closed fds = %v, want [%d]", closed, p.fd)
	}

	if err := b.Unreference(); err != nil {
		t.Fatal(err)
	}
	if !wl.buffers[0].destroyed || dev.Live() != 0 {
		t.Error("buffer resources leaked")
	}

	if err := c.Destroy(); err != nil {
		t.Fatal(err)
	}
	if dev.closed != 1 || !wl.destroyed {
		t.Error("device or wl_drm left open")
	}
}

// TestDRMRequirements tests the conditions that disable the drm transport.
func TestDRMRequirements(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*fakeDRM)
		opened int
	}{
		{"no prime", func(d *fakeDRM) { d.announceCaps = 0 }, 0},
		{"no device", func(d *fakeDRM) { d.announceDevice = "" }, 0},
		{"rejected", func(d *fakeDRM) { d.acceptMagic = 1 }, 1},
	}
	for _, tt := range tests {
		wl := primeDRM()
		tt.modify(wl)
		dev := &fdDevice{Device: drmtest.New(), fd: 3}
		d := &fakeDisplay{drm: wl, shm: xrgbSHM()}

		c, err := NewContext(d, []InterfaceID{InterfaceDRM, InterfaceSHM},
			WithDeviceOpener(func(string) (drm.Device, error) { return dev, nil }),
			WithDriverFactory(func(d drm.Device) (wld.Context, error) { return dumb.NewContext(d), nil }))
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if c.Interface() != InterfaceSHM {
			t.Errorf("%s: interface = %v, want shm", tt.name, c.Interface())
		}
		if dev.closed != tt.opened || !wl.destroyed {
			t.Errorf("%s: device closed %d times, wl_drm destroyed %v", tt.name, dev.closed, wl.destroyed)
		}
		if c.DRMFD() != -1 {
			t.Errorf("%s: DRMFD = %d on shm", tt.name, c.DRMFD())
		}
	}
}

// TestDRMDriverFailure tests that a driver failure closes the device.
func TestDRMDriverFailure(t *testing.T) {
	dev := &fdDevice{Device: drmtest.New(), fd: 3}
	_, err := NewContext(&fakeDisplay{drm: primeDRM()}, []InterfaceID{InterfaceDRM},
		WithDeviceOpener(func(string) (drm.Device, error) { return dev, nil }),
		WithDriverFactory(func(drm.Device) (wld.Context, error) {
			return nil, &drm.UnsupportedDeviceError{Vendor: 0x1234, Device: 1}
		}))
	var unsupported *drm.UnsupportedDeviceError
	if !errors.As(err, &unsupported) {
		t.Errorf("err = %v, want UnsupportedDeviceError", err)
	}
	if dev.closed != 1 {
		t.Errorf("device closed %d times", dev.closed)
	}
}
