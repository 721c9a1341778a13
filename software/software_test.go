// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"bytes"
	"errors"
	"image"
	"image/png"
	"testing"

	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/region"
)

func newTarget(t *testing.T, ctx *Context, w, h int) (*wld.Renderer, *wld.Buffer, *Image) {
	t.Helper()
	r, err := ctx.CreateRenderer()
	if err != nil {
		t.Fatal(err)
	}
	b, err := ctx.CreateBuffer(w, h, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.SetTarget(b); err != nil {
		t.Fatal(err)
	}
	img, err := ImageOf(b)
	if err != nil {
		t.Fatal(err)
	}
	return r, b, img
}

// TestSurfaceScenario tests a 2x2 XRGB surface without a socket: the back
// buffer is 2x2 with pitch 8 and fully damaged, is mapped, and Swap fails.
func TestSurfaceScenario(t *testing.T) {
	ctx := NewContext()
	defer ctx.Destroy()

	s, err := ctx.CreateSurface(2, 2, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Back()
	if err != nil {
		t.Fatal(err)
	}
	if b.Width() != 2 || b.Height() != 2 || b.Pitch() != 8 {
		t.Errorf("buffer = %dx%d pitch %d, want 2x2 pitch 8", b.Width(), b.Height(), b.Pitch())
	}
	if len(b.Data()) != 16 {
		t.Errorf("len(Data) = %d, want 16", len(b.Data()))
	}
	damage, err := s.Damage(region.New())
	if err != nil {
		t.Fatal(err)
	}
	if !damage.Equal(region.Rect(0, 0, 2, 2)) {
		t.Errorf("damage = %v, want full", damage)
	}
	if err := s.Swap(); !errors.Is(err, wld.ErrNoSocket) {
		t.Errorf("Swap = %v, want ErrNoSocket", err)
	}
	if err := s.Destroy(); err != nil {
		t.Errorf("Destroy: %v", err)
	}
}

// TestFillRectangle tests SRC fills with clipping.
func TestFillRectangle(t *testing.T) {
	ctx := NewContext()
	r, _, img := newTarget(t, ctx, 4, 4)

	if err := r.FillRectangle(0x80112233, 1, 1, 10, 2); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		x, y int
		want uint32
	}{
		{0, 0, 0xff000000},
		{1, 1, 0xff112233}, // XRGB reads as opaque
		{3, 2, 0xff112233},
		{1, 3, 0xff000000},
	}
	for _, tt := range tests {
		if got := img.ARGB(tt.x, tt.y); got != tt.want {
			t.Errorf("pixel (%d,%d) = %08x, want %08x", tt.x, tt.y, got, tt.want)
		}
	}
	if img.Pix[img.PixOffset(1, 1)+3] != 0x80 {
		t.Errorf("stored X byte = %02x, want 80", img.Pix[img.PixOffset(1, 1)+3])
	}
}

// TestFillRegion tests region fills.
func TestFillRegion(t *testing.T) {
	ctx := NewContext()
	r, _, img := newTarget(t, ctx, 4, 4)

	rg := region.Rect(0, 0, 1, 1)
	rg.UnionRect(image.Rect(3, 3, 4, 4))
	if err := r.FillRegion(0xffffffff, rg); err != nil {
		t.Fatal(err)
	}
	if img.ARGB(0, 0) != 0xffffffff || img.ARGB(3, 3) != 0xffffffff || img.ARGB(1, 1) != 0xff000000 {
		t.Error("region fill touched the wrong pixels")
	}
}

// TestCopyRectangle tests copies between buffers.
func TestCopyRectangle(t *testing.T) {
	ctx := NewContext()
	r, _, dst := newTarget(t, ctx, 4, 4)

	src, _ := ctx.CreateBuffer(2, 2, wld.FormatXRGB8888, 0)
	srcImg, _ := ImageOf(src)
	srcImg.Fill(srcImg.Rect, 0xffabcdef)

	if err := r.CopyRectangle(src, 3, 3, 0, 0, 2, 2); err != nil {
		t.Fatal(err)
	}
	if dst.ARGB(3, 3) != 0xffabcdef {
		t.Errorf("copied pixel = %08x", dst.ARGB(3, 3))
	}
	if dst.ARGB(2, 2) != 0xff000000 {
		t.Error("copy wrote outside its rectangle")
	}
}

// TestCopyOverlapping tests a copy within one buffer whose source and
// destination overlap.
func TestCopyOverlapping(t *testing.T) {
	ctx := NewContext()
	r, b, img := newTarget(t, ctx, 1, 4)
	for y := 0; y < 4; y++ {
		img.Fill(image.Rect(0, y, 1, y+1), uint32(y+1))
	}

	// Scroll down by one row.
	if err := r.CopyRectangle(b, 0, 1, 0, 0, 1, 3); err != nil {
		t.Fatal(err)
	}
	want := []uint32{1, 1, 2, 3}
	for y, w := range want {
		if got := img.ARGB(0, y) & 0xffffff; got != w {
			t.Errorf("row %d = %d, want %d", y, got, w)
		}
	}

	// Scroll back up.
	if err := r.CopyRectangle(b, 0, 0, 0, 1, 1, 3); err != nil {
		t.Fatal(err)
	}
	want = []uint32{1, 2, 3, 3}
	for y, w := range want {
		if got := img.ARGB(0, y) & 0xffffff; got != w {
			t.Errorf("row %d = %d, want %d", y, got, w)
		}
	}
}

// TestCopyRegion tests that each box is copied from its own position to
// the offset destination.
func TestCopyRegion(t *testing.T) {
	ctx := NewContext()
	r, _, dst := newTarget(t, ctx, 8, 8)

	src, _ := ctx.CreateBuffer(8, 8, wld.FormatXRGB8888, 0)
	srcImg, _ := ImageOf(src)
	srcImg.Fill(image.Rect(1, 1, 2, 2), 0xff0000ff)

	if err := r.CopyRegion(src, 4, 4, region.Rect(1, 1, 1, 1)); err != nil {
		t.Fatal(err)
	}
	if dst.ARGB(5, 5) != 0xff0000ff {
		t.Errorf("pixel (5,5) = %08x", dst.ARGB(5, 5))
	}
}

// TestDrawText tests that glyphs are composited and the advance returned.
func TestDrawText(t *testing.T) {
	f, err := font.OpenData(gomono.TTF, font.Pattern{PixelSize: 16})
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	ctx := NewContext()
	r, _, img := newTarget(t, ctx, 64, 24)

	ext, err := r.DrawText(f, 0xffffffff, 2, f.Ascent, "Hi")
	if err != nil {
		t.Fatal(err)
	}
	if want := f.TextExtents("Hi").Advance; ext.Advance != want {
		t.Errorf("Advance = %d, want %d", ext.Advance, want)
	}

	lit := 0
	for y := 0; y < 24; y++ {
		for x := 0; x < 64; x++ {
			if img.ARGB(x, y) == 0xffffffff {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Error("no text pixels drawn")
	}

	if _, err := r.DrawText(f, 0xffffffff, 2, f.Ascent, "Hi"); err != nil {
		t.Fatal(err)
	}
	if s := ctx.GlyphCacheStats(); s.Hits < 2 {
		t.Errorf("glyph cache hits = %d, want >= 2", s.Hits)
	}
}

// TestImportRoundTrip tests that imported memory is used in place and
// exported unchanged.
func TestImportRoundTrip(t *testing.T) {
	ctx := NewContext()
	data := make([]byte, 12*3)

	b, err := ctx.ImportBuffer(wld.ObjectData, wld.Object{Data: data}, 2, 3, wld.FormatARGB8888, 12)
	if err != nil {
		t.Fatal(err)
	}
	if b.Width() != 2 || b.Height() != 3 || b.Pitch() != 12 || b.Format() != wld.FormatARGB8888 {
		t.Errorf("imported %dx%d pitch %d %v", b.Width(), b.Height(), b.Pitch(), b.Format())
	}

	obj, err := b.Export(wld.ObjectData)
	if err != nil {
		t.Fatal(err)
	}
	if &obj.Data[0] != &data[0] {
		t.Error("export copied the imported memory")
	}

	if _, err := ctx.ImportBuffer(wld.BackendDRM, wld.Object{}, 1, 1, wld.FormatARGB8888, 4); err == nil {
		t.Error("ImportBuffer accepted a DRM handle")
	}
	if _, err := ctx.ImportBuffer(wld.ObjectData, wld.Object{Data: data[:4]}, 2, 3, wld.FormatARGB8888, 12); !errors.Is(err, wld.ErrInvalidSize) {
		t.Errorf("short import = %v, want ErrInvalidSize", err)
	}
}

// foreignImpl is a mappable buffer of another backend.
type foreignImpl struct {
	data         []byte
	maps, unmaps int
	destroyed    bool
}

func (f *foreignImpl) Map(*wld.Buffer) ([]byte, error) { f.maps++; return f.data, nil }
func (f *foreignImpl) Unmap(*wld.Buffer) error         { f.unmaps++; return nil }
func (f *foreignImpl) Destroy(*wld.Buffer) error {
	f.destroyed = true
	return nil
}

// TestForeignBuffer tests that a foreign buffer is mapped once, its view is
// reused, and the mapping is released on destruction.
func TestForeignBuffer(t *testing.T) {
	impl := &foreignImpl{data: make([]byte, 16)}
	b := wld.NewBuffer(impl, 2, 2, wld.FormatXRGB8888, 8)

	ctx := NewContext()
	r, _ := ctx.CreateRenderer()
	for i := 0; i < 2; i++ {
		if err := r.SetTarget(b); err != nil {
			t.Fatal(err)
		}
		if err := r.FillRectangle(0xff00ff00, 0, 0, 2, 2); err != nil {
			t.Fatal(err)
		}
		if err := r.Flush(); err != nil {
			t.Fatal(err)
		}
	}
	if impl.maps != 1 {
		t.Errorf("maps = %d, want 1", impl.maps)
	}
	if impl.data[1] != 0xff {
		t.Error("fill did not reach foreign memory")
	}

	if err := b.Unreference(); err != nil {
		t.Fatal(err)
	}
	if impl.unmaps != 1 || !impl.destroyed {
		t.Errorf("unmaps = %d, destroyed = %v", impl.unmaps, impl.destroyed)
	}
}

// TestImageInterfaces tests the draw.Image implementation.
func TestImageInterfaces(t *testing.T) {
	ctx := NewContext()
	b, _ := ctx.CreateBuffer(3, 2, wld.FormatARGB8888, 0)
	img, _ := ImageOf(b)

	img.Set(1, 1, image.White.At(0, 0))
	if img.ARGB(1, 1) != 0xffffffff {
		t.Errorf("Set(white) = %08x", img.ARGB(1, 1))
	}
	if img.ARGB(0, 0) != 0 {
		t.Errorf("ARGB pixel starts at %08x, want 0", img.ARGB(0, 0))
	}

	sub := img.SubImage(image.Rect(1, 1, 3, 2)).(*Image)
	if sub.ARGB(1, 1) != 0xffffffff {
		t.Error("SubImage does not share pixels")
	}

	var buf bytes.Buffer
	if err := img.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.Bounds() != img.Bounds() {
		t.Errorf("PNG bounds = %v", decoded.Bounds())
	}
}

// TestCreateBufferErrors tests rejected sizes and formats.
func TestCreateBufferErrors(t *testing.T) {
	ctx := NewContext()
	if _, err := ctx.CreateBuffer(0, 1, wld.FormatXRGB8888, 0); !errors.Is(err, wld.ErrInvalidSize) {
		t.Errorf("zero width = %v", err)
	}
	if _, err := ctx.CreateBuffer(1, 1, wld.FourCC('R', 'G', '1', '6'), 0); !errors.Is(err, wld.ErrUnsupportedFormat) {
		t.Errorf("RG16 = %v", err)
	}
}
