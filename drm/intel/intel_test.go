// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package intel

import (
	"errors"
	"testing"

	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/internal/batch"
	"github.com/gogpu/wld/software"
)

// kabyLake is a generation 9 device ID.
const kabyLake = 0x5917

func newTestContext(t *testing.T, chipset uint32) (*Context, *fakeDevice) {
	t.Helper()
	dev := newFakeDevice(chipset)
	ctx, err := NewContext(dev)
	if err != nil {
		t.Fatal(err)
	}
	return ctx, dev
}

func newTestRenderer(t *testing.T, ctx *Context) (*wld.Renderer, *renderer) {
	t.Helper()
	r, err := ctx.CreateRenderer()
	if err != nil {
		t.Fatal(err)
	}
	return r, r.Impl().(*renderer)
}

func openFont(t *testing.T, px float64) *font.Font {
	t.Helper()
	f, err := font.OpenData(gomono.TTF, font.Pattern{PixelSize: px})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func opcode(word uint32) uint32 { return word >> 22 & 0x7f }

// TestBufferLayout tests tiling selection, pitch and row alignment.
func TestBufferLayout(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)

	narrow, err := ctx.CreateBuffer(16, 10, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tiling, _ := Tiling(narrow); tiling != TilingNone || narrow.Pitch() != 64 {
		t.Errorf("16px buffer: tiling %d pitch %d", tiling, narrow.Pitch())
	}

	wide, err := ctx.CreateBuffer(130, 10, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tiling, _ := Tiling(wide); tiling != TilingX || wide.Pitch() != 1024 {
		t.Errorf("130px buffer: tiling %d pitch %d", tiling, wide.Pitch())
	}
	obj, _ := wide.Export(drm.ObjectHandle)
	if got := len(dev.Object(obj.Handle).Data); got != 4096*4 {
		t.Errorf("allocated %d bytes, want 16 rows of 1024 rounded to pages", got)
	}
	if dev.tiling[obj.Handle] != TilingX {
		t.Error("tiling not set on the object")
	}
}

// TestBufferTilingRefused tests falling back to linear when the kernel
// refuses tiling.
func TestBufferTilingRefused(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	dev.tilingErr = errors.New("EINVAL")

	b, err := ctx.CreateBuffer(256, 4, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	if tiling, _ := Tiling(b); tiling != TilingNone {
		t.Errorf("tiling = %d, want none", tiling)
	}
}

// TestBufferMap tests GTT mapping and release on destroy.
func TestBufferMap(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	b, _ := ctx.CreateBuffer(16, 4, wld.FormatARGB8888, 0)

	if err := b.Map(); err != nil {
		t.Fatal(err)
	}
	if len(b.Data()) != 4096 {
		t.Errorf("mapped %d bytes", len(b.Data()))
	}
	if len(dev.domains) != 1 {
		t.Errorf("domain changes = %d, want 1", len(dev.domains))
	}
	obj, _ := b.Export(drm.ObjectHandle)
	if err := b.Unreference(); err != nil {
		t.Fatal(err)
	}
	if dev.Unmaps != 1 || dev.Object(obj.Handle) != nil {
		t.Errorf("unmaps %d, object still live: %v", dev.Unmaps, dev.Object(obj.Handle) != nil)
	}
}

// TestImportBuffer tests PRIME import and unsupported object types.
func TestImportBuffer(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	fd, handle := dev.ExportFD(4096)

	b, err := ctx.ImportBuffer(drm.ObjectPrimeFD, wld.Object{FD: fd}, 8, 8, wld.FormatXRGB8888, 32)
	if err != nil {
		t.Fatal(err)
	}
	if obj, _ := b.Export(drm.ObjectHandle); obj.Handle != handle {
		t.Errorf("handle = %d, want %d", obj.Handle, handle)
	}
	if b.Pitch() != 32 {
		t.Errorf("Pitch = %d, want the caller's 32", b.Pitch())
	}

	var unsupported *wld.UnsupportedObjectError
	if _, err := ctx.ImportBuffer(wld.ObjectData, wld.Object{}, 8, 8, wld.FormatXRGB8888, 32); !errors.As(err, &unsupported) {
		t.Errorf("ImportBuffer(data) = %v", err)
	}
}

// TestImportTiledRoundTrip tests that a tiled buffer exported as PRIME and
// imported again keeps its tiling and is addressed as tiled by the BLT.
func TestImportTiledRoundTrip(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	src, err := ctx.CreateBuffer(256, 16, wld.FormatXRGB8888, 0)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := src.Export(drm.ObjectPrimeFD)
	if err != nil {
		t.Fatal(err)
	}

	b, err := ctx.ImportBuffer(drm.ObjectPrimeFD, obj, src.Width(), src.Height(), src.Format(), src.Pitch())
	if err != nil {
		t.Fatal(err)
	}
	if tiling, ok := Tiling(b); !ok || tiling != TilingX {
		t.Fatalf("imported tiling = %d, %v, want X", tiling, ok)
	}

	r, _ := newTestRenderer(t, ctx)
	if err := r.SetTarget(b); err != nil {
		t.Fatal(err)
	}
	if err := r.FillRectangle(0xffffffff, 0, 0, 4, 4); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	words := dev.execs[0].words
	if words[0]&(1<<11) == 0 {
		t.Errorf("BR00 = %08x, want the destination tiled bit", words[0])
	}
	if pitch := words[1] & 0xffff; pitch != 256 {
		t.Errorf("BR13 pitch = %d, want 256 dwords", pitch)
	}
}

// TestImportBufferValidation tests that bad layouts are rejected before
// the descriptor is touched, and that a failed tiling query closes the
// imported handle.
func TestImportBufferValidation(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	fd, handle := dev.ExportFD(4096)

	tests := []struct {
		name          string
		width, height int
		format        wld.Format
		pitch         int
		want          error
	}{
		{"zero width", 0, 8, wld.FormatXRGB8888, 32, wld.ErrInvalidSize},
		{"zero pitch", 8, 8, wld.FormatXRGB8888, 0, wld.ErrInvalidSize},
		{"short pitch", 8, 8, wld.FormatXRGB8888, 31, wld.ErrInvalidSize},
		{"unknown format", 8, 8, wld.FourCC('R', 'G', '1', '6'), 32, wld.ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		_, err := ctx.ImportBuffer(drm.ObjectPrimeFD, wld.Object{FD: fd}, tt.width, tt.height, tt.format, tt.pitch)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: ImportBuffer = %v, want %v", tt.name, err, tt.want)
		}
	}

	dev.getTiling = errors.New("no such ioctl")
	if _, err := ctx.ImportBuffer(drm.ObjectPrimeFD, wld.Object{FD: fd}, 8, 8, wld.FormatXRGB8888, 32); err == nil {
		t.Fatal("ImportBuffer succeeded without tiling")
	}
	if dev.Object(handle) != nil {
		t.Error("handle not closed after failed import")
	}
}

// TestFillSubmission tests that a fill becomes one BLT execution with the
// target relocated in the batch object.
func TestFillSubmission(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	b, _ := ctx.CreateBuffer(16, 16, wld.FormatXRGB8888, 0)
	r, impl := newTestRenderer(t, ctx)

	if err := r.SetTarget(b); err != nil {
		t.Fatal(err)
	}
	if err := r.FillRectangle(0xff00ff00, -4, 2, 8, 100); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(dev.execs) != 1 {
		t.Fatalf("executions = %d, want 1", len(dev.execs))
	}
	ex := dev.execs[0]
	if ex.ring != RingBLT {
		t.Errorf("ring = %d, want BLT", ex.ring)
	}
	if len(ex.words) != 8 || ex.words[6] != miBatchBufferEnd || ex.words[7] != miNoop {
		t.Fatalf("words = %08x", ex.words)
	}
	// Clipped to (0,2)-(4,16).
	if ex.words[2] != 0x00020000 || ex.words[3] != 0x00100004 {
		t.Errorf("rectangle = %08x %08x", ex.words[2], ex.words[3])
	}

	target, _ := b.Export(drm.ObjectHandle)
	if len(ex.objects) != 2 || ex.objects[0].Handle != target.Handle {
		t.Fatalf("objects = %+v", ex.objects)
	}
	last := ex.objects[1]
	if last.Handle != impl.batchBO || len(last.Relocs) != 1 {
		t.Fatalf("batch object = %+v", last)
	}
	if rel := last.Relocs[0]; rel.Target != target.Handle || rel.Offset != 16 {
		t.Errorf("reloc = %+v", rel)
	}
	if r.Target() != nil {
		t.Error("Flush kept the target")
	}
}

// TestRenderRing tests that generations before 6 use the render ring.
func TestRenderRing(t *testing.T) {
	ctx, dev := newTestContext(t, 0x2a42)
	b, _ := ctx.CreateBuffer(16, 16, wld.FormatXRGB8888, 0)
	r, _ := newTestRenderer(t, ctx)
	_ = r.SetTarget(b)
	_ = r.FillRectangle(0, 0, 0, 1, 1)
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if dev.execs[0].ring != RingDefault {
		t.Errorf("ring = %d, want default", dev.execs[0].ring)
	}
}

// TestEmptyFlush tests that nothing is submitted without commands.
func TestEmptyFlush(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	r, _ := newTestRenderer(t, ctx)
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(dev.execs) != 0 {
		t.Errorf("executions = %d, want 0", len(dev.execs))
	}
}

// TestForeignBuffers tests that buffers of other backends are rejected.
func TestForeignBuffers(t *testing.T) {
	ctx, _ := newTestContext(t, kabyLake)
	r, _ := newTestRenderer(t, ctx)
	own, _ := ctx.CreateBuffer(4, 4, wld.FormatXRGB8888, 0)
	foreign, _ := software.NewContext().CreateBuffer(4, 4, wld.FormatXRGB8888, 0)

	if r.Capabilities(foreign) != 0 {
		t.Error("foreign buffer has capabilities")
	}
	if r.Capabilities(own) != wld.CapabilityRead|wld.CapabilityWrite {
		t.Error("own buffer lacks capabilities")
	}
	if err := r.SetTarget(foreign); !errors.Is(err, wld.ErrForeignBuffer) {
		t.Errorf("SetTarget(foreign) = %v", err)
	}
	_ = r.SetTarget(own)
	if err := r.CopyRectangle(foreign, 0, 0, 0, 0, 4, 4); !errors.Is(err, wld.ErrForeignBuffer) {
		t.Errorf("CopyRectangle(foreign) = %v", err)
	}
}

// TestCopyClipped tests that copies are clipped to both buffers.
func TestCopyClipped(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	src, _ := ctx.CreateBuffer(4, 4, wld.FormatXRGB8888, 0)
	dst, _ := ctx.CreateBuffer(16, 16, wld.FormatXRGB8888, 0)
	r, _ := newTestRenderer(t, ctx)

	_ = r.SetTarget(dst)
	if err := r.CopyRectangle(src, 10, 10, 2, 2, 8, 8); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}
	w := dev.execs[0].words
	if opcode(w[0]) != opSrcCopy {
		t.Fatalf("opcode = %#x", opcode(w[0]))
	}
	// Only the 2x2 source remainder is copied.
	if w[2] != 0x000a000a || w[3] != 0x000c000c || w[5] != 0x00020002 {
		t.Errorf("rectangles = %08x %08x %08x", w[2], w[3], w[5])
	}
	if len(dev.execs[0].objects) != 3 {
		t.Errorf("objects = %d, want src, dst and batch", len(dev.execs[0].objects))
	}
}

// TestSubmitFailureKeepsCommands tests that a failed execution can be
// retried.
func TestSubmitFailureKeepsCommands(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	b, _ := ctx.CreateBuffer(8, 8, wld.FormatXRGB8888, 0)
	_, impl := newTestRenderer(t, ctx)
	_ = impl.SetTarget(b)
	_ = impl.FillRectangle(0, 0, 0, 8, 8)

	dev.execErr = errors.New("EIO")
	if err := impl.Flush(); !errors.Is(err, dev.execErr) {
		t.Fatalf("Flush = %v, want EIO", err)
	}
	if impl.batch.Len() != 6 {
		t.Errorf("pending words = %d, want 6", impl.batch.Len())
	}

	dev.execErr = nil
	if err := impl.Flush(); err != nil {
		t.Fatal(err)
	}
	if len(dev.execs) != 1 || len(dev.execs[0].words) != 8 {
		t.Errorf("retry submitted %+v", dev.execs)
	}
}

// TestDrawTextRingFull tests that a glyph which does not fit flushes the
// ring and repeats the text setup in the next batch.
func TestDrawTextRingFull(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	b, _ := ctx.CreateBuffer(64, 32, wld.FormatXRGB8888, 0)
	r, impl := newTestRenderer(t, ctx)
	f := openFont(t, 12)

	g, ok := f.Glyph('i')
	if !ok || g.Empty() {
		t.Fatal("no glyph for i")
	}
	count := len(packGlyph(g))
	if count%2 != 0 {
		count++
	}
	perGlyph := 3 + count
	impl.batch = batch.New(8+2*perGlyph+batchReserved, batchReserved, impl,
		batch.WithTerminator(miBatchBufferEnd, miNoop, 2))

	_ = r.SetTarget(b)
	ext, err := r.DrawText(f, 0xffffffff, 2, 20, "iii")
	if err != nil {
		t.Fatal(err)
	}
	if ext.Advance != 3*g.Advance {
		t.Errorf("Advance = %d, want %d", ext.Advance, 3*g.Advance)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	if len(dev.execs) != 2 {
		t.Fatalf("executions = %d, want 2", len(dev.execs))
	}
	texts := 0
	for i, ex := range dev.execs {
		if opcode(ex.words[0]) != opSetup {
			t.Errorf("batch %d starts with opcode %#x, want setup", i, opcode(ex.words[0]))
		}
		for j := 0; j < len(ex.words); {
			op := opcode(ex.words[j])
			if ex.words[j] == miBatchBufferEnd || ex.words[j] == miNoop {
				break
			}
			if op == opTextImmediate {
				texts++
			}
			j += int(ex.words[j]&0xff) + 2
		}
	}
	if texts != 3 {
		t.Errorf("text blits = %d, want 3", texts)
	}
}

// TestDrawTextStaged tests that large glyphs are drawn from a staging
// object released after submission.
func TestDrawTextStaged(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	b, _ := ctx.CreateBuffer(256, 256, wld.FormatXRGB8888, 0)
	r, _ := newTestRenderer(t, ctx)
	f := openFont(t, 240)

	g, _ := f.Glyph('M')
	if len(packGlyph(g)) <= maxImmediate {
		t.Fatalf("glyph of %d words fits inline", len(packGlyph(g)))
	}

	_ = r.SetTarget(b)
	if _, err := r.DrawText(f, 0xff000000, 10, 200, "M"); err != nil {
		t.Fatal(err)
	}
	if err := r.Flush(); err != nil {
		t.Fatal(err)
	}

	ex := dev.execs[0]
	if got := opcode(ex.words[8]); got != opText {
		t.Fatalf("second command opcode = %#x, want text", got)
	}
	// target, staging, batch
	if len(ex.objects) != 3 {
		t.Fatalf("objects = %d, want 3", len(ex.objects))
	}
	staging := ex.objects[1].Handle
	if dev.Object(staging) != nil {
		t.Error("staging object not closed after submission")
	}
}

// TestRendererDestroy tests that the batch object is released.
func TestRendererDestroy(t *testing.T) {
	ctx, dev := newTestContext(t, kabyLake)
	r, impl := newTestRenderer(t, ctx)
	if err := r.Destroy(); err != nil {
		t.Fatal(err)
	}
	if dev.Object(impl.batchBO) != nil {
		t.Error("batch object still live")
	}
}

// TestDriver tests driver matching and context creation.
func TestDriver(t *testing.T) {
	var d Driver
	if !d.Supported(drm.VendorIntel, kabyLake) || d.Supported(drm.VendorNVIDIA, 0) {
		t.Error("wrong vendor match")
	}
	ctx, err := d.CreateContext(newFakeDevice(kabyLake))
	if err != nil {
		t.Fatal(err)
	}
	if drm.DriverName(ctx) != Name || ctx.(*Context).Gen() != 9 {
		t.Errorf("context = %s gen %d", drm.DriverName(ctx), ctx.(*Context).Gen())
	}
	if _, err := d.CreateContext(drm.Device(nil)); err == nil {
		t.Error("CreateContext(nil) succeeded")
	}
}
