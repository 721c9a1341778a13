// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package intel

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/internal/batch"
)

// Batch buffer geometry in words. Two words are kept for the terminator.
const (
	batchSize     = 8192
	batchReserved = 2
)

type renderer struct {
	ctx     *Context
	batch   *batch.Batch
	batchBO uint32
	target  *buffer
}

func newRenderer(c *Context) (*renderer, error) {
	handle, err := c.dev.GemCreate(batchSize * 4)
	if err != nil {
		return nil, fmt.Errorf("intel: create batch buffer: %w", err)
	}
	r := &renderer{ctx: c, batchBO: handle}
	r.batch = batch.New(batchSize, batchReserved, r,
		batch.WithTerminator(miBatchBufferEnd, miNoop, 2),
		batch.WithName("intel"))
	return r, nil
}

// own returns the intel buffer behind b, or nil if b belongs to another
// context.
func (r *renderer) own(b *wld.Buffer) *buffer {
	impl, ok := b.Impl().(*buffer)
	if !ok || impl.ctx != r.ctx {
		return nil
	}
	return impl
}

func (r *renderer) fence() bool { return r.ctx.gen < 4 }

func (r *renderer) Capabilities(b *wld.Buffer) wld.Capability {
	if r.own(b) == nil {
		return 0
	}
	return wld.CapabilityRead | wld.CapabilityWrite
}

func (r *renderer) SetTarget(b *wld.Buffer) error {
	if b == nil {
		r.target = nil
		return nil
	}
	impl := r.own(b)
	if impl == nil {
		return wld.ErrForeignBuffer
	}
	r.target = impl
	return nil
}

func (r *renderer) bounds() image.Rectangle {
	return image.Rect(0, 0, r.target.width, r.target.height)
}

func (r *renderer) FillRectangle(color uint32, x, y, width, height int) error {
	rect := image.Rect(x, y, x+width, y+height).Intersect(r.bounds())
	if rect.Empty() {
		return nil
	}
	return xyColorBlt(r.batch, r.target.bo, rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y, color, r.fence())
}

func (r *renderer) CopyRectangle(src *wld.Buffer, dstX, dstY, srcX, srcY, width, height int) error {
	s := r.own(src)
	if s == nil {
		return wld.ErrForeignBuffer
	}
	off := image.Pt(srcX-dstX, srcY-dstY)
	dr := image.Rect(dstX, dstY, dstX+width, dstY+height).
		Intersect(r.bounds()).
		Intersect(src.Bounds().Sub(off))
	if dr.Empty() {
		return nil
	}
	sp := dr.Min.Add(off)
	return xySrcCopyBlt(r.batch, s.bo, sp.X, sp.Y, r.target.bo, dr.Min.X, dr.Min.Y, dr.Dx(), dr.Dy(), r.fence())
}

// setupText emits the text state for the current target.
func (r *renderer) setupText(color uint32) error {
	b := r.bounds()
	return xySetupBlt(r.batch, r.target.bo, true, ropSrc, 0, color, b.Dx(), b.Dy(), r.fence())
}

func (r *renderer) DrawText(f *font.Font, color uint32, x, y int, text string) (font.Extents, error) {
	if err := r.setupText(color); err != nil {
		return font.Extents{}, err
	}
	origin := x
	for _, c := range font.Runes(text) {
		g, ok := f.Glyph(c)
		if !ok {
			continue
		}
		if !g.Empty() {
			if err := r.drawGlyph(g, x+g.X, y+g.Y, color); err != nil {
				return font.Extents{Advance: x - origin}, err
			}
		}
		x += g.Advance
	}
	return font.Extents{Advance: x - origin}, nil
}

// drawGlyph blits one glyph, carrying small bitmaps in the batch and
// larger ones in a staging object. A full ring is flushed and the text
// state set up again before retrying.
func (r *renderer) drawGlyph(g *font.Glyph, x, y int, color uint32) error {
	if !image.Rect(x, y, x+g.Width, y+g.Rows).Overlaps(r.bounds()) {
		return nil
	}
	data := packGlyph(g)

	var src *bo
	if len(data) > maxImmediate {
		var err error
		if src, err = r.stage(data); err != nil {
			return err
		}
	}

	dstTiled := r.target.bo.tiled()
	emit := func() error {
		if src != nil {
			return xyTextBlt(r.batch, src, dstTiled, x, y, x+g.Width, y+g.Rows)
		}
		return xyTextImmediateBlt(r.batch, dstTiled, x, y, x+g.Width, y+g.Rows, data)
	}

	err := emit()
	if errors.Is(err, batch.ErrNoSpace) {
		if err = r.batch.Flush(); err == nil {
			if err = r.setupText(color); err == nil {
				err = emit()
			}
		}
	}
	if err != nil && src != nil && !r.referenced(src) {
		_ = r.ctx.dev.GemClose(src.handle)
	}
	return err
}

// packGlyph packs the rows of g to whole bytes and returns them as words.
func packGlyph(g *font.Glyph) []uint32 {
	rowBytes := (g.Width + 7) / 8
	packed := make([]byte, (rowBytes*g.Rows+3)&^3)
	for row := 0; row < g.Rows; row++ {
		copy(packed[row*rowBytes:(row+1)*rowBytes], g.Bitmap[row*g.Pitch:])
	}
	words := make([]uint32, len(packed)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(packed[i*4:])
	}
	return words
}

// stage uploads a glyph bitmap to a new object that is closed once the
// batch using it has been submitted.
func (r *renderer) stage(data []uint32) (*bo, error) {
	size := alignUp(len(data)*4, 4096)
	handle, err := r.ctx.dev.GemCreate(uint64(size))
	if err != nil {
		return nil, fmt.Errorf("intel: create glyph buffer: %w", err)
	}
	if err := r.ctx.dev.Pwrite(handle, 0, wordBytes(data)); err != nil {
		_ = r.ctx.dev.GemClose(handle)
		return nil, fmt.Errorf("intel: upload glyph: %w", err)
	}
	return &bo{handle: handle, staging: true}, nil
}

func (r *renderer) referenced(o *bo) bool {
	for _, ref := range r.batch.Buffers() {
		if ref.Target == o {
			return true
		}
	}
	return false
}

func wordBytes(words []uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}

func (r *renderer) Flush() error {
	return r.batch.Flush()
}

// Submit implements batch.Submitter. The batch object goes last and carries
// every relocation.
func (r *renderer) Submit(s *batch.Submission) error {
	dev := r.ctx.dev
	data := wordBytes(s.Words)
	if err := dev.Pwrite(r.batchBO, 0, data); err != nil {
		return fmt.Errorf("intel: upload batch: %w", err)
	}

	objects := make([]ExecObject, 0, len(s.Buffers)+1)
	for _, ref := range s.Buffers {
		o := ref.Target.(*bo)
		objects = append(objects, ExecObject{Handle: o.handle, Fence: ref.Fence})
	}
	relocs := make([]Reloc, len(s.Relocs))
	for i, rel := range s.Relocs {
		relocs[i] = Reloc{
			Target: rel.Target.(*bo).handle,
			Delta:  rel.Delta,
			Offset: uint64(rel.Offset),
			Read:   rel.Read,
			Write:  rel.Write,
		}
	}
	objects = append(objects, ExecObject{Handle: r.batchBO, Relocs: relocs})

	ring := uint64(RingDefault)
	if r.ctx.gen >= 6 {
		ring = RingBLT
	}
	if err := dev.Execbuffer(objects, uint32(len(data)), ring); err != nil {
		return err
	}

	// The kernel keeps executing objects alive after their handle closes.
	for _, ref := range s.Buffers {
		if o := ref.Target.(*bo); o.staging {
			if err := dev.GemClose(o.handle); err != nil {
				wld.Logger().Warn("wld: intel glyph buffer leaked", "handle", o.handle, "err", err)
			}
		}
	}
	return nil
}

func (r *renderer) Destroy() error {
	for _, ref := range r.batch.Buffers() {
		if o := ref.Target.(*bo); o.staging {
			_ = r.ctx.dev.GemClose(o.handle)
		}
	}
	r.batch.Reset()
	r.target = nil
	return r.ctx.dev.GemClose(r.batchBO)
}
