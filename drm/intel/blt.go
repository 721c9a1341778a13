// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package intel

import (
	"github.com/gogpu/wld/internal/batch"
)

// BLT command encoding.
const (
	client2D = 0x2

	opSetup         = 0x01
	opText          = 0x26
	opTextImmediate = 0x31
	opColor         = 0x50
	opSrcCopy       = 0x53

	// writeMask32 writes alpha and RGB of 32-bit pixels.
	writeMask32 = 0x3
	depth32     = 0x3

	packingByte = 0x1

	ropSrc     = 0xcc
	ropPattern = 0xf0

	// maxImmediate is the largest even word count XY_TEXT_IMMEDIATE_BLT
	// can carry in its 8-bit length field.
	maxImmediate = 252
)

// miBatchBufferEnd and miNoop terminate a batch.
const (
	miNoop           = 0x00
	miBatchBufferEnd = 0x0a << 23
)

// bo is a GEM buffer object referenced from batches.
type bo struct {
	handle uint32
	tiling uint32
	pitch  int
	// staging objects hold glyph bitmaps for a single submission.
	staging bool
}

func (o *bo) tiled() bool { return o.tiling != TilingNone }

// bltPitch is the pitch field of BR13/BR11. Tiled surfaces use dwords.
func (o *bo) bltPitch() uint32 {
	if o.tiled() {
		return uint32(o.pitch>>2) & 0xffff
	}
	return uint32(o.pitch) & 0xffff
}

func br00(op, mask, packing uint32, srcTiled, dstTiled bool, words int) uint32 {
	v := client2D<<29 | op<<22 | mask<<20 | packing<<16 | uint32(words-2)
	if srcTiled {
		v |= 1 << 15
	}
	if dstTiled {
		v |= 1 << 11
	}
	return v
}

func br13(solid, clip, monoTransparent bool, rop uint32, pitch uint32) uint32 {
	v := uint32(depth32)<<24 | rop<<16 | pitch
	if solid {
		v |= 1 << 31
	}
	if clip {
		v |= 1 << 30
	}
	if monoTransparent {
		v |= 1 << 29
	}
	return v
}

// xy packs a coordinate pair as 16-bit signed values.
func xy(x, y int) uint32 {
	return uint32(uint16(int16(y)))<<16 | uint32(uint16(int16(x)))
}

// emitReloc writes a relocated address at the next word.
func emitReloc(b *batch.Batch, o *bo, write, fence bool) {
	r := batch.Relocation{
		Offset: b.Offset(0),
		Target: o,
		Read:   DomainRender,
		Kind:   batch.RelocFull,
		Fence:  fence && o.tiled(),
	}
	if write {
		r.Write = DomainRender
	}
	b.Relocate(r)
	b.Add(0)
}

// xySetupBlt sets the destination, colors and clip rectangle used by the
// following text blits. Clipping is to (0, 0)-(clipW, clipH).
func xySetupBlt(b *batch.Batch, dst *bo, monoTransparent bool, rop, bg, fg uint32, clipW, clipH int, fence bool) error {
	const words = 8
	if err := b.EnsureSpace(words); err != nil {
		return err
	}
	b.Add(
		br00(opSetup, writeMask32, 0, false, dst.tiled(), words),
		br13(false, true, monoTransparent, rop, dst.bltPitch()),
		xy(0, 0),
		xy(clipW, clipH),
	)
	emitReloc(b, dst, true, fence)
	b.Add(bg, fg, 0)
	return nil
}

// xyTextImmediateBlt draws a monochrome bitmap carried in the batch with
// the state of the last setup. Unlike the other encoders it never flushes:
// it returns batch.ErrNoSpace so the caller can flush and repeat the setup.
func xyTextImmediateBlt(b *batch.Batch, dstTiled bool, x1, y1, x2, y2 int, data []uint32) error {
	count := len(data)
	if count%2 != 0 {
		count++
	}
	words := 3 + count
	if !b.CheckSpace(words) {
		return batch.ErrNoSpace
	}
	b.Add(
		br00(opTextImmediate, 0, packingByte, false, dstTiled, words),
		xy(x1, y1),
		xy(x2, y2),
	)
	b.Add(data...)
	if count != len(data) {
		b.Add(0)
	}
	return nil
}

// xyTextBlt draws a monochrome bitmap held in src with the state of the
// last setup. Like xyTextImmediateBlt it reports a full ring.
func xyTextBlt(b *batch.Batch, src *bo, dstTiled bool, x1, y1, x2, y2 int) error {
	const words = 4
	if !b.CheckSpace(words) {
		return batch.ErrNoSpace
	}
	b.Add(
		br00(opText, 0, packingByte, false, dstTiled, words),
		xy(x1, y1),
		xy(x2, y2),
	)
	emitReloc(b, src, false, false)
	return nil
}

// xyColorBlt fills (x1, y1)-(x2, y2) of dst with color.
func xyColorBlt(b *batch.Batch, dst *bo, x1, y1, x2, y2 int, color uint32, fence bool) error {
	const words = 6
	if err := b.EnsureSpace(words); err != nil {
		return err
	}
	b.Add(
		br00(opColor, writeMask32, 0, false, dst.tiled(), words),
		br13(false, false, false, ropPattern, dst.bltPitch()),
		xy(x1, y1),
		xy(x2, y2),
	)
	emitReloc(b, dst, true, fence)
	b.Add(color)
	return nil
}

// xySrcCopyBlt copies a width x height rectangle from (srcX, srcY) of src
// to (dstX, dstY) of dst.
func xySrcCopyBlt(b *batch.Batch, src *bo, srcX, srcY int, dst *bo, dstX, dstY, width, height int, fence bool) error {
	const words = 8
	if err := b.EnsureSpace(words); err != nil {
		return err
	}
	b.Add(
		br00(opSrcCopy, writeMask32, 0, src.tiled(), dst.tiled(), words),
		br13(false, false, false, ropSrc, dst.bltPitch()),
		xy(dstX, dstY),
		xy(dstX+width, dstY+height),
	)
	emitReloc(b, dst, true, fence)
	b.Add(xy(srcX, srcY), src.bltPitch())
	emitReloc(b, src, false, fence)
	return nil
}
