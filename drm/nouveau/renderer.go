// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package nouveau

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/internal/batch"
)

// Push buffer geometry.
const (
	pushbufBytes    = 32 * 1024
	pushbufWords    = pushbufBytes / 4
	pushbufReserved = 1
)

type renderer struct {
	ctx     *Context
	channel uint32
	push    BO
	pushMap []byte
	batch   *batch.Batch
	target  *buffer
}

func newRenderer(c *Context) (*renderer, error) {
	dev := c.dev
	channel, err := dev.ChannelAlloc()
	if err != nil {
		return nil, fmt.Errorf("nouveau: channel: %w", err)
	}
	if err := dev.GrobjAlloc(channel, class2D, class2D); err != nil {
		_ = dev.ChannelFree(channel)
		return nil, fmt.Errorf("nouveau: 2d object: %w", err)
	}
	push, err := dev.GemNew(BO{Size: pushbufBytes, Domain: DomainGART | DomainMappable}, 0)
	if err != nil {
		_ = dev.ChannelFree(channel)
		return nil, fmt.Errorf("nouveau: push buffer: %w", err)
	}
	pushMap, err := dev.Mmap(push.MapHandle, pushbufBytes)
	if err != nil {
		_ = dev.GemClose(push.Handle)
		_ = dev.ChannelFree(channel)
		return nil, fmt.Errorf("nouveau: map push buffer: %w", err)
	}

	r := &renderer{ctx: c, channel: channel, push: push, pushMap: pushMap}
	r.batch = batch.New(pushbufWords, pushbufReserved, r, batch.WithName("nouveau"))

	methods(r.batch, mObject, class2D)
	inline(r.batch, mOperation, operationSrcCopyAnd)
	inline(r.batch, mUnk0884, 0x3f)
	inline(r.batch, mUnk0888, 1)
	return r, nil
}

func surfaceFormat(f wld.Format) uint32 {
	switch f {
	case wld.FormatXRGB8888:
		return formatBGRX8
	case wld.FormatARGB8888:
		return formatBGRA8
	default:
		return 0
	}
}

func (r *renderer) own(b *wld.Buffer) *buffer {
	impl, ok := b.Impl().(*buffer)
	if !ok || impl.ctx != r.ctx {
		return nil
	}
	return impl
}

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

func (r *renderer) targetFormat() (uint32, error) {
	return formatOf(r.target)
}

func formatOf(b *buffer) (uint32, error) {
	f := surfaceFormat(b.format)
	if f == 0 {
		return 0, fmt.Errorf("%w: %v", wld.ErrUnsupportedFormat, b.format)
	}
	return f, nil
}

func (r *renderer) FillRectangle(color uint32, x, y, width, height int) error {
	format, err := r.targetFormat()
	if err != nil {
		return err
	}
	if err := r.batch.EnsureSpace(18); err != nil {
		return err
	}
	useBuffer(r.batch, mDstFormat, r.target.bo, format, true)
	methods(r.batch, mDrawShape, drawShapeRectangles, format, color)
	methods(r.batch, mDrawPoint32X0, uint32(x), uint32(y), uint32(x+width), uint32(y+height))
	return nil
}

// CopyRectangle copies with a 1:1 blit and submits immediately.
func (r *renderer) CopyRectangle(src *wld.Buffer, dstX, dstY, srcX, srcY, width, height int) error {
	s := r.own(src)
	if s == nil {
		return wld.ErrForeignBuffer
	}
	srcFormat, err := formatOf(s)
	if err != nil {
		return err
	}
	dstFormat, err := r.targetFormat()
	if err != nil {
		return err
	}
	if err := r.batch.EnsureSpace(33); err != nil {
		return err
	}
	useBuffer(r.batch, mSrcFormat, s.bo, srcFormat, false)
	useBuffer(r.batch, mDstFormat, r.target.bo, dstFormat, true)
	inline(r.batch, mSerialize, 0)
	inline(r.batch, mBlitControl, blitOriginCenter|blitFilterPoint)
	methods(r.batch, mBlitDstX,
		uint32(dstX), uint32(dstY), uint32(width), uint32(height),
		0, 1, 0, 1,
		0, uint32(srcX), 0, uint32(srcY))
	return r.batch.Flush()
}

// DrawText draws glyphs as 1-bit SIFC bitmaps expanded to color.
func (r *renderer) DrawText(f *font.Font, color uint32, x, y int, text string) (font.Extents, error) {
	format, err := r.targetFormat()
	if err != nil {
		return font.Extents{}, err
	}
	if err := r.batch.EnsureSpace(17); err != nil {
		return font.Extents{}, err
	}
	dst := r.target.bo
	useBuffer(r.batch, mDstFormat, dst, format, true)
	inline(r.batch, mSIFCBitmapEnable, 1)
	methods(r.batch, mSIFCBitmapFormat, bitmapFormatI1, 0, linePackAlignByte, 0, color, 0)

	origin := x
	for _, c := range font.Runes(text) {
		g, ok := f.Glyph(c)
		if !ok {
			continue
		}
		if !g.Empty() {
			data := glyphWords(g)
			if err := r.batch.EnsureSpace(12 + len(data)); err != nil {
				return font.Extents{Advance: x - origin}, err
			}
			// A flush drops the target from the buffer list but the
			// channel keeps the surface state.
			r.batch.Use(dst, dst.domain, dst.domain, false)
			// The pitch is used as the width so rows keep their alignment.
			methods(r.batch, mSIFCWidth,
				uint32(g.Pitch*8), uint32(g.Rows),
				0, 1, 0, 1,
				0, uint32(x+g.X), 0, uint32(y+g.Y))
			r.batch.Add(command(typeNonIncreasing, mSIFCData, uint32(len(data))))
			r.batch.Add(data...)
		}
		x += g.Advance
	}
	return font.Extents{Advance: x - origin}, nil
}

// glyphWords returns the glyph bitmap as words, zero padded.
func glyphWords(g *font.Glyph) []uint32 {
	n := g.Pitch * g.Rows
	padded := make([]byte, (n+3)&^3)
	copy(padded, g.Bitmap[:n])
	words := make([]uint32, len(padded)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(padded[i*4:])
	}
	return words
}

func (r *renderer) Flush() error {
	return r.batch.Flush()
}

// Submit implements batch.Submitter. The push buffer is object 0.
func (r *renderer) Submit(s *batch.Submission) error {
	dev := r.ctx.dev
	if err := dev.CPUPrep(r.push.Handle, true); err != nil {
		return fmt.Errorf("nouveau: wait for push buffer: %w", err)
	}
	for i, w := range s.Words {
		binary.LittleEndian.PutUint32(r.pushMap[i*4:], w)
	}

	bos := make([]PushBO, 1, len(s.Buffers)+1)
	bos[0] = PushBO{Handle: r.push.Handle, Read: DomainGART, Valid: DomainGART}
	index := make(map[*bo]uint32, len(s.Buffers))
	for _, ref := range s.Buffers {
		o := ref.Target.(*bo)
		index[o] = uint32(len(bos))
		bos = append(bos, PushBO{
			Handle: o.handle,
			Read:   ref.Read,
			Write:  ref.Write,
			Valid:  DomainVRAM | DomainGART,
		})
	}

	relocs := make([]PushReloc, len(s.Relocs))
	for i, rel := range s.Relocs {
		flags := uint32(RelocLow)
		if rel.Kind == batch.RelocHigh {
			flags = RelocHigh
		}
		relocs[i] = PushReloc{
			RelocBO: 0,
			Offset:  rel.Offset,
			BO:      index[rel.Target.(*bo)],
			Flags:   flags,
			Data:    rel.Delta,
		}
	}

	push := []Push{{BO: 0, Offset: 0, Length: uint64(len(s.Words) * 4)}}
	return dev.Pushbuf(r.channel, bos, relocs, push)
}

func (r *renderer) Destroy() error {
	dev := r.ctx.dev
	r.batch.Reset()
	r.target = nil
	return errors.Join(
		dev.Munmap(r.pushMap),
		dev.GemClose(r.push.Handle),
		dev.ChannelFree(r.channel),
	)
}
