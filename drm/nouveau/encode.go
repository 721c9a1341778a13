// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package nouveau

import (
	"github.com/gogpu/wld/internal/batch"
)

// Command types.
const (
	typeIncreasing    = 1
	typeNonIncreasing = 3
	typeInline        = 4
)

const subchannel2D = 3

// Class and methods of the Fermi 2D engine.
const (
	class2D = 0x902d

	mObject           = 0x0000
	mSerialize        = 0x0110
	mDstFormat        = 0x0200
	mSrcFormat        = 0x0230
	mOperation        = 0x02ac
	mDrawShape        = 0x0580
	mDrawPoint32X0    = 0x0600
	mSIFCBitmapEnable = 0x0800
	mSIFCBitmapFormat = 0x0804
	mSIFCWidth        = 0x0838
	mSIFCData         = 0x0860
	mUnk0884          = 0x0884
	mUnk0888          = 0x0888
	mBlitControl      = 0x088c
	mBlitDstX         = 0x08b0

	operationSrcCopyAnd = 0
	drawShapeRectangles = 4
	bitmapFormatI1      = 0
	linePackAlignByte   = 1
	blitOriginCenter    = 0
	blitFilterPoint     = 0
)

// Surface formats.
const (
	formatBGRA8 = 0xcf
	formatBGRX8 = 0xe6
)

func command(typ, method, countOrValue uint32) uint32 {
	return typ<<29 | countOrValue<<16 | subchannel2D<<13 | method>>2
}

// methods emits an increasing method with its data.
func methods(b *batch.Batch, method uint32, data ...uint32) {
	b.Add(command(typeIncreasing, method, uint32(len(data))))
	b.Add(data...)
}

// inline emits a method whose 13-bit value is carried in the header.
func inline(b *batch.Batch, method, value uint32) {
	b.Add(command(typeInline, method, value))
}

// useBuffer binds o as the source or destination surface.
func useBuffer(b *batch.Batch, formatMethod uint32, o *bo, format uint32, write bool) {
	inline(b, formatMethod, format)
	if o.tiled() {
		methods(b, formatMethod+0x04, 0, o.tileMode)
	} else {
		inline(b, formatMethod+0x04, 1)
		methods(b, formatMethod+0x14, uint32(o.pitch))
	}
	b.Add(command(typeIncreasing, formatMethod+0x18, 4), uint32(o.width), uint32(o.height))

	rel := batch.Relocation{Target: o, Read: o.domain}
	if write {
		rel.Write = o.domain
	}
	rel.Offset, rel.Kind = b.Offset(0), batch.RelocHigh
	b.Relocate(rel)
	b.Add(0)
	rel.Offset, rel.Kind = b.Offset(0), batch.RelocLow
	b.Relocate(rel)
	b.Add(0)
}
