// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/region"
)

type renderer struct {
	ctx    *Context
	target *Image
}

func (r *renderer) Capabilities(*wld.Buffer) wld.Capability {
	return wld.CapabilityRead | wld.CapabilityWrite
}

func (r *renderer) SetTarget(b *wld.Buffer) error {
	if b == nil {
		r.target = nil
		return nil
	}
	img, err := ImageOf(b)
	if err != nil {
		return err
	}
	r.target = img
	return nil
}

func (r *renderer) FillRectangle(color uint32, x, y, width, height int) error {
	r.target.Fill(image.Rect(x, y, x+width, y+height), color)
	return nil
}

func (r *renderer) FillRegion(color uint32, rg *region.Region) error {
	for _, rect := range rg.Rects() {
		r.target.Fill(rect, color)
	}
	return nil
}

func (r *renderer) CopyRectangle(src *wld.Buffer, dstX, dstY, srcX, srcY, width, height int) error {
	img, err := ImageOf(src)
	if err != nil {
		return err
	}
	r.target.Copy(image.Rect(dstX, dstY, dstX+width, dstY+height), img, image.Pt(srcX, srcY))
	return nil
}

func (r *renderer) CopyRegion(src *wld.Buffer, dstX, dstY int, rg *region.Region) error {
	img, err := ImageOf(src)
	if err != nil {
		return err
	}
	for _, rect := range rg.Rects() {
		r.target.Copy(rect.Add(image.Pt(dstX, dstY)), img, rect.Min)
	}
	return nil
}

func (r *renderer) DrawText(f *font.Font, argb uint32, x, y int, text string) (font.Extents, error) {
	src := image.NewUniform(color.NRGBA{
		R: uint8(argb >> 16),
		G: uint8(argb >> 8),
		B: uint8(argb),
		A: uint8(argb >> 24),
	})

	origin := x
	for _, c := range font.Runes(text) {
		g, ok := f.Glyph(c)
		if !ok {
			continue
		}
		if !g.Empty() {
			mask := r.ctx.glyphMask(f, c, g)
			dr := image.Rect(x+g.X, y+g.Y, x+g.X+g.Width, y+g.Y+g.Rows)
			xdraw.DrawMask(r.target, dr, src, image.Point{}, mask, image.Point{}, xdraw.Over)
		}
		x += g.Advance
	}
	return font.Extents{Advance: x - origin}, nil
}

func (r *renderer) Flush() error { return nil }

func (r *renderer) Destroy() error {
	r.target = nil
	return nil
}

// glyphMask returns the alpha mask of a glyph's 1-bit bitmap.
func (c *Context) glyphMask(f *font.Font, r rune, g *font.Glyph) *image.Alpha {
	return c.glyphs.GetOrCreate(glyphKey{font: f, r: r}, func() *image.Alpha {
		mask := image.NewAlpha(image.Rect(0, 0, g.Width, g.Rows))
		for y := 0; y < g.Rows; y++ {
			for x := 0; x < g.Width; x++ {
				if g.Bit(x, y) {
					mask.Pix[y*mask.Stride+x] = 0xff
				}
			}
		}
		return mask
	})
}
