// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package software

import (
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/gogpu/wld"
)

// Image is a draw.Image over 32-bit B, G, R, X/A pixel memory, the layout
// of wld.FormatXRGB8888 and wld.FormatARGB8888.
type Image struct {
	Pix    []byte
	Stride int
	Rect   image.Rectangle
	Alpha  bool
}

// NewImage wraps pix without copying. pix must hold height rows of stride
// bytes, the last of which may be short of padding.
func NewImage(pix []byte, width, height, stride int, format wld.Format) (*Image, error) {
	if format.BytesPerPixel() != 4 {
		return nil, wld.ErrUnsupportedFormat
	}
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	if stride < width*4 || len(pix) < stride*(height-1)+width*4 {
		return nil, wld.ErrInvalidSize
	}
	return &Image{
		Pix:    pix,
		Stride: stride,
		Rect:   image.Rect(0, 0, width, height),
		Alpha:  format.HasAlpha(),
	}, nil
}

// ColorModel implements image.Image.
func (m *Image) ColorModel() color.Model { return color.RGBAModel }

// Bounds implements image.Image.
func (m *Image) Bounds() image.Rectangle { return m.Rect }

// PixOffset returns the index of the first byte of pixel (x, y).
func (m *Image) PixOffset(x, y int) int {
	return (y-m.Rect.Min.Y)*m.Stride + (x-m.Rect.Min.X)*4
}

// ARGB returns the pixel at (x, y) as 0xAARRGGBB. Pixels without alpha
// read as opaque.
func (m *Image) ARGB(x, y int) uint32 {
	if !(image.Point{x, y}.In(m.Rect)) {
		return 0
	}
	v := binary.LittleEndian.Uint32(m.Pix[m.PixOffset(x, y):])
	if !m.Alpha {
		v |= 0xff000000
	}
	return v
}

// At implements image.Image.
func (m *Image) At(x, y int) color.Color {
	v := m.ARGB(x, y)
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: uint8(v >> 24)}
}

// Set implements draw.Image.
func (m *Image) Set(x, y int, c color.Color) {
	if !(image.Point{x, y}.In(m.Rect)) {
		return
	}
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	i := m.PixOffset(x, y)
	m.Pix[i+0] = rgba.B
	m.Pix[i+1] = rgba.G
	m.Pix[i+2] = rgba.R
	m.Pix[i+3] = rgba.A
}

// SubImage returns the part of m visible through r, sharing pixels.
func (m *Image) SubImage(r image.Rectangle) image.Image {
	r = r.Intersect(m.Rect)
	if r.Empty() {
		return &Image{Alpha: m.Alpha}
	}
	return &Image{
		Pix:    m.Pix[m.PixOffset(r.Min.X, r.Min.Y):],
		Stride: m.Stride,
		Rect:   r,
		Alpha:  m.Alpha,
	}
}

// Fill stores argb in every pixel of r, clipped to m.
func (m *Image) Fill(r image.Rectangle, argb uint32) {
	r = r.Intersect(m.Rect)
	if r.Empty() {
		return
	}
	var px [4]byte
	binary.LittleEndian.PutUint32(px[:], argb)

	w := r.Dx() * 4
	first := m.Pix[m.PixOffset(r.Min.X, r.Min.Y):][:w]
	for i := 0; i < w; i += 4 {
		copy(first[i:], px[:])
	}
	for y := r.Min.Y + 1; y < r.Max.Y; y++ {
		copy(m.Pix[m.PixOffset(r.Min.X, y):][:w], first)
	}
}

// Copy copies the pixels of src at sp to r in m, clipped to both images.
// Overlapping copies within one image are handled.
func (m *Image) Copy(r image.Rectangle, src *Image, sp image.Point) {
	// Clip against the source, then the destination, keeping the two
	// rectangles aligned.
	sr := image.Rectangle{Min: sp, Max: sp.Add(r.Size())}.Intersect(src.Rect)
	r = image.Rectangle{Min: r.Min.Add(sr.Min.Sub(sp)), Max: r.Min.Add(sr.Max.Sub(sp))}
	clipped := r.Intersect(m.Rect)
	if clipped.Empty() {
		return
	}
	sp = sr.Min.Add(clipped.Min.Sub(r.Min))
	r = clipped

	w := r.Dx() * 4
	rows := r.Dy()
	if sp.Y < r.Min.Y && sameMemory(m, src) {
		for y := rows - 1; y >= 0; y-- {
			copy(m.Pix[m.PixOffset(r.Min.X, r.Min.Y+y):][:w], src.Pix[src.PixOffset(sp.X, sp.Y+y):][:w])
		}
		return
	}
	for y := 0; y < rows; y++ {
		copy(m.Pix[m.PixOffset(r.Min.X, r.Min.Y+y):][:w], src.Pix[src.PixOffset(sp.X, sp.Y+y):][:w])
	}
}

// sameMemory reports whether a and b share a backing array.
func sameMemory(a, b *Image) bool {
	if cap(a.Pix) == 0 || cap(b.Pix) == 0 {
		return false
	}
	return &a.Pix[:cap(a.Pix)][cap(a.Pix)-1] == &b.Pix[:cap(b.Pix)][cap(b.Pix)-1]
}

// EncodePNG writes m as a PNG.
func (m *Image) EncodePNG(w io.Writer) error {
	return png.Encode(w, m)
}
