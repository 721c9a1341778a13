// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package font

import (
	"fmt"
	"image"
	"image/draw"
	"os"
	"sync"
	"unicode/utf8"

	xfont "golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
	"golang.org/x/text/unicode/norm"
)

// DefaultPixelSize is used when a pattern gives neither a pixel size nor a
// point size.
const DefaultPixelSize = 12

// maskThreshold is the coverage at which an antialiased pixel becomes set in
// the monochrome bitmap.
const maskThreshold = 0x80

// Glyph is a rendered character.
//
// Bitmap holds Rows rows of Pitch bytes; each row stores Width pixels, most
// significant bit first. X and Y give the offset of the bitmap's top-left
// corner from the pen position on the baseline, so Y is negative for
// pixels above the baseline.
type Glyph struct {
	Bitmap  []byte
	Width   int
	Rows    int
	Pitch   int
	X, Y    int
	Advance int
}

// Empty reports whether the glyph has no pixels.
func (g *Glyph) Empty() bool {
	return g.Width == 0 || g.Rows == 0
}

// Bit reports whether the pixel at column x, row y is set.
func (g *Glyph) Bit(x, y int) bool {
	return g.Bitmap[y*g.Pitch+x/8]&(0x80>>(x%8)) != 0
}

// Extents is the result of measuring or drawing text.
type Extents struct {
	Advance int
}

// Font is an opened face at a fixed pixel size.
//
// Glyphs are rendered on first use and kept for the life of the font.
// Font is safe for concurrent use.
type Font struct {
	Ascent     int
	Descent    int
	Height     int
	MaxAdvance int

	pixelSize float64
	sfnt      *sfnt.Font

	mu     sync.Mutex
	face   xfont.Face
	buf    sfnt.Buffer
	glyphs map[rune]*Glyph
}

// OpenData opens a font from TrueType or OpenType data at the size given by
// p. For collections, p.Index selects the face. Family, weight and style
// are ignored.
func OpenData(data []byte, p Pattern) (*Font, error) {
	coll, err := opentype.ParseCollection(data)
	if err != nil {
		return nil, fmt.Errorf("font: parse: %w", err)
	}
	if p.Index < 0 || p.Index >= coll.NumFonts() {
		return nil, fmt.Errorf("font: face index %d out of range (%d faces)", p.Index, coll.NumFonts())
	}
	f, err := coll.Font(p.Index)
	if err != nil {
		return nil, fmt.Errorf("font: face %d: %w", p.Index, err)
	}
	return newFont(f, p.PixelSizeOrDefault())
}

// OpenFile opens a font file.
func OpenFile(path string, p Pattern) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("font: %w", err)
	}
	return OpenData(data, p)
}

func newFont(f *sfnt.Font, pixelSize float64) (*Font, error) {
	if pixelSize <= 0 {
		pixelSize = DefaultPixelSize
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    pixelSize,
		DPI:     72,
		Hinting: xfont.HintingFull,
	})
	if err != nil {
		return nil, fmt.Errorf("font: face: %w", err)
	}

	m := face.Metrics()
	font := &Font{
		Ascent:    m.Ascent.Ceil(),
		Descent:   m.Descent.Ceil(),
		pixelSize: pixelSize,
		sfnt:      f,
		face:      face,
		glyphs:    make(map[rune]*Glyph),
	}
	font.Height = font.Ascent + font.Descent
	font.MaxAdvance = font.maxAdvance()
	return font, nil
}

// maxAdvance returns the largest advance of any glyph in the face.
func (f *Font) maxAdvance() int {
	ppem := fixed.Int26_6(f.pixelSize * 64)
	var widest fixed.Int26_6
	for i := 0; i < f.sfnt.NumGlyphs(); i++ {
		adv, err := f.sfnt.GlyphAdvance(&f.buf, sfnt.GlyphIndex(i), ppem, xfont.HintingFull)
		if err == nil && adv > widest {
			widest = adv
		}
	}
	return widest.Ceil()
}

// PixelSize returns the em size in pixels.
func (f *Font) PixelSize() float64 { return f.pixelSize }

// Close releases the face.
func (f *Font) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.glyphs = nil
	return f.face.Close()
}

// EnsureChar reports whether the font has a glyph for r, rendering it if it
// was not rendered yet.
func (f *Font) EnsureChar(r rune) bool {
	_, ok := f.Glyph(r)
	return ok
}

// Glyph returns the rendered glyph for r, or false if the font has none.
func (f *Font) Glyph(r rune) (*Glyph, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.glyphs[r]; ok {
		return g, g != nil
	}
	g := f.render(r)
	f.glyphs[r] = g
	return g, g != nil
}

// render rasterizes r to a monochrome bitmap. Must be called with f.mu held.
func (f *Font) render(r rune) *Glyph {
	idx, err := f.sfnt.GlyphIndex(&f.buf, r)
	if err != nil || idx == 0 {
		return nil
	}

	dr, mask, maskp, advance, ok := f.face.Glyph(fixed.Point26_6{}, r)
	if !ok {
		return nil
	}

	g := &Glyph{
		Width:   dr.Dx(),
		Rows:    dr.Dy(),
		X:       dr.Min.X,
		Y:       dr.Min.Y,
		Advance: advance.Round(),
	}
	if g.Empty() {
		return g
	}

	// The face reuses its mask between calls, so copy it out.
	alpha := image.NewAlpha(image.Rect(0, 0, g.Width, g.Rows))
	draw.Draw(alpha, alpha.Bounds(), mask, maskp, draw.Src)

	g.Pitch = ((g.Width + 15) >> 4) << 1
	g.Bitmap = make([]byte, g.Pitch*g.Rows)
	for y := 0; y < g.Rows; y++ {
		row := alpha.Pix[y*alpha.Stride:]
		for x := 0; x < g.Width; x++ {
			if row[x] >= maskThreshold {
				g.Bitmap[y*g.Pitch+x/8] |= 0x80 >> (x % 8)
			}
		}
	}
	return g
}

// TextExtents measures text.
func (f *Font) TextExtents(text string) Extents {
	return f.TextExtentsN(text, -1)
}

// TextExtentsN measures at most length bytes of text. A negative length
// measures the whole string.
func (f *Font) TextExtentsN(text string, length int) Extents {
	var e Extents
	for _, r := range Runes(Truncate(text, length)) {
		if g, ok := f.Glyph(r); ok {
			e.Advance += g.Advance
		}
	}
	return e
}

// Truncate returns the first length bytes of text, or text itself if length
// is negative or past the end.
func Truncate(text string, length int) string {
	if length < 0 || length >= len(text) {
		return text
	}
	return text[:length]
}

// Runes decodes text for drawing. Decoding stops at the first NUL or
// invalid UTF-8 sequence, and the result is in Unicode NFC so that combining
// sequences map to precomposed glyphs where the font has them.
func Runes(text string) []rune {
	end := len(text)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		if r == 0 || (r == utf8.RuneError && size <= 1) {
			end = i
			break
		}
		i += size
	}
	return []rune(norm.NFC.String(text[:end]))
}
