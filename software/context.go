// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package software implements wld buffers in host memory and a CPU
// renderer that draws into any mappable buffer.
package software

import (
	"fmt"
	"image"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/internal/cache"
)

// ObjectImage exports a buffer as an *Image in Object.Value.
const ObjectImage = wld.BackendSoftware

// DefaultGlyphCacheSize is the number of glyph masks a context keeps.
const DefaultGlyphCacheSize = 1024

type glyphKey struct {
	font *font.Font
	r    rune
}

// Context allocates host-memory buffers.
type Context struct {
	glyphs *cache.Cache[glyphKey, *image.Alpha]
}

// Option configures a Context.
type Option func(*contextOptions)

type contextOptions struct {
	glyphCacheSize int
}

// WithGlyphCacheSize sets how many glyph masks the context keeps.
func WithGlyphCacheSize(n int) Option {
	return func(o *contextOptions) { o.glyphCacheSize = n }
}

// NewContext creates a software context.
func NewContext(opts ...Option) *Context {
	o := contextOptions{glyphCacheSize: DefaultGlyphCacheSize}
	for _, opt := range opts {
		opt(&o)
	}
	return &Context{
		glyphs: cache.New[glyphKey, *image.Alpha](o.glyphCacheSize),
	}
}

// GlyphCacheStats returns statistics of the glyph mask cache.
func (c *Context) GlyphCacheStats() cache.Stats {
	return c.glyphs.Stats()
}

// CreateRenderer implements wld.Context.
func (c *Context) CreateRenderer() (*wld.Renderer, error) {
	return wld.NewRenderer(&renderer{ctx: c}), nil
}

// CreateBuffer implements wld.Context. Software buffers are always mapped.
func (c *Context) CreateBuffer(width, height int, format wld.Format, _ wld.Flags) (*wld.Buffer, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	if !format.Valid() {
		return nil, fmt.Errorf("%w: %v", wld.ErrUnsupportedFormat, format)
	}
	pitch := format.Pitch(width)
	return newBuffer(make([]byte, pitch*height), width, height, format, pitch)
}

// ImportBuffer implements wld.Context. Only wld.ObjectData is accepted; the
// caller's memory is used without copying.
func (c *Context) ImportBuffer(t wld.ObjectType, obj wld.Object, width, height int, format wld.Format, pitch int) (*wld.Buffer, error) {
	if t != wld.ObjectData {
		return nil, &wld.UnsupportedObjectError{Type: t}
	}
	return newBuffer(obj.Data, width, height, format, pitch)
}

// CreateSurface implements wld.Context. The surface has no buffer socket.
func (c *Context) CreateSurface(width, height int, format wld.Format, flags wld.Flags) (wld.Surface, error) {
	if err := wld.ValidateSize(width, height); err != nil {
		return nil, err
	}
	return wld.NewBufferedSurface(c, width, height, format, flags, nil), nil
}

// Destroy implements wld.Context.
func (c *Context) Destroy() error {
	c.glyphs.Clear()
	return nil
}

// buffer is the BufferImpl of host-memory buffers.
type buffer struct {
	img *Image
}

func newBuffer(data []byte, width, height int, format wld.Format, pitch int) (*wld.Buffer, error) {
	img, err := NewImage(data, width, height, pitch, format)
	if err != nil {
		return nil, err
	}
	impl := &buffer{img: img}
	return wld.NewBuffer(impl, width, height, format, pitch,
		wld.WithResidentData(data),
		wld.WithExporter(impl)), nil
}

func (b *buffer) Map(*wld.Buffer) ([]byte, error) { return b.img.Pix, nil }
func (b *buffer) Unmap(*wld.Buffer) error         { return nil }

func (b *buffer) Destroy(*wld.Buffer) error {
	b.img = nil
	return nil
}

// Export implements wld.Exporter.
func (b *buffer) Export(_ *wld.Buffer, t wld.ObjectType) (wld.Object, bool, error) {
	switch t {
	case wld.ObjectData:
		return wld.Object{Data: b.img.Pix}, true, nil
	case ObjectImage:
		return wld.Object{Value: b.img}, true, nil
	default:
		return wld.Object{}, false, nil
	}
}

// ImageOf returns an *Image view of b.
//
// Buffers of other backends are mapped and wrapped on first use. The view
// is attached to the buffer as an ObjectImage exporter, and the mapping is
// released when the buffer is destroyed.
func ImageOf(b *wld.Buffer) (*Image, error) {
	if obj, err := b.Export(ObjectImage); err == nil {
		if img, ok := obj.Value.(*Image); ok {
			return img, nil
		}
	}

	if err := b.Map(); err != nil {
		return nil, fmt.Errorf("software: mapping foreign buffer: %w", err)
	}
	img, err := NewImage(b.Data(), b.Width(), b.Height(), b.Pitch(), b.Format())
	if err != nil {
		_ = b.Unmap()
		return nil, err
	}

	b.AddExporter(wld.ExporterFunc(func(_ *wld.Buffer, t wld.ObjectType) (wld.Object, bool, error) {
		if t != ObjectImage {
			return wld.Object{}, false, nil
		}
		return wld.Object{Value: img}, true, nil
	}))
	b.AddDestructor(wld.DestructorFunc(func(b *wld.Buffer) error {
		img.Pix = nil
		return b.Unmap()
	}))
	wld.Logger().Debug("wld: wrapped foreign buffer", "width", b.Width(), "height", b.Height())
	return img, nil
}
