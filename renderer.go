package wld

import (
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/region"
)

// RendererImpl is the backend half of a Renderer.
//
// SetTarget(nil) drops the current target. Drawing methods are only called
// while a target is set.
type RendererImpl interface {
	Capabilities(b *Buffer) Capability
	SetTarget(b *Buffer) error
	FillRectangle(color uint32, x, y, width, height int) error
	CopyRectangle(src *Buffer, dstX, dstY, srcX, srcY, width, height int) error
	DrawText(f *font.Font, color uint32, x, y int, text string) (font.Extents, error)
	Flush() error
	Destroy() error
}

// RegionFiller is implemented by backends that fill a whole region at once.
type RegionFiller interface {
	FillRegion(color uint32, r *region.Region) error
}

// RegionCopier is implemented by backends that copy a whole region at once.
type RegionCopier interface {
	CopyRegion(src *Buffer, dstX, dstY int, r *region.Region) error
}

// Renderer draws into a target buffer through a backend.
//
// Colors are 32-bit ARGB values. Flush submits pending work and clears the
// target, so every frame starts with SetTarget or SetTargetSurface.
type Renderer struct {
	impl   RendererImpl
	target *Buffer
}

// NewRenderer wraps a backend renderer.
func NewRenderer(impl RendererImpl) *Renderer {
	return &Renderer{impl: impl}
}

// Impl returns the backend half of r.
func (r *Renderer) Impl() RendererImpl { return r.impl }

// Target returns the current target, or nil.
func (r *Renderer) Target() *Buffer { return r.target }

// Capabilities reports what r can do with b.
func (r *Renderer) Capabilities(b *Buffer) Capability {
	return r.impl.Capabilities(b)
}

// SetTarget makes b the target of subsequent drawing. On error the previous
// target is kept.
func (r *Renderer) SetTarget(b *Buffer) error {
	if err := r.impl.SetTarget(b); err != nil {
		return err
	}
	r.target = b
	return nil
}

// SetTargetSurface targets the back buffer of s.
func (r *Renderer) SetTargetSurface(s Surface) error {
	b, err := s.Back()
	if err != nil {
		return err
	}
	return r.SetTarget(b)
}

// FillRectangle fills a rectangle with color.
func (r *Renderer) FillRectangle(color uint32, x, y, width, height int) error {
	if r.target == nil {
		return ErrNoTarget
	}
	return r.impl.FillRectangle(color, x, y, width, height)
}

// FillRegion fills every rectangle of rg with color.
func (r *Renderer) FillRegion(color uint32, rg *region.Region) error {
	if r.target == nil {
		return ErrNoTarget
	}
	if f, ok := r.impl.(RegionFiller); ok {
		return f.FillRegion(color, rg)
	}
	for _, rect := range rg.Rects() {
		if err := r.impl.FillRectangle(color, rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy()); err != nil {
			return err
		}
	}
	return nil
}

// CopyRectangle copies a rectangle of src to the target.
func (r *Renderer) CopyRectangle(src *Buffer, dstX, dstY, srcX, srcY, width, height int) error {
	if r.target == nil {
		return ErrNoTarget
	}
	return r.impl.CopyRectangle(src, dstX, dstY, srcX, srcY, width, height)
}

// CopyRegion copies the pixels of src covered by rg to the target, offset by
// (dstX, dstY).
func (r *Renderer) CopyRegion(src *Buffer, dstX, dstY int, rg *region.Region) error {
	if r.target == nil {
		return ErrNoTarget
	}
	if c, ok := r.impl.(RegionCopier); ok {
		return c.CopyRegion(src, dstX, dstY, rg)
	}
	for _, rect := range rg.Rects() {
		err := r.impl.CopyRectangle(src, dstX+rect.Min.X, dstY+rect.Min.Y,
			rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
		if err != nil {
			return err
		}
	}
	return nil
}

// DrawText draws UTF-8 text with its baseline origin at (x, y) and returns
// the total advance.
func (r *Renderer) DrawText(f *font.Font, color uint32, x, y int, text string) (font.Extents, error) {
	if r.target == nil {
		return font.Extents{}, ErrNoTarget
	}
	return r.impl.DrawText(f, color, x, y, text)
}

// Flush submits pending drawing and clears the target. The target is
// cleared even if submission fails.
func (r *Renderer) Flush() error {
	err := r.impl.Flush()
	if terr := r.impl.SetTarget(nil); err == nil {
		err = terr
	}
	r.target = nil
	return err
}

// Destroy releases the renderer.
func (r *Renderer) Destroy() error {
	r.target = nil
	return r.impl.Destroy()
}
