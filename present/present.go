// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package present shows wld surfaces through a gpucontext host, such as a
// gogpu window, by uploading presented buffers into a GPU texture.
//
// Only rows covered by a buffer's damage are converted and uploaded when
// the texture supports partial updates.
package present

import (
	"errors"
	"fmt"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/wld"
)

// ObjectTexture exports a presented buffer as the texture it was last
// uploaded to, carried in Object.Value.
const ObjectTexture = wld.BackendPresent

// ErrNoTextureCreator is returned when the draw context cannot create
// textures.
var ErrNoTextureCreator = errors.New("present: draw context has no texture creator")

// regionUpdater is implemented by textures that accept partial uploads.
type regionUpdater interface {
	UpdateRegion(x, y, width, height int, data []byte) error
}

// dataUpdater is the method of gpucontext.TextureUpdater.
type dataUpdater interface {
	UpdateData(data []byte) error
}

type textureDestroyer interface {
	Destroy()
}

// FormatFor returns the buffer format matching a surface texture format.
func FormatFor(tf gputypes.TextureFormat) (wld.Format, bool) {
	switch tf {
	case gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatRGBA8Unorm:
		return wld.FormatXRGB8888, true
	}
	return 0, false
}

// Target creates and draws textures.
type Target interface {
	NewTexture(width, height int, rgba []byte) (any, error)
	DrawTexture(tex any, x, y float32) error
}

// FromTextureDrawer adapts a gpucontext host draw context.
func FromTextureDrawer(dc gpucontext.TextureDrawer) Target {
	return drawerTarget{dc: dc}
}

type drawerTarget struct {
	dc gpucontext.TextureDrawer
}

func (t drawerTarget) NewTexture(width, height int, rgba []byte) (any, error) {
	creator := t.dc.TextureCreator()
	if creator == nil {
		return nil, ErrNoTextureCreator
	}
	tex, err := creator.NewTextureFromRGBA(width, height, rgba)
	if err != nil {
		return nil, err
	}
	return tex, nil
}

func (t drawerTarget) DrawTexture(tex any, x, y float32) error {
	gt, ok := tex.(gpucontext.Texture)
	if !ok {
		return fmt.Errorf("present: %T is not a gpucontext.Texture", tex)
	}
	return t.dc.DrawTexture(gt, x, y)
}

// Socket is a wld.BufferSocket drawing textures into a Target.
//
// The upload copies the pixels, so a presented buffer is released as soon
// as it is attached. The release is still only delivered by Process.
type Socket struct {
	target  Target
	surface wld.Releaser

	// X and Y place the texture in the draw context.
	X, Y float32

	tex           any
	width, height int
	rgba          []byte

	pending  []*wld.Buffer
	exported map[*wld.Buffer]struct{}

	uploads int
}

// NewSocket creates a socket drawing into target. Bind it to a surface
// with SetSurface, or use NewSurface.
func NewSocket(target Target) *Socket {
	return &Socket{target: target, exported: make(map[*wld.Buffer]struct{})}
}

// NewSurface creates a surface presented into target.
func NewSurface(alloc wld.BufferAllocator, target Target, width, height int, format wld.Format, flags wld.Flags) (*wld.BufferedSurface, *Socket) {
	s := NewSocket(target)
	surface := wld.NewBufferedSurface(alloc, width, height, format, flags|wld.FlagMap, s)
	s.SetSurface(surface)
	return surface, s
}

// SetSurface sets the surface released buffers are returned to.
func (s *Socket) SetSurface(r wld.Releaser) { s.surface = r }

// Texture returns the current texture, or nil before the first attach.
func (s *Socket) Texture() any { return s.tex }

// Uploads returns the number of texture uploads performed.
func (s *Socket) Uploads() int { return s.uploads }

// Attach uploads the damaged rows of b and draws the texture.
func (s *Socket) Attach(b *wld.Buffer) error {
	switch b.Format() {
	case wld.FormatXRGB8888, wld.FormatARGB8888:
	default:
		return fmt.Errorf("%w: %v", wld.ErrUnsupportedFormat, b.Format())
	}
	if err := b.Map(); err != nil {
		return fmt.Errorf("present: map: %w", err)
	}
	err := s.upload(b)
	if uerr := b.Unmap(); err == nil {
		err = uerr
	}
	if err != nil {
		return err
	}

	if err := s.target.DrawTexture(s.tex, s.X, s.Y); err != nil {
		return fmt.Errorf("present: draw: %w", err)
	}

	if _, ok := s.exported[b]; !ok {
		s.export(b)
	}
	s.pending = append(s.pending, b)
	return nil
}

func (s *Socket) upload(b *wld.Buffer) error {
	w, h := b.Width(), b.Height()
	if s.tex == nil || w != s.width || h != s.height {
		s.rgba = make([]byte, w*h*4)
		convertRows(s.rgba, b, 0, h)
		return s.create(w, h)
	}

	damage := b.Damage().Extents().Intersect(b.Bounds())
	if damage.Empty() {
		return nil
	}
	y0, y1 := damage.Min.Y, damage.Max.Y
	convertRows(s.rgba, b, y0, y1)

	if ru, ok := s.tex.(regionUpdater); ok {
		if err := ru.UpdateRegion(0, y0, w, y1-y0, s.rgba[y0*w*4:y1*w*4]); err != nil {
			return fmt.Errorf("present: update rows %d-%d: %w", y0, y1, err)
		}
		s.uploads++
		return nil
	}
	if u, ok := s.tex.(dataUpdater); ok {
		if err := u.UpdateData(s.rgba); err != nil {
			return fmt.Errorf("present: update: %w", err)
		}
		s.uploads++
		return nil
	}
	// Immutable textures are recreated.
	return s.create(w, h)
}

func (s *Socket) create(w, h int) error {
	tex, err := s.target.NewTexture(w, h, s.rgba)
	if err != nil {
		return fmt.Errorf("present: create %dx%d texture: %w", w, h, err)
	}
	s.destroyTexture()
	s.tex = tex
	s.width, s.height = w, h
	s.uploads++
	wld.Logger().Debug("present: texture created", "width", w, "height", h)
	return nil
}

// convertRows copies rows [y0, y1) of b into dst as RGBA. Buffers without
// alpha are made opaque.
func convertRows(dst []byte, b *wld.Buffer, y0, y1 int) {
	src, pitch, w := b.Data(), b.Pitch(), b.Width()
	opaque := !b.Format().HasAlpha()
	for y := y0; y < y1; y++ {
		row := src[y*pitch : y*pitch+w*4]
		out := dst[y*w*4 : (y+1)*w*4]
		for x := 0; x < w*4; x += 4 {
			out[x+0] = row[x+2]
			out[x+1] = row[x+1]
			out[x+2] = row[x+0]
			if opaque {
				out[x+3] = 0xff
			} else {
				out[x+3] = row[x+3]
			}
		}
	}
}

func (s *Socket) export(b *wld.Buffer) {
	s.exported[b] = struct{}{}
	b.AddExporter(wld.ExporterFunc(func(_ *wld.Buffer, t wld.ObjectType) (wld.Object, bool, error) {
		if t != ObjectTexture {
			return wld.Object{}, false, nil
		}
		return wld.Object{Value: s.tex}, true, nil
	}))
	b.AddDestructor(wld.DestructorFunc(func(b *wld.Buffer) error {
		delete(s.exported, b)
		return nil
	}))
}

// Process releases every attached buffer back to the surface.
func (s *Socket) Process() error {
	pending := s.pending
	s.pending = nil
	var errs []error
	for _, b := range pending {
		if s.surface == nil {
			break
		}
		if err := s.surface.Release(b); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *Socket) destroyTexture() {
	if d, ok := s.tex.(textureDestroyer); ok {
		d.Destroy()
	}
	s.tex = nil
}

// Destroy releases the texture.
func (s *Socket) Destroy() error {
	s.destroyTexture()
	s.pending = nil
	return nil
}
