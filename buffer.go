package wld

import (
	"errors"
	"image"

	"github.com/gogpu/wld/region"
)

// BufferImpl is the backend half of a Buffer.
//
// Map returns a host view of the pixels, Unmap releases it and Destroy
// frees the backend storage. The Buffer guarantees that Map and Unmap are
// only called on the outermost map/unmap pair and that Destroy is called
// exactly once.
type BufferImpl interface {
	Map(b *Buffer) ([]byte, error)
	Unmap(b *Buffer) error
	Destroy(b *Buffer) error
}

// Exporter converts a buffer to a handle of some ObjectType.
//
// Export returns ok=false if it does not handle t, letting the next exporter
// try. An exporter that handles t but fails returns ok=true and the error.
type Exporter interface {
	Export(b *Buffer, t ObjectType) (obj Object, ok bool, err error)
}

// ExporterFunc adapts a function to the Exporter interface.
type ExporterFunc func(b *Buffer, t ObjectType) (Object, bool, error)

// Export calls f(b, t).
func (f ExporterFunc) Export(b *Buffer, t ObjectType) (Object, bool, error) {
	return f(b, t)
}

// Destructor releases resources that a collaborating module attached to a
// buffer. It runs once, when the buffer's last reference is dropped.
type Destructor interface {
	Destroy(b *Buffer) error
}

// DestructorFunc adapts a function to the Destructor interface.
type DestructorFunc func(b *Buffer) error

// Destroy calls f(b).
func (f DestructorFunc) Destroy(b *Buffer) error {
	return f(b)
}

// Buffer is a reference-counted rectangle of pixel memory owned by a
// backend.
//
// A new Buffer holds one reference. The buffer is destroyed when
// Unreference drops the count to zero: its damage is cleared, the
// destructors run in the order they were added, the mapping is released if
// one is outstanding, and finally the backend storage is freed.
//
// Exporters and destructors let other modules attach capabilities to a
// buffer they did not allocate, such as a software image view of a kernel
// buffer or a compositor buffer object.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	width, height int
	pitch         int
	format        Format

	impl BufferImpl

	damage *region.Region

	data     []byte
	resident []byte
	mapRefs  int

	refs        int
	destroyed   bool
	exporters   []Exporter
	destructors []Destructor
}

// BufferOption configures a Buffer at construction.
type BufferOption func(*Buffer)

// WithResidentData marks the buffer as permanently mapped to data.
// Map and Unmap still nest, but the data stays visible when unmapped.
func WithResidentData(data []byte) BufferOption {
	return func(b *Buffer) {
		b.resident = data
		b.data = data
	}
}

// WithExporter adds e as the buffer's first exporter.
func WithExporter(e Exporter) BufferOption {
	return func(b *Buffer) {
		b.exporters = append(b.exporters, e)
	}
}

// NewBuffer creates a buffer backed by impl with one reference.
// Backends call this; applications obtain buffers from a Context.
func NewBuffer(impl BufferImpl, width, height int, format Format, pitch int, opts ...BufferOption) *Buffer {
	b := &Buffer{
		width:  width,
		height: height,
		pitch:  pitch,
		format: format,
		impl:   impl,
		damage: region.Rect(0, 0, width, height),
		refs:   1,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Width returns the buffer width in pixels.
func (b *Buffer) Width() int { return b.width }

// Height returns the buffer height in pixels.
func (b *Buffer) Height() int { return b.height }

// Pitch returns the number of bytes between rows.
func (b *Buffer) Pitch() int { return b.pitch }

// Format returns the pixel format.
func (b *Buffer) Format() Format { return b.format }

// Bounds returns the buffer rectangle at the origin.
func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

// Impl returns the backend half of the buffer. Backends use it to recognise
// their own buffers.
func (b *Buffer) Impl() BufferImpl { return b.impl }

// Damage returns the region of the buffer changed since it was last drawn.
// The region is owned by the buffer and may be modified in place.
func (b *Buffer) Damage() *region.Region { return b.damage }

// Data returns the mapped pixels, or nil if the buffer is not mapped.
func (b *Buffer) Data() []byte { return b.data }

// Mapped reports whether the buffer has an outstanding Map.
func (b *Buffer) Mapped() bool { return b.mapRefs > 0 }

// MapCount returns the number of outstanding Map calls.
func (b *Buffer) MapCount() int { return b.mapRefs }

// References returns the strong reference count.
func (b *Buffer) References() int { return b.refs }

// Map maps the buffer into host memory. Calls nest: only the first performs
// the backend mapping.
func (b *Buffer) Map() error {
	if b.destroyed {
		return ErrDestroyed
	}
	if b.mapRefs == 0 {
		data, err := b.impl.Map(b)
		if err != nil {
			return err
		}
		b.data = data
	}
	b.mapRefs++
	return nil
}

// Unmap undoes one Map. The last Unmap releases the backend mapping; if that
// fails the buffer stays mapped.
func (b *Buffer) Unmap() error {
	if b.mapRefs == 0 {
		return ErrNotMapped
	}
	if b.mapRefs == 1 {
		if err := b.impl.Unmap(b); err != nil {
			return err
		}
		b.data = b.resident
	}
	b.mapRefs--
	return nil
}

// Export returns a handle of type t from the first exporter that handles it.
func (b *Buffer) Export(t ObjectType) (Object, error) {
	if b.destroyed {
		return Object{}, ErrDestroyed
	}
	for _, e := range b.exporters {
		obj, ok, err := e.Export(b, t)
		if ok {
			return obj, err
		}
	}
	return Object{}, &UnsupportedObjectError{Type: t}
}

// AddExporter appends e to the exporter chain.
func (b *Buffer) AddExporter(e Exporter) {
	b.exporters = append(b.exporters, e)
}

// AddDestructor appends d to the destructor chain.
func (b *Buffer) AddDestructor(d Destructor) {
	b.destructors = append(b.destructors, d)
}

// Reference adds a strong reference. A destroyed buffer cannot be revived.
func (b *Buffer) Reference() error {
	if b.destroyed {
		return ErrDestroyed
	}
	b.refs++
	return nil
}

// Unreference drops a strong reference and destroys the buffer when none
// remain. Errors from destructors, the final unmap and the backend are
// joined and returned; destruction still runs to completion.
func (b *Buffer) Unreference() error {
	if b.destroyed {
		return ErrDestroyed
	}
	b.refs--
	if b.refs > 0 {
		return nil
	}
	b.destroyed = true
	b.damage.Clear()

	var errs []error
	for _, d := range b.destructors {
		if err := d.Destroy(b); err != nil {
			errs = append(errs, err)
		}
	}
	b.destructors = nil
	b.exporters = nil

	if b.mapRefs > 0 {
		if err := b.impl.Unmap(b); err != nil {
			errs = append(errs, err)
		}
		b.mapRefs = 0
		b.data = nil
	}

	if err := b.impl.Destroy(b); err != nil {
		errs = append(errs, err)
	}
	b.resident = nil
	b.data = nil

	if len(errs) > 0 {
		Logger().Warn("wld: buffer destruction reported errors", "count", len(errs))
	}
	return errors.Join(errs...)
}
