package wld

import "github.com/gogpu/wld/region"

// Surface is a rotating pool of buffers for tear-free redraw.
//
// The typical frame is:
//
//	damage, _ := s.Damage(changed)
//	r.SetTargetSurface(s)
//	r.FillRegion(bg, damage) // redraw what changed since this buffer was last drawn
//	r.Flush()
//	s.Swap()
type Surface interface {
	// Damage adds r to the damage of every pooled buffer and returns the
	// damage of the back buffer.
	Damage(r *region.Region) (*region.Region, error)

	// Back returns the buffer to draw the next frame into. Repeated calls
	// return the same buffer until it is taken or swapped.
	Back() (*Buffer, error)

	// Take checks out the back buffer for the caller and marks it busy.
	Take() (*Buffer, error)

	// Release returns a taken or presented buffer to the pool.
	Release(b *Buffer) error

	// Swap presents the back buffer.
	Swap() error

	// Destroy drops every pooled buffer and the buffer socket.
	Destroy() error
}

// BufferSocket connects a surface to a presentation transport.
//
// Attach presents a buffer. Process drains pending release notifications,
// calling back into the surface's Release for each one. The transport never
// delivers releases outside Process.
type BufferSocket interface {
	Attach(b *Buffer) error
	Process() error
	Destroy() error
}

// Releaser is the surface side of a buffer socket.
type Releaser interface {
	Release(b *Buffer) error
}
