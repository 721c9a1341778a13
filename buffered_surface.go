package wld

import (
	"fmt"

	"github.com/gogpu/wld/region"
)

type bufferEntry struct {
	buffer *Buffer
	busy   bool
}

// BufferedSurface is the Surface implementation shared by all backends.
//
// Buffers are allocated on demand: when every pooled buffer is busy, the
// next Back allocates another one instead of waiting. Releases from the
// presentation transport are only observed when the surface polls its
// socket, which happens on Back and ProcessReleases. An idle client leaves
// released buffers marked busy until its next frame, and a client that never
// polls keeps growing the pool. Call ProcessReleases from the event loop to
// reclaim buffers between frames.
type BufferedSurface struct {
	alloc   BufferAllocator
	socket  BufferSocket
	entries []bufferEntry
	back    int // index into entries, or -1

	width, height int
	format        Format
	flags         Flags
}

// NewBufferedSurface creates an empty surface that allocates buffers from
// alloc. socket may be nil for surfaces that are never presented.
func NewBufferedSurface(alloc BufferAllocator, width, height int, format Format, flags Flags, socket BufferSocket) *BufferedSurface {
	return &BufferedSurface{
		alloc:  alloc,
		socket: socket,
		back:   -1,
		width:  width,
		height: height,
		format: format,
		flags:  flags,
	}
}

// Len returns the number of pooled buffers.
func (s *BufferedSurface) Len() int { return len(s.entries) }

// Busy reports whether b is pooled and busy.
func (s *BufferedSurface) Busy(b *Buffer) bool {
	for _, e := range s.entries {
		if e.buffer == b {
			return e.busy
		}
	}
	return false
}

// Damage implements Surface.
func (s *BufferedSurface) Damage(r *region.Region) (*region.Region, error) {
	if !r.Empty() {
		for _, e := range s.entries {
			e.buffer.damage.Union(r)
		}
	}
	b, err := s.Back()
	if err != nil {
		return nil, err
	}
	return b.damage, nil
}

// ProcessReleases drains pending release notifications from the socket.
func (s *BufferedSurface) ProcessReleases() error {
	if s.socket == nil {
		return nil
	}
	return s.socket.Process()
}

// Back implements Surface.
func (s *BufferedSurface) Back() (*Buffer, error) {
	if s.back >= 0 {
		return s.entries[s.back].buffer, nil
	}

	if err := s.ProcessReleases(); err != nil {
		Logger().Warn("wld: processing buffer releases", "err", err)
	}

	for i, e := range s.entries {
		if !e.busy {
			s.back = i
			return e.buffer, nil
		}
	}

	b, err := s.alloc.CreateBuffer(s.width, s.height, s.format, s.flags)
	if err != nil {
		return nil, fmt.Errorf("wld: allocating back buffer: %w", err)
	}

	if len(s.entries) == cap(s.entries) {
		grown := make([]bufferEntry, len(s.entries), cap(s.entries)*2+1)
		copy(grown, s.entries)
		s.entries = grown
	}
	s.entries = append(s.entries, bufferEntry{buffer: b})
	s.back = len(s.entries) - 1

	Logger().Debug("wld: surface pool grew",
		"buffers", len(s.entries), "capacity", cap(s.entries))
	return b, nil
}

// Take implements Surface.
func (s *BufferedSurface) Take() (*Buffer, error) {
	b, err := s.Back()
	if err != nil {
		return nil, err
	}
	s.checkIn()
	return b, nil
}

// Release implements Surface.
func (s *BufferedSurface) Release(b *Buffer) error {
	for i := range s.entries {
		if s.entries[i].buffer == b {
			s.entries[i].busy = false
			return nil
		}
	}
	return ErrForeignBuffer
}

// Swap implements Surface. If the socket rejects the buffer, it stays the
// back buffer and a later Swap presents it again.
func (s *BufferedSurface) Swap() error {
	if s.socket == nil {
		return ErrNoSocket
	}
	b, err := s.Back()
	if err != nil {
		return err
	}
	if err := s.socket.Attach(b); err != nil {
		return fmt.Errorf("wld: attaching buffer: %w", err)
	}
	s.checkIn()
	return nil
}

// checkIn marks the back buffer busy, clears its damage and empties the
// back slot.
func (s *BufferedSurface) checkIn() {
	e := &s.entries[s.back]
	e.busy = true
	e.buffer.damage.Clear()
	s.back = -1
}

// Destroy implements Surface.
func (s *BufferedSurface) Destroy() error {
	var err error
	if s.socket != nil {
		err = s.socket.Destroy()
		s.socket = nil
	}
	for _, e := range s.entries {
		if uerr := e.buffer.Unreference(); uerr != nil && err == nil {
			err = uerr
		}
	}
	s.entries = nil
	s.back = -1
	return err
}
