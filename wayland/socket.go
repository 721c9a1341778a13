// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package wayland

import (
	"fmt"

	"github.com/gogpu/wld"
)

// socket is the wld.BufferSocket of a wayland surface.
type socket struct {
	surface wld.Releaser
	wl      Surface
	queue   Queue

	// listening holds transport buffers whose release handler points here.
	listening map[TransportBuffer]struct{}
}

func newSocket(wl Surface, queue Queue) *socket {
	return &socket{wl: wl, queue: queue, listening: make(map[TransportBuffer]struct{})}
}

// Attach presents b with its damage and commits.
func (s *socket) Attach(b *wld.Buffer) error {
	tb, err := TransportBufferOf(b)
	if err != nil {
		return fmt.Errorf("wayland: attach: %w", err)
	}
	if _, ok := s.listening[tb]; !ok {
		s.listen(b, tb)
	}
	if err := s.wl.Attach(tb, 0, 0); err != nil {
		return fmt.Errorf("wayland: attach: %w", err)
	}
	for _, r := range b.Damage().Rects() {
		if err := s.wl.Damage(r.Min.X, r.Min.Y, r.Dx(), r.Dy()); err != nil {
			return fmt.Errorf("wayland: damage: %w", err)
		}
	}
	return s.wl.Commit()
}

func (s *socket) listen(b *wld.Buffer, tb TransportBuffer) {
	s.listening[tb] = struct{}{}
	tb.SetReleaseHandler(func() {
		if err := s.surface.Release(b); err != nil {
			wld.Logger().Warn("wayland: release of unknown buffer", "err", err)
		}
	})
	b.AddDestructor(wld.DestructorFunc(func(*wld.Buffer) error {
		delete(s.listening, tb)
		return nil
	}))
}

// Process dispatches pending events, delivering releases.
func (s *socket) Process() error {
	return s.queue.DispatchPending()
}

// Destroy implements wld.BufferSocket. The queue belongs to the context.
func (s *socket) Destroy() error {
	s.listening = nil
	return nil
}
