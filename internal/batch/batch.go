// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package batch implements the fixed-capacity command ring shared by the
// GPU command-batch backends.
//
// Commands are appended as 32-bit words. Addresses of buffer objects are
// not known until the kernel places them, so backends write a placeholder
// and record a Relocation at the word's byte offset. Flush hands the words,
// the relocations and the set of referenced buffers to a Submitter and
// starts over.
package batch

import (
	"errors"
	"fmt"

	"github.com/gogpu/wld"
)

// ErrNoSpace is returned when a command cannot fit even in an empty ring.
var ErrNoSpace = errors.New("batch: command larger than ring")

// RelocKind selects which part of a buffer address a relocation patches.
type RelocKind uint8

const (
	// RelocFull patches a 32-bit address.
	RelocFull RelocKind = iota
	// RelocLow patches the low 32 bits of a 64-bit address.
	RelocLow
	// RelocHigh patches the high 32 bits of a 64-bit address.
	RelocHigh
)

func (k RelocKind) String() string {
	switch k {
	case RelocFull:
		return "full"
	case RelocLow:
		return "low"
	case RelocHigh:
		return "high"
	default:
		return fmt.Sprintf("RelocKind(%d)", uint8(k))
	}
}

// Relocation is a deferred buffer address in the ring.
type Relocation struct {
	// Offset is the byte offset of the patched word.
	Offset uint32
	// Target is the backend's buffer object.
	Target any
	// Delta is added to the target address.
	Delta uint32
	// Read and Write are backend memory domains.
	Read, Write uint32
	Kind        RelocKind
	// Fence requests a fence register for tiled access.
	Fence bool
}

// BufferRef is a buffer used by a submission and the domains it is used in.
type BufferRef struct {
	Target      any
	Read, Write uint32
	Fence       bool
}

// Submission is one flushed batch.
type Submission struct {
	Words   []uint32
	Relocs  []Relocation
	Buffers []BufferRef
}

// Submitter executes a submission. The slices are only valid for the
// duration of the call.
type Submitter interface {
	Submit(s *Submission) error
}

// SubmitterFunc adapts a function to the Submitter interface.
type SubmitterFunc func(s *Submission) error

// Submit calls f(s).
func (f SubmitterFunc) Submit(s *Submission) error { return f(s) }

// Option configures a Batch.
type Option func(*Batch)

// WithTerminator makes Flush append end and then pad with noop until the
// word count is a multiple of align.
func WithTerminator(end, noop uint32, align int) Option {
	return func(b *Batch) {
		b.term = true
		b.end = end
		b.noop = noop
		b.align = align
	}
}

// WithName labels the batch in log output.
func WithName(name string) Option {
	return func(b *Batch) { b.name = name }
}

// Batch is a command ring of fixed capacity. The last reserved words are
// kept free for the terminator.
//
// Batch is not safe for concurrent use.
type Batch struct {
	words    []uint32
	capacity int
	reserved int
	relocs   []Relocation
	buffers  []BufferRef
	sub      Submitter

	term      bool
	end, noop uint32
	align     int
	name      string
	flushes   int
}

// New creates a ring of capacity words, reserved of which are kept for the
// terminator.
func New(capacity, reserved int, sub Submitter, opts ...Option) *Batch {
	b := &Batch{
		words:    make([]uint32, 0, capacity),
		capacity: capacity,
		reserved: reserved,
		sub:      sub,
		name:     "batch",
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Len returns the number of command words.
func (b *Batch) Len() int { return len(b.words) }

// Capacity returns the number of words available to commands.
func (b *Batch) Capacity() int { return b.capacity - b.reserved }

// Words returns the pending command words. The slice is only valid until
// the next call that modifies the batch.
func (b *Batch) Words() []uint32 { return b.words }

// Relocations returns the pending relocations.
func (b *Batch) Relocations() []Relocation { return b.relocs }

// Buffers returns the buffers referenced since the last flush.
func (b *Batch) Buffers() []BufferRef { return b.buffers }

// Flushes returns the number of successful submissions.
func (b *Batch) Flushes() int { return b.flushes }

// CheckSpace reports whether n more words fit.
func (b *Batch) CheckSpace(n int) bool {
	return b.capacity-b.reserved-len(b.words) >= n
}

// EnsureSpace flushes if n more words do not fit.
func (b *Batch) EnsureSpace(n int) error {
	if b.CheckSpace(n) {
		return nil
	}
	if n > b.Capacity() {
		return fmt.Errorf("%w: %d words, capacity %d", ErrNoSpace, n, b.Capacity())
	}
	return b.Flush()
}

// Add appends words. Callers check space first.
func (b *Batch) Add(words ...uint32) {
	b.words = append(b.words, words...)
}

// Offset returns the byte offset of the word i words past the end.
func (b *Batch) Offset(i int) uint32 {
	return uint32(len(b.words)+i) * 4
}

// Relocate records a relocation and references its target.
func (b *Batch) Relocate(r Relocation) {
	b.relocs = append(b.relocs, r)
	b.Use(r.Target, r.Read, r.Write, r.Fence)
}

// Use references target without a relocation. Domains of repeated
// references are merged.
func (b *Batch) Use(target any, read, write uint32, fence bool) {
	for i := range b.buffers {
		ref := &b.buffers[i]
		if ref.Target == target {
			ref.Read |= read
			ref.Write |= write
			ref.Fence = ref.Fence || fence
			return
		}
	}
	b.buffers = append(b.buffers, BufferRef{Target: target, Read: read, Write: write, Fence: fence})
}

// Flush submits pending commands. An empty ring is not submitted. If the
// submitter fails, the terminator is removed and the commands stay queued.
func (b *Batch) Flush() error {
	if len(b.words) == 0 {
		return nil
	}

	n := len(b.words)
	if b.term {
		b.words = append(b.words, b.end)
		if b.align > 1 {
			for len(b.words)%b.align != 0 {
				b.words = append(b.words, b.noop)
			}
		}
	}

	err := b.sub.Submit(&Submission{Words: b.words, Relocs: b.relocs, Buffers: b.buffers})
	if err != nil {
		b.words = b.words[:n]
		wld.Logger().Warn("wld: batch submission failed", "batch", b.name, "words", n, "err", err)
		return fmt.Errorf("batch: submit: %w", err)
	}

	wld.Logger().Debug("wld: batch submitted", "batch", b.name,
		"words", len(b.words), "relocs", len(b.relocs), "buffers", len(b.buffers))
	b.flushes++
	b.Reset()
	return nil
}

// Reset discards pending commands and relocations.
func (b *Batch) Reset() {
	b.words = b.words[:0]
	b.relocs = b.relocs[:0]
	b.buffers = b.buffers[:0]
}
