// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package region implements pixel regions as sets of non-overlapping
// rectangles.
//
// A Region is kept in y-x banded form: rectangles are sorted top to bottom,
// then left to right, every band of rectangles shares the same vertical span,
// and vertically adjacent bands with identical horizontal spans are merged.
// Two regions covering the same pixels therefore have the same rectangle
// list, which makes Equal a plain comparison.
//
// Regions are used to accumulate buffer damage and to describe the areas
// covered by region fills and copies.
package region

import (
	"fmt"
	"image"
	"slices"
	"strings"
)

// Region is a set of pixels described by disjoint rectangles.
//
// The zero value is an empty region ready for use.
// Region is not safe for concurrent use.
type Region struct {
	rects []image.Rectangle
}

// New creates a region covering the union of rects.
func New(rects ...image.Rectangle) *Region {
	r := &Region{}
	r.rects = normalize(rects)
	return r
}

// Rect creates a region covering a single rectangle given by origin and size.
func Rect(x, y, width, height int) *Region {
	return New(image.Rect(x, y, x+width, y+height))
}

// Clone returns a copy of r.
func (r *Region) Clone() *Region {
	return &Region{rects: slices.Clone(r.rects)}
}

// Empty reports whether r covers no pixels.
func (r *Region) Empty() bool {
	return r == nil || len(r.rects) == 0
}

// Rects returns the rectangles of r in banded order.
// The returned slice is a copy.
func (r *Region) Rects() []image.Rectangle {
	if r == nil {
		return nil
	}
	return slices.Clone(r.rects)
}

// Len returns the number of rectangles in r.
func (r *Region) Len() int {
	if r == nil {
		return 0
	}
	return len(r.rects)
}

// Extents returns the bounding box of r.
func (r *Region) Extents() image.Rectangle {
	if r.Empty() {
		return image.Rectangle{}
	}
	ext := r.rects[0]
	for _, rect := range r.rects[1:] {
		ext = ext.Union(rect)
	}
	return ext
}

// Contains reports whether the pixel at p is in r.
func (r *Region) Contains(p image.Point) bool {
	if r == nil {
		return false
	}
	for _, rect := range r.rects {
		if p.In(rect) {
			return true
		}
	}
	return false
}

// Equal reports whether r and o cover the same pixels.
func (r *Region) Equal(o *Region) bool {
	if r.Empty() || o.Empty() {
		return r.Empty() == o.Empty()
	}
	return slices.Equal(r.rects, o.rects)
}

// Clear makes r empty.
func (r *Region) Clear() {
	r.rects = r.rects[:0]
}

// Set replaces the contents of r with a single rectangle.
func (r *Region) Set(rect image.Rectangle) {
	r.rects = normalize([]image.Rectangle{rect})
}

// Union adds the pixels of o to r.
func (r *Region) Union(o *Region) {
	if o.Empty() {
		return
	}
	all := make([]image.Rectangle, 0, len(r.rects)+len(o.rects))
	all = append(all, r.rects...)
	all = append(all, o.rects...)
	r.rects = normalize(all)
}

// UnionRect adds rect to r.
func (r *Region) UnionRect(rect image.Rectangle) {
	if rect.Empty() {
		return
	}
	r.rects = normalize(append(slices.Clone(r.rects), rect))
}

// Intersect restricts r to the pixels it shares with o.
func (r *Region) Intersect(o *Region) {
	if r.Empty() || o.Empty() {
		r.Clear()
		return
	}
	var out []image.Rectangle
	for _, a := range r.rects {
		for _, b := range o.rects {
			if c := a.Intersect(b); !c.Empty() {
				out = append(out, c)
			}
		}
	}
	r.rects = normalize(out)
}

// IntersectRect restricts r to rect.
func (r *Region) IntersectRect(rect image.Rectangle) {
	r.Intersect(New(rect))
}

// Subtract removes the pixels of o from r.
func (r *Region) Subtract(o *Region) {
	if r.Empty() || o.Empty() {
		return
	}
	pieces := slices.Clone(r.rects)
	for _, cut := range o.rects {
		next := pieces[:0:0]
		for _, p := range pieces {
			next = appendDifference(next, p, cut)
		}
		pieces = next
		if len(pieces) == 0 {
			break
		}
	}
	r.rects = normalize(pieces)
}

// Translate moves every rectangle of r by (dx, dy).
func (r *Region) Translate(dx, dy int) {
	d := image.Pt(dx, dy)
	for i := range r.rects {
		r.rects[i] = r.rects[i].Add(d)
	}
}

// String returns a compact description of r, used in test failures and logs.
func (r *Region) String() string {
	if r.Empty() {
		return "region{}"
	}
	var sb strings.Builder
	sb.WriteString("region{")
	for i, rect := range r.rects {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%d,%d %dx%d", rect.Min.X, rect.Min.Y, rect.Dx(), rect.Dy())
	}
	sb.WriteString("}")
	return sb.String()
}

// appendDifference appends the parts of a not covered by b.
func appendDifference(dst []image.Rectangle, a, b image.Rectangle) []image.Rectangle {
	in := a.Intersect(b)
	if in.Empty() {
		return append(dst, a)
	}
	if a.Min.Y < in.Min.Y {
		dst = append(dst, image.Rect(a.Min.X, a.Min.Y, a.Max.X, in.Min.Y))
	}
	if in.Max.Y < a.Max.Y {
		dst = append(dst, image.Rect(a.Min.X, in.Max.Y, a.Max.X, a.Max.Y))
	}
	if a.Min.X < in.Min.X {
		dst = append(dst, image.Rect(a.Min.X, in.Min.Y, in.Min.X, in.Max.Y))
	}
	if in.Max.X < a.Max.X {
		dst = append(dst, image.Rect(in.Max.X, in.Min.Y, a.Max.X, in.Max.Y))
	}
	return dst
}

// span is a horizontal pixel interval [x0, x1).
type span struct{ x0, x1 int }

// normalize converts an arbitrary, possibly overlapping rectangle list into
// banded form.
func normalize(rects []image.Rectangle) []image.Rectangle {
	live := make([]image.Rectangle, 0, len(rects))
	ys := make([]int, 0, 2*len(rects))
	for _, rect := range rects {
		rect = rect.Canon()
		if rect.Empty() {
			continue
		}
		live = append(live, rect)
		ys = append(ys, rect.Min.Y, rect.Max.Y)
	}
	if len(live) == 0 {
		return nil
	}
	slices.Sort(ys)
	ys = slices.Compact(ys)

	var (
		out       []image.Rectangle
		prevSpans []span
		prevStart int // index in out where the previous band begins
		prevY1    int
	)
	for i := 0; i+1 < len(ys); i++ {
		y0, y1 := ys[i], ys[i+1]
		spans := bandSpans(live, y0, y1)
		if len(spans) == 0 {
			prevSpans = nil
			continue
		}
		if prevSpans != nil && prevY1 == y0 && slices.Equal(spans, prevSpans) {
			for j := prevStart; j < len(out); j++ {
				out[j].Max.Y = y1
			}
			prevY1 = y1
			continue
		}
		prevStart = len(out)
		for _, s := range spans {
			out = append(out, image.Rect(s.x0, y0, s.x1, y1))
		}
		prevSpans = spans
		prevY1 = y1
	}
	return out
}

// bandSpans returns the merged horizontal spans of rects that fully cover
// the band [y0, y1).
func bandSpans(rects []image.Rectangle, y0, y1 int) []span {
	var spans []span
	for _, rect := range rects {
		if rect.Min.Y <= y0 && rect.Max.Y >= y1 {
			spans = append(spans, span{rect.Min.X, rect.Max.X})
		}
	}
	if len(spans) == 0 {
		return nil
	}
	slices.SortFunc(spans, func(a, b span) int { return a.x0 - b.x0 })
	merged := spans[:1]
	for _, s := range spans[1:] {
		last := &merged[len(merged)-1]
		if s.x0 <= last.x1 {
			if s.x1 > last.x1 {
				last.x1 = s.x1
			}
			continue
		}
		merged = append(merged, s)
	}
	return merged
}
