// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package font

import (
	"fmt"
	"strconv"
	"strings"

	tsfont "github.com/go-text/typesetting/font"
)

// defaultDPI converts point sizes when a pattern gives no dpi, matching
// fontconfig.
const defaultDPI = 75

// Pattern describes the font to open.
//
// Zero fields are unspecified. Weight and Style use the typesetting scale,
// so Weight 700 is bold and Style StyleItalic selects italic or oblique
// faces.
type Pattern struct {
	Families  []string
	PixelSize float64
	Size      float64
	DPI       float64
	Weight    tsfont.Weight
	Style     tsfont.Style
	Index     int
}

// PixelSizeOrDefault returns the em size in pixels: PixelSize if set, else
// Size converted at DPI, else DefaultPixelSize.
func (p Pattern) PixelSizeOrDefault() float64 {
	if p.PixelSize > 0 {
		return p.PixelSize
	}
	if p.Size > 0 {
		dpi := p.DPI
		if dpi <= 0 {
			dpi = defaultDPI
		}
		return p.Size * dpi / 72
	}
	return DefaultPixelSize
}

// Aspect returns the typesetting aspect for font lookup, with unspecified
// values set to normal.
func (p Pattern) Aspect() tsfont.Aspect {
	a := tsfont.Aspect{Style: p.Style, Weight: p.Weight}
	a.SetDefaults()
	return a
}

// String formats p as a fontconfig name.
func (p Pattern) String() string {
	var sb strings.Builder
	for i, f := range p.Families {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(escapeName(f))
	}
	if p.Size > 0 {
		fmt.Fprintf(&sb, "-%g", p.Size)
	}
	if p.PixelSize > 0 {
		fmt.Fprintf(&sb, ":pixelsize=%g", p.PixelSize)
	}
	if p.DPI > 0 {
		fmt.Fprintf(&sb, ":dpi=%g", p.DPI)
	}
	if p.Weight != 0 {
		fmt.Fprintf(&sb, ":weight=%g", float32(p.Weight))
	}
	if p.Style == tsfont.StyleItalic {
		sb.WriteString(":italic")
	}
	if p.Index > 0 {
		fmt.Fprintf(&sb, ":index=%d", p.Index)
	}
	return sb.String()
}

// ParsePattern parses a fontconfig name such as "DejaVu Sans Mono-10",
// "monospace:pixelsize=14" or "Terminus,monospace:bold:size=9".
//
// Recognised properties are family, size, pixelsize, dpi, weight, slant,
// style and index, plus the constants bold, medium, light, thin, black,
// italic, oblique and roman. Unknown properties are ignored.
func ParsePattern(name string) (Pattern, error) {
	var p Pattern

	parts := splitUnescaped(name, ':')
	head := parts[0]

	// A trailing "-N" after the families is a point size. Escaped dashes
	// belong to the family name.
	if i := lastUnescaped(head, '-'); i >= 0 {
		if size, err := parseSizeList(head[i+1:]); err == nil {
			p.Size = size
			head = head[:i]
		}
	}
	for _, f := range splitUnescaped(head, ',') {
		if f = strings.TrimSpace(unescapeName(f)); f != "" {
			p.Families = append(p.Families, f)
		}
	}

	for _, prop := range parts[1:] {
		if prop == "" {
			continue
		}
		key, value, hasValue := strings.Cut(prop, "=")
		key = strings.ToLower(strings.TrimSpace(key))
		if !hasValue {
			applyConstant(&p, key)
			continue
		}
		if err := p.set(key, strings.TrimSpace(unescapeName(value))); err != nil {
			return Pattern{}, fmt.Errorf("font: pattern %q: %w", name, err)
		}
	}
	return p, nil
}

func (p *Pattern) set(key, value string) error {
	var err error
	switch key {
	case "family":
		p.Families = append(p.Families, value)
	case "size":
		p.Size, err = parseSizeList(value)
	case "pixelsize":
		p.PixelSize, err = parseSizeList(value)
	case "dpi":
		p.DPI, err = strconv.ParseFloat(value, 64)
	case "index":
		p.Index, err = strconv.Atoi(value)
	case "weight":
		if !applyConstant(p, strings.ToLower(value)) {
			var w float64
			w, err = strconv.ParseFloat(value, 32)
			p.Weight = tsfont.Weight(w)
		}
	case "slant", "style":
		for _, word := range strings.Fields(strings.ToLower(value)) {
			applyConstant(p, word)
		}
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// applyConstant applies a bare fontconfig constant and reports whether it
// was recognised.
func applyConstant(p *Pattern, c string) bool {
	switch c {
	case "thin":
		p.Weight = tsfont.WeightThin
	case "light":
		p.Weight = tsfont.WeightLight
	case "regular", "normal", "book":
		p.Weight = tsfont.WeightNormal
	case "medium":
		p.Weight = tsfont.WeightMedium
	case "demibold", "semibold":
		p.Weight = tsfont.WeightSemibold
	case "bold":
		p.Weight = tsfont.WeightBold
	case "black", "heavy":
		p.Weight = tsfont.WeightBlack
	case "italic", "oblique":
		p.Style = tsfont.StyleItalic
	case "roman":
		p.Style = tsfont.StyleNormal
	default:
		return false
	}
	return true
}

// parseSizeList parses a size, taking the first of a comma-separated list.
func parseSizeList(s string) (float64, error) {
	first, _, _ := strings.Cut(s, ",")
	v, err := strconv.ParseFloat(strings.TrimSpace(first), 64)
	if err != nil {
		return 0, err
	}
	if v <= 0 {
		return 0, fmt.Errorf("size %v must be positive", v)
	}
	return v, nil
}

func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func lastUnescaped(s string, c byte) int {
	last := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case c:
			last = i
		}
	}
	return last
}

func unescapeName(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

func escapeName(s string) string {
	return strings.NewReplacer(`\`, `\\`, `-`, `\-`, `:`, `\:`, `,`, `\,`).Replace(s)
}
