// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package font

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-text/typesetting/fontscan"
)

// ErrNoMatch is returned when no font matches a pattern.
var ErrNoMatch = errors.New("font: no matching font")

// matchRune is the rune faces must cover to match a pattern.
const matchRune = 'M'

// Context finds fonts by family and aspect.
//
// Lookup goes through a fontscan font map. System fonts are indexed on
// first use; fonts added with AddFontData take part in matching alongside
// them. Context is safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	fm       *fontscan.FontMap
	data     map[string][]byte
	cacheDir string
	system   bool
	scanned  bool
	logger   *slog.Logger
}

// ContextOption configures a Context.
type ContextOption func(*Context)

// WithCacheDir sets the directory for the system font index. The default
// is the user cache directory chosen by fontscan.
func WithCacheDir(dir string) ContextOption {
	return func(c *Context) { c.cacheDir = dir }
}

// WithSystemFonts controls whether system fonts are indexed. It defaults
// to true.
func WithSystemFonts(enabled bool) ContextOption {
	return func(c *Context) { c.system = enabled }
}

// WithLogger routes font lookup warnings to l.
func WithLogger(l *slog.Logger) ContextOption {
	return func(c *Context) {
		if l != nil {
			c.logger = l
		}
	}
}

// printfLogger adapts slog to the fontscan logger.
type printfLogger struct {
	l *slog.Logger
}

func (p printfLogger) Printf(format string, args ...interface{}) {
	p.l.Debug("font: " + fmt.Sprintf(format, args...))
}

// NewContext creates a font context.
func NewContext(opts ...ContextOption) *Context {
	c := &Context{
		data:   make(map[string][]byte),
		system: true,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.fm = fontscan.NewFontMap(printfLogger{c.logger})
	return c
}

// AddFontData registers font data under id. The font's own family name is
// used for matching.
func (c *Context) AddFontData(id string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.fm.AddFont(bytes.NewReader(data), id, ""); err != nil {
		return fmt.Errorf("font: add %s: %w", id, err)
	}
	c.data[id] = data
	return nil
}

// OpenName opens the font best matching a fontconfig name. See
// ParsePattern for the syntax.
func (c *Context) OpenName(name string) (*Font, error) {
	p, err := ParsePattern(name)
	if err != nil {
		return nil, err
	}
	return c.OpenMatch(p)
}

// OpenMatch opens the font best matching p.
func (c *Context) OpenMatch(p Pattern) (*Font, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.scan(); err != nil {
		return nil, err
	}

	c.fm.SetQuery(fontscan.Query{Families: p.Families, Aspect: p.Aspect()})
	face := c.fm.ResolveFace(matchRune)
	if face == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, p)
	}

	loc := c.fm.FontLocation(face.Font)
	p.Index = int(loc.Index)
	c.logger.Debug("font: matched", "pattern", p.String(), "file", loc.File, "index", loc.Index)

	if data, ok := c.data[loc.File]; ok {
		return OpenData(data, p)
	}
	if loc.File == "" {
		return nil, fmt.Errorf("%w: %s", ErrNoMatch, p)
	}
	return OpenFile(loc.File, p)
}

// scan indexes the system fonts once. Must be called with c.mu held.
func (c *Context) scan() error {
	if c.scanned || !c.system {
		return nil
	}
	if err := c.fm.UseSystemFonts(c.cacheDir); err != nil {
		// User fonts still match without the system index.
		if len(c.data) == 0 {
			return fmt.Errorf("font: system fonts: %w", err)
		}
		c.logger.Warn("font: system fonts unavailable", "err", err)
	}
	c.scanned = true
	return nil
}
