// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package commands

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	goerrors "github.com/go-errors/errors"
	"github.com/spf13/cobra"
	"golang.org/x/image/font/gofont/gomono"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/config"
	"github.com/gogpu/wld/drm"
	"github.com/gogpu/wld/font"
	"github.com/gogpu/wld/software"
)

type renderOptions struct {
	output string
	width  int
	height int
	text   string
}

func newRenderCmd(a *app) *cobra.Command {
	opts := renderOptions{}
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Draw a test card and save it as PNG",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := render(a.cfg, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d)\n", opts.output, opts.width, opts.height)
			return nil
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", "wld.png", "output file")
	cmd.Flags().IntVar(&opts.width, "width", 320, "image width")
	cmd.Flags().IntVar(&opts.height, "height", 200, "image height")
	cmd.Flags().StringVar(&opts.text, "text", "wld", "caption")
	return cmd
}

// bars are the test card colors, left to right.
var bars = []uint32{
	0xffc0c0c0, 0xffc0c000, 0xff00c0c0, 0xff00c000,
	0xffc000c0, 0xffc00000, 0xff0000c0, 0xff101010,
}

func render(cfg *config.Config, opts renderOptions) error {
	if err := wld.ValidateSize(opts.width, opts.height); err != nil {
		return goerrors.Wrap(err, 0)
	}
	ctx, closeDevice, err := cfg.NewContext()
	if err != nil {
		return goerrors.WrapPrefix(err, "creating context", 0)
	}
	defer closeDevice()
	defer ctx.Destroy()
	wld.Logger().Debug("render", "backend", cfg.Backend, "driver", drm.DriverName(ctx))

	f := openFont(cfg)

	b, err := ctx.CreateBuffer(opts.width, opts.height, wld.FormatXRGB8888, wld.FlagMap)
	if err != nil {
		return goerrors.WrapPrefix(err, "creating buffer", 0)
	}
	defer b.Unreference()

	r, err := ctx.CreateRenderer()
	if err != nil {
		return goerrors.WrapPrefix(err, "creating renderer", 0)
	}
	defer r.Destroy()

	if err := r.SetTarget(b); err != nil {
		return goerrors.Wrap(err, 0)
	}
	if err := drawTestCard(r, f, opts); err != nil {
		return goerrors.WrapPrefix(err, "drawing", 0)
	}
	if err := r.Flush(); err != nil {
		return goerrors.WrapPrefix(err, "flushing", 0)
	}

	out, err := os.Create(opts.output)
	if err != nil {
		return goerrors.Wrap(err, 0)
	}
	if err := encode(out, b); err != nil {
		out.Close()
		return goerrors.WrapPrefix(err, "encoding", 0)
	}
	return out.Close()
}

func drawTestCard(r *wld.Renderer, f *font.Font, opts renderOptions) error {
	w := opts.width / len(bars)
	for i, c := range bars {
		bw := w
		if i == len(bars)-1 {
			bw = opts.width - i*w
		}
		if err := r.FillRectangle(c, i*w, 0, bw, opts.height); err != nil {
			return err
		}
	}
	if f == nil || opts.text == "" {
		return nil
	}
	h := f.Height + 8
	y := (opts.height - h) / 2
	if err := r.FillRectangle(0xff000000, 0, y, opts.width, h); err != nil {
		return err
	}
	ext := f.TextExtents(opts.text)
	_, err := r.DrawText(f, 0xffffffff, (opts.width-ext.Advance)/2, y+4+f.Ascent, opts.text)
	return err
}

// openFont opens the configured font, falling back to Go Mono.
func openFont(cfg *config.Config) *font.Font {
	f, err := cfg.FontContext().OpenName(cfg.Font.Name)
	if err == nil {
		return f
	}
	wld.Logger().Warn("font not found, using Go Mono", "name", cfg.Font.Name, "err", err)
	p, _ := font.ParsePattern(cfg.Font.Name)
	f, err = font.OpenData(gomono.TTF, font.Pattern{PixelSize: p.PixelSizeOrDefault()})
	if err != nil {
		wld.Logger().Warn("no font, drawing without text", slog.Any("err", err))
		return nil
	}
	return f
}

func encode(w io.Writer, b *wld.Buffer) error {
	if err := b.Map(); err != nil {
		return err
	}
	defer b.Unmap()
	img, err := software.NewImage(b.Data(), b.Width(), b.Height(), b.Pitch(), b.Format())
	if err != nil {
		return err
	}
	return img.EncodePNG(w)
}
