// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package commands

import (
	"fmt"
	"io"
	"text/tabwriter"

	goerrors "github.com/go-errors/errors"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/config"
)

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print the resolved configuration, drivers and formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return info(cmd.OutOrStdout(), a.cfg)
		},
	}
}

func info(w io.Writer, cfg *config.Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return goerrors.Wrap(err, 0)
	}
	fmt.Fprintf(w, "# configuration\n%s\n", data)

	ids, err := cfg.InterfaceIDs()
	if err != nil {
		return goerrors.Wrap(err, 0)
	}
	fmt.Fprint(w, "# wayland interfaces\n")
	for _, id := range ids {
		fmt.Fprintf(w, "%s\n", id)
	}

	fmt.Fprint(w, "\n# drm drivers\n")
	for _, d := range cfg.Drivers() {
		fmt.Fprintf(w, "%s\n", d.Name())
	}

	fmt.Fprint(w, "\n# formats\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FOURCC\tBPP\tALPHA\tTEXTURE")
	for _, f := range []wld.Format{wld.FormatXRGB8888, wld.FormatARGB8888} {
		fmt.Fprintf(tw, "%s\t%d\t%v\t%v\n", f, f.BytesPerPixel()*8, f.HasAlpha(), f.TextureFormat())
	}
	return tw.Flush()
}
