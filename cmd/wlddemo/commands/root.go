// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package commands implements the wlddemo command tree.
package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	goerrors "github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/gogpu/wld"
	"github.com/gogpu/wld/config"
)

// app carries the state shared by every subcommand.
type app struct {
	cfgFile string
	debug   bool
	cfg     *config.Config
}

// NewRootCmd builds the wlddemo command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "wlddemo",
		Short: "Exercise the wld drawing backends",
		Long: `wlddemo draws a test card through a wld context (software memory or a
DRM device) and writes it as PNG. It also prints the resolved
configuration and the available drivers.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is $XDG_CONFIG_HOME/wld/config.toml)")
	root.PersistentFlags().BoolVarP(&a.debug, "debug", "d", false, "debug logging and error stacks")

	root.AddCommand(newRenderCmd(a), newInfoCmd(a), newConfigCmd())
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return goerrors.Wrap(err, 0)
	}
	if a.debug {
		cfg.Logging.Level = "debug"
	}
	wld.SetLogger(cfg.Logger())
	a.cfg = cfg
	return nil
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		debug, _ := cmd.PersistentFlags().GetBool("debug")
		report(os.Stderr, err, debug)
		return 1
	}
	return 0
}

// report prints err, with the stack captured where it was wrapped when
// debug is set.
func report(w io.Writer, err error, debug bool) {
	var stacked *goerrors.Error
	if debug && errors.As(err, &stacked) {
		fmt.Fprintln(w, stacked.ErrorStack())
		return
	}
	fmt.Fprintf(w, "wlddemo: %v\n", err)
}
