// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package commands

import (
	"fmt"
	"os"
	"path/filepath"

	goerrors "github.com/go-errors/errors"
	"github.com/spf13/cobra"

	"github.com/gogpu/wld/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	var force bool
	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write the default configuration",
		Args:  cobra.MaximumNArgs(1),
		// A broken existing file must not stop init from replacing it.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath(args)
			if err != nil {
				return err
			}
			if _, err := os.Stat(path); err == nil && !force {
				return goerrors.Errorf("%s exists; use --force to overwrite", path)
			}
			if err := config.DefaultConfig().Save(path); err != nil {
				return goerrors.Wrap(err, 0)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}

func configPath(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", goerrors.Wrap(err, 0)
	}
	return filepath.Join(dir, "wld", "config.toml"), nil
}
