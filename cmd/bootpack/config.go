// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/config"
	"github.com/bootpack/bootpack/internal/issue"
)

// newConfigCommand creates the `bootpack config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Show bootpack configuration",
		Long: `Show bootpack configuration.

Configuration is read from bootpack.cue in:
  - Linux: ~/.config/bootpack/
  - macOS: ~/Library/Application Support/bootpack/
  - Windows: %APPDATA%\bootpack\
and then from ./bootpack.cue. BOOTPACK_* environment variables override
file values; BOOTPACK_MODE selects a tool for launches.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration as CUE",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, path, err := app.Config.LoadWithPath(cmd.Context(), config.LoadOptions{ConfigFilePath: app.configFile})
			if err != nil {
				if rendered, renderErr := issue.Get(issue.ConfigLoadFailedId).Render("dark"); renderErr == nil {
					fmt.Fprint(cmd.ErrOrStderr(), rendered)
				}
				return &ExitError{Code: 1, Err: err}
			}

			out := cmd.OutOrStdout()
			source := SubtitleStyle.Render("(defaults and environment)")
			if path != "" {
				source = path
			}
			fmt.Fprintf(out, "// %s %s\n", KeyStyle.Render("source:"), source)
			fmt.Fprint(out, config.GenerateCUE(cfg))
			return nil
		},
	})

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgDir, err := config.ConfigDir()
			if err != nil {
				return err
			}
			cfgPath, err := config.ConfigFilePath()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config directory: %s\n", cfgDir)
			fmt.Fprintf(out, "Config file: %s\n", cfgPath)
			return nil
		},
	})

	return cfgCmd
}
