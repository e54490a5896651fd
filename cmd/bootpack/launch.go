// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/internal/launch"
	"github.com/bootpack/bootpack/pkg/integrity"
	"github.com/bootpack/bootpack/pkg/types"
)

func newLaunchCommand(app *App) *cobra.Command {
	var (
		image string
		mode  string
	)
	cmd := &cobra.Command{
		Use:   "launch [--image PATH] [--mode TOOL] [-- ARGS...]",
		Short: "Launch a container's application or one of its tools",
		Long: `Launch a container.

Without --mode the manifest Start-Class runs with ARGS. With --mode (or
BOOTPACK_MODE set in the environment) the named tool runs instead and the
application is never started. Tools: ` + joinKnown() + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("mode") {
				mode = app.cfg.Launch.Mode
			}
			return app.runLaunch(cmd, image, mode, args)
		},
	}
	cmd.Flags().StringVar(&image, "image", "", "container file or exploded directory (default: this executable)")
	cmd.Flags().StringVar(&mode, "mode", "", "tool to run instead of the application")
	return cmd
}

func newClasspathCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "classpath CONTAINER",
		Short: "Print the resolved classpath of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runLaunch(cmd, args[0], jarmode.ModeClasspath, nil)
		},
	}
}

func newLayersCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "layers CONTAINER (list | extract [--destination DIR] [--layer NAME=DIR]... [LAYER...])",
		Short: "List or extract the layers of a container",
		Long: `List or extract the layers of a container.

Everything after CONTAINER is handed to the layertools tool, exactly as
BOOTPACK_MODE=layertools would.`,
		DisableFlagParsing: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 || args[0] == "-h" || args[0] == "--help" {
				return cmd.Help()
			}
			return app.runLaunch(cmd, args[0], jarmode.ModeLayerTools, args[1:])
		},
	}
}

// runLaunch performs one launch with the CLI streams and configuration.
func (app *App) runLaunch(cmd *cobra.Command, image, mode string, args []string) error {
	opts := launch.Options{
		Image:       image,
		Mode:        mode,
		Args:        args,
		Stdin:       cmd.InOrStdin(),
		Stdout:      cmd.OutOrStdout(),
		Stderr:      cmd.ErrOrStderr(),
		CacheSize:   app.cfg.Launch.CacheSize,
		Destination: app.cfg.Extract.Destination,
		Concurrency: app.cfg.Extract.Concurrency,
		Logger:      app.logger,
	}
	if mode == jarmode.ModeVerify && app.cfg.Verify.TrustedKey != "" {
		key, err := integrity.ReadPublicKey(app.cfg.Verify.TrustedKey)
		if err != nil {
			return app.failure(cmd.ErrOrStderr(), err)
		}
		opts.TrustedKey = key
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	code, err := launch.Run(ctx, opts)
	if err != nil {
		return app.failure(cmd.ErrOrStderr(), err)
	}
	if code != types.ExitSuccess {
		return &ExitError{Code: code}
	}
	return nil
}

func joinKnown() string {
	return strings.Join(jarmode.Known(), ", ")
}
