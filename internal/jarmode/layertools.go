// SPDX-License-Identifier: MPL-2.0

package jarmode

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/bootpack/bootpack/pkg/layers"
	"github.com/bootpack/bootpack/pkg/types"
)

// layerTools lists and extracts the layers of the image.
type layerTools struct{}

func (layerTools) Name() string         { return ModeLayerTools }
func (layerTools) NeedsClasspath() bool { return false }

func (layerTools) Run(ctx context.Context, env *Env) (types.ExitCode, error) {
	root := NewLayerToolsCommand(env)
	root.SetArgs(env.Args)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, ErrUsage) {
			return types.ExitUsage, err
		}
		return types.ExitFailure, err
	}
	return types.ExitSuccess, nil
}

// NewLayerToolsCommand builds the layertools command tree over env.
func NewLayerToolsCommand(env *Env) *cobra.Command {
	root := &cobra.Command{
		Use:           ModeLayerTools,
		Short:         "List and extract the layers of a container",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &UsageError{Tool: ModeLayerTools, Err: fmt.Errorf("unknown command %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Tool: ModeLayerTools, Err: err}
	})

	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List layers in extraction order",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) > 0 {
				return &UsageError{Tool: ModeLayerTools, Err: fmt.Errorf("list takes no arguments, got %q", args[0])}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ix, err := indexOf(env)
			if err != nil {
				return err
			}
			for _, name := range layers.List(ix) {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	})

	var (
		destination string
		targets     []string
	)
	extract := &cobra.Command{
		Use:   "extract [LAYER...]",
		Short: "Extract layers into separate directories",
		Long: `Extract layers into separate directories.

Each layer is written under <destination>/<layer> unless --layer maps it to
another directory. Positional arguments restrict extraction to the named
layers.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			mapped, err := parseTargets(targets)
			if err != nil {
				return err
			}
			ix, err := indexOf(env)
			if err != nil {
				return err
			}
			for _, name := range append(maps.Keys(mapped), args...) {
				if !ix.Has(name) {
					return &UsageError{
						Tool: ModeLayerTools,
						Err:  fmt.Errorf("unknown layer %q (known: %s)", name, strings.Join(ix.Names(), ", ")),
					}
				}
			}
			results, err := layers.Extract(cmd.Context(), env.Source, ix, layers.ExtractOptions{
				Fs:          env.Fs,
				Destination: destination,
				Targets:     mapped,
				Layers:      args,
				Concurrency: env.Concurrency,
				Logger:      env.logger(),
			})
			if err != nil {
				return err
			}
			for _, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d files)\n", r.Layer, r.Root, r.Files)
			}
			return nil
		},
	}
	extract.Flags().StringVar(&destination, "destination", env.Destination, "parent directory of the extracted layers")
	extract.Flags().StringArrayVar(&targets, "layer", nil, "extract a layer to a specific directory (NAME=DIR, repeatable)")
	root.AddCommand(extract)

	return root
}

// indexOf returns the layer index of the image, or the default layering
// when the container carries none.
func indexOf(env *Env) (*layers.Index, error) {
	name := env.Manifest.LayersIndex()
	ix, ok, err := layers.ReadIndex(env.Source, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		env.logger().Debug("no layer index, using default layers", "container", env.Source.Location(), "index", name)
		return layers.Default(), nil
	}
	return ix, nil
}

func parseTargets(mappings []string) (map[string]string, error) {
	if len(mappings) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(mappings))
	for _, mapping := range mappings {
		name, dir, ok := strings.Cut(mapping, "=")
		if !ok || name == "" || dir == "" {
			return nil, &UsageError{Tool: ModeLayerTools, Err: fmt.Errorf("--layer expects NAME=DIR, got %q", mapping)}
		}
		if _, dup := out[name]; dup {
			return nil, &UsageError{Tool: ModeLayerTools, Err: fmt.Errorf("layer %q mapped twice", name)}
		}
		out[name] = dir
	}
	return out, nil
}
