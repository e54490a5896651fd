// SPDX-License-Identifier: MPL-2.0

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/issue"
	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/internal/packager"
	"github.com/bootpack/bootpack/pkg/integrity"
)

func newPackCommand(app *App) *cobra.Command {
	var (
		output  string
		stub    string
		keyFile string
	)
	cmd := &cobra.Command{
		Use:   "pack DESCRIPTOR",
		Short: "Build a container from a CUE package descriptor",
		Long: `Build a container from a CUE package descriptor.

The descriptor names the Start-Class, the classes directory and the
already-resolved libraries in dependency-declaration order:

  start_class: "demo.Main"
  classes:     "build/classes"
  libraries: [{path: "libs/util-1.0.jar"}]
  layers: [
    {name: "dependencies", patterns: ["BOOT-INF/lib/"]},
    {name: "application",  patterns: ["BOOT-INF/classes/", "META-INF/"]},
  ]

Relative paths are resolved against the descriptor's directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runPack(cmd, args[0], output, stub, keyFile)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output container (default: <descriptor name>.jar)")
	cmd.Flags().StringVar(&stub, "stub", "", "launcher stub to prepend (overrides the descriptor)")
	cmd.Flags().StringVar(&keyFile, "key", "", "sign the container with this private key file")
	return cmd
}

func (app *App) runPack(cmd *cobra.Command, descriptorPath, output, stub, keyFile string) error {
	stderr := cmd.ErrOrStderr()
	d, err := packager.LoadDescriptor(descriptorPath)
	if err != nil {
		return app.failure(stderr, issue.NewErrorContext().
			WithOperation("load package descriptor").
			WithResource(descriptorPath).
			WithIssue(issue.DescriptorInvalidId).
			WithSuggestion("Check the descriptor against the fields listed in 'bootpack pack --help'").
			Wrap(err).
			BuildError())
	}
	if stub != "" {
		d.Stub = stub
	}
	if output == "" {
		output = defaultOutput(descriptorPath)
	}

	opts := packager.Options{Tools: jarmode.Known(), Logger: app.logger}
	if keyFile != "" {
		key, keyErr := integrity.ReadPrivateKey(keyFile)
		if keyErr != nil {
			return app.failure(stderr, keyErr)
		}
		opts.SigningKey = key
	}

	sum, err := packager.Build(d, output, opts)
	if err != nil {
		return app.failure(stderr, err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s Packed %s (%d entries, %d libraries)\n",
		SuccessStyle.Render("✓"), KeyStyle.Render(sum.Path), sum.Entries, len(sum.Classpath))
	if sum.KeyID != "" {
		fmt.Fprintf(out, "  signed with key %s\n", sum.KeyID)
	}
	if app.verbose {
		for i, p := range sum.Classpath {
			fmt.Fprintf(out, "  %d. %s\n", i+1, p)
		}
		fmt.Fprintf(out, "  layers: %s\n", strings.Join(sum.Layers, ", "))
	}
	return nil
}

// defaultOutput derives the container name from the descriptor file name:
// "app.pack.cue" and "app.cue" both give "app.jar".
func defaultOutput(descriptorPath string) string {
	base := filepath.Base(descriptorPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.TrimSuffix(base, ".pack")
	return filepath.Join(filepath.Dir(descriptorPath), base+".jar")
}
