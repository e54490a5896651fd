// SPDX-License-Identifier: MPL-2.0

package entrypoint

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"mvdan.cc/sh/v3/expand"
	"mvdan.cc/sh/v3/interp"
	"mvdan.cc/sh/v3/syntax"

	"github.com/bootpack/bootpack/pkg/types"
)

const (
	// ClasspathEnv holds the unit display paths joined by ':'.
	ClasspathEnv = "CLASSPATH"
	// ImageEnv holds the container path.
	ImageEnv = "BOOTPACK_IMAGE"
	// resourceBuiltin prints classpath resources to stdout.
	resourceBuiltin = "resource"
)

// RunScript interprets script with the launch environment. A non-zero exit
// of the script is returned as its status with a nil error.
func RunScript(ctx context.Context, name string, script []byte, env *Env) (types.ExitCode, error) {
	prog, err := syntax.NewParser().Parse(bytes.NewReader(script), name)
	if err != nil {
		return types.ExitFailure, fmt.Errorf("failed to parse script %s: %w", name, err)
	}

	opts := []interp.RunnerOption{
		interp.Env(expand.ListEnviron(scriptEnviron(env)...)),
		interp.StdIO(env.Stdin, env.Stdout, env.Stderr),
		interp.ExecHandlers(resourceHandler(env)),
	}
	// "--" keeps arguments like "-v" from being read as shell options.
	if len(env.Args) > 0 {
		opts = append(opts, interp.Params(append([]string{"--"}, env.Args...)...))
	}

	runner, err := interp.New(opts...)
	if err != nil {
		return types.ExitFailure, fmt.Errorf("failed to create interpreter: %w", err)
	}

	if err := runner.Run(ctx, prog); err != nil {
		var exitStatus interp.ExitStatus
		if errors.As(err, &exitStatus) {
			return types.ExitCode(exitStatus), nil
		}
		return types.ExitFailure, fmt.Errorf("script execution failed: %w", err)
	}
	return types.ExitSuccess, nil
}

func scriptEnviron(env *Env) []string {
	environ := os.Environ()
	if env.Loader != nil {
		units := env.Loader.Units()
		paths := make([]string, len(units))
		for i, u := range units {
			paths[i] = u.String()
		}
		environ = append(environ, ClasspathEnv+"="+strings.Join(paths, ":"))
	}
	if env.Image != "" {
		environ = append(environ, ImageEnv+"="+env.Image)
	}
	return environ
}

// resourceHandler implements "resource NAME..." ahead of external commands.
func resourceHandler(env *Env) func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
	return func(next interp.ExecHandlerFunc) interp.ExecHandlerFunc {
		return func(ctx context.Context, args []string) error {
			if len(args) == 0 || args[0] != resourceBuiltin {
				return next(ctx, args)
			}
			hc := interp.HandlerCtx(ctx)
			if len(args) < 2 || env.Loader == nil {
				fmt.Fprintln(hc.Stderr, "usage: resource NAME...")
				return interp.NewExitStatus(2)
			}
			for _, name := range args[1:] {
				if err := copyResource(hc.Stdout, env, name); err != nil {
					fmt.Fprintf(hc.Stderr, "resource: %v\n", err)
					return interp.NewExitStatus(1)
				}
			}
			return nil
		}
	}
}

func copyResource(w io.Writer, env *Env, name string) error {
	rc, err := env.Loader.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()
	_, err = io.Copy(w, rc)
	return err
}
