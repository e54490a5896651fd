// SPDX-License-Identifier: MPL-2.0

package jarmode

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"log/slog"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
	"github.com/bootpack/bootpack/pkg/types"
)

// Tool names accepted by the activation signal.
const (
	ModeClasspath  = "classpath"
	ModeLayerTools = "layertools"
	ModeVerify     = "verify"
)

// ErrUsage is wrapped by errors caused by invalid tool arguments.
var ErrUsage = errors.New("usage error")

type (
	// Env is the launch state a tool runs against.
	Env struct {
		Source   container.Source
		Manifest *layout.Manifest
		// Units is the resolved classpath in resolution order.
		Units  []classpath.Unit
		Args   []string
		Stdout io.Writer
		Stderr io.Writer

		// Fs is the extraction target; nil means the OS filesystem.
		Fs afero.Fs
		// Destination is the default extraction directory.
		Destination string
		// Concurrency bounds concurrent layer extraction.
		Concurrency int
		// TrustedKey pins the signing key for verification.
		TrustedKey ed25519.PublicKey
		Logger     *slog.Logger
	}

	// Tool is an alternate launch target.
	Tool interface {
		Name() string
		// NeedsClasspath reports whether Run reads Env.Units.
		NeedsClasspath() bool
		Run(ctx context.Context, env *Env) (types.ExitCode, error)
	}

	// UsageError reports invalid tool arguments.
	UsageError struct {
		Tool string
		Err  error
	}
)

// Known returns the tool names in a stable order.
func Known() []string {
	return []string{ModeClasspath, ModeLayerTools, ModeVerify}
}

// Lookup resolves mode to its tool. An unknown mode is an ActivationError.
func Lookup(mode string) (Tool, error) {
	switch mode {
	case ModeClasspath:
		return classpathTool{}, nil
	case ModeLayerTools:
		return layerTools{}, nil
	case ModeVerify:
		return verifyTool{}, nil
	default:
		return nil, &launcherr.ActivationError{Mode: mode, Known: Known()}
	}
}

func (e *UsageError) Error() string {
	return e.Tool + ": " + e.Err.Error()
}

// Unwrap returns ErrUsage and the underlying cause.
func (e *UsageError) Unwrap() []error { return []error{ErrUsage, e.Err} }

func (env *Env) logger() *slog.Logger {
	if env.Logger == nil {
		return slog.Default()
	}
	return env.Logger
}
