// SPDX-License-Identifier: MPL-2.0

package launch

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/afero"

	"github.com/bootpack/bootpack/internal/entrypoint"
	"github.com/bootpack/bootpack/internal/jarmode"
	"github.com/bootpack/bootpack/pkg/classpath"
	"github.com/bootpack/bootpack/pkg/container"
	"github.com/bootpack/bootpack/pkg/launcherr"
	"github.com/bootpack/bootpack/pkg/layout"
	"github.com/bootpack/bootpack/pkg/types"
)

type (
	// Options are the inputs of one launch.
	Options struct {
		// Image is the container path; empty means the running executable.
		Image string
		// Mode is the activation signal; empty launches the application.
		Mode string
		// Args are handed to the entry point or tool untouched.
		Args []string

		Stdin  io.Reader
		Stdout io.Writer
		Stderr io.Writer

		// Fs holds exploded containers and extraction targets; nil means
		// the OS filesystem.
		Fs afero.Fs
		// CacheSize bounds the nested archive handles kept open.
		CacheSize int
		// Registry resolves Go entry points; nil means entrypoint.Default.
		Registry *entrypoint.Registry

		// Destination, Concurrency and TrustedKey configure the tools.
		Destination string
		Concurrency int
		TrustedKey  ed25519.PublicKey

		Logger *slog.Logger
	}

	// Context is the state of a launch, created per process start and never
	// persisted.
	Context struct {
		Form     container.Form
		Image    string
		Source   container.Source
		Manifest *layout.Manifest
		// Classpath is the resolved classpath in resolution order.
		Classpath []classpath.Unit
		Loader    *classpath.Loader
		// Tool is set when the activation signal named one.
		Tool jarmode.Tool
		// EntryPoint is set for application launches.
		EntryPoint entrypoint.EntryPoint
		Mode       string
		Args       []string

		opts   Options
		state  State
		cache  *classpath.Cache
		logger *slog.Logger
	}
)

// Run performs a complete launch and returns the process exit status. The
// error is non-nil for launcher failures; the entry point's own non-zero
// status is returned with a nil error.
func Run(ctx context.Context, opts Options) (types.ExitCode, error) {
	lc, err := Start(opts)
	if err != nil {
		return ExitCodeFor(err), err
	}
	defer lc.Close()

	steps := []struct {
		state State
		run   func() error
	}{
		{StateDetectForm, lc.DetectForm},
		{StateBuildClasspath, lc.BuildClasspath},
		{StateSelectEntryPoint, lc.SelectEntryPoint},
	}
	for _, step := range steps {
		lc.transition(step.state)
		if err := step.run(); err != nil {
			lc.fail(err)
			return ExitCodeFor(err), err
		}
	}

	lc.transition(StateExecute)
	code, err := lc.Execute(ctx)
	if err != nil {
		lc.fail(err)
		return code, err
	}
	lc.transition(StateSuccess)
	return code, nil
}

// Start reads the activation signal. An unknown tool mode fails here,
// before any archive access.
func Start(opts Options) (*Context, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = classpath.DefaultCacheSize
	}
	if opts.Registry == nil {
		opts.Registry = entrypoint.Default
	}

	lc := &Context{
		Mode:   opts.Mode,
		Args:   opts.Args,
		opts:   opts,
		state:  StateStart,
		logger: opts.Logger,
	}
	lc.logger.Debug("launch state", "state", StateStart.String(), "mode", opts.Mode)

	if opts.Mode != "" {
		tool, err := jarmode.Lookup(opts.Mode)
		if err != nil {
			lc.fail(err)
			return nil, err
		}
		lc.Tool = tool
	}
	return lc, nil
}

// State returns the current state.
func (lc *Context) State() State { return lc.state }

// DetectForm opens the image as an exploded directory or a packaged
// archive.
func (lc *Context) DetectForm() error {
	image := lc.opts.Image
	if image == "" {
		exe, err := os.Executable()
		if err != nil {
			return &launcherr.ResolutionError{Path: "executable", Reason: "cannot locate the running image", Err: err}
		}
		image = exe
	}
	lc.Image = image

	src, err := container.OpenSource(lc.opts.Fs, image)
	if err != nil {
		if errors.Is(err, container.ErrNotContainer) {
			return &launcherr.ResolutionError{Path: image, Reason: "not a container", Err: err}
		}
		return err
	}
	lc.Source = src
	lc.Form = src.Form()

	m, ok, err := container.ReadManifest(src)
	if err != nil {
		return err
	}
	if !ok {
		lc.logger.Debug("container has no manifest, using default layout", "image", image)
	}
	lc.Manifest = m
	lc.logger.Debug("form detected", "image", image, "form", lc.Form.String())
	return nil
}

// BuildClasspath resolves the ordered classpath for the detected form.
// Tools that never read the classpath skip resolution.
func (lc *Context) BuildClasspath() error {
	if lc.Tool != nil && !lc.Tool.NeedsClasspath() {
		lc.logger.Debug("classpath not needed", "tool", lc.Tool.Name())
		return nil
	}

	var (
		records []classpath.Record
		err     error
	)
	if d, exploded := lc.Source.(*container.Dir); exploded {
		records, err = ExplodedRecords(d, lc.Manifest)
	} else {
		records, err = PackagedRecords(lc.Source, lc.Manifest)
	}
	if err != nil {
		return err
	}

	lc.cache, err = classpath.NewCache(lc.opts.CacheSize)
	if err != nil {
		return err
	}
	units, err := classpath.Resolve(records, lc.Source, lc.cache)
	if err != nil {
		return err
	}
	lc.Classpath = units
	lc.Loader = classpath.NewLoader(units, lc.logger)
	lc.Loader.WarnConflicts()

	for i, u := range units {
		lc.logger.Debug("classpath unit", "position", i+1, "unit", displayName(u.Location()), "kind", u.Kind().String())
	}
	return nil
}

// SelectEntryPoint prefers the tool named by the activation signal, then the
// manifest Start-Class.
func (lc *Context) SelectEntryPoint() error {
	if lc.Tool != nil {
		lc.logger.Debug("entry point selected", "tool", lc.Tool.Name())
		return nil
	}
	ep, err := entrypoint.Resolve(lc.Manifest.StartClass(), lc.opts.Registry, lc.Loader)
	if err != nil {
		var resErr *launcherr.ResolutionError
		if errors.As(err, &resErr) && resErr.Container == "" {
			resErr.Container = lc.Image
		}
		return err
	}
	lc.EntryPoint = ep
	lc.logger.Debug("entry point selected", "start_class", ep.Name())
	return nil
}

// Execute runs the selected tool or entry point.
func (lc *Context) Execute(ctx context.Context) (types.ExitCode, error) {
	if lc.Tool != nil {
		code, err := lc.Tool.Run(ctx, &jarmode.Env{
			Source:      lc.Source,
			Manifest:    lc.Manifest,
			Units:       lc.Classpath,
			Args:        lc.Args,
			Stdout:      lc.opts.Stdout,
			Stderr:      lc.opts.Stderr,
			Fs:          lc.opts.Fs,
			Destination: lc.opts.Destination,
			Concurrency: lc.opts.Concurrency,
			TrustedKey:  lc.opts.TrustedKey,
			Logger:      lc.logger,
		})
		if err != nil && code == types.ExitFailure {
			code = ExitCodeFor(err)
		}
		return code, err
	}

	if lc.EntryPoint == nil {
		return types.ExitFailure, fmt.Errorf("launch: no entry point selected")
	}
	code, err := lc.EntryPoint.Run(ctx, &entrypoint.Env{
		Args:   lc.Args,
		Stdin:  lc.opts.Stdin,
		Stdout: lc.opts.Stdout,
		Stderr: lc.opts.Stderr,
		Loader: lc.Loader,
		Image:  lc.Image,
		Logger: lc.logger,
	})
	if err != nil && code == types.ExitFailure {
		code = ExitCodeFor(err)
	}
	return code.Clamp(), err
}

// Close releases every archive handle the launch opened.
func (lc *Context) Close() error {
	if lc.cache != nil {
		lc.cache.Close()
	}
	if lc.Source != nil {
		return lc.Source.Close()
	}
	return nil
}

func (lc *Context) transition(next State) {
	lc.logger.Debug("launch state", "from", lc.state.String(), "to", next.String())
	lc.state = next
}

func (lc *Context) fail(err error) {
	lc.logger.Debug("launch state", "from", lc.state.String(), "to", StateFailure.String(), "error", err)
	lc.state = StateFailure
}
