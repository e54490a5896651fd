// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/spf13/cobra"

	"github.com/bootpack/bootpack/internal/config"
	"github.com/bootpack/bootpack/internal/logging"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"
	// BuildDate is the build timestamp (set via -ldflags).
	BuildDate = "unknown"
)

type (
	// App wires the CLI to its configuration and output streams. Every
	// command handler receives the App built for the current invocation.
	App struct {
		Config config.Provider

		stdout io.Writer
		stderr io.Writer

		// Set by the persistent flags and the config load before any
		// command runs.
		verbose    bool
		configFile string
		cfg        *config.Config
		cfgPath    string
		logger     *slog.Logger
		// installLogger makes the configured logger the slog default.
		installLogger bool
	}

	// Dependencies defines the injection points for building an App. Nil
	// fields are replaced with production defaults by NewApp.
	Dependencies struct {
		Config config.Provider
		Stdout io.Writer
		Stderr io.Writer
	}
)

// NewApp creates an App with defaults for omitted dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	return &App{
		Config: deps.Config,
		stdout: deps.Stdout,
		stderr: deps.Stderr,
		cfg:    config.DefaultConfig(),
		logger: slog.Default(),
	}
}

// NewRootCommand builds the bootpack command tree over app.
func NewRootCommand(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "bootpack",
		Short: "Build, inspect and launch self-contained application containers",
		Long: TitleStyle.Render("bootpack") + SubtitleStyle.Render(" - self-contained application containers") + `

bootpack packs an application's classes and already-resolved libraries into
a single archive with an ordered classpath index and a layer index, and
launches such archives without unpacking them.

` + SubtitleStyle.Render("Examples:") + `
  bootpack pack bootpack.pack.cue -o app.jar   Build a container
  bootpack launch --image app.jar -- --port 8080
  bootpack classpath app.jar                  Print the resolved classpath
  bootpack layers app.jar extract --destination out
  bootpack verify app.jar --trusted-key release.pub`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.initialize(cmd.Context())
		},
	}
	root.SetOut(app.stdout)
	root.SetErr(app.stderr)

	root.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "enable verbose output and debug logging")
	root.PersistentFlags().StringVar(&app.configFile, "config", "", "config file (default is <config dir>/bootpack.cue)")

	root.AddCommand(
		newLaunchCommand(app),
		newClasspathCommand(app),
		newLayersCommand(app),
		newPackCommand(app),
		newSignCommand(app),
		newKeygenCommand(app),
		newVerifyCommand(app),
		newInspectCommand(app),
		newConfigCommand(app),
	)
	return root
}

// initialize loads the configuration and builds the logger. A broken
// config file is reported and the defaults apply, except for the tool mode
// which is still taken from the environment.
func (app *App) initialize(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, path, err := app.Config.LoadWithPath(ctx, config.LoadOptions{ConfigFilePath: app.configFile})
	if err != nil {
		fmt.Fprintln(app.stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err, app.verbose))
		cfg = config.FallbackConfig()
	}
	app.cfg, app.cfgPath = cfg, path

	level := cfg.Log.Level
	if app.verbose {
		level = config.LogLevelDebug
	}
	if app.installLogger {
		app.logger = logging.Install(app.stderr, level, cfg.Log.Format)
	} else {
		app.logger = slog.New(logging.New(app.stderr, level, cfg.Log.Format))
	}
	return nil
}

// getVersionString returns a formatted version string for display.
func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, BuildDate)
}

// Execute runs the CLI and exits with the status of the executed command.
func Execute() {
	app := NewApp(Dependencies{})
	app.installLogger = true
	if err := fang.Execute(
		context.Background(),
		NewRootCommand(app),
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(int(exitCodeOf(err)))
	}
}
