// SPDX-License-Identifier: MPL-2.0

// Command bootlaunch is the launcher stub prepended to executable
// containers. It launches the container it is part of: the running
// executable, or the file named by BOOTPACK_IMAGE when a script stub execs
// it. BOOTPACK_MODE selects a tool instead of the application.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/bootpack/bootpack/internal/config"
	"github.com/bootpack/bootpack/internal/entrypoint"
	"github.com/bootpack/bootpack/internal/launch"
	"github.com/bootpack/bootpack/internal/logging"
	"github.com/bootpack/bootpack/pkg/types"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Getenv, os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(int(code))
}

// run performs one launch and returns the process status. Launcher
// failures are reported on stderr as a single line.
func run(ctx context.Context, args []string, getenv func(string) string, stdin io.Reader, stdout, stderr io.Writer) types.ExitCode {
	cfg, err := config.NewProvider().Load(ctx, config.LoadOptions{})
	if err != nil {
		fmt.Fprintf(stderr, "bootlaunch: %v (using defaults)\n", err)
		cfg = config.FallbackConfig()
	}
	logger := logging.Install(stderr, cfg.Log.Level, cfg.Log.Format)

	code, err := launch.Run(ctx, launch.Options{
		Image:       getenv(entrypoint.ImageEnv),
		Mode:        cfg.Launch.Mode,
		Args:        args,
		Stdin:       stdin,
		Stdout:      stdout,
		Stderr:      stderr,
		CacheSize:   cfg.Launch.CacheSize,
		Destination: cfg.Extract.Destination,
		Concurrency: cfg.Extract.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		fmt.Fprintf(stderr, "bootlaunch: %v\n", err)
	}
	return code
}
