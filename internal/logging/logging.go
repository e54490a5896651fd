// SPDX-License-Identifier: MPL-2.0

// Package logging builds the styled stderr logger shared by the bootpack
// binaries. The logger doubles as the slog handler so library packages that
// log through slog.Default end up in the same stream.
package logging

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"

	"github.com/bootpack/bootpack/internal/config"
)

// Prefix is printed in front of every text record.
const Prefix = "bootpack"

// New creates a logger writing to w at level in format. Unknown values fall
// back to info and text.
func New(w io.Writer, level config.LogLevel, format config.LogFormat) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		Prefix:    Prefix,
		Level:     levelOf(level),
		Formatter: formatterOf(format),
	})
}

// Install creates a logger with New and makes it the slog default. The
// returned slog.Logger is the one library code receives.
func Install(w io.Writer, level config.LogLevel, format config.LogFormat) *slog.Logger {
	logger := slog.New(New(w, level, format))
	slog.SetDefault(logger)
	return logger
}

func levelOf(l config.LogLevel) log.Level {
	switch l {
	case config.LogLevelDebug:
		return log.DebugLevel
	case config.LogLevelWarn:
		return log.WarnLevel
	case config.LogLevelError:
		return log.ErrorLevel
	default:
		return log.InfoLevel
	}
}

func formatterOf(f config.LogFormat) log.Formatter {
	switch f {
	case config.LogFormatJSON:
		return log.JSONFormatter
	case config.LogFormatLogfmt:
		return log.LogfmtFormatter
	default:
		return log.TextFormatter
	}
}
