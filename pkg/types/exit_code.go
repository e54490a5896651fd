// SPDX-License-Identifier: MPL-2.0

// Package types holds small value types shared by the launcher, the tools and
// the CLI.
package types

import (
	"errors"
	"fmt"
	"strconv"
)

// Process exit codes. These values are part of the external interface of the
// launcher and must stay stable: supervisors match on them.
//
// An application entry point may exit with any status in 0-255; the launcher
// only produces the codes below for its own failures.
const (
	// ExitSuccess is returned when the delegated entry point succeeded.
	ExitSuccess ExitCode = 0
	// ExitFailure is the generic failure status.
	ExitFailure ExitCode = 1
	// ExitUsage reports invalid command-line usage.
	ExitUsage ExitCode = 2
	// ExitFormat reports malformed index, layer or manifest metadata.
	ExitFormat ExitCode = 3
	// ExitActivation reports an unknown tool mode.
	ExitActivation ExitCode = 4
	// ExitResolution reports a missing or unreadable resolvable unit or entry point.
	ExitResolution ExitCode = 5
	// ExitIntegrity reports a container whose integrity record does not match.
	ExitIntegrity ExitCode = 6
)

// ErrInvalidExitCode is the sentinel error wrapped by InvalidExitCodeError.
var ErrInvalidExitCode = errors.New("invalid exit code")

type (
	// ExitCode represents a process exit status code.
	// Exit codes are in the range 0-255 on POSIX systems.
	// The zero value (0) means success.
	ExitCode int

	// InvalidExitCodeError is returned when an ExitCode is outside the
	// valid range (0-255).
	InvalidExitCodeError struct {
		Value ExitCode
	}
)

// Error implements the error interface.
func (e *InvalidExitCodeError) Error() string {
	return fmt.Sprintf("invalid exit code %d (must be in range 0-255)", e.Value)
}

// Unwrap returns ErrInvalidExitCode so callers can use errors.Is for programmatic detection.
func (e *InvalidExitCodeError) Unwrap() error { return ErrInvalidExitCode }

// Validate returns an error if the ExitCode is outside the valid range (0-255).
func (c ExitCode) Validate() error {
	if c < 0 || c > 255 {
		return &InvalidExitCodeError{Value: c}
	}
	return nil
}

// IsSuccess returns true if the exit code indicates successful execution.
func (c ExitCode) IsSuccess() bool { return c == 0 }

// IsLauncherFailure reports whether the code is one the launcher produces for
// its own failures (format, activation, resolution, integrity).
func (c ExitCode) IsLauncherFailure() bool {
	return c >= ExitFormat && c <= ExitIntegrity
}

// Clamp maps out-of-range statuses onto ExitFailure so they can be handed
// to os.Exit safely.
func (c ExitCode) Clamp() ExitCode {
	if c.Validate() != nil {
		return ExitFailure
	}
	return c
}

// String returns the decimal string representation of the ExitCode.
func (c ExitCode) String() string { return strconv.Itoa(int(c)) }
